package main

import (
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
)

var SafeExitInst = new(SafeExit)

func InitSafeExit() {
	go SafeExitInst.ListenSignal()
}

// SafeExit runs registered cleanup funcs once, either at the end of a
// command or when the process is signalled.
type SafeExit struct {
	funcs []func()
	mu    sync.Mutex
}

func (s *SafeExit) Register(f func()) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.funcs = append(s.funcs, f)
}

// Cleanup runs the registered funcs, latest first, and forgets them.
func (s *SafeExit) Cleanup() {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i := len(s.funcs) - 1; i >= 0; i-- {
		s.funcs[i]()
	}
	s.funcs = nil
}

func (s *SafeExit) ListenSignal() {
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGHUP, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)
	for sig := range sigs {
		fmt.Fprintf(os.Stderr, "收到系统信号 %v, 正在停止任务, 请稍后\n", sig)
		s.Cleanup()
		os.Exit(130)
	}
}
