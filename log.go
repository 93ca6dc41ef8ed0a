package main

import (
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/sirupsen/logrus"

	nested "github.com/antonfisher/nested-logrus-formatter"
	"github.com/shiena/ansicolor"
)

var log = logrus.New()

// InitLog 初始化日志. extraFile 非空时额外写入该文件
func InitLog(level string, extraFile string) error {
	log.SetFormatter(&nested.Formatter{
		HideKeys:        true,
		ShowFullLevel:   true,
		TimestampFormat: "2006-01-02 15:04:05.000",
	})
	// then wrap the log output with it
	logIO := make([]io.Writer, 0)
	if conf.Output.LogDir != "" {
		os.MkdirAll(conf.Output.LogDir, os.ModePerm)
		filename := filepath.Join(conf.Output.LogDir, time.Now().Format("2006-01-02.log"))
		file, err := openLogFile(filename)
		if err != nil {
			return err
		}
		logIO = append(logIO, file)
	}
	if extraFile != "" {
		file, err := openLogFile(extraFile)
		if err != nil {
			return err
		}
		logIO = append(logIO, file)
	}
	if conf.Output.OutputTerminal || len(logIO) == 0 {
		logIO = append(logIO, os.Stdout)
	}

	// 融合日志输出
	log.SetOutput(ansicolor.NewAnsiColorWriter(io.MultiWriter(logIO...)))

	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		log.SetLevel(logrus.InfoLevel)
	} else {
		log.SetLevel(lvl)
	}
	return nil
}

func openLogFile(filename string) (*os.File, error) {
	file, err := os.OpenFile(filename, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return nil, err
	}
	SafeExitInst.Register(func() { file.Close() })
	return file, nil
}
