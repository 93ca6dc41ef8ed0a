package main

import "os"

func main() {
	// 开始安全退出任务
	InitSafeExit()
	os.Exit(execute())
}
