// Package main 提供 dat 命令行入口
//
// 子命令：
//
//	dat create <dir>          创建可写归档并输出密钥
//	dat share <dir>           加入网络并共享归档
//	dat clone <key> <dir>     从网络克隆归档
//	dat keys <dir>            输出归档密钥与文件列表
//	dat version               输出版本信息
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	dat "github.com/dep2p/go-dat"
)

// 退出码
const (
	exitOK          = 0
	exitError       = 1
	exitInvalidPath = 2
	exitExists      = 3
	exitKeyMismatch = 4
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := run(ctx, newRootOptions(), os.Args[1:], os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

// run 执行命令并返回退出码
func run(ctx context.Context, opts *rootOptions, args []string, stdout, stderr io.Writer) int {
	cmd := newRootCommand(opts)
	cmd.SetArgs(args)
	cmd.SetOut(stdout)
	cmd.SetErr(stderr)

	err := cmd.ExecuteContext(ctx)
	if err != nil {
		fmt.Fprintln(stderr, "error:", err)
	}
	return exitCode(err)
}

// exitCode 将错误类型映射为退出码
func exitCode(err error) int {
	switch {
	case err == nil:
		return exitOK
	case errors.Is(err, dat.ErrInvalidPath):
		return exitInvalidPath
	case errors.Is(err, dat.ErrAlreadyExists):
		return exitExists
	case errors.Is(err, dat.ErrKeyMismatch), errors.Is(err, dat.ErrCorruptMetadata):
		return exitKeyMismatch
	default:
		return exitError
	}
}
