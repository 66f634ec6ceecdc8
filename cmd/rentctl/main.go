// rentctl 是 rentkit 缓存与分布式锁的运维命令行工具。
//
// 用法:
//
//	rentctl [全局选项] <命令> [命令参数]
//
// 全局选项:
//
//	-c, --config   配置文件路径（YAML/JSON，可选，环境变量覆盖文件）
//	-t, --timeout  单条命令的超时时间 (默认: 10s)
//
// 命令:
//
//	backend                         查看选中的后端并执行一次 Ping
//	get <key>                       读取缓存条目
//	del <key>...                    删除缓存条目（--pattern 按模式删除）
//	invalidate <实体>               按实体变更失效相关缓存
//	lock acquire|release|status     分布式锁操作
//	probe                           周期性健康检查，直到 Ctrl+C
//
// 后端选择与服务进程一致：
// KV_REST_API_URL + KV_REST_API_TOKEN > REDIS_URL > 本地内存（非生产）> 禁用。
//
// 退出码:
//
//	0: 命令执行成功
//	1: 命令执行失败（未命中、锁被占用、后端不可用等）
//	2: 参数错误
//
// 示例:
//
//	REDIS_URL=redis://localhost:6379 rentctl backend
//	rentctl get --namespace listings property:p1
//	rentctl invalidate property --id p1 --owner o1 --city Austin
//	rentctl lock acquire --expire 30s payment:r1
//	rentctl probe --interval 2s
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/urfave/cli/v3"
)

// defaultTimeout 默认命令超时时间
const defaultTimeout = 10 * time.Second

// 版本信息（可通过 -ldflags 注入）
var (
	Version   = "0.1.0-dev"
	GitCommit = "unknown"
	BuildTime = "unknown"
)

func main() {
	os.Exit(run(os.Args, os.Stdout, os.Stderr))
}

// createApp 创建 CLI 应用。stdout 承载命令结果，stderr 承载日志和错误。
func createApp(stdout, stderr io.Writer) *cli.Command {
	rt := &runtime{}
	return &cli.Command{
		Name:      "rentctl",
		Usage:     "rentkit 缓存与分布式锁运维工具",
		Version:   fmt.Sprintf("%s (commit: %s, built: %s)", Version, GitCommit, BuildTime),
		Writer:    stdout,
		ErrWriter: stderr,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "配置文件路径（YAML/JSON）",
			},
			&cli.DurationFlag{
				Name:    "timeout",
				Aliases: []string{"t"},
				Usage:   "单条命令的超时时间",
				Value:   defaultTimeout,
			},
		},
		Commands: createCommands(rt),
		After: func(context.Context, *cli.Command) error {
			return rt.close()
		},
		OnUsageError: func(_ context.Context, _ *cli.Command, err error, _ bool) error {
			return &usageError{msg: err.Error()}
		},
		// 禁止 urfave/cli 直接调用 os.Exit，由 exitCode 统一映射退出码
		ExitErrHandler: func(_ context.Context, _ *cli.Command, err error) {
			if _, ok := err.(cli.ExitCoder); ok {
				fmt.Fprintln(stderr, err)
			}
		},
	}
}

func run(args []string, stdout, stderr io.Writer) int {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	setupSignalHandler(cancel)

	return exitCode(createApp(stdout, stderr).Run(ctx, args), stderr)
}

// exitCode 把命令错误映射为退出码并输出错误信息
func exitCode(err error, stderr io.Writer) int {
	if err == nil {
		return 0
	}
	var exitErr *exitError
	if errors.As(err, &exitErr) {
		return exitErr.code
	}
	var usageErr *usageError
	if errors.As(err, &usageErr) {
		fmt.Fprintf(stderr, "参数错误: %v\n", usageErr)
		return 2
	}
	if _, ok := err.(cli.ExitCoder); ok {
		// ExitErrHandler 已输出详情
		return 2
	}
	fmt.Fprintf(stderr, "错误: %v\n", err)
	return 1
}

// setupSignalHandler 第一次 SIGINT/SIGTERM 取消 ctx，第二次强制退出
func setupSignalHandler(cancel context.CancelFunc) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		cancel()

		<-sigCh
		signal.Stop(sigCh)
		os.Exit(130)
	}()
}
