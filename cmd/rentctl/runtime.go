package main

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/urfave/cli/v3"

	"github.com/omeyang/rentkit/pkg/config/xconf"
	"github.com/omeyang/rentkit/pkg/distributed/xdlock"
	"github.com/omeyang/rentkit/pkg/observability/xlog"
	"github.com/omeyang/rentkit/pkg/storage/xinvalidate"
	"github.com/omeyang/rentkit/pkg/storage/xkv"
)

// exitError 命令已完成输出，只需设置非零退出码
type exitError struct {
	code int
}

func (e *exitError) Error() string { return fmt.Sprintf("exit status %d", e.code) }

// usageError 参数错误，退出码 2
type usageError struct {
	msg string
}

func (e *usageError) Error() string { return e.msg }

// runtime 延迟构造的进程级依赖。只有真正访问后端的命令才会加载配置和建立连接，
// help/version 不受配置错误影响。
type runtime struct {
	settings xconf.Settings
	cfg      xconf.Config
	logger   xlog.Logger
	kv       *xkv.Client
	cleanup  func() error
}

// client 加载配置、构建 logger 并选择后端，结果在进程内复用
func (rt *runtime) client(ctx context.Context, cmd *cli.Command) (*xkv.Client, error) {
	if rt.kv != nil {
		return rt.kv, nil
	}
	root := cmd.Root()
	settings, cfg, err := xconf.LoadSettings(root.String("config"))
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	logger, cleanup, err := newLogger(settings.Log, root.ErrWriter)
	if err != nil {
		return nil, fmt.Errorf("build logger: %w", err)
	}

	rt.settings = settings
	rt.cfg = cfg
	rt.logger = logger
	rt.cleanup = cleanup
	rt.kv = xkv.Open(ctx, xkv.ConfigFromSettings(settings), xkv.WithLogger(logger))
	return rt.kv, nil
}

// watchSettings 监视 --config 指定的文件，重载并校验通过的配置送入返回的 channel。
// 未指定配置文件时返回 nil channel。必须在 client 之后调用。
func (rt *runtime) watchSettings(ctx context.Context) (<-chan xconf.Settings, func(), error) {
	if rt.cfg == nil || rt.cfg.Path() == "" {
		return nil, func() {}, nil
	}
	ch := make(chan xconf.Settings, 1)
	w, err := xconf.Watch(rt.cfg, func(cfg xconf.Config, err error) {
		var s xconf.Settings
		if err == nil {
			s, err = xconf.Decode(cfg)
		}
		if err != nil {
			rt.logger.Warn(ctx, "config reload failed, keeping current backend", xlog.Err(err))
			return
		}
		// 只保留最新一次
		select {
		case <-ch:
		default:
		}
		select {
		case ch <- s:
		default:
		}
	}, 0)
	if err != nil {
		return nil, nil, fmt.Errorf("watch config: %w", err)
	}
	return ch, func() { _ = w.Stop() }, nil
}

// reopen 按新配置重新选择后端，旧客户端随即关闭
func (rt *runtime) reopen(ctx context.Context, s xconf.Settings) *xkv.Client {
	if rt.kv != nil {
		if err := rt.kv.Close(); err != nil {
			rt.logger.Warn(ctx, "close kv backend failed", xlog.Err(err))
		}
	}
	rt.settings = s
	rt.kv = xkv.Open(ctx, xkv.ConfigFromSettings(s), xkv.WithLogger(rt.logger))
	rt.logger.Info(ctx, "config reloaded", xlog.Backend(rt.kv.Kind().String()))
	return rt.kv
}

func (rt *runtime) invalidator(ctx context.Context, cmd *cli.Command) (*xinvalidate.Manager, error) {
	kv, err := rt.client(ctx, cmd)
	if err != nil {
		return nil, err
	}
	return xinvalidate.New(kv, xinvalidate.WithLogger(rt.logger))
}

func (rt *runtime) locker(ctx context.Context, cmd *cli.Command) (*xdlock.Manager, error) {
	kv, err := rt.client(ctx, cmd)
	if err != nil {
		return nil, err
	}
	opts := append(xdlock.OptionsFromSettings(rt.settings), xdlock.WithLogger(rt.logger))
	return xdlock.New(kv, opts...)
}

func (rt *runtime) close() error {
	var errs []error
	if rt.kv != nil {
		errs = append(errs, rt.kv.Close())
		rt.kv = nil
	}
	if rt.cleanup != nil {
		errs = append(errs, rt.cleanup())
		rt.cleanup = nil
	}
	return errors.Join(errs...)
}

// newLogger 按 log 配置构建 logger；配置了文件时输出到轮转文件，否则输出到 w
func newLogger(s xconf.LogSettings, w io.Writer) (xlog.Logger, func() error, error) {
	b := xlog.New().
		SetOutput(w).
		SetLevelString(s.Level).
		SetFormat(s.Format).
		SetComponent("rentctl")
	if s.File != "" {
		b = b.SetRotation(s.File, 0, 0, 0)
	}
	logger, cleanup, err := b.Build()
	if err != nil {
		return nil, nil, err
	}
	return logger, cleanup, nil
}
