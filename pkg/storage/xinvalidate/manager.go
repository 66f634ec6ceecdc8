package xinvalidate

import (
	"context"
	"log/slog"

	"github.com/omeyang/rentkit/pkg/observability/xlog"
	"github.com/omeyang/rentkit/pkg/observability/xmetrics"
	"github.com/omeyang/rentkit/pkg/storage/xkv"
)

const componentName = "xinvalidate"

// Option 配置 Manager
type Option func(*Manager)

// WithLogger 设置日志记录器
func WithLogger(l xlog.Logger) Option {
	return func(m *Manager) {
		m.logger = l
	}
}

// WithObserver 设置观测器
func WithObserver(obs xmetrics.Observer) Option {
	return func(m *Manager) {
		if obs != nil {
			m.observer = obs
		}
	}
}

// WithRevalidator 设置展示层通知方式，默认 DefaultRevalidator(client, "")
func WithRevalidator(r Revalidator) Option {
	return func(m *Manager) {
		m.revalidator = r
	}
}

// Manager 缓存失效管理器。所有方法都不返回错误。
type Manager struct {
	client      *xkv.Client
	revalidator Revalidator
	logger      xlog.Logger
	observer    xmetrics.Observer
}

// New 创建失效管理器
func New(client *xkv.Client, opts ...Option) (*Manager, error) {
	if client == nil {
		return nil, ErrNilClient
	}
	m := &Manager{
		client:   client,
		observer: xmetrics.NoopObserver{},
	}
	for _, opt := range opts {
		if opt != nil {
			opt(m)
		}
	}
	if m.revalidator == nil {
		m.revalidator = DefaultRevalidator(client, "")
	}
	m.logger = xlog.OrDefault(m.logger).With(xlog.Component(componentName))
	return m, nil
}

// InvalidateKey 删除 namespace 下的单个 key
func (m *Manager) InvalidateKey(ctx context.Context, namespace, key string) {
	m.InvalidateBatch(ctx, namespace, []string{key})
}

// InvalidateBatch 在一次后端往返中删除 namespace 下的多个 key。
// 空 key 和重复 key 被忽略。
func (m *Manager) InvalidateBatch(ctx context.Context, namespace string, keys []string) {
	full := make([]string, 0, len(keys))
	seen := make(map[string]struct{}, len(keys))
	for _, k := range keys {
		if k == "" {
			continue
		}
		fk := xkv.JoinKey(namespace, k)
		if _, dup := seen[fk]; dup {
			continue
		}
		seen[fk] = struct{}{}
		full = append(full, fk)
	}
	if len(full) == 0 {
		return
	}

	ctx, span := xmetrics.Start(ctx, m.observer, xmetrics.SpanOptions{
		Component: componentName,
		Operation: "batch",
		Kind:      xmetrics.KindInternal,
		Attrs: []xmetrics.Attr{
			xmetrics.String("namespace", namespace),
			xmetrics.Int("keys", len(full)),
		},
	})
	defer span.End(xmetrics.Result{})

	m.client.Delete(ctx, full...)
	m.logger.Debug(ctx, "cache keys invalidated",
		xlog.Namespace(namespace), xlog.Count(int64(len(full))), slog.Any("keys", full))
}

// InvalidatePattern 删除 namespace 下匹配 glob 模式的 key。
// 仅 TCP Redis 后端支持，其他后端记录告警后返回，依赖 TTL 兜底。
func (m *Manager) InvalidatePattern(ctx context.Context, namespace, pattern string) {
	if pattern == "" {
		return
	}
	scanner, ok := m.client.Scanner()
	if !ok {
		m.logger.Warn(ctx, "pattern invalidation not supported by backend, relying on TTL",
			xlog.Namespace(namespace), slog.String("pattern", pattern), xlog.Backend(m.client.Kind().String()))
		return
	}

	ctx, span := xmetrics.Start(ctx, m.observer, xmetrics.SpanOptions{
		Component: componentName,
		Operation: "pattern",
		Kind:      xmetrics.KindInternal,
		Attrs:     []xmetrics.Attr{xmetrics.String("namespace", namespace)},
	})
	var (
		total int
		err   error
	)
	defer func() {
		if r := recover(); r != nil {
			m.logger.Stack(ctx, "pattern invalidation panicked", xlog.Panic(r))
		}
		span.End(xmetrics.Result{Err: err})
	}()

	err = scanner.Scan(ctx, xkv.JoinKey(namespace, pattern), func(keys []string) error {
		m.client.Delete(ctx, keys...)
		total += len(keys)
		return nil
	})
	if err != nil {
		m.logger.Warn(ctx, "pattern invalidation failed",
			xlog.Namespace(namespace), slog.String("pattern", pattern), xlog.Err(err))
		return
	}
	m.logger.Debug(ctx, "cache pattern invalidated",
		xlog.Namespace(namespace), slog.String("pattern", pattern), xlog.Count(int64(total)))
}

// Revalidate 通知展示层页面过期，失败只记录日志
func (m *Manager) Revalidate(ctx context.Context, paths ...string) {
	if len(paths) == 0 {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			m.logger.Stack(ctx, "revalidate panicked", xlog.Panic(r))
		}
	}()
	if err := m.revalidator.Revalidate(ctx, paths...); err != nil {
		m.logger.Warn(ctx, "presentation revalidate failed", slog.Any("paths", paths), xlog.Err(err))
	}
}
