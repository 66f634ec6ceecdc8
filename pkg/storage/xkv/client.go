package xkv

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sony/gobreaker/v2"

	"github.com/omeyang/rentkit/pkg/observability/xlog"
	"github.com/omeyang/rentkit/pkg/observability/xmetrics"
)

// componentName 观测与日志中的组件名
const componentName = "xkv"

// ClientOption Client 配置选项
type ClientOption func(*clientOptions)

type clientOptions struct {
	logger          xlog.Logger
	observer        xmetrics.Observer
	breaker         bool
	breakerFailures uint32
	breakerCooldown time.Duration
}

func defaultClientOptions() *clientOptions {
	return &clientOptions{
		observer:        xmetrics.NoopObserver{},
		breaker:         true,
		breakerFailures: DefaultBreakerFailures,
		breakerCooldown: DefaultBreakerCooldown,
	}
}

// WithLogger 设置日志记录器，默认使用 xlog.Default()
func WithLogger(l xlog.Logger) ClientOption {
	return func(o *clientOptions) {
		o.logger = l
	}
}

// WithObserver 设置观测器
func WithObserver(obs xmetrics.Observer) ClientOption {
	return func(o *clientOptions) {
		if obs != nil {
			o.observer = obs
		}
	}
}

// WithBreaker 设置熔断阈值与冷却时间，零值使用默认值
func WithBreaker(failures uint32, cooldown time.Duration) ClientOption {
	return func(o *clientOptions) {
		o.breaker = true
		if failures > 0 {
			o.breakerFailures = failures
		}
		if cooldown > 0 {
			o.breakerCooldown = cooldown
		}
	}
}

// WithoutBreaker 关闭熔断
func WithoutBreaker() ClientOption {
	return func(o *clientOptions) {
		o.breaker = false
	}
}

// Client 容错的键值门面。
//
// 所有方法都不返回错误：驱动失败或 panic 时记录日志，
// 读返回未命中，写静默放弃，SetIfAbsent/Exists 返回 false。
// 本地与禁用后端不经过熔断器。
type Client struct {
	store    Store
	logger   xlog.Logger
	observer xmetrics.Observer
	breaker  *gobreaker.CircuitBreaker[any]
}

// NewClient 用指定 Store 构造 Client，store 为 nil 时退化为禁用后端。
func NewClient(store Store, opts ...ClientOption) *Client {
	o := defaultClientOptions()
	for _, opt := range opts {
		opt(o)
	}
	if store == nil {
		store = NewDisabledStore()
	}
	c := &Client{
		store:    store,
		logger:   xlog.OrDefault(o.logger).With(xlog.Component(componentName), xlog.Backend(store.Kind().String())),
		observer: o.observer,
	}
	if o.breaker && isRemote(store.Kind()) {
		c.breaker = newBreaker(store.Kind().String(), o.breakerFailures, o.breakerCooldown, c.logger)
	}
	return c
}

// Kind 返回当前后端类型
func (c *Client) Kind() Kind { return c.store.Kind() }

// Enabled 后端是否可用（非禁用模式）
func (c *Client) Enabled() bool { return c.store.Kind() != KindDisabled }

// Store 返回底层驱动
func (c *Client) Store() Store { return c.store }

// Get 读取 key，任何失败都视为未命中
func (c *Client) Get(ctx context.Context, key string) ([]byte, bool) {
	var (
		value []byte
		found bool
	)
	err := c.exec(ctx, "get", key, func(ctx context.Context) error {
		v, ok, err := c.store.Get(ctx, key)
		value, found = v, ok
		return err
	})
	if err != nil {
		return nil, false
	}
	return value, found
}

// Set 写入 key，失败时静默放弃
func (c *Client) Set(ctx context.Context, key string, value []byte, ttl time.Duration) {
	_ = c.exec(ctx, "set", key, func(ctx context.Context) error {
		return c.store.Set(ctx, key, value, ttl)
	})
}

// SetE 与 Set 相同，但把失败报告给调用方（日志已记录）。
// 供缓存引擎的写入失败回调使用。
func (c *Client) SetE(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	return c.exec(ctx, "set", key, func(ctx context.Context) error {
		return c.store.Set(ctx, key, value, ttl)
	})
}

// Delete 一次往返删除多个 key，keys 为空时不发请求
func (c *Client) Delete(ctx context.Context, keys ...string) {
	if len(keys) == 0 {
		return
	}
	_ = c.exec(ctx, "del", keys[0], func(ctx context.Context) error {
		return c.store.Delete(ctx, keys...)
	}, xmetrics.Int("keys", len(keys)))
}

// Exists 判断 key 是否存在，失败返回 false
func (c *Client) Exists(ctx context.Context, key string) bool {
	var exists bool
	_ = c.exec(ctx, "exists", key, func(ctx context.Context) error {
		ok, err := c.store.Exists(ctx, key)
		exists = ok
		return err
	})
	return exists
}

// SetIfAbsent 原子的"不存在才写入"，失败返回 false
func (c *Client) SetIfAbsent(ctx context.Context, key string, value []byte, ttl time.Duration) bool {
	var stored bool
	err := c.exec(ctx, "setnx", key, func(ctx context.Context) error {
		ok, err := c.store.SetIfAbsent(ctx, key, value, ttl)
		stored = ok
		return err
	})
	return err == nil && stored
}

// CompareAndDelete 值匹配时删除，失败返回 false
func (c *Client) CompareAndDelete(ctx context.Context, key string, value []byte) bool {
	var deleted bool
	err := c.exec(ctx, "cad", key, func(ctx context.Context) error {
		ok, err := c.store.CompareAndDelete(ctx, key, value)
		deleted = ok
		return err
	})
	return err == nil && deleted
}

// Ping 探测后端，这是唯一返回错误的方法，供健康检查使用
func (c *Client) Ping(ctx context.Context) error {
	return c.exec(ctx, "ping", "", c.store.Ping)
}

// Scanner 返回后端的模式枚举能力，不支持时 ok 为 false
func (c *Client) Scanner() (Scanner, bool) {
	s, ok := c.store.(Scanner)
	return s, ok
}

// RedisClient 返回 TCP 后端底层的 go-redis 客户端，其他后端返回 false
func (c *Client) RedisClient() (redis.UniversalClient, bool) {
	if rs, ok := c.store.(*redisStore); ok {
		return rs.Client(), true
	}
	return nil, false
}

// Close 关闭底层驱动
func (c *Client) Close() error {
	return c.store.Close()
}

// =============================================================================
// 执行管线：panic 恢复 → 熔断 → 观测 → 日志
// =============================================================================

func (c *Client) exec(ctx context.Context, op, key string, fn func(context.Context) error, attrs ...xmetrics.Attr) (err error) {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, span := xmetrics.Start(ctx, c.observer, xmetrics.SpanOptions{
		Component: componentName,
		Operation: op,
		Kind:      xmetrics.KindClient,
		Attrs: append([]xmetrics.Attr{
			xmetrics.String("backend", c.store.Kind().String()),
		}, attrs...),
	})
	start := time.Now()

	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: %v", ErrPanic, r)
			c.logger.Stack(ctx, "kv operation panicked",
				xlog.Operation(op), xlog.Key(key), xlog.Panic(r))
		}
		span.End(xmetrics.Result{Err: err})
		if err != nil {
			c.logFailure(ctx, op, key, err, time.Since(start))
		}
	}()

	if c.breaker == nil {
		return fn(ctx)
	}
	_, err = c.breaker.Execute(func() (any, error) {
		return nil, fn(ctx)
	})
	return err
}

func (c *Client) logFailure(ctx context.Context, op, key string, err error, elapsed time.Duration) {
	attrs := []slog.Attr{xlog.Operation(op), xlog.Err(err), xlog.Duration(elapsed)}
	if key != "" {
		attrs = append(attrs, xlog.Key(key))
	}
	switch {
	case errors.Is(err, ErrPanic):
		// 已在 recover 处带堆栈记录
	case isBreakerRejection(err):
		c.logger.Debug(ctx, "kv operation skipped by breaker", attrs...)
	case errors.Is(err, context.Canceled):
		c.logger.Debug(ctx, "kv operation canceled", attrs...)
	default:
		c.logger.Warn(ctx, "kv operation failed", attrs...)
	}
}

func isRemote(kind Kind) bool {
	return kind == KindREST || kind == KindRedis
}
