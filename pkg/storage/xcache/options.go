package xcache

import (
	"context"
	"time"

	"github.com/omeyang/rentkit/pkg/config/xconf"
	"github.com/omeyang/rentkit/pkg/observability/xlog"
	"github.com/omeyang/rentkit/pkg/observability/xmetrics"
	"github.com/omeyang/rentkit/pkg/storage/xkv"
)

// =============================================================================
// 默认值
// =============================================================================

const (
	// DefaultTTL 默认缓存时长
	DefaultTTL = time.Hour

	// DefaultReadTimeoutProduction 生产环境读取超时
	DefaultReadTimeoutProduction = 300 * time.Millisecond

	// DefaultReadTimeoutDevelopment 开发环境读取超时
	DefaultReadTimeoutDevelopment = 2 * time.Second

	// DefaultWriteTimeout 后台写入的独立超时
	DefaultWriteTimeout = 5 * time.Second

	// DefaultProduceTimeout singleflight 共享调用中 producer 的独立超时，
	// 防止首个调用者取消后 goroutine 永久阻塞
	DefaultProduceTimeout = 30 * time.Second
)

// =============================================================================
// Hooks
// =============================================================================

// Hooks 高信号事件回调。在请求路径或后台 goroutine 上同步执行，应保持轻量。
type Hooks struct {
	// OnCacheSetError 后台写入或编码失败
	OnCacheSetError func(ctx context.Context, key string, err error)

	// OnSelfHeal 解码失败的条目被删除
	OnSelfHeal func(ctx context.Context, key string, err error)
}

// =============================================================================
// Engine 选项
// =============================================================================

// EngineOption 配置 Engine
type EngineOption func(*engineOptions)

type engineOptions struct {
	codec          Codec
	readTimeout    time.Duration
	writeTimeout   time.Duration
	produceTimeout time.Duration
	defaultTTL     time.Duration
	production     bool
	singleflight   bool
	logger         xlog.Logger
	observer       xmetrics.Observer
	hooks          Hooks
}

func defaultEngineOptions() *engineOptions {
	return &engineOptions{
		codec:          JSONCodec{},
		writeTimeout:   DefaultWriteTimeout,
		produceTimeout: DefaultProduceTimeout,
		defaultTTL:     DefaultTTL,
		singleflight:   true,
		observer:       xmetrics.NoopObserver{},
	}
}

// WithCodec 设置编解码器，默认 JSON
func WithCodec(c Codec) EngineOption {
	return func(o *engineOptions) {
		if c != nil {
			o.codec = c
		}
	}
}

// WithProduction 按生产环境选择默认读取超时
func WithProduction(production bool) EngineOption {
	return func(o *engineOptions) {
		o.production = production
	}
}

// WithReadTimeout 覆盖读取超时，非正值使用环境默认值
func WithReadTimeout(d time.Duration) EngineOption {
	return func(o *engineOptions) {
		o.readTimeout = d
	}
}

// WithWriteTimeout 设置后台写入超时，非正值忽略
func WithWriteTimeout(d time.Duration) EngineOption {
	return func(o *engineOptions) {
		if d > 0 {
			o.writeTimeout = d
		}
	}
}

// WithProduceTimeout 设置 singleflight 共享调用的 producer 超时。
//   - d > 0: 使用指定超时
//   - d == 0: 禁用超时（仍脱离调用方取消链）
//   - d < 0: 使用 DefaultProduceTimeout
func WithProduceTimeout(d time.Duration) EngineOption {
	return func(o *engineOptions) {
		o.produceTimeout = d
	}
}

// WithDefaultTTL 设置调用未指定 TTL 时的默认值
func WithDefaultTTL(d time.Duration) EngineOption {
	return func(o *engineOptions) {
		if d > 0 {
			o.defaultTTL = d
		}
	}
}

// WithSingleflight 开关进程内并发去重，默认开启
func WithSingleflight(enabled bool) EngineOption {
	return func(o *engineOptions) {
		o.singleflight = enabled
	}
}

// WithLogger 设置日志记录器
func WithLogger(l xlog.Logger) EngineOption {
	return func(o *engineOptions) {
		o.logger = l
	}
}

// WithObserver 设置观测器
func WithObserver(obs xmetrics.Observer) EngineOption {
	return func(o *engineOptions) {
		if obs != nil {
			o.observer = obs
		}
	}
}

// WithHooks 设置事件回调
func WithHooks(h Hooks) EngineOption {
	return func(o *engineOptions) {
		o.hooks = h
	}
}

// OptionsFromSettings 把配置中的 cache 段和运行环境转换为引擎选项。
// 编解码器名称无法识别时返回 ErrUnknownCodec。
func OptionsFromSettings(s xconf.Settings) ([]EngineOption, error) {
	codec, err := CodecByName(s.Cache.Codec)
	if err != nil {
		return nil, err
	}
	return []EngineOption{
		WithCodec(codec),
		WithProduction(s.App.IsProduction()),
		WithReadTimeout(s.Cache.ReadTimeout),
		WithWriteTimeout(s.Cache.WriteTimeout),
		WithDefaultTTL(s.Cache.TTL),
	}, nil
}

func (o *engineOptions) resolvedReadTimeout() time.Duration {
	if o.readTimeout > 0 {
		return o.readTimeout
	}
	if o.production {
		return DefaultReadTimeoutProduction
	}
	return DefaultReadTimeoutDevelopment
}

// =============================================================================
// 单次调用选项
// =============================================================================

// Option 配置单次 GetOrCompute 调用
type Option func(*callOptions)

type callOptions struct {
	ttl       time.Duration
	namespace string
	bypass    bool
	debug     bool
}

// WithTTL 设置本次写入的缓存时长，非正值使用引擎默认值
func WithTTL(ttl time.Duration) Option {
	return func(o *callOptions) {
		o.ttl = ttl
	}
}

// WithNamespace 设置命名空间，默认 xkv.DefaultNamespace
func WithNamespace(ns string) Option {
	return func(o *callOptions) {
		o.namespace = ns
	}
}

// WithBypassCache 跳过缓存直接调用 producer，用于诊断
func WithBypassCache() Option {
	return func(o *callOptions) {
		o.bypass = true
	}
}

// WithDebug 以 Info 级别输出本次调用的每个决策点
func WithDebug() Option {
	return func(o *callOptions) {
		o.debug = true
	}
}

func applyCallOptions(defaultTTL time.Duration, opts []Option) callOptions {
	co := callOptions{namespace: xkv.DefaultNamespace}
	for _, opt := range opts {
		if opt != nil {
			opt(&co)
		}
	}
	if co.ttl <= 0 {
		co.ttl = defaultTTL
	}
	return co
}
