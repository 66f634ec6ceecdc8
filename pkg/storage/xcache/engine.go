package xcache

import (
	"context"
	"fmt"
	"log/slog"
	"reflect"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/omeyang/rentkit/pkg/observability/xlog"
	"github.com/omeyang/rentkit/pkg/observability/xmetrics"
	"github.com/omeyang/rentkit/pkg/storage/xkv"
)

const componentName = "xcache"

// 观测结果标签
const (
	outcomeHit      = "hit"
	outcomeMiss     = "miss"
	outcomeTimeout  = "timeout"
	outcomeCorrupt  = "corrupt"
	outcomeBypass   = "bypass"
	outcomeFallback = "fallback"
)

// Producer 计算权威值，通常是一次数据库查询。
// 可能被调用零次、一次或多次，必须幂等且不依赖缓存状态。
type Producer[T any] func(ctx context.Context) (T, error)

// Backend Engine 依赖的 KV 能力，*xkv.Client 满足该接口。
// 实现不得向调用方返回后端错误（SetE 除外，它只用于上报写入失败）。
type Backend interface {
	Get(ctx context.Context, key string) ([]byte, bool)
	SetE(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, keys ...string)
}

var _ Backend = (*xkv.Client)(nil)

// Engine Cache-Aside 引擎，进程内共享一个实例。
type Engine struct {
	backend     Backend
	opts        *engineOptions
	readTimeout time.Duration
	logger      xlog.Logger
	group       singleflight.Group
	pending     sync.WaitGroup
}

// New 创建引擎
func New(backend Backend, opts ...EngineOption) (*Engine, error) {
	if backend == nil {
		return nil, ErrNilClient
	}
	if c, ok := backend.(*xkv.Client); ok && c == nil {
		return nil, ErrNilClient
	}
	o := defaultEngineOptions()
	for _, opt := range opts {
		if opt != nil {
			opt(o)
		}
	}
	if c, ok := backend.(*xkv.Client); ok && c.Kind() == xkv.KindREST && o.codec.Name() != CodecJSON {
		return nil, fmt.Errorf("%w: %s over %s", ErrCodecNotSupported, o.codec.Name(), xkv.KindREST)
	}
	return &Engine{
		backend:     backend,
		opts:        o,
		readTimeout: o.resolvedReadTimeout(),
		logger:      xlog.OrDefault(o.logger).With(xlog.Component(componentName)),
	}, nil
}

// ReadTimeout 返回生效的读取超时
func (e *Engine) ReadTimeout() time.Duration { return e.readTimeout }

// Codec 返回编解码器
func (e *Engine) Codec() Codec { return e.opts.codec }

// Wait 阻塞直到所有后台读写 goroutine 结束。
// 必须在不再有新的 GetOrCompute 调用之后使用（测试断言、优雅退出）。
func (e *Engine) Wait() { e.pending.Wait() }

// GetOrCompute 读穿缓存：命中返回缓存值，否则调用 producer 并在后台写回。
//
// 只有参数错误和 producer 自身的错误会返回给调用方，
// 缓存层的任何故障都降级为直接调用 producer。
func GetOrCompute[T any](ctx context.Context, e *Engine, key string, producer Producer[T], opts ...Option) (T, error) {
	var zero T
	if e == nil {
		return zero, ErrNilEngine
	}
	if key == "" {
		return zero, ErrEmptyKey
	}
	if producer == nil {
		return zero, ErrNilProducer
	}
	if ctx == nil {
		ctx = context.Background()
	}

	co := applyCallOptions(e.opts.defaultTTL, opts)
	fullKey := xkv.JoinKey(co.namespace, key)

	ctx, span := xmetrics.Start(ctx, e.opts.observer, xmetrics.SpanOptions{
		Component: componentName,
		Operation: "get_or_compute",
		Kind:      xmetrics.KindInternal,
		Attrs:     []xmetrics.Attr{xmetrics.String("namespace", co.namespace)},
	})
	value, outcome, err := getOrCompute(ctx, e, fullKey, producer, co)
	span.End(xmetrics.Result{Err: err, Outcome: outcome})
	e.trace(ctx, co, "cache resolved", fullKey, slog.String("outcome", outcome))
	return value, err
}

func getOrCompute[T any](ctx context.Context, e *Engine, fullKey string, producer Producer[T], co callOptions) (T, string, error) {
	if co.bypass {
		v, err := producer(ctx)
		return v, outcomeBypass, err
	}

	cached, result := lookup[T](ctx, e, fullKey)
	switch result {
	case lookupHit:
		return cached, outcomeHit, nil
	case lookupPanicked:
		// 缓存层自身异常：不再信任它，直接回源且不写回
		v, err := producer(ctx)
		return v, outcomeFallback, err
	}

	outcome := outcomeMiss
	switch result {
	case lookupTimedOut:
		outcome = outcomeTimeout
	case lookupCorrupt:
		outcome = outcomeCorrupt
	}
	e.trace(ctx, co, "cache miss, calling producer", fullKey, slog.String("reason", outcome))

	v, err := produce(ctx, e, fullKey, producer, co.ttl)
	return v, outcome, err
}

// =============================================================================
// 查询阶段
// =============================================================================

type lookupResult int

const (
	lookupMiss lookupResult = iota
	lookupHit
	lookupTimedOut
	lookupCorrupt
	lookupPanicked
)

func lookup[T any](ctx context.Context, e *Engine, fullKey string) (value T, result lookupResult) {
	defer func() {
		if r := recover(); r != nil {
			e.logger.Stack(ctx, "cache lookup panicked, calling producer directly",
				xlog.Key(fullKey), xlog.Panic(r))
			var zero T
			value, result = zero, lookupPanicked
		}
	}()

	data, found, timedOut := e.read(ctx, fullKey)
	if timedOut {
		e.logger.Debug(ctx, "cache read timed out", xlog.Key(fullKey), xlog.Duration(e.readTimeout))
		return value, lookupTimedOut
	}
	if !found {
		return value, lookupMiss
	}
	if err := e.opts.codec.Unmarshal(data, &value); err != nil {
		e.selfHeal(ctx, fullKey, err)
		var zero T
		return zero, lookupCorrupt
	}
	return value, lookupHit
}

// read 让后端读取与 readTimeout 赛跑，超时按未命中处理。
// 后端 goroutine 的 panic 会转交给调用 goroutine，由 lookup 恢复。
func (e *Engine) read(ctx context.Context, fullKey string) (data []byte, found, timedOut bool) {
	readCtx, cancel := context.WithTimeout(ctx, e.readTimeout)
	defer cancel()

	type reply struct {
		data     []byte
		found    bool
		panicked any
	}
	ch := make(chan reply, 1)

	e.pending.Add(1)
	go func() {
		defer e.pending.Done()
		defer func() {
			if r := recover(); r != nil {
				ch <- reply{panicked: r}
			}
		}()
		v, ok := e.backend.Get(readCtx, fullKey)
		ch <- reply{data: v, found: ok}
	}()

	select {
	case r := <-ch:
		if r.panicked != nil {
			panic(r.panicked)
		}
		return r.data, r.found, false
	case <-readCtx.Done():
		return nil, false, true
	}
}

// selfHeal 删除无法解码的条目，随后按未命中处理。
// 删除同步执行，保证随后的回写不会被它覆盖。
func (e *Engine) selfHeal(ctx context.Context, fullKey string, cause error) {
	e.logger.Warn(ctx, "cache entry undecodable, deleting", xlog.Key(fullKey), xlog.Err(cause))

	delCtx, cancel := contextWithIndependentTimeout(ctx, e.readTimeout)
	defer cancel()
	e.backend.Delete(delCtx, fullKey)

	if hook := e.opts.hooks.OnSelfHeal; hook != nil {
		hook(ctx, fullKey, cause)
	}
}

// =============================================================================
// 回源与回写
// =============================================================================

func produce[T any](ctx context.Context, e *Engine, fullKey string, producer Producer[T], ttl time.Duration) (T, error) {
	if !e.opts.singleflight {
		v, err := producer(ctx)
		if err != nil {
			return v, err
		}
		e.writeBehind(ctx, fullKey, v, ttl)
		return v, nil
	}

	// 共享调用使用首个调用者 ctx 的 Value，但脱离其取消链，
	// 避免首个调用者取消影响其他等待者
	ch := e.group.DoChan(fullKey, func() (val any, err error) {
		sfCtx, cancel := contextWithIndependentTimeout(ctx, e.opts.produceTimeout)
		defer cancel()
		defer func() {
			if r := recover(); r != nil {
				e.logger.Stack(ctx, "producer panicked", xlog.Key(fullKey), xlog.Panic(r))
				val, err = nil, fmt.Errorf("%w: %v", ErrProducerPanic, r)
			}
		}()

		v, err := producer(sfCtx)
		if err != nil {
			return nil, err
		}
		e.writeBehind(sfCtx, fullKey, v, ttl)
		return v, nil
	})

	var zero T
	select {
	case <-ctx.Done():
		// 本调用者放弃等待，共享调用继续供其他等待者使用
		return zero, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return zero, res.Err
		}
		if res.Val == nil {
			return zero, nil
		}
		v, ok := res.Val.(T)
		if !ok {
			// 同一 key 被不同类型的调用方共享，退回直接调用
			e.logger.Warn(ctx, "singleflight result type mismatch, calling producer directly",
				xlog.Key(fullKey), slog.String("type", fmt.Sprintf("%T", res.Val)))
			return producer(ctx)
		}
		return v, nil
	}
}

// writeBehind 编码后在后台写入，不等待结果。nil 值不缓存。
func (e *Engine) writeBehind(ctx context.Context, fullKey string, value any, ttl time.Duration) {
	if isNilValue(value) {
		e.logger.Debug(ctx, "nil value not cached", xlog.Key(fullKey))
		return
	}

	data, err := e.opts.codec.Marshal(value)
	if err != nil {
		err = fmt.Errorf("%w: %w", ErrEncode, err)
		e.logger.Warn(ctx, "cache encode failed", xlog.Key(fullKey), xlog.Err(err))
		e.onCacheSetError(ctx, fullKey, err)
		return
	}

	e.pending.Add(1)
	go func() {
		defer e.pending.Done()
		wctx, cancel := contextWithIndependentTimeout(ctx, e.opts.writeTimeout)
		defer cancel()
		defer func() {
			if r := recover(); r != nil {
				e.logger.Stack(wctx, "cache write panicked", xlog.Key(fullKey), xlog.Panic(r))
			}
		}()

		if err := e.backend.SetE(wctx, fullKey, data, ttl); err != nil {
			e.onCacheSetError(wctx, fullKey, err)
		}
	}()
}

func (e *Engine) onCacheSetError(ctx context.Context, key string, err error) {
	if hook := e.opts.hooks.OnCacheSetError; hook != nil {
		hook(ctx, key, err)
	}
}

// trace WithDebug 时以 Info 级别输出，否则为 Debug
func (e *Engine) trace(ctx context.Context, co callOptions, msg, fullKey string, attrs ...slog.Attr) {
	attrs = append(attrs, xlog.Key(fullKey))
	if co.debug {
		e.logger.Info(ctx, msg, attrs...)
		return
	}
	e.logger.Debug(ctx, msg, attrs...)
}

// isNilValue 判断结果是否为空（nil 指针、map、切片、接口、函数、通道）
func isNilValue(v any) bool {
	if v == nil {
		return true
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Pointer, reflect.Map, reflect.Slice, reflect.Interface, reflect.Func, reflect.Chan:
		return rv.IsNil()
	default:
		return false
	}
}
