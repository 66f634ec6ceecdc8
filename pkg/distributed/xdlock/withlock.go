package xdlock

import (
	"context"
	"fmt"

	"github.com/omeyang/rentkit/pkg/observability/xlog"
)

// Handler 临界区逻辑
type Handler[T any] func(ctx context.Context) (T, error)

// Result WithLock 的结果。
//   - 未获取到锁: Success=false, Err=ErrInProgress，handler 未执行
//   - handler 返回错误或 panic: Success=false, Err 为该错误
//   - 成功: Success=true, Data 为 handler 返回值
type Result[T any] struct {
	Success bool
	Data    T
	Err     error
}

// WithLock 在持有锁期间执行 handler，无论结果如何都会释放锁。
// 释放使用脱离 ctx 取消链的独立上下文，handler 超时不会让锁残留到 TTL 到期。
func WithLock[T any](ctx context.Context, locker Locker, key string, handler Handler[T], opts ...AcquireOption) (res Result[T]) {
	if locker == nil {
		return Result[T]{Err: ErrNilLocker}
	}
	if handler == nil {
		return Result[T]{Err: ErrNilHandler}
	}
	if err := validateKey(key); err != nil {
		return Result[T]{Err: err}
	}
	if ctx == nil {
		ctx = context.Background()
	}

	release, ok := acquire(ctx, locker, key, opts)
	if !ok {
		return Result[T]{Err: ErrInProgress}
	}

	defer func() {
		relCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), releaseTimeout)
		defer cancel()
		release(relCtx)
	}()
	defer func() {
		if r := recover(); r != nil {
			loggerOf(locker).Stack(ctx, "lock handler panicked", xlog.Key(key), xlog.Panic(r))
			res = Result[T]{Err: fmt.Errorf("%w: %v", ErrHandlerPanic, r)}
		}
	}()

	data, err := handler(ctx)
	if err != nil {
		return Result[T]{Data: data, Err: err}
	}
	return Result[T]{Success: true, Data: data}
}

func acquire(ctx context.Context, locker Locker, key string, opts []AcquireOption) (func(context.Context), bool) {
	if l, ok := locker.(leaser); ok {
		return l.acquireForLock(ctx, key, opts)
	}
	if !locker.Acquire(ctx, key, opts...) {
		return nil, false
	}
	return func(ctx context.Context) { locker.Release(ctx, key) }, true
}

// loggerOf 优先使用 Locker 自带的日志记录器
func loggerOf(locker Locker) xlog.Logger {
	if l, ok := locker.(interface{ lockLogger() xlog.Logger }); ok {
		return l.lockLogger()
	}
	return xlog.Default().With(xlog.Component(componentName))
}
