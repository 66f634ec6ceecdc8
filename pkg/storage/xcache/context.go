package xcache

import (
	"context"
	"time"
)

// detachedCtx 脱离原始取消链的 context。
// 保留原始 context 的 Value（trace、租户信息），但不继承 Done/Err/Deadline。
// 用于后台写入和 singleflight 共享调用，调用方返回或取消后仍能完成。
type detachedCtx struct {
	context.Context
}

func (c detachedCtx) Deadline() (time.Time, bool) { return time.Time{}, false }
func (c detachedCtx) Done() <-chan struct{}       { return nil }
func (c detachedCtx) Err() error                  { return nil }

func contextDetached(ctx context.Context) context.Context {
	if ctx == nil {
		return context.Background()
	}
	return detachedCtx{Context: ctx}
}

// contextWithIndependentTimeout 脱离原始取消链并设置独立超时。
//   - timeout == 0: 不设超时
//   - timeout < 0: 使用 DefaultProduceTimeout
func contextWithIndependentTimeout(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	detached := contextDetached(ctx)
	if timeout == 0 {
		return context.WithCancel(detached)
	}
	if timeout < 0 {
		timeout = DefaultProduceTimeout
	}
	return context.WithTimeout(detached, timeout)
}
