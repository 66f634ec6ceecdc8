package xdlock

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"github.com/go-redsync/redsync/v4"
	rsredis "github.com/go-redsync/redsync/v4/redis"
	"github.com/go-redsync/redsync/v4/redis/goredis/v9"
	"github.com/redis/go-redis/v9"

	"github.com/omeyang/rentkit/pkg/observability/xlog"
	"github.com/omeyang/rentkit/pkg/observability/xmetrics"
	"github.com/omeyang/rentkit/pkg/storage/xkv"
)

// =============================================================================
// Redlock
// =============================================================================

// Redlock 基于多个独立 Redis 节点的仲裁锁（过半节点写入成功才算获取）。
// key 前缀与 Manager 相同。Release 只释放本进程持有的 mutex，
// 未在本进程持有时按 key 在所有节点上无条件删除。
type Redlock struct {
	clients []redis.UniversalClient
	rs      *redsync.Redsync
	opts    *options
	logger  xlog.Logger

	mu   sync.Mutex
	held map[string]*redsync.Mutex
}

var _ Locker = (*Redlock)(nil)

// NewRedlock 创建 Redlock。单节点退化为普通 Redis 锁。
func NewRedlock(clients []redis.UniversalClient, opts ...Option) (*Redlock, error) {
	if len(clients) == 0 {
		return nil, ErrNilClient
	}
	for i, client := range clients {
		if client == nil {
			return nil, errors.Join(ErrNilClient, errors.New("client at index "+strconv.Itoa(i)+" is nil"))
		}
	}

	pools := make([]rsredis.Pool, len(clients))
	for i, client := range clients {
		pools[i] = goredis.NewPool(client)
	}

	o := defaultOptions()
	for _, opt := range opts {
		if opt != nil {
			opt(o)
		}
	}
	return &Redlock{
		clients: clients,
		rs:      redsync.New(pools...),
		opts:    o,
		logger:  xlog.OrDefault(o.logger).With(xlog.Component(componentName), xlog.Backend("redlock")),
		held:    make(map[string]*redsync.Mutex),
	}, nil
}

// Acquire 实现 Locker
func (r *Redlock) Acquire(ctx context.Context, key string, opts ...AcquireOption) bool {
	mutex, ok := r.lock(ctx, key, opts)
	if !ok {
		return false
	}
	r.mu.Lock()
	r.pruneExpiredLocked(time.Now())
	r.held[key] = mutex
	r.mu.Unlock()
	return true
}

// pruneExpiredLocked 丢弃已过期但从未 Release 的 mutex，调用方持有 r.mu
func (r *Redlock) pruneExpiredLocked(now time.Time) {
	for key, mutex := range r.held {
		if !now.Before(mutex.Until()) {
			delete(r.held, key)
		}
	}
}

// Release 实现 Locker
func (r *Redlock) Release(ctx context.Context, key string) {
	if validateKey(key) != nil {
		return
	}
	r.mu.Lock()
	mutex, ok := r.held[key]
	delete(r.held, key)
	r.mu.Unlock()

	if ok {
		r.unlock(ctx, key, mutex)
		return
	}
	for _, c := range r.clients {
		if err := c.Del(ctx, xkv.LockKey(key)).Err(); err != nil {
			r.logger.Warn(ctx, "redlock release failed", xlog.Key(key), xlog.Err(err))
		}
	}
}

// IsLocked 过半节点上存在锁 key 时返回 true
func (r *Redlock) IsLocked(ctx context.Context, key string) bool {
	if validateKey(key) != nil {
		return false
	}
	present := 0
	for _, c := range r.clients {
		n, err := c.Exists(ctx, xkv.LockKey(key)).Result()
		if err == nil && n > 0 {
			present++
		}
	}
	return present >= len(r.clients)/2+1
}

// Redsync 返回底层 redsync 实例，用于续期等高级场景
func (r *Redlock) Redsync() *redsync.Redsync { return r.rs }

func (r *Redlock) acquireForLock(ctx context.Context, key string, opts []AcquireOption) (func(context.Context), bool) {
	mutex, ok := r.lock(ctx, key, opts)
	if !ok {
		return nil, false
	}
	return func(ctx context.Context) { r.unlock(ctx, key, mutex) }, true
}

func (r *Redlock) lockLogger() xlog.Logger { return r.logger }

func (r *Redlock) lock(ctx context.Context, key string, opts []AcquireOption) (*redsync.Mutex, bool) {
	if err := validateKey(key); err != nil {
		r.logger.Warn(ctx, "lock acquire rejected", xlog.Err(err))
		return nil, false
	}
	o := r.opts.defaults.apply(opts)
	if o.expire <= 0 {
		r.logger.Warn(ctx, "lock acquire rejected", xlog.Key(key), xlog.Err(ErrInvalidExpire))
		return nil, false
	}

	ctx, span := xmetrics.Start(ctx, r.opts.observer, xmetrics.SpanOptions{
		Component: componentName,
		Operation: "acquire",
		Kind:      xmetrics.KindClient,
		Attrs: []xmetrics.Attr{
			xmetrics.Int("retries", o.retries),
			xmetrics.Int("nodes", len(r.clients)),
		},
	})

	mutex := r.rs.NewMutex(xkv.LockKey(key),
		redsync.WithExpiry(o.expire),
		redsync.WithTries(o.retries+1),
		redsync.WithRetryDelay(o.retryDelay),
		redsync.WithGenValueFunc(func() (string, error) { return newToken(), nil }),
	)
	if err := mutex.LockContext(ctx); err != nil {
		err = wrapRedsyncError(err)
		if errors.Is(err, errLockBusy) || ctx.Err() != nil {
			span.End(xmetrics.Result{Status: xmetrics.StatusOK, Outcome: "busy"})
			r.logger.Debug(ctx, "lock not acquired", xlog.Key(key))
		} else {
			span.End(xmetrics.Result{Err: err, Outcome: "error"})
			r.logger.Warn(ctx, "redlock acquire failed", xlog.Key(key), xlog.Err(err))
		}
		return nil, false
	}

	span.End(xmetrics.Result{Outcome: "acquired"})
	r.logger.Debug(ctx, "lock acquired", xlog.Key(key), slog.String("token", mutex.Value()))
	return mutex, true
}

func (r *Redlock) unlock(ctx context.Context, key string, mutex *redsync.Mutex) {
	ok, err := mutex.UnlockContext(ctx)
	if err != nil || !ok {
		r.logger.Warn(ctx, "redlock release skipped: lock no longer owned",
			xlog.Key(key), xlog.Err(wrapRedsyncError(err)))
		return
	}
	r.logger.Debug(ctx, "lock released", xlog.Key(key))
}

// wrapRedsyncError 把 redsync 的“已被占用”类错误归一为 errLockBusy，保留原始错误链
func wrapRedsyncError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	var errTaken *redsync.ErrTaken
	if errors.As(err, &errTaken) || errors.Is(err, redsync.ErrFailed) {
		return fmt.Errorf("%w: %w", errLockBusy, err)
	}
	return err
}
