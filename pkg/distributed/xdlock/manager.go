package xdlock

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	retry "github.com/avast/retry-go/v5"
	"github.com/google/uuid"

	"github.com/omeyang/rentkit/pkg/observability/xlog"
	"github.com/omeyang/rentkit/pkg/observability/xmetrics"
	"github.com/omeyang/rentkit/pkg/storage/xkv"
)

const componentName = "xdlock"

// errLockBusy 单次尝试未获取到锁，驱动 retry-go 重试
var errLockBusy = errors.New("xdlock: lock busy")

// Locker 分布式锁的最小契约。
type Locker interface {
	// Acquire 获取锁，失败时按选项重试，重试耗尽或 ctx 结束时返回 false。
	Acquire(ctx context.Context, key string, opts ...AcquireOption) bool

	// Release 释放锁。
	Release(ctx context.Context, key string)

	// IsLocked 诊断用的存在性检查，结果可能在返回时已过时。
	IsLocked(ctx context.Context, key string) bool
}

// leaser 能返回与本次获取绑定的释放函数的 Locker，WithLock 优先使用
type leaser interface {
	acquireForLock(ctx context.Context, key string, opts []AcquireOption) (release func(context.Context), ok bool)
}

// =============================================================================
// Manager
// =============================================================================

// Manager 基于 xkv.Client 的锁管理器，可在多个 goroutine 间共享。
type Manager struct {
	client *xkv.Client
	opts   *options
	logger xlog.Logger
}

var _ Locker = (*Manager)(nil)

// New 创建锁管理器
func New(client *xkv.Client, opts ...Option) (*Manager, error) {
	if client == nil {
		return nil, ErrNilClient
	}
	o := defaultOptions()
	for _, opt := range opts {
		if opt != nil {
			opt(o)
		}
	}
	return &Manager{
		client: client,
		opts:   o,
		logger: xlog.OrDefault(o.logger).With(xlog.Component(componentName)),
	}, nil
}

// Acquire 实现 Locker
func (m *Manager) Acquire(ctx context.Context, key string, opts ...AcquireOption) bool {
	_, ok := m.AcquireLease(ctx, key, opts...)
	return ok
}

// Release 按 key 无条件删除锁，不校验持有者。
func (m *Manager) Release(ctx context.Context, key string) {
	if validateKey(key) != nil {
		return
	}
	m.client.Delete(ctx, xkv.LockKey(key))
	m.logger.Debug(ctx, "lock released", xlog.Key(key))
}

// IsLocked 实现 Locker
func (m *Manager) IsLocked(ctx context.Context, key string) bool {
	if validateKey(key) != nil {
		return false
	}
	return m.client.Exists(ctx, xkv.LockKey(key))
}

// AcquireLease 获取锁并返回携带 token 的租约。
// 首次尝试失败后以固定间隔重试 retries 次，ctx 结束时提前放弃。
func (m *Manager) AcquireLease(ctx context.Context, key string, opts ...AcquireOption) (*Lease, bool) {
	if err := validateKey(key); err != nil {
		m.logger.Warn(ctx, "lock acquire rejected", xlog.Err(err))
		return nil, false
	}
	o := m.opts.defaults.apply(opts)
	if o.expire <= 0 {
		m.logger.Warn(ctx, "lock acquire rejected", xlog.Key(key), xlog.Err(ErrInvalidExpire))
		return nil, false
	}

	ctx, span := xmetrics.Start(ctx, m.opts.observer, xmetrics.SpanOptions{
		Component: componentName,
		Operation: "acquire",
		Kind:      xmetrics.KindInternal,
		Attrs:     []xmetrics.Attr{xmetrics.Int("retries", o.retries)},
	})

	lockKey := xkv.LockKey(key)
	token := newToken()
	attempts := 0
	err := retry.New(
		retry.Context(ctx),
		retry.Attempts(uint(o.retries)+1),
		retry.Delay(o.retryDelay),
		retry.DelayType(retry.FixedDelay),
		retry.LastErrorOnly(true),
	).Do(func() error {
		attempts++
		if m.client.SetIfAbsent(ctx, lockKey, []byte(token), o.expire) {
			return nil
		}
		return errLockBusy
	})

	if err != nil {
		outcome := "busy"
		if ctx.Err() != nil {
			outcome = "canceled"
		}
		span.End(xmetrics.Result{Status: xmetrics.StatusOK, Outcome: outcome})
		m.logger.Debug(ctx, "lock not acquired", xlog.Key(key),
			slog.Int("attempts", attempts), slog.String("outcome", outcome))
		return nil, false
	}

	span.End(xmetrics.Result{Outcome: "acquired"})
	m.logger.Debug(ctx, "lock acquired", xlog.Key(key),
		slog.Int("attempts", attempts), xlog.Duration(o.expire))
	return &Lease{manager: m, key: key, token: token, acquiredAt: time.Now(), expire: o.expire}, true
}

func (m *Manager) acquireForLock(ctx context.Context, key string, opts []AcquireOption) (func(context.Context), bool) {
	lease, ok := m.AcquireLease(ctx, key, opts...)
	if !ok {
		return nil, false
	}
	if m.opts.ownedRelease {
		return func(ctx context.Context) { lease.Release(ctx) }, true
	}
	return func(ctx context.Context) { m.Release(ctx, key) }, true
}

func (m *Manager) lockLogger() xlog.Logger { return m.logger }

// newToken 生成 "<unix 毫秒>-<uuid>" 形式的锁值，仅用于诊断和租约释放
func newToken() string {
	return fmt.Sprintf("%d-%s", time.Now().UnixMilli(), uuid.NewString())
}

// =============================================================================
// Lease
// =============================================================================

// Lease 一次成功获取的凭证。
type Lease struct {
	manager    *Manager
	key        string
	token      string
	acquiredAt time.Time
	expire     time.Duration
}

// Key 返回业务 key（不含 "lock:" 前缀）
func (l *Lease) Key() string { return l.key }

// Token 返回写入后端的锁值
func (l *Lease) Token() string { return l.token }

// ExpiresAt 返回按本地时钟估算的过期时刻
func (l *Lease) ExpiresAt() time.Time { return l.acquiredAt.Add(l.expire) }

// Release 仅当后端中的值仍是本租约的 token 时删除锁。
// 返回 false 表示锁已过期或已被他人持有，此时不做任何修改。
func (l *Lease) Release(ctx context.Context) bool {
	if l == nil {
		return false
	}
	ok := l.manager.client.CompareAndDelete(ctx, xkv.LockKey(l.key), []byte(l.token))
	if !ok {
		l.manager.logger.Warn(ctx, "lease release skipped: lock no longer owned",
			xlog.Key(l.key), slog.Duration("held", time.Since(l.acquiredAt)))
		return false
	}
	l.manager.logger.Debug(ctx, "lease released", xlog.Key(l.key))
	return true
}
