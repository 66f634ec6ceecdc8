package xdlock

import (
	"bytes"
	"context"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/omeyang/rentkit/pkg/observability/xlog"
	"github.com/omeyang/rentkit/pkg/storage/xkv"
)

func newTestRedis(t *testing.T) (*redis.Client, *miniredis.Miniredis) {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err)
	rdb := redis.NewClient(&redis.Options{
		Addr:         mr.Addr(),
		DialTimeout:  200 * time.Millisecond,
		ReadTimeout:  200 * time.Millisecond,
		WriteTimeout: 200 * time.Millisecond,
		PoolSize:     8,
		MaxRetries:   1,
	})
	t.Cleanup(func() {
		_ = rdb.Close()
		mr.Close()
	})
	return rdb, mr
}

// newTestManager 以 miniredis 为后端创建锁管理器
func newTestManager(t *testing.T, opts ...Option) (*Manager, *miniredis.Miniredis, *syncBuffer) {
	t.Helper()
	rdb, mr := newTestRedis(t)
	store, err := xkv.NewRedisStore(rdb)
	require.NoError(t, err)

	logger, logs := newTestLogger(t)
	client := xkv.NewClient(store, xkv.WithLogger(logger), xkv.WithoutBreaker())
	t.Cleanup(func() { _ = client.Close() })

	opts = append([]Option{WithLogger(logger)}, opts...)
	m, err := New(client, opts...)
	require.NoError(t, err)
	return m, mr, logs
}

// fakeLocker 只实现 Locker 接口的进程内锁，用于验证 WithLock 的通用路径
type fakeLocker struct {
	mu       sync.Mutex
	held     map[string]bool
	releases int
}

func (f *fakeLocker) Acquire(_ context.Context, key string, _ ...AcquireOption) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.held == nil {
		f.held = map[string]bool{}
	}
	if f.held[key] {
		return false
	}
	f.held[key] = true
	return true
}

func (f *fakeLocker) Release(_ context.Context, key string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.held, key)
	f.releases++
}

func (f *fakeLocker) IsLocked(_ context.Context, key string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.held[key]
}

type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func newTestLogger(t *testing.T) (xlog.Logger, *syncBuffer) {
	t.Helper()
	buf := &syncBuffer{}
	logger, cleanup, err := xlog.New().SetOutput(buf).SetFormat("json").SetLevel(xlog.LevelDebug).Build()
	require.NoError(t, err)
	t.Cleanup(func() { _ = cleanup() })
	return logger, buf
}
