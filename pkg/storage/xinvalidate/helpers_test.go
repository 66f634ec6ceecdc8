package xinvalidate

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

type testEnv struct {
	mr     *miniredis.Miniredis
	rdb    *redis.Client
	client *xkv.Client
	logs   *syncBuffer
}

// newTestEnv 以 miniredis 为后端创建 KV 客户端
func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	mr, err := miniredis.Run()
	require.NoError(t, err)
	rdb := redis.NewClient(&redis.Options{
		Addr:         mr.Addr(),
		DialTimeout:  200 * time.Millisecond,
		ReadTimeout:  200 * time.Millisecond,
		WriteTimeout: 200 * time.Millisecond,
		PoolSize:     4,
		MaxRetries:   1,
	})
	store, err := xkv.NewRedisStore(rdb)
	require.NoError(t, err)

	logger, logs := newTestLogger(t)
	client := xkv.NewClient(store, xkv.WithLogger(logger), xkv.WithoutBreaker())

	t.Cleanup(func() {
		_ = client.Close()
		_ = rdb.Close()
		mr.Close()
	})
	return &testEnv{mr: mr, rdb: rdb, client: client, logs: logs}
}

func (env *testEnv) newManager(t *testing.T, opts ...Option) *Manager {
	t.Helper()
	logger, _ := newTestLogger(t)
	opts = append([]Option{WithLogger(logger)}, opts...)
	m, err := New(env.client, opts...)
	require.NoError(t, err)
	return m
}

// seed 预置缓存条目
func (env *testEnv) seed(t *testing.T, keys ...string) {
	t.Helper()
	for _, k := range keys {
		require.NoError(t, env.mr.Set(k, "v"))
	}
}

// recordingRevalidator 记录收到的页面路径
type recordingRevalidator struct {
	mu    sync.Mutex
	paths []string
	err   error
}

func (r *recordingRevalidator) Revalidate(_ context.Context, paths ...string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.paths = append(r.paths, paths...)
	return r.err
}

func (r *recordingRevalidator) got() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.paths...)
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
