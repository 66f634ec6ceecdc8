package xcache

import (
	"bytes"
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/omeyang/rentkit/pkg/observability/xlog"
	"github.com/omeyang/rentkit/pkg/observability/xmetrics"
	"github.com/omeyang/rentkit/pkg/storage/xkv"
)

var errBackendDown = errors.New("backend down")

// newTestEngine 创建以 miniredis 为后端的引擎
func newTestEngine(t *testing.T, opts ...EngineOption) (*Engine, *miniredis.Miniredis) {
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

	logger, _ := newTestLogger(t)
	client := xkv.NewClient(store, xkv.WithLogger(logger), xkv.WithoutBreaker())

	opts = append([]EngineOption{WithLogger(logger)}, opts...)
	e, err := New(client, opts...)
	require.NoError(t, err)

	t.Cleanup(func() {
		e.Wait()
		_ = client.Close()
		_ = rdb.Close()
		mr.Close()
	})
	return e, mr
}

// newBackendEngine 创建以测试替身为后端的引擎
func newBackendEngine(t *testing.T, b Backend, opts ...EngineOption) *Engine {
	t.Helper()
	e, err := New(b, opts...)
	require.NoError(t, err)
	t.Cleanup(e.Wait)
	return e
}

// countingProducer 返回固定值并统计调用次数
func countingProducer[T any](v T, calls *atomic.Int32) Producer[T] {
	return func(context.Context) (T, error) {
		calls.Add(1)
		return v, nil
	}
}

// =============================================================================
// 后端替身
// =============================================================================

// memBackend 基于 map 的后端，可注入写入错误
type memBackend struct {
	mu      sync.Mutex
	data    map[string][]byte
	ttls    map[string]time.Duration
	sets    int
	deletes []string
	setErr  error
}

func newMemBackend() *memBackend {
	return &memBackend{data: map[string][]byte{}, ttls: map[string]time.Duration{}}
}

func (b *memBackend) Get(_ context.Context, key string) ([]byte, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	v, ok := b.data[key]
	return v, ok
}

func (b *memBackend) SetE(_ context.Context, key string, value []byte, ttl time.Duration) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.sets++
	if b.setErr != nil {
		return b.setErr
	}
	b.data[key] = value
	b.ttls[key] = ttl
	return nil
}

func (b *memBackend) Delete(_ context.Context, keys ...string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, k := range keys {
		delete(b.data, k)
		b.deletes = append(b.deletes, k)
	}
}

func (b *memBackend) put(key string, value []byte) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.data[key] = value
}

func (b *memBackend) value(key string) ([]byte, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	v, ok := b.data[key]
	return v, ok
}

func (b *memBackend) setCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.sets
}

// slowBackend Get 一直阻塞到 ctx 结束
type slowBackend struct{ memBackend }

func (b *slowBackend) Get(ctx context.Context, _ string) ([]byte, bool) {
	<-ctx.Done()
	return nil, false
}

// panicBackend Get 直接 panic
type panicBackend struct{ memBackend }

func (b *panicBackend) Get(context.Context, string) ([]byte, bool) {
	panic("backend exploded")
}

// =============================================================================
// 日志与观测
// =============================================================================

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

type recordingObserver struct {
	mu       sync.Mutex
	outcomes []string
}

func (o *recordingObserver) Start(ctx context.Context, _ xmetrics.SpanOptions) (context.Context, xmetrics.Span) {
	return ctx, recordingSpan{o}
}

func (o *recordingObserver) last() string {
	o.mu.Lock()
	defer o.mu.Unlock()
	if len(o.outcomes) == 0 {
		return ""
	}
	return o.outcomes[len(o.outcomes)-1]
}

type recordingSpan struct{ o *recordingObserver }

func (s recordingSpan) End(r xmetrics.Result) {
	s.o.mu.Lock()
	s.o.outcomes = append(s.o.outcomes, r.Outcome)
	s.o.mu.Unlock()
}
