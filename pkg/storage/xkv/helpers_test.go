package xkv

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/omeyang/rentkit/pkg/observability/xlog"
)

const testToken = "test-token"

// newTestRedisClient 启动 miniredis 并返回连接它的 go-redis 客户端
func newTestRedisClient(t *testing.T) (*redis.Client, *miniredis.Miniredis) {
	t.Helper()

	mr, err := miniredis.Run()
	require.NoError(t, err)

	client := redis.NewClient(&redis.Options{
		Addr:         mr.Addr(),
		DialTimeout:  100 * time.Millisecond,
		ReadTimeout:  100 * time.Millisecond,
		WriteTimeout: 100 * time.Millisecond,
		PoolSize:     2,
		MaxRetries:   1,
	})

	t.Cleanup(func() {
		_ = client.Close()
		mr.Close()
	})
	return client, mr
}

func newTestRedisStore(t *testing.T) (Store, *miniredis.Miniredis) {
	t.Helper()
	client, mr := newTestRedisClient(t)
	store, err := NewRedisStore(client)
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store, mr
}

// newTestRESTServer 启动一个 REST 协议服务端，命令转发给 miniredis 执行
func newTestRESTServer(t *testing.T) (*httptest.Server, *miniredis.Miniredis) {
	t.Helper()
	client, mr := newTestRedisClient(t)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if r.Header.Get("Authorization") != "Bearer "+testToken {
			w.WriteHeader(http.StatusUnauthorized)
			_ = json.NewEncoder(w).Encode(map[string]string{"error": "Unauthorized"})
			return
		}

		var cmd []string
		if err := json.NewDecoder(r.Body).Decode(&cmd); err != nil || len(cmd) == 0 {
			w.WriteHeader(http.StatusBadRequest)
			_ = json.NewEncoder(w).Encode(map[string]string{"error": "ERR malformed command"})
			return
		}
		args := make([]any, len(cmd))
		for i, a := range cmd {
			args[i] = a
		}

		result, err := client.Do(r.Context(), args...).Result()
		if err != nil && !errors.Is(err, redis.Nil) {
			w.WriteHeader(http.StatusBadRequest)
			_ = json.NewEncoder(w).Encode(map[string]string{"error": err.Error()})
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"result": result})
	}))
	t.Cleanup(srv.Close)
	return srv, mr
}

func newTestRESTStore(t *testing.T) (Store, *miniredis.Miniredis) {
	t.Helper()
	srv, mr := newTestRESTServer(t)
	store, err := NewRESTStore(srv.URL, testToken, WithHTTPClient(srv.Client()))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store, mr
}

func newTestLocalStore(t *testing.T) Store {
	t.Helper()
	store, err := NewLocalStore(WithLocalMaxCost(1 << 20))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

// syncBuffer 并发安全的日志缓冲
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
