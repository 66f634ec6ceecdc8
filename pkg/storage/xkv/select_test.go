package xkv

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/omeyang/rentkit/pkg/config/xconf"
)

func TestSelect_Priority(t *testing.T) {
	tests := []struct {
		name string
		cfg  Config
		want Kind
	}{
		{"rest wins over redis", Config{RESTURL: "https://kv", RESTToken: "t", RedisURL: "redis://x"}, KindREST},
		{"rest needs token", Config{RESTURL: "https://kv", RedisURL: "redis://x"}, KindRedis},
		{"rest needs url", Config{RESTToken: "t"}, KindLocal},
		{"redis", Config{RedisURL: "redis://x", Production: true}, KindRedis},
		{"development falls back to local", Config{}, KindLocal},
		{"production never uses local", Config{Production: true}, KindDisabled},
		{"blank values ignored", Config{RESTURL: "  ", RESTToken: "  ", RedisURL: " ", Production: true}, KindDisabled},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Select(tt.cfg))
		})
	}
}

func TestOpen_Redis(t *testing.T) {
	_, mr := newTestRedisClient(t)
	logger, logs := newTestLogger(t)

	c := Open(context.Background(), Config{RedisURL: "redis://" + mr.Addr()}, WithLogger(logger))
	t.Cleanup(func() { _ = c.Close() })

	assert.Equal(t, KindRedis, c.Kind())
	require.NoError(t, c.Ping(context.Background()))
	assert.Contains(t, logs.String(), "kv backend selected")
}

func TestOpen_ConstructionFailureDegrades(t *testing.T) {
	// Given: 无法解析的 Redis 连接串
	logger, logs := newTestLogger(t)

	// When
	c := Open(context.Background(), Config{RedisURL: "ftp://nope", Production: true}, WithLogger(logger))

	// Then: 退化为禁用后端而不是失败
	assert.Equal(t, KindDisabled, c.Kind())
	assert.Contains(t, logs.String(), "kv backend construction failed")
	c.Set(context.Background(), "k", []byte("v"), time.Second)
	_, ok := c.Get(context.Background(), "k")
	assert.False(t, ok)
}

func TestOpen_LocalInDevelopment(t *testing.T) {
	c := Open(context.Background(), Config{})
	t.Cleanup(func() { _ = c.Close() })
	assert.Equal(t, KindLocal, c.Kind())

	ctx := context.Background()
	assert.True(t, c.SetIfAbsent(ctx, "lock:app:k", []byte("t"), time.Second))
	assert.False(t, c.SetIfAbsent(ctx, "lock:app:k", []byte("t"), time.Second))
}

func TestOpen_REST(t *testing.T) {
	srv, _ := newTestRESTServer(t)
	c := Open(context.Background(), Config{RESTURL: srv.URL, RESTToken: testToken, RESTTimeout: time.Second})
	t.Cleanup(func() { _ = c.Close() })

	assert.Equal(t, KindREST, c.Kind())
	c.Set(context.Background(), "k", []byte("v"), time.Minute)
	v, ok := c.Get(context.Background(), "k")
	assert.True(t, ok)
	assert.Equal(t, "v", string(v))
}

func TestConfigFromSettings(t *testing.T) {
	s := xconf.DefaultSettings()
	s.App.Env = xconf.EnvProduction
	s.KV.REST.URL = "https://kv.example.com"
	s.KV.REST.Token = "tok"
	s.KV.Redis.URL = "redis://localhost:6379"

	cfg := ConfigFromSettings(s)
	assert.True(t, cfg.Production)
	assert.Equal(t, KindREST, Select(cfg))
	assert.Equal(t, s.KV.BreakerFailures, cfg.BreakerFailures)
	assert.Equal(t, s.KV.BreakerCooldown, cfg.BreakerCooldown)
}
