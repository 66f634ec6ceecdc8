package xconf

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// =============================================================================
// 测试数据
// =============================================================================

const testYAMLContent = `
app:
  env: production
kv:
  redis:
    url: redis://localhost:6379/0
cache:
  ttl: 30m
  codec: msgpack
lock:
  retries: 5
`

const testJSONContent = `{"kv": {"rest": {"url": "https://kv.example.com", "token": "t0k"}}}`

func createTempFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

// clearEnv 清除所有绑定的环境变量，避免宿主环境干扰
func clearEnv(t *testing.T) {
	t.Helper()
	for name := range DefaultEnvBindings {
		t.Setenv(name, "")
	}
}

// =============================================================================
// New / NewFromBytes 测试
// =============================================================================

func TestNew_YAML(t *testing.T) {
	path := createTempFile(t, "config.yaml", testYAMLContent)

	cfg, err := New(path)
	require.NoError(t, err)
	assert.Equal(t, path, cfg.Path())
	assert.Equal(t, FormatYAML, cfg.Format())
	assert.Equal(t, "production", cfg.Client().String("app.env"))
}

func TestNew_Errors(t *testing.T) {
	_, err := New("")
	assert.ErrorIs(t, err, ErrEmptyPath)

	_, err = New("config.toml")
	assert.ErrorIs(t, err, ErrUnsupportedFormat)

	_, err = New(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.ErrorIs(t, err, ErrLoadFailed)

	bad := createTempFile(t, "bad.json", "{not json")
	_, err = New(bad)
	assert.ErrorIs(t, err, ErrParseFailed)
}

func TestNewFromBytes_JSON(t *testing.T) {
	cfg, err := NewFromBytes([]byte(testJSONContent), FormatJSON)
	require.NoError(t, err)
	assert.Equal(t, "t0k", cfg.Client().String("kv.rest.token"))
	assert.Empty(t, cfg.Path())
	assert.ErrorIs(t, cfg.Reload(), ErrReloadUnsupported)

	_, err = NewFromBytes(nil, Format("toml"))
	assert.ErrorIs(t, err, ErrUnsupportedFormat)
}

func TestReload_PicksUpChanges(t *testing.T) {
	path := createTempFile(t, "config.yaml", "app:\n  env: development\n")
	cfg, err := New(path)
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(path, []byte("app:\n  env: production\n"), 0o600))
	require.NoError(t, cfg.Reload())
	assert.Equal(t, "production", cfg.Client().String("app.env"))
}

// =============================================================================
// 环境变量叠加测试
// =============================================================================

func TestEnv_OverridesFile(t *testing.T) {
	clearEnv(t)
	t.Setenv("REDIS_URL", "redis://env-host:6380/1")
	t.Setenv("UNRELATED_VAR", "ignored")
	path := createTempFile(t, "config.yaml", testYAMLContent)

	cfg, err := New(path, WithEnv(DefaultEnvBindings))
	require.NoError(t, err)

	assert.Equal(t, "redis://env-host:6380/1", cfg.Client().String("kv.redis.url"))
	assert.Equal(t, "production", cfg.Client().String("app.env"))
	assert.False(t, cfg.Client().Exists("UNRELATED_VAR"))
}

func TestEnv_EmptyValueIgnored(t *testing.T) {
	clearEnv(t)
	path := createTempFile(t, "config.yaml", testYAMLContent)

	cfg, err := New(path, WithEnv(DefaultEnvBindings))
	require.NoError(t, err)
	assert.Equal(t, "redis://localhost:6379/0", cfg.Client().String("kv.redis.url"))
}

// =============================================================================
// Settings 测试
// =============================================================================

func TestLoadSettings_DefaultsOnly(t *testing.T) {
	clearEnv(t)

	s, cfg, err := LoadSettings("")
	require.NoError(t, err)
	require.NotNil(t, cfg)

	assert.Equal(t, DefaultSettings(), s)
	assert.False(t, s.App.IsProduction())
	assert.Equal(t, 10*time.Second, s.Lock.Expire)
	assert.Equal(t, 3, s.Lock.Retries)
	assert.Equal(t, 100*time.Millisecond, s.Lock.RetryDelay)
}

func TestLoadSettings_FileAndEnv(t *testing.T) {
	clearEnv(t)
	t.Setenv("REDIS_URL", "redis://cache.internal:6379/1")
	t.Setenv("KV_REST_API_URL", "https://kv.example.com")
	t.Setenv("RENTKIT_LOG_LEVEL", "debug")
	path := createTempFile(t, "config.yaml", testYAMLContent)

	s, _, err := LoadSettings(path)
	require.NoError(t, err)

	assert.True(t, s.App.IsProduction())
	assert.Equal(t, "https://kv.example.com", s.KV.REST.URL)
	assert.False(t, s.KV.RESTEnabled()) // 缺少凭证
	assert.Equal(t, "redis://cache.internal:6379/1", s.KV.Redis.URL)
	assert.Equal(t, 30*time.Minute, s.Cache.TTL)
	assert.Equal(t, "msgpack", s.Cache.Codec)
	assert.Equal(t, 5, s.Lock.Retries)
	assert.Equal(t, 100*time.Millisecond, s.Lock.RetryDelay) // 未覆盖的保留默认值
	assert.Equal(t, "debug", s.Log.Level)
}

func TestLoadSettings_BinaryCodecOverREST(t *testing.T) {
	// Given: 文件选择 msgpack，环境变量配置了完整的 REST 后端
	clearEnv(t)
	t.Setenv("KV_REST_API_URL", "https://kv.example.com")
	t.Setenv("KV_REST_API_TOKEN", "secret")
	path := createTempFile(t, "config.yaml", testYAMLContent)

	// When: 加载
	_, _, err := LoadSettings(path)

	// Then: 启动即失败，而不是运行时每次写缓存都出错
	require.ErrorIs(t, err, ErrInvalidSettings)
	assert.Contains(t, err.Error(), "msgpack")
}

func TestSettings_Validate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Settings)
	}{
		{"zero expire", func(s *Settings) { s.Lock.Expire = 0 }},
		{"negative retries", func(s *Settings) { s.Lock.Retries = -1 }},
		{"negative delay", func(s *Settings) { s.Lock.RetryDelay = -time.Millisecond }},
		{"negative ttl", func(s *Settings) { s.Cache.TTL = -time.Second }},
		{"unknown codec", func(s *Settings) { s.Cache.Codec = "gob" }},
		{"cbor over rest", func(s *Settings) {
			s.Cache.Codec = "cbor"
			s.KV.REST = RESTSettings{URL: "https://kv.example.com", Token: "t"}
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := DefaultSettings()
			tt.mutate(&s)
			assert.ErrorIs(t, s.Validate(), ErrInvalidSettings)
		})
	}
	assert.NoError(t, DefaultSettings().Validate())

	// REST 地址缺少凭证时不会选中 REST，二进制编码仍然可用
	s := DefaultSettings()
	s.Cache.Codec = "msgpack"
	s.KV.REST.URL = "https://kv.example.com"
	assert.NoError(t, s.Validate())
}

// =============================================================================
// Watch 测试
// =============================================================================

func TestWatch_ReloadsOnWrite(t *testing.T) {
	path := createTempFile(t, "config.yaml", "log:\n  level: info\n")
	cfg, err := New(path)
	require.NoError(t, err)

	reloaded := make(chan string, 4)
	w, err := Watch(cfg, func(c Config, err error) {
		if err == nil {
			reloaded <- c.Client().String("log.level")
		}
	}, 20*time.Millisecond)
	require.NoError(t, err)
	t.Cleanup(func() { _ = w.Stop() })

	require.NoError(t, os.WriteFile(path, []byte("log:\n  level: debug\n"), 0o600))

	select {
	case level := <-reloaded:
		assert.Equal(t, "debug", level)
	case <-time.After(3 * time.Second):
		t.Fatal("config was not reloaded")
	}

	require.NoError(t, w.Stop())
	require.NoError(t, w.Stop())
}

func TestWatch_RejectsBytesConfig(t *testing.T) {
	cfg, err := NewFromBytes(nil, FormatYAML)
	require.NoError(t, err)
	_, err = Watch(cfg, nil, 0)
	assert.Error(t, err)
}
