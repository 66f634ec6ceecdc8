package xconf

import (
	"fmt"
	"strings"
	"time"
)

// 运行环境
const (
	EnvProduction  = "production"
	EnvDevelopment = "development"
)

// DefaultEnvBindings 平台约定的环境变量绑定
var DefaultEnvBindings = map[string]string{
	"KV_REST_API_URL":    "kv.rest.url",
	"KV_REST_API_TOKEN":  "kv.rest.token",
	"REDIS_URL":          "kv.redis.url",
	"APP_ENV":            "app.env",
	"RENTKIT_LOG_LEVEL":  "log.level",
	"RENTKIT_LOG_FORMAT": "log.format",
	"RENTKIT_LOG_FILE":   "log.file",
}

// Settings rentkit 的完整配置
type Settings struct {
	App   AppSettings   `koanf:"app"`
	KV    KVSettings    `koanf:"kv"`
	Cache CacheSettings `koanf:"cache"`
	Lock  LockSettings  `koanf:"lock"`
	Log   LogSettings   `koanf:"log"`
}

// AppSettings 应用级配置
type AppSettings struct {
	// Env 为 production 时禁用本地存储
	Env string `koanf:"env"`
}

// IsProduction 是否生产环境
func (a AppSettings) IsProduction() bool {
	return strings.EqualFold(strings.TrimSpace(a.Env), EnvProduction)
}

// KVSettings 后端连接配置
type KVSettings struct {
	REST  RESTSettings  `koanf:"rest"`
	Redis RedisSettings `koanf:"redis"`

	// BreakerFailures 连续失败多少次后熔断，0 使用默认值
	BreakerFailures uint32 `koanf:"breaker_failures"`
	// BreakerCooldown 熔断后多久进入半开探测
	BreakerCooldown time.Duration `koanf:"breaker_cooldown"`
}

// RESTEnabled 地址和凭证齐全时选用 REST 后端
func (k KVSettings) RESTEnabled() bool {
	return strings.TrimSpace(k.REST.URL) != "" && strings.TrimSpace(k.REST.Token) != ""
}

// RESTSettings HTTP 远程存储
type RESTSettings struct {
	URL     string        `koanf:"url"`
	Token   string        `koanf:"token"`
	Timeout time.Duration `koanf:"timeout"`
}

// RedisSettings TCP 远程存储
type RedisSettings struct {
	URL string `koanf:"url"`
}

// CacheSettings 缓存引擎配置
type CacheSettings struct {
	// ReadTimeout 读取超时，0 时按环境取默认值
	ReadTimeout time.Duration `koanf:"read_timeout"`
	// WriteTimeout 后台写入超时
	WriteTimeout time.Duration `koanf:"write_timeout"`
	// TTL 默认缓存时长
	TTL time.Duration `koanf:"ttl"`
	// Codec json / msgpack / cbor
	Codec string `koanf:"codec"`
}

// LockSettings 分布式锁默认参数
type LockSettings struct {
	Expire     time.Duration `koanf:"expire"`
	Retries    int           `koanf:"retries"`
	RetryDelay time.Duration `koanf:"retry_delay"`
	// OwnedRelease 释放锁时校验持有者令牌
	OwnedRelease bool `koanf:"owned_release"`
}

// LogSettings 日志配置
type LogSettings struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
	// File 非空时输出到轮转文件
	File string `koanf:"file"`
}

// DefaultSettings 返回默认配置
func DefaultSettings() Settings {
	return Settings{
		App: AppSettings{Env: EnvDevelopment},
		KV: KVSettings{
			REST:            RESTSettings{Timeout: 2 * time.Second},
			BreakerFailures: 5,
			BreakerCooldown: 30 * time.Second,
		},
		Cache: CacheSettings{
			WriteTimeout: 5 * time.Second,
			TTL:          time.Hour,
			Codec:        "json",
		},
		Lock: LockSettings{
			Expire:     10 * time.Second,
			Retries:    3,
			RetryDelay: 100 * time.Millisecond,
		},
		Log: LogSettings{Level: "info", Format: "text"},
	}
}

// Validate 校验配置取值
func (s Settings) Validate() error {
	if s.Lock.Expire <= 0 {
		return fmt.Errorf("%w: lock.expire must be positive", ErrInvalidSettings)
	}
	if s.Lock.Retries < 0 {
		return fmt.Errorf("%w: lock.retries must not be negative", ErrInvalidSettings)
	}
	if s.Lock.RetryDelay < 0 {
		return fmt.Errorf("%w: lock.retry_delay must not be negative", ErrInvalidSettings)
	}
	if s.Cache.TTL < 0 || s.Cache.ReadTimeout < 0 || s.Cache.WriteTimeout < 0 {
		return fmt.Errorf("%w: cache durations must not be negative", ErrInvalidSettings)
	}
	switch codec := strings.ToLower(s.Cache.Codec); codec {
	case "", "json":
	case "msgpack", "cbor":
		// REST 后端以 JSON 字符串传值，二进制编码的缓存值写不进去
		if s.KV.RESTEnabled() {
			return fmt.Errorf("%w: cache.codec %q requires a redis backend, rest backend only stores utf-8 values",
				ErrInvalidSettings, codec)
		}
	default:
		return fmt.Errorf("%w: unknown cache.codec %q", ErrInvalidSettings, s.Cache.Codec)
	}
	return nil
}

// LoadSettings 读取配置文件（可为空）并叠加 DefaultEnvBindings
//
// path 为空时只使用默认值和环境变量。
func LoadSettings(path string) (Settings, Config, error) {
	var (
		cfg Config
		err error
	)
	if path == "" {
		cfg, err = NewFromBytes(nil, FormatYAML, WithEnv(DefaultEnvBindings))
	} else {
		cfg, err = New(path, WithEnv(DefaultEnvBindings))
	}
	if err != nil {
		return Settings{}, nil, err
	}
	s, err := Decode(cfg)
	if err != nil {
		return Settings{}, nil, err
	}
	return s, cfg, nil
}

// Decode 在默认值之上解码 cfg 并校验
func Decode(cfg Config) (Settings, error) {
	s := DefaultSettings()
	if err := cfg.Unmarshal("", &s); err != nil {
		return Settings{}, err
	}
	if err := s.Validate(); err != nil {
		return Settings{}, err
	}
	return s, nil
}
