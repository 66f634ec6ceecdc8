package xkv

import (
	"context"
	"strings"
	"time"

	"github.com/omeyang/rentkit/pkg/config/xconf"
	"github.com/omeyang/rentkit/pkg/observability/xlog"
)

// Config 后端选择所需的配置
type Config struct {
	RESTURL     string
	RESTToken   string
	RESTTimeout time.Duration
	RedisURL    string
	Production  bool

	BreakerFailures uint32
	BreakerCooldown time.Duration
}

// ConfigFromSettings 从 xconf.Settings 提取后端配置
func ConfigFromSettings(s xconf.Settings) Config {
	return Config{
		RESTURL:         s.KV.REST.URL,
		RESTToken:       s.KV.REST.Token,
		RESTTimeout:     s.KV.REST.Timeout,
		RedisURL:        s.KV.Redis.URL,
		Production:      s.App.IsProduction(),
		BreakerFailures: s.KV.BreakerFailures,
		BreakerCooldown: s.KV.BreakerCooldown,
	}
}

// Select 按优先级决定后端类型，不做任何连接。
func Select(cfg Config) Kind {
	switch {
	case strings.TrimSpace(cfg.RESTURL) != "" && strings.TrimSpace(cfg.RESTToken) != "":
		return KindREST
	case strings.TrimSpace(cfg.RedisURL) != "":
		return KindRedis
	case !cfg.Production:
		return KindLocal
	default:
		return KindDisabled
	}
}

// Open 选择并构造后端，返回可直接使用的 Client。
//
// 构造失败（如连接串无法解析）时记录错误并退化为禁用后端，
// 进程仍可正常启动，只是没有缓存。选择结果以 Info 级别记录一次。
func Open(ctx context.Context, cfg Config, opts ...ClientOption) *Client {
	o := defaultClientOptions()
	for _, opt := range opts {
		opt(o)
	}
	logger := xlog.OrDefault(o.logger).With(xlog.Component(componentName))

	kind := Select(cfg)
	store, err := openStore(kind, cfg)
	if err != nil {
		logger.Error(ctx, "kv backend construction failed, caching disabled",
			xlog.Backend(kind.String()), xlog.Err(err))
		store = NewDisabledStore()
	}
	logger.Info(ctx, "kv backend selected", xlog.Backend(store.Kind().String()))

	if o.breaker && (cfg.BreakerFailures > 0 || cfg.BreakerCooldown > 0) {
		opts = append(opts[:len(opts):len(opts)], WithBreaker(cfg.BreakerFailures, cfg.BreakerCooldown))
	}
	return NewClient(store, opts...)
}

func openStore(kind Kind, cfg Config) (Store, error) {
	switch kind {
	case KindREST:
		return NewRESTStore(cfg.RESTURL, cfg.RESTToken, WithRESTTimeout(cfg.RESTTimeout))
	case KindRedis:
		return OpenRedis(cfg.RedisURL)
	case KindLocal:
		return NewLocalStore()
	default:
		return NewDisabledStore(), nil
	}
}
