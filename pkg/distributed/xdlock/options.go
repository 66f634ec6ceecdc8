package xdlock

import (
	"strings"
	"time"

	"github.com/omeyang/rentkit/pkg/config/xconf"
	"github.com/omeyang/rentkit/pkg/observability/xlog"
	"github.com/omeyang/rentkit/pkg/observability/xmetrics"
)

// =============================================================================
// 默认值
// =============================================================================

const (
	// DefaultExpire 锁的默认过期时间
	DefaultExpire = 10 * time.Second

	// DefaultRetries 首次失败后的默认重试次数
	DefaultRetries = 3

	// DefaultRetryDelay 默认重试间隔（固定间隔）
	DefaultRetryDelay = 100 * time.Millisecond

	// releaseTimeout WithLock 释放锁的独立超时
	releaseTimeout = 5 * time.Second
)

// validateKey 验证锁 key 是否有效。
func validateKey(key string) error {
	if strings.TrimSpace(key) == "" {
		return ErrEmptyKey
	}
	return nil
}

// =============================================================================
// 单次获取选项
// =============================================================================

// AcquireOption 配置一次获取
type AcquireOption func(*acquireOptions)

type acquireOptions struct {
	expire     time.Duration
	retries    int
	retryDelay time.Duration
}

// WithExpire 设置锁的过期时间，必须为正
func WithExpire(d time.Duration) AcquireOption {
	return func(o *acquireOptions) {
		o.expire = d
	}
}

// WithRetries 设置首次失败后的重试次数，负数视为 0。
// 最坏等待时间为 retries × retryDelay。
func WithRetries(n int) AcquireOption {
	return func(o *acquireOptions) {
		o.retries = max(n, 0)
	}
}

// WithRetryDelay 设置重试间隔，负数视为 0
func WithRetryDelay(d time.Duration) AcquireOption {
	return func(o *acquireOptions) {
		o.retryDelay = max(d, 0)
	}
}

func (o acquireOptions) apply(opts []AcquireOption) acquireOptions {
	for _, opt := range opts {
		if opt != nil {
			opt(&o)
		}
	}
	return o
}

// =============================================================================
// Manager / Redlock 选项
// =============================================================================

// Option 配置 Manager 或 Redlock
type Option func(*options)

type options struct {
	defaults     acquireOptions
	ownedRelease bool
	logger       xlog.Logger
	observer     xmetrics.Observer
}

func defaultOptions() *options {
	return &options{
		defaults: acquireOptions{
			expire:     DefaultExpire,
			retries:    DefaultRetries,
			retryDelay: DefaultRetryDelay,
		},
		observer: xmetrics.NoopObserver{},
	}
}

// WithDefaults 覆盖未显式指定时使用的获取参数
func WithDefaults(opts ...AcquireOption) Option {
	return func(o *options) {
		o.defaults = o.defaults.apply(opts)
	}
}

// WithOwnedRelease 让 WithLock 通过租约释放（compare-and-delete），
// 只删除本次获取写入的 token。默认 false：按 key 无条件删除。
func WithOwnedRelease(enabled bool) Option {
	return func(o *options) {
		o.ownedRelease = enabled
	}
}

// WithLogger 设置日志记录器
func WithLogger(l xlog.Logger) Option {
	return func(o *options) {
		o.logger = l
	}
}

// WithObserver 设置观测器
func WithObserver(obs xmetrics.Observer) Option {
	return func(o *options) {
		if obs != nil {
			o.observer = obs
		}
	}
}

// OptionsFromSettings 把配置文件中的 lock 段转换为选项。
// 非正的 expire 和 retryDelay 保持默认；retries 为 0 表示不重试。
func OptionsFromSettings(s xconf.Settings) []Option {
	acq := []AcquireOption{WithRetries(s.Lock.Retries)}
	if s.Lock.Expire > 0 {
		acq = append(acq, WithExpire(s.Lock.Expire))
	}
	if s.Lock.RetryDelay > 0 {
		acq = append(acq, WithRetryDelay(s.Lock.RetryDelay))
	}
	return []Option{WithDefaults(acq...), WithOwnedRelease(s.Lock.OwnedRelease)}
}
