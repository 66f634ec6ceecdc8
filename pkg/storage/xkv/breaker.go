package xkv

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/sony/gobreaker/v2"

	"github.com/omeyang/rentkit/pkg/observability/xlog"
)

// 熔断默认值
const (
	DefaultBreakerFailures = 5
	DefaultBreakerCooldown = 30 * time.Second
)

// newBreaker 连续失败 failures 次后打开，cooldown 后进入半开放行一个探测请求。
//
// 调用方自己取消的请求和发出请求前就被拒绝的调用不计为后端失败。
func newBreaker(name string, failures uint32, cooldown time.Duration, logger xlog.Logger) *gobreaker.CircuitBreaker[any] {
	if failures == 0 {
		failures = DefaultBreakerFailures
	}
	if cooldown <= 0 {
		cooldown = DefaultBreakerCooldown
	}
	return gobreaker.NewCircuitBreaker[any](gobreaker.Settings{
		Name:        name,
		MaxRequests: 1,
		Timeout:     cooldown,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= failures
		},
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, context.Canceled) || isRejectedLocally(err)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			xlog.OrDefault(logger).Warn(context.Background(), "kv breaker state changed",
				xlog.Backend(name),
				slog.String("from", from.String()),
				slog.String("to", to.String()),
			)
		},
	})
}

// isRejectedLocally Store 在发出请求前拒绝了调用，后端本身是健康的
func isRejectedLocally(err error) bool {
	return errors.Is(err, ErrNonUTF8Value)
}

// isBreakerRejection 熔断器拒绝执行（未触达后端）
func isBreakerRejection(err error) bool {
	return errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests)
}
