package xkv

import (
	"testing"

	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m,
		// go-redis 内部 goroutine：连接池 tryDial 和 maintnotifications cleanupLoop
		goleak.IgnoreTopFunction("github.com/redis/go-redis/v9/internal/pool.(*ConnPool).tryDial"),
		goleak.IgnoreTopFunction("github.com/redis/go-redis/v9/maintnotifications.(*CircuitBreakerManager).cleanupLoop"),
		goleak.IgnoreTopFunction("time.Sleep"),
		// httptest 服务端关闭后空闲连接的读循环可能稍晚退出
		goleak.IgnoreTopFunction("internal/poll.runtime_pollWait"),
	)
}
