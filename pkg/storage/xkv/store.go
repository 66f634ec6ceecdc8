package xkv

import (
	"context"
	"time"
)

// Kind 后端类型
type Kind string

const (
	KindREST     Kind = "rest"
	KindRedis    Kind = "redis"
	KindLocal    Kind = "local"
	KindDisabled Kind = "disabled"
)

// String 实现 fmt.Stringer
func (k Kind) String() string { return string(k) }

// Store 键值驱动接口
//
// ttl <= 0 表示不过期。SetIfAbsent 必须是原子的"不存在才写入"。
type Store interface {
	// Get 读取 key，不存在时返回 (nil, false, nil)
	Get(ctx context.Context, key string) ([]byte, bool, error)

	// Set 写入 key，覆盖已有值
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error

	// Delete 删除一个或多个 key，一次往返完成，不存在的 key 被忽略
	Delete(ctx context.Context, keys ...string) error

	// Exists 判断 key 是否存在
	Exists(ctx context.Context, key string) (bool, error)

	// SetIfAbsent 仅当 key 不存在时写入，返回是否写入成功
	SetIfAbsent(ctx context.Context, key string, value []byte, ttl time.Duration) (bool, error)

	// CompareAndDelete 仅当当前值等于 value 时删除，返回是否删除
	CompareAndDelete(ctx context.Context, key string, value []byte) (bool, error)

	// Ping 探测后端可用性
	Ping(ctx context.Context) error

	// Kind 返回后端类型
	Kind() Kind

	// Close 释放资源。由外部传入的客户端不会被关闭。
	Close() error
}

// Scanner 可选能力：按模式枚举 key。只有 TCP Redis 后端实现。
type Scanner interface {
	// Scan 以 SCAN 游标遍历匹配 pattern 的 key，每批调用一次 fn
	Scan(ctx context.Context, pattern string, fn func(keys []string) error) error
}
