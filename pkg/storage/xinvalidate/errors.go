package xinvalidate

import "errors"

var (
	// ErrNilClient 表示 KV 客户端为 nil。
	ErrNilClient = errors.New("xinvalidate: nil kv client")

	// ErrNilRedis 表示 Redis 客户端为 nil。
	ErrNilRedis = errors.New("xinvalidate: nil redis client")
)
