package xcache

import "errors"

var (
	// ErrNilEngine 表示传入的 Engine 为 nil。
	ErrNilEngine = errors.New("xcache: nil engine")

	// ErrNilClient 表示构造 Engine 时 KV 客户端为 nil。
	ErrNilClient = errors.New("xcache: nil kv client")

	// ErrEmptyKey 表示传入的 key 为空字符串。
	// 空 key 几乎总是调用错误，在入口处 fail-fast。
	ErrEmptyKey = errors.New("xcache: empty key")

	// ErrNilProducer 表示 producer 函数为 nil。
	ErrNilProducer = errors.New("xcache: nil producer")

	// ErrUnknownCodec 表示编解码器名称无法识别。
	ErrUnknownCodec = errors.New("xcache: unknown codec")

	// ErrCodecNotSupported 表示编解码器产生的字节无法存入所选后端（二进制编码配 REST 后端）。
	ErrCodecNotSupported = errors.New("xcache: codec not supported by kv backend")

	// ErrEncode 表示缓存值编码失败，只会出现在日志和 OnCacheSetError 回调中。
	ErrEncode = errors.New("xcache: encode failed")

	// ErrProducerPanic 表示 producer 在 singleflight 中发生了 panic。
	// singleflight DoChan 会在新 goroutine 中 re-panic 导致进程崩溃，
	// 因此在共享调用内部 recover 并转换为此错误。
	ErrProducerPanic = errors.New("xcache: producer panicked")
)
