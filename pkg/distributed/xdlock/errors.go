package xdlock

import "errors"

// 预定义错误。
// 使用 errors.Is 进行错误匹配。
var (
	// ErrInProgress 锁被其他调用方持有，WithLock 未执行 handler。
	// 调用方通常应当视为"已在处理，不要重复"。
	ErrInProgress = errors.New("operation already in progress")

	// ErrHandlerPanic handler 发生 panic，已被 WithLock 恢复。
	ErrHandlerPanic = errors.New("xdlock: handler panicked")

	// ErrNilClient 客户端为空。
	ErrNilClient = errors.New("xdlock: client is nil")

	// ErrNilLocker Locker 为空。
	ErrNilLocker = errors.New("xdlock: locker is nil")

	// ErrNilHandler handler 为空。
	ErrNilHandler = errors.New("xdlock: handler is nil")

	// ErrEmptyKey 锁 key 为空。
	// key 为空字符串或仅含空白时返回此错误。
	ErrEmptyKey = errors.New("xdlock: key must not be empty")

	// ErrInvalidExpire 过期时间必须为正。
	ErrInvalidExpire = errors.New("xdlock: expire must be positive")
)
