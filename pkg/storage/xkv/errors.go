package xkv

import "errors"

// 预定义错误。这些错误只出现在 Store 层，Client 不会向调用方返回它们。
var (
	// ErrNilClient redis 客户端为空
	ErrNilClient = errors.New("xkv: nil client")

	// ErrClosed Store 已关闭
	ErrClosed = errors.New("xkv: store is closed")

	// ErrEmptyURL 远程地址为空
	ErrEmptyURL = errors.New("xkv: empty url")

	// ErrEmptyToken REST 凭证为空
	ErrEmptyToken = errors.New("xkv: empty rest token")

	// ErrNonUTF8Value REST 协议以 JSON 字符串传输值，无法携带非 UTF-8 字节
	ErrNonUTF8Value = errors.New("xkv: rest backend cannot store non utf-8 values")

	// ErrUnexpectedReply 后端返回了无法识别的结果类型
	ErrUnexpectedReply = errors.New("xkv: unexpected reply")

	// ErrPanic 驱动调用发生 panic（已恢复）
	ErrPanic = errors.New("xkv: store panicked")
)
