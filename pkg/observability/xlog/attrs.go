package xlog

import (
	"log/slog"
	"time"
)

// =============================================================================
// 常用属性 Key
// =============================================================================

const (
	KeyError     = "error"
	KeyStack     = "stack"
	KeyDuration  = "duration"
	KeyCount     = "count"
	KeyComponent = "component"
	KeyOperation = "operation"

	// KeyCacheKey 缓存或锁的完整 key
	KeyCacheKey = "key"
	// KeyNamespace 缓存命名空间
	KeyNamespace = "namespace"
	// KeyBackend KV 后端类型
	KeyBackend = "backend"
	// KeyPanic recover 得到的 panic 值
	KeyPanic = "panic"
)

// =============================================================================
// 属性构造函数
// =============================================================================

// Err 创建错误属性，err 为 nil 时返回空属性（会被 slog 忽略）
//
//	if err != nil {
//	    logger.Error(ctx, "cache set failed", xlog.Err(err))
//	}
func Err(err error) slog.Attr {
	if err == nil {
		return slog.Attr{}
	}
	return slog.String(KeyError, err.Error())
}

// Duration 创建耗时属性
func Duration(d time.Duration) slog.Attr {
	return slog.String(KeyDuration, d.String())
}

// Component 创建组件名属性
func Component(name string) slog.Attr {
	return slog.String(KeyComponent, name)
}

// Operation 创建操作名属性
func Operation(name string) slog.Attr {
	return slog.String(KeyOperation, name)
}

// Count 创建计数属性
func Count(n int64) slog.Attr {
	return slog.Int64(KeyCount, n)
}

// Key 创建缓存/锁 key 属性
func Key(key string) slog.Attr {
	return slog.String(KeyCacheKey, key)
}

// Namespace 创建命名空间属性
func Namespace(ns string) slog.Attr {
	return slog.String(KeyNamespace, ns)
}

// Backend 创建后端类型属性
func Backend(kind string) slog.Attr {
	return slog.String(KeyBackend, kind)
}

// Panic 创建 panic 值属性
func Panic(v any) slog.Attr {
	return slog.Any(KeyPanic, v)
}
