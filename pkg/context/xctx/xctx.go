package xctx

import (
	"context"
	"errors"
)

// contextKey 包私有类型，避免与其他包的 context key 冲突。
type contextKey string

// =============================================================================
// 错误定义
// =============================================================================

var (
	// ErrNilContext 表示传入的 context 为 nil。
	ErrNilContext = errors.New("xctx: nil context")

	// ErrMissingUserID user_id 缺失
	ErrMissingUserID = errors.New("xctx: missing user_id")

	// ErrMissingOwnerID owner_id 缺失
	ErrMissingOwnerID = errors.New("xctx: missing owner_id")

	// ErrMissingTraceID trace_id 缺失
	ErrMissingTraceID = errors.New("xctx: missing trace_id")

	// ErrMissingRequestID request_id 缺失
	ErrMissingRequestID = errors.New("xctx: missing request_id")
)

// =============================================================================
// 内部辅助
// =============================================================================

func withString(ctx context.Context, key contextKey, value string) (context.Context, error) {
	if ctx == nil {
		return nil, ErrNilContext
	}
	return context.WithValue(ctx, key, value), nil
}

func stringValue(ctx context.Context, key contextKey) string {
	if ctx == nil {
		return ""
	}
	if v, ok := ctx.Value(key).(string); ok {
		return v
	}
	return ""
}

func requireString(ctx context.Context, key contextKey, missing error) (string, error) {
	if ctx == nil {
		return "", ErrNilContext
	}
	v := stringValue(ctx, key)
	if v == "" {
		return "", missing
	}
	return v, nil
}
