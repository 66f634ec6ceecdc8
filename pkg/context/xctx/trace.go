package xctx

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"log/slog"
)

// =============================================================================
// ID 格式常量（W3C Trace Context）
// =============================================================================

const (
	// TraceIDSize 128-bit -> 32 hex chars
	TraceIDSize = 16

	// SpanIDSize 64-bit -> 16 hex chars
	SpanIDSize = 8
)

// Trace Key 常量
const (
	KeyTraceID    = "trace_id"
	KeySpanID     = "span_id"
	KeyRequestID  = "request_id"
	KeyTraceFlags = "trace_flags"

	traceFieldCount = 4
)

const (
	keyTraceID    = contextKey("xctx:trace_id")
	keySpanID     = contextKey("xctx:span_id")
	keyRequestID  = contextKey("xctx:request_id")
	keyTraceFlags = contextKey("xctx:trace_flags")
)

// WithTraceID 将 trace ID 注入 context
func WithTraceID(ctx context.Context, traceID string) (context.Context, error) {
	return withString(ctx, keyTraceID, traceID)
}

// TraceID 从 context 提取 trace ID，不存在返回空字符串
func TraceID(ctx context.Context) string {
	return stringValue(ctx, keyTraceID)
}

// RequireTraceID 从 context 获取 trace ID，缺失时返回 ErrMissingTraceID。
func RequireTraceID(ctx context.Context) (string, error) {
	return requireString(ctx, keyTraceID, ErrMissingTraceID)
}

// WithSpanID 将 span ID 注入 context
func WithSpanID(ctx context.Context, spanID string) (context.Context, error) {
	return withString(ctx, keySpanID, spanID)
}

// SpanID 从 context 提取 span ID
func SpanID(ctx context.Context) string {
	return stringValue(ctx, keySpanID)
}

// WithRequestID 将 request ID 注入 context
func WithRequestID(ctx context.Context, requestID string) (context.Context, error) {
	return withString(ctx, keyRequestID, requestID)
}

// RequestID 从 context 提取 request ID
func RequestID(ctx context.Context) string {
	return stringValue(ctx, keyRequestID)
}

// RequireRequestID 从 context 获取 request ID，缺失时返回 ErrMissingRequestID。
func RequireRequestID(ctx context.Context) (string, error) {
	return requireString(ctx, keyRequestID, ErrMissingRequestID)
}

// WithTraceFlags 将 W3C trace-flags（如 "01"）注入 context
func WithTraceFlags(ctx context.Context, flags string) (context.Context, error) {
	return withString(ctx, keyTraceFlags, flags)
}

// TraceFlags 从 context 提取 trace flags
func TraceFlags(ctx context.Context) string {
	return stringValue(ctx, keyTraceFlags)
}

// =============================================================================
// ID 生成
// =============================================================================

func randomHex(size int) string {
	buf := make([]byte, size)
	for {
		if _, err := rand.Read(buf); err != nil {
			panic("xctx: crypto/rand.Read failed: " + err.Error())
		}
		for _, b := range buf {
			if b != 0 {
				return hex.EncodeToString(buf)
			}
		}
	}
}

// GenerateTraceID 生成 32 位小写十六进制 TraceID（W3C 禁止全零）。
// 熵源不可用时 panic。
func GenerateTraceID() string {
	return randomHex(TraceIDSize)
}

// GenerateSpanID 生成 16 位小写十六进制 SpanID。
func GenerateSpanID() string {
	return randomHex(SpanIDSize)
}

// EnsureTrace 补全缺失的 trace_id、span_id、request_id，已存在的字段原样保留。
// 用于 CLI 命令或请求入口。trace_flags 由上游传播，不自动生成。
func EnsureTrace(ctx context.Context) (context.Context, error) {
	if ctx == nil {
		return nil, ErrNilContext
	}
	var err error
	if TraceID(ctx) == "" {
		if ctx, err = WithTraceID(ctx, GenerateTraceID()); err != nil {
			return nil, err
		}
	}
	if SpanID(ctx) == "" {
		if ctx, err = WithSpanID(ctx, GenerateSpanID()); err != nil {
			return nil, err
		}
	}
	if RequestID(ctx) == "" {
		if ctx, err = WithRequestID(ctx, GenerateTraceID()); err != nil {
			return nil, err
		}
	}
	return ctx, nil
}

// AppendTraceAttrs 将 context 中的追踪信息追加到 attrs，只追加非空字段。
func AppendTraceAttrs(attrs []slog.Attr, ctx context.Context) []slog.Attr {
	if ctx == nil {
		return attrs
	}
	if v := TraceID(ctx); v != "" {
		attrs = append(attrs, slog.String(KeyTraceID, v))
	}
	if v := SpanID(ctx); v != "" {
		attrs = append(attrs, slog.String(KeySpanID, v))
	}
	if v := RequestID(ctx); v != "" {
		attrs = append(attrs, slog.String(KeyRequestID, v))
	}
	if v := TraceFlags(ctx); v != "" {
		attrs = append(attrs, slog.String(KeyTraceFlags, v))
	}
	return attrs
}

// LogAttrs 返回 context 中全部追踪和操作者字段，都为空时返回 nil。
func LogAttrs(ctx context.Context) []slog.Attr {
	if ctx == nil {
		return nil
	}
	attrs := make([]slog.Attr, 0, traceFieldCount+actorFieldCount)
	attrs = AppendTraceAttrs(attrs, ctx)
	attrs = AppendActorAttrs(attrs, ctx)
	if len(attrs) == 0 {
		return nil
	}
	return attrs
}
