package xctx

import (
	"context"
	"log/slog"
)

// Actor Key 常量（日志字段名）
const (
	KeyUserID  = "user_id"
	KeyOwnerID = "owner_id"

	actorFieldCount = 2
)

const (
	keyUserID  = contextKey("xctx:user_id")
	keyOwnerID = contextKey("xctx:owner_id")
)

// WithUserID 将当前用户 ID 注入 context。
// ctx 为 nil 时返回 ErrNilContext。
func WithUserID(ctx context.Context, userID string) (context.Context, error) {
	return withString(ctx, keyUserID, userID)
}

// UserID 从 context 提取用户 ID，不存在返回空字符串
func UserID(ctx context.Context) string {
	return stringValue(ctx, keyUserID)
}

// RequireUserID 从 context 获取用户 ID，缺失时返回 ErrMissingUserID。
func RequireUserID(ctx context.Context) (string, error) {
	return requireString(ctx, keyUserID, ErrMissingUserID)
}

// WithOwnerID 将房东账号 ID 注入 context。
func WithOwnerID(ctx context.Context, ownerID string) (context.Context, error) {
	return withString(ctx, keyOwnerID, ownerID)
}

// OwnerID 从 context 提取房东账号 ID，不存在返回空字符串
func OwnerID(ctx context.Context) string {
	return stringValue(ctx, keyOwnerID)
}

// RequireOwnerID 从 context 获取房东账号 ID，缺失时返回 ErrMissingOwnerID。
func RequireOwnerID(ctx context.Context) (string, error) {
	return requireString(ctx, keyOwnerID, ErrMissingOwnerID)
}

// AppendActorAttrs 将 context 中的操作者信息追加到 attrs，只追加非空字段。
func AppendActorAttrs(attrs []slog.Attr, ctx context.Context) []slog.Attr {
	if ctx == nil {
		return attrs
	}
	if v := UserID(ctx); v != "" {
		attrs = append(attrs, slog.String(KeyUserID, v))
	}
	if v := OwnerID(ctx); v != "" {
		attrs = append(attrs, slog.String(KeyOwnerID, v))
	}
	return attrs
}
