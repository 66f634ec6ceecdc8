// Package xctx 提供请求级上下文字段的存取。
//
// 字段分两组：
//
// 操作者信息（Actor）- 标识发起请求的账号：
//   - user_id  : 当前登录用户
//   - owner_id : 当前操作所属的房东（业主）账号
//
// 追踪信息（Trace）- 分布式追踪：
//   - trace_id    : 追踪标识（W3C，128-bit）
//   - span_id     : 跨度标识（W3C，64-bit）
//   - request_id  : 请求标识
//   - trace_flags : 采样标志（可选）
//
// # 命名约定
//
//	WithXxx(ctx, value)    - 注入
//	Xxx(ctx)               - 读取，缺失时返回空字符串
//	RequireXxx(ctx)        - 强制读取，缺失时返回错误
//	EnsureXxx(ctx)         - 缺失时自动生成
//
// xlog 的 EnrichHandler 通过 AppendTraceAttrs / AppendActorAttrs
// 把这些字段注入每一条日志。
package xctx
