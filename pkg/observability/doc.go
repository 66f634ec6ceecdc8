// Package observability 提供可观测性相关的子包。
//
// 子包列表：
//   - xlog: 结构化日志，基于 log/slog 扩展，自动注入 xctx 字段
//   - xmetrics: 统一的 Observer/Span 接口，OpenTelemetry 实现与 noop 实现
//
// 存储与锁组件都只依赖这两个接口，默认 noop，由调用方注入真实实现。
package observability
