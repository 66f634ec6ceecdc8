// Package context 提供上下文相关的子包。
//
// 子包列表：
//   - xctx: 在 context.Context 中携带租户、操作者与追踪标识，供日志和指标提取
//
// 所有请求级信息通过 context.Context 传递，不使用全局变量。
package context
