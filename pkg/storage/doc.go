// Package storage 提供缓存与存储相关的子包。
//
// 子包列表：
//   - xkv: KV 后端适配层（HTTP REST、TCP Redis、本地内存、禁用），
//     fail-safe 客户端吞掉后端错误并返回安全默认值
//   - xcache: cache-aside 引擎，读超时降级、损坏条目自愈、singleflight 合并回源
//   - xinvalidate: 按命名空间和领域实体失效缓存，并触发展示层页面重新生成
//
// 依赖方向：xcache、xinvalidate 依赖 xkv；xkv 不依赖上层。
package storage
