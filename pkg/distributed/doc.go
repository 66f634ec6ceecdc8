// Package distributed 提供分布式协调相关的子包。
//
// 子包列表：
//   - xdlock: 基于 KV 后端的互斥锁（SET NX + 过期时间），
//     WithLock 执行器，以及多 Redis 节点的 Redlock
//
// 锁只提供尽力而为的互斥：持有者崩溃后依靠过期时间恢复活性，
// 不提供 fencing token，不可用于需要严格线性一致的场景。
package distributed
