// Package xdlock 基于 KV 后端的分布式互斥锁。
//
// # 状态机
//
// 每个锁 key 只有两个状态：
//
//	UNLOCKED --SetIfAbsent 成功--> LOCKED --Release 或 TTL 到期--> UNLOCKED
//
// 获取是一次原子的 SetIfAbsent("lock:"+key, token, expire)，
// 进程内不保存任何锁状态，后端是唯一的事实来源。
// 过期时间是强制的：持有者崩溃后锁最迟在 expire 之后自动释放。
//
// # 用法
//
//	res := xdlock.WithLock(ctx, locks, "payment:"+rentalID,
//	    func(ctx context.Context) (*Receipt, error) { return pay(ctx) },
//	    xdlock.WithRetries(0))
//	if errors.Is(res.Err, xdlock.ErrInProgress) {
//	    // 另一笔相同付款正在处理，不重复执行
//	}
//
// # 释放语义
//
// Manager.Release 按 key 无条件删除，不校验 token。持有者的锁过期后被他人获取，
// 原持有者延迟到达的 Release 会误删新持有者的锁。需要所有权校验时使用
// AcquireLease + Lease.Release（compare-and-delete），或以 WithOwnedRelease(true)
// 创建 Manager，让 WithLock 走租约路径。
//
// # 后端
//
//   - Manager: 任意 xkv 后端（REST、Redis、本地）。后端禁用时获取总是失败。
//   - Redlock: 多个独立 Redis 节点上的 Redlock 仲裁锁（go-redsync），释放总是校验 token。
//
// IsLocked 只用于诊断，不能作为正确性判断依据。
package xdlock
