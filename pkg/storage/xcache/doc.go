// Package xcache Cache-Aside 读穿缓存引擎。
//
// # 核心流程
//
// GetOrCompute 先查 KV 后端，命中则解码返回；未命中时调用 producer
// 计算权威值，在后台写回缓存后立即返回，写入不增加读路径延迟。
//
//	listing, err := xcache.GetOrCompute(ctx, engine, "property:"+id,
//	    func(ctx context.Context) (*Listing, error) { return repo.Find(ctx, id) },
//	    xcache.WithNamespace("listings"), xcache.WithTTL(10*time.Minute))
//
// # 容错语义
//
// 缓存只影响延迟，不影响正确性：
//   - 读取与超时赛跑（生产默认 300ms，开发默认 2s），超时按未命中处理
//   - 解码失败的条目会被删除（自愈），然后按未命中处理
//   - 后端不可用时每次都调用 producer
//   - 查询阶段的 panic 被恢复并直接调用 producer
//   - producer 的错误原样返回，且不缓存（无负缓存）
//   - nil 结果原样返回，但不写入缓存
//
// # 后台写入
//
// 写入在独立 goroutine 中执行，脱离调用方的取消链并有独立超时；
// 失败只记录日志并触发 Hooks.OnCacheSetError。Engine.Wait 等待所有后台写入结束，
// 用于测试和优雅退出。
//
// # 并发去重
//
// 默认启用进程内 singleflight：同一完整 key 的并发未命中只调用一次 producer。
// 跨进程仍可能多次调用，producer 需保持幂等。
package xcache
