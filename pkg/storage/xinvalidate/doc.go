// Package xinvalidate 领域级缓存失效。
//
// 业务写操作成功后调用领域函数（Property、Rental、Tenant、Owner、Payment），
// 由本包枚举依赖该实体的全部派生 key，并按命名空间各做一次批量删除：
//
//	inv.Property(ctx, xinvalidate.PropertyChange{ID: id, OwnerID: owner, City: city})
//
// 读路径使用同一组 key 构造函数，保证读写两侧对 key 的定义一致：
//
//	xcache.GetOrCompute(ctx, engine, xinvalidate.PropertyDetailKey(id), load,
//	    xcache.WithNamespace(xinvalidate.NamespaceListings))
//
// 失效失败只记录日志，不返回错误，不阻塞触发它的写操作；
// 残留的陈旧数据由条目 TTL 兜底。
//
// 展示层页面缓存通过 Revalidator 通知，默认删除 presentation 命名空间下的页面条目，
// 也可以经 Redis Pub/Sub 广播给渲染层。
//
// 通配符失效（InvalidatePattern）只在后端支持 SCAN 时生效，领域函数不依赖它。
package xinvalidate
