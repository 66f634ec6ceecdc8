// Package xkv 统一的键值后端适配层。
//
// 分两层：
//
//   - Store：驱动层，每种后端一个实现，如实返回错误。
//     KindREST（HTTP 远程存储）、KindRedis（TCP Redis）、
//     KindLocal（进程内 ristretto，仅开发环境）、KindDisabled（全部空操作）。
//   - Client：对业务暴露的容错门面。所有驱动错误和 panic 都在这里被捕获、
//     记录日志，并转换为安全默认值（未命中 / false / 空操作），永远不会向上抛出。
//     远程后端连续失败时由熔断器短路，避免每次请求都等待超时。
//
// 后端在进程启动时由 Open 按固定优先级选择一次：
//
//  1. 同时配置 REST URL 与 token → KindREST
//  2. 配置 Redis URL → KindRedis
//  3. 非生产环境 → KindLocal
//  4. 否则 → KindDisabled
//
// Client 由入口显式构造并注入缓存引擎、失效管理器与锁管理器，包内没有全局实例。
package xkv
