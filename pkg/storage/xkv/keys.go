package xkv

import "strings"

// DefaultNamespace 未指定命名空间时使用
const DefaultNamespace = "app"

// LockPrefix 锁 key 的保留前缀，缓存 key 不得使用
const LockPrefix = "lock:"

// JoinKey 组合 "<namespace>:<key>"，namespace 为空时使用 DefaultNamespace
func JoinKey(namespace, key string) string {
	if strings.TrimSpace(namespace) == "" {
		namespace = DefaultNamespace
	}
	return namespace + ":" + key
}

// LockKey 返回 "lock:<key>"
func LockKey(key string) string {
	return LockPrefix + key
}
