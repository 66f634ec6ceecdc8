package xinvalidate

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/omeyang/rentkit/pkg/storage/xkv"
)

// DefaultRevalidateChannel PubSubRevalidator 默认频道
const DefaultRevalidateChannel = "presentation:revalidate"

// Revalidator 通知展示层某些页面已过期。
// 返回的错误只会被 Manager 记录，不会传给业务调用方。
type Revalidator interface {
	Revalidate(ctx context.Context, paths ...string) error
}

// NopRevalidator 不做任何事
type NopRevalidator struct{}

func (NopRevalidator) Revalidate(context.Context, ...string) error { return nil }

// KVRevalidator 删除 presentation 命名空间下以页面路径为 key 的缓存条目
type KVRevalidator struct {
	client *xkv.Client
}

// NewKVRevalidator 创建 KVRevalidator
func NewKVRevalidator(client *xkv.Client) (*KVRevalidator, error) {
	if client == nil {
		return nil, ErrNilClient
	}
	return &KVRevalidator{client: client}, nil
}

func (r *KVRevalidator) Revalidate(ctx context.Context, paths ...string) error {
	if len(paths) == 0 {
		return nil
	}
	keys := make([]string, len(paths))
	for i, p := range paths {
		keys[i] = xkv.JoinKey(NamespacePresentation, p)
	}
	r.client.Delete(ctx, keys...)
	return nil
}

// RevalidateMessage Pub/Sub 消息体
type RevalidateMessage struct {
	Paths []string `json:"paths"`
	// At 发布时间（Unix 毫秒）
	At int64 `json:"at"`
}

// PubSubRevalidator 把过期页面发布到 Redis 频道，由渲染层订阅后重新生成
type PubSubRevalidator struct {
	rdb     redis.UniversalClient
	channel string
}

// NewPubSubRevalidator 创建 PubSubRevalidator，channel 为空时使用 DefaultRevalidateChannel
func NewPubSubRevalidator(rdb redis.UniversalClient, channel string) (*PubSubRevalidator, error) {
	if rdb == nil {
		return nil, ErrNilRedis
	}
	if channel == "" {
		channel = DefaultRevalidateChannel
	}
	return &PubSubRevalidator{rdb: rdb, channel: channel}, nil
}

// Channel 返回发布频道
func (r *PubSubRevalidator) Channel() string { return r.channel }

func (r *PubSubRevalidator) Revalidate(ctx context.Context, paths ...string) error {
	if len(paths) == 0 {
		return nil
	}
	payload, err := json.Marshal(RevalidateMessage{Paths: paths, At: time.Now().UnixMilli()})
	if err != nil {
		return fmt.Errorf("xinvalidate: encode revalidate message: %w", err)
	}
	if err := r.rdb.Publish(ctx, r.channel, payload).Err(); err != nil {
		return fmt.Errorf("xinvalidate: publish revalidate: %w", err)
	}
	return nil
}

// MultiRevalidator 依次调用多个 Revalidator，汇总所有错误
type MultiRevalidator []Revalidator

func (m MultiRevalidator) Revalidate(ctx context.Context, paths ...string) error {
	var errs []error
	for _, r := range m {
		if r == nil {
			continue
		}
		if err := r.Revalidate(ctx, paths...); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// DefaultRevalidator 根据后端能力组合 Revalidator：
// 总是删除页面条目，TCP Redis 后端额外发布到 channel。
func DefaultRevalidator(client *xkv.Client, channel string) Revalidator {
	if client == nil {
		return NopRevalidator{}
	}
	kv := &KVRevalidator{client: client}
	rdb, ok := client.RedisClient()
	if !ok {
		return kv
	}
	ps, err := NewPubSubRevalidator(rdb, channel)
	if err != nil {
		return kv
	}
	return MultiRevalidator{kv, ps}
}
