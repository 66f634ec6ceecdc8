package xkv

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"github.com/redis/go-redis/v9"
)

// compareAndDeleteLua 值匹配时删除。
// 返回 1 表示已删除，0 表示值不匹配或 key 不存在。
const compareAndDeleteLua = `
	if redis.call("GET", KEYS[1]) == ARGV[1] then
		return redis.call("DEL", KEYS[1])
	else
		return 0
	end
`

var compareAndDeleteScript = redis.NewScript(compareAndDeleteLua)

// scanBatchSize 每次 SCAN 的 COUNT 提示值
const scanBatchSize = 200

var (
	_ Store   = (*redisStore)(nil)
	_ Scanner = (*redisStore)(nil)
)

// redisStore 基于 go-redis 的 TCP 后端
type redisStore struct {
	client redis.UniversalClient
	owned  bool // 由 OpenRedis 创建的客户端在 Close 时一并关闭
	closed atomic.Bool
}

// NewRedisStore 包装已有的 go-redis 客户端，Close 不会关闭该客户端。
func NewRedisStore(client redis.UniversalClient) (Store, error) {
	if client == nil {
		return nil, ErrNilClient
	}
	return &redisStore{client: client}, nil
}

// OpenRedis 解析 redis:// 或 rediss:// 连接串并创建客户端。
func OpenRedis(url string) (Store, error) {
	if strings.TrimSpace(url) == "" {
		return nil, ErrEmptyURL
	}
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("xkv: parse redis url: %w", err)
	}
	return &redisStore{client: redis.NewClient(opts), owned: true}, nil
}

func (s *redisStore) Get(ctx context.Context, key string) ([]byte, bool, error) {
	if s.closed.Load() {
		return nil, false, ErrClosed
	}
	value, err := s.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return value, true, nil
}

func (s *redisStore) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if s.closed.Load() {
		return ErrClosed
	}
	return s.client.Set(ctx, key, value, normalizeTTL(ttl)).Err()
}

func (s *redisStore) Delete(ctx context.Context, keys ...string) error {
	if s.closed.Load() {
		return ErrClosed
	}
	if len(keys) == 0 {
		return nil
	}
	return s.client.Del(ctx, keys...).Err()
}

func (s *redisStore) Exists(ctx context.Context, key string) (bool, error) {
	if s.closed.Load() {
		return false, ErrClosed
	}
	n, err := s.client.Exists(ctx, key).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (s *redisStore) SetIfAbsent(ctx context.Context, key string, value []byte, ttl time.Duration) (bool, error) {
	if s.closed.Load() {
		return false, ErrClosed
	}
	return s.client.SetNX(ctx, key, value, normalizeTTL(ttl)).Result()
}

func (s *redisStore) CompareAndDelete(ctx context.Context, key string, value []byte) (bool, error) {
	if s.closed.Load() {
		return false, ErrClosed
	}
	n, err := compareAndDeleteScript.Run(ctx, s.client, []string{key}, value).Int64()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

func (s *redisStore) Ping(ctx context.Context) error {
	if s.closed.Load() {
		return ErrClosed
	}
	return s.client.Ping(ctx).Err()
}

func (s *redisStore) Scan(ctx context.Context, pattern string, fn func(keys []string) error) error {
	if s.closed.Load() {
		return ErrClosed
	}
	var cursor uint64
	for {
		keys, next, err := s.client.Scan(ctx, cursor, pattern, scanBatchSize).Result()
		if err != nil {
			return err
		}
		if len(keys) > 0 {
			if err := fn(keys); err != nil {
				return err
			}
		}
		if next == 0 {
			return nil
		}
		cursor = next
	}
}

func (s *redisStore) Kind() Kind { return KindRedis }

func (s *redisStore) Close() error {
	if s.closed.Swap(true) {
		return nil
	}
	if s.owned {
		return s.client.Close()
	}
	return nil
}

// Client 返回底层 go-redis 客户端，用于 Pub/Sub 等 Store 之外的能力
func (s *redisStore) Client() redis.UniversalClient {
	return s.client
}

// normalizeTTL 负值统一视为不过期
func normalizeTTL(ttl time.Duration) time.Duration {
	if ttl < 0 {
		return 0
	}
	return ttl
}
