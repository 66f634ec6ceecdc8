package xkv

import (
	"bytes"
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dgraph-io/ristretto/v2"
)

// 本地后端默认容量
const (
	defaultLocalMaxCost     = 64 << 20 // 64MB
	defaultLocalNumCounters = 1e6
	defaultLocalBufferItems = 64
)

var _ Store = (*memoryStore)(nil)

// LocalOption 本地后端配置选项
type LocalOption func(*ristretto.Config[string, []byte])

// WithLocalMaxCost 设置本地缓存的最大字节数
func WithLocalMaxCost(maxCost int64) LocalOption {
	return func(c *ristretto.Config[string, []byte]) {
		if maxCost > 0 {
			c.MaxCost = maxCost
			c.NumCounters = maxCost / 64 * 10
			if c.NumCounters < 1000 {
				c.NumCounters = 1000
			}
		}
	}
}

// memoryStore 进程内后端，基于 ristretto。
//
// 仅用于非生产环境：多实例间不共享，失效只作用于本进程。
// 写操作统一持有 mu，保证 SetIfAbsent 与 CompareAndDelete 的原子性；
// 每次写入后 Wait，使写入对随后的读立即可见。
type memoryStore struct {
	cache  *ristretto.Cache[string, []byte]
	mu     sync.Mutex
	closed atomic.Bool
}

// NewLocalStore 创建进程内后端
func NewLocalStore(opts ...LocalOption) (Store, error) {
	cfg := &ristretto.Config[string, []byte]{
		NumCounters:        defaultLocalNumCounters,
		MaxCost:            defaultLocalMaxCost,
		BufferItems:        defaultLocalBufferItems,
		IgnoreInternalCost: true,
	}
	for _, opt := range opts {
		opt(cfg)
	}
	cache, err := ristretto.NewCache(cfg)
	if err != nil {
		return nil, err
	}
	return &memoryStore{cache: cache}, nil
}

func (s *memoryStore) Get(_ context.Context, key string) ([]byte, bool, error) {
	if s.closed.Load() {
		return nil, false, ErrClosed
	}
	value, ok := s.cache.Get(key)
	if !ok {
		return nil, false, nil
	}
	return bytes.Clone(value), true, nil
}

func (s *memoryStore) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	if s.closed.Load() {
		return ErrClosed
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.set(key, value, ttl)
	return nil
}

func (s *memoryStore) Delete(_ context.Context, keys ...string) error {
	if s.closed.Load() {
		return ErrClosed
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, key := range keys {
		s.cache.Del(key)
	}
	return nil
}

func (s *memoryStore) Exists(_ context.Context, key string) (bool, error) {
	if s.closed.Load() {
		return false, ErrClosed
	}
	_, ok := s.cache.Get(key)
	return ok, nil
}

func (s *memoryStore) SetIfAbsent(_ context.Context, key string, value []byte, ttl time.Duration) (bool, error) {
	if s.closed.Load() {
		return false, ErrClosed
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.cache.Get(key); ok {
		return false, nil
	}
	return s.set(key, value, ttl), nil
}

func (s *memoryStore) CompareAndDelete(_ context.Context, key string, value []byte) (bool, error) {
	if s.closed.Load() {
		return false, ErrClosed
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	current, ok := s.cache.Get(key)
	if !ok || !bytes.Equal(current, value) {
		return false, nil
	}
	s.cache.Del(key)
	return true, nil
}

func (s *memoryStore) Ping(context.Context) error {
	if s.closed.Load() {
		return ErrClosed
	}
	return nil
}

func (s *memoryStore) Kind() Kind { return KindLocal }

func (s *memoryStore) Close() error {
	if s.closed.Swap(true) {
		return nil
	}
	s.cache.Close()
	return nil
}

// set 写入并等待生效，返回 ristretto 是否接受了该条目。调用方持有 mu。
func (s *memoryStore) set(key string, value []byte, ttl time.Duration) bool {
	stored := bytes.Clone(value)
	cost := int64(len(stored))
	if cost == 0 {
		cost = 1
	}
	ok := s.cache.SetWithTTL(key, stored, cost, normalizeTTL(ttl))
	s.cache.Wait()
	return ok
}
