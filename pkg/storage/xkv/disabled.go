package xkv

import (
	"context"
	"time"
)

var _ Store = disabledStore{}

// disabledStore 未配置任何后端时使用：读永远未命中，写为空操作，
// SetIfAbsent 永远失败（锁无法获取）。
type disabledStore struct{}

// NewDisabledStore 返回空操作后端
func NewDisabledStore() Store { return disabledStore{} }

func (disabledStore) Get(context.Context, string) ([]byte, bool, error) { return nil, false, nil }

func (disabledStore) Set(context.Context, string, []byte, time.Duration) error { return nil }

func (disabledStore) Delete(context.Context, ...string) error { return nil }

func (disabledStore) Exists(context.Context, string) (bool, error) { return false, nil }

func (disabledStore) SetIfAbsent(context.Context, string, []byte, time.Duration) (bool, error) {
	return false, nil
}

func (disabledStore) CompareAndDelete(context.Context, string, []byte) (bool, error) {
	return false, nil
}

func (disabledStore) Ping(context.Context) error { return nil }

func (disabledStore) Kind() Kind { return KindDisabled }

func (disabledStore) Close() error { return nil }
