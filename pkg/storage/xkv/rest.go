package xkv

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"sync/atomic"
	"time"
	"unicode/utf8"
)

// DefaultRESTTimeout REST 请求的默认超时
const DefaultRESTTimeout = 2 * time.Second

// maxReplyBytes 单次响应体读取上限
const maxReplyBytes = 8 << 20

var _ Store = (*restStore)(nil)

// RESTOption REST 后端配置选项
type RESTOption func(*restStore)

// WithHTTPClient 指定 HTTP 客户端，未指定时使用带 DefaultRESTTimeout 的新客户端
func WithHTTPClient(client *http.Client) RESTOption {
	return func(s *restStore) {
		if client != nil {
			s.http = client
		}
	}
}

// WithRESTTimeout 设置请求超时，非正值忽略
func WithRESTTimeout(d time.Duration) RESTOption {
	return func(s *restStore) {
		if d > 0 {
			s.timeout = d
		}
	}
}

// restStore 以 HTTP 发送 Redis 命令数组的远程后端。
//
// 协议：POST 请求体为 JSON 字符串数组（如 ["SET","k","v","PX","1000"]），
// Authorization: Bearer <token>；响应为 {"result": ...} 或 {"error": "..."}。
type restStore struct {
	url     string
	token   string
	http    *http.Client
	timeout time.Duration
	closed  atomic.Bool
}

// reply REST 响应体
type reply struct {
	Result json.RawMessage `json:"result"`
	Error  string          `json:"error,omitempty"`
}

// NewRESTStore 创建 REST 后端，url 与 token 均不能为空。
func NewRESTStore(url, token string, opts ...RESTOption) (Store, error) {
	url = strings.TrimRight(strings.TrimSpace(url), "/")
	if url == "" {
		return nil, ErrEmptyURL
	}
	if strings.TrimSpace(token) == "" {
		return nil, ErrEmptyToken
	}
	s := &restStore{url: url, token: token, timeout: DefaultRESTTimeout}
	for _, opt := range opts {
		opt(s)
	}
	if s.http == nil {
		s.http = &http.Client{Timeout: s.timeout}
	}
	return s, nil
}

func (s *restStore) Get(ctx context.Context, key string) ([]byte, bool, error) {
	raw, err := s.do(ctx, "GET", key)
	if err != nil {
		return nil, false, err
	}
	str, ok, err := decodeString(raw)
	if err != nil || !ok {
		return nil, false, err
	}
	return []byte(str), true, nil
}

func (s *restStore) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if !utf8.Valid(value) {
		return ErrNonUTF8Value
	}
	args := []string{"SET", key, string(value)}
	args = appendTTL(args, ttl)
	_, err := s.do(ctx, args...)
	return err
}

func (s *restStore) Delete(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	args := make([]string, 0, len(keys)+1)
	args = append(args, "DEL")
	args = append(args, keys...)
	_, err := s.do(ctx, args...)
	return err
}

func (s *restStore) Exists(ctx context.Context, key string) (bool, error) {
	raw, err := s.do(ctx, "EXISTS", key)
	if err != nil {
		return false, err
	}
	n, err := decodeInt(raw)
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (s *restStore) SetIfAbsent(ctx context.Context, key string, value []byte, ttl time.Duration) (bool, error) {
	if !utf8.Valid(value) {
		return false, ErrNonUTF8Value
	}
	args := []string{"SET", key, string(value), "NX"}
	args = appendTTL(args, ttl)
	raw, err := s.do(ctx, args...)
	if err != nil {
		return false, err
	}
	// NX 未写入时返回 null
	_, ok, err := decodeString(raw)
	return ok, err
}

func (s *restStore) CompareAndDelete(ctx context.Context, key string, value []byte) (bool, error) {
	if !utf8.Valid(value) {
		return false, ErrNonUTF8Value
	}
	raw, err := s.do(ctx, "EVAL", compareAndDeleteLua, "1", key, string(value))
	if err != nil {
		return false, err
	}
	n, err := decodeInt(raw)
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

func (s *restStore) Ping(ctx context.Context) error {
	_, err := s.do(ctx, "PING")
	return err
}

func (s *restStore) Kind() Kind { return KindREST }

func (s *restStore) Close() error {
	if s.closed.Swap(true) {
		return nil
	}
	s.http.CloseIdleConnections()
	return nil
}

// do 发送一条命令并返回 result 字段的原始 JSON
func (s *restStore) do(ctx context.Context, args ...string) (json.RawMessage, error) {
	if s.closed.Load() {
		return nil, ErrClosed
	}
	body, err := json.Marshal(args)
	if err != nil {
		return nil, fmt.Errorf("xkv: encode command: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("xkv: build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+s.token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("xkv: rest %s: %w", args[0], err)
	}
	defer func() { _ = resp.Body.Close() }()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxReplyBytes))
	if err != nil {
		return nil, fmt.Errorf("xkv: read reply: %w", err)
	}

	var r reply
	if err := json.Unmarshal(data, &r); err != nil {
		if resp.StatusCode != http.StatusOK {
			return nil, fmt.Errorf("xkv: rest %s: http status %d", args[0], resp.StatusCode)
		}
		return nil, fmt.Errorf("%w: %v", ErrUnexpectedReply, err)
	}
	if r.Error != "" {
		return nil, fmt.Errorf("xkv: rest %s: %s", args[0], r.Error)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("xkv: rest %s: http status %d", args[0], resp.StatusCode)
	}
	return r.Result, nil
}

// appendTTL 正 TTL 以毫秒精度追加 PX 参数
func appendTTL(args []string, ttl time.Duration) []string {
	if ttl <= 0 {
		return args
	}
	ms := ttl.Milliseconds()
	if ms < 1 {
		ms = 1
	}
	return append(args, "PX", strconv.FormatInt(ms, 10))
}

// decodeString 解析字符串结果，null 返回 ok=false
func decodeString(raw json.RawMessage) (string, bool, error) {
	if isNull(raw) {
		return "", false, nil
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return "", false, fmt.Errorf("%w: want string: %v", ErrUnexpectedReply, err)
	}
	return s, true, nil
}

// decodeInt 解析整数结果，兼容以字符串表示的整数
func decodeInt(raw json.RawMessage) (int64, error) {
	if isNull(raw) {
		return 0, nil
	}
	var n int64
	if err := json.Unmarshal(raw, &n); err == nil {
		return n, nil
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return 0, fmt.Errorf("%w: want integer", ErrUnexpectedReply)
	}
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, errors.Join(ErrUnexpectedReply, err)
	}
	return n, nil
}

func isNull(raw json.RawMessage) bool {
	trimmed := bytes.TrimSpace(raw)
	return len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null"))
}
