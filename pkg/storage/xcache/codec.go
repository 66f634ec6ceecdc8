package xcache

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/fxamacker/cbor/v2"
	"github.com/vmihailenco/msgpack/v5"
)

// Codec 缓存值的序列化方式。
// Unmarshal 的 target 总是指针。
type Codec interface {
	Name() string
	Marshal(v any) ([]byte, error)
	Unmarshal(data []byte, target any) error
}

// 内置编解码器名称
const (
	CodecJSON    = "json"
	CodecMsgpack = "msgpack"
	CodecCBOR    = "cbor"
)

// JSONCodec 默认编解码器，可读，兼容 REST 后端的 UTF-8 限制。
type JSONCodec struct{}

func (JSONCodec) Name() string { return CodecJSON }

func (JSONCodec) Marshal(v any) ([]byte, error) { return json.Marshal(v) }

func (JSONCodec) Unmarshal(data []byte, target any) error { return json.Unmarshal(data, target) }

// MsgpackCodec 紧凑的二进制编码。
// 输出不是 UTF-8 文本，只能用于 TCP Redis 与本地后端。
type MsgpackCodec struct{}

func (MsgpackCodec) Name() string { return CodecMsgpack }

func (MsgpackCodec) Marshal(v any) ([]byte, error) { return msgpack.Marshal(v) }

func (MsgpackCodec) Unmarshal(data []byte, target any) error { return msgpack.Unmarshal(data, target) }

// CBORCodec RFC 8949 二进制编码，时间以 RFC3339Nano 编码。
// 与 MsgpackCodec 一样不能用于 REST 后端。
type CBORCodec struct {
	enc cbor.EncMode
	dec cbor.DecMode
}

// NewCBORCodec 创建 CBOR 编解码器。deterministic 为 true 时使用核心确定性编码。
func NewCBORCodec(deterministic bool) (*CBORCodec, error) {
	var eo cbor.EncOptions
	if deterministic {
		eo = cbor.CoreDetEncOptions()
	} else {
		eo = cbor.PreferredUnsortedEncOptions()
	}
	eo.Time = cbor.TimeRFC3339Nano

	enc, err := eo.EncMode()
	if err != nil {
		return nil, err
	}
	dec, err := cbor.DecOptions{}.DecMode()
	if err != nil {
		return nil, err
	}
	return &CBORCodec{enc: enc, dec: dec}, nil
}

func (c *CBORCodec) Name() string { return CodecCBOR }

func (c *CBORCodec) Marshal(v any) ([]byte, error) { return c.enc.Marshal(v) }

func (c *CBORCodec) Unmarshal(data []byte, target any) error { return c.dec.Unmarshal(data, target) }

// CodecByName 按名称返回内置编解码器，空名称返回 JSON
func CodecByName(name string) (Codec, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", CodecJSON:
		return JSONCodec{}, nil
	case CodecMsgpack:
		return MsgpackCodec{}, nil
	case CodecCBOR:
		return NewCBORCodec(false)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownCodec, name)
	}
}
