// Package xconf 基于 koanf 的配置加载。
//
// 配置来源按顺序叠加：YAML/JSON 文件（或字节）→ 环境变量。
// 环境变量通过显式映射表绑定到配置路径（如 REDIS_URL → kv.redis.url），
// 未出现在映射表中的变量被忽略。
//
//	cfg, err := xconf.New("/etc/rentkit/config.yaml", xconf.WithEnv(xconf.DefaultEnvBindings))
//	var s xconf.Settings
//	err = cfg.Unmarshal("", &s)
package xconf

import (
	"errors"

	"github.com/knadh/koanf/v2"
)

// Format 定义配置文件格式。
type Format string

const (
	FormatYAML Format = "yaml"
	FormatJSON Format = "json"
)

// Config 定义配置接口。
// 基础读取请直接使用 Client() 返回的 koanf 实例。
type Config interface {
	// Client 返回底层 koanf 实例。
	Client() *koanf.Koanf

	// Unmarshal 将 path 下的配置反序列化到 target，path 为空时反序列化全部。
	Unmarshal(path string, target any) error

	// Reload 重新读取文件并重新叠加环境变量，并发安全。
	// 从字节创建的 Config 返回 ErrReloadUnsupported。
	Reload() error

	// Path 返回配置文件路径，从字节创建时为空。
	Path() string

	// Format 返回配置格式。
	Format() Format
}

// 配置加载和解析相关错误。
var (
	ErrEmptyPath         = errors.New("xconf: empty config path")
	ErrUnsupportedFormat = errors.New("xconf: unsupported config format")
	ErrLoadFailed        = errors.New("xconf: failed to load config")
	ErrParseFailed       = errors.New("xconf: failed to parse config")
	ErrUnmarshalFailed   = errors.New("xconf: failed to unmarshal config")
	ErrReloadUnsupported = errors.New("xconf: cannot reload config created from bytes")
	ErrInvalidSettings   = errors.New("xconf: invalid settings")
)

// Options 定义配置加载选项。
type Options struct {
	// Delim 配置键分隔符，默认 "."。
	Delim string

	// Tag 结构体标签名，默认 "koanf"。
	Tag string

	// EnvBindings 环境变量名到配置路径的映射，为空时不读取环境变量。
	EnvBindings map[string]string
}

// Option 定义配置选项函数类型。
type Option func(*Options)

func defaultOptions() *Options {
	return &Options{
		Delim: ".",
		Tag:   "koanf",
	}
}

// WithDelim 设置配置键分隔符。
func WithDelim(delim string) Option {
	return func(o *Options) {
		if delim != "" {
			o.Delim = delim
		}
	}
}

// WithTag 设置结构体标签名。
func WithTag(tag string) Option {
	return func(o *Options) {
		if tag != "" {
			o.Tag = tag
		}
	}
}

// WithEnv 启用环境变量叠加，bindings 为 变量名 → 配置路径。
func WithEnv(bindings map[string]string) Option {
	return func(o *Options) {
		o.EnvBindings = bindings
	}
}
