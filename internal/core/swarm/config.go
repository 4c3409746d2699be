package swarm

import (
	"fmt"
	"time"
)

// Config 会话配置
type Config struct {
	// ListenAddr 监听地址，端口为 0 时自动分配
	ListenAddr string

	// DialTimeout 单个地址的拨号超时
	DialTimeout time.Duration

	// HandshakeTimeout 安全握手超时
	HandshakeTimeout time.Duration

	// LookupInterval 发现查询间隔
	LookupInterval time.Duration

	// MaxPeers 最大连接数，0 表示不限制
	MaxPeers int

	// DialBackoff 拨号失败地址的退避时长，0 表示不退避
	DialBackoff time.Duration

	// CloseTimeout 关闭时撤销通告等外部调用的超时
	CloseTimeout time.Duration
}

// DefaultConfig 返回默认配置
func DefaultConfig() Config {
	return Config{
		ListenAddr:       "0.0.0.0:0",
		DialTimeout:      10 * time.Second,
		HandshakeTimeout: 10 * time.Second,
		LookupInterval:   5 * time.Second,
		MaxPeers:         64,
		DialBackoff:      30 * time.Second,
		CloseTimeout:     5 * time.Second,
	}
}

// Validate 验证配置
func (c Config) Validate() error {
	if c.ListenAddr == "" {
		return fmt.Errorf("%w: empty listen address", ErrInvalidConfig)
	}
	if c.DialTimeout <= 0 || c.HandshakeTimeout <= 0 {
		return fmt.Errorf("%w: timeouts must be positive", ErrInvalidConfig)
	}
	if c.LookupInterval <= 0 {
		return fmt.Errorf("%w: lookup interval must be positive", ErrInvalidConfig)
	}
	if c.MaxPeers < 0 {
		return fmt.Errorf("%w: negative max peers", ErrInvalidConfig)
	}
	if c.DialBackoff < 0 || (c.DialBackoff > 0 && c.DialBackoff < time.Millisecond) {
		return fmt.Errorf("%w: dial backoff must be 0 or at least 1ms", ErrInvalidConfig)
	}
	if c.CloseTimeout <= 0 {
		return fmt.Errorf("%w: close timeout must be positive", ErrInvalidConfig)
	}
	return nil
}
