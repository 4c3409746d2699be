package config

import (
	"errors"
	"net"
	"time"
)

// NetworkConfig 网络配置
type NetworkConfig struct {
	// ListenAddr TCP 监听地址（host:port），端口为 0 时自动分配
	ListenAddr string `json:"listen_addr"`

	// DialTimeout 单个地址的拨号超时
	DialTimeout Duration `json:"dial_timeout"`

	// HandshakeTimeout 安全握手超时
	HandshakeTimeout Duration `json:"handshake_timeout"`

	// LookupInterval 发现查询间隔
	LookupInterval Duration `json:"lookup_interval"`

	// MaxPeers 最大连接数，0 表示不限制
	MaxPeers int `json:"max_peers"`

	// DialBackoff 拨号失败地址的退避时长，0 表示不退避
	DialBackoff Duration `json:"dial_backoff"`
}

// DefaultNetworkConfig 返回默认的网络配置
func DefaultNetworkConfig() NetworkConfig {
	return NetworkConfig{
		ListenAddr:       "0.0.0.0:0",
		DialTimeout:      Duration(10 * time.Second),
		HandshakeTimeout: Duration(10 * time.Second),
		LookupInterval:   Duration(5 * time.Second),
		MaxPeers:         64,
		DialBackoff:      Duration(30 * time.Second),
	}
}

// Validate 验证网络配置
func (c *NetworkConfig) Validate() error {
	if _, _, err := net.SplitHostPort(c.ListenAddr); err != nil {
		return errors.New("network: listen_addr must be host:port")
	}
	if c.DialTimeout <= 0 {
		return errors.New("network: dial_timeout must be positive")
	}
	if c.HandshakeTimeout <= 0 {
		return errors.New("network: handshake_timeout must be positive")
	}
	if c.LookupInterval <= 0 {
		return errors.New("network: lookup_interval must be positive")
	}
	if c.MaxPeers < 0 {
		return errors.New("network: max_peers cannot be negative")
	}
	if c.DialBackoff < 0 || (c.DialBackoff > 0 && c.DialBackoff.Duration() < time.Millisecond) {
		return errors.New("network: dial_backoff must be 0 or at least 1ms")
	}
	return nil
}
