package config

import "errors"

// DiscoveryConfig 节点发现配置
type DiscoveryConfig struct {
	// MDNS 局域网发现配置
	MDNS MDNSConfig `json:"mdns"`
}

// MDNSConfig mDNS 配置
type MDNSConfig struct {
	// Enabled 是否启用 mDNS
	Enabled bool `json:"enabled"`

	// ServiceTag 服务标签
	// 默认值: "_dat._tcp"
	ServiceTag string `json:"service_tag"`
}

// DefaultDiscoveryConfig 返回默认的发现配置
func DefaultDiscoveryConfig() DiscoveryConfig {
	return DiscoveryConfig{
		MDNS: MDNSConfig{
			Enabled:    true,
			ServiceTag: "_dat._tcp",
		},
	}
}

// Validate 验证发现配置
func (c *DiscoveryConfig) Validate() error {
	if c.MDNS.Enabled && c.MDNS.ServiceTag == "" {
		return errors.New("discovery: mdns service_tag required when mdns is enabled")
	}
	return nil
}
