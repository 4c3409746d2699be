// Package config 提供 go-dat 的 JSON 配置
//
// 主 Config 结构体嵌入所有子配置，每个子配置在独立文件中定义，
// 支持从 JSON 加载和保存。
//
// 使用示例：
//
//	cfg := config.NewConfig()
//	cfg.Network.ListenAddr = "0.0.0.0:3282"
//
//	// 从文件加载
//	cfg, err := config.LoadFile("dat.json")
package config

// Config go-dat 的完整配置
//
// 配置按功能模块组织：
//   - Storage: 归档存储
//   - Network: 监听、拨号与连接上限
//   - Discovery: 节点发现
//   - Log: 日志
type Config struct {
	// Storage 存储配置
	Storage StorageConfig `json:"storage"`

	// Network 网络配置
	Network NetworkConfig `json:"network"`

	// Discovery 节点发现配置
	Discovery DiscoveryConfig `json:"discovery"`

	// Log 日志配置
	Log LogConfig `json:"log"`
}

// NewConfig 创建默认配置
func NewConfig() *Config {
	return &Config{
		Storage:   DefaultStorageConfig(),
		Network:   DefaultNetworkConfig(),
		Discovery: DefaultDiscoveryConfig(),
		Log:       DefaultLogConfig(),
	}
}

// Validate 验证配置的有效性
func (c *Config) Validate() error {
	if err := c.Storage.Validate(); err != nil {
		return err
	}
	if err := c.Network.Validate(); err != nil {
		return err
	}
	if err := c.Discovery.Validate(); err != nil {
		return err
	}
	return c.Log.Validate()
}
