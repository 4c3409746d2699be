package dat

import (
	"crypto/ed25519"
	"fmt"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/dep2p/go-dat/config"
	"github.com/dep2p/go-dat/internal/core/discovery/mdns"
	"github.com/dep2p/go-dat/internal/core/swarm"
	"github.com/dep2p/go-dat/pkg/interfaces"
	"github.com/dep2p/go-dat/pkg/types"
)

// Option 节点配置选项
type Option func(*Options) error

// NetworkConfig 网络会话配置
type NetworkConfig = swarm.Config

// DefaultNetworkConfig 返回默认网络配置
func DefaultNetworkConfig() NetworkConfig {
	return swarm.DefaultConfig()
}

// Options 打开节点的完整选项
//
// 默认值：Temp=false，ErrorIfExists=false，启用 mDNS，不注册指标。
type Options struct {
	// Key 归档密钥，nil 表示新建归档时生成
	Key *types.ArchiveKey

	// SecretKey 与 Key 配套的 ed25519 私钥，提供时节点可写
	SecretKey ed25519.PrivateKey

	// Temp 使用临时根目录，关闭时删除
	Temp bool

	// ErrorIfExists 根目录已有归档时返回 ErrAlreadyExists
	ErrorIfExists bool

	// Discovery 发现服务，优先于 mDNS
	Discovery interfaces.Discovery

	// EnableMDNS 未提供 Discovery 时是否使用局域网 mDNS
	EnableMDNS bool

	// MDNS mDNS 配置
	MDNS mdns.Config

	// Network 网络会话配置
	Network NetworkConfig

	// SyncWrites 归档写入是否同步落盘
	SyncWrites bool

	// GCInterval 归档存储垃圾回收间隔，0 表示禁用
	GCInterval time.Duration

	// Metrics 指标注册器，nil 表示不注册
	Metrics prometheus.Registerer

	// Clock 时钟，nil 表示真实时钟
	Clock clock.Clock
}

// DefaultOptions 返回默认选项
func DefaultOptions() *Options {
	return &Options{
		EnableMDNS: true,
		MDNS:       mdns.DefaultConfig(),
		Network:    swarm.DefaultConfig(),
		SyncWrites: true,
		GCInterval: 10 * time.Minute,
	}
}

// Validate 验证选项
func (o *Options) Validate() error {
	if o.SecretKey != nil && len(o.SecretKey) != ed25519.PrivateKeySize {
		return fmt.Errorf("%w: secret key must be %d bytes", ErrInvalidOption, ed25519.PrivateKeySize)
	}
	if o.GCInterval < 0 {
		return fmt.Errorf("%w: negative gc interval", ErrInvalidOption)
	}
	if err := o.Network.Validate(); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidOption, err)
	}
	return nil
}

func (o *Options) apply(opts []Option) error {
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		if err := opt(o); err != nil {
			return err
		}
	}
	return o.Validate()
}

// ════════════════════════════════════════════════════════════════════════════
//                              身份选项
// ════════════════════════════════════════════════════════════════════════════

// WithKey 使用指定的归档密钥
//
// 没有配套私钥时节点为只读镜像。
func WithKey(key types.ArchiveKey) Option {
	return func(o *Options) error {
		k := key
		o.Key = &k
		return nil
	}
}

// WithKeyString 使用文本形式的归档密钥（64 位十六进制，可带 dat:// 前缀）
func WithKeyString(s string) Option {
	return func(o *Options) error {
		key, err := types.ParseArchiveKey(s)
		if err != nil {
			return err
		}
		o.Key = &key
		return nil
	}
}

// WithSecretKey 提供归档私钥，节点获得写入能力
//
// 未同时提供 WithKey 时由私钥派生公钥。
func WithSecretKey(secret ed25519.PrivateKey) Option {
	return func(o *Options) error {
		o.SecretKey = append(ed25519.PrivateKey(nil), secret...)
		return nil
	}
}

// ════════════════════════════════════════════════════════════════════════════
//                              存储选项
// ════════════════════════════════════════════════════════════════════════════

// WithTemp 使用临时根目录，关闭时自动删除
func WithTemp(temp bool) Option {
	return func(o *Options) error {
		o.Temp = temp
		return nil
	}
}

// WithErrorIfExists 根目录已有归档时失败
func WithErrorIfExists(v bool) Option {
	return func(o *Options) error {
		o.ErrorIfExists = v
		return nil
	}
}

// ════════════════════════════════════════════════════════════════════════════
//                              网络选项
// ════════════════════════════════════════════════════════════════════════════

// WithDiscovery 注入发现服务
//
// 同一测试或进程中的多个节点可以共享一个内存注册表。
func WithDiscovery(d interfaces.Discovery) Option {
	return func(o *Options) error {
		o.Discovery = d
		return nil
	}
}

// WithMDNS 启用或禁用 mDNS
func WithMDNS(enable bool) Option {
	return func(o *Options) error {
		o.EnableMDNS = enable
		return nil
	}
}

// WithListenAddr 设置 TCP 监听地址（host:port）
func WithListenAddr(addr string) Option {
	return func(o *Options) error {
		if addr == "" {
			return fmt.Errorf("%w: empty listen address", ErrInvalidOption)
		}
		o.Network.ListenAddr = addr
		return nil
	}
}

// WithNetworkConfig 替换网络会话配置
func WithNetworkConfig(cfg NetworkConfig) Option {
	return func(o *Options) error {
		o.Network = cfg
		return nil
	}
}

// ════════════════════════════════════════════════════════════════════════════
//                              其他选项
// ════════════════════════════════════════════════════════════════════════════

// WithMetrics 在指定注册器上注册节点指标
//
// 指标带 archive（发现密钥前缀）与 root（根目录绝对路径）标签，多个节点可共用同一注册器。
func WithMetrics(reg prometheus.Registerer) Option {
	return func(o *Options) error {
		o.Metrics = reg
		return nil
	}
}

// WithClock 使用指定时钟（测试中可注入 clock.NewMock()）
func WithClock(clk clock.Clock) Option {
	return func(o *Options) error {
		o.Clock = clk
		return nil
	}
}

// WithConfig 应用配置文件中的存储、网络与发现配置
func WithConfig(cfg *config.Config) Option {
	return func(o *Options) error {
		if cfg == nil {
			return nil
		}
		if err := cfg.Validate(); err != nil {
			return fmt.Errorf("%w: %v", ErrInvalidOption, err)
		}

		o.SyncWrites = cfg.Storage.SyncWrites
		o.GCInterval = cfg.Storage.GCInterval.Duration()

		n := cfg.Network
		o.Network.ListenAddr = n.ListenAddr
		o.Network.DialTimeout = n.DialTimeout.Duration()
		o.Network.HandshakeTimeout = n.HandshakeTimeout.Duration()
		o.Network.LookupInterval = n.LookupInterval.Duration()
		o.Network.MaxPeers = n.MaxPeers
		o.Network.DialBackoff = n.DialBackoff.Duration()

		o.EnableMDNS = cfg.Discovery.MDNS.Enabled
		if cfg.Discovery.MDNS.ServiceTag != "" {
			o.MDNS.ServiceTag = cfg.Discovery.MDNS.ServiceTag
		}
		return nil
	}
}
