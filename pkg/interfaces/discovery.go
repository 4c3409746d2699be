package interfaces

import (
	"context"

	"github.com/dep2p/go-dat/pkg/types"
)

// ════════════════════════════════════════════════════════════════════════════
// Discovery 接口
// ════════════════════════════════════════════════════════════════════════════

// PeerInfo 发现结果
type PeerInfo struct {
	// ID 远端节点标识（Noise 静态公钥）
	ID types.PeerID

	// Addrs 可拨号地址，host:port 形式
	Addrs []string
}

// Discovery 按主题发现节点
//
// 主题为归档的发现密钥，归档公钥本身不会被通告。
//
// 架构位置：Discovery Layer
// 实现位置：internal/core/discovery/memory、internal/core/discovery/mdns
//
// 实现必须并发安全。同一 Discovery 可由多个会话共享，
// 但生命周期由注入方管理，会话关闭时只调用 Unannounce。
type Discovery interface {
	// Announce 在主题下通告本节点，重复调用以最新地址为准
	Announce(ctx context.Context, topic types.DiscoveryKey, self PeerInfo) error

	// Unannounce 撤销通告，未通告时返回 nil
	Unannounce(ctx context.Context, topic types.DiscoveryKey, id types.PeerID) error

	// FindPeers 返回主题下当前已知的节点，可能包含本节点
	FindPeers(ctx context.Context, topic types.DiscoveryKey) ([]PeerInfo, error)
}
