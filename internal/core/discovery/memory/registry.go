// Package memory 提供进程内的发现注册表
//
// Registry 不做任何网络通信，通告结果直接对同一 Registry 的查询可见。
// 用于测试以及同进程多节点部署。
package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/dep2p/go-dat/pkg/interfaces"
	"github.com/dep2p/go-dat/pkg/lib/log"
	"github.com/dep2p/go-dat/pkg/types"
)

var logger = log.Logger("discovery/memory")

// Registry 进程内发现注册表
type Registry struct {
	mu     sync.RWMutex
	topics map[types.DiscoveryKey]map[types.PeerID][]string
}

var _ interfaces.Discovery = (*Registry)(nil)

// NewRegistry 创建空注册表
func NewRegistry() *Registry {
	return &Registry{
		topics: make(map[types.DiscoveryKey]map[types.PeerID][]string),
	}
}

// Announce 在主题下登记节点
func (r *Registry) Announce(ctx context.Context, topic types.DiscoveryKey, self interfaces.PeerInfo) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if self.ID.IsEmpty() {
		return types.ErrInvalidPeerID
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	peers, ok := r.topics[topic]
	if !ok {
		peers = make(map[types.PeerID][]string)
		r.topics[topic] = peers
	}
	peers[self.ID] = append([]string(nil), self.Addrs...)

	logger.Debug("节点已登记", "topic", topic.ShortString(), "peer", self.ID.ShortString(), "addrs", self.Addrs)
	return nil
}

// Unannounce 移除登记
func (r *Registry) Unannounce(_ context.Context, topic types.DiscoveryKey, id types.PeerID) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	peers, ok := r.topics[topic]
	if !ok {
		return nil
	}
	delete(peers, id)
	if len(peers) == 0 {
		delete(r.topics, topic)
	}
	return nil
}

// FindPeers 返回主题下所有登记的节点，按 PeerID 排序
func (r *Registry) FindPeers(ctx context.Context, topic types.DiscoveryKey) ([]interfaces.PeerInfo, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	r.mu.RLock()
	peers := r.topics[topic]
	out := make([]interfaces.PeerInfo, 0, len(peers))
	for id, addrs := range peers {
		out = append(out, interfaces.PeerInfo{ID: id, Addrs: append([]string(nil), addrs...)})
	}
	r.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].ID.Less(out[j].ID) })
	return out, nil
}

// Topics 返回当前有登记的主题数量
func (r *Registry) Topics() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.topics)
}
