package dat

import (
	"context"

	"github.com/dep2p/go-dat/internal/core/eventbus"
	"github.com/dep2p/go-dat/internal/core/swarm"
	"github.com/dep2p/go-dat/pkg/types"
)

// 事件与连接类型
type (
	// EvtPeerConnected 连接建立事件，发布时计数已包含该连接
	EvtPeerConnected = types.EvtPeerConnected

	// EvtPeerDisconnected 连接断开事件，发布时计数已不含该连接
	EvtPeerDisconnected = types.EvtPeerDisconnected

	// Subscription 事件订阅，Out 在离开或关闭时被关闭
	Subscription = eventbus.Subscription

	// ConnInfo 连接快照
	ConnInfo = swarm.ConnInfo
)

// Network 节点在网络中的一次加入
//
// 由 Node.JoinNetwork 返回，Leave 或 Close 后失效。
// 连接计数随连接建立与断开实时变化。
type Network struct {
	session *swarm.Session
}

func newNetwork(s *swarm.Session) *Network {
	return &Network{session: s}
}

// ID 返回会话 ID
func (nw *Network) ID() string {
	return nw.session.ID()
}

// LocalPeer 返回本次加入使用的 PeerID
func (nw *Network) LocalPeer() types.PeerID {
	return nw.session.LocalPeer()
}

// Topic 返回发现主题
func (nw *Network) Topic() types.DiscoveryKey {
	return nw.session.Topic()
}

// ListenAddrs 返回监听地址
func (nw *Network) ListenAddrs() []string {
	return nw.session.ListenAddrs()
}

// ConnectedCount 返回当前连接数，加入后立即为 0
func (nw *Network) ConnectedCount() int {
	return nw.session.ConnectedCount()
}

// Connections 返回连接快照
func (nw *Network) Connections() []ConnInfo {
	return nw.session.Connections()
}

// Subscribe 订阅连接事件
//
// 流中先是已建立连接的 EvtPeerConnected，再接续后续的
// EvtPeerConnected 与 EvtPeerDisconnected。调用方必须持续读取或 Close 订阅。
func (nw *Network) Subscribe() (*Subscription, error) {
	return nw.session.Subscribe()
}

// OnConnection 注册连接建立回调，返回取消函数
func (nw *Network) OnConnection(fn func(EvtPeerConnected)) (cancel func(), err error) {
	return nw.session.OnConnection(fn)
}

// WaitConnected 阻塞直到连接数不少于 n
func (nw *Network) WaitConnected(ctx context.Context, n int) error {
	return nw.session.WaitConnected(ctx, n)
}

// Done 会话结束后被关闭的通道
func (nw *Network) Done() <-chan struct{} {
	return nw.session.Done()
}

func (nw *Network) close() error {
	return nw.session.Close()
}
