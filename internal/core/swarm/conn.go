package swarm

import (
	"sync"
	"time"

	"github.com/dep2p/go-dat/internal/core/muxer/yamux"
	"github.com/dep2p/go-dat/internal/core/protocol/replicate"
	"github.com/dep2p/go-dat/internal/core/security/noise"
	"github.com/dep2p/go-dat/pkg/types"
)

// ConnInfo 连接快照
type ConnInfo struct {
	Peer        types.PeerID
	RemoteAddr  string
	Inbound     bool
	Opened      time.Time
	Replication replicate.Stats
}

// PeerConn 已认证的对等连接
type PeerConn struct {
	remote     types.PeerID
	remoteAddr string
	inbound    bool
	opened     time.Time

	secured *noise.Conn
	mux     *yamux.Muxer

	// evt 建立时发布的事件，订阅时用于补发
	evt types.EvtPeerConnected

	mu  sync.Mutex
	rep *replicate.Replicator

	closeOnce sync.Once
	closeErr  error
}

// RemotePeer 返回远端 PeerID
func (c *PeerConn) RemotePeer() types.PeerID {
	return c.remote
}

// Inbound 是否为入站连接
func (c *PeerConn) Inbound() bool {
	return c.inbound
}

// Info 返回连接快照
func (c *PeerConn) Info() ConnInfo {
	info := ConnInfo{
		Peer:       c.remote,
		RemoteAddr: c.remoteAddr,
		Inbound:    c.inbound,
		Opened:     c.opened,
	}
	c.mu.Lock()
	if c.rep != nil {
		info.Replication = c.rep.Stats()
	}
	c.mu.Unlock()
	return info
}

func (c *PeerConn) setReplicator(rep *replicate.Replicator) {
	c.mu.Lock()
	c.rep = rep
	c.mu.Unlock()
}

// Close 关闭多路复用会话与底层连接，可重复调用
func (c *PeerConn) Close() error {
	c.closeOnce.Do(func() {
		c.closeErr = c.mux.Close()
	})
	return c.closeErr
}
