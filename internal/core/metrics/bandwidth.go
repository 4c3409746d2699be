package metrics

import (
	"net"
	"sync"
	"sync/atomic"

	"github.com/benbjohnson/clock"

	"github.com/dep2p/go-dat/pkg/types"
)

// BandwidthCounter 带宽计数器
//
// 跟踪本节点与各对端之间收发的字节数。并发安全。
type BandwidthCounter struct {
	clock clock.Clock

	totalIn  atomic.Int64
	totalOut atomic.Int64

	totalInRate  *RateMeter
	totalOutRate *RateMeter

	peerMu sync.RWMutex
	peers  map[types.PeerID]*peerCounter
}

type peerCounter struct {
	in      atomic.Int64
	out     atomic.Int64
	inRate  *RateMeter
	outRate *RateMeter
}

// NewBandwidthCounter 创建带宽计数器，clk 为 nil 时使用系统时钟
func NewBandwidthCounter(clk clock.Clock) *BandwidthCounter {
	if clk == nil {
		clk = clock.New()
	}
	return &BandwidthCounter{
		clock:        clk,
		totalInRate:  NewRateMeter(clk),
		totalOutRate: NewRateMeter(clk),
		peers:        make(map[types.PeerID]*peerCounter),
	}
}

func (bwc *BandwidthCounter) peer(p types.PeerID) *peerCounter {
	bwc.peerMu.RLock()
	pc := bwc.peers[p]
	bwc.peerMu.RUnlock()
	if pc != nil {
		return pc
	}

	bwc.peerMu.Lock()
	defer bwc.peerMu.Unlock()
	if pc = bwc.peers[p]; pc == nil {
		pc = &peerCounter{inRate: NewRateMeter(bwc.clock), outRate: NewRateMeter(bwc.clock)}
		bwc.peers[p] = pc
	}
	return pc
}

// LogSent 记录发往 p 的字节数
func (bwc *BandwidthCounter) LogSent(p types.PeerID, n int64) {
	bwc.totalOut.Add(n)
	bwc.totalOutRate.Add(n)
	pc := bwc.peer(p)
	pc.out.Add(n)
	pc.outRate.Add(n)
}

// LogRecv 记录从 p 收到的字节数
func (bwc *BandwidthCounter) LogRecv(p types.PeerID, n int64) {
	bwc.totalIn.Add(n)
	bwc.totalInRate.Add(n)
	pc := bwc.peer(p)
	pc.in.Add(n)
	pc.inRate.Add(n)
}

// Totals 返回总带宽统计
func (bwc *BandwidthCounter) Totals() Stats {
	bwc.peerMu.RLock()
	peers := len(bwc.peers)
	bwc.peerMu.RUnlock()
	return Stats{
		TotalIn:  bwc.totalIn.Load(),
		TotalOut: bwc.totalOut.Load(),
		RateIn:   bwc.totalInRate.Rate(),
		RateOut:  bwc.totalOutRate.Rate(),
		Peers:    peers,
	}
}

// ForPeer 返回指定节点的带宽统计，未知节点返回零值
func (bwc *BandwidthCounter) ForPeer(p types.PeerID) Stats {
	bwc.peerMu.RLock()
	pc := bwc.peers[p]
	bwc.peerMu.RUnlock()
	if pc == nil {
		return Stats{}
	}
	return Stats{
		TotalIn:  pc.in.Load(),
		TotalOut: pc.out.Load(),
		RateIn:   pc.inRate.Rate(),
		RateOut:  pc.outRate.Rate(),
	}
}

// RemovePeer 清除节点统计（总量保留），bwc 为 nil 时为空操作
func (bwc *BandwidthCounter) RemovePeer(p types.PeerID) {
	if bwc == nil {
		return
	}
	bwc.peerMu.Lock()
	delete(bwc.peers, p)
	bwc.peerMu.Unlock()
}

// ============================================================================
//                              CountingConn
// ============================================================================

// CountingConn 在读写时累加带宽统计的连接包装
type CountingConn struct {
	net.Conn
	peer types.PeerID
	bwc  *BandwidthCounter
}

// WrapConn 包装连接，bwc 为 nil 时原样返回
func (bwc *BandwidthCounter) WrapConn(conn net.Conn, p types.PeerID) net.Conn {
	if bwc == nil {
		return conn
	}
	return &CountingConn{Conn: conn, peer: p, bwc: bwc}
}

// Read 读取并记录入站字节
func (c *CountingConn) Read(b []byte) (int, error) {
	n, err := c.Conn.Read(b)
	if n > 0 {
		c.bwc.LogRecv(c.peer, int64(n))
	}
	return n, err
}

// Write 写入并记录出站字节
func (c *CountingConn) Write(b []byte) (int, error) {
	n, err := c.Conn.Write(b)
	if n > 0 {
		c.bwc.LogSent(c.peer, int64(n))
	}
	return n, err
}
