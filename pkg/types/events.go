package types

import "time"

// ============================================================================
//                              会话事件
// ============================================================================

// EvtPeerConnected 对端连接建立事件
//
// 发布时会话的连接计数已经包含该连接，ConnectedCount 即发布时刻的计数。
type EvtPeerConnected struct {
	// SessionID 所属网络会话
	SessionID string
	// Peer 远端节点
	Peer PeerID
	// RemoteAddr 远端地址
	RemoteAddr string
	// Inbound 是否为入站连接
	Inbound bool
	// ConnectedCount 计入该连接后的连接数
	ConnectedCount int
	// Timestamp 建立时间
	Timestamp time.Time
}

// EvtPeerDisconnected 对端连接断开事件
//
// 发布时连接计数已经扣除该连接。
type EvtPeerDisconnected struct {
	SessionID      string
	Peer           PeerID
	ConnectedCount int
	Timestamp      time.Time
}
