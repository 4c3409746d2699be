// Package swarm 管理归档的网络会话与对等连接
//
// Manager 由 fx 提供，每次 Join 创建一个 Session：
//
//	Session
//	  ├── tcp 监听与出站拨号
//	  ├── Noise XX 握手 + 归档能力证明（security/noise）
//	  ├── yamux 多路复用（muxer/yamux）
//	  ├── 每条连接一个复制流（protocol/replicate）
//	  └── 发现循环：按发现密钥通告本节点并定期查询
//
// # 连接规则
//
//   - 每对节点只保留一条连接：只有 PeerID 较小的一方拨号，
//     已连接节点的新入站连接被关闭
//   - 握手失败或能力证明不符的连接不计入连接数
//   - 拨号失败的地址在 DialBackoff 内不再尝试
//
// # 计数与事件
//
// 连接集合与计数由同一把锁保护。连接建立时先更新计数再发布
// types.EvtPeerConnected，断开时先更新计数再发布 types.EvtPeerDisconnected。
// Subscribe 返回的流会先补发当前已建立连接的事件，再接续后续事件，
// 会话关闭时流结束。
//
// # 关闭
//
// Close 停止发现循环、撤销通告、关闭监听器，并发关闭所有连接，
// 等待内部 goroutine 退出后结束事件流。不等待新连接。
package swarm
