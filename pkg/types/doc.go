// Package types 定义 go-dat 的公共数据结构
//
// 这是整个系统的最底层包，不依赖任何其他 go-dat 内部包。
// 所有类型都是纯值类型，用于在各模块间传递数据。
//
// # 文件组织
//
//   - key.go     - ArchiveKey, DiscoveryKey
//   - peer.go    - PeerID
//   - events.go  - 会话事件（连接建立、连接断开）
//   - errors.go  - 公共错误定义
package types
