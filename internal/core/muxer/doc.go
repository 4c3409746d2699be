// Package muxer 提供连接上的流多路复用
//
// 每条对端连接在 Noise 安全通道之上运行一个 yamux 会话，
// 复制协议在会话上打开单个双向流。实现见子包 yamux。
package muxer
