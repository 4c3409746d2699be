// Package transport 提供对端连接的底层传输
//
// 目前只有 TCP 传输（子包 tcp）。传输只负责建立字节流，
// 加密认证由 security/noise 完成，多路复用由 muxer/yamux 完成。
package transport
