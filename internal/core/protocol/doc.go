// Package protocol 汇集节点间运行的应用协议
//
// 目前只有 replicate：在每条对等连接上同步归档日志。
package protocol
