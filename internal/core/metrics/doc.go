// Package metrics 提供节点级监控指标
//
// 两部分：
//   - BandwidthCounter：按节点统计对等连接的收发字节与速率，
//     由 CountingConn 在连接读写时累加
//   - Metrics：节点私有的 prometheus 指标集合，包括连接数、会话数、
//     归档条目数与累计字节数
//
// # 指标
//
//	dat_peers_connected          当前对等连接数
//	dat_sessions_active          当前网络会话数（0 或 1）
//	dat_connections_total        累计建立的连接数，按 direction 区分
//	dat_archive_entries          归档日志长度
//	dat_bytes_received_total     累计接收字节
//	dat_bytes_sent_total         累计发送字节
//
// 每个 Node 持有自己的 Metrics，只有在注入 prometheus.Registerer 时才注册。
// 节点通过带 archive/root 常量标签的包装注册器注册，同一注册器上的多个 Node 互不冲突。
package metrics
