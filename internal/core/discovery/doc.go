// Package discovery 汇集 go-dat 的节点发现实现
//
// 子包：
//   - memory：进程内注册表，多个节点在同一测试或进程中共享
//   - mdns：基于 hashicorp/mdns 的局域网发现
//
// 两者均实现 pkg/interfaces.Discovery，由 Node 通过选项注入。
package discovery
