// Package interfaces 定义 go-dat 对外部协作者的公共接口
//
// 目前包含节点发现（Discovery）。实现位于 internal/core/discovery/ 下，
// 由调用方按节点注入，不存在进程级共享实例。
package interfaces
