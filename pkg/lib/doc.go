// Package lib 包含 go-dat 的通用基础库
//
// 子包：
//   - log: 基于 log/slog 的统一日志接口
package lib
