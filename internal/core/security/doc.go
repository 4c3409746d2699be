// Package security 实现连接加密与认证
//
// 目前仅有 Noise 一种实现，见子包 noise。
package security
