package swarm

import (
	"errors"
	"fmt"
)

var (
	// ErrSessionClosed 会话已关闭
	ErrSessionClosed = errors.New("swarm: session closed")

	// ErrManagerClosed 管理器已停止
	ErrManagerClosed = errors.New("swarm: manager stopped")

	// ErrInvalidConfig 无效配置
	ErrInvalidConfig = errors.New("swarm: invalid config")

	// ErrNoDiscovery 未注入发现服务
	ErrNoDiscovery = errors.New("swarm: no discovery configured")

	// ErrNoAddresses 没有可用地址
	ErrNoAddresses = errors.New("swarm: no dialable addresses")
)

// DialError 拨号错误，包含每个地址的错误
type DialError struct {
	Peer   string
	Errors []error
}

func (e *DialError) Error() string {
	if len(e.Errors) == 0 {
		return fmt.Sprintf("failed to dial %s: unknown error", e.Peer)
	}
	if len(e.Errors) == 1 {
		return fmt.Sprintf("failed to dial %s: %v", e.Peer, e.Errors[0])
	}
	return fmt.Sprintf("failed to dial %s: %d errors: %v", e.Peer, len(e.Errors), e.Errors)
}

// Unwrap 返回全部错误
func (e *DialError) Unwrap() []error {
	return e.Errors
}
