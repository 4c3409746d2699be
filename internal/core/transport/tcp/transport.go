// Package tcp 提供基于 TCP 的传输层实现
package tcp

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync/atomic"
	"time"

	"github.com/dep2p/go-dat/pkg/lib/log"
)

var logger = log.Logger("transport/tcp")

// ErrTransportClosed 传输层已关闭
var ErrTransportClosed = errors.New("tcp transport closed")

// Config TCP 传输配置
type Config struct {
	// DialTimeout 拨号超时
	DialTimeout time.Duration

	// KeepAlive TCP keepalive 周期
	KeepAlive time.Duration
}

// DefaultConfig 返回默认配置
func DefaultConfig() Config {
	return Config{
		DialTimeout: 10 * time.Second,
		KeepAlive:   30 * time.Second,
	}
}

// ============================================================================
//                              Transport 实现
// ============================================================================

// Transport TCP 传输层
type Transport struct {
	config Config
	closed atomic.Bool
}

// NewTransport 创建 TCP 传输层
func NewTransport(config Config) *Transport {
	return &Transport{config: config}
}

// Dial 建立出站连接
func (t *Transport) Dial(ctx context.Context, addr string) (net.Conn, error) {
	if t.closed.Load() {
		return nil, ErrTransportClosed
	}

	dialer := &net.Dialer{
		Timeout:   t.config.DialTimeout,
		KeepAlive: t.config.KeepAlive,
	}
	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("连接 %s 失败: %w", addr, err)
	}
	if tcpConn, ok := conn.(*net.TCPConn); ok {
		_ = tcpConn.SetNoDelay(true)
	}
	logger.Debug("出站连接已建立", "addr", addr)
	return conn, nil
}

// Listen 在 addr 上监听
func (t *Transport) Listen(addr string) (*Listener, error) {
	if t.closed.Load() {
		return nil, ErrTransportClosed
	}
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("监听 %s 失败: %w", addr, err)
	}
	logger.Debug("开始监听", "addr", ln.Addr().String())
	return &Listener{Listener: ln}, nil
}

// Close 关闭传输层，之后的 Dial/Listen 返回 ErrTransportClosed
func (t *Transport) Close() error {
	t.closed.Store(true)
	return nil
}
