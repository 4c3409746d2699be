package yamux

import (
	"context"
	"fmt"
	"io"
	"net"

	"github.com/hashicorp/yamux"
)

// Muxer 封装 yamux.Session
type Muxer struct {
	session  *yamux.Session
	isServer bool
}

// NewServer 以服务端身份在 conn 上创建多路复用器
func NewServer(conn io.ReadWriteCloser, cfg *yamux.Config) (*Muxer, error) {
	return newMuxer(conn, cfg, true)
}

// NewClient 以客户端身份在 conn 上创建多路复用器
func NewClient(conn io.ReadWriteCloser, cfg *yamux.Config) (*Muxer, error) {
	return newMuxer(conn, cfg, false)
}

func newMuxer(conn io.ReadWriteCloser, cfg *yamux.Config, isServer bool) (*Muxer, error) {
	if conn == nil {
		return nil, fmt.Errorf("连接不能为 nil")
	}
	if cfg == nil {
		cfg = DefaultConfig()
	}

	var (
		session *yamux.Session
		err     error
	)
	if isServer {
		session, err = yamux.Server(conn, cfg)
	} else {
		session, err = yamux.Client(conn, cfg)
	}
	if err != nil {
		return nil, fmt.Errorf("创建 yamux session 失败: %w", err)
	}
	return &Muxer{session: session, isServer: isServer}, nil
}

// OpenStream 打开新流
//
// yamux 的 OpenStream 不支持 context，在单独的 goroutine 中执行，
// context 取消后打开成功的流会被关闭。
func (m *Muxer) OpenStream(ctx context.Context) (net.Conn, error) {
	type result struct {
		stream *yamux.Stream
		err    error
	}
	resultCh := make(chan result, 1)

	go func() {
		s, err := m.session.OpenStream()
		resultCh <- result{stream: s, err: err}
	}()

	select {
	case <-ctx.Done():
		go func() {
			if r := <-resultCh; r.stream != nil {
				_ = r.stream.Close()
			}
		}()
		return nil, ctx.Err()
	case r := <-resultCh:
		if r.err != nil {
			return nil, fmt.Errorf("创建流失败: %w", r.err)
		}
		return r.stream, nil
	}
}

// AcceptStream 接受对端打开的流，会话关闭时返回错误
func (m *Muxer) AcceptStream() (net.Conn, error) {
	s, err := m.session.AcceptStream()
	if err != nil {
		return nil, fmt.Errorf("接受流失败: %w", err)
	}
	return s, nil
}

// NumStreams 返回活跃流数量
func (m *Muxer) NumStreams() int {
	return m.session.NumStreams()
}

// IsClosed 是否已关闭
func (m *Muxer) IsClosed() bool {
	return m.session.IsClosed()
}

// CloseChan 会话关闭时该通道被关闭
func (m *Muxer) CloseChan() <-chan struct{} {
	return m.session.CloseChan()
}

// Close 关闭会话及底层连接
func (m *Muxer) Close() error {
	return m.session.Close()
}
