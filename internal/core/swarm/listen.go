package swarm

import (
	"context"
	"errors"
	"io"
	"net"
)

// acceptLoop 接受入站连接
func (s *Session) acceptLoop() {
	defer s.wg.Done()

	for {
		raw, err := s.listener.Accept()
		if err != nil {
			if s.ctx.Err() != nil || isClosedConnErr(err) {
				return
			}
			var ne net.Error
			if errors.As(err, &ne) && ne.Timeout() {
				continue
			}
			logger.Warn("接受连接失败，停止监听", "session", s.id, "err", err)
			return
		}

		s.wg.Add(1)
		go s.handleInbound(raw)
	}
}

// handleInbound 完成入站握手并运行连接
func (s *Session) handleInbound(raw net.Conn) {
	defer s.wg.Done()

	ctx, cancel := context.WithTimeout(s.ctx, s.config.HandshakeTimeout)
	sc, err := s.security.SecureInbound(ctx, raw)
	cancel()
	if err != nil {
		_ = raw.Close()
		logger.Debug("入站握手失败", "session", s.id, "remote", raw.RemoteAddr().String(), "err", err)
		return
	}
	if sc.RemotePeer() == s.LocalPeer() {
		_ = sc.Close()
		return
	}

	s.serve(sc, raw.RemoteAddr().String(), true)
}

func isClosedConnErr(err error) bool {
	return errors.Is(err, net.ErrClosed) || errors.Is(err, io.EOF) || errors.Is(err, io.ErrClosedPipe)
}
