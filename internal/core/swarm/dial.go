package swarm

import (
	"context"
	"fmt"
	"net"

	"github.com/dep2p/go-dat/internal/core/muxer/yamux"
	"github.com/dep2p/go-dat/internal/core/protocol/replicate"
	"github.com/dep2p/go-dat/internal/core/security/noise"
	"github.com/dep2p/go-dat/pkg/interfaces"
)

// ============================================================================
//                              发现循环
// ============================================================================

// lookupLoop 立即查询一次，之后每 LookupInterval 查询一次
func (s *Session) lookupLoop() {
	defer s.wg.Done()

	s.lookup()

	ticker := s.clock.Ticker(s.config.LookupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.ctx.Done():
			return
		case <-ticker.C:
			s.lookup()
		}
	}
}

// lookup 查询发现服务并向 PeerID 更大的节点拨号
func (s *Session) lookup() {
	ctx, cancel := context.WithTimeout(s.ctx, s.config.DialTimeout)
	peers, err := s.discovery.FindPeers(ctx, s.topic)
	cancel()
	if err != nil {
		if s.ctx.Err() == nil {
			logger.Debug("发现查询失败", "session", s.id, "err", err)
		}
		return
	}

	local := s.LocalPeer()
	for _, p := range peers {
		// 每对节点只由较小的一方拨号
		if p.ID == local || !local.Less(p.ID) {
			continue
		}
		if !s.reserveDial(p) {
			continue
		}

		s.wg.Add(1)
		go func(p interfaces.PeerInfo) {
			defer s.wg.Done()
			defer s.releaseDial(p)
			if err := s.dialPeer(p); err != nil && s.ctx.Err() == nil {
				logger.Debug("拨号失败", "session", s.id, "peer", p.ID.ShortString(), "err", err)
			}
		}(p)
	}
}

// reserveDial 标记正在拨号，已连接、正在拨号或达到上限时返回 false
func (s *Session) reserveDial(p interfaces.PeerInfo) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return false
	}
	if _, ok := s.conns[p.ID]; ok {
		return false
	}
	if _, ok := s.dialing[p.ID]; ok {
		return false
	}
	if s.config.MaxPeers > 0 && len(s.conns)+len(s.dialing) >= s.config.MaxPeers {
		return false
	}
	s.dialing[p.ID] = struct{}{}
	return true
}

func (s *Session) releaseDial(p interfaces.PeerInfo) {
	s.mu.Lock()
	delete(s.dialing, p.ID)
	s.mu.Unlock()
}

// dialPeer 依次尝试节点的地址，第一个握手成功的连接被使用
func (s *Session) dialPeer(p interfaces.PeerInfo) error {
	var errs []error
	for _, addr := range p.Addrs {
		if s.backoff != nil {
			if _, ok := s.backoff.Get(addr); ok {
				continue
			}
		}

		sc, err := s.dialAddr(p, addr)
		if err != nil {
			if s.ctx.Err() != nil {
				return s.ctx.Err()
			}
			errs = append(errs, err)
			if s.backoff != nil {
				s.backoff.Add(addr, struct{}{})
			}
			continue
		}

		s.serve(sc, addr, false)
		return nil
	}

	if len(errs) == 0 {
		return ErrNoAddresses
	}
	return &DialError{Peer: p.ID.ShortString(), Errors: errs}
}

func (s *Session) dialAddr(p interfaces.PeerInfo, addr string) (*noise.Conn, error) {
	raw, err := s.transport.Dial(s.ctx, addr)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(s.ctx, s.config.HandshakeTimeout)
	defer cancel()
	sc, err := s.security.SecureOutbound(ctx, raw, p.ID)
	if err != nil {
		_ = raw.Close()
		return nil, fmt.Errorf("handshake with %s: %w", addr, err)
	}
	return sc, nil
}

// ============================================================================
//                              连接运行
// ============================================================================

// serve 在已认证连接上建立多路复用并运行复制，直到连接结束
//
// 入站方作为 yamux 服务端并接受复制流，出站方作为客户端并打开复制流。
func (s *Session) serve(sc *noise.Conn, addr string, inbound bool) {
	remote := sc.RemotePeer()
	conn := s.metrics.Bandwidth().WrapConn(sc, remote)

	var (
		mux *yamux.Muxer
		err error
	)
	if inbound {
		mux, err = yamux.NewServer(conn, nil)
	} else {
		mux, err = yamux.NewClient(conn, nil)
	}
	if err != nil {
		_ = sc.Close()
		logger.Debug("创建多路复用失败", "peer", remote.ShortString(), "err", err)
		return
	}

	pc := &PeerConn{
		remote:     remote,
		remoteAddr: addr,
		inbound:    inbound,
		opened:     s.clock.Now(),
		secured:    sc,
		mux:        mux,
	}
	if !s.addConn(pc) {
		_ = pc.Close()
		return
	}
	defer func() {
		_ = pc.Close()
		s.removeConn(pc)
	}()

	var stream net.Conn
	if inbound {
		stream, err = mux.AcceptStream()
	} else {
		stream, err = mux.OpenStream(s.ctx)
	}
	if err != nil {
		if s.ctx.Err() == nil {
			logger.Debug("打开复制流失败", "peer", remote.ShortString(), "err", err)
		}
		return
	}

	rep := replicate.New(s.archive, stream, remote)
	pc.setReplicator(rep)
	if err := rep.Run(s.ctx); err != nil {
		logger.Debug("复制结束", "session", s.id, "peer", remote.ShortString(), "err", err)
	}
}
