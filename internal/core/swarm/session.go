package swarm

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/google/uuid"
	"github.com/hashicorp/golang-lru/v2/expirable"
	"go.uber.org/multierr"
	"golang.org/x/sync/errgroup"

	"github.com/dep2p/go-dat/internal/core/archive"
	"github.com/dep2p/go-dat/internal/core/eventbus"
	"github.com/dep2p/go-dat/internal/core/metrics"
	"github.com/dep2p/go-dat/internal/core/security/noise"
	"github.com/dep2p/go-dat/internal/core/transport/tcp"
	"github.com/dep2p/go-dat/pkg/interfaces"
	"github.com/dep2p/go-dat/pkg/lib/log"
	"github.com/dep2p/go-dat/pkg/types"
)

var logger = log.Logger("core/swarm")

// Session 一次网络加入
//
// 由 Manager.Join 创建，Close 后不可复用。
type Session struct {
	id     string
	topic  types.DiscoveryKey
	config Config
	clock  clock.Clock

	archive   *archive.Archive
	discovery interfaces.Discovery
	metrics   *metrics.Metrics

	security  *noise.Transport
	transport *tcp.Transport
	listener  *tcp.Listener
	addrs     []string

	bus              *eventbus.Bus
	emitConnected    *eventbus.Emitter
	emitDisconnected *eventbus.Emitter

	// backoff 拨号失败的地址，为 nil 时不退避
	backoff *expirable.LRU[string, struct{}]

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	// mu 保护连接集合、计数与关闭状态
	mu      sync.Mutex
	conns   map[types.PeerID]*PeerConn
	dialing map[types.PeerID]struct{}
	changed chan struct{}
	closed  bool

	done      chan struct{}
	closeOnce sync.Once
	closeErr  error
	onClose   func(*Session)
}

// sessionParams 创建会话所需的依赖
type sessionParams struct {
	config    Config
	clock     clock.Clock
	archive   *archive.Archive
	discovery interfaces.Discovery
	metrics   *metrics.Metrics
	backoff   *expirable.LRU[string, struct{}]
	onClose   func(*Session)
}

// newSession 创建会话：监听、通告并启动发现循环
func newSession(ctx context.Context, p sessionParams) (*Session, error) {
	sec, err := noise.New(p.archive.Key())
	if err != nil {
		return nil, err
	}

	bus := eventbus.NewBus()
	emitConnected, err := bus.Emitter(new(types.EvtPeerConnected))
	if err != nil {
		return nil, err
	}
	emitDisconnected, err := bus.Emitter(new(types.EvtPeerDisconnected))
	if err != nil {
		return nil, err
	}

	s := &Session{
		id:               uuid.NewString(),
		topic:            p.archive.Key().DiscoveryKey(),
		config:           p.config,
		clock:            p.clock,
		archive:          p.archive,
		discovery:        p.discovery,
		metrics:          p.metrics,
		security:         sec,
		transport:        tcp.NewTransport(tcp.Config{DialTimeout: p.config.DialTimeout, KeepAlive: 30 * time.Second}),
		bus:              bus,
		emitConnected:    emitConnected,
		emitDisconnected: emitDisconnected,
		backoff:          p.backoff,
		conns:            make(map[types.PeerID]*PeerConn),
		dialing:          make(map[types.PeerID]struct{}),
		changed:          make(chan struct{}),
		done:             make(chan struct{}),
		onClose:          p.onClose,
	}
	s.ctx, s.cancel = context.WithCancel(context.Background())

	ln, err := s.transport.Listen(p.config.ListenAddr)
	if err != nil {
		s.cancel()
		return nil, err
	}
	s.listener = ln
	s.addrs = ln.Addrs()

	self := interfaces.PeerInfo{ID: sec.LocalPeer(), Addrs: s.addrs}
	if err := s.discovery.Announce(ctx, s.topic, self); err != nil {
		s.cancel()
		_ = ln.Close()
		return nil, err
	}

	s.wg.Add(2)
	go s.acceptLoop()
	go s.lookupLoop()

	s.metrics.SessionOpened()
	logger.Info("已加入网络",
		"session", s.id,
		"peer", sec.LocalPeer().ShortString(),
		"topic", s.topic.ShortString(),
		"addrs", s.addrs)
	return s, nil
}

// ============================================================================
//                              查询
// ============================================================================

// ID 返回会话 ID
func (s *Session) ID() string {
	return s.id
}

// LocalPeer 返回本会话的 PeerID
func (s *Session) LocalPeer() types.PeerID {
	return s.security.LocalPeer()
}

// Topic 返回发现主题
func (s *Session) Topic() types.DiscoveryKey {
	return s.topic
}

// ListenAddrs 返回通告的监听地址
func (s *Session) ListenAddrs() []string {
	return append([]string(nil), s.addrs...)
}

// ConnectedCount 返回当前连接数
func (s *Session) ConnectedCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.conns)
}

// Connections 返回连接快照，按建立时间排序
func (s *Session) Connections() []ConnInfo {
	s.mu.Lock()
	conns := make([]*PeerConn, 0, len(s.conns))
	for _, c := range s.conns {
		conns = append(conns, c)
	}
	s.mu.Unlock()

	sort.Slice(conns, func(i, j int) bool { return conns[i].opened.Before(conns[j].opened) })
	out := make([]ConnInfo, len(conns))
	for i, c := range conns {
		out[i] = c.Info()
	}
	return out
}

// Done 会话关闭后被关闭的通道
func (s *Session) Done() <-chan struct{} {
	return s.done
}

// ============================================================================
//                              事件
// ============================================================================

// Subscribe 订阅连接事件
//
// 流中先是当前已建立连接的 EvtPeerConnected（按建立顺序），再接续后续事件。
// 会话关闭时流结束。调用方必须持续读取或 Close 订阅。
func (s *Session) Subscribe() (*eventbus.Subscription, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, ErrSessionClosed
	}

	conns := make([]*PeerConn, 0, len(s.conns))
	for _, c := range s.conns {
		conns = append(conns, c)
	}
	sort.Slice(conns, func(i, j int) bool { return conns[i].opened.Before(conns[j].opened) })
	replay := make([]interface{}, len(conns))
	for i, c := range conns {
		replay[i] = c.evt
	}
	return s.bus.SubscribeWithReplay(replay, new(types.EvtPeerConnected), new(types.EvtPeerDisconnected))
}

// OnConnection 注册连接建立回调，返回取消函数
//
// 回调在独立 goroutine 中按事件顺序调用，会话关闭或取消后停止。
func (s *Session) OnConnection(fn func(types.EvtPeerConnected)) (cancel func(), err error) {
	sub, err := s.Subscribe()
	if err != nil {
		return nil, err
	}
	go func() {
		for evt := range sub.Out() {
			if e, ok := evt.(types.EvtPeerConnected); ok {
				fn(e)
			}
		}
	}()
	return func() { _ = sub.Close() }, nil
}

// WaitConnected 阻塞直到连接数不少于 n
func (s *Session) WaitConnected(ctx context.Context, n int) error {
	for {
		s.mu.Lock()
		if len(s.conns) >= n {
			s.mu.Unlock()
			return nil
		}
		if s.closed {
			s.mu.Unlock()
			return ErrSessionClosed
		}
		changed := s.changed
		s.mu.Unlock()

		select {
		case <-changed:
		case <-s.done:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// notifyChangedLocked 唤醒 WaitConnected，调用方持有 s.mu
func (s *Session) notifyChangedLocked() {
	close(s.changed)
	s.changed = make(chan struct{})
}

// ============================================================================
//                              连接集合
// ============================================================================

// addConn 登记连接并发布事件
//
// 会话已关闭、已存在同一节点的连接或达到上限时返回 false，调用方负责关闭连接。
func (s *Session) addConn(c *PeerConn) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return false
	}
	if _, exists := s.conns[c.remote]; exists {
		logger.Debug("已存在连接，关闭重复连接", "peer", c.remote.ShortString(), "inbound", c.inbound)
		return false
	}
	if s.config.MaxPeers > 0 && len(s.conns) >= s.config.MaxPeers {
		logger.Debug("连接数已达上限", "peer", c.remote.ShortString(), "max", s.config.MaxPeers)
		return false
	}

	s.conns[c.remote] = c
	c.evt = types.EvtPeerConnected{
		SessionID:      s.id,
		Peer:           c.remote,
		RemoteAddr:     c.remoteAddr,
		Inbound:        c.inbound,
		ConnectedCount: len(s.conns),
		Timestamp:      c.opened,
	}
	s.notifyChangedLocked()
	s.metrics.PeerConnected(c.inbound)
	if err := s.emitConnected.Emit(c.evt); err != nil {
		logger.Debug("发布连接事件失败", "err", err)
	}

	logger.Info("连接已建立",
		"session", s.id,
		"peer", c.remote.ShortString(),
		"addr", c.remoteAddr,
		"inbound", c.inbound,
		"connected", len(s.conns))
	return true
}

// removeConn 移除连接并发布事件，连接不在集合中时为空操作
func (s *Session) removeConn(c *PeerConn) {
	s.mu.Lock()
	if cur, ok := s.conns[c.remote]; !ok || cur != c {
		s.mu.Unlock()
		return
	}
	delete(s.conns, c.remote)
	count := len(s.conns)
	s.notifyChangedLocked()
	s.metrics.PeerDisconnected()
	if err := s.emitDisconnected.Emit(types.EvtPeerDisconnected{
		SessionID:      s.id,
		Peer:           c.remote,
		ConnectedCount: count,
		Timestamp:      s.clock.Now(),
	}); err != nil {
		logger.Debug("发布断开事件失败", "err", err)
	}
	s.mu.Unlock()

	s.metrics.Bandwidth().RemovePeer(c.remote)
	logger.Info("连接已断开", "session", s.id, "peer", c.remote.ShortString(), "connected", count)
}

// ============================================================================
//                              关闭
// ============================================================================

// Close 关闭会话
//
// 重复调用返回第一次的结果。
func (s *Session) Close() error {
	s.closeOnce.Do(func() {
		s.closeErr = s.close()
	})
	return s.closeErr
}

func (s *Session) close() error {
	s.mu.Lock()
	s.closed = true
	s.notifyChangedLocked()
	conns := make([]*PeerConn, 0, len(s.conns))
	for _, c := range s.conns {
		conns = append(conns, c)
	}
	s.mu.Unlock()

	logger.Info("正在离开网络", "session", s.id, "connections", len(conns))

	// 1. 停止发现循环与进行中的拨号
	s.cancel()

	// 2. 撤销通告
	var err error
	ctx, cancel := context.WithTimeout(context.Background(), s.config.CloseTimeout)
	defer cancel()
	err = multierr.Append(err, s.discovery.Unannounce(ctx, s.topic, s.LocalPeer()))

	// 3. 关闭监听器
	if lerr := s.listener.Close(); lerr != nil && !isClosedConnErr(lerr) {
		err = multierr.Append(err, lerr)
	}

	// 4. 并发关闭所有连接
	var g errgroup.Group
	for _, c := range conns {
		c := c
		g.Go(func() error {
			if cerr := c.Close(); cerr != nil && !isClosedConnErr(cerr) {
				return cerr
			}
			return nil
		})
	}
	err = multierr.Append(err, g.Wait())

	// 5. 等待内部 goroutine 退出，之后不会再有连接登记或移除
	s.wg.Wait()
	_ = s.transport.Close()

	// 6. 结束事件流
	close(s.done)
	_ = s.bus.Close()

	s.metrics.SessionClosed()
	if s.onClose != nil {
		s.onClose(s)
	}

	logger.Info("已离开网络", "session", s.id)
	return err
}
