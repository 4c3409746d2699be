package swarm

import (
	"context"
	"sync"

	"github.com/benbjohnson/clock"
	"github.com/hashicorp/golang-lru/v2/expirable"
	"go.uber.org/multierr"

	"github.com/dep2p/go-dat/internal/core/archive"
	"github.com/dep2p/go-dat/internal/core/metrics"
	"github.com/dep2p/go-dat/pkg/interfaces"
)

// backoffCacheSize 退避缓存容量
const backoffCacheSize = 1024

// Manager 会话管理器
//
// 每个节点一个，持有发现服务、退避缓存与所有活跃会话。
type Manager struct {
	config    Config
	clock     clock.Clock
	archive   *archive.Archive
	discovery interfaces.Discovery
	metrics   *metrics.Metrics
	backoff   *expirable.LRU[string, struct{}]

	mu       sync.Mutex
	sessions map[*Session]struct{}
	closed   bool
}

// NewManager 创建会话管理器
//
// discovery 为 nil 时 Join 返回 ErrNoDiscovery；clk 为 nil 时使用真实时钟。
func NewManager(config Config, a *archive.Archive, discovery interfaces.Discovery, m *metrics.Metrics, clk clock.Clock) (*Manager, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	if clk == nil {
		clk = clock.New()
	}

	mgr := &Manager{
		config:    config,
		clock:     clk,
		archive:   a,
		discovery: discovery,
		metrics:   m,
		sessions:  make(map[*Session]struct{}),
	}
	if config.DialBackoff > 0 {
		mgr.backoff = expirable.NewLRU[string, struct{}](backoffCacheSize, nil, config.DialBackoff)
	}
	return mgr, nil
}

// Join 加入归档的发现主题并开始建立连接
func (m *Manager) Join(ctx context.Context) (*Session, error) {
	if m.discovery == nil {
		return nil, ErrNoDiscovery
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return nil, ErrManagerClosed
	}

	s, err := newSession(ctx, sessionParams{
		config:    m.config,
		clock:     m.clock,
		archive:   m.archive,
		discovery: m.discovery,
		metrics:   m.metrics,
		backoff:   m.backoff,
		onClose:   m.forget,
	})
	if err != nil {
		return nil, err
	}
	m.sessions[s] = struct{}{}
	return s, nil
}

// Sessions 返回活跃会话数
func (m *Manager) Sessions() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}

func (m *Manager) forget(s *Session) {
	m.mu.Lock()
	delete(m.sessions, s)
	m.mu.Unlock()
}

// Close 关闭所有活跃会话，之后 Join 返回 ErrManagerClosed
func (m *Manager) Close() error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil
	}
	m.closed = true
	sessions := make([]*Session, 0, len(m.sessions))
	for s := range m.sessions {
		sessions = append(sessions, s)
	}
	m.mu.Unlock()

	var err error
	for _, s := range sessions {
		err = multierr.Append(err, s.Close())
	}
	if m.backoff != nil {
		m.backoff.Purge()
	}
	return err
}
