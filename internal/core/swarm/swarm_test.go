package swarm

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dep2p/go-dat/internal/core/archive"
	"github.com/dep2p/go-dat/internal/core/discovery/memory"
	"github.com/dep2p/go-dat/internal/core/identity"
	"github.com/dep2p/go-dat/internal/core/storage"
	"github.com/dep2p/go-dat/pkg/interfaces"
	"github.com/dep2p/go-dat/pkg/types"
)

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.ListenAddr = "127.0.0.1:0"
	cfg.LookupInterval = 20 * time.Millisecond
	cfg.DialTimeout = 2 * time.Second
	cfg.HandshakeTimeout = 2 * time.Second
	cfg.CloseTimeout = 2 * time.Second
	cfg.DialBackoff = 0
	return cfg
}

func openArchive(t *testing.T, kr *identity.Keyring) *archive.Archive {
	t.Helper()
	cfg := storage.DefaultConfig(t.TempDir())
	cfg.GCInterval = 0
	a, err := archive.Open(kr, cfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = a.Close() })
	return a
}

func newManager(t *testing.T, a *archive.Archive, disc interfaces.Discovery) *Manager {
	t.Helper()
	m, err := NewManager(testConfig(), a, disc, nil, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = m.Close() })
	return m
}

func join(t *testing.T, m *Manager) *Session {
	t.Helper()
	s, err := m.Join(context.Background())
	require.NoError(t, err)
	return s
}

func waitCtx(t *testing.T) context.Context {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	t.Cleanup(cancel)
	return ctx
}

func nextEvent(t *testing.T, ch <-chan interface{}) interface{} {
	t.Helper()
	select {
	case evt, ok := <-ch:
		require.True(t, ok, "stream ended")
		return evt
	case <-time.After(10 * time.Second):
		t.Fatal("timed out waiting for event")
		return nil
	}
}

// ============================================================================
//                              配置
// ============================================================================

func TestConfig_Validate(t *testing.T) {
	require.NoError(t, DefaultConfig().Validate())

	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"empty listen addr", func(c *Config) { c.ListenAddr = "" }},
		{"zero dial timeout", func(c *Config) { c.DialTimeout = 0 }},
		{"zero lookup interval", func(c *Config) { c.LookupInterval = 0 }},
		{"negative max peers", func(c *Config) { c.MaxPeers = -1 }},
		{"tiny backoff", func(c *Config) { c.DialBackoff = time.Microsecond }},
		{"zero close timeout", func(c *Config) { c.CloseTimeout = 0 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(&cfg)
			assert.ErrorIs(t, cfg.Validate(), ErrInvalidConfig)
		})
	}
}

// ============================================================================
//                              管理器
// ============================================================================

func TestManager_JoinWithoutDiscovery(t *testing.T) {
	kr, err := identity.GenerateKeyring()
	require.NoError(t, err)
	m := newManager(t, openArchive(t, kr), nil)

	_, err = m.Join(context.Background())
	assert.ErrorIs(t, err, ErrNoDiscovery)
}

func TestManager_CloseClosesSessions(t *testing.T) {
	kr, err := identity.GenerateKeyring()
	require.NoError(t, err)
	reg := memory.NewRegistry()
	m := newManager(t, openArchive(t, kr), reg)

	s := join(t, m)
	assert.Equal(t, 1, m.Sessions())

	require.NoError(t, m.Close())
	select {
	case <-s.Done():
	default:
		t.Fatal("session not closed")
	}
	assert.Equal(t, 0, m.Sessions())

	_, err = m.Join(context.Background())
	assert.ErrorIs(t, err, ErrManagerClosed)

	peers, err := reg.FindPeers(context.Background(), kr.Key.DiscoveryKey())
	require.NoError(t, err)
	assert.Empty(t, peers)
}

// ============================================================================
//                              会话
// ============================================================================

func TestSession_JoinAnnounces(t *testing.T) {
	kr, err := identity.GenerateKeyring()
	require.NoError(t, err)
	reg := memory.NewRegistry()
	s := join(t, newManager(t, openArchive(t, kr), reg))

	assert.Equal(t, 0, s.ConnectedCount())
	assert.Empty(t, s.Connections())
	assert.NotEmpty(t, s.ID())
	assert.Equal(t, kr.Key.DiscoveryKey(), s.Topic())

	peers, err := reg.FindPeers(context.Background(), s.Topic())
	require.NoError(t, err)
	require.Len(t, peers, 1)
	assert.Equal(t, s.LocalPeer(), peers[0].ID)
	assert.Equal(t, s.ListenAddrs(), peers[0].Addrs)
}

func TestSession_ConnectsAndReplicates(t *testing.T) {
	kr, err := identity.GenerateKeyring()
	require.NoError(t, err)
	writer := openArchive(t, kr)
	mirror := openArchive(t, &identity.Keyring{Key: kr.Key})

	_, err = writer.Append("hello.txt", []byte("hello"))
	require.NoError(t, err)

	reg := memory.NewRegistry()
	sw := join(t, newManager(t, writer, reg))
	sm := join(t, newManager(t, mirror, reg))

	ctx := waitCtx(t)
	require.NoError(t, sw.WaitConnected(ctx, 1))
	require.NoError(t, sm.WaitConnected(ctx, 1))
	assert.Equal(t, 1, sw.ConnectedCount())
	assert.Equal(t, 1, sm.ConnectedCount())

	conns := sm.Connections()
	require.Len(t, conns, 1)
	assert.Equal(t, sw.LocalPeer(), conns[0].Peer)
	assert.NotEqual(t, conns[0].Inbound, sw.Connections()[0].Inbound)

	require.Eventually(t, func() bool { return mirror.Len() == 1 }, 10*time.Second, 10*time.Millisecond)
	data, err := mirror.ReadFile("hello.txt")
	require.NoError(t, err)
	assert.Equal(t, "hello", string(data))

	// 新写入的条目同步到已连接的镜像
	_, err = writer.Append("later.txt", []byte("later"))
	require.NoError(t, err)
	require.Eventually(t, func() bool { return mirror.Len() == 2 }, 10*time.Second, 10*time.Millisecond)
}

func TestSession_EventsFollowCount(t *testing.T) {
	kr, err := identity.GenerateKeyring()
	require.NoError(t, err)
	reg := memory.NewRegistry()

	sa := join(t, newManager(t, openArchive(t, kr), reg))
	sub, err := sa.Subscribe()
	require.NoError(t, err)
	defer sub.Close()

	mb := newManager(t, openArchive(t, &identity.Keyring{Key: kr.Key}), reg)
	sb := join(t, mb)

	evt := nextEvent(t, sub.Out())
	connected, ok := evt.(types.EvtPeerConnected)
	require.True(t, ok, "unexpected event %T", evt)
	assert.Equal(t, sb.LocalPeer(), connected.Peer)
	assert.Equal(t, sa.ID(), connected.SessionID)
	assert.Equal(t, 1, connected.ConnectedCount)
	assert.GreaterOrEqual(t, sa.ConnectedCount(), 1)

	require.NoError(t, sb.Close())

	evt = nextEvent(t, sub.Out())
	disconnected, ok := evt.(types.EvtPeerDisconnected)
	require.True(t, ok, "unexpected event %T", evt)
	assert.Equal(t, sb.LocalPeer(), disconnected.Peer)
	assert.Equal(t, 0, disconnected.ConnectedCount)
	assert.Equal(t, 0, sa.ConnectedCount())
}

func TestSession_SubscribeReplaysExisting(t *testing.T) {
	kr, err := identity.GenerateKeyring()
	require.NoError(t, err)
	reg := memory.NewRegistry()

	sa := join(t, newManager(t, openArchive(t, kr), reg))
	sb := join(t, newManager(t, openArchive(t, &identity.Keyring{Key: kr.Key}), reg))
	require.NoError(t, sa.WaitConnected(waitCtx(t), 1))

	sub, err := sa.Subscribe()
	require.NoError(t, err)
	defer sub.Close()

	evt := nextEvent(t, sub.Out())
	connected, ok := evt.(types.EvtPeerConnected)
	require.True(t, ok)
	assert.Equal(t, sb.LocalPeer(), connected.Peer)

	var calls atomic.Int32
	cancel, err := sa.OnConnection(func(types.EvtPeerConnected) { calls.Add(1) })
	require.NoError(t, err)
	defer cancel()
	require.Eventually(t, func() bool { return calls.Load() == 1 }, 5*time.Second, 10*time.Millisecond)
}

func TestSession_DifferentKeyNotCounted(t *testing.T) {
	krA, err := identity.GenerateKeyring()
	require.NoError(t, err)
	krB, err := identity.GenerateKeyring()
	require.NoError(t, err)
	reg := memory.NewRegistry()

	sa := join(t, newManager(t, openArchive(t, krA), reg))
	sb := join(t, newManager(t, openArchive(t, krB), reg))

	// 把 B 伪装成 A 主题下的节点，握手的能力证明必须拒绝它
	require.NoError(t, reg.Announce(context.Background(), sa.Topic(), interfaces.PeerInfo{
		ID:    sb.LocalPeer(),
		Addrs: sb.ListenAddrs(),
	}))

	time.Sleep(300 * time.Millisecond)
	assert.Equal(t, 0, sa.ConnectedCount())
	assert.Equal(t, 0, sb.ConnectedCount())
}

func TestSession_CloseEndsStream(t *testing.T) {
	kr, err := identity.GenerateKeyring()
	require.NoError(t, err)
	reg := memory.NewRegistry()
	s := join(t, newManager(t, openArchive(t, kr), reg))

	sub, err := s.Subscribe()
	require.NoError(t, err)

	first := s.Close()
	assert.Equal(t, first, s.Close())

	select {
	case _, ok := <-sub.Out():
		assert.False(t, ok)
	case <-time.After(5 * time.Second):
		t.Fatal("stream not ended")
	}

	_, err = s.Subscribe()
	assert.ErrorIs(t, err, ErrSessionClosed)
	assert.ErrorIs(t, s.WaitConnected(context.Background(), 1), ErrSessionClosed)
}

type countingDiscovery struct {
	interfaces.Discovery
	finds atomic.Int32
}

func (d *countingDiscovery) FindPeers(ctx context.Context, topic types.DiscoveryKey) ([]interfaces.PeerInfo, error) {
	d.finds.Add(1)
	return d.Discovery.FindPeers(ctx, topic)
}

func TestSession_LookupFollowsClock(t *testing.T) {
	kr, err := identity.GenerateKeyring()
	require.NoError(t, err)
	disc := &countingDiscovery{Discovery: memory.NewRegistry()}
	mock := clock.NewMock()

	cfg := testConfig()
	cfg.LookupInterval = time.Minute
	m, err := NewManager(cfg, openArchive(t, kr), disc, nil, mock)
	require.NoError(t, err)
	t.Cleanup(func() { _ = m.Close() })
	join(t, m)

	require.Eventually(t, func() bool { return disc.finds.Load() >= 1 }, 5*time.Second, 5*time.Millisecond)
	require.Eventually(t, func() bool {
		mock.Add(cfg.LookupInterval)
		return disc.finds.Load() >= 2
	}, 5*time.Second, 10*time.Millisecond)
}
