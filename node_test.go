package dat

import (
	"context"
	"crypto/ed25519"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dep2p/go-dat/config"
	"github.com/dep2p/go-dat/internal/core/discovery/memory"
	"github.com/dep2p/go-dat/pkg/types"
)

func testNetworkConfig() NetworkConfig {
	cfg := DefaultNetworkConfig()
	cfg.ListenAddr = "127.0.0.1:0"
	cfg.LookupInterval = 20 * time.Millisecond
	cfg.DialBackoff = 0
	cfg.CloseTimeout = 2 * time.Second
	return cfg
}

// openTestNode 打开使用内存发现与回环地址的节点，测试结束时关闭
func openTestNode(t *testing.T, root string, reg *memory.Registry, opts ...Option) *Node {
	t.Helper()
	base := []Option{
		WithDiscovery(reg),
		WithNetworkConfig(testNetworkConfig()),
		WithMDNS(false),
	}
	n, err := Open(context.Background(), root, append(base, opts...)...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = n.Close() })
	return n
}

func zeroKeyHex() string {
	return "0000000000000000000000000000000000000000000000000000000000000000"
}

// ════════════════════════════════════════════════════════════════════════════
//                              打开
// ════════════════════════════════════════════════════════════════════════════

func TestOpen_NewArchiveIsWritable(t *testing.T) {
	root := filepath.Join(t.TempDir(), "archive")
	n := openTestNode(t, root, memory.NewRegistry())

	assert.True(t, n.Writable())
	assert.False(t, n.Key().IsZero())
	assert.Equal(t, root, n.Path())
	assert.Equal(t, StateOpen, n.State())
	assert.Equal(t, uint64(0), n.Version())

	_, err := os.Stat(filepath.Join(root, ".dat", "metadata.key"))
	assert.NoError(t, err)
}

func TestOpen_ErrorIfExists(t *testing.T) {
	root := t.TempDir()
	n := openTestNode(t, root, memory.NewRegistry())
	key := n.Key()
	require.NoError(t, n.Close())

	keyFile := filepath.Join(root, ".dat", "metadata.key")
	before, err := os.ReadFile(keyFile)
	require.NoError(t, err)

	_, err = Open(context.Background(), root, WithErrorIfExists(true))
	assert.ErrorIs(t, err, ErrAlreadyExists)

	after, err := os.ReadFile(keyFile)
	require.NoError(t, err)
	assert.Equal(t, before, after)

	reopened := openTestNode(t, root, memory.NewRegistry())
	assert.Equal(t, key, reopened.Key())
	assert.True(t, reopened.Writable())
}

func TestOpen_InvalidPath(t *testing.T) {
	_, err := Open(context.Background(), "/non/existing/folder/")
	assert.ErrorIs(t, err, ErrInvalidPath)

	file := filepath.Join(t.TempDir(), "file")
	require.NoError(t, os.WriteFile(file, []byte("x"), 0644))
	_, err = Open(context.Background(), file)
	assert.ErrorIs(t, err, ErrInvalidPath)
}

func TestOpen_SuppliedZeroKey(t *testing.T) {
	n := openTestNode(t, t.TempDir(), memory.NewRegistry(), WithKeyString(zeroKeyHex()))
	assert.Equal(t, types.ArchiveKey{}, n.Key())
	assert.False(t, n.Writable())

	other := openTestNode(t, t.TempDir(), memory.NewRegistry())
	assert.NotEqual(t, types.ArchiveKey{}, other.Key())
	assert.NotEqual(t, n.Key(), other.Key())
}

func TestOpen_WritableOnlyWithSecret(t *testing.T) {
	pub, priv, err := ed25519.GenerateKey(nil)
	require.NoError(t, err)
	key, err := types.ArchiveKeyFromBytes(pub)
	require.NoError(t, err)

	owner := openTestNode(t, t.TempDir(), memory.NewRegistry(), WithKey(key), WithSecretKey(priv))
	assert.True(t, owner.Writable())

	mirror := openTestNode(t, t.TempDir(), memory.NewRegistry(), WithKey(key))
	assert.False(t, mirror.Writable())
	assert.Equal(t, owner.Key(), mirror.Key())

	assert.ErrorIs(t, mirror.WriteFile("a.txt", []byte("a")), ErrReadOnly)
}

func TestOpen_KeyMismatch(t *testing.T) {
	root := t.TempDir()
	n := openTestNode(t, root, memory.NewRegistry())
	require.NoError(t, n.Close())

	_, err := Open(context.Background(), root, WithKeyString(zeroKeyHex()))
	assert.ErrorIs(t, err, ErrKeyMismatch)
}

func TestOpen_ReopenWithSameKey(t *testing.T) {
	root := t.TempDir()
	hex := "6161616161616161616161616161616161616161616161616161616161616161"

	var keys []types.ArchiveKey
	for i := 0; i < 2; i++ {
		n, err := Open(context.Background(), root, WithKeyString(hex), WithMDNS(false))
		require.NoError(t, err)
		keys = append(keys, n.Key())
		require.NoError(t, n.Close())
	}
	assert.Equal(t, keys[0], keys[1])
	assert.Equal(t, hex, keys[0].String())
}

func TestOpen_Temp(t *testing.T) {
	root := t.TempDir()
	n, err := Open(context.Background(), root, WithTemp(true), WithMDNS(false))
	require.NoError(t, err)

	assert.NotEqual(t, root, n.Path())
	_, err = os.Stat(n.Path())
	require.NoError(t, err)
	_, err = os.Stat(filepath.Join(root, ".dat"))
	assert.True(t, os.IsNotExist(err), "temp node must not touch root")

	path := n.Path()
	require.NoError(t, n.Close())
	_, err = os.Stat(path)
	assert.True(t, os.IsNotExist(err))
}

func TestOpen_InvalidOptions(t *testing.T) {
	_, err := Open(context.Background(), t.TempDir(), WithSecretKey([]byte("short")))
	assert.ErrorIs(t, err, ErrInvalidOption)

	_, err = Open(context.Background(), t.TempDir(), WithKeyString("not-hex"))
	assert.ErrorIs(t, err, types.ErrInvalidKey)

	cfg := DefaultNetworkConfig()
	cfg.DialTimeout = 0
	_, err = Open(context.Background(), t.TempDir(), WithNetworkConfig(cfg))
	assert.ErrorIs(t, err, ErrInvalidOption)
}

func TestOpen_WithConfig(t *testing.T) {
	cfg := config.NewConfig()
	cfg.Network.ListenAddr = "127.0.0.1:0"
	cfg.Network.MaxPeers = 3
	cfg.Discovery.MDNS.Enabled = false

	o := DefaultOptions()
	require.NoError(t, o.apply([]Option{WithConfig(cfg)}))
	assert.Equal(t, "127.0.0.1:0", o.Network.ListenAddr)
	assert.Equal(t, 3, o.Network.MaxPeers)
	assert.False(t, o.EnableMDNS)

	// 未注入发现服务且禁用 mDNS 时无法加入网络
	n, err := Open(context.Background(), t.TempDir(), WithConfig(cfg))
	require.NoError(t, err)
	defer n.Close()
	_, err = n.JoinNetwork(context.Background())
	assert.ErrorIs(t, err, ErrNoDiscovery)
}

// ════════════════════════════════════════════════════════════════════════════
//                              文件
// ════════════════════════════════════════════════════════════════════════════

func TestNode_Files(t *testing.T) {
	n := openTestNode(t, t.TempDir(), memory.NewRegistry())

	require.NoError(t, n.WriteFile("b.txt", []byte("b")))
	require.NoError(t, n.WriteFile("a.txt", []byte("a1")))
	require.NoError(t, n.WriteFile("a.txt", []byte("a2")))
	assert.Equal(t, uint64(3), n.Version())

	data, err := n.ReadFile("a.txt")
	require.NoError(t, err)
	assert.Equal(t, "a2", string(data))

	files, err := n.Files()
	require.NoError(t, err)
	require.Len(t, files, 2)
	assert.Equal(t, "a.txt", files[0].Name)
	assert.Equal(t, "b.txt", files[1].Name)

	_, err = n.ReadFile("missing.txt")
	assert.ErrorIs(t, err, ErrFileNotFound)
}

func TestNode_FilesPersistAcrossReopen(t *testing.T) {
	root := t.TempDir()
	n, err := Open(context.Background(), root, WithMDNS(false))
	require.NoError(t, err)
	require.NoError(t, n.WriteFile("keep.txt", []byte("kept")))
	require.NoError(t, n.Close())

	reopened := openTestNode(t, root, memory.NewRegistry())
	data, err := reopened.ReadFile("keep.txt")
	require.NoError(t, err)
	assert.Equal(t, "kept", string(data))
	assert.Equal(t, uint64(1), reopened.Version())
}

// ════════════════════════════════════════════════════════════════════════════
//                              关闭
// ════════════════════════════════════════════════════════════════════════════

func TestClose_SecondCallFails(t *testing.T) {
	n, err := Open(context.Background(), t.TempDir(), WithMDNS(false))
	require.NoError(t, err)

	require.NoError(t, n.Close())
	assert.Equal(t, StateClosed, n.State())
	assert.ErrorIs(t, n.Close(), ErrAlreadyClosed)
	assert.ErrorIs(t, n.Close(), ErrAlreadyClosed)
}

func TestClose_ConcurrentCalls(t *testing.T) {
	n, err := Open(context.Background(), t.TempDir(), WithMDNS(false))
	require.NoError(t, err)

	const callers = 8
	errs := make([]error, callers)
	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			errs[i] = n.Close()
		}(i)
	}
	wg.Wait()

	var succeeded int
	for _, err := range errs {
		if err == nil {
			succeeded++
			continue
		}
		assert.ErrorIs(t, err, ErrAlreadyClosed)
	}
	assert.Equal(t, 1, succeeded)

	select {
	case <-n.Done():
	default:
		t.Fatal("done channel not closed")
	}
}

func TestClose_OperationsAfterClose(t *testing.T) {
	n, err := Open(context.Background(), t.TempDir(), WithMDNS(false))
	require.NoError(t, err)
	require.NoError(t, n.Close())

	_, err = n.JoinNetwork(context.Background())
	assert.ErrorIs(t, err, ErrNodeClosed)
	assert.ErrorIs(t, n.Leave(context.Background()), ErrNodeClosed)
	assert.ErrorIs(t, n.WriteFile("a", []byte("a")), ErrNodeClosed)
	_, err = n.ReadFile("a")
	assert.ErrorIs(t, err, ErrNodeClosed)
	_, err = n.Files()
	assert.ErrorIs(t, err, ErrNodeClosed)
}

func TestNode_MetricsRegistered(t *testing.T) {
	reg := prometheus.NewRegistry()
	n, err := Open(context.Background(), t.TempDir(), WithMDNS(false), WithMetrics(reg))
	require.NoError(t, err)

	require.NoError(t, n.WriteFile("a.txt", []byte("a")))
	count, err := testutil.GatherAndCount(reg, "dat_archive_entries")
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	require.NoError(t, n.Close())
	count, err = testutil.GatherAndCount(reg, "dat_archive_entries")
	require.NoError(t, err)
	assert.Equal(t, 0, count)
}

// TestNode_MetricsSharedRegistry 测试多个节点共用一个 Registerer
func TestNode_MetricsSharedRegistry(t *testing.T) {
	reg := prometheus.NewRegistry()
	discovery := memory.NewRegistry()

	a := openTestNode(t, t.TempDir(), discovery, WithMetrics(reg))
	b := openTestNode(t, t.TempDir(), discovery, WithMetrics(reg))
	mirror := openTestNode(t, t.TempDir(), discovery, WithKey(a.Key()), WithMetrics(reg))
	assert.NotEqual(t, a.Key(), b.Key())
	assert.Equal(t, a.Key(), mirror.Key())

	count, err := testutil.GatherAndCount(reg, "dat_archive_entries")
	require.NoError(t, err)
	assert.Equal(t, 3, count)

	require.NoError(t, b.Close())
	count, err = testutil.GatherAndCount(reg, "dat_archive_entries")
	require.NoError(t, err)
	assert.Equal(t, 2, count)
}

// failingRegisterer 拒绝所有注册，使节点启动失败
type failingRegisterer struct{}

func (failingRegisterer) Register(prometheus.Collector) error {
	return errors.New("registry unavailable")
}

func (failingRegisterer) MustRegister(...prometheus.Collector) {
	panic("registry unavailable")
}

func (failingRegisterer) Unregister(prometheus.Collector) bool {
	return false
}

// TestOpen_FailedStartLeavesNothing 测试启动失败时撤销本次新建的归档
func TestOpen_FailedStartLeavesNothing(t *testing.T) {
	opts := []Option{WithMDNS(false), WithMetrics(failingRegisterer{})}

	t.Run("created root", func(t *testing.T) {
		root := filepath.Join(t.TempDir(), "archive")
		_, err := Open(context.Background(), root, opts...)
		require.Error(t, err)

		_, err = os.Stat(root)
		assert.True(t, os.IsNotExist(err))
	})

	t.Run("existing empty root", func(t *testing.T) {
		root := t.TempDir()
		_, err := Open(context.Background(), root, opts...)
		require.Error(t, err)

		exists, err := Exists(root)
		require.NoError(t, err)
		assert.False(t, exists)
		_, err = os.Stat(filepath.Join(root, ".dat"))
		assert.True(t, os.IsNotExist(err))

		n, err := Open(context.Background(), root, WithMDNS(false), WithErrorIfExists(true))
		require.NoError(t, err)
		assert.True(t, n.Writable())
		require.NoError(t, n.Close())
	})

	t.Run("existing archive kept", func(t *testing.T) {
		root := t.TempDir()
		n, err := Open(context.Background(), root, WithMDNS(false))
		require.NoError(t, err)
		require.NoError(t, n.WriteFile("a.txt", []byte("a")))
		key := n.Key()
		require.NoError(t, n.Close())

		_, err = Open(context.Background(), root, opts...)
		require.Error(t, err)

		n, err = Open(context.Background(), root, WithMDNS(false))
		require.NoError(t, err)
		defer n.Close()
		assert.Equal(t, key, n.Key())
		assert.True(t, n.Writable())
		data, err := n.ReadFile("a.txt")
		require.NoError(t, err)
		assert.Equal(t, []byte("a"), data)
	})
}

func TestState_String(t *testing.T) {
	assert.Equal(t, "opening", StateOpening.String())
	assert.Equal(t, "open", StateOpen.String())
	assert.Equal(t, "closing", StateClosing.String())
	assert.Equal(t, "closed", StateClosed.String())
	assert.Equal(t, "unknown", State(42).String())
}
