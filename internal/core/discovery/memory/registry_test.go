package memory

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dep2p/go-dat/pkg/interfaces"
	"github.com/dep2p/go-dat/pkg/types"
)

func testTopic(b byte) types.DiscoveryKey {
	var k types.ArchiveKey
	for i := range k {
		k[i] = b
	}
	return k.DiscoveryKey()
}

func TestRegistry_AnnounceFind(t *testing.T) {
	ctx := context.Background()
	r := NewRegistry()
	topic := testTopic(1)

	a := types.RandomPeerID()
	b := types.RandomPeerID()
	require.NoError(t, r.Announce(ctx, topic, interfaces.PeerInfo{ID: a, Addrs: []string{"127.0.0.1:1000"}}))
	require.NoError(t, r.Announce(ctx, topic, interfaces.PeerInfo{ID: b, Addrs: []string{"127.0.0.1:2000"}}))

	peers, err := r.FindPeers(ctx, topic)
	require.NoError(t, err)
	require.Len(t, peers, 2)
	assert.True(t, peers[0].ID.Less(peers[1].ID))

	t.Run("主题隔离", func(t *testing.T) {
		other, err := r.FindPeers(ctx, testTopic(2))
		require.NoError(t, err)
		assert.Empty(t, other)
	})

	t.Run("重复通告覆盖地址", func(t *testing.T) {
		require.NoError(t, r.Announce(ctx, topic, interfaces.PeerInfo{ID: a, Addrs: []string{"127.0.0.1:3000"}}))
		peers, err := r.FindPeers(ctx, topic)
		require.NoError(t, err)
		require.Len(t, peers, 2)
		for _, p := range peers {
			if p.ID == a {
				assert.Equal(t, []string{"127.0.0.1:3000"}, p.Addrs)
			}
		}
	})
}

func TestRegistry_Unannounce(t *testing.T) {
	ctx := context.Background()
	r := NewRegistry()
	topic := testTopic(3)
	id := types.RandomPeerID()

	require.NoError(t, r.Unannounce(ctx, topic, id))
	require.NoError(t, r.Announce(ctx, topic, interfaces.PeerInfo{ID: id}))
	assert.Equal(t, 1, r.Topics())

	require.NoError(t, r.Unannounce(ctx, topic, id))
	peers, err := r.FindPeers(ctx, topic)
	require.NoError(t, err)
	assert.Empty(t, peers)
	assert.Equal(t, 0, r.Topics())
}

func TestRegistry_Errors(t *testing.T) {
	r := NewRegistry()
	topic := testTopic(4)

	err := r.Announce(context.Background(), topic, interfaces.PeerInfo{})
	assert.ErrorIs(t, err, types.ErrInvalidPeerID)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = r.FindPeers(ctx, topic)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestRegistry_ReturnsCopies(t *testing.T) {
	ctx := context.Background()
	r := NewRegistry()
	topic := testTopic(5)
	addrs := []string{"127.0.0.1:1"}
	require.NoError(t, r.Announce(ctx, topic, interfaces.PeerInfo{ID: types.RandomPeerID(), Addrs: addrs}))
	addrs[0] = "mutated"

	peers, err := r.FindPeers(ctx, topic)
	require.NoError(t, err)
	peers[0].Addrs[0] = "changed"

	again, err := r.FindPeers(ctx, topic)
	require.NoError(t, err)
	assert.Equal(t, "127.0.0.1:1", again[0].Addrs[0])
}
