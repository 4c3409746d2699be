package noise

import (
	"bytes"
	"context"
	"io"
	"net"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dep2p/go-dat/pkg/types"
)

func testKey(t *testing.T, hexByte string) types.ArchiveKey {
	t.Helper()
	k, err := types.ParseArchiveKey(strings.Repeat(hexByte, 32))
	require.NoError(t, err)
	return k
}

type result struct {
	conn *Conn
	err  error
}

// handshakePair 在 net.Pipe 上并发执行双方握手
func handshakePair(t *testing.T, client, server *Transport, expected types.PeerID) (result, result) {
	t.Helper()
	c, s := net.Pipe()
	t.Cleanup(func() {
		_ = c.Close()
		_ = s.Close()
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	srvCh := make(chan result, 1)
	go func() {
		conn, err := server.SecureInbound(ctx, s)
		if err != nil {
			_ = s.Close()
		}
		srvCh <- result{conn, err}
	}()
	conn, err := client.SecureOutbound(ctx, c, expected)
	if err != nil {
		_ = c.Close()
	}
	return result{conn, err}, <-srvCh
}

func TestHandshake_SameArchive(t *testing.T) {
	key := testKey(t, "61")
	client, err := New(key)
	require.NoError(t, err)
	server, err := New(key)
	require.NoError(t, err)

	cr, sr := handshakePair(t, client, server, server.LocalPeer())
	require.NoError(t, cr.err)
	require.NoError(t, sr.err)

	assert.Equal(t, server.LocalPeer(), cr.conn.RemotePeer())
	assert.Equal(t, client.LocalPeer(), sr.conn.RemotePeer())
	assert.Equal(t, client.LocalPeer(), cr.conn.LocalPeer())

	// 超过单帧上限的数据被拆分传输
	payload := bytes.Repeat([]byte("x"), 3*maxPlaintext+10)
	go func() {
		_, _ = cr.conn.Write(payload)
	}()
	got := make([]byte, len(payload))
	_, err = io.ReadFull(sr.conn, got)
	require.NoError(t, err)
	assert.Equal(t, payload, got)
}

func TestHandshake_DifferentArchive(t *testing.T) {
	client, err := New(testKey(t, "61"))
	require.NoError(t, err)
	server, err := New(testKey(t, "62"))
	require.NoError(t, err)

	cr, sr := handshakePair(t, client, server, types.EmptyPeerID)
	assert.Error(t, cr.err)
	assert.Error(t, sr.err)
}

func TestHandshake_PeerIDMismatch(t *testing.T) {
	key := testKey(t, "61")
	client, err := New(key)
	require.NoError(t, err)
	server, err := New(key)
	require.NoError(t, err)

	cr, _ := handshakePair(t, client, server, types.RandomPeerID())
	assert.ErrorIs(t, cr.err, ErrPeerIDMismatch)
}

func TestHandshake_ContextCanceled(t *testing.T) {
	client, err := New(testKey(t, "61"))
	require.NoError(t, err)

	c, s := net.Pipe()
	defer s.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	// 对端从不响应
	_, err = client.SecureOutbound(ctx, c, types.EmptyPeerID)
	assert.Error(t, err)
}

func TestCapabilityProof_RoleBound(t *testing.T) {
	key := testKey(t, "61")
	binding := []byte("binding")
	a := capabilityProof(key, roleInitiator, binding)
	b := capabilityProof(key, roleResponder, binding)
	assert.NotEqual(t, a, b)
	assert.Len(t, a, 32)
	assert.Equal(t, a, capabilityProof(key, roleInitiator, binding))
	assert.NotEqual(t, a, capabilityProof(testKey(t, "62"), roleInitiator, binding))
}
