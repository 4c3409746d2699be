package yamux

import (
	"context"
	"io"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func muxerPair(t *testing.T) (*Muxer, *Muxer) {
	t.Helper()
	c, s := net.Pipe()
	client, err := NewClient(c, nil)
	require.NoError(t, err)
	server, err := NewServer(s, nil)
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = client.Close()
		_ = server.Close()
	})
	return client, server
}

func TestMuxer_OpenAccept(t *testing.T) {
	client, server := muxerPair(t)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	accepted := make(chan net.Conn, 1)
	go func() {
		s, err := server.AcceptStream()
		if err == nil {
			accepted <- s
		}
	}()

	stream, err := client.OpenStream(ctx)
	require.NoError(t, err)
	_, err = stream.Write([]byte("ping"))
	require.NoError(t, err)

	var remote net.Conn
	select {
	case remote = <-accepted:
	case <-ctx.Done():
		t.Fatal("stream not accepted")
	}
	buf := make([]byte, 4)
	_, err = io.ReadFull(remote, buf)
	require.NoError(t, err)
	assert.Equal(t, "ping", string(buf))
}

func TestMuxer_Close(t *testing.T) {
	client, server := muxerPair(t)

	require.NoError(t, client.Close())
	assert.True(t, client.IsClosed())

	select {
	case <-server.CloseChan():
	case <-time.After(5 * time.Second):
		t.Fatal("remote session not closed")
	}
	_, err := server.AcceptStream()
	assert.Error(t, err)
}

func TestNewMuxer_NilConn(t *testing.T) {
	_, err := NewClient(nil, nil)
	assert.Error(t, err)
}
