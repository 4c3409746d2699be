package noise

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"encoding/binary"
	"fmt"
	"io"
	"net"
	"time"

	"github.com/flynn/noise"
	"golang.org/x/crypto/blake2b"

	"github.com/dep2p/go-dat/pkg/lib/log"
	"github.com/dep2p/go-dat/pkg/types"
)

var logger = log.Logger("security/noise")

// ProtocolID 安全协议标识
const ProtocolID = "/dat/noise/1.0.0"

// 能力证明的角色前缀，防止反射
var (
	roleInitiator = []byte("dat-initiator")
	roleResponder = []byte("dat-responder")
)

var cipherSuite = noise.NewCipherSuite(noise.DH25519, noise.CipherChaChaPoly, noise.HashBLAKE2b)

// ============================================================================
//                              Transport
// ============================================================================

// Transport Noise 安全传输
type Transport struct {
	static noise.DHKey
	local  types.PeerID
	key    types.ArchiveKey
}

// New 为指定归档创建安全传输，生成新的静态密钥
func New(key types.ArchiveKey) (*Transport, error) {
	static, err := noise.DH25519.GenerateKeypair(rand.Reader)
	if err != nil {
		return nil, fmt.Errorf("generate static key: %w", err)
	}
	local, err := types.PeerIDFromBytes(static.Public)
	if err != nil {
		return nil, err
	}
	return &Transport{static: static, local: local, key: key}, nil
}

// LocalPeer 返回本地 PeerID
func (t *Transport) LocalPeer() types.PeerID {
	return t.local
}

// SecureInbound 作为响应者完成握手
func (t *Transport) SecureInbound(ctx context.Context, conn net.Conn) (*Conn, error) {
	return t.handshake(ctx, conn, false, types.EmptyPeerID)
}

// SecureOutbound 作为发起者完成握手，expected 非空时校验远端 PeerID
func (t *Transport) SecureOutbound(ctx context.Context, conn net.Conn, expected types.PeerID) (*Conn, error) {
	return t.handshake(ctx, conn, true, expected)
}

// handshake 执行 Noise XX 握手与能力证明交换
func (t *Transport) handshake(ctx context.Context, conn net.Conn, initiator bool, expected types.PeerID) (*Conn, error) {
	if deadline, ok := ctx.Deadline(); ok {
		if err := conn.SetDeadline(deadline); err != nil {
			return nil, err
		}
		defer func() { _ = conn.SetDeadline(time.Time{}) }()
	}
	// ctx 取消时关闭连接以打断阻塞的读写
	stop := context.AfterFunc(ctx, func() { _ = conn.Close() })
	defer stop()

	dk := t.key.DiscoveryKey()
	hs, err := noise.NewHandshakeState(noise.Config{
		CipherSuite:   cipherSuite,
		Pattern:       noise.HandshakeXX,
		Initiator:     initiator,
		Prologue:      dk[:],
		StaticKeypair: t.static,
	})
	if err != nil {
		return nil, fmt.Errorf("create handshake state: %w", err)
	}

	var sendCS, recvCS *noise.CipherState
	if initiator {
		sendCS, recvCS, err = clientHandshake(conn, hs)
	} else {
		sendCS, recvCS, err = serverHandshake(conn, hs)
	}
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("%w: %v", ErrInvalidHandshake, err)
	}

	remote, err := types.PeerIDFromBytes(hs.PeerStatic())
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidHandshake, err)
	}
	if !expected.IsEmpty() && remote != expected {
		return nil, fmt.Errorf("%w: expected %s, got %s", ErrPeerIDMismatch, expected.ShortString(), remote.ShortString())
	}

	sc := &Conn{
		Conn:       conn,
		sendCS:     sendCS,
		recvCS:     recvCS,
		localPeer:  t.local,
		remotePeer: remote,
	}

	if err := t.exchangeProof(sc, hs.ChannelBinding(), initiator); err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, err
	}

	logger.Debug("安全通道已建立", "remote", remote.ShortString(), "initiator", initiator)
	return sc, nil
}

// exchangeProof 交换能力证明：发起者先发送，响应者校验后再回复
func (t *Transport) exchangeProof(sc *Conn, binding []byte, initiator bool) error {
	localRole, remoteRole := roleInitiator, roleResponder
	if !initiator {
		localRole, remoteRole = roleResponder, roleInitiator
	}

	send := func() error {
		if _, err := sc.Write(capabilityProof(t.key, localRole, binding)); err != nil {
			return fmt.Errorf("send capability proof: %w", err)
		}
		return nil
	}
	verify := func() error {
		got := make([]byte, blake2b.Size256)
		if _, err := io.ReadFull(sc, got); err != nil {
			return fmt.Errorf("read capability proof: %w", err)
		}
		want := capabilityProof(t.key, remoteRole, binding)
		if subtle.ConstantTimeCompare(got, want) != 1 {
			return ErrCapabilityMismatch
		}
		return nil
	}

	if initiator {
		if err := send(); err != nil {
			return err
		}
		return verify()
	}
	if err := verify(); err != nil {
		return err
	}
	return send()
}

// capabilityProof 计算 BLAKE2b-256(key=archiveKey, role || binding)
func capabilityProof(key types.ArchiveKey, role, binding []byte) []byte {
	h, err := blake2b.New256(key[:])
	if err != nil {
		panic(err)
	}
	h.Write(role)
	h.Write(binding)
	return h.Sum(nil)
}

// ============================================================================
// 握手流程
// ============================================================================

// clientHandshake 发起者握手，返回 (发送, 接收) 密钥
func clientHandshake(conn net.Conn, hs *noise.HandshakeState) (*noise.CipherState, *noise.CipherState, error) {
	msg1, _, _, err := hs.WriteMessage(nil, nil)
	if err != nil {
		return nil, nil, fmt.Errorf("write message 1: %w", err)
	}
	if err := writeFrame(conn, msg1); err != nil {
		return nil, nil, fmt.Errorf("send message 1: %w", err)
	}

	msg2, err := readFrame(conn)
	if err != nil {
		return nil, nil, fmt.Errorf("receive message 2: %w", err)
	}
	if _, _, _, err := hs.ReadMessage(nil, msg2); err != nil {
		return nil, nil, fmt.Errorf("read message 2: %w", err)
	}

	msg3, cs1, cs2, err := hs.WriteMessage(nil, nil)
	if err != nil {
		return nil, nil, fmt.Errorf("write message 3: %w", err)
	}
	if err := writeFrame(conn, msg3); err != nil {
		return nil, nil, fmt.Errorf("send message 3: %w", err)
	}
	return cs1, cs2, nil
}

// serverHandshake 响应者握手，返回 (发送, 接收) 密钥
func serverHandshake(conn net.Conn, hs *noise.HandshakeState) (*noise.CipherState, *noise.CipherState, error) {
	msg1, err := readFrame(conn)
	if err != nil {
		return nil, nil, fmt.Errorf("receive message 1: %w", err)
	}
	if _, _, _, err := hs.ReadMessage(nil, msg1); err != nil {
		return nil, nil, fmt.Errorf("read message 1: %w", err)
	}

	msg2, _, _, err := hs.WriteMessage(nil, nil)
	if err != nil {
		return nil, nil, fmt.Errorf("write message 2: %w", err)
	}
	if err := writeFrame(conn, msg2); err != nil {
		return nil, nil, fmt.Errorf("send message 2: %w", err)
	}

	msg3, err := readFrame(conn)
	if err != nil {
		return nil, nil, fmt.Errorf("receive message 3: %w", err)
	}
	_, cs1, cs2, err := hs.ReadMessage(nil, msg3)
	if err != nil {
		return nil, nil, fmt.Errorf("read message 3: %w", err)
	}
	// 响应者方向与发起者相反
	return cs2, cs1, nil
}

// ============================================================================
// 帧编解码（2 字节长度 + 数据）
// ============================================================================

func writeFrame(w io.Writer, data []byte) error {
	buf := make([]byte, 2+len(data))
	binary.BigEndian.PutUint16(buf, uint16(len(data)))
	copy(buf[2:], data)
	_, err := w.Write(buf)
	return err
}

func readFrame(r io.Reader) ([]byte, error) {
	var lenBuf [2]byte
	if _, err := io.ReadFull(r, lenBuf[:]); err != nil {
		return nil, err
	}
	length := binary.BigEndian.Uint16(lenBuf[:])
	data := make([]byte, length)
	if _, err := io.ReadFull(r, data); err != nil {
		return nil, err
	}
	return data, nil
}
