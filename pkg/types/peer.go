package types

import (
	"bytes"
	"crypto/rand"

	"github.com/mr-tron/base58"
)

// PeerID 节点标识
//
// 每个网络会话生成一个随机的 Noise 静态密钥，PeerID 即该静态公钥。
// 在握手中由 Noise 认证，因此远端无法冒用他人的 PeerID。
type PeerID [32]byte

// EmptyPeerID 空节点标识
var EmptyPeerID PeerID

// String 返回 Base58 表示
func (id PeerID) String() string {
	if id.IsEmpty() {
		return ""
	}
	return base58.Encode(id[:])
}

// ShortString 返回 Base58 前 8 个字符，用于日志
func (id PeerID) ShortString() string {
	s := id.String()
	if len(s) > 8 {
		return s[:8]
	}
	return s
}

// Bytes 返回字节切片
func (id PeerID) Bytes() []byte {
	return id[:]
}

// IsEmpty 是否为空
func (id PeerID) IsEmpty() bool {
	return id == EmptyPeerID
}

// Less 按字节序比较
//
// 两个节点之间只由较小的一方主动拨号。
func (id PeerID) Less(other PeerID) bool {
	return bytes.Compare(id[:], other[:]) < 0
}

// PeerIDFromBytes 从字节切片创建 PeerID
func PeerIDFromBytes(b []byte) (PeerID, error) {
	var id PeerID
	if len(b) != len(id) {
		return EmptyPeerID, ErrInvalidPeerID
	}
	copy(id[:], b)
	return id, nil
}

// ParsePeerID 解析 Base58 字符串
func ParsePeerID(s string) (PeerID, error) {
	b, err := base58.Decode(s)
	if err != nil {
		return EmptyPeerID, ErrInvalidPeerID
	}
	return PeerIDFromBytes(b)
}

// RandomPeerID 生成随机 PeerID（测试用）
func RandomPeerID() PeerID {
	var id PeerID
	_, _ = rand.Read(id[:])
	return id
}
