package types

import (
	"encoding/hex"
	"strings"

	"golang.org/x/crypto/blake2b"
)

// KeySize 归档密钥长度（ed25519 公钥）
const KeySize = 32

// LinkScheme 归档链接前缀
const LinkScheme = "dat://"

// discoveryNamespace 派生发现密钥使用的消息
var discoveryNamespace = []byte("hypercore")

// ============================================================================
//                              ArchiveKey - 归档标识
// ============================================================================

// ArchiveKey 归档的身份密钥
//
// 即归档签名密钥对的 ed25519 公钥。创建后不可变更，
// 目录的元数据永久绑定到该密钥。
//
// 外部表示格式：
//   - String(): 64 个小写十六进制字符
//   - Link():   dat://<hex>
type ArchiveKey [KeySize]byte

// String 返回十六进制表示
func (k ArchiveKey) String() string {
	return hex.EncodeToString(k[:])
}

// ShortString 返回十六进制前 8 个字符，用于日志
func (k ArchiveKey) ShortString() string {
	return k.String()[:8]
}

// Link 返回 dat:// 链接形式
func (k ArchiveKey) Link() string {
	return LinkScheme + k.String()
}

// Bytes 返回密钥的字节切片副本
func (k ArchiveKey) Bytes() []byte {
	b := make([]byte, KeySize)
	copy(b, k[:])
	return b
}

// Equal 比较两个密钥是否相等
func (k ArchiveKey) Equal(other ArchiveKey) bool {
	return k == other
}

// IsZero 是否为全零密钥
func (k ArchiveKey) IsZero() bool {
	return k == ArchiveKey{}
}

// DiscoveryKey 派生发现密钥
//
// 计算方式为 BLAKE2b-256(key=archiveKey, "hypercore")。
// 发现层只公告发现密钥，归档密钥本身从不出现在网络上。
func (k ArchiveKey) DiscoveryKey() DiscoveryKey {
	h, err := blake2b.New256(k[:])
	if err != nil {
		// 32 字节密钥不会超过 blake2b 的 64 字节上限
		panic(err)
	}
	h.Write(discoveryNamespace)
	var dk DiscoveryKey
	copy(dk[:], h.Sum(nil))
	return dk
}

// MarshalText 实现 encoding.TextMarshaler
func (k ArchiveKey) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// UnmarshalText 实现 encoding.TextUnmarshaler
func (k *ArchiveKey) UnmarshalText(text []byte) error {
	parsed, err := ParseArchiveKey(string(text))
	if err != nil {
		return err
	}
	*k = parsed
	return nil
}

// ArchiveKeyFromBytes 从字节切片创建 ArchiveKey
func ArchiveKeyFromBytes(b []byte) (ArchiveKey, error) {
	var k ArchiveKey
	if len(b) != KeySize {
		return k, ErrInvalidKey
	}
	copy(k[:], b)
	return k, nil
}

// ParseArchiveKey 解析文本形式的密钥
//
// 接受 64 个十六进制字符（大小写不敏感），可带 dat:// 前缀。
func ParseArchiveKey(s string) (ArchiveKey, error) {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, LinkScheme)
	s = strings.TrimSuffix(s, "/")
	b, err := hex.DecodeString(s)
	if err != nil {
		return ArchiveKey{}, ErrInvalidKey
	}
	return ArchiveKeyFromBytes(b)
}

// ============================================================================
//                              DiscoveryKey
// ============================================================================

// DiscoveryKey 发现密钥，用作 swarm 的主题
type DiscoveryKey [32]byte

// String 返回十六进制表示
func (d DiscoveryKey) String() string {
	return hex.EncodeToString(d[:])
}

// ShortString 返回前 8 个字符
func (d DiscoveryKey) ShortString() string {
	return d.String()[:8]
}
