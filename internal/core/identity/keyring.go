package identity

import (
	"crypto/ed25519"
	"crypto/rand"
	"fmt"

	"github.com/dep2p/go-dat/pkg/types"
)

// Keyring 已解析的归档密钥材料
//
// Secret 为 nil 时为只读密钥环。
type Keyring struct {
	Key    types.ArchiveKey
	Secret ed25519.PrivateKey
}

// Writable 是否持有写入能力
func (k *Keyring) Writable() bool {
	return k != nil && len(k.Secret) == ed25519.PrivateKeySize
}

// PublicKey 返回 ed25519 公钥
func (k *Keyring) PublicKey() ed25519.PublicKey {
	return ed25519.PublicKey(k.Key.Bytes())
}

// Sign 使用归档私钥签名
func (k *Keyring) Sign(msg []byte) ([]byte, error) {
	if !k.Writable() {
		return nil, ErrNoSecret
	}
	return ed25519.Sign(k.Secret, msg), nil
}

// Verify 使用归档公钥验证签名
func (k *Keyring) Verify(msg, sig []byte) bool {
	if len(sig) != ed25519.SignatureSize {
		return false
	}
	return ed25519.Verify(k.PublicKey(), msg, sig)
}

// GenerateKeyring 生成新的可写密钥环
func GenerateKeyring() (*Keyring, error) {
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return nil, fmt.Errorf("生成归档密钥失败: %w", err)
	}
	key, err := types.ArchiveKeyFromBytes(pub)
	if err != nil {
		return nil, err
	}
	return &Keyring{Key: key, Secret: priv}, nil
}

// keyringFromSecret 由私钥构造密钥环并校验长度
func keyringFromSecret(secret ed25519.PrivateKey) (*Keyring, error) {
	if len(secret) != ed25519.PrivateKeySize {
		return nil, fmt.Errorf("secret key: expected %d bytes, got %d", ed25519.PrivateKeySize, len(secret))
	}
	pub, ok := secret.Public().(ed25519.PublicKey)
	if !ok {
		return nil, fmt.Errorf("secret key: unexpected public key type")
	}
	key, err := types.ArchiveKeyFromBytes(pub)
	if err != nil {
		return nil, err
	}
	s := make(ed25519.PrivateKey, len(secret))
	copy(s, secret)
	return &Keyring{Key: key, Secret: s}, nil
}
