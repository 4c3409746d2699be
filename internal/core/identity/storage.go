package identity

import (
	"crypto/ed25519"
	"encoding/pem"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/dep2p/go-dat/pkg/types"
)

// PEM 类型常量
const (
	pemTypeArchiveKey    = "DAT ARCHIVE KEY"
	pemTypeArchiveSecret = "DAT ARCHIVE SECRET"
)

var errSecretNotFound = errors.New("secret not found")

// ============================================================================
//                              公钥持久化
// ============================================================================

// saveKeyPEM 保存归档公钥（0644）
func saveKeyPEM(path string, key types.ArchiveKey) error {
	data := pem.EncodeToMemory(&pem.Block{
		Type:  pemTypeArchiveKey,
		Bytes: key.Bytes(),
	})
	return atomicWriteFile(path, data, 0644)
}

// loadKeyPEM 加载归档公钥
func loadKeyPEM(path string) (types.ArchiveKey, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return types.ArchiveKey{}, fmt.Errorf("读取归档公钥失败: %w", err)
	}
	block, _ := pem.Decode(data)
	if block == nil || block.Type != pemTypeArchiveKey {
		return types.ArchiveKey{}, fmt.Errorf("%w: %s is not a %s block", ErrCorruptMetadata, filepath.Base(path), pemTypeArchiveKey)
	}
	key, err := types.ArchiveKeyFromBytes(block.Bytes)
	if err != nil {
		return types.ArchiveKey{}, fmt.Errorf("%w: key has %d bytes", ErrCorruptMetadata, len(block.Bytes))
	}
	return key, nil
}

// ============================================================================
//                              私钥持久化
// ============================================================================

// saveSecretPEM 保存归档私钥（0600，仅所有者读写）
func saveSecretPEM(path string, secret ed25519.PrivateKey) error {
	data := pem.EncodeToMemory(&pem.Block{
		Type:  pemTypeArchiveSecret,
		Bytes: secret,
	})
	return atomicWriteFile(path, data, 0600)
}

// loadSecretPEM 加载归档私钥，不存在时返回 errSecretNotFound
func loadSecretPEM(path string) (ed25519.PrivateKey, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, errSecretNotFound
		}
		return nil, fmt.Errorf("读取归档私钥失败: %w", err)
	}
	block, _ := pem.Decode(data)
	if block == nil || block.Type != pemTypeArchiveSecret {
		return nil, fmt.Errorf("%w: %s is not a %s block", ErrCorruptMetadata, filepath.Base(path), pemTypeArchiveSecret)
	}
	if len(block.Bytes) != ed25519.PrivateKeySize {
		return nil, fmt.Errorf("%w: secret has %d bytes", ErrCorruptMetadata, len(block.Bytes))
	}
	return ed25519.PrivateKey(block.Bytes), nil
}

// ============================================================================
//                              原子写操作
// ============================================================================

// atomicWriteFile 原子写文件
//
// 流程：同目录临时文件 → 写入 → Sync → Chmod → rename。
// 任何步骤失败时目标文件保持不变。
func atomicWriteFile(path string, data []byte, perm os.FileMode) error {
	tmpFile, err := os.CreateTemp(filepath.Dir(path), ".tmp-")
	if err != nil {
		return fmt.Errorf("创建临时文件失败: %w", err)
	}
	tmpPath := tmpFile.Name()

	success := false
	defer func() {
		if !success {
			_ = os.Remove(tmpPath)
		}
	}()

	if _, err := tmpFile.Write(data); err != nil {
		_ = tmpFile.Close()
		return fmt.Errorf("写入临时文件失败: %w", err)
	}
	if err := tmpFile.Sync(); err != nil {
		_ = tmpFile.Close()
		return fmt.Errorf("同步临时文件失败: %w", err)
	}
	if err := tmpFile.Chmod(perm); err != nil {
		_ = tmpFile.Close()
		return fmt.Errorf("设置文件权限失败: %w", err)
	}
	if err := tmpFile.Close(); err != nil {
		return fmt.Errorf("关闭临时文件失败: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("原子 rename 失败: %w", err)
	}

	success = true
	return nil
}
