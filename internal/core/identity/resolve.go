package identity

import (
	"crypto/ed25519"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/dep2p/go-dat/pkg/lib/log"
	"github.com/dep2p/go-dat/pkg/types"
)

var logger = log.Logger("core/identity")

// 元数据布局
const (
	MetadataDirName = ".dat"
	keyFileName     = "metadata.key"
	secretFileName  = "metadata.secret"
	contentDirName  = "content.db"
)

// ResolveOptions 密钥解析选项
type ResolveOptions struct {
	// Key 调用方提供的归档密钥，nil 表示未提供
	Key *types.ArchiveKey

	// Secret 与 Key 配套的私钥；只提供 Secret 时由其派生 Key
	Secret ed25519.PrivateKey

	// ErrorIfExists 归档已存在时返回 ErrAlreadyExists
	ErrorIfExists bool
}

// MetadataDir 返回 <root>/.dat
func MetadataDir(root string) string {
	return filepath.Join(root, MetadataDirName)
}

// ContentDir 返回归档内容数据库目录
func ContentDir(root string) string {
	return filepath.Join(root, MetadataDirName, contentDirName)
}

func keyPath(root string) string {
	return filepath.Join(root, MetadataDirName, keyFileName)
}

func secretPath(root string) string {
	return filepath.Join(root, MetadataDirName, secretFileName)
}

// ============================================================================
//                              根目录校验
// ============================================================================

// CheckRoot 校验根目录可用，不做任何修改
//
// root 存在时必须是目录；不存在时其父目录必须存在且为目录。
func CheckRoot(root string) error {
	if root == "" {
		return fmt.Errorf("%w: empty path", ErrInvalidPath)
	}
	info, err := os.Stat(root)
	if err == nil {
		if !info.IsDir() {
			return fmt.Errorf("%w: %s is not a directory", ErrInvalidPath, root)
		}
		return nil
	}
	if !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("%w: %v", ErrInvalidPath, err)
	}
	parent := filepath.Dir(filepath.Clean(root))
	pinfo, err := os.Stat(parent)
	if err != nil || !pinfo.IsDir() {
		return fmt.Errorf("%w: parent of %s does not exist", ErrInvalidPath, root)
	}
	return nil
}

// PrepareRoot 校验根目录并在需要时创建它
//
// created 报告根目录是否由本次调用创建。
func PrepareRoot(root string) (created bool, err error) {
	if err := CheckRoot(root); err != nil {
		return false, err
	}
	if err := os.Mkdir(root, 0755); err != nil {
		if errors.Is(err, os.ErrExist) {
			return false, nil
		}
		return false, fmt.Errorf("%w: %v", ErrInvalidPath, err)
	}
	return true, nil
}

// RemoveMetadata 删除 root 下的元数据目录（含内容数据库）
//
// 用于撤销一次未完成打开所新建的归档，目录不存在时返回 nil。
func RemoveMetadata(root string) error {
	if err := os.RemoveAll(MetadataDir(root)); err != nil {
		return fmt.Errorf("删除元数据目录失败: %w", err)
	}
	return nil
}

// Exists 判断 root 下是否已有归档
func Exists(root string) (bool, error) {
	_, err := os.Stat(keyPath(root))
	if err == nil {
		return true, nil
	}
	if errors.Is(err, os.ErrNotExist) {
		return false, nil
	}
	return false, err
}

// ============================================================================
//                              密钥解析
// ============================================================================

// Resolve 解析归档密钥与写入能力
//
// root 必须已通过 PrepareRoot。已存在的归档只读取元数据，
// 新归档持久化私钥后再写入公钥标记，标记文件存在时能力总是可确定的。
// created 报告元数据是否由本次调用写入。
func Resolve(root string, opts ResolveOptions) (kr *Keyring, created bool, err error) {
	supplied, err := suppliedKeyring(opts)
	if err != nil {
		return nil, false, err
	}

	exists, err := Exists(root)
	if err != nil {
		return nil, false, fmt.Errorf("检查归档元数据失败: %w", err)
	}
	if exists {
		if opts.ErrorIfExists {
			return nil, false, ErrAlreadyExists
		}
		kr, err = loadExisting(root, supplied)
		return kr, false, err
	}

	kr = supplied
	if kr == nil {
		kr, err = GenerateKeyring()
		if err != nil {
			return nil, false, err
		}
		logger.Debug("生成新的归档密钥", "key", kr.Key.ShortString())
	}

	if err := persist(root, kr); err != nil {
		// 公钥标记原子写入，失败时只可能残留私钥
		_ = os.Remove(secretPath(root))
		return nil, false, err
	}
	logger.Info("归档已创建", "key", kr.Key.ShortString(), "writable", kr.Writable())
	return kr, true, nil
}

// suppliedKeyring 合并调用方提供的 Key 与 Secret
func suppliedKeyring(opts ResolveOptions) (*Keyring, error) {
	if len(opts.Secret) > 0 {
		kr, err := keyringFromSecret(opts.Secret)
		if err != nil {
			return nil, err
		}
		if opts.Key != nil && *opts.Key != kr.Key {
			return nil, fmt.Errorf("%w: secret does not match supplied key", ErrKeyMismatch)
		}
		return kr, nil
	}
	if opts.Key != nil {
		return &Keyring{Key: *opts.Key}, nil
	}
	return nil, nil
}

// loadExisting 加载已持久化的密钥并与调用方提供的密钥比对
func loadExisting(root string, supplied *Keyring) (*Keyring, error) {
	key, err := loadKeyPEM(keyPath(root))
	if err != nil {
		return nil, err
	}
	if supplied != nil && supplied.Key != key {
		return nil, fmt.Errorf("%w: persisted %s, supplied %s", ErrKeyMismatch, key.ShortString(), supplied.Key.ShortString())
	}

	kr := &Keyring{Key: key}
	secret, err := loadSecretPEM(secretPath(root))
	switch {
	case errors.Is(err, errSecretNotFound):
	case err != nil:
		return nil, err
	default:
		if !secretMatches(secret, key) {
			return nil, fmt.Errorf("%w: secret does not match key", ErrCorruptMetadata)
		}
		kr.Secret = secret
	}

	// 已持久化的归档没有私钥时，接受调用方提供的匹配私钥
	if !kr.Writable() && supplied.Writable() {
		kr.Secret = supplied.Secret
	}

	logger.Debug("已加载归档密钥", "key", key.ShortString(), "writable", kr.Writable())
	return kr, nil
}

// persist 写入元数据：先私钥，后公钥标记
func persist(root string, kr *Keyring) error {
	if err := os.MkdirAll(MetadataDir(root), 0755); err != nil {
		return fmt.Errorf("创建元数据目录失败: %w", err)
	}
	if kr.Writable() {
		if err := saveSecretPEM(secretPath(root), kr.Secret); err != nil {
			return err
		}
	}
	return saveKeyPEM(keyPath(root), kr.Key)
}

func secretMatches(secret ed25519.PrivateKey, key types.ArchiveKey) bool {
	pub, ok := secret.Public().(ed25519.PublicKey)
	return ok && types.ArchiveKey(pub) == key
}
