package identity

import "errors"

// ============================================================================
// 错误定义
// ============================================================================

var (
	// ErrInvalidPath 根目录不可用（不是目录，或父目录不存在）
	ErrInvalidPath = errors.New("invalid archive path")

	// ErrAlreadyExists 归档已存在且设置了 ErrorIfExists
	ErrAlreadyExists = errors.New("archive already exists")

	// ErrCorruptMetadata 密钥元数据存在但格式错误
	ErrCorruptMetadata = errors.New("corrupt archive metadata")

	// ErrKeyMismatch 提供的密钥与已持久化的密钥不一致
	ErrKeyMismatch = errors.New("archive key mismatch")

	// ErrNoSecret 只读密钥环无法签名
	ErrNoSecret = errors.New("keyring has no secret key")
)
