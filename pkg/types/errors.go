package types

import "errors"

var (
	// ErrInvalidKey 无效的归档密钥（长度或编码错误）
	ErrInvalidKey = errors.New("invalid archive key: must be 32 bytes (64 hex characters)")

	// ErrInvalidPeerID 无效的节点标识
	ErrInvalidPeerID = errors.New("invalid peer ID: must be 32 bytes Base58")
)
