package dat

import (
	"errors"

	"github.com/dep2p/go-dat/internal/core/archive"
	"github.com/dep2p/go-dat/internal/core/identity"
	"github.com/dep2p/go-dat/internal/core/swarm"
)

// 公共错误定义
var (
	// ────────────────────────────────────────────────────────────────────────
	// 打开归档错误
	// ────────────────────────────────────────────────────────────────────────

	// ErrInvalidPath 根目录不是目录或父目录不存在
	ErrInvalidPath = identity.ErrInvalidPath

	// ErrAlreadyExists 归档已存在且设置了 ErrorIfExists
	ErrAlreadyExists = identity.ErrAlreadyExists

	// ErrCorruptMetadata 密钥元数据存在但无法解析
	ErrCorruptMetadata = identity.ErrCorruptMetadata

	// ErrKeyMismatch 提供的密钥或私钥与归档不一致
	ErrKeyMismatch = identity.ErrKeyMismatch

	// ErrInvalidOption 无效选项
	ErrInvalidOption = errors.New("invalid option")

	// ────────────────────────────────────────────────────────────────────────
	// 节点生命周期错误
	// ────────────────────────────────────────────────────────────────────────

	// ErrAlreadyClosed 节点已关闭或正在关闭
	ErrAlreadyClosed = errors.New("node already closed")

	// ErrNodeClosed 在已关闭的节点上执行操作
	ErrNodeClosed = errors.New("node closed")

	// ────────────────────────────────────────────────────────────────────────
	// 归档与网络错误
	// ────────────────────────────────────────────────────────────────────────

	// ErrReadOnly 只读归档不能写入
	ErrReadOnly = archive.ErrReadOnly

	// ErrFileNotFound 文件不存在
	ErrFileNotFound = archive.ErrFileNotFound

	// ErrNoDiscovery 没有可用的发现服务
	ErrNoDiscovery = swarm.ErrNoDiscovery
)
