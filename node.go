package dat

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	"go.uber.org/fx"

	"github.com/dep2p/go-dat/internal/core/archive"
	"github.com/dep2p/go-dat/internal/core/identity"
	"github.com/dep2p/go-dat/internal/core/metrics"
	"github.com/dep2p/go-dat/internal/core/swarm"
	"github.com/dep2p/go-dat/pkg/lib/log"
	"github.com/dep2p/go-dat/pkg/types"
)

var logger = log.Logger("dat/node")

// ════════════════════════════════════════════════════════════════════════════
//                              节点状态
// ════════════════════════════════════════════════════════════════════════════

// State 节点生命周期状态
type State int

const (
	// StateOpening 打开中
	StateOpening State = iota

	// StateOpen 已打开
	StateOpen

	// StateClosing 关闭中
	StateClosing

	// StateClosed 已关闭，不可再转换
	StateClosed
)

// String 返回状态的字符串表示
func (s State) String() string {
	switch s {
	case StateOpening:
		return "opening"
	case StateOpen:
		return "open"
	case StateClosing:
		return "closing"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

const (
	// startTimeout Fx App 启动超时
	startTimeout = 30 * time.Second

	// stopTimeout Fx App 停止超时
	stopTimeout = 15 * time.Second
)

// File 归档中的文件
type File = archive.File

// ════════════════════════════════════════════════════════════════════════════
//                              Node
// ════════════════════════════════════════════════════════════════════════════

// Node 一个打开的归档
//
// Node 持有密钥环、归档存储与至多一个网络会话。
// 由 Open 创建，Close 后不可复用。
type Node struct {
	path    string
	temp    bool
	keyring *identity.Keyring
	app     *fx.App
	archive *archive.Archive
	swarm   *swarm.Manager
	metrics *metrics.Metrics

	// mu 保护状态与会话；JoinNetwork 在创建会话期间持有它
	mu      sync.Mutex
	state   State
	network *Network
	closed  chan struct{}
}

// Open 打开 root 处的归档，不存在时创建
//
// 步骤：
//  1. 校验根目录（Temp 时改用临时目录）
//  2. 解析密钥与写入能力
//  3. 构建并启动 Fx 应用（归档存储、指标、会话管理器）
//
// 任一步骤失败时已启动的组件被停止，不返回 Node。本次打开新建的
// 元数据、根目录与临时目录都被删除，已有归档保持原样。
func Open(ctx context.Context, root string, opts ...Option) (*Node, error) {
	o := DefaultOptions()
	if err := o.apply(opts); err != nil {
		return nil, err
	}

	path, rootCreated, err := prepareRoot(root, o.Temp)
	if err != nil {
		return nil, err
	}

	kr, created, err := identity.Resolve(path, identity.ResolveOptions{
		Key:           o.Key,
		Secret:        o.SecretKey,
		ErrorIfExists: o.ErrorIfExists,
	})
	if err != nil {
		discardRoot(path, o.Temp, rootCreated, false)
		return nil, err
	}
	cleanup := func() {
		discardRoot(path, o.Temp, rootCreated, created)
	}

	n := &Node{
		path:    path,
		temp:    o.Temp,
		keyring: kr,
		state:   StateOpening,
		closed:  make(chan struct{}),
	}

	var c components
	app := buildFxApp(o, kr, path, &c)
	if err := app.Err(); err != nil {
		cleanup()
		return nil, fmt.Errorf("build node: %w", err)
	}

	startCtx, cancel := context.WithTimeout(ctx, startTimeout)
	defer cancel()
	if err := app.Start(startCtx); err != nil {
		stopCtx, stopCancel := context.WithTimeout(context.Background(), stopTimeout)
		_ = app.Stop(stopCtx)
		stopCancel()
		cleanup()
		return nil, fmt.Errorf("start node: %w", err)
	}

	n.app = app
	n.archive = c.Archive
	n.swarm = c.Swarm
	n.metrics = c.Metrics
	n.state = StateOpen

	logger.Info("归档已打开",
		"path", path,
		"key", kr.Key.ShortString(),
		"writable", kr.Writable(),
		"entries", n.archive.Len(),
		"temp", o.Temp)
	return n, nil
}

// Exists 报告 root 下是否已有归档
func Exists(root string) (bool, error) {
	return identity.Exists(root)
}

// prepareRoot 校验根目录，Temp 时返回新建的临时目录
//
// created 报告返回的目录是否由本次调用创建。
func prepareRoot(root string, temp bool) (path string, created bool, err error) {
	if temp {
		if root != "" {
			if err := identity.CheckRoot(root); err != nil {
				return "", false, err
			}
		}
		dir, err := os.MkdirTemp("", "dat-")
		if err != nil {
			return "", false, fmt.Errorf("%w: %v", ErrInvalidPath, err)
		}
		return dir, true, nil
	}
	created, err = identity.PrepareRoot(root)
	if err != nil {
		return "", false, err
	}
	return root, created, nil
}

// discardRoot 撤销一次失败的打开
//
// 临时目录与本次创建的根目录整体删除；否则只在元数据由本次写入时删除元数据目录。
func discardRoot(path string, temp, rootCreated, metadataCreated bool) {
	var err error
	switch {
	case temp || rootCreated:
		err = os.RemoveAll(path)
	case metadataCreated:
		err = identity.RemoveMetadata(path)
	}
	if err != nil {
		logger.Warn("清理未完成的归档失败", "path", path, "err", err)
	}
}

// ════════════════════════════════════════════════════════════════════════════
//                              基本信息
// ════════════════════════════════════════════════════════════════════════════

// Path 返回根目录（Temp 时为临时目录）
func (n *Node) Path() string {
	return n.path
}

// Key 返回归档密钥
func (n *Node) Key() types.ArchiveKey {
	return n.keyring.Key
}

// DiscoveryKey 返回网络中通告的发现密钥
func (n *Node) DiscoveryKey() types.DiscoveryKey {
	return n.keyring.Key.DiscoveryKey()
}

// Writable 节点是否持有写入能力
func (n *Node) Writable() bool {
	return n.keyring.Writable()
}

// State 返回当前生命周期状态
func (n *Node) State() State {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.state
}

// Network 返回当前网络会话，未加入时返回 nil
func (n *Node) Network() *Network {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.network
}

// Stats 返回带宽统计
func (n *Node) Stats() metrics.Stats {
	return n.metrics.Bandwidth().Totals()
}

// ════════════════════════════════════════════════════════════════════════════
//                              文件
// ════════════════════════════════════════════════════════════════════════════

// WriteFile 向归档追加文件，已加入网络时通知已连接的节点
func (n *Node) WriteFile(name string, data []byte) error {
	if err := n.checkOpen(); err != nil {
		return err
	}
	e, err := n.archive.Append(name, data)
	if err != nil {
		return n.mapClosed(err)
	}
	logger.Debug("文件已写入", "name", e.Name, "seq", e.Seq, "size", e.Size)
	return nil
}

// ReadFile 读取文件最新版本的内容
func (n *Node) ReadFile(name string) ([]byte, error) {
	if err := n.checkOpen(); err != nil {
		return nil, err
	}
	data, err := n.archive.ReadFile(name)
	if err != nil {
		return nil, n.mapClosed(err)
	}
	return data, nil
}

// Files 返回每个文件的最新版本，按名称排序
func (n *Node) Files() ([]File, error) {
	if err := n.checkOpen(); err != nil {
		return nil, err
	}
	files, err := n.archive.Files()
	if err != nil {
		return nil, n.mapClosed(err)
	}
	return files, nil
}

// Version 返回归档日志长度
func (n *Node) Version() uint64 {
	if n.archive == nil {
		return 0
	}
	return n.archive.Len()
}

func (n *Node) checkOpen() error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.state != StateOpen {
		return ErrNodeClosed
	}
	return nil
}

// mapClosed 将关闭过程中存储返回的错误转换为 ErrNodeClosed
func (n *Node) mapClosed(err error) error {
	if errors.Is(err, archive.ErrClosed) {
		return ErrNodeClosed
	}
	return err
}
