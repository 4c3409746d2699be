package dat

import (
	"context"
	"os"

	"go.uber.org/multierr"
)

// ════════════════════════════════════════════════════════════════════════════
//                              关闭
// ════════════════════════════════════════════════════════════════════════════

// Close 关闭节点并释放所有资源
//
// 执行流程：
//  1. 离开网络：断开所有连接，撤销通告
//  2. 停止 Fx 应用：关闭会话管理器、发现服务与归档存储
//  3. 删除临时根目录
//
// Close 不是幂等的：之后的调用返回 ErrAlreadyClosed；
// 第一次调用进行中发起的调用等待其完成后返回 ErrAlreadyClosed。
func (n *Node) Close() error {
	n.mu.Lock()
	switch n.state {
	case StateClosing:
		n.mu.Unlock()
		<-n.closed
		return ErrAlreadyClosed
	case StateClosed:
		n.mu.Unlock()
		return ErrAlreadyClosed
	}
	n.state = StateClosing
	network := n.network
	n.network = nil
	n.mu.Unlock()

	logger.Info("正在关闭节点", "path", n.path)

	var err error
	if network != nil {
		err = multierr.Append(err, network.close())
	}

	ctx, cancel := context.WithTimeout(context.Background(), stopTimeout)
	err = multierr.Append(err, n.app.Stop(ctx))
	cancel()

	if n.temp {
		err = multierr.Append(err, os.RemoveAll(n.path))
	}

	n.mu.Lock()
	n.state = StateClosed
	n.mu.Unlock()
	close(n.closed)

	if err != nil {
		logger.Warn("节点关闭时出现错误", "path", n.path, "err", err)
	} else {
		logger.Info("节点已关闭", "path", n.path)
	}
	return err
}

// Done 节点关闭完成后被关闭的通道
func (n *Node) Done() <-chan struct{} {
	return n.closed
}

// ════════════════════════════════════════════════════════════════════════════
//                              网络
// ════════════════════════════════════════════════════════════════════════════

// JoinNetwork 加入归档的网络并开始发现与连接节点
//
// 已加入时返回现有会话。节点未打开时返回 ErrNodeClosed。
// 创建会话期间持有节点锁：先开始的 Close 使 JoinNetwork 失败，
// 先完成的 JoinNetwork 创建的会话由之后的 Close 关闭。
func (n *Node) JoinNetwork(ctx context.Context) (*Network, error) {
	n.mu.Lock()
	defer n.mu.Unlock()

	if n.state != StateOpen {
		return nil, ErrNodeClosed
	}
	if n.network != nil {
		return n.network, nil
	}

	s, err := n.swarm.Join(ctx)
	if err != nil {
		return nil, err
	}
	n.network = newNetwork(s)
	return n.network, nil
}

// Leave 离开网络
//
// 未加入网络时为空操作；节点关闭后返回 ErrNodeClosed。
// ctx 到期时返回 ctx.Err()，会话在后台继续关闭，节点 Close 会等待它完成。
func (n *Node) Leave(ctx context.Context) error {
	n.mu.Lock()
	if n.state != StateOpen {
		n.mu.Unlock()
		return ErrNodeClosed
	}
	network := n.network
	n.network = nil
	n.mu.Unlock()

	if network == nil {
		return nil
	}

	done := make(chan error, 1)
	go func() { done <- network.close() }()
	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}
