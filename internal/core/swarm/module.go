package swarm

import (
	"context"

	"github.com/benbjohnson/clock"
	"go.uber.org/fx"

	"github.com/dep2p/go-dat/internal/core/archive"
	"github.com/dep2p/go-dat/internal/core/metrics"
	"github.com/dep2p/go-dat/pkg/interfaces"
)

// Params Swarm 模块依赖参数
type Params struct {
	fx.In

	Archive   *archive.Archive
	Config    Config
	Discovery interfaces.Discovery `optional:"true"`
	Metrics   *metrics.Metrics     `optional:"true"`
	Clock     clock.Clock          `optional:"true"`
}

// Module 返回 Swarm Fx 模块
//
// 提供:
//   - *Manager: 会话管理器
//
// 生命周期:
//   - OnStop: 关闭所有会话（先于归档存储关闭）
func Module() fx.Option {
	return fx.Module("swarm",
		fx.Provide(ProvideManager),
	)
}

// ProvideManager 创建会话管理器并注册关闭钩子
func ProvideManager(lc fx.Lifecycle, p Params) (*Manager, error) {
	m, err := NewManager(p.Config, p.Archive, p.Discovery, p.Metrics, p.Clock)
	if err != nil {
		return nil, err
	}
	lc.Append(fx.Hook{
		OnStop: func(_ context.Context) error {
			logger.Info("正在关闭会话管理器")
			return m.Close()
		},
	})
	return m, nil
}
