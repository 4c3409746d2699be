package metrics

import (
	"context"

	"github.com/benbjohnson/clock"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/fx"

	"github.com/dep2p/go-dat/internal/core/archive"
)

// Params Metrics 依赖参数
type Params struct {
	fx.In

	Archive    *archive.Archive
	Clock      clock.Clock           `optional:"true"`
	Registerer prometheus.Registerer `optional:"true"`
}

// Module 返回 Metrics Fx 模块
//
// 提供:
//   - *Metrics: 节点指标集合
//
// 生命周期:
//   - OnStart: 注入了 Registerer 时注册指标
//   - OnStop: 注销指标
func Module() fx.Option {
	return fx.Module("metrics",
		fx.Provide(ProvideMetrics),
	)
}

// ProvideMetrics 创建指标集合并注册生命周期钩子
func ProvideMetrics(lc fx.Lifecycle, p Params) *Metrics {
	m := New(p.Clock, p.Archive.Len)
	if p.Registerer == nil {
		return m
	}
	lc.Append(fx.Hook{
		OnStart: func(_ context.Context) error {
			return m.Register(p.Registerer)
		},
		OnStop: func(_ context.Context) error {
			return m.Unregister(p.Registerer)
		},
	})
	return m
}
