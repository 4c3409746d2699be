package archive

import (
	"context"

	"go.uber.org/fx"

	"github.com/dep2p/go-dat/internal/core/identity"
	"github.com/dep2p/go-dat/internal/core/storage"
)

// Params Archive 模块依赖参数
type Params struct {
	fx.In

	Keyring *identity.Keyring
	Config  storage.Config
}

// Module 返回 Archive Fx 模块
//
// 提供:
//   - *Archive: 归档存储
//
// 生命周期:
//   - OnStop: 关闭归档（依赖归档的组件先于它停止）
func Module() fx.Option {
	return fx.Module("archive",
		fx.Provide(ProvideArchive),
	)
}

// ProvideArchive 打开归档并注册关闭钩子
func ProvideArchive(lc fx.Lifecycle, p Params) (*Archive, error) {
	a, err := Open(p.Keyring, p.Config)
	if err != nil {
		return nil, err
	}
	lc.Append(fx.Hook{
		OnStop: func(_ context.Context) error {
			logger.Info("正在关闭归档存储")
			return a.Close()
		},
	})
	return a, nil
}
