package dat

import (
	"context"
	"path/filepath"

	"github.com/benbjohnson/clock"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"
	"go.uber.org/zap"

	"github.com/dep2p/go-dat/internal/core/archive"
	"github.com/dep2p/go-dat/internal/core/discovery/mdns"
	"github.com/dep2p/go-dat/internal/core/identity"
	"github.com/dep2p/go-dat/internal/core/metrics"
	"github.com/dep2p/go-dat/internal/core/storage"
	"github.com/dep2p/go-dat/internal/core/swarm"
	"github.com/dep2p/go-dat/pkg/interfaces"
	"github.com/dep2p/go-dat/pkg/lib/log"
)

var fxLogger = log.Logger("dat/fx")

// components fx 容器提供给 Node 的组件
type components struct {
	Archive *archive.Archive
	Swarm   *swarm.Manager
	Metrics *metrics.Metrics
}

// buildFxApp 构建 Fx 应用
//
// 加载顺序（按依赖）：
//  1. Identity: 已解析的密钥环
//  2. Archive: 存储引擎与签名日志
//  3. Metrics: 节点指标
//  4. Discovery + Swarm: 会话管理器
//
// OnStop 按相反顺序执行，会话总是先于归档存储关闭。
func buildFxApp(opts *Options, kr *identity.Keyring, root string, out *components) *fx.App {
	storageCfg := storage.Config{
		Path:       identity.ContentDir(root),
		SyncWrites: opts.SyncWrites,
		GCInterval: opts.GCInterval,
	}

	modules := []fx.Option{
		fx.Supply(storageCfg),
		fx.Supply(opts.Network),

		identity.Module(kr),
		archive.Module(),
		metrics.Module(),
		swarm.Module(),
	}

	// ════════════════════════════════════════════════════════════════════════
	// 可选依赖
	// ════════════════════════════════════════════════════════════════════════
	if opts.Clock != nil {
		modules = append(modules, fx.Supply(fx.Annotate(opts.Clock, fx.As(new(clock.Clock)))))
	}
	if opts.Metrics != nil {
		reg := nodeRegisterer(opts.Metrics, kr, root)
		modules = append(modules, fx.Supply(fx.Annotate(reg, fx.As(new(prometheus.Registerer)))))
	}
	switch {
	case opts.Discovery != nil:
		modules = append(modules, fx.Supply(fx.Annotate(opts.Discovery, fx.As(new(interfaces.Discovery)))))
	case opts.EnableMDNS:
		modules = append(modules, fx.Provide(provideMDNS(opts.MDNS)))
	}

	modules = append(modules,
		fx.Populate(&out.Archive, &out.Swarm, &out.Metrics),
		fx.WithLogger(newFxEventLogger),
	)
	return fx.New(modules...)
}

// nodeRegisterer 为节点指标附加 archive 与 root 标签
//
// 同一 Registerer 上的多个节点（包括同一归档的写入者与镜像）各自拥有一组时间序列。
func nodeRegisterer(reg prometheus.Registerer, kr *identity.Keyring, root string) prometheus.Registerer {
	if abs, err := filepath.Abs(root); err == nil {
		root = abs
	}
	return prometheus.WrapRegistererWith(prometheus.Labels{
		"archive": kr.Key.DiscoveryKey().ShortString(),
		"root":    root,
	}, reg)
}

// provideMDNS 返回 mDNS 发现器的构造函数，关闭时停止所有通告
func provideMDNS(cfg mdns.Config) func(lc fx.Lifecycle) interfaces.Discovery {
	return func(lc fx.Lifecycle) interfaces.Discovery {
		d := mdns.New(cfg)
		lc.Append(fx.Hook{
			OnStop: func(_ context.Context) error {
				fxLogger.Debug("正在关闭 mDNS 发现")
				return d.Close()
			},
		})
		return d
	}
}

// newFxEventLogger 调试级别时输出 fx 事件，否则静默
func newFxEventLogger() fxevent.Logger {
	if fxLogger.Enabled(log.LevelDebug) {
		if zl, err := zap.NewDevelopment(); err == nil {
			return &fxevent.ZapLogger{Logger: zl}
		}
	}
	return &fxevent.ZapLogger{Logger: zap.NewNop()}
}
