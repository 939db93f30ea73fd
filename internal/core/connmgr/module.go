package connmgr

import (
	"context"

	"go.uber.org/fx"

	"github.com/dep2p/go-p2pchat/internal/core/lifecycle"
	"github.com/dep2p/go-p2pchat/internal/core/metrics"
	"github.com/dep2p/go-p2pchat/pkg/interfaces"
)

// Module 返回 Fx 模块
//
// 需要外部提供 interfaces.Network 和 Config。
func Module() fx.Option {
	return fx.Module("connmgr",
		fx.Provide(ProvideManager),
		fx.Invoke(registerLifecycle),
	)
}

// Params Manager 依赖参数
type Params struct {
	fx.In

	Config      Config
	Network     interfaces.Network
	Coordinator *lifecycle.Coordinator
	EventBus    interfaces.EventBus `optional:"true"`
	Metrics     *metrics.Collector  `optional:"true"`
}

// ProvideManager 提供连接管理器
func ProvideManager(p Params) (*Manager, error) {
	return New(p.Config, p.Network, p.Coordinator, p.EventBus, p.Metrics)
}

// lifecycleInput 生命周期输入参数
type lifecycleInput struct {
	fx.In
	LC      fx.Lifecycle
	Manager *Manager
}

// registerLifecycle 应用停止时关闭连接
//
// 连接不在 OnStart 中建立：由会话的 Start 显式发起。
func registerLifecycle(input lifecycleInput) {
	input.LC.Append(fx.Hook{
		OnStop: func(_ context.Context) error {
			return input.Manager.Close()
		},
	})
}
