package registry

import (
	"context"

	"go.uber.org/fx"

	"github.com/dep2p/go-p2pchat/internal/core/metrics"
	"github.com/dep2p/go-p2pchat/pkg/interfaces"
)

// Config 注册表配置
type Config struct {
	// PresenceCapacity 在线状态表容量
	PresenceCapacity int
}

// DefaultConfig 返回默认配置
func DefaultConfig() Config {
	return Config{PresenceCapacity: DefaultPresenceCapacity}
}

// Params Registry 依赖参数
type Params struct {
	fx.In

	Config   Config              `optional:"true"`
	EventBus interfaces.EventBus `optional:"true"`
	Metrics  *metrics.Collector  `optional:"true"`
}

// Module 返回 Fx 模块
func Module() fx.Option {
	return fx.Module("registry",
		fx.Provide(ProvideRegistry),
		fx.Invoke(registerLifecycle),
	)
}

// ProvideRegistry 提供主题注册表
func ProvideRegistry(p Params) (*Registry, error) {
	return New(p.Config.PresenceCapacity, p.EventBus, p.Metrics)
}

type lifecycleInput struct {
	fx.In
	LC       fx.Lifecycle
	Registry *Registry
}

func registerLifecycle(input lifecycleInput) {
	input.LC.Append(fx.Hook{
		OnStop: func(_ context.Context) error {
			return input.Registry.Close()
		},
	})
}
