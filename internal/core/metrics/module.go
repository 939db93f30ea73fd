package metrics

import (
	"github.com/benbjohnson/clock"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/fx"
)

// Params Collector 依赖参数
type Params struct {
	fx.In

	Registerer prometheus.Registerer `optional:"true"`
	Clock      clock.Clock           `optional:"true"`
}

// Module 返回 Fx 模块
func Module() fx.Option {
	return fx.Module("metrics",
		fx.Provide(ProvideCollector),
	)
}

// ProvideCollector 从参数创建 Collector
func ProvideCollector(p Params) (*Collector, error) {
	return NewCollector(p.Registerer, p.Clock)
}
