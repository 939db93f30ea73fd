package p2pchat

import (
	"github.com/benbjohnson/clock"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"
	"go.uber.org/zap"

	"github.com/dep2p/go-p2pchat/internal/core/connmgr"
	"github.com/dep2p/go-p2pchat/internal/core/eventbus"
	"github.com/dep2p/go-p2pchat/internal/core/lifecycle"
	"github.com/dep2p/go-p2pchat/internal/core/metrics"
	"github.com/dep2p/go-p2pchat/internal/core/registry"
	"github.com/dep2p/go-p2pchat/pkg/interfaces"
)

// buildFxApp 构建 Fx 应用
//
// 加载顺序（按依赖）：
//  1. 配置与外部依赖：Network、Clock、Registerer
//  2. 基础组件：Lifecycle → EventBus → Metrics
//  3. 会话组件：ConnMgr → Registry
//  4. 组件注入到 Session
func buildFxApp(o *options, s *Session) *fx.App {
	// ════════════════════════════════════════════════════════════════════════
	// 1. 配置注入
	// ════════════════════════════════════════════════════════════════════════
	modules := []fx.Option{
		fx.Supply(o.connmgrConfig()),
		fx.Supply(o.registryConfig()),
		fx.Provide(func() interfaces.Network { return o.network }),
		fx.Provide(func() clock.Clock { return o.clock }),
	}
	if o.registerer != nil {
		modules = append(modules, fx.Provide(func() prometheus.Registerer { return o.registerer }))
	}

	// ════════════════════════════════════════════════════════════════════════
	// 2. 基础组件
	// ════════════════════════════════════════════════════════════════════════
	modules = append(modules,
		lifecycle.Module(), // 连接状态协调器
		eventbus.Module(),  // 状态/在线事件
		metrics.Module(),   // Prometheus 指标
	)

	// ════════════════════════════════════════════════════════════════════════
	// 3. 会话组件
	// ════════════════════════════════════════════════════════════════════════
	modules = append(modules,
		connmgr.Module(),  // 连接建立与就绪
		registry.Module(), // 主题分发与在线表
	)

	// 用户自定义 Fx 选项
	if len(o.fxOptions) > 0 {
		modules = append(modules, o.fxOptions...)
	}

	// ════════════════════════════════════════════════════════════════════════
	// 4. Session 组件注入
	// ════════════════════════════════════════════════════════════════════════
	modules = append(modules,
		fx.Populate(&s.manager, &s.registry, &s.bus, &s.metrics),

		// 禁用 Fx 日志输出（避免干扰用户日志）
		fx.WithLogger(func() fxevent.Logger {
			return &fxevent.ZapLogger{Logger: zap.NewNop()}
		}),
	)

	return fx.New(modules...)
}
