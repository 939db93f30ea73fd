package p2pchat

import (
	"errors"
	"fmt"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/fx"

	"github.com/dep2p/go-p2pchat/internal/core/connmgr"
	"github.com/dep2p/go-p2pchat/internal/core/registry"
	"github.com/dep2p/go-p2pchat/internal/network/libp2pnet"
	"github.com/dep2p/go-p2pchat/pkg/interfaces"
)

// DefaultHeartbeatInterval 默认心跳间隔
const DefaultHeartbeatInterval = 10 * time.Second

// Option 会话配置选项函数
type Option func(*options) error

// options 内部选项结构
type options struct {
	// 网络
	network         interfaces.Network
	bootstrap       interfaces.BootstrapConfig
	peerWaitTimeout time.Duration

	// 会话
	heartbeatInterval time.Duration
	presenceCapacity  int

	// 指标
	registerer prometheus.Registerer

	// 时间源（测试中注入 mock）
	clock clock.Clock

	// 用户自定义 Fx 选项
	fxOptions []fx.Option
}

// newOptions 创建默认选项
func newOptions() *options {
	return &options{
		bootstrap:         interfaces.BootstrapConfig{Default: true},
		heartbeatInterval: DefaultHeartbeatInterval,
		presenceCapacity:  registry.DefaultPresenceCapacity,
		clock:             clock.New(),
	}
}

// connmgrConfig 转换为连接管理器配置
func (o *options) connmgrConfig() connmgr.Config {
	return connmgr.Config{
		Bootstrap:       o.bootstrap,
		PeerWaitTimeout: o.peerWaitTimeout,
	}
}

// registryConfig 转换为注册表配置
func (o *options) registryConfig() registry.Config {
	return registry.Config{PresenceCapacity: o.presenceCapacity}
}

// applyDefaults 补全未设置的依赖
func (o *options) applyDefaults() {
	if o.network == nil {
		o.network = libp2pnet.New()
	}
}

// ════════════════════════════════════════════════════════════════════════════
//                              网络选项
// ════════════════════════════════════════════════════════════════════════════

// WithNetwork 设置底层网络实现
//
// 默认使用 libp2p + GossipSub。
func WithNetwork(network interfaces.Network) Option {
	return func(o *options) error {
		if network == nil {
			return errors.New("network must not be nil")
		}
		o.network = network
		return nil
	}
}

// WithListenAddrs 设置监听地址（multiaddr）
func WithListenAddrs(addrs ...string) Option {
	return func(o *options) error {
		o.bootstrap.ListenAddrs = append([]string(nil), addrs...)
		return nil
	}
}

// WithBootstrapPeers 设置引导节点
func WithBootstrapPeers(peers ...string) Option {
	return func(o *options) error {
		for _, p := range peers {
			if p == "" {
				return errors.New("bootstrap peer address must not be empty")
			}
		}
		o.bootstrap.BootstrapPeers = append([]string(nil), peers...)
		return nil
	}
}

// WithDefaultBootstrap 没有引导节点时是否使用网络实现的默认引导
//
// libp2p 网络的默认引导是局域网 mDNS 发现。
func WithDefaultBootstrap(enable bool) Option {
	return func(o *options) error {
		o.bootstrap.Default = enable
		return nil
	}
}

// WithPeerWaitTimeout 设置等待第一个远端节点的超时
//
// 0 表示不限（默认）。
func WithPeerWaitTimeout(d time.Duration) Option {
	return func(o *options) error {
		if d < 0 {
			return fmt.Errorf("peer wait timeout must be non-negative, got %s", d)
		}
		o.peerWaitTimeout = d
		return nil
	}
}

// ════════════════════════════════════════════════════════════════════════════
//                              会话选项
// ════════════════════════════════════════════════════════════════════════════

// WithHeartbeatInterval 设置 StartHeartbeat 的心跳间隔
func WithHeartbeatInterval(d time.Duration) Option {
	return func(o *options) error {
		if d <= 0 {
			return fmt.Errorf("heartbeat interval must be positive, got %s", d)
		}
		o.heartbeatInterval = d
		return nil
	}
}

// WithPresenceCapacity 设置在线状态表最多保留的用户数
func WithPresenceCapacity(n int) Option {
	return func(o *options) error {
		if n <= 0 {
			return fmt.Errorf("presence capacity must be positive, got %d", n)
		}
		o.presenceCapacity = n
		return nil
	}
}

// WithMetricsRegisterer 把会话指标注册到 reg
//
// 未设置时指标不注册到任何 Registry。
func WithMetricsRegisterer(reg prometheus.Registerer) Option {
	return func(o *options) error {
		o.registerer = reg
		return nil
	}
}

// WithClock 设置时间源
func WithClock(clk clock.Clock) Option {
	return func(o *options) error {
		if clk == nil {
			return errors.New("clock must not be nil")
		}
		o.clock = clk
		return nil
	}
}

// WithFxOption 追加自定义 Fx 选项
//
// 用于替换或装饰内部组件，普通用户不需要。
func WithFxOption(opts ...fx.Option) Option {
	return func(o *options) error {
		o.fxOptions = append(o.fxOptions, opts...)
		return nil
	}
}
