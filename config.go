package p2pchat

import (
	"github.com/dep2p/go-p2pchat/config"
	"github.com/dep2p/go-p2pchat/internal/network/libp2pnet"
	"github.com/dep2p/go-p2pchat/internal/network/memnet"
)

// UserConfig 面向用户的会话配置
//
// 由 JSON 配置文件中的 network 和 session 两节组成。配置文件的读取和
// 命令行参数的处理由应用层（cmd/*）负责，库本身不做 I/O。示例用法：
//
//	cfg, _ := config.LoadFile("p2pchat.json")
//	sess, _ := p2pchat.New(p2pchat.UserConfigFrom(cfg).ToOptions()...)
type UserConfig struct {
	// Network 网络配置
	Network config.NetworkConfig `json:"network"`

	// Session 会话配置
	Session config.SessionConfig `json:"session"`
}

// UserConfigFrom 从完整配置中取出会话相关部分
func UserConfigFrom(cfg *config.Config) UserConfig {
	return UserConfig{
		Network: cfg.Network,
		Session: cfg.Session,
	}
}

// ToOptions 转换为 Option 列表
//
// 零值字段不产生对应的 Option，由会话默认值生效。
//
// memory 网络只连接同一进程内的会话：所有按 memory 配置的会话共享
// memnet.DefaultHub，至少要有两个会话才能就绪。
func (c UserConfig) ToOptions() []Option {
	var opts []Option

	switch c.Network.Kind {
	case config.NetworkMemory:
		// 所有内存网络会话共享进程内默认 Hub
		opts = append(opts, WithNetwork(memnet.NewNetwork(memnet.DefaultHub())))
	case config.NetworkLibp2p:
		opts = append(opts, WithNetwork(libp2pnet.New()))
	}

	if len(c.Network.ListenAddrs) > 0 {
		opts = append(opts, WithListenAddrs(c.Network.ListenAddrs...))
	}
	if len(c.Network.BootstrapPeers) > 0 {
		opts = append(opts, WithBootstrapPeers(c.Network.BootstrapPeers...))
	}
	opts = append(opts, WithDefaultBootstrap(c.Network.DefaultBootstrap))
	if c.Network.PeerWaitTimeout > 0 {
		opts = append(opts, WithPeerWaitTimeout(c.Network.PeerWaitTimeout.Duration()))
	}

	if c.Session.HeartbeatInterval > 0 {
		opts = append(opts, WithHeartbeatInterval(c.Session.HeartbeatInterval.Duration()))
	}
	if c.Session.PresenceCapacity > 0 {
		opts = append(opts, WithPresenceCapacity(c.Session.PresenceCapacity))
	}

	return opts
}
