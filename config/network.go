package config

import (
	"errors"
	"fmt"
	"time"
)

// 网络实现
const (
	// NetworkLibp2p go-libp2p + GossipSub
	NetworkLibp2p = "libp2p"
	// NetworkMemory 进程内网络：只连接同一进程内的会话，需要至少两个会话
	NetworkMemory = "memory"
)

// NetworkConfig 网络配置
type NetworkConfig struct {
	// Kind 网络实现：libp2p 或 memory
	Kind string `json:"kind"`

	// ListenAddrs 监听地址（multiaddr）
	// 为空时由网络实现选择默认值
	ListenAddrs []string `json:"listen_addrs,omitempty"`

	// BootstrapPeers 引导节点（带 /p2p/ 节点 ID 的 multiaddr）
	BootstrapPeers []string `json:"bootstrap_peers,omitempty"`

	// DefaultBootstrap 没有引导节点时使用默认引导（libp2p 为局域网 mDNS 发现）
	DefaultBootstrap bool `json:"default_bootstrap"`

	// PeerWaitTimeout 等待第一个远端节点的超时
	// 0 表示不限
	PeerWaitTimeout Duration `json:"peer_wait_timeout"`
}

// DefaultNetworkConfig 返回默认网络配置
func DefaultNetworkConfig() NetworkConfig {
	return NetworkConfig{
		Kind:             NetworkLibp2p,
		DefaultBootstrap: true,
		PeerWaitTimeout:  Duration(2 * time.Minute),
	}
}

// Validate 验证网络配置
func (c NetworkConfig) Validate() error {
	switch c.Kind {
	case NetworkLibp2p, NetworkMemory:
	default:
		return fmt.Errorf("network: unknown kind %q", c.Kind)
	}
	if c.PeerWaitTimeout < 0 {
		return errors.New("network: peer_wait_timeout must be non-negative")
	}
	for _, addr := range c.BootstrapPeers {
		if addr == "" {
			return errors.New("network: empty bootstrap peer address")
		}
	}
	return nil
}
