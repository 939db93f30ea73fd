package libp2pnet

import (
	"context"
	"fmt"
	"time"

	"github.com/libp2p/go-libp2p/core/host"
	"github.com/libp2p/go-libp2p/core/peer"
	"github.com/libp2p/go-libp2p/p2p/discovery/mdns"
)

// DiscoveryServiceTag 局域网 mDNS 发现使用的服务名
//
// 只有使用相同服务名的节点才会互相发现。
const DiscoveryServiceTag = "p2pchat"

// discoveryDialTimeout 连接发现节点的超时
const discoveryDialTimeout = 10 * time.Second

// discoveryNotifee 连接 mDNS 发现的节点
type discoveryNotifee struct {
	ctx  context.Context
	host host.Host
}

// HandlePeerFound 实现 mdns.Notifee
func (n *discoveryNotifee) HandlePeerFound(info peer.AddrInfo) {
	if info.ID == n.host.ID() {
		return
	}

	ctx, cancel := context.WithTimeout(n.ctx, discoveryDialTimeout)
	defer cancel()

	if err := n.host.Connect(ctx, info); err != nil {
		log.Debug("连接局域网节点失败", "peer", info.ID.String(), "err", err)
		return
	}
	log.Info("已连接局域网节点", "peer", info.ID.String())
}

// discoveryStarter 启动局域网发现，测试中可替换
var discoveryStarter = startDiscovery

// startDiscovery 启动局域网 mDNS 发现
//
// 默认引导：没有配置引导节点时，通过 mDNS 加入同一局域网内的聊天节点。
func startDiscovery(ctx context.Context, h host.Host) (mdns.Service, error) {
	svc := mdns.NewMdnsService(h, DiscoveryServiceTag, &discoveryNotifee{ctx: ctx, host: h})
	if err := svc.Start(); err != nil {
		return nil, fmt.Errorf("start mdns discovery: %w", err)
	}
	log.Info("已启动局域网发现", "service", DiscoveryServiceTag)
	return svc, nil
}
