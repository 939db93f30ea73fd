package libp2pnet

import (
	"context"
	"fmt"

	"github.com/libp2p/go-libp2p"
	pubsub "github.com/libp2p/go-libp2p-pubsub"
	"github.com/libp2p/go-libp2p/core/host"
	"github.com/libp2p/go-libp2p/core/peer"
	"github.com/libp2p/go-libp2p/p2p/discovery/mdns"
	"github.com/multiformats/go-multiaddr"
	"golang.org/x/sync/errgroup"

	"github.com/dep2p/go-p2pchat/internal/util/logger"
	"github.com/dep2p/go-p2pchat/pkg/interfaces"
)

var log = logger.Logger("network/libp2p")

// DefaultListenAddrs 未配置监听地址时使用
var DefaultListenAddrs = []string{
	"/ip4/0.0.0.0/tcp/0",
	"/ip4/0.0.0.0/udp/0/quic-v1",
}

// maxParallelDials 同时拨号的引导节点数
const maxParallelDials = 8

// Network libp2p 网络实现
type Network struct {
	opts []libp2p.Option
}

// New 创建网络，opts 追加到 libp2p 主机选项之后
func New(opts ...libp2p.Option) *Network {
	return &Network{opts: opts}
}

// Create 启动主机、GossipSub 并连接引导节点
//
// 未配置引导节点且 cfg.Default 为 true 时，改用局域网 mDNS 发现其他节点。
func (n *Network) Create(ctx context.Context, cfg interfaces.BootstrapConfig) (interfaces.Connection, error) {
	bootstrap, err := ParseBootstrapPeers(cfg.BootstrapPeers)
	if err != nil {
		return nil, err
	}

	listen := cfg.ListenAddrs
	if len(listen) == 0 {
		listen = DefaultListenAddrs
	}

	opts := append([]libp2p.Option{libp2p.ListenAddrStrings(listen...)}, n.opts...)
	h, err := libp2p.New(opts...)
	if err != nil {
		return nil, fmt.Errorf("create libp2p host: %w", err)
	}

	connCtx, cancel := context.WithCancel(context.Background())
	ps, err := pubsub.NewGossipSub(connCtx, h,
		pubsub.WithPeerExchange(true),
		pubsub.WithFloodPublish(true),
	)
	if err != nil {
		cancel()
		_ = h.Close()
		return nil, fmt.Errorf("create gossipsub: %w", err)
	}

	log.Info("libp2p 主机已启动",
		"peer", h.ID().String(),
		"addrs", hostAddrs(h))

	var disc mdns.Service
	if len(bootstrap) == 0 && cfg.Default {
		if disc, err = discoveryStarter(connCtx, h); err != nil {
			log.Warn("局域网发现不可用，等待其他节点主动连接", "err", err)
		}
	}
	connectBootstrap(ctx, h, bootstrap)

	return newConn(connCtx, cancel, h, ps, disc), nil
}

// ParseBootstrapPeers 解析引导节点地址
//
// 每个地址必须是带 /p2p/ 节点 ID 的 multiaddr；同一节点的多个地址会合并。
func ParseBootstrapPeers(addrs []string) ([]peer.AddrInfo, error) {
	maddrs := make([]multiaddr.Multiaddr, 0, len(addrs))
	for _, addr := range addrs {
		maddr, err := multiaddr.NewMultiaddr(addr)
		if err != nil {
			return nil, fmt.Errorf("invalid bootstrap address %q: %w", addr, err)
		}
		maddrs = append(maddrs, maddr)
	}

	infos, err := peer.AddrInfosFromP2pAddrs(maddrs...)
	if err != nil {
		return nil, fmt.Errorf("invalid bootstrap address: %w", err)
	}
	return infos, nil
}

// connectBootstrap 并发连接引导节点，失败只记录日志
func connectBootstrap(ctx context.Context, h host.Host, peers []peer.AddrInfo) {
	if len(peers) == 0 {
		return
	}

	var g errgroup.Group
	g.SetLimit(maxParallelDials)

	for _, info := range peers {
		info := info
		g.Go(func() error {
			if err := h.Connect(ctx, info); err != nil {
				log.Warn("连接引导节点失败", "peer", info.ID.String(), "err", err)
				return nil
			}
			log.Info("已连接引导节点", "peer", info.ID.String())
			return nil
		})
	}
	_ = g.Wait()

	log.Info("引导完成", "configured", len(peers), "connected", len(h.Network().Peers()))
}

// hostAddrs 返回主机的完整地址（含 /p2p/ 节点 ID）
func hostAddrs(h host.Host) []string {
	infos, err := peer.AddrInfoToP2pAddrs(&peer.AddrInfo{ID: h.ID(), Addrs: h.Addrs()})
	if err != nil {
		return nil
	}
	out := make([]string, 0, len(infos))
	for _, a := range infos {
		out = append(out, a.String())
	}
	return out
}

var _ interfaces.Network = (*Network)(nil)
