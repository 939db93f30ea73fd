package memnet

import (
	"context"
	"sync"

	"github.com/google/uuid"
	"github.com/mr-tron/base58"

	"github.com/dep2p/go-p2pchat/internal/util/logger"
	"github.com/dep2p/go-p2pchat/pkg/interfaces"
)

var log = logger.Logger("network/memnet")

// DefaultInboxSize 默认收件箱容量
const DefaultInboxSize = 256

// Option Hub 选项
type Option func(*Hub)

// WithInboxSize 设置每个连接的收件箱容量
func WithInboxSize(n int) Option {
	return func(h *Hub) {
		if n > 0 {
			h.inboxSize = n
		}
	}
}

// WithLoopback 让发送方自己的观察者也收到消息
func WithLoopback() Option {
	return func(h *Hub) {
		h.loopback = true
	}
}

// Hub 进程内消息交换中心
type Hub struct {
	inboxSize int
	loopback  bool

	mu    sync.RWMutex
	conns map[string]*Conn
	// joined 有新连接加入时关闭并替换
	joined chan struct{}
}

// NewHub 创建 Hub
func NewHub(opts ...Option) *Hub {
	h := &Hub{
		inboxSize: DefaultInboxSize,
		conns:     make(map[string]*Conn),
		joined:    make(chan struct{}),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

var (
	defaultHubOnce sync.Once
	defaultHub     *Hub
)

// DefaultHub 返回进程内共享的默认 Hub
//
// 按配置创建的内存网络都连到这个 Hub，同一进程内的多个会话因此可以互相通信。
func DefaultHub() *Hub {
	defaultHubOnce.Do(func() {
		defaultHub = NewHub()
	})
	return defaultHub
}

// Peers 返回当前所有连接的 ID
func (h *Hub) Peers() []string {
	h.mu.RLock()
	defer h.mu.RUnlock()

	out := make([]string, 0, len(h.conns))
	for id := range h.conns {
		out = append(out, id)
	}
	return out
}

func (h *Hub) join(c *Conn) {
	h.mu.Lock()
	h.conns[c.id] = c
	close(h.joined)
	h.joined = make(chan struct{})
	h.mu.Unlock()

	log.Debug("连接加入", "peer", c.id)
}

func (h *Hub) leave(c *Conn) {
	h.mu.Lock()
	delete(h.conns, c.id)
	h.mu.Unlock()

	log.Debug("连接离开", "peer", c.id)
}

// remoteExists 检查是否存在 self 以外的连接，并返回下一次加入的信号
func (h *Hub) remoteExists(self string) (bool, <-chan struct{}) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for id := range h.conns {
		if id != self {
			return true, nil
		}
	}
	return false, h.joined
}

// broadcast 把消息放入接收方收件箱
func (h *Hub) broadcast(from *Conn, topic string, data []byte) {
	h.mu.RLock()
	targets := make([]*Conn, 0, len(h.conns))
	for _, c := range h.conns {
		if c == from && !h.loopback {
			continue
		}
		targets = append(targets, c)
	}
	h.mu.RUnlock()

	for _, c := range targets {
		c.enqueue(message{topic: topic, data: data})
	}
}

// ============================================================================
//                              Network
// ============================================================================

// Network 基于 Hub 的网络实现
type Network struct {
	hub *Hub
}

// NewNetwork 创建网络
func NewNetwork(hub *Hub) *Network {
	return &Network{hub: hub}
}

// Create 在 Hub 上建立一个新连接
func (n *Network) Create(ctx context.Context, _ interfaces.BootstrapConfig) (interfaces.Connection, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	c := newConn(n.hub, newPeerID())
	n.hub.join(c)
	return c, nil
}

// newPeerID 生成 base58 编码的随机节点 ID
func newPeerID() string {
	id := uuid.New()
	return base58.Encode(id[:])
}

var _ interfaces.Network = (*Network)(nil)
