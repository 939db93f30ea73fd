package libp2pnet

import (
	"context"
	"sync"
	"time"

	pubsub "github.com/libp2p/go-libp2p-pubsub"
	"github.com/libp2p/go-libp2p/core/host"
	"github.com/libp2p/go-libp2p/p2p/discovery/mdns"
	"go.uber.org/multierr"

	"github.com/dep2p/go-p2pchat/pkg/interfaces"
)

// peerPollInterval 等待远端节点的轮询间隔
const peerPollInterval = 100 * time.Millisecond

// topicSub 一个主题的订阅及其观察者
type topicSub struct {
	sub       *pubsub.Subscription
	observers []interfaces.Observer
}

// Conn libp2p 连接
type Conn struct {
	host host.Host
	ps   *pubsub.PubSub
	// discovery 局域网发现，未启用时为 nil
	discovery mdns.Service

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu     sync.RWMutex
	closed bool
	topics map[string]*pubsub.Topic
	subs   map[string]*topicSub
}

func newConn(ctx context.Context, cancel context.CancelFunc, h host.Host, ps *pubsub.PubSub, disc mdns.Service) *Conn {
	return &Conn{
		host:      h,
		ps:        ps,
		discovery: disc,
		ctx:       ctx,
		cancel:    cancel,
		topics:    make(map[string]*pubsub.Topic),
		subs:      make(map[string]*topicSub),
	}
}

// ID 返回本地节点 ID
func (c *Conn) ID() string {
	return c.host.ID().String()
}

// Addrs 返回本地完整地址（含 /p2p/ 节点 ID），可作为其他节点的引导地址
func (c *Conn) Addrs() []string {
	return hostAddrs(c.host)
}

// PeerCount 返回已连接的节点数
func (c *Conn) PeerCount() int {
	return len(c.host.Network().Peers())
}

// WaitForRemotePeer 轮询直到至少连接一个远端节点
func (c *Conn) WaitForRemotePeer(ctx context.Context) error {
	ticker := time.NewTicker(peerPollInterval)
	defer ticker.Stop()

	for {
		if c.PeerCount() > 0 {
			return nil
		}
		select {
		case <-ticker.C:
		case <-ctx.Done():
			return ctx.Err()
		case <-c.ctx.Done():
			return interfaces.ErrConnectionClosed
		}
	}
}

// Send 发布数据到主题
func (c *Conn) Send(ctx context.Context, topic string, data []byte) error {
	t, err := c.join(topic)
	if err != nil {
		return err
	}
	return t.Publish(ctx, data)
}

// join 返回缓存的主题句柄，必要时加入主题
func (c *Conn) join(name string) (*pubsub.Topic, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.joinLocked(name)
}

func (c *Conn) joinLocked(name string) (*pubsub.Topic, error) {
	if c.closed {
		return nil, interfaces.ErrConnectionClosed
	}
	if t, ok := c.topics[name]; ok {
		return t, nil
	}
	t, err := c.ps.Join(name)
	if err != nil {
		return nil, err
	}
	c.topics[name] = t
	return t, nil
}

// AddObserver 注册观察者，主题的第一个观察者触发订阅
func (c *Conn) AddObserver(obs interfaces.Observer, topics ...string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, name := range topics {
		if ts, ok := c.subs[name]; ok {
			if indexOf(ts.observers, obs) < 0 {
				ts.observers = append(ts.observers, obs)
			}
			continue
		}

		t, err := c.joinLocked(name)
		if err != nil {
			return err
		}
		sub, err := t.Subscribe()
		if err != nil {
			return err
		}

		ts := &topicSub{sub: sub, observers: []interfaces.Observer{obs}}
		c.subs[name] = ts
		c.wg.Add(1)
		go c.readLoop(name, ts)

		log.Debug("已订阅主题", "topic", name)
	}
	return nil
}

// RemoveObserver 移除观察者，主题的最后一个观察者离开时取消订阅
func (c *Conn) RemoveObserver(obs interfaces.Observer, topics ...string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, name := range topics {
		ts, ok := c.subs[name]
		if !ok {
			continue
		}
		i := indexOf(ts.observers, obs)
		if i < 0 {
			continue
		}

		next := make([]interfaces.Observer, 0, len(ts.observers)-1)
		next = append(next, ts.observers[:i]...)
		next = append(next, ts.observers[i+1:]...)
		ts.observers = next

		if len(next) == 0 {
			ts.sub.Cancel()
			delete(c.subs, name)
			log.Debug("已取消订阅主题", "topic", name)
		}
	}
	return nil
}

// readLoop 读取订阅消息并交给观察者
func (c *Conn) readLoop(name string, ts *topicSub) {
	defer c.wg.Done()

	self := c.host.ID()
	for {
		msg, err := ts.sub.Next(c.ctx)
		if err != nil {
			return
		}
		if msg.ReceivedFrom == self {
			continue
		}

		c.mu.RLock()
		observers := ts.observers
		c.mu.RUnlock()

		for _, obs := range observers {
			obs.OnMessage(name, msg.Data)
		}
	}
}

// Close 取消所有订阅并关闭主机
func (c *Conn) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	for name, ts := range c.subs {
		ts.sub.Cancel()
		delete(c.subs, name)
	}
	topics := c.topics
	c.topics = make(map[string]*pubsub.Topic)
	c.mu.Unlock()

	c.cancel()
	c.wg.Wait()

	var err error
	if c.discovery != nil {
		err = multierr.Append(err, c.discovery.Close())
	}
	// 取消订阅在 pubsub 事件循环中异步生效，主题关闭可能因此失败
	for name, t := range topics {
		if cerr := t.Close(); cerr != nil {
			log.Debug("关闭主题失败", "topic", name, "err", cerr)
		}
	}
	err = multierr.Append(err, c.host.Close())
	return err
}

func indexOf(list []interfaces.Observer, obs interfaces.Observer) int {
	for i, o := range list {
		if o == obs {
			return i
		}
	}
	return -1
}

var _ interfaces.Connection = (*Conn)(nil)
