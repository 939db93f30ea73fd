package memnet

import (
	"context"
	"sync"

	"github.com/dep2p/go-p2pchat/pkg/interfaces"
)

// message 收件箱中的一条消息
type message struct {
	topic string
	data  []byte
}

// Conn Hub 上的一个连接
type Conn struct {
	id  string
	hub *Hub

	inbox   chan message
	closing chan struct{}
	done    chan struct{}

	mu        sync.RWMutex
	closed    bool
	observers map[string][]interfaces.Observer
}

func newConn(hub *Hub, id string) *Conn {
	c := &Conn{
		id:        id,
		hub:       hub,
		inbox:     make(chan message, hub.inboxSize),
		closing:   make(chan struct{}),
		done:      make(chan struct{}),
		observers: make(map[string][]interfaces.Observer),
	}
	go c.deliverLoop()
	return c
}

// ID 返回连接 ID
func (c *Conn) ID() string {
	return c.id
}

// WaitForRemotePeer 阻塞直到 Hub 上存在另一个连接
func (c *Conn) WaitForRemotePeer(ctx context.Context) error {
	for {
		if c.isClosed() {
			return interfaces.ErrConnectionClosed
		}

		ok, joined := c.hub.remoteExists(c.id)
		if ok {
			return nil
		}

		select {
		case <-joined:
		case <-c.closing:
			return interfaces.ErrConnectionClosed
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// Send 发布数据到主题
func (c *Conn) Send(ctx context.Context, topic string, data []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if c.isClosed() {
		return interfaces.ErrConnectionClosed
	}

	c.hub.broadcast(c, topic, append([]byte(nil), data...))
	return nil
}

// AddObserver 注册观察者
func (c *Conn) AddObserver(obs interfaces.Observer, topics ...string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return interfaces.ErrConnectionClosed
	}
	for _, topic := range topics {
		if indexOf(c.observers[topic], obs) < 0 {
			c.observers[topic] = append(c.observers[topic], obs)
		}
	}
	return nil
}

// RemoveObserver 移除观察者
func (c *Conn) RemoveObserver(obs interfaces.Observer, topics ...string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, topic := range topics {
		list := c.observers[topic]
		i := indexOf(list, obs)
		if i < 0 {
			continue
		}
		next := make([]interfaces.Observer, 0, len(list)-1)
		next = append(next, list[:i]...)
		next = append(next, list[i+1:]...)
		if len(next) == 0 {
			delete(c.observers, topic)
		} else {
			c.observers[topic] = next
		}
	}
	return nil
}

// Close 关闭连接并等待投递 goroutine 退出
//
// 不要在观察者回调中调用 Close。
func (c *Conn) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	c.observers = make(map[string][]interfaces.Observer)
	c.mu.Unlock()

	c.hub.leave(c)
	close(c.closing)
	<-c.done
	return nil
}

// ============================================================================
//                              投递
// ============================================================================

// enqueue 放入收件箱，满时丢弃
func (c *Conn) enqueue(msg message) {
	if c.isClosed() {
		return
	}
	select {
	case c.inbox <- msg:
	default:
		log.Warn("收件箱已满，丢弃消息", "peer", c.id, "topic", msg.topic)
	}
}

// deliverLoop 依次把收件箱中的消息交给观察者
func (c *Conn) deliverLoop() {
	defer close(c.done)

	for {
		select {
		case <-c.closing:
			return
		case msg := <-c.inbox:
			c.mu.RLock()
			observers := c.observers[msg.topic]
			c.mu.RUnlock()

			for _, obs := range observers {
				obs.OnMessage(msg.topic, msg.data)
			}
		}
	}
}

func (c *Conn) isClosed() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.closed
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
