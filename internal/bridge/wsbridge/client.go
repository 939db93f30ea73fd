package wsbridge

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"golang.org/x/time/rate"

	p2pchat "github.com/dep2p/go-p2pchat"
	"github.com/dep2p/go-p2pchat/pkg/types"
)

// client 一个浏览器连接
type client struct {
	bridge  *Bridge
	conn    *websocket.Conn
	limiter *rate.Limiter
	send    chan Event

	ctx    context.Context
	cancel context.CancelFunc

	mu  sync.Mutex
	sub *p2pchat.Subscription
}

func newClient(b *Bridge, conn *websocket.Conn) *client {
	ctx, cancel := context.WithCancel(context.Background())
	return &client{
		bridge:  b,
		conn:    conn,
		limiter: rate.NewLimiter(rate.Limit(b.cfg.MessagesPerSecond), b.cfg.Burst),
		send:    make(chan Event, sendBufferSize),
		ctx:     ctx,
		cancel:  cancel,
	}
}

// run 服务客户端直到断开
func (c *client) run() {
	defer c.teardown()

	s := c.bridge.session

	c.push(statusEvent(s.Status(), nil))
	for _, p := range s.Presence() {
		c.push(presenceEvent(p))
	}

	statusSub, err := s.SubscribeStatus()
	if err != nil {
		log.Warn("订阅连接状态失败", "err", err)
	} else {
		defer statusSub.Close()
		go c.watchStatus(statusSub.Out())
	}
	c.ensureObserving()

	go c.writePump()
	c.readPump()
}

// watchStatus 转发状态变化，就绪后开始观察聊天主题
func (c *client) watchStatus(events <-chan interface{}) {
	for {
		select {
		case <-c.ctx.Done():
			return
		case e, ok := <-events:
			if !ok {
				return
			}
			evt, ok := e.(types.EvtStatusChanged)
			if !ok {
				continue
			}
			c.push(statusEvent(evt.New, evt.Err))
			if evt.New == types.StateReady {
				c.ensureObserving()
			}
		}
	}
}

// ensureObserving 会话就绪时订阅聊天主题（只订阅一次）
func (c *client) ensureObserving() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.sub != nil || c.ctx.Err() != nil {
		return
	}
	sub, err := c.bridge.session.Observe(c.bridge.cfg.Topic, c.onPayload)
	if err != nil {
		if !errors.Is(err, p2pchat.ErrNotReady) {
			log.Warn("订阅聊天主题失败", "err", err)
		}
		return
	}
	c.sub = sub
}

// onPayload 把入站载荷转换为事件
func (c *client) onPayload(_ types.Topic, payload types.Payload) {
	switch p := payload.(type) {
	case types.ChatMessage:
		c.push(messageEvent(p, false))
	case types.PresenceUpdate:
		c.push(presenceEvent(p))
	}
}

// push 放入发送队列，队列满时丢弃
func (c *client) push(evt Event) {
	select {
	case c.send <- evt:
	case <-c.ctx.Done():
	default:
		log.Warn("客户端发送队列已满，丢弃事件", "event", evt.Event)
	}
}

// readPump 读取浏览器帧
func (c *client) readPump() {
	c.conn.SetReadLimit(maxFrameSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		var frame Frame
		if err := c.conn.ReadJSON(&frame); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Debug("读取客户端帧失败", "err", err)
			}
			return
		}
		c.handleFrame(frame)
	}
}

func (c *client) handleFrame(frame Frame) {
	if frame.Type != FrameMessage {
		c.push(errorEvent(ErrUnknownFrame))
		return
	}
	if !c.limiter.Allow() {
		c.push(errorEvent(ErrRateLimited))
		return
	}

	msg, err := c.bridge.publish(c.ctx, frame.Text)
	if err != nil {
		c.push(errorEvent(err))
		return
	}
	c.push(messageEvent(msg, true))
}

// writePump 写出事件和心跳 ping
func (c *client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-c.ctx.Done():
			_ = c.conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
				time.Now().Add(writeWait))
			return
		case evt := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteJSON(evt); err != nil {
				log.Debug("写入事件失败", "err", err)
				c.shutdown()
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				c.shutdown()
				return
			}
		}
	}
}

// shutdown 让读写循环退出
func (c *client) shutdown() {
	c.cancel()
	_ = c.conn.SetReadDeadline(time.Now())
}

// teardown 释放订阅并关闭连接
func (c *client) teardown() {
	c.cancel()

	c.mu.Lock()
	sub := c.sub
	c.sub = nil
	c.mu.Unlock()
	if sub != nil {
		sub.Unsubscribe()
	}

	_ = c.conn.Close()
}
