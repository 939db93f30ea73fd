package p2pchat

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"go.uber.org/fx"
	"go.uber.org/multierr"

	"github.com/dep2p/go-p2pchat/internal/core/codec"
	"github.com/dep2p/go-p2pchat/internal/core/connmgr"
	"github.com/dep2p/go-p2pchat/internal/core/eventbus"
	"github.com/dep2p/go-p2pchat/internal/core/metrics"
	"github.com/dep2p/go-p2pchat/internal/core/registry"
	"github.com/dep2p/go-p2pchat/internal/util/logger"
	"github.com/dep2p/go-p2pchat/pkg/interfaces"
	"github.com/dep2p/go-p2pchat/pkg/types"
)

var log = logger.Logger("p2pchat/session")

// 应用启停超时
const (
	appStartTimeout = 15 * time.Second
	appStopTimeout  = 15 * time.Second
)

// Session 消息会话
//
// 所有方法并发安全。
type Session struct {
	opts  *options
	app   *fx.App
	clock clock.Clock

	// 由 Fx 注入
	manager  *connmgr.Manager
	registry *registry.Registry
	bus      *eventbus.Bus
	metrics  *metrics.Collector

	// ctx 会话生命周期上下文，Close 时取消
	ctx    context.Context
	cancel context.CancelFunc

	mu         sync.Mutex
	closed     bool
	observers  map[types.Topic]*topicObserver
	subs       map[*Subscription]struct{}
	heartbeats map[*Heartbeat]struct{}

	closeOnce sync.Once
	closeErr  error
}

// ════════════════════════════════════════════════════════════════════════════
//                              构造函数
// ════════════════════════════════════════════════════════════════════════════

// New 创建会话
//
// 创建会话但不连接网络，需要调用 Start 发起连接。
//
// 示例：
//
//	sess, err := p2pchat.New(
//	    p2pchat.WithBootstrapPeers(addr),
//	    p2pchat.WithHeartbeatInterval(5*time.Second),
//	)
func New(opts ...Option) (*Session, error) {
	o := newOptions()
	for _, opt := range opts {
		if err := opt(o); err != nil {
			return nil, fmt.Errorf("apply option: %w", err)
		}
	}
	o.applyDefaults()

	ctx, cancel := context.WithCancel(context.Background())
	s := &Session{
		opts:       o,
		clock:      o.clock,
		ctx:        ctx,
		cancel:     cancel,
		observers:  make(map[types.Topic]*topicObserver),
		subs:       make(map[*Subscription]struct{}),
		heartbeats: make(map[*Heartbeat]struct{}),
	}

	s.app = buildFxApp(o, s)
	if err := s.app.Err(); err != nil {
		cancel()
		return nil, fmt.Errorf("build fx app: %w", err)
	}

	startCtx, startCancel := context.WithTimeout(context.Background(), appStartTimeout)
	defer startCancel()
	if err := s.app.Start(startCtx); err != nil {
		cancel()
		return nil, fmt.Errorf("start fx app: %w", err)
	}

	return s, nil
}

// Start 发起连接并等待就绪
//
// 多次调用共享同一次建立尝试。ctx 只约束本次等待：取消它不会中止
// 后台的建立过程。建立失败时返回的错误满足 errors.Is(err, ErrConnectionFailed)，
// 之后的调用返回同一个错误。
func (s *Session) Start(ctx context.Context) error {
	if s.isClosed() {
		return ErrSessionClosed
	}
	return s.mapErr(s.manager.Start(ctx))
}

// ════════════════════════════════════════════════════════════════════════════
//                              状态
// ════════════════════════════════════════════════════════════════════════════

// Status 返回当前连接状态
func (s *Session) Status() ConnectionState {
	return s.manager.Status()
}

// WaitReady 等待连接就绪
//
// 不会发起连接；未调用 Start 时一直等待到 ctx 结束。
func (s *Session) WaitReady(ctx context.Context) error {
	if s.isClosed() {
		return ErrSessionClosed
	}
	return s.mapErr(s.manager.WaitReady(ctx))
}

// ID 返回本地节点标识，未就绪时为空
func (s *Session) ID() string {
	if conn := s.manager.Conn(); conn != nil {
		return conn.ID()
	}
	return ""
}

// Err 返回记住的连接建立错误
func (s *Session) Err() error {
	return s.manager.Err()
}

// SubscribeStatus 订阅连接状态变更
//
// 订阅时立即收到最近一次状态事件（若有）。事件类型为 EvtStatusChanged。
func (s *Session) SubscribeStatus() (interfaces.Subscription, error) {
	if s.isClosed() {
		return nil, ErrSessionClosed
	}
	return s.bus.Subscribe(new(types.EvtStatusChanged))
}

// SubscribePresence 订阅在线状态更新
//
// 事件类型为 EvtPresenceChanged。
func (s *Session) SubscribePresence() (interfaces.Subscription, error) {
	if s.isClosed() {
		return nil, ErrSessionClosed
	}
	return s.bus.Subscribe(new(types.EvtPresenceChanged))
}

// Presence 返回在线状态表快照（最近更新的在前）
func (s *Session) Presence() []PresenceUpdate {
	return s.registry.Presence()
}

// Traffic 返回收发流量统计
func (s *Session) Traffic() TrafficStats {
	return s.metrics.Traffic()
}

// ════════════════════════════════════════════════════════════════════════════
//                              发布
// ════════════════════════════════════════════════════════════════════════════

// Publish 编码载荷并发布到主题
//
// 未就绪时返回 ErrNotReady，不产生网络调用。返回 nil 只表示网络已接受数据。
func (s *Session) Publish(ctx context.Context, topic Topic, payload Payload) error {
	conn, err := s.readyConn()
	if err != nil {
		return err
	}

	data := codec.Encode(payload)
	if data == nil {
		return ErrInvalidPayload
	}

	if err := conn.Send(ctx, topic.String(), data); err != nil {
		return fmt.Errorf("publish to %s: %w", topic, err)
	}
	s.metrics.ObservePublished(payload.Kind(), len(data))
	log.Debug("已发布", "topic", topic.String(), "kind", payload.Kind().String(), "size", len(data))
	return nil
}

// SendMessage 以当前时间发布一条聊天消息
//
// 去掉首尾空白后为空的文本返回 ErrEmptyText。
func (s *Session) SendMessage(ctx context.Context, topic Topic, username, text string) error {
	if strings.TrimSpace(text) == "" {
		return ErrEmptyText
	}
	return s.Publish(ctx, topic, ChatMessage{
		Username:        username,
		Text:            text,
		TimestampMillis: types.NowMillis(s.clock.Now()),
	})
}

// Heartbeat 以当前时间发布一次在线状态
func (s *Session) Heartbeat(ctx context.Context, topic Topic, username string) error {
	return s.Publish(ctx, topic, PresenceUpdate{
		Username:       username,
		LastSeenMillis: types.NowMillis(s.clock.Now()),
	})
}

// readyConn 返回就绪的连接
func (s *Session) readyConn() (interfaces.Connection, error) {
	if s.isClosed() {
		return nil, ErrSessionClosed
	}
	if !s.manager.IsReady() {
		return nil, ErrNotReady
	}
	conn := s.manager.Conn()
	if conn == nil {
		return nil, ErrNotReady
	}
	return conn, nil
}

// ════════════════════════════════════════════════════════════════════════════
//                              订阅
// ════════════════════════════════════════════════════════════════════════════

// Subscription 主题订阅句柄
//
// 必须调用 Unsubscribe 释放。
type Subscription struct {
	s      *Session
	handle registry.Handle
	once   sync.Once
}

// Topic 返回订阅的主题
func (sub *Subscription) Topic() Topic {
	return sub.handle.Topic()
}

// Unsubscribe 取消订阅
//
// 可多次调用。返回后不会再有新的处理函数调用开始；
// 主题的最后一个订阅取消时移除网络观察者。
func (sub *Subscription) Unsubscribe() {
	sub.once.Do(func() {
		if err := sub.s.release(sub); err != nil {
			log.Warn("移除网络观察者失败", "topic", sub.Topic().String(), "err", err)
		}
	})
}

// Observe 为主题注册处理函数
//
// 未就绪时返回 ErrNotReady。主题的第一个处理函数安装网络观察者，
// 入站数据解码后按注册顺序交给处理函数；解码失败的数据记录日志并丢弃。
func (s *Session) Observe(topic Topic, handler Handler) (*Subscription, error) {
	if handler == nil {
		return nil, ErrNilHandler
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil, ErrSessionClosed
	}
	if !s.manager.IsReady() {
		return nil, ErrNotReady
	}
	conn := s.manager.Conn()
	if conn == nil {
		return nil, ErrNotReady
	}

	handle, first := s.registry.Subscribe(topic, registry.Handler(handler))
	if first {
		obs := &topicObserver{s: s}
		if err := conn.AddObserver(obs, topic.String()); err != nil {
			s.registry.Unsubscribe(handle)
			return nil, fmt.Errorf("observe %s: %w", topic, err)
		}
		s.observers[topic] = obs
		log.Debug("已安装网络观察者", "topic", topic.String())
	}

	sub := &Subscription{s: s, handle: handle}
	s.subs[sub] = struct{}{}
	return sub, nil
}

// release 注销处理函数，主题空闲时移除网络观察者
func (s *Session) release(sub *Subscription) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.subs, sub)
	if !s.registry.Unsubscribe(sub.handle) {
		return nil
	}

	topic := sub.handle.Topic()
	obs, ok := s.observers[topic]
	if !ok {
		return nil
	}
	delete(s.observers, topic)

	conn := s.manager.Conn()
	if conn == nil {
		return nil
	}
	log.Debug("移除网络观察者", "topic", topic.String())
	return conn.RemoveObserver(obs, topic.String())
}

// topicObserver 一个主题的网络观察者：解码后交给注册表分发
type topicObserver struct {
	s *Session
}

// OnMessage 实现 interfaces.Observer
func (o *topicObserver) OnMessage(topic string, data []byte) {
	payload, err := codec.Decode(data)
	if err != nil {
		o.s.metrics.ObserveDecodeError(codec.ReasonOf(err).String(), len(data))
		log.Warn("丢弃无法解码的消息", "topic", topic, "size", len(data), "err", err)
		return
	}

	o.s.metrics.ObserveReceived(payload.Kind(), len(data))
	o.s.registry.Dispatch(types.Topic(topic), payload)
}

// ════════════════════════════════════════════════════════════════════════════
//                              心跳
// ════════════════════════════════════════════════════════════════════════════

// Heartbeat 周期性在线状态发布
type Heartbeat struct {
	stop     chan struct{}
	done     chan struct{}
	stopOnce sync.Once
}

// Stop 停止心跳并等待后台 goroutine 退出
//
// 可多次调用。
func (hb *Heartbeat) Stop() {
	hb.stopOnce.Do(func() { close(hb.stop) })
	<-hb.done
}

// Done 返回心跳结束时关闭的通道
func (hb *Heartbeat) Done() <-chan struct{} {
	return hb.done
}

// StartHeartbeat 立即发布一次在线状态，之后按心跳间隔重复
//
// 未就绪期间的心跳被跳过，就绪时立即补发一次。心跳在 Stop、ctx 取消或会话关闭时结束。
func (s *Session) StartHeartbeat(ctx context.Context, topic Topic, username string) (*Heartbeat, error) {
	hb := &Heartbeat{
		stop: make(chan struct{}),
		done: make(chan struct{}),
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil, ErrSessionClosed
	}
	s.heartbeats[hb] = struct{}{}
	s.mu.Unlock()

	// ticker 在返回前创建，调用方推进 mock 时钟不会错过第一个周期
	ticker := s.clock.Ticker(s.opts.heartbeatInterval)
	go s.runHeartbeat(ctx, hb, ticker, topic, username)
	return hb, nil
}

func (s *Session) runHeartbeat(ctx context.Context, hb *Heartbeat, ticker *clock.Ticker, topic Topic, username string) {
	defer func() {
		ticker.Stop()
		s.mu.Lock()
		delete(s.heartbeats, hb)
		s.mu.Unlock()
		close(hb.done)
	}()

	beat := func() {
		if !s.manager.IsReady() {
			return
		}
		if err := s.Heartbeat(ctx, topic, username); err != nil && !errors.Is(err, ErrNotReady) {
			log.Debug("心跳发布失败", "topic", topic.String(), "err", err)
		}
	}

	// 就绪时立即发布一次；启动时已就绪则现在发布
	ready := s.manager.Ready()
	select {
	case <-ready:
		ready = nil
		beat()
	default:
	}

	for {
		select {
		case <-ready:
			ready = nil
			beat()
		case <-ticker.C:
			beat()
		case <-hb.stop:
			return
		case <-ctx.Done():
			return
		case <-s.ctx.Done():
			return
		}
	}
}

// ════════════════════════════════════════════════════════════════════════════
//                              关闭
// ════════════════════════════════════════════════════════════════════════════

// Close 关闭会话
//
// 停止心跳，释放所有订阅及其网络观察者，关闭连接并停止内部组件。
// 可多次调用，之后的调用返回第一次的结果。
func (s *Session) Close() error {
	s.closeOnce.Do(func() {
		s.closeErr = s.doClose()
	})
	return s.closeErr
}

func (s *Session) doClose() error {
	s.mu.Lock()
	s.closed = true
	heartbeats := make([]*Heartbeat, 0, len(s.heartbeats))
	for hb := range s.heartbeats {
		heartbeats = append(heartbeats, hb)
	}
	subs := make([]*Subscription, 0, len(s.subs))
	for sub := range s.subs {
		subs = append(subs, sub)
	}
	s.mu.Unlock()

	s.cancel()
	for _, hb := range heartbeats {
		hb.Stop()
	}

	var err error
	for _, sub := range subs {
		sub.once.Do(func() {
			err = multierr.Append(err, s.release(sub))
		})
	}

	stopCtx, cancel := context.WithTimeout(context.Background(), appStopTimeout)
	defer cancel()
	err = multierr.Append(err, s.app.Stop(stopCtx))

	log.Info("会话已关闭", "subscriptions", len(subs), "heartbeats", len(heartbeats))
	return err
}

func (s *Session) isClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// mapErr 把内部关闭错误映射为 ErrSessionClosed
func (s *Session) mapErr(err error) error {
	if errors.Is(err, connmgr.ErrManagerClosed) {
		return ErrSessionClosed
	}
	return err
}
