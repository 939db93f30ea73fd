package mocks

import (
	"reflect"
	"sync"

	"github.com/dep2p/go-p2pchat/pkg/interfaces"
)

// MockEventBus 模拟 EventBus 接口实现
//
// 事件按指针所指类型路由；所有发射的事件按顺序记录在 Emitted 中。
type MockEventBus struct {
	mu sync.Mutex

	subscriptions map[reflect.Type][]*MockSubscription
	last          map[reflect.Type]interface{}

	// 可覆盖的方法
	SubscribeFunc func(eventType interface{}, opts ...interfaces.SubscriptionOpt) (interfaces.Subscription, error)
	EmitterFunc   func(eventType interface{}, opts ...interfaces.EmitterOpt) (interfaces.Emitter, error)

	// 调用记录
	Emitted []interface{}
}

// NewMockEventBus 创建 MockEventBus
func NewMockEventBus() *MockEventBus {
	return &MockEventBus{
		subscriptions: make(map[reflect.Type][]*MockSubscription),
		last:          make(map[reflect.Type]interface{}),
	}
}

// Subscribe 订阅指定类型的事件
func (m *MockEventBus) Subscribe(eventType interface{}, opts ...interfaces.SubscriptionOpt) (interfaces.Subscription, error) {
	if m.SubscribeFunc != nil {
		return m.SubscribeFunc(eventType, opts...)
	}

	settings := &interfaces.SubscriptionSettings{Buffer: 16}
	for _, opt := range opts {
		opt(settings)
	}

	typ := reflect.TypeOf(eventType).Elem()
	sub := &MockSubscription{
		typ:     typ,
		eventCh: make(chan interface{}, settings.Buffer),
		bus:     m,
	}

	m.mu.Lock()
	m.subscriptions[typ] = append(m.subscriptions[typ], sub)
	if last, ok := m.last[typ]; ok {
		sub.eventCh <- last
	}
	m.mu.Unlock()

	return sub, nil
}

// Emitter 获取指定事件类型的发射器
func (m *MockEventBus) Emitter(eventType interface{}, opts ...interfaces.EmitterOpt) (interfaces.Emitter, error) {
	if m.EmitterFunc != nil {
		return m.EmitterFunc(eventType, opts...)
	}

	settings := &interfaces.EmitterSettings{}
	for _, opt := range opts {
		opt(settings)
	}

	return &MockEmitter{
		typ:      reflect.TypeOf(eventType).Elem(),
		bus:      m,
		stateful: settings.Stateful,
	}, nil
}

// Events 返回已发射事件的副本
func (m *MockEventBus) Events() []interface{} {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]interface{}(nil), m.Emitted...)
}

func (m *MockEventBus) emit(typ reflect.Type, stateful bool, event interface{}) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.Emitted = append(m.Emitted, event)
	if stateful {
		m.last[typ] = event
	}
	for _, sub := range m.subscriptions[typ] {
		select {
		case sub.eventCh <- event:
		default:
		}
	}
}

// ============================================================================
//                              MockSubscription
// ============================================================================

// MockSubscription 模拟 Subscription 接口实现
type MockSubscription struct {
	typ     reflect.Type
	eventCh chan interface{}
	closed  bool
	bus     *MockEventBus
}

// Out 返回接收事件的通道
func (s *MockSubscription) Out() <-chan interface{} {
	return s.eventCh
}

// Close 取消订阅
func (s *MockSubscription) Close() error {
	s.bus.mu.Lock()
	defer s.bus.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true

	subs := s.bus.subscriptions[s.typ]
	for i, sub := range subs {
		if sub == s {
			s.bus.subscriptions[s.typ] = append(subs[:i], subs[i+1:]...)
			break
		}
	}
	close(s.eventCh)
	return nil
}

// ============================================================================
//                              MockEmitter
// ============================================================================

// MockEmitter 模拟 Emitter 接口实现
type MockEmitter struct {
	mu       sync.Mutex
	typ      reflect.Type
	bus      *MockEventBus
	stateful bool
	closed   bool
}

// Emit 发射事件，关闭后静默丢弃
func (e *MockEmitter) Emit(event interface{}) error {
	e.mu.Lock()
	closed := e.closed
	e.mu.Unlock()
	if closed {
		return nil
	}

	e.bus.emit(e.typ, e.stateful, event)
	return nil
}

// Close 关闭发射器
func (e *MockEmitter) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.closed = true
	return nil
}

var _ interfaces.EventBus = (*MockEventBus)(nil)
