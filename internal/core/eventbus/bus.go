package eventbus

import (
	"errors"
	"reflect"
	"sync"
	"sync/atomic"

	"github.com/dep2p/go-p2pchat/internal/util/logger"
	pkgif "github.com/dep2p/go-p2pchat/pkg/interfaces"
)

var log = logger.Logger("core/eventbus")

// ============================================================================
//                              错误定义
// ============================================================================

var (
	// ErrClosed 事件总线或发射器已关闭
	ErrClosed = errors.New("eventbus: closed")
	// ErrInvalidEventType 无效的事件类型
	ErrInvalidEventType = errors.New("eventbus: invalid event type")
	// ErrNonPointerType 事件类型不是指针
	ErrNonPointerType = errors.New("eventbus: event type must be a pointer")
	// ErrTypeMismatch 发射的事件与发射器类型不符
	ErrTypeMismatch = errors.New("eventbus: event type mismatch")
)

// defaultBufSize 默认订阅缓冲区大小
const defaultBufSize = 16

// ============================================================================
//                              Bus 实现
// ============================================================================

// Bus 事件总线
type Bus struct {
	mu     sync.Mutex
	closed bool

	// nodes 事件类型 → 节点
	nodes map[reflect.Type]*typeNode
}

// typeNode 单一事件类型的订阅方与状态
type typeNode struct {
	mu        sync.Mutex
	typ       reflect.Type
	sinks     []*Subscription
	emitters  int
	keepLast  bool
	last      interface{}
	dropCount atomic.Int64
}

var _ pkgif.EventBus = (*Bus)(nil)

// NewBus 创建事件总线
func NewBus() *Bus {
	return &Bus{
		nodes: make(map[reflect.Type]*typeNode),
	}
}

// elemType 校验并返回指针所指的事件类型
func elemType(eventType interface{}) (reflect.Type, error) {
	if eventType == nil {
		return nil, ErrInvalidEventType
	}
	typ := reflect.TypeOf(eventType)
	if typ.Kind() != reflect.Ptr {
		return nil, ErrNonPointerType
	}
	return typ.Elem(), nil
}

// Subscribe 订阅事件
func (b *Bus) Subscribe(eventType interface{}, opts ...pkgif.SubscriptionOpt) (pkgif.Subscription, error) {
	typ, err := elemType(eventType)
	if err != nil {
		return nil, err
	}

	settings := pkgif.SubscriptionSettings{Buffer: defaultBufSize}
	for _, opt := range opts {
		opt(&settings)
	}
	if settings.Buffer < 1 {
		settings.Buffer = 1
	}

	sub := &Subscription{
		bus: b,
		typ: typ,
		out: make(chan interface{}, settings.Buffer),
	}

	err = b.withNode(typ, func(n *typeNode) {
		n.sinks = append(n.sinks, sub)
		if n.keepLast && n.last != nil {
			sub.out <- n.last
		}
	})
	if err != nil {
		return nil, err
	}
	return sub, nil
}

// Emitter 获取发射器
func (b *Bus) Emitter(eventType interface{}, opts ...pkgif.EmitterOpt) (pkgif.Emitter, error) {
	typ, err := elemType(eventType)
	if err != nil {
		return nil, err
	}

	var settings pkgif.EmitterSettings
	for _, opt := range opts {
		opt(&settings)
	}

	var node *typeNode
	err = b.withNode(typ, func(n *typeNode) {
		n.emitters++
		if settings.Stateful {
			n.keepLast = true
		}
		node = n
	})
	if err != nil {
		return nil, err
	}

	return &Emitter{bus: b, node: node}, nil
}

// Close 关闭总线
//
// 关闭所有订阅的输出通道；之后的 Subscribe/Emitter/Emit 返回 ErrClosed。
func (b *Bus) Close() error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil
	}
	b.closed = true
	nodes := b.nodes
	b.nodes = make(map[reflect.Type]*typeNode)
	b.mu.Unlock()

	for _, n := range nodes {
		n.mu.Lock()
		sinks := n.sinks
		n.sinks = nil
		n.mu.Unlock()

		for _, sub := range sinks {
			sub.shutdown()
		}
	}
	return nil
}

// ============================================================================
//                              内部方法
// ============================================================================

// withNode 在节点锁内执行 cb，必要时创建节点
func (b *Bus) withNode(typ reflect.Type, cb func(*typeNode)) error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return ErrClosed
	}

	n, ok := b.nodes[typ]
	if !ok {
		n = &typeNode{typ: typ}
		b.nodes[typ] = n
	}
	n.mu.Lock()
	b.mu.Unlock()

	cb(n)
	n.mu.Unlock()
	return nil
}

// release 移除订阅或发射器引用后，清理空节点
func (b *Bus) release(typ reflect.Type, cb func(*typeNode)) {
	b.mu.Lock()
	defer b.mu.Unlock()

	n, ok := b.nodes[typ]
	if !ok {
		return
	}

	n.mu.Lock()
	cb(n)
	empty := len(n.sinks) == 0 && n.emitters == 0
	n.mu.Unlock()

	if empty {
		delete(b.nodes, typ)
	}
}

// emit 发射事件到节点的所有订阅方
func (n *typeNode) emit(event interface{}) {
	n.mu.Lock()
	defer n.mu.Unlock()

	if n.keepLast {
		n.last = event
	}

	for _, sub := range n.sinks {
		select {
		case sub.out <- event:
		default:
			dropped := n.dropCount.Add(1)
			// 每丢弃 100 个事件警告一次
			if dropped%100 == 1 {
				log.Warn("慢消费者检测",
					"dropped", dropped,
					"type", n.typ.String())
			}
		}
	}
}
