package registry

import (
	"runtime/debug"
	"sort"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"

	"github.com/dep2p/go-p2pchat/internal/core/metrics"
	"github.com/dep2p/go-p2pchat/internal/util/logger"
	"github.com/dep2p/go-p2pchat/pkg/interfaces"
	"github.com/dep2p/go-p2pchat/pkg/types"
)

var log = logger.Logger("core/registry")

// Handler 载荷处理器
type Handler func(topic types.Topic, payload types.Payload)

// Handle 订阅句柄
//
// 零值句柄合法，对它取消订阅是空操作。
type Handle struct {
	id    uuid.UUID
	topic types.Topic
}

// Topic 返回句柄所属主题
func (h Handle) Topic() types.Topic { return h.topic }

// IsZero 检查是否为零值句柄
func (h Handle) IsZero() bool { return h.id == uuid.Nil }

// String 返回句柄标识
func (h Handle) String() string { return h.id.String() }

// entry 一个已注册的处理器
type entry struct {
	id      uuid.UUID
	handler Handler
	active  atomic.Bool
}

// Registry 主题注册表
//
// 所有方法并发安全。
type Registry struct {
	mu     sync.RWMutex
	topics map[types.Topic][]*entry
	byID   map[uuid.UUID]types.Topic

	presence *PresenceTable
	emitter  interfaces.Emitter
	metrics  *metrics.Collector
}

// New 创建注册表
//
// bus 和 collector 可以为 nil。
func New(presenceCapacity int, bus interfaces.EventBus, collector *metrics.Collector) (*Registry, error) {
	var emitter interfaces.Emitter
	if bus != nil {
		em, err := bus.Emitter(new(types.EvtPresenceChanged))
		if err != nil {
			return nil, err
		}
		emitter = em
	}

	return &Registry{
		topics:   make(map[types.Topic][]*entry),
		byID:     make(map[uuid.UUID]types.Topic),
		presence: NewPresenceTable(presenceCapacity),
		emitter:  emitter,
		metrics:  collector,
	}, nil
}

// Subscribe 注册处理器
//
// 返回句柄，以及该处理器是否是主题上的第一个。
func (r *Registry) Subscribe(topic types.Topic, handler Handler) (Handle, bool) {
	e := &entry{id: uuid.New(), handler: handler}
	e.active.Store(true)

	r.mu.Lock()
	defer r.mu.Unlock()

	first := len(r.topics[topic]) == 0
	r.topics[topic] = append(r.topics[topic], e)
	r.byID[e.id] = topic

	log.Debug("注册处理器", "topic", topic.String(), "handle", e.id.String(), "first", first)
	return Handle{id: e.id, topic: topic}, first
}

// Unsubscribe 移除处理器
//
// 返回主题是否因此变为空闲（没有处理器）。
// 重复调用、未知句柄和零值句柄都是空操作，返回 false。
func (r *Registry) Unsubscribe(h Handle) bool {
	if h.IsZero() {
		return false
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	topic, ok := r.byID[h.id]
	if !ok {
		return false
	}
	delete(r.byID, h.id)

	list := r.topics[topic]
	for i, e := range list {
		if e.id != h.id {
			continue
		}
		e.active.Store(false)
		// 新切片，进行中的分发仍持有旧快照
		next := make([]*entry, 0, len(list)-1)
		next = append(next, list[:i]...)
		next = append(next, list[i+1:]...)
		list = next
		break
	}

	if len(list) == 0 {
		delete(r.topics, topic)
		log.Debug("主题空闲", "topic", topic.String())
		return true
	}
	r.topics[topic] = list
	return false
}

// Dispatch 分发载荷
//
// 在线状态先写入 PresenceTable；随后在调用方 goroutine 上按注册顺序
// 依次调用主题的处理器。主题没有处理器时静默返回。
func (r *Registry) Dispatch(topic types.Topic, payload types.Payload) {
	if update, ok := asPresence(payload); ok {
		r.presence.Upsert(update)
		r.emitPresence(topic, update)
	}

	r.mu.RLock()
	handlers := r.topics[topic]
	r.mu.RUnlock()

	for _, e := range handlers {
		r.invoke(topic, e, payload)
	}
}

// invoke 调用单个处理器，恢复 panic
//
// active 检查紧挨着处理器调用：检查通过即视为调用已开始，
// 此后返回的 Unsubscribe 不会中断它；检查之后返回的 Unsubscribe
// 保证该处理器不会再被调用。
func (r *Registry) invoke(topic types.Topic, e *entry, payload types.Payload) {
	defer func() {
		if rec := recover(); rec != nil {
			log.Error("处理器 panic",
				"topic", topic.String(),
				"handle", e.id.String(),
				"panic", rec,
				"stack", string(debug.Stack()))
		}
	}()

	if !e.active.Load() {
		return
	}
	r.metrics.ObserveDispatched()
	e.handler(topic, payload)
}

func (r *Registry) emitPresence(topic types.Topic, update types.PresenceUpdate) {
	if r.emitter == nil {
		return
	}
	err := r.emitter.Emit(types.EvtPresenceChanged{
		BaseEvent: types.NewBaseEvent(types.EventTypePresenceChanged),
		Topic:     topic,
		Update:    update,
	})
	if err != nil {
		log.Debug("在线状态事件发射失败", "err", err)
	}
}

// Presence 返回按最近优先排列的在线状态
func (r *Registry) Presence() []types.PresenceUpdate {
	return r.presence.Snapshot()
}

// PresenceTable 返回在线状态表
func (r *Registry) PresenceTable() *PresenceTable {
	return r.presence
}

// HandlerCount 返回主题上的处理器数量
func (r *Registry) HandlerCount(topic types.Topic) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.topics[topic])
}

// Topics 返回有处理器的主题（按字典序）
func (r *Registry) Topics() []types.Topic {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]types.Topic, 0, len(r.topics))
	for t := range r.topics {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Close 释放事件发射器
func (r *Registry) Close() error {
	if r.emitter != nil {
		return r.emitter.Close()
	}
	return nil
}

func asPresence(p types.Payload) (types.PresenceUpdate, bool) {
	switch v := p.(type) {
	case types.PresenceUpdate:
		return v, true
	case *types.PresenceUpdate:
		if v != nil {
			return *v, true
		}
	}
	return types.PresenceUpdate{}, false
}
