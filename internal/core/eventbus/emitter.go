package eventbus

import (
	"fmt"
	"reflect"
	"sync/atomic"
)

// Emitter 事件发射器
type Emitter struct {
	bus    *Bus
	node   *typeNode
	closed atomic.Bool
}

// Emit 发射事件
//
// event 必须是发射器注册的类型（值，而非指针）。
func (e *Emitter) Emit(event interface{}) error {
	if e.closed.Load() {
		return ErrClosed
	}
	if typ := reflect.TypeOf(event); typ != e.node.typ {
		return fmt.Errorf("%w: want %s, got %v", ErrTypeMismatch, e.node.typ, typ)
	}

	e.bus.mu.Lock()
	closed := e.bus.closed
	e.bus.mu.Unlock()
	if closed {
		return ErrClosed
	}

	e.node.emit(event)
	return nil
}

// Close 关闭发射器
func (e *Emitter) Close() error {
	if !e.closed.CompareAndSwap(false, true) {
		return nil
	}
	e.bus.release(e.node.typ, func(n *typeNode) {
		n.emitters--
	})
	return nil
}
