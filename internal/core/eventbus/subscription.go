package eventbus

import (
	"reflect"
	"sync"
)

// Subscription 事件订阅
type Subscription struct {
	bus       *Bus
	typ       reflect.Type
	out       chan interface{}
	closeOnce sync.Once
}

// Out 返回事件通道，订阅关闭后通道关闭
func (s *Subscription) Out() <-chan interface{} {
	return s.out
}

// Close 取消订阅
//
// 并发安全，可多次调用。
func (s *Subscription) Close() error {
	s.bus.release(s.typ, func(n *typeNode) {
		for i, sink := range n.sinks {
			if sink == s {
				n.sinks = append(n.sinks[:i], n.sinks[i+1:]...)
				break
			}
		}
	})
	s.shutdown()
	return nil
}

// shutdown 关闭输出通道，调用前订阅必须已从节点移除
func (s *Subscription) shutdown() {
	s.closeOnce.Do(func() {
		close(s.out)
	})
}
