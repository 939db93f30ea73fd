// Package eventbus 实现进程内事件总线
//
// 会话用它向 UI 侧广播连接状态变更和在线状态更新。
// 事件按具体类型路由，订阅方和发射方都以指针类型注册：
//
//	bus := eventbus.NewBus()
//
//	sub, _ := bus.Subscribe(new(types.EvtStatusChanged))
//	defer sub.Close()
//
//	em, _ := bus.Emitter(new(types.EvtStatusChanged), eventbus.Stateful())
//	defer em.Close()
//	em.Emit(types.EvtStatusChanged{...})
//
// 发射从不阻塞：订阅方缓冲区满时事件被丢弃并计数。
// 有状态发射器保留最后一个事件，新订阅方立即收到它。
package eventbus
