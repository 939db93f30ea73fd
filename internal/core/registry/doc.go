// Package registry 实现主题注册表
//
// Registry 把主题映射到按注册顺序排列的处理器列表，并把解码后的入站载荷
// 分发给匹配主题的处理器：
//
//	Dispatch(topic, payload)
//	   │
//	   ├── PresenceUpdate ──► PresenceTable.Upsert ──► EvtPresenceChanged
//	   │
//	   └── handlers[topic] ──► h1 ──► h2 ──► ...（同一 goroutine，按注册顺序）
//
// 取消订阅后不会再开始对该处理器的新调用；已在进行中的调用可以完成。
// 处理器可以在回调中取消自己的订阅。
//
// PresenceTable 是进程级的：即使主题上没有处理器，在线状态也会被记录。
package registry
