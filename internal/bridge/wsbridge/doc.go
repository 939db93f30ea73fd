// Package wsbridge 把会话通过 WebSocket 暴露给浏览器界面
//
// 每个浏览器连接：
//   - 收到当前连接状态和在线表快照
//   - 在会话就绪后观察聊天主题，入站消息和在线状态以 JSON 事件推送
//   - 发送 {"type":"message","text":"..."} 帧发布聊天消息（按客户端限速）
//
// 推送事件格式：
//
//	{"event":"message","username":"bob","text":"hi","timestamp":1700000000000}
//	{"event":"message","username":"alice","text":"hi","timestamp":1700000000000,"local":true}
//	{"event":"presence","username":"bob","last_seen":1700000000000}
//	{"event":"status","state":"ready"}
//	{"event":"error","error":"rate limited"}
//
// 连接断开时释放订阅，不会遗留网络观察者。
package wsbridge
