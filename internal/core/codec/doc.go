// Package codec 实现聊天载荷的线上编解码
//
// 线上格式采用 protobuf 线编码，每个载荷是一组扁平的字符串字段：
//
//	┌──────────────────┬────┬──────────────────────────────┬────────────────┐
//	│ 字段              │ 号 │ 线类型                        │ 所属载荷        │
//	├──────────────────┼────┼──────────────────────────────┼────────────────┤
//	│ type             │ 1  │ bytes ("message"/"user_status")│ 全部           │
//	│ username         │ 2  │ bytes (UTF-8)                 │ 全部           │
//	│ timestamp        │ 3  │ bytes (十进制毫秒)             │ ChatMessage    │
//	│ last_connection  │ 3  │ bytes (十进制毫秒)             │ PresenceUpdate │
//	│ text             │ 4  │ bytes (UTF-8)                 │ ChatMessage    │
//	└──────────────────┴────┴──────────────────────────────┴────────────────┘
//
// 时间戳在线上始终是十进制字符串，不使用原生整数字段。
// 编码总是写出载荷的全部字段（包括空字符串），解码据此区分"缺失"与"为空"。
//
// 解码错误可恢复：调用方记录日志并丢弃该消息，连接不受影响。
package codec
