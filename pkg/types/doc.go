// Package types 定义 go-p2pchat 的公共数据结构
//
// 这是整个系统的最底层包，不依赖任何其他内部包。
// 所有类型都是纯值类型，用于在各模块间传递数据。
//
// # 与 wire format 的区别
//
// pkg/types 定义 Go 内部数据结构（内存结构），
// internal/core/codec 定义网络载荷的编码（wire format）。
//
// # 文件组织
//
//   - state.go   - ConnectionState 连接状态机状态
//   - topic.go   - Topic 主题
//   - payload.go - Payload, ChatMessage, PresenceUpdate
//   - events.go  - 状态变更、在线状态变更事件
package types
