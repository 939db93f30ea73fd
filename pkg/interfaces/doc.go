// Package interfaces 定义 go-p2pchat 的公共接口
//
// 会话层只通过这里定义的最小能力面消费底层 P2P 网络：
//   - network.go   - Network / Connection / Observer，外部网络协作者
//   - eventbus.go  - EventBus，进程内类型化事件（状态变更、在线状态）
//
// 实现位于 internal/ 下：
//   - internal/network/memnet     - 进程内网络（测试与单进程演示）
//   - internal/network/libp2pnet  - 基于 go-libp2p GossipSub 的网络
//   - internal/core/eventbus      - 事件总线
package interfaces
