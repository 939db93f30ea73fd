// Package mocks 提供统一的测试 Mock 实现
//
// # 网络 Mock
//
//   - MockNetwork: 模拟 interfaces.Network，记录 Create 调用
//   - MockConnection: 模拟 interfaces.Connection，记录发送数据与观察者注册，
//     并可通过 Deliver 注入入站消息
//
// # 事件 Mock
//
//   - MockEventBus: 模拟 interfaces.EventBus，按事件类型路由并记录所有发射的事件
//
// # 设计原则
//
//  1. 函数式注入: 每个 Mock 都支持通过 XxxFunc 字段注入自定义行为
//  2. 调用记录: 关键 Mock 记录调用历史，便于验证测试行为
//
// # 使用示例
//
//	conn := mocks.NewMockConnection("peer-a")
//	network := mocks.NewMockNetwork(conn)
//	network.CreateFunc = func(ctx context.Context, cfg interfaces.BootstrapConfig) (interfaces.Connection, error) {
//	    return nil, errors.New("unreachable")
//	}
package mocks
