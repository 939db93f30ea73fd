// Package memnet 提供进程内的网络实现
//
// 同一个 Hub 上的连接互相可见，用于测试和单进程演示：
//
//	hub := memnet.NewHub()
//	a, _ := memnet.NewNetwork(hub).Create(ctx, interfaces.BootstrapConfig{})
//	b, _ := memnet.NewNetwork(hub).Create(ctx, interfaces.BootstrapConfig{})
//	a.WaitForRemotePeer(ctx) // b 存在后返回
//
// 投递是异步的：Send 把数据放入每个接收连接的有界收件箱，由接收连接的
// 投递 goroutine 依次调用观察者。收件箱满时丢弃（至多一次）。
package memnet
