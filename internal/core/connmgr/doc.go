// Package connmgr 实现会话的连接管理器
//
// 进程内只维护一条到 P2P 网络的连接。Manager 把"建立连接"做成一个
// 记忆化的单次尝试：
//
//	none ──Start/GetConnection──► starting ──Create 成功──► connecting ──远端可达──► ready
//	                                 │                           │
//	                                 └── Create 失败              └── 等待远端失败/超时
//	                                     (停留在 starting)            (停留在 connecting)
//
// 第一个 Start 或 GetConnection 调用发起尝试，并发调用方共享同一次尝试，
// 得到相同的连接或相同的错误。失败不会自动重试，错误被记住并返回给之后的
// 每个调用方；状态不会回到 none。
//
// 每次状态变更都会在事件总线上发射 types.EvtStatusChanged（有状态发射器，
// 新订阅方立即收到当前状态），失败时发射 Old == New 且 Err 非空的事件。
//
// # 快速开始
//
//	mgr, _ := connmgr.New(connmgr.DefaultConfig(), network, lifecycle.NewCoordinator(), bus, nil)
//	if err := mgr.Start(ctx); err != nil {
//	    var cerr *connmgr.ConnectionError
//	    errors.As(err, &cerr) // cerr.Stage: create / wait_peer
//	}
//	conn, _ := mgr.GetConnection(ctx)
package connmgr
