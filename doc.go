// Package p2pchat 提供 P2P 聊天的消息会话层
//
// 一个 Session 持有进程内唯一的 P2P 网络连接，维护连接就绪状态，
// 负责聊天消息和在线状态两种载荷的编解码，并把入站消息按主题分发给
// 已注册的处理函数。
//
// # 快速开始
//
//	import "github.com/dep2p/go-p2pchat"
//
//	// 1. 创建会话并等待网络就绪
//	sess, err := p2pchat.New(
//	    p2pchat.WithBootstrapPeers("/ip4/1.2.3.4/tcp/4001/p2p/12D3KooW..."),
//	)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer sess.Close()
//
//	if err := sess.Start(ctx); err != nil {
//	    log.Fatal(err)
//	}
//
//	// 2. 订阅主题
//	sub, _ := sess.Observe(p2pchat.DefaultTopic, func(topic p2pchat.Topic, p p2pchat.Payload) {
//	    if msg, ok := p.(p2pchat.ChatMessage); ok {
//	        fmt.Printf("%s: %s\n", msg.Username, msg.Text)
//	    }
//	})
//	defer sub.Unsubscribe()
//
//	// 3. 发送消息和在线心跳
//	_ = sess.SendMessage(ctx, p2pchat.DefaultTopic, "alice", "hi")
//	hb, _ := sess.StartHeartbeat(ctx, p2pchat.DefaultTopic, "alice")
//	defer hb.Stop()
//
// # 连接状态
//
//	none ──Start──▶ starting ──Create──▶ connecting ──WaitForRemotePeer──▶ ready
//
// 状态只前进不回退。建立失败时状态停留在失败前到达的阶段，错误被记住，
// 不会自动重试。Publish 和 Observe 只在 ready 时可用，否则返回 ErrNotReady。
//
// # 组件
//
//	┌───────────────────────────────────────────────────────────┐
//	│  Session（本包）                                           │
//	├──────────────┬──────────────┬──────────────┬──────────────┤
//	│ connmgr      │ registry     │ codec        │ metrics      │
//	│ 连接与就绪    │ 主题分发/在线 │ 线上格式      │ Prometheus   │
//	├──────────────┴──────────────┴──────────────┴──────────────┤
//	│  interfaces.Network（libp2pnet / memnet）                  │
//	└───────────────────────────────────────────────────────────┘
//
// 组件通过 go.uber.org/fx 组装，状态和在线变化通过进程内事件总线发布。
package p2pchat
