// Package libp2pnet 基于 go-libp2p 和 GossipSub 实现网络
//
// Create 启动一个 libp2p 主机和 GossipSub 路由器，并连接配置的引导节点
// （带 /p2p/ 节点 ID 的 multiaddr）。单个引导节点不可达只记录日志；
// 远端是否可达由 WaitForRemotePeer 判断。
//
// 每个主题在第一个观察者注册时订阅，最后一个观察者移除时取消订阅。
// 自己发布的消息不会投递给自己的观察者。
package libp2pnet
