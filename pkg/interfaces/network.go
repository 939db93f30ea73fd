// Package interfaces 定义 go-p2pchat 公共接口
//
// 本文件定义底层 P2P 网络的协作者接口。
package interfaces

import (
	"context"
	"errors"
)

// ErrConnectionClosed 连接已关闭
var ErrConnectionClosed = errors.New("network: connection closed")

// BootstrapConfig 网络引导配置
type BootstrapConfig struct {
	// ListenAddrs 本地监听地址（实现相关的格式，如 multiaddr）
	ListenAddrs []string

	// BootstrapPeers 引导节点地址
	BootstrapPeers []string

	// Default 没有引导节点时使用实现的默认引导（如局域网发现）
	Default bool
}

// Network 底层 P2P 网络
//
// 只负责创建连接；节点发现、传输安全、消息传播都由实现自行处理。
type Network interface {
	// Create 建立到网络的连接
	Create(ctx context.Context, cfg BootstrapConfig) (Connection, error)
}

// Connection 已建立的网络连接句柄
//
// 所有方法并发安全。
type Connection interface {
	// ID 返回本地节点标识
	ID() string

	// WaitForRemotePeer 阻塞直到至少一个远端节点可达
	WaitForRemotePeer(ctx context.Context) error

	// Send 发布字节到主题
	//
	// 投递是尽力而为的：返回 nil 只表示网络已接受数据。
	Send(ctx context.Context, topic string, data []byte) error

	// AddObserver 为主题注册入站观察者
	//
	// 同一观察者对同一主题重复注册只生效一次。
	AddObserver(obs Observer, topics ...string) error

	// RemoveObserver 移除观察者在指定主题上的注册
	//
	// 移除未注册的观察者是空操作。
	RemoveObserver(obs Observer, topics ...string) error

	// Close 关闭连接
	Close() error
}

// Observer 入站消息观察者
//
// 观察者按指针身份区分。
type Observer interface {
	// OnMessage 处理一条入站消息
	OnMessage(topic string, data []byte)
}

// ObserverFunc 函数适配器
//
// 注意：函数值不可比较，ObserverFunc 必须以指针形式注册，
// 例如 obs := &ObserverFunc{...} 或直接使用自定义结构体。
type ObserverFunc func(topic string, data []byte)

// OnMessage 调用函数本身
func (f *ObserverFunc) OnMessage(topic string, data []byte) {
	(*f)(topic, data)
}
