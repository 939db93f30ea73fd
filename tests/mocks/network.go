package mocks

import (
	"context"
	"sync"

	"github.com/dep2p/go-p2pchat/pkg/interfaces"
)

// ============================================================================
//                              MockNetwork
// ============================================================================

// MockNetwork 模拟 Network 接口实现
type MockNetwork struct {
	mu sync.Mutex

	// Conn 默认 Create 返回的连接
	Conn *MockConnection

	// 可覆盖的方法
	CreateFunc func(ctx context.Context, cfg interfaces.BootstrapConfig) (interfaces.Connection, error)

	// 调用记录
	CreateCalls []interfaces.BootstrapConfig
}

// NewMockNetwork 创建返回 conn 的 MockNetwork
func NewMockNetwork(conn *MockConnection) *MockNetwork {
	return &MockNetwork{Conn: conn}
}

// Create 建立连接
func (m *MockNetwork) Create(ctx context.Context, cfg interfaces.BootstrapConfig) (interfaces.Connection, error) {
	m.mu.Lock()
	m.CreateCalls = append(m.CreateCalls, cfg)
	m.mu.Unlock()

	if m.CreateFunc != nil {
		return m.CreateFunc(ctx, cfg)
	}
	return m.Conn, nil
}

// CreateCount 返回 Create 调用次数
func (m *MockNetwork) CreateCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.CreateCalls)
}

// ============================================================================
//                              MockConnection
// ============================================================================

// SentMessage 一次 Send 调用
type SentMessage struct {
	Topic string
	Data  []byte
}

// MockConnection 模拟 Connection 接口实现
type MockConnection struct {
	mu sync.Mutex

	IDValue string
	closed  bool

	// observers 主题 → 已注册观察者（按注册顺序）
	observers map[string][]interfaces.Observer

	// 可覆盖的方法
	WaitForRemotePeerFunc func(ctx context.Context) error
	SendFunc              func(ctx context.Context, topic string, data []byte) error
	CloseFunc             func() error

	// 调用记录
	Sent                   []SentMessage
	WaitForRemotePeerCalls int
	AddObserverCalls       int
	RemoveObserverCalls    int
	CloseCalls             int
}

// NewMockConnection 创建带有默认值的 MockConnection
func NewMockConnection(id string) *MockConnection {
	return &MockConnection{
		IDValue:   id,
		observers: make(map[string][]interfaces.Observer),
	}
}

// ID 返回本地节点标识
func (m *MockConnection) ID() string {
	return m.IDValue
}

// WaitForRemotePeer 默认立即返回
func (m *MockConnection) WaitForRemotePeer(ctx context.Context) error {
	m.mu.Lock()
	m.WaitForRemotePeerCalls++
	m.mu.Unlock()

	if m.WaitForRemotePeerFunc != nil {
		return m.WaitForRemotePeerFunc(ctx)
	}
	return nil
}

// Send 记录发送的数据
func (m *MockConnection) Send(ctx context.Context, topic string, data []byte) error {
	if m.SendFunc != nil {
		if err := m.SendFunc(ctx, topic, data); err != nil {
			return err
		}
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return interfaces.ErrConnectionClosed
	}
	m.Sent = append(m.Sent, SentMessage{Topic: topic, Data: append([]byte(nil), data...)})
	return nil
}

// AddObserver 注册观察者
func (m *MockConnection) AddObserver(obs interfaces.Observer, topics ...string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.AddObserverCalls++
	for _, topic := range topics {
		if indexOf(m.observers[topic], obs) < 0 {
			m.observers[topic] = append(m.observers[topic], obs)
		}
	}
	return nil
}

// RemoveObserver 移除观察者
func (m *MockConnection) RemoveObserver(obs interfaces.Observer, topics ...string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.RemoveObserverCalls++
	for _, topic := range topics {
		list := m.observers[topic]
		if i := indexOf(list, obs); i >= 0 {
			m.observers[topic] = append(list[:i], list[i+1:]...)
		}
		if len(m.observers[topic]) == 0 {
			delete(m.observers, topic)
		}
	}
	return nil
}

// Close 关闭连接
func (m *MockConnection) Close() error {
	m.mu.Lock()
	m.CloseCalls++
	m.closed = true
	m.mu.Unlock()

	if m.CloseFunc != nil {
		return m.CloseFunc()
	}
	return nil
}

// ============================================================================
//                              测试辅助
// ============================================================================

// Deliver 向主题上的观察者同步投递一条入站消息
func (m *MockConnection) Deliver(topic string, data []byte) {
	m.mu.Lock()
	observers := append([]interfaces.Observer(nil), m.observers[topic]...)
	m.mu.Unlock()

	for _, obs := range observers {
		obs.OnMessage(topic, data)
	}
}

// ObserverCount 返回主题上的观察者数量
func (m *MockConnection) ObserverCount(topic string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.observers[topic])
}

// SentMessages 返回已发送消息的副本
func (m *MockConnection) SentMessages() []SentMessage {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]SentMessage(nil), m.Sent...)
}

// IsClosed 检查是否已关闭
func (m *MockConnection) IsClosed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closed
}

func indexOf(list []interfaces.Observer, obs interfaces.Observer) int {
	for i, o := range list {
		if o == obs {
			return i
		}
	}
	return -1
}

var (
	_ interfaces.Network    = (*MockNetwork)(nil)
	_ interfaces.Connection = (*MockConnection)(nil)
)
