package connmgr

import (
	"context"
	"sync"

	"github.com/dep2p/go-p2pchat/internal/core/lifecycle"
	"github.com/dep2p/go-p2pchat/internal/core/metrics"
	"github.com/dep2p/go-p2pchat/internal/util/logger"
	"github.com/dep2p/go-p2pchat/pkg/interfaces"
	"github.com/dep2p/go-p2pchat/pkg/types"
)

var log = logger.Logger("core/connmgr")

// Manager 连接管理器
//
// 所有方法并发安全。
type Manager struct {
	cfg     Config
	network interfaces.Network
	coord   *lifecycle.Coordinator
	emitter interfaces.Emitter
	metrics *metrics.Collector

	// startOnce 保证只发起一次建立尝试
	startOnce sync.Once
	// done 尝试结束（成功或失败）时关闭
	done chan struct{}

	// ctx 管理器生命周期上下文，Close 时取消；建立尝试不受调用方上下文影响
	ctx    context.Context
	cancel context.CancelFunc

	mu     sync.Mutex
	conn   interfaces.Connection
	err    error
	closed bool
}

// New 创建连接管理器
//
// bus 和 collector 可以为 nil。
func New(cfg Config, network interfaces.Network, coord *lifecycle.Coordinator, bus interfaces.EventBus, collector *metrics.Collector) (*Manager, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if network == nil {
		return nil, ErrNoNetwork
	}
	if coord == nil {
		coord = lifecycle.NewCoordinator()
	}

	var emitter interfaces.Emitter
	if bus != nil {
		em, err := bus.Emitter(new(types.EvtStatusChanged), interfaces.Stateful())
		if err != nil {
			return nil, err
		}
		emitter = em
	}

	ctx, cancel := context.WithCancel(context.Background())
	m := &Manager{
		cfg:     cfg,
		network: network,
		coord:   coord,
		emitter: emitter,
		metrics: collector,
		done:    make(chan struct{}),
		ctx:     ctx,
		cancel:  cancel,
	}
	m.metrics.SetState(coord.State())
	coord.OnChange(m.onStateChange)
	return m, nil
}

// ============================================================================
//                              公共 API
// ============================================================================

// Status 返回当前连接状态
func (m *Manager) Status() types.ConnectionState {
	return m.coord.State()
}

// IsReady 连接是否已就绪
func (m *Manager) IsReady() bool {
	return m.coord.IsReached(types.StateReady)
}

// Ready 返回连接就绪时关闭的通道
func (m *Manager) Ready() <-chan struct{} {
	return m.coord.Reached(types.StateReady)
}

// Err 返回记住的建立失败（没有失败时为 nil）
func (m *Manager) Err() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.err
}

// Start 发起连接（若尚未发起）并等待就绪
//
// ctx 只约束本次等待，取消它不会中止共享的建立尝试。
func (m *Manager) Start(ctx context.Context) error {
	_, err := m.GetConnection(ctx)
	return err
}

// GetConnection 返回就绪的连接
//
// 第一次调用发起建立尝试，之后的调用返回记住的连接或错误。
func (m *Manager) GetConnection(ctx context.Context) (interfaces.Connection, error) {
	if err := m.ensureStarted(); err != nil {
		return nil, err
	}

	select {
	case <-m.done:
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return nil, ErrManagerClosed
	}
	if m.err != nil {
		return nil, m.err
	}
	return m.conn, nil
}

// Conn 返回就绪的连接，未就绪时返回 nil
//
// 不阻塞，也不会发起建立。
func (m *Manager) Conn() interfaces.Connection {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return nil
	}
	return m.conn
}

// WaitReady 等待连接就绪
//
// 不会发起建立；建立失败时返回记住的错误。
func (m *Manager) WaitReady(ctx context.Context) error {
	err := m.coord.WaitFor(ctx, types.StateReady)
	if err == lifecycle.ErrStopped {
		return ErrManagerClosed
	}
	return err
}

// Close 关闭管理器和已建立的连接
//
// 可多次调用。进行中的建立尝试被取消，等待方得到 ErrManagerClosed。
func (m *Manager) Close() error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil
	}
	m.closed = true
	conn := m.conn
	m.conn = nil
	m.mu.Unlock()

	m.cancel()

	// 从未发起的尝试不会再发起
	m.startOnce.Do(func() { close(m.done) })

	m.coord.Fail(ErrManagerClosed)

	var err error
	if conn != nil {
		err = conn.Close()
		log.Debug("连接已关闭", "peer", conn.ID())
	}
	if m.emitter != nil {
		_ = m.emitter.Close()
	}
	return err
}

// ============================================================================
//                              建立流程
// ============================================================================

// ensureStarted 发起唯一一次建立尝试
func (m *Manager) ensureStarted() error {
	m.mu.Lock()
	closed := m.closed
	m.mu.Unlock()
	if closed {
		return ErrManagerClosed
	}

	m.startOnce.Do(func() {
		go m.establish()
	})
	return nil
}

// establish 执行建立尝试
func (m *Manager) establish() {
	defer close(m.done)

	m.advance(types.StateStarting)
	log.Info("开始建立连接",
		"bootstrapPeers", len(m.cfg.Bootstrap.BootstrapPeers),
		"default", m.cfg.Bootstrap.Default)

	conn, err := m.network.Create(m.ctx, m.cfg.Bootstrap)
	if err != nil {
		m.fail(&ConnectionError{Stage: StageCreate, Err: err})
		return
	}
	if !m.adopt(conn) {
		return
	}

	m.advance(types.StateConnecting)

	waitCtx := m.ctx
	if m.cfg.PeerWaitTimeout > 0 {
		var cancel context.CancelFunc
		waitCtx, cancel = context.WithTimeout(m.ctx, m.cfg.PeerWaitTimeout)
		defer cancel()
	}

	if err := conn.WaitForRemotePeer(waitCtx); err != nil {
		m.mu.Lock()
		owned := m.conn == conn
		if owned {
			m.conn = nil
		}
		m.mu.Unlock()
		if owned {
			_ = conn.Close()
		}
		m.fail(&ConnectionError{Stage: StageWaitPeer, Err: err})
		return
	}

	m.mu.Lock()
	closed := m.closed
	m.mu.Unlock()
	if closed {
		return
	}

	m.advance(types.StateReady)
	log.Info("连接就绪", "peer", conn.ID())
}

// adopt 保存新建的连接；管理器已关闭时关闭它并返回 false
func (m *Manager) adopt(conn interfaces.Connection) bool {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		_ = conn.Close()
		return false
	}
	m.conn = conn
	m.mu.Unlock()
	return true
}

// advance 推进状态，通知由 onStateChange 完成
func (m *Manager) advance(state types.ConnectionState) {
	if err := m.coord.AdvanceTo(state); err != nil {
		log.Warn("状态推进失败", "to", state.String(), "err", err)
	}
}

// onStateChange 协调器状态变更回调：更新指标并发射状态事件
func (m *Manager) onStateChange(old, new types.ConnectionState) {
	m.metrics.SetState(new)
	m.emit(types.EvtStatusChanged{
		BaseEvent: types.NewBaseEvent(types.EventTypeStatusChanged),
		Old:       old,
		New:       new,
	})
}

// fail 记住失败并通知
func (m *Manager) fail(err *ConnectionError) {
	m.mu.Lock()
	closed := m.closed
	if !closed {
		m.err = err
	}
	m.mu.Unlock()
	if closed {
		return
	}

	state := m.coord.State()
	log.Warn("连接建立失败", "stage", string(err.Stage), "state", state.String(), "err", err.Err)

	m.coord.Fail(err)
	m.emit(types.EvtStatusChanged{
		BaseEvent: types.NewBaseEvent(types.EventTypeStatusChanged),
		Old:       state,
		New:       state,
		Err:       err,
	})
}

func (m *Manager) emit(evt types.EvtStatusChanged) {
	if m.emitter == nil {
		return
	}
	if err := m.emitter.Emit(evt); err != nil {
		log.Debug("状态事件发射失败", "err", err)
	}
}
