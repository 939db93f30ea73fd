// Package lifecycle 提供会话连接状态协调器
//
// 连接状态只能向前推进：
//
//	none ──► starting ──► connecting ──► ready
//
// 本模块的核心职责：
//  1. 追踪当前连接状态
//  2. 为每个状态提供 gate（等待该状态到达）
//  3. 记录建立失败，让等待方立即得到错误而不是挂起
//  4. 按推进顺序通知状态变更
package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/dep2p/go-p2pchat/internal/util/logger"
	"github.com/dep2p/go-p2pchat/pkg/types"
)

var log = logger.Logger("core/lifecycle")

// 预定义错误
var (
	// ErrBackwards 尝试回退状态
	ErrBackwards = errors.New("lifecycle: cannot advance backwards")

	// ErrInvalidState 未定义的状态值
	ErrInvalidState = errors.New("lifecycle: invalid state")

	// ErrStopped 协调器已停止
	ErrStopped = errors.New("lifecycle: coordinator stopped")
)

// ============================================================================
//                              状态协调器
// ============================================================================

// Coordinator 连接状态协调器
//
// 只有连接管理器调用 AdvanceTo/Fail，其余组件只读或等待。
type Coordinator struct {
	// notifyMu 串行化推进与回调，保证回调按推进顺序执行
	notifyMu sync.Mutex

	mu sync.RWMutex

	// 当前状态
	state types.ConnectionState

	// 状态到达信号，关闭表示该状态已到达或已越过
	gates map[types.ConnectionState]chan struct{}

	// 失败信号
	failed chan struct{}
	err    error

	// 状态变更回调
	onChange []func(old, new types.ConnectionState)

	ctx    context.Context
	cancel context.CancelFunc
}

// NewCoordinator 创建状态协调器，初始状态为 none
func NewCoordinator() *Coordinator {
	ctx, cancel := context.WithCancel(context.Background())
	c := &Coordinator{
		state:  types.StateNone,
		gates:  make(map[types.ConnectionState]chan struct{}),
		failed: make(chan struct{}),
		ctx:    ctx,
		cancel: cancel,
	}

	for s := types.StateNone; s <= types.StateReady; s++ {
		c.gates[s] = make(chan struct{})
	}
	close(c.gates[types.StateNone])

	return c
}

// ============================================================================
//                              状态管理
// ============================================================================

// State 返回当前状态
func (c *Coordinator) State() types.ConnectionState {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.state
}

// AdvanceTo 推进到指定状态
//
// 规则：
//   - 只能向前推进，回退返回 ErrBackwards
//   - 推进到当前状态是空操作
//   - 跳过的中间状态视为已越过，其等待方被释放
//   - 回调在返回前于调用方 goroutine 中执行
func (c *Coordinator) AdvanceTo(target types.ConnectionState) error {
	if !target.IsValid() {
		return fmt.Errorf("%w: %d", ErrInvalidState, int(target))
	}

	c.notifyMu.Lock()
	defer c.notifyMu.Unlock()

	c.mu.Lock()
	if target < c.state {
		cur := c.state
		c.mu.Unlock()
		return fmt.Errorf("%w: current=%s target=%s", ErrBackwards, cur, target)
	}
	if target == c.state {
		c.mu.Unlock()
		return nil
	}

	old := c.state
	for s := old + 1; s <= target; s++ {
		closeOnce(c.gates[s])
	}
	c.state = target
	callbacks := make([]func(old, new types.ConnectionState), len(c.onChange))
	copy(callbacks, c.onChange)
	c.mu.Unlock()

	log.Debug("连接状态推进", "from", old.String(), "to", target.String())

	for _, cb := range callbacks {
		cb(old, target)
	}
	return nil
}

// Fail 记录建立失败
//
// 状态保持不变。之后等待任何尚未到达状态的调用都返回 err。
// 只有第一次调用生效。
func (c *Coordinator) Fail(err error) {
	if err == nil {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.err != nil {
		return
	}
	c.err = err
	close(c.failed)

	log.Warn("连接建立失败", "state", c.state.String(), "err", err)
}

// Err 返回记录的失败（没有失败时为 nil）
func (c *Coordinator) Err() error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.err
}

// WaitFor 等待指定状态到达
//
// 阻塞直到目标状态到达、建立失败、上下文取消或协调器停止。
func (c *Coordinator) WaitFor(ctx context.Context, state types.ConnectionState) error {
	c.mu.RLock()
	ch := c.gates[state]
	c.mu.RUnlock()

	if ch == nil {
		return fmt.Errorf("%w: %d", ErrInvalidState, int(state))
	}

	// 已到达的状态优先于失败和取消
	select {
	case <-ch:
		return nil
	default:
	}

	select {
	case <-ch:
		return nil
	case <-c.failed:
		return c.Err()
	case <-ctx.Done():
		return ctx.Err()
	case <-c.ctx.Done():
		return ErrStopped
	}
}

// Reached 返回指定状态到达（或越过）时关闭的通道
//
// 未定义的状态返回 nil 通道。
func (c *Coordinator) Reached(state types.ConnectionState) <-chan struct{} {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.gates[state]
}

// IsReached 检查指定状态是否已到达或已越过
func (c *Coordinator) IsReached(state types.ConnectionState) bool {
	c.mu.RLock()
	ch := c.gates[state]
	c.mu.RUnlock()

	if ch == nil {
		return false
	}

	select {
	case <-ch:
		return true
	default:
		return false
	}
}

// ============================================================================
//                              回调管理
// ============================================================================

// OnChange 注册状态变更回调
//
// 回调由 AdvanceTo 同步调用，按推进顺序执行；回调内不能再调用 AdvanceTo。
func (c *Coordinator) OnChange(callback func(old, new types.ConnectionState)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onChange = append(c.onChange, callback)
}

// ============================================================================
//                              生命周期控制
// ============================================================================

// Stop 停止协调器，释放所有等待方
func (c *Coordinator) Stop() {
	c.cancel()
}

func closeOnce(ch chan struct{}) {
	select {
	case <-ch:
	default:
		close(ch)
	}
}
