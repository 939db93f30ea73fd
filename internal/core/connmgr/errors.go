package connmgr

import (
	"errors"
	"fmt"
)

// 连接管理器错误定义
var (
	// ErrConnectionFailed 连接建立失败
	ErrConnectionFailed = errors.New("connmgr: connection failed")

	// ErrInvalidConfig 配置无效
	ErrInvalidConfig = errors.New("connmgr: invalid config")

	// ErrManagerClosed 管理器已关闭
	ErrManagerClosed = errors.New("connmgr: manager closed")

	// ErrNoNetwork 未提供网络实现
	ErrNoNetwork = errors.New("connmgr: no network set")
)

// Stage 建立连接的阶段
type Stage string

const (
	// StageCreate 创建网络连接
	StageCreate Stage = "create"
	// StageWaitPeer 等待远端节点确认
	StageWaitPeer Stage = "wait_peer"
)

// ConnectionError 连接建立错误
type ConnectionError struct {
	Stage Stage // 失败阶段
	Err   error // 底层错误
}

// Error 实现 error 接口
func (e *ConnectionError) Error() string {
	return fmt.Sprintf("connmgr: connection failed at %s: %v", e.Stage, e.Err)
}

// Unwrap 支持 errors.Unwrap
func (e *ConnectionError) Unwrap() error {
	return e.Err
}

// Is 匹配 ErrConnectionFailed
func (e *ConnectionError) Is(target error) bool {
	return target == ErrConnectionFailed
}
