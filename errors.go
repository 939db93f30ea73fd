package p2pchat

import (
	"errors"

	"github.com/dep2p/go-p2pchat/internal/core/codec"
	"github.com/dep2p/go-p2pchat/internal/core/connmgr"
)

// 公共错误定义
var (
	// ────────────────────────────────────────────────────────────────────────
	// 会话错误
	// ────────────────────────────────────────────────────────────────────────

	// ErrNotReady 连接尚未就绪
	ErrNotReady = errors.New("p2pchat: session not ready")

	// ErrSessionClosed 会话已关闭
	ErrSessionClosed = errors.New("p2pchat: session closed")

	// ErrEmptyText 消息文本为空
	ErrEmptyText = errors.New("p2pchat: empty message text")

	// ErrInvalidPayload 载荷为 nil 或不是已知类型
	ErrInvalidPayload = errors.New("p2pchat: invalid payload")

	// ErrNilHandler 处理函数为 nil
	ErrNilHandler = errors.New("p2pchat: nil handler")

	// ────────────────────────────────────────────────────────────────────────
	// 连接错误
	// ────────────────────────────────────────────────────────────────────────

	// ErrConnectionFailed 连接建立失败
	//
	// Start 返回的 *connmgr.ConnectionError 满足 errors.Is(err, ErrConnectionFailed)。
	ErrConnectionFailed = connmgr.ErrConnectionFailed

	// ────────────────────────────────────────────────────────────────────────
	// 解码错误
	// ────────────────────────────────────────────────────────────────────────

	// ErrUnknownTag 载荷类型标签未知
	ErrUnknownTag = codec.ErrUnknownTag

	// ErrMissingField 缺少必需字段
	ErrMissingField = codec.ErrMissingField

	// ErrMalformed 载荷格式错误
	ErrMalformed = codec.ErrMalformed
)
