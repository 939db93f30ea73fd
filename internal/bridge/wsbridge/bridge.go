package wsbridge

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/gorilla/websocket"

	p2pchat "github.com/dep2p/go-p2pchat"
	"github.com/dep2p/go-p2pchat/internal/util/logger"
	"github.com/dep2p/go-p2pchat/pkg/interfaces"
	"github.com/dep2p/go-p2pchat/pkg/types"
)

var log = logger.Logger("bridge/ws")

// ErrRateLimited 客户端发送过快
var ErrRateLimited = errors.New("wsbridge: rate limited")

// ErrUnknownFrame 未知的客户端帧类型
var ErrUnknownFrame = errors.New("wsbridge: unknown frame type")

// Session 桥使用的会话能力，*p2pchat.Session 满足该接口
type Session interface {
	Status() types.ConnectionState
	Publish(ctx context.Context, topic types.Topic, payload types.Payload) error
	Observe(topic types.Topic, handler p2pchat.Handler) (*p2pchat.Subscription, error)
	SubscribeStatus() (interfaces.Subscription, error)
	Presence() []types.PresenceUpdate
}

// Config 桥配置
type Config struct {
	// Topic 聊天主题
	Topic types.Topic

	// Username 浏览器发出的消息使用的用户名
	Username string

	// MessagesPerSecond 每个客户端的发送速率
	MessagesPerSecond float64

	// Burst 突发上限
	Burst int

	// Clock 时间源，nil 时使用系统时钟
	Clock clock.Clock
}

// DefaultConfig 返回默认配置
func DefaultConfig() Config {
	return Config{
		Topic:             types.DefaultTopic,
		MessagesPerSecond: 5,
		Burst:             10,
	}
}

// Validate 验证配置
func (c Config) Validate() error {
	if c.Topic.IsEmpty() {
		return errors.New("wsbridge: topic must not be empty")
	}
	if c.MessagesPerSecond <= 0 || c.Burst <= 0 {
		return fmt.Errorf("wsbridge: invalid rate %v/%d", c.MessagesPerSecond, c.Burst)
	}
	return nil
}

// 写入参数
const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxFrameSize   = 4096
	sendBufferSize = 64
)

// Bridge WebSocket 桥
type Bridge struct {
	cfg      Config
	session  Session
	clock    clock.Clock
	upgrader websocket.Upgrader

	mu      sync.Mutex
	closed  bool
	clients map[*client]struct{}
}

// New 创建桥
func New(cfg Config, session Session) (*Bridge, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if session == nil {
		return nil, errors.New("wsbridge: nil session")
	}
	clk := cfg.Clock
	if clk == nil {
		clk = clock.New()
	}
	return &Bridge{
		cfg:     cfg,
		session: session,
		clock:   clk,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// 本地 UI 与桥通常不同源
			CheckOrigin: func(*http.Request) bool { return true },
		},
		clients: make(map[*client]struct{}),
	}, nil
}

// ServeHTTP 升级为 WebSocket 并服务一个客户端
func (b *Bridge) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	b.mu.Lock()
	closed := b.closed
	b.mu.Unlock()
	if closed {
		http.Error(w, "bridge closed", http.StatusServiceUnavailable)
		return
	}

	conn, err := b.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Debug("WebSocket 升级失败", "remote", r.RemoteAddr, "err", err)
		return
	}

	c := newClient(b, conn)
	if !b.add(c) {
		_ = conn.Close()
		return
	}
	log.Info("浏览器已连接", "remote", r.RemoteAddr)

	c.run()

	b.remove(c)
	log.Info("浏览器已断开", "remote", r.RemoteAddr)
}

// ClientCount 返回当前连接的客户端数
func (b *Bridge) ClientCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.clients)
}

// Close 断开所有客户端
func (b *Bridge) Close() error {
	b.mu.Lock()
	b.closed = true
	clients := make([]*client, 0, len(b.clients))
	for c := range b.clients {
		clients = append(clients, c)
	}
	b.mu.Unlock()

	for _, c := range clients {
		c.shutdown()
	}
	return nil
}

func (b *Bridge) add(c *client) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return false
	}
	b.clients[c] = struct{}{}
	return true
}

func (b *Bridge) remove(c *client) {
	b.mu.Lock()
	delete(b.clients, c)
	b.mu.Unlock()
}

// publish 发布浏览器输入的文本，成功时返回用于本地回显的消息
func (b *Bridge) publish(ctx context.Context, text string) (types.ChatMessage, error) {
	if strings.TrimSpace(text) == "" {
		return types.ChatMessage{}, p2pchat.ErrEmptyText
	}
	msg := types.ChatMessage{
		Username:        b.cfg.Username,
		Text:            text,
		TimestampMillis: types.NowMillis(b.clock.Now()),
	}
	if err := b.session.Publish(ctx, b.cfg.Topic, msg); err != nil {
		return types.ChatMessage{}, err
	}
	return msg, nil
}
