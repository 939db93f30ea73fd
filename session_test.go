package p2pchat

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/prometheus/client_golang/prometheus"
	promtestutil "github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dep2p/go-p2pchat/config"
	"github.com/dep2p/go-p2pchat/internal/core/codec"
	"github.com/dep2p/go-p2pchat/internal/network/memnet"
	"github.com/dep2p/go-p2pchat/pkg/interfaces"
	"github.com/dep2p/go-p2pchat/tests/mocks"
	"github.com/dep2p/go-p2pchat/tests/testutil"
)

const topic = DefaultTopic

func newMockSession(t *testing.T, conn *mocks.MockConnection, opts ...Option) (*Session, *mocks.MockNetwork) {
	t.Helper()

	network := mocks.NewMockNetwork(conn)
	s, err := New(append([]Option{WithNetwork(network)}, opts...)...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s, network
}

func startedMockSession(t *testing.T, opts ...Option) (*Session, *mocks.MockConnection) {
	t.Helper()

	conn := mocks.NewMockConnection("local")
	s, _ := newMockSession(t, conn, opts...)
	require.NoError(t, s.Start(context.Background()))
	require.Equal(t, StateReady, s.Status())
	return s, conn
}

// collector 收集处理函数收到的载荷
type collector struct {
	mu       sync.Mutex
	payloads []Payload
}

func (c *collector) handle(_ Topic, p Payload) {
	c.mu.Lock()
	c.payloads = append(c.payloads, p)
	c.mu.Unlock()
}

func (c *collector) all() []Payload {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]Payload(nil), c.payloads...)
}

// ════════════════════════════════════════════════════════════════════════════
//                              就绪门控
// ════════════════════════════════════════════════════════════════════════════

func TestSession_NotReady(t *testing.T) {
	conn := mocks.NewMockConnection("local")
	s, network := newMockSession(t, conn)

	assert.Equal(t, StateNone, s.Status())
	assert.Empty(t, s.ID())

	err := s.Publish(context.Background(), topic, ChatMessage{Username: "alice", Text: "hi"})
	assert.ErrorIs(t, err, ErrNotReady)

	_, err = s.Observe(topic, func(Topic, Payload) {})
	assert.ErrorIs(t, err, ErrNotReady)

	assert.ErrorIs(t, s.Heartbeat(context.Background(), topic, "alice"), ErrNotReady)

	// 未就绪时不产生任何网络调用
	assert.Zero(t, network.CreateCount())
	assert.Empty(t, conn.SentMessages())
}

func TestSession_StartReachesReady(t *testing.T) {
	s, conn := startedMockSession(t)

	assert.Equal(t, "local", s.ID())
	assert.NoError(t, s.WaitReady(context.Background()))
	assert.Equal(t, 1, conn.WaitForRemotePeerCalls)

	// 重复 Start 不会再次建立
	require.NoError(t, s.Start(context.Background()))
}

func TestSession_CreateFailure(t *testing.T) {
	conn := mocks.NewMockConnection("local")
	s, network := newMockSession(t, conn)
	network.CreateFunc = func(context.Context, interfaces.BootstrapConfig) (interfaces.Connection, error) {
		return nil, errors.New("boom")
	}

	err := s.Start(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrConnectionFailed)
	assert.Equal(t, StateStarting, s.Status())

	// 错误被记住，不会重试
	err2 := s.Start(context.Background())
	assert.Equal(t, err, err2)
	assert.Equal(t, 1, network.CreateCount())
	assert.Equal(t, err, s.Err())

	assert.ErrorIs(t, s.WaitReady(context.Background()), ErrConnectionFailed)
	assert.ErrorIs(t, s.Publish(context.Background(), topic, PresenceUpdate{Username: "a"}), ErrNotReady)
}

func TestSession_PeerWaitTimeout(t *testing.T) {
	conn := mocks.NewMockConnection("local")
	conn.WaitForRemotePeerFunc = func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	}
	s, _ := newMockSession(t, conn, WithPeerWaitTimeout(50*time.Millisecond))

	err := s.Start(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrConnectionFailed)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, StateConnecting, s.Status())
}

func TestSession_StartCallerCancel(t *testing.T) {
	release := make(chan struct{})
	conn := mocks.NewMockConnection("local")
	conn.WaitForRemotePeerFunc = func(ctx context.Context) error {
		select {
		case <-release:
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	s, _ := newMockSession(t, conn)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, s.Start(ctx), context.DeadlineExceeded)

	// 建立过程不受调用方取消影响
	close(release)
	require.NoError(t, s.WaitReady(context.Background()))
	assert.Equal(t, StateReady, s.Status())
}

func TestSession_StatusEvents(t *testing.T) {
	conn := mocks.NewMockConnection("local")
	s, _ := newMockSession(t, conn)

	sub, err := s.SubscribeStatus()
	require.NoError(t, err)
	defer sub.Close()

	require.NoError(t, s.Start(context.Background()))

	var states []ConnectionState
	for len(states) < 3 {
		evt := testutil.WaitForEvent(t, sub, time.Second).(EvtStatusChanged)
		states = append(states, evt.New)
	}
	assert.Equal(t, []ConnectionState{StateStarting, StateConnecting, StateReady}, states)

	// 新订阅者收到最近一次状态
	late, err := s.SubscribeStatus()
	require.NoError(t, err)
	defer late.Close()
	evt := testutil.WaitForEvent(t, late, time.Second).(EvtStatusChanged)
	assert.Equal(t, StateReady, evt.New)
}

// ════════════════════════════════════════════════════════════════════════════
//                              发布
// ════════════════════════════════════════════════════════════════════════════

func TestSession_Publish(t *testing.T) {
	reg := prometheus.NewRegistry()
	s, conn := startedMockSession(t, WithMetricsRegisterer(reg))

	msg := ChatMessage{Username: "alice", Text: "hi", TimestampMillis: 1000}
	require.NoError(t, s.Publish(context.Background(), topic, msg))

	sent := conn.SentMessages()
	require.Len(t, sent, 1)
	assert.Equal(t, topic.String(), sent[0].Topic)

	decoded, err := codec.Decode(sent[0].Data)
	require.NoError(t, err)
	assert.Equal(t, msg, decoded)

	count, err := promtestutil.GatherAndCount(reg, "p2pchat_published_total")
	require.NoError(t, err)
	assert.Equal(t, 1, count)
	assert.Equal(t, int64(len(sent[0].Data)), s.Traffic().TotalOut)
}

func TestSession_PublishErrors(t *testing.T) {
	s, conn := startedMockSession(t)

	assert.ErrorIs(t, s.Publish(context.Background(), topic, nil), ErrInvalidPayload)

	sendErr := errors.New("network down")
	conn.SendFunc = func(context.Context, string, []byte) error { return sendErr }
	err := s.Publish(context.Background(), topic, PresenceUpdate{Username: "a", LastSeenMillis: 1})
	assert.ErrorIs(t, err, sendErr)
}

func TestSession_SendMessage(t *testing.T) {
	clk := clock.NewMock()
	clk.Set(time.UnixMilli(1_700_000_000_000))
	s, conn := startedMockSession(t, WithClock(clk))

	for _, text := range []string{"", "   ", "\n\t"} {
		assert.ErrorIs(t, s.SendMessage(context.Background(), topic, "alice", text), ErrEmptyText)
	}
	assert.Empty(t, conn.SentMessages())

	require.NoError(t, s.SendMessage(context.Background(), topic, "alice", "hello"))
	sent := conn.SentMessages()
	require.Len(t, sent, 1)

	decoded, err := codec.Decode(sent[0].Data)
	require.NoError(t, err)
	assert.Equal(t, ChatMessage{Username: "alice", Text: "hello", TimestampMillis: 1_700_000_000_000}, decoded)
}

// ════════════════════════════════════════════════════════════════════════════
//                              订阅
// ════════════════════════════════════════════════════════════════════════════

func TestSession_ObserveDispatchesDecoded(t *testing.T) {
	s, conn := startedMockSession(t)

	var c collector
	sub, err := s.Observe(topic, c.handle)
	require.NoError(t, err)
	defer sub.Unsubscribe()
	assert.Equal(t, topic, sub.Topic())

	msg := ChatMessage{Username: "alice", Text: "hi", TimestampMillis: 1000}
	conn.Deliver(topic.String(), codec.Encode(msg))

	require.Equal(t, []Payload{msg}, c.all())
}

func TestSession_ObserveNilHandler(t *testing.T) {
	s, _ := startedMockSession(t)
	_, err := s.Observe(topic, nil)
	assert.ErrorIs(t, err, ErrNilHandler)
}

func TestSession_ObserverRefCount(t *testing.T) {
	s, conn := startedMockSession(t)

	var order []string
	first, err := s.Observe(topic, func(Topic, Payload) { order = append(order, "first") })
	require.NoError(t, err)
	second, err := s.Observe(topic, func(Topic, Payload) { order = append(order, "second") })
	require.NoError(t, err)

	// 同一主题只安装一个网络观察者
	assert.Equal(t, 1, conn.AddObserverCalls)
	assert.Equal(t, 1, conn.ObserverCount(topic.String()))

	conn.Deliver(topic.String(), codec.Encode(PresenceUpdate{Username: "bob", LastSeenMillis: 1}))
	assert.Equal(t, []string{"first", "second"}, order)

	first.Unsubscribe()
	assert.Equal(t, 1, conn.ObserverCount(topic.String()))
	assert.Zero(t, conn.RemoveObserverCalls)

	second.Unsubscribe()
	assert.Zero(t, conn.ObserverCount(topic.String()))
	assert.Equal(t, 1, conn.RemoveObserverCalls)

	// 幂等
	second.Unsubscribe()
	first.Unsubscribe()
	assert.Equal(t, 1, conn.RemoveObserverCalls)

	// 再次订阅重新安装
	again, err := s.Observe(topic, func(Topic, Payload) {})
	require.NoError(t, err)
	defer again.Unsubscribe()
	assert.Equal(t, 2, conn.AddObserverCalls)
}

func TestSession_TopicsAreIsolated(t *testing.T) {
	s, conn := startedMockSession(t)

	var chat, other collector
	subA, err := s.Observe(topic, chat.handle)
	require.NoError(t, err)
	defer subA.Unsubscribe()
	subB, err := s.Observe("/other/1", other.handle)
	require.NoError(t, err)
	defer subB.Unsubscribe()

	conn.Deliver("/other/1", codec.Encode(ChatMessage{Username: "x", Text: "y", TimestampMillis: 1}))

	assert.Empty(t, chat.all())
	assert.Len(t, other.all(), 1)
}

func TestSession_UnsubscribeInsideHandler(t *testing.T) {
	s, conn := startedMockSession(t)

	calls := 0
	var sub *Subscription
	sub, err := s.Observe(topic, func(Topic, Payload) {
		calls++
		sub.Unsubscribe()
	})
	require.NoError(t, err)

	data := codec.Encode(ChatMessage{Username: "a", Text: "b", TimestampMillis: 1})
	conn.Deliver(topic.String(), data)
	conn.Deliver(topic.String(), data)

	assert.Equal(t, 1, calls)
	assert.Zero(t, conn.ObserverCount(topic.String()))
}

func TestSession_DecodeFailureDropped(t *testing.T) {
	reg := prometheus.NewRegistry()
	s, conn := startedMockSession(t, WithMetricsRegisterer(reg))

	var c collector
	sub, err := s.Observe(topic, c.handle)
	require.NoError(t, err)
	defer sub.Unsubscribe()

	conn.Deliver(topic.String(), []byte{0xff, 0xff, 0xff})
	conn.Deliver(topic.String(), nil)

	assert.Empty(t, c.all())

	// malformed + missing_field
	count, err := promtestutil.GatherAndCount(reg, "p2pchat_decode_errors_total")
	require.NoError(t, err)
	assert.Equal(t, 2, count)

	count, err = promtestutil.GatherAndCount(reg, "p2pchat_received_total")
	require.NoError(t, err)
	assert.Zero(t, count)
}

func TestSession_Presence(t *testing.T) {
	s, conn := startedMockSession(t)

	events, err := s.SubscribePresence()
	require.NoError(t, err)
	defer events.Close()

	sub, err := s.Observe(topic, func(Topic, Payload) {})
	require.NoError(t, err)
	defer sub.Unsubscribe()

	conn.Deliver(topic.String(), codec.Encode(PresenceUpdate{Username: "carol", LastSeenMillis: 10}))
	conn.Deliver(topic.String(), codec.Encode(PresenceUpdate{Username: "dave", LastSeenMillis: 20}))
	conn.Deliver(topic.String(), codec.Encode(PresenceUpdate{Username: "carol", LastSeenMillis: 30}))

	assert.Equal(t, []PresenceUpdate{
		{Username: "carol", LastSeenMillis: 30},
		{Username: "dave", LastSeenMillis: 20},
	}, s.Presence())

	evt := testutil.WaitForEvent(t, events, time.Second).(EvtPresenceChanged)
	assert.Equal(t, "carol", evt.Update.Username)
	assert.Equal(t, topic, evt.Topic)
}

// ════════════════════════════════════════════════════════════════════════════
//                              心跳
// ════════════════════════════════════════════════════════════════════════════

func TestSession_Heartbeat(t *testing.T) {
	clk := clock.NewMock()
	s, conn := startedMockSession(t, WithClock(clk), WithHeartbeatInterval(time.Second))

	hb, err := s.StartHeartbeat(context.Background(), topic, "alice")
	require.NoError(t, err)

	// 立即发布一次
	testutil.Eventually(t, time.Second, func() bool {
		return len(conn.SentMessages()) == 1
	}, "immediate heartbeat")

	clk.Add(time.Second)
	testutil.Eventually(t, time.Second, func() bool {
		return len(conn.SentMessages()) == 2
	}, "periodic heartbeat")

	hb.Stop()
	hb.Stop()
	clk.Add(5 * time.Second)
	assert.Len(t, conn.SentMessages(), 2)

	decoded, err := codec.Decode(conn.SentMessages()[1].Data)
	require.NoError(t, err)
	update, ok := decoded.(PresenceUpdate)
	require.True(t, ok)
	assert.Equal(t, "alice", update.Username)
}

func TestSession_HeartbeatSkippedWhileNotReady(t *testing.T) {
	clk := clock.NewMock()
	conn := mocks.NewMockConnection("local")
	s, network := newMockSession(t, conn, WithClock(clk), WithHeartbeatInterval(time.Second))

	hb, err := s.StartHeartbeat(context.Background(), topic, "alice")
	require.NoError(t, err)
	defer hb.Stop()

	clk.Add(3 * time.Second)
	time.Sleep(20 * time.Millisecond)

	assert.Empty(t, conn.SentMessages())
	assert.Zero(t, network.CreateCount())

	// 就绪时立即发布，不等下一个周期
	require.NoError(t, s.Start(context.Background()))
	testutil.Eventually(t, time.Second, func() bool {
		return len(conn.SentMessages()) == 1
	}, "heartbeat on ready")

	clk.Add(time.Second)
	testutil.Eventually(t, time.Second, func() bool {
		return len(conn.SentMessages()) == 2
	}, "periodic heartbeat after ready")
}

func TestSession_HeartbeatStopsOnContextCancel(t *testing.T) {
	s, _ := startedMockSession(t, WithClock(clock.NewMock()))

	ctx, cancel := context.WithCancel(context.Background())
	hb, err := s.StartHeartbeat(ctx, topic, "alice")
	require.NoError(t, err)

	cancel()
	testutil.Recv(t, hb.Done(), time.Second)
}

// ════════════════════════════════════════════════════════════════════════════
//                              关闭
// ════════════════════════════════════════════════════════════════════════════

func TestSession_Close(t *testing.T) {
	s, conn := startedMockSession(t, WithClock(clock.NewMock()))

	sub, err := s.Observe(topic, func(Topic, Payload) {})
	require.NoError(t, err)
	hb, err := s.StartHeartbeat(context.Background(), topic, "alice")
	require.NoError(t, err)

	require.NoError(t, s.Close())

	testutil.Recv(t, hb.Done(), time.Second)
	assert.Zero(t, conn.ObserverCount(topic.String()))
	assert.True(t, conn.IsClosed())

	ctx := context.Background()
	assert.ErrorIs(t, s.Start(ctx), ErrSessionClosed)
	assert.ErrorIs(t, s.Publish(ctx, topic, PresenceUpdate{Username: "a"}), ErrSessionClosed)
	_, err = s.Observe(topic, func(Topic, Payload) {})
	assert.ErrorIs(t, err, ErrSessionClosed)
	_, err = s.StartHeartbeat(ctx, topic, "alice")
	assert.ErrorIs(t, err, ErrSessionClosed)
	_, err = s.SubscribeStatus()
	assert.ErrorIs(t, err, ErrSessionClosed)
	assert.ErrorIs(t, s.WaitReady(ctx), ErrSessionClosed)

	// 幂等
	assert.NoError(t, s.Close())
	sub.Unsubscribe()
	hb.Stop()
}

func TestSession_CloseBeforeStart(t *testing.T) {
	conn := mocks.NewMockConnection("local")
	s, network := newMockSession(t, conn)

	require.NoError(t, s.Close())
	assert.Zero(t, network.CreateCount())
	assert.ErrorIs(t, s.Start(context.Background()), ErrSessionClosed)
}

// ════════════════════════════════════════════════════════════════════════════
//                              端到端（进程内网络）
// ════════════════════════════════════════════════════════════════════════════

func TestSession_MemnetChat(t *testing.T) {
	hub := memnet.NewHub()
	newSession := func() *Session {
		s, err := New(WithNetwork(memnet.NewNetwork(hub)))
		require.NoError(t, err)
		t.Cleanup(func() { _ = s.Close() })
		return s
	}
	alice, bob := newSession(), newSession()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	errc := make(chan error, 1)
	go func() { errc <- alice.Start(ctx) }()
	require.NoError(t, bob.Start(ctx))
	require.NoError(t, <-errc)

	received := make(chan Payload, 4)
	sub, err := alice.Observe(topic, func(_ Topic, p Payload) { received <- p })
	require.NoError(t, err)
	defer sub.Unsubscribe()

	bobSeen := make(chan Payload, 4)
	bobSub, err := bob.Observe(topic, func(_ Topic, p Payload) { bobSeen <- p })
	require.NoError(t, err)
	defer bobSub.Unsubscribe()

	require.NoError(t, bob.SendMessage(ctx, topic, "bob", "hi alice"))

	p := testutil.Recv(t, received, 2*time.Second)
	msg, ok := p.(ChatMessage)
	require.True(t, ok)
	assert.Equal(t, "bob", msg.Username)
	assert.Equal(t, "hi alice", msg.Text)

	// 自己的消息不回环
	testutil.NoRecv(t, bobSeen, 50*time.Millisecond)

	require.NoError(t, bob.Heartbeat(ctx, topic, "bob"))
	testutil.Eventually(t, 2*time.Second, func() bool {
		return len(alice.Presence()) == 1
	}, "presence from bob")
	assert.Equal(t, "bob", alice.Presence()[0].Username)
}

// ════════════════════════════════════════════════════════════════════════════
//                              配置
// ════════════════════════════════════════════════════════════════════════════

func TestUserConfig_ToOptions(t *testing.T) {
	cfg := config.NewConfig()
	cfg.Network.Kind = config.NetworkMemory
	cfg.Network.BootstrapPeers = []string{"/ip4/127.0.0.1/tcp/4001/p2p/QmcgpsyWgH8Y8ajJz1Cu72KnS5uo2Aa2LpzU7kinSupNKC"}
	cfg.Network.DefaultBootstrap = false
	cfg.Session.HeartbeatInterval = config.Duration(3 * time.Second)
	cfg.Session.PresenceCapacity = 8

	o := newOptions()
	for _, opt := range UserConfigFrom(cfg).ToOptions() {
		require.NoError(t, opt(o))
	}

	assert.IsType(t, &memnet.Network{}, o.network)
	assert.Equal(t, cfg.Network.BootstrapPeers, o.bootstrap.BootstrapPeers)
	assert.False(t, o.bootstrap.Default)
	assert.Equal(t, 2*time.Minute, o.peerWaitTimeout)
	assert.Equal(t, 3*time.Second, o.heartbeatInterval)
	assert.Equal(t, 8, o.presenceCapacity)
}

func TestUserConfig_MemorySessionsMeet(t *testing.T) {
	cfg := config.NewConfig()
	cfg.Network.Kind = config.NetworkMemory

	newSession := func() *Session {
		s, err := New(UserConfigFrom(cfg).ToOptions()...)
		require.NoError(t, err)
		t.Cleanup(func() { _ = s.Close() })
		return s
	}
	a, b := newSession(), newSession()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	errc := make(chan error, 1)
	go func() { errc <- a.Start(ctx) }()
	require.NoError(t, b.Start(ctx))
	require.NoError(t, <-errc)

	assert.Equal(t, StateReady, a.Status())
	assert.Equal(t, StateReady, b.Status())
}

func TestOptions_Validation(t *testing.T) {
	tests := []struct {
		name string
		opt  Option
	}{
		{"nil network", WithNetwork(nil)},
		{"empty bootstrap peer", WithBootstrapPeers("")},
		{"negative peer wait", WithPeerWaitTimeout(-time.Second)},
		{"zero heartbeat", WithHeartbeatInterval(0)},
		{"zero presence capacity", WithPresenceCapacity(0)},
		{"nil clock", WithClock(nil)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(tt.opt)
			assert.Error(t, err)
		})
	}
}
