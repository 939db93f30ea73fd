package wsbridge

import (
	"context"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	p2pchat "github.com/dep2p/go-p2pchat"
	"github.com/dep2p/go-p2pchat/internal/core/codec"
	"github.com/dep2p/go-p2pchat/pkg/types"
	"github.com/dep2p/go-p2pchat/tests/mocks"
	"github.com/dep2p/go-p2pchat/tests/testutil"
)

const topic = types.DefaultTopic

type fixture struct {
	session *p2pchat.Session
	conn    *mocks.MockConnection
	bridge  *Bridge
	server  *httptest.Server
}

func newFixture(t *testing.T, mutate func(*Config)) *fixture {
	t.Helper()

	conn := mocks.NewMockConnection("local")
	sess, err := p2pchat.New(p2pchat.WithNetwork(mocks.NewMockNetwork(conn)))
	require.NoError(t, err)
	t.Cleanup(func() { _ = sess.Close() })

	cfg := DefaultConfig()
	cfg.Username = "alice"
	if mutate != nil {
		mutate(&cfg)
	}
	b, err := New(cfg, sess)
	require.NoError(t, err)

	srv := httptest.NewServer(b)
	t.Cleanup(func() {
		_ = b.Close()
		srv.Close()
	})

	return &fixture{session: sess, conn: conn, bridge: b, server: srv}
}

func (f *fixture) dial(t *testing.T) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(f.server.URL, "http")
	ws, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = ws.Close() })
	return ws
}

// readUntil 读取事件直到 match 返回 true
func readUntil(t *testing.T, ws *websocket.Conn, match func(Event) bool) Event {
	t.Helper()
	require.NoError(t, ws.SetReadDeadline(time.Now().Add(3*time.Second)))
	for {
		var evt Event
		require.NoError(t, ws.ReadJSON(&evt))
		if match(evt) {
			return evt
		}
	}
}

func isEvent(name string) func(Event) bool {
	return func(e Event) bool { return e.Event == name }
}

func TestBridge_ForwardsInboundMessages(t *testing.T) {
	f := newFixture(t, nil)
	require.NoError(t, f.session.Start(context.Background()))

	ws := f.dial(t)
	status := readUntil(t, ws, isEvent(EventStatus))
	assert.Equal(t, "ready", status.State)

	testutil.Eventually(t, 2*time.Second, func() bool {
		return f.conn.ObserverCount(topic.String()) == 1
	}, "bridge client should observe the chat topic")

	f.conn.Deliver(topic.String(), codec.Encode(types.ChatMessage{Username: "bob", Text: "hi", TimestampMillis: 1000}))
	evt := readUntil(t, ws, isEvent(EventMessage))
	assert.Equal(t, Event{Event: EventMessage, Username: "bob", Text: "hi", Timestamp: 1000}, evt)

	f.conn.Deliver(topic.String(), codec.Encode(types.PresenceUpdate{Username: "bob", LastSeenMillis: 2000}))
	evt = readUntil(t, ws, isEvent(EventPresence))
	assert.Equal(t, "bob", evt.Username)
	assert.Equal(t, uint64(2000), evt.LastSeen)
}

func TestBridge_PublishesClientFrames(t *testing.T) {
	f := newFixture(t, nil)
	require.NoError(t, f.session.Start(context.Background()))

	ws := f.dial(t)
	require.NoError(t, ws.WriteJSON(Frame{Type: FrameMessage, Text: "hello"}))

	echo := readUntil(t, ws, isEvent(EventMessage))
	assert.True(t, echo.Local)
	assert.Equal(t, "alice", echo.Username)
	assert.Equal(t, "hello", echo.Text)

	sent := f.conn.SentMessages()
	require.Len(t, sent, 1)
	decoded, err := codec.Decode(sent[0].Data)
	require.NoError(t, err)
	msg := decoded.(types.ChatMessage)
	assert.Equal(t, "alice", msg.Username)
	assert.Equal(t, "hello", msg.Text)
	assert.Equal(t, echo.Timestamp, msg.TimestampMillis)
}

func TestBridge_RejectsEmptyAndUnknownFrames(t *testing.T) {
	f := newFixture(t, nil)
	require.NoError(t, f.session.Start(context.Background()))

	ws := f.dial(t)

	require.NoError(t, ws.WriteJSON(Frame{Type: FrameMessage, Text: "  "}))
	evt := readUntil(t, ws, isEvent(EventError))
	assert.Equal(t, p2pchat.ErrEmptyText.Error(), evt.Error)

	require.NoError(t, ws.WriteJSON(Frame{Type: "typing"}))
	evt = readUntil(t, ws, isEvent(EventError))
	assert.Equal(t, ErrUnknownFrame.Error(), evt.Error)

	assert.Empty(t, f.conn.SentMessages())
}

func TestBridge_NotReady(t *testing.T) {
	f := newFixture(t, nil)

	ws := f.dial(t)
	status := readUntil(t, ws, isEvent(EventStatus))
	assert.Equal(t, "none", status.State)

	require.NoError(t, ws.WriteJSON(Frame{Type: FrameMessage, Text: "hello"}))
	evt := readUntil(t, ws, isEvent(EventError))
	assert.Equal(t, p2pchat.ErrNotReady.Error(), evt.Error)

	// 会话就绪后客户端收到状态并开始观察
	require.NoError(t, f.session.Start(context.Background()))
	readUntil(t, ws, func(e Event) bool { return e.Event == EventStatus && e.State == "ready" })
	testutil.Eventually(t, 2*time.Second, func() bool {
		return f.conn.ObserverCount(topic.String()) == 1
	}, "observer installed after ready")
}

func TestBridge_RateLimit(t *testing.T) {
	f := newFixture(t, func(c *Config) {
		c.MessagesPerSecond = 0.001
		c.Burst = 1
	})
	require.NoError(t, f.session.Start(context.Background()))

	ws := f.dial(t)
	require.NoError(t, ws.WriteJSON(Frame{Type: FrameMessage, Text: "one"}))
	require.NoError(t, ws.WriteJSON(Frame{Type: FrameMessage, Text: "two"}))

	evt := readUntil(t, ws, isEvent(EventError))
	assert.Equal(t, ErrRateLimited.Error(), evt.Error)
	assert.Len(t, f.conn.SentMessages(), 1)
}

func TestBridge_DisconnectReleasesObserver(t *testing.T) {
	f := newFixture(t, nil)
	require.NoError(t, f.session.Start(context.Background()))

	ws := f.dial(t)
	testutil.Eventually(t, 2*time.Second, func() bool {
		return f.conn.ObserverCount(topic.String()) == 1 && f.bridge.ClientCount() == 1
	}, "client connected")

	require.NoError(t, ws.Close())

	testutil.Eventually(t, 2*time.Second, func() bool {
		return f.conn.ObserverCount(topic.String()) == 0 && f.bridge.ClientCount() == 0
	}, "observer released after disconnect")
}

func TestConfig_Validate(t *testing.T) {
	assert.NoError(t, DefaultConfig().Validate())

	cfg := DefaultConfig()
	cfg.Topic = ""
	assert.Error(t, cfg.Validate())

	cfg = DefaultConfig()
	cfg.Burst = 0
	assert.Error(t, cfg.Validate())

	_, err := New(DefaultConfig(), nil)
	assert.Error(t, err)
}
