package memnet

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dep2p/go-p2pchat/pkg/interfaces"
	"github.com/dep2p/go-p2pchat/tests/testutil"
)

const topic = "/topic_simple_text/1/chat/proto"

type received struct {
	topic string
	data  string
}

// recorder 记录收到的消息
type recorder struct {
	ch chan received
}

func newRecorder() *recorder {
	return &recorder{ch: make(chan received, 64)}
}

func (r *recorder) OnMessage(topic string, data []byte) {
	r.ch <- received{topic: topic, data: string(data)}
}

func create(t *testing.T, hub *Hub) interfaces.Connection {
	t.Helper()
	conn, err := NewNetwork(hub).Create(context.Background(), interfaces.BootstrapConfig{})
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func TestConn_IDsAreUnique(t *testing.T) {
	hub := NewHub()
	a := create(t, hub)
	b := create(t, hub)

	assert.NotEmpty(t, a.ID())
	assert.NotEqual(t, a.ID(), b.ID())
	assert.ElementsMatch(t, []string{a.ID(), b.ID()}, hub.Peers())
}

func TestConn_WaitForRemotePeer(t *testing.T) {
	hub := NewHub()
	a := create(t, hub)

	errCh := make(chan error, 1)
	go func() { errCh <- a.WaitForRemotePeer(context.Background()) }()

	testutil.NoRecv(t, errCh, 20*time.Millisecond)

	create(t, hub)
	assert.NoError(t, testutil.Recv(t, errCh, time.Second))
}

func TestDefaultHub_Shared(t *testing.T) {
	require.Same(t, DefaultHub(), DefaultHub())

	a := create(t, DefaultHub())
	b := create(t, DefaultHub())

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, a.WaitForRemotePeer(ctx))
	require.NoError(t, b.WaitForRemotePeer(ctx))
}

func TestConn_WaitForRemotePeerCancel(t *testing.T) {
	a := create(t, NewHub())

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, a.WaitForRemotePeer(ctx), context.DeadlineExceeded)
}

func TestConn_SendDeliversToOthers(t *testing.T) {
	hub := NewHub()
	a := create(t, hub)
	b := create(t, hub)

	recA, recB := newRecorder(), newRecorder()
	require.NoError(t, a.AddObserver(recA, topic))
	require.NoError(t, b.AddObserver(recB, topic))

	require.NoError(t, a.Send(context.Background(), topic, []byte("hello")))

	assert.Equal(t, received{topic: topic, data: "hello"}, testutil.Recv(t, recB.ch, time.Second))
	testutil.NoRecv(t, recA.ch, 20*time.Millisecond)
}

func TestConn_Loopback(t *testing.T) {
	hub := NewHub(WithLoopback())
	a := create(t, hub)

	rec := newRecorder()
	require.NoError(t, a.AddObserver(rec, topic))
	require.NoError(t, a.Send(context.Background(), topic, []byte("echo")))

	assert.Equal(t, "echo", testutil.Recv(t, rec.ch, time.Second).data)
}

func TestConn_TopicFiltering(t *testing.T) {
	hub := NewHub()
	a := create(t, hub)
	b := create(t, hub)

	rec := newRecorder()
	require.NoError(t, b.AddObserver(rec, "/other"))
	require.NoError(t, a.Send(context.Background(), topic, []byte("x")))

	testutil.NoRecv(t, rec.ch, 20*time.Millisecond)
}

func TestConn_ObserverDedupAndRemove(t *testing.T) {
	hub := NewHub()
	a := create(t, hub)
	b := create(t, hub)

	rec := newRecorder()
	require.NoError(t, b.AddObserver(rec, topic))
	require.NoError(t, b.AddObserver(rec, topic))

	require.NoError(t, a.Send(context.Background(), topic, []byte("1")))
	testutil.Recv(t, rec.ch, time.Second)
	testutil.NoRecv(t, rec.ch, 20*time.Millisecond)

	require.NoError(t, b.RemoveObserver(rec, topic))
	require.NoError(t, b.RemoveObserver(rec, topic))
	require.NoError(t, a.Send(context.Background(), topic, []byte("2")))
	testutil.NoRecv(t, rec.ch, 20*time.Millisecond)
}

func TestConn_PreservesSendOrderPerSender(t *testing.T) {
	hub := NewHub()
	a := create(t, hub)
	b := create(t, hub)

	rec := newRecorder()
	require.NoError(t, b.AddObserver(rec, topic))

	for _, s := range []string{"1", "2", "3"} {
		require.NoError(t, a.Send(context.Background(), topic, []byte(s)))
	}
	for _, want := range []string{"1", "2", "3"} {
		assert.Equal(t, want, testutil.Recv(t, rec.ch, time.Second).data)
	}
}

func TestConn_FullInboxDrops(t *testing.T) {
	hub := NewHub(WithInboxSize(1))
	a := create(t, hub)
	b := create(t, hub)

	block := make(chan struct{})
	var mu sync.Mutex
	var count int
	obs := interfaces.ObserverFunc(func(string, []byte) {
		<-block
		mu.Lock()
		count++
		mu.Unlock()
	})
	require.NoError(t, b.AddObserver(&obs, topic))

	for i := 0; i < 10; i++ {
		require.NoError(t, a.Send(context.Background(), topic, []byte{byte(i)}))
	}
	close(block)

	testutil.Eventually(t, time.Second, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return count >= 1
	}, "至少投递一条")

	mu.Lock()
	defer mu.Unlock()
	assert.Less(t, count, 10)
}

func TestConn_Close(t *testing.T) {
	hub := NewHub()
	a := create(t, hub)
	b := create(t, hub)

	require.NoError(t, b.Close())
	require.NoError(t, b.Close())

	assert.ErrorIs(t, b.Send(context.Background(), topic, nil), interfaces.ErrConnectionClosed)
	assert.ErrorIs(t, b.AddObserver(newRecorder(), topic), interfaces.ErrConnectionClosed)
	assert.ErrorIs(t, b.WaitForRemotePeer(context.Background()), interfaces.ErrConnectionClosed)
	assert.Equal(t, []string{a.ID()}, hub.Peers())

	// 发送到已离开的连接不报错
	assert.NoError(t, a.Send(context.Background(), topic, []byte("x")))
}

func TestNetwork_CreateCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewNetwork(NewHub()).Create(ctx, interfaces.BootstrapConfig{})
	assert.ErrorIs(t, err, context.Canceled)
}
