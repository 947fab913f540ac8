package relay

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/mark3labs/checkwatch/internal/events"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeConn struct {
	in     chan []byte
	closed chan struct{}
	once   sync.Once

	mu      sync.Mutex
	written [][]byte
}

func newFakeConn() *fakeConn {
	return &fakeConn{in: make(chan []byte, 8), closed: make(chan struct{})}
}

func (c *fakeConn) ReadMessage() ([]byte, error) {
	select {
	case data := <-c.in:
		return data, nil
	case <-c.closed:
		return nil, errors.New("connection closed")
	}
}

func (c *fakeConn) WriteMessage(data []byte) error {
	select {
	case <-c.closed:
		return errors.New("connection closed")
	default:
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.written = append(c.written, data)
	return nil
}

func (c *fakeConn) Close() error {
	c.once.Do(func() { close(c.closed) })
	return nil
}

func (c *fakeConn) writes() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.written)
}

// fakeDialer hands out fakeConns, failing the first failFirst dials.
type fakeDialer struct {
	mu        sync.Mutex
	failFirst int
	dials     int
	conns     []*fakeConn
}

func (d *fakeDialer) Dial(ctx context.Context, url string) (Conn, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.dials++
	if d.dials <= d.failFirst {
		return nil, errors.New("connection refused")
	}
	c := newFakeConn()
	d.conns = append(d.conns, c)
	return c, nil
}

func (d *fakeDialer) count() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.dials
}

func (d *fakeDialer) last() *fakeConn {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.conns[len(d.conns)-1]
}

// gatedDialer holds every dial until release is closed.
type gatedDialer struct {
	fakeDialer
	entered chan struct{}
	release chan struct{}
}

func (d *gatedDialer) Dial(ctx context.Context, url string) (Conn, error) {
	d.entered <- struct{}{}
	<-d.release
	return d.fakeDialer.Dial(ctx, url)
}

func newFakeBroadcaster(t *testing.T, d *fakeDialer, interval time.Duration) *Broadcaster {
	t.Helper()
	b := New(Config{
		DashboardURL:      "ws://dashboard.test",
		ReconnectInterval: interval,
		Dialer:            d,
	}, nil, nil)
	t.Cleanup(b.Disconnect)
	return b
}

func waitState(t *testing.T, b *Broadcaster, want ConnState) {
	t.Helper()
	require.Eventually(t, func() bool {
		return b.DashboardState() == want
	}, 2*time.Second, 5*time.Millisecond, "state never became %s", want)
}

func TestConnection_CloseSchedulesExactlyOneReconnect(t *testing.T) {
	d := &fakeDialer{}
	b := newFakeBroadcaster(t, d, 50*time.Millisecond)

	b.Connect(context.Background())
	waitState(t, b, StateConnected)
	require.Equal(t, 1, d.count())

	first := d.last()
	_ = first.Close()

	require.Eventually(t, func() bool { return d.count() == 2 }, 2*time.Second, 5*time.Millisecond)
	waitState(t, b, StateConnected)

	time.Sleep(200 * time.Millisecond)
	assert.Equal(t, 2, d.count(), "only one reconnect per close")
}

func TestConnection_DisconnectBeforeTimerPreventsReconnect(t *testing.T) {
	d := &fakeDialer{}
	b := newFakeBroadcaster(t, d, 100*time.Millisecond)

	b.Connect(context.Background())
	waitState(t, b, StateConnected)

	_ = d.last().Close()
	waitState(t, b, StateDisconnected)

	b.Disconnect()
	time.Sleep(300 * time.Millisecond)

	assert.Equal(t, 1, d.count())
	assert.Equal(t, StateDisconnected, b.DashboardState())
}

func TestConnection_DialInFlightDuringDisconnectIsClosed(t *testing.T) {
	d := &gatedDialer{entered: make(chan struct{}, 1), release: make(chan struct{})}
	b := New(Config{
		DashboardURL:      "ws://dashboard.test",
		ReconnectInterval: 20 * time.Millisecond,
		Dialer:            d,
	}, nil, nil)

	b.Connect(context.Background())
	<-d.entered
	assert.Equal(t, StateConnecting, b.DashboardState())

	b.Disconnect()
	close(d.release)

	require.Eventually(t, func() bool { return d.count() == 1 }, 2*time.Second, 5*time.Millisecond)
	conn := d.last()
	select {
	case <-conn.closed:
	case <-time.After(2 * time.Second):
		t.Fatal("connection from a dial that outlived Disconnect was left open")
	}

	time.Sleep(100 * time.Millisecond)
	assert.Equal(t, StateDisconnected, b.DashboardState())
	assert.Equal(t, 1, d.count(), "no reconnect after Disconnect")
}

func TestConnection_RetriesFailedDials(t *testing.T) {
	d := &fakeDialer{failFirst: 2}
	b := newFakeBroadcaster(t, d, 20*time.Millisecond)

	b.Connect(context.Background())
	waitState(t, b, StateConnected)
	assert.Equal(t, 3, d.count())
}

func TestConnection_ReconnectAfterDisconnect(t *testing.T) {
	d := &fakeDialer{}
	b := newFakeBroadcaster(t, d, 20*time.Millisecond)

	b.Connect(context.Background())
	waitState(t, b, StateConnected)

	b.Disconnect()
	assert.Equal(t, StateDisconnected, b.DashboardState())

	b.Connect(context.Background())
	waitState(t, b, StateConnected)
	assert.Equal(t, 2, d.count())
}

func TestConnection_MessagesDroppedWhileDisconnected(t *testing.T) {
	d := &fakeDialer{}
	b := newFakeBroadcaster(t, d, time.Second)

	change := events.ProjectChanged{ProjectID: "p", Path: "/p"}
	b.Handle(change)
	assert.Equal(t, 0, d.count())

	b.Connect(context.Background())
	waitState(t, b, StateConnected)
	conn := d.last()

	// initial_data is sent on open.
	require.Eventually(t, func() bool { return conn.writes() == 1 }, time.Second, 5*time.Millisecond)

	b.Handle(change)
	assert.Equal(t, 2, conn.writes())

	_ = conn.Close()
	waitState(t, b, StateDisconnected)
	b.Handle(change)
	assert.Equal(t, 2, conn.writes())
}

func TestConnection_HandlerPanicKeepsReading(t *testing.T) {
	d := &fakeDialer{}
	c := newConnection("test", "ws://x", time.Second, d)
	var mu sync.Mutex
	got := 0
	c.onMessage = func(data []byte) {
		mu.Lock()
		got++
		mu.Unlock()
		if string(data) == "boom" {
			panic("bad message")
		}
	}
	c.start(context.Background())
	t.Cleanup(func() { c.halt(); c.closeConn() })

	require.Eventually(t, func() bool { return c.State() == StateConnected }, time.Second, 5*time.Millisecond)
	conn := d.last()
	conn.in <- []byte("boom")
	conn.in <- []byte("ok")

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return got == 2
	}, time.Second, 5*time.Millisecond)
	assert.Equal(t, StateConnected, c.State())
}
