package relay

import (
	"context"
	"sync"
	"time"

	"github.com/mark3labs/checkwatch/internal/logger"
)

// ConnState is the lifecycle state of one relay channel.
type ConnState string

const (
	StateDisconnected ConnState = "disconnected"
	StateConnecting   ConnState = "connecting"
	StateConnected    ConnState = "connected"
)

// connection is one reconnecting channel. It owns at most one reconnect
// timer, armed when the channel drops and cleared when it opens. The retry
// interval is fixed.
type connection struct {
	name      string
	url       string
	interval  time.Duration
	dialer    Dialer
	onOpen    func()
	onMessage func([]byte)

	mu     sync.Mutex
	ctx    context.Context
	state  ConnState
	conn   Conn
	timer  *time.Timer
	halted bool
	gen    uint64 // bumped on halt; stale dials and timers compare against it
	dials  int
}

func newConnection(name, url string, interval time.Duration, dialer Dialer) *connection {
	return &connection{
		name:     name,
		url:      url,
		interval: interval,
		dialer:   dialer,
		state:    StateDisconnected,
		halted:   true,
	}
}

// start begins connecting. It returns immediately.
func (c *connection) start(ctx context.Context) {
	c.mu.Lock()
	c.ctx = ctx
	c.halted = false
	c.mu.Unlock()

	go c.attempt()
}

// attempt dials once. Failure arms the reconnect timer.
func (c *connection) attempt() {
	c.mu.Lock()
	if c.halted || c.state != StateDisconnected {
		c.mu.Unlock()
		return
	}
	c.state = StateConnecting
	c.dials++
	gen, ctx := c.gen, c.ctx
	c.mu.Unlock()

	logger.Debug("Relay %s: connecting to %s", c.name, c.url)
	// A dial in flight when halt runs is bounded only by ctx. It completes
	// on its own and the generation check below closes the stray conn.
	conn, err := c.dialer.Dial(ctx, c.url)

	c.mu.Lock()
	if c.halted || c.gen != gen {
		c.mu.Unlock()
		if conn != nil {
			_ = conn.Close()
		}
		return
	}
	if err != nil {
		c.state = StateDisconnected
		c.armLocked()
		c.mu.Unlock()
		logger.Warn("Relay %s: connect failed: %v", c.name, err)
		return
	}
	c.state = StateConnected
	c.conn = conn
	c.disarmLocked()
	c.mu.Unlock()

	logger.Info("Relay %s: connected to %s", c.name, c.url)
	if c.onOpen != nil {
		c.onOpen()
	}
	go c.readLoop(conn)
}

func (c *connection) readLoop(conn Conn) {
	for {
		data, err := conn.ReadMessage()
		if err != nil {
			c.drop(conn, err)
			return
		}
		c.deliver(data)
	}
}

// deliver hands data to onMessage. A panicking handler is logged and the
// read loop keeps going.
func (c *connection) deliver(data []byte) {
	defer func() {
		if r := recover(); r != nil {
			logger.Error("Relay %s: message handler panicked: %v", c.name, r)
		}
	}()
	if c.onMessage != nil {
		c.onMessage(data)
	}
}

// drop moves a live connection to disconnected and arms the reconnect
// timer. Drops of connections that were already replaced are ignored.
func (c *connection) drop(conn Conn, cause error) {
	c.mu.Lock()
	if c.conn != conn {
		c.mu.Unlock()
		return
	}
	c.conn = nil
	c.state = StateDisconnected
	if !c.halted {
		c.armLocked()
	}
	c.mu.Unlock()

	_ = conn.Close()
	logger.Warn("Relay %s: connection lost: %v", c.name, cause)
}

// armLocked schedules one reconnect unless one is already pending.
func (c *connection) armLocked() {
	if c.timer != nil {
		return
	}
	gen := c.gen
	var t *time.Timer
	t = time.AfterFunc(c.interval, func() {
		c.mu.Lock()
		if c.timer != t || c.gen != gen {
			c.mu.Unlock()
			return
		}
		c.timer = nil
		c.mu.Unlock()
		c.attempt()
	})
	c.timer = t
}

func (c *connection) disarmLocked() {
	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}
}

// send writes data when connected. Messages are dropped while the channel is
// not open. Write failures drop the connection.
func (c *connection) send(data []byte) bool {
	c.mu.Lock()
	conn := c.conn
	open := c.state == StateConnected
	c.mu.Unlock()

	if !open || conn == nil {
		logger.Debug("Relay %s: not connected, dropping message", c.name)
		return false
	}
	if err := conn.WriteMessage(data); err != nil {
		c.drop(conn, err)
		return false
	}
	return true
}

// halt clears the reconnect timer and prevents further attempts.
func (c *connection) halt() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.halted = true
	c.gen++
	c.disarmLocked()
}

// closeConn closes the live socket, if any. Call halt first.
func (c *connection) closeConn() {
	c.mu.Lock()
	conn := c.conn
	c.conn = nil
	c.state = StateDisconnected
	c.mu.Unlock()

	if conn != nil {
		_ = conn.Close()
	}
}

func (c *connection) State() ConnState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// attempts returns how many dials have been started.
func (c *connection) attempts() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.dials
}
