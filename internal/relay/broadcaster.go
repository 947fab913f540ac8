// Package relay forwards pipeline events to a dashboard over WebSocket and
// turns inbound control messages back into pipeline events. A second,
// independent channel to a shared-context server feeds context messages
// through to the dashboard.
//
// Delivery is best effort: while a channel is down its messages are dropped,
// and every socket failure is logged and retried on a fixed interval.
package relay

import (
	"context"
	"encoding/json"
	"time"

	"github.com/mark3labs/checkwatch/internal/events"
	"github.com/mark3labs/checkwatch/internal/logger"
	"github.com/mark3labs/checkwatch/internal/progress"
)

// DefaultReconnectInterval is the delay between reconnect attempts.
const DefaultReconnectInterval = 5 * time.Second

// Source supplies full snapshots for initial_data.
type Source interface {
	Snapshots() []progress.ProgressSnapshot
}

// Publisher receives the control and context events the relay decodes.
type Publisher interface {
	Publish(events.Event) error
}

// Config controls the relay channels. An empty URL disables that channel.
type Config struct {
	DashboardURL      string
	SharedContextURL  string
	ReconnectInterval time.Duration
	Dialer            Dialer
}

// Broadcaster owns the dashboard and shared-context channels.
type Broadcaster struct {
	src Source
	pub Publisher
	now func() time.Time

	dashboard *connection
	shared    *connection
}

// New creates a broadcaster. Nothing is dialed until Connect.
func New(cfg Config, src Source, pub Publisher) *Broadcaster {
	if cfg.ReconnectInterval <= 0 {
		cfg.ReconnectInterval = DefaultReconnectInterval
	}
	if cfg.Dialer == nil {
		cfg.Dialer = WebSocketDialer{}
	}

	b := &Broadcaster{src: src, pub: pub, now: time.Now}
	if cfg.DashboardURL != "" {
		b.dashboard = newConnection("dashboard", cfg.DashboardURL, cfg.ReconnectInterval, cfg.Dialer)
		b.dashboard.onOpen = b.sendInitialData
		b.dashboard.onMessage = b.handleControl
	}
	if cfg.SharedContextURL != "" {
		b.shared = newConnection("shared-context", cfg.SharedContextURL, cfg.ReconnectInterval, cfg.Dialer)
		b.shared.onOpen = b.sharedContextOpened
		b.shared.onMessage = b.handleContext
	}
	return b
}

func (b *Broadcaster) connections() []*connection {
	var out []*connection
	for _, c := range []*connection{b.dashboard, b.shared} {
		if c != nil {
			out = append(out, c)
		}
	}
	return out
}

// Connect starts both channels in the background.
func (b *Broadcaster) Connect(ctx context.Context) {
	for _, c := range b.connections() {
		c.start(ctx)
	}
}

// Disconnect clears both reconnect timers, then closes both sockets. No
// reconnect fires afterwards.
func (b *Broadcaster) Disconnect() {
	conns := b.connections()
	for _, c := range conns {
		c.halt()
	}
	for _, c := range conns {
		c.closeConn()
	}
}

// DashboardState reports the dashboard channel state.
func (b *Broadcaster) DashboardState() ConnState {
	if b.dashboard == nil {
		return StateDisconnected
	}
	return b.dashboard.State()
}

// SharedContextState reports the shared-context channel state.
func (b *Broadcaster) SharedContextState() ConnState {
	if b.shared == nil {
		return StateDisconnected
	}
	return b.shared.State()
}

// Handle forwards e to the dashboard when it has an outbound form.
func (b *Broadcaster) Handle(e events.Event) {
	msg, ok := Translate(e, b.now())
	if !ok {
		return
	}
	b.sendDashboard(msg)
}

func (b *Broadcaster) sendDashboard(msg Outbound) bool {
	if b.dashboard == nil {
		return false
	}
	data, err := json.Marshal(msg)
	if err != nil {
		logger.Warn("Relay: failed to encode %s: %v", msg.Type, err)
		return false
	}
	return b.dashboard.send(data)
}

func (b *Broadcaster) sendInitialData() {
	var snapshots []progress.ProgressSnapshot
	if b.src != nil {
		snapshots = b.src.Snapshots()
	}
	b.sendDashboard(Outbound{
		Type:      TypeInitialData,
		Data:      InitialData{Projects: snapshots},
		Timestamp: b.now(),
	})
}

func (b *Broadcaster) sharedContextOpened() {
	b.sendDashboard(Outbound{
		Type:      TypeSharedContextConnected,
		Data:      SharedContextConnected{URL: b.shared.url},
		Timestamp: b.now(),
	})
	b.publish(events.SharedContextConnected{URL: b.shared.url})
}

// handleControl re-emits dashboard control messages as local events. The
// relay never acts on them itself.
func (b *Broadcaster) handleControl(raw []byte) {
	e, err := DecodeControl(raw)
	if err != nil {
		logger.Warn("Relay dashboard: ignoring message: %v", err)
		return
	}
	logger.Info("Relay dashboard: received %s", e.Kind())
	b.publish(e)
}

// handleContext forwards shared-context updates to the dashboard.
func (b *Broadcaster) handleContext(raw []byte) {
	in, data, ok, err := decodeContext(raw)
	if err != nil {
		logger.Warn("Relay shared-context: ignoring message: %v", err)
		return
	}
	if !ok {
		logger.Debug("Relay shared-context: ignoring %q", in.Type)
		return
	}

	b.sendDashboard(Outbound{Type: in.Type, Data: in.Data, Timestamp: b.now()})
	b.publish(events.ContextUpdate{Type: string(in.Type), Data: data})
}

func (b *Broadcaster) publish(e events.Event) {
	if b.pub == nil {
		return
	}
	if err := b.pub.Publish(e); err != nil {
		logger.Warn("Relay: failed to publish %s: %v", e.Kind(), err)
	}
}
