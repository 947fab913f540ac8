package nats

import (
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/mark3labs/checkwatch/internal/events"
	"github.com/mark3labs/checkwatch/internal/logger"
	"github.com/nats-io/nats.go"
)

// subjectPrefix namespaces every pipeline event.
const subjectPrefix = "checkwatch"

// SubjectAll matches every pipeline event.
const SubjectAll = subjectPrefix + ".>"

// SubjectFor returns the subject an event kind is published on.
// Example: "task:changed" -> "checkwatch.task.changed"
func SubjectFor(kind events.Kind) string {
	return subjectPrefix + "." + strings.ReplaceAll(string(kind), ":", ".")
}

// Handler receives decoded events.
type Handler func(events.Event)

// Bus publishes and delivers events.Event values over NATS core subjects.
// Delivery is at-most-once; nothing is persisted.
type Bus struct {
	nc   *nats.Conn
	mu   sync.Mutex
	subs []*nats.Subscription
}

// NewBus wraps an established connection.
func NewBus(nc *nats.Conn) *Bus {
	return &Bus{nc: nc}
}

// Publish encodes and publishes e.
func (b *Bus) Publish(e events.Event) error {
	data, err := events.Encode(e)
	if err != nil {
		return err
	}
	subject := SubjectFor(e.Kind())
	if err := b.nc.Publish(subject, data); err != nil {
		return fmt.Errorf("failed to publish to %s: %w", subject, err)
	}
	logger.Debug("Published %s", subject)
	return nil
}

// Subscribe delivers events of the given kinds (all kinds when none are
// given) to fn. A single wildcard subscription is used so that events from
// one publisher arrive in publish order regardless of kind.
func (b *Bus) Subscribe(fn Handler, kinds ...events.Kind) (*nats.Subscription, error) {
	want := make(map[events.Kind]bool, len(kinds))
	for _, k := range kinds {
		want[k] = true
	}

	sub, err := b.nc.Subscribe(SubjectAll, func(msg *nats.Msg) {
		e, env, err := events.Decode(msg.Data)
		if err != nil {
			logger.Warn("Dropping undecodable event on %s: %v", msg.Subject, err)
			return
		}
		if len(want) > 0 && !want[env.Kind] {
			return
		}
		fn(e)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to subscribe: %w", err)
	}

	b.mu.Lock()
	b.subs = append(b.subs, sub)
	b.mu.Unlock()
	return sub, nil
}

// Flush waits until the server has processed everything published so far.
func (b *Bus) Flush() error {
	return b.nc.Flush()
}

// Close removes every subscription made through b. The connection itself
// belongs to the caller.
func (b *Bus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, sub := range b.subs {
		if err := sub.Unsubscribe(); err != nil && !errors.Is(err, nats.ErrConnectionClosed) {
			logger.Debug("Unsubscribe failed: %v", err)
		}
	}
	b.subs = nil
}
