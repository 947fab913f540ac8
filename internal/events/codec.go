package events

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/rs/xid"
)

// Envelope is the wire form of an event on the bus.
type Envelope struct {
	ID        string          `json:"id"`
	Kind      Kind            `json:"kind"`
	Timestamp time.Time       `json:"timestamp"`
	Data      json.RawMessage `json:"data"`
}

// Encode wraps e in an Envelope with a fresh ID.
func Encode(e Event) ([]byte, error) {
	data, err := json.Marshal(e)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal %s event: %w", e.Kind(), err)
	}
	return json.Marshal(Envelope{
		ID:        xid.New().String(),
		Kind:      e.Kind(),
		Timestamp: time.Now(),
		Data:      data,
	})
}

// Decode unwraps an Envelope and returns its concrete event.
func Decode(raw []byte) (Event, Envelope, error) {
	var env Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, env, fmt.Errorf("failed to unmarshal envelope: %w", err)
	}

	var (
		e   Event
		err error
	)
	switch env.Kind {
	case KindTaskFound:
		e, err = decodeAs[TaskFound](env.Data)
	case KindTaskChanged:
		e, err = decodeAs[TaskChanged](env.Data)
	case KindTasksSynced:
		e, err = decodeAs[TasksSynced](env.Data)
	case KindProgressUpdated:
		e, err = decodeAs[ProgressUpdated](env.Data)
	case KindAgentsUpdated:
		e, err = decodeAs[AgentsUpdated](env.Data)
	case KindProjectChanged:
		e, err = decodeAs[ProjectChanged](env.Data)
	case KindRebalanceTasks:
		e, err = decodeAs[RebalanceTasks](env.Data)
	case KindReassignTasks:
		e, err = decodeAs[ReassignTasks](env.Data)
	case KindPauseAgent:
		e, err = decodeAs[PauseAgent](env.Data)
	case KindResumeAgent:
		e, err = decodeAs[ResumeAgent](env.Data)
	case KindContextUpdate:
		e, err = decodeAs[ContextUpdate](env.Data)
	case KindSharedContextConnected:
		e, err = decodeAs[SharedContextConnected](env.Data)
	default:
		return nil, env, fmt.Errorf("unknown event kind %q", env.Kind)
	}
	if err != nil {
		return nil, env, fmt.Errorf("failed to unmarshal %s event: %w", env.Kind, err)
	}
	return e, env, nil
}

func decodeAs[T Event](data json.RawMessage) (Event, error) {
	var v T
	if len(data) > 0 && string(data) != "null" {
		if err := json.Unmarshal(data, &v); err != nil {
			return nil, err
		}
	}
	return v, nil
}
