package relay

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/mark3labs/checkwatch/internal/events"
	"github.com/mark3labs/checkwatch/internal/progress"
	"github.com/mark3labs/checkwatch/internal/tasks"
)

// MessageType names a relay message on the wire.
type MessageType string

// Outbound message types.
const (
	TypeTaskUpdate              MessageType = "task_update"
	TypeAgentsUpdate            MessageType = "agents_update"
	TypeProjectChanged          MessageType = "project_changed"
	TypeInitialData             MessageType = "initial_data"
	TypeTaskPoolUpdate          MessageType = "task_pool_update"
	TypeContextSharingUpdate    MessageType = "context_sharing_update"
	TypeAgentCoordinationUpdate MessageType = "agent_coordination_update"
	TypeSharedContextMetrics    MessageType = "shared_context_metrics"
	TypeSharedContextConnected  MessageType = "shared_context_connected"
)

// Inbound control message types.
const (
	TypeRebalanceTasks MessageType = "rebalance_tasks"
	TypeReassignTasks  MessageType = "reassign_tasks"
	TypePauseAgent     MessageType = "pause_agent"
	TypeResumeAgent    MessageType = "resume_agent"
)

// contextTypes are the shared-context messages forwarded to dashboards.
var contextTypes = map[MessageType]bool{
	TypeContextSharingUpdate:    true,
	TypeAgentCoordinationUpdate: true,
	TypeSharedContextMetrics:    true,
}

// Outbound is the envelope of every message sent by the relay.
type Outbound struct {
	Type      MessageType `json:"type"`
	Data      any         `json:"data,omitempty"`
	Timestamp time.Time   `json:"timestamp"`
}

// TaskUpdate is the payload of task_update.
type TaskUpdate struct {
	ProjectID string           `json:"projectId"`
	Kind      tasks.ChangeKind `json:"kind"`
	Task      tasks.Task       `json:"task"`
}

// AgentsUpdate is the payload of agents_update.
type AgentsUpdate struct {
	ProjectID string                   `json:"projectId"`
	Agents    []progress.AgentProgress `json:"agents"`
}

// ProjectChanged is the payload of project_changed.
type ProjectChanged struct {
	ProjectID string `json:"projectId"`
	Path      string `json:"path"`
}

// InitialData is the payload of initial_data, a full snapshot of every
// known project.
type InitialData struct {
	Projects []progress.ProgressSnapshot `json:"projects"`
}

// TaskPool is the payload of task_pool_update: the project's totals and its
// incomplete tasks.
type TaskPool struct {
	ProjectID string                   `json:"projectId"`
	Total     int                      `json:"total"`
	Completed int                      `json:"completed"`
	Percent   float64                  `json:"percent"`
	Phases    []progress.PhaseProgress `json:"phases"`
	Tasks     []tasks.Task             `json:"tasks"`
}

// SharedContextConnected is the payload of shared_context_connected.
type SharedContextConnected struct {
	URL string `json:"url"`
}

// Inbound is a message received on either channel. Control fields sit at the
// top level; shared-context messages carry their body in Data.
type Inbound struct {
	Type      MessageType     `json:"type"`
	FromAgent string          `json:"fromAgent,omitempty"`
	ToAgent   string          `json:"toAgent,omitempty"`
	AgentID   string          `json:"agentId,omitempty"`
	Data      json.RawMessage `json:"data,omitempty"`
}

// ErrUnknownType is returned for inbound messages outside the control set.
var ErrUnknownType = errors.New("unknown message type")

// Translate maps a pipeline event to its outbound message. Events with no
// dashboard representation return false.
func Translate(e events.Event, at time.Time) (Outbound, bool) {
	var data any
	switch ev := e.(type) {
	case events.TaskChanged:
		data = TaskUpdate{ProjectID: ev.Change.ProjectID, Kind: ev.Change.Kind, Task: ev.Change.Task}
		return Outbound{Type: TypeTaskUpdate, Data: data, Timestamp: at}, true
	case events.AgentsUpdated:
		data = AgentsUpdate{ProjectID: ev.ProjectID, Agents: ev.Agents}
		return Outbound{Type: TypeAgentsUpdate, Data: data, Timestamp: at}, true
	case events.ProjectChanged:
		data = ProjectChanged{ProjectID: ev.ProjectID, Path: ev.Path}
		return Outbound{Type: TypeProjectChanged, Data: data, Timestamp: at}, true
	case events.ProgressUpdated:
		s := ev.Snapshot
		data = TaskPool{
			ProjectID: s.ProjectID,
			Total:     s.Total,
			Completed: s.Completed,
			Percent:   s.Percent,
			Phases:    s.Phases,
			Tasks:     s.Active,
		}
		return Outbound{Type: TypeTaskPoolUpdate, Data: data, Timestamp: at}, true
	default:
		return Outbound{}, false
	}
}

// DecodeControl parses an inbound dashboard message into a control event.
func DecodeControl(raw []byte) (events.Event, error) {
	var in Inbound
	if err := json.Unmarshal(raw, &in); err != nil {
		return nil, fmt.Errorf("failed to decode message: %w", err)
	}

	switch in.Type {
	case TypeRebalanceTasks:
		return events.RebalanceTasks{}, nil
	case TypeReassignTasks:
		if in.FromAgent == "" || in.ToAgent == "" {
			return nil, fmt.Errorf("%s requires fromAgent and toAgent", in.Type)
		}
		return events.ReassignTasks{FromAgent: in.FromAgent, ToAgent: in.ToAgent}, nil
	case TypePauseAgent:
		if in.AgentID == "" {
			return nil, fmt.Errorf("%s requires agentId", in.Type)
		}
		return events.PauseAgent{AgentID: in.AgentID}, nil
	case TypeResumeAgent:
		if in.AgentID == "" {
			return nil, fmt.Errorf("%s requires agentId", in.Type)
		}
		return events.ResumeAgent{AgentID: in.AgentID}, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownType, in.Type)
	}
}

// decodeContext parses a shared-context message. ok is false for types that
// are not forwarded.
func decodeContext(raw []byte) (Inbound, map[string]any, bool, error) {
	var in Inbound
	if err := json.Unmarshal(raw, &in); err != nil {
		return Inbound{}, nil, false, fmt.Errorf("failed to decode message: %w", err)
	}
	if !contextTypes[in.Type] {
		return in, nil, false, nil
	}

	var data map[string]any
	if len(in.Data) > 0 {
		if err := json.Unmarshal(in.Data, &data); err != nil {
			return in, nil, false, fmt.Errorf("failed to decode %s data: %w", in.Type, err)
		}
	}
	return in, data, true, nil
}
