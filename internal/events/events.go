// Package events defines the closed set of events exchanged between pipeline
// components over the local bus. Every event has a Kind; Decode returns the
// concrete value type so consumers can type-switch exhaustively.
package events

import (
	"github.com/mark3labs/checkwatch/internal/progress"
	"github.com/mark3labs/checkwatch/internal/tasks"
)

// Kind discriminates events on the bus and in the JSON envelope.
type Kind string

const (
	KindTaskFound              Kind = "task:found"
	KindTaskChanged            Kind = "task:changed"
	KindTasksSynced            Kind = "task:synced"
	KindProgressUpdated        Kind = "progress:updated"
	KindAgentsUpdated          Kind = "agents:updated"
	KindProjectChanged         Kind = "project:changed"
	KindRebalanceTasks         Kind = "control:rebalance_tasks"
	KindReassignTasks          Kind = "control:reassign_tasks"
	KindPauseAgent             Kind = "control:pause_agent"
	KindResumeAgent            Kind = "control:resume_agent"
	KindContextUpdate          Kind = "context:update"
	KindSharedContextConnected Kind = "context:connected"
)

// Kinds lists every known kind.
var Kinds = []Kind{
	KindTaskFound,
	KindTaskChanged,
	KindTasksSynced,
	KindProgressUpdated,
	KindAgentsUpdated,
	KindProjectChanged,
	KindRebalanceTasks,
	KindReassignTasks,
	KindPauseAgent,
	KindResumeAgent,
	KindContextUpdate,
	KindSharedContextConnected,
}

// ControlKinds are the kinds produced from inbound dashboard commands.
var ControlKinds = []Kind{KindRebalanceTasks, KindReassignTasks, KindPauseAgent, KindResumeAgent}

// Event is implemented by every event payload in this package.
type Event interface {
	Kind() Kind
}

// TaskFound is emitted when a task file is seen for the first time.
// SourceFile is the path the tasks carry in Task.SourceFile.
type TaskFound struct {
	ProjectID  string       `json:"projectId"`
	FilePath   string       `json:"filePath"`
	SourceFile string       `json:"sourceFile"`
	Tasks      []tasks.Task `json:"tasks"`
}

// TasksSynced carries the full task set of a file after a pass that changed
// it. It precedes the TaskChanged events of the same pass. Tasks is empty
// once the file has been removed.
type TasksSynced struct {
	ProjectID  string       `json:"projectId"`
	FilePath   string       `json:"filePath"`
	SourceFile string       `json:"sourceFile"`
	Tasks      []tasks.Task `json:"tasks"`
}

// TaskChanged carries one delta detected in a watched file.
type TaskChanged struct {
	Change tasks.TaskChange `json:"change"`
}

// ProgressUpdated carries the aggregator's rollup after a state change.
type ProgressUpdated struct {
	Snapshot progress.ProgressSnapshot `json:"snapshot"`
}

// AgentsUpdated carries the per-agent rollup of one project.
type AgentsUpdated struct {
	ProjectID string                   `json:"projectId"`
	Agents    []progress.AgentProgress `json:"agents"`
}

// ProjectChanged is emitted when the watcher is re-scoped to a project.
type ProjectChanged struct {
	ProjectID string `json:"projectId"`
	Path      string `json:"path"`
}

// RebalanceTasks asks whoever owns task assignment to rebalance.
type RebalanceTasks struct{}

// ReassignTasks asks to move every task of FromAgent to ToAgent.
type ReassignTasks struct {
	FromAgent string `json:"fromAgent"`
	ToAgent   string `json:"toAgent"`
}

// PauseAgent asks to pause one agent.
type PauseAgent struct {
	AgentID string `json:"agentId"`
}

// ResumeAgent asks to resume one agent.
type ResumeAgent struct {
	AgentID string `json:"agentId"`
}

// ContextUpdate is a message received from the shared-context server that is
// forwarded to dashboards. Type is one of the relay's context message types.
type ContextUpdate struct {
	Type string         `json:"type"`
	Data map[string]any `json:"data,omitempty"`
}

// SharedContextConnected is emitted when the shared-context channel opens.
type SharedContextConnected struct {
	URL string `json:"url"`
}

func (TaskFound) Kind() Kind              { return KindTaskFound }
func (TaskChanged) Kind() Kind            { return KindTaskChanged }
func (TasksSynced) Kind() Kind            { return KindTasksSynced }
func (ProgressUpdated) Kind() Kind        { return KindProgressUpdated }
func (AgentsUpdated) Kind() Kind          { return KindAgentsUpdated }
func (ProjectChanged) Kind() Kind         { return KindProjectChanged }
func (RebalanceTasks) Kind() Kind         { return KindRebalanceTasks }
func (ReassignTasks) Kind() Kind          { return KindReassignTasks }
func (PauseAgent) Kind() Kind             { return KindPauseAgent }
func (ResumeAgent) Kind() Kind            { return KindResumeAgent }
func (ContextUpdate) Kind() Kind          { return KindContextUpdate }
func (SharedContextConnected) Kind() Kind { return KindSharedContextConnected }
