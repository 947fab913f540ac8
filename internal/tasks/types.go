// Package tasks turns markdown checkbox lists into ordered Task values and
// diffs two parses of the same file into TaskChange events.
//
// Identity is positional: a task ID is derived from the file path, the line
// index and a short prefix of the description. Inserting or deleting lines
// above a task therefore changes its ID, which surfaces downstream as a new
// "added" task. Removed tasks are never reported.
package tasks

import "time"

// Task is a single checkbox line.
type Task struct {
	ID          string    `json:"id"`
	Description string    `json:"description"`
	IsCompleted bool      `json:"isCompleted"`
	SourceFile  string    `json:"sourceFile"`
	LineNumber  int       `json:"lineNumber"` // 1-based
	Phase       int       `json:"phase,omitempty"`
	Agent       string    `json:"agent,omitempty"`
	CompletedOn string    `json:"completedOn,omitempty"` // YYYY-MM-DD from the trailing marker
	Timestamp   time.Time `json:"timestamp"`
}

// ChangeKind distinguishes first sightings from state transitions.
type ChangeKind string

const (
	ChangeAdded   ChangeKind = "added"
	ChangeChanged ChangeKind = "changed"
)

// TaskChange is a transient delta produced by Diff.
type TaskChange struct {
	Task
	ProjectID string     `json:"projectId"`
	Kind      ChangeKind `json:"kind"`
}
