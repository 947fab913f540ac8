package events

import (
	"encoding/json"
	"testing"

	"github.com/mark3labs/checkwatch/internal/progress"
	"github.com/mark3labs/checkwatch/internal/tasks"
)

func TestEncodeDecode_ConcreteTypes(t *testing.T) {
	change := tasks.TaskChange{
		Task:      tasks.Task{ID: "f-md-0-abc", Description: "Write tests", IsCompleted: true, LineNumber: 1},
		ProjectID: "proj",
		Kind:      tasks.ChangeChanged,
	}

	tests := []Event{
		TaskFound{ProjectID: "proj", FilePath: "proj/SPEC.md", Tasks: []tasks.Task{change.Task}},
		TaskChanged{Change: change},
		TasksSynced{ProjectID: "proj", FilePath: "/ws/proj/SPEC.md", SourceFile: "proj/SPEC.md"},
		ProgressUpdated{Snapshot: progress.ProgressSnapshot{ProjectID: "proj", Total: 2, Completed: 1, Percent: 50}},
		AgentsUpdated{ProjectID: "proj", Agents: []progress.AgentProgress{{Agent: "qa", Total: 1}}},
		ProjectChanged{ProjectID: "proj", Path: "/ws/proj"},
		RebalanceTasks{},
		ReassignTasks{FromAgent: "a", ToAgent: "b"},
		PauseAgent{AgentID: "a"},
		ResumeAgent{AgentID: "a"},
		ContextUpdate{Type: "shared_context_metrics", Data: map[string]any{"entries": 3.0}},
		SharedContextConnected{URL: "ws://ctx"},
	}

	if len(tests) != len(Kinds) {
		t.Fatalf("test table covers %d kinds, package defines %d", len(tests), len(Kinds))
	}

	for _, in := range tests {
		t.Run(string(in.Kind()), func(t *testing.T) {
			raw, err := Encode(in)
			if err != nil {
				t.Fatalf("Encode() error = %v", err)
			}
			out, env, err := Decode(raw)
			if err != nil {
				t.Fatalf("Decode() error = %v", err)
			}
			if env.ID == "" || env.Timestamp.IsZero() {
				t.Errorf("envelope metadata missing: %+v", env)
			}
			if out.Kind() != in.Kind() {
				t.Errorf("kind = %s, want %s", out.Kind(), in.Kind())
			}
		})
	}
}

func TestDecode_TaskChangedFields(t *testing.T) {
	in := TaskChanged{Change: tasks.TaskChange{
		Task:      tasks.Task{ID: "x", Description: "Write tests", IsCompleted: true, SourceFile: "p/SPEC.md", LineNumber: 4},
		ProjectID: "p",
		Kind:      tasks.ChangeChanged,
	}}
	raw, _ := Encode(in)
	out, _, err := Decode(raw)
	if err != nil {
		t.Fatal(err)
	}

	got, ok := out.(TaskChanged)
	if !ok {
		t.Fatalf("Decode returned %T, want TaskChanged", out)
	}
	if got.Change.ID != "x" || !got.Change.IsCompleted || got.Change.ProjectID != "p" || got.Change.LineNumber != 4 {
		t.Errorf("fields lost in round trip: %+v", got.Change)
	}
}

func TestDecode_Errors(t *testing.T) {
	if _, _, err := Decode([]byte("not json")); err == nil {
		t.Error("expected error for invalid json")
	}

	unknown, _ := json.Marshal(Envelope{Kind: "task:deleted", Data: json.RawMessage(`{}`)})
	if _, _, err := Decode(unknown); err == nil {
		t.Error("expected error for unknown kind")
	}

	bad, _ := json.Marshal(Envelope{Kind: KindPauseAgent, Data: json.RawMessage(`{"agentId": 5}`)})
	if _, _, err := Decode(bad); err == nil {
		t.Error("expected error for mistyped payload")
	}
}
