package relay

import (
	"errors"
	"testing"
	"time"

	"github.com/mark3labs/checkwatch/internal/events"
	"github.com/mark3labs/checkwatch/internal/progress"
	"github.com/mark3labs/checkwatch/internal/tasks"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTranslate(t *testing.T) {
	at := time.Date(2026, 10, 18, 0, 0, 0, 0, time.UTC)
	active := []tasks.Task{{ID: "a", Description: "Open"}}

	tests := []struct {
		name  string
		event events.Event
		want  MessageType
		ok    bool
	}{
		{"task changed", events.TaskChanged{Change: tasks.TaskChange{ProjectID: "p"}}, TypeTaskUpdate, true},
		{"agents", events.AgentsUpdated{ProjectID: "p"}, TypeAgentsUpdate, true},
		{"project", events.ProjectChanged{ProjectID: "p"}, TypeProjectChanged, true},
		{"progress", events.ProgressUpdated{Snapshot: progress.ProgressSnapshot{ProjectID: "p", Active: active}}, TypeTaskPoolUpdate, true},
		{"task found", events.TaskFound{ProjectID: "p"}, "", false},
		{"control", events.PauseAgent{AgentID: "x"}, "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			msg, ok := Translate(tt.event, at)
			require.Equal(t, tt.ok, ok)
			if !ok {
				return
			}
			assert.Equal(t, tt.want, msg.Type)
			assert.Equal(t, at, msg.Timestamp)
		})
	}

	msg, _ := Translate(events.ProgressUpdated{Snapshot: progress.ProgressSnapshot{ProjectID: "p", Total: 3, Active: active}}, at)
	pool := msg.Data.(TaskPool)
	assert.Equal(t, 3, pool.Total)
	assert.Equal(t, active, pool.Tasks)
}

func TestDecodeControl(t *testing.T) {
	tests := []struct {
		raw     string
		want    events.Event
		wantErr bool
	}{
		{`{"type":"rebalance_tasks"}`, events.RebalanceTasks{}, false},
		{`{"type":"reassign_tasks","fromAgent":"a","toAgent":"b"}`, events.ReassignTasks{FromAgent: "a", ToAgent: "b"}, false},
		{`{"type":"pause_agent","agentId":"a"}`, events.PauseAgent{AgentID: "a"}, false},
		{`{"type":"resume_agent","agentId":"a"}`, events.ResumeAgent{AgentID: "a"}, false},
		{`{"type":"reassign_tasks","fromAgent":"a"}`, nil, true},
		{`{"type":"pause_agent"}`, nil, true},
		{`{"type":"shutdown"}`, nil, true},
		{`not json`, nil, true},
	}
	for _, tt := range tests {
		got, err := DecodeControl([]byte(tt.raw))
		if tt.wantErr {
			assert.Error(t, err, tt.raw)
			continue
		}
		require.NoError(t, err, tt.raw)
		assert.Equal(t, tt.want, got)
	}

	_, err := DecodeControl([]byte(`{"type":"shutdown"}`))
	assert.True(t, errors.Is(err, ErrUnknownType))
}

func TestDecodeContext(t *testing.T) {
	in, data, ok, err := decodeContext([]byte(`{"type":"shared_context_metrics","data":{"agents":2}}`))
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, TypeSharedContextMetrics, in.Type)
	assert.Equal(t, float64(2), data["agents"])

	_, _, ok, err = decodeContext([]byte(`{"type":"pause_agent"}`))
	assert.NoError(t, err)
	assert.False(t, ok)

	_, _, _, err = decodeContext([]byte(`{"type":"agent_coordination_update","data":[1]}`))
	assert.Error(t, err)
}
