package progress

import (
	"testing"

	"github.com/mark3labs/checkwatch/internal/tasks"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const planDoc = `## Phase 1
- [x] one
- [ ] two
## Phase 2
- [ ] three
`

func changeOf(t tasks.Task, project string) tasks.TaskChange {
	return tasks.TaskChange{Task: t, ProjectID: project, Kind: tasks.ChangeChanged}
}

func TestAggregator_ApplyFile(t *testing.T) {
	agg := New()
	found := tasks.ParseTasks("proj/SPEC.md", planDoc)

	require.True(t, agg.ApplyFile("proj", "proj/SPEC.md", found))
	require.False(t, agg.ApplyFile("proj", "proj/SPEC.md", found), "re-applying the same file must be a no-op")

	snap := agg.Snapshot("proj")
	assert.Equal(t, 3, snap.Total)
	assert.Equal(t, 1, snap.Completed)
	assert.InDelta(t, 33.3, snap.Percent, 0.01)
	require.Len(t, snap.Phases, 2)
	assert.Equal(t, PhaseProgress{Phase: 1, Total: 2, Completed: 1, Percent: 50}, snap.Phases[0])
	assert.Equal(t, PhaseProgress{Phase: 2, Total: 1, Completed: 0, Percent: 0}, snap.Phases[1])
	require.Len(t, snap.Active, 2)
	assert.Equal(t, "two", snap.Active[0].Description)
	assert.Equal(t, "three", snap.Active[1].Description)
}

func TestAggregator_ApplyFileReplacesFileTasks(t *testing.T) {
	const path = "proj/SPEC.md"
	agg := New()
	previous := ""
	// apply folds one watcher pass: the file's full task set, then its deltas.
	apply := func(content string) ProgressSnapshot {
		parsed := tasks.ParseTasks(path, content)
		changes := tasks.Diff(tasks.ParseTasks(path, previous), parsed, "proj")
		agg.ApplyFile("proj", path, parsed)
		for _, c := range changes {
			agg.ApplyChange(c)
		}
		previous = content
		return agg.Snapshot("proj")
	}

	agg.ApplyFile("proj", "proj/phase-2.md", tasks.ParseTasks("proj/phase-2.md", "- [ ] other file\n"))
	snap := apply("- [ ] Write tets\n- [x] Ship\n")
	assert.Equal(t, 3, snap.Total)

	t.Run("typo fix", func(t *testing.T) {
		snap := apply("- [ ] Write tests\n- [x] Ship\n")
		assert.Equal(t, 3, snap.Total)
		assert.Equal(t, 1, snap.Completed)
		assert.Len(t, snap.Active, 2)
	})

	t.Run("line inserted above", func(t *testing.T) {
		snap := apply("# Plan\n- [ ] Write tests\n- [x] Ship\n")
		assert.Equal(t, 3, snap.Total)
		assert.Equal(t, 1, snap.Completed)
		assert.InDelta(t, 33.3, snap.Percent, 0.01)
	})

	t.Run("task deleted", func(t *testing.T) {
		snap := apply("# Plan\n- [x] Ship\n")
		assert.Equal(t, 2, snap.Total)
		require.Len(t, snap.Active, 1)
		assert.Equal(t, "other file", snap.Active[0].Description)
	})

	t.Run("file removed", func(t *testing.T) {
		require.True(t, agg.ApplyFile("proj", path, nil))
		snap := agg.Snapshot("proj")
		assert.Equal(t, 1, snap.Total)
		require.Len(t, snap.Active, 1)
		assert.Equal(t, "proj/phase-2.md", snap.Active[0].SourceFile)
		assert.False(t, agg.ApplyFile("proj", path, nil), "removing twice is a no-op")
	})
}

func TestAggregator_ApplyChangeIdempotent(t *testing.T) {
	agg := New()
	found := tasks.ParseTasks("proj/SPEC.md", planDoc)
	agg.ApplyFile("proj", "proj/SPEC.md", found)

	done := found[1]
	done.IsCompleted = true

	assert.True(t, agg.ApplyChange(changeOf(done, "proj")))
	first := agg.Snapshot("proj")
	assert.False(t, agg.ApplyChange(changeOf(done, "proj")), "replaying a completed state is a no-op")
	second := agg.Snapshot("proj")

	assert.Equal(t, first, second)
	assert.Equal(t, 2, second.Completed)
	assert.True(t, second.PhaseComplete(1))
	assert.False(t, second.PhaseComplete(2))
	assert.False(t, second.PhaseComplete(7))
}

func TestAggregator_OrderIndependent(t *testing.T) {
	a := tasks.ParseTasks("p/phase-1.md", "- [ ] a\n- [ ] b\n")
	b := tasks.ParseTasks("p/phase-2.md", "- [ ] c\n")

	doneA := a[0]
	doneA.IsCompleted = true
	doneC := b[0]
	doneC.IsCompleted = true

	changes := []tasks.TaskChange{
		{Task: a[1], ProjectID: "p", Kind: tasks.ChangeAdded},
		changeOf(doneA, "p"),
		changeOf(doneC, "p"),
	}

	forward := New()
	for _, c := range changes {
		forward.ApplyChange(c)
	}
	backward := New()
	for i := len(changes) - 1; i >= 0; i-- {
		backward.ApplyChange(changes[i])
	}

	f, b2 := forward.Snapshot("p"), backward.Snapshot("p")
	assert.Equal(t, f.Total, b2.Total)
	assert.Equal(t, f.Completed, b2.Completed)
	assert.Equal(t, f.Phases, b2.Phases)
	assert.Equal(t, f.Active, b2.Active)
}

func TestAggregator_Agents(t *testing.T) {
	agg := New()
	agg.ApplyFile("p", "p/agent-todos/backend/todo.md", tasks.ParseTasks("p/agent-todos/backend/todo.md", "- [x] api\n- [ ] db\n"))
	agg.ApplyFile("p", "p/agent-todos/frontend.md", tasks.ParseTasks("p/agent-todos/frontend.md", "- [ ] ui\n"))
	agg.ApplyFile("p", "p/SPEC.md", tasks.ParseTasks("p/SPEC.md", "- [ ] unowned\n"))

	snap := agg.Snapshot("p")
	require.Len(t, snap.Agents, 2)
	assert.Equal(t, AgentProgress{Agent: "backend", Total: 2, Completed: 1, Percent: 50}, snap.Agents[0])
	assert.Equal(t, AgentProgress{Agent: "frontend", Total: 1, Completed: 0, Percent: 0}, snap.Agents[1])
}

func TestAggregator_Projects(t *testing.T) {
	agg := New()
	agg.ApplyFile("beta", "beta/SPEC.md", nil)
	agg.ApplyFile("alpha", "alpha/SPEC.md", tasks.ParseTasks("alpha/SPEC.md", "- [ ] x\n"))

	assert.Equal(t, []string{"alpha", "beta"}, agg.Projects())
	assert.Len(t, agg.Snapshots(), 2)
	assert.Empty(t, agg.Tasks("beta"))

	agg.Forget("alpha")
	assert.Equal(t, []string{"beta"}, agg.Projects())

	empty := agg.Snapshot("missing")
	assert.Equal(t, 0, empty.Total)
	assert.NotNil(t, empty.Active)
}
