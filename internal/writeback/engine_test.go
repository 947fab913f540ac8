package writeback

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/mark3labs/checkwatch/internal/tasks"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const planDoc = "# Plan\n- [ ] Write tests\n  * [ ] Nested item\n1. [ ] Numbered\n"

var fixedNow = time.Date(2026, 10, 18, 12, 0, 0, 0, time.UTC)

func newTestEngine(t *testing.T) (*Engine, string) {
	t.Helper()
	dir := t.TempDir()
	e := New(Config{
		BackupDir: filepath.Join(dir, "backups"),
		Now:       func() time.Time { return fixedNow },
	})
	return e, dir
}

func writeDoc(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func readDoc(t *testing.T, path string) string {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	return string(data)
}

func TestUpdateTask_CompleteThenUncheck(t *testing.T) {
	e, dir := newTestEngine(t)
	path := writeDoc(t, dir, "SPEC.md", planDoc)

	res := e.UpdateTask(path, 2, true, true)
	require.NoError(t, res.Err)
	assert.True(t, res.Success)
	assert.Equal(t, 1, res.TasksUpdated)
	assert.Equal(t,
		"# Plan\n- [x] Write tests <!-- completed: 2026-10-18 -->\n  * [ ] Nested item\n1. [ ] Numbered\n",
		readDoc(t, path))

	task, err := e.GetTaskAtLine(path, 2)
	require.NoError(t, err)
	require.NotNil(t, task)
	assert.True(t, task.IsCompleted)
	assert.Equal(t, "Write tests", task.Description)
	assert.Equal(t, "2026-10-18", task.CompletedOn)

	res = e.UpdateTask(path, 2, false, false)
	require.True(t, res.Success)
	assert.Equal(t, 1, res.TasksUpdated)
	assert.Equal(t, planDoc, readDoc(t, path), "unchecking removes the timestamp")
}

func TestUpdateTask_PreservesFormatting(t *testing.T) {
	e, dir := newTestEngine(t)
	path := writeDoc(t, dir, "SPEC.md", planDoc)

	require.True(t, e.UpdateTask(path, 3, true, false).Success)
	require.True(t, e.UpdateTask(path, 4, true, false).Success)
	assert.Equal(t, "# Plan\n- [ ] Write tests\n  * [x] Nested item\n1. [x] Numbered\n", readDoc(t, path))
}

func TestUpdateTask_CRLF(t *testing.T) {
	e, dir := newTestEngine(t)
	path := writeDoc(t, dir, "SPEC.md", "- [ ] One\r\n- [ ] Two\r\n")

	require.True(t, e.UpdateTask(path, 2, true, true).Success)
	assert.Equal(t, "- [ ] One\r\n- [x] Two <!-- completed: 2026-10-18 -->\r\n", readDoc(t, path))
}

func TestUpdateTask_NoOpCreatesNoBackup(t *testing.T) {
	e, dir := newTestEngine(t)
	path := writeDoc(t, dir, "SPEC.md", planDoc)

	res := e.UpdateTask(path, 2, false, true)
	assert.True(t, res.Success)
	assert.Equal(t, 0, res.TasksUpdated)

	backups, err := e.Backups(path)
	require.NoError(t, err)
	assert.Empty(t, backups)
	assert.Equal(t, planDoc, readDoc(t, path))
}

func TestUpdateTask_NonCheckboxLine(t *testing.T) {
	e, dir := newTestEngine(t)
	path := writeDoc(t, dir, "SPEC.md", planDoc)

	res := e.UpdateTask(path, 1, true, true)
	assert.True(t, res.Success)
	assert.Equal(t, 0, res.TasksUpdated)
	assert.Equal(t, planDoc, readDoc(t, path))

	task, err := e.GetTaskAtLine(path, 1)
	assert.NoError(t, err)
	assert.Nil(t, task)
}

func TestUpdateTask_OutOfRange(t *testing.T) {
	e, dir := newTestEngine(t)
	path := writeDoc(t, dir, "SPEC.md", planDoc)

	for _, line := range []int{0, 5, 99} {
		res := e.UpdateTask(path, line, true, true)
		assert.False(t, res.Success)

		var oor *OutOfRangeError
		require.True(t, errors.As(res.Err, &oor), "line %d: %v", line, res.Err)
		assert.Equal(t, line, oor.Line)
		assert.Equal(t, 4, oor.Total)
	}

	_, err := e.GetTaskAtLine(path, 99)
	var oor *OutOfRangeError
	assert.True(t, errors.As(err, &oor))
	assert.Equal(t, planDoc, readDoc(t, path))
}

func TestUpdateTask_MissingFile(t *testing.T) {
	e, dir := newTestEngine(t)
	res := e.UpdateTask(filepath.Join(dir, "missing.md"), 1, true, true)
	assert.False(t, res.Success)
	assert.ErrorIs(t, res.Err, os.ErrNotExist)
}

func TestUpdateTasks_Batch(t *testing.T) {
	e, dir := newTestEngine(t)
	a := writeDoc(t, dir, "a.md", "- [ ] A1\n- [ ] A2\n- [ ] A3\n")
	b := writeDoc(t, dir, "b.md", "- [ ] B1\n")

	res := e.UpdateTasks([]TaskUpdate{
		{Path: a, Line: 1, Completed: true},
		{Path: b, Line: 7, Completed: true},
		{Path: a, Line: 3, Completed: true},
		{Path: a, Line: 2, Completed: false},
	})

	assert.False(t, res.Success)
	assert.Equal(t, 2, res.TasksUpdated)
	var oor *OutOfRangeError
	assert.True(t, errors.As(res.Err, &oor))
	assert.Contains(t, res.Err.Error(), "b.md")

	assert.Equal(t, "- [x] A1\n- [ ] A2\n- [x] A3\n", readDoc(t, a))
	assert.Equal(t, "- [ ] B1\n", readDoc(t, b))

	backups, err := e.Backups(a)
	require.NoError(t, err)
	assert.Len(t, backups, 1, "one backup per file per batch")
}

func TestCompletePhase(t *testing.T) {
	doc := strings.Join([]string{
		"# Project",
		"- [ ] Outside any phase",
		"## Phase 1",
		"- [ ] A",
		"- [x] B",
		"- [ ] C",
		"## Phase 2",
		"- [ ] D",
		"- [ ] E",
		"",
	}, "\n")

	e, dir := newTestEngine(t)
	path := writeDoc(t, dir, "SPEC.md", doc)

	res := e.CompletePhase(path, 1)
	require.NoError(t, res.Err)
	assert.True(t, res.Success)
	assert.Equal(t, 2, res.TasksUpdated)

	parsed := tasks.ParseTasks(path, readDoc(t, path))
	require.Len(t, parsed, 6)
	byDesc := map[string]tasks.Task{}
	for _, task := range parsed {
		byDesc[task.Description] = task
	}
	for _, d := range []string{"A", "B", "C"} {
		assert.True(t, byDesc[d].IsCompleted, d)
		assert.Equal(t, 1, byDesc[d].Phase, d)
	}
	for _, d := range []string{"Outside any phase", "D", "E"} {
		assert.False(t, byDesc[d].IsCompleted, d)
	}
	assert.Equal(t, "2026-10-18", byDesc["A"].CompletedOn)
	assert.Empty(t, byDesc["B"].CompletedOn, "already complete lines are untouched")
}

func TestCompletePhase_LastPhaseRunsToEOF(t *testing.T) {
	e, dir := newTestEngine(t)
	path := writeDoc(t, dir, "SPEC.md", "## Phase 1\n- [ ] A\n## Phase 2\n- [ ] B\n- [ ] C")

	res := e.CompletePhase(path, 2)
	assert.Equal(t, 2, res.TasksUpdated)
	assert.Equal(t,
		"## Phase 1\n- [ ] A\n## Phase 2\n- [x] B <!-- completed: 2026-10-18 -->\n- [x] C <!-- completed: 2026-10-18 -->",
		readDoc(t, path))
}

func TestCompletePhase_MatchesParsedPhases(t *testing.T) {
	doc := "## phase 1: Setup\r\n- [ ] A\r\n## Notes\r\n- [ ] Note\r\n## Phase 2\r\n- [ ] B\r\n### Phase 3\r\n- [ ] Still two\r\n"
	e, dir := newTestEngine(t)
	path := writeDoc(t, dir, "SPEC.md", doc)

	require.True(t, e.CompletePhase(path, 2).Success)
	require.True(t, e.CompletePhase(path, 1).Success)

	for _, task := range tasks.ParseTasks(path, readDoc(t, path)) {
		assert.Equal(t, task.Phase != 0, task.IsCompleted,
			"%q in phase %d", task.Description, task.Phase)
	}
	assert.True(t, strings.HasSuffix(readDoc(t, path), "Still two <!-- completed: 2026-10-18 -->\r\n"))
}

func TestCompletePhase_NotFound(t *testing.T) {
	e, dir := newTestEngine(t)
	path := writeDoc(t, dir, "SPEC.md", planDoc)

	res := e.CompletePhase(path, 3)
	assert.False(t, res.Success)
	assert.ErrorIs(t, res.Err, ErrPhaseNotFound)
}

func TestPreview(t *testing.T) {
	e, dir := newTestEngine(t)
	path := writeDoc(t, dir, "SPEC.md", planDoc)

	diff, err := e.Preview(path, 2, true, false)
	require.NoError(t, err)
	assert.Contains(t, diff, "-- [ ] Write tests")
	assert.Contains(t, diff, "+- [x] Write tests")
	assert.Equal(t, planDoc, readDoc(t, path), "preview must not write")

	diff, err = e.Preview(path, 2, false, false)
	require.NoError(t, err)
	assert.Empty(t, diff)
}
