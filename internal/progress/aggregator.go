// Package progress folds task events into per-project rollups.
//
// The aggregator follows a reduce pattern: every observed task state is
// upserted by ID, so replaying the same change, or receiving changes from
// different files in any order, converges on the same snapshot.
package progress

import (
	"math"
	"sort"
	"sync"
	"time"

	"github.com/mark3labs/checkwatch/internal/tasks"
)

// PhaseProgress is the rollup of one phase. Phase 0 collects unphased tasks.
type PhaseProgress struct {
	Phase     int     `json:"phase"`
	Total     int     `json:"total"`
	Completed int     `json:"completed"`
	Percent   float64 `json:"percent"`
}

// AgentProgress is the rollup of the tasks owned by one agent.
type AgentProgress struct {
	Agent     string  `json:"agent"`
	Total     int     `json:"total"`
	Completed int     `json:"completed"`
	Percent   float64 `json:"percent"`
}

// ProgressSnapshot is the derived view of one project.
type ProgressSnapshot struct {
	ProjectID string          `json:"projectId"`
	Total     int             `json:"total"`
	Completed int             `json:"completed"`
	Percent   float64         `json:"percent"`
	Phases    []PhaseProgress `json:"phases"`
	Agents    []AgentProgress `json:"agents"`
	Active    []tasks.Task    `json:"active"`
	UpdatedAt time.Time       `json:"updatedAt"`
}

type projectState struct {
	tasks     map[string]tasks.Task
	updatedAt time.Time
}

// Aggregator owns every ProgressSnapshot. It is safe for concurrent use.
type Aggregator struct {
	mu       sync.RWMutex
	projects map[string]*projectState
	now      func() time.Time
}

// New creates an empty Aggregator.
func New() *Aggregator {
	return &Aggregator{
		projects: make(map[string]*projectState),
		now:      time.Now,
	}
}

// ApplyFile replaces every task attributed to sourceFile with found. Tasks
// the file no longer holds are dropped, so an empty found removes the file
// from the rollup. It reports whether the project's state changed.
func (a *Aggregator) ApplyFile(projectID, sourceFile string, found []tasks.Task) bool {
	a.mu.Lock()
	defer a.mu.Unlock()

	// an empty file still registers its project
	p := a.project(projectID)

	keep := make(map[string]bool, len(found))
	for _, t := range found {
		keep[t.ID] = true
	}

	changed := false
	for id, t := range p.tasks {
		if t.SourceFile == sourceFile && !keep[id] {
			delete(p.tasks, id)
			changed = true
		}
	}
	for _, t := range found {
		if a.upsert(projectID, t) {
			changed = true
		}
	}
	if changed {
		p.updatedAt = a.now()
	}
	return changed
}

// ApplyChange folds a single delta. Replaying a change is a no-op.
func (a *Aggregator) ApplyChange(c tasks.TaskChange) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.upsert(c.ProjectID, c.Task)
}

// Forget drops all state of a project.
func (a *Aggregator) Forget(projectID string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	delete(a.projects, projectID)
}

// upsert must be called with mu held.
func (a *Aggregator) upsert(projectID string, t tasks.Task) bool {
	p := a.project(projectID)
	if old, ok := p.tasks[t.ID]; ok && sameState(old, t) {
		return false
	}
	p.tasks[t.ID] = t
	p.updatedAt = a.now()
	return true
}

func (a *Aggregator) project(projectID string) *projectState {
	p, ok := a.projects[projectID]
	if !ok {
		p = &projectState{tasks: make(map[string]tasks.Task)}
		a.projects[projectID] = p
	}
	return p
}

func sameState(a, b tasks.Task) bool {
	return a.IsCompleted == b.IsCompleted &&
		a.Description == b.Description &&
		a.Phase == b.Phase &&
		a.Agent == b.Agent
}

// Projects returns the known project IDs, sorted.
func (a *Aggregator) Projects() []string {
	a.mu.RLock()
	defer a.mu.RUnlock()

	ids := make([]string, 0, len(a.projects))
	for id := range a.projects {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Snapshot computes the rollup of one project. Unknown projects yield an
// empty snapshot.
func (a *Aggregator) Snapshot(projectID string) ProgressSnapshot {
	a.mu.RLock()
	defer a.mu.RUnlock()

	p, ok := a.projects[projectID]
	if !ok {
		return ProgressSnapshot{ProjectID: projectID, Phases: []PhaseProgress{}, Agents: []AgentProgress{}, Active: []tasks.Task{}}
	}
	return Summarize(projectID, p.all(), p.updatedAt)
}

// Snapshots returns the rollup of every known project.
func (a *Aggregator) Snapshots() []ProgressSnapshot {
	ids := a.Projects()
	out := make([]ProgressSnapshot, 0, len(ids))
	for _, id := range ids {
		out = append(out, a.Snapshot(id))
	}
	return out
}

// Tasks returns the tracked tasks of a project in file/line order.
func (a *Aggregator) Tasks(projectID string) []tasks.Task {
	a.mu.RLock()
	defer a.mu.RUnlock()

	p, ok := a.projects[projectID]
	if !ok {
		return nil
	}
	return p.all()
}

func (p *projectState) all() []tasks.Task {
	out := make([]tasks.Task, 0, len(p.tasks))
	for _, t := range p.tasks {
		out = append(out, t)
	}
	SortTasks(out)
	return out
}

// SortTasks orders tasks by file, then line.
func SortTasks(ts []tasks.Task) {
	sort.Slice(ts, func(i, j int) bool {
		if ts[i].SourceFile != ts[j].SourceFile {
			return ts[i].SourceFile < ts[j].SourceFile
		}
		return ts[i].LineNumber < ts[j].LineNumber
	})
}

// Summarize builds a snapshot from a flat task list. It is also used for
// one-shot rescans that bypass the aggregator.
func Summarize(projectID string, all []tasks.Task, updatedAt time.Time) ProgressSnapshot {
	snap := ProgressSnapshot{
		ProjectID: projectID,
		UpdatedAt: updatedAt,
		Phases:    []PhaseProgress{},
		Agents:    []AgentProgress{},
		Active:    []tasks.Task{},
	}

	phases := map[int]*PhaseProgress{}
	agents := map[string]*AgentProgress{}
	for _, t := range all {
		snap.Total++
		if t.IsCompleted {
			snap.Completed++
		} else {
			snap.Active = append(snap.Active, t)
		}

		ph, ok := phases[t.Phase]
		if !ok {
			ph = &PhaseProgress{Phase: t.Phase}
			phases[t.Phase] = ph
		}
		ph.Total++
		if t.IsCompleted {
			ph.Completed++
		}

		if t.Agent == "" {
			continue
		}
		ag, ok := agents[t.Agent]
		if !ok {
			ag = &AgentProgress{Agent: t.Agent}
			agents[t.Agent] = ag
		}
		ag.Total++
		if t.IsCompleted {
			ag.Completed++
		}
	}

	snap.Percent = percent(snap.Completed, snap.Total)
	for _, ph := range phases {
		ph.Percent = percent(ph.Completed, ph.Total)
		snap.Phases = append(snap.Phases, *ph)
	}
	sort.Slice(snap.Phases, func(i, j int) bool { return snap.Phases[i].Phase < snap.Phases[j].Phase })

	for _, ag := range agents {
		ag.Percent = percent(ag.Completed, ag.Total)
		snap.Agents = append(snap.Agents, *ag)
	}
	sort.Slice(snap.Agents, func(i, j int) bool { return snap.Agents[i].Agent < snap.Agents[j].Agent })

	SortTasks(snap.Active)
	return snap
}

// PhaseComplete reports whether every task of phase is completed. Phases
// without tasks are never complete.
func (s ProgressSnapshot) PhaseComplete(phase int) bool {
	for _, ph := range s.Phases {
		if ph.Phase == phase {
			return ph.Total > 0 && ph.Completed == ph.Total
		}
	}
	return false
}

func percent(done, total int) float64 {
	if total == 0 {
		return 0
	}
	return math.Round(float64(done)*1000/float64(total)) / 10
}
