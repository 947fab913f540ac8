package hooks

import (
	"context"
	"sync"

	"github.com/mark3labs/checkwatch/internal/events"
	"github.com/mark3labs/checkwatch/internal/logger"
	"github.com/mark3labs/checkwatch/internal/tasks"
)

type phaseKey struct {
	project string
	phase   int
}

// Runner fires hooks from pipeline events. Task hooks run when a task flips
// to completed; phase hooks run once each time a phase goes from incomplete
// to complete. Phases already complete when first seen do not fire.
type Runner struct {
	cfg     *Config
	workDir string

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu     sync.Mutex
	phases map[phaseKey]bool // last seen completion per phase
}

// NewRunner creates a runner. A nil cfg yields a runner that does nothing.
func NewRunner(cfg *Config, workDir string) *Runner {
	ctx, cancel := context.WithCancel(context.Background())
	return &Runner{
		cfg:     cfg,
		workDir: workDir,
		ctx:     ctx,
		cancel:  cancel,
		phases:  make(map[phaseKey]bool),
	}
}

// Enabled reports whether any hook is configured.
func (r *Runner) Enabled() bool {
	return r.cfg != nil && (len(r.cfg.Hooks.OnTaskComplete) > 0 || len(r.cfg.Hooks.OnPhaseComplete) > 0)
}

// Handle inspects one event and starts matching hooks in the background.
func (r *Runner) Handle(e events.Event) {
	if !r.Enabled() {
		return
	}

	switch ev := e.(type) {
	case events.TaskChanged:
		c := ev.Change
		if c.Kind != tasks.ChangeChanged || !c.IsCompleted {
			return
		}
		r.run("on_task_complete", r.cfg.Hooks.OnTaskComplete, Variables{
			TaskID:      c.ID,
			Description: c.Description,
			File:        c.SourceFile,
			Project:     c.ProjectID,
			Phase:       c.Phase,
		})

	case events.ProgressUpdated:
		s := ev.Snapshot
		for _, p := range s.Phases {
			if p.Phase == 0 {
				continue
			}
			complete := p.Total > 0 && p.Completed == p.Total
			if r.transition(phaseKey{s.ProjectID, p.Phase}, complete) {
				r.run("on_phase_complete", r.cfg.Hooks.OnPhaseComplete, Variables{
					Project: s.ProjectID,
					Phase:   p.Phase,
				})
			}
		}
	}
}

// transition records the phase state and reports an incomplete to complete
// change.
func (r *Runner) transition(key phaseKey, complete bool) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	prev, seen := r.phases[key]
	r.phases[key] = complete
	return seen && !prev && complete
}

func (r *Runner) run(name string, hooks []*HookConfig, vars Variables) {
	if len(hooks) == 0 {
		return
	}
	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		output, err := ExecuteAll(r.ctx, hooks, r.workDir, vars)
		if err != nil {
			logger.Debug("Hook %s cancelled: %v", name, err)
			return
		}
		if output != "" {
			logger.Info("Hook %s output:\n%s", name, output)
		}
	}()
}

// Stop cancels running hooks and waits for them to exit.
func (r *Runner) Stop() {
	r.cancel()
	r.wg.Wait()
}

// Wait blocks until every started hook has finished.
func (r *Runner) Wait() {
	r.wg.Wait()
}
