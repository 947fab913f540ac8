package writeback

import (
	"fmt"
	"os"

	"github.com/mark3labs/checkwatch/internal/logger"
	"github.com/mark3labs/checkwatch/internal/tasks"
)

// CompletePhase marks every checkbox between the "## Phase N" heading and
// the next "## " heading as completed with today's date. Lines outside that
// range are never touched.
func (e *Engine) CompletePhase(path string, phase int) Result {
	e.mu.Lock()
	defer e.mu.Unlock()

	content, err := os.ReadFile(path)
	if err != nil {
		return failed(fmt.Errorf("failed to read file: %w", err))
	}
	doc := parseDocument(string(content))

	start, end, ok := doc.phaseRange(phase)
	if !ok {
		return failed(fmt.Errorf("phase %d: %w", phase, ErrPhaseNotFound))
	}

	stamp := e.stamp(true)
	updated := 0
	for line := end; line > start; line-- {
		changed, err := doc.setCompleted(line, true, stamp)
		if err != nil {
			return failed(err)
		}
		if changed {
			updated++
		}
	}
	if updated == 0 {
		return Result{Success: true}
	}

	if err := e.commit(path, content, doc.String()); err != nil {
		return failed(err)
	}
	logger.Info("Completed phase %d in %s (%d task(s))", phase, path, updated)
	return Result{Success: true, TasksUpdated: updated}
}

// phaseRange returns the 1-based heading line of the phase and the last
// line before the next section heading.
func (d *document) phaseRange(phase int) (start, end int, ok bool) {
	total := d.total()
	for i := 0; i < total; i++ {
		line := d.lines[i]
		if start == 0 {
			if n, ok := tasks.PhaseHeading(line); ok && n == phase {
				start = i + 1
			}
			continue
		}
		if tasks.IsSectionHeading(line) {
			return start, i, true
		}
	}
	if start == 0 {
		return 0, 0, false
	}
	return start, total, true
}
