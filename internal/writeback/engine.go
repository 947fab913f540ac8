// Package writeback edits checkbox state in task documents in place. Every
// mutation re-reads the file from disk, writes a timestamped backup first and
// replaces the file atomically.
package writeback

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/aymanbagabas/go-udiff"
	"github.com/mark3labs/checkwatch/internal/logger"
	"github.com/mark3labs/checkwatch/internal/tasks"
)

// DefaultMaxBackups is how many backups are kept per file name.
const DefaultMaxBackups = 10

// ErrPhaseNotFound is returned by CompletePhase when the file has no
// "## Phase N" heading for the requested phase.
var ErrPhaseNotFound = errors.New("phase heading not found")

// OutOfRangeError reports a line number outside the file.
type OutOfRangeError struct {
	Line  int
	Total int
}

func (e *OutOfRangeError) Error() string {
	return fmt.Sprintf("line %d out of range (file has %d lines)", e.Line, e.Total)
}

// Result is the outcome of a write operation. Failures are carried in Err
// rather than returned separately so batch callers can continue.
type Result struct {
	Success      bool
	TasksUpdated int
	Err          error
}

func failed(err error) Result {
	return Result{Err: err}
}

// TaskUpdate is one entry of a batch update.
type TaskUpdate struct {
	Path         string
	Line         int // 1-based
	Completed    bool
	AddTimestamp bool
}

// Config controls backup placement and retention.
type Config struct {
	BackupDir  string // empty disables backups
	MaxBackups int
	Now        func() time.Time
}

// Engine performs write-back operations. Writes from one Engine are
// serialized; writers in other processes are not coordinated.
type Engine struct {
	cfg Config
	mu  sync.Mutex
}

// New creates an engine.
func New(cfg Config) *Engine {
	if cfg.MaxBackups <= 0 {
		cfg.MaxBackups = DefaultMaxBackups
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Engine{cfg: cfg}
}

// UpdateTask sets the checkbox on the 1-based line of path. Lines that are
// not checkboxes and lines already in the requested state succeed with zero
// updates and leave the file and backups untouched.
func (e *Engine) UpdateTask(path string, line int, completed, addTimestamp bool) Result {
	return e.UpdateTasks([]TaskUpdate{{Path: path, Line: line, Completed: completed, AddTimestamp: addTimestamp}})
}

// UpdateTasks applies a batch of updates grouped by file. Within a file the
// edits run in descending line order and the file is backed up and written
// once. A failing file does not stop the others; its error is joined into
// the result.
func (e *Engine) UpdateTasks(updates []TaskUpdate) Result {
	e.mu.Lock()
	defer e.mu.Unlock()

	byPath := make(map[string][]TaskUpdate)
	var order []string
	for _, u := range updates {
		if _, ok := byPath[u.Path]; !ok {
			order = append(order, u.Path)
		}
		byPath[u.Path] = append(byPath[u.Path], u)
	}

	res := Result{Success: true}
	var errs []error
	for _, path := range order {
		n, err := e.applyFile(path, byPath[path])
		res.TasksUpdated += n
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", path, err))
		}
	}
	if len(errs) > 0 {
		res.Success = false
		res.Err = errors.Join(errs...)
	}
	return res
}

func (e *Engine) applyFile(path string, updates []TaskUpdate) (int, error) {
	sort.SliceStable(updates, func(i, j int) bool { return updates[i].Line > updates[j].Line })

	content, err := os.ReadFile(path)
	if err != nil {
		return 0, fmt.Errorf("failed to read file: %w", err)
	}
	doc := parseDocument(string(content))

	updated := 0
	for _, u := range updates {
		changed, err := doc.setCompleted(u.Line, u.Completed, e.stamp(u.AddTimestamp))
		if err != nil {
			return 0, err
		}
		if changed {
			updated++
		}
	}
	if updated == 0 {
		return 0, nil
	}
	if err := e.commit(path, content, doc.String()); err != nil {
		return 0, err
	}
	logger.Info("Updated %d task(s) in %s", updated, path)
	return updated, nil
}

// commit backs up the current bytes and atomically replaces the file.
func (e *Engine) commit(path string, current []byte, next string) error {
	if _, err := e.backup(path, current); err != nil {
		logger.Warn("Backup of %s failed: %v", path, err)
	}
	return writeAtomic(path, []byte(next))
}

func (e *Engine) stamp(add bool) string {
	if !add {
		return ""
	}
	return e.cfg.Now().Format(tasks.DateLayout)
}

// GetTaskAtLine parses the 1-based line of path. Returns nil without error
// when the line is not a checkbox.
func (e *Engine) GetTaskAtLine(path string, line int) (*tasks.Task, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}
	doc := parseDocument(string(content))
	if err := doc.checkRange(line); err != nil {
		return nil, err
	}
	for _, t := range tasks.ParseTasks(path, string(content)) {
		if t.LineNumber == line {
			return &t, nil
		}
	}
	return nil, nil
}

// Preview returns the unified diff UpdateTask would produce, without
// writing anything. An empty string means no change.
func (e *Engine) Preview(path string, line int, completed, addTimestamp bool) (string, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("failed to read file: %w", err)
	}
	doc := parseDocument(string(content))
	changed, err := doc.setCompleted(line, completed, e.stamp(addTimestamp))
	if err != nil || !changed {
		return "", err
	}
	name := filepath.Base(path)
	return udiff.Unified("a/"+name, "b/"+name, string(content), doc.String()), nil
}

// document is a file split into lines that rejoins to the original bytes.
type document struct {
	lines []string
}

func parseDocument(content string) *document {
	return &document{lines: tasks.SplitLines(content)}
}

// total is the number of addressable lines. A trailing newline does not
// start a new line.
func (d *document) total() int {
	n := len(d.lines)
	if n > 0 && d.lines[n-1] == "" {
		n--
	}
	return n
}

func (d *document) checkRange(line int) error {
	if line < 1 || line > d.total() {
		return &OutOfRangeError{Line: line, Total: d.total()}
	}
	return nil
}

// setCompleted rewrites one checkbox line, keeping a trailing "\r".
func (d *document) setCompleted(line int, completed bool, stamp string) (bool, error) {
	if err := d.checkRange(line); err != nil {
		return false, err
	}
	raw := d.lines[line-1]
	body := strings.TrimSuffix(raw, "\r")
	cr := raw[len(body):]

	next, ok := tasks.SetCompleted(body, completed, stamp)
	if !ok || next == body {
		return false, nil
	}
	d.lines[line-1] = next + cr
	return true, nil
}

func (d *document) String() string {
	return strings.Join(d.lines, "\n")
}
