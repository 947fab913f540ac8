// Package watcher watches task documents on disk and turns edits into
// task events. Each file is processed only after it has been quiet for the
// debounce interval, and its last processed content is kept in an
// in-memory snapshot cache that is diffed against on every change.
package watcher

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/mark3labs/checkwatch/internal/events"
	"github.com/mark3labs/checkwatch/internal/logger"
	"github.com/mark3labs/checkwatch/internal/tasks"
)

const queueSize = 256

// Publisher receives the events the coordinator emits.
type Publisher interface {
	Publish(events.Event) error
}

// Config controls what the coordinator watches.
type Config struct {
	Root     string        // workspace root; first-level directories are projects
	Patterns []string      // include patterns, relative to a project directory
	Ignore   []string      // directory names never descended into
	Debounce time.Duration // quiet period before a file is processed
}

// Coordinator owns the fsnotify watcher, the per-file debounce and the
// snapshot cache.
type Coordinator struct {
	root    string
	cfg     Config
	pub     Publisher
	include *pathMatcher
	ignore  *pathMatcher

	mu      sync.Mutex // guards scope and sess
	scope   string     // absolute project dir when scoped by WatchProject
	sess    *session
	cacheMu sync.RWMutex
	cache   map[string]string // absolute path -> last processed content
}

// session is one Start..Stop cycle. Goroutines only touch their own session
// so Stop can wait for them while holding the coordinator lock.
type session struct {
	watcher  *fsnotify.Watcher
	watchDir string
	scope    string
	deb      *debouncer
	queue    chan string
	done     chan struct{}
	wg       sync.WaitGroup
}

// New creates a coordinator for cfg.Root. Nothing is watched until Start.
func New(cfg Config, pub Publisher) (*Coordinator, error) {
	if cfg.Root == "" {
		cfg.Root = "."
	}
	root, err := filepath.Abs(cfg.Root)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve workspace root: %w", err)
	}
	info, err := os.Stat(root)
	if err != nil {
		return nil, fmt.Errorf("failed to stat workspace root: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("workspace root %s is not a directory", root)
	}
	if len(cfg.Patterns) == 0 {
		return nil, errors.New("at least one include pattern is required")
	}
	if cfg.Debounce <= 0 {
		cfg.Debounce = DefaultDebounce
	}

	return &Coordinator{
		root:    root,
		cfg:     cfg,
		pub:     pub,
		include: newPathMatcher(cfg.Patterns),
		ignore:  newIgnoreMatcher(root, cfg.Ignore),
		cache:   make(map[string]string),
	}, nil
}

// Root returns the absolute workspace root.
func (c *Coordinator) Root() string {
	return c.root
}

// Start scans the watched tree, emitting task:found for every matching
// file, then begins watching for changes.
func (c *Coordinator) Start() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.sess != nil {
		return errors.New("watcher already started")
	}
	return c.startLocked()
}

// Stop cancels pending debounce timers, releases the fsnotify handles,
// waits for the event loop and worker to exit and clears the snapshot
// cache. Stop is a no-op when not running.
func (c *Coordinator) Stop() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stopLocked()
}

// WatchProject tears down the current watch and restarts scoped to the
// project directory at path. Emits project:changed once the new watch is
// live.
func (c *Coordinator) WatchProject(path string) error {
	abs := path
	if !filepath.IsAbs(abs) {
		abs = filepath.Join(c.root, path)
	}
	abs = filepath.Clean(abs)

	info, err := os.Stat(abs)
	if err != nil {
		return fmt.Errorf("failed to stat project: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("project %s is not a directory", abs)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.stopLocked(); err != nil {
		logger.Warn("Watcher: error stopping previous watch: %v", err)
	}
	c.scope = abs
	if err := c.startLocked(); err != nil {
		return err
	}

	c.publish(events.ProjectChanged{ProjectID: filepath.Base(abs), Path: abs})
	return nil
}

// Snapshot returns the last processed content of the file at path.
func (c *Coordinator) Snapshot(path string) (string, bool) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", false
	}
	c.cacheMu.RLock()
	defer c.cacheMu.RUnlock()
	content, ok := c.cache[abs]
	return content, ok
}

func (c *Coordinator) startLocked() error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}

	s := &session{
		watcher:  w,
		watchDir: c.root,
		scope:    c.scope,
		queue:    make(chan string, queueSize),
		done:     make(chan struct{}),
	}
	if s.scope != "" {
		s.watchDir = s.scope
	}
	s.deb = newDebouncer(c.cfg.Debounce, func(path string) {
		select {
		case s.queue <- path:
		case <-s.done:
		}
	})

	if err := c.addRecursive(s, s.watchDir); err != nil {
		w.Close()
		return err
	}

	// Initial scan runs before the loops start so every existing file is
	// cached and announced exactly once.
	for _, path := range c.matchingFiles(s.scope, s.watchDir) {
		c.process(s, path)
	}

	s.wg.Add(2)
	go c.eventLoop(s)
	go c.worker(s)

	c.sess = s
	logger.Info("Watcher started for %s (%d include patterns)", s.watchDir, len(c.cfg.Patterns))
	return nil
}

func (c *Coordinator) stopLocked() error {
	s := c.sess
	if s == nil {
		return nil
	}
	c.sess = nil

	s.deb.stop()
	close(s.done)
	err := s.watcher.Close()
	s.wg.Wait()

	c.cacheMu.Lock()
	c.cache = make(map[string]string)
	c.cacheMu.Unlock()

	logger.Info("Watcher stopped for %s", s.watchDir)
	return err
}

// addRecursive adds watches for every non-ignored directory under dir.
func (c *Coordinator) addRecursive(s *session, dir string) error {
	return filepath.Walk(dir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			if info != nil && info.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if !info.IsDir() {
			return nil
		}

		if rel, relErr := filepath.Rel(s.watchDir, path); relErr == nil && rel != "." && c.ignore.Excludes(rel, true) {
			return filepath.SkipDir
		}

		if err := s.watcher.Add(path); err != nil {
			logger.Warn("Watcher: failed to watch %s: %v", path, err)
			if strings.Contains(err.Error(), "no space left on device") ||
				strings.Contains(err.Error(), "too many open files") {
				logger.Error("Watcher: inotify watch limit reached. Increase fs.inotify.max_user_watches")
				return filepath.SkipDir
			}
		}
		return nil
	})
}

// eventLoop feeds fsnotify events into the debouncer until the session ends.
func (c *Coordinator) eventLoop(s *session) {
	defer s.wg.Done()

	for {
		select {
		case <-s.done:
			return

		case event, ok := <-s.watcher.Events:
			if !ok {
				return
			}
			c.handleEvent(s, event)

		case err, ok := <-s.watcher.Errors:
			if !ok {
				return
			}
			logger.Warn("Watcher error: %v", err)
		}
	}
}

func (c *Coordinator) handleEvent(s *session, event fsnotify.Event) {
	if !event.Has(fsnotify.Create) && !event.Has(fsnotify.Write) &&
		!event.Has(fsnotify.Rename) && !event.Has(fsnotify.Remove) {
		return
	}

	path := event.Name
	rel, err := filepath.Rel(s.watchDir, path)
	if err != nil || strings.HasPrefix(rel, "..") {
		return
	}

	isDir := false
	if info, statErr := os.Stat(path); statErr == nil {
		isDir = info.IsDir()
	}
	if c.ignore.Excludes(rel, isDir) {
		return
	}

	if isDir {
		if event.Has(fsnotify.Create) {
			if err := c.addRecursive(s, path); err != nil {
				logger.Warn("Watcher: failed to watch new dir %s: %v", path, err)
			}
			// Files written before the watch was added produce no events.
			for _, f := range c.matchingFiles(s.scope, path) {
				s.deb.touch(f)
			}
		}
		return
	}

	if _, _, ok := c.locate(s.scope, path); ok {
		s.deb.touch(path)
	}
}

// worker processes stabilized paths one at a time.
func (c *Coordinator) worker(s *session) {
	defer s.wg.Done()

	for {
		select {
		case <-s.done:
			return
		case path := <-s.queue:
			c.process(s, path)
		}
	}
}

// process reads path fresh from disk and emits task:found on first sight.
// Later passes that change the content emit task:synced with the file's full
// task set, then one task:changed per detected delta. A removed file that was
// cached emits task:synced with no tasks.
func (c *Coordinator) process(s *session, path string) {
	projectID, rel, ok := c.locate(s.scope, path)
	if !ok {
		return
	}
	idPath := projectID + "/" + rel

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			c.cacheMu.Lock()
			_, seen := c.cache[path]
			delete(c.cache, path)
			c.cacheMu.Unlock()
			logger.Debug("Watcher: %s removed", path)
			if seen {
				c.publish(events.TasksSynced{ProjectID: projectID, FilePath: path, SourceFile: idPath})
			}
			return
		}
		logger.Warn("Watcher: failed to read %s: %v", path, err)
		return
	}
	content := string(data)

	c.cacheMu.Lock()
	previous, seen := c.cache[path]
	c.cache[path] = content
	c.cacheMu.Unlock()

	current := tasks.ParseTasks(idPath, content)
	if !seen {
		logger.Debug("Watcher: found %d tasks in %s", len(current), idPath)
		c.publish(events.TaskFound{ProjectID: projectID, FilePath: path, SourceFile: idPath, Tasks: current})
		return
	}
	if previous == content {
		return
	}

	changes := tasks.Diff(tasks.ParseTasks(idPath, previous), current, projectID)
	c.publish(events.TasksSynced{ProjectID: projectID, FilePath: path, SourceFile: idPath, Tasks: current})
	for _, change := range changes {
		c.publish(events.TaskChanged{Change: change})
	}
	logger.Debug("Watcher: %d changes in %s", len(changes), idPath)
}

func (c *Coordinator) publish(e events.Event) {
	if c.pub == nil {
		return
	}
	if err := c.pub.Publish(e); err != nil {
		logger.Warn("Watcher: failed to publish %s: %v", e.Kind(), err)
	}
}

// locate maps an absolute file path to its project and its slash path
// inside that project. ok is false for paths that are outside the watched
// tree, excluded, or not matched by an include pattern.
//
// Unscoped, the first directory under the root names the project and files
// directly in the root belong to a project named after the root itself.
func (c *Coordinator) locate(scope, path string) (projectID, rel string, ok bool) {
	base := scope
	if base == "" {
		base = c.root
	}
	r, err := filepath.Rel(base, path)
	if err != nil || r == "." || strings.HasPrefix(r, "..") {
		return "", "", false
	}
	r = filepath.ToSlash(r)
	if c.ignore.Excludes(r, false) {
		return "", "", false
	}

	if scope != "" {
		projectID, rel = filepath.Base(scope), r
	} else if i := strings.Index(r, "/"); i >= 0 {
		projectID, rel = r[:i], r[i+1:]
	} else {
		projectID, rel = filepath.Base(c.root), r
	}

	if !c.include.Includes(rel) {
		return "", "", false
	}
	return projectID, rel, true
}
