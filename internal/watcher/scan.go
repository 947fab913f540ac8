package watcher

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/mark3labs/checkwatch/internal/logger"
	"github.com/mark3labs/checkwatch/internal/tasks"
)

// matchingFiles walks dir and returns the absolute paths of files that
// locate accepts under scope, in lexical order.
func (c *Coordinator) matchingFiles(scope, dir string) []string {
	base := scope
	if base == "" {
		base = c.root
	}

	var files []string
	_ = filepath.Walk(dir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			if info != nil && info.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if info.IsDir() {
			if rel, relErr := filepath.Rel(base, path); relErr == nil && rel != "." && c.ignore.Excludes(rel, true) {
				return filepath.SkipDir
			}
			return nil
		}
		if _, _, ok := c.locate(scope, path); ok {
			files = append(files, path)
		}
		return nil
	})
	return files
}

// GetProjectTasks rescans every matching file of a project from disk. The
// snapshot cache is neither read nor updated. Unreadable files are logged
// and skipped.
func (c *Coordinator) GetProjectTasks(projectID string) ([]tasks.Task, error) {
	c.mu.Lock()
	scope := c.scope
	c.mu.Unlock()

	var dir string
	switch {
	case scope != "" && filepath.Base(scope) == projectID:
		dir = scope
	case dirExists(filepath.Join(c.root, projectID)):
		scope = ""
		dir = filepath.Join(c.root, projectID)
	case projectID == filepath.Base(c.root):
		scope = ""
		dir = c.root
	default:
		return nil, fmt.Errorf("unknown project %q", projectID)
	}

	var all []tasks.Task
	for _, path := range c.matchingFiles(scope, dir) {
		pid, rel, ok := c.locate(scope, path)
		if !ok || pid != projectID {
			continue
		}
		data, err := os.ReadFile(path)
		if err != nil {
			logger.Warn("Watcher: failed to read %s: %v", path, err)
			continue
		}
		all = append(all, tasks.ParseTasks(pid+"/"+rel, string(data))...)
	}
	return all, nil
}

func dirExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}
