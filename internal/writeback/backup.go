package writeback

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/mark3labs/checkwatch/internal/logger"
)

// BackupTimeLayout is the timestamp embedded in backup file names.
const BackupTimeLayout = "20060102T150405.000000000"

const backupExt = ".bak"

// Backup is one stored copy of a file.
type Backup struct {
	Path      string
	Timestamp string
	Time      time.Time
}

// backup stores content as <base>.<timestamp>.bak and prunes old copies.
func (e *Engine) backup(path string, content []byte) (string, error) {
	if e.cfg.BackupDir == "" {
		return "", nil
	}
	if err := os.MkdirAll(e.cfg.BackupDir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create backup dir: %w", err)
	}

	base := filepath.Base(path)
	at := e.cfg.Now()
	name := filepath.Join(e.cfg.BackupDir, backupName(base, at))
	// Timestamps only need to be unique per base name.
	for {
		if _, err := os.Stat(name); errors.Is(err, os.ErrNotExist) {
			break
		}
		at = at.Add(time.Nanosecond)
		name = filepath.Join(e.cfg.BackupDir, backupName(base, at))
	}

	if err := os.WriteFile(name, content, 0o644); err != nil {
		return "", fmt.Errorf("failed to write backup: %w", err)
	}
	logger.Debug("Backed up %s to %s", path, name)

	e.rotate(base)
	return name, nil
}

func backupName(base string, at time.Time) string {
	return base + "." + at.UTC().Format(BackupTimeLayout) + backupExt
}

// rotate deletes the oldest backups of base beyond MaxBackups.
func (e *Engine) rotate(base string) {
	backups, err := e.list(base)
	if err != nil {
		logger.Warn("Failed to list backups for %s: %v", base, err)
		return
	}
	for len(backups) > e.cfg.MaxBackups {
		oldest := backups[0]
		if err := os.Remove(oldest.Path); err != nil && !errors.Is(err, os.ErrNotExist) {
			logger.Warn("Failed to remove backup %s: %v", oldest.Path, err)
		}
		backups = backups[1:]
	}
}

// Backups lists the backups of path, oldest first. Backups are keyed by
// file name, so files sharing a name share a history.
func (e *Engine) Backups(path string) ([]Backup, error) {
	if e.cfg.BackupDir == "" {
		return nil, nil
	}
	return e.list(filepath.Base(path))
}

func (e *Engine) list(base string) ([]Backup, error) {
	entries, err := os.ReadDir(e.cfg.BackupDir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read backup dir: %w", err)
	}

	prefix := base + "."
	var out []Backup
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasPrefix(name, prefix) || !strings.HasSuffix(name, backupExt) {
			continue
		}
		stamp := strings.TrimSuffix(strings.TrimPrefix(name, prefix), backupExt)
		at, err := time.Parse(BackupTimeLayout, stamp)
		if err != nil {
			continue
		}
		out = append(out, Backup{
			Path:      filepath.Join(e.cfg.BackupDir, name),
			Timestamp: stamp,
			Time:      at,
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Time.Before(out[j].Time) })
	return out, nil
}

// RestoreFromBackup copies the backup with the given timestamp, or the most
// recent one when timestamp is empty, over path. Returns false when no such
// backup exists or the copy fails.
func (e *Engine) RestoreFromBackup(path, timestamp string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()

	backups, err := e.Backups(path)
	if err != nil {
		logger.Warn("Restore of %s failed: %v", path, err)
		return false
	}
	if len(backups) == 0 {
		return false
	}

	chosen := backups[len(backups)-1]
	if timestamp != "" {
		found := false
		for _, b := range backups {
			if b.Timestamp == timestamp {
				chosen, found = b, true
				break
			}
		}
		if !found {
			return false
		}
	}

	data, err := os.ReadFile(chosen.Path)
	if err != nil {
		logger.Warn("Restore of %s failed: %v", path, err)
		return false
	}
	if err := writeAtomic(path, data); err != nil {
		logger.Warn("Restore of %s failed: %v", path, err)
		return false
	}
	logger.Info("Restored %s from %s", path, chosen.Path)
	return true
}

// writeAtomic writes data to a temp file next to path and renames it over
// path, keeping the original file mode.
func writeAtomic(path string, data []byte) error {
	mode := os.FileMode(0o644)
	if info, err := os.Stat(path); err == nil {
		mode = info.Mode().Perm()
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close temp file: %w", err)
	}
	if err := os.Chmod(tmpName, mode); err != nil {
		return fmt.Errorf("failed to set mode: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		return fmt.Errorf("failed to replace file: %w", err)
	}
	return nil
}
