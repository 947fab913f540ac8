package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/mark3labs/checkwatch/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
}

func TestScanSnapshots(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "alpha", "phase-1.md"), "# Phase 1\n- [x] one\n- [ ] two\n")
	writeFile(t, filepath.Join(root, "beta", "SPEC.md"), "- [x] spec task\n")

	cfg := config.Default()
	cfg.WorkspaceRoot = root

	t.Run("all projects", func(t *testing.T) {
		snaps, err := scanSnapshots(cfg, "")
		require.NoError(t, err)
		require.Len(t, snaps, 2)

		byID := map[string]int{}
		for _, s := range snaps {
			byID[s.ProjectID] = s.Completed*10 + s.Total
		}
		assert.Equal(t, 12, byID["alpha"])
		assert.Equal(t, 11, byID["beta"])
	})

	t.Run("single project", func(t *testing.T) {
		snaps, err := scanSnapshots(cfg, "alpha")
		require.NoError(t, err)
		require.Len(t, snaps, 1)
		assert.Equal(t, "alpha", snaps[0].ProjectID)
		assert.Equal(t, 2, snaps[0].Total)
		assert.Equal(t, 50.0, snaps[0].Percent)
	})

	t.Run("unknown project", func(t *testing.T) {
		_, err := scanSnapshots(cfg, "missing")
		assert.Error(t, err)
	})
}

func TestRenderSnapshot(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "alpha", "phase-2.md"), "- [x] done\n- [ ] todo\n")

	cfg := config.Default()
	cfg.WorkspaceRoot = root
	snaps, err := scanSnapshots(cfg, "alpha")
	require.NoError(t, err)

	out := renderSnapshot(snaps[0])
	assert.Contains(t, out, "alpha")
	assert.Contains(t, out, "phase 2")
	assert.Contains(t, out, "1/2")
}
