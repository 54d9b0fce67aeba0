package cmd

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kleverhq/appilot/internal/config"
	"github.com/kleverhq/appilot/internal/observability"
)

func executeCommand(t *testing.T, args ...string) (string, error) {
	t.Helper()
	observability.ResetForTest()
	cfgFile = ""
	cfg = nil

	root := NewRootCommand()
	buf := &bytes.Buffer{}
	root.SetOut(buf)
	root.SetErr(buf)
	root.SetArgs(args)
	err := root.ExecuteContext(context.Background())
	return buf.String(), err
}

func TestVersionFlag(t *testing.T) {
	out, err := executeCommand(t, "--version")
	require.NoError(t, err)
	assert.Contains(t, out, Version)
}

func TestRun_RequiresTaskDescription(t *testing.T) {
	_, err := executeCommand(t, "run")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "task-description")
}

func TestRootRejectsUnknownCommand(t *testing.T) {
	_, err := executeCommand(t, "frobnicate")
	assert.Error(t, err)
}

func TestResolveConfigPath(t *testing.T) {
	t.Run("explicit flag wins", func(t *testing.T) {
		cfgFile = "/tmp/custom.yaml"
		defer func() { cfgFile = "" }()
		assert.Equal(t, "/tmp/custom.yaml", resolveConfigPath())
	})

	t.Run("local config.yaml discovered", func(t *testing.T) {
		cfgFile = ""
		dir := t.TempDir()
		require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte("task:\n  max_rounds: 7\n"), 0o644))
		t.Chdir(dir)
		assert.Equal(t, "config.yaml", resolveConfigPath())
	})

	t.Run("no file means defaults", func(t *testing.T) {
		cfgFile = ""
		t.Chdir(t.TempDir())
		assert.Equal(t, "", resolveConfigPath())
	})
}

// Flag overrides must layer on top of a discovered config.yaml, not replace
// it.
func TestOverridesKeepDiscoveredConfig(t *testing.T) {
	cfgFile = ""
	dir := t.TempDir()
	body := "task:\n  max_rounds: 7\ngateway:\n  model: gemini-2.5-pro\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(body), 0o644))
	t.Chdir(dir)

	loaded, err := config.LoadWithOverrides(resolveConfigPath(), map[string]any{"gateway.model": "gpt-4o"})
	require.NoError(t, err)
	assert.Equal(t, "gpt-4o", loaded.Gateway().Model)
	assert.Equal(t, 7, loaded.Task().MaxRounds)
}

func TestBadConfigFileFails(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("device:\n  kind: toaster\n"), 0o644))

	_, err := executeCommand(t, "--config", path, "run", "--task-description", "t")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "device kind")
}
