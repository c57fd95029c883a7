package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault(t *testing.T) {
	cfg := Default()
	assert.Equal(t, DefaultTimeout, cfg.Solver.Timeout)
	assert.Equal(t, DefaultMaxModels, cfg.Solver.MaxModels)
	assert.True(t, cfg.Validate)
	require.NoError(t, cfg.Check())
}

func TestParse_Overrides(t *testing.T) {
	cfg, err := Parse([]byte(`
solver:
  timeout: 5s
  max_models: 3
log:
  level: debug
  format: json
validate: false
`))
	require.NoError(t, err)
	assert.Equal(t, 5*time.Second, cfg.Solver.Timeout)
	assert.Equal(t, 3, cfg.Solver.MaxModels)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)
	assert.False(t, cfg.Validate)
}

func TestParse_PartialKeepsDefaults(t *testing.T) {
	cfg, err := Parse([]byte("solver:\n  max_models: 2\n"))
	require.NoError(t, err)
	assert.Equal(t, 2, cfg.Solver.MaxModels)
	assert.Equal(t, DefaultTimeout, cfg.Solver.Timeout)
	assert.Equal(t, "console", cfg.Log.Format)

	cfg, err = Parse(nil)
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestParse_Invalid(t *testing.T) {
	_, err := Parse([]byte("solver:\n  max_model: 2\n"))
	require.Error(t, err, "unknown keys are rejected")

	_, err = Parse([]byte("solver:\n  max_models: 0\nlog:\n  format: xml\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "max_models")
	assert.Contains(t, err.Error(), "log.format")
}

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "glitch.yaml")
	require.NoError(t, os.WriteFile(path, []byte("solver:\n  timeout: 2s\n"), 0o644))

	t.Setenv("GLITCH_MAX_MODELS", "4")
	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 2*time.Second, cfg.Solver.Timeout)
	assert.Equal(t, 4, cfg.Solver.MaxModels)

	t.Setenv("GLITCH_SOLVER_TIMEOUT", "soon")
	_, err = Load(path)
	require.Error(t, err)

	_, err = Load(filepath.Join(dir, "missing.yaml"))
	require.Error(t, err)
}
