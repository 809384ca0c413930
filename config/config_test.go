package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Chdir(t.TempDir())

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, 0.8, cfg.Conflict.Threshold)
	assert.Equal(t, 0.7, cfg.Conflict.SimilarityThreshold)
	assert.Equal(t, 3, cfg.Conflict.ClusterNum)
	assert.False(t, cfg.Conflict.SimilarityGate)
	assert.Equal(t, "output", cfg.Paths.Outputs)
	assert.Empty(t, cfg.File)
}

func TestLoadFileAndEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
pipeline:
  log_level: debug
services:
  classifier:
    url: http://nli:8000
conflict:
  threshold: 0.75
  cluster_num: 5
  keywords: ["should", "#number"]
`), 0o644))
	t.Setenv("MEETING_CONFLICT_CLUSTER_NUM", "4")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "debug", cfg.Pipeline.LogLvl)
	assert.Equal(t, "http://nli:8000", cfg.Services.Classifier.URL)
	assert.Equal(t, 0.75, cfg.Conflict.Threshold)
	assert.Equal(t, 4, cfg.Conflict.ClusterNum)
	assert.Equal(t, []string{"should", "#number"}, cfg.Conflict.Keywords)
	assert.Equal(t, path, cfg.File)
}

func TestLoadGuessesByEnv(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	require.NoError(t, os.MkdirAll(filepath.Join("config", "prod"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join("config", "prod", "config.yaml"), []byte("conflict:\n  threshold: 0.9\n"), 0o644))
	t.Setenv("CONFIG_ENV", "prod")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, 0.9, cfg.Conflict.Threshold)
}

func TestValidate(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("conflict:\n  threshold: 1.5\n  cluster_num: 0\n"), 0o644))

	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "conflict.threshold")
	assert.Contains(t, err.Error(), "conflict.cluster_num")
}
