package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	require.NotNil(t, cfg)

	assert.True(t, cfg.DefaultExcludesOn)
	assert.InDelta(t, 0.3, cfg.Pipeline.AnomalyThreshold, 1e-9)
	assert.Equal(t, 3, cfg.Pipeline.BeforeContext)
	assert.Equal(t, 1, cfg.Pipeline.AfterContext)
	assert.Equal(t, 5, cfg.Pipeline.ContextDistance)
	assert.EqualValues(t, 1<<16, cfg.Pipeline.IndexDim)
	assert.Equal(t, 4, cfg.Pipeline.NestedTarDepth)
}

func TestLoad_EnvOverride(t *testing.T) {
	t.Setenv("LOGJUICER_DEFAULT_EXCLUDES", "false")
	cfg, err := Load("")
	require.NoError(t, err)
	assert.False(t, cfg.DefaultExcludesOn)
}

func TestLoad_FromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "logjuicer.yaml")
	content := `
excludes:
  - "**/*.csv"
jobs:
  - job: "check-*"
    excludes:
      - "**/debug.log"
pipeline:
  anomaly_threshold: 0.5
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"**/*.csv"}, cfg.Excludes)
	assert.InDelta(t, 0.5, cfg.Pipeline.AnomalyThreshold, 1e-9)
	require.Len(t, cfg.Jobs, 1)
	assert.Equal(t, "check-*", cfg.Jobs[0].Glob)
}

func TestValidate_RejectsBadRegex(t *testing.T) {
	cfg := &Config{Excludes: []string{"("}}
	cfg.Pipeline.NestedTarDepth = 2
	err := cfg.Validate()
	require.Error(t, err)
}

func TestValidate_RejectsBadThreshold(t *testing.T) {
	cfg := &Config{}
	cfg.Pipeline.AnomalyThreshold = 1.5
	cfg.Pipeline.NestedTarDepth = 2
	err := cfg.Validate()
	require.Error(t, err)
}

func TestValidate_RejectsBadNestedTarDepth(t *testing.T) {
	cfg := &Config{}
	cfg.Pipeline.NestedTarDepth = 1
	err := cfg.Validate()
	require.Error(t, err)
}

func TestExcludeRulesFor_AppliesJobOverride(t *testing.T) {
	off := false
	cfg := &Config{
		DefaultExcludesOn: true,
		Excludes:          []string{"**/*.csv"},
		Jobs: []JobOverride{
			{Glob: "check-*", Excludes: []string{"**/debug.log"}, DefaultExcludesOn: &off},
		},
	}

	rules := cfg.ExcludeRulesFor("check-tempest")
	assert.False(t, rules.DefaultExcludesOn)
	assert.Contains(t, rules.Globs, "**/*.csv")
	assert.Contains(t, rules.Globs, "**/debug.log")

	plain := cfg.ExcludeRulesFor("")
	assert.True(t, plain.DefaultExcludesOn)
	assert.NotContains(t, plain.Globs, "**/debug.log")

	unrelated := cfg.ExcludeRulesFor("gate-other")
	assert.True(t, unrelated.DefaultExcludesOn)
}

func TestIncludesFor(t *testing.T) {
	cfg := &Config{
		Includes: []string{"*.log"},
		Jobs: []JobOverride{
			{Glob: "check-*", Includes: []string{"*.json"}},
		},
	}
	assert.Equal(t, []string{"*.log"}, cfg.IncludesFor(""))
	assert.Equal(t, []string{"*.log", "*.json"}, cfg.IncludesFor("check-tempest"))
}
