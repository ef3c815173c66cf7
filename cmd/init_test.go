package cmd

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func chdir(t *testing.T, dir string) {
	t.Helper()
	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { _ = os.Chdir(wd) })
}

func TestInitCmd_CreatesDirectoriesAndConfig(t *testing.T) {
	chdir(t, t.TempDir())

	var buf bytes.Buffer
	initCmd.SetOut(&buf)
	require.NoError(t, initCmd.RunE(initCmd, nil))

	for _, dir := range []string{"reports", "models", "history"} {
		info, err := os.Stat(dir)
		require.NoError(t, err)
		assert.True(t, info.IsDir())
	}

	data, err := os.ReadFile("logjuicer.yaml")
	require.NoError(t, err)
	assert.Contains(t, string(data), "pipeline:")
	assert.Contains(t, string(data), "nested_tar_depth")
}

func TestInitCmd_SkipsExistingConfigWithoutForce(t *testing.T) {
	chdir(t, t.TempDir())
	originalForce := initForce
	defer func() { initForce = originalForce }()
	initForce = false

	require.NoError(t, os.WriteFile("logjuicer.yaml", []byte("custom: true\n"), 0o600))

	var buf bytes.Buffer
	initCmd.SetOut(&buf)
	require.NoError(t, initCmd.RunE(initCmd, nil))

	data, err := os.ReadFile("logjuicer.yaml")
	require.NoError(t, err)
	assert.Equal(t, "custom: true\n", string(data))
	assert.Contains(t, buf.String(), "skipping")
}

func TestInitCmd_OverwritesExistingConfigWithForce(t *testing.T) {
	chdir(t, t.TempDir())
	originalForce := initForce
	defer func() { initForce = originalForce }()
	initForce = true

	require.NoError(t, os.WriteFile("logjuicer.yaml", []byte("custom: true\n"), 0o600))

	var buf bytes.Buffer
	initCmd.SetOut(&buf)
	require.NoError(t, initCmd.RunE(initCmd, nil))

	data, err := os.ReadFile("logjuicer.yaml")
	require.NoError(t, err)
	assert.NotEqual(t, "custom: true\n", string(data))
	assert.Contains(t, string(data), "pipeline:")
}

func TestInitCmd_Flags(t *testing.T) {
	flag := initCmd.Flags().Lookup("force")
	require.NotNil(t, flag)
	assert.Equal(t, "false", flag.DefValue)
}

func TestInitCmd_FailsOnUnwritableDirectory(t *testing.T) {
	dir := t.TempDir()
	chdir(t, dir)
	// Put a file where the "reports" directory should go, so MkdirAll fails.
	require.NoError(t, os.WriteFile(filepath.Join(dir, "reports"), []byte("x"), 0o600))

	err := initCmd.RunE(initCmd, nil)
	require.Error(t, err)
}
