package cmd

import (
	"bytes"
	"strings"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/logjuicer/logjuicer/internal/config"
)

func TestRootCmd_Structure(t *testing.T) {
	assert.Equal(t, "logjuicer", rootCmd.Use)
	assert.NotEmpty(t, rootCmd.Short)
	assert.NotEmpty(t, rootCmd.Long)
	assert.NotEmpty(t, rootCmd.Version)
}

func TestRootCmd_PersistentFlags(t *testing.T) {
	flags := rootCmd.PersistentFlags()

	configFlag := flags.Lookup("config")
	require.NotNil(t, configFlag)
	assert.Empty(t, configFlag.DefValue)

	verboseFlag := flags.Lookup("verbose")
	require.NotNil(t, verboseFlag)
	assert.Equal(t, "false", verboseFlag.DefValue)
	assert.Equal(t, "v", verboseFlag.Shorthand)
}

func TestRootCmd_Subcommands(t *testing.T) {
	names := make(map[string]bool)
	for _, sub := range rootCmd.Commands() {
		names[sub.Name()] = true
	}
	for _, want := range []string{"report", "model", "config", "init", "cleanup"} {
		assert.True(t, names[want], "expected subcommand %q to be registered", want)
	}
}

func TestRootCmd_HelpOutput(t *testing.T) {
	var buf bytes.Buffer
	rootCmd.SetOut(&buf)
	rootCmd.SetArgs([]string{"--help"})
	require.NoError(t, rootCmd.Execute())
	assert.Contains(t, buf.String(), "LogJuicer")
}

func TestGetConfig(t *testing.T) {
	original := cfg
	defer func() { cfg = original }()

	cfg = nil
	assert.Nil(t, GetConfig())

	want := &config.Config{}
	cfg = want
	assert.Same(t, want, GetConfig())
}

func TestRootCmd_PersistentPreRunE_SkipsBootstrapCommands(t *testing.T) {
	for _, name := range []string{"init", "help", "version", "validate"} {
		mock := &cobra.Command{Use: name}
		assert.NoError(t, rootCmd.PersistentPreRunE(mock, nil), "command %q should skip config loading", name)
	}
}

func TestRootCmd_PersistentPreRunE_LoadsConfigForOtherCommands(t *testing.T) {
	originalCfgFile := cfgFile
	originalCfg := cfg
	defer func() {
		cfgFile = originalCfgFile
		cfg = originalCfg
	}()

	cfgFile = "" // no file on disk; config.Load still succeeds on defaults
	mock := &cobra.Command{Use: "report"}
	err := rootCmd.PersistentPreRunE(mock, nil)
	require.NoError(t, err)
	assert.NotNil(t, cfg)
}

func TestRootCmd_UseLineMentionsBinaryName(t *testing.T) {
	assert.True(t, strings.Contains(rootCmd.UseLine(), "logjuicer"))
}
