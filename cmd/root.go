// Package cmd implements LogJuicer's CLI commands.
package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/logjuicer/logjuicer/internal/config"
	"github.com/logjuicer/logjuicer/internal/version"
)

var (
	cfgFile string
	verbose bool
	cfg     *config.Config
)

var rootCmd = &cobra.Command{
	Use:   "logjuicer",
	Short: "Extract anomalous log lines by contrasting a target against baselines",
	Long: `LogJuicer extracts anomalous log lines from a target by contrasting it
against one or more baselines assumed to be nominal. It tokenizes each log
line into a canonical, identifier-free skeleton, trains a per-file-role index
of the baseline corpus, and flags target lines whose tokenized shape is
unlike anything seen during training.`,
	Version: version.GetFullVersion(),
	PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
		skip := cmd.Name() == "init" || cmd.Name() == "help" || cmd.Name() == "version" || cmd.Name() == "validate"
		if skip {
			return nil
		}
		var err error
		cfg, err = config.Load(cfgFile)
		return err
	},
}

// GetConfig returns the configuration loaded by PersistentPreRunE.
func GetConfig() *config.Config {
	return cfg
}

// Execute runs the root command, exiting non-zero on error per spec §7's
// "any fatal error yields a non-zero exit status and a single-line
// human-readable message."
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "path to logjuicer.yaml (default: search ., $HOME/.config/logjuicer, /etc/logjuicer)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")

	rootCmd.AddCommand(reportCmd)
	rootCmd.AddCommand(modelCmd)
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(initCmd)
	rootCmd.AddCommand(cleanupCmd)
}
