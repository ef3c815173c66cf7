package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/logjuicer/logjuicer/internal/config"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Inspect and validate LogJuicer configuration",
}

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Load and validate the configuration file without running anything",
	Long: `Validate loads configuration the same way every other command does
(defaults, then .env, then the config file, then LOGJUICER_-prefixed
environment variables) and reports the first error found, per spec §7's
"ConfigError ... fatal, surfaced before any I/O".`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		c, err := config.Load(cfgFile)
		if err != nil {
			return err
		}
		src := c.ConfigFilePath
		if src == "" {
			src = "(defaults/environment)"
		}
		fmt.Fprintf(cmd.OutOrStdout(), "configuration OK: %s\n", src)
		fmt.Fprintf(cmd.OutOrStdout(), "  includes: %d patterns\n", len(c.Includes))
		fmt.Fprintf(cmd.OutOrStdout(), "  excludes: %d patterns (default excludes: %v)\n", len(c.Excludes), c.DefaultExcludesOn)
		fmt.Fprintf(cmd.OutOrStdout(), "  job overrides: %d\n", len(c.Jobs))
		fmt.Fprintf(cmd.OutOrStdout(), "  anomaly threshold: %.2f\n", c.Pipeline.AnomalyThreshold)
		return nil
	},
}

func init() {
	configCmd.AddCommand(validateCmd)
}
