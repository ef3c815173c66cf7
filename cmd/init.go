package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var initForce bool

const defaultConfigYAML = `# LogJuicer configuration.
# includes/excludes are regexes matched against each expanded Source's
# location; default_excludes enables the built-in ignore list (hidden
# files, /proc, /sys, /var/lib/selinux, .jar, coredumps) from spec §4.1.
includes: []
excludes: []
default_excludes: true

# Per-job overrides, keyed by a glob matched against the job name.
jobs: []
#  - job: "check-tempest-*"
#    excludes:
#      - "**/*.html"

pipeline:
  anomaly_threshold: 0.3
  before_context: 3
  after_context: 1
  context_distance: 5
  index_dim: 65536
  nested_tar_depth: 4

output:
  reports_dir: ./reports
  models_dir: ./models
  history_dir: ./history

notification:
  enabled: false
  shoutrrr_url: ""
`

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Scaffold a default LogJuicer configuration and directory layout",
	Long: `Init creates the directories LogJuicer writes to (reports, models,
history) and a sample logjuicer.yaml, so a first "logjuicer report" run has
somewhere to put its output.`,
	Example: `  # Initialize in the current directory
  logjuicer init

  # Overwrite an existing logjuicer.yaml
  logjuicer init --force`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		out := cmd.OutOrStdout()
		fmt.Fprintln(out, "initializing LogJuicer...")

		for _, dir := range []string{"reports", "models", "history"} {
			if err := os.MkdirAll(dir, 0o750); err != nil {
				return fmt.Errorf("create directory %s: %w", dir, err)
			}
			fmt.Fprintf(out, "created directory: %s\n", dir)
		}

		configPath := "logjuicer.yaml"
		if _, err := os.Stat(configPath); err == nil && !initForce {
			fmt.Fprintf(out, "skipping %s (already exists, use --force to overwrite)\n", configPath)
		} else {
			if err := os.WriteFile(configPath, []byte(defaultConfigYAML), 0o600); err != nil {
				return fmt.Errorf("write %s: %w", configPath, err)
			}
			fmt.Fprintf(out, "created %s\n", configPath)
		}

		fmt.Fprintln(out, "\nnext steps:")
		fmt.Fprintln(out, "  1. edit logjuicer.yaml to add include/exclude rules for your log layout")
		fmt.Fprintln(out, "  2. run 'logjuicer report <target>' to analyze a file or directory")
		return nil
	},
}

func init() {
	initCmd.Flags().BoolVar(&initForce, "force", false, "overwrite an existing logjuicer.yaml")
}
