package cmd

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/logjuicer/logjuicer/internal/history"
)

var (
	cleanupDryRun bool
	cleanupForce  bool
)

var cleanupCmd = &cobra.Command{
	Use:   "cleanup",
	Short: "Prune training history and stale model/report files",
	Long: `Cleanup identifies IndexNames whose training history has aged past
the history_retention_days window and removes those history entries, along
with report and model files in output.reports_dir and output.models_dir
older than the same cutoff. With --dry-run it only reports what would be
pruned.`,
	Example: `  # List what is stale
  logjuicer cleanup list

  # Prune it
  logjuicer cleanup execute

  # Preview without deleting
  logjuicer cleanup execute --dry-run`,
}

var cleanupListCmd = &cobra.Command{
	Use:   "list",
	Short: "List IndexNames with training history",
	RunE: func(cmd *cobra.Command, _ []string) error {
		h, err := history.Load(historyPath())
		if err != nil {
			return fmt.Errorf("load history: %w", err)
		}

		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintf(w, "INDEX\tTRAINED AT\tROWS\tSOURCES\n")
		for _, name := range h.Names() {
			e, _ := h.Get(name)
			fmt.Fprintf(w, "%s\t%s\t%d\t%d\n", e.IndexName, e.TrainedAt.Format(time.RFC3339), e.RowCount, e.SourceCount)
		}
		return w.Flush()
	},
}

var cleanupExecuteCmd = &cobra.Command{
	Use:   "execute",
	Short: "Prune history entries older than the configured retention window",
	RunE: func(cmd *cobra.Command, _ []string) error {
		h, err := history.Load(historyPath())
		if err != nil {
			return fmt.Errorf("load history: %w", err)
		}

		retention := time.Duration(cfg.HistoryRetention) * 24 * time.Hour
		cutoff := time.Now().Add(-retention)

		if cleanupDryRun {
			stale := 0
			for _, name := range h.Names() {
				e, _ := h.Get(name)
				if e.TrainedAt.Before(cutoff) {
					stale++
					fmt.Fprintf(cmd.OutOrStdout(), "would prune: %s (trained %s)\n", name, e.TrainedAt.Format(time.RFC3339))
				}
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%d entries would be pruned\n", stale)

			reportsStale, err := pruneStaleFiles(cfg.Output.ReportsDir, cutoff, true, cmd.OutOrStdout())
			if err != nil {
				return fmt.Errorf("scan reports dir: %w", err)
			}
			modelsStale, err := pruneStaleFiles(cfg.Output.ModelsDir, cutoff, true, cmd.OutOrStdout())
			if err != nil {
				return fmt.Errorf("scan models dir: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%d report files and %d model files would be pruned\n", reportsStale, modelsStale)
			return nil
		}

		if !cleanupForce {
			fmt.Fprint(cmd.OutOrStdout(), "prune stale history entries and report/model files? [y/N] ")
			var answer string
			_, _ = fmt.Fscanln(cmd.InOrStdin(), &answer)
			if answer != "y" && answer != "Y" {
				fmt.Fprintln(cmd.OutOrStdout(), "aborted")
				return nil
			}
		}

		n := h.Prune(retention)
		if err := h.Save(); err != nil {
			return fmt.Errorf("save history: %w", err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "pruned %d entries\n", n)

		reportsPruned, err := pruneStaleFiles(cfg.Output.ReportsDir, cutoff, false, cmd.OutOrStdout())
		if err != nil {
			return fmt.Errorf("prune reports dir: %w", err)
		}
		modelsPruned, err := pruneStaleFiles(cfg.Output.ModelsDir, cutoff, false, cmd.OutOrStdout())
		if err != nil {
			return fmt.Errorf("prune models dir: %w", err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "pruned %d report files and %d model files\n", reportsPruned, modelsPruned)
		return nil
	},
}

// pruneStaleFiles removes (or, if dryRun, reports) every regular file
// directly under dir whose modification time is before cutoff — the
// report .cbor and model .cbor files a run leaves behind, mirroring the
// teacher's stat-then-remove deleteReportsDir/deleteLLMLogsDir pattern but
// keyed on file age rather than a per-container directory, since
// LogJuicer writes one flat file per run rather than one directory per
// tracked entity. A missing directory is not an error.
func pruneStaleFiles(dir string, cutoff time.Time, dryRun bool, out io.Writer) (int, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return 0, nil
		}
		return 0, fmt.Errorf("read directory %s: %w", dir, err)
	}

	n := 0
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		if info.ModTime().After(cutoff) {
			continue
		}

		full := filepath.Join(dir, e.Name())
		if dryRun {
			fmt.Fprintf(out, "would prune: %s (modified %s)\n", full, info.ModTime().Format(time.RFC3339))
			n++
			continue
		}

		if err := os.Remove(full); err != nil {
			if os.IsPermission(err) {
				return n, fmt.Errorf("permission denied deleting %s", full)
			}
			return n, fmt.Errorf("delete %s: %w", full, err)
		}
		n++
	}
	return n, nil
}

func historyPath() string {
	dir := "./history"
	if cfg != nil && cfg.Output.HistoryDir != "" {
		dir = cfg.Output.HistoryDir
	}
	return filepath.Join(dir, "history.json")
}

func init() {
	cleanupExecuteCmd.Flags().BoolVar(&cleanupDryRun, "dry-run", false, "preview without deleting anything")
	cleanupExecuteCmd.Flags().BoolVar(&cleanupForce, "force", false, "skip the confirmation prompt")
	cleanupCmd.AddCommand(cleanupListCmd)
	cleanupCmd.AddCommand(cleanupExecuteCmd)
}
