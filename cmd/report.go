package cmd

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync/atomic"

	"github.com/spf13/cobra"

	"github.com/logjuicer/logjuicer/internal/apperrors"
	"github.com/logjuicer/logjuicer/internal/history"
	"github.com/logjuicer/logjuicer/internal/lineiter"
	"github.com/logjuicer/logjuicer/internal/notify"
	"github.com/logjuicer/logjuicer/internal/pipeline"
	"github.com/logjuicer/logjuicer/internal/report"
	"github.com/logjuicer/logjuicer/internal/sanitize"
	"github.com/logjuicer/logjuicer/internal/source"
	"github.com/logjuicer/logjuicer/internal/transport"
)

var reportCmd = &cobra.Command{
	Use:   "report <target>",
	Short: "Analyze a target against one or more baselines and emit a report",
	Long: `Report trains one Index per baseline group from the given baselines, then
streams the target through the matching index, emitting anomalies with a
merged-context window.

The target and each baseline may be a local file, a local directory (walked
recursively), or an http(s) URL (a URL ending in "/" is crawled as a
directory index). If no --baseline is given, LogJuicer looks for sibling
rotated files or directories next to the target (spec §4.4).`,
	Example: `  # Analyze a single file against its rotated siblings
  logjuicer report /var/log/audit/audit.log

  # Analyze a directory against an explicit baseline directory
  logjuicer report ./logs/run-42 --baseline ./logs/run-41

  # Analyze a remote build log directory
  logjuicer report https://ci.example.com/42/ --baseline https://ci.example.com/41/`,
	Args: cobra.ExactArgs(1),
	RunE: runReport,
}

var reportFlagVars reportFlags

func init() {
	f := reportCmd.Flags()
	f.StringSliceVar(&reportFlagVars.baselines, "baseline", nil, "baseline Content (repeatable); auto-discovered from siblings if omitted")
	f.StringVar(&reportFlagVars.output, "output", "", "path to write the CBOR report (default: <reports_dir>/<sanitized target>.cbor)")
	f.StringVar(&reportFlagVars.markdownOut, "markdown", "", "path to write a Markdown rendering of the report (default: stdout)")
	f.Float32Var(&reportFlagVars.threshold, "threshold", 0, "anomaly distance threshold in [0,1] (default: 0.3, or pipeline.anomaly_threshold from config)")
	f.IntVar(&reportFlagVars.before, "before-context", 0, "lines of context before an anomaly (default: 3, or config)")
	f.IntVar(&reportFlagVars.after, "after-context", 0, "lines of context after an anomaly (default: 1, or config)")
	f.IntVar(&reportFlagVars.gap, "context-distance", 0, "max line gap before merging adjacent anomaly contexts (default: 5, or config)")
	f.Uint32Var(&reportFlagVars.indexDim, "index-dim", 0, "feature-hashing dimension, power of two in [2^14, 2^18] (default: 2^16, or config)")
	f.BoolVar(&reportFlagVars.keepDup, "keep-duplicate", false, "do not collapse adjacent identical anomalies (also LOGJUICER_KEEP_DUPLICATE)")
	f.BoolVar(&reportFlagVars.notify, "notify", false, "send a one-line summary via the configured notification channel")
}

func runReport(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	target, err := contentFromArg(args[0])
	if err != nil {
		return err
	}

	tr, err := transport.New()
	if err != nil {
		return fmt.Errorf("initialize transport: %w", err)
	}
	// A missing/corrupt history file just means discovery falls back to a
	// fresh sibling scan, so a load error here is not fatal to the report.
	h, _ := history.Load(filepath.Join(cfg.Output.HistoryDir, "history.json"))
	resolvers := source.Resolvers{
		Transport: tr,
		Exclude:   cfg.ExcludeRulesFor(""),
		History:   h,
	}

	baselineContents, err := resolveBaselines(ctx, target, resolvers, reportFlagVars.baselines)
	if err != nil {
		return err
	}

	targetSources, _, err := source.Expand(ctx, target, resolvers)
	if err != nil {
		return fmt.Errorf("expand target %s: %w", target.String(), err)
	}

	var baselineNames []string
	var baselineSources []lineiter.Source
	for _, b := range baselineContents {
		srcs, _, err := source.Expand(ctx, b, resolvers)
		if err != nil {
			fmt.Fprintf(cmd.OutOrStderr(), "warning: skipping baseline %s: %v\n", b.String(), err)
			continue
		}
		baselineNames = append(baselineNames, b.String())
		baselineSources = append(baselineSources, srcs...)
	}
	if len(baselineNames) == 0 {
		return &apperrors.DiscoveryError{Content: target.String(), Err: fmt.Errorf("no usable baselines")}
	}

	baselineGroups := source.GroupByIndexName(baselineSources)

	pcfg := pipelineConfigFromFlags(cfg, reportFlagVars)
	pcfg.Cancel = new(atomic.Bool)

	rep, err := pipeline.Run(ctx, target.String(), targetSources, baselineNames, baselineGroups, pcfg)
	if err != nil {
		return fmt.Errorf("run pipeline: %w", err)
	}

	if err := writeReportOutputs(cmd, rep); err != nil {
		return err
	}

	if reportFlagVars.notify {
		n, err := notify.New(cfg.Notification)
		if err != nil {
			return fmt.Errorf("notification: %w", err)
		}
		if err := n.Send(rep); err != nil {
			fmt.Fprintf(cmd.OutOrStderr(), "warning: notification failed: %v\n", err)
		}
	}

	return nil
}

func writeReportOutputs(cmd *cobra.Command, rep report.Report) error {
	outPath := reportFlagVars.output
	if outPath == "" {
		dir := cfg.Output.ReportsDir
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return fmt.Errorf("create reports dir %s: %w", dir, err)
		}
		outPath = filepath.Join(dir, sanitize.Name(rep.Target)+"-"+rep.CreatedAt.Format("20060102-150405")+".cbor")
	}
	if err := report.Save(outPath, rep); err != nil {
		return fmt.Errorf("save report: %w", err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "report written to %s\n", outPath)

	md := report.RenderMarkdown(rep)
	if reportFlagVars.markdownOut == "" {
		fmt.Fprint(cmd.OutOrStdout(), md)
		return nil
	}
	if err := os.WriteFile(reportFlagVars.markdownOut, []byte(md), 0o600); err != nil {
		return fmt.Errorf("write markdown report %s: %w", reportFlagVars.markdownOut, err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "markdown written to %s\n", reportFlagVars.markdownOut)
	return nil
}

func resolveBaselines(ctx context.Context, target source.Content, resolvers source.Resolvers, explicit []string) ([]source.Content, error) {
	if len(explicit) > 0 {
		out := make([]source.Content, 0, len(explicit))
		for _, b := range explicit {
			c, err := contentFromArg(b)
			if err != nil {
				return nil, err
			}
			out = append(out, c)
		}
		return out, nil
	}
	return source.DiscoverBaselines(ctx, target, resolvers, 1)
}
