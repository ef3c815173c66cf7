package cmd

import (
	"context"
	"fmt"
	"path/filepath"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/logjuicer/logjuicer/internal/history"
	"github.com/logjuicer/logjuicer/internal/model"
	"github.com/logjuicer/logjuicer/internal/pipeline"
	"github.com/logjuicer/logjuicer/internal/source"
	"github.com/logjuicer/logjuicer/internal/transport"
)

var modelCmd = &cobra.Command{
	Use:   "model",
	Short: "Train and inspect persisted Models",
}

var modelTrainOutput string

var modelTrainCmd = &cobra.Command{
	Use:   "train <baseline> [baseline...]",
	Short: "Train an Index per IndexName from one or more baselines and persist the Model",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runModelTrain,
}

var modelShowCmd = &cobra.Command{
	Use:   "show <model.cbor>",
	Short: "List the IndexNames, row counts, and sizes stored in a Model",
	Args:  cobra.ExactArgs(1),
	RunE:  runModelShow,
}

func init() {
	modelTrainCmd.Flags().StringVar(&modelTrainOutput, "output", "", "path to write the Model (default: <models_dir>/model-<timestamp>.cbor)")
	modelCmd.AddCommand(modelTrainCmd)
	modelCmd.AddCommand(modelShowCmd)
}

func runModelTrain(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	tr, err := transport.New()
	if err != nil {
		return fmt.Errorf("initialize transport: %w", err)
	}
	resolvers := source.Resolvers{Transport: tr, Exclude: cfg.ExcludeRulesFor("")}

	var baselineContents []source.Content
	for _, arg := range args {
		c, err := contentFromArg(arg)
		if err != nil {
			return err
		}
		baselineContents = append(baselineContents, c)
	}

	baselineGroups, baselineNames, err := expandAndGroup(ctx, baselineContents, resolvers, cmd)
	if err != nil {
		return err
	}

	pcfg := pipelineConfigFromFlags(cfg, reportFlags{})
	indexes, indexReports, err := pipeline.Train(ctx, baselineGroups, pcfg)
	if err != nil {
		return fmt.Errorf("train: %w", err)
	}

	m := model.FromIndexes(baselineNames, indexes)

	outPath := modelTrainOutput
	if outPath == "" {
		if err := ensureDir(cfg.Output.ModelsDir); err != nil {
			return err
		}
		outPath = filepath.Join(cfg.Output.ModelsDir, "model-"+time.Now().Format("20060102-150405")+".cbor")
	}
	if err := model.Save(outPath, m); err != nil {
		return fmt.Errorf("save model: %w", err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "model written to %s\n", outPath)

	h, err := history.Load(filepath.Join(cfg.Output.HistoryDir, "history.json"))
	if err == nil {
		for _, ir := range indexReports {
			ix := indexes[ir.Name]
			h.Record(history.Entry{
				IndexName:   ir.Name,
				TrainedAt:   time.Now(),
				RowCount:    ix.RowCount(),
				SourceCount: len(ir.Sources),
				Sources:     ir.Sources,
			})
		}
		_ = h.Save()
	}

	return nil
}

func runModelShow(cmd *cobra.Command, args []string) error {
	m, err := model.Load(args[0])
	if err != nil {
		return fmt.Errorf("load model: %w", err)
	}

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintf(w, "INDEX\tROWS\tBYTES\n")
	for name, ix := range m.Indexes() {
		fmt.Fprintf(w, "%s\t%d\t%d\n", name, ix.RowCount(), ix.ByteSize())
	}
	return w.Flush()
}
