package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/logjuicer/logjuicer/internal/config"
	"github.com/logjuicer/logjuicer/internal/lineiter"
	"github.com/logjuicer/logjuicer/internal/pipeline"
	"github.com/logjuicer/logjuicer/internal/source"
)

// expandAndGroup expands each Content into Sources, skipping (with a
// warning) any that fail to expand, and groups the survivors by IndexName.
func expandAndGroup(ctx context.Context, contents []source.Content, resolvers source.Resolvers, cmd *cobra.Command) (map[string][]lineiter.Source, []string, error) {
	var names []string
	var all []lineiter.Source
	for _, c := range contents {
		srcs, _, err := source.Expand(ctx, c, resolvers)
		if err != nil {
			fmt.Fprintf(cmd.OutOrStderr(), "warning: skipping %s: %v\n", c.String(), err)
			continue
		}
		names = append(names, c.String())
		all = append(all, srcs...)
	}
	if len(names) == 0 {
		return nil, nil, fmt.Errorf("no usable content to train from")
	}
	return source.GroupByIndexName(all), names, nil
}

// ensureDir creates dir (and parents) if it does not already exist.
func ensureDir(dir string) error {
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return fmt.Errorf("create directory %s: %w", dir, err)
	}
	return nil
}

// pipelineConfigFromFlags layers reportFlags on top of the loaded Config's
// pipeline defaults: an explicitly-set flag wins, otherwise the config
// value (itself defaulted in internal/config) applies.
func pipelineConfigFromFlags(cfg *config.Config, f reportFlags) pipeline.Config {
	pcfg := pipeline.DefaultConfig()

	if cfg != nil {
		pcfg.AnomalyThreshold = cfg.Pipeline.AnomalyThreshold
		pcfg.BeforeContext = cfg.Pipeline.BeforeContext
		pcfg.AfterContext = cfg.Pipeline.AfterContext
		pcfg.ContextDistance = cfg.Pipeline.ContextDistance
		if cfg.Pipeline.IndexDim != 0 {
			pcfg.IndexDim = cfg.Pipeline.IndexDim
		}
		pcfg.Exclude = cfg.ExcludeRulesFor("")
		if cfg.Pipeline.NestedTarDepth != 0 {
			pcfg.NestedTarDepth = cfg.Pipeline.NestedTarDepth
		}
	}

	if f.threshold != 0 {
		pcfg.AnomalyThreshold = f.threshold
	}
	if f.before != 0 {
		pcfg.BeforeContext = f.before
	}
	if f.after != 0 {
		pcfg.AfterContext = f.after
	}
	if f.gap != 0 {
		pcfg.ContextDistance = f.gap
	}
	if f.indexDim != 0 {
		pcfg.IndexDim = f.indexDim
	}
	pcfg.KeepDuplicate = f.keepDup || config.EnvKeepDuplicateSet()

	return pcfg
}
