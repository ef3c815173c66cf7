// Package pipeline drives training and querying end to end over a
// work-stealing scheduler (spec §4.5, §5): baseline groups train in
// parallel, then target sources are queried in parallel, while each
// source's own line order stays strictly FIFO.
package pipeline

import (
	"context"
	"errors"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sourcegraph/conc/pool"

	"github.com/logjuicer/logjuicer/internal/apperrors"
	"github.com/logjuicer/logjuicer/internal/index"
	"github.com/logjuicer/logjuicer/internal/lineiter"
	"github.com/logjuicer/logjuicer/internal/report"
	"github.com/logjuicer/logjuicer/internal/source"
	"github.com/logjuicer/logjuicer/internal/tokenizer"
)

// Config holds the run-time knobs spec §4.5 exposes.
type Config struct {
	AnomalyThreshold float32
	BeforeContext    int
	AfterContext     int
	ContextDistance  int
	IndexDim         uint32
	KeepDuplicate    bool
	Exclude          lineiter.ExcludeRules
	NestedTarDepth   int

	// Cancel, if non-nil, is checked at every line fetch and between
	// sources; setting it mid-run stops in-flight sources after their
	// current line (spec §5).
	Cancel *atomic.Bool
}

// DefaultConfig returns spec §4.5/§4.3's documented defaults.
func DefaultConfig() Config {
	return Config{
		AnomalyThreshold: 0.3,
		BeforeContext:    3,
		AfterContext:     1,
		ContextDistance:  5,
		IndexDim:         index.DefaultDim,
		NestedTarDepth:   lineiter.MaxArchiveDepth,
	}
}

func (c Config) dim() uint32 {
	if c.IndexDim == 0 {
		return index.DefaultDim
	}
	return c.IndexDim
}

func (c Config) cancelled() bool {
	return c.Cancel != nil && c.Cancel.Load()
}

// Run trains one Index per baseline group, then queries every target
// source against its group's Index, and returns the assembled Report.
func Run(
	ctx context.Context,
	targetContent string,
	targetSources []lineiter.Source,
	baselineNames []string,
	baselineGroups map[string][]lineiter.Source,
	cfg Config,
) (report.Report, error) {
	runStart := time.Now()
	agg := report.NewAggregator()

	indexes, err := trainGroups(ctx, baselineGroups, cfg, agg)
	if err != nil {
		return report.Report{}, err
	}

	sourceOrder := queryTargets(ctx, targetSources, indexes, cfg, agg)

	if cfg.cancelled() {
		return report.Report{}, &apperrors.CancellationError{Stage: "query"}
	}

	return agg.Build(targetContent, baselineNames, runStart, time.Since(runStart), sourceOrder), nil
}

// Train trains one Index per baseline group and returns the live indexes
// alongside their IndexReports, without running a query phase. It is the
// entry point for `logjuicer model train`, which persists indexes without
// analyzing a target.
func Train(ctx context.Context, baselineGroups map[string][]lineiter.Source, cfg Config) (map[string]*index.Index, []report.IndexReport, error) {
	agg := report.NewAggregator()
	indexes, err := trainGroups(ctx, baselineGroups, cfg, agg)
	if err != nil {
		return nil, nil, err
	}
	built := agg.Build("", nil, time.Now(), 0, nil)
	return indexes, built.IndexReports, nil
}

// trainGroups trains every IndexName's group concurrently; within a group,
// sources are added sequentially so dedup order stays deterministic. Each
// failed source is recorded as a read error; a group whose sources all fail
// gets no Index, so its target sources later become unknown files instead
// of aborting the run (spec §4.5/§7). Only when every group fails is a
// TrainingError returned.
func trainGroups(ctx context.Context, groups map[string][]lineiter.Source, cfg Config, agg *report.Aggregator) (map[string]*index.Index, error) {
	indexes := make(map[string]*index.Index, len(groups))
	var mu sync.Mutex

	p := pool.New().WithMaxGoroutines(runtime.NumCPU())
	for name, srcs := range groups {
		name, srcs := name, srcs
		p.Go(func() {
			if cfg.cancelled() {
				return
			}
			t0 := time.Now()
			ix := index.New(cfg.dim())
			names := make([]string, 0, len(srcs))
			trained := 0
			for _, s := range srcs {
				names = append(names, s.Name)
				if cfg.cancelled() {
					return
				}
				if terr := trainOneSource(ctx, s, ix, cfg); terr != nil {
					agg.AddReadError(report.ReadErrorEntry{Source: s.Name, Error: terr.Error()})
					continue
				}
				trained++
			}
			if trained == 0 {
				return
			}
			mu.Lock()
			indexes[name] = ix
			mu.Unlock()
			agg.AddIndexReport(report.IndexReport{Name: name, TrainTime: time.Since(t0), Sources: names})
		})
	}
	p.Wait()

	if len(groups) > 0 && len(indexes) == 0 {
		return nil, &apperrors.TrainingError{IndexName: "*", Err: errors.New("every baseline group failed to train")}
	}
	return indexes, nil
}

func trainOneSource(ctx context.Context, src lineiter.Source, ix *index.Index, cfg Config) error {
	li, err := lineiter.OpenDepth(ctx, src, cfg.Exclude, cfg.NestedTarDepth)
	if err != nil {
		return err
	}
	for {
		line, ok, err := li.Next()
		if err != nil {
			return err
		}
		if !ok {
			return nil
		}
		ix.Add(tokenizer.Tokenize(line.Bytes))
	}
}

// queryTargets fans target sources with a known IndexName out across a
// worker pool, recording unknown files and read errors as they're found,
// and returns the sources in their original expansion order so the
// aggregator can restore that order regardless of worker completion order.
func queryTargets(ctx context.Context, targets []lineiter.Source, indexes map[string]*index.Index, cfg Config, agg *report.Aggregator) []string {
	sourceOrder := make([]string, 0, len(targets))
	p := pool.New().WithMaxGoroutines(runtime.NumCPU())

	for _, s := range targets {
		s := s
		sourceOrder = append(sourceOrder, s.Name)
		name := source.IndexNameOf(s.Name)
		ix, ok := indexes[name]
		if !ok {
			agg.AddUnknownFile(report.UnknownFile{Name: name, Sources: []string{s.Name}})
			continue
		}
		p.Go(func() {
			if cfg.cancelled() {
				return
			}
			lr, err := queryOneSource(ctx, s, ix, name, cfg)
			if err != nil {
				agg.AddReadError(report.ReadErrorEntry{Source: s.Name, Error: err.Error()})
				return
			}
			agg.AddLogReport(lr)
		})
	}
	p.Wait()
	return sourceOrder
}

func queryOneSource(ctx context.Context, src lineiter.Source, ix *index.Index, indexName string, cfg Config) (report.LogReport, error) {
	t0 := time.Now()
	li, err := lineiter.OpenDepth(ctx, src, cfg.Exclude, cfg.NestedTarDepth)
	if err != nil {
		return report.LogReport{}, err
	}

	cb := report.NewContextBuilder(cfg.BeforeContext, cfg.AfterContext, cfg.ContextDistance, cfg.KeepDuplicate)
	var lineCount int
	var byteCount int64

	for {
		if cfg.cancelled() {
			return report.LogReport{}, &apperrors.CancellationError{Stage: "query"}
		}
		line, ok, err := li.Next()
		if err != nil {
			return report.LogReport{}, err
		}
		if !ok {
			break
		}
		lineCount++
		byteCount += int64(len(line.Bytes)) + 1

		toks := tokenizer.Tokenize(line.Bytes)
		dist := ix.Distance(toks)
		isAnomaly := len(toks) > 0 && dist >= cfg.AnomalyThreshold
		cb.Feed(line.Number, line.Offset, string(line.Bytes), dist, isAnomaly)
	}

	return report.LogReport{
		Source:    src.Name,
		IndexName: indexName,
		LineCount: lineCount,
		ByteCount: byteCount,
		TestTime:  time.Since(t0),
		Contexts:  cb.Finish(),
	}, nil
}
