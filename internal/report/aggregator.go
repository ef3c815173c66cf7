package report

import (
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Aggregator collects per-source results from concurrent workers behind a
// mutex; append rate is negligible next to line throughput, so contention
// is not a concern (spec §5).
type Aggregator struct {
	mu           sync.Mutex
	logReports   []LogReport
	indexReports []IndexReport
	unknownFiles []UnknownFile
	readErrors   []ReadErrorEntry
}

// NewAggregator returns an empty Aggregator.
func NewAggregator() *Aggregator { return &Aggregator{} }

// AddLogReport records one source's result.
func (a *Aggregator) AddLogReport(lr LogReport) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.logReports = append(a.logReports, lr)
}

// AddIndexReport records one IndexName's training provenance.
func (a *Aggregator) AddIndexReport(ir IndexReport) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.indexReports = append(a.indexReports, ir)
}

// AddUnknownFile records a target source with no matching baseline index.
func (a *Aggregator) AddUnknownFile(u UnknownFile) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.unknownFiles = append(a.unknownFiles, u)
}

// AddReadError records a non-fatal per-source read failure.
func (a *Aggregator) AddReadError(e ReadErrorEntry) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.readErrors = append(a.readErrors, e)
}

// Build assembles the final Report. sourceOrder fixes the target's own
// source-expansion order (spec §4.5): LogReports are sorted to match it
// regardless of which worker finished first.
func (a *Aggregator) Build(target string, baselines []string, createdAt time.Time, runTime time.Duration, sourceOrder []string) Report {
	a.mu.Lock()
	defer a.mu.Unlock()

	rank := make(map[string]int, len(sourceOrder))
	for i, s := range sourceOrder {
		rank[s] = i
	}
	logReports := append([]LogReport(nil), a.logReports...)
	sort.SliceStable(logReports, func(i, j int) bool {
		return rank[logReports[i].Source] < rank[logReports[j].Source]
	})

	var totalLines, totalAnomalies uint32
	for _, lr := range logReports {
		totalLines += uint32(lr.LineCount)
		totalAnomalies += uint32(lr.AnomalyCount())
	}

	return Report{
		RunID:             uuid.NewString(),
		CreatedAt:         createdAt,
		RunTime:           runTime,
		Target:            target,
		Baselines:         baselines,
		LogReports:        logReports,
		IndexReports:      append([]IndexReport(nil), a.indexReports...),
		UnknownFiles:      append([]UnknownFile(nil), a.unknownFiles...),
		ReadErrors:        append([]ReadErrorEntry(nil), a.readErrors...),
		TotalLineCount:    totalLines,
		TotalAnomalyCount: totalAnomalies,
	}
}
