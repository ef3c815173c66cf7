// Package discovery declares the collaborator interfaces LogJuicer's core
// consults to turn a CI build reference into concrete log URLs and to find
// prior successful builds to use as baselines (spec §6). Concrete Zuul/Prow
// clients are external collaborators; this package only fixes the contract
// the pipeline programs against.
package discovery

import (
	"context"
	"io"
	"time"
)

// ZuulBuild identifies one Zuul CI job execution.
type ZuulBuild struct {
	URL      string
	JobName  string
	Project  string
	Branch   string
	Pipeline string
}

// ProwBuild identifies one Prow CI job execution.
type ProwBuild struct {
	URL     string
	JobName string
	BuildID string
}

// BuildMetadata is free-form key/value metadata returned alongside a
// resolved build's log URLs (job result, duration, voting status, ...).
type BuildMetadata map[string]string

// ZuulResolver resolves a Zuul build into its log URLs and finds prior
// successful runs of the same job to use as baselines.
type ZuulResolver interface {
	Resolve(ctx context.Context, build ZuulBuild) (urls []string, meta BuildMetadata, err error)
	FindBaselines(ctx context.Context, build ZuulBuild, k int) ([]ZuulBuild, error)
}

// ProwResolver is ZuulResolver's Prow counterpart.
type ProwResolver interface {
	Resolve(ctx context.Context, build ProwBuild) (urls []string, meta BuildMetadata, err error)
	FindBaselines(ctx context.Context, build ProwBuild, k int) ([]ProwBuild, error)
}

// JournalReader streams lines recorded between t0 and t1 from a systemd
// journal (or compatible local log daemon). LocalZuul content without a
// Zuul API available falls back to this for kernel/service context.
type JournalReader interface {
	Range(ctx context.Context, unit string, t0, t1 time.Time) (io.ReadCloser, error)
}
