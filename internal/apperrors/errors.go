// Package apperrors provides the typed error kinds used across LogJuicer.
// Each kind carries the context needed to report a useful diagnostic without
// relying on string matching against error messages.
package apperrors

import "fmt"

// ReadError means a Source could not be opened or read. It is recovered
// locally by the pipeline and recorded per-source; it never aborts a run.
type ReadError struct {
	Source string // opaque Source location (path or URL)
	Err    error
}

func (e *ReadError) Error() string {
	return fmt.Sprintf("read error on %s: %v", e.Source, e.Err)
}

func (e *ReadError) Unwrap() error { return e.Err }

// DiscoveryError means baseline discovery returned zero usable items. It is
// fatal for the run.
type DiscoveryError struct {
	Content string // human-readable description of the Content being expanded
	Err     error
}

func (e *DiscoveryError) Error() string {
	return fmt.Sprintf("no baselines discovered for %s: %v", e.Content, e.Err)
}

func (e *DiscoveryError) Unwrap() error { return e.Err }

// TrainingError means index training for one IndexName failed. All target
// sources of that IndexName are downgraded to unknown files; it is not
// fatal for the overall run.
type TrainingError struct {
	IndexName string
	Err       error
}

func (e *TrainingError) Error() string {
	return fmt.Sprintf("training failed for index %q: %v", e.IndexName, e.Err)
}

func (e *TrainingError) Unwrap() error { return e.Err }

// ConfigError means the configuration or one of its regexes is malformed.
// Fatal, surfaced before any I/O is attempted.
type ConfigError struct {
	Path string // config file path, or "" for defaults/environment
	Key  string // the offending key, if known
	Err  error
}

func (e *ConfigError) Error() string {
	if e.Key != "" {
		return fmt.Sprintf("config error in %s (key: %s): %v", e.Path, e.Key, e.Err)
	}
	return fmt.Sprintf("config error in %s: %v", e.Path, e.Err)
}

func (e *ConfigError) Unwrap() error { return e.Err }

// ModelCompatibilityError means a serialized Model's version does not match
// the running tokenizer/index layout. Fatal when loading.
type ModelCompatibilityError struct {
	Path         string
	WantVersion  uint32
	FoundVersion uint32
}

func (e *ModelCompatibilityError) Error() string {
	return fmt.Sprintf("model %s has incompatible version %d (expected %d); retrain with the current build",
		e.Path, e.FoundVersion, e.WantVersion)
}

// CancellationError means the run was interrupted cooperatively. Fatal; no
// report is emitted.
type CancellationError struct {
	Stage string // where cancellation was observed, e.g. "training", "query"
}

func (e *CancellationError) Error() string {
	return fmt.Sprintf("run cancelled during %s", e.Stage)
}
