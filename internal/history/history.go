// Package history keeps a small append-and-prune record of past training
// runs, one entry per IndexName, persisted as JSON. It is adapted from two
// teacher pieces: the append-and-prune-by-timestamp shape of
// internal/knowledge/service.go, and the atomic temp-file-then-rename save
// discipline of internal/state/state.go. LogJuicer uses it to let
// `logjuicer cleanup` find stale models and to let local/dir baseline
// discovery (spec §4.4) remember which sibling files most recently trained
// cleanly.
package history

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// Entry records one IndexName's most recent successful training.
type Entry struct {
	IndexName  string    `json:"index_name"`
	TrainedAt  time.Time `json:"trained_at"`
	RowCount   int       `json:"row_count"`
	SourceCount int      `json:"source_count"`
	Sources    []string  `json:"sources"`
}

// History is the full persisted record: one Entry per IndexName, keyed by
// name for O(1) lookup and update.
type History struct {
	mu       sync.RWMutex
	filePath string
	Entries  map[string]Entry `json:"entries"`
}

// Load reads history from path, returning an empty History if the file
// does not yet exist.
func Load(path string) (*History, error) {
	h := &History{filePath: path, Entries: make(map[string]Entry)}

	data, err := os.ReadFile(path) // #nosec G304 -- path is operator-configured, not user input
	if err != nil {
		if os.IsNotExist(err) {
			return h, nil
		}
		return nil, fmt.Errorf("read history file %s: %w", path, err)
	}
	if err := json.Unmarshal(data, h); err != nil {
		return nil, fmt.Errorf("parse history file %s: %w", path, err)
	}
	if h.Entries == nil {
		h.Entries = make(map[string]Entry)
	}
	return h, nil
}

// Record appends (or replaces) the entry for e.IndexName.
func (h *History) Record(e Entry) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.Entries[e.IndexName] = e
}

// Get returns the recorded entry for name, if any.
func (h *History) Get(name string) (Entry, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	e, ok := h.Entries[name]
	return e, ok
}

// Prune removes entries older than retention, returning how many were
// dropped.
func (h *History) Prune(retention time.Duration) int {
	h.mu.Lock()
	defer h.mu.Unlock()

	cutoff := time.Now().Add(-retention)
	n := 0
	for name, e := range h.Entries {
		if e.TrainedAt.Before(cutoff) {
			delete(h.Entries, name)
			n++
		}
	}
	return n
}

// Names returns every IndexName currently recorded, for `logjuicer
// cleanup`'s inventory listing.
func (h *History) Names() []string {
	h.mu.RLock()
	defer h.mu.RUnlock()
	out := make([]string, 0, len(h.Entries))
	for name := range h.Entries {
		out = append(out, name)
	}
	return out
}

// Save atomically persists history to its file path: encode, write to a
// sibling temp file, fsync, rename, mirroring the teacher's state-file save
// discipline so a crash mid-write never corrupts the history.
func (h *History) Save() error {
	h.mu.RLock()
	data, err := json.MarshalIndent(h, "", "  ")
	h.mu.RUnlock()
	if err != nil {
		return fmt.Errorf("marshal history for %s: %w", h.filePath, err)
	}

	dir := filepath.Dir(h.filePath)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return fmt.Errorf("create history dir %s: %w", dir, err)
	}
	tmp, err := os.CreateTemp(dir, "history-*.tmp")
	if err != nil {
		return fmt.Errorf("create temp history file in %s: %w", dir, err)
	}
	tmpPath := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpPath)
		return fmt.Errorf("write temp history file %s: %w", tmpPath, err)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpPath)
		return fmt.Errorf("sync temp history file %s: %w", tmpPath, err)
	}
	_ = tmp.Close()

	if err := os.Rename(tmpPath, h.filePath); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("rename temp history file %s to %s: %w", tmpPath, h.filePath, err)
	}
	return nil
}
