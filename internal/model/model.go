// Package model persists a trained set of Indexes to disk as a single
// versioned envelope (spec §3, §5). The on-disk format is CBOR, schema
// evolving via the usual cbor field-tag rules; the version tag is bumped by
// hand whenever the tokenizer rules or the index's CSR layout change.
package model

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/fxamacker/cbor/v2"

	"github.com/logjuicer/logjuicer/internal/apperrors"
	"github.com/logjuicer/logjuicer/internal/index"
)

// CurrentVersion must be bumped whenever tokenizer rules or the Index's CSR
// layout change in a way that makes previously serialized models unusable.
const CurrentVersion uint32 = 1

// IndexBlob is an Index's CSR layout in serializable form.
type IndexBlob struct {
	Dim        uint32   `cbor:"dim"`
	RowCount   int      `cbor:"row_count"`
	RowOffsets []uint32 `cbor:"row_offsets"`
	Features   []uint32 `cbor:"features"`
}

// Model is the versioned envelope persisted to and loaded from disk.
type Model struct {
	Version    uint32               `cbor:"version"`
	CreatedAt  time.Time            `cbor:"created_at"`
	Baselines  []string             `cbor:"baselines"`
	IndexBlobs map[string]IndexBlob `cbor:"indexes"`
}

// FromIndexes snapshots a trained set of indexes, keyed by IndexName, into a
// persistable Model.
func FromIndexes(baselines []string, indexes map[string]*index.Index) Model {
	blobs := make(map[string]IndexBlob, len(indexes))
	for name, ix := range indexes {
		blobs[name] = IndexBlob{
			Dim:        ix.Dim(),
			RowCount:   ix.RowCount(),
			RowOffsets: ix.RowOffsets(),
			Features:   ix.Features(),
		}
	}
	return Model{
		Version:    CurrentVersion,
		CreatedAt:  time.Now(),
		Baselines:  baselines,
		IndexBlobs: blobs,
	}
}

// Indexes reconstructs live *index.Index values from the blobs, ready for
// querying (or further training) immediately.
func (m Model) Indexes() map[string]*index.Index {
	out := make(map[string]*index.Index, len(m.IndexBlobs))
	for name, b := range m.IndexBlobs {
		out[name] = index.FromBlob(b.Dim, b.RowOffsets, b.Features)
	}
	return out
}

// Save atomically writes the model to path: encode, write to a sibling temp
// file, fsync, then rename — so a crash mid-write never leaves a corrupt
// model in place, mirroring how LogJuicer persists every other piece of
// durable state.
func Save(path string, m Model) error {
	data, err := cbor.Marshal(m)
	if err != nil {
		return fmt.Errorf("encode model: %w", err)
	}

	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, "model-*.tmp")
	if err != nil {
		return fmt.Errorf("create temp model file in %s: %w", dir, err)
	}
	tmpPath := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpPath)
		return fmt.Errorf("write temp model file %s: %w", tmpPath, err)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpPath)
		return fmt.Errorf("sync temp model file %s: %w", tmpPath, err)
	}
	_ = tmp.Close()

	if err := os.Rename(tmpPath, path); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("rename temp model file %s to %s: %w", tmpPath, path, err)
	}
	return nil
}

// Load reads and decodes a Model from path, rejecting one whose version
// doesn't match CurrentVersion with a ModelCompatibilityError (spec §7):
// the tokenizer/index layout it was trained under may no longer match this
// build's.
func Load(path string) (Model, error) {
	data, err := os.ReadFile(path) // #nosec G304 -- path is operator-supplied via CLI flag/config, not web input
	if err != nil {
		return Model{}, fmt.Errorf("read model file %s: %w", path, err)
	}
	var m Model
	if err := cbor.Unmarshal(data, &m); err != nil {
		return Model{}, fmt.Errorf("decode model file %s: %w", path, err)
	}
	if m.Version != CurrentVersion {
		return Model{}, &apperrors.ModelCompatibilityError{
			Path:         path,
			WantVersion:  CurrentVersion,
			FoundVersion: m.Version,
		}
	}
	return m, nil
}
