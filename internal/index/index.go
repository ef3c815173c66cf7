// Package index implements the sparse, hashed-feature nearest-neighbor
// index used to score how far a tokenized log line sits from a baseline
// corpus. Rows are binary feature vectors built via the hashing trick and
// stored contiguously in a CSR-like layout: one flat []uint32 feature
// buffer plus a row-offset table.
package index

import (
	"hash/fnv"
	"math"
	"sort"
)

// Default and bounds for the feature dimension F, per spec §4.3.
const (
	MinDim     = 1 << 14
	MaxDim     = 1 << 18
	DefaultDim = 1 << 16
)

// Index stores a deduplicated training corpus as hashed binary feature
// rows and answers nearest-neighbor cosine-distance queries against it.
// It is append-only during training and safe for unsynchronized concurrent
// reads (Distance, RowCount, ByteSize) once training has stopped — callers
// are responsible for not calling Add concurrently with Distance, matching
// the write-phase-then-query-phase discipline described in spec §5.
type Index struct {
	dim uint32

	// rowOffsets has len(rows)+1 entries; row i occupies
	// features[rowOffsets[i]:rowOffsets[i+1]], sorted ascending, deduped
	// within the row.
	rowOffsets []uint32
	features   []uint32

	// postings maps a feature index to the row ids containing it,
	// accelerating Distance by limiting the candidate set to rows sharing
	// at least one feature with the query, while still performing a full,
	// exact linear scan over those candidates (no approximation).
	postings map[uint32][]uint32

	// seen deduplicates rows bytewise on their sorted feature-index vector,
	// preserving first-occurrence order: once a vector has been stored, an
	// identical later vector is discarded regardless of training order.
	seen map[string]uint32
}

// New creates an empty Index with feature dimension dim, clamped to
// [MinDim, MaxDim].
func New(dim uint32) *Index {
	if dim < MinDim {
		dim = MinDim
	}
	if dim > MaxDim {
		dim = MaxDim
	}
	return &Index{
		dim:        dim,
		rowOffsets: []uint32{0},
		postings:   make(map[uint32][]uint32),
		seen:       make(map[string]uint32),
	}
}

// Dim returns the index's feature dimension F.
func (ix *Index) Dim() uint32 { return ix.dim }

// hashToken maps a token to a feature index in [0, dim) via a 64-bit FNV-1a
// hash modulo the feature dimension.
func (ix *Index) hashToken(tok string) uint32 {
	h := fnv.New64a()
	_, _ = h.Write([]byte(tok)) // hash.Hash64.Write never errors
	return uint32(h.Sum64() % uint64(ix.dim))
}

// featurize hashes tokens into a sorted, deduplicated slice of feature
// indices — the binary row vector in sparse form.
func (ix *Index) featurize(tokens []string) []uint32 {
	if len(tokens) == 0 {
		return nil
	}
	set := make(map[uint32]struct{}, len(tokens))
	for _, t := range tokens {
		set[ix.hashToken(t)] = struct{}{}
	}
	row := make([]uint32, 0, len(set))
	for f := range set {
		row = append(row, f)
	}
	sort.Slice(row, func(i, j int) bool { return row[i] < row[j] })
	return row
}

func rowKey(row []uint32) string {
	b := make([]byte, len(row)*4)
	for i, f := range row {
		b[4*i] = byte(f)
		b[4*i+1] = byte(f >> 8)
		b[4*i+2] = byte(f >> 16)
		b[4*i+3] = byte(f >> 24)
	}
	return string(b)
}

// Add trains the index on a single tokenized line. An empty token sequence
// is discarded (never trained, per spec §3). Returns true if a new,
// previously-unseen row was appended.
func (ix *Index) Add(tokens []string) bool {
	row := ix.featurize(tokens)
	if len(row) == 0 {
		return false
	}
	key := rowKey(row)
	if _, dup := ix.seen[key]; dup {
		return false
	}

	rowID := uint32(len(ix.rowOffsets) - 1)
	ix.seen[key] = rowID
	ix.features = append(ix.features, row...)
	ix.rowOffsets = append(ix.rowOffsets, uint32(len(ix.features)))
	for _, f := range row {
		ix.postings[f] = append(ix.postings[f], rowID)
	}
	return true
}

func (ix *Index) row(id uint32) []uint32 {
	return ix.features[ix.rowOffsets[id]:ix.rowOffsets[id+1]]
}

// Distance returns 1 minus the cosine similarity between tokens and the
// closest stored row, or 1.0 if the index holds no rows. An empty token
// sequence is never anomalous and always returns 0.0, per spec §4.3's
// boundary cases.
func (ix *Index) Distance(tokens []string) float32 {
	query := ix.featurize(tokens)
	if len(query) == 0 {
		return 0.0
	}
	if ix.RowCount() == 0 {
		return 1.0
	}

	candidates := ix.candidateRows(query)
	if len(candidates) == 0 {
		return 1.0
	}

	bestSim := float32(-1)
	for _, rowID := range candidates {
		sim := cosine(query, ix.row(rowID))
		if sim > bestSim {
			bestSim = sim
		}
		if bestSim >= 1.0 {
			break
		}
	}
	if bestSim < 0 {
		bestSim = 0
	}
	return 1.0 - bestSim
}

// candidateRows gathers, in ascending row-id order (so ties are broken by
// lowest row id), every row sharing at least one feature with query.
func (ix *Index) candidateRows(query []uint32) []uint32 {
	seen := make(map[uint32]struct{})
	var out []uint32
	for _, f := range query {
		for _, rowID := range ix.postings[f] {
			if _, ok := seen[rowID]; ok {
				continue
			}
			seen[rowID] = struct{}{}
			out = append(out, rowID)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// cosine computes |A∩B| / sqrt(|A|*|B|) between two sorted feature-index
// slices.
func cosine(a, b []uint32) float32 {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	inter := 0
	i, j := 0, 0
	for i < len(a) && j < len(b) {
		switch {
		case a[i] == b[j]:
			inter++
			i++
			j++
		case a[i] < b[j]:
			i++
		default:
			j++
		}
	}
	if inter == 0 {
		return 0
	}
	return float32(inter) / float32(math.Sqrt(float64(len(a))*float64(len(b))))
}

// RowCount returns the number of deduplicated rows stored.
func (ix *Index) RowCount() int {
	return len(ix.rowOffsets) - 1
}

// ByteSize estimates the in-memory size of the index's row storage.
func (ix *Index) ByteSize() int64 {
	return int64(len(ix.features))*4 + int64(len(ix.rowOffsets))*4
}

// RowOffsets and Features expose the CSR layout for serialization by the
// model package; the returned slices must not be mutated by the caller.
func (ix *Index) RowOffsets() []uint32 { return ix.rowOffsets }
func (ix *Index) Features() []uint32   { return ix.features }

// FromBlob reconstructs an Index from a previously serialized CSR layout,
// rebuilding the posting list and dedup set needed to keep Add and Distance
// consistent if training resumes against a loaded index.
func FromBlob(dim uint32, rowOffsets, features []uint32) *Index {
	ix := New(dim)
	ix.rowOffsets = append([]uint32{0}, rowOffsets[1:]...)
	ix.features = append([]uint32(nil), features...)
	for rowID := uint32(0); rowID < uint32(len(ix.rowOffsets)-1); rowID++ {
		row := ix.row(rowID)
		ix.seen[rowKey(row)] = rowID
		for _, f := range row {
			ix.postings[f] = append(ix.postings[f], rowID)
		}
	}
	return ix
}
