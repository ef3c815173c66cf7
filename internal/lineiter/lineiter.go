// Package lineiter streams raw log lines out of a source one at a time,
// transparently walking into gzip compression and tar (including nested
// tar-in-tar) containers. It never loads a whole file into memory: each
// archive level is wrapped in another streaming reader, so a tar.gz of
// tar.gz entries is consumed lazily all the way down.
package lineiter

import (
	"archive/tar"
	"bufio"
	"bytes"
	"context"
	"errors"
	"io"
	"path"
	"strings"

	"github.com/klauspost/compress/gzip"

	"github.com/logjuicer/logjuicer/internal/apperrors"
)

// DefaultHardCap is the maximum logical line length kept in memory before
// the soft-split/discard behavior in splitLongLine kicks in (spec §4.1/§3).
const DefaultHardCap = 4096

// drainLimit bounds how much of a single delimiter-less run gets buffered
// before lineiter gives up accumulating and starts discarding bytes outright;
// this keeps a file of embedded binary noise from growing memory unbounded.
const drainLimit = 16 * DefaultHardCap

// MaxArchiveDepth is the deepest level of nested tar containers walked
// before inner archives are treated as opaque (non-expanded) entries. Gzip
// layers are always decompressed and do not count toward this depth.
const MaxArchiveDepth = 4

// Opener lazily produces the byte stream for a Source. Local files use
// os.Open; remote sources plug in internal/transport's HTTP GET.
type Opener func(ctx context.Context) (io.ReadCloser, error)

// Source names one logical byte stream to read lines from. Name is the
// user-facing identity reported in anomaly output: a local path, a remote
// URL, or, for content nested inside an archive, "outer!inner" — the
// convention spec §3 uses so a reader can tell a line came from
// build.tar.gz!logs/app.log without ambiguity.
type Source struct {
	Name string
	Open Opener
}

func (s Source) String() string { return s.Name }

func nestedName(outer, inner string) string {
	return outer + "!" + inner
}

// Line is one logical line pulled from a Source.
type Line struct {
	Source Source
	Bytes  []byte
	Offset int64 // byte offset of the line's start within its Source
	Number int   // 1-based line number within its Source
}

// LineIter pulls lines out of a Source, transparently descending into any
// gzip/tar layers it finds. Callers drive it with Next until it reports
// done; a failed read is surfaced once via Err and does not panic or abort
// sibling sources the caller may still want to visit.
type LineIter struct {
	ctx      context.Context
	exclude  ExcludeRules
	hardCap  int
	maxDepth int

	stack []*frame
	err   error
}

// frame is one active stream on the traversal stack: either a line scanner
// over a leaf byte stream, or a tar reader yielding further entries/frames.
type frame struct {
	name string

	// leaf fields, set when this frame scans lines directly.
	br         *bufio.Reader
	closer     io.Closer
	offset     int64
	lineNo     int
	pending    [][]byte
	pendingOff int64

	// tar fields, set when this frame walks a tar stream.
	tr    *tar.Reader
	depth int
}

// Open begins iterating src. It sniffs the first bytes to decide whether to
// treat the stream as plain text, gzip, or tar, per spec §4.1. Nested
// archives are walked up to MaxArchiveDepth levels deep.
func Open(ctx context.Context, src Source, exclude ExcludeRules) (*LineIter, error) {
	return OpenDepth(ctx, src, exclude, MaxArchiveDepth)
}

// OpenDepth is Open with the nested-archive depth cap overridden, wiring
// spec §9's "expose it as a configuration knob" resolution: callers that
// read a configured pipeline.nested_tar_depth pass it here instead of
// relying on the package default. maxDepth <= 0 falls back to
// MaxArchiveDepth.
func OpenDepth(ctx context.Context, src Source, exclude ExcludeRules, maxDepth int) (*LineIter, error) {
	if maxDepth <= 0 {
		maxDepth = MaxArchiveDepth
	}
	li := &LineIter{ctx: ctx, exclude: exclude, hardCap: DefaultHardCap, maxDepth: maxDepth}
	rc, err := src.Open(ctx)
	if err != nil {
		return nil, &apperrors.ReadError{Source: src.Name, Err: err}
	}
	if err := li.pushStream(src.Name, rc, 0); err != nil {
		return nil, err
	}
	return li, nil
}

// pushStream sniffs rc and pushes the appropriate frame (plain, gzip, or
// tar) for it onto the stack.
func (li *LineIter) pushStream(name string, rc io.ReadCloser, depth int) error {
	br := bufio.NewReaderSize(rc, 64*1024)
	peek, _ := br.Peek(262)

	switch {
	case looksGzip(peek):
		gz, err := gzip.NewReader(br)
		if err != nil {
			_ = rc.Close()
			return &apperrors.ReadError{Source: name, Err: err}
		}
		return li.pushStream(name, readCloser{gz, rc}, depth)

	case looksTar(peek) && depth < li.maxDepth:
		li.stack = append(li.stack, &frame{name: name, tr: tar.NewReader(br), depth: depth, closer: rc})
		return nil

	default:
		li.stack = append(li.stack, &frame{name: name, br: br, closer: rc})
		return nil
	}
}

func looksGzip(peek []byte) bool {
	return len(peek) >= 2 && peek[0] == 0x1f && peek[1] == 0x8b
}

// looksTar checks the ustar magic at offset 257. A short peek (final tar
// entries, tiny test fixtures) means "not enough to tell" — treated as not
// a tar rather than erroring.
func looksTar(peek []byte) bool {
	if len(peek) < 257+5 {
		return false
	}
	return bytes.Equal(peek[257:262], []byte("ustar"))
}

type readCloser struct {
	io.Reader
	underlying io.Closer
}

func (r readCloser) Close() error { return r.underlying.Close() }

// Next returns the next line across the whole traversal, descending into
// and popping out of archive frames as needed. ok is false once every
// source in the stack is exhausted.
func (li *LineIter) Next() (Line, bool, error) {
	for len(li.stack) > 0 {
		top := li.stack[len(li.stack)-1]

		if top.tr != nil {
			line, ok, err := li.nextFromTar(top)
			if err != nil {
				li.stack = li.stack[:len(li.stack)-1]
				return Line{}, false, err
			}
			if ok {
				return line, true, nil
			}
			_ = top.closer.Close()
			li.stack = li.stack[:len(li.stack)-1]
			continue
		}

		line, ok, err := li.nextFromLeaf(top)
		if err != nil {
			_ = top.closer.Close()
			li.stack = li.stack[:len(li.stack)-1]
			return Line{}, false, &apperrors.ReadError{Source: top.name, Err: err}
		}
		if ok {
			return line, true, nil
		}
		_ = top.closer.Close()
		li.stack = li.stack[:len(li.stack)-1]
	}
	return Line{}, false, nil
}

// nextFromTar advances the tar frame's entry cursor until it finds a
// regular, non-excluded file, and pushes a new frame (leaf or nested
// archive) for it. It returns ok=false once the tar is exhausted, letting
// Next pop back to whatever enclosing frame (if any) contains it.
func (li *LineIter) nextFromTar(top *frame) (Line, bool, error) {
	for {
		hdr, err := top.tr.Next()
		if errors.Is(err, io.EOF) {
			return Line{}, false, nil
		}
		if err != nil {
			return Line{}, false, &apperrors.ReadError{Source: top.name, Err: err}
		}
		if hdr.Typeflag != tar.TypeReg {
			continue
		}
		entryName := nestedName(top.name, hdr.Name)
		if li.exclude.Match(hdr.Name) || li.exclude.Match(path.Base(hdr.Name)) {
			continue
		}
		// An entry under an excluded directory (such as ".hidden/x.log") is
		// skipped too, as a directory walk prunes that directory.
		underExcluded := false
		for dir := path.Dir(hdr.Name); dir != "." && dir != "/"; dir = path.Dir(dir) {
			if li.exclude.Match(dir) {
				underExcluded = true
				break
			}
		}
		if underExcluded {
			continue
		}
		if err := li.pushStream(entryName, io.NopCloser(top.tr), top.depth+1); err != nil {
			return Line{}, false, err
		}
		return li.Next()
	}
}

// nextFromLeaf pulls the next line out of a leaf frame, applying the
// hard-cap soft-split/discard rule as it goes.
func (li *LineIter) nextFromLeaf(top *frame) (Line, bool, error) {
	for {
		if len(top.pending) > 0 {
			seg := top.pending[0]
			top.pending = top.pending[1:]
			off := top.pendingOff
			top.pendingOff += int64(len(seg)) + 1
			top.lineNo++
			return Line{Source: Source{Name: top.name}, Bytes: seg, Offset: off, Number: top.lineNo}, true, nil
		}

		raw, eof, err := readLogicalLine(top.br)
		if err != nil {
			return Line{}, false, err
		}
		if raw == nil && eof {
			return Line{}, false, nil
		}

		base := top.offset
		top.offset += int64(len(raw)) + 1

		if len(raw) == 0 {
			// readLogicalLine hit a real line boundary with nothing
			// before it — a genuinely blank line, not the hard-cap
			// splitter collapsing an overlong line away. It must still
			// advance Number, or every later line's Number drifts from
			// its physical position (spec §3).
			top.lineNo++
			return Line{Source: Source{Name: top.name}, Bytes: raw, Offset: base, Number: top.lineNo}, true, nil
		}

		segs := splitLongLine(raw, li.hardCap)
		if len(segs) == 0 {
			if eof {
				return Line{}, false, nil
			}
			continue
		}
		top.pending = segs
		top.pendingOff = base
	}
}

// readLogicalLine reads up to the next \n, \r\n, or standalone \r boundary.
// A standalone \r (not followed by \n) is itself a boundary, per spec §4.1 —
// needed for ansible output that joins retries onto one line with bare CRs.
func readLogicalLine(br *bufio.Reader) (line []byte, eof bool, err error) {
	var buf []byte
	draining := false
	for {
		b, rerr := br.ReadByte()
		if errors.Is(rerr, io.EOF) {
			if len(buf) > 0 {
				return buf, true, nil
			}
			return nil, true, nil
		}
		if rerr != nil {
			return nil, false, rerr
		}
		if b == '\n' {
			return buf, false, nil
		}
		if b == '\r' {
			if next, _ := br.Peek(1); len(next) > 0 && next[0] == '\n' {
				_, _ = br.ReadByte()
			}
			return buf, false, nil
		}
		if draining {
			continue
		}
		buf = append(buf, b)
		if len(buf) >= drainLimit {
			draining = true
		}
	}
}

// splitLongLine breaks a raw line into one or more segments no longer than
// hardCap, splitting at the last whitespace before the cap when one exists.
// A capped run with no whitespace at all is discarded outright rather than
// truncated mid-token, per the reconciliation of spec §3 and §4.1's
// line-length rules documented in SPEC_FULL.md.
func splitLongLine(line []byte, hardCap int) [][]byte {
	if len(line) <= hardCap {
		if len(line) == 0 {
			return nil
		}
		return [][]byte{line}
	}
	var segments [][]byte
	rest := line
	for len(rest) > hardCap {
		idx := lastWhitespaceIndex(rest[:hardCap])
		if idx < 0 {
			next := bytes.IndexAny(rest, " \t")
			if next < 0 {
				rest = nil
				break
			}
			rest = rest[next+1:]
			continue
		}
		segments = append(segments, rest[:idx])
		rest = rest[idx+1:]
	}
	if len(rest) > 0 {
		segments = append(segments, rest)
	}
	return segments
}

func lastWhitespaceIndex(b []byte) int {
	return strings.LastIndexAny(string(b), " \t")
}
