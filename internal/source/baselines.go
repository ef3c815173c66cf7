package source

import (
	"context"
	"os"
	"path/filepath"
	"regexp"
	"sort"

	"github.com/logjuicer/logjuicer/internal/apperrors"
	"github.com/logjuicer/logjuicer/internal/history"
)

// historySiblings looks up the recorded training entry for targetPath's
// IndexName and, if one exists, returns the sources it trained on that
// still exist on disk (excluding targetPath itself) as ready-made baseline
// Content — short-circuiting the directory scan below. A nil h, or no
// recorded entry, yields no results so the caller falls back to a fresh
// glob.
func historySiblings(h *history.History, targetPath string, kind Kind) []Content {
	if h == nil {
		return nil
	}
	e, ok := h.Get(IndexNameOf(targetPath))
	if !ok {
		return nil
	}
	var out []Content
	for _, src := range e.Sources {
		if src == targetPath {
			continue
		}
		if _, err := os.Stat(src); err != nil {
			continue
		}
		out = append(out, Content{Kind: kind, Location: src})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Location < out[j].Location })
	return out
}

var dirRotationSuffix = regexp.MustCompile(`[-_]\d{4}-?\d{2}-?\d{2}([-_T]\d{2}-?\d{2}-?\d{2})?$`)

// DiscoverBaselines finds candidate baseline Content for target, per spec
// §4.4: sibling rotated files/directories for local inputs, or the build
// discovery collaborator's "prior successful build of the same job" for CI
// content. For local/dir content it first checks r.History for a recorded
// prior training entry and reuses its sources, falling back to a fresh
// sibling scan when no entry is recorded. It returns a DiscoveryError, per
// spec §7, if none are found.
func DiscoverBaselines(ctx context.Context, target Content, r Resolvers, k int) ([]Content, error) {
	switch target.Kind {
	case KindFile:
		if found := historySiblings(r.History, target.Location, KindFile); len(found) > 0 {
			return found, nil
		}
		found, err := siblingFiles(target.Location)
		if err != nil {
			return nil, &apperrors.DiscoveryError{Content: target.String(), Err: err}
		}
		if len(found) == 0 {
			return nil, &apperrors.DiscoveryError{Content: target.String(), Err: os.ErrNotExist}
		}
		return found, nil

	case KindDir:
		if found := historySiblings(r.History, target.Location, KindDir); len(found) > 0 {
			return found, nil
		}
		found, err := siblingDirs(target.Location)
		if err != nil {
			return nil, &apperrors.DiscoveryError{Content: target.String(), Err: err}
		}
		if len(found) == 0 {
			return nil, &apperrors.DiscoveryError{Content: target.String(), Err: os.ErrNotExist}
		}
		return found, nil

	case KindZuulBuild:
		if r.Zuul == nil || target.Zuul == nil {
			return nil, &apperrors.DiscoveryError{Content: target.String(), Err: os.ErrInvalid}
		}
		builds, err := r.Zuul.FindBaselines(ctx, *target.Zuul, k)
		if err != nil {
			return nil, &apperrors.DiscoveryError{Content: target.String(), Err: err}
		}
		if len(builds) == 0 {
			return nil, &apperrors.DiscoveryError{Content: target.String(), Err: os.ErrNotExist}
		}
		out := make([]Content, len(builds))
		for i, b := range builds {
			b := b
			out[i] = Content{Kind: KindZuulBuild, Zuul: &b}
		}
		return out, nil

	case KindProwBuild:
		if r.Prow == nil || target.Prow == nil {
			return nil, &apperrors.DiscoveryError{Content: target.String(), Err: os.ErrInvalid}
		}
		builds, err := r.Prow.FindBaselines(ctx, *target.Prow, k)
		if err != nil {
			return nil, &apperrors.DiscoveryError{Content: target.String(), Err: err}
		}
		if len(builds) == 0 {
			return nil, &apperrors.DiscoveryError{Content: target.String(), Err: os.ErrNotExist}
		}
		out := make([]Content, len(builds))
		for i, b := range builds {
			b := b
			out[i] = Content{Kind: KindProwBuild, Prow: &b}
		}
		return out, nil

	default:
		return nil, &apperrors.DiscoveryError{Content: target.String(), Err: os.ErrInvalid}
	}
}

// siblingFiles returns every file in target's directory sharing its
// IndexName, excluding target itself — rotated copies like "audit.log.1"
// or "audit.log-2024-01-02".
func siblingFiles(targetPath string) ([]Content, error) {
	dir := filepath.Dir(targetPath)
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	want := IndexNameOf(targetPath)
	var out []Content
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		full := filepath.Join(dir, e.Name())
		if full == targetPath {
			continue
		}
		if IndexNameOf(full) == want {
			out = append(out, Content{Kind: KindFile, Location: full})
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Location < out[j].Location })
	return out, nil
}

// siblingDirs returns sibling directories whose name matches target's own
// name once a trailing date/time rotation suffix is stripped from both —
// e.g. "run-2024-01-02" and "run-2024-01-03" are siblings of each other.
func siblingDirs(targetPath string) ([]Content, error) {
	parent := filepath.Dir(targetPath)
	entries, err := os.ReadDir(parent)
	if err != nil {
		return nil, err
	}
	targetBase := filepath.Base(filepath.Clean(targetPath))
	want := dirRotationSuffix.ReplaceAllString(targetBase, "")
	var out []Content
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		if e.Name() == targetBase {
			continue
		}
		if dirRotationSuffix.ReplaceAllString(e.Name(), "") == want {
			out = append(out, Content{Kind: KindDir, Location: filepath.Join(parent, e.Name())})
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Location < out[j].Location })
	return out, nil
}
