// Package source expands a Content reference — a local file or directory,
// or a CI build descriptor — into the concrete Sources the rest of the
// pipeline reads lines from, and groups them by IndexName (spec §4.4).
package source

import (
	"context"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/logjuicer/logjuicer/internal/apperrors"
	"github.com/logjuicer/logjuicer/internal/discovery"
	"github.com/logjuicer/logjuicer/internal/history"
	"github.com/logjuicer/logjuicer/internal/lineiter"
	"github.com/logjuicer/logjuicer/internal/transport"
)

// Kind discriminates the Content variant, per spec §3.
type Kind int

const (
	KindFile Kind = iota
	KindDir
	KindZuulBuild
	KindProwBuild
	KindLocalZuul
	KindJournalRange
)

func (k Kind) String() string {
	switch k {
	case KindFile:
		return "file"
	case KindDir:
		return "dir"
	case KindZuulBuild:
		return "zuul-build"
	case KindProwBuild:
		return "prow-build"
	case KindLocalZuul:
		return "local-zuul"
	case KindJournalRange:
		return "journal-range"
	default:
		return "unknown"
	}
}

// Content is a tagged variant over the kinds of thing LogJuicer can analyze
// or use as a baseline: a single file, a directory tree, a CI build (Zuul
// or Prow), a local checkout paired with a Zuul build for context, or a
// systemd journal time range.
type Content struct {
	Kind Kind

	// Location is a local path or a remote URL, meaningful for
	// KindFile/KindDir/KindLocalZuul.
	Location string

	Zuul    *discovery.ZuulBuild
	Prow    *discovery.ProwBuild
	Journal *JournalRange
}

// JournalRange names a systemd journal unit and time window.
type JournalRange struct {
	Unit string
	From time.Time
	To   time.Time
}

func (c Content) String() string {
	switch c.Kind {
	case KindZuulBuild:
		if c.Zuul != nil {
			return c.Zuul.URL
		}
	case KindProwBuild:
		if c.Prow != nil {
			return c.Prow.URL
		}
	case KindJournalRange:
		if c.Journal != nil {
			return c.Journal.Unit
		}
	}
	return c.Location
}

// Resolvers bundles the external collaborators Expand needs to turn CI
// build Content into concrete Sources; any of them may be nil if the
// corresponding Content kind is never used in a given run.
type Resolvers struct {
	Zuul      discovery.ZuulResolver
	Prow      discovery.ProwResolver
	Journal   discovery.JournalReader
	Transport transport.Transport
	Exclude   lineiter.ExcludeRules

	// History, when set, lets DiscoverBaselines short-circuit the
	// sibling directory scan for local/dir content by reusing the
	// source list recorded the last time this IndexName trained
	// cleanly (spec §4.4's "prior successful job" acceleration).
	History *history.History
}

func isRemote(location string) bool {
	return strings.HasPrefix(location, "http://") || strings.HasPrefix(location, "https://")
}

func localOpener(path string) lineiter.Opener {
	return func(ctx context.Context) (io.ReadCloser, error) {
		return os.Open(path) // #nosec G304 -- path comes from directory discovery under an operator-supplied root
	}
}

func remoteOpener(r Resolvers, url string) lineiter.Opener {
	return func(ctx context.Context) (io.ReadCloser, error) {
		if r.Transport == nil {
			return nil, &apperrors.ReadError{Source: url, Err: os.ErrInvalid}
		}
		return r.Transport.Get(ctx, url)
	}
}

// Expand turns a Content into the ordered list of Sources it resolves to,
// plus a second list of entries skipped by exclusion rules — kept around
// for diagnostics rather than silently vanishing.
func Expand(ctx context.Context, c Content, r Resolvers) (sources []lineiter.Source, excluded []lineiter.Source, err error) {
	switch c.Kind {
	case KindFile:
		if r.Exclude.Match(c.Location) {
			return nil, []lineiter.Source{fileSource(r, c.Location)}, nil
		}
		return []lineiter.Source{fileSource(r, c.Location)}, nil, nil

	case KindDir:
		return expandDir(ctx, c, r)

	case KindZuulBuild:
		if r.Zuul == nil || c.Zuul == nil {
			return nil, nil, &apperrors.DiscoveryError{Content: c.String(), Err: os.ErrInvalid}
		}
		urls, _, rerr := r.Zuul.Resolve(ctx, *c.Zuul)
		if rerr != nil {
			return nil, nil, &apperrors.DiscoveryError{Content: c.String(), Err: rerr}
		}
		return expandURLs(r, urls), nil, nil

	case KindProwBuild:
		if r.Prow == nil || c.Prow == nil {
			return nil, nil, &apperrors.DiscoveryError{Content: c.String(), Err: os.ErrInvalid}
		}
		urls, _, rerr := r.Prow.Resolve(ctx, *c.Prow)
		if rerr != nil {
			return nil, nil, &apperrors.DiscoveryError{Content: c.String(), Err: rerr}
		}
		return expandURLs(r, urls), nil, nil

	case KindLocalZuul:
		local, _, lerr := Expand(ctx, Content{Kind: KindDir, Location: c.Location}, r)
		if lerr != nil {
			return nil, nil, lerr
		}
		if c.Zuul != nil && r.Zuul != nil {
			urls, _, rerr := r.Zuul.Resolve(ctx, *c.Zuul)
			if rerr == nil {
				local = append(local, expandURLs(r, urls)...)
			}
		}
		return local, nil, nil

	case KindJournalRange:
		if r.Journal == nil || c.Journal == nil {
			return nil, nil, &apperrors.DiscoveryError{Content: c.String(), Err: os.ErrInvalid}
		}
		jr := *c.Journal
		name := "journal!" + jr.Unit
		return []lineiter.Source{{
			Name: name,
			Open: func(ctx context.Context) (io.ReadCloser, error) {
				return r.Journal.Range(ctx, jr.Unit, jr.From, jr.To)
			},
		}}, nil, nil

	default:
		return nil, nil, &apperrors.DiscoveryError{Content: c.String(), Err: os.ErrInvalid}
	}
}

func fileSource(r Resolvers, location string) lineiter.Source {
	if isRemote(location) {
		return lineiter.Source{Name: location, Open: remoteOpener(r, location)}
	}
	return lineiter.Source{Name: location, Open: localOpener(location)}
}

func expandURLs(r Resolvers, urls []string) []lineiter.Source {
	out := make([]lineiter.Source, 0, len(urls))
	for _, u := range urls {
		if r.Exclude.Match(u) {
			continue
		}
		out = append(out, fileSource(r, u))
	}
	return out
}

func expandDir(ctx context.Context, c Content, r Resolvers) ([]lineiter.Source, []lineiter.Source, error) {
	if isRemote(c.Location) {
		return expandRemoteDir(ctx, c.Location, r, 0)
	}

	var sources, excluded []lineiter.Source
	walkErr := filepath.WalkDir(c.Location, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil // best-effort: one unreadable entry doesn't abort the walk
		}
		if d.IsDir() {
			if r.Exclude.Match(p) && p != c.Location {
				return filepath.SkipDir
			}
			return nil
		}
		if r.Exclude.Match(p) {
			excluded = append(excluded, fileSource(r, p))
			return nil
		}
		sources = append(sources, fileSource(r, p))
		return nil
	})
	if walkErr != nil {
		return nil, nil, &apperrors.DiscoveryError{Content: c.Location, Err: walkErr}
	}
	sort.Slice(sources, func(i, j int) bool { return sources[i].Name < sources[j].Name })
	return sources, excluded, nil
}

const maxRemoteDirDepth = 6

func expandRemoteDir(ctx context.Context, url string, r Resolvers, depth int) ([]lineiter.Source, []lineiter.Source, error) {
	if r.Transport == nil {
		return nil, nil, &apperrors.DiscoveryError{Content: url, Err: os.ErrInvalid}
	}
	entries, err := r.Transport.ListDir(ctx, url)
	if err != nil {
		return nil, nil, &apperrors.DiscoveryError{Content: url, Err: err}
	}

	var sources, excluded []lineiter.Source
	for _, e := range entries {
		if strings.HasSuffix(e, "/") {
			if depth >= maxRemoteDirDepth {
				continue
			}
			sub, subExcluded, serr := expandRemoteDir(ctx, e, r, depth+1)
			if serr != nil {
				continue // a broken sub-listing doesn't abort sibling directories
			}
			sources = append(sources, sub...)
			excluded = append(excluded, subExcluded...)
			continue
		}
		if r.Exclude.Match(e) {
			excluded = append(excluded, fileSource(r, e))
			continue
		}
		sources = append(sources, fileSource(r, e))
	}
	return sources, excluded, nil
}

// GroupByIndexName buckets sources by IndexNameOf(source.Name), preserving
// each bucket's source-expansion order.
func GroupByIndexName(sources []lineiter.Source) map[string][]lineiter.Source {
	groups := make(map[string][]lineiter.Source)
	for _, s := range sources {
		key := IndexNameOf(s.Name)
		groups[key] = append(groups[key], s)
	}
	return groups
}
