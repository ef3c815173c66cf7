package cmd

import (
	"fmt"
	"os"
	"strings"

	"github.com/logjuicer/logjuicer/internal/source"
)

// contentFromArg turns a CLI positional argument into a Content (spec §3):
// a URL ending in "/" is a remote directory to crawl, any other URL is a
// single remote file, and a local path is classified by stat'ing it. Zuul
// and Prow build references are out of this CLI's scope (spec §1); they
// are consumed only through the library-level source.Content API.
func contentFromArg(arg string) (source.Content, error) {
	if isRemote(arg) {
		if strings.HasSuffix(arg, "/") {
			return source.Content{Kind: source.KindDir, Location: arg}, nil
		}
		return source.Content{Kind: source.KindFile, Location: arg}, nil
	}

	info, err := os.Stat(arg)
	if err != nil {
		return source.Content{}, fmt.Errorf("cannot read %s: %w", arg, err)
	}
	if info.IsDir() {
		return source.Content{Kind: source.KindDir, Location: arg}, nil
	}
	return source.Content{Kind: source.KindFile, Location: arg}, nil
}

func isRemote(location string) bool {
	return strings.HasPrefix(location, "http://") || strings.HasPrefix(location, "https://")
}
