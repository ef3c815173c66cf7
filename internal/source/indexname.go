package source

import (
	"path"
	"regexp"
	"strings"
)

var (
	compressionSuffix = regexp.MustCompile(`\.(gz|bz2|xz|zip)$`)
	rotationNumeric   = regexp.MustCompile(`\.\d+$`)
	rotationDate      = regexp.MustCompile(`[-_]\d{4}-?\d{2}-?\d{2}$`)
	trailingRandom    = regexp.MustCompile(`-[a-z0-9]{6,10}$`)
	containerPrefix   = regexp.MustCompile(`^(k8s_|docker[_-]|container[_-])`)
)

// IndexNameOf collapses rotated and randomized filename variants of the
// same logical log file down to one grouping key, per spec §4.4: lowercase
// basename, strip compression/rotation/random-suffix noise, isolate the
// service name out of dotted/underscored container naming. It is total and
// deterministic — every input produces some non-empty key.
func IndexNameOf(p string) string {
	base := strings.ToLower(path.Base(p))

	// Repeatedly strip compression and numeric rotation suffixes: a name
	// like "app.log.1.gz" sheds ".gz" and then ".1" within a single pass.
	for {
		trimmed := compressionSuffix.ReplaceAllString(base, "")
		trimmed = rotationNumeric.ReplaceAllString(trimmed, "")
		if trimmed == base {
			break
		}
		base = trimmed
	}
	base = rotationDate.ReplaceAllString(base, "")

	// Repeatedly strip known trailing extensions, so a double extension
	// like "app.log.txt" (left over after ".gz" was peeled off above)
	// collapses down to its service name rather than stopping at the
	// first dot.
	for {
		trimmed := base
		for _, ext := range []string{".log", ".txt", ".out", ".err"} {
			trimmed = strings.TrimSuffix(trimmed, ext)
		}
		if trimmed == base {
			break
		}
		base = trimmed
	}

	base = trailingRandom.ReplaceAllString(base, "")
	base = containerPrefix.ReplaceAllString(base, "")
	base = strings.Trim(base, "-_. ")

	if base == "" {
		return "unknown"
	}
	return base
}
