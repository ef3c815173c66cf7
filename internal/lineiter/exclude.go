package lineiter

import (
	"path"
	"regexp"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
)

var coredumpPattern = regexp.MustCompile(`^core\.\d+(\..*)?$|^core$`)

// DefaultExcluded reports whether path matches one of the built-in ignore
// patterns from spec §4.1: hidden files, /proc, /sys, /var/lib/selinux,
// .jar archives, and systemd coredumps.
func DefaultExcluded(p string) bool {
	base := path.Base(p)
	if strings.HasPrefix(base, ".") {
		return true
	}
	if strings.HasPrefix(p, "/proc/") || p == "/proc" {
		return true
	}
	if strings.HasPrefix(p, "/sys/") || p == "/sys" {
		return true
	}
	if strings.HasPrefix(p, "/var/lib/selinux/") {
		return true
	}
	if strings.HasSuffix(base, ".jar") {
		return true
	}
	if coredumpPattern.MatchString(base) {
		return true
	}
	return false
}

// ExcludeRules adds user-configured exclusion globs (doublestar syntax, so
// "**" matches across path separators) on top of DefaultExcluded.
type ExcludeRules struct {
	DefaultExcludesOn bool
	Globs             []string
}

// Match reports whether p should be skipped.
func (r ExcludeRules) Match(p string) bool {
	if r.DefaultExcludesOn && DefaultExcluded(p) {
		return true
	}
	for _, g := range r.Globs {
		if ok, _ := doublestar.Match(g, p); ok {
			return true
		}
		// Also try matching just the basename for simple patterns like "*.csv".
		if ok, _ := doublestar.Match(g, path.Base(p)); ok {
			return true
		}
	}
	return false
}
