// Package sanitize converts the arbitrary strings LogJuicer uses as names —
// IndexNames, Source locations, archive inner paths joined with "!" — into
// filesystem-safe names for report, model, and history file paths. Adapted
// from the teacher's container-name sanitizer.
package sanitize

import "strings"

var replacer = strings.NewReplacer(
	"/", "_",
	"!", "_",
	":", "_",
	"?", "_",
	"\\", "_",
)

// Name converts a Source or Content name (a local path, a URL, or a
// "outer!inner" archive-member name) into a string safe to use as a single
// path component.
func Name(name string) string {
	return replacer.Replace(name)
}
