// Package tokenizer rewrites a raw log line into a short, identifier-free
// token sequence representing its structural skeleton. It removes volatile
// content (timestamps, UUIDs, hex blobs, IPs, paths, random words) so that
// lines differing only in those volatile parts tokenize identically.
//
// Tokenize is a pure function: bytes in, tokens out, no shared state and no
// I/O. Every rule below is applied in a fixed, idempotent order.
package tokenizer

import (
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/dlclark/regexp2"
)

// Sentinel tokens substituted for volatile content. Each is an all-uppercase
// word so it both survives the punctuation splitter (no reserved characters)
// and is treated as an acronym by the vowel-less filter, making replacement
// idempotent: re-tokenizing a rendered sentinel never strips or re-replaces it.
const (
	sentinelIP    = "IPADDR"
	sentinelMAC   = "MACADDR"
	sentinelUUID  = "UUIDVAL"
	sentinelHex   = "HEXVAL"
	sentinelB64   = "B64VAL"
	sentinelPath  = "PATHVAL"
	sentinelURL   = "URLVAL"
	sentinelEmail = "EMAILVAL"
	sentinelNum   = "NUMVAL"
)

var (
	ansiEscape = regexp.MustCompile("\x1b\\[[0-9;]*[a-zA-Z]")

	// Leading timestamp shapes (rule 3): matched only at the start of the
	// (already ANSI/control-trimmed) line and stripped entirely, not
	// replaced by a sentinel.
	leadingTimestamps = []*regexp.Regexp{
		// ISO-8601 variants, with optional fractional seconds and Z/offset.
		regexp.MustCompile(`^\d{4}-\d{2}-\d{2}[T ]\d{2}:\d{2}:\d{2}(\.\d+)?(Z|[+-]\d{2}:?\d{2})?`),
		// syslog: "Mmm DD HH:MM:SS"
		regexp.MustCompile(`^[A-Z][a-z]{2}\s+\d{1,2}\s\d{2}:\d{2}:\d{2}`),
		// systemd kernel ring buffer: "[  3.453289]"
		regexp.MustCompile(`^\[\s*\d+\.\d+\]`),
		// epoch seconds with fraction: "1699999999.123456"
		regexp.MustCompile(`^\d{10}\.\d+`),
		// klog-style: "I1010 13:55:37.000000"
		regexp.MustCompile(`^[IWEF]\d{4}\s+\d{2}:\d{2}:\d{2}\.\d+`),
	}

	uuidPattern  = regexp.MustCompile(`\b[0-9a-fA-F]{8}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{12}\b`)
	macPattern   = regexp.MustCompile(`\b([0-9a-fA-F]{2}[:-]){5}[0-9a-fA-F]{2}\b`)
	ipv4Pattern  = regexp.MustCompile(`\b\d{1,3}(\.\d{1,3}){3}\b`)
	ipv6Pattern  = regexp.MustCompile(`\b([0-9a-fA-F]{1,4}:){2,7}[0-9a-fA-F]{0,4}\b`)
	emailPattern = regexp.MustCompile(`\b[\w.+-]+@[\w-]+\.[A-Za-z]{2,}\b`)
	urlPattern   = regexp.MustCompile(`\b[a-zA-Z][a-zA-Z0-9+.-]*://[^\s"'<>\]]+`)
	quotedPath   = regexp.MustCompile(`"([^"]*/[^"]*)"`)
	absPath      = regexp.MustCompile(`/[\w.-]+(?:/[\w.-]+)+`)
	hexPattern   = regexp.MustCompile(`\b[0-9a-fA-F]{6,}\b`)
	numPattern   = regexp.MustCompile(`\d{3,}`)
	base64ish    = regexp.MustCompile(`\b[A-Za-z0-9+/]{12,}={0,2}\b`)

	// Random Kubernetes pod/replicaset suffixes: a trailing hyphen followed
	// by 6-10 alphanumeric characters, not itself preceded by a hyphen (so
	// "scheduler-7f9c8d6445" collapses its trailing segment once). regexp2
	// is used here because a negative lookbehind has no RE2 equivalent.
	k8sSuffix = regexp2.MustCompile(`(?<!-)-[a-zA-Z0-9]{6,10}\b`, regexp2.None)

	splitChars = "= : , ; ( ) [ ] { } < > \" ' |"
)

func isSplitRune(r rune) bool {
	if unicode.IsSpace(r) {
		return true
	}
	return strings.ContainsRune(splitChars, r)
}

// Tokenize converts a raw log line into its canonical token skeleton.
func Tokenize(line []byte) []string {
	s := decodeUTF8Lossy(line)
	s = ansiEscape.ReplaceAllString(s, "")
	s = stripControl(s)
	s = stripLeadingTimestamp(s)
	s = replaceVolatile(s)

	fields := strings.FieldsFunc(s, isSplitRune)
	tokens := make([]string, 0, len(fields))
	for _, f := range fields {
		if f == "" {
			continue
		}
		if isDroppable(f) {
			continue
		}
		tokens = append(tokens, normalizeCase(f))
	}
	return tokens
}

// Render joins tokens back into a single space-separated line, the inverse
// used by the tokenizer idempotence property: Tokenize(Render(Tokenize(L)))
// must equal Tokenize(L).
func Render(tokens []string) string {
	return strings.Join(tokens, " ")
}

// decodeUTF8Lossy decodes raw bytes as UTF-8, substituting the replacement
// character for any invalid byte sequence (rule 1).
func decodeUTF8Lossy(b []byte) string {
	if utf8.Valid(b) {
		return string(b)
	}
	var out strings.Builder
	out.Grow(len(b))
	for len(b) > 0 {
		r, size := utf8.DecodeRune(b)
		out.WriteRune(r)
		b = b[size:]
	}
	return out.String()
}

func stripControl(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if r == '\t' || r == ' ' {
			b.WriteRune(r)
			continue
		}
		if unicode.IsControl(r) {
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

func stripLeadingTimestamp(s string) string {
	trimmed := strings.TrimLeft(s, " \t")
	prefixLen := len(s) - len(trimmed)
	for _, re := range leadingTimestamps {
		if loc := re.FindStringIndex(trimmed); loc != nil && loc[0] == 0 {
			return s[:prefixLen] + trimmed[loc[1]:]
		}
	}
	return s
}

func replaceVolatile(s string) string {
	s = quotedPath.ReplaceAllString(s, " "+sentinelPath+" ")
	s = urlPattern.ReplaceAllString(s, " "+sentinelURL+" ")
	s = emailPattern.ReplaceAllString(s, " "+sentinelEmail+" ")
	s = uuidPattern.ReplaceAllString(s, " "+sentinelUUID+" ")
	s = macPattern.ReplaceAllString(s, " "+sentinelMAC+" ")
	s = ipv4Pattern.ReplaceAllString(s, " "+sentinelIP+" ")
	s = ipv6Pattern.ReplaceAllString(s, " "+sentinelIP+" ")
	s = absPath.ReplaceAllString(s, " "+sentinelPath+" ")
	s = replaceBase64(s)
	s = hexPattern.ReplaceAllString(s, sentinelHex)
	s = numPattern.ReplaceAllString(s, sentinelNum)
	// Applied last, so a hyphenated sentinel produced above (such as
	// "-NUMVAL" from "-0700") already has the form a second pass gives it.
	if out, err := k8sSuffix.Replace(s, "-"+sentinelHex, -1, -1); err == nil {
		s = out
	}
	return s
}

// replaceBase64 only replaces runs that plausibly look like base64 (mixed
// letters and digits, or long pure-letter runs of mixed case) to avoid
// swallowing ordinary long identifiers.
func replaceBase64(s string) string {
	return base64ish.ReplaceAllStringFunc(s, func(m string) string {
		hasDigit, hasUpper, hasLower := false, false, false
		for _, r := range m {
			switch {
			case unicode.IsDigit(r):
				hasDigit = true
			case unicode.IsUpper(r):
				hasUpper = true
			case unicode.IsLower(r):
				hasLower = true
			}
		}
		if hasDigit && (hasUpper || hasLower) {
			return sentinelB64
		}
		return m
	})
}

// isDroppable implements rule 6: drop vowel-less tokens of length >= 5 that
// are not all-uppercase acronyms (a heuristic for hex-like or random words
// that slipped past the explicit volatile-content patterns).
func isDroppable(tok string) bool {
	if len([]rune(tok)) < 5 {
		return false
	}
	if isAllUpperAcronym(tok) {
		return false
	}
	return !containsVowel(tok)
}

func containsVowel(s string) bool {
	for _, r := range strings.ToLower(s) {
		switch r {
		case 'a', 'e', 'i', 'o', 'u':
			return true
		}
	}
	return false
}

func isAllUpperAcronym(s string) bool {
	sawLetter := false
	for _, r := range s {
		if unicode.IsLetter(r) {
			sawLetter = true
			if !unicode.IsUpper(r) {
				return false
			}
		}
	}
	return sawLetter
}

// normalizeCase implements rule 7: lowercase non-acronym tokens, preserving
// all-uppercase acronyms (including our own sentinels) as-is.
func normalizeCase(tok string) string {
	if isAllUpperAcronym(tok) {
		return tok
	}
	return strings.ToLower(tok)
}
