package assets

import (
	"regexp"
	"strings"
)

var (
	extensionRe     = regexp.MustCompile(`(?i)\.(mp4|mov|mkv|webm|avi|png|jpg|jpeg|gif)$`)
	versionSuffixRe = regexp.MustCompile(`-v\d+$`)
	parentheticalRe = regexp.MustCompile(`\s*\([^)]*\)\s*$`)
	whitespaceRe    = regexp.MustCompile(`\s+`)
	nonWordRe       = regexp.MustCompile(`[^a-z0-9_]`)
	multiUnderRe    = regexp.MustCompile(`_+`)
)

// Canonicalize normalises an asset filename or script reference into the
// identifier both sides are matched on: lowercase, media extension and
// trailing -vN version suffix stripped, trailing parenthetical annotation
// dropped, whitespace collapsed to single underscores, everything outside
// [a-z0-9_] removed, repeated underscores collapsed, underscores trimmed.
//
// The function is idempotent: Canonicalize(Canonicalize(x)) == Canonicalize(x).
func Canonicalize(name string) string {
	s := strings.ToLower(strings.TrimSpace(name))
	s = extensionRe.ReplaceAllString(s, "")
	s = versionSuffixRe.ReplaceAllString(s, "")
	s = parentheticalRe.ReplaceAllString(s, "")
	s = whitespaceRe.ReplaceAllString(s, "_")
	s = nonWordRe.ReplaceAllString(s, "")
	s = multiUnderRe.ReplaceAllString(s, "_")
	return strings.Trim(s, "_")
}
