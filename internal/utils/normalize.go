package utils

import (
	"regexp"
	"strings"
	"unicode"
)

// urlPattern matches a run starting with "http" up to the next whitespace rune.
// RE2's \S is ASCII only, so the Unicode separators are listed explicitly.
var urlPattern = regexp.MustCompile(`http[^\t\n\v\f\r \x{1c}-\x{1f}\x{85}\p{Z}]+`)

// Clean converts raw email text into the form the vectorizer was fitted on:
// lowercase, URLs removed, only a-z and single spaces, trimmed.
// URLs are deleted without a replacement space, so neighbouring words can fuse.
//
// Clean is a single pass, like the training pipeline. Dropping punctuation can
// assemble a new URL-like run ("ht.tpx://a" -> "httpxa"), which a second call
// would then remove, so Clean is idempotent only on inputs where that cannot happen.
func Clean(text string) string {
	text = strings.ToLower(text)
	text = urlPattern.ReplaceAllString(text, "")

	text = strings.Map(func(r rune) rune {
		if (r >= 'a' && r <= 'z') || isSpace(r) {
			return r
		}
		return -1
	}, text)

	return strings.Join(strings.FieldsFunc(text, isSpace), " ")
}

// isSpace reports whitespace the way the vectorizer's training pipeline did
func isSpace(r rune) bool {
	switch r {
	case '\t', '\n', '\v', '\f', '\r', ' ', 0x1c, 0x1d, 0x1e, 0x1f, 0x85:
		return true
	}
	return unicode.In(r, unicode.Z)
}
