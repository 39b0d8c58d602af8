// Package utils provides shared utilities for text, math, and logging.
package utils

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Truncate returns s truncated to maxLen characters, with "..." appended if truncated.
// If maxLen is 0 or negative, returns s unchanged.
func Truncate(s string, maxLen int) string {
	if maxLen <= 0 || len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}

var foldTransformer = transform.Chain(norm.NFKD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

// Fold removes diacritics (NFKD decomposition, strip combining marks) and lowercases.
// Used to normalize author names and other catalog fields for matching.
func Fold(s string) string {
	out, _, err := transform.String(foldTransformer, s)
	if err != nil {
		return strings.ToLower(s)
	}
	return strings.ToLower(out)
}

// NormalizeForEmbedding trims whitespace and optionally lowercases text before
// it is embedded. The same normalization must be applied to catalog texts at
// index-build time and to query texts, or similarity scores are meaningless.
func NormalizeForEmbedding(text string, lower bool) string {
	text = strings.TrimSpace(text)
	if lower {
		text = strings.ToLower(text)
	}
	return text
}
