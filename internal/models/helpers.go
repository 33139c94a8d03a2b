package models

import (
	"strings"
	"unicode"
)

// Slugify converts a model name into a stable, filesystem-safe record
// identifier. Lowercases, maps separators (including the ollama ':' tag
// separator) to hyphens, and strips everything else.
func Slugify(name string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(name) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == ' ', r == '_', r == '-', r == ':', r == '/', r == '.':
			b.WriteRune('-')
		}
	}
	return strings.Trim(b.String(), "-")
}

// ID derives the record identifier for a record. Once assigned it never
// changes across stages; every store keys the record's file by it.
func ID(r Record) string {
	return Slugify(r.Name())
}

// DisplayName derives a human-readable name from a model name:
// separators become spaces and each word is capitalized.
func DisplayName(name string) string {
	words := strings.FieldsFunc(name, func(r rune) bool {
		return r == '-' || r == '_' || r == ' '
	})
	for i, w := range words {
		r := []rune(w)
		r[0] = unicode.ToUpper(r[0])
		words[i] = string(r)
	}
	return strings.Join(words, " ")
}
