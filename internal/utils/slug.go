package utils

import (
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

var (
	slugStrip = regexp.MustCompile(`[^\w\s-]`)
	slugDash  = regexp.MustCompile(`[-\s]+`)
)

// Slugify lowercases s, folds accents to ASCII, drops punctuation and joins
// words with single hyphens.
func Slugify(s string) string {
	t := transform.Chain(norm.NFKD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	folded, _, err := transform.String(t, s)
	if err != nil {
		folded = s
	}
	folded = strings.ToLower(folded)
	folded = slugStrip.ReplaceAllString(folded, "")
	folded = slugDash.ReplaceAllString(strings.TrimSpace(folded), "-")
	return strings.Trim(folded, "-_")
}

// UniqueSlug appends a random hex suffix to the slug of base, falling back
// to fallback when base has no sluggable characters.
func UniqueSlug(base, fallback string, suffixLen int) (string, error) {
	s := Slugify(base)
	if s == "" {
		s = fallback
	}
	suffix, err := RandomHex(suffixLen)
	if err != nil {
		return "", err
	}
	return s + "-" + suffix, nil
}
