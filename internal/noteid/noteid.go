// Package noteid derives filesystem-safe note identifiers from titles.
package noteid

import (
	"regexp"
	"strconv"
	"strings"
)

var nonSlugRe = regexp.MustCompile(`[^a-z0-9]+`)

// Derive lower-cases title, collapses every run of characters outside
// [a-z0-9] into a single "-" and trims leading and trailing separators.
//
// Derive is not injective: "Eiffel Tower" and "eiffel-tower!" both map to
// "eiffel-tower". An empty result means the title has no usable characters.
func Derive(title string) string {
	slug := nonSlugRe.ReplaceAllString(strings.ToLower(title), "-")
	return strings.Trim(slug, "-")
}

// WithSuffix returns id disambiguated with a numeric suffix, e.g. "paris-2".
func WithSuffix(id string, n int) string {
	return id + "-" + strconv.Itoa(n)
}
