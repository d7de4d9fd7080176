package index

import (
	"strings"
	"unicode"

	"github.com/orsinium-labs/stopwords"
)

var english = stopwords.MustGet("en")

// tokens splits text into lower-case runs of letters and digits, the way the
// FTS5 unicode61 tokenizer does.
func tokens(text string) []string {
	return strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsNumber(r)
	})
}

// queryTerms returns the distinct tokens of a query. Every term must match;
// none is dropped.
func queryTerms(query string) []string {
	var terms []string
	seen := make(map[string]bool)
	for _, f := range tokens(query) {
		if seen[f] {
			continue
		}
		seen[f] = true
		terms = append(terms, f)
	}
	return terms
}

// termWeight scales the score of a term hit. Hits on common English words
// count for less than hits on content words.
func termWeight(term string) float64 {
	if english.Contains(term) {
		return 0.2
	}
	return 1
}

// ftsQuery quotes every term so user input can never be read as FTS5
// syntax. Terms are implicitly ANDed.
func ftsQuery(terms []string) string {
	quoted := make([]string, len(terms))
	for i, t := range terms {
		quoted[i] = `"` + strings.ReplaceAll(t, `"`, `""`) + `"`
	}
	return strings.Join(quoted, " ")
}

// likePattern wraps term for a LIKE ... ESCAPE '\' substring match.
func likePattern(term string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return "%" + r.Replace(term) + "%"
}

// Field weights for matchScore.
const (
	titleWeight = 3
	tagWeight   = 2
	bodyWeight  = 1
)

// matchScore ranks a note against terms by whole-token hits, weighted by
// field and by termWeight. ok is false unless every term occurs as a token
// in at least one field.
func matchScore(terms []string, title string, tags []string, body string) (score float64, ok bool) {
	fields := []struct {
		counts map[string]int
		weight float64
	}{
		{tokenCounts(title), titleWeight},
		{tokenCounts(strings.Join(tags, " ")), tagWeight},
		{tokenCounts(body), bodyWeight},
	}
	for _, t := range terms {
		var hits float64
		for _, f := range fields {
			hits += float64(f.counts[t]) * f.weight
		}
		if hits == 0 {
			return 0, false
		}
		score += hits * termWeight(t)
	}
	return score, true
}

func tokenCounts(text string) map[string]int {
	counts := make(map[string]int)
	for _, tok := range tokens(text) {
		counts[tok]++
	}
	return counts
}

// isASCII reports whether SQLite's LIKE folds the case of s the way
// strings.ToLower does.
func isASCII(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] >= 0x80 {
			return false
		}
	}
	return true
}
