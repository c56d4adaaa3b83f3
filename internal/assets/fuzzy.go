package assets

import "sort"

// suggestionCutoff filters out matches too weak to be worth showing.
const suggestionCutoff = 0.3

// Suggestion pairs an asset with its similarity score against a query.
type Suggestion struct {
	Asset *Asset
	Score float64
}

// Suggest ranks all known assets by normalized Levenshtein similarity to the
// given name, descending, dropping scores at or below the cutoff. Pure and
// side-effect free; used only for diagnostics.
func (r *Resolver) Suggest(name string) []Suggestion {
	query := Canonicalize(name)
	var out []Suggestion
	for _, a := range r.ordered {
		score := Similarity(query, a.CanonicalName)
		if score > suggestionCutoff {
			out = append(out, Suggestion{Asset: a, Score: score})
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Score > out[j].Score
	})
	return out
}

// Similarity returns (maxLen - editDistance) / maxLen for two strings,
// where editDistance is the Levenshtein distance. Identical strings score
// 1.0; completely different strings approach 0.
func Similarity(a, b string) float64 {
	if a == "" && b == "" {
		return 1.0
	}
	maxLen := len(a)
	if len(b) > maxLen {
		maxLen = len(b)
	}
	if maxLen == 0 {
		return 1.0
	}
	return float64(maxLen-levenshtein(a, b)) / float64(maxLen)
}

// levenshtein computes the classic edit distance with a two-row table.
func levenshtein(a, b string) int {
	if a == b {
		return 0
	}
	if len(a) == 0 {
		return len(b)
	}
	if len(b) == 0 {
		return len(a)
	}

	prev := make([]int, len(b)+1)
	curr := make([]int, len(b)+1)
	for j := range prev {
		prev[j] = j
	}

	for i := 1; i <= len(a); i++ {
		curr[0] = i
		for j := 1; j <= len(b); j++ {
			cost := 1
			if a[i-1] == b[j-1] {
				cost = 0
			}
			curr[j] = min3(
				prev[j]+1,      // deletion
				curr[j-1]+1,    // insertion
				prev[j-1]+cost, // substitution
			)
		}
		prev, curr = curr, prev
	}
	return prev[len(b)]
}

func min3(a, b, c int) int {
	m := a
	if b < m {
		m = b
	}
	if c < m {
		m = c
	}
	return m
}
