// Package suggest finds the closest known name for a misspelled one.
package suggest

import (
	"sort"
	"strings"
)

// Distance returns the Levenshtein edit distance between a and b.
func Distance(a, b string) int {
	ra, rb := []rune(a), []rune(b)
	if len(ra) == 0 {
		return len(rb)
	}
	if len(rb) == 0 {
		return len(ra)
	}
	if len(ra) > len(rb) {
		ra, rb = rb, ra
	}

	prevRow := make([]int, len(ra)+1)
	currRow := make([]int, len(ra)+1)
	for j := range prevRow {
		prevRow[j] = j
	}

	for i := 1; i <= len(rb); i++ {
		currRow[0] = i
		for j := 1; j <= len(ra); j++ {
			cost := 1
			if ra[j-1] == rb[i-1] {
				cost = 0
			}
			currRow[j] = min(prevRow[j]+1, currRow[j-1]+1, prevRow[j-1]+cost)
		}
		prevRow, currRow = currRow, prevRow
	}
	return prevRow[len(ra)]
}

// Threshold is the largest edit distance still considered a typo of word.
func Threshold(word string) int {
	switch n := len(word); {
	case n <= 3:
		return 1
	case n <= 7:
		return 2
	default:
		return 3
	}
}

// Closest returns the candidate nearest to word, compared case
// insensitively, when it is within Threshold(word).
func Closest(word string, candidates []string) (string, bool) {
	ranked := Rank(word, candidates)
	if len(ranked) == 0 {
		return "", false
	}
	return ranked[0], true
}

// Rank returns up to three candidates within Threshold(word), closest first.
// Ties keep candidate order.
func Rank(word string, candidates []string) []string {
	type scored struct {
		name string
		dist int
	}

	limit := Threshold(word)
	lower := strings.ToLower(word)
	var found []scored
	for _, c := range candidates {
		if c == word {
			continue
		}
		if d := Distance(lower, strings.ToLower(c)); d <= limit {
			found = append(found, scored{c, d})
		}
	}
	sort.SliceStable(found, func(i, j int) bool { return found[i].dist < found[j].dist })

	out := make([]string, 0, 3)
	for i := 0; i < len(found) && i < 3; i++ {
		out = append(out, found[i].name)
	}
	return out
}
