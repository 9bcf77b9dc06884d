package coupang

import "golang.org/x/text/unicode/norm"

// MinSimilarity is the lowest accepted PartialRatio between keyword and
// product title.
const MinSimilarity = 65

// Scorer rates how well a product title matches a keyword on a 0..100 scale.
type Scorer func(keyword, title string) float64

// PartialRatio is the best Indel ratio between the shorter string and any
// equally long window of the longer one, including the partial windows at
// either edge. Inputs are NFC normalised and compared rune by rune.
func PartialRatio(a, b string) float64 {
	s1 := []rune(norm.NFC.String(a))
	s2 := []rune(norm.NFC.String(b))
	if len(s1) == 0 || len(s2) == 0 {
		return 0
	}
	if len(s1) > len(s2) {
		s1, s2 = s2, s1
	}

	m, n := len(s1), len(s2)
	best := 0.0
	try := func(w []rune) bool {
		if r := ratio(s1, w); r > best {
			best = r
		}
		return best == 100
	}

	for i := 1; i < m; i++ {
		if try(s2[:i]) {
			return best
		}
	}
	for i := 0; i+m <= n; i++ {
		if try(s2[i : i+m]) {
			return best
		}
	}
	for i := n - m + 1; i < n; i++ {
		if try(s2[i:]) {
			return best
		}
	}
	return best
}

func ratio(a, b []rune) float64 {
	total := len(a) + len(b)
	if total == 0 {
		return 100
	}
	return 200 * float64(lcs(a, b)) / float64(total)
}

func lcs(a, b []rune) int {
	prev := make([]int, len(b)+1)
	cur := make([]int, len(b)+1)
	for i := 1; i <= len(a); i++ {
		for j := 1; j <= len(b); j++ {
			switch {
			case a[i-1] == b[j-1]:
				cur[j] = prev[j-1] + 1
			case prev[j] >= cur[j-1]:
				cur[j] = prev[j]
			default:
				cur[j] = cur[j-1]
			}
		}
		prev, cur = cur, prev
	}
	return prev[len(b)]
}
