package normalize

import "strings"

// Similarity scores how close two movement descriptions are, in [0,1].
//
// Two signals are computed over the canonicalized strings and the larger one
// wins: a longest-common-subsequence ratio, which rewards near-identical
// strings, and token-set Jaccard, which rewards reordered or truncated but
// keyword-equivalent strings such as abbreviated vendor names. Either signal
// alone is enough to call two descriptions similar.
func Similarity(a, b string) float64 {
	na := Text(a)
	nb := Text(b)
	if na == "" || nb == "" {
		return 0
	}

	ratio := lcsRatio([]rune(na), []rune(nb))
	jac := jaccard(strings.Fields(na), strings.Fields(nb))
	if jac > ratio {
		return jac
	}
	return ratio
}

// lcsRatio is 2*LCS(a,b) / (len(a)+len(b)), the sequence-similarity ratio.
func lcsRatio(a, b []rune) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	// Single-row DP; prev holds the previous row of the LCS table.
	prev := make([]int, len(b)+1)
	curr := make([]int, len(b)+1)
	for i := 1; i <= len(a); i++ {
		for j := 1; j <= len(b); j++ {
			if a[i-1] == b[j-1] {
				curr[j] = prev[j-1] + 1
			} else if prev[j] >= curr[j-1] {
				curr[j] = prev[j]
			} else {
				curr[j] = curr[j-1]
			}
		}
		prev, curr = curr, prev
	}
	lcs := prev[len(b)]
	return 2 * float64(lcs) / float64(len(a)+len(b))
}

func jaccard(a, b []string) float64 {
	set := make(map[string]uint8, len(a)+len(b))
	for _, t := range a {
		set[t] |= 1
	}
	for _, t := range b {
		set[t] |= 2
	}
	inter := 0
	for _, m := range set {
		if m == 3 {
			inter++
		}
	}
	if len(set) == 0 {
		return 0
	}
	return float64(inter) / float64(len(set))
}
