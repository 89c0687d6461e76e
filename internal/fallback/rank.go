package fallback

import "sort"

// Rank converts values to 1-based ranks. Tied values share the mean of the
// ranks they span.
func Rank(values []float64) []float64 {
	n := len(values)
	idx := make([]int, n)
	for i := range idx {
		idx[i] = i
	}
	sort.SliceStable(idx, func(a, b int) bool { return values[idx[a]] < values[idx[b]] })

	ranks := make([]float64, n)
	for i := 0; i < n; {
		j := i + 1
		for j < n && values[idx[j]] == values[idx[i]] {
			j++
		}
		// positions i..j-1 hold equal values: ranks i+1..j
		mid := float64(i+1+j) / 2
		for k := i; k < j; k++ {
			ranks[idx[k]] = mid
		}
		i = j
	}
	return ranks
}

// tieGroups returns the sizes of runs of equal values (size > 1 only)
func tieGroups(values []float64) []int {
	sorted := append([]float64(nil), values...)
	sort.Float64s(sorted)
	var out []int
	for i := 0; i < len(sorted); {
		j := i + 1
		for j < len(sorted) && sorted[j] == sorted[i] {
			j++
		}
		if j-i > 1 {
			out = append(out, j-i)
		}
		i = j
	}
	return out
}
