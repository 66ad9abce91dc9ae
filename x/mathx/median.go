package mathx

import (
	"slices"

	"golang.org/x/exp/constraints"
)

// Median returns the median of vs: the middle element after sorting, or the
// arithmetic mean of the two middle elements for an even count. vs is left
// unmodified. An empty slice yields 0.
func Median[T constraints.Integer](vs []T) float64 {
	if len(vs) == 0 {
		return 0
	}
	s := slices.Clone(vs)
	slices.Sort(s)
	mid := len(s) / 2
	if len(s)%2 == 1 {
		return float64(s[mid])
	}
	return (float64(s[mid-1]) + float64(s[mid])) / 2
}
