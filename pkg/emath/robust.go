package emath

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/stat"
)

// Median of the values, numpy style: for an even count it is the mean of the
// two central values. The input is not reordered. Returns NaN for no values.
func Median(values []float64) float64 {
	n := len(values)
	if n == 0 {
		return math.NaN()
	}
	sorted := make([]float64, n)
	copy(sorted, values)
	sort.Float64s(sorted)

	if n%2 == 1 {
		return sorted[n/2]
	}
	return stat.Mean(sorted[n/2-1:n/2+1], nil)
}

// MAD is the element-wise median absolute deviation of a signal:
//
//	MAD_i = | X_i - median(X) |
//
// The result has the same length as values, which are left untouched.
func MAD(values []float64) []float64 {
	dev := make([]float64, len(values))
	if len(values) == 0 {
		return dev
	}
	med := Median(values)
	for i, v := range values {
		dev[i] = math.Abs(v - med)
	}
	return dev
}
