// Package critical embeds the small critical-value tables used when no exact
// distribution functions are available. Lookups return ordinal significance
// buckets, not continuous p-values.
package critical

import (
	"math"

	"statguide/domain/stats"
)

// Every table row lists critical values for alpha .05, .01 and .001.
// buckets[i] is returned when the statistic exceeds column i.
var buckets = [3]float64{stats.BucketSignificant, stats.BucketVerySignificant, stats.BucketHighlySignificant}

// tTable holds two-sided Student t critical values for df 1..9.
// Larger df are looked up at df = 9.
var tTable = [9][3]float64{
	{12.706, 63.657, 636.619},
	{4.303, 9.925, 31.599},
	{3.182, 5.841, 12.924},
	{2.776, 4.604, 8.610},
	{2.571, 4.032, 6.869},
	{2.447, 3.707, 5.959},
	{2.365, 3.499, 5.408},
	{2.306, 3.355, 5.041},
	{2.262, 3.250, 4.781},
}

// MaxTDF is the largest tabulated t degree of freedom
const MaxTDF = 9

// F critical values for upper-tail alpha .05/.01/.001
var (
	fDF1 = [4]int{1, 2, 3, 4}
	fDF2 = [6]int{5, 10, 20, 30, 60, 120}

	fTable = [4][6][3]float64{
		{ // df1 = 1
			{6.61, 16.26, 47.18}, {4.96, 10.04, 21.04}, {4.35, 8.10, 14.82},
			{4.17, 7.56, 13.29}, {4.00, 7.08, 11.97}, {3.92, 6.85, 11.38},
		},
		{ // df1 = 2
			{5.79, 13.27, 37.12}, {4.10, 7.56, 14.91}, {3.49, 5.85, 9.95},
			{3.32, 5.39, 8.77}, {3.15, 4.98, 7.77}, {3.07, 4.79, 7.32},
		},
		{ // df1 = 3
			{5.41, 12.06, 33.20}, {3.71, 6.55, 12.55}, {3.10, 4.94, 8.10},
			{2.92, 4.51, 7.05}, {2.76, 4.13, 6.17}, {2.68, 3.95, 5.78},
		},
		{ // df1 = 4
			{5.19, 11.39, 31.09}, {3.48, 5.99, 11.28}, {2.87, 4.43, 7.10},
			{2.69, 4.02, 6.12}, {2.53, 3.65, 5.31}, {2.45, 3.48, 4.95},
		},
	}
)

// chiTable holds upper-tail chi-square critical values for df 1..10
var chiTable = [10][3]float64{
	{3.841, 6.635, 10.828},
	{5.991, 9.210, 13.816},
	{7.815, 11.345, 16.266},
	{9.488, 13.277, 18.467},
	{11.070, 15.086, 20.515},
	{12.592, 16.812, 22.458},
	{14.067, 18.475, 24.322},
	{15.507, 20.090, 26.124},
	{16.919, 21.666, 27.877},
	{18.307, 23.209, 29.588},
}

// zTable holds two-sided standard normal critical values
var zTable = [3]float64{1.960, 2.576, 3.291}

// zUpper holds one-sided standard normal critical values
var zUpper = [3]float64{1.645, 2.326, 3.090}

// t95 holds two-sided 95% t quantiles for df 1..30, used for descriptive intervals
var t95 = [30]float64{
	12.706, 4.303, 3.182, 2.776, 2.571, 2.447, 2.365, 2.306, 2.262, 2.228,
	2.201, 2.179, 2.160, 2.145, 2.131, 2.120, 2.110, 2.101, 2.093, 2.086,
	2.080, 2.074, 2.069, 2.064, 2.060, 2.056, 2.052, 2.048, 2.045, 2.042,
}

func bucketFor(stat float64, crit [3]float64) float64 {
	p := stats.BucketNotSignificant
	for i := range crit {
		if stat > crit[i] {
			p = buckets[i]
		}
	}
	return p
}

// TBucket returns the two-sided significance bucket of a t statistic
func TBucket(t float64, df int) float64 {
	if df < 1 || math.IsNaN(t) {
		return stats.BucketNotSignificant
	}
	if df > MaxTDF {
		df = MaxTDF
	}
	return bucketFor(math.Abs(t), tTable[df-1])
}

// FBucket returns the upper-tail significance bucket of an F ratio using the
// nearest tabulated (df1, df2) cell
func FBucket(f float64, df1, df2 int) float64 {
	if df1 < 1 || df2 < 1 || math.IsNaN(f) || f <= 0 {
		return stats.BucketNotSignificant
	}
	i := nearest(df1, fDF1[:])
	j := nearest(df2, fDF2[:])
	return bucketFor(f, fTable[i][j])
}

// ChiSquareBucket returns the upper-tail significance bucket of a chi-square statistic.
// Past the table, critical values come from the Wilson-Hilferty cube-root
// normal approximation.
func ChiSquareBucket(x float64, df int) float64 {
	if df < 1 || math.IsNaN(x) {
		return stats.BucketNotSignificant
	}
	if df <= len(chiTable) {
		return bucketFor(x, chiTable[df-1])
	}
	return bucketFor(x, chiSquareCritical(df))
}

func chiSquareCritical(df int) [3]float64 {
	k := float64(df)
	s := math.Sqrt(2 / (9 * k))
	var crit [3]float64
	for i, z := range zUpper {
		crit[i] = k * math.Pow(1-2/(9*k)+z*s, 3)
	}
	return crit
}

// ZBucket returns the two-sided significance bucket of a standard normal deviate
func ZBucket(z float64) float64 {
	if math.IsNaN(z) {
		return stats.BucketNotSignificant
	}
	return bucketFor(math.Abs(z), zTable)
}

// TCritical95 returns the two-sided 95% t quantile; 1.96 beyond df 30
func TCritical95(df int) float64 {
	switch {
	case df < 1:
		return math.NaN()
	case df <= len(t95):
		return t95[df-1]
	default:
		return 1.96
	}
}

func nearest(v int, grid []int) int {
	best := 0
	bestDist := math.MaxInt
	for i, g := range grid {
		d := v - g
		if d < 0 {
			d = -d
		}
		if d < bestDist {
			best, bestDist = i, d
		}
	}
	return best
}
