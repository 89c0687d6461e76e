package profiling

import (
	"math"
	"sort"

	"github.com/montanaflynn/stats"

	"statguide/domain/profiling"
	"statguide/internal/critical"
)

// Summarize computes descriptive statistics for a numeric sample. It returns
// nil for an empty sample.
func Summarize(data []float64) *profiling.NumericSummary {
	if len(data) == 0 {
		return nil
	}
	sorted := sortedCopy(data)
	n := len(sorted)

	mean, _ := stats.Mean(sorted)
	median, _ := stats.Median(sorted)
	min, _ := stats.Min(sorted)
	max, _ := stats.Max(sorted)

	var sd float64
	if n > 1 {
		sd, _ = stats.StandardDeviationSample(sorted)
	}

	s := &profiling.NumericSummary{
		N:      n,
		Mean:   mean,
		StdDev: sd,
		Median: median,
		Min:    min,
		Max:    max,
		Q1:     Percentile(sorted, 25),
		Q3:     Percentile(sorted, 75),
	}
	s.IQR = s.Q3 - s.Q1

	if n > 1 {
		s.SE = sd / math.Sqrt(float64(n))
		margin := critical.TCritical95(n-1) * s.SE
		s.CI95Low = mean - margin
		s.CI95High = mean + margin
	} else {
		s.CI95Low, s.CI95High = mean, mean
	}
	if mean != 0 {
		s.CV = sd / math.Abs(mean) * 100
	}
	s.Skewness, s.Kurtosis = Moments(sorted)
	return s
}

// Moments returns the population skewness g1 and excess kurtosis g2 of data.
// Both are zero when the sample has no spread or fewer than three values.
func Moments(data []float64) (skewness, kurtosis float64) {
	n := float64(len(data))
	if n < 3 {
		return 0, 0
	}
	mean, _ := stats.Mean(data)
	var m2, m3, m4 float64
	for _, x := range data {
		d := x - mean
		d2 := d * d
		m2 += d2
		m3 += d2 * d
		m4 += d2 * d2
	}
	m2 /= n
	m3 /= n
	m4 /= n
	if m2 == 0 {
		return 0, 0
	}
	return m3 / math.Pow(m2, 1.5), m4/(m2*m2) - 3
}

// Percentile returns the pct-th percentile (0 < pct <= 100). Samples too
// small for an averaged percentile fall back to the nearest rank.
func Percentile(data []float64, pct float64) float64 {
	if len(data) == 0 {
		return math.NaN()
	}
	v, err := stats.Percentile(data, pct)
	if err != nil {
		v, _ = stats.PercentileNearestRank(data, pct)
	}
	return v
}

// TukeyOutliers returns values outside the 1.5·IQR fences, in input order.
// Samples with fewer than four values have no outliers.
func TukeyOutliers(data []float64) []float64 {
	if len(data) < 4 {
		return nil
	}
	q1 := Percentile(data, 25)
	q3 := Percentile(data, 75)
	iqr := q3 - q1
	lower, upper := q1-1.5*iqr, q3+1.5*iqr

	var out []float64
	for _, x := range data {
		if x < lower || x > upper {
			out = append(out, x)
		}
	}
	return out
}

func sortedCopy(data []float64) []float64 {
	c := make([]float64, len(data))
	copy(c, data)
	sort.Float64s(c)
	return c
}
