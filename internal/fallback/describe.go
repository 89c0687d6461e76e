package fallback

import (
	"github.com/montanaflynn/stats"

	domainstats "statguide/domain/stats"
)

func mean(x []float64) float64 {
	m, err := stats.Mean(x)
	if err != nil {
		return 0
	}
	return m
}

// sampleVariance uses the n-1 denominator; 0 for fewer than two values
func sampleVariance(x []float64) float64 {
	if len(x) < 2 {
		return 0
	}
	v, err := stats.SampleVariance(x)
	if err != nil {
		return 0
	}
	return v
}

func sumSquares(x []float64, center float64) float64 {
	var ss float64
	for _, v := range x {
		d := v - center
		ss += d * d
	}
	return ss
}

// Summarize describes each sample
func Summarize(groups []domainstats.Sample) []domainstats.GroupSummary {
	out := make([]domainstats.GroupSummary, len(groups))
	for i, g := range groups {
		s := domainstats.GroupSummary{Name: g.Name, N: len(g.Values)}
		if len(g.Values) > 0 {
			s.Mean = mean(g.Values)
			s.Median, _ = stats.Median(g.Values)
			if len(g.Values) > 1 {
				s.StdDev, _ = stats.StandardDeviationSample(g.Values)
			}
		}
		out[i] = s
	}
	return out
}

// Pool concatenates all samples
func Pool(groups []domainstats.Sample) []float64 {
	var n int
	for _, g := range groups {
		n += len(g.Values)
	}
	out := make([]float64, 0, n)
	for _, g := range groups {
		out = append(out, g.Values...)
	}
	return out
}

// GroupBy splits values by label, keeping first-appearance order of labels.
// Observations with an empty label are dropped.
func GroupBy(values []float64, labels []string) []domainstats.Sample {
	index := make(map[string]int)
	var out []domainstats.Sample
	for i, v := range values {
		if i >= len(labels) || labels[i] == "" {
			continue
		}
		j, ok := index[labels[i]]
		if !ok {
			j = len(out)
			index[labels[i]] = j
			out = append(out, domainstats.Sample{Name: labels[i]})
		}
		out[j].Values = append(out[j].Values, v)
	}
	return out
}
