// Package posthoc runs pairwise comparisons after an omnibus test and adjusts
// their p-values for multiple comparisons.
package posthoc

import (
	"fmt"
	"math"
	"sort"
	"strings"

	mstats "github.com/montanaflynn/stats"

	"statguide/domain/core"
	"statguide/domain/method"
	"statguide/domain/stats"
	"statguide/internal/fallback"
)

// Correction is a multiple-comparison adjustment
type Correction string

const (
	Bonferroni        Correction = "bonferroni"
	Holm              Correction = "holm"
	BenjaminiHochberg Correction = "benjamini_hochberg"
)

// ParseCorrection resolves a correction name; empty selects Bonferroni
func ParseCorrection(s string) (Correction, error) {
	switch Correction(strings.ToLower(strings.TrimSpace(s))) {
	case "", Bonferroni:
		return Bonferroni, nil
	case Holm:
		return Holm, nil
	case BenjaminiHochberg, "bh", "fdr":
		return BenjaminiHochberg, nil
	}
	return "", core.NewValidationError("correction", fmt.Sprintf("unknown correction %q", s))
}

// ParseMethod resolves a post-hoc method name; empty selects pairwise Welch t-tests
func ParseMethod(s string) (method.PostHoc, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "pairwise", strings.ToLower(string(method.PostHocPairwise)):
		return method.PostHocPairwise, nil
	case "tukey", strings.ToLower(string(method.PostHocTukey)):
		return method.PostHocTukey, nil
	case "games_howell", "games-howell":
		return method.PostHocGamesHowell, nil
	case "dunn", strings.ToLower(string(method.PostHocDunn)):
		return method.PostHocDunn, nil
	}
	return "", core.NewValidationError("post_hoc", fmt.Sprintf("unknown post-hoc method %q", s))
}

// Engine computes pairwise comparisons
type Engine struct {
	sig   fallback.Significance
	alpha float64
}

// NewEngine creates an engine. A nil Significance uses the critical tables;
// alpha outside (0, 1) falls back to 0.05.
func NewEngine(sig fallback.Significance, alpha float64) *Engine {
	if sig == nil {
		sig = fallback.NewTables()
	}
	if alpha <= 0 || alpha >= 1 {
		alpha = 0.05
	}
	return &Engine{sig: sig, alpha: alpha}
}

// BonferroniAdjust multiplies p by the number of comparisons, capped at 1
func BonferroniAdjust(p float64, m int) float64 {
	return math.Min(p*float64(m), 1)
}

// Compare runs every unordered pair of groups through the base test of the
// post-hoc method and adjusts the raw p-values
func (e *Engine) Compare(groups []stats.Sample, ph method.PostHoc, correction Correction) (stats.PostHocResult, error) {
	if ph == method.PostHocNone {
		ph = method.PostHocPairwise
	}
	minN := 2
	if ph == method.PostHocDunn {
		minN = 1
	}
	if len(groups) < 2 {
		return stats.PostHocResult{}, fmt.Errorf("%w: post-hoc comparisons need at least two groups", core.ErrTooFewLevels)
	}
	for _, g := range groups {
		if len(g.Values) < minN {
			return stats.PostHocResult{}, core.NewInsufficientSampleError(fmt.Sprintf("post-hoc group %q", g.Name), minN, len(g.Values))
		}
	}

	var base pairTest
	switch ph {
	case method.PostHocTukey:
		base = e.tukey(groups)
	case method.PostHocGamesHowell, method.PostHocPairwise:
		base = e.welch
	case method.PostHocDunn:
		base = e.dunn(groups)
	default:
		return stats.PostHocResult{}, core.NewValidationError("post_hoc", fmt.Sprintf("unknown post-hoc method %q", ph))
	}

	k := len(groups)
	m := k * (k - 1) / 2
	pairs := make([]stats.ComparisonPair, 0, m)
	for i := 0; i < k; i++ {
		for j := i + 1; j < k; j++ {
			stat, p, err := base(i, j, groups[i].Values, groups[j].Values)
			if err != nil {
				return stats.PostHocResult{}, err
			}
			pairs = append(pairs, stats.ComparisonPair{
				Group1:    groups[i].Name,
				Group2:    groups[j].Name,
				MeanDiff:  mean(groups[i].Values) - mean(groups[j].Values),
				Statistic: stat,
				PValue:    clamp(p),
			})
		}
	}

	raw := make([]float64, len(pairs))
	for i, p := range pairs {
		raw[i] = p.PValue
	}
	adjusted, err := Adjust(raw, correction)
	if err != nil {
		return stats.PostHocResult{}, err
	}
	for i := range pairs {
		pairs[i].AdjustedPValue = adjusted[i]
		pairs[i].Significant = adjusted[i] < e.alpha
	}

	return stats.PostHocResult{
		Method:         string(ph),
		Correction:     string(correction),
		Comparisons:    pairs,
		NumComparisons: m,
		Alpha:          e.alpha,
		PerTestAlpha:   e.alpha / float64(m),
		Strategy:       e.sig.Strategy(),
	}, nil
}

// Adjust applies a correction to a family of raw p-values. Adjusted values are
// never below the raw ones.
func Adjust(raw []float64, correction Correction) ([]float64, error) {
	m := len(raw)
	out := make([]float64, m)
	switch correction {
	case Bonferroni, "":
		for i, p := range raw {
			out[i] = BonferroniAdjust(p, m)
		}
	case Holm:
		order := ascending(raw)
		running := 0.0
		for rank, i := range order {
			v := math.Min(float64(m-rank)*raw[i], 1)
			running = math.Max(running, v)
			out[i] = running
		}
	case BenjaminiHochberg:
		order := ascending(raw)
		running := 1.0
		for rank := m - 1; rank >= 0; rank-- {
			i := order[rank]
			v := math.Min(raw[i]*float64(m)/float64(rank+1), 1)
			running = math.Min(running, v)
			out[i] = running
		}
	default:
		return nil, core.NewValidationError("correction", fmt.Sprintf("unknown correction %q", correction))
	}
	for i := range out {
		out[i] = math.Max(out[i], raw[i])
	}
	return out, nil
}

func ascending(p []float64) []int {
	idx := make([]int, len(p))
	for i := range idx {
		idx[i] = i
	}
	sort.SliceStable(idx, func(a, b int) bool { return p[idx[a]] < p[idx[b]] })
	return idx
}

// pairTest returns the statistic and raw two-sided p-value for groups i and j
type pairTest func(i, j int, a, b []float64) (float64, float64, error)

// tukey uses the pooled within-group mean square of all groups. The reported
// statistic is the studentized range q; significance uses q/√2 as a t value.
func (e *Engine) tukey(groups []stats.Sample) pairTest {
	var sse float64
	n := 0
	for _, g := range groups {
		sse += sumSquares(g.Values)
		n += len(g.Values)
	}
	dfError := n - len(groups)
	mse := sse / float64(dfError)

	return func(_, _ int, a, b []float64) (float64, float64, error) {
		se := math.Sqrt(mse * (1/float64(len(a)) + 1/float64(len(b))))
		if se == 0 {
			return 0, neutral(e.sig), nil
		}
		t := (mean(a) - mean(b)) / se
		p, err := e.sig.TwoSidedT(t, float64(dfError))
		return math.Abs(t) * math.Sqrt2, p, err
	}
}

// welch is the Games-Howell and plain pairwise base test
func (e *Engine) welch(_, _ int, a, b []float64) (float64, float64, error) {
	n1, n2 := float64(len(a)), float64(len(b))
	v1, v2 := variance(a), variance(b)
	se := math.Sqrt(v1/n1 + v2/n2)
	if se == 0 {
		return 0, neutral(e.sig), nil
	}
	t := (mean(a) - mean(b)) / se
	p, err := e.sig.TwoSidedT(t, fallback.WelchDF(v1, n1, v2, n2))
	return t, p, err
}

// dunn compares mean ranks taken over all groups jointly
func (e *Engine) dunn(groups []stats.Sample) pairTest {
	ranks := fallback.Rank(fallback.Pool(groups))
	meanRank := make([]float64, len(groups))
	offset := 0
	for gi, g := range groups {
		var s float64
		for k := range g.Values {
			s += ranks[offset+k]
		}
		meanRank[gi] = s / float64(len(g.Values))
		offset += len(g.Values)
	}
	nt := float64(len(ranks))

	return func(i, j int, a, b []float64) (float64, float64, error) {
		se := math.Sqrt(nt * (nt + 1) / 12 * (1/float64(len(a)) + 1/float64(len(b))))
		z := (meanRank[i] - meanRank[j]) / se
		p, err := e.sig.TwoSidedZ(z)
		return z, p, err
	}
}

func neutral(sig fallback.Significance) float64 {
	if sig.Strategy().IsApproximate() {
		return stats.BucketNotSignificant
	}
	return 1
}

func mean(x []float64) float64 {
	m, _ := mstats.Mean(x)
	return m
}

func sumSquares(x []float64) float64 {
	m := mean(x)
	var ss float64
	for _, v := range x {
		ss += (v - m) * (v - m)
	}
	return ss
}

func variance(x []float64) float64 {
	v, err := mstats.SampleVariance(x)
	if err != nil || math.IsNaN(v) {
		return 0
	}
	return v
}

func clamp(p float64) float64 {
	if math.IsNaN(p) {
		return 1
	}
	return math.Max(0, math.Min(1, p))
}
