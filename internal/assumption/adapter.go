// Package assumption wraps normality and variance-homogeneity checks into
// uniform results. Exact tests come from the statistics backend; without one
// the adapter reports a coarse table-based approximation.
package assumption

import (
	"context"
	"fmt"
	"math"
	"strconv"

	"github.com/montanaflynn/stats"

	"statguide/domain/assumption"
	domainstats "statguide/domain/stats"
	"statguide/internal"
	"statguide/internal/critical"
	"statguide/internal/fallback"
	"statguide/internal/profiling"
	"statguide/ports"
)

// Local approximation test names
const (
	TestJarqueBera     = "Jarque-Bera (approximate)"
	TestBrownForsythe  = "Brown-Forsythe (approximate)"
	minNormalitySample = 3
	reliableSample     = 20
)

// Adapter runs assumption checks. A nil backend always uses the local approximation.
type Adapter struct {
	backend ports.StatsBackend
	logger  *internal.Logger
}

// NewAdapter creates an adapter over an optional backend
func NewAdapter(backend ports.StatsBackend, logger *internal.Logger) *Adapter {
	if logger == nil {
		logger = internal.DefaultLogger
	}
	return &Adapter{backend: backend, logger: logger.With("Assumptions")}
}

// Normality checks whether a sample plausibly comes from a normal distribution
func (a *Adapter) Normality(ctx context.Context, variable string, sample []float64) assumption.NormalityResult {
	n := len(sample)
	if n < minNormalitySample {
		return assumption.NormalityResult{
			Variable: variable,
			Test:     assumption.NotApplicable,
			N:        n,
			Strategy: domainstats.StrategyLocal,
			Note:     fmt.Sprintf("normality test needs at least %d observations, got %d", minNormalitySample, n),
		}
	}

	lo, _ := stats.Min(sample)
	hi, _ := stats.Max(sample)
	if lo == hi {
		return assumption.NormalityResult{
			Variable: variable,
			Test:     assumption.NotApplicable,
			N:        n,
			Strategy: domainstats.StrategyLocal,
			Note:     "sample has zero variance: every value equals " + strconv.FormatFloat(lo, 'g', -1, 64),
		}
	}

	if a.backend != nil {
		resp, err := a.backend.Run(ctx, ports.BackendRequest{
			Test:    ports.BackendNormality,
			Samples: [][]float64{sample},
			Labels:  []string{variable},
		})
		if err == nil {
			p := clamp(resp.PValue)
			return assumption.NormalityResult{
				Variable:  variable,
				Test:      testName(resp.Test, "normality"),
				Statistic: resp.Statistic,
				PValue:    p,
				IsNormal:  p > assumption.Alpha,
				N:         n,
				Strategy:  domainstats.StrategyBackend,
			}
		}
		a.logger.Warn("normality backend failed for %s, using local approximation: %v", variable, err)
	}
	return localNormality(variable, sample)
}

// JarqueBera returns n/6·(g1² + g2²/4)
func JarqueBera(sample []float64) float64 {
	skew, kurt := profiling.Moments(sample)
	return float64(len(sample)) / 6 * (skew*skew + kurt*kurt/4)
}

func localNormality(variable string, sample []float64) assumption.NormalityResult {
	jb := JarqueBera(sample)
	p := critical.ChiSquareBucket(jb, 2)
	res := assumption.NormalityResult{
		Variable:  variable,
		Test:      TestJarqueBera,
		Statistic: jb,
		PValue:    p,
		IsNormal:  p > assumption.Alpha,
		N:         len(sample),
		Strategy:  domainstats.StrategyLocal,
	}
	if len(sample) < reliableSample {
		res.Note = "approximation is unreliable for small samples"
	}
	return res
}

// Homogeneity checks whether groups share a common variance. It needs at least
// two groups with two observations each.
func (a *Adapter) Homogeneity(ctx context.Context, groups []domainstats.Sample) assumption.HomogeneityResult {
	names := make([]string, len(groups))
	for i, g := range groups {
		names[i] = g.Name
	}
	degraded := assumption.HomogeneityResult{
		Variables:  names,
		Test:       assumption.NotApplicable,
		GroupCount: len(groups),
		Strategy:   domainstats.StrategyLocal,
	}
	if len(groups) < 2 {
		degraded.Note = "homogeneity test needs at least two groups"
		return degraded
	}
	for _, g := range groups {
		if len(g.Values) < 2 {
			degraded.Note = fmt.Sprintf("group %q has fewer than two observations", g.Name)
			return degraded
		}
	}

	if a.backend != nil {
		samples := make([][]float64, len(groups))
		for i, g := range groups {
			samples[i] = g.Values
		}
		resp, err := a.backend.Run(ctx, ports.BackendRequest{
			Test:    ports.BackendHomogeneity,
			Samples: samples,
			Labels:  names,
		})
		if err == nil {
			p := clamp(resp.PValue)
			return assumption.HomogeneityResult{
				Variables:     names,
				Test:          testName(resp.Test, "homogeneity"),
				Statistic:     resp.Statistic,
				PValue:        p,
				GroupCount:    len(groups),
				IsHomogeneous: p > assumption.Alpha,
				Strategy:      domainstats.StrategyBackend,
			}
		}
		a.logger.Warn("homogeneity backend failed, using local approximation: %v", err)
	}
	return localHomogeneity(names, groups)
}

// BrownForsythe is Levene's statistic on absolute deviations from group medians
func BrownForsythe(groups []domainstats.Sample) (domainstats.OneWayResult, error) {
	deviations := make([]domainstats.Sample, len(groups))
	for i, g := range groups {
		med, _ := stats.Median(g.Values)
		d := make([]float64, len(g.Values))
		for j, v := range g.Values {
			d[j] = math.Abs(v - med)
		}
		deviations[i] = domainstats.Sample{Name: g.Name, Values: d}
	}
	return fallback.NewANOVAEngine(fallback.NewTables()).OneWay(deviations)
}

func localHomogeneity(names []string, groups []domainstats.Sample) assumption.HomogeneityResult {
	res := assumption.HomogeneityResult{
		Variables:  names,
		Test:       TestBrownForsythe,
		GroupCount: len(groups),
		Strategy:   domainstats.StrategyLocal,
	}
	ow, err := BrownForsythe(groups)
	if err != nil {
		res.Test = assumption.NotApplicable
		res.Note = err.Error()
		return res
	}
	res.Statistic = ow.F
	res.PValue = ow.PValue
	res.IsHomogeneous = ow.PValue > assumption.Alpha
	return res
}

func testName(reported, fallbackName string) string {
	if reported == "" {
		return fallbackName
	}
	return reported
}

func clamp(p float64) float64 {
	if math.IsNaN(p) {
		return 0
	}
	return math.Max(0, math.Min(1, p))
}
