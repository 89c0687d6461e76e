package fallback

import (
	"math"

	"statguide/domain/core"
	"statguide/domain/stats"
	"statguide/internal/interpret"
)

// perfectTolerance treats |r| within this distance of 1 as a perfect correlation
const perfectTolerance = 1e-12

// kendallExactLimit is the largest n for which Kendall's tau uses the
// t-approximation instead of the normal z-approximation
const kendallExactLimit = 10

// CorrelationEngine computes the Pearson, Spearman, Kendall and partial
// correlation coefficients
type CorrelationEngine struct {
	sig Significance
}

// NewCorrelationEngine creates an engine. A nil Significance uses Tables.
func NewCorrelationEngine(sig Significance) *CorrelationEngine {
	if sig == nil {
		sig = NewTables()
	}
	return &CorrelationEngine{sig: sig}
}

// Compute dispatches to the two-variable method
func (e *CorrelationEngine) Compute(method stats.CorrelationMethod, x, y []float64) (stats.CorrelationResult, error) {
	switch method {
	case stats.Pearson:
		return e.Pearson(x, y)
	case stats.Spearman:
		return e.Spearman(x, y)
	case stats.Kendall:
		return e.Kendall(x, y)
	default:
		return stats.CorrelationResult{}, core.NewValidationError("method", "unsupported pairwise correlation method "+string(method))
	}
}

func validatePair(what string, x, y []float64, min int) error {
	if len(x) != len(y) {
		return core.NewLengthMismatchError(what, len(x), len(y))
	}
	if len(x) < min {
		return core.NewInsufficientSampleError(what, min, len(x))
	}
	return nil
}

// pearsonR returns the product-moment correlation and whether it is defined
// (false when either variable has zero variance)
func pearsonR(x, y []float64) (float64, bool) {
	mx, my := mean(x), mean(y)
	var sxx, syy, sxy float64
	for i := range x {
		dx, dy := x[i]-mx, y[i]-my
		sxx += dx * dx
		syy += dy * dy
		sxy += dx * dy
	}
	if sxx == 0 || syy == 0 {
		return 0, false
	}
	return clampR(sxy / math.Sqrt(sxx*syy)), true
}

func clampR(r float64) float64 {
	return math.Max(-1, math.Min(1, r))
}

// Pearson computes the product-moment correlation with a Fisher-z 95%
// confidence interval when n > 3
func (e *CorrelationEngine) Pearson(x, y []float64) (stats.CorrelationResult, error) {
	if err := validatePair("pearson", x, y, 3); err != nil {
		return stats.CorrelationResult{}, err
	}
	r, ok := pearsonR(x, y)
	res, err := e.fromR(stats.Pearson, r, ok, len(x), len(x)-2)
	if err != nil {
		return stats.CorrelationResult{}, err
	}
	if ok && len(x) > 3 {
		res.ConfidenceInterval = FisherInterval(r, len(x), 0.95)
	}
	return res, nil
}

// Spearman computes the rank correlation 1 - 6Σd²/(n(n²-1)) on midranks
func (e *CorrelationEngine) Spearman(x, y []float64) (stats.CorrelationResult, error) {
	if err := validatePair("spearman", x, y, 3); err != nil {
		return stats.CorrelationResult{}, err
	}
	rx, ry := Rank(x), Rank(y)
	if _, ok := pearsonR(rx, ry); !ok {
		return e.fromR(stats.Spearman, 0, false, len(x), len(x)-2)
	}
	n := float64(len(x))
	var d2 float64
	for i := range rx {
		d := rx[i] - ry[i]
		d2 += d * d
	}
	rho := clampR(1 - 6*d2/(n*(n*n-1)))
	return e.fromR(stats.Spearman, rho, true, len(x), len(x)-2)
}

// CountPairs classifies every unordered pair. A pair tied in both variables
// counts as tied in x.
func CountPairs(x, y []float64) stats.KendallCounts {
	n := len(x)
	if len(y) < n {
		n = len(y)
	}
	c := stats.KendallCounts{TotalPairs: n * (n - 1) / 2}
	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			dx := x[i] - x[j]
			dy := y[i] - y[j]
			switch {
			case dx == 0:
				c.TiesX++
			case dy == 0:
				c.TiesY++
			case (dx > 0) == (dy > 0):
				c.Concordant++
			default:
				c.Discordant++
			}
		}
	}
	return c
}

// Kendall computes tau = (C - D) / total pairs. Significance uses the normal
// approximation for n > 10 and the t-approximation otherwise.
func (e *CorrelationEngine) Kendall(x, y []float64) (stats.CorrelationResult, error) {
	if err := validatePair("kendall", x, y, 3); err != nil {
		return stats.CorrelationResult{}, err
	}
	counts := CountPairs(x, y)
	n := len(x)
	tau := clampR(float64(counts.Concordant-counts.Discordant) / float64(counts.TotalPairs))
	defined := counts.Concordant+counts.Discordant > 0

	if n <= kendallExactLimit || !defined {
		res, err := e.fromR(stats.Kendall, tau, defined, n, n-2)
		if err != nil {
			return stats.CorrelationResult{}, err
		}
		res.Kendall = &counts
		return res, nil
	}

	fn := float64(n)
	z := 3 * tau * math.Sqrt(fn*(fn-1)) / math.Sqrt(2*(2*fn+5))
	p, err := e.sig.TwoSidedZ(z)
	if err != nil {
		return stats.CorrelationResult{}, err
	}
	return stats.CorrelationResult{
		Method:         stats.Kendall,
		Correlation:    tau,
		PValue:         clampP(p),
		N:              n,
		DF:             n - 2,
		ZStatistic:     z,
		RSquared:       tau * tau,
		Kendall:        &counts,
		Interpretation: interpret.Correlation(tau),
		Strategy:       e.sig.Strategy(),
	}, nil
}

// Partial computes the correlation of x and y controlling for z from the three
// zero-order Pearson coefficients. df = n - 3.
func (e *CorrelationEngine) Partial(x, y, z []float64) (stats.CorrelationResult, error) {
	if err := validatePair("partial", x, y, 4); err != nil {
		return stats.CorrelationResult{}, err
	}
	if len(z) != len(x) {
		return stats.CorrelationResult{}, core.NewLengthMismatchError("partial control variable", len(x), len(z))
	}
	rxy, okxy := pearsonR(x, y)
	rxz, _ := pearsonR(x, z)
	ryz, _ := pearsonR(y, z)

	denom := (1 - rxz*rxz) * (1 - ryz*ryz)
	if !okxy || denom <= 0 {
		return e.fromR(stats.Partial, 0, false, len(x), len(x)-3)
	}
	r := clampR((rxy - rxz*ryz) / math.Sqrt(denom))
	return e.fromR(stats.Partial, r, true, len(x), len(x)-3)
}

// fromR builds a result whose significance comes from t = r·√(df/(1-r²)).
// Undefined coefficients get a neutral result; |r| = 1 reports t = 0 and the
// strongest significance level.
func (e *CorrelationEngine) fromR(method stats.CorrelationMethod, r float64, defined bool, n, df int) (stats.CorrelationResult, error) {
	res := stats.CorrelationResult{
		Method:         method,
		Correlation:    r,
		N:              n,
		DF:             df,
		RSquared:       r * r,
		Interpretation: interpret.Correlation(r),
		Strategy:       e.sig.Strategy(),
	}
	switch {
	case !defined:
		res.Correlation, res.RSquared = 0, 0
		res.PValue = neutralP(e.sig)
		res.Interpretation = "correlation undefined: a variable has no variation"
		return res, nil
	case 1-math.Abs(r) < perfectTolerance:
		if e.sig.Strategy().IsApproximate() {
			res.PValue = stats.BucketHighlySignificant
		}
		return res, nil
	case df < 1:
		res.PValue = neutralP(e.sig)
		return res, nil
	}
	res.TStatistic = r * math.Sqrt(float64(df)/(1-r*r))
	p, err := e.sig.TwoSidedT(res.TStatistic, float64(df))
	if err != nil {
		return stats.CorrelationResult{}, err
	}
	res.PValue = clampP(p)
	return res, nil
}

// FisherInterval is the Fisher z-transform confidence interval for r
func FisherInterval(r float64, n int, level float64) *stats.Interval {
	if n <= 3 {
		return nil
	}
	crit := 1.96
	switch level {
	case 0.99:
		crit = 2.576
	case 0.999:
		crit = 3.291
	}
	z := math.Atanh(clampR(r))
	se := 1 / math.Sqrt(float64(n-3))
	return &stats.Interval{
		Lower: math.Tanh(z - crit*se),
		Upper: math.Tanh(z + crit*se),
		Level: level,
	}
}
