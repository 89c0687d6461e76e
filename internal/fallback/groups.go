package fallback

import (
	"fmt"
	"math"

	"statguide/domain/core"
	"statguide/domain/method"
	"statguide/domain/stats"
	"statguide/internal/interpret"
)

// GroupEngine runs the comparison and association tests of the method menu
type GroupEngine struct {
	sig   Significance
	anova *ANOVAEngine
}

// NewGroupEngine creates an engine. A nil Significance uses Tables.
func NewGroupEngine(sig Significance) *GroupEngine {
	if sig == nil {
		sig = NewTables()
	}
	return &GroupEngine{sig: sig, anova: NewANOVAEngine(sig)}
}

func (e *GroupEngine) result(kind method.Kind, statistic, p float64, effect *stats.EffectSize, groups []stats.Sample) stats.TestResult {
	p = clampP(p)
	res := stats.TestResult{
		Method:      kind.Slug(),
		Test:        kind.String(),
		Statistic:   statistic,
		PValue:      p,
		Significant: p < 0.05,
		Effect:      effect,
		Strategy:    e.sig.Strategy(),
	}
	if groups != nil {
		res.Groups = Summarize(groups)
	}
	res.Interpretation = interpret.Outcome(res.Test, res.Significant, effect)
	return res
}

func requireGroups(what string, groups []stats.Sample, k, minN int) error {
	if len(groups) < k {
		return fmt.Errorf("%w: %s needs %d groups, got %d", core.ErrTooFewLevels, what, k, len(groups))
	}
	for _, g := range groups {
		if len(g.Values) < minN {
			return core.NewInsufficientSampleError(fmt.Sprintf("%s group %q", what, g.Name), minN, len(g.Values))
		}
	}
	return nil
}

// IndependentT is the pooled-variance two-sample t-test
func (e *GroupEngine) IndependentT(a, b stats.Sample) (stats.TestResult, error) {
	groups := []stats.Sample{a, b}
	if err := requireGroups("independent t-test", groups, 2, 2); err != nil {
		return stats.TestResult{}, err
	}
	n1, n2 := float64(len(a.Values)), float64(len(b.Values))
	m1, m2 := mean(a.Values), mean(b.Values)
	v1, v2 := sampleVariance(a.Values), sampleVariance(b.Values)

	df := n1 + n2 - 2
	pooled := math.Sqrt(((n1-1)*v1 + (n2-1)*v2) / df)
	effect := cohensD(m1-m2, pooled)
	se := pooled * math.Sqrt(1/n1+1/n2)
	if se == 0 {
		res := e.result(method.KindIndependentT, 0, neutralP(e.sig), effect, groups)
		res.DF = df
		return res, nil
	}
	t := (m1 - m2) / se
	p, err := e.sig.TwoSidedT(t, df)
	if err != nil {
		return stats.TestResult{}, err
	}
	res := e.result(method.KindIndependentT, t, p, effect, groups)
	res.DF = df
	res.Fields = map[string]float64{"mean_diff": m1 - m2, "pooled_sd": pooled}
	return res, nil
}

// WelchDF is the Welch-Satterthwaite degrees of freedom
func WelchDF(v1, n1, v2, n2 float64) float64 {
	a, b := v1/n1, v2/n2
	denom := a*a/(n1-1) + b*b/(n2-1)
	if denom == 0 {
		return n1 + n2 - 2
	}
	return (a + b) * (a + b) / denom
}

// WelchT is the unequal-variance two-sample t-test
func (e *GroupEngine) WelchT(a, b stats.Sample) (stats.TestResult, error) {
	groups := []stats.Sample{a, b}
	if err := requireGroups("Welch's t-test", groups, 2, 2); err != nil {
		return stats.TestResult{}, err
	}
	n1, n2 := float64(len(a.Values)), float64(len(b.Values))
	m1, m2 := mean(a.Values), mean(b.Values)
	v1, v2 := sampleVariance(a.Values), sampleVariance(b.Values)

	pooled := math.Sqrt(((n1-1)*v1 + (n2-1)*v2) / (n1 + n2 - 2))
	effect := cohensD(m1-m2, pooled)
	df := WelchDF(v1, n1, v2, n2)
	se := math.Sqrt(v1/n1 + v2/n2)
	if se == 0 {
		res := e.result(method.KindWelchT, 0, neutralP(e.sig), effect, groups)
		res.DF = df
		return res, nil
	}
	t := (m1 - m2) / se
	p, err := e.sig.TwoSidedT(t, df)
	if err != nil {
		return stats.TestResult{}, err
	}
	res := e.result(method.KindWelchT, t, p, effect, groups)
	res.DF = df
	res.Fields = map[string]float64{"mean_diff": m1 - m2, "se": se}
	return res, nil
}

// PairedT tests the mean of within-pair differences a[i] - b[i]
func (e *GroupEngine) PairedT(a, b stats.Sample) (stats.TestResult, error) {
	if len(a.Values) != len(b.Values) {
		return stats.TestResult{}, core.NewLengthMismatchError("paired samples", len(a.Values), len(b.Values))
	}
	n := len(a.Values)
	if n < 2 {
		return stats.TestResult{}, core.NewInsufficientSampleError("paired t-test", 2, n)
	}
	diffs := make([]float64, n)
	for i := range diffs {
		diffs[i] = a.Values[i] - b.Values[i]
	}
	md := mean(diffs)
	sd := math.Sqrt(sampleVariance(diffs))
	df := float64(n - 1)
	groups := []stats.Sample{a, b}

	effect := cohensD(md, sd)
	effect.Name = "Cohen's dz"
	if sd == 0 {
		res := e.result(method.KindPairedT, 0, neutralP(e.sig), effect, groups)
		res.DF = df
		return res, nil
	}
	t := md / (sd / math.Sqrt(float64(n)))
	p, err := e.sig.TwoSidedT(t, df)
	if err != nil {
		return stats.TestResult{}, err
	}
	res := e.result(method.KindPairedT, t, p, effect, groups)
	res.DF = df
	res.Fields = map[string]float64{"mean_diff": md, "sd_diff": sd}
	return res, nil
}

// OneWayANOVA is the classic F-test with eta² and omega²
func (e *GroupEngine) OneWayANOVA(groups []stats.Sample) (stats.TestResult, error) {
	if err := requireGroups("one-way ANOVA", groups, 2, 1); err != nil {
		return stats.TestResult{}, err
	}
	ow, err := e.anova.OneWay(groups)
	if err != nil {
		return stats.TestResult{}, err
	}
	effect := &stats.EffectSize{Name: "eta²", Value: ow.EtaSquared, Magnitude: interpret.EtaSquared(ow.EtaSquared)}
	res := e.result(method.KindOneWayANOVA, ow.F, ow.PValue, effect, groups)
	res.DF, res.DF2 = float64(ow.DFBetween), float64(ow.DFWithin)
	res.Fields = map[string]float64{
		"ss_between":    ow.SSBetween,
		"ss_within":     ow.SSWithin,
		"ms_within":     ow.MSWithin,
		"omega_squared": OmegaSquared(ow.F, ow.DFBetween, ow.DFWithin),
	}
	return res, nil
}

// OmegaSquared estimates omega² from an F ratio, floored at 0
func OmegaSquared(f float64, dfBetween, dfWithin int) float64 {
	if dfBetween <= 0 {
		return 0
	}
	w := (f - 1) / (f + float64(dfWithin+1)/float64(dfBetween))
	return math.Max(0, w)
}

// WelchANOVA is the heteroscedastic one-way ANOVA
func (e *GroupEngine) WelchANOVA(groups []stats.Sample) (stats.TestResult, error) {
	if err := requireGroups("Welch ANOVA", groups, 2, 2); err != nil {
		return stats.TestResult{}, err
	}
	k := float64(len(groups))
	w := make([]float64, len(groups))
	m := make([]float64, len(groups))
	n := make([]float64, len(groups))
	var wSum float64
	for i, g := range groups {
		v := sampleVariance(g.Values)
		n[i] = float64(len(g.Values))
		m[i] = mean(g.Values)
		if v == 0 {
			res := e.result(method.KindWelchANOVA, 0, neutralP(e.sig), nil, groups)
			res.Interpretation = fmt.Sprintf("Welch ANOVA is undefined: group %q has no variance", g.Name)
			return res, nil
		}
		w[i] = n[i] / v
		wSum += w[i]
	}
	var grand float64
	for i := range w {
		grand += w[i] * m[i]
	}
	grand /= wSum

	var num, lambda float64
	for i := range w {
		num += w[i] * (m[i] - grand) * (m[i] - grand)
		r := 1 - w[i]/wSum
		lambda += r * r / (n[i] - 1)
	}
	num /= k - 1
	lambda = 3 * lambda / (k*k - 1)
	f := num / (1 + 2*(k-2)*lambda/(k*k-1))
	df1, df2 := k-1, 1/lambda

	p, err := e.sig.UpperF(f, df1, df2)
	if err != nil {
		return stats.TestResult{}, err
	}
	omega := OmegaSquared(f, int(df1), len(Pool(groups))-len(groups))
	effect := &stats.EffectSize{Name: "omega²", Value: omega, Magnitude: interpret.EtaSquared(omega)}
	res := e.result(method.KindWelchANOVA, f, p, effect, groups)
	res.DF, res.DF2 = df1, df2
	return res, nil
}

// MannWhitney is the rank-sum test with a tie-corrected normal approximation
func (e *GroupEngine) MannWhitney(a, b stats.Sample) (stats.TestResult, error) {
	groups := []stats.Sample{a, b}
	if err := requireGroups("Mann-Whitney U test", groups, 2, 1); err != nil {
		return stats.TestResult{}, err
	}
	n1, n2 := float64(len(a.Values)), float64(len(b.Values))
	all := Pool(groups)
	ranks := Rank(all)
	var r1 float64
	for i := range a.Values {
		r1 += ranks[i]
	}
	u1 := r1 - n1*(n1+1)/2
	u2 := n1*n2 - u1
	u := math.Min(u1, u2)

	rb := 1 - 2*u1/(n1*n2)
	effect := &stats.EffectSize{Name: "rank-biserial r", Value: rb, Magnitude: interpret.RankBiserial(rb)}

	nt := n1 + n2
	sigma2 := n1 * n2 / 12 * ((nt + 1) - tieTerm(all)/(nt*(nt-1)))
	if sigma2 <= 0 {
		return e.result(method.KindMannWhitney, u, neutralP(e.sig), effect, groups), nil
	}
	z := (u1 - n1*n2/2) / math.Sqrt(sigma2)
	p, err := e.sig.TwoSidedZ(z)
	if err != nil {
		return stats.TestResult{}, err
	}
	res := e.result(method.KindMannWhitney, u, p, effect, groups)
	res.Fields = map[string]float64{"u1": u1, "u2": u2, "z": z}
	return res, nil
}

// tieTerm is Σ(t³ - t) over tie groups
func tieTerm(values []float64) float64 {
	var s float64
	for _, t := range tieGroups(values) {
		ft := float64(t)
		s += ft*ft*ft - ft
	}
	return s
}

// Wilcoxon is the signed-rank test on a[i] - b[i]; zero differences are dropped
func (e *GroupEngine) Wilcoxon(a, b stats.Sample) (stats.TestResult, error) {
	if len(a.Values) != len(b.Values) {
		return stats.TestResult{}, core.NewLengthMismatchError("paired samples", len(a.Values), len(b.Values))
	}
	var diffs []float64
	for i := range a.Values {
		if d := a.Values[i] - b.Values[i]; d != 0 {
			diffs = append(diffs, d)
		}
	}
	groups := []stats.Sample{a, b}
	if len(diffs) < 2 {
		return e.result(method.KindWilcoxon, 0, neutralP(e.sig), nil, groups), nil
	}
	abs := make([]float64, len(diffs))
	for i, d := range diffs {
		abs[i] = math.Abs(d)
	}
	ranks := Rank(abs)
	var wPlus, wMinus float64
	for i, d := range diffs {
		if d > 0 {
			wPlus += ranks[i]
		} else {
			wMinus += ranks[i]
		}
	}
	n := float64(len(diffs))
	mu := n * (n + 1) / 4
	sigma2 := n*(n+1)*(2*n+1)/24 - tieTerm(abs)/48
	rb := (wPlus - wMinus) / (wPlus + wMinus)
	effect := &stats.EffectSize{Name: "matched-pairs rank-biserial r", Value: rb, Magnitude: interpret.RankBiserial(rb)}
	if sigma2 <= 0 {
		return e.result(method.KindWilcoxon, math.Min(wPlus, wMinus), neutralP(e.sig), effect, groups), nil
	}
	z := (wPlus - mu) / math.Sqrt(sigma2)
	p, err := e.sig.TwoSidedZ(z)
	if err != nil {
		return stats.TestResult{}, err
	}
	res := e.result(method.KindWilcoxon, math.Min(wPlus, wMinus), p, effect, groups)
	res.Fields = map[string]float64{"w_plus": wPlus, "w_minus": wMinus, "z": z, "n_nonzero": n}
	return res, nil
}

// KruskalWallis is the rank-based one-way test with tie correction
func (e *GroupEngine) KruskalWallis(groups []stats.Sample) (stats.TestResult, error) {
	if err := requireGroups("Kruskal-Wallis test", groups, 2, 1); err != nil {
		return stats.TestResult{}, err
	}
	all := Pool(groups)
	ranks := Rank(all)
	nt := float64(len(all))
	if nt < 3 {
		return stats.TestResult{}, core.NewInsufficientSampleError("Kruskal-Wallis test", 3, len(all))
	}

	var sum float64
	offset := 0
	for _, g := range groups {
		var r float64
		for i := range g.Values {
			r += ranks[offset+i]
		}
		offset += len(g.Values)
		sum += r * r / float64(len(g.Values))
	}
	h := 12/(nt*(nt+1))*sum - 3*(nt+1)
	if c := 1 - tieTerm(all)/(nt*nt*nt-nt); c > 0 {
		h /= c
	} else {
		return e.result(method.KindKruskalWallis, 0, neutralP(e.sig), nil, groups), nil
	}
	df := float64(len(groups) - 1)
	p, err := e.sig.UpperChiSquare(h, df)
	if err != nil {
		return stats.TestResult{}, err
	}
	eps := h / (nt - 1)
	effect := &stats.EffectSize{Name: "epsilon²", Value: eps, Magnitude: interpret.EtaSquared(eps)}
	res := e.result(method.KindKruskalWallis, h, p, effect, groups)
	res.DF = df
	return res, nil
}

// ChiSquare is Pearson's test of independence on two label columns
func (e *GroupEngine) ChiSquare(rows, cols []string) (stats.TestResult, error) {
	if len(rows) != len(cols) {
		return stats.TestResult{}, core.NewLengthMismatchError("contingency labels", len(rows), len(cols))
	}
	rowIdx, colIdx := map[string]int{}, map[string]int{}
	var rowNames, colNames []string
	type key struct{ r, c int }
	counts := map[key]float64{}
	var n float64
	for i := range rows {
		if rows[i] == "" || cols[i] == "" {
			continue
		}
		r, ok := rowIdx[rows[i]]
		if !ok {
			r = len(rowNames)
			rowIdx[rows[i]] = r
			rowNames = append(rowNames, rows[i])
		}
		c, ok := colIdx[cols[i]]
		if !ok {
			c = len(colNames)
			colIdx[cols[i]] = c
			colNames = append(colNames, cols[i])
		}
		counts[key{r, c}]++
		n++
	}
	if len(rowNames) < 2 || len(colNames) < 2 {
		return stats.TestResult{}, fmt.Errorf("%w: contingency table is %dx%d", core.ErrTooFewLevels, len(rowNames), len(colNames))
	}

	rowTot := make([]float64, len(rowNames))
	colTot := make([]float64, len(colNames))
	for k, v := range counts {
		rowTot[k.r] += v
		colTot[k.c] += v
	}
	var chi2 float64
	lowCells := 0
	for r := range rowNames {
		for c := range colNames {
			exp := rowTot[r] * colTot[c] / n
			if exp < 5 {
				lowCells++
			}
			d := counts[key{r, c}] - exp
			chi2 += d * d / exp
		}
	}
	df := float64((len(rowNames) - 1) * (len(colNames) - 1))
	p, err := e.sig.UpperChiSquare(chi2, df)
	if err != nil {
		return stats.TestResult{}, err
	}
	minDim := math.Min(float64(len(rowNames)), float64(len(colNames))) - 1
	v := math.Sqrt(chi2 / (n * minDim))
	effect := &stats.EffectSize{Name: "Cramér's V", Value: v, Magnitude: interpret.RankBiserial(v)}
	res := e.result(method.KindChiSquare, chi2, p, effect, nil)
	res.DF = df
	res.Fields = map[string]float64{"n": n, "low_expected_cells": float64(lowCells)}
	return res, nil
}

// LinearRegression fits y = intercept + slope·x by least squares
func (e *GroupEngine) LinearRegression(x, y []float64) (stats.TestResult, error) {
	if err := validatePair("linear regression", x, y, 3); err != nil {
		return stats.TestResult{}, err
	}
	mx, my := mean(x), mean(y)
	var sxx, sxy float64
	for i := range x {
		sxx += (x[i] - mx) * (x[i] - mx)
		sxy += (x[i] - mx) * (y[i] - my)
	}
	if sxx == 0 {
		return stats.TestResult{}, fmt.Errorf("%w: predictor has no variance", core.ErrComputation)
	}
	slope := sxy / sxx
	intercept := my - slope*mx

	var sse float64
	for i := range x {
		r := y[i] - (intercept + slope*x[i])
		sse += r * r
	}
	sst := sumSquares(y, my)
	r2 := 0.0
	if sst > 0 {
		r2 = math.Max(0, 1-sse/sst)
	}
	df := float64(len(x) - 2)
	effect := &stats.EffectSize{Name: "R²", Value: r2, Magnitude: interpret.CorrelationStrength(math.Sqrt(r2))}

	fields := map[string]float64{"slope": slope, "intercept": intercept, "r_squared": r2}
	seSlope := math.Sqrt(sse / df / sxx)
	var t, p float64
	switch {
	case sst == 0:
		p = neutralP(e.sig)
	case seSlope == 0:
		p = 0
		if e.sig.Strategy().IsApproximate() {
			p = stats.BucketHighlySignificant
		}
	default:
		t = slope / seSlope
		var err error
		if p, err = e.sig.TwoSidedT(t, df); err != nil {
			return stats.TestResult{}, err
		}
		fields["se_slope"] = seSlope
		fields["f_value"] = t * t
	}
	res := e.result(method.KindLinearRegression, t, p, effect, nil)
	res.DF = df
	res.Fields = fields
	return res, nil
}

// Descriptive reports group summaries without an inferential test
func (e *GroupEngine) Descriptive(groups []stats.Sample) stats.TestResult {
	res := stats.TestResult{
		Method:         method.KindDescriptive.Slug(),
		Test:           method.KindDescriptive.String(),
		PValue:         1,
		Groups:         Summarize(groups),
		Interpretation: "No inferential test was run; see the group summaries.",
		Strategy:       e.sig.Strategy(),
	}
	return res
}

func cohensD(diff, sd float64) *stats.EffectSize {
	d := 0.0
	if sd > 0 {
		d = diff / sd
	}
	return &stats.EffectSize{Name: "Cohen's d", Value: d, Magnitude: interpret.CohensD(d)}
}
