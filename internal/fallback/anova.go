package fallback

import (
	"fmt"
	"math"

	"statguide/domain/core"
	"statguide/domain/stats"
)

// ssTolerance is the relative tolerance for sum-of-squares agreement
const ssTolerance = 1e-9

const (
	backfitIterations = 10000
	backfitTolerance  = 1e-13
)

// ANOVAEngine computes one-way and two-way analyses of variance
type ANOVAEngine struct {
	sig Significance
}

// NewANOVAEngine creates an engine. A nil Significance uses Tables.
func NewANOVAEngine(sig Significance) *ANOVAEngine {
	if sig == nil {
		sig = NewTables()
	}
	return &ANOVAEngine{sig: sig}
}

type levelStat struct {
	n   int
	sum float64
}

func (l levelStat) mean() float64 { return l.sum / float64(l.n) }

// TwoWay runs a two-way ANOVA with interaction. values, factorA and factorB
// are parallel arrays; each factor needs at least two levels.
func (e *ANOVAEngine) TwoWay(values []float64, factorA, factorB []string) (stats.ANOVATable, error) {
	n := len(values)
	if len(factorA) != n {
		return stats.ANOVATable{}, core.NewLengthMismatchError("factor A", n, len(factorA))
	}
	if len(factorB) != n {
		return stats.ANOVATable{}, core.NewLengthMismatchError("factor B", n, len(factorB))
	}
	if n < 3 {
		return stats.ANOVATable{}, core.NewInsufficientSampleError("two-way ANOVA", 3, n)
	}

	levelsA, statA := tally(values, factorA)
	levelsB, statB := tally(values, factorB)
	if len(levelsA) < 2 {
		return stats.ANOVATable{}, fmt.Errorf("%w: factor A has %d level(s)", core.ErrTooFewLevels, len(levelsA))
	}
	if len(levelsB) < 2 {
		return stats.ANOVATable{}, fmt.Errorf("%w: factor B has %d level(s)", core.ErrTooFewLevels, len(levelsB))
	}

	cells := make(map[string]map[string]*levelStat, len(levelsA))
	for i, v := range values {
		row, ok := cells[factorA[i]]
		if !ok {
			row = make(map[string]*levelStat)
			cells[factorA[i]] = row
		}
		c, ok := row[factorB[i]]
		if !ok {
			c = &levelStat{}
			row[factorB[i]] = c
		}
		c.n++
		c.sum += v
	}

	grand := mean(values)
	table := stats.ANOVATable{
		N:            n,
		GrandMean:    grand,
		FactorAMeans: make(map[string]float64, len(levelsA)),
		FactorBMeans: make(map[string]float64, len(levelsB)),
		CellMeans:    make(map[string]map[string]float64, len(levelsA)),
		Balanced:     true,
		Strategy:     e.sig.Strategy(),
	}

	var ssA, ssB, ssAB float64
	for _, a := range levelsA {
		m := statA[a].mean()
		table.FactorAMeans[a] = m
		ssA += float64(statA[a].n) * (m - grand) * (m - grand)
	}
	for _, b := range levelsB {
		m := statB[b].mean()
		table.FactorBMeans[b] = m
		ssB += float64(statB[b].n) * (m - grand) * (m - grand)
	}
	for _, a := range levelsA {
		table.CellMeans[a] = make(map[string]float64)
		for _, b := range levelsB {
			c, ok := cells[a][b]
			if !ok {
				continue
			}
			cm := c.mean()
			table.CellMeans[a][b] = cm
			expected := grand + (table.FactorAMeans[a] - grand) + (table.FactorBMeans[b] - grand)
			ssAB += float64(c.n) * (cm - expected) * (cm - expected)
		}
	}

	ssTotal := sumSquares(values, grand)
	var ssWithin float64
	for i, v := range values {
		d := v - table.CellMeans[factorA[i]][factorB[i]]
		ssWithin += d * d
	}
	table.WithinCellSS = ssWithin

	ssError := ssTotal - ssA - ssB - ssAB
	if math.Abs(ssError-ssWithin) > ssTolerance*math.Max(1, ssTotal) {
		// Marginal sums of squares overlap in unbalanced designs. Switch to
		// sequential sums of squares: A first, then B adjusted for A, then the
		// interaction as whatever the cell means add beyond the additive fit.
		table.Balanced = false
		table.Issues = append(table.Issues, "unbalanced design: sequential (type I) sums of squares are reported, factor A entered first; error term uses the within-cell sum of squares")
		ssCells := ssTotal - ssWithin
		ssAdditive := additiveFitSS(cells, levelsA, levelsB, grand)
		ssB = math.Max(0, ssAdditive-ssA)
		ssAB = math.Max(0, ssCells-ssA-ssB)
		ssError = ssWithin
	}
	if ssError < 0 {
		ssError = 0
	}

	filled, components := cellLayout(cells, levelsA, levelsB)
	dfA := len(levelsA) - 1
	dfB := len(levelsB) - components
	dfAB := filled - len(levelsA) - len(levelsB) + components
	dfError := n - filled
	if filled < len(levelsA)*len(levelsB) {
		table.Issues = append(table.Issues, fmt.Sprintf("%d of %d cells are empty: interaction degrees of freedom reduced to %d", len(levelsA)*len(levelsB)-filled, len(levelsA)*len(levelsB), dfAB))
	}

	table.Error = stats.ErrorRow{SS: ssError, DF: dfError}
	if dfError > 0 {
		table.Error.MS = ssError / float64(dfError)
	} else {
		table.Issues = append(table.Issues, "no residual degrees of freedom: F-ratios are reported as 0")
	}
	table.Total = stats.TotalRow{SS: ssTotal, DF: n - 1}

	var err error
	if table.FactorA, err = e.effectRow(ssA, dfA, table.Error, ssTotal); err != nil {
		return stats.ANOVATable{}, err
	}
	if table.FactorB, err = e.effectRow(ssB, dfB, table.Error, ssTotal); err != nil {
		return stats.ANOVATable{}, err
	}
	if table.Interaction, err = e.effectRow(ssAB, dfAB, table.Error, ssTotal); err != nil {
		return stats.ANOVATable{}, err
	}

	if table.Interaction.F > 0 && table.Interaction.PValue < 0.05 {
		table.SimpleEffects = e.simpleEffects(values, factorA, factorB, levelsA, levelsB)
	}
	return table, nil
}

// additiveFitSS returns the model sum of squares of the main-effects-only fit
// y = mu + alpha[a] + beta[b], solved by backfitting over the cell means.
// The fitted values are unique even when the effects themselves are not.
func additiveFitSS(cells map[string]map[string]*levelStat, levelsA, levelsB []string, grand float64) float64 {
	alpha := make(map[string]float64, len(levelsA))
	beta := make(map[string]float64, len(levelsB))
	for iter := 0; iter < backfitIterations; iter++ {
		var shift float64
		for _, a := range levelsA {
			var sum float64
			var n int
			for _, b := range levelsB {
				if c, ok := cells[a][b]; ok {
					sum += float64(c.n) * (c.mean() - grand - beta[b])
					n += c.n
				}
			}
			next := sum / float64(n)
			shift = math.Max(shift, math.Abs(next-alpha[a]))
			alpha[a] = next
		}
		for _, b := range levelsB {
			var sum float64
			var n int
			for _, a := range levelsA {
				if c, ok := cells[a][b]; ok {
					sum += float64(c.n) * (c.mean() - grand - alpha[a])
					n += c.n
				}
			}
			next := sum / float64(n)
			shift = math.Max(shift, math.Abs(next-beta[b]))
			beta[b] = next
		}
		if shift <= backfitTolerance*math.Max(1, math.Abs(grand)) {
			break
		}
	}

	var ss float64
	for _, a := range levelsA {
		for _, b := range levelsB {
			if c, ok := cells[a][b]; ok {
				d := alpha[a] + beta[b]
				ss += float64(c.n) * d * d
			}
		}
	}
	return ss
}

// cellLayout counts non-empty cells and the connected components of the
// level graph, where an A level and a B level are joined by a non-empty cell.
func cellLayout(cells map[string]map[string]*levelStat, levelsA, levelsB []string) (filled, components int) {
	parent := make(map[string]string, len(levelsA)+len(levelsB))
	var find func(string) string
	find = func(k string) string {
		for parent[k] != k {
			parent[k] = parent[parent[k]]
			k = parent[k]
		}
		return k
	}
	for _, a := range levelsA {
		parent["A:"+a] = "A:" + a
	}
	for _, b := range levelsB {
		parent["B:"+b] = "B:" + b
	}
	components = len(levelsA) + len(levelsB)
	for _, a := range levelsA {
		for _, b := range levelsB {
			if _, ok := cells[a][b]; !ok {
				continue
			}
			filled++
			ra, rb := find("A:"+a), find("B:"+b)
			if ra != rb {
				parent[ra] = rb
				components--
			}
		}
	}
	return filled, components
}

func (e *ANOVAEngine) effectRow(ss float64, df int, errRow stats.ErrorRow, ssTotal float64) (stats.EffectRow, error) {
	row := stats.EffectRow{SS: ss, DF: df, PValue: e.notSignificant()}
	if df > 0 {
		row.MS = ss / float64(df)
	}
	if ssTotal > 0 {
		row.EtaSquared = ss / ssTotal
	}
	if denom := ss + errRow.SS; denom > 0 {
		row.PartialEtaSquared = ss / denom
	}
	if errRow.DF <= 0 || errRow.MS == 0 || df == 0 {
		return row, nil
	}
	row.F = row.MS / errRow.MS
	p, err := e.sig.UpperF(row.F, float64(df), float64(errRow.DF))
	if err != nil {
		return stats.EffectRow{}, err
	}
	row.PValue = clampP(p)
	return row, nil
}

// simpleEffects runs one-way ANOVAs of each factor within every level of the
// other. Levels without enough data for a one-way ANOVA are skipped.
func (e *ANOVAEngine) simpleEffects(values []float64, factorA, factorB, levelsA, levelsB []string) []stats.SimpleEffect {
	var out []stats.SimpleEffect
	run := func(effect, within string, levels []string, held, varying []string) {
		for _, level := range levels {
			var sub []float64
			var labels []string
			for i := range values {
				if held[i] == level {
					sub = append(sub, values[i])
					labels = append(labels, varying[i])
				}
			}
			res, err := e.OneWay(GroupBy(sub, labels))
			if err != nil {
				continue
			}
			out = append(out, stats.SimpleEffect{Effect: effect, Within: within, Level: level, Result: res})
		}
	}
	run("A", "B", levelsB, factorB, factorA)
	run("B", "A", levelsA, factorA, factorB)
	return out
}

// OneWay runs a one-way ANOVA across the groups
func (e *ANOVAEngine) OneWay(groups []stats.Sample) (stats.OneWayResult, error) {
	if len(groups) < 2 {
		return stats.OneWayResult{}, fmt.Errorf("%w: one-way ANOVA has %d group(s)", core.ErrTooFewLevels, len(groups))
	}
	for _, g := range groups {
		if len(g.Values) == 0 {
			return stats.OneWayResult{}, core.NewValidationError(g.Name, "group is empty")
		}
	}
	all := Pool(groups)
	k, n := len(groups), len(all)
	if n <= k {
		return stats.OneWayResult{}, core.NewInsufficientSampleError("one-way ANOVA", k+1, n)
	}

	grand := mean(all)
	res := stats.OneWayResult{
		DFBetween: k - 1,
		DFWithin:  n - k,
		Groups:    Summarize(groups),
		Strategy:  e.sig.Strategy(),
		PValue:    e.notSignificant(),
	}
	for _, g := range groups {
		m := mean(g.Values)
		res.SSBetween += float64(len(g.Values)) * (m - grand) * (m - grand)
		res.SSWithin += sumSquares(g.Values, m)
	}
	res.MSBetween = res.SSBetween / float64(res.DFBetween)
	res.MSWithin = res.SSWithin / float64(res.DFWithin)
	if total := res.SSBetween + res.SSWithin; total > 0 {
		res.EtaSquared = res.SSBetween / total
	}
	if res.MSWithin == 0 {
		return res, nil
	}
	res.F = res.MSBetween / res.MSWithin
	p, err := e.sig.UpperF(res.F, float64(res.DFBetween), float64(res.DFWithin))
	if err != nil {
		return stats.OneWayResult{}, err
	}
	res.PValue = clampP(p)
	return res, nil
}

// notSignificant is the p-value reported when no test statistic can be formed
func (e *ANOVAEngine) notSignificant() float64 {
	return neutralP(e.sig)
}

func neutralP(sig Significance) float64 {
	if sig.Strategy().IsApproximate() {
		return stats.BucketNotSignificant
	}
	return 1
}

// tally groups values by label in first-appearance order
func tally(values []float64, labels []string) ([]string, map[string]levelStat) {
	var order []string
	acc := make(map[string]levelStat)
	for i, v := range values {
		l, ok := acc[labels[i]]
		if !ok {
			order = append(order, labels[i])
		}
		l.n++
		l.sum += v
		acc[labels[i]] = l
	}
	return order, acc
}
