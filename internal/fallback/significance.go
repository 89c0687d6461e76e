// Package fallback computes the menu of statistical tests without an external
// statistics service. Significance is delegated to an injected Significance;
// the default Tables implementation returns ordinal buckets from small
// critical-value tables.
package fallback

import (
	"math"

	"statguide/domain/stats"
	"statguide/internal/critical"
)

// Significance turns a test statistic into a p-value. Implementations backed
// by a remote service may fail; Tables never does.
type Significance interface {
	Strategy() stats.Strategy
	TwoSidedT(t, df float64) (float64, error)
	UpperF(f, df1, df2 float64) (float64, error)
	UpperChiSquare(x, df float64) (float64, error)
	TwoSidedZ(z float64) (float64, error)
}

// Tables is the local coarse approximation. p-values are one of
// {0.5, 0.025, 0.005, 0.0001} and must be read as significance bands.
type Tables struct{}

// NewTables returns the table-based significance source
func NewTables() Tables { return Tables{} }

func (Tables) Strategy() stats.Strategy { return stats.StrategyLocal }

func (Tables) TwoSidedT(t, df float64) (float64, error) {
	return critical.TBucket(t, dfIndex(df)), nil
}

func (Tables) UpperF(f, df1, df2 float64) (float64, error) {
	return critical.FBucket(f, dfIndex(df1), dfIndex(df2)), nil
}

func (Tables) UpperChiSquare(x, df float64) (float64, error) {
	return critical.ChiSquareBucket(x, dfIndex(df)), nil
}

func (Tables) TwoSidedZ(z float64) (float64, error) {
	return critical.ZBucket(z), nil
}

// dfIndex floors fractional degrees of freedom (Welch) to a table row
func dfIndex(df float64) int {
	if math.IsNaN(df) || df < 1 {
		return 0
	}
	return int(math.Floor(df))
}

// clampP keeps a p-value inside [0, 1] and maps NaN to 1
func clampP(p float64) float64 {
	switch {
	case math.IsNaN(p):
		return 1
	case p < 0:
		return 0
	case p > 1:
		return 1
	}
	return p
}
