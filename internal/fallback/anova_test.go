package fallback

import (
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"statguide/domain/core"
	"statguide/domain/stats"
)

func assertAdditive(t *testing.T, table stats.ANOVATable) {
	t.Helper()
	sum := table.FactorA.SS + table.FactorB.SS + table.Interaction.SS + table.Error.SS
	if table.Total.SS == 0 {
		assert.Zero(t, sum)
	} else {
		assert.LessOrEqual(t, math.Abs(table.Total.SS-sum), 1e-6*table.Total.SS, "SS additivity")
	}
	assert.Equal(t, table.Total.DF, table.FactorA.DF+table.FactorB.DF+table.Interaction.DF+table.Error.DF, "DF additivity")
}

func TestTwoWay_MinimalDesign(t *testing.T) {
	engine := NewANOVAEngine(nil)
	table, err := engine.TwoWay(
		[]float64{1, 2, 3, 4},
		[]string{"A", "A", "B", "B"},
		[]string{"X", "Y", "X", "Y"},
	)
	require.NoError(t, err)

	assert.InDelta(t, 2.5, table.GrandMean, 1e-12)
	assert.Equal(t, map[string]float64{"A": 1.5, "B": 3.5}, table.FactorAMeans)
	assert.Equal(t, map[string]float64{"X": 2, "Y": 3}, table.FactorBMeans)
	assert.InDelta(t, 4.0, table.FactorA.SS, 1e-12)
	assert.InDelta(t, 1.0, table.FactorB.SS, 1e-12)
	assert.InDelta(t, 0.0, table.Interaction.SS, 1e-12)
	assert.Equal(t, 0, table.Error.DF)

	// no residual degrees of freedom: F is 0 by convention
	assert.Zero(t, table.FactorA.F)
	assert.Equal(t, stats.BucketNotSignificant, table.FactorA.PValue)
	assert.Equal(t, stats.StrategyLocal, table.Strategy)
	assert.True(t, table.Balanced)
	assertAdditive(t, table)
}

func interactionDesign() ([]float64, []string, []string) {
	values := []float64{10, 11, 12, 20, 21, 22, 20, 21, 22, 10, 11, 12}
	a := []string{"a1", "a1", "a1", "a1", "a1", "a1", "a2", "a2", "a2", "a2", "a2", "a2"}
	b := []string{"b1", "b1", "b1", "b2", "b2", "b2", "b1", "b1", "b1", "b2", "b2", "b2"}
	return values, a, b
}

func TestTwoWay_InteractionAndSimpleEffects(t *testing.T) {
	values, a, b := interactionDesign()
	table, err := NewANOVAEngine(nil).TwoWay(values, a, b)
	require.NoError(t, err)

	assert.InDelta(t, 0, table.FactorA.SS, 1e-9)
	assert.InDelta(t, 0, table.FactorB.SS, 1e-9)
	assert.InDelta(t, 300, table.Interaction.SS, 1e-9)
	assert.InDelta(t, 8, table.Error.SS, 1e-9)
	assert.Equal(t, 8, table.Error.DF)
	assert.InDelta(t, 300, table.Interaction.F, 1e-9)
	assert.Equal(t, stats.BucketHighlySignificant, table.Interaction.PValue)
	assert.InDelta(t, 300.0/308.0, table.Interaction.EtaSquared, 1e-12)
	assert.InDelta(t, 300.0/308.0, table.Interaction.PartialEtaSquared, 1e-12)
	assert.InDelta(t, 11, table.CellMeans["a1"]["b1"], 1e-12)
	assertAdditive(t, table)

	require.Len(t, table.SimpleEffects, 4)
	first := table.SimpleEffects[0]
	assert.Equal(t, "A", first.Effect)
	assert.Equal(t, "b1", first.Level)
	assert.InDelta(t, 150, first.Result.F, 1e-9)
}

func TestTwoWay_NoInteractionSkipsSimpleEffects(t *testing.T) {
	values := []float64{1, 2, 3, 4, 2, 3, 4, 5, 3, 4, 5, 6}
	a := []string{"p", "p", "q", "q", "p", "p", "q", "q", "p", "p", "q", "q"}
	b := []string{"u", "v", "u", "v", "u", "v", "u", "v", "u", "v", "u", "v"}

	table, err := NewANOVAEngine(nil).TwoWay(values, a, b)
	require.NoError(t, err)
	assert.Empty(t, table.SimpleEffects)
	assertAdditive(t, table)
}

func TestTwoWay_Unbalanced(t *testing.T) {
	values := []float64{4, 5, 6, 9, 2, 8, 7, 3, 10}
	a := []string{"a1", "a1", "a1", "a1", "a1", "a2", "a2", "a2", "a2"}
	b := []string{"b1", "b1", "b1", "b1", "b2", "b1", "b2", "b2", "b2"}

	table, err := NewANOVAEngine(nil).TwoWay(values, a, b)
	require.NoError(t, err)
	assert.InDelta(t, table.WithinCellSS, table.Error.SS, 1e-9)
	if !table.Balanced {
		assert.NotEmpty(t, table.Issues)
	}
	assert.GreaterOrEqual(t, table.Interaction.SS, 0.0)
	assertAdditive(t, table)
}

func TestTwoWay_ConfoundedUnbalanced(t *testing.T) {
	// heavy cells on the diagonal, single observations off it: A and B
	// marginal sums of squares overlap almost entirely
	values := []float64{10, 10, 10, 10, 11, 20, 20, 20, 20, 21, 15, 15}
	a := []string{"a1", "a1", "a1", "a1", "a1", "a2", "a2", "a2", "a2", "a2", "a1", "a2"}
	b := []string{"b1", "b1", "b1", "b1", "b1", "b2", "b2", "b2", "b2", "b2", "b2", "b1"}

	table, err := NewANOVAEngine(nil).TwoWay(values, a, b)
	require.NoError(t, err)

	assert.False(t, table.Balanced)
	require.NotEmpty(t, table.Issues)
	assert.Contains(t, table.Issues[0], "sequential")
	assert.InDelta(t, 251.6666666667, table.Total.SS, 1e-6)
	assert.InDelta(t, 208.3333333333, table.FactorA.SS, 1e-6)
	assert.InDelta(t, 41.6666666667, table.FactorB.SS, 1e-6)
	assert.InDelta(t, 0.0666666667, table.Interaction.SS, 1e-6)
	assert.InDelta(t, 1.6, table.Error.SS, 1e-9)
	assert.Equal(t, 1, table.Interaction.DF)
	assert.Equal(t, 8, table.Error.DF)
	assertAdditive(t, table)
}

func TestTwoWay_EmptyCell(t *testing.T) {
	values := []float64{1, 2, 3, 4, 5, 6, 7, 8, 9}
	a := []string{"a1", "a1", "a1", "a1", "a2", "a2", "a2", "a2", "a2"}
	b := []string{"b1", "b1", "b2", "b2", "b1", "b1", "b2", "b3", "b3"}

	table, err := NewANOVAEngine(nil).TwoWay(values, a, b)
	require.NoError(t, err)

	assert.False(t, table.Balanced)
	assert.Equal(t, 1, table.FactorA.DF)
	assert.Equal(t, 2, table.FactorB.DF)
	assert.Equal(t, 1, table.Interaction.DF)
	assert.Equal(t, 4, table.Error.DF)
	assertAdditive(t, table)
}

func TestTwoWay_Validation(t *testing.T) {
	engine := NewANOVAEngine(nil)
	tests := []struct {
		name   string
		values []float64
		a, b   []string
		target error
	}{
		{"length mismatch", []float64{1, 2, 3}, []string{"a", "b"}, []string{"x", "y", "x"}, core.ErrLengthMismatch},
		{"too small", []float64{1, 2}, []string{"a", "b"}, []string{"x", "y"}, core.ErrInsufficientSample},
		{"single level", []float64{1, 2, 3}, []string{"a", "a", "a"}, []string{"x", "y", "x"}, core.ErrTooFewLevels},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := engine.TwoWay(tt.values, tt.a, tt.b)
			require.Error(t, err)
			assert.True(t, errors.Is(err, tt.target))
			assert.True(t, core.IsValidationError(err))
		})
	}
}

func TestOneWay(t *testing.T) {
	groups := []stats.Sample{
		{Name: "g1", Values: []float64{1, 2, 3}},
		{Name: "g2", Values: []float64{4, 5, 6}},
		{Name: "g3", Values: []float64{7, 8, 9}},
	}
	res, err := NewANOVAEngine(nil).OneWay(groups)
	require.NoError(t, err)

	assert.InDelta(t, 54, res.SSBetween, 1e-9)
	assert.InDelta(t, 6, res.SSWithin, 1e-9)
	assert.InDelta(t, 27, res.F, 1e-9)
	assert.Equal(t, stats.BucketVerySignificant, res.PValue)
	assert.InDelta(t, 0.9, res.EtaSquared, 1e-12)
	assert.Len(t, res.Groups, 3)
}

type failingSignificance struct{ Tables }

func (failingSignificance) Strategy() stats.Strategy { return stats.StrategyBackend }

func (failingSignificance) UpperF(f, df1, df2 float64) (float64, error) {
	return 0, core.NewBackendError("test", errors.New("connection refused"))
}

func (failingSignificance) TwoSidedT(t, df float64) (float64, error) {
	return 0, core.NewBackendError("test", errors.New("connection refused"))
}

func TestSignificanceErrorsPropagate(t *testing.T) {
	values, a, b := interactionDesign()
	_, err := NewANOVAEngine(failingSignificance{}).TwoWay(values, a, b)
	require.Error(t, err)
	assert.True(t, core.IsBackendError(err))

	_, err = NewCorrelationEngine(failingSignificance{}).Pearson([]float64{1, 2, 3, 4}, []float64{2, 1, 4, 3})
	assert.True(t, core.IsBackendError(err))
}
