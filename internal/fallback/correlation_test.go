package fallback

import (
	"context"
	"errors"
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"statguide/domain/core"
	"statguide/domain/stats"
)

func TestPearson_PerfectLinear(t *testing.T) {
	res, err := NewCorrelationEngine(nil).Pearson([]float64{1, 2, 3, 4, 5}, []float64{2, 4, 6, 8, 10})
	require.NoError(t, err)

	assert.InDelta(t, 1.0, res.Correlation, 1e-12)
	assert.InDelta(t, 1.0, res.RSquared, 1e-12)
	assert.Zero(t, res.TStatistic)
	assert.Equal(t, stats.BucketHighlySignificant, res.PValue)
	require.NotNil(t, res.ConfidenceInterval)
	assert.InDelta(t, 1.0, res.ConfidenceInterval.Upper, 1e-12)
	assert.Equal(t, "very strong positive correlation", res.Interpretation)
}

func TestPearson_Moderate(t *testing.T) {
	res, err := NewCorrelationEngine(nil).Pearson([]float64{1, 2, 3, 4, 5}, []float64{2, 1, 4, 3, 5})
	require.NoError(t, err)

	assert.InDelta(t, 0.8, res.Correlation, 1e-12)
	assert.Equal(t, 3, res.DF)
	assert.InDelta(t, 2.3094, res.TStatistic, 1e-4)
	assert.Equal(t, stats.BucketNotSignificant, res.PValue)
	require.NotNil(t, res.ConfidenceInterval)
	assert.Less(t, res.ConfidenceInterval.Lower, 0.8)
	assert.Greater(t, res.ConfidenceInterval.Upper, 0.8)
}

func TestPearson_Errors(t *testing.T) {
	engine := NewCorrelationEngine(nil)

	_, err := engine.Pearson([]float64{1, 2, 3}, []float64{1, 2})
	assert.True(t, errors.Is(err, core.ErrLengthMismatch))

	_, err = engine.Pearson([]float64{1, 2}, []float64{1, 2})
	assert.True(t, errors.Is(err, core.ErrInsufficientSample))
}

func TestPearson_ZeroVarianceIsNeutral(t *testing.T) {
	res, err := NewCorrelationEngine(nil).Pearson([]float64{3, 3, 3, 3}, []float64{1, 2, 3, 4})
	require.NoError(t, err)
	assert.Zero(t, res.Correlation)
	assert.Equal(t, stats.BucketNotSignificant, res.PValue)
	assert.Nil(t, res.ConfidenceInterval)
}

func TestSpearman(t *testing.T) {
	engine := NewCorrelationEngine(nil)
	res, err := engine.Spearman([]float64{1, 2, 3, 4, 5}, []float64{2, 1, 4, 3, 5})
	require.NoError(t, err)
	assert.InDelta(t, 0.8, res.Correlation, 1e-12)

	// monotone but non-linear
	res, err = engine.Spearman([]float64{1, 2, 3, 4, 5, 6}, []float64{1, 4, 9, 16, 25, 36})
	require.NoError(t, err)
	assert.InDelta(t, 1.0, res.Correlation, 1e-12)
}

func TestRank_Midranks(t *testing.T) {
	assert.Equal(t, []float64{1, 2.5, 2.5, 4}, Rank([]float64{10, 20, 20, 30}))
	assert.Equal(t, []float64{3, 1, 2}, Rank([]float64{5, -1, 0}))
}

func TestKendall_SmallSample(t *testing.T) {
	res, err := NewCorrelationEngine(nil).Kendall([]float64{1, 2, 3, 4, 5}, []float64{2, 1, 4, 3, 5})
	require.NoError(t, err)

	require.NotNil(t, res.Kendall)
	assert.Equal(t, 8, res.Kendall.Concordant)
	assert.Equal(t, 2, res.Kendall.Discordant)
	assert.InDelta(t, 0.6, res.Correlation, 1e-12)
	assert.Zero(t, res.ZStatistic)
}

func TestKendall_LargeSampleUsesZ(t *testing.T) {
	x := make([]float64, 12)
	for i := range x {
		x[i] = float64(i)
	}
	res, err := NewCorrelationEngine(nil).Kendall(x, x)
	require.NoError(t, err)
	assert.InDelta(t, 1.0, res.Correlation, 1e-12)
	assert.InDelta(t, 4.5257, res.ZStatistic, 1e-3)
	assert.Equal(t, stats.BucketHighlySignificant, res.PValue)
}

func TestCountPairs_TiesPrecedence(t *testing.T) {
	c := CountPairs([]float64{1, 1, 2, 2}, []float64{1, 1, 1, 2})
	assert.Equal(t, stats.KendallCounts{Concordant: 2, Discordant: 0, TiesX: 2, TiesY: 2, TotalPairs: 6}, c)
}

func TestCountPairs_AccountingProperty(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	for n := 2; n <= 40; n++ {
		x := make([]float64, n)
		y := make([]float64, n)
		for i := range x {
			x[i] = float64(rng.Intn(5))
			y[i] = float64(rng.Intn(5))
		}
		c := CountPairs(x, y)
		assert.Equal(t, n*(n-1)/2, c.Concordant+c.Discordant+c.TiesX+c.TiesY, "n=%d", n)
		assert.Equal(t, n*(n-1)/2, c.TotalPairs)
	}
}

func TestCorrelationRangesProperty(t *testing.T) {
	rng := rand.New(rand.NewSource(11))
	engine := NewCorrelationEngine(nil)
	for trial := 0; trial < 50; trial++ {
		n := 3 + rng.Intn(30)
		x := make([]float64, n)
		y := make([]float64, n)
		z := make([]float64, n)
		for i := range x {
			x[i] = rng.NormFloat64()
			y[i] = 0.5*x[i] + rng.NormFloat64()
			z[i] = rng.NormFloat64()
		}
		results := []stats.CorrelationResult{}
		for _, m := range []stats.CorrelationMethod{stats.Pearson, stats.Spearman, stats.Kendall} {
			res, err := engine.Compute(m, x, y)
			require.NoError(t, err)
			results = append(results, res)
		}
		if n >= 4 {
			res, err := engine.Partial(x, y, z)
			require.NoError(t, err)
			results = append(results, res)
		}
		for _, r := range results {
			assert.GreaterOrEqual(t, r.Correlation, -1.0)
			assert.LessOrEqual(t, r.Correlation, 1.0)
			assert.GreaterOrEqual(t, r.PValue, 0.0)
			assert.LessOrEqual(t, r.PValue, 1.0)
		}
	}
}

func TestPartial(t *testing.T) {
	engine := NewCorrelationEngine(nil)
	x := []float64{1, 2, 3, 4, 5, 6}
	y := []float64{2, 1, 4, 3, 6, 5}
	z := []float64{1, 3, 2, 5, 4, 6}

	res, err := engine.Partial(x, y, z)
	require.NoError(t, err)
	assert.Equal(t, stats.Partial, res.Method)
	assert.Equal(t, 3, res.DF)

	// a control identical to x leaves nothing to correlate
	res, err = engine.Partial(x, y, x)
	require.NoError(t, err)
	assert.Zero(t, res.Correlation)

	_, err = engine.Partial(x[:3], y[:3], z[:3])
	assert.True(t, errors.Is(err, core.ErrInsufficientSample))
	_, err = engine.Partial(x, y, z[:5])
	assert.True(t, errors.Is(err, core.ErrLengthMismatch))
}

func matrixVars(k, n int) []stats.Sample {
	rng := rand.New(rand.NewSource(3))
	vars := make([]stats.Sample, k)
	base := make([]float64, n)
	for i := range base {
		base[i] = rng.NormFloat64()
	}
	for j := range vars {
		vals := make([]float64, n)
		for i := range vals {
			vals[i] = base[i]*float64(j%3) + rng.NormFloat64()
		}
		vars[j] = stats.Sample{Name: string(rune('a' + j)), Values: vals}
	}
	return vars
}

func TestMatrix_Shape(t *testing.T) {
	engine := NewMatrixEngine(nil, MatrixOptions{})
	m, err := engine.Matrix(context.Background(), matrixVars(4, 30), stats.Pearson, 0.05)
	require.NoError(t, err)

	require.Len(t, m.Coefficients, 4)
	for i := range m.Coefficients {
		assert.Equal(t, 1.0, m.Coefficients[i][i])
		assert.Equal(t, 0.0, m.PValues[i][i])
		for j := range m.Coefficients {
			assert.Equal(t, m.Coefficients[i][j], m.Coefficients[j][i])
			assert.Equal(t, m.PValues[i][j], m.PValues[j][i])
		}
	}
	for i := 1; i < len(m.SignificantPairs); i++ {
		prev := m.SignificantPairs[i-1].Correlation
		cur := m.SignificantPairs[i].Correlation
		assert.GreaterOrEqual(t, abs(prev), abs(cur))
	}
	for _, p := range m.SignificantPairs {
		assert.Less(t, p.PValue, 0.05)
	}
}

func abs(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}

func TestMatrix_InlineAndOffloadedAgree(t *testing.T) {
	vars := matrixVars(9, 25)
	for _, method := range []stats.CorrelationMethod{stats.Pearson, stats.Spearman, stats.Kendall} {
		inline, err := NewMatrixEngine(nil, MatrixOptions{Workers: 1}).Matrix(context.Background(), vars, method, 0.05)
		require.NoError(t, err)
		offloaded, err := NewMatrixEngine(nil, MatrixOptions{Workers: 4, OffloadThreshold: 2}).Matrix(context.Background(), vars, method, 0.05)
		require.NoError(t, err)
		assert.Equal(t, inline, offloaded, "method %s", method)
	}
}

func TestMatrix_Validation(t *testing.T) {
	engine := NewMatrixEngine(nil, MatrixOptions{})
	_, err := engine.Matrix(context.Background(), matrixVars(3, 10), stats.Partial, 0.05)
	assert.True(t, core.IsValidationError(err))

	_, err = engine.Matrix(context.Background(), matrixVars(1, 10), stats.Pearson, 0.05)
	assert.True(t, core.IsValidationError(err))
}

func TestMatrix_ShortPairBecomesIssue(t *testing.T) {
	nan := math.NaN()
	vars := []stats.Sample{
		{Name: "a", Values: []float64{1, 2, 3, 4, 5}},
		{Name: "b", Values: []float64{2, 4, 5, 4, 5}},
		{Name: "c", Values: []float64{nan, nan, nan, 1, 2}},
	}
	m, err := NewMatrixEngine(nil, MatrixOptions{}).Matrix(context.Background(), vars, stats.Pearson, 0.05)
	require.NoError(t, err)
	assert.Len(t, m.Issues, 2)
	assert.Zero(t, m.Coefficients[0][2])
}

func TestCompleteCases(t *testing.T) {
	nan := math.NaN()
	x, y := CompletePairs([]float64{1, nan, 3, 4}, []float64{5, 6, nan})
	assert.Equal(t, []float64{1}, x)
	assert.Equal(t, []float64{5}, y)

	x, y, z := CompleteTriples([]float64{1, 2, 3}, []float64{4, 5, 6}, []float64{7, nan, 9})
	assert.Equal(t, []float64{1, 3}, x)
	assert.Equal(t, []float64{4, 6}, y)
	assert.Equal(t, []float64{7, 9}, z)
}
