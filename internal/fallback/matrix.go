package fallback

import (
	"context"
	"fmt"
	"math"
	"sort"

	"golang.org/x/sync/errgroup"

	"statguide/domain/core"
	"statguide/domain/stats"
)

// MatrixOptions controls when pairwise work is spread over goroutines
type MatrixOptions struct {
	Workers          int // concurrent pair computations; <= 1 runs inline
	OffloadThreshold int // variable count at which pairs are offloaded
}

// MatrixEngine computes correlation matrices
type MatrixEngine struct {
	corr *CorrelationEngine
	opts MatrixOptions
}

// NewMatrixEngine creates a matrix engine over a correlation engine
func NewMatrixEngine(corr *CorrelationEngine, opts MatrixOptions) *MatrixEngine {
	if corr == nil {
		corr = NewCorrelationEngine(nil)
	}
	return &MatrixEngine{corr: corr, opts: opts}
}

type cell struct {
	i, j int
}

// Matrix applies one pairwise method to every pair of variables. Rows where
// either value is NaN are dropped pair by pair. Significant pairs (p < alpha)
// are sorted by descending |r|. The result does not depend on whether pairs
// ran inline or on the worker pool.
func (m *MatrixEngine) Matrix(ctx context.Context, vars []stats.Sample, method stats.CorrelationMethod, alpha float64) (stats.CorrelationMatrix, error) {
	if method == stats.Partial || !method.Valid() {
		return stats.CorrelationMatrix{}, core.NewValidationError("method", fmt.Sprintf("%q is not a pairwise correlation method", method))
	}
	if len(vars) < 2 {
		return stats.CorrelationMatrix{}, core.NewValidationError("variables", "a correlation matrix needs at least two variables")
	}
	if alpha <= 0 || alpha >= 1 {
		alpha = 0.05
	}

	k := len(vars)
	out := stats.CorrelationMatrix{
		Method:       method,
		Variables:    make([]string, k),
		Coefficients: square(k),
		PValues:      square(k),
		Alpha:        alpha,
		Strategy:     m.corr.sig.Strategy(),
	}
	for i, v := range vars {
		out.Variables[i] = v.Name
		out.Coefficients[i][i] = 1
	}

	var cells []cell
	for i := 0; i < k; i++ {
		for j := i + 1; j < k; j++ {
			cells = append(cells, cell{i, j})
		}
	}
	issues := make([]string, len(cells))

	compute := func(idx int) error {
		c := cells[idx]
		x, y := CompletePairs(vars[c.i].Values, vars[c.j].Values)
		res, err := m.corr.Compute(method, x, y)
		if err != nil {
			if core.IsValidationError(err) {
				out.Coefficients[c.i][c.j], out.Coefficients[c.j][c.i] = 0, 0
				p := neutralP(m.corr.sig)
				out.PValues[c.i][c.j], out.PValues[c.j][c.i] = p, p
				issues[idx] = fmt.Sprintf("%s ~ %s: %v", vars[c.i].Name, vars[c.j].Name, err)
				return nil
			}
			return err
		}
		out.Coefficients[c.i][c.j], out.Coefficients[c.j][c.i] = res.Correlation, res.Correlation
		out.PValues[c.i][c.j], out.PValues[c.j][c.i] = res.PValue, res.PValue
		return nil
	}

	if m.opts.Workers > 1 && k >= m.opts.OffloadThreshold {
		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(m.opts.Workers)
		for idx := range cells {
			idx := idx
			g.Go(func() error {
				if err := gctx.Err(); err != nil {
					return err
				}
				return compute(idx)
			})
		}
		if err := g.Wait(); err != nil {
			return stats.CorrelationMatrix{}, err
		}
	} else {
		for idx := range cells {
			if err := compute(idx); err != nil {
				return stats.CorrelationMatrix{}, err
			}
		}
	}

	for idx, c := range cells {
		if issues[idx] != "" {
			out.Issues = append(out.Issues, issues[idx])
		}
		p := out.PValues[c.i][c.j]
		if p < alpha {
			out.SignificantPairs = append(out.SignificantPairs, stats.CorrelationPair{
				VariableX:   vars[c.i].Name,
				VariableY:   vars[c.j].Name,
				Correlation: out.Coefficients[c.i][c.j],
				PValue:      p,
			})
		}
	}
	sort.SliceStable(out.SignificantPairs, func(a, b int) bool {
		return math.Abs(out.SignificantPairs[a].Correlation) > math.Abs(out.SignificantPairs[b].Correlation)
	})
	if out.SignificantPairs == nil {
		out.SignificantPairs = []stats.CorrelationPair{}
	}
	return out, nil
}

func square(k int) [][]float64 {
	m := make([][]float64, k)
	for i := range m {
		m[i] = make([]float64, k)
	}
	return m
}

// CompletePairs keeps the positions where both values are present
func CompletePairs(x, y []float64) ([]float64, []float64) {
	n := len(x)
	if len(y) < n {
		n = len(y)
	}
	xs := make([]float64, 0, n)
	ys := make([]float64, 0, n)
	for i := 0; i < n; i++ {
		if math.IsNaN(x[i]) || math.IsNaN(y[i]) {
			continue
		}
		xs = append(xs, x[i])
		ys = append(ys, y[i])
	}
	return xs, ys
}

// CompleteTriples is CompletePairs for partial correlation inputs
func CompleteTriples(x, y, z []float64) ([]float64, []float64, []float64) {
	n := len(x)
	if len(y) < n {
		n = len(y)
	}
	if len(z) < n {
		n = len(z)
	}
	xs, ys, zs := make([]float64, 0, n), make([]float64, 0, n), make([]float64, 0, n)
	for i := 0; i < n; i++ {
		if math.IsNaN(x[i]) || math.IsNaN(y[i]) || math.IsNaN(z[i]) {
			continue
		}
		xs, ys, zs = append(xs, x[i]), append(ys, y[i]), append(zs, z[i])
	}
	return xs, ys, zs
}
