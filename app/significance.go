package app

import (
	"context"
	"fmt"
	"math"

	"statguide/domain/core"
	"statguide/domain/stats"
	"statguide/internal/fallback"
	"statguide/ports"
)

// backendSignificance asks the statistics backend for exact tail probabilities.
// Every failure is reported as core.ErrBackendUnavailable so callers can rerun
// the computation on the critical tables.
type backendSignificance struct {
	ctx     context.Context
	backend ports.StatsBackend
}

var _ fallback.Significance = backendSignificance{}

func newBackendSignificance(ctx context.Context, backend ports.StatsBackend) backendSignificance {
	return backendSignificance{ctx: ctx, backend: backend}
}

func (backendSignificance) Strategy() stats.Strategy { return stats.StrategyBackend }

func (b backendSignificance) TwoSidedT(t, df float64) (float64, error) {
	return b.tail(ports.BackendT, t, df, 0)
}

func (b backendSignificance) UpperF(f, df1, df2 float64) (float64, error) {
	return b.tail(ports.BackendF, f, df1, df2)
}

func (b backendSignificance) UpperChiSquare(x, df float64) (float64, error) {
	return b.tail(ports.BackendChiSquare, x, df, 0)
}

func (b backendSignificance) TwoSidedZ(z float64) (float64, error) {
	return b.tail(ports.BackendZ, z, 0, 0)
}

func (b backendSignificance) tail(test ports.BackendTest, statistic, df, df2 float64) (float64, error) {
	resp, err := b.backend.Run(b.ctx, ports.DistributionRequest(test, statistic, df, df2))
	switch {
	case err != nil && core.IsBackendError(err):
		return 0, err
	case err != nil:
		return 0, core.NewBackendError(b.backend.Name(), err)
	case resp == nil:
		return 0, core.NewBackendError(b.backend.Name(), fmt.Errorf("empty %s response", test))
	case math.IsNaN(resp.PValue) || resp.PValue < 0 || resp.PValue > 1:
		return 0, core.NewBackendError(b.backend.Name(), fmt.Errorf("%s p-value %v outside [0, 1]", test, resp.PValue))
	}
	return resp.PValue, nil
}
