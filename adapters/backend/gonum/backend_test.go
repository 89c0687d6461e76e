package gonum

import (
	"context"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"statguide/domain/core"
	"statguide/ports"
)

func TestTailProbabilities(t *testing.T) {
	b := New()
	tests := []struct {
		name    string
		test    ports.BackendTest
		x       float64
		df, df2 float64
		want    float64
	}{
		{"t critical df=10", ports.BackendT, 2.228, 10, 0, 0.05},
		{"t negative is two sided", ports.BackendT, -2.228, 10, 0, 0.05},
		{"F critical 1,10", ports.BackendF, 4.965, 1, 10, 0.05},
		{"chi2 critical df=1", ports.BackendChiSquare, 3.841, 1, 0, 0.05},
		{"chi2 critical df=2", ports.BackendChiSquare, 5.991, 2, 0, 0.05},
		{"z critical", ports.BackendZ, 1.96, 0, 0, 0.05},
		{"zero t", ports.BackendT, 0, 5, 0, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, err := b.Run(context.Background(), ports.DistributionRequest(tt.test, tt.x, tt.df, tt.df2))
			require.NoError(t, err)
			assert.InDelta(t, tt.want, resp.PValue, 1e-3)
			assert.Equal(t, tt.x, resp.Statistic)
		})
	}
}

func TestTailValidation(t *testing.T) {
	b := New()

	_, err := b.Run(context.Background(), ports.BackendRequest{Test: ports.BackendT, Options: map[string]float64{ports.OptionDF: 3}})
	assert.True(t, core.IsValidationError(err))

	_, err = b.Run(context.Background(), ports.DistributionRequest(ports.BackendF, 2, 1, 0))
	assert.True(t, core.IsValidationError(err))

	_, err = b.Run(context.Background(), ports.BackendRequest{Test: "anova"})
	assert.True(t, core.IsValidationError(err))
}

func TestJarqueBera(t *testing.T) {
	b := New()

	resp, err := b.Run(context.Background(), ports.BackendRequest{
		Test:    ports.BackendNormality,
		Samples: [][]float64{{1, 2, 3, 4, 5, 6, 7, 8, 9}},
	})
	require.NoError(t, err)
	assert.Equal(t, NameJarqueBera, resp.Test)
	assert.InDelta(t, 0.0, resp.Fields["skewness"], 1e-12)
	assert.InDelta(t, -1.23, resp.Fields["excess_kurtosis"], 1e-2)
	assert.InDelta(t, math.Exp(-resp.Statistic/2), resp.PValue, 1e-9)
	assert.Greater(t, resp.PValue, 0.05)

	skewed := make([]float64, 20)
	for i := range skewed {
		skewed[i] = 1
	}
	skewed[19] = 50
	resp, err = b.Run(context.Background(), ports.BackendRequest{Test: ports.BackendNormality, Samples: [][]float64{skewed}})
	require.NoError(t, err)
	assert.Less(t, resp.PValue, 0.05)

	_, err = b.Run(context.Background(), ports.BackendRequest{Test: ports.BackendNormality, Samples: [][]float64{{4, 4, 4, 4}}})
	assert.ErrorIs(t, err, core.ErrComputation)
}

func TestBrownForsythe(t *testing.T) {
	b := New()

	resp, err := b.Run(context.Background(), ports.BackendRequest{
		Test:    ports.BackendHomogeneity,
		Samples: [][]float64{{1, 2, 3, 4, 5}, {10, 20, 30, 40, 50}},
	})
	require.NoError(t, err)
	assert.InDelta(t, 8.249, resp.Statistic, 1e-2)
	assert.Equal(t, 1.0, resp.DF)
	assert.Equal(t, 8.0, resp.DF2)
	assert.Less(t, resp.PValue, 0.05)
	assert.Greater(t, resp.PValue, 0.01)

	resp, err = b.Run(context.Background(), ports.BackendRequest{
		Test:    ports.BackendHomogeneity,
		Samples: [][]float64{{1, 2, 3, 4, 5}, {11, 12, 13, 14, 15}},
	})
	require.NoError(t, err)
	assert.InDelta(t, 1.0, resp.PValue, 1e-9)

	_, err = b.Run(context.Background(), ports.BackendRequest{Test: ports.BackendHomogeneity, Samples: [][]float64{{1, 2, 3}}})
	assert.True(t, core.IsValidationError(err))
}

func TestCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := New().Run(ctx, ports.DistributionRequest(ports.BackendZ, 1, 0, 0))
	assert.True(t, core.IsBackendError(err))
}
