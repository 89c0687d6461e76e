// Package gonum is an in-process statistics backend with exact distribution
// tails from gonum.
package gonum

import (
	"context"
	"fmt"
	"math"

	mstats "github.com/montanaflynn/stats"
	"gonum.org/v1/gonum/stat"
	"gonum.org/v1/gonum/stat/distuv"

	"statguide/domain/core"
	"statguide/ports"
)

// Name is the backend identifier reported in logs and errors
const Name = "gonum"

// Test names reported for raw-sample requests
const (
	NameJarqueBera    = "Jarque-Bera"
	NameBrownForsythe = "Levene (median-centred)"
)

// Backend answers every ports.BackendTest in process
type Backend struct{}

// New creates the gonum backend
func New() *Backend {
	return &Backend{}
}

func (b *Backend) Name() string { return Name }

// Run computes the requested test
func (b *Backend) Run(ctx context.Context, req ports.BackendRequest) (*ports.BackendResponse, error) {
	if err := ctx.Err(); err != nil {
		return nil, core.NewBackendError(Name, err)
	}

	switch req.Test {
	case ports.BackendNormality:
		if len(req.Samples) != 1 {
			return nil, core.NewValidationError("samples", "normality needs exactly one sample")
		}
		return jarqueBera(req.Samples[0])
	case ports.BackendHomogeneity:
		return brownForsythe(req.Samples)
	case ports.BackendT, ports.BackendF, ports.BackendChiSquare, ports.BackendZ:
		return tail(req)
	default:
		return nil, core.NewValidationError("test", fmt.Sprintf("unsupported test %q", req.Test))
	}
}

func jarqueBera(sample []float64) (*ports.BackendResponse, error) {
	n := float64(len(sample))
	if len(sample) < 3 {
		return nil, core.NewInsufficientSampleError("normality", 3, len(sample))
	}

	mean := stat.Mean(sample, nil)
	m2 := stat.MomentAbout(2, sample, mean, nil)
	if m2 == 0 {
		return nil, fmt.Errorf("%w: constant sample", core.ErrComputation)
	}
	skew := stat.MomentAbout(3, sample, mean, nil) / math.Pow(m2, 1.5)
	kurt := stat.MomentAbout(4, sample, mean, nil)/(m2*m2) - 3

	jb := n / 6 * (skew*skew + kurt*kurt/4)
	return &ports.BackendResponse{
		Test:      NameJarqueBera,
		Statistic: jb,
		PValue:    distuv.ChiSquared{K: 2}.Survival(jb),
		DF:        2,
		Fields:    map[string]float64{"skewness": skew, "excess_kurtosis": kurt},
	}, nil
}

func brownForsythe(samples [][]float64) (*ports.BackendResponse, error) {
	k := len(samples)
	if k < 2 {
		return nil, core.NewValidationError("samples", "homogeneity needs at least two groups")
	}

	deviations := make([][]float64, k)
	total := 0
	for i, s := range samples {
		if len(s) < 2 {
			return nil, core.NewInsufficientSampleError(fmt.Sprintf("group %d", i+1), 2, len(s))
		}
		med, err := mstats.Median(s)
		if err != nil {
			return nil, fmt.Errorf("median of group %d: %w", i+1, err)
		}
		dev := make([]float64, len(s))
		for j, v := range s {
			dev[j] = math.Abs(v - med)
		}
		deviations[i] = dev
		total += len(s)
	}

	var grand float64
	for _, d := range deviations {
		grand += stat.Mean(d, nil) * float64(len(d))
	}
	grand /= float64(total)

	var between, within float64
	for _, d := range deviations {
		m := stat.Mean(d, nil)
		between += float64(len(d)) * (m - grand) * (m - grand)
		for _, v := range d {
			within += (v - m) * (v - m)
		}
	}

	df1 := float64(k - 1)
	df2 := float64(total - k)
	resp := &ports.BackendResponse{Test: NameBrownForsythe, DF: df1, DF2: df2, PValue: 1}
	if within == 0 || df2 <= 0 {
		return resp, nil
	}
	resp.Statistic = (between / df1) / (within / df2)
	resp.PValue = distuv.F{D1: df1, D2: df2}.Survival(resp.Statistic)
	return resp, nil
}

func tail(req ports.BackendRequest) (*ports.BackendResponse, error) {
	x, ok := req.Options[ports.OptionStatistic]
	if !ok || math.IsNaN(x) || math.IsInf(x, 0) {
		return nil, core.NewValidationError(ports.OptionStatistic, "missing or not finite")
	}
	df := req.Options[ports.OptionDF]
	df2 := req.Options[ports.OptionDF2]
	resp := &ports.BackendResponse{Test: string(req.Test), Statistic: x, DF: df, DF2: df2}

	switch req.Test {
	case ports.BackendT:
		if df <= 0 {
			return nil, core.NewValidationError(ports.OptionDF, "t needs df > 0")
		}
		resp.PValue = 2 * distuv.StudentsT{Mu: 0, Sigma: 1, Nu: df}.Survival(math.Abs(x))
	case ports.BackendF:
		if df <= 0 || df2 <= 0 {
			return nil, core.NewValidationError(ports.OptionDF, "F needs df1 > 0 and df2 > 0")
		}
		resp.PValue = distuv.F{D1: df, D2: df2}.Survival(x)
	case ports.BackendChiSquare:
		if df <= 0 {
			return nil, core.NewValidationError(ports.OptionDF, "chi-square needs df > 0")
		}
		resp.PValue = distuv.ChiSquared{K: df}.Survival(x)
	case ports.BackendZ:
		resp.PValue = 2 * distuv.UnitNormal.Survival(math.Abs(x))
	}
	resp.PValue = math.Min(1, math.Max(0, resp.PValue))
	return resp, nil
}
