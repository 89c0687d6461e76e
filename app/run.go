package app

import (
	"context"
	"fmt"

	"statguide/domain/core"
	"statguide/domain/method"
	"statguide/domain/stats"
	"statguide/internal/fallback"
)

// TestInput carries the data for one method. Which fields are read depends on
// the method:
//   - comparisons and descriptive statistics read Groups; two-sample and
//     paired tests use the first two
//   - correlations and regression read X and Y, partial correlation also Z
//   - the chi-square test reads FactorA and FactorB as row and column labels
//   - two-way ANOVA reads Y as values with FactorA and FactorB
type TestInput struct {
	Groups  []stats.Sample `json:"groups,omitempty"`
	X       []float64      `json:"x,omitempty"`
	Y       []float64      `json:"y,omitempty"`
	Z       []float64      `json:"z,omitempty"`
	FactorA []string       `json:"factor_a,omitempty"`
	FactorB []string       `json:"factor_b,omitempty"`
}

// Execution is the outcome of one method run. Exactly one of Result,
// Correlation and ANOVA is set.
type Execution struct {
	Kind        method.Kind              `json:"kind"`
	Result      *stats.TestResult        `json:"result,omitempty"`
	Correlation *stats.CorrelationResult `json:"correlation,omitempty"`
	ANOVA       *stats.ANOVATable        `json:"anova,omitempty"`
	Strategy    stats.Strategy           `json:"strategy"`
}

// Run executes a method from the menu
func (s *AnalysisService) Run(ctx context.Context, kind method.Kind, in TestInput) (*Execution, error) {
	if !kind.Valid() {
		return nil, core.NewValidationError("method", fmt.Sprintf("unknown method kind %d", int(kind)))
	}
	return withStrategy(ctx, s, kind.String(), func(sig fallback.Significance) (*Execution, error) {
		return execute(sig, kind, in)
	})
}

func execute(sig fallback.Significance, kind method.Kind, in TestInput) (*Execution, error) {
	groups := fallback.NewGroupEngine(sig)

	var (
		res stats.TestResult
		err error
	)
	switch kind {
	case method.KindDescriptive:
		res = groups.Descriptive(in.Groups)
	case method.KindIndependentT:
		res, err = twoSample(in.Groups, groups.IndependentT)
	case method.KindWelchT:
		res, err = twoSample(in.Groups, groups.WelchT)
	case method.KindPairedT:
		res, err = twoSample(in.Groups, groups.PairedT)
	case method.KindMannWhitney:
		res, err = twoSample(in.Groups, groups.MannWhitney)
	case method.KindWilcoxon:
		res, err = twoSample(in.Groups, groups.Wilcoxon)
	case method.KindOneWayANOVA:
		res, err = groups.OneWayANOVA(in.Groups)
	case method.KindWelchANOVA:
		res, err = groups.WelchANOVA(in.Groups)
	case method.KindKruskalWallis:
		res, err = groups.KruskalWallis(in.Groups)
	case method.KindLinearRegression:
		res, err = groups.LinearRegression(in.X, in.Y)
	case method.KindChiSquare:
		res, err = groups.ChiSquare(in.FactorA, in.FactorB)

	case method.KindPearson, method.KindSpearman, method.KindKendall, method.KindPartial:
		engine := fallback.NewCorrelationEngine(sig)
		var c stats.CorrelationResult
		if kind == method.KindPartial {
			c, err = engine.Partial(in.X, in.Y, in.Z)
		} else {
			c, err = engine.Compute(correlationMethod(kind), in.X, in.Y)
		}
		if err != nil {
			return nil, err
		}
		return &Execution{Kind: kind, Correlation: &c, Strategy: c.Strategy}, nil

	case method.KindTwoWayANOVA:
		table, err := fallback.NewANOVAEngine(sig).TwoWay(in.Y, in.FactorA, in.FactorB)
		if err != nil {
			return nil, err
		}
		return &Execution{Kind: kind, ANOVA: &table, Strategy: table.Strategy}, nil

	default:
		return nil, core.NewValidationError("method", fmt.Sprintf("no executor for %s", kind))
	}
	if err != nil {
		return nil, err
	}
	return &Execution{Kind: kind, Result: &res, Strategy: res.Strategy}, nil
}

func twoSample(samples []stats.Sample, test func(a, b stats.Sample) (stats.TestResult, error)) (stats.TestResult, error) {
	if len(samples) < 2 {
		return stats.TestResult{}, fmt.Errorf("%w: two samples required, got %d", core.ErrTooFewLevels, len(samples))
	}
	return test(samples[0], samples[1])
}

func correlationMethod(kind method.Kind) stats.CorrelationMethod {
	switch kind {
	case method.KindSpearman:
		return stats.Spearman
	case method.KindKendall:
		return stats.Kendall
	case method.KindPartial:
		return stats.Partial
	default:
		return stats.Pearson
	}
}
