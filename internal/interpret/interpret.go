// Package interpret maps statistics to fixed verbal bands and renders short
// result summaries. Every function is pure.
package interpret

import (
	"fmt"
	"math"
	"strings"

	"statguide/domain/stats"
)

// Significance bands
const (
	HighlySignificant     = "highly significant"
	VerySignificant       = "very significant"
	Significant           = "significant"
	MarginallySignificant = "marginally significant"
	NotSignificant        = "not significant"
)

// Magnitude labels shared by effect-size scales
const (
	Negligible = "negligible"
	Small      = "small"
	Medium     = "medium"
	Large      = "large"
)

// Correlation strength labels
const (
	VeryWeak   = "very weak"
	Weak       = "weak"
	Moderate   = "medium"
	Strong     = "strong"
	VeryStrong = "very strong"
)

// PValue maps a p-value to one of five significance bands
func PValue(p float64) string {
	switch {
	case p < 0.001:
		return HighlySignificant
	case p < 0.01:
		return VerySignificant
	case p < 0.05:
		return Significant
	case p < 0.1:
		return MarginallySignificant
	default:
		return NotSignificant
	}
}

// CohensD labels a standardized mean difference
func CohensD(d float64) string {
	return scale(math.Abs(d), 0.2, 0.5, 0.8)
}

// EtaSquared labels a proportion of variance explained. Also used for
// partial eta², omega² and epsilon².
func EtaSquared(eta float64) string {
	return scale(eta, 0.01, 0.06, 0.14)
}

// RankBiserial labels a rank-biserial (or other r-family) effect
func RankBiserial(r float64) string {
	return scale(math.Abs(r), 0.1, 0.3, 0.5)
}

func scale(v, small, medium, large float64) string {
	switch {
	case v < small:
		return Negligible
	case v < medium:
		return Small
	case v < large:
		return Medium
	default:
		return Large
	}
}

// CorrelationStrength labels |r|
func CorrelationStrength(r float64) string {
	a := math.Abs(r)
	switch {
	case a < 0.1:
		return VeryWeak
	case a < 0.3:
		return Weak
	case a < 0.5:
		return Moderate
	case a < 0.7:
		return Strong
	default:
		return VeryStrong
	}
}

// Correlation describes a coefficient, e.g. "strong positive correlation"
func Correlation(r float64) string {
	direction := "positive"
	switch {
	case r < 0:
		direction = "negative"
	case r == 0:
		return "no correlation"
	}
	return fmt.Sprintf("%s %s correlation", CorrelationStrength(r), direction)
}

// FormatP renders a p-value. Local approximations are ordinal buckets and are
// only ever rendered as a band.
func FormatP(p float64, strategy stats.Strategy) string {
	if strategy.IsApproximate() {
		switch {
		case p < 0.001:
			return "p < 0.001"
		case p < 0.01:
			return "p < 0.01"
		case p < 0.05:
			return "p < 0.05"
		default:
			return "p ≥ 0.05"
		}
	}
	if p < 0.001 {
		return "p < 0.001"
	}
	return fmt.Sprintf("p = %.4f", p)
}

// Summarize renders one sentence for a test outcome
func Summarize(test string, statistic, p float64, effect *stats.EffectSize, strategy stats.Strategy) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s: statistic = %.4f, %s (%s).", test, statistic, FormatP(p, strategy), PValue(p))
	if effect != nil {
		fmt.Fprintf(&b, " %s = %.3f (%s effect).", effect.Name, effect.Value, effect.Magnitude)
	}
	if strategy.IsApproximate() {
		b.WriteString(" Significance is approximated from critical-value tables.")
	}
	return b.String()
}

// Report renders a multi-line summary of a group comparison and its post-hoc
// comparisons. posthoc may be nil.
func Report(result stats.TestResult, posthoc *stats.PostHocResult) string {
	total := 0
	for _, g := range result.Groups {
		total += g.N
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Analysed %d groups with %d observations.\n", len(result.Groups), total)
	fmt.Fprintf(&b, "Test used: %s\n", result.Test)
	fmt.Fprintf(&b, "Statistic: %.4f, %s\n", result.Statistic, FormatP(result.PValue, result.Strategy))
	fmt.Fprintf(&b, "Result: %s\n", result.Interpretation)

	if posthoc != nil {
		var pairs []string
		for _, c := range posthoc.Comparisons {
			if c.Significant {
				pairs = append(pairs, fmt.Sprintf("%s vs %s", c.Group1, c.Group2))
			}
		}
		if len(pairs) > 0 {
			fmt.Fprintf(&b, "\nPairs that differ (%s, %s correction):\n", posthoc.Method, posthoc.Correction)
			for _, p := range pairs {
				fmt.Fprintf(&b, "  - %s\n", p)
			}
		}
	}
	return b.String()
}

// Outcome is the one-line verdict attached to a test result
func Outcome(test string, significant bool, effect *stats.EffectSize) string {
	if !significant {
		return fmt.Sprintf("%s found no statistically significant difference (p ≥ 0.05).", test)
	}
	if effect == nil {
		return fmt.Sprintf("%s found a statistically significant difference (p < 0.05).", test)
	}
	return fmt.Sprintf("%s found a statistically significant difference (p < 0.05) with a %s effect.", test, effect.Magnitude)
}
