package assumption

import "statguide/domain/stats"

// Alpha is the fixed decision threshold for assumption tests.
// IsNormal and IsHomogeneous are defined as PValue > Alpha.
const Alpha = 0.05

// NotApplicable is the test name used for degraded results
const NotApplicable = "N/A"

// NormalityResult is the outcome of a normality test on one variable
type NormalityResult struct {
	Variable  string         `json:"variable"`
	Test      string         `json:"test"`
	Statistic float64        `json:"statistic"`
	PValue    float64        `json:"p_value"`
	IsNormal  bool           `json:"is_normal"`
	N         int            `json:"n"`
	Strategy  stats.Strategy `json:"strategy"`
	Note      string         `json:"note,omitempty"`
}

// HomogeneityResult is the outcome of a variance-homogeneity test across groups
type HomogeneityResult struct {
	Variables     []string       `json:"variables"`
	Test          string         `json:"test"`
	Statistic     float64        `json:"statistic"`
	PValue        float64        `json:"p_value"`
	GroupCount    int            `json:"group_count"`
	IsHomogeneous bool           `json:"is_homogeneous"`
	Strategy      stats.Strategy `json:"strategy"`
	Note          string         `json:"note,omitempty"`
}

// Degraded reports whether the result carries no test outcome
func (r NormalityResult) Degraded() bool { return r.Test == NotApplicable }

// Degraded reports whether the result carries no test outcome
func (r HomogeneityResult) Degraded() bool { return r.Test == NotApplicable }
