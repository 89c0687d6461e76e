package stats

// Strategy records how the p-values of a result were obtained.
// Consumers must treat local approximations as ordinal significance bands.
type Strategy string

const (
	StrategyBackend Strategy = "backend"
	StrategyLocal   Strategy = "local_approximation"
)

// IsApproximate reports whether p-values are coarse buckets
func (s Strategy) IsApproximate() bool { return s != StrategyBackend }

// Coarse p-value buckets produced by the critical-value tables.
const (
	BucketNotSignificant    = 0.5    // p > 0.05
	BucketSignificant       = 0.025  // 0.01 <= p < 0.05
	BucketVerySignificant   = 0.005  // 0.001 <= p < 0.01
	BucketHighlySignificant = 0.0001 // p < 0.001
)

// ============================================================================
// ANOVA
// ============================================================================

// EffectRow is one effect line of an ANOVA table
type EffectRow struct {
	SS                float64 `json:"ss"`
	DF                int     `json:"df"`
	MS                float64 `json:"ms"`
	F                 float64 `json:"f_value"`
	PValue            float64 `json:"p_value"`
	EtaSquared        float64 `json:"eta_squared"`
	PartialEtaSquared float64 `json:"partial_eta_squared"`
}

// ErrorRow is the residual line of an ANOVA table
type ErrorRow struct {
	SS float64 `json:"ss"`
	DF int     `json:"df"`
	MS float64 `json:"ms"`
}

// TotalRow is the total line of an ANOVA table
type TotalRow struct {
	SS float64 `json:"ss"`
	DF int     `json:"df"`
}

// ANOVATable is the result of a two-way analysis of variance.
// INVARIANTS (within floating tolerance):
// - Total.SS = FactorA.SS + FactorB.SS + Interaction.SS + Error.SS
// - Total.DF = FactorA.DF + FactorB.DF + Interaction.DF + Error.DF
type ANOVATable struct {
	FactorAName   string                        `json:"factor_a_name,omitempty"`
	FactorBName   string                        `json:"factor_b_name,omitempty"`
	FactorA       EffectRow                     `json:"factor_a"`
	FactorB       EffectRow                     `json:"factor_b"`
	Interaction   EffectRow                     `json:"interaction"`
	Error         ErrorRow                      `json:"error"`
	Total         TotalRow                      `json:"total"`
	N             int                           `json:"n"`
	GrandMean     float64                       `json:"grand_mean"`
	FactorAMeans  map[string]float64            `json:"factor_a_means"`
	FactorBMeans  map[string]float64            `json:"factor_b_means"`
	CellMeans     map[string]map[string]float64 `json:"cell_means"`
	WithinCellSS  float64                       `json:"within_cell_ss"`
	Balanced      bool                          `json:"balanced"`
	SimpleEffects []SimpleEffect                `json:"simple_effects,omitempty"`
	Strategy      Strategy                      `json:"strategy"`
	Issues        []string                      `json:"issues,omitempty"`
}

// OneWayResult is a one-way analysis of variance
type OneWayResult struct {
	SSBetween  float64        `json:"ss_between"`
	SSWithin   float64        `json:"ss_within"`
	DFBetween  int            `json:"df_between"`
	DFWithin   int            `json:"df_within"`
	MSBetween  float64        `json:"ms_between"`
	MSWithin   float64        `json:"ms_within"`
	F          float64        `json:"f_value"`
	PValue     float64        `json:"p_value"`
	EtaSquared float64        `json:"eta_squared"`
	Groups     []GroupSummary `json:"groups"`
	Strategy   Strategy       `json:"strategy"`
}

// SimpleEffect is a one-way ANOVA of one factor within a single level of the other
type SimpleEffect struct {
	Effect string       `json:"effect"` // factor being tested
	Within string       `json:"within"` // factor held fixed
	Level  string       `json:"level"`
	Result OneWayResult `json:"result"`
}

// ============================================================================
// CORRELATION
// ============================================================================

// CorrelationMethod is the correlation coefficient family member
type CorrelationMethod string

const (
	Pearson  CorrelationMethod = "pearson"
	Spearman CorrelationMethod = "spearman"
	Kendall  CorrelationMethod = "kendall"
	Partial  CorrelationMethod = "partial"
)

// Valid reports whether the method is a known family member
func (m CorrelationMethod) Valid() bool {
	switch m {
	case Pearson, Spearman, Kendall, Partial:
		return true
	}
	return false
}

// Interval is a confidence interval
type Interval struct {
	Lower float64 `json:"lower"`
	Upper float64 `json:"upper"`
	Level float64 `json:"level"`
}

// KendallCounts is the pair accounting behind Kendall's tau.
// INVARIANT: Concordant + Discordant + TiesX + TiesY == TotalPairs == n(n-1)/2
type KendallCounts struct {
	Concordant int `json:"concordant"`
	Discordant int `json:"discordant"`
	TiesX      int `json:"ties_x"`
	TiesY      int `json:"ties_y"`
	TotalPairs int `json:"total_pairs"`
}

// CorrelationResult is a single correlation coefficient with its significance
type CorrelationResult struct {
	Method             CorrelationMethod `json:"method"`
	VariableX          string            `json:"variable_x,omitempty"`
	VariableY          string            `json:"variable_y,omitempty"`
	Control            string            `json:"control,omitempty"` // partial only
	Correlation        float64           `json:"correlation"`
	PValue             float64           `json:"p_value"`
	N                  int               `json:"n"`
	DF                 int               `json:"df"`
	TStatistic         float64           `json:"t_statistic"` // 0 when |r| = 1 (undefined)
	ZStatistic         float64           `json:"z_statistic,omitempty"`
	RSquared           float64           `json:"r_squared"`
	ConfidenceInterval *Interval         `json:"confidence_interval,omitempty"`
	Kendall            *KendallCounts    `json:"kendall,omitempty"`
	Interpretation     string            `json:"interpretation"`
	Strategy           Strategy          `json:"strategy"`
}

// CorrelationPair is one off-diagonal cell of a correlation matrix
type CorrelationPair struct {
	VariableX   string  `json:"variable_x"`
	VariableY   string  `json:"variable_y"`
	Correlation float64 `json:"correlation"`
	PValue      float64 `json:"p_value"`
}

// CorrelationMatrix is a symmetric matrix of pairwise correlations
type CorrelationMatrix struct {
	Method           CorrelationMethod `json:"method"`
	Variables        []string          `json:"variables"`
	Coefficients     [][]float64       `json:"coefficients"`
	PValues          [][]float64       `json:"p_values"`
	SignificantPairs []CorrelationPair `json:"significant_pairs"`
	Alpha            float64           `json:"alpha"`
	Strategy         Strategy          `json:"strategy"`
	Issues           []string          `json:"issues,omitempty"`
}

// ============================================================================
// GROUP COMPARISONS
// ============================================================================

// Sample is a labelled numeric sample, typically one level of a grouping variable
type Sample struct {
	Name   string    `json:"name"`
	Values []float64 `json:"values"`
}

// GroupSummary describes one group of a comparison
type GroupSummary struct {
	Name   string  `json:"name"`
	N      int     `json:"n"`
	Mean   float64 `json:"mean"`
	StdDev float64 `json:"std_dev"`
	Median float64 `json:"median"`
}

// EffectSize is a named standardized effect with its magnitude label
type EffectSize struct {
	Name      string  `json:"name"`
	Value     float64 `json:"value"`
	Magnitude string  `json:"magnitude"`
}

// TestResult is the outcome of one test from the method menu
type TestResult struct {
	Method         string             `json:"method"`
	Test           string             `json:"test"`
	Statistic      float64            `json:"statistic"`
	PValue         float64            `json:"p_value"`
	DF             float64            `json:"df,omitempty"`
	DF2            float64            `json:"df2,omitempty"`
	Significant    bool               `json:"significant"`
	Effect         *EffectSize        `json:"effect,omitempty"`
	Groups         []GroupSummary     `json:"groups,omitempty"`
	Fields         map[string]float64 `json:"fields,omitempty"`
	Interpretation string             `json:"interpretation"`
	Strategy       Strategy           `json:"strategy"`
}

// ComparisonPair is one pairwise post-hoc comparison.
// INVARIANT: AdjustedPValue >= PValue
type ComparisonPair struct {
	Group1         string  `json:"group1"`
	Group2         string  `json:"group2"`
	MeanDiff       float64 `json:"mean_diff"`
	Statistic      float64 `json:"statistic"`
	PValue         float64 `json:"p_value"`
	AdjustedPValue float64 `json:"adjusted_p_value"`
	Significant    bool    `json:"significant"`
}

// PostHocResult groups all pairwise comparisons of one post-hoc run
type PostHocResult struct {
	Method         string           `json:"method"`
	Correction     string           `json:"correction"`
	Comparisons    []ComparisonPair `json:"comparisons"`
	NumComparisons int              `json:"num_comparisons"`
	Alpha          float64          `json:"alpha"`
	PerTestAlpha   float64          `json:"per_test_alpha"` // alpha / m
	Strategy       Strategy         `json:"strategy"`
}
