package method

import "fmt"

// Kind is the closed set of statistical methods the system can recommend and run.
// Adding a method means adding a constant here and an entry in kindTable; dispatch
// sites switch over Kind exhaustively.
type Kind int

const (
	KindDescriptive Kind = iota
	KindIndependentT
	KindWelchT
	KindPairedT
	KindMannWhitney
	KindWilcoxon
	KindOneWayANOVA
	KindWelchANOVA
	KindKruskalWallis
	KindTwoWayANOVA
	KindPearson
	KindSpearman
	KindKendall
	KindPartial
	KindLinearRegression
	KindChiSquare

	kindCount
)

// Family groups methods by the question they answer
type Family string

const (
	FamilyDescriptive Family = "descriptive"
	FamilyComparison  Family = "comparison"
	FamilyCorrelation Family = "correlation"
	FamilyAssociation Family = "association"
)

type kindInfo struct {
	slug          string
	name          string
	family        Family
	nonparametric bool
}

var kindTable = [kindCount]kindInfo{
	KindDescriptive:      {"descriptive", "Descriptive statistics only", FamilyDescriptive, false},
	KindIndependentT:     {"independent_t", "Independent t-test", FamilyComparison, false},
	KindWelchT:           {"welch_t", "Welch's t-test", FamilyComparison, false},
	KindPairedT:          {"paired_t", "Paired t-test", FamilyComparison, false},
	KindMannWhitney:      {"mann_whitney", "Mann-Whitney U test", FamilyComparison, true},
	KindWilcoxon:         {"wilcoxon", "Wilcoxon signed-rank test", FamilyComparison, true},
	KindOneWayANOVA:      {"one_way_anova", "One-way ANOVA", FamilyComparison, false},
	KindWelchANOVA:       {"welch_anova", "Welch ANOVA", FamilyComparison, false},
	KindKruskalWallis:    {"kruskal_wallis", "Kruskal-Wallis test", FamilyComparison, true},
	KindTwoWayANOVA:      {"two_way_anova", "Two-way ANOVA", FamilyComparison, false},
	KindPearson:          {"pearson", "Pearson correlation", FamilyCorrelation, false},
	KindSpearman:         {"spearman", "Spearman correlation", FamilyCorrelation, true},
	KindKendall:          {"kendall", "Kendall's tau", FamilyCorrelation, true},
	KindPartial:          {"partial", "Partial correlation", FamilyCorrelation, false},
	KindLinearRegression: {"linear_regression", "Linear regression", FamilyCorrelation, false},
	KindChiSquare:        {"chi_square", "Chi-square test", FamilyAssociation, true},
}

// AllKinds lists every method in declaration order
func AllKinds() []Kind {
	kinds := make([]Kind, 0, kindCount)
	for k := Kind(0); k < kindCount; k++ {
		kinds = append(kinds, k)
	}
	return kinds
}

// Valid reports whether k is a declared method
func (k Kind) Valid() bool { return k >= 0 && k < kindCount }

// Slug is the stable machine identifier
func (k Kind) Slug() string {
	if !k.Valid() {
		return fmt.Sprintf("kind(%d)", int(k))
	}
	return kindTable[k].slug
}

// String returns the display name
func (k Kind) String() string {
	if !k.Valid() {
		return fmt.Sprintf("kind(%d)", int(k))
	}
	return kindTable[k].name
}

// Family returns the method family
func (k Kind) Family() Family {
	if !k.Valid() {
		return ""
	}
	return kindTable[k].family
}

// Nonparametric reports whether the method is rank/frequency based
func (k Kind) Nonparametric() bool {
	return k.Valid() && kindTable[k].nonparametric
}

// ParseKind resolves a slug into a Kind
func ParseKind(slug string) (Kind, error) {
	for k := Kind(0); k < kindCount; k++ {
		if kindTable[k].slug == slug {
			return k, nil
		}
	}
	return 0, fmt.Errorf("unknown method %q", slug)
}

func (k Kind) MarshalText() ([]byte, error) {
	if !k.Valid() {
		return nil, fmt.Errorf("invalid method kind %d", int(k))
	}
	return []byte(k.Slug()), nil
}

func (k *Kind) UnmarshalText(b []byte) error {
	parsed, err := ParseKind(string(b))
	if err != nil {
		return err
	}
	*k = parsed
	return nil
}

// PostHoc is the pairwise follow-up procedure for a multi-group omnibus test
type PostHoc string

const (
	PostHocNone        PostHoc = ""
	PostHocTukey       PostHoc = "Tukey HSD"
	PostHocGamesHowell PostHoc = "Games-Howell"
	PostHocDunn        PostHoc = "Dunn's test"
	PostHocPairwise    PostHoc = "Pairwise Welch t-tests"
)

// Recommendation is the single primary method chosen for a dataset.
// Alternatives are non-authoritative hints.
type Recommendation struct {
	Kind         Kind     `json:"kind"`
	Method       string   `json:"method"`
	Reason       string   `json:"reason"`
	PostHoc      PostHoc  `json:"post_hoc,omitempty"`
	Alternatives []string `json:"alternatives"`
	Suggestions  []string `json:"suggestions,omitempty"`
}

// KeywordRecommendation is one ranked entry of the keyword-weighted recommender
type KeywordRecommendation struct {
	Kind    Kind     `json:"kind"`
	Method  string   `json:"method"`
	Score   float64  `json:"score"`
	Matched []string `json:"matched,omitempty"`
}

// Intent is the coarse purpose parsed from a free-text analysis goal
type Intent string

const (
	IntentUnknown   Intent = "unknown"
	IntentCompare   Intent = "compare"
	IntentPaired    Intent = "paired"
	IntentRelate    Intent = "relate"
	IntentPredict   Intent = "predict"
	IntentAssociate Intent = "associate"
	IntentDescribe  Intent = "describe"
)

// Goal is a parsed free-text analysis goal
type Goal struct {
	Text   string `json:"text"`
	Intent Intent `json:"intent"`
}
