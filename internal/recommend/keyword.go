package recommend

import (
	"sort"
	"strings"
	"unicode"

	"statguide/domain/method"
	"statguide/domain/profiling"
)

// MaxKeywordResults is how many ranked methods RecommendByKeywords returns
const MaxKeywordResults = 4

// DataShape is the coarse view of a dataset the keyword recommender adjusts for
type DataShape struct {
	NumericColumns     int `json:"numeric_columns"`
	CategoricalColumns int `json:"categorical_columns"`
	SampleSize         int `json:"sample_size"`
}

// ShapeOf derives a DataShape from a profile. Text and mixed columns are
// neither numeric nor categorical.
func ShapeOf(p profiling.Profile) DataShape {
	return DataShape{
		NumericColumns:     len(p.ColumnsOfType(profiling.TypeNumeric)),
		CategoricalColumns: len(p.ColumnsOfType(profiling.TypeGroup)),
		SampleSize:         p.RowCount,
	}
}

type pattern struct {
	phrases  []string
	priority float64
}

type entry struct {
	kind     method.Kind
	patterns []pattern
}

// catalogue order breaks score ties. Phrases match whole words only.
var catalogue = []entry{
	{method.KindIndependentT, []pattern{
		{[]string{"two groups", "compare two", "difference between two", "t-test", "t test"}, 3},
		{[]string{"difference", "differences", "differ", "differs", "different", "compare", "compared", "comparing", "versus", "vs"}, 2},
	}},
	{method.KindPearson, []pattern{
		{[]string{"correlation", "correlate", "correlated", "relationship", "associated with"}, 3},
		{[]string{"related", "relate", "linear", "link"}, 1},
	}},
	{method.KindLinearRegression, []pattern{
		{[]string{"predict", "predicts", "prediction", "regression", "forecast"}, 3},
		{[]string{"effect of", "influence", "impact", "depends on"}, 2},
	}},
	{method.KindOneWayANOVA, []pattern{
		{[]string{"anova", "three or more groups", "multiple groups", "several groups", "three groups", "more than two groups"}, 3},
		{[]string{"groups", "across", "between groups"}, 1},
	}},
	{method.KindPairedT, []pattern{
		{[]string{"paired", "before/after", "before and after", "pre and post", "pre-post", "repeated measure"}, 3},
		{[]string{"before", "after", "same subjects", "change"}, 1},
	}},
	{method.KindWelchT, []pattern{
		{[]string{"welch", "unequal variance"}, 3},
	}},
	{method.KindMannWhitney, []pattern{
		{[]string{"mann-whitney", "mann whitney", "non-parametric", "nonparametric"}, 3},
		{[]string{"median", "skewed", "ordinal", "rank"}, 1},
	}},
	{method.KindWilcoxon, []pattern{
		{[]string{"wilcoxon", "signed-rank", "signed rank"}, 3},
	}},
	{method.KindWelchANOVA, []pattern{
		{[]string{"welch anova", "heteroscedastic"}, 3},
	}},
	{method.KindKruskalWallis, []pattern{
		{[]string{"kruskal", "medians across"}, 3},
	}},
	{method.KindTwoWayANOVA, []pattern{
		{[]string{"two-way", "two way", "interaction", "two factors"}, 3},
	}},
	{method.KindSpearman, []pattern{
		{[]string{"spearman", "monotonic", "rank correlation"}, 3},
	}},
	{method.KindKendall, []pattern{
		{[]string{"kendall", "concordance"}, 3},
	}},
	{method.KindPartial, []pattern{
		{[]string{"partial correlation", "controlling for", "control for", "confound"}, 3},
	}},
	{method.KindChiSquare, []pattern{
		{[]string{"chi-square", "chi square", "independence", "contingency", "proportion"}, 3},
		{[]string{"categorical", "category", "categories", "frequency", "frequencies", "count", "counts"}, 2},
	}},
	{method.KindDescriptive, []pattern{
		{[]string{"describe", "summary", "summarize", "summarise", "overview"}, 3},
		{[]string{"distribution", "average", "mean"}, 1},
	}},
}

var defaultKinds = []method.Kind{
	method.KindIndependentT,
	method.KindPearson,
	method.KindLinearRegression,
	method.KindOneWayANOVA,
}

type scored struct {
	method.KeywordRecommendation
	order int
}

// RecommendByKeywords ranks methods by how well the goal text matches each
// catalogue entry, then nudges the scores by the data shape. When no phrase
// matches at all the fixed default list is returned.
func RecommendByKeywords(goal string, shape DataShape) []method.KeywordRecommendation {
	text := normalizeGoal(goal)

	results := make([]scored, len(catalogue))
	matchedAny := false
	for i, e := range catalogue {
		results[i] = scored{
			KeywordRecommendation: method.KeywordRecommendation{Kind: e.kind, Method: e.kind.String()},
			order:                 i,
		}
		for _, p := range e.patterns {
			for _, phrase := range p.phrases {
				n := strings.Count(text, " "+phrase+" ")
				if n == 0 {
					continue
				}
				matchedAny = true
				results[i].Score += float64(n) * p.priority
				results[i].Matched = append(results[i].Matched, phrase)
			}
		}
	}
	if !matchedAny {
		return defaults()
	}

	for i := range results {
		results[i].Score += adjustment(results[i].Kind, shape)
	}

	sort.SliceStable(results, func(i, j int) bool {
		if results[i].Score != results[j].Score {
			return results[i].Score > results[j].Score
		}
		return results[i].order < results[j].order
	})

	out := make([]method.KeywordRecommendation, 0, MaxKeywordResults)
	for _, r := range results {
		if r.Score <= 0 || len(out) == MaxKeywordResults {
			break
		}
		out = append(out, r.KeywordRecommendation)
	}
	return out
}

// normalizeGoal lower-cases the goal, turns punctuation other than '-' and
// '/' into spaces and pads the result so every word is space-delimited
func normalizeGoal(goal string) string {
	cleaned := strings.Map(func(r rune) rune {
		switch {
		case unicode.IsLetter(r), unicode.IsDigit(r), r == '-', r == '/':
			return unicode.ToLower(r)
		default:
			return ' '
		}
	}, goal)
	return " " + strings.Join(strings.Fields(cleaned), " ") + " "
}

func adjustment(kind method.Kind, shape DataShape) float64 {
	var bonus float64
	if shape.NumericColumns == 2 && (kind.Family() == method.FamilyCorrelation) {
		bonus += 3
	}
	if shape.CategoricalColumns > 0 && shape.NumericColumns == 0 && kind == method.KindChiSquare {
		bonus += 10
	}
	if shape.SampleSize > 0 && shape.SampleSize < 30 && kind.Nonparametric() {
		bonus += 2
	}
	return bonus
}

func defaults() []method.KeywordRecommendation {
	out := make([]method.KeywordRecommendation, len(defaultKinds))
	for i, k := range defaultKinds {
		out[i] = method.KeywordRecommendation{Kind: k, Method: k.String()}
	}
	return out
}

// ParseGoal maps free text onto a coarse intent. Paired wording wins over
// plain comparison.
func ParseGoal(text string) method.Goal {
	goal := method.Goal{Text: strings.TrimSpace(text), Intent: method.IntentUnknown}
	lower := strings.ToLower(goal.Text)
	if lower == "" {
		return goal
	}

	intents := []struct {
		intent method.Intent
		words  []string
	}{
		{method.IntentPaired, []string{"paired", "before and after", "pre and post", "repeated"}},
		{method.IntentPredict, []string{"predict", "forecast", "regression"}},
		{method.IntentAssociate, []string{"association", "independence", "categorical", "proportion"}},
		{method.IntentRelate, []string{"correlat", "relationship", "related"}},
		{method.IntentCompare, []string{"compare", "difference", "differ", "versus", " vs "}},
		{method.IntentDescribe, []string{"describe", "summar", "overview"}},
	}
	for _, in := range intents {
		for _, w := range in.words {
			if strings.Contains(" "+lower+" ", w) {
				goal.Intent = in.intent
				return goal
			}
		}
	}
	return goal
}
