// Package recommend chooses a statistical method for a dataset. Recommend is
// the rule engine driven by column types and assumption outcomes;
// RecommendByKeywords scores a method catalogue against a free-text goal.
package recommend

import (
	"fmt"

	"statguide/domain/assumption"
	"statguide/domain/method"
	"statguide/domain/profiling"
)

// Input is everything the rule engine looks at
type Input struct {
	Profile     profiling.Profile
	Normality   []assumption.NormalityResult
	Homogeneity *assumption.HomogeneityResult
	Goal        string
}

// Recommend returns exactly one primary method. Rules are evaluated in a fixed
// order: group comparison, then correlation, then descriptive. The goal only
// adds suggestions.
func Recommend(in Input) method.Recommendation {
	groups := in.Profile.ColumnsOfType(profiling.TypeGroup)
	numeric := in.Profile.ColumnsOfType(profiling.TypeNumeric)

	var rec method.Recommendation
	switch {
	case len(groups) >= 1 && len(numeric) >= 1:
		rec = compareGroups(groups, in.Normality, in.Homogeneity)
	case len(numeric) >= 2 && len(groups) == 0:
		rec = correlate(in.Normality)
	default:
		rec = build(method.KindDescriptive, "The data has neither a grouping variable with a numeric outcome nor two numeric variables.")
		rec.Suggestions = append(rec.Suggestions, "Add a group variable or more numeric variables to run an inferential test.")
		if len(groups) >= 2 {
			rec.Alternatives = append(rec.Alternatives, method.KindChiSquare.String())
		}
	}

	rec.Suggestions = append(rec.Suggestions, goalSuggestions(ParseGoal(in.Goal), rec.Kind)...)
	if rec.Alternatives == nil {
		rec.Alternatives = []string{}
	}
	return rec
}

func build(kind method.Kind, reason string) method.Recommendation {
	return method.Recommendation{Kind: kind, Method: kind.String(), Reason: reason}
}

func anyNormal(results []assumption.NormalityResult) bool {
	for _, r := range results {
		if r.IsNormal {
			return true
		}
	}
	return false
}

// allNormal is false for an empty list: without evidence of normality the
// nonparametric branch is taken
func allNormal(results []assumption.NormalityResult) bool {
	if len(results) == 0 {
		return false
	}
	for _, r := range results {
		if !r.IsNormal {
			return false
		}
	}
	return true
}

func compareGroups(groups []profiling.Column, normality []assumption.NormalityResult, homogeneity *assumption.HomogeneityResult) method.Recommendation {
	first := groups[0]
	groupCount := first.UniqueCount
	homogeneous := homogeneity != nil && homogeneity.IsHomogeneous

	var rec method.Recommendation
	switch {
	case groupCount == 2:
		switch {
		case anyNormal(normality) && homogeneous:
			rec = build(method.KindIndependentT, "Two groups, normally distributed outcome and equal variances.")
			rec.Alternatives = []string{method.KindWelchT.String(), method.KindMannWhitney.String()}
		case anyNormal(normality):
			rec = build(method.KindWelchT, "Two groups with a normally distributed outcome but unequal variances.")
			rec.Alternatives = []string{method.KindMannWhitney.String()}
		default:
			rec = build(method.KindMannWhitney, "Two groups and the outcome is not normally distributed.")
			rec.Alternatives = []string{"Transform the outcome, then run an Independent t-test", "Permutation test"}
		}
	case groupCount > 2:
		switch {
		case allNormal(normality) && homogeneous:
			rec = build(method.KindOneWayANOVA, fmt.Sprintf("%d groups, normally distributed outcome and equal variances.", groupCount))
			rec.PostHoc = method.PostHocTukey
			rec.Alternatives = []string{method.KindWelchANOVA.String(), method.KindKruskalWallis.String()}
		case allNormal(normality):
			rec = build(method.KindWelchANOVA, fmt.Sprintf("%d groups with a normally distributed outcome but unequal variances.", groupCount))
			rec.PostHoc = method.PostHocGamesHowell
			rec.Alternatives = []string{method.KindKruskalWallis.String()}
		default:
			rec = build(method.KindKruskalWallis, fmt.Sprintf("%d groups and the outcome is not normally distributed in every group.", groupCount))
			rec.PostHoc = method.PostHocDunn
			rec.Alternatives = []string{"Transform the outcome, then run a One-way ANOVA"}
		}
	default:
		rec = build(method.KindDescriptive, fmt.Sprintf("Group column %q has fewer than two levels.", first.Name))
		rec.Suggestions = []string{fmt.Sprintf("Group column %q needs at least two distinct values for a comparison.", first.Name)}
	}

	if len(groups) >= 2 {
		rec.Alternatives = append(rec.Alternatives, method.KindTwoWayANOVA.String())
	}
	return rec
}

func correlate(normality []assumption.NormalityResult) method.Recommendation {
	if allNormal(normality) {
		rec := build(method.KindPearson, "Two or more numeric variables, all normally distributed.")
		rec.Method = method.KindPearson.String() + " / " + method.KindLinearRegression.String()
		rec.Alternatives = []string{method.KindLinearRegression.String(), method.KindSpearman.String()}
		return rec
	}
	rec := build(method.KindSpearman, "Two or more numeric variables and at least one is not normally distributed.")
	rec.Alternatives = []string{method.KindKendall.String(), "Transform the variables, then run a Pearson correlation"}
	return rec
}

func goalSuggestions(goal method.Goal, chosen method.Kind) []string {
	switch goal.Intent {
	case method.IntentPaired:
		if chosen != method.KindPairedT && chosen != method.KindWilcoxon {
			return []string{"The goal mentions paired or repeated measurements: consider a Paired t-test or Wilcoxon signed-rank test instead."}
		}
	case method.IntentPredict:
		if chosen != method.KindLinearRegression {
			return []string{"The goal is about prediction: a Linear regression reports slope and R²."}
		}
	case method.IntentRelate:
		if chosen.Family() != method.FamilyCorrelation {
			return []string{"The goal asks about a relationship: correlations need two numeric variables."}
		}
	case method.IntentAssociate:
		if chosen != method.KindChiSquare {
			return []string{"The goal asks about association between categories: consider a Chi-square test."}
		}
	case method.IntentCompare:
		if chosen.Family() != method.FamilyComparison {
			return []string{"The goal asks for a comparison: add a grouping variable with a numeric outcome."}
		}
	}
	return nil
}
