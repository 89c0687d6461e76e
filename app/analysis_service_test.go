package app

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"statguide/adapters/backend"
	"statguide/domain/core"
	"statguide/domain/method"
	"statguide/domain/profiling"
	"statguide/domain/stats"
	"statguide/internal"
	"statguide/internal/config"
	"statguide/internal/posthoc"
	internalprofiling "statguide/internal/profiling"
	"statguide/ports"
)

type MockBackend struct {
	mock.Mock
}

func (m *MockBackend) Name() string { return "mock" }

func (m *MockBackend) Run(ctx context.Context, req ports.BackendRequest) (*ports.BackendResponse, error) {
	args := m.Called(ctx, req)
	resp, _ := args.Get(0).(*ports.BackendResponse)
	return resp, args.Error(1)
}

func newService(b ports.StatsBackend) *AnalysisService {
	return NewAnalysisService(internalprofiling.NewProfiler(), b, config.Default().Analysis, internal.Discard())
}

func twoGroupTable() profiling.RawTable {
	a := []float64{5.1, 4.9, 5.3, 5.0, 5.2, 4.8, 5.1, 5.0}
	b := []float64{6.0, 6.2, 5.9, 6.1, 5.8, 6.3, 6.0, 6.1}
	group := profiling.RawColumn{Name: "group"}
	score := profiling.RawColumn{Name: "score"}
	for _, v := range a {
		group.Values = append(group.Values, "A")
		score.Values = append(score.Values, v)
	}
	for _, v := range b {
		group.Values = append(group.Values, "B")
		score.Values = append(score.Values, v)
	}
	return profiling.RawTable{Columns: []profiling.RawColumn{group, score}}
}

func TestAnalyze_LocalTwoGroups(t *testing.T) {
	report, err := newService(nil).Analyze(context.Background(), AnalysisRequest{Table: twoGroupTable()})
	require.NoError(t, err)

	assert.False(t, report.ID == "")
	assert.Equal(t, "group", report.Group)
	assert.Equal(t, "score", report.Outcome)
	require.Len(t, report.Normality, 2)
	for _, n := range report.Normality {
		assert.True(t, n.IsNormal)
		assert.Equal(t, stats.StrategyLocal, n.Strategy)
	}
	require.NotNil(t, report.Homogeneity)
	assert.True(t, report.Homogeneity.IsHomogeneous)

	assert.Equal(t, "Independent t-test", report.Recommendation.Method)
	require.NotNil(t, report.Execution)
	require.NotNil(t, report.Execution.Result)
	assert.True(t, report.Execution.Result.Significant)
	assert.Equal(t, stats.BucketHighlySignificant, report.Execution.Result.PValue)
	assert.Equal(t, stats.StrategyLocal, report.Strategy)
	assert.Nil(t, report.PostHoc)
	assert.NotEmpty(t, report.Summary)
}

func TestAnalyze_BackendStrategy(t *testing.T) {
	mb := new(MockBackend)
	mb.On("Run", mock.Anything, mock.Anything).Return(&ports.BackendResponse{Test: "exact", Statistic: 1.2, PValue: 0.3}, nil)

	report, err := newService(mb).Analyze(context.Background(), AnalysisRequest{Table: twoGroupTable()})
	require.NoError(t, err)

	assert.Equal(t, stats.StrategyBackend, report.Strategy)
	assert.Equal(t, stats.StrategyBackend, report.Normality[0].Strategy)
	assert.Equal(t, method.KindIndependentT, report.Recommendation.Kind)
	require.NotNil(t, report.Execution.Result)
	assert.Equal(t, 0.3, report.Execution.Result.PValue)
	mb.AssertCalled(t, "Run", mock.Anything, mock.MatchedBy(func(req ports.BackendRequest) bool {
		return req.Test == ports.BackendT
	}))
}

func TestAnalyze_BackendTimeoutFallsBack(t *testing.T) {
	mb := new(MockBackend)
	mb.On("Run", mock.Anything, mock.Anything).Run(func(args mock.Arguments) {
		<-args.Get(0).(context.Context).Done()
	}).Return(nil, context.DeadlineExceeded)

	svc := newService(backend.NewGuard(mb, 20*time.Millisecond))
	report, err := svc.Analyze(context.Background(), AnalysisRequest{Table: twoGroupTable()})
	require.NoError(t, err)

	assert.Equal(t, stats.StrategyLocal, report.Strategy)
	for _, n := range report.Normality {
		assert.Equal(t, stats.StrategyLocal, n.Strategy)
	}
	assert.Equal(t, method.KindIndependentT, report.Recommendation.Kind)
	require.NotNil(t, report.Execution.Result)
	assert.Equal(t, stats.StrategyLocal, report.Execution.Result.Strategy)
}

func TestAnalyze_BackendErrorFallsBack(t *testing.T) {
	mb := new(MockBackend)
	mb.On("Run", mock.Anything, mock.Anything).Return(nil, core.NewBackendError("mock", errors.New("down")))

	table, err := newService(mb).TwoWayANOVA(context.Background(),
		[]float64{1, 1.5, 2, 2.5, 3, 3.5, 4, 4.5},
		[]string{"A", "A", "A", "A", "B", "B", "B", "B"},
		[]string{"X", "X", "Y", "Y", "X", "X", "Y", "Y"})
	require.NoError(t, err)
	assert.Equal(t, stats.StrategyLocal, table.Strategy)
	assert.InDelta(t, 8.0, table.FactorA.SS, 1e-9)
	assert.InDelta(t, 2.0, table.FactorB.SS, 1e-9)
	assert.Equal(t, 4, table.Error.DF)
	mb.AssertCalled(t, "Run", mock.Anything, mock.Anything)
}

func TestAnalyze_ValidationErrorsAreNotRetried(t *testing.T) {
	mb := new(MockBackend)
	svc := newService(mb)

	_, err := svc.Correlation(context.Background(), stats.Pearson, []float64{1, 2, 3}, []float64{1, 2}, nil)
	assert.ErrorIs(t, err, core.ErrLengthMismatch)
	mb.AssertNotCalled(t, "Run", mock.Anything, mock.Anything)
}

func TestAnalyze_EmptyDataset(t *testing.T) {
	_, err := newService(nil).Analyze(context.Background(), AnalysisRequest{})
	require.Error(t, err)
	assert.True(t, IsEmptyDataset(err))
}

func TestAnalyze_NoRows(t *testing.T) {
	table := profiling.RawTable{Columns: []profiling.RawColumn{{Name: "a"}, {Name: "b"}}}

	report, err := newService(nil).Analyze(context.Background(), AnalysisRequest{Table: table})
	require.NoError(t, err)
	assert.True(t, report.Profile.NoData)
	assert.Equal(t, method.KindDescriptive, report.Recommendation.Kind)
	assert.Contains(t, report.Issues, internalprofiling.IssueNoData)
}

func TestAnalyze_Correlation(t *testing.T) {
	x := profiling.RawColumn{Name: "x"}
	y := profiling.RawColumn{Name: "y"}
	ys := []float64{2.1, 3.9, 6.2, 8.1, 9.8, 12.2, 13.9, 16.1, 18.0, 20.2}
	for i, v := range ys {
		x.Values = append(x.Values, float64(i+1))
		y.Values = append(y.Values, v)
	}
	y.Values = append(y.Values, "n/a")
	x.Values = append(x.Values, 11.0)

	report, err := newService(nil).Analyze(context.Background(), AnalysisRequest{
		Table: profiling.RawTable{Columns: []profiling.RawColumn{x, y}},
		Goal:  "Is there a relationship between x and y?",
	})
	require.NoError(t, err)

	assert.Equal(t, method.KindPearson, report.Recommendation.Kind)
	require.NotNil(t, report.Matrix)
	assert.Equal(t, []string{"x", "y"}, report.Matrix.Variables)
	require.NotNil(t, report.Execution)
	require.NotNil(t, report.Execution.Correlation)
	assert.Equal(t, "x", report.Execution.Correlation.VariableX)
	assert.Equal(t, 10, report.Execution.Correlation.N)
	assert.Greater(t, report.Execution.Correlation.Correlation, 0.99)
	require.NotEmpty(t, report.Keywords)
	assert.Equal(t, method.KindPearson, report.Keywords[0].Kind)
}

func TestAnalyze_RequestedColumns(t *testing.T) {
	table := twoGroupTable()
	table.Columns = append(table.Columns, profiling.RawColumn{Name: "site", Values: []interface{}{
		"n", "s", "e", "n", "s", "e", "n", "s", "e", "n", "s", "e", "n", "s", "e", "n",
	}})

	report, err := newService(nil).Assess(context.Background(), AnalysisRequest{Table: table, Group: "site"})
	require.NoError(t, err)
	assert.Equal(t, "site", report.Group)
	assert.Len(t, report.Normality, 3)
	assert.Contains(t, report.Recommendation.Reason, "3 groups")

	report, err = newService(nil).Assess(context.Background(), AnalysisRequest{Table: table, Group: "missing", Outcome: "group"})
	require.NoError(t, err)
	assert.Equal(t, "group", report.Group)
	assert.Equal(t, "score", report.Outcome)
	assert.Len(t, report.Issues, 2)
}

func TestAnalyze_MultiGroupRunsPostHoc(t *testing.T) {
	group := profiling.RawColumn{Name: "dose"}
	score := profiling.RawColumn{Name: "response"}
	base := []float64{-0.2, 0.1, 0.0, 0.2, -0.1, 0.1, -0.1, 0.0}
	for i, level := range []string{"low", "mid", "high"} {
		for _, d := range base {
			group.Values = append(group.Values, level)
			score.Values = append(score.Values, float64(10*(i+1))+d)
		}
	}

	report, err := newService(nil).Analyze(context.Background(), AnalysisRequest{
		Table: profiling.RawTable{Columns: []profiling.RawColumn{group, score}},
	})
	require.NoError(t, err)

	assert.Equal(t, method.KindOneWayANOVA, report.Recommendation.Kind)
	require.NotNil(t, report.Execution.Result)
	assert.True(t, report.Execution.Result.Significant)
	require.NotNil(t, report.PostHoc)
	assert.Equal(t, string(method.PostHocTukey), report.PostHoc.Method)
	assert.Equal(t, string(posthoc.Bonferroni), report.PostHoc.Correction)
	assert.Len(t, report.PostHoc.Comparisons, 3)
}

func TestRun_EveryKind(t *testing.T) {
	in := TestInput{
		Groups: []stats.Sample{
			{Name: "a", Values: []float64{4.1, 5.2, 6.3, 5.5, 4.8, 5.9}},
			{Name: "b", Values: []float64{6.0, 7.4, 7.1, 8.2, 6.6, 7.9}},
			{Name: "c", Values: []float64{9.1, 8.7, 9.9, 10.4, 9.5, 8.8}},
		},
		X:       []float64{1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12},
		Y:       []float64{2.3, 2.9, 4.2, 4.1, 5.8, 6.1, 7.4, 7.2, 9.1, 9.6, 10.2, 12.5},
		Z:       []float64{1, 1, 2, 3, 5, 8, 13, 21, 34, 55, 89, 144},
		FactorA: []string{"p", "p", "p", "p", "p", "p", "q", "q", "q", "q", "q", "q"},
		FactorB: []string{"u", "u", "u", "v", "v", "v", "u", "u", "u", "v", "v", "v"},
	}

	svc := newService(nil)
	for _, kind := range method.AllKinds() {
		t.Run(kind.Slug(), func(t *testing.T) {
			exec, err := svc.Run(context.Background(), kind, in)
			require.NoError(t, err)
			assert.Equal(t, kind, exec.Kind)
			assert.Equal(t, stats.StrategyLocal, exec.Strategy)

			set := 0
			for _, present := range []bool{exec.Result != nil, exec.Correlation != nil, exec.ANOVA != nil} {
				if present {
					set++
				}
			}
			assert.Equal(t, 1, set)
		})
	}

	_, err := svc.Run(context.Background(), method.Kind(99), in)
	assert.True(t, core.IsValidationError(err))

	_, err = svc.Run(context.Background(), method.KindIndependentT, TestInput{Groups: in.Groups[:1]})
	assert.ErrorIs(t, err, core.ErrTooFewLevels)
}

func TestMatrixUsesConfiguredAlpha(t *testing.T) {
	vars := []stats.Sample{
		{Name: "a", Values: []float64{1, 2, 3, 4, 5, 6}},
		{Name: "b", Values: []float64{2, 4, 5, 4, 5, 7}},
		{Name: "c", Values: []float64{6, 5, 4, 3, 2, 1}},
	}
	m, err := newService(nil).Matrix(context.Background(), vars, stats.Spearman, 0)
	require.NoError(t, err)
	assert.Equal(t, 0.05, m.Alpha)
	assert.Equal(t, stats.Spearman, m.Method)
}

func TestNewExportDocument(t *testing.T) {
	table := twoGroupTable()
	report, err := newService(nil).Analyze(context.Background(), AnalysisRequest{Table: table})
	require.NoError(t, err)

	doc := NewExportDocument(table, report)
	assert.Equal(t, 16, doc.Metadata.RowCount)
	assert.Equal(t, 2, doc.Metadata.ColCount)
	assert.Equal(t, report.ID, doc.Metadata.AnalysisID)
	assert.False(t, doc.Date.IsZero())
	assert.Same(t, report, doc.Results)
	assert.Equal(t, report.DataHash, doc.Metadata.DataHash)

	doc = NewExportDocument(table, nil)
	assert.Empty(t, doc.Metadata.AnalysisID)
}

func TestGroupSamples(t *testing.T) {
	groups, err := GroupSamples(twoGroupTable(), "score", "group")
	require.NoError(t, err)
	require.Len(t, groups, 2)
	assert.Equal(t, "A", groups[0].Name)
	assert.Len(t, groups[1].Values, 8)

	_, err = GroupSamples(twoGroupTable(), "weight", "group")
	assert.True(t, core.IsValidationError(err))
}

func TestFingerprint(t *testing.T) {
	a, b := twoGroupTable(), twoGroupTable()
	assert.Equal(t, Fingerprint(a), Fingerprint(b))

	b.Columns[1].Values[0] = 5.2
	assert.NotEqual(t, Fingerprint(a), Fingerprint(b))
	assert.Len(t, Fingerprint(a).String(), 64)
}
