package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strings"

	"statguide/domain/assumption"
	"statguide/domain/core"
	"statguide/domain/method"
	"statguide/domain/profiling"
	"statguide/domain/stats"
	"statguide/internal"
	internalassumption "statguide/internal/assumption"
	"statguide/internal/config"
	"statguide/internal/fallback"
	"statguide/internal/interpret"
	"statguide/internal/posthoc"
	internalprofiling "statguide/internal/profiling"
	"statguide/internal/recommend"
	"statguide/ports"
)

// AnalysisService runs the profile -> assumptions -> recommend -> execute
// pipeline. Every computation first tries the backend for exact p-values and
// reruns on the critical tables when the backend is unavailable.
type AnalysisService struct {
	profiler    ports.ProfilerPort
	backend     ports.StatsBackend
	assumptions *internalassumption.Adapter
	tables      fallback.Significance
	alpha       float64
	matrix      fallback.MatrixOptions
	logger      *internal.Logger
}

// AnalysisRequest selects what to analyse. Outcome and Group name columns of
// the table; when empty the first numeric and first group column are used.
type AnalysisRequest struct {
	Table   profiling.RawTable `json:"table"`
	Goal    string             `json:"goal,omitempty"`
	Outcome string             `json:"outcome,omitempty"`
	Group   string             `json:"group,omitempty"`
}

// Assessment is everything needed to choose a method, without running it
type Assessment struct {
	Profile        profiling.Profile              `json:"profile"`
	Outcome        string                         `json:"outcome,omitempty"`
	Group          string                         `json:"group,omitempty"`
	Normality      []assumption.NormalityResult   `json:"normality"`
	Homogeneity    *assumption.HomogeneityResult  `json:"homogeneity,omitempty"`
	Recommendation method.Recommendation          `json:"recommendation"`
	Keywords       []method.KeywordRecommendation `json:"keywords,omitempty"`
	Issues         []string                       `json:"issues,omitempty"`

	groups  []stats.Sample
	numeric []stats.Sample
}

// AnalysisReport is the immutable result of one Analyze call
type AnalysisReport struct {
	ID        core.AnalysisID `json:"id"`
	CreatedAt core.Timestamp  `json:"created_at"`
	DataHash  core.DataHash   `json:"data_hash"`
	Assessment
	Execution *Execution               `json:"execution,omitempty"`
	Matrix    *stats.CorrelationMatrix `json:"matrix,omitempty"`
	PostHoc   *stats.PostHocResult     `json:"post_hoc,omitempty"`
	Summary   string                   `json:"summary"`
	Strategy  stats.Strategy           `json:"strategy"`
}

// NewAnalysisService wires the pipeline. A nil backend runs everything locally.
func NewAnalysisService(profiler ports.ProfilerPort, backend ports.StatsBackend, cfg config.AnalysisConfig, logger *internal.Logger) *AnalysisService {
	if logger == nil {
		logger = internal.DefaultLogger
	}
	alpha := cfg.SignificanceAlpha
	if alpha <= 0 || alpha >= 1 {
		alpha = 0.05
	}
	return &AnalysisService{
		profiler:    profiler,
		backend:     backend,
		assumptions: internalassumption.NewAdapter(backend, logger),
		tables:      fallback.NewTables(),
		alpha:       alpha,
		matrix: fallback.MatrixOptions{
			Workers:          cfg.MatrixWorkers,
			OffloadThreshold: cfg.MatrixOffloadThreshold,
		},
		logger: logger.With("Analysis"),
	}
}

// withStrategy runs fn against the backend and, if the backend fails, once
// more against the critical tables. Errors other than backend failures are
// returned as they are.
func withStrategy[T any](ctx context.Context, s *AnalysisService, op string, fn func(fallback.Significance) (T, error)) (T, error) {
	if s.backend != nil {
		out, err := fn(newBackendSignificance(ctx, s.backend))
		if err == nil || !core.IsBackendError(err) {
			return out, err
		}
		s.logger.Warn("%s: %v; using local approximation", op, err)
	}
	return fn(s.tables)
}

// Profile classifies the columns of a table
func (s *AnalysisService) Profile(table profiling.RawTable) profiling.Profile {
	return s.profiler.Profile(table)
}

// Assess profiles the table, checks assumptions on the chosen outcome and
// recommends a method. Only a table without columns is an error.
func (s *AnalysisService) Assess(ctx context.Context, req AnalysisRequest) (*Assessment, error) {
	if len(req.Table.Columns) == 0 {
		return nil, core.ErrEmptyDataset
	}

	profile := s.profiler.Profile(req.Table)
	a := &Assessment{
		Profile:   profile,
		Normality: []assumption.NormalityResult{},
	}
	a.Issues = append(a.Issues, profile.Issues...)

	view := profile
	if !profile.NoData {
		rows := profile.RowCount
		for _, c := range profile.ColumnsOfType(profiling.TypeNumeric) {
			raw, _ := req.Table.Column(c.Name)
			a.numeric = append(a.numeric, stats.Sample{Name: c.Name, Values: internalprofiling.Aligned(raw, rows)})
		}

		group := a.pick(profile, req.Group, profiling.TypeGroup)
		outcome := a.pick(profile, req.Outcome, profiling.TypeNumeric)

		if group != "" && outcome != "" {
			a.Group, a.Outcome = group, outcome
			a.groups = groupSamples(req.Table, outcome, group, rows)
			for _, g := range a.groups {
				a.Normality = append(a.Normality, s.assumptions.Normality(ctx, fmt.Sprintf("%s[%s]", outcome, g.Name), g.Values))
			}
			if len(a.groups) >= 2 {
				h := s.assumptions.Homogeneity(ctx, a.groups)
				a.Homogeneity = &h
			}
			view = promote(profile, group)
		} else {
			for _, v := range a.numeric {
				a.Normality = append(a.Normality, s.assumptions.Normality(ctx, v.Name, present(v.Values)))
			}
		}
	}

	a.Recommendation = recommend.Recommend(recommend.Input{
		Profile:     view,
		Normality:   a.Normality,
		Homogeneity: a.Homogeneity,
		Goal:        req.Goal,
	})
	if strings.TrimSpace(req.Goal) != "" {
		a.Keywords = recommend.RecommendByKeywords(req.Goal, recommend.ShapeOf(profile))
	}
	return a, nil
}

// pick resolves a requested column of the wanted type, falling back to the
// first column of that type
func (a *Assessment) pick(profile profiling.Profile, name string, want profiling.SemanticType) string {
	if name != "" {
		col, ok := profile.Lookup(name)
		switch {
		case !ok:
			a.Issues = append(a.Issues, core.NewMissingVariableError(name).Error())
		case col.SemanticType != want:
			a.Issues = append(a.Issues, fmt.Sprintf("column %q is %s, not %s", name, col.SemanticType, want))
		default:
			return name
		}
	}
	if cols := profile.ColumnsOfType(want); len(cols) > 0 {
		return cols[0].Name
	}
	return ""
}

// Fingerprint hashes the table's JSON encoding so reports can be traced back
// to the exact cells they were computed from
func Fingerprint(table profiling.RawTable) core.DataHash {
	canonical, err := json.Marshal(table)
	if err != nil {
		// Unencodable cells (NaN floats) fall back to their printed form
		canonical = []byte(fmt.Sprintf("%v", table.Columns))
	}
	return core.NewDataHash(canonical)
}

// GroupSamples splits a numeric outcome column by the labels of a group column
func GroupSamples(table profiling.RawTable, outcome, group string) ([]stats.Sample, error) {
	if _, ok := table.Column(outcome); !ok {
		return nil, core.NewValidationError("outcome", fmt.Sprintf("no column %q", outcome))
	}
	if _, ok := table.Column(group); !ok {
		return nil, core.NewValidationError("group", fmt.Sprintf("no column %q", group))
	}
	return groupSamples(table, outcome, group, table.RowCount()), nil
}

// groupSamples splits the outcome by group, dropping rows where either is missing
func groupSamples(table profiling.RawTable, outcome, group string, rows int) []stats.Sample {
	valueCol, _ := table.Column(outcome)
	labelCol, _ := table.Column(group)
	values := internalprofiling.Aligned(valueCol, rows)
	labels := internalprofiling.Labels(labelCol)

	keptValues := make([]float64, 0, rows)
	keptLabels := make([]string, 0, rows)
	for i, v := range values {
		if math.IsNaN(v) || i >= len(labels) || labels[i] == "" {
			continue
		}
		keptValues = append(keptValues, v)
		keptLabels = append(keptLabels, labels[i])
	}
	return fallback.GroupBy(keptValues, keptLabels)
}

// promote moves the named column to the front so it becomes the first group column
func promote(p profiling.Profile, name string) profiling.Profile {
	cols := make([]profiling.Column, 0, len(p.Columns))
	for _, c := range p.Columns {
		if c.Name == name {
			cols = append([]profiling.Column{c}, cols...)
		} else {
			cols = append(cols, c)
		}
	}
	p.Columns = cols
	return p
}

func present(values []float64) []float64 {
	out := make([]float64, 0, len(values))
	for _, v := range values {
		if !math.IsNaN(v) {
			out = append(out, v)
		}
	}
	return out
}

// Analyze assesses the table and runs the recommended method. Failures of
// individual steps are recorded as issues on the report.
func (s *AnalysisService) Analyze(ctx context.Context, req AnalysisRequest) (*AnalysisReport, error) {
	a, err := s.Assess(ctx, req)
	if err != nil {
		return nil, err
	}

	report := &AnalysisReport{
		ID:         core.NewAnalysisID(),
		CreatedAt:  core.Now(),
		DataHash:   Fingerprint(req.Table),
		Assessment: *a,
		Strategy:   stats.StrategyLocal,
	}
	rec := a.Recommendation

	switch rec.Kind.Family() {
	case method.FamilyComparison:
		exec, err := s.Run(ctx, rec.Kind, TestInput{Groups: a.groups})
		if err != nil {
			report.issue(rec.Method, err)
			break
		}
		report.Execution = exec
		if rec.PostHoc != method.PostHocNone && len(a.groups) > 2 && exec.Result != nil && exec.Result.Significant {
			ph, err := s.PostHoc(ctx, a.groups, rec.PostHoc, posthoc.Bonferroni)
			if err != nil {
				report.issue(string(rec.PostHoc), err)
			} else {
				report.PostHoc = &ph
			}
		}

	case method.FamilyCorrelation:
		corrMethod := correlationMethod(rec.Kind)
		m, err := s.Matrix(ctx, a.numeric, corrMethod, 0)
		if err != nil {
			report.issue("correlation matrix", err)
		} else {
			report.Matrix = &m
			report.Issues = append(report.Issues, m.Issues...)
		}
		if len(a.numeric) >= 2 {
			x, y := fallback.CompletePairs(a.numeric[0].Values, a.numeric[1].Values)
			exec, err := s.Run(ctx, rec.Kind, TestInput{X: x, Y: y})
			if err != nil {
				report.issue(rec.Method, err)
			} else {
				if exec.Correlation != nil {
					exec.Correlation.VariableX = a.numeric[0].Name
					exec.Correlation.VariableY = a.numeric[1].Name
				}
				report.Execution = exec
			}
		}

	default:
		groups := a.groups
		if len(groups) == 0 {
			for _, v := range a.numeric {
				groups = append(groups, stats.Sample{Name: v.Name, Values: present(v.Values)})
			}
		}
		exec, err := s.Run(ctx, method.KindDescriptive, TestInput{Groups: groups})
		if err != nil {
			report.issue(rec.Method, err)
		} else {
			report.Execution = exec
		}
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	switch {
	case report.Execution != nil:
		report.Strategy = report.Execution.Strategy
	case report.Matrix != nil:
		report.Strategy = report.Matrix.Strategy
	}
	report.Summary = report.summarize()

	s.logger.Info("analysis %s on %s: %s (%s, %d issues)", report.ID, report.DataHash.Short(), rec.Method, report.Strategy, len(report.Issues))
	return report, nil
}

func (r *AnalysisReport) issue(step string, err error) {
	r.Issues = append(r.Issues, fmt.Sprintf("%s: %v", step, err))
}

func (r *AnalysisReport) summarize() string {
	switch {
	case r.Execution != nil && r.Execution.Result != nil:
		return interpret.Report(*r.Execution.Result, r.PostHoc)
	case r.Execution != nil && r.Execution.Correlation != nil:
		c := r.Execution.Correlation
		return fmt.Sprintf("%s: r = %.3f, %s. %s.", r.Recommendation.Method, c.Correlation, interpret.FormatP(c.PValue, c.Strategy), c.Interpretation)
	default:
		return r.Recommendation.Reason
	}
}

// TwoWayANOVA runs a two-way analysis of variance
func (s *AnalysisService) TwoWayANOVA(ctx context.Context, values []float64, factorA, factorB []string) (stats.ANOVATable, error) {
	return withStrategy(ctx, s, "two-way ANOVA", func(sig fallback.Significance) (stats.ANOVATable, error) {
		return fallback.NewANOVAEngine(sig).TwoWay(values, factorA, factorB)
	})
}

// Correlation computes one coefficient. z is only read by the partial method.
func (s *AnalysisService) Correlation(ctx context.Context, m stats.CorrelationMethod, x, y, z []float64) (stats.CorrelationResult, error) {
	return withStrategy(ctx, s, string(m)+" correlation", func(sig fallback.Significance) (stats.CorrelationResult, error) {
		engine := fallback.NewCorrelationEngine(sig)
		if m == stats.Partial {
			return engine.Partial(x, y, z)
		}
		return engine.Compute(m, x, y)
	})
}

// Matrix correlates every pair of variables. alpha <= 0 uses the configured alpha.
func (s *AnalysisService) Matrix(ctx context.Context, vars []stats.Sample, m stats.CorrelationMethod, alpha float64) (stats.CorrelationMatrix, error) {
	if alpha <= 0 {
		alpha = s.alpha
	}
	return withStrategy(ctx, s, "correlation matrix", func(sig fallback.Significance) (stats.CorrelationMatrix, error) {
		return fallback.NewMatrixEngine(fallback.NewCorrelationEngine(sig), s.matrix).Matrix(ctx, vars, m, alpha)
	})
}

// PostHoc runs pairwise comparisons with a multiple-comparison correction
func (s *AnalysisService) PostHoc(ctx context.Context, groups []stats.Sample, ph method.PostHoc, correction posthoc.Correction) (stats.PostHocResult, error) {
	return withStrategy(ctx, s, "post-hoc", func(sig fallback.Significance) (stats.PostHocResult, error) {
		return posthoc.NewEngine(sig, s.alpha).Compare(groups, ph, correction)
	})
}

// IsEmptyDataset reports whether err means the table had nothing to analyse
func IsEmptyDataset(err error) bool {
	return errors.Is(err, core.ErrEmptyDataset)
}
