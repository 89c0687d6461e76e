package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"statguide/adapters/table"
	"statguide/app"
	"statguide/domain/method"
	"statguide/domain/profiling"
	"statguide/domain/stats"
	"statguide/internal/fallback"
	"statguide/internal/posthoc"
	internalprofiling "statguide/internal/profiling"
	"statguide/internal/recommend"
)

func (e *env) load(path, sheet string) (profiling.RawTable, error) {
	return table.NewReader(path, e.logger).WithSheet(sheet).Read()
}

// column reads a named column aligned to the table's rows
func column(t profiling.RawTable, name string) ([]float64, error) {
	col, ok := t.Column(name)
	if !ok {
		return nil, fmt.Errorf("no column %q", name)
	}
	return internalprofiling.Aligned(col, t.RowCount()), nil
}

func labels(t profiling.RawTable, name string) ([]string, error) {
	col, ok := t.Column(name)
	if !ok {
		return nil, fmt.Errorf("no column %q", name)
	}
	return internalprofiling.Labels(col), nil
}

func newProfileCmd(e *env) *cobra.Command {
	var sheet string

	cmd := &cobra.Command{
		Use:   "profile [data-file]",
		Short: "Profile every column of a CSV, XLSX or JSON table",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			t, err := e.load(args[0], sheet)
			if err != nil {
				return err
			}
			return e.print(e.service.Profile(t))
		},
	}
	cmd.Flags().StringVar(&sheet, "sheet", "", "Worksheet name for XLSX files")
	return cmd
}

type analysisFlags struct {
	sheet   string
	goal    string
	outcome string
	group   string
}

func (f *analysisFlags) bind(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.sheet, "sheet", "", "Worksheet name for XLSX files")
	cmd.Flags().StringVar(&f.goal, "goal", "", "Research goal in plain words")
	cmd.Flags().StringVar(&f.outcome, "outcome", "", "Numeric outcome column")
	cmd.Flags().StringVar(&f.group, "group", "", "Grouping column")
}

func (e *env) request(path string, f analysisFlags) (app.AnalysisRequest, error) {
	t, err := e.load(path, f.sheet)
	if err != nil {
		return app.AnalysisRequest{}, err
	}
	return app.AnalysisRequest{Table: t, Goal: f.goal, Outcome: f.outcome, Group: f.group}, nil
}

func newRecommendCmd(e *env) *cobra.Command {
	var flags analysisFlags

	cmd := &cobra.Command{
		Use:   "recommend [data-file]",
		Short: "Check assumptions and recommend a method without running it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			req, err := e.request(args[0], flags)
			if err != nil {
				return err
			}
			assessment, err := e.service.Assess(cmd.Context(), req)
			if err != nil {
				return err
			}
			return e.print(assessment)
		},
	}
	flags.bind(cmd)
	return cmd
}

func newKeywordsCmd(e *env) *cobra.Command {
	var shape recommend.DataShape

	cmd := &cobra.Command{
		Use:   "keywords [goal]",
		Short: "Rank methods by the wording of a research goal",
		Long: `Rank methods by the wording of a research goal, adjusted for the data shape.

Example: statguide keywords "compare scores before and after training" --numeric 2 --n 20`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return e.print(recommend.RecommendByKeywords(args[0], shape))
		},
	}
	cmd.Flags().IntVar(&shape.NumericColumns, "numeric", 0, "Number of numeric columns")
	cmd.Flags().IntVar(&shape.CategoricalColumns, "categorical", 0, "Number of categorical columns")
	cmd.Flags().IntVar(&shape.SampleSize, "n", 0, "Sample size")
	return cmd
}

func newAnalyzeCmd(e *env) *cobra.Command {
	var flags analysisFlags
	var export string

	cmd := &cobra.Command{
		Use:   "analyze [data-file]",
		Short: "Recommend a method and run it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			req, err := e.request(args[0], flags)
			if err != nil {
				return err
			}
			report, err := e.service.Analyze(cmd.Context(), req)
			if err != nil {
				return err
			}
			if export != "" {
				if err := writeExport(export, app.NewExportDocument(req.Table, report)); err != nil {
					return err
				}
				e.logger.Info("export written to %s", export)
			}
			return e.print(report)
		},
	}
	flags.bind(cmd)
	cmd.Flags().StringVar(&export, "export", "", "Also write an export document to this path")
	return cmd
}

func writeExport(path string, doc app.ExportDocument) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create export: %w", err)
	}
	defer f.Close()
	return (&env{out: f}).print(doc)
}

type columnFlags struct {
	sheet   string
	outcome string
	group   string
	x, y, z string
	factorA string
	factorB string
}

// input gathers whichever columns were named into a TestInput
func (f columnFlags) input(t profiling.RawTable) (app.TestInput, error) {
	var in app.TestInput
	var err error
	if f.outcome != "" && f.group != "" {
		if in.Groups, err = app.GroupSamples(t, f.outcome, f.group); err != nil {
			return in, err
		}
	}
	for _, c := range []struct {
		name string
		dst  *[]float64
	}{{f.x, &in.X}, {f.y, &in.Y}, {f.z, &in.Z}} {
		if c.name == "" {
			continue
		}
		if *c.dst, err = column(t, c.name); err != nil {
			return in, err
		}
	}
	if in.Z != nil {
		in.X, in.Y, in.Z = fallback.CompleteTriples(in.X, in.Y, in.Z)
	} else if in.X != nil && in.Y != nil {
		in.X, in.Y = fallback.CompletePairs(in.X, in.Y)
	}
	for _, c := range []struct {
		name string
		dst  *[]string
	}{{f.factorA, &in.FactorA}, {f.factorB, &in.FactorB}} {
		if c.name == "" {
			continue
		}
		if *c.dst, err = labels(t, c.name); err != nil {
			return in, err
		}
	}
	return in, nil
}

func newTestCmd(e *env) *cobra.Command {
	var flags columnFlags

	cmd := &cobra.Command{
		Use:   "test [method] [data-file]",
		Short: "Run one method from the menu on named columns",
		Long: `Run one method from the menu on named columns.

Comparisons read --outcome split by --group. Correlations and regression read
--x and --y (and --z for partial correlation). The chi-square test reads
--factor-a and --factor-b.

Example: statguide test welch_t scores.csv --outcome score --group arm`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			kind, err := method.ParseKind(args[0])
			if err != nil {
				return err
			}
			t, err := e.load(args[1], flags.sheet)
			if err != nil {
				return err
			}
			in, err := flags.input(t)
			if err != nil {
				return err
			}
			exec, err := e.service.Run(cmd.Context(), kind, in)
			if err != nil {
				return err
			}
			return e.print(exec)
		},
	}
	cmd.Flags().StringVar(&flags.sheet, "sheet", "", "Worksheet name for XLSX files")
	cmd.Flags().StringVar(&flags.outcome, "outcome", "", "Numeric outcome column")
	cmd.Flags().StringVar(&flags.group, "group", "", "Grouping column")
	cmd.Flags().StringVar(&flags.x, "x", "", "First numeric column")
	cmd.Flags().StringVar(&flags.y, "y", "", "Second numeric column")
	cmd.Flags().StringVar(&flags.z, "z", "", "Control column for partial correlation")
	cmd.Flags().StringVar(&flags.factorA, "factor-a", "", "Row factor column")
	cmd.Flags().StringVar(&flags.factorB, "factor-b", "", "Column factor column")
	return cmd
}

func newTwoWayCmd(e *env) *cobra.Command {
	var sheet, outcome, factorA, factorB string

	cmd := &cobra.Command{
		Use:   "anova [data-file]",
		Short: "Two-way ANOVA with interaction",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			t, err := e.load(args[0], sheet)
			if err != nil {
				return err
			}
			values, err := column(t, outcome)
			if err != nil {
				return err
			}
			a, err := labels(t, factorA)
			if err != nil {
				return err
			}
			b, err := labels(t, factorB)
			if err != nil {
				return err
			}
			res, err := e.service.TwoWayANOVA(cmd.Context(), values, a, b)
			if err != nil {
				return err
			}
			res.FactorAName, res.FactorBName = factorA, factorB
			return e.print(res)
		},
	}
	cmd.Flags().StringVar(&sheet, "sheet", "", "Worksheet name for XLSX files")
	cmd.Flags().StringVar(&outcome, "outcome", "", "Numeric outcome column")
	cmd.Flags().StringVar(&factorA, "factor-a", "", "First factor column")
	cmd.Flags().StringVar(&factorB, "factor-b", "", "Second factor column")
	_ = cmd.MarkFlagRequired("outcome")
	_ = cmd.MarkFlagRequired("factor-a")
	_ = cmd.MarkFlagRequired("factor-b")
	return cmd
}

func parseMethod(s string) (stats.CorrelationMethod, error) {
	m := stats.CorrelationMethod(s)
	if !m.Valid() {
		return "", fmt.Errorf("unknown correlation method %q", s)
	}
	return m, nil
}

func newCorrelateCmd(e *env) *cobra.Command {
	var flags columnFlags
	var methodName string

	cmd := &cobra.Command{
		Use:   "correlate [data-file]",
		Short: "Correlate two columns, optionally controlling for a third",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			m, err := parseMethod(methodName)
			if err != nil {
				return err
			}
			t, err := e.load(args[0], flags.sheet)
			if err != nil {
				return err
			}
			in, err := flags.input(t)
			if err != nil {
				return err
			}
			res, err := e.service.Correlation(cmd.Context(), m, in.X, in.Y, in.Z)
			if err != nil {
				return err
			}
			return e.print(res)
		},
	}
	cmd.Flags().StringVar(&flags.sheet, "sheet", "", "Worksheet name for XLSX files")
	cmd.Flags().StringVar(&methodName, "method", string(stats.Pearson), "pearson|spearman|kendall|partial")
	cmd.Flags().StringVar(&flags.x, "x", "", "First numeric column")
	cmd.Flags().StringVar(&flags.y, "y", "", "Second numeric column")
	cmd.Flags().StringVar(&flags.z, "z", "", "Control column for partial correlation")
	_ = cmd.MarkFlagRequired("x")
	_ = cmd.MarkFlagRequired("y")
	return cmd
}

func newMatrixCmd(e *env) *cobra.Command {
	var sheet, methodName string
	var alpha float64
	var columns []string

	cmd := &cobra.Command{
		Use:   "matrix [data-file]",
		Short: "Pairwise correlation matrix over numeric columns",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			m, err := parseMethod(methodName)
			if err != nil {
				return err
			}
			t, err := e.load(args[0], sheet)
			if err != nil {
				return err
			}
			if len(columns) == 0 {
				for _, c := range e.service.Profile(t).ColumnsOfType(profiling.TypeNumeric) {
					columns = append(columns, c.Name)
				}
			}
			vars := make([]stats.Sample, 0, len(columns))
			for _, name := range columns {
				values, err := column(t, name)
				if err != nil {
					return err
				}
				vars = append(vars, stats.Sample{Name: name, Values: values})
			}
			res, err := e.service.Matrix(cmd.Context(), vars, m, alpha)
			if err != nil {
				return err
			}
			return e.print(res)
		},
	}
	cmd.Flags().StringVar(&sheet, "sheet", "", "Worksheet name for XLSX files")
	cmd.Flags().StringVar(&methodName, "method", string(stats.Pearson), "pearson|spearman|kendall")
	cmd.Flags().Float64Var(&alpha, "alpha", 0, "Significance level (defaults to SIGNIFICANCE_ALPHA)")
	cmd.Flags().StringSliceVar(&columns, "columns", nil, "Columns to include (defaults to every numeric column)")
	return cmd
}

func newPostHocCmd(e *env) *cobra.Command {
	var sheet, outcome, group, methodName, correctionName string

	cmd := &cobra.Command{
		Use:   "posthoc [data-file]",
		Short: "Pairwise comparisons between the levels of a group",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ph, err := posthoc.ParseMethod(methodName)
			if err != nil {
				return err
			}
			correction, err := posthoc.ParseCorrection(correctionName)
			if err != nil {
				return err
			}
			t, err := e.load(args[0], sheet)
			if err != nil {
				return err
			}
			groups, err := app.GroupSamples(t, outcome, group)
			if err != nil {
				return err
			}
			res, err := e.service.PostHoc(cmd.Context(), groups, ph, correction)
			if err != nil {
				return err
			}
			return e.print(res)
		},
	}
	cmd.Flags().StringVar(&sheet, "sheet", "", "Worksheet name for XLSX files")
	cmd.Flags().StringVar(&outcome, "outcome", "", "Numeric outcome column")
	cmd.Flags().StringVar(&group, "group", "", "Grouping column")
	cmd.Flags().StringVar(&methodName, "method", "tukey", "tukey|games-howell|dunn|pairwise")
	cmd.Flags().StringVar(&correctionName, "correction", "", "bonferroni|holm|benjamini_hochberg")
	_ = cmd.MarkFlagRequired("outcome")
	_ = cmd.MarkFlagRequired("group")
	return cmd
}
