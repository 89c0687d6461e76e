// Package profiling classifies the columns of a raw table and summarises
// their numeric content.
package profiling

import (
	"fmt"
	"math"
	"sort"

	"statguide/domain/profiling"
)

// Thresholds used by type inference
const (
	numericThreshold    = 0.8
	mixedThreshold      = 0.5
	minGroupCardinality = 10
	groupRowFraction    = 0.5
	topValueLimit       = 5
)

// IssueNoData is the single issue reported for an empty table
const IssueNoData = "no data"

// Profiler classifies columns. The zero value is ready to use and holds no state.
type Profiler struct{}

// NewProfiler creates a profiler
func NewProfiler() *Profiler {
	return &Profiler{}
}

// Profile classifies every column of the table in input order. An empty table
// yields a profile with NoData set instead of an error.
func (p *Profiler) Profile(table profiling.RawTable) profiling.Profile {
	rows := table.RowCount()
	if len(table.Columns) == 0 || rows == 0 {
		return profiling.Profile{
			Columns:     []profiling.Column{},
			Issues:      []string{IssueNoData},
			ColumnCount: len(table.Columns),
			NoData:      true,
		}
	}

	out := profiling.Profile{
		Columns:     make([]profiling.Column, 0, len(table.Columns)),
		Issues:      []string{},
		RowCount:    rows,
		ColumnCount: len(table.Columns),
	}
	for _, raw := range table.Columns {
		col := profileColumn(raw, rows)
		if col.ValidCount == 0 {
			out.Issues = append(out.Issues, fmt.Sprintf("column %q is empty", col.Name))
		}
		out.Columns = append(out.Columns, col)
	}
	return out
}

func profileColumn(raw profiling.RawColumn, rows int) profiling.Column {
	col := profiling.Column{Name: raw.Name, SemanticType: profiling.TypeText}

	var numbers []float64
	counts := make(map[string]int)
	for i := 0; i < rows; i++ {
		var v interface{}
		if i < len(raw.Values) {
			v = raw.Values[i]
		}
		if IsMissing(v) {
			col.MissingCount++
			continue
		}
		col.ValidCount++
		counts[label(v)]++
		if f, ok := ParseNumber(v); ok {
			numbers = append(numbers, f)
		}
	}
	col.UniqueCount = len(counts)
	if col.ValidCount == 0 {
		return col
	}

	col.NumericRatio = float64(len(numbers)) / float64(col.ValidCount)
	col.SemanticType = inferType(col.NumericRatio, col.UniqueCount, rows)

	if col.SemanticType == profiling.TypeNumeric {
		col.Summary = Summarize(numbers)
		col.Outliers = TukeyOutliers(numbers)
	} else {
		col.TopValues = topValues(counts)
	}
	return col
}

// inferType applies the numeric, group, mixed, text rules in that order
func inferType(numericRatio float64, unique, rows int) profiling.SemanticType {
	groupLimit := float64(rows) * groupRowFraction
	if groupLimit < minGroupCardinality {
		groupLimit = minGroupCardinality
	}
	switch {
	case numericRatio >= numericThreshold:
		return profiling.TypeNumeric
	case float64(unique) <= groupLimit:
		return profiling.TypeGroup
	case numericRatio >= mixedThreshold:
		return profiling.TypeMixed
	default:
		return profiling.TypeText
	}
}

func topValues(counts map[string]int) []profiling.ValueCount {
	out := make([]profiling.ValueCount, 0, len(counts))
	for v, c := range counts {
		out = append(out, profiling.ValueCount{Value: v, Count: c})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Value < out[j].Value
	})
	if len(out) > topValueLimit {
		out = out[:topValueLimit]
	}
	return out
}

// NumericValues extracts the parseable numbers of a column, skipping missing
// and non-numeric cells
func NumericValues(col profiling.RawColumn) []float64 {
	out := make([]float64, 0, len(col.Values))
	for _, v := range col.Values {
		if IsMissing(v) {
			continue
		}
		if f, ok := ParseNumber(v); ok {
			out = append(out, f)
		}
	}
	return out
}

// Labels renders a column as group labels; missing cells become "".
func Labels(col profiling.RawColumn) []string {
	out := make([]string, len(col.Values))
	for i, v := range col.Values {
		if !IsMissing(v) {
			out[i] = label(v)
		}
	}
	return out
}

// Aligned renders a column as numbers padded to rows. Missing and
// non-numeric cells become NaN so row positions are kept.
func Aligned(col profiling.RawColumn, rows int) []float64 {
	out := make([]float64, rows)
	for i := range out {
		out[i] = math.NaN()
		if i >= len(col.Values) || IsMissing(col.Values[i]) {
			continue
		}
		if f, ok := ParseNumber(col.Values[i]); ok {
			out[i] = f
		}
	}
	return out
}
