package profiling

// SemanticType is the role a column can play in a statistical test
type SemanticType string

const (
	TypeNumeric SemanticType = "numeric"
	TypeGroup   SemanticType = "group"
	TypeText    SemanticType = "text"
	TypeMixed   SemanticType = "mixed"
)

// RawColumn is one column of an uploaded table. Values may be numbers, strings or nil.
type RawColumn struct {
	Name   string        `json:"name"`
	Values []interface{} `json:"values"`
}

// RawTable is an ordered set of columns. Order is significant: the recommender
// keys off the first group column.
type RawTable struct {
	Columns []RawColumn `json:"columns"`
}

// NewRawTable builds a table from column names and row-major records
func NewRawTable(headers []string, rows [][]interface{}) RawTable {
	cols := make([]RawColumn, len(headers))
	for j, h := range headers {
		cols[j] = RawColumn{Name: h, Values: make([]interface{}, len(rows))}
	}
	for i, row := range rows {
		for j := range headers {
			if j < len(row) {
				cols[j].Values[i] = row[j]
			}
		}
	}
	return RawTable{Columns: cols}
}

// Column returns the named column
func (t RawTable) Column(name string) (RawColumn, bool) {
	for _, c := range t.Columns {
		if c.Name == name {
			return c, true
		}
	}
	return RawColumn{}, false
}

// RowCount is the length of the longest column
func (t RawTable) RowCount() int {
	rows := 0
	for _, c := range t.Columns {
		if len(c.Values) > rows {
			rows = len(c.Values)
		}
	}
	return rows
}

// Column is the profile of a single column.
// INVARIANT: ValidCount + MissingCount == total rows of the table.
type Column struct {
	Name         string          `json:"name"`
	SemanticType SemanticType    `json:"semantic_type"`
	ValidCount   int             `json:"valid_count"`
	MissingCount int             `json:"missing_count"`
	UniqueCount  int             `json:"unique_count"`
	NumericRatio float64         `json:"numeric_ratio"`
	Outliers     []float64       `json:"outliers,omitempty"` // numeric only
	Summary      *NumericSummary `json:"summary,omitempty"`  // numeric only
	TopValues    []ValueCount    `json:"top_values,omitempty"`
}

// ValueCount represents a value and its frequency
type ValueCount struct {
	Value string `json:"value"`
	Count int    `json:"count"`
}

// NumericSummary holds descriptive statistics of a numeric column
type NumericSummary struct {
	N        int     `json:"n"`
	Mean     float64 `json:"mean"`
	StdDev   float64 `json:"std_dev"` // sample (n-1)
	SE       float64 `json:"se"`
	Median   float64 `json:"median"`
	Min      float64 `json:"min"`
	Max      float64 `json:"max"`
	Q1       float64 `json:"q1"`
	Q3       float64 `json:"q3"`
	IQR      float64 `json:"iqr"`
	CI95Low  float64 `json:"ci95_lower"`
	CI95High float64 `json:"ci95_upper"`
	CV       float64 `json:"cv"` // percent; 0 when the mean is 0
	Skewness float64 `json:"skewness"`
	Kurtosis float64 `json:"kurtosis"` // excess
}

// Profile is the profiler output for a whole table
type Profile struct {
	Columns     []Column `json:"columns"`
	Issues      []string `json:"issues"`
	RowCount    int      `json:"row_count"`
	ColumnCount int      `json:"column_count"`
	NoData      bool     `json:"no_data"`
}

// ColumnsOfType returns the columns with the given semantic type, in table order
func (p Profile) ColumnsOfType(t SemanticType) []Column {
	var out []Column
	for _, c := range p.Columns {
		if c.SemanticType == t {
			out = append(out, c)
		}
	}
	return out
}

// Lookup returns the named column profile
func (p Profile) Lookup(name string) (Column, bool) {
	for _, c := range p.Columns {
		if c.Name == name {
			return c, true
		}
	}
	return Column{}, false
}
