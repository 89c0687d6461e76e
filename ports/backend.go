package ports

import (
	"context"
)

// BackendTest names a computation offered by a statistics backend
type BackendTest string

const (
	// Raw-sample tests
	BackendNormality   BackendTest = "normality"
	BackendHomogeneity BackendTest = "homogeneity"

	// Distribution tail probabilities. The statistic and degrees of freedom
	// travel in Options under the Option* keys.
	BackendT         BackendTest = "t"
	BackendF         BackendTest = "f"
	BackendChiSquare BackendTest = "chi2"
	BackendZ         BackendTest = "z"
)

// Option keys for distribution requests
const (
	OptionStatistic = "statistic"
	OptionDF        = "df"
	OptionDF2       = "df2"
)

// BackendRequest is one call into a backend
type BackendRequest struct {
	Test    BackendTest        `json:"test"`
	Samples [][]float64        `json:"samples,omitempty"`
	Labels  []string           `json:"labels,omitempty"`
	Options map[string]float64 `json:"options,omitempty"`
}

// BackendResponse carries exact results. Fields holds test-specific extras.
type BackendResponse struct {
	Test      string             `json:"test"`
	Statistic float64            `json:"statistic"`
	PValue    float64            `json:"p_value"`
	DF        float64            `json:"df,omitempty"`
	DF2       float64            `json:"df2,omitempty"`
	Fields    map[string]float64 `json:"fields,omitempty"`
}

// StatsBackend is a high-precision statistics service. Implementations return
// an error wrapping core.ErrBackendUnavailable when they cannot answer.
type StatsBackend interface {
	Name() string
	Run(ctx context.Context, req BackendRequest) (*BackendResponse, error)
}

// DistributionRequest builds a tail-probability request
func DistributionRequest(test BackendTest, statistic, df, df2 float64) BackendRequest {
	opts := map[string]float64{OptionStatistic: statistic}
	if df > 0 {
		opts[OptionDF] = df
	}
	if df2 > 0 {
		opts[OptionDF2] = df2
	}
	return BackendRequest{Test: test, Options: opts}
}
