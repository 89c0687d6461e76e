package remote

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"statguide/domain/core"
	"statguide/ports"
)

func TestClientRun(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/v1/tests/t", r.URL.Path)
		assert.Equal(t, "secret", r.Header.Get("X-API-Key"))

		var req ports.BackendRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, ports.BackendT, req.Test)
		assert.Equal(t, 2.1, req.Options[ports.OptionStatistic])

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"result":{"statistic":2.1,"p_value":0.0621,"df":10,"fields":{"se":0.4,"note":"x"}}}`))
	}))
	defer server.Close()

	client := NewClient(server.URL+"/", "secret", time.Second)
	resp, err := client.Run(context.Background(), ports.DistributionRequest(ports.BackendT, 2.1, 10, 0))
	require.NoError(t, err)

	assert.Equal(t, "t", resp.Test)
	assert.Equal(t, 2.1, resp.Statistic)
	assert.Equal(t, 0.0621, resp.PValue)
	assert.Equal(t, 10.0, resp.DF)
	assert.Equal(t, map[string]float64{"se": 0.4}, resp.Fields)
}

func TestClientFailures(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
	}{
		{"server error", http.StatusInternalServerError, `{"error":"boom"}`},
		{"invalid json", http.StatusOK, `not json`},
		{"missing p value", http.StatusOK, `{"statistic":1}`},
		{"p value out of range", http.StatusOK, `{"statistic":1,"p_value":1.5}`},
		{"service error field", http.StatusOK, `{"error":"unsupported test"}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer server.Close()

			_, err := NewClient(server.URL, "", time.Second).Run(context.Background(), ports.BackendRequest{Test: ports.BackendNormality})
			require.Error(t, err)
			assert.True(t, core.IsBackendError(err))
		})
	}
}

func TestClientTimeout(t *testing.T) {
	release := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer server.Close()
	defer close(release)

	_, err := NewClient(server.URL, "", 50*time.Millisecond).Run(context.Background(), ports.BackendRequest{Test: ports.BackendZ})
	assert.True(t, core.IsBackendError(err))
}

func TestClientUnreachable(t *testing.T) {
	_, err := NewClient("http://127.0.0.1:1", "", time.Second).Run(context.Background(), ports.BackendRequest{Test: ports.BackendZ})
	assert.True(t, core.IsBackendError(err))
}
