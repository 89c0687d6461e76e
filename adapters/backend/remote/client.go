// Package remote talks to an external statistics service over HTTP JSON.
//
// Requests are POSTed to {baseURL}/v1/tests/{test}. The service answers with
// an object holding statistic, p_value and optional df, df2 and fields; the
// object may also be nested under "result".
package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/tidwall/gjson"

	"statguide/domain/core"
	"statguide/ports"
)

// Name is the backend identifier reported in logs and errors
const Name = "remote"

const maxErrorBody = 512

// Client is a ports.StatsBackend over HTTP
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

// NewClient creates a client. The timeout bounds a single HTTP exchange; the
// caller's context still applies.
func NewClient(baseURL, apiKey string, timeout time.Duration) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: timeout},
	}
}

func (c *Client) Name() string { return Name }

// Run sends one request. Every failure is reported as backend unavailable.
func (c *Client) Run(ctx context.Context, req ports.BackendRequest) (*ports.BackendResponse, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, core.NewBackendError(Name, fmt.Errorf("encode request: %w", err))
	}

	httpReq, err := c.buildRequest(ctx, req.Test, body)
	if err != nil {
		return nil, core.NewBackendError(Name, fmt.Errorf("build request: %w", err))
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, core.NewBackendError(Name, fmt.Errorf("HTTP request failed: %w", err))
	}
	payload, err := io.ReadAll(resp.Body)
	resp.Body.Close()
	if err != nil {
		return nil, core.NewBackendError(Name, fmt.Errorf("read response: %w", err))
	}

	if resp.StatusCode != http.StatusOK {
		return nil, core.NewBackendError(Name, fmt.Errorf("service returned status %d: %s", resp.StatusCode, truncate(payload)))
	}

	out, err := parseResponse(payload, req.Test)
	if err != nil {
		return nil, core.NewBackendError(Name, err)
	}
	return out, nil
}

func (c *Client) buildRequest(ctx context.Context, test ports.BackendTest, body []byte) (*http.Request, error) {
	url := fmt.Sprintf("%s/v1/tests/%s", c.baseURL, test)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if c.apiKey != "" {
		req.Header.Set("X-API-Key", c.apiKey)
	}
	return req, nil
}

func parseResponse(body []byte, test ports.BackendTest) (*ports.BackendResponse, error) {
	if !gjson.ValidBytes(body) {
		return nil, fmt.Errorf("response is not valid JSON")
	}
	root := gjson.ParseBytes(body)
	if msg := root.Get("error"); msg.Exists() && msg.String() != "" {
		return nil, fmt.Errorf("service error: %s", msg.String())
	}
	if nested := root.Get("result"); nested.IsObject() {
		root = nested
	}

	p := root.Get("p_value")
	if p.Type != gjson.Number {
		return nil, fmt.Errorf("response has no numeric p_value")
	}
	if p.Float() < 0 || p.Float() > 1 {
		return nil, fmt.Errorf("p_value %v outside [0, 1]", p.Float())
	}

	out := &ports.BackendResponse{
		Test:      root.Get("test").String(),
		Statistic: root.Get("statistic").Float(),
		PValue:    p.Float(),
		DF:        root.Get("df").Float(),
		DF2:       root.Get("df2").Float(),
	}
	if out.Test == "" {
		out.Test = string(test)
	}

	fields := root.Get("fields")
	if fields.IsObject() {
		out.Fields = make(map[string]float64)
		fields.ForEach(func(key, value gjson.Result) bool {
			if value.Type == gjson.Number {
				out.Fields[key.String()] = value.Float()
			}
			return true
		})
	}
	return out, nil
}

func truncate(b []byte) string {
	if len(b) > maxErrorBody {
		return string(b[:maxErrorBody]) + "..."
	}
	return string(b)
}
