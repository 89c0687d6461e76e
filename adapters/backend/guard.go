// Package backend selects and guards the statistics backend
package backend

import (
	"context"
	"fmt"
	"time"

	"statguide/adapters/backend/gonum"
	"statguide/adapters/backend/remote"
	"statguide/domain/core"
	"statguide/internal/config"
	"statguide/ports"
)

// Guard bounds every call to the wrapped backend by a timeout. A call that
// does not return in time is abandoned and reported as unavailable, so a hung
// backend never blocks the local fallback.
type Guard struct {
	inner   ports.StatsBackend
	timeout time.Duration
}

// NewGuard wraps inner. A non-positive timeout only applies the caller's context.
func NewGuard(inner ports.StatsBackend, timeout time.Duration) *Guard {
	return &Guard{inner: inner, timeout: timeout}
}

func (g *Guard) Name() string { return g.inner.Name() }

type outcome struct {
	resp *ports.BackendResponse
	err  error
}

// Run calls the wrapped backend. Any failure comes back wrapping
// core.ErrBackendUnavailable.
func (g *Guard) Run(ctx context.Context, req ports.BackendRequest) (*ports.BackendResponse, error) {
	if g.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, g.timeout)
		defer cancel()
	}

	done := make(chan outcome, 1)
	go func() {
		resp, err := g.inner.Run(ctx, req)
		done <- outcome{resp: resp, err: err}
	}()

	select {
	case <-ctx.Done():
		return nil, core.NewBackendError(g.inner.Name(), ctx.Err())
	case out := <-done:
		switch {
		case out.err == nil && out.resp == nil:
			return nil, core.NewBackendError(g.inner.Name(), fmt.Errorf("empty response"))
		case out.err != nil && !core.IsBackendError(out.err):
			return nil, core.NewBackendError(g.inner.Name(), out.err)
		}
		return out.resp, out.err
	}
}

// New builds the configured backend, guarded by the configured timeout.
// BackendNone yields a nil backend: every computation then runs locally.
func New(cfg config.BackendConfig) (ports.StatsBackend, error) {
	switch cfg.Mode {
	case config.BackendGonum:
		return NewGuard(gonum.New(), cfg.Timeout), nil
	case config.BackendRemote:
		return NewGuard(remote.NewClient(cfg.URL, cfg.APIKey, cfg.Timeout), cfg.Timeout), nil
	case config.BackendNone, "":
		return nil, nil
	default:
		return nil, fmt.Errorf("unknown backend mode %q", cfg.Mode)
	}
}
