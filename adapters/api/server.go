// Package api exposes the analysis service over HTTP JSON
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"statguide/adapters/table"
	"statguide/app"
	"statguide/domain/core"
	"statguide/domain/method"
	"statguide/domain/profiling"
	"statguide/domain/stats"
	"statguide/internal"
	apperrors "statguide/internal/errors"
	"statguide/internal/posthoc"
	internalprofiling "statguide/internal/profiling"
	"statguide/internal/recommend"
)

const maxBodyBytes = 10 << 20

// Server routes API requests to the analysis service
type Server struct {
	router  *chi.Mux
	service *app.AnalysisService
	backend string
	logger  *internal.Logger
}

// NewServer creates the API. backend is the name reported by /healthz.
func NewServer(service *app.AnalysisService, backend string, logger *internal.Logger) *Server {
	if logger == nil {
		logger = internal.DefaultLogger
	}
	if backend == "" {
		backend = "none"
	}
	s := &Server{
		router:  chi.NewRouter(),
		service: service,
		backend: backend,
		logger:  logger.With("API"),
	}
	s.setupMiddleware()
	s.setupRoutes()
	return s
}

func (s *Server) setupMiddleware() {
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.Logger)
	s.router.Use(middleware.Recoverer)
	s.router.Use(middleware.Compress(5))
}

func (s *Server) setupRoutes() {
	s.router.Get("/healthz", s.handleHealth)

	s.router.Route("/api", func(r chi.Router) {
		r.Post("/profile", s.handleProfile)
		r.Post("/recommend", s.handleRecommend)
		r.Post("/recommend/keywords", s.handleKeywords)
		r.Post("/analyze", s.handleAnalyze)
		r.Post("/upload", s.handleUpload)
		r.Post("/anova/two-way", s.handleTwoWay)
		r.Post("/correlation", s.handleCorrelation)
		r.Post("/correlation/matrix", s.handleMatrix)
		r.Post("/posthoc", s.handlePostHoc)
		r.Post("/tests/{kind}", s.handleTest)
	})
}

// Handler returns the routed handler
func (s *Server) Handler() http.Handler {
	return s.router
}

// ListenAndServe serves until ctx is cancelled, then shuts down gracefully
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("listening on %s", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		s.logger.Info("shutting down")
		return srv.Shutdown(shutdownCtx)
	}
}

// tablePayload accepts a table either column-wise or as headers plus rows
type tablePayload struct {
	Columns []profiling.RawColumn `json:"columns,omitempty"`
	Headers []string              `json:"headers,omitempty"`
	Rows    [][]interface{}       `json:"rows,omitempty"`
}

func (t tablePayload) table() profiling.RawTable {
	if len(t.Columns) > 0 {
		return profiling.RawTable{Columns: t.Columns}
	}
	return profiling.NewRawTable(t.Headers, t.Rows)
}

type analysisPayload struct {
	Table   tablePayload `json:"table"`
	Goal    string       `json:"goal,omitempty"`
	Outcome string       `json:"outcome,omitempty"`
	Group   string       `json:"group,omitempty"`
}

func (p analysisPayload) request() app.AnalysisRequest {
	return app.AnalysisRequest{Table: p.Table.table(), Goal: p.Goal, Outcome: p.Outcome, Group: p.Group}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok", "backend": s.backend})
}

func (s *Server) handleProfile(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Table tablePayload `json:"table"`
	}
	if !s.decode(w, r, &req) {
		return
	}
	s.writeJSON(w, http.StatusOK, s.service.Profile(req.Table.table()))
}

func (s *Server) handleRecommend(w http.ResponseWriter, r *http.Request) {
	var req analysisPayload
	if !s.decode(w, r, &req) {
		return
	}
	assessment, err := s.service.Assess(r.Context(), req.request())
	if err != nil {
		s.writeError(w, apperrors.Wrap(err, "recommendation failed"))
		return
	}
	s.writeJSON(w, http.StatusOK, assessment)
}

func (s *Server) handleKeywords(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Goal  string               `json:"goal"`
		Shape *recommend.DataShape `json:"shape,omitempty"`
		Table *tablePayload        `json:"table,omitempty"`
	}
	if !s.decode(w, r, &req) {
		return
	}
	var shape recommend.DataShape
	switch {
	case req.Shape != nil:
		shape = *req.Shape
	case req.Table != nil:
		shape = recommend.ShapeOf(s.service.Profile(req.Table.table()))
	}
	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"goal":            recommend.ParseGoal(req.Goal),
		"recommendations": recommend.RecommendByKeywords(req.Goal, shape),
	})
}

func (s *Server) handleAnalyze(w http.ResponseWriter, r *http.Request) {
	var req analysisPayload
	if !s.decode(w, r, &req) {
		return
	}
	report, err := s.service.Analyze(r.Context(), req.request())
	if err != nil {
		s.writeError(w, apperrors.Wrap(err, "analysis failed"))
		return
	}
	s.writeJSON(w, http.StatusOK, report)
}

// handleUpload analyzes a CSV, XLSX or JSON file sent as the multipart field
// "file". goal, outcome and group are read from the other form fields.
func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := r.ParseMultipartForm(maxBodyBytes); err != nil {
		s.writeError(w, apperrors.InvalidInput(fmt.Sprintf("invalid upload: %v", err)))
		return
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		s.writeError(w, apperrors.InvalidInput("missing form file \"file\""))
		return
	}
	defer file.Close()

	format, err := table.FormatOf(header.Filename)
	if err != nil {
		s.writeError(w, err)
		return
	}
	t, err := table.Decode(file, format)
	if err != nil {
		if !errors.Is(err, core.ErrEmptyDataset) {
			err = apperrors.WithCode(apperrors.CodeInvalidInput, err)
		}
		s.writeError(w, err)
		return
	}
	s.logger.Debug("upload %s: %d columns, %d rows", header.Filename, len(t.Columns), t.RowCount())

	report, err := s.service.Analyze(r.Context(), app.AnalysisRequest{
		Table:   t,
		Goal:    r.FormValue("goal"),
		Outcome: r.FormValue("outcome"),
		Group:   r.FormValue("group"),
	})
	if err != nil {
		s.writeError(w, apperrors.Wrap(err, "analysis failed"))
		return
	}
	s.writeJSON(w, http.StatusOK, report)
}

func (s *Server) handleTwoWay(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Values  []float64 `json:"values"`
		FactorA []string  `json:"factor_a"`
		FactorB []string  `json:"factor_b"`
		NameA   string    `json:"factor_a_name,omitempty"`
		NameB   string    `json:"factor_b_name,omitempty"`
	}
	if !s.decode(w, r, &req) {
		return
	}
	table, err := s.service.TwoWayANOVA(r.Context(), req.Values, req.FactorA, req.FactorB)
	if err != nil {
		s.writeError(w, apperrors.Wrap(err, "two-way ANOVA failed"))
		return
	}
	table.FactorAName, table.FactorBName = req.NameA, req.NameB
	s.writeJSON(w, http.StatusOK, table)
}

func (s *Server) handleCorrelation(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Method string        `json:"method"`
		X      []interface{} `json:"x"`
		Y      []interface{} `json:"y"`
		Z      []interface{} `json:"z,omitempty"`
	}
	if !s.decode(w, r, &req) {
		return
	}
	m, err := parseCorrelationMethod(req.Method)
	if err != nil {
		s.writeError(w, err)
		return
	}

	x, y, z := numbers(req.X), numbers(req.Y), numbers(req.Z)
	if m == stats.Partial {
		x, y, z = completeTriples(x, y, z)
	} else {
		x, y = completePairs(x, y)
	}
	res, err := s.service.Correlation(r.Context(), m, x, y, z)
	if err != nil {
		s.writeError(w, apperrors.Wrap(err, "correlation failed"))
		return
	}
	s.writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleMatrix(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Method    string                `json:"method"`
		Alpha     float64               `json:"alpha,omitempty"`
		Variables []profiling.RawColumn `json:"variables"`
	}
	if !s.decode(w, r, &req) {
		return
	}
	m, err := parseCorrelationMethod(req.Method)
	if err != nil {
		s.writeError(w, err)
		return
	}

	rows := profiling.RawTable{Columns: req.Variables}.RowCount()
	vars := make([]stats.Sample, len(req.Variables))
	for i, v := range req.Variables {
		vars[i] = stats.Sample{Name: v.Name, Values: internalprofiling.Aligned(v, rows)}
	}
	matrix, err := s.service.Matrix(r.Context(), vars, m, req.Alpha)
	if err != nil {
		s.writeError(w, apperrors.Wrap(err, "correlation matrix failed"))
		return
	}
	s.writeJSON(w, http.StatusOK, matrix)
}

func (s *Server) handlePostHoc(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Method     string         `json:"method"`
		Correction string         `json:"correction"`
		Groups     []stats.Sample `json:"groups"`
	}
	if !s.decode(w, r, &req) {
		return
	}
	ph, err := posthoc.ParseMethod(req.Method)
	if err != nil {
		s.writeError(w, err)
		return
	}
	correction, err := posthoc.ParseCorrection(req.Correction)
	if err != nil {
		s.writeError(w, err)
		return
	}
	res, err := s.service.PostHoc(r.Context(), req.Groups, ph, correction)
	if err != nil {
		s.writeError(w, apperrors.Wrap(err, "post-hoc comparison failed"))
		return
	}
	s.writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleTest(w http.ResponseWriter, r *http.Request) {
	kind, err := method.ParseKind(chi.URLParam(r, "kind"))
	if err != nil {
		s.writeError(w, apperrors.NotFound(fmt.Sprintf("method %q", chi.URLParam(r, "kind"))))
		return
	}
	var in app.TestInput
	if !s.decode(w, r, &in) {
		return
	}
	exec, err := s.service.Run(r.Context(), kind, in)
	if err != nil {
		s.writeError(w, apperrors.Wrapf(err, "%s failed", kind))
		return
	}
	s.writeJSON(w, http.StatusOK, exec)
}

func parseCorrelationMethod(s string) (stats.CorrelationMethod, error) {
	m := stats.CorrelationMethod(strings.ToLower(strings.TrimSpace(s)))
	if m == "" {
		return stats.Pearson, nil
	}
	if !m.Valid() {
		return "", apperrors.InvalidInput(fmt.Sprintf("unknown correlation method %q", s))
	}
	return m, nil
}

func numbers(values []interface{}) []float64 {
	return internalprofiling.Aligned(profiling.RawColumn{Values: values}, len(values))
}

// completePairs drops rows with a missing value. Lengths that differ are left
// alone so the engine reports the mismatch.
func completePairs(x, y []float64) ([]float64, []float64) {
	if len(x) != len(y) {
		return x, y
	}
	xs, ys := make([]float64, 0, len(x)), make([]float64, 0, len(y))
	for i := range x {
		if math.IsNaN(x[i]) || math.IsNaN(y[i]) {
			continue
		}
		xs, ys = append(xs, x[i]), append(ys, y[i])
	}
	return xs, ys
}

func completeTriples(x, y, z []float64) ([]float64, []float64, []float64) {
	if len(x) != len(y) || len(x) != len(z) {
		return x, y, z
	}
	xs, ys, zs := make([]float64, 0, len(x)), make([]float64, 0, len(y)), make([]float64, 0, len(z))
	for i := range x {
		if math.IsNaN(x[i]) || math.IsNaN(y[i]) || math.IsNaN(z[i]) {
			continue
		}
		xs, ys, zs = append(xs, x[i]), append(ys, y[i]), append(zs, z[i])
	}
	return xs, ys, zs
}

func (s *Server) decode(w http.ResponseWriter, r *http.Request, dst interface{}) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		s.writeError(w, apperrors.WithCode(apperrors.CodeInvalidInput, fmt.Errorf("invalid JSON body: %w", err)))
		return false
	}
	return true
}

type errorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (s *Server) writeError(w http.ResponseWriter, err error) {
	code := apperrors.GetCode(err)
	status := apperrors.HTTPStatus(code)
	if status >= http.StatusInternalServerError {
		s.logger.Error("request failed: %v", err)
	} else {
		s.logger.Debug("request rejected: %v", err)
	}
	s.writeJSON(w, status, map[string]errorBody{"error": {Code: code, Message: err.Error()}})
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error("encode response: %v", err)
	}
}
