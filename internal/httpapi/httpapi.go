// Package httpapi implements the On-demand Reporting Endpoint (spec
// component J) plus health/readiness probes, via go-chi/chi.
package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"

	"github.com/octostatus/estate-reporter/internal/models"
	"github.com/octostatus/estate-reporter/internal/registry"
	"github.com/octostatus/estate-reporter/internal/reporting"
)

// Server exposes the reporting HTTP surface from spec §6.
type Server struct {
	router       chi.Router
	repos        *registry.Registry
	orchestrator *reporting.Orchestrator
	logger       zerolog.Logger
	validate     *validator.Validate
}

// repositoryPath is validated against the path params of the reporting
// route; owner/name must be non-empty and at most 100 characters.
type repositoryPath struct {
	Owner string `validate:"required,max=100"`
	Name  string `validate:"required,max=100"`
}

// New builds a Server with the standard chi middleware stack plus, when
// jwtSecret is non-empty, bearer-token auth guarding the reporting route.
func New(repos *registry.Registry, orchestrator *reporting.Orchestrator, logger zerolog.Logger, jwtSecret string) *Server {
	s := &Server{repos: repos, orchestrator: orchestrator, logger: logger, validate: validator.New()}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))

	r.Get("/health", s.handleHealth)
	r.Get("/ready", s.handleReady)

	r.Group(func(gr chi.Router) {
		if jwtSecret != "" {
			gr.Use(bearerAuth(jwtSecret))
		}
		gr.Post("/reports/repositories/{owner}/{name}", s.handleGenerateReport)
	})

	s.router = r
	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) { s.router.ServeHTTP(w, r) }

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

func (s *Server) handleGenerateReport(w http.ResponseWriter, r *http.Request) {
	owner := chi.URLParam(r, "owner")
	name := chi.URLParam(r, "name")

	if err := s.validate.Struct(repositoryPath{Owner: owner, Name: name}); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"title": "invalid repository path"})
		return
	}

	ctx := r.Context()
	repo, err := s.repos.GetByOwnerName(ctx, owner, name)
	if errors.Is(err, registry.ErrNotFound) {
		writeJSON(w, http.StatusNotFound, map[string]string{"title": "repository not found"})
		return
	}
	if err != nil {
		s.logger.Error().Err(err).Str("owner", owner).Str("name", name).Msg("lookup repository failed")
		writeJSON(w, http.StatusInternalServerError, map[string]string{"title": "internal error"})
		return
	}

	result, runErr := s.orchestrator.RunForRepository(ctx, repo)
	switch result.Outcome {
	case reporting.OutcomeEvidenceEmpty:
		w.WriteHeader(http.StatusNoContent)
		return
	case reporting.OutcomeValidationFailed:
		writeJSON(w, http.StatusUnprocessableEntity, map[string]interface{}{
			"title":       "validation failed",
			"description": "the status model output failed validation after retries",
			"review_id":   result.ReviewID,
			"issues":      result.Issues,
		})
		return
	case reporting.OutcomeGenerated:
		writeJSON(w, http.StatusOK, reportMetadata(repo, result))
		return
	}

	s.logger.Error().Err(runErr).Str("owner", owner).Str("name", name).Msg("report generation failed")
	writeJSON(w, http.StatusInternalServerError, map[string]string{"title": "internal error"})
}

func reportMetadata(repo models.Repository, result reporting.Result) map[string]interface{} {
	report := result.Report
	return map[string]interface{}{
		"report_id":    report.ID,
		"repository":   repo.FullName(),
		"window_start": report.WindowStart,
		"window_end":   report.WindowEnd,
		"generated_at": report.GeneratedAt,
		"status":       report.Status,
		"model":        report.Model,
		"metrics": map[string]interface{}{
			"model_latency_ms":  report.ModelLatencyMs,
			"prompt_tokens":     report.PromptTokens,
			"completion_tokens": report.CompletionTokens,
			"total_tokens":      report.TotalTokens,
		},
	}
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
