// Package chi implements the HTTP API surface over go-chi.
package chi

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/copyless-dev/copyless/internal/domain"
	"github.com/copyless-dev/copyless/internal/logger"
	checkuc "github.com/copyless-dev/copyless/internal/usecase/check"
	healthuc "github.com/copyless-dev/copyless/internal/usecase/health"
)

// matchedTextLimit bounds matched_text in responses; the full document
// stays internal.
const matchedTextLimit = 240

type errorCode string

const (
	codeBadRequest             errorCode = "bad_request"
	codeInvalidInput           errorCode = "invalid_input"
	codeCorpusUnavailable      errorCode = "corpus_unavailable"
	codeEmbeddingProviderError errorCode = "embedding_provider_error"
	codeIndexQueryFailure      errorCode = "index_query_failure"
	codeInternalError          errorCode = "internal_error"
)

// errorHandler tries to handle a domain error. Returns true if handled.
type errorHandler func(w http.ResponseWriter, err error, msg string) bool

// Server wires the check and health services to HTTP handlers.
type Server struct {
	check         *checkuc.Service
	health        *healthuc.Service
	logger        *zap.Logger
	errorHandlers []errorHandler
}

// NewServer creates an HTTP API server.
func NewServer(check *checkuc.Service, health *healthuc.Service, logger *zap.Logger) *Server {
	s := &Server{
		check:  check,
		health: health,
		logger: logger,
	}
	s.errorHandlers = []errorHandler{
		sentinelHandler(domain.ErrInvalidInput, http.StatusBadRequest, codeInvalidInput),
		sentinelHandler(domain.ErrCorpusUnavailable, http.StatusServiceUnavailable, codeCorpusUnavailable),
		sentinelHandler(domain.ErrEmbeddingProviderError, http.StatusBadGateway, codeEmbeddingProviderError),
		sentinelHandler(domain.ErrIndexQuery, http.StatusInternalServerError, codeIndexQueryFailure),
	}
	return s
}

// Register mounts all routes on the router.
func (s *Server) Register(r chi.Router) {
	r.Post("/api/v1/check", s.CheckText)
	r.Get("/health", s.HealthCheck)
	r.Get("/metrics", s.Metrics)
}

type checkRequest struct {
	TextToCheck string `json:"text_to_check"`
}

type matchResponse struct {
	QueryText       string  `json:"query_text"`
	MatchedText     string  `json:"matched_text"`
	SimilarityScore float64 `json:"similarity_score"`
	MatchType       string  `json:"match_type"`
	SourceID        int     `json:"source_id"`
}

type checkResponse struct {
	OverallSimilarity float64         `json:"overall_similarity"`
	LexicalBreakdown  float64         `json:"lexical_breakdown"`
	SemanticBreakdown float64         `json:"semantic_breakdown"`
	ProcessingTimeS   float64         `json:"processing_time_s"`
	Message           string          `json:"message"`
	Matches           []matchResponse `json:"matches"`
}

type errorResponse struct {
	Code    errorCode `json:"code"`
	Message string    `json:"message"`
}

type healthResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks"`
}

// CheckText handles POST /api/v1/check.
func (s *Server) CheckText(w http.ResponseWriter, r *http.Request) {
	var req checkRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, codeBadRequest, "Invalid request body: "+err.Error())
		return
	}

	report, err := s.check.Check(r.Context(), req.TextToCheck)
	if err != nil {
		s.handleDomainError(w, err)
		return
	}

	logger.FromContext(r.Context()).Debug("check complete",
		zap.Float64("overall", report.OverallSimilarity),
		zap.Int("matches", len(report.Matches)),
		zap.Duration("took", report.Duration),
	)

	writeJSON(w, http.StatusOK, reportToResponse(report))
}

// HealthCheck handles GET /health.
func (s *Server) HealthCheck(w http.ResponseWriter, r *http.Request) {
	report := s.health.Check(r.Context())

	checks := make(map[string]string, len(report.Checks))
	for k, v := range report.Checks {
		checks[k] = string(v)
	}

	httpStatus := http.StatusOK
	if report.Status != healthuc.Healthy {
		httpStatus = http.StatusServiceUnavailable
	}

	writeJSON(w, httpStatus, healthResponse{
		Status: string(report.Status),
		Checks: checks,
	})
}

// Metrics handles GET /metrics.
func (s *Server) Metrics(w http.ResponseWriter, r *http.Request) {
	promhttp.Handler().ServeHTTP(w, r)
}

func reportToResponse(report domain.Report) checkResponse {
	matches := make([]matchResponse, len(report.Matches))
	for i, m := range report.Matches {
		matches[i] = matchResponse{
			QueryText:       m.QueryText,
			MatchedText:     truncate(m.MatchedText, matchedTextLimit),
			SimilarityScore: m.Similarity,
			MatchType:       string(m.Kind),
			SourceID:        m.SourceID,
		}
	}

	return checkResponse{
		OverallSimilarity: report.OverallSimilarity,
		LexicalBreakdown:  report.LexicalBreakdown,
		SemanticBreakdown: report.SemanticBreakdown,
		ProcessingTimeS:   report.Duration.Seconds(),
		Message:           report.Message,
		Matches:           matches,
	}
}

// truncate shortens s to at most limit runes, appending an ellipsis.
func truncate(s string, limit int) string {
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	return string(runes[:limit]) + "..."
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code errorCode, message string) {
	writeJSON(w, status, errorResponse{
		Code:    code,
		Message: message,
	})
}

// safeDomainMessage returns a sentinel error message for the client without exposing internals.
func safeDomainMessage(err error) string {
	sentinels := []error{
		domain.ErrInvalidInput,
		domain.ErrCorpusUnavailable,
		domain.ErrEmbeddingProviderError,
		domain.ErrIndexQuery,
	}
	for _, s := range sentinels {
		if errors.Is(err, s) {
			return s.Error()
		}
	}
	return "internal error"
}

// sentinelHandler returns an errorHandler that matches a single sentinel error.
func sentinelHandler(sentinel error, status int, code errorCode) errorHandler {
	return func(w http.ResponseWriter, err error, msg string) bool {
		if !errors.Is(err, sentinel) {
			return false
		}
		writeError(w, status, code, msg)
		return true
	}
}

func (s *Server) handleDomainError(w http.ResponseWriter, err error) {
	s.logger.Warn("domain error", zap.Error(err))
	msg := safeDomainMessage(err)
	for _, h := range s.errorHandlers {
		if h(w, err, msg) {
			return
		}
	}
	s.logger.Error("internal error", zap.Error(err))
	writeError(w, http.StatusInternalServerError, codeInternalError, "internal error")
}
