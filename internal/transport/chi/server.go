// Package chi is the HTTP transport: JSON handlers over the recommendation
// engine, mounted on a chi router.
package chi

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/kailas-cloud/recdex/internal/domain"
	dombatch "github.com/kailas-cloud/recdex/internal/domain/batch"
	"github.com/kailas-cloud/recdex/internal/domain/item"
	logpkg "github.com/kailas-cloud/recdex/internal/logger"
	"github.com/kailas-cloud/recdex/internal/usecase/engine"
	healthuc "github.com/kailas-cloud/recdex/internal/usecase/health"
)

// maxTopN caps the n query parameter of the recommendations endpoint.
const maxTopN = 1000

// errorHandler tries to handle a domain error. Returns true if handled.
type errorHandler func(w http.ResponseWriter, err error, msg string) bool

// Server serves the recdex HTTP API.
type Server struct {
	engine        Recommender
	items         ItemWriter
	health        HealthChecker
	logger        *zap.Logger
	errorHandlers []errorHandler
}

// NewServer creates an HTTP API server.
func NewServer(eng Recommender, health HealthChecker, logger *zap.Logger) *Server {
	s := &Server{
		engine: eng,
		health: health,
		logger: logger,
	}
	s.errorHandlers = []errorHandler{
		sentinelHandler(domain.ErrInvalidRating, http.StatusBadRequest, codeValidationFailed),
		sentinelHandler(domain.ErrRetrainInProgress, http.StatusConflict, codeRetrainInProgress),
		sentinelHandler(domain.ErrModelNotReady, http.StatusServiceUnavailable, codeModelNotReady),
		sentinelHandler(domain.ErrStoreUnavailable, http.StatusServiceUnavailable, codeStoreUnavailable),
		sentinelHandler(domain.ErrTraining, http.StatusInternalServerError, codeTrainingFailed),
	}
	return s
}

// WithItems enables PUT /admin/items/{item_id}.
func (s *Server) WithItems(items ItemWriter) *Server {
	s.items = items
	return s
}

// Routes mounts the API on r.
func (s *Server) Routes(r chi.Router) {
	r.Get("/users/{user_id}/recommendations", s.GetRecommendations)
	r.Post("/ratings", s.PostRating)
	r.Post("/ratings/batch", s.PostRatingsBatch)
	r.Get("/evaluate", s.Evaluate)
	r.Post("/evaluate", s.Evaluate)
	r.Get("/status", s.GetStatus)
	r.Get("/health", s.HealthCheck)
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/admin", func(r chi.Router) {
		r.Post("/retrain", s.Retrain)
		if s.items != nil {
			r.Put("/items/{item_id}", s.PutItem)
		}
	})
}

// GetRecommendations handles GET /users/{user_id}/recommendations.
func (s *Server) GetRecommendations(w http.ResponseWriter, r *http.Request) {
	userID, err := strconv.ParseInt(chi.URLParam(r, "user_id"), 10, 64)
	if err != nil || userID < 0 {
		writeError(w, http.StatusBadRequest, codeValidationFailed, "user_id must be a non-negative integer")
		return
	}

	n := 0
	if raw := r.URL.Query().Get("n"); raw != "" {
		n, err = strconv.Atoi(raw)
		if err != nil || n <= 0 || n > maxTopN {
			writeError(w, http.StatusBadRequest, codeValidationFailed,
				fmt.Sprintf("n must be between 1 and %d", maxTopN))
			return
		}
	}

	recs, err := s.engine.PredictTopN(r.Context(), userID, n)
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, recommendationsToDTO(userID, recs))
}

// PostRating handles POST /ratings.
func (s *Server) PostRating(w http.ResponseWriter, r *http.Request) {
	var req ratingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, codeBadRequest, "Invalid request body: "+err.Error())
		return
	}
	if err := req.validate(); err != nil {
		writeError(w, http.StatusBadRequest, codeValidationFailed, err.Error())
		return
	}

	res, err := s.engine.IngestRating(r.Context(), *req.UserID, *req.ItemID, *req.Rating)
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}

	writeJSON(w, http.StatusAccepted, ingestResponse{
		RetrainTriggered: res.RetrainTriggered,
		BatchCounter:     res.BatchCounter,
	})
}

// PostRatingsBatch handles POST /ratings/batch.
func (s *Server) PostRatingsBatch(w http.ResponseWriter, r *http.Request) {
	var req batchRatingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, codeBadRequest, "Invalid request body: "+err.Error())
		return
	}
	if len(req.Ratings) == 0 || len(req.Ratings) > engine.MaxBatchSize {
		writeError(w, http.StatusBadRequest, codeValidationFailed,
			fmt.Sprintf("ratings count must be between 1 and %d", engine.MaxBatchSize))
		return
	}

	inputs := make([]engine.RatingInput, len(req.Ratings))
	for i, rr := range req.Ratings {
		if err := rr.validate(); err != nil {
			writeError(w, http.StatusBadRequest, codeValidationFailed, fmt.Sprintf("ratings[%d]: %v", i, err))
			return
		}
		inputs[i] = engine.RatingInput{UserID: *rr.UserID, ItemID: *rr.ItemID, Score: *rr.Rating}
	}

	results, res, err := s.engine.IngestBatch(r.Context(), inputs)
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}

	items := make([]batchItemResponse, len(results))
	for i, br := range results {
		items[i] = batchResultToDTO(br)
	}
	accepted, rejected := dombatch.Summary(results)

	writeJSON(w, http.StatusAccepted, batchIngestResponse{
		ingestResponse: ingestResponse{
			RetrainTriggered: res.RetrainTriggered,
			BatchCounter:     res.BatchCounter,
		},
		Items:    items,
		Accepted: accepted,
		Rejected: rejected,
	})
}

// Evaluate handles GET and POST /evaluate.
func (s *Server) Evaluate(w http.ResponseWriter, r *http.Request) {
	report, err := s.engine.Evaluate(r.Context())
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, evaluationToDTO(report))
}

// Retrain handles POST /admin/retrain.
func (s *Server) Retrain(w http.ResponseWriter, r *http.Request) {
	if err := s.engine.Retrain(r.Context()); err != nil {
		s.handleDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, statusToDTO(s.engine.Status()))
}

// PutItem handles PUT /admin/items/{item_id}.
func (s *Server) PutItem(w http.ResponseWriter, r *http.Request) {
	itemID, err := strconv.ParseInt(chi.URLParam(r, "item_id"), 10, 64)
	if err != nil || itemID < 0 {
		writeError(w, http.StatusBadRequest, codeValidationFailed, "item_id must be a non-negative integer")
		return
	}

	var req itemRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, codeBadRequest, "Invalid request body: "+err.Error())
		return
	}
	if req.Title == "" {
		writeError(w, http.StatusBadRequest, codeValidationFailed, "title is required")
		return
	}
	if !validExternalID(req.ExternalID) {
		writeError(w, http.StatusBadRequest, codeValidationFailed,
			"external_id must be a numeric catalog id, optionally prefixed with tt")
		return
	}

	m := item.New(itemID, req.Title, req.ExternalID, req.Genres)
	if err := s.items.PutItem(r.Context(), m); err != nil {
		s.handleDomainError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, itemResponse{
		ItemID:     m.ID(),
		Title:      m.Title(),
		ExternalID: m.ExternalID(),
		Genres:     m.Genres(),
	})
}

// GetStatus handles GET /status.
func (s *Server) GetStatus(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, statusToDTO(s.engine.Status()))
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

func (req ratingRequest) validate() error {
	switch {
	case req.UserID == nil:
		return errors.New("user_id is required")
	case req.ItemID == nil:
		return errors.New("item_id is required")
	case req.Rating == nil:
		return errors.New("rating is required")
	}
	return nil
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
		domain.ErrInvalidRating,
		domain.ErrRetrainInProgress,
		domain.ErrModelNotReady,
		domain.ErrStoreUnavailable,
		domain.ErrEmptyDataset,
		domain.ErrTraining,
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

func (s *Server) handleDomainError(w http.ResponseWriter, r *http.Request, err error) {
	log := logpkg.FromContextOr(r.Context(), s.logger)
	log.Warn("domain error", zap.Error(err))
	msg := safeDomainMessage(err)
	for _, h := range s.errorHandlers {
		if h(w, err, msg) {
			return
		}
	}
	log.Error("internal error", zap.Error(err))
	writeError(w, http.StatusInternalServerError, codeInternalError, "internal error")
}

func batchErrorCode(err error) errorCode {
	switch {
	case errors.Is(err, domain.ErrInvalidRating):
		return codeValidationFailed
	case errors.Is(err, domain.ErrStoreUnavailable):
		return codeStoreUnavailable
	default:
		return codeInternalError
	}
}

// validExternalID accepts "114709" and "tt0114709".
func validExternalID(s string) bool {
	s = strings.TrimPrefix(s, "tt")
	if s == "" {
		return false
	}
	for _, c := range s {
		if c < '0' || c > '9' {
			return false
		}
	}
	return true
}
