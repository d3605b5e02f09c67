package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/okian/xsteal/internal/domain/estimator"
	"github.com/okian/xsteal/internal/domain/types"
	"github.com/okian/xsteal/pkg/logger"
)

// AttemptDependencies records and lists session attempts.
type AttemptDependencies interface {
	RecordAttempt(ctx context.Context, sessionID, attemptID string, m estimator.Metrics, wasSuccessful bool) (types.AttemptResult, error)
	History(ctx context.Context, sessionID string, newestFirst bool) ([]types.Attempt, error)
}

type attemptRequest struct {
	AttemptID     string                     `json:"attempt_id"`
	Metrics       map[string]json.RawMessage `json:"metrics"`
	WasSuccessful *bool                      `json:"was_successful"`
}

func (a attemptRequest) validate() error {
	switch {
	case len(a.Metrics) == 0:
		return errors.New("missing metrics")
	case a.WasSuccessful == nil:
		return errors.New("missing was_successful")
	}
	return nil
}

// AttemptsHandler handles attempt requests.
type AttemptsHandler struct {
	deps   AttemptDependencies
	logger logger.Logger
}

// NewAttemptsHandler creates a new attempts handler.
func NewAttemptsHandler(deps AttemptDependencies, log logger.Logger) *AttemptsHandler {
	return &AttemptsHandler{deps: deps, logger: log.Named("api.attempts")}
}

// HandlePost handles POST /sessions/{id}/attempts requests.
func (h *AttemptsHandler) HandlePost(w http.ResponseWriter, r *http.Request) {
	const op = "api.post_attempt"
	var req attemptRequest
	if err := decodeJSON(w, r, &req, false); err != nil {
		writeFailure(w, WrapKind(op, ErrBadRequest, err))
		return
	}
	if err := req.validate(); err != nil {
		writeFailure(w, WrapKind(op, estimator.ErrInvalidInput, err))
		return
	}

	m, err := types.ToMetrics(req.Metrics)
	if err != nil {
		writeFailure(w, Wrap(op, err))
		return
	}

	res, err := h.deps.RecordAttempt(r.Context(), r.PathValue("id"), req.AttemptID, m, *req.WasSuccessful)
	if err != nil {
		status, code := classify(err)
		if status >= http.StatusInternalServerError {
			h.logger.Error(r.Context(), "record attempt failed",
				logger.String("session_id", r.PathValue("id")),
				logger.Error(err),
			)
		}
		writeError(w, status, code, Wrap(op, err))
		return
	}
	if res.Duplicate {
		writeJSON(w, http.StatusOK, res)
		return
	}
	writeJSON(w, http.StatusCreated, res)
}

// HandleList handles GET /sessions/{id}/attempts?order=recent|oldest.
func (h *AttemptsHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	const op = "api.list_attempts"
	var newestFirst bool
	switch order := r.URL.Query().Get("order"); order {
	case "", "oldest":
	case "recent":
		newestFirst = true
	default:
		writeFailure(w, WrapKind(op, ErrBadRequest, fmt.Errorf("invalid order %q; use recent or oldest", order)))
		return
	}

	attempts, err := h.deps.History(r.Context(), r.PathValue("id"), newestFirst)
	if err != nil {
		writeFailure(w, Wrap(op, err))
		return
	}
	writeJSON(w, http.StatusOK, attempts)
}
