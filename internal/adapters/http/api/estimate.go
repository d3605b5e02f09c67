package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/okian/xsteal/internal/domain/estimator"
	"github.com/okian/xsteal/internal/domain/types"
)

// EstimateDependencies computes stateless estimates and rewards.
type EstimateDependencies interface {
	Estimate(ctx context.Context, variant string, m estimator.Metrics) (types.Estimate, error)
	Score(ctx context.Context, probability float64, wasSuccessful bool) (types.Score, error)
}

type estimateRequest struct {
	Variant string                     `json:"variant"`
	Metrics map[string]json.RawMessage `json:"metrics"`
}

type scoreRequest struct {
	Probability   *float64 `json:"probability"`
	WasSuccessful *bool    `json:"was_successful"`
}

func (s scoreRequest) validate() error {
	switch {
	case s.Probability == nil:
		return errors.New("missing probability")
	case s.WasSuccessful == nil:
		return errors.New("missing was_successful")
	}
	return nil
}

// EstimateHandler handles estimate and score requests.
type EstimateHandler struct {
	deps EstimateDependencies
}

// NewEstimateHandler creates a new estimate handler.
func NewEstimateHandler(deps EstimateDependencies) *EstimateHandler {
	return &EstimateHandler{deps: deps}
}

// HandleEstimate handles POST /estimate requests.
func (h *EstimateHandler) HandleEstimate(w http.ResponseWriter, r *http.Request) {
	const op = "api.estimate"
	var req estimateRequest
	if err := decodeJSON(w, r, &req, false); err != nil {
		writeFailure(w, WrapKind(op, ErrBadRequest, err))
		return
	}
	if len(req.Metrics) == 0 {
		writeFailure(w, WrapKind(op, estimator.ErrInvalidInput, errors.New("missing metrics")))
		return
	}

	m, err := types.ToMetrics(req.Metrics)
	if err != nil {
		writeFailure(w, Wrap(op, err))
		return
	}

	est, err := h.deps.Estimate(r.Context(), req.Variant, m)
	if err != nil {
		writeFailure(w, Wrap(op, err))
		return
	}
	writeJSON(w, http.StatusOK, est)
}

// HandleScore handles POST /score requests.
func (h *EstimateHandler) HandleScore(w http.ResponseWriter, r *http.Request) {
	const op = "api.score"
	var req scoreRequest
	if err := decodeJSON(w, r, &req, false); err != nil {
		writeFailure(w, WrapKind(op, ErrBadRequest, err))
		return
	}
	if err := req.validate(); err != nil {
		writeFailure(w, WrapKind(op, estimator.ErrInvalidInput, err))
		return
	}

	sc, err := h.deps.Score(r.Context(), *req.Probability, *req.WasSuccessful)
	if err != nil {
		writeFailure(w, Wrap(op, err))
		return
	}
	writeJSON(w, http.StatusOK, sc)
}
