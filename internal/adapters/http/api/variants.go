package api

import (
	"context"
	"net/http"

	"github.com/okian/xsteal/internal/domain/types"
)

// VariantDependencies lists the estimator variants.
type VariantDependencies interface {
	Variants(ctx context.Context) ([]types.Variant, error)
}

// VariantsHandler handles variant requests.
type VariantsHandler struct {
	deps VariantDependencies
}

// NewVariantsHandler creates a new variants handler.
func NewVariantsHandler(deps VariantDependencies) *VariantsHandler {
	return &VariantsHandler{deps: deps}
}

// HandleList handles GET /variants requests.
func (h *VariantsHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	const op = "api.list_variants"
	vs, err := h.deps.Variants(r.Context())
	if err != nil {
		writeFailure(w, Wrap(op, err))
		return
	}
	writeJSON(w, http.StatusOK, vs)
}
