package api

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/okian/xsteal/internal/domain/types"
)

// SessionDependencies manages sessions.
type SessionDependencies interface {
	CreateSession(ctx context.Context, variant string) (types.Session, error)
	GetSession(ctx context.Context, id string) (types.Session, error)
	SetSessionVariant(ctx context.Context, id, variant string) (types.Session, error)
	DeleteSession(ctx context.Context, id string) error
}

type sessionRequest struct {
	Variant string `json:"variant"`
}

// SessionsHandler handles session requests.
type SessionsHandler struct {
	deps SessionDependencies
}

// NewSessionsHandler creates a new sessions handler.
func NewSessionsHandler(deps SessionDependencies) *SessionsHandler {
	return &SessionsHandler{deps: deps}
}

// HandleCreate handles POST /sessions requests. The body is optional.
func (h *SessionsHandler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	const op = "api.create_session"
	var req sessionRequest
	if err := decodeJSON(w, r, &req, true); err != nil {
		writeFailure(w, WrapKind(op, ErrBadRequest, err))
		return
	}

	sess, err := h.deps.CreateSession(r.Context(), req.Variant)
	if err != nil {
		writeFailure(w, Wrap(op, err))
		return
	}
	w.Header().Set("Location", "/sessions/"+sess.ID)
	writeJSON(w, http.StatusCreated, sess)
}

// HandleGet handles GET /sessions/{id} requests.
func (h *SessionsHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	const op = "api.get_session"
	sess, err := h.deps.GetSession(r.Context(), r.PathValue("id"))
	if err != nil {
		writeFailure(w, Wrap(op, err))
		return
	}
	writeJSON(w, http.StatusOK, sess)
}

// HandleUpdate handles PATCH /sessions/{id} requests.
func (h *SessionsHandler) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	const op = "api.update_session"
	var req sessionRequest
	if err := decodeJSON(w, r, &req, false); err != nil {
		writeFailure(w, WrapKind(op, ErrBadRequest, err))
		return
	}
	if strings.TrimSpace(req.Variant) == "" {
		writeFailure(w, WrapKind(op, ErrBadRequest, errors.New("missing variant")))
		return
	}

	sess, err := h.deps.SetSessionVariant(r.Context(), r.PathValue("id"), req.Variant)
	if err != nil {
		writeFailure(w, Wrap(op, err))
		return
	}
	writeJSON(w, http.StatusOK, sess)
}

// HandleDelete handles DELETE /sessions/{id} requests.
func (h *SessionsHandler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	const op = "api.delete_session"
	if err := h.deps.DeleteSession(r.Context(), r.PathValue("id")); err != nil {
		writeFailure(w, Wrap(op, err))
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
