// Package handlers is the JSON HTTP surface of ChantierPro.
package handlers

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/diewo77/chantierpro/internal/gate"
	"github.com/diewo77/chantierpro/internal/httpx"
	"github.com/diewo77/chantierpro/internal/services"
	"github.com/diewo77/chantierpro/internal/workflow"
	"github.com/go-chi/chi/v5"
)

// Authorizer is the part of policy.AuthGate the handlers rely on.
type Authorizer interface {
	Authorize(ctx context.Context, action gate.Action, resourceType string, resource any) error
	IsAdmin(ctx context.Context, userID uint) bool
}

func writeServiceError(w http.ResponseWriter, lg *slog.Logger, err error) {
	var verr *services.ValidationError
	var terr *workflow.TransitionError
	switch {
	case errors.As(err, &verr):
		httpx.JSONError(w, http.StatusUnprocessableEntity, "validation_failed", verr.Fields)
	case errors.As(err, &terr):
		httpx.JSONError(w, http.StatusConflict, "invalid_transition", map[string]string{
			"type":   string(terr.Type),
			"status": string(terr.From),
			"action": string(terr.Action),
			"reason": terr.Reason,
		})
	case errors.Is(err, services.ErrNotFound):
		httpx.JSONError(w, http.StatusNotFound, "not_found", nil)
	case errors.Is(err, services.ErrConflict):
		httpx.JSONError(w, http.StatusConflict, "conflict", nil)
	case errors.Is(err, gate.ErrUnauthenticated):
		httpx.JSONError(w, http.StatusUnauthorized, "unauthorized", nil)
	case errors.Is(err, gate.ErrForbidden):
		httpx.JSONError(w, http.StatusForbidden, "forbidden", nil)
	default:
		lg.Error("request failed", "error", err)
		httpx.JSONError(w, http.StatusInternalServerError, "internal_error", nil)
	}
}

func writeDecodeError(w http.ResponseWriter, err error) {
	if errors.Is(err, httpx.ErrEmptyBody) {
		httpx.JSONError(w, http.StatusBadRequest, "empty_body", nil)
		return
	}
	httpx.JSONError(w, http.StatusBadRequest, "invalid_json", map[string]string{"message": err.Error()})
}

// urlID reads a positive numeric path parameter.
func urlID(r *http.Request, name string) (uint, bool) {
	id, err := strconv.ParseUint(chi.URLParam(r, name), 10, 64)
	if err != nil || id == 0 {
		return 0, false
	}
	return uint(id), true
}
