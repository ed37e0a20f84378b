// Package handler exposes the authenticated user's audit trail over HTTP.
package handler

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"taskvault/backend/internal/apperr"
	"taskvault/backend/internal/audit/domain"
	auditrepo "taskvault/backend/internal/audit/repository"
	"taskvault/backend/internal/server/middleware"
	"taskvault/backend/internal/server/respond"
)

const (
	defaultLimit = 50
	maxLimit     = 200
)

// AuditHandler handles /api/v1/audit.
type AuditHandler struct {
	repo auditrepo.Repository
}

// NewAuditHandler returns an AuditHandler.
func NewAuditHandler(repo auditrepo.Repository) *AuditHandler {
	return &AuditHandler{repo: repo}
}

// Routes mounts the audit endpoints. The caller wraps them with the auth guard.
func (h *AuditHandler) Routes(r chi.Router) {
	r.Get("/", h.List)
}

// List returns the caller's audit events, newest first. limit and offset are
// optional query parameters.
func (h *AuditHandler) List(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		respond.Error(w, apperr.Authentication("User not authenticated"))
		return
	}

	limit := int32(defaultLimit)
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 || n > maxLimit {
			respond.Error(w, apperr.Validation("Invalid limit"))
			return
		}
		limit = int32(n)
	}
	offset := int32(0)
	if v := r.URL.Query().Get("offset"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			respond.Error(w, apperr.Validation("Invalid offset"))
			return
		}
		offset = int32(n)
	}

	events, err := h.repo.ListByUser(r.Context(), userID, limit, offset)
	if err != nil {
		respond.Error(w, apperr.Database("Failed to list audit events", err))
		return
	}
	if events == nil {
		events = []*domain.AuditLog{}
	}
	respond.Data(w, http.StatusOK, map[string]interface{}{"events": events})
}
