// Package server assembles the HTTP router: middleware chain, health and
// debug endpoints, and the versioned API routes.
package server

import (
	"database/sql"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	audithandler "taskvault/backend/internal/audit/handler"
	authhandler "taskvault/backend/internal/auth/handler"
	"taskvault/backend/internal/db"
	"taskvault/backend/internal/security"
	"taskvault/backend/internal/server/middleware"
	"taskvault/backend/internal/server/respond"
	taskhandler "taskvault/backend/internal/task/handler"
)

// Deps holds everything the router needs.
type Deps struct {
	Auth   *authhandler.AuthHandler
	Tasks  *taskhandler.TaskHandler
	Audit  *audithandler.AuditHandler
	Tokens *security.TokenProvider
	DB     *sql.DB // nil disables the debug endpoint's table probe
	Log    *slog.Logger
	Env    string
}

// NewRouter builds the full route tree.
func NewRouter(d Deps) http.Handler {
	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(middleware.ClientIP)
	r.Use(middleware.RequestLogger(d.Log))
	r.Use(middleware.Recoverer)
	r.Use(chimw.Timeout(30 * time.Second))

	requireAuth := middleware.RequireAuth(d.Tokens)

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		respond.Data(w, http.StatusOK, map[string]interface{}{
			"status":      "OK",
			"timestamp":   time.Now().UTC().Format(time.RFC3339),
			"environment": d.Env,
		})
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Route("/auth", func(r chi.Router) {
			d.Auth.Routes(r, requireAuth)
		})
		r.Route("/tasks", func(r chi.Router) {
			r.Use(requireAuth)
			d.Tasks.Routes(r)
		})
		r.Route("/audit", func(r chi.Router) {
			r.Use(requireAuth)
			d.Audit.Routes(r)
		})
		if d.DB != nil {
			r.Get("/debug/db", func(w http.ResponseWriter, req *http.Request) {
				respond.Data(w, http.StatusOK, db.CheckStatus(req.Context(), d.DB))
			})
		}
	})

	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"success":false,"error":"Route not found"}`))
	})

	return r
}
