// Package handler exposes the task CRUD and status endpoints over HTTP. All
// routes require an access token; tasks are scoped to the authenticated user.
package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"taskvault/backend/internal/apperr"
	"taskvault/backend/internal/server/middleware"
	"taskvault/backend/internal/server/respond"
	"taskvault/backend/internal/task/domain"
	"taskvault/backend/internal/task/repository"
	taskservice "taskvault/backend/internal/task/service"
)

// TaskHandler handles /api/v1/tasks.
type TaskHandler struct {
	svc *taskservice.TaskService
}

// NewTaskHandler returns a TaskHandler.
func NewTaskHandler(svc *taskservice.TaskService) *TaskHandler {
	return &TaskHandler{svc: svc}
}

// Routes mounts the task endpoints. The caller wraps them with the auth guard.
func (h *TaskHandler) Routes(r chi.Router) {
	r.Post("/", h.Create)
	r.Get("/", h.List)
	r.Route("/{id}", func(r chi.Router) {
		r.Get("/", h.Get)
		r.Put("/", h.Update)
		r.Delete("/", h.Delete)
		r.Patch("/complete", h.MarkCompleted)
		r.Patch("/pending", h.MarkPending)
		r.Patch("/in-progress", h.MarkInProgress)
		r.Patch("/archive", h.Archive)
	})
}

type taskRequest struct {
	Title       *string    `json:"title"`
	Description *string    `json:"description"`
	Status      *string    `json:"status"`
	Priority    *string    `json:"priority"`
	DueDate     *time.Time `json:"due_date"`
}

// Create adds a task for the authenticated user.
func (h *TaskHandler) Create(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		respond.Error(w, apperr.Authentication("User not authenticated"))
		return
	}
	var req taskRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respond.Error(w, apperr.Validation("Invalid request body"))
		return
	}
	in := taskservice.CreateInput{DueDate: req.DueDate}
	if req.Title != nil {
		in.Title = *req.Title
	}
	if req.Description != nil {
		in.Description = *req.Description
	}
	if req.Status != nil {
		in.Status = domain.Status(*req.Status)
	}
	if req.Priority != nil {
		in.Priority = domain.Priority(*req.Priority)
	}

	task, err := h.svc.Create(r.Context(), userID, in)
	if err != nil {
		respond.Error(w, err)
		return
	}
	respond.Data(w, http.StatusCreated, map[string]interface{}{"task": task})
}

// List returns the user's tasks, optionally filtered by status, priority,
// and a title/description search term.
func (h *TaskHandler) List(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		respond.Error(w, apperr.Authentication("User not authenticated"))
		return
	}
	q := r.URL.Query()
	filter := repository.Filter{
		Status:   domain.Status(q.Get("status")),
		Priority: domain.Priority(q.Get("priority")),
		Search:   q.Get("search"),
	}
	tasks, err := h.svc.List(r.Context(), userID, filter)
	if err != nil {
		respond.Error(w, err)
		return
	}
	if tasks == nil {
		tasks = []*domain.Task{}
	}
	respond.Data(w, http.StatusOK, map[string]interface{}{"tasks": tasks})
}

// Get returns one task.
func (h *TaskHandler) Get(w http.ResponseWriter, r *http.Request) {
	h.withTask(w, r, h.svc.Get)
}

// Update applies a partial update to a task.
func (h *TaskHandler) Update(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		respond.Error(w, apperr.Authentication("User not authenticated"))
		return
	}
	var req taskRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respond.Error(w, apperr.Validation("Invalid request body"))
		return
	}
	in := taskservice.UpdateInput{
		Title:       req.Title,
		Description: req.Description,
		DueDate:     req.DueDate,
	}
	if req.Status != nil {
		s := domain.Status(*req.Status)
		in.Status = &s
	}
	if req.Priority != nil {
		p := domain.Priority(*req.Priority)
		in.Priority = &p
	}

	task, err := h.svc.Update(r.Context(), chi.URLParam(r, "id"), userID, in)
	if err != nil {
		respond.Error(w, err)
		return
	}
	respond.Data(w, http.StatusOK, map[string]interface{}{"task": task})
}

// Delete removes a task.
func (h *TaskHandler) Delete(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		respond.Error(w, apperr.Authentication("User not authenticated"))
		return
	}
	if err := h.svc.Delete(r.Context(), chi.URLParam(r, "id"), userID); err != nil {
		respond.Error(w, err)
		return
	}
	respond.Message(w, http.StatusOK, "Task deleted successfully")
}

// MarkCompleted transitions the task to completed.
func (h *TaskHandler) MarkCompleted(w http.ResponseWriter, r *http.Request) {
	h.withTask(w, r, h.svc.MarkCompleted)
}

// MarkPending transitions the task back to pending.
func (h *TaskHandler) MarkPending(w http.ResponseWriter, r *http.Request) {
	h.withTask(w, r, h.svc.MarkPending)
}

// MarkInProgress transitions the task to in_progress.
func (h *TaskHandler) MarkInProgress(w http.ResponseWriter, r *http.Request) {
	h.withTask(w, r, h.svc.MarkInProgress)
}

// Archive transitions the task to archived.
func (h *TaskHandler) Archive(w http.ResponseWriter, r *http.Request) {
	h.withTask(w, r, h.svc.Archive)
}

// withTask runs a single-task operation and writes the standard envelope.
func (h *TaskHandler) withTask(w http.ResponseWriter, r *http.Request, op func(ctx context.Context, id, userID string) (*domain.Task, error)) {
	userID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		respond.Error(w, apperr.Authentication("User not authenticated"))
		return
	}
	task, err := op(r.Context(), chi.URLParam(r, "id"), userID)
	if err != nil {
		respond.Error(w, err)
		return
	}
	respond.Data(w, http.StatusOK, map[string]interface{}{"task": task})
}
