// Package service implements the task business rules: validation, per-user
// ownership checks, and the status lifecycle.
package service

import (
	"context"
	"time"

	"github.com/google/uuid"

	"taskvault/backend/internal/apperr"
	"taskvault/backend/internal/task/domain"
	"taskvault/backend/internal/task/repository"
)

// maxTitleLength matches the tasks.title column width.
const maxTitleLength = 255

// TaskRepo is the slice of the task repository the service needs.
type TaskRepo interface {
	Create(ctx context.Context, t *domain.Task) error
	FindByID(ctx context.Context, id string) (*domain.Task, error)
	FindByUser(ctx context.Context, userID string, f repository.Filter) ([]*domain.Task, error)
	Update(ctx context.Context, t *domain.Task) error
	Delete(ctx context.Context, id string) error
}

// CreateInput holds the fields accepted when creating a task. Status and
// Priority default to pending/medium when empty.
type CreateInput struct {
	Title       string
	Description string
	Status      domain.Status
	Priority    domain.Priority
	DueDate     *time.Time
}

// UpdateInput holds the fields accepted when updating a task. Nil pointers
// leave the field unchanged.
type UpdateInput struct {
	Title       *string
	Description *string
	Status      *domain.Status
	Priority    *domain.Priority
	DueDate     *time.Time
}

// TaskService implements task CRUD scoped to the owning user.
type TaskService struct {
	tasks TaskRepo
}

// NewTaskService returns a TaskService backed by the given repository.
func NewTaskService(tasks TaskRepo) *TaskService {
	return &TaskService{tasks: tasks}
}

// Create validates and persists a new task for userID.
func (s *TaskService) Create(ctx context.Context, userID string, in CreateInput) (*domain.Task, error) {
	if userID == "" {
		return nil, apperr.Validation("User id is required")
	}
	if in.Title == "" {
		return nil, apperr.Validation("Title is required")
	}
	if len(in.Title) > maxTitleLength {
		return nil, apperr.Validation("Title must be less than 255 characters")
	}
	status := in.Status
	if status == "" {
		status = domain.StatusPending
	}
	if !status.Valid() {
		return nil, apperr.Validation("Invalid task status")
	}
	priority := in.Priority
	if priority == "" {
		priority = domain.PriorityMedium
	}
	if !priority.Valid() {
		return nil, apperr.Validation("Invalid task priority")
	}

	now := time.Now().UTC()
	task := &domain.Task{
		ID:          uuid.New().String(),
		UserID:      userID,
		Title:       in.Title,
		Description: in.Description,
		Status:      status,
		Priority:    priority,
		DueDate:     in.DueDate,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if status == domain.StatusCompleted {
		task.CompletedAt = &now
	}
	if err := s.tasks.Create(ctx, task); err != nil {
		return nil, apperr.Database("Failed to create task", err)
	}
	return task, nil
}

// List returns userID's tasks, newest first, narrowed by f.
func (s *TaskService) List(ctx context.Context, userID string, f repository.Filter) ([]*domain.Task, error) {
	if f.Status != "" && !f.Status.Valid() {
		return nil, apperr.Validation("Invalid task status")
	}
	if f.Priority != "" && !f.Priority.Valid() {
		return nil, apperr.Validation("Invalid task priority")
	}
	tasks, err := s.tasks.FindByUser(ctx, userID, f)
	if err != nil {
		return nil, apperr.Database("Failed to list tasks", err)
	}
	return tasks, nil
}

// Get returns the task if it exists and belongs to userID.
func (s *TaskService) Get(ctx context.Context, id, userID string) (*domain.Task, error) {
	task, err := s.tasks.FindByID(ctx, id)
	if err != nil {
		return nil, apperr.Database("Failed to find task", err)
	}
	if task == nil {
		return nil, apperr.NotFound("Task not found")
	}
	if task.UserID != userID {
		return nil, apperr.Authorization("You are not authorized to access this task")
	}
	return task, nil
}

// Update applies the non-nil fields of in to the task, enforcing ownership
// and the completed_at bookkeeping.
func (s *TaskService) Update(ctx context.Context, id, userID string, in UpdateInput) (*domain.Task, error) {
	task, err := s.Get(ctx, id, userID)
	if err != nil {
		return nil, err
	}
	if in.Title != nil {
		if *in.Title == "" {
			return nil, apperr.Validation("Title is required")
		}
		if len(*in.Title) > maxTitleLength {
			return nil, apperr.Validation("Title must be less than 255 characters")
		}
		task.Title = *in.Title
	}
	if in.Description != nil {
		task.Description = *in.Description
	}
	if in.Priority != nil {
		if !in.Priority.Valid() {
			return nil, apperr.Validation("Invalid task priority")
		}
		task.Priority = *in.Priority
	}
	if in.DueDate != nil {
		task.DueDate = in.DueDate
	}
	if in.Status != nil {
		if !in.Status.Valid() {
			return nil, apperr.Validation("Invalid task status")
		}
		applyStatus(task, *in.Status)
	}
	task.UpdatedAt = time.Now().UTC()
	if err := s.tasks.Update(ctx, task); err != nil {
		return nil, apperr.Database("Failed to update task", err)
	}
	return task, nil
}

// Delete removes the task, enforcing ownership.
func (s *TaskService) Delete(ctx context.Context, id, userID string) error {
	if _, err := s.Get(ctx, id, userID); err != nil {
		return err
	}
	if err := s.tasks.Delete(ctx, id); err != nil {
		return apperr.Database("Failed to delete task", err)
	}
	return nil
}

// MarkCompleted sets the task to completed and stamps completed_at.
func (s *TaskService) MarkCompleted(ctx context.Context, id, userID string) (*domain.Task, error) {
	return s.setStatus(ctx, id, userID, domain.StatusCompleted)
}

// MarkPending sets the task back to pending and clears completed_at.
func (s *TaskService) MarkPending(ctx context.Context, id, userID string) (*domain.Task, error) {
	return s.setStatus(ctx, id, userID, domain.StatusPending)
}

// MarkInProgress sets the task to in_progress and clears completed_at.
func (s *TaskService) MarkInProgress(ctx context.Context, id, userID string) (*domain.Task, error) {
	return s.setStatus(ctx, id, userID, domain.StatusInProgress)
}

// Archive sets the task to archived.
func (s *TaskService) Archive(ctx context.Context, id, userID string) (*domain.Task, error) {
	return s.setStatus(ctx, id, userID, domain.StatusArchived)
}

func (s *TaskService) setStatus(ctx context.Context, id, userID string, status domain.Status) (*domain.Task, error) {
	task, err := s.Get(ctx, id, userID)
	if err != nil {
		return nil, err
	}
	applyStatus(task, status)
	task.UpdatedAt = time.Now().UTC()
	if err := s.tasks.Update(ctx, task); err != nil {
		return nil, apperr.Database("Failed to update task", err)
	}
	return task, nil
}

// applyStatus transitions the task and keeps completed_at consistent:
// stamped on entry to completed, cleared when leaving it. Archiving keeps
// the stamp so a completed task's history survives archival.
func applyStatus(task *domain.Task, status domain.Status) {
	switch status {
	case domain.StatusCompleted:
		if task.Status != domain.StatusCompleted {
			now := time.Now().UTC()
			task.CompletedAt = &now
		}
	case domain.StatusPending, domain.StatusInProgress:
		task.CompletedAt = nil
	}
	task.Status = status
}
