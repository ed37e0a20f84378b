package repository

import (
	"context"

	"taskvault/backend/internal/task/domain"
)

// Filter narrows FindByUser results. Zero values mean "no filter"; Search
// matches title or description case-insensitively.
type Filter struct {
	Status   domain.Status
	Priority domain.Priority
	Search   string
}

// Repository defines persistence for tasks. Lookups return nil for missing
// rows; ownership checks are the service's concern.
type Repository interface {
	Create(ctx context.Context, t *domain.Task) error
	FindByID(ctx context.Context, id string) (*domain.Task, error)
	FindByUser(ctx context.Context, userID string, f Filter) ([]*domain.Task, error)
	Update(ctx context.Context, t *domain.Task) error
	Delete(ctx context.Context, id string) error
}
