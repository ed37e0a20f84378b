package repository

import (
	"context"
	"errors"

	"taskvault/backend/internal/user/domain"
)

// ErrEmailTaken is returned by Create when the email is already registered.
var ErrEmailTaken = errors.New("email already taken")

// Repository defines persistence for users. Lookups are filtered to active
// users; a row that exists but is inactive reads as nil.
type Repository interface {
	FindByID(ctx context.Context, id string) (*domain.User, error)
	FindByEmail(ctx context.Context, email string) (*domain.User, error)
	Create(ctx context.Context, u *domain.User) error
}
