package store

import (
	"context"

	"github.com/google/uuid"

	"github.com/taskvault/taskvault/internal/domain"
)

// UserStore defines persistence operations for users.
type UserStore interface {
	// Create persists a new user. The user's HashedPassword must already be
	// set; plaintext passwords are never stored.
	// Returns ErrUsernameExists or ErrEmailExists on unique violations.
	Create(ctx context.Context, user *domain.User) error

	// GetByID retrieves a user by its unique ID.
	// Returns ErrUserNotFound if the user does not exist.
	GetByID(ctx context.Context, id uuid.UUID) (*domain.User, error)

	// GetByUsername retrieves a user by its unique username.
	// Returns ErrUserNotFound if the user does not exist.
	GetByUsername(ctx context.Context, username string) (*domain.User, error)

	// Disable soft-disables a user account. Users are never physically
	// deleted. Returns ErrUserNotFound if the user does not exist.
	Disable(ctx context.Context, id uuid.UUID) error
}
