package ports

import (
	"context"

	"github.com/issuetracker/issues-api/internal/core/domain"
)

// UserRepository is the credential store consumed by the auth service.
// Find methods return domain.ErrUserNotFound when no user matches; any other
// error means the store could not answer.
type UserRepository interface {
	FindByEmail(ctx context.Context, email string) (*domain.User, error)
	FindByID(ctx context.Context, id int64) (*domain.User, error)
	Create(ctx context.Context, user *domain.User) (*domain.User, error)
	Count(ctx context.Context) (int64, error)

	// ClaimBootstrap atomically reserves the one-time right to create the
	// first privileged account. It reports false once the slot is taken.
	ClaimBootstrap(ctx context.Context) (bool, error)
	// ReleaseBootstrap returns the slot after the account could not be created.
	ReleaseBootstrap(ctx context.Context) error
}

// UserCounter reports the number of registered users.
type UserCounter interface {
	Count(ctx context.Context) (int64, error)
}
