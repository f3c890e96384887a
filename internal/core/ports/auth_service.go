package ports

import (
	"context"
	"time"

	"github.com/issuetracker/issues-api/internal/core/domain"
)

// Session is the result of a successful login.
type Session struct {
	Token     string
	TokenType string
	ExpiresIn time.Duration
	ExpiresAt time.Time
	User      *domain.User
}

// RegisterInput carries the fields of a new account. Actor is the
// authenticated caller, or nil for anonymous sign-up.
type RegisterInput struct {
	Actor    *domain.User
	Email    string
	Password string
	Role     domain.Role
}

type AuthService interface {
	Register(ctx context.Context, in RegisterInput) (*domain.User, error)
	Login(ctx context.Context, email, password string) (*Session, error)
	Logout(ctx context.Context, token string) error
}

// Authenticator resolves a bearer token to a freshly loaded user.
type Authenticator interface {
	Authenticate(ctx context.Context, token string) (*domain.User, error)
}
