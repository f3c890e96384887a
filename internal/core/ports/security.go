package ports

import (
	"context"
	"time"

	"github.com/issuetracker/issues-api/internal/core/auth"
)

// PasswordHasher turns secrets into salted one-way digests.
type PasswordHasher interface {
	Hash(secret string) (string, error)
	Verify(secret, digest string) bool
}

// TokenCodec signs and verifies session claims.
type TokenCodec interface {
	Encode(claims auth.Claims) (string, error)
	Decode(token string) (auth.Claims, error)
}

// TokenDenylist tracks tokens revoked before their natural expiry.
type TokenDenylist interface {
	Revoke(ctx context.Context, tokenID string, until time.Time) error
	IsRevoked(ctx context.Context, tokenID string) (bool, error)
}

// LoginRecorder receives login outcomes. Implementations must not block.
type LoginRecorder interface {
	RecordLoginAttempt(success bool)
	RecordLogout()
}
