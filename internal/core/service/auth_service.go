package service

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/issuetracker/issues-api/internal/core/auth"
	"github.com/issuetracker/issues-api/internal/core/domain"
	"github.com/issuetracker/issues-api/internal/core/ports"
)

const (
	DefaultTokenTTL = 30 * time.Minute
	tokenTypeBearer = "bearer"
)

// AuthService issues session tokens for valid credentials and resolves
// presented tokens back to users. It keeps no per-session state; a token is
// valid as long as its signature checks out, it has not expired and it has
// not been revoked.
type AuthService struct {
	users    ports.UserRepository
	hasher   ports.PasswordHasher
	codec    ports.TokenCodec
	denylist ports.TokenDenylist
	recorder ports.LoginRecorder
	tokenTTL time.Duration
	now      func() time.Time
	log      zerolog.Logger

	// decoys holds one digest of a random secret per password scheme. The
	// unknown-user path verifies against the decoy of the scheme last seen on
	// a stored digest, so it costs the same as a wrong password.
	decoys     map[string]string
	primary    string
	lastScheme atomic.Value
}

// schemeHasher is implemented by hashers that can produce digests of a
// scheme other than their primary one.
type schemeHasher interface {
	HashWith(scheme, secret string) (string, error)
}

// AuthOption configures optional collaborators of AuthService.
type AuthOption func(*AuthService)

func WithClock(now func() time.Time) AuthOption {
	return func(s *AuthService) {
		if now != nil {
			s.now = now
		}
	}
}

func WithDenylist(d ports.TokenDenylist) AuthOption {
	return func(s *AuthService) { s.denylist = d }
}

func WithLoginRecorder(r ports.LoginRecorder) AuthOption {
	return func(s *AuthService) { s.recorder = r }
}

func WithAuthLogger(log zerolog.Logger) AuthOption {
	return func(s *AuthService) { s.log = log }
}

func NewAuthService(
	users ports.UserRepository,
	hasher ports.PasswordHasher,
	codec ports.TokenCodec,
	tokenTTL time.Duration,
	opts ...AuthOption,
) (*AuthService, error) {
	if tokenTTL <= 0 {
		tokenTTL = DefaultTokenTTL
	}
	if tokenTTL < auth.MinTokenTTL {
		return nil, fmt.Errorf("auth service: token ttl %s is below %s", tokenTTL, auth.MinTokenTTL)
	}
	s := &AuthService{
		users:    users,
		hasher:   hasher,
		codec:    codec,
		tokenTTL: tokenTTL,
		now:      time.Now,
		log:      zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(s)
	}

	if err := s.buildDecoys(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *AuthService) buildDecoys() error {
	primary, err := s.hasher.Hash(uuid.NewString())
	if err != nil {
		return fmt.Errorf("auth service: decoy digest: %w", err)
	}
	s.primary = auth.SchemeOf(primary)
	s.decoys = map[string]string{s.primary: primary}

	sh, ok := s.hasher.(schemeHasher)
	if !ok {
		return nil
	}
	for _, name := range auth.Schemes() {
		if _, done := s.decoys[name]; done {
			continue
		}
		digest, err := sh.HashWith(name, uuid.NewString())
		if err != nil {
			return fmt.Errorf("auth service: %s decoy digest: %w", name, err)
		}
		s.decoys[name] = digest
	}
	return nil
}

// decoy returns the digest to burn a verification on when there is no real
// one to check.
func (s *AuthService) decoy() string {
	if name, ok := s.lastScheme.Load().(string); ok {
		if d, found := s.decoys[name]; found {
			return d
		}
	}
	return s.decoys[s.primary]
}

// Register creates a password account. Roles other than REPORTER can only be
// granted by an ADMIN, except for the very first account.
func (s *AuthService) Register(ctx context.Context, in ports.RegisterInput) (*domain.User, error) {
	if in.Email == "" || in.Password == "" {
		return nil, fmt.Errorf("%w: email and password are required", domain.ErrInvalidInput)
	}
	role := in.Role
	if role == "" {
		role = domain.RoleReporter
	}
	if !role.Valid() {
		return nil, fmt.Errorf("%w: unknown role %q", domain.ErrInvalidInput, role)
	}

	hash, err := s.hasher.Hash(in.Password)
	if err != nil {
		return nil, fmt.Errorf("register: %w", err)
	}

	bootstrap := role != domain.RoleReporter && !auth.Allows(in.Actor)
	if bootstrap {
		if err := s.claimBootstrap(ctx); err != nil {
			return nil, err
		}
	}

	created, err := s.users.Create(ctx, &domain.User{
		Email:        in.Email,
		PasswordHash: hash,
		Role:         role,
		CreatedAt:    s.now().UTC(),
	})
	if err != nil {
		if bootstrap {
			if rerr := s.users.ReleaseBootstrap(ctx); rerr != nil {
				s.log.Error().Err(rerr).Msg("failed to release bootstrap slot")
			}
		}
		if errors.Is(err, domain.ErrUserExists) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: create user: %w", domain.ErrUnavailable, err)
	}

	s.log.Info().Int64("user_id", created.ID).Str("role", string(created.Role)).Msg("user registered")
	return created, nil
}

// claimBootstrap lets an anonymous caller take a privileged role only while
// the store is empty, and only once.
func (s *AuthService) claimBootstrap(ctx context.Context) error {
	n, err := s.users.Count(ctx)
	if err != nil {
		return fmt.Errorf("%w: count users: %w", domain.ErrUnavailable, err)
	}
	if n > 0 {
		return domain.ErrForbidden
	}
	claimed, err := s.users.ClaimBootstrap(ctx)
	if err != nil {
		return fmt.Errorf("%w: claim bootstrap: %w", domain.ErrUnavailable, err)
	}
	if !claimed {
		return domain.ErrForbidden
	}
	return nil
}

// Login checks the credentials and issues a token. Unknown email, missing
// password and wrong password all yield domain.ErrInvalidCredentials.
func (s *AuthService) Login(ctx context.Context, email, password string) (*ports.Session, error) {
	user, err := s.verifyCredentials(ctx, email, password)
	if err != nil {
		s.recordLogin(false)
		if errors.Is(err, domain.ErrInvalidCredentials) {
			s.log.Warn().Str("email", email).Msg("failed login attempt")
		}
		return nil, err
	}

	now := s.now().UTC()
	claims := auth.Claims{
		ID:        uuid.NewString(),
		Subject:   strconv.FormatInt(user.ID, 10),
		IssuedAt:  now,
		ExpiresAt: now.Add(s.tokenTTL),
	}
	token, err := s.codec.Encode(claims)
	if err != nil {
		s.recordLogin(false)
		return nil, fmt.Errorf("login: %w", err)
	}

	s.recordLogin(true)
	s.log.Info().Int64("user_id", user.ID).Msg("successful login")

	return &ports.Session{
		Token:     token,
		TokenType: tokenTypeBearer,
		ExpiresIn: s.tokenTTL,
		ExpiresAt: claims.ExpiresAt.Truncate(time.Second),
		User:      user,
	}, nil
}

func (s *AuthService) verifyCredentials(ctx context.Context, email, password string) (*domain.User, error) {
	user, err := s.users.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, domain.ErrUserNotFound) {
			s.hasher.Verify(password, s.decoy())
			return nil, domain.ErrInvalidCredentials
		}
		return nil, fmt.Errorf("%w: find user: %w", domain.ErrUnavailable, err)
	}

	if !user.HasPassword() {
		s.hasher.Verify(password, s.decoy())
		return nil, domain.ErrInvalidCredentials
	}
	if name := auth.SchemeOf(user.PasswordHash); name != "" {
		s.lastScheme.Store(name)
	}
	if !s.hasher.Verify(password, user.PasswordHash) {
		return nil, domain.ErrInvalidCredentials
	}
	return user, nil
}

// Authenticate decodes token and loads its subject from the store. Every
// token problem is reported as domain.ErrUnauthenticated; store failures
// are reported as domain.ErrUnavailable.
func (s *AuthService) Authenticate(ctx context.Context, token string) (*domain.User, error) {
	claims, err := s.decode(ctx, token)
	if err != nil {
		return nil, err
	}

	id, err := strconv.ParseInt(claims.Subject, 10, 64)
	if err != nil || id <= 0 {
		s.log.Debug().Str("subject", claims.Subject).Msg("token subject is not a user id")
		return nil, domain.ErrUnauthenticated
	}

	user, err := s.users.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, domain.ErrUserNotFound) {
			return nil, domain.ErrUnauthenticated
		}
		return nil, fmt.Errorf("%w: find user: %w", domain.ErrUnavailable, err)
	}
	return user, nil
}

// Logout revokes token until its expiry.
func (s *AuthService) Logout(ctx context.Context, token string) error {
	claims, err := s.decode(ctx, token)
	if err != nil {
		return err
	}

	if s.denylist == nil || claims.ID == "" {
		s.log.Warn().Str("subject", claims.Subject).Msg("logout without revocation: no denylist or token id")
	} else if err := s.denylist.Revoke(ctx, claims.ID, claims.ExpiresAt); err != nil {
		return fmt.Errorf("%w: revoke token: %w", domain.ErrUnavailable, err)
	}

	s.recordLogout()
	s.log.Info().Str("subject", claims.Subject).Msg("logged out")
	return nil
}

// decode verifies the token and checks the denylist.
func (s *AuthService) decode(ctx context.Context, token string) (auth.Claims, error) {
	claims, err := s.codec.Decode(token)
	if err != nil {
		s.log.Debug().Err(err).Msg("token rejected")
		return auth.Claims{}, domain.ErrUnauthenticated
	}

	if s.denylist != nil && claims.ID != "" {
		revoked, err := s.denylist.IsRevoked(ctx, claims.ID)
		if err != nil {
			return auth.Claims{}, fmt.Errorf("%w: check revocation: %w", domain.ErrUnavailable, err)
		}
		if revoked {
			s.log.Debug().Str("jti", claims.ID).Msg("revoked token presented")
			return auth.Claims{}, domain.ErrUnauthenticated
		}
	}
	return claims, nil
}

func (s *AuthService) recordLogin(success bool) {
	if s.recorder == nil {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			s.log.Error().Interface("panic", r).Msg("login recorder failed")
		}
	}()
	s.recorder.RecordLoginAttempt(success)
}

func (s *AuthService) recordLogout() {
	if s.recorder == nil {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			s.log.Error().Interface("panic", r).Msg("logout recorder failed")
		}
	}()
	s.recorder.RecordLogout()
}
