package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Decode failures. Callers outside this package should collapse all three
// into a single unauthenticated outcome.
var (
	ErrTokenMalformed = errors.New("token malformed")
	ErrTokenSignature = errors.New("token signature invalid")
	ErrTokenExpired   = errors.New("token expired")
)

// MinTokenTTL is the shortest usable token lifetime. Expiry is encoded with
// one-second precision, so anything shorter can expire before it is issued.
const MinTokenTTL = time.Second

var signingMethods = map[string]jwt.SigningMethod{
	jwt.SigningMethodHS256.Alg(): jwt.SigningMethodHS256,
	jwt.SigningMethodHS384.Alg(): jwt.SigningMethodHS384,
	jwt.SigningMethodHS512.Alg(): jwt.SigningMethodHS512,
}

// SupportedAlgorithm reports whether alg can be passed to NewTokenCodec.
func SupportedAlgorithm(alg string) bool {
	_, ok := signingMethods[alg]
	return ok
}

// Claims is the session payload carried by a token. Times have one-second
// precision once encoded.
type Claims struct {
	ID        string
	Subject   string
	IssuedAt  time.Time
	ExpiresAt time.Time
}

// TokenCodec signs and verifies session tokens as compact HMAC JWTs.
type TokenCodec struct {
	method jwt.SigningMethod
	secret []byte
	now    func() time.Time
}

// CodecOption customises a TokenCodec.
type CodecOption func(*TokenCodec)

// WithClock replaces the time source used for expiry checks.
func WithClock(now func() time.Time) CodecOption {
	return func(c *TokenCodec) {
		if now != nil {
			c.now = now
		}
	}
}

// NewTokenCodec builds a codec for the given HMAC algorithm (HS256, HS384 or HS512).
func NewTokenCodec(secret []byte, algorithm string, opts ...CodecOption) (*TokenCodec, error) {
	if len(secret) == 0 {
		return nil, errors.New("token codec: signing secret is empty")
	}
	method, ok := signingMethods[algorithm]
	if !ok {
		return nil, fmt.Errorf("token codec: unsupported algorithm %q", algorithm)
	}

	c := &TokenCodec{
		method: method,
		secret: append([]byte(nil), secret...),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Encode signs claims. Subject and expiry are mandatory.
func (c *TokenCodec) Encode(claims Claims) (string, error) {
	if claims.Subject == "" {
		return "", errors.New("encode token: subject is required")
	}
	if claims.ExpiresAt.IsZero() {
		return "", errors.New("encode token: expiry is required")
	}

	registered := jwt.RegisteredClaims{
		ID:        claims.ID,
		Subject:   claims.Subject,
		ExpiresAt: jwt.NewNumericDate(claims.ExpiresAt),
	}
	if !claims.IssuedAt.IsZero() {
		registered.IssuedAt = jwt.NewNumericDate(claims.IssuedAt)
	}

	signed, err := jwt.NewWithClaims(c.method, registered).SignedString(c.secret)
	if err != nil {
		return "", fmt.Errorf("encode token: %w", err)
	}
	return signed, nil
}

// Decode verifies the signature first and the expiry second.
func (c *TokenCodec) Decode(token string) (Claims, error) {
	var registered jwt.RegisteredClaims
	_, err := jwt.ParseWithClaims(token, &registered,
		func(*jwt.Token) (any, error) { return c.secret, nil },
		jwt.WithValidMethods([]string{c.method.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(c.now),
	)
	if err != nil {
		return Claims{}, classifyParseError(err)
	}
	if registered.Subject == "" {
		return Claims{}, fmt.Errorf("%w: missing subject", ErrTokenMalformed)
	}

	claims := Claims{
		ID:        registered.ID,
		Subject:   registered.Subject,
		ExpiresAt: registered.ExpiresAt.Time.UTC(),
	}
	if registered.IssuedAt != nil {
		claims.IssuedAt = registered.IssuedAt.Time.UTC()
	}
	return claims, nil
}

func classifyParseError(err error) error {
	switch {
	case errors.Is(err, jwt.ErrTokenSignatureInvalid), errors.Is(err, jwt.ErrTokenUnverifiable):
		return fmt.Errorf("%w: %v", ErrTokenSignature, err)
	case errors.Is(err, jwt.ErrTokenExpired):
		return fmt.Errorf("%w: %v", ErrTokenExpired, err)
	default:
		return fmt.Errorf("%w: %v", ErrTokenMalformed, err)
	}
}
