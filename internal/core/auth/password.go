// Package auth holds the credential primitives used by the session authority:
// password hashing, session token encoding and the role policy.
package auth

import (
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"strings"

	"github.com/allisson/go-pwdhash"
	"golang.org/x/crypto/bcrypt"
)

const (
	SchemeBcrypt   = "bcrypt"
	SchemeArgon2id = "argon2id"

	// bcrypt only reads the first 72 bytes of its input.
	maxBcryptInput = 72
)

// scheme is one concrete hashing algorithm behind MultiHasher.
type scheme interface {
	Hash(secret string) (string, error)
	Verify(secret, digest string) bool
}

// BcryptHasher hashes with bcrypt at a fixed cost.
type BcryptHasher struct {
	cost int
}

// NewBcryptHasher returns a hasher using cost, or bcrypt.DefaultCost when
// cost is out of range.
func NewBcryptHasher(cost int) *BcryptHasher {
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		cost = bcrypt.DefaultCost
	}
	return &BcryptHasher{cost: cost}
}

// Hash returns a bcrypt digest of secret. Any string is accepted, including
// the empty string; secrets longer than 72 bytes are pre-hashed with SHA-256.
func (h *BcryptHasher) Hash(secret string) (string, error) {
	digest, err := bcrypt.GenerateFromPassword(bcryptInput(secret), h.cost)
	if err != nil {
		return "", fmt.Errorf("bcrypt hash: %w", err)
	}
	return string(digest), nil
}

// Verify reports whether secret matches digest. Malformed digests never match.
func (h *BcryptHasher) Verify(secret, digest string) bool {
	return bcrypt.CompareHashAndPassword([]byte(digest), bcryptInput(secret)) == nil
}

func bcryptInput(secret string) []byte {
	if len(secret) <= maxBcryptInput {
		return []byte(secret)
	}
	sum := sha256.Sum256([]byte(secret))
	return []byte(base64.StdEncoding.EncodeToString(sum[:]))
}

// Argon2Hasher produces PHC-formatted argon2id digests.
type Argon2Hasher struct {
	hasher *pwdhash.PasswordHasher
}

func NewArgon2Hasher() (*Argon2Hasher, error) {
	hasher, err := pwdhash.New(pwdhash.WithPolicy(pwdhash.PolicyInteractive))
	if err != nil {
		return nil, fmt.Errorf("argon2id hasher: %w", err)
	}
	return &Argon2Hasher{hasher: hasher}, nil
}

func (h *Argon2Hasher) Hash(secret string) (string, error) {
	digest, err := h.hasher.Hash([]byte(secret))
	if err != nil {
		return "", fmt.Errorf("argon2id hash: %w", err)
	}
	return digest, nil
}

func (h *Argon2Hasher) Verify(secret, digest string) bool {
	ok, err := h.hasher.Verify([]byte(secret), digest)
	return err == nil && ok
}

// MultiHasher hashes with one scheme but verifies digests of every supported
// scheme, so switching PASSWORD_SCHEME keeps existing accounts working.
type MultiHasher struct {
	primary scheme
	bcrypt  *BcryptHasher
	argon2  *Argon2Hasher
}

// NewHasher builds a MultiHasher whose new digests use scheme.
func NewHasher(scheme string, bcryptCost int) (*MultiHasher, error) {
	argon2, err := NewArgon2Hasher()
	if err != nil {
		return nil, err
	}
	m := &MultiHasher{bcrypt: NewBcryptHasher(bcryptCost), argon2: argon2}

	switch scheme {
	case SchemeBcrypt, "":
		m.primary = m.bcrypt
	case SchemeArgon2id:
		m.primary = m.argon2
	default:
		return nil, fmt.Errorf("unknown password scheme %q", scheme)
	}
	return m, nil
}

func (m *MultiHasher) Hash(secret string) (string, error) {
	return m.primary.Hash(secret)
}

// HashWith hashes secret with the named scheme instead of the primary one.
func (m *MultiHasher) HashWith(name, secret string) (string, error) {
	switch name {
	case SchemeBcrypt:
		return m.bcrypt.Hash(secret)
	case SchemeArgon2id:
		return m.argon2.Hash(secret)
	default:
		return "", fmt.Errorf("unknown password scheme %q", name)
	}
}

func (m *MultiHasher) Verify(secret, digest string) bool {
	switch SchemeOf(digest) {
	case SchemeArgon2id:
		return m.argon2.Verify(secret, digest)
	case SchemeBcrypt:
		return m.bcrypt.Verify(secret, digest)
	default:
		return false
	}
}

// Schemes lists every scheme MultiHasher can verify.
func Schemes() []string {
	return []string{SchemeBcrypt, SchemeArgon2id}
}

// SchemeOf names the scheme that produced digest, or "" if none matches.
func SchemeOf(digest string) string {
	switch {
	case strings.HasPrefix(digest, "$argon2id$"):
		return SchemeArgon2id
	case strings.HasPrefix(digest, "$2"):
		return SchemeBcrypt
	default:
		return ""
	}
}
