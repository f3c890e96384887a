package auth

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

type fakeClock struct {
	t time.Time
}

func (c *fakeClock) Now() time.Time          { return c.t }
func (c *fakeClock) Advance(d time.Duration) { c.t = c.t.Add(d) }

func newTestCodec(t *testing.T, secret, alg string, clock *fakeClock) *TokenCodec {
	t.Helper()
	codec, err := NewTokenCodec([]byte(secret), alg, WithClock(clock.Now))
	if err != nil {
		t.Fatalf("NewTokenCodec: %v", err)
	}
	return codec
}

func startClock() *fakeClock {
	return &fakeClock{t: time.Date(2025, 3, 14, 9, 26, 53, 0, time.UTC)}
}

func TestTokenCodec_RoundTrip(t *testing.T) {
	clock := startClock()
	codec := newTestCodec(t, "secret", "HS256", clock)

	want := Claims{
		ID:        "4b8e2a6c-jti",
		Subject:   "42",
		IssuedAt:  clock.Now(),
		ExpiresAt: clock.Now().Add(30 * time.Minute),
	}
	token, err := codec.Encode(want)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	if n := strings.Count(token, "."); n != 2 {
		t.Fatalf("expected 3 segments, got %d", n+1)
	}

	got, err := codec.Decode(token)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if got.ID != want.ID || got.Subject != want.Subject {
		t.Fatalf("claims mismatch: got %+v want %+v", got, want)
	}
	if !got.ExpiresAt.Equal(want.ExpiresAt) || !got.IssuedAt.Equal(want.IssuedAt) {
		t.Fatalf("times mismatch: got %+v want %+v", got, want)
	}
	if got.ExpiresAt.Location() != time.UTC {
		t.Fatalf("expected UTC expiry")
	}
}

func TestTokenCodec_RoundTripAllAlgorithms(t *testing.T) {
	for _, alg := range []string{"HS256", "HS384", "HS512"} {
		t.Run(alg, func(t *testing.T) {
			clock := startClock()
			codec := newTestCodec(t, "secret", alg, clock)

			token, err := codec.Encode(Claims{Subject: "7", ExpiresAt: clock.Now().Add(time.Minute)})
			if err != nil {
				t.Fatalf("Encode: %v", err)
			}
			claims, err := codec.Decode(token)
			if err != nil {
				t.Fatalf("Decode: %v", err)
			}
			if claims.Subject != "7" {
				t.Fatalf("unexpected subject %q", claims.Subject)
			}
		})
	}
}

func TestTokenCodec_Expired(t *testing.T) {
	clock := startClock()
	codec := newTestCodec(t, "secret", "HS256", clock)

	token, err := codec.Encode(Claims{Subject: "1", ExpiresAt: clock.Now().Add(-time.Minute)})
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	if _, err := codec.Decode(token); !errors.Is(err, ErrTokenExpired) {
		t.Fatalf("expected ErrTokenExpired, got %v", err)
	}
}

func TestTokenCodec_ExpiresWhenClockPassesExpiry(t *testing.T) {
	clock := startClock()
	codec := newTestCodec(t, "secret", "HS256", clock)

	token, err := codec.Encode(Claims{Subject: "1", ExpiresAt: clock.Now().Add(time.Second)})
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	if _, err := codec.Decode(token); err != nil {
		t.Fatalf("fresh token rejected: %v", err)
	}

	clock.Advance(2 * time.Second)
	if _, err := codec.Decode(token); !errors.Is(err, ErrTokenExpired) {
		t.Fatalf("expected ErrTokenExpired, got %v", err)
	}
}

func TestTokenCodec_TamperedPayload(t *testing.T) {
	clock := startClock()
	codec := newTestCodec(t, "secret", "HS256", clock)

	token, err := codec.Encode(Claims{Subject: "42", ExpiresAt: clock.Now().Add(time.Hour)})
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	parts := strings.Split(token, ".")
	payload := parts[1]

	for i := 0; i < len(payload); i++ {
		replacement := byte('A')
		if payload[i] == 'A' {
			replacement = 'B'
		}
		tampered := payload[:i] + string(replacement) + payload[i+1:]
		forged := parts[0] + "." + tampered + "." + parts[2]

		_, err := codec.Decode(forged)
		if err == nil {
			t.Fatalf("tampering at offset %d was accepted", i)
		}
		if !errors.Is(err, ErrTokenSignature) && !errors.Is(err, ErrTokenMalformed) {
			t.Fatalf("offset %d: unexpected error %v", i, err)
		}
	}
}

func TestTokenCodec_WrongSecret(t *testing.T) {
	clock := startClock()
	issuer := newTestCodec(t, "secret-a", "HS256", clock)
	verifier := newTestCodec(t, "secret-b", "HS256", clock)

	token, err := issuer.Encode(Claims{Subject: "1", ExpiresAt: clock.Now().Add(time.Hour)})
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	if _, err := verifier.Decode(token); !errors.Is(err, ErrTokenSignature) {
		t.Fatalf("expected ErrTokenSignature, got %v", err)
	}
}

func TestTokenCodec_SignatureCheckedBeforeExpiry(t *testing.T) {
	clock := startClock()
	issuer := newTestCodec(t, "secret-a", "HS256", clock)
	verifier := newTestCodec(t, "secret-b", "HS256", clock)

	token, _ := issuer.Encode(Claims{Subject: "1", ExpiresAt: clock.Now().Add(-time.Hour)})
	if _, err := verifier.Decode(token); !errors.Is(err, ErrTokenSignature) {
		t.Fatalf("expected ErrTokenSignature for expired forged token, got %v", err)
	}
}

func TestTokenCodec_AlgorithmMismatch(t *testing.T) {
	clock := startClock()
	issuer := newTestCodec(t, "secret", "HS512", clock)
	verifier := newTestCodec(t, "secret", "HS256", clock)

	token, _ := issuer.Encode(Claims{Subject: "1", ExpiresAt: clock.Now().Add(time.Hour)})
	if _, err := verifier.Decode(token); !errors.Is(err, ErrTokenSignature) {
		t.Fatalf("expected ErrTokenSignature, got %v", err)
	}
}

func TestTokenCodec_RejectsNoneAlgorithm(t *testing.T) {
	clock := startClock()
	codec := newTestCodec(t, "secret", "HS256", clock)

	unsigned, err := jwt.NewWithClaims(jwt.SigningMethodNone, jwt.RegisteredClaims{
		Subject:   "1",
		ExpiresAt: jwt.NewNumericDate(clock.Now().Add(time.Hour)),
	}).SignedString(jwt.UnsafeAllowNoneSignatureType)
	if err != nil {
		t.Fatalf("sign none: %v", err)
	}
	if _, err := codec.Decode(unsigned); !errors.Is(err, ErrTokenSignature) {
		t.Fatalf("expected ErrTokenSignature, got %v", err)
	}
}

func TestTokenCodec_MissingExpiry(t *testing.T) {
	clock := startClock()
	codec := newTestCodec(t, "secret", "HS256", clock)

	noExp, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{Subject: "1"}).
		SignedString([]byte("secret"))
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	if _, err := codec.Decode(noExp); !errors.Is(err, ErrTokenMalformed) {
		t.Fatalf("expected ErrTokenMalformed, got %v", err)
	}

	if _, err := codec.Encode(Claims{Subject: "1"}); err == nil {
		t.Fatalf("Encode without expiry should fail")
	}
}

func TestTokenCodec_MissingSubject(t *testing.T) {
	clock := startClock()
	codec := newTestCodec(t, "secret", "HS256", clock)

	noSub, _ := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		ExpiresAt: jwt.NewNumericDate(clock.Now().Add(time.Hour)),
	}).SignedString([]byte("secret"))
	if _, err := codec.Decode(noSub); !errors.Is(err, ErrTokenMalformed) {
		t.Fatalf("expected ErrTokenMalformed, got %v", err)
	}
}

func TestTokenCodec_Malformed(t *testing.T) {
	clock := startClock()
	codec := newTestCodec(t, "secret", "HS256", clock)

	for _, token := range []string{"", "not-a-token", "a.b", "a.b.c.d", "!!!.@@@.###"} {
		if _, err := codec.Decode(token); !errors.Is(err, ErrTokenMalformed) {
			t.Fatalf("Decode(%q): expected ErrTokenMalformed, got %v", token, err)
		}
	}
}

func TestNewTokenCodec_Validation(t *testing.T) {
	if _, err := NewTokenCodec(nil, "HS256"); err == nil {
		t.Fatalf("expected error for empty secret")
	}
	if _, err := NewTokenCodec([]byte("s"), "RS256"); err == nil {
		t.Fatalf("expected error for unsupported algorithm")
	}
	if !SupportedAlgorithm("HS384") || SupportedAlgorithm("none") {
		t.Fatalf("SupportedAlgorithm returned unexpected result")
	}
}
