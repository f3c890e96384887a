package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/issuetracker/issues-api/internal/core/auth"
	"github.com/issuetracker/issues-api/internal/core/domain"
	"github.com/issuetracker/issues-api/internal/core/ports"
)

// ---------------------------------------------------------------------------
// Stubs
// ---------------------------------------------------------------------------

type stubUserRepo struct {
	mu          sync.Mutex
	byID        map[int64]*domain.User
	nextID      int64
	bootstrap   bool
	createDelay time.Duration
	createErr   error
	err         error // returned by every call when set
}

func newStubUserRepo() *stubUserRepo {
	return &stubUserRepo{byID: make(map[int64]*domain.User)}
}

func cloneUser(u *domain.User) *domain.User {
	if u == nil {
		return nil
	}
	clone := *u
	return &clone
}

func (r *stubUserRepo) Create(_ context.Context, user *domain.User) (*domain.User, error) {
	time.Sleep(r.createDelay)
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return nil, r.err
	}
	if r.createErr != nil {
		return nil, r.createErr
	}
	for _, u := range r.byID {
		if u.Email == user.Email {
			return nil, domain.ErrUserExists
		}
	}
	r.nextID++
	created := cloneUser(user)
	created.ID = r.nextID
	r.byID[created.ID] = cloneUser(created)
	return created, nil
}

func (r *stubUserRepo) FindByEmail(_ context.Context, email string) (*domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return nil, r.err
	}
	for _, u := range r.byID {
		if u.Email == email {
			return cloneUser(u), nil
		}
	}
	return nil, domain.ErrUserNotFound
}

func (r *stubUserRepo) FindByID(_ context.Context, id int64) (*domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return nil, r.err
	}
	u, ok := r.byID[id]
	if !ok {
		return nil, domain.ErrUserNotFound
	}
	return cloneUser(u), nil
}

func (r *stubUserRepo) Count(_ context.Context) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return 0, r.err
	}
	return int64(len(r.byID)), nil
}

func (r *stubUserRepo) ClaimBootstrap(_ context.Context) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return false, r.err
	}
	if r.bootstrap {
		return false, nil
	}
	r.bootstrap = true
	return true, nil
}

func (r *stubUserRepo) ReleaseBootstrap(_ context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.bootstrap = false
	return nil
}

func (r *stubUserRepo) setRole(id int64, role domain.Role) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.byID[id].Role = role
}

func (r *stubUserRepo) remove(id int64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.byID, id)
}

type stubRecorder struct {
	attempts []bool
	logouts  int
	panics   bool
}

func (r *stubRecorder) RecordLoginAttempt(success bool) {
	if r.panics {
		panic("metrics backend down")
	}
	r.attempts = append(r.attempts, success)
}

func (r *stubRecorder) RecordLogout() { r.logouts++ }

type stubDenylist struct {
	revoked map[string]time.Time
	err     error
}

func newStubDenylist() *stubDenylist {
	return &stubDenylist{revoked: make(map[string]time.Time)}
}

func (d *stubDenylist) Revoke(_ context.Context, id string, until time.Time) error {
	if d.err != nil {
		return d.err
	}
	d.revoked[id] = until
	return nil
}

func (d *stubDenylist) IsRevoked(_ context.Context, id string) (bool, error) {
	if d.err != nil {
		return false, d.err
	}
	_, ok := d.revoked[id]
	return ok, nil
}

type testClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

// ---------------------------------------------------------------------------
// Helpers
// ---------------------------------------------------------------------------

type authFixture struct {
	svc      *AuthService
	repo     *stubUserRepo
	hasher   *auth.BcryptHasher
	clock    *testClock
	recorder *stubRecorder
	denylist *stubDenylist
}

func newAuthFixture(t *testing.T, ttl time.Duration) *authFixture {
	t.Helper()
	clock := &testClock{t: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)}
	codec, err := auth.NewTokenCodec([]byte("test-secret"), "HS256", auth.WithClock(clock.Now))
	if err != nil {
		t.Fatalf("codec: %v", err)
	}

	f := &authFixture{
		repo:     newStubUserRepo(),
		hasher:   auth.NewBcryptHasher(bcrypt.MinCost),
		clock:    clock,
		recorder: &stubRecorder{},
		denylist: newStubDenylist(),
	}
	f.svc, err = NewAuthService(f.repo, f.hasher, codec, ttl,
		WithClock(clock.Now),
		WithLoginRecorder(f.recorder),
		WithDenylist(f.denylist),
	)
	if err != nil {
		t.Fatalf("NewAuthService: %v", err)
	}
	return f
}

func (f *authFixture) seed(t *testing.T, email, password string, role domain.Role) *domain.User {
	t.Helper()
	u := &domain.User{Email: email, Role: role}
	if password != "" {
		hash, err := f.hasher.Hash(password)
		if err != nil {
			t.Fatalf("hash: %v", err)
		}
		u.PasswordHash = hash
	}
	created, err := f.repo.Create(context.Background(), u)
	if err != nil {
		t.Fatalf("seed: %v", err)
	}
	return created
}

// ---------------------------------------------------------------------------
// Login / Authenticate
// ---------------------------------------------------------------------------

func TestAuthService_LoginThenAuthenticate(t *testing.T) {
	f := newAuthFixture(t, time.Hour)
	seeded := f.seed(t, "a@x.com", "p1", domain.RoleReporter)

	session, err := f.svc.Login(context.Background(), "a@x.com", "p1")
	if err != nil {
		t.Fatalf("login failed: %v", err)
	}
	if session.Token == "" || session.TokenType != "bearer" {
		t.Fatalf("unexpected session: %+v", session)
	}
	if session.ExpiresIn != time.Hour {
		t.Fatalf("expected 1h lifetime, got %v", session.ExpiresIn)
	}
	if !session.ExpiresAt.Equal(f.clock.Now().Add(time.Hour)) {
		t.Fatalf("unexpected expiry %v", session.ExpiresAt)
	}

	user, err := f.svc.Authenticate(context.Background(), session.Token)
	if err != nil {
		t.Fatalf("authenticate failed: %v", err)
	}
	if user.ID != seeded.ID || user.Email != "a@x.com" {
		t.Fatalf("resolved wrong identity: %+v", user)
	}
	if len(f.recorder.attempts) != 1 || !f.recorder.attempts[0] {
		t.Fatalf("expected one successful attempt recorded, got %v", f.recorder.attempts)
	}
}

func TestAuthService_Login_EnumerationResistant(t *testing.T) {
	f := newAuthFixture(t, time.Hour)
	f.seed(t, "a@x.com", "p1", domain.RoleReporter)
	f.seed(t, "sso@x.com", "", domain.RoleReporter)

	_, wrongPassword := f.svc.Login(context.Background(), "a@x.com", "wrong")
	_, unknownUser := f.svc.Login(context.Background(), "nobody@x.com", "wrong")
	_, noPassword := f.svc.Login(context.Background(), "sso@x.com", "")

	for name, err := range map[string]error{
		"wrong password": wrongPassword,
		"unknown user":   unknownUser,
		"no password":    noPassword,
	} {
		if !errors.Is(err, domain.ErrInvalidCredentials) {
			t.Fatalf("%s: expected ErrInvalidCredentials, got %v", name, err)
		}
		if err.Error() != wrongPassword.Error() {
			t.Fatalf("%s: message %q differs from %q", name, err.Error(), wrongPassword.Error())
		}
	}

	if len(f.recorder.attempts) != 3 {
		t.Fatalf("expected 3 recorded attempts, got %d", len(f.recorder.attempts))
	}
	for _, ok := range f.recorder.attempts {
		if ok {
			t.Fatalf("failed attempts recorded as success")
		}
	}
}

// recordingHasher remembers which digests Verify was asked to check.
type recordingHasher struct {
	*auth.MultiHasher
	mu       sync.Mutex
	verified []string
}

func (h *recordingHasher) Verify(secret, digest string) bool {
	h.mu.Lock()
	h.verified = append(h.verified, digest)
	h.mu.Unlock()
	return h.MultiHasher.Verify(secret, digest)
}

func (h *recordingHasher) last() string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.verified[len(h.verified)-1]
}

func TestAuthService_Login_UnknownUserMatchesStoredScheme(t *testing.T) {
	multi, err := auth.NewHasher(auth.SchemeArgon2id, bcrypt.MinCost)
	if err != nil {
		t.Fatalf("NewHasher: %v", err)
	}
	hasher := &recordingHasher{MultiHasher: multi}
	codec, err := auth.NewTokenCodec([]byte("test-secret"), "HS256")
	if err != nil {
		t.Fatalf("codec: %v", err)
	}
	repo := newStubUserRepo()
	svc, err := NewAuthService(repo, hasher, codec, time.Hour)
	if err != nil {
		t.Fatalf("NewAuthService: %v", err)
	}

	if _, err := svc.Login(context.Background(), "nobody@x.com", "pw"); !errors.Is(err, domain.ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials, got %v", err)
	}
	if got := auth.SchemeOf(hasher.last()); got != auth.SchemeArgon2id {
		t.Fatalf("expected the primary scheme before any stored digest is seen, got %q", got)
	}

	// An account that still carries a digest from the previous scheme.
	legacy, err := multi.HashWith(auth.SchemeBcrypt, "p1")
	if err != nil {
		t.Fatalf("HashWith: %v", err)
	}
	if _, err := repo.Create(context.Background(), &domain.User{Email: "old@x.com", PasswordHash: legacy, Role: domain.RoleReporter}); err != nil {
		t.Fatalf("seed: %v", err)
	}
	if _, err := svc.Login(context.Background(), "old@x.com", "wrong"); !errors.Is(err, domain.ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials, got %v", err)
	}

	if _, err := svc.Login(context.Background(), "nobody@x.com", "pw"); !errors.Is(err, domain.ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials, got %v", err)
	}
	last := hasher.last()
	if auth.SchemeOf(last) != auth.SchemeBcrypt {
		t.Fatalf("expected unknown-user check against a bcrypt digest, got %q", last)
	}
	if last == legacy {
		t.Fatal("unknown-user check must not reuse a real account digest")
	}
}

func TestAuthService_Login_EmailIsCaseSensitive(t *testing.T) {
	f := newAuthFixture(t, time.Hour)
	f.seed(t, "a@x.com", "p1", domain.RoleReporter)

	if _, err := f.svc.Login(context.Background(), "A@X.COM", "p1"); !errors.Is(err, domain.ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials, got %v", err)
	}
}

func TestAuthService_Login_StoreUnavailable(t *testing.T) {
	f := newAuthFixture(t, time.Hour)
	f.repo.err = errors.New("connection refused")

	_, err := f.svc.Login(context.Background(), "a@x.com", "p1")
	if !errors.Is(err, domain.ErrUnavailable) {
		t.Fatalf("expected ErrUnavailable, got %v", err)
	}
	if errors.Is(err, domain.ErrInvalidCredentials) {
		t.Fatalf("store failure must not look like bad credentials")
	}
}

func TestAuthService_Login_RecorderPanicDoesNotFailLogin(t *testing.T) {
	f := newAuthFixture(t, time.Hour)
	f.seed(t, "a@x.com", "p1", domain.RoleReporter)
	f.recorder.panics = true

	if _, err := f.svc.Login(context.Background(), "a@x.com", "p1"); err != nil {
		t.Fatalf("login should succeed despite recorder panic: %v", err)
	}
}

func TestAuthService_Authenticate_ExpiredToken(t *testing.T) {
	f := newAuthFixture(t, time.Second)
	f.seed(t, "a@x.com", "p1", domain.RoleReporter)

	session, err := f.svc.Login(context.Background(), "a@x.com", "p1")
	if err != nil {
		t.Fatalf("login failed: %v", err)
	}

	f.clock.Advance(2 * time.Second)
	if _, err := f.svc.Authenticate(context.Background(), session.Token); !errors.Is(err, domain.ErrUnauthenticated) {
		t.Fatalf("expected ErrUnauthenticated, got %v", err)
	}
}

func TestAuthService_Authenticate_CollapsesDecodeErrors(t *testing.T) {
	f := newAuthFixture(t, time.Hour)
	f.seed(t, "a@x.com", "p1", domain.RoleReporter)

	session, _ := f.svc.Login(context.Background(), "a@x.com", "p1")
	otherCodec, _ := auth.NewTokenCodec([]byte("another-secret"), "HS256", auth.WithClock(f.clock.Now))
	forged, _ := otherCodec.Encode(auth.Claims{Subject: "1", ExpiresAt: f.clock.Now().Add(time.Hour)})
	expired, _ := otherCodec.Encode(auth.Claims{Subject: "1", ExpiresAt: f.clock.Now().Add(-time.Hour)})

	var messages []string
	for _, token := range []string{"", "garbage", session.Token + "x", forged, expired} {
		_, err := f.svc.Authenticate(context.Background(), token)
		if !errors.Is(err, domain.ErrUnauthenticated) {
			t.Fatalf("token %q: expected ErrUnauthenticated, got %v", token, err)
		}
		if errors.Is(err, auth.ErrTokenExpired) || errors.Is(err, auth.ErrTokenSignature) || errors.Is(err, auth.ErrTokenMalformed) {
			t.Fatalf("decode error subtype leaked: %v", err)
		}
		messages = append(messages, err.Error())
	}
	for _, m := range messages {
		if m != messages[0] {
			t.Fatalf("expected identical messages, got %v", messages)
		}
	}
}

func TestAuthService_Authenticate_BadSubject(t *testing.T) {
	f := newAuthFixture(t, time.Hour)
	codec, _ := auth.NewTokenCodec([]byte("test-secret"), "HS256", auth.WithClock(f.clock.Now))

	for _, sub := range []string{"alice", "-1", "0", "1.5", "99999999999999999999"} {
		token, err := codec.Encode(auth.Claims{Subject: sub, ExpiresAt: f.clock.Now().Add(time.Hour)})
		if err != nil {
			t.Fatalf("encode: %v", err)
		}
		if _, err := f.svc.Authenticate(context.Background(), token); !errors.Is(err, domain.ErrUnauthenticated) {
			t.Fatalf("subject %q: expected ErrUnauthenticated, got %v", sub, err)
		}
	}
}

func TestAuthService_Authenticate_ReadsRoleFresh(t *testing.T) {
	f := newAuthFixture(t, time.Hour)
	u := f.seed(t, "a@x.com", "p1", domain.RoleReporter)

	session, _ := f.svc.Login(context.Background(), "a@x.com", "p1")
	f.repo.setRole(u.ID, domain.RoleAdmin)

	user, err := f.svc.Authenticate(context.Background(), session.Token)
	if err != nil {
		t.Fatalf("authenticate: %v", err)
	}
	if user.Role != domain.RoleAdmin {
		t.Fatalf("expected fresh role ADMIN, got %s", user.Role)
	}
}

func TestAuthService_Authenticate_DeletedUser(t *testing.T) {
	f := newAuthFixture(t, time.Hour)
	u := f.seed(t, "a@x.com", "p1", domain.RoleReporter)

	session, _ := f.svc.Login(context.Background(), "a@x.com", "p1")
	f.repo.remove(u.ID)

	if _, err := f.svc.Authenticate(context.Background(), session.Token); !errors.Is(err, domain.ErrUnauthenticated) {
		t.Fatalf("expected ErrUnauthenticated, got %v", err)
	}
}

func TestAuthService_Authenticate_StoreUnavailable(t *testing.T) {
	f := newAuthFixture(t, time.Hour)
	f.seed(t, "a@x.com", "p1", domain.RoleReporter)
	session, _ := f.svc.Login(context.Background(), "a@x.com", "p1")

	f.repo.err = errors.New("timeout")
	if _, err := f.svc.Authenticate(context.Background(), session.Token); !errors.Is(err, domain.ErrUnavailable) {
		t.Fatalf("expected ErrUnavailable, got %v", err)
	}
}

func TestAuthService_Logout_RevokesToken(t *testing.T) {
	f := newAuthFixture(t, time.Hour)
	f.seed(t, "a@x.com", "p1", domain.RoleReporter)
	session, _ := f.svc.Login(context.Background(), "a@x.com", "p1")

	if err := f.svc.Logout(context.Background(), session.Token); err != nil {
		t.Fatalf("logout: %v", err)
	}
	if len(f.denylist.revoked) != 1 {
		t.Fatalf("expected one revoked token, got %d", len(f.denylist.revoked))
	}
	for _, until := range f.denylist.revoked {
		if !until.Equal(session.ExpiresAt) {
			t.Fatalf("revocation should last until token expiry, got %v", until)
		}
	}
	if f.recorder.logouts != 1 {
		t.Fatalf("expected logout recorded")
	}

	if _, err := f.svc.Authenticate(context.Background(), session.Token); !errors.Is(err, domain.ErrUnauthenticated) {
		t.Fatalf("revoked token accepted: %v", err)
	}

	// A fresh login is unaffected.
	again, _ := f.svc.Login(context.Background(), "a@x.com", "p1")
	if _, err := f.svc.Authenticate(context.Background(), again.Token); err != nil {
		t.Fatalf("new token rejected: %v", err)
	}
}

func TestAuthService_Authenticate_DenylistUnavailable(t *testing.T) {
	f := newAuthFixture(t, time.Hour)
	f.seed(t, "a@x.com", "p1", domain.RoleReporter)
	session, _ := f.svc.Login(context.Background(), "a@x.com", "p1")

	f.denylist.err = errors.New("redis down")
	if _, err := f.svc.Authenticate(context.Background(), session.Token); !errors.Is(err, domain.ErrUnavailable) {
		t.Fatalf("expected ErrUnavailable, got %v", err)
	}
}

// ---------------------------------------------------------------------------
// Register
// ---------------------------------------------------------------------------

func TestAuthService_Register_DefaultsToReporter(t *testing.T) {
	f := newAuthFixture(t, time.Hour)

	user, err := f.svc.Register(context.Background(), ports.RegisterInput{Email: "r@x.com", Password: "pw"})
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	if user.Role != domain.RoleReporter {
		t.Fatalf("expected REPORTER, got %s", user.Role)
	}
	if user.PasswordHash == "pw" || !f.hasher.Verify("pw", user.PasswordHash) {
		t.Fatalf("password not hashed correctly")
	}
}

func TestAuthService_Register_RolePromotionRules(t *testing.T) {
	f := newAuthFixture(t, time.Hour)
	ctx := context.Background()

	admin, err := f.svc.Register(ctx, ports.RegisterInput{Email: "root@x.com", Password: "pw", Role: domain.RoleAdmin})
	if err != nil {
		t.Fatalf("first user may claim ADMIN: %v", err)
	}

	if _, err := f.svc.Register(ctx, ports.RegisterInput{Email: "m@x.com", Password: "pw", Role: domain.RoleMaintainer}); !errors.Is(err, domain.ErrForbidden) {
		t.Fatalf("anonymous maintainer sign-up: expected ErrForbidden, got %v", err)
	}

	reporter := &domain.User{ID: 99, Role: domain.RoleReporter}
	if _, err := f.svc.Register(ctx, ports.RegisterInput{Actor: reporter, Email: "m@x.com", Password: "pw", Role: domain.RoleMaintainer}); !errors.Is(err, domain.ErrForbidden) {
		t.Fatalf("reporter granting maintainer: expected ErrForbidden, got %v", err)
	}

	m, err := f.svc.Register(ctx, ports.RegisterInput{Actor: admin, Email: "m@x.com", Password: "pw", Role: domain.RoleMaintainer})
	if err != nil {
		t.Fatalf("admin granting maintainer: %v", err)
	}
	if m.Role != domain.RoleMaintainer {
		t.Fatalf("unexpected role %s", m.Role)
	}
}

func TestAuthService_Register_Validation(t *testing.T) {
	f := newAuthFixture(t, time.Hour)
	ctx := context.Background()

	cases := []ports.RegisterInput{
		{Email: "", Password: "pw"},
		{Email: "a@x.com", Password: ""},
		{Email: "a@x.com", Password: "pw", Role: "OWNER"},
	}
	for _, in := range cases {
		if _, err := f.svc.Register(ctx, in); !errors.Is(err, domain.ErrInvalidInput) {
			t.Fatalf("%+v: expected ErrInvalidInput, got %v", in, err)
		}
	}
}

func TestAuthService_Register_Duplicate(t *testing.T) {
	f := newAuthFixture(t, time.Hour)
	ctx := context.Background()

	_, _ = f.svc.Register(ctx, ports.RegisterInput{Email: "bob@x.com", Password: "pw"})
	if _, err := f.svc.Register(ctx, ports.RegisterInput{Email: "bob@x.com", Password: "pw2"}); !errors.Is(err, domain.ErrUserExists) {
		t.Fatalf("expected ErrUserExists, got %v", err)
	}
}

func TestAuthService_Register_ConcurrentBootstrap(t *testing.T) {
	f := newAuthFixture(t, time.Hour)
	f.repo.createDelay = 5 * time.Millisecond

	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		admins   int
		rejected int
	)
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := f.svc.Register(context.Background(), ports.RegisterInput{
				Email:    fmt.Sprintf("root%d@x.com", i),
				Password: "pw",
				Role:     domain.RoleAdmin,
			})
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				admins++
			case errors.Is(err, domain.ErrForbidden):
				rejected++
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}(i)
	}
	wg.Wait()

	if admins != 1 || rejected != 9 {
		t.Fatalf("expected exactly one bootstrap admin, got %d accepted and %d rejected", admins, rejected)
	}
}

func TestAuthService_Register_FailedBootstrapReleasesSlot(t *testing.T) {
	f := newAuthFixture(t, time.Hour)
	ctx := context.Background()

	f.repo.createErr = errors.New("write timeout")
	if _, err := f.svc.Register(ctx, ports.RegisterInput{Email: "root@x.com", Password: "pw", Role: domain.RoleAdmin}); !errors.Is(err, domain.ErrUnavailable) {
		t.Fatalf("expected ErrUnavailable from failing store, got %v", err)
	}

	f.repo.createErr = nil
	if _, err := f.svc.Register(ctx, ports.RegisterInput{Email: "root@x.com", Password: "pw", Role: domain.RoleAdmin}); err != nil {
		t.Fatalf("bootstrap should still be available after a failed create: %v", err)
	}
}

func TestNewAuthService_RejectsSubSecondTTL(t *testing.T) {
	codec, err := auth.NewTokenCodec([]byte("test-secret"), "HS256")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := NewAuthService(newStubUserRepo(), auth.NewBcryptHasher(bcrypt.MinCost), codec, 500*time.Millisecond); err == nil {
		t.Fatal("expected error for a token lifetime below one second")
	}
	if _, err := NewAuthService(newStubUserRepo(), auth.NewBcryptHasher(bcrypt.MinCost), codec, time.Second); err != nil {
		t.Fatalf("one second lifetime should be accepted: %v", err)
	}
}
