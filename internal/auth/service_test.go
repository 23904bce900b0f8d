package auth

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

// memStore is an in-memory Store for service tests.
type memStore struct {
	mu         sync.Mutex
	nextID     int64
	identities map[int64]*Identity
	resets     map[string]*ResetToken
	refreshes  map[string]*RefreshToken
}

func newMemStore() *memStore {
	return &memStore{
		nextID:     1,
		identities: make(map[int64]*Identity),
		resets:     make(map[string]*ResetToken),
		refreshes:  make(map[string]*RefreshToken),
	}
}

func (m *memStore) Identities() IdentityStore       { return (*memIdentities)(m) }
func (m *memStore) ResetTokens() ResetTokenStore    { return (*memResets)(m) }
func (m *memStore) RefreshTokens() RefreshTokenStore { return (*memRefreshes)(m) }

type memIdentities memStore

func (m *memIdentities) FindByID(_ context.Context, id int64) (*Identity, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if identity, ok := m.identities[id]; ok {
		cp := *identity
		return &cp, nil
	}
	return nil, ErrNotFound
}

func (m *memIdentities) FindActiveByEmail(_ context.Context, email string) (*Identity, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, identity := range m.identities {
		if identity.Email == email && identity.Active {
			cp := *identity
			return &cp, nil
		}
	}
	return nil, ErrNotFound
}

func (m *memIdentities) ExistsByEmail(_ context.Context, email string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, identity := range m.identities {
		if identity.Email == email {
			return true, nil
		}
	}
	return false, nil
}

func (m *memIdentities) Create(_ context.Context, identity *Identity) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.identities {
		if existing.Email == identity.Email {
			return ErrEmailTaken
		}
	}
	identity.ID = m.nextID
	m.nextID++
	cp := *identity
	m.identities[identity.ID] = &cp
	return nil
}

func (m *memIdentities) UpdatePassword(_ context.Context, id int64, hash string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	identity, ok := m.identities[id]
	if !ok {
		return ErrNotFound
	}
	identity.PasswordHash = hash
	return nil
}

func (m *memIdentities) BumpTokenVersion(_ context.Context, id int64) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	identity, ok := m.identities[id]
	if !ok {
		return 0, ErrNotFound
	}
	identity.TokenVersion++
	return identity.TokenVersion, nil
}

type memResets memStore

func (m *memResets) Create(_ context.Context, tok *ResetToken) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *tok
	m.resets[tok.ID] = &cp
	return nil
}

func (m *memResets) Find(_ context.Context, id string) (*ResetToken, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if tok, ok := m.resets[id]; ok {
		cp := *tok
		return &cp, nil
	}
	return nil, ErrNotFound
}

func (m *memResets) MarkConsumed(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	tok, ok := m.resets[id]
	if !ok {
		return ErrNotFound
	}
	now := time.Now().UTC()
	tok.ConsumedAt = &now
	return nil
}

type memRefreshes memStore

func (m *memRefreshes) Create(_ context.Context, tok *RefreshToken) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *tok
	m.refreshes[tok.ID] = &cp
	return nil
}

func (m *memRefreshes) Find(_ context.Context, id string) (*RefreshToken, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if tok, ok := m.refreshes[id]; ok {
		cp := *tok
		return &cp, nil
	}
	return nil, ErrNotFound
}

func (m *memRefreshes) MarkRevoked(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	tok, ok := m.refreshes[id]
	if !ok {
		return ErrNotFound
	}
	tok.Revoked = true
	return nil
}

func (m *memRefreshes) MarkRevokedByIdentity(_ context.Context, identityID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, tok := range m.refreshes {
		if tok.IdentityID == identityID {
			tok.Revoked = true
		}
	}
	return nil
}

type capturingMailer struct {
	email string
	token string
}

func (c *capturingMailer) SendPasswordReset(_ context.Context, email, token string) error {
	c.email = email
	c.token = token
	return nil
}

func newTestService(t *testing.T, store Store, opts ...ServiceOption) *Service {
	t.Helper()
	codec, err := NewCodec(testSecret, time.Hour, nil)
	if err != nil {
		t.Fatalf("NewCodec: %v", err)
	}
	svc, err := NewService(store, codec, opts...)
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}
	return svc
}

func seedIdentity(t *testing.T, store *memStore, email, password string, role Role, active bool) *Identity {
	t.Helper()
	hash, err := HashPassword(password)
	if err != nil {
		t.Fatalf("HashPassword: %v", err)
	}
	identity := &Identity{
		Email:        email,
		Name:         "Test User",
		Role:         role,
		PasswordHash: hash,
		Active:       active,
	}
	if err := store.Identities().Create(context.Background(), identity); err != nil {
		t.Fatalf("seed identity: %v", err)
	}
	if !active {
		store.mu.Lock()
		store.identities[identity.ID].Active = false
		store.mu.Unlock()
	}
	return identity
}

func TestLoginIssuesSession(t *testing.T) {
	store := newMemStore()
	seedIdentity(t, store, "ada@example.com", "correct horse", RoleOwner, true)
	svc := newTestService(t, store)

	sess, err := svc.Login(context.Background(), "  Ada@Example.COM ", "correct horse")
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	if sess.TokenType != "Bearer" {
		t.Fatalf("token type = %q, want Bearer", sess.TokenType)
	}
	if sess.ExpiresIn != 3600 {
		t.Fatalf("expires_in = %d, want 3600", sess.ExpiresIn)
	}
	if sess.Identity.Email != "ada@example.com" || sess.Identity.Role != RoleOwner {
		t.Fatalf("unexpected session identity: %+v", sess.Identity)
	}
	if sess.RefreshToken == "" {
		t.Fatal("expected a refresh token")
	}

	p, err := svc.ResolveToken(context.Background(), sess.Token)
	if err != nil {
		t.Fatalf("ResolveToken: %v", err)
	}
	if p.ID != sess.Identity.ID {
		t.Fatalf("resolved principal id = %d, want %d", p.ID, sess.Identity.ID)
	}
}

func TestLoginFailuresAreUniform(t *testing.T) {
	store := newMemStore()
	seedIdentity(t, store, "ada@example.com", "correct horse", RoleOwner, true)
	seedIdentity(t, store, "gone@example.com", "correct horse", RoleOwner, false)
	svc := newTestService(t, store)

	cases := []struct {
		name     string
		email    string
		password string
	}{
		{"unknown email", "nobody@example.com", "correct horse"},
		{"wrong password", "ada@example.com", "battery staple"},
		{"deactivated identity", "gone@example.com", "correct horse"},
		{"empty password", "ada@example.com", ""},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := svc.Login(context.Background(), tc.email, tc.password); !errors.Is(err, ErrInvalidCredentials) {
				t.Fatalf("Login = %v, want ErrInvalidCredentials", err)
			}
		})
	}
}

func TestSignup(t *testing.T) {
	store := newMemStore()
	svc := newTestService(t, store)

	identity, err := svc.Signup(context.Background(), SignupParams{
		Email:    "New@Example.com",
		Password: "long enough",
		Name:     "New User",
		Role:     RoleTenant,
	})
	if err != nil {
		t.Fatalf("Signup: %v", err)
	}
	if identity.Email != "new@example.com" {
		t.Fatalf("email not normalized: %q", identity.Email)
	}
	if !identity.Active {
		t.Fatal("new identity should be active")
	}
	if identity.PasswordHash == "long enough" {
		t.Fatal("password stored in clear")
	}

	if _, err := svc.Signup(context.Background(), SignupParams{
		Email:    "new@example.com",
		Password: "long enough",
		Name:     "Duplicate",
		Role:     RoleOwner,
	}); !errors.Is(err, ErrEmailTaken) {
		t.Fatalf("duplicate Signup = %v, want ErrEmailTaken", err)
	}
}

func TestSignupEmailReservedByDeactivatedIdentity(t *testing.T) {
	store := newMemStore()
	seedIdentity(t, store, "gone@example.com", "correct horse", RoleOwner, false)
	svc := newTestService(t, store)

	if _, err := svc.Signup(context.Background(), SignupParams{
		Email:    "gone@example.com",
		Password: "long enough",
		Name:     "Reclaimer",
		Role:     RoleTenant,
	}); !errors.Is(err, ErrEmailTaken) {
		t.Fatalf("Signup = %v, want ErrEmailTaken", err)
	}
}

func TestSignupValidation(t *testing.T) {
	svc := newTestService(t, newMemStore())
	cases := []struct {
		name   string
		params SignupParams
	}{
		{"missing email", SignupParams{Password: "long enough", Name: "X", Role: RoleOwner}},
		{"short password", SignupParams{Email: "x@example.com", Password: "short", Name: "X", Role: RoleOwner}},
		{"missing name", SignupParams{Email: "x@example.com", Password: "long enough", Role: RoleOwner}},
		{"bad role", SignupParams{Email: "x@example.com", Password: "long enough", Name: "X", Role: Role("SUPERUSER")}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := svc.Signup(context.Background(), tc.params); !errors.Is(err, ErrInvalidInput) {
				t.Fatalf("Signup = %v, want ErrInvalidInput", err)
			}
		})
	}
}

func TestPasswordResetFlow(t *testing.T) {
	store := newMemStore()
	identity := seedIdentity(t, store, "ada@example.com", "old password", RoleOwner, true)
	mailer := &capturingMailer{}
	svc := newTestService(t, store, WithMailer(mailer))

	sess, err := svc.Login(context.Background(), "ada@example.com", "old password")
	if err != nil {
		t.Fatalf("Login: %v", err)
	}

	if err := svc.ForgotPassword(context.Background(), "ada@example.com"); err != nil {
		t.Fatalf("ForgotPassword: %v", err)
	}
	if mailer.token == "" || mailer.email != "ada@example.com" {
		t.Fatalf("mailer not invoked: %+v", mailer)
	}

	if err := svc.ResetPassword(context.Background(), mailer.token, "new password!"); err != nil {
		t.Fatalf("ResetPassword: %v", err)
	}

	// Old password no longer works, new one does.
	if _, err := svc.Login(context.Background(), "ada@example.com", "old password"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("old password Login = %v, want ErrInvalidCredentials", err)
	}
	if _, err := svc.Login(context.Background(), "ada@example.com", "new password!"); err != nil {
		t.Fatalf("new password Login: %v", err)
	}

	// The pre-reset session token was revoked by the version bump.
	if _, err := svc.ResolveToken(context.Background(), sess.Token); !errors.Is(err, ErrPrincipalNotFound) {
		t.Fatalf("pre-reset ResolveToken = %v, want ErrPrincipalNotFound", err)
	}

	// The token is single use.
	if err := svc.ResetPassword(context.Background(), mailer.token, "another one!"); !errors.Is(err, ErrTokenExpired) {
		t.Fatalf("second ResetPassword = %v, want ErrTokenExpired", err)
	}
	_ = identity
}

func TestForgotPasswordSilentOnUnknownEmail(t *testing.T) {
	mailer := &capturingMailer{}
	svc := newTestService(t, newMemStore(), WithMailer(mailer))
	if err := svc.ForgotPassword(context.Background(), "nobody@example.com"); err != nil {
		t.Fatalf("ForgotPassword: %v", err)
	}
	if mailer.token != "" {
		t.Fatal("mailer invoked for unknown email")
	}
}

func TestResetPasswordRejectsBadTokens(t *testing.T) {
	store := newMemStore()
	seedIdentity(t, store, "ada@example.com", "old password", RoleOwner, true)
	mailer := &capturingMailer{}
	svc := newTestService(t, store, WithMailer(mailer))
	if err := svc.ForgotPassword(context.Background(), "ada@example.com"); err != nil {
		t.Fatalf("ForgotPassword: %v", err)
	}

	id, _, err := splitOpaqueToken(mailer.token)
	if err != nil {
		t.Fatalf("splitOpaqueToken: %v", err)
	}
	cases := []struct {
		name  string
		token string
		want  error
	}{
		{"no separator", "nodotshere", ErrTokenMalformed},
		{"unknown id", "01UNKNOWN.secret", ErrTokenMalformed},
		{"wrong secret", id + ".wrong-secret", ErrTokenMalformed},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if err := svc.ResetPassword(context.Background(), tc.token, "new password!"); !errors.Is(err, tc.want) {
				t.Fatalf("ResetPassword = %v, want %v", err, tc.want)
			}
		})
	}
}

func TestRefreshRotation(t *testing.T) {
	store := newMemStore()
	seedIdentity(t, store, "ada@example.com", "correct horse", RoleOwner, true)
	svc := newTestService(t, store)

	sess, err := svc.Login(context.Background(), "ada@example.com", "correct horse")
	if err != nil {
		t.Fatalf("Login: %v", err)
	}

	next, err := svc.Refresh(context.Background(), sess.RefreshToken)
	if err != nil {
		t.Fatalf("Refresh: %v", err)
	}
	if next.RefreshToken == sess.RefreshToken {
		t.Fatal("refresh token was not rotated")
	}
	if _, err := svc.ResolveToken(context.Background(), next.Token); err != nil {
		t.Fatalf("ResolveToken after refresh: %v", err)
	}

	// The consumed refresh token is dead.
	if _, err := svc.Refresh(context.Background(), sess.RefreshToken); !errors.Is(err, ErrTokenExpired) {
		t.Fatalf("replayed Refresh = %v, want ErrTokenExpired", err)
	}
}

func TestRefreshSecretMismatchRevokesRecord(t *testing.T) {
	store := newMemStore()
	seedIdentity(t, store, "ada@example.com", "correct horse", RoleOwner, true)
	svc := newTestService(t, store)

	sess, err := svc.Login(context.Background(), "ada@example.com", "correct horse")
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	id, _, err := splitOpaqueToken(sess.RefreshToken)
	if err != nil {
		t.Fatalf("splitOpaqueToken: %v", err)
	}

	if _, err := svc.Refresh(context.Background(), id+".forged-secret"); !errors.Is(err, ErrTokenMalformed) {
		t.Fatalf("forged Refresh = %v, want ErrTokenMalformed", err)
	}
	// The real token was burned by the forgery attempt.
	if _, err := svc.Refresh(context.Background(), sess.RefreshToken); !errors.Is(err, ErrTokenExpired) {
		t.Fatalf("Refresh after forgery = %v, want ErrTokenExpired", err)
	}
}

func TestLogoutRevokesEverything(t *testing.T) {
	store := newMemStore()
	seedIdentity(t, store, "ada@example.com", "correct horse", RoleOwner, true)
	svc := newTestService(t, store)

	sess, err := svc.Login(context.Background(), "ada@example.com", "correct horse")
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	if err := svc.Logout(context.Background(), sess.Identity); err != nil {
		t.Fatalf("Logout: %v", err)
	}

	if _, err := svc.ResolveToken(context.Background(), sess.Token); !errors.Is(err, ErrPrincipalNotFound) {
		t.Fatalf("ResolveToken after logout = %v, want ErrPrincipalNotFound", err)
	}
	if _, err := svc.Refresh(context.Background(), sess.RefreshToken); !errors.Is(err, ErrTokenExpired) {
		t.Fatalf("Refresh after logout = %v, want ErrTokenExpired", err)
	}
}

func TestResolveReference(t *testing.T) {
	store := newMemStore()
	active := seedIdentity(t, store, "ada@example.com", "correct horse", RoleOwner, true)
	gone := seedIdentity(t, store, "gone@example.com", "correct horse", RoleTenant, false)
	svc := newTestService(t, store)

	byID, err := svc.Resolve(context.Background(), "1")
	if err != nil {
		t.Fatalf("Resolve by id: %v", err)
	}
	if byID.ID != active.ID {
		t.Fatalf("resolved id = %d, want %d", byID.ID, active.ID)
	}

	byEmail, err := svc.Resolve(context.Background(), "Ada@Example.com")
	if err != nil {
		t.Fatalf("Resolve by email: %v", err)
	}
	if byEmail.ID != active.ID {
		t.Fatalf("resolved id = %d, want %d", byEmail.ID, active.ID)
	}

	// A numeric miss stays a miss even if some email happens to be numeric.
	if _, err := svc.Resolve(context.Background(), "999"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("Resolve unknown id = %v, want ErrNotFound", err)
	}
	// Deactivated identities do not resolve.
	if _, err := svc.Resolve(context.Background(), "2"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("Resolve deactivated = %v, want ErrNotFound", err)
	}
	_ = gone
}

func TestParseIdentityIDRejectsOverflow(t *testing.T) {
	cases := []string{
		"99999999999999999999",              // > max int64
		"18446744073709551617",              // wraps to 1 under naive accumulation
		"9223372036854775808",               // max int64 + 1
		"000000000000000000000000000000001", // long but in range
	}
	for _, ref := range cases[:3] {
		if id, ok := parseIdentityID(ref); ok {
			t.Errorf("parseIdentityID(%q) = %d, want rejection", ref, id)
		}
	}
	if id, ok := parseIdentityID(cases[3]); !ok || id != 1 {
		t.Errorf("parseIdentityID(%q) = %d, %v, want 1", cases[3], id, ok)
	}
	if id, ok := parseIdentityID("9223372036854775807"); !ok || id != 9223372036854775807 {
		t.Errorf("max int64 = %d, %v, want accepted", id, ok)
	}
}
