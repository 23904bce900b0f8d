package auth

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"edifica.org/internal/ids"
)

const (
	defaultResetTTL   = 30 * time.Minute
	defaultRefreshTTL = 14 * 24 * time.Hour

	minPasswordLen = 8
)

// Mailer delivers password reset tokens. Delivery mechanics are outside the
// auth core; cmd/api wires a log-only implementation.
type Mailer interface {
	SendPasswordReset(ctx context.Context, email, token string) error
}

// Service orchestrates credential verification, session issuance and
// principal resolution. It holds no per-request state and is safe for
// concurrent use.
type Service struct {
	store      Store
	codec      *Codec
	mailer     Mailer
	now        func() time.Time
	resetTTL   time.Duration
	refreshTTL time.Duration
}

// ServiceOption configures Service behavior.
type ServiceOption func(*Service) error

// WithClock overrides the time source (useful in tests).
func WithClock(fn func() time.Time) ServiceOption {
	return func(s *Service) error {
		if fn != nil {
			s.now = fn
		}
		return nil
	}
}

// WithResetTTL configures password reset token lifetime.
func WithResetTTL(ttl time.Duration) ServiceOption {
	return func(s *Service) error {
		if ttl > 0 {
			s.resetTTL = ttl
		}
		return nil
	}
}

// WithRefreshTTL configures refresh token lifetime.
func WithRefreshTTL(ttl time.Duration) ServiceOption {
	return func(s *Service) error {
		if ttl > 0 {
			s.refreshTTL = ttl
		}
		return nil
	}
}

// WithMailer sets the reset token delivery channel.
func WithMailer(m Mailer) ServiceOption {
	return func(s *Service) error {
		s.mailer = m
		return nil
	}
}

// NewService constructs a Service over the given store and token codec.
func NewService(store Store, codec *Codec, opts ...ServiceOption) (*Service, error) {
	if store == nil {
		return nil, errors.New("auth: store is required")
	}
	if codec == nil {
		return nil, errors.New("auth: token codec is required")
	}
	svc := &Service{
		store:      store,
		codec:      codec,
		now:        time.Now,
		resetTTL:   defaultResetTTL,
		refreshTTL: defaultRefreshTTL,
	}
	for _, opt := range opts {
		if err := opt(svc); err != nil {
			return nil, err
		}
	}
	return svc, nil
}

// Session is the login result handed to the boundary layer.
type Session struct {
	Token        string    `json:"token"`
	TokenType    string    `json:"type"`
	RefreshToken string    `json:"refresh_token"`
	ExpiresIn    int64     `json:"expires_in"`
	Identity     Principal `json:"identity"`
}

// Login verifies the credential pair and issues a session. Every failure is
// the uniform ErrInvalidCredentials except store outages.
func (s *Service) Login(ctx context.Context, email, password string) (Session, error) {
	email = NormalizeEmail(email)
	if email == "" || password == "" {
		return Session{}, ErrInvalidCredentials
	}
	identity, err := s.store.Identities().FindActiveByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return Session{}, ErrInvalidCredentials
		}
		return Session{}, storeErr(err)
	}
	if err := VerifyPassword(identity.PasswordHash, password); err != nil {
		return Session{}, ErrInvalidCredentials
	}
	return s.mintSession(ctx, identity)
}

func (s *Service) mintSession(ctx context.Context, identity *Identity) (Session, error) {
	token, _, err := s.codec.Encode(identity.ID, identity.TokenVersion)
	if err != nil {
		return Session{}, err
	}
	refresh, rec, err := s.newOpaqueToken(s.refreshTTL)
	if err != nil {
		return Session{}, err
	}
	if err := s.store.RefreshTokens().Create(ctx, &RefreshToken{
		ID:         rec.id,
		IdentityID: identity.ID,
		SecretHash: rec.secretHash,
		ExpiresAt:  rec.expiresAt,
	}); err != nil {
		return Session{}, storeErr(err)
	}
	return Session{
		Token:        token,
		TokenType:    "Bearer",
		RefreshToken: refresh,
		ExpiresIn:    int64(s.codec.TTL() / time.Second),
		Identity:     identity.Principal(),
	}, nil
}

// SignupParams carries the fields of a registration request.
type SignupParams struct {
	Email      string
	Password   string
	Name       string
	Phone      string
	Role       Role
	BuildingID *int64
}

// Signup registers a new active identity. Email uniqueness spans active and
// deactivated identities, so a deactivated account's email stays reserved.
func (s *Service) Signup(ctx context.Context, p SignupParams) (*Identity, error) {
	email := NormalizeEmail(p.Email)
	if email == "" || !strings.Contains(email, "@") {
		return nil, fmt.Errorf("%w: valid email is required", ErrInvalidInput)
	}
	if len(p.Password) < minPasswordLen {
		return nil, fmt.Errorf("%w: password must be at least %d characters", ErrInvalidInput, minPasswordLen)
	}
	name := strings.TrimSpace(p.Name)
	if name == "" {
		return nil, fmt.Errorf("%w: name is required", ErrInvalidInput)
	}
	if !p.Role.Valid() {
		return nil, fmt.Errorf("%w: unknown role %q", ErrInvalidInput, p.Role)
	}
	exists, err := s.store.Identities().ExistsByEmail(ctx, email)
	if err != nil {
		return nil, storeErr(err)
	}
	if exists {
		return nil, ErrEmailTaken
	}
	hash, err := HashPassword(p.Password)
	if err != nil {
		return nil, err
	}
	identity := &Identity{
		Email:        email,
		Name:         name,
		Phone:        strings.TrimSpace(p.Phone),
		Role:         p.Role,
		BuildingID:   p.BuildingID,
		PasswordHash: hash,
		Active:       true,
	}
	if err := s.store.Identities().Create(ctx, identity); err != nil {
		if errors.Is(err, ErrEmailTaken) {
			return nil, ErrEmailTaken
		}
		return nil, storeErr(err)
	}
	return identity, nil
}

// ForgotPassword issues a one-time reset token for the given email. An
// unknown email succeeds silently so the endpoint cannot be used to probe
// which addresses are registered.
func (s *Service) ForgotPassword(ctx context.Context, email string) error {
	identity, err := s.store.Identities().FindActiveByEmail(ctx, NormalizeEmail(email))
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil
		}
		return storeErr(err)
	}
	token, rec, err := s.newOpaqueToken(s.resetTTL)
	if err != nil {
		return err
	}
	if err := s.store.ResetTokens().Create(ctx, &ResetToken{
		ID:         rec.id,
		IdentityID: identity.ID,
		SecretHash: rec.secretHash,
		ExpiresAt:  rec.expiresAt,
	}); err != nil {
		return storeErr(err)
	}
	if s.mailer != nil {
		return s.mailer.SendPasswordReset(ctx, identity.Email, token)
	}
	return nil
}

// ResetPassword consumes a reset token and installs a new password. The
// identity's token version is bumped so every outstanding session token is
// invalidated at once.
func (s *Service) ResetPassword(ctx context.Context, token, newPassword string) error {
	if len(newPassword) < minPasswordLen {
		return fmt.Errorf("%w: password must be at least %d characters", ErrInvalidInput, minPasswordLen)
	}
	id, secret, err := splitOpaqueToken(token)
	if err != nil {
		return ErrTokenMalformed
	}
	rec, err := s.store.ResetTokens().Find(ctx, id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return ErrTokenMalformed
		}
		return storeErr(err)
	}
	if rec.ConsumedAt != nil || s.now().After(rec.ExpiresAt) {
		return ErrTokenExpired
	}
	if !secureCompareHash(rec.SecretHash, secret) {
		return ErrTokenMalformed
	}
	hash, err := HashPassword(newPassword)
	if err != nil {
		return err
	}
	if err := s.store.ResetTokens().MarkConsumed(ctx, rec.ID); err != nil {
		return storeErr(err)
	}
	if err := s.store.Identities().UpdatePassword(ctx, rec.IdentityID, hash); err != nil {
		return storeErr(err)
	}
	if _, err := s.store.Identities().BumpTokenVersion(ctx, rec.IdentityID); err != nil {
		return storeErr(err)
	}
	return nil
}

// Refresh rotates the refresh token: the presented record is revoked and a
// fresh session pair is minted for the identity.
func (s *Service) Refresh(ctx context.Context, refreshToken string) (Session, error) {
	id, secret, err := splitOpaqueToken(refreshToken)
	if err != nil {
		return Session{}, ErrTokenMalformed
	}
	store := s.store.RefreshTokens()
	rec, err := store.Find(ctx, id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return Session{}, ErrTokenMalformed
		}
		return Session{}, storeErr(err)
	}
	if rec.Revoked || s.now().After(rec.ExpiresAt) {
		return Session{}, ErrTokenExpired
	}
	if !secureCompareHash(rec.SecretHash, secret) {
		// A mismatched secret against a live record suggests token theft;
		// revoke the record outright.
		_ = store.MarkRevoked(ctx, rec.ID)
		return Session{}, ErrTokenMalformed
	}
	identity, err := s.store.Identities().FindByID(ctx, rec.IdentityID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return Session{}, ErrPrincipalNotFound
		}
		return Session{}, storeErr(err)
	}
	if !identity.Active {
		return Session{}, ErrPrincipalNotFound
	}
	if err := store.MarkRevoked(ctx, rec.ID); err != nil {
		return Session{}, storeErr(err)
	}
	return s.mintSession(ctx, identity)
}

// Logout invalidates every outstanding session and refresh token of the
// principal by bumping the identity's token version.
func (s *Service) Logout(ctx context.Context, principal Principal) error {
	if _, err := s.store.Identities().BumpTokenVersion(ctx, principal.ID); err != nil {
		return storeErr(err)
	}
	if err := s.store.RefreshTokens().MarkRevokedByIdentity(ctx, principal.ID); err != nil {
		return storeErr(err)
	}
	return nil
}

type opaqueRecord struct {
	id         string
	secretHash string
	expiresAt  time.Time
}

// newOpaqueToken mints an "id.secret" token whose secret half is stored
// only as a sha256 hash.
func (s *Service) newOpaqueToken(ttl time.Duration) (string, opaqueRecord, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", opaqueRecord{}, err
	}
	secret := base64.RawURLEncoding.EncodeToString(buf)
	sum := sha256.Sum256([]byte(secret))
	rec := opaqueRecord{
		id:         ids.New(),
		secretHash: hex.EncodeToString(sum[:]),
		expiresAt:  s.now().UTC().Add(ttl),
	}
	return rec.id + "." + secret, rec, nil
}

func splitOpaqueToken(raw string) (id, secret string, err error) {
	id, secret, ok := strings.Cut(strings.TrimSpace(raw), ".")
	if !ok || id == "" || secret == "" {
		return "", "", errors.New("invalid token format")
	}
	return id, secret, nil
}

func secureCompareHash(expectedHash, secret string) bool {
	sum := sha256.Sum256([]byte(secret))
	actual := hex.EncodeToString(sum[:])
	if len(expectedHash) != len(actual) {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(expectedHash), []byte(actual)) == 1
}

func storeErr(err error) error {
	if err == nil || errors.Is(err, ErrStoreUnavailable) {
		return err
	}
	return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
}
