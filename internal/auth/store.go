package auth

import (
	"context"
	"time"
)

// IdentityStore describes the persistence operations the auth core requires
// from its identity collaborator. Implementations own their concurrency
// discipline; the core performs no retries and defines no timeout policy.
type IdentityStore interface {
	FindByID(ctx context.Context, id int64) (*Identity, error)
	FindActiveByEmail(ctx context.Context, email string) (*Identity, error)
	ExistsByEmail(ctx context.Context, email string) (bool, error)
	Create(ctx context.Context, identity *Identity) error
	UpdatePassword(ctx context.Context, id int64, passwordHash string) error
	// BumpTokenVersion increments the identity's token version and returns
	// the new value, invalidating every outstanding session token.
	BumpTokenVersion(ctx context.Context, id int64) (int64, error)
}

// ResetToken is a persisted one-time password reset grant. Only the hash of
// the secret half is stored.
type ResetToken struct {
	ID         string
	IdentityID int64
	SecretHash string
	ExpiresAt  time.Time
	ConsumedAt *time.Time
	CreatedAt  time.Time
}

// ResetTokenStore manages password reset tokens.
type ResetTokenStore interface {
	Create(ctx context.Context, tok *ResetToken) error
	Find(ctx context.Context, id string) (*ResetToken, error)
	MarkConsumed(ctx context.Context, id string) error
}

// RefreshToken is a persisted, rotating refresh credential.
type RefreshToken struct {
	ID         string
	IdentityID int64
	SecretHash string
	ExpiresAt  time.Time
	Revoked    bool
	CreatedAt  time.Time
}

// RefreshTokenStore manages refresh token lifecycle.
type RefreshTokenStore interface {
	Create(ctx context.Context, tok *RefreshToken) error
	Find(ctx context.Context, id string) (*RefreshToken, error)
	MarkRevoked(ctx context.Context, id string) error
	MarkRevokedByIdentity(ctx context.Context, identityID int64) error
}

// Store bundles the persistence contracts used by Service.
type Store interface {
	Identities() IdentityStore
	ResetTokens() ResetTokenStore
	RefreshTokens() RefreshTokenStore
}
