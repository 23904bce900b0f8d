package auth

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const (
	issuer = "edifica"

	// DefaultTokenTTL is the session token lifetime when none is configured.
	DefaultTokenTTL = 24 * time.Hour

	minSecretLen = 32
)

// Claims is the session token payload: the registered subject/issued-at/
// expiry set plus the identity's token version.
type Claims struct {
	TokenVersion int64 `json:"tv"`
	jwt.RegisteredClaims
}

// IdentityID parses the token subject as an identity id.
func (c *Claims) IdentityID() (int64, error) {
	id, err := strconv.ParseInt(c.Subject, 10, 64)
	if err != nil || id <= 0 {
		return 0, ErrTokenMalformed
	}
	return id, nil
}

// Codec encodes and decodes HS256-signed session tokens. Both operations
// are pure and safe for any number of concurrent callers.
type Codec struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

// NewCodec builds a Codec around the process-wide signing secret. The
// secret is required configuration with no default; short secrets are
// rejected outright.
func NewCodec(secret []byte, ttl time.Duration, now func() time.Time) (*Codec, error) {
	if len(secret) < minSecretLen {
		return nil, fmt.Errorf("auth: token secret must be at least %d bytes", minSecretLen)
	}
	if ttl <= 0 {
		ttl = DefaultTokenTTL
	}
	if now == nil {
		now = time.Now
	}
	return &Codec{secret: secret, ttl: ttl, now: now}, nil
}

// TTL returns the configured token lifetime.
func (c *Codec) TTL() time.Duration { return c.ttl }

// Encode signs a session token for the identity. Expiry is issued-at plus
// the configured TTL at whole-second resolution.
func (c *Codec) Encode(identityID, tokenVersion int64) (string, time.Time, error) {
	if identityID <= 0 {
		return "", time.Time{}, fmt.Errorf("%w: identity id is required", ErrInvalidInput)
	}
	now := c.now().UTC().Truncate(time.Second)
	expiresAt := now.Add(c.ttl)
	claims := Claims{
		TokenVersion: tokenVersion,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    issuer,
			Subject:   strconv.FormatInt(identityID, 10),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			ID:        uuid.NewString(),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(c.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign token: %w", err)
	}
	return signed, expiresAt, nil
}

// Decode verifies the token signature, then its claims. The signature check
// precedes every semantic check, so a tampered token is always reported as
// malformed regardless of its claim values.
func (c *Codec) Decode(token string) (*Claims, error) {
	if token == "" {
		return nil, ErrTokenMalformed
	}
	// Strict base64 decoding: without it, mutations of the unused trailing
	// bits in the final signature char alias the same signature bytes.
	parsed, err := jwt.ParseWithClaims(token, &Claims{}, func(t *jwt.Token) (any, error) {
		if t.Method != jwt.SigningMethodHS256 {
			return nil, ErrTokenUnsupported
		}
		return c.secret, nil
	}, jwt.WithTimeFunc(c.now), jwt.WithIssuer(issuer), jwt.WithStrictDecoding())
	if err != nil {
		switch {
		case errors.Is(err, ErrTokenUnsupported):
			return nil, ErrTokenUnsupported
		case errors.Is(err, jwt.ErrTokenSignatureInvalid), errors.Is(err, jwt.ErrTokenMalformed):
			return nil, ErrTokenMalformed
		case errors.Is(err, jwt.ErrTokenExpired):
			return nil, ErrTokenExpired
		default:
			return nil, ErrTokenMalformed
		}
	}
	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid {
		return nil, ErrTokenMalformed
	}
	if claims.Subject == "" || claims.IssuedAt == nil || claims.ExpiresAt == nil {
		return nil, ErrTokenMalformed
	}
	return claims, nil
}
