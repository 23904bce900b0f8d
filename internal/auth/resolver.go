package auth

import (
	"context"
	"errors"
	"strconv"
)

// ResolveToken turns a bearer token into a live Principal. A token whose
// version lags the identity's current one has been revoked by a logout or
// password reset and is rejected.
func (s *Service) ResolveToken(ctx context.Context, token string) (Principal, error) {
	claims, err := s.codec.Decode(token)
	if err != nil {
		return Principal{}, err
	}
	identityID, err := claims.IdentityID()
	if err != nil {
		return Principal{}, ErrTokenMalformed
	}
	identity, err := s.store.Identities().FindByID(ctx, identityID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return Principal{}, ErrPrincipalNotFound
		}
		return Principal{}, storeErr(err)
	}
	if !identity.Active || identity.TokenVersion != claims.TokenVersion {
		return Principal{}, ErrPrincipalNotFound
	}
	return identity.Principal(), nil
}

// Resolve looks up an identity by reference: an all-digit reference is an
// identity id, anything else is treated as an email. A numeric reference
// that misses does not fall through to an email lookup.
func (s *Service) Resolve(ctx context.Context, ref string) (*Identity, error) {
	if id, ok := parseIdentityID(ref); ok {
		identity, err := s.store.Identities().FindByID(ctx, id)
		if err != nil {
			if errors.Is(err, ErrNotFound) {
				return nil, ErrNotFound
			}
			return nil, storeErr(err)
		}
		if !identity.Active {
			return nil, ErrNotFound
		}
		return identity, nil
	}
	identity, err := s.store.Identities().FindActiveByEmail(ctx, NormalizeEmail(ref))
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, storeErr(err)
	}
	return identity, nil
}

func parseIdentityID(ref string) (int64, bool) {
	if ref == "" {
		return 0, false
	}
	for _, r := range ref {
		if r < '0' || r > '9' {
			return 0, false
		}
	}
	// Out-of-range digit strings are not ids either.
	id, err := strconv.ParseInt(ref, 10, 64)
	if err != nil {
		return 0, false
	}
	return id, true
}
