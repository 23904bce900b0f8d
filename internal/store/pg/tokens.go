package pg

import (
	"context"
	"database/sql"

	"edifica.org/internal/auth"
)

type resetTokenStore struct {
	db *sql.DB
}

func (s *resetTokenStore) Create(ctx context.Context, tok *auth.ResetToken) error {
	err := s.db.QueryRowContext(ctx, `
		insert into reset_tokens(id, identity_id, secret_hash, expires_at)
		values ($1,$2,$3,$4)
		returning created_at
	`, tok.ID, tok.IdentityID, tok.SecretHash, tok.ExpiresAt).Scan(&tok.CreatedAt)
	if err != nil {
		return mapErr(err, auth.ErrNotFound)
	}
	return nil
}

func (s *resetTokenStore) Find(ctx context.Context, id string) (*auth.ResetToken, error) {
	var tok auth.ResetToken
	err := s.db.QueryRowContext(ctx, `
		select id, identity_id, secret_hash, expires_at, consumed_at, created_at
		from reset_tokens where id=$1
	`, id).Scan(&tok.ID, &tok.IdentityID, &tok.SecretHash, &tok.ExpiresAt, &tok.ConsumedAt, &tok.CreatedAt)
	if err != nil {
		return nil, mapErr(err, auth.ErrNotFound)
	}
	return &tok, nil
}

func (s *resetTokenStore) MarkConsumed(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx,
		`update reset_tokens set consumed_at=now() where id=$1 and consumed_at is null`, id)
	if err != nil {
		return mapErr(err, auth.ErrNotFound)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return auth.ErrNotFound
	}
	return nil
}

type refreshTokenStore struct {
	db *sql.DB
}

func (s *refreshTokenStore) Create(ctx context.Context, tok *auth.RefreshToken) error {
	err := s.db.QueryRowContext(ctx, `
		insert into refresh_tokens(id, identity_id, secret_hash, expires_at)
		values ($1,$2,$3,$4)
		returning created_at
	`, tok.ID, tok.IdentityID, tok.SecretHash, tok.ExpiresAt).Scan(&tok.CreatedAt)
	if err != nil {
		return mapErr(err, auth.ErrNotFound)
	}
	return nil
}

func (s *refreshTokenStore) Find(ctx context.Context, id string) (*auth.RefreshToken, error) {
	var tok auth.RefreshToken
	err := s.db.QueryRowContext(ctx, `
		select id, identity_id, secret_hash, expires_at, revoked, created_at
		from refresh_tokens where id=$1
	`, id).Scan(&tok.ID, &tok.IdentityID, &tok.SecretHash, &tok.ExpiresAt, &tok.Revoked, &tok.CreatedAt)
	if err != nil {
		return nil, mapErr(err, auth.ErrNotFound)
	}
	return &tok, nil
}

func (s *refreshTokenStore) MarkRevoked(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx,
		`update refresh_tokens set revoked=true where id=$1`, id)
	if err != nil {
		return mapErr(err, auth.ErrNotFound)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return auth.ErrNotFound
	}
	return nil
}

func (s *refreshTokenStore) MarkRevokedByIdentity(ctx context.Context, identityID int64) error {
	_, err := s.db.ExecContext(ctx,
		`update refresh_tokens set revoked=true where identity_id=$1 and not revoked`, identityID)
	return mapErr(err, auth.ErrNotFound)
}
