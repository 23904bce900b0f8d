package pg

import (
	"context"
	"database/sql"

	"edifica.org/internal/auth"
)

type identityStore struct {
	db *sql.DB
}

const identityCols = `id, email, name, phone, role, building_id, password_hash, token_version, active, created_at, updated_at`

func scanIdentity(row *sql.Row) (*auth.Identity, error) {
	var i auth.Identity
	err := row.Scan(&i.ID, &i.Email, &i.Name, &i.Phone, &i.Role, &i.BuildingID,
		&i.PasswordHash, &i.TokenVersion, &i.Active, &i.CreatedAt, &i.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &i, nil
}

func (s *identityStore) FindByID(ctx context.Context, id int64) (*auth.Identity, error) {
	row := s.db.QueryRowContext(ctx,
		`select `+identityCols+` from identities where id=$1`, id)
	identity, err := scanIdentity(row)
	if err != nil {
		return nil, mapErr(err, auth.ErrNotFound)
	}
	return identity, nil
}

func (s *identityStore) FindActiveByEmail(ctx context.Context, email string) (*auth.Identity, error) {
	row := s.db.QueryRowContext(ctx,
		`select `+identityCols+` from identities where email=$1 and active`, email)
	identity, err := scanIdentity(row)
	if err != nil {
		return nil, mapErr(err, auth.ErrNotFound)
	}
	return identity, nil
}

func (s *identityStore) ExistsByEmail(ctx context.Context, email string) (bool, error) {
	var exists bool
	err := s.db.QueryRowContext(ctx,
		`select exists(select 1 from identities where email=$1)`, email).Scan(&exists)
	if err != nil {
		return false, mapErr(err, auth.ErrNotFound)
	}
	return exists, nil
}

func (s *identityStore) Create(ctx context.Context, identity *auth.Identity) error {
	err := s.db.QueryRowContext(ctx, `
		insert into identities(email, name, phone, role, building_id, password_hash, active)
		values ($1,$2,$3,$4,$5,$6,$7)
		returning id, token_version, created_at, updated_at
	`, identity.Email, identity.Name, identity.Phone, identity.Role, identity.BuildingID,
		identity.PasswordHash, identity.Active,
	).Scan(&identity.ID, &identity.TokenVersion, &identity.CreatedAt, &identity.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return auth.ErrEmailTaken
		}
		return mapErr(err, auth.ErrNotFound)
	}
	return nil
}

func (s *identityStore) UpdatePassword(ctx context.Context, id int64, hash string) error {
	res, err := s.db.ExecContext(ctx,
		`update identities set password_hash=$2, updated_at=now() where id=$1`, id, hash)
	if err != nil {
		return mapErr(err, auth.ErrNotFound)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return auth.ErrNotFound
	}
	return nil
}

func (s *identityStore) BumpTokenVersion(ctx context.Context, id int64) (int64, error) {
	var version int64
	err := s.db.QueryRowContext(ctx, `
		update identities set token_version = token_version + 1, updated_at=now()
		where id=$1 returning token_version
	`, id).Scan(&version)
	if err != nil {
		return 0, mapErr(err, auth.ErrNotFound)
	}
	return version, nil
}
