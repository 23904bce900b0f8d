// Package pg implements the persistence contracts of the auth, building
// and unit packages on PostgreSQL via database/sql and the pgx stdlib
// driver.
package pg

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"

	"edifica.org/internal/auth"
	"edifica.org/internal/building"
	"edifica.org/internal/unit"
)

type Store struct {
	db *sql.DB
}

var _ auth.Store = (*Store)(nil)

func Open(dsn string) (*Store, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, err
	}
	// Tuned pool defaults; adjust under load tests
	db.SetMaxOpenConns(50)
	db.SetMaxIdleConns(25)
	db.SetConnMaxLifetime(15 * time.Minute)
	db.SetConnMaxIdleTime(5 * time.Minute)
	return &Store{db: db}, nil
}

// NewWithDB wraps an existing handle (tests use this with sqlmock).
func NewWithDB(db *sql.DB) *Store { return &Store{db: db} }

func (s *Store) Close() error { return s.db.Close() }

func (s *Store) DB() *sql.DB { return s.db }

func (s *Store) Ping(ctx context.Context) error { return s.db.PingContext(ctx) }

func (s *Store) Identities() auth.IdentityStore        { return &identityStore{db: s.db} }
func (s *Store) ResetTokens() auth.ResetTokenStore     { return &resetTokenStore{db: s.db} }
func (s *Store) RefreshTokens() auth.RefreshTokenStore { return &refreshTokenStore{db: s.db} }
func (s *Store) Buildings() building.Store             { return &buildingStore{db: s.db} }
func (s *Store) Units() unit.Store                     { return &unitStore{db: s.db} }

// mapErr translates driver errors into the shared taxonomy: missing rows
// become notFound, everything else is a store outage.
func mapErr(err error, notFound error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return notFound
	}
	return fmt.Errorf("%w: %v", auth.ErrStoreUnavailable, err)
}

// isUniqueViolation reports whether err is a Postgres 23505.
func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
