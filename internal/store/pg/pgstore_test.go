package pg

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jackc/pgx/v5/pgconn"

	"edifica.org/internal/auth"
	"edifica.org/internal/building"
	"edifica.org/internal/unit"
)

func newMock(t *testing.T) (*Store, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return NewWithDB(db), mock
}

func identityRows() *sqlmock.Rows {
	return sqlmock.NewRows([]string{
		"id", "email", "name", "phone", "role", "building_id",
		"password_hash", "token_version", "active", "created_at", "updated_at",
	})
}

func TestIdentityFindByID(t *testing.T) {
	store, mock := newMock(t)
	now := time.Now().UTC()
	mock.ExpectQuery("select .* from identities where id=").
		WithArgs(int64(42)).
		WillReturnRows(identityRows().AddRow(
			int64(42), "ada@example.com", "Ada", "", "OWNER", nil,
			"$2a$10$hash", int64(3), true, now, now))

	identity, err := store.Identities().FindByID(context.Background(), 42)
	if err != nil {
		t.Fatalf("FindByID: %v", err)
	}
	if identity.Email != "ada@example.com" || identity.Role != auth.RoleOwner {
		t.Fatalf("unexpected identity: %+v", identity)
	}
	if identity.TokenVersion != 3 {
		t.Fatalf("token version = %d, want 3", identity.TokenVersion)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatal(err)
	}
}

func TestIdentityFindByIDNotFound(t *testing.T) {
	store, mock := newMock(t)
	mock.ExpectQuery("select .* from identities where id=").
		WithArgs(int64(99)).
		WillReturnError(sql.ErrNoRows)

	if _, err := store.Identities().FindByID(context.Background(), 99); !errors.Is(err, auth.ErrNotFound) {
		t.Fatalf("FindByID = %v, want ErrNotFound", err)
	}
}

func TestIdentityFindMapsDriverFailure(t *testing.T) {
	store, mock := newMock(t)
	mock.ExpectQuery("select .* from identities where email=").
		WithArgs("ada@example.com").
		WillReturnError(errors.New("connection refused"))

	_, err := store.Identities().FindActiveByEmail(context.Background(), "ada@example.com")
	if !errors.Is(err, auth.ErrStoreUnavailable) {
		t.Fatalf("FindActiveByEmail = %v, want ErrStoreUnavailable", err)
	}
	if errors.Is(err, auth.ErrNotFound) {
		t.Fatal("driver failure must not look like a missing row")
	}
}

func TestIdentityCreateUniqueViolation(t *testing.T) {
	store, mock := newMock(t)
	mock.ExpectQuery("insert into identities").
		WillReturnError(&pgconn.PgError{Code: "23505", ConstraintName: "identities_email_key"})

	err := store.Identities().Create(context.Background(), &auth.Identity{
		Email: "ada@example.com", Name: "Ada", Role: auth.RoleOwner, Active: true,
	})
	if !errors.Is(err, auth.ErrEmailTaken) {
		t.Fatalf("Create = %v, want ErrEmailTaken", err)
	}
}

func TestBumpTokenVersion(t *testing.T) {
	store, mock := newMock(t)
	mock.ExpectQuery("update identities set token_version").
		WithArgs(int64(42)).
		WillReturnRows(sqlmock.NewRows([]string{"token_version"}).AddRow(int64(4)))

	v, err := store.Identities().BumpTokenVersion(context.Background(), 42)
	if err != nil {
		t.Fatalf("BumpTokenVersion: %v", err)
	}
	if v != 4 {
		t.Fatalf("version = %d, want 4", v)
	}
}

func TestBuildingCreateNameConflict(t *testing.T) {
	store, mock := newMock(t)
	mock.ExpectQuery("insert into buildings").
		WillReturnError(&pgconn.PgError{Code: "23505", ConstraintName: "buildings_name_key"})

	err := store.Buildings().Create(context.Background(), &building.Building{Name: "Fir Court", Address: "1 Fir St"})
	if !errors.Is(err, building.ErrNameTaken) {
		t.Fatalf("Create = %v, want ErrNameTaken", err)
	}
}

func TestBuildingList(t *testing.T) {
	store, mock := newMock(t)
	now := time.Now().UTC()
	mock.ExpectQuery("select count\\(\\*\\) from buildings").
		WithArgs("fir", "").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(int64(1)))
	mock.ExpectQuery("select .* from buildings.*order by name asc").
		WithArgs("fir", "", 20, 0).
		WillReturnRows(sqlmock.NewRows([]string{
			"id", "name", "address", "description", "total_units", "admin_user_id", "created_at", "updated_at",
		}).AddRow(int64(1), "Fir Court", "1 Fir St", "", 12, nil, now, now))

	page, err := store.Buildings().List(context.Background(), building.ListFilter{
		Name: "fir", Sort: building.SortByName, Limit: 20,
	})
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if page.Total != 1 || len(page.Items) != 1 || page.Items[0].Name != "Fir Court" {
		t.Fatalf("unexpected page: %+v", page)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatal(err)
	}
}

func TestUnitNumberConflict(t *testing.T) {
	store, mock := newMock(t)
	mock.ExpectQuery("insert into units").
		WillReturnError(&pgconn.PgError{Code: "23505", ConstraintName: "units_building_id_number_key"})

	err := store.Units().Create(context.Background(), &unit.Unit{
		BuildingID: 1, Number: "4B", Type: unit.TypeApartment, Active: true,
	})
	if !errors.Is(err, unit.ErrNumberTaken) {
		t.Fatalf("Create = %v, want ErrNumberTaken", err)
	}
}

func TestUnitSummarize(t *testing.T) {
	store, mock := newMock(t)
	mock.ExpectQuery("select count\\(\\*\\),").
		WithArgs(int64(1)).
		WillReturnRows(sqlmock.NewRows([]string{"count", "occupied", "area"}).
			AddRow(int64(3), int64(1), 137.0))
	mock.ExpectQuery("select type, count\\(\\*\\) from units").
		WithArgs(int64(1)).
		WillReturnRows(sqlmock.NewRows([]string{"type", "count"}).
			AddRow("APARTMENT", int64(2)).
			AddRow("PARKING", int64(1)))

	sum, err := store.Units().Summarize(context.Background(), 1)
	if err != nil {
		t.Fatalf("Summarize: %v", err)
	}
	if sum.Total != 3 || sum.Occupied != 1 || sum.TotalArea != 137 {
		t.Fatalf("unexpected summary: %+v", sum)
	}
	if sum.ByType[unit.TypeApartment] != 2 {
		t.Fatalf("unexpected type counts: %+v", sum.ByType)
	}
}

func TestResetTokenLifecycle(t *testing.T) {
	store, mock := newMock(t)
	now := time.Now().UTC()
	expires := now.Add(30 * time.Minute)

	mock.ExpectQuery("insert into reset_tokens").
		WithArgs("01TOK", int64(42), "deadbeef", expires).
		WillReturnRows(sqlmock.NewRows([]string{"created_at"}).AddRow(now))
	mock.ExpectQuery("select .* from reset_tokens where id=").
		WithArgs("01TOK").
		WillReturnRows(sqlmock.NewRows([]string{
			"id", "identity_id", "secret_hash", "expires_at", "consumed_at", "created_at",
		}).AddRow("01TOK", int64(42), "deadbeef", expires, nil, now))
	mock.ExpectExec("update reset_tokens set consumed_at").
		WithArgs("01TOK").
		WillReturnResult(sqlmock.NewResult(0, 1))

	tok := &auth.ResetToken{ID: "01TOK", IdentityID: 42, SecretHash: "deadbeef", ExpiresAt: expires}
	if err := store.ResetTokens().Create(context.Background(), tok); err != nil {
		t.Fatalf("Create: %v", err)
	}
	found, err := store.ResetTokens().Find(context.Background(), "01TOK")
	if err != nil {
		t.Fatalf("Find: %v", err)
	}
	if found.IdentityID != 42 || found.ConsumedAt != nil {
		t.Fatalf("unexpected token: %+v", found)
	}
	if err := store.ResetTokens().MarkConsumed(context.Background(), "01TOK"); err != nil {
		t.Fatalf("MarkConsumed: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatal(err)
	}
}
