package auth

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jackc/pgx/v5/pgconn"
)

func TestPGUserStoreCreate(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer db.Close()

	store := NewPGUserStore(db)

	mock.ExpectExec("insert into users").
		WithArgs(sqlmock.AnyArg(), "alice", "alice@example.org", "hash", false, false).
		WillReturnResult(sqlmock.NewResult(0, 1))

	u := &User{Username: "alice", Email: "alice@example.org", PasswordHash: "hash"}
	if err := store.Create(context.Background(), u); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if u.ID == "" {
		t.Fatal("expected generated id")
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestPGUserStoreCreateMapsUniqueViolation(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer db.Close()

	store := NewPGUserStore(db)

	mock.ExpectExec("insert into users").
		WillReturnError(&pgconn.PgError{Code: uniqueViolation})

	err = store.Create(context.Background(), &User{Username: "alice", PasswordHash: "hash"})
	if !errors.Is(err, ErrConflict) {
		t.Fatalf("expected ErrConflict, got %v", err)
	}
}

func TestPGUserStoreFindByUsername(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer db.Close()

	store := NewPGUserStore(db)
	created := time.Now().UTC()

	cols := []string{"id", "username", "email", "password_hash", "is_staff", "is_superuser", "created_at"}
	mock.ExpectQuery("select id, username, email, password_hash, is_staff, is_superuser, created_at.*from users where username").
		WithArgs("alice").
		WillReturnRows(sqlmock.NewRows(cols).AddRow("u1", "alice", "alice@example.org", "hash", true, false, created))

	u, err := store.FindByUsername(context.Background(), "alice")
	if err != nil {
		t.Fatalf("FindByUsername: %v", err)
	}
	if u.ID != "u1" || !u.IsStaff || u.IsSuperuser {
		t.Fatalf("unexpected user: %+v", u)
	}
}

func TestPGUserStoreFindNotFound(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer db.Close()

	store := NewPGUserStore(db)

	mock.ExpectQuery("select id, username, email, password_hash, is_staff, is_superuser, created_at.*from users where id").
		WithArgs("missing").
		WillReturnError(sql.ErrNoRows)

	if _, err := store.Find(context.Background(), "missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}
