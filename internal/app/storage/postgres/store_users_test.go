package postgres

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
)

func TestUserStoreGetByIDScansRow(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock new: %v", err)
	}
	defer db.Close()

	store := NewUserStore(db)

	now := time.Now().UTC()
	rows := sqlmock.NewRows([]string{
		"id", "email", "display_name", "role", "auth_provider", "api_key_id",
		"client_id", "is_active", "created_at", "updated_at", "last_login_at",
	}).AddRow("user-1", "a@example.com", nil, "admin", "api_key", nil, nil, true, now, now, nil)
	mock.ExpectQuery("SELECT (.|\n)*FROM users WHERE id = \\$1").WithArgs("user-1").WillReturnRows(rows)

	user, found, err := store.GetByID(context.Background(), "user-1")
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if !found {
		t.Fatal("expected user to be found")
	}
	if user.Email != "a@example.com" || user.DisplayName != "" {
		t.Fatalf("unexpected user: %+v", user)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestUserStoreGetByIDNotFound(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock new: %v", err)
	}
	defer db.Close()

	store := NewUserStore(db)
	mock.ExpectQuery("SELECT (.|\n)*FROM users WHERE id = \\$1").WithArgs("missing").WillReturnError(sql.ErrNoRows)

	_, found, err := store.GetByID(context.Background(), "missing")
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if found {
		t.Fatal("expected found to be false")
	}
}
