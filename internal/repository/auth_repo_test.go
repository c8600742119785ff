package repository_test

import (
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"

	"tovala_bridge/internal/repository"
)

func TestUserRepository_Create(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New(): %v", err)
	}
	defer func() { _ = db.Close() }()

	repo := repository.NewUserRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO users (username, password_hash) VALUES (?, ?)")).
		WithArgs("alice", "hash123").
		WillReturnResult(sqlmock.NewResult(5, 1))

	id, err := repo.Create("alice", "hash123")
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if id != 5 {
		t.Errorf("id = %d, want 5", id)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}

func TestUserRepository_GetByUsername(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New(): %v", err)
	}
	defer func() { _ = db.Close() }()

	repo := repository.NewUserRepository(db)

	rows := sqlmock.NewRows([]string{"id", "username", "password_hash"}).
		AddRow(3, "alice", "hash123")
	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, username, password_hash FROM users WHERE username = ?")).
		WithArgs("alice").WillReturnRows(rows)

	u, err := repo.GetByUsername("alice")
	if err != nil {
		t.Fatalf("GetByUsername: %v", err)
	}
	if u == nil || u.ID != 3 || u.PasswordHash != "hash123" {
		t.Fatalf("user = %+v", u)
	}

	// Unknown user: (nil, nil), not an error.
	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, username, password_hash FROM users WHERE username = ?")).
		WithArgs("bob").WillReturnRows(sqlmock.NewRows([]string{"id", "username", "password_hash"}))

	u, err = repo.GetByUsername("bob")
	if err != nil {
		t.Fatalf("GetByUsername(bob): %v", err)
	}
	if u != nil {
		t.Errorf("expected nil user for unknown username, got %+v", u)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}
