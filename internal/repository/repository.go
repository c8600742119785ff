package repository

import (
	"context"
	"database/sql"
	"time"

	bridge "tovala_bridge"
	sqlitedb "tovala_bridge/internal/repository/db"
)

// InitDB opens the sqlite file and ensures the schema.
func InitDB(path string) (*sql.DB, error) {
	return sqlitedb.InitDB(path)
}

type Authorization interface {
	Create(username, hash string) (int, error)
	GetByUsername(username string) (*bridge.User, error)
}

type EventRepo interface {
	Append(ctx context.Context, e bridge.OvenEvent) error
	List(ctx context.Context, from, to time.Time, typ string) ([]bridge.OvenEvent, error)
}

type Repository struct {
	EventRepo EventRepo
	Auth      Authorization
}

func NewRepository(db *sql.DB) *Repository {
	return &Repository{
		EventRepo: NewEventSQLite(db),
		Auth:      NewUserRepository(db),
	}
}
