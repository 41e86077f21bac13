package db

import (
	"context"
	"database/sql"
)

// Database is a SQL connection with an explicit lifecycle.
type Database interface {
	Connect() error
	Close() error
	Ping(ctx context.Context) error
	DB() *sql.DB
}
