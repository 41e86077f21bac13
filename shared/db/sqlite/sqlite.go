package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/caarlos0/env/v9"
	"github.com/dfryer1193/imgcrud/shared/db"
	_ "modernc.org/sqlite"
)

var _ db.Database = (*SQLiteDB)(nil)

const defaultPath = "./imgcrud.db"

type SQLiteConfig struct {
	Path string `env:"SQLITE_DB_PATH" envDefault:"./imgcrud.db"`
}

// NewSQLiteConfig reads the database path from SQLITE_DB_PATH, falling back
// to ./imgcrud.db.
func NewSQLiteConfig() *SQLiteConfig {
	cfg := &SQLiteConfig{}
	if err := env.Parse(cfg); err != nil || cfg.Path == "" {
		cfg.Path = defaultPath
	}
	return cfg
}

// SQLiteDB implements db.Database for SQLite.
type SQLiteDB struct {
	dbPath string
	db     *sql.DB
}

func NewSQLiteDB(cfg *SQLiteConfig) *SQLiteDB {
	return &SQLiteDB{
		dbPath: cfg.Path,
	}
}

// Connect opens the database, applies pragmas and runs pending migrations.
func (s *SQLiteDB) Connect() error {
	if s.db != nil {
		return fmt.Errorf("database already connected")
	}

	db, err := sql.Open("sqlite", s.dbPath)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}

	// sql.Open is lazy; make sure the file can actually be opened.
	if err := db.Ping(); err != nil {
		db.Close()
		return fmt.Errorf("failed to ping database: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",   // readers don't block the writer
		"PRAGMA synchronous=NORMAL", // safe under WAL, fewer fsyncs
		"PRAGMA foreign_keys=ON",
		"PRAGMA busy_timeout=5000",  // wait up to 5s on a locked database
		"PRAGMA cache_size=-64000",  // 64MB page cache (negative means KiB)
	}

	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return fmt.Errorf("failed to set pragma %q: %w", pragma, err)
		}
	}

	if err := runMigrations(db); err != nil {
		db.Close()
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	s.db = db
	return nil
}

// Close closes the connection. Closing an unconnected database is a no-op.
func (s *SQLiteDB) Close() error {
	if s.db == nil {
		return nil
	}

	err := s.db.Close()
	s.db = nil
	return err
}

func (s *SQLiteDB) Ping(ctx context.Context) error {
	if s.db == nil {
		return fmt.Errorf("database not connected")
	}
	return s.db.PingContext(ctx)
}

// DB returns the underlying *sql.DB, or nil when not connected.
func (s *SQLiteDB) DB() *sql.DB {
	return s.db
}
