package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v9"
	"github.com/dfryer1193/imgcrud/shared/db/sqlite"
	"github.com/joho/godotenv"
)

const (
	StoreSQLite = "sqlite"
	StoreMongo  = "mongo"
)

type Config struct {
	// HTTP listen port.
	Port            int           `env:"PORT" envDefault:"5000"`
	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"5s"`
	// Largest accepted upload request body. Larger uploads are rejected.
	MaxUploadBytes int64 `env:"MAX_UPLOAD_BYTES" envDefault:"33554432"`

	Store  StoreConfig
	Cache  CacheConfig
	Log    LogConfig
	SQLite sqlite.SQLiteConfig
	Mongo  MongoConfig
}

type StoreConfig struct {
	// Driver selects the image store, "sqlite" or "mongo".
	Driver string `env:"STORE_DRIVER" envDefault:"sqlite"`
}

type CacheConfig struct {
	TTL time.Duration `env:"CACHE_TTL" envDefault:"5m"`
	// Bound on a single store read made on a cache miss.
	LoadTimeout time.Duration `env:"CACHE_LOAD_TIMEOUT" envDefault:"30s"`
}

type LogConfig struct {
	Level  string `env:"LOG_LEVEL" envDefault:"info"`
	Format string `env:"LOG_FORMAT" envDefault:"console"`
}

type MongoConfig struct {
	URI      string `env:"MONGO_URI" envDefault:"mongodb://127.0.0.1:27017"`
	Database string `env:"MONGO_DATABASE" envDefault:"imagecrudzod"`
}

// Load loads .env (if present) and parses environment variables into Config.
func Load() (Config, error) {
	// A missing .env file is not an error.
	_ = godotenv.Load()

	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) Validate() error {
	switch c.Store.Driver {
	case StoreSQLite, StoreMongo:
	default:
		return fmt.Errorf("unknown STORE_DRIVER %q", c.Store.Driver)
	}

	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("invalid PORT %d", c.Port)
	}
	if c.Cache.TTL <= 0 {
		return fmt.Errorf("CACHE_TTL must be positive, got %s", c.Cache.TTL)
	}
	if c.Cache.LoadTimeout <= 0 {
		return fmt.Errorf("CACHE_LOAD_TIMEOUT must be positive, got %s", c.Cache.LoadTimeout)
	}
	if c.MaxUploadBytes <= 0 {
		return fmt.Errorf("MAX_UPLOAD_BYTES must be positive, got %d", c.MaxUploadBytes)
	}
	return nil
}

func (c Config) Addr() string {
	return fmt.Sprintf(":%d", c.Port)
}
