// Package memory persists the assistant's saved notes in PostgreSQL. The
// store is optional; when no database is configured the server runs without
// it and the save_memory tool stays unregistered.
package memory

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	_ "github.com/jackc/pgx/v5/stdlib" // register pgx driver for database/sql

	"github.com/tabpilot/tabpilot/pkg/models"
)

//go:embed migrations
var migrationsFS embed.FS

// Config holds database connection settings.
type Config struct {
	Host     string
	Port     int
	User     string
	Password string
	Database string
	SSLMode  string

	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	ConnMaxIdleTime time.Duration
}

// LoadConfigFromEnv reads database settings from DB_* variables. The second
// return value is false when DB_HOST is unset, meaning the store is
// disabled.
func LoadConfigFromEnv() (Config, bool, error) {
	host := os.Getenv("DB_HOST")
	if host == "" {
		return Config{}, false, nil
	}

	port, err := strconv.Atoi(getEnvOrDefault("DB_PORT", "5432"))
	if err != nil {
		return Config{}, false, fmt.Errorf("invalid DB_PORT: %w", err)
	}

	maxOpen, _ := strconv.Atoi(getEnvOrDefault("DB_MAX_OPEN_CONNS", "10"))
	maxIdle, _ := strconv.Atoi(getEnvOrDefault("DB_MAX_IDLE_CONNS", "5"))

	return Config{
		Host:            host,
		Port:            port,
		User:            getEnvOrDefault("DB_USER", "tabpilot"),
		Password:        os.Getenv("DB_PASSWORD"),
		Database:        getEnvOrDefault("DB_NAME", "tabpilot"),
		SSLMode:         getEnvOrDefault("DB_SSLMODE", "disable"),
		MaxOpenConns:    maxOpen,
		MaxIdleConns:    maxIdle,
		ConnMaxLifetime: 30 * time.Minute,
		ConnMaxIdleTime: 5 * time.Minute,
	}, true, nil
}

func getEnvOrDefault(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

// Store is the memories table access layer.
type Store struct {
	db *sql.DB
}

// NewStore opens the database, applies pending migrations, and returns the
// store.
func NewStore(ctx context.Context, cfg Config) (*Store, error) {
	dsn := fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		cfg.Host, cfg.Port, cfg.User, cfg.Password, cfg.Database, cfg.SSLMode,
	)

	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	db.SetConnMaxIdleTime(cfg.ConnMaxIdleTime)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	if err := runMigrations(db, cfg.Database); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return &Store{db: db}, nil
}

// NewStoreFromDB wraps an existing connection. The caller has already run
// migrations. Used by tests.
func NewStoreFromDB(db *sql.DB) *Store {
	return &Store{db: db}
}

// Migrate applies pending migrations against an existing connection.
func Migrate(db *sql.DB, database string) error {
	return runMigrations(db, database)
}

// runMigrations applies the embedded migration files with golang-migrate.
func runMigrations(db *sql.DB, database string) error {
	driver, err := postgres.WithInstance(db, &postgres.Config{})
	if err != nil {
		return fmt.Errorf("failed to create postgres driver: %w", err)
	}

	sourceDriver, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("failed to create migration source: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", sourceDriver, database, driver)
	if err != nil {
		return fmt.Errorf("failed to create migrate instance: %w", err)
	}

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("failed to apply migrations: %w", err)
	}

	// Close only the source driver. m.Close() would also close the database
	// driver, which closes the shared *sql.DB.
	if err := sourceDriver.Close(); err != nil {
		return fmt.Errorf("failed to close migration source: %w", err)
	}
	return nil
}

// Add inserts a memory and returns the stored row.
func (s *Store) Add(ctx context.Context, content string) (models.Memory, error) {
	var (
		id        int64
		createdAt time.Time
	)
	err := s.db.QueryRowContext(ctx,
		`INSERT INTO memories (content) VALUES ($1) RETURNING id, created_at`,
		content,
	).Scan(&id, &createdAt)
	if err != nil {
		return models.Memory{}, fmt.Errorf("inserting memory: %w", err)
	}
	return models.Memory{
		ID:        id,
		Content:   content,
		CreatedAt: createdAt.UTC().Format(time.RFC3339),
	}, nil
}

// Recent returns up to limit memories, newest first.
func (s *Store) Recent(ctx context.Context, limit int) ([]models.Memory, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, content, created_at FROM memories ORDER BY created_at DESC, id DESC LIMIT $1`,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("querying memories: %w", err)
	}
	defer rows.Close()

	var memories []models.Memory
	for rows.Next() {
		var (
			m         models.Memory
			createdAt time.Time
		)
		if err := rows.Scan(&m.ID, &m.Content, &createdAt); err != nil {
			return nil, fmt.Errorf("scanning memory: %w", err)
		}
		m.CreatedAt = createdAt.UTC().Format(time.RFC3339)
		memories = append(memories, m)
	}
	return memories, rows.Err()
}

// Delete removes a memory by id. Returns false when no row matched.
func (s *Store) Delete(ctx context.Context, id int64) (bool, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM memories WHERE id = $1`, id)
	if err != nil {
		return false, fmt.Errorf("deleting memory: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("deleting memory: %w", err)
	}
	return affected > 0, nil
}

// Ping checks database connectivity.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close releases the underlying connection pool.
func (s *Store) Close() error {
	return s.db.Close()
}
