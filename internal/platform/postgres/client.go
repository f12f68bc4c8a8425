package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/lib/pq"
	"github.com/pressly/goose/v3"

	"flashsquad-backend/internal/common/config"
	"flashsquad-backend/internal/common/logger"
	"flashsquad-backend/internal/platform/postgres/migrations"
)

type Client struct {
	db *sql.DB
}

func NewClient(cfg *config.Config) (*Client, error) {
	db, err := sql.Open("postgres", cfg.GetDSN())
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(cfg.Postgres.MaxOpenConns)
	db.SetMaxIdleConns(cfg.Postgres.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.Postgres.ConnMaxLifetime)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	logger.Info().
		Str("host", cfg.Postgres.Host).
		Int("port", cfg.Postgres.Port).
		Str("database", cfg.Postgres.Database).
		Msg("PostgreSQL client initialized")

	return &Client{db: db}, nil
}

// NewFromDB wraps an already opened handle.
func NewFromDB(db *sql.DB) *Client {
	return &Client{db: db}
}

func (c *Client) GetDB() *sql.DB {
	return c.db
}

func (c *Client) Close() error {
	return c.db.Close()
}

func (c *Client) HealthCheck(ctx context.Context) error {
	return c.db.PingContext(ctx)
}

// Migrate applies the embedded goose migrations.
func (c *Client) Migrate(ctx context.Context) error {
	goose.SetBaseFS(migrations.Migrations)
	if err := goose.SetDialect("postgres"); err != nil {
		return fmt.Errorf("goose dialect: %w", err)
	}
	if err := goose.UpContext(ctx, c.db, "."); err != nil {
		return fmt.Errorf("apply migrations: %w", err)
	}
	logger.Info().Msg("Database migrations applied")
	return nil
}
