// Package admin implements the operational commands of the kiln-admin
// CLI: schema migrations and destructive database resets.
package admin

import (
	"database/sql"
	"fmt"
	"log/slog"

	_ "github.com/jackc/pgx/v5/stdlib" // Register pgx driver with database/sql
	"github.com/pressly/goose/v3"

	"github.com/emberlabs/kiln/api/config"
)

// PgConfig holds the PostgreSQL connection parameters for admin
// commands.
type PgConfig struct {
	Host     string
	Port     string
	Database string
	Username string
	Password string
	SSLMode  string
}

func (c PgConfig) connString() string {
	sslMode := c.SSLMode
	if sslMode == "" {
		sslMode = "disable"
	}
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%s/%s?sslmode=%s",
		c.Username, c.Password, c.Host, c.Port, c.Database, sslMode,
	)
}

func openPgDB(cfg PgConfig) (*sql.DB, error) {
	db, err := sql.Open("pgx", cfg.connString())
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	return db, nil
}

// withGoose opens the database and prepares goose against the embedded
// migrations before running fn.
func withGoose(cfg PgConfig, fn func(db *sql.DB) error) error {
	db, err := openPgDB(cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	goose.SetBaseFS(config.EmbedMigrations)
	if err := goose.SetDialect("postgres"); err != nil {
		return fmt.Errorf("failed to set goose dialect: %w", err)
	}
	return fn(db)
}

// PgMigrateUp runs all pending migrations.
func PgMigrateUp(log *slog.Logger, cfg PgConfig) error {
	return withGoose(cfg, func(db *sql.DB) error {
		log.Info("running PostgreSQL migrations (up)")
		if err := goose.Up(db, "migrations"); err != nil {
			return fmt.Errorf("failed to run migrations: %w", err)
		}
		log.Info("PostgreSQL migrations completed")
		return nil
	})
}

// PgMigrateDown rolls back the last migration.
func PgMigrateDown(log *slog.Logger, cfg PgConfig) error {
	return withGoose(cfg, func(db *sql.DB) error {
		log.Info("rolling back PostgreSQL migration (down)")
		if err := goose.Down(db, "migrations"); err != nil {
			return fmt.Errorf("failed to rollback migration: %w", err)
		}
		log.Info("PostgreSQL migration rollback completed")
		return nil
	})
}

// PgMigrateStatus prints the status of all migrations.
func PgMigrateStatus(log *slog.Logger, cfg PgConfig) error {
	return withGoose(cfg, func(db *sql.DB) error {
		log.Info("PostgreSQL migration status")
		if err := goose.Status(db, "migrations"); err != nil {
			return fmt.Errorf("failed to get migration status: %w", err)
		}
		return nil
	})
}
