// Package migrator applies embedded goose migrations to PostgreSQL.
package migrator

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io/fs"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
)

// RunMigrations runs all pending goose migrations from files against dbURL.
func RunMigrations(ctx context.Context, dbURL string, files fs.FS) error {
	return withDB(dbURL, files, func(db *sql.DB) error {
		if err := goose.UpContext(ctx, db, "."); err != nil {
			return fmt.Errorf("failed to up migrations: %w", err)
		}
		return nil
	})
}

// Version returns the current schema version of dbURL.
func Version(ctx context.Context, dbURL string, files fs.FS) (int64, error) {
	var version int64
	err := withDB(dbURL, files, func(db *sql.DB) error {
		v, err := goose.GetDBVersionContext(ctx, db)
		if err != nil {
			return fmt.Errorf("failed to read migration version: %w", err)
		}
		version = v
		return nil
	})
	return version, err
}

func withDB(dbURL string, files fs.FS, fn func(*sql.DB) error) error {
	if dbURL == "" {
		return errors.New("migrator: database url is empty")
	}

	db, err := sql.Open("pgx", dbURL)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close() //nolint:errcheck

	goose.SetBaseFS(files)
	if err := goose.SetDialect("postgres"); err != nil {
		return fmt.Errorf("failed to set goose dialect: %w", err)
	}
	return fn(db)
}
