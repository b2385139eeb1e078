package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	_ "github.com/glebarez/go-sqlite"

	"github.com/ghuser/secondchance/pkg/logger"
)

// sqlitePragmas are applied to every new SQLite database.
var sqlitePragmas = []string{
	"PRAGMA busy_timeout = 5000",
	"PRAGMA synchronous = NORMAL",
	"PRAGMA journal_mode = WAL",
}

// NewSQLite opens the SQLite file at path, creating its directory if needed.
// Use ":memory:" for a private in-memory database. The pool holds a single
// connection: SQLite serializes writers anyway, and an in-memory database is
// per connection.
func NewSQLite(ctx context.Context, path string, log logger.Logger) (*Database, error) {
	if path == "" {
		return nil, errors.New("sqlite path is empty")
	}
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("create sqlite dir: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	db.SetMaxOpenConns(1)

	for _, pragma := range sqlitePragmas {
		if _, err := db.ExecContext(ctx, pragma); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("sqlite %q: %w", pragma, err)
		}
	}

	log.Info("sqlite opened", "path", path)
	return &Database{db: db, log: log}, nil
}
