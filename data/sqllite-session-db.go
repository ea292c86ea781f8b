package data

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"grokchat/logger"

	_ "github.com/mattn/go-sqlite3"
	"github.com/mitchellh/go-homedir"
	"go.uber.org/zap"
)

type SqliteSessionRepository struct {
	sqlSessionRepository
}

// DefaultSqlitePath resolves ~/.grokchat/<name>.db and makes sure the
// directory exists.
func DefaultSqlitePath(name string) (string, error) {
	homeDir, err := homedir.Dir()
	if err != nil {
		return "", fmt.Errorf("did not find home dir for db creation: %w", err)
	}

	dir := filepath.Join(homeDir, ".grokchat")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create %s: %w", dir, err)
	}
	return filepath.Join(dir, name+".db"), nil
}

func (r *SqliteSessionRepository) Init(ctx context.Context, path string, ttl time.Duration) error {
	logger.Log.Info("setting up sqlite session store", zap.String("path", path))

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return fmt.Errorf("open sqlite %s: %w", path, err)
	}
	// sqlite only allows a single writer.
	db.SetMaxOpenConns(1)

	r.db = db
	r.TTL = ttl
	r.queries = sessionQueries{
		create: `
			CREATE TABLE IF NOT EXISTS session (
				id TEXT PRIMARY KEY,
				created INTEGER NOT NULL,
				last_activity INTEGER NOT NULL,
				state TEXT NOT NULL
			)`,
		get: "SELECT state, last_activity FROM session WHERE id = ?",
		upsert: `INSERT INTO session (id, created, last_activity, state) VALUES (?, ?, ?, ?)
			ON CONFLICT(id) DO UPDATE SET last_activity = excluded.last_activity, state = excluded.state`,
		delete: "DELETE FROM session WHERE id = ?",
		sweep:  "DELETE FROM session WHERE last_activity < ?",
	}

	if err := r.setup(ctx); err != nil {
		db.Close()
		return err
	}
	return nil
}
