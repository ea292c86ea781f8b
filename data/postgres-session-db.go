package data

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"grokchat/logger"

	_ "github.com/lib/pq"
)

type PostgresSessionRepository struct {
	sqlSessionRepository
}

func (r *PostgresSessionRepository) Init(ctx context.Context, connectionString string, ttl time.Duration) error {
	logger.Log.Info("setting up postgres session store")

	db, err := sql.Open("postgres", connectionString)
	if err != nil {
		return fmt.Errorf("open postgres: %w", err)
	}

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return fmt.Errorf("ping postgres: %w", err)
	}

	r.db = db
	r.TTL = ttl
	r.queries = sessionQueries{
		create: `
			CREATE TABLE IF NOT EXISTS session (
				id TEXT PRIMARY KEY,
				created BIGINT NOT NULL,
				last_activity BIGINT NOT NULL,
				state TEXT NOT NULL
			)`,
		get: "SELECT state, last_activity FROM session WHERE id = $1",
		upsert: `INSERT INTO session (id, created, last_activity, state) VALUES ($1, $2, $3, $4)
			ON CONFLICT (id) DO UPDATE SET last_activity = EXCLUDED.last_activity, state = EXCLUDED.state`,
		delete: "DELETE FROM session WHERE id = $1",
		sweep:  "DELETE FROM session WHERE last_activity < $1",
	}

	if err := r.setup(ctx); err != nil {
		db.Close()
		return err
	}
	return nil
}
