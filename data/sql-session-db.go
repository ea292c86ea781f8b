package data

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"grokchat/logger"

	"go.uber.org/zap"
)

type sessionQueries struct {
	create string
	get    string
	upsert string
	delete string
	sweep  string
}

// sqlSessionRepository holds the parts shared by the sqlite and postgres
// stores. Conversation and usage are stored together as one JSON document so
// they can never be updated independently.
type sqlSessionRepository struct {
	db      *sql.DB
	queries sessionQueries
	TTL     time.Duration
	Now     func() time.Time
}

func (r *sqlSessionRepository) setup(ctx context.Context) error {
	if r.Now == nil {
		r.Now = time.Now
	}
	if _, err := r.db.ExecContext(ctx, r.queries.create); err != nil {
		return fmt.Errorf("create session table: %w", err)
	}
	return nil
}

func (r *sqlSessionRepository) Get(ctx context.Context, id string) (*SessionState, error) {
	var raw string
	var lastActivity int64
	err := r.db.QueryRowContext(ctx, r.queries.get, id).Scan(&raw, &lastActivity)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrSessionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("select session %s: %w", id, err)
	}

	var state SessionState
	if err := json.Unmarshal([]byte(raw), &state); err != nil {
		return nil, fmt.Errorf("decode session %s: %w", id, err)
	}
	state.LastActivity = time.Unix(0, lastActivity)

	if state.expired(r.Now(), r.TTL) {
		logger.Log.Debug("evicting idle session", zap.String("session", id))
		if err := r.Delete(ctx, id); err != nil {
			return nil, err
		}
		return nil, ErrSessionNotFound
	}
	return &state, nil
}

func (r *sqlSessionRepository) Save(ctx context.Context, state *SessionState) error {
	raw, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("encode session %s: %w", state.Id, err)
	}

	if err := r.sweep(ctx); err != nil {
		return err
	}

	_, err = r.db.ExecContext(ctx, r.queries.upsert,
		state.Id, state.Created.UnixNano(), state.LastActivity.UnixNano(), string(raw))
	if err != nil {
		return fmt.Errorf("save session %s: %w", state.Id, err)
	}
	return nil
}

// sweep removes every row idle for longer than TTL.
func (r *sqlSessionRepository) sweep(ctx context.Context) error {
	if r.TTL <= 0 {
		return nil
	}
	cutoff := r.Now().Add(-r.TTL).UnixNano()
	result, err := r.db.ExecContext(ctx, r.queries.sweep, cutoff)
	if err != nil {
		return fmt.Errorf("sweep idle sessions: %w", err)
	}
	if n, err := result.RowsAffected(); err == nil && n > 0 {
		logger.Log.Debug("swept idle sessions", zap.Int64("count", n))
	}
	return nil
}

func (r *sqlSessionRepository) Delete(ctx context.Context, id string) error {
	if _, err := r.db.ExecContext(ctx, r.queries.delete, id); err != nil {
		return fmt.Errorf("delete session %s: %w", id, err)
	}
	return nil
}

func (r *sqlSessionRepository) Close() error {
	return r.db.Close()
}
