package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"grokchat/data"
	"grokchat/logger"

	"go.uber.org/zap"
)

// SessionLifecycle creates, refreshes and clears session state. It never
// times sessions out itself; the repository evicts idle ones.
type SessionLifecycle struct {
	Repository data.SessionRepository
	Now        func() time.Time
}

func (l *SessionLifecycle) now() time.Time {
	if l.Now != nil {
		return l.Now()
	}
	return time.Now()
}

// Start returns the state for id, creating empty state if there is none.
func (l *SessionLifecycle) Start(ctx context.Context, id string) (*data.SessionState, error) {
	state, err := l.Repository.Get(ctx, id)
	if errors.Is(err, data.ErrSessionNotFound) {
		now := l.now()
		state = &data.SessionState{Id: id, Created: now, LastActivity: now}
		logger.Log.Info("starting session", zap.String("session", id))
	} else if err != nil {
		return nil, err
	}

	return l.touch(ctx, state)
}

// EnsureActive loads the state for id and refreshes its idle clock. Absent
// state is reported as ErrSessionExpired.
func (l *SessionLifecycle) EnsureActive(ctx context.Context, id string) (*data.SessionState, error) {
	state, err := l.Repository.Get(ctx, id)
	if errors.Is(err, data.ErrSessionNotFound) {
		return nil, sessionExpired()
	}
	if err != nil {
		return nil, err
	}
	return l.touch(ctx, state)
}

// Clear drops all state for id. Clearing an unknown id is not an error.
func (l *SessionLifecycle) Clear(ctx context.Context, id string) error {
	if err := l.Repository.Delete(ctx, id); err != nil {
		return fmt.Errorf("clear session: %w", err)
	}
	logger.Log.Info("cleared session", zap.String("session", id))
	return nil
}

func (l *SessionLifecycle) touch(ctx context.Context, state *data.SessionState) (*data.SessionState, error) {
	state.LastActivity = l.now()
	if err := l.Repository.Save(ctx, state); err != nil {
		return nil, fmt.Errorf("refresh session: %w", err)
	}
	return state, nil
}
