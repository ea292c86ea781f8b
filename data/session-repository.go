package data

import (
	"context"
	"errors"
	"time"
)

// ErrSessionNotFound is returned by Get for ids that were never saved and for
// entries evicted after the idle timeout.
var ErrSessionNotFound = errors.New("session not found")

const DefaultSessionTTL = 30 * time.Minute

type SessionRepository interface {
	Get(ctx context.Context, id string) (*SessionState, error)
	Save(ctx context.Context, state *SessionState) error
	Delete(ctx context.Context, id string) error
}
