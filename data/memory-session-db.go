package data

import (
	"context"
	"sync"
	"time"

	"grokchat/logger"

	"go.uber.org/zap"
)

// MemorySessionRepository keeps sessions in process memory. Idle entries are
// evicted when they are read, and every Save sweeps out the rest.
type MemorySessionRepository struct {
	TTL time.Duration
	Now func() time.Time

	mu       sync.Mutex
	sessions map[string]*SessionState
}

func NewMemorySessionRepository(ttl time.Duration) *MemorySessionRepository {
	return &MemorySessionRepository{
		TTL:      ttl,
		Now:      time.Now,
		sessions: make(map[string]*SessionState),
	}
}

func (r *MemorySessionRepository) Get(ctx context.Context, id string) (*SessionState, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	state, ok := r.sessions[id]
	if !ok {
		return nil, ErrSessionNotFound
	}
	if state.expired(r.Now(), r.TTL) {
		logger.Log.Debug("evicting idle session", zap.String("session", id))
		delete(r.sessions, id)
		return nil, ErrSessionNotFound
	}
	return state.Clone(), nil
}

func (r *MemorySessionRepository) Save(ctx context.Context, state *SessionState) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.sessions == nil {
		r.sessions = make(map[string]*SessionState)
	}
	r.sweep()
	r.sessions[state.Id] = state.Clone()
	return nil
}

// sweep drops every idle entry. Callers hold mu.
func (r *MemorySessionRepository) sweep() {
	now := r.Now()
	evicted := 0
	for id, held := range r.sessions {
		if held.expired(now, r.TTL) {
			delete(r.sessions, id)
			evicted++
		}
	}
	if evicted > 0 {
		logger.Log.Debug("swept idle sessions", zap.Int("count", evicted))
	}
}

func (r *MemorySessionRepository) Delete(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.sessions, id)
	return nil
}

// Len reports how many entries are held, expired or not.
func (r *MemorySessionRepository) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}
