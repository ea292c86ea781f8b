package services

import (
	"context"
	"sync"

	"golang.org/x/sync/semaphore"
)

type sessionLock struct {
	sem  *semaphore.Weighted
	refs int
}

// SessionLocks serializes work per session id. Entries only exist while a
// goroutine holds or waits for them.
type SessionLocks struct {
	mu    sync.Mutex
	locks map[string]*sessionLock
}

// Lock blocks until id is free or ctx is done. The returned func releases it
// and must be called exactly once.
func (s *SessionLocks) Lock(ctx context.Context, id string) (func(), error) {
	s.mu.Lock()
	if s.locks == nil {
		s.locks = make(map[string]*sessionLock)
	}
	lock, ok := s.locks[id]
	if !ok {
		lock = &sessionLock{sem: semaphore.NewWeighted(1)}
		s.locks[id] = lock
	}
	lock.refs++
	s.mu.Unlock()

	if err := lock.sem.Acquire(ctx, 1); err != nil {
		s.release(id, lock, false)
		return nil, err
	}

	var once sync.Once
	return func() {
		once.Do(func() { s.release(id, lock, true) })
	}, nil
}

func (s *SessionLocks) release(id string, lock *sessionLock, held bool) {
	if held {
		lock.sem.Release(1)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	lock.refs--
	if lock.refs == 0 {
		delete(s.locks, id)
	}
}

func (s *SessionLocks) size() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.locks)
}
