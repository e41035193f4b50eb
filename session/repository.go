package session

import (
	"context"
	"errors"
	"sync"
	"time"
)

// ErrDuplicateSession is returned by [Repository.Create] when the id is taken.
var ErrDuplicateSession = errors.New("session already exists")

// Repository is the durable query contract. FindLive returns the session joined with
// its user only when expires_at > now; (nil, nil) means nothing live.
type Repository interface {
	FindLive(ctx context.Context, id string, now time.Time) (*Session, error)
	Create(ctx context.Context, s *Session) error
	Delete(ctx context.Context, id string) error
}

// MemoryRepository is an in-process [Repository] for tests and development.
type MemoryRepository struct {
	mu       sync.RWMutex
	sessions map[string]Session
}

// NewMemoryRepository creates an empty [MemoryRepository].
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{sessions: make(map[string]Session)}
}

func (r *MemoryRepository) FindLive(_ context.Context, id string, now time.Time) (*Session, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	s, ok := r.sessions[id]
	if !ok || !s.ExpiresAt.After(now) {
		return nil, nil
	}
	return &s, nil
}

func (r *MemoryRepository) Create(_ context.Context, s *Session) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.sessions[s.ID]; exists {
		return ErrDuplicateSession
	}
	r.sessions[s.ID] = *s
	return nil
}

func (r *MemoryRepository) Delete(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.sessions, id)
	return nil
}

// Len returns the number of stored sessions, expired ones included.
func (r *MemoryRepository) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}
