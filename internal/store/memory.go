// internal/store/memory.go
//
// In-memory implementation of the session Store.
// Sessions are ephemeral: a restart forgets every run in progress, which is
// fine because only the final score is durable (see internal/scores).
//
// Characteristics:
//   - Stores *game.Session objects keyed by ID in a map.
//   - Concurrency-safe via RWMutex; Update runs its callback under the write
//     lock so a session is never mutated by two requests at once.
//   - Sweep drops sessions idle since before a cutoff.

package store

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/robalobadob/mindmaster/internal/game"
)

// ErrNotFound is returned for unknown session IDs.
var ErrNotFound = errors.New("not found")

// Store defines the persistence interface for play sessions.
type Store interface {
	// Save persists or replaces a session.
	Save(ctx context.Context, s *game.Session) error

	// Get returns a copy of the session with the given ID.
	Get(ctx context.Context, id string) (game.Session, error)

	// Update runs fn on the stored session while holding exclusive access.
	Update(ctx context.Context, id string, fn func(s *game.Session) error) error

	// Delete removes a session; deleting a missing ID is not an error.
	Delete(ctx context.Context, id string) error

	// Sweep removes sessions whose last activity is before cutoff and
	// returns them, so the caller can settle runs that were abandoned.
	Sweep(ctx context.Context, cutoff time.Time) []game.Session
}

type entry struct {
	sess    *game.Session
	touched time.Time
}

// memory is an in-memory map-based Store implementation.
type memory struct {
	mu       sync.RWMutex
	sessions map[string]*entry
	now      func() time.Time
}

// NewMemoryStore constructs a new in-memory Store.
func NewMemoryStore() Store {
	return newMemory(time.Now)
}

func newMemory(now func() time.Time) *memory {
	return &memory{sessions: make(map[string]*entry), now: now}
}

func (m *memory) Save(ctx context.Context, s *game.Session) error {
	if s == nil || s.ID == "" {
		return errors.New("session without id")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions[s.ID] = &entry{sess: s, touched: m.now()}
	return nil
}

func (m *memory) Get(ctx context.Context, id string) (game.Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if e, ok := m.sessions[id]; ok {
		return *e.sess, nil
	}
	return game.Session{}, ErrNotFound
}

func (m *memory) Update(ctx context.Context, id string, fn func(s *game.Session) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.sessions[id]
	if !ok {
		return ErrNotFound
	}
	e.touched = m.now()
	return fn(e.sess)
}

func (m *memory) Delete(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, id)
	return nil
}

func (m *memory) Sweep(ctx context.Context, cutoff time.Time) []game.Session {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []game.Session
	for id, e := range m.sessions {
		if e.touched.Before(cutoff) {
			out = append(out, *e.sess)
			delete(m.sessions, id)
		}
	}
	return out
}
