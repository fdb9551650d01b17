package store

import (
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/i474232898/weather-lookup/internal/weather"
)

var (
	// ErrNotFound is returned when no session exists for an ID.
	ErrNotFound = errors.New("session not found")
)

// MemoryStore is a concurrency-safe in-memory registry of widget sessions.
type MemoryStore struct {
	mu sync.RWMutex

	// key: session ID
	data map[string]*weather.Session

	// retention configuration
	maxSessions int           // max number of live sessions
	maxIdle     time.Duration // sessions idle longer than this are dropped

	now func() time.Time
}

// NewMemoryStore creates a new MemoryStore with optional limits.
// maxSessions <= 0 and maxIdle <= 0 mean unlimited.
func NewMemoryStore(maxSessions int, maxIdle time.Duration) *MemoryStore {
	return &MemoryStore{
		data:        make(map[string]*weather.Session),
		maxSessions: maxSessions,
		maxIdle:     maxIdle,
		now:         time.Now,
	}
}

// Save adds a session and enforces retention.
func (s *MemoryStore) Save(session *weather.Session) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.data[session.ID()] = session
	s.pruneLocked()
}

// Get returns a live session.
func (s *MemoryStore) Get(id string) (*weather.Session, error) {
	s.mu.RLock()
	session, ok := s.data[id]
	s.mu.RUnlock()

	if !ok || s.expired(session) {
		return nil, ErrNotFound
	}
	return session, nil
}

// Delete removes a session. Unknown IDs are ignored.
func (s *MemoryStore) Delete(id string) {
	s.mu.Lock()
	delete(s.data, id)
	s.mu.Unlock()
}

// All returns every live session.
func (s *MemoryStore) All() []*weather.Session {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*weather.Session, 0, len(s.data))
	for _, session := range s.data {
		if !s.expired(session) {
			result = append(result, session)
		}
	}
	return result
}

// Prune drops idle sessions and returns how many were removed.
func (s *MemoryStore) Prune() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pruneLocked()
}

func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.data)
}

func (s *MemoryStore) expired(session *weather.Session) bool {
	return s.maxIdle > 0 && s.now().Sub(session.LastActive()) > s.maxIdle
}

func (s *MemoryStore) pruneLocked() int {
	removed := 0

	// Enforce retention by idle age.
	if s.maxIdle > 0 {
		for id, session := range s.data {
			if s.expired(session) {
				delete(s.data, id)
				removed++
			}
		}
	}

	// Enforce retention by count, least recently active first.
	if s.maxSessions > 0 && len(s.data) > s.maxSessions {
		sessions := make([]*weather.Session, 0, len(s.data))
		for _, session := range s.data {
			sessions = append(sessions, session)
		}
		sort.Slice(sessions, func(i, j int) bool {
			return sessions[i].LastActive().Before(sessions[j].LastActive())
		})
		over := len(sessions) - s.maxSessions
		for _, session := range sessions[:over] {
			delete(s.data, session.ID())
			removed++
		}
	}

	return removed
}
