package session

import (
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"tourist-safety/internal/routing"
)

// ErrNotFound is returned when a session id is unknown
var ErrNotFound = errors.New("session not found")

// Store keeps dashboard sessions in memory. Nothing is written to durable
// storage; sessions end with the process.
type Store struct {
	computer routing.RouteComputer
	logger   *zap.Logger

	sessions map[string]*State
	mu       sync.RWMutex
}

// NewStore creates an empty session store
func NewStore(computer routing.RouteComputer, logger *zap.Logger) *Store {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Store{
		computer: computer,
		logger:   logger.Named("session"),
		sessions: make(map[string]*State),
	}
}

// Create starts a new session in the Empty state
func (s *Store) Create() *State {
	id := uuid.NewString()
	state := NewState(id, s.computer, s.logger)

	s.mu.Lock()
	s.sessions[id] = state
	n := len(s.sessions)
	s.mu.Unlock()

	s.logger.Info("session created", zap.String("id", id), zap.Int("active", n))
	return state
}

// Get returns the session with id
func (s *Store) Get(id string) (*State, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	state, ok := s.sessions[id]
	if !ok {
		return nil, ErrNotFound
	}
	return state, nil
}

// Delete removes a session
func (s *Store) Delete(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.sessions[id]; !ok {
		return ErrNotFound
	}
	delete(s.sessions, id)
	s.logger.Info("session deleted", zap.String("id", id))
	return nil
}

// Len returns the number of live sessions
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}

// Prune drops sessions with no state change for longer than maxIdle and
// returns their ids
func (s *Store) Prune(maxIdle time.Duration) []string {
	cutoff := time.Now().Add(-maxIdle)

	s.mu.Lock()
	defer s.mu.Unlock()

	var removed []string
	for id, state := range s.sessions {
		if state.IdleSince().Before(cutoff) {
			delete(s.sessions, id)
			removed = append(removed, id)
		}
	}
	if len(removed) > 0 {
		s.logger.Info("pruned idle sessions", zap.Int("removed", len(removed)), zap.Int("active", len(s.sessions)))
	}
	return removed
}
