package memory

import (
	"context"
	"sync"

	"quiz-session-service/internal/domain"
)

// SessionStore is an in-memory implementation of app.SessionStateStore,
// used in tests and in deployments without Redis.
type SessionStore struct {
	mu     sync.RWMutex
	states map[string]domain.SessionState
}

func NewSessionStore() *SessionStore {
	return &SessionStore{states: make(map[string]domain.SessionState)}
}

func (s *SessionStore) Load(_ context.Context, key domain.SessionKey) (domain.SessionState, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	state, ok := s.states[key.String()]
	if !ok {
		return domain.SessionState{}, false, nil
	}
	return state.Clone(), true, nil
}

func (s *SessionStore) Save(_ context.Context, key domain.SessionKey, state domain.SessionState) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.states[key.String()] = state.Clone()
	return nil
}

func (s *SessionStore) Clear(_ context.Context, key domain.SessionKey) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.states, key.String())
	return nil
}

// AttemptCache is the in-memory implementation of app.AttemptCache.
type AttemptCache struct {
	mu  sync.RWMutex
	ids map[string]string
}

func NewAttemptCache() *AttemptCache {
	return &AttemptCache{ids: make(map[string]string)}
}

func attemptKey(userID, quizID string) string {
	return userID + ":" + quizID
}

func (c *AttemptCache) AttemptID(_ context.Context, userID, quizID string) (string, bool, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	id, ok := c.ids[attemptKey(userID, quizID)]
	return id, ok, nil
}

func (c *AttemptCache) SaveAttemptID(_ context.Context, userID, quizID, attemptID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.ids[attemptKey(userID, quizID)] = attemptID
	return nil
}

func (c *AttemptCache) ClearAttemptID(_ context.Context, userID, quizID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.ids, attemptKey(userID, quizID))
	return nil
}
