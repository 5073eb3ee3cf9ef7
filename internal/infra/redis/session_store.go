package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"quiz-session-service/internal/domain"
)

// SessionStore persists session state as one JSON value per key, so a
// reload (or another instance) resumes exactly where the user left off.
// Keys expire after ttl to bound abandoned sessions.
type SessionStore struct {
	client *redis.Client
	ttl    time.Duration
}

func NewSessionStore(client *redis.Client, ttl time.Duration) *SessionStore {
	return &SessionStore{client: client, ttl: ttl}
}

func (s *SessionStore) Load(ctx context.Context, key domain.SessionKey) (domain.SessionState, bool, error) {
	raw, err := s.client.Get(ctx, s.stateKey(key)).Bytes()
	if err == redis.Nil {
		return domain.SessionState{}, false, nil
	}
	if err != nil {
		return domain.SessionState{}, false, fmt.Errorf("load session state: %w", err)
	}
	var state domain.SessionState
	if err := json.Unmarshal(raw, &state); err != nil {
		return domain.SessionState{}, false, fmt.Errorf("unmarshal session state: %w", err)
	}
	return state, true, nil
}

func (s *SessionStore) Save(ctx context.Context, key domain.SessionKey, state domain.SessionState) error {
	raw, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("marshal session state: %w", err)
	}
	if err := s.client.Set(ctx, s.stateKey(key), raw, s.ttl).Err(); err != nil {
		return fmt.Errorf("save session state: %w", err)
	}
	return nil
}

func (s *SessionStore) Clear(ctx context.Context, key domain.SessionKey) error {
	if err := s.client.Del(ctx, s.stateKey(key)).Err(); err != nil {
		return fmt.Errorf("clear session state: %w", err)
	}
	return nil
}

func (s *SessionStore) stateKey(key domain.SessionKey) string {
	return "quiz:state:" + key.String()
}

// AttemptCache keeps the open attempt ID per user and quiz in Redis, so a
// retry from any instance reuses the attempt instead of opening another.
type AttemptCache struct {
	client *redis.Client
	ttl    time.Duration
}

func NewAttemptCache(client *redis.Client, ttl time.Duration) *AttemptCache {
	return &AttemptCache{client: client, ttl: ttl}
}

func (c *AttemptCache) AttemptID(ctx context.Context, userID, quizID string) (string, bool, error) {
	id, err := c.client.Get(ctx, c.key(userID, quizID)).Result()
	if err == redis.Nil {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("load attempt id: %w", err)
	}
	return id, true, nil
}

func (c *AttemptCache) SaveAttemptID(ctx context.Context, userID, quizID, attemptID string) error {
	if err := c.client.Set(ctx, c.key(userID, quizID), attemptID, c.ttl).Err(); err != nil {
		return fmt.Errorf("save attempt id: %w", err)
	}
	return nil
}

func (c *AttemptCache) ClearAttemptID(ctx context.Context, userID, quizID string) error {
	if err := c.client.Del(ctx, c.key(userID, quizID)).Err(); err != nil {
		return fmt.Errorf("clear attempt id: %w", err)
	}
	return nil
}

func (c *AttemptCache) key(userID, quizID string) string {
	return "quiz:attempt:" + userID + ":" + quizID
}
