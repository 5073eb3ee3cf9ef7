package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"quiz-session-service/internal/app"
	"quiz-session-service/internal/domain"
)

// QuestionResolver looks up the questions of a quiz so submitted attempts
// can be scored server-side.
type QuestionResolver func(ctx context.Context, quizID string) ([]domain.Question, error)

// AttemptStore is the in-memory implementation of app.AttemptService.
type AttemptStore struct {
	resolve QuestionResolver
	clock   func() time.Time

	mu       sync.Mutex
	attempts map[string]*attempt
}

type attempt struct {
	id         string
	quizID     string
	userID     string
	startedAt  time.Time
	finishedAt time.Time
	submitted  bool
	score      domain.ScoreResult
}

func NewAttemptStore(resolve QuestionResolver) *AttemptStore {
	return &AttemptStore{
		resolve:  resolve,
		clock:    time.Now,
		attempts: make(map[string]*attempt),
	}
}

func (s *AttemptStore) StartAttempt(ctx context.Context, quizID, userID string) (string, error) {
	if _, err := s.resolve(ctx, quizID); err != nil {
		return "", fmt.Errorf("start attempt: %w", err)
	}
	a := &attempt{
		id:        uuid.NewString(),
		quizID:    quizID,
		userID:    userID,
		startedAt: s.clock(),
	}
	s.mu.Lock()
	s.attempts[a.id] = a
	s.mu.Unlock()
	return a.id, nil
}

func (s *AttemptStore) SubmitAttempt(ctx context.Context, attemptID string, answers map[string][]string) error {
	s.mu.Lock()
	a, ok := s.attempts[attemptID]
	s.mu.Unlock()
	if !ok {
		return fmt.Errorf("submit attempt: unknown attempt %s", attemptID)
	}

	questions, err := s.resolve(ctx, a.quizID)
	if err != nil {
		return fmt.Errorf("submit attempt: %w", err)
	}
	score := app.Score(questions, answers)

	s.mu.Lock()
	a.submitted = true
	a.finishedAt = s.clock()
	a.score = score
	s.mu.Unlock()
	return nil
}

func (s *AttemptStore) LoadLeaderboard(_ context.Context, quizID string) ([]domain.LeaderboardEntry, error) {
	s.mu.Lock()
	entries := make([]domain.LeaderboardEntry, 0)
	for _, a := range s.attempts {
		if !a.submitted || a.quizID != quizID {
			continue
		}
		entries = append(entries, domain.LeaderboardEntry{
			UserID:      a.userID,
			DisplayName: a.userID,
			Score:       a.score.Score,
			Percentage:  a.score.Percentage,
			FinishedAt:  a.finishedAt,
		})
	}
	s.mu.Unlock()

	sort.Slice(entries, func(i, j int) bool {
		if entries[i].Score != entries[j].Score {
			return entries[i].Score > entries[j].Score
		}
		if !entries[i].FinishedAt.Equal(entries[j].FinishedAt) {
			return entries[i].FinishedAt.Before(entries[j].FinishedAt)
		}
		return entries[i].UserID < entries[j].UserID
	})
	return entries, nil
}
