package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"quiz-session-service/internal/app"
	"quiz-session-service/internal/domain"
)

// AttemptStore records quiz attempts in Postgres and serves the per-quiz
// leaderboard. Submitted answers are re-scored server-side against the
// stored question set, so the attempt row never trusts a client score.
type AttemptStore struct {
	pool      *pgxpool.Pool
	questions *QuestionSource
}

func NewAttemptStore(pool *pgxpool.Pool, questions *QuestionSource) *AttemptStore {
	return &AttemptStore{pool: pool, questions: questions}
}

func (s *AttemptStore) StartAttempt(ctx context.Context, quizID, userID string) (string, error) {
	var exists bool
	err := s.pool.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM quizzes WHERE id = $1)`, quizID).Scan(&exists)
	if err != nil {
		return "", fmt.Errorf("start attempt: %w", err)
	}
	if !exists {
		return "", fmt.Errorf("start attempt for quiz %s: %w", quizID, domain.ErrQuizNotFound)
	}

	attemptID := uuid.NewString()
	_, err = s.pool.Exec(ctx, `
		INSERT INTO attempts (id, quiz_id, user_id, started_at)
		VALUES ($1, $2, $3, now())`,
		attemptID, quizID, userID,
	)
	if err != nil {
		return "", fmt.Errorf("start attempt: %w", err)
	}
	return attemptID, nil
}

func (s *AttemptStore) SubmitAttempt(ctx context.Context, attemptID string, answers map[string][]string) error {
	var quizID string
	err := s.pool.QueryRow(ctx, `SELECT quiz_id FROM attempts WHERE id = $1`, attemptID).Scan(&quizID)
	if errors.Is(err, pgx.ErrNoRows) {
		return fmt.Errorf("submit attempt %s: attempt not found", attemptID)
	}
	if err != nil {
		return fmt.Errorf("submit attempt: %w", err)
	}

	questions, err := s.questions.QuestionsByQuizID(ctx, quizID)
	if err != nil {
		return fmt.Errorf("submit attempt: %w", err)
	}
	score := app.Score(questions, answers)

	raw, err := json.Marshal(answers)
	if err != nil {
		return fmt.Errorf("marshal answers: %w", err)
	}
	_, err = s.pool.Exec(ctx, `
		UPDATE attempts
		SET answers = $2, score = $3, percentage = $4, finished_at = now()
		WHERE id = $1`,
		attemptID, raw, score.Score, score.Percentage,
	)
	if err != nil {
		return fmt.Errorf("submit attempt: %w", err)
	}
	return nil
}

func (s *AttemptStore) LoadLeaderboard(ctx context.Context, quizID string) ([]domain.LeaderboardEntry, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT user_id, score, percentage, finished_at
		FROM attempts
		WHERE quiz_id = $1 AND finished_at IS NOT NULL
		ORDER BY score DESC, finished_at ASC
		LIMIT 20`,
		quizID,
	)
	if err != nil {
		return nil, fmt.Errorf("load leaderboard: %w", err)
	}
	defer rows.Close()

	entries := make([]domain.LeaderboardEntry, 0)
	for rows.Next() {
		var e domain.LeaderboardEntry
		if err := rows.Scan(&e.UserID, &e.Score, &e.Percentage, &e.FinishedAt); err != nil {
			return nil, fmt.Errorf("scan leaderboard row: %w", err)
		}
		e.DisplayName = e.UserID
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate leaderboard: %w", err)
	}
	return entries, nil
}
