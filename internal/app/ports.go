package app

import (
	"context"

	"quiz-session-service/internal/domain"
)

// SessionStateStore persists session state so a dropped connection or a
// process restart resumes exactly where the user left off.
type SessionStateStore interface {
	Load(ctx context.Context, key domain.SessionKey) (domain.SessionState, bool, error)
	Save(ctx context.Context, key domain.SessionKey, state domain.SessionState) error
	Clear(ctx context.Context, key domain.SessionKey) error
}

// AttemptCache remembers the server-side attempt ID per user and quiz so
// retries and double submits never open duplicate attempts.
type AttemptCache interface {
	AttemptID(ctx context.Context, userID, quizID string) (string, bool, error)
	SaveAttemptID(ctx context.Context, userID, quizID, attemptID string) error
	ClearAttemptID(ctx context.Context, userID, quizID string) error
}

// QuestionSource loads quiz metadata plus normalized questions for a
// subject/exam pair.
type QuestionSource interface {
	LoadQuestionSet(ctx context.Context, subjectCode, examCode string) (domain.QuestionSet, error)
}

// AttemptService is the server-side attempt collaborator: open an attempt,
// record its answers, read the quiz leaderboard.
type AttemptService interface {
	StartAttempt(ctx context.Context, quizID, userID string) (string, error)
	SubmitAttempt(ctx context.Context, attemptID string, answers map[string][]string) error
	LoadLeaderboard(ctx context.Context, quizID string) ([]domain.LeaderboardEntry, error)
}
