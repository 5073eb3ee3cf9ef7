package memory

import (
	"context"
	"testing"

	"quiz-session-service/internal/domain"
)

func testResolver(t *testing.T) QuestionResolver {
	t.Helper()
	questions := []domain.Question{
		{ID: "q1", Text: "?", Answers: []string{"A", "B"}, Correct: domain.SingleAnswer("B"), Points: 10},
		{ID: "q2", Text: "?", Answers: []string{"A", "B", "C"}, Correct: domain.MultipleAnswer("A", "C"), Points: 10},
	}
	return func(_ context.Context, quizID string) ([]domain.Question, error) {
		if quizID != "quiz-1" {
			return nil, domain.ErrQuizNotFound
		}
		return questions, nil
	}
}

func TestAttemptStoreScoresOnSubmit(t *testing.T) {
	ctx := context.Background()
	store := NewAttemptStore(testResolver(t))

	if _, err := store.StartAttempt(ctx, "nope", "u1"); err == nil {
		t.Fatalf("expected unknown quiz to be rejected")
	}

	id, err := store.StartAttempt(ctx, "quiz-1", "u1")
	if err != nil || id == "" {
		t.Fatalf("start: id=%q err=%v", id, err)
	}

	if err := store.SubmitAttempt(ctx, "missing", nil); err == nil {
		t.Fatalf("expected unknown attempt to be rejected")
	}
	err = store.SubmitAttempt(ctx, id, map[string][]string{
		"q1": {"B"},
		"q2": {"A"},
	})
	if err != nil {
		t.Fatalf("submit: %v", err)
	}

	lb, err := store.LoadLeaderboard(ctx, "quiz-1")
	if err != nil {
		t.Fatalf("leaderboard: %v", err)
	}
	if len(lb) != 1 || lb[0].UserID != "u1" {
		t.Fatalf("unexpected leaderboard: %+v", lb)
	}
	// 10 for q1 plus half of q2.
	if lb[0].Score != 15 || lb[0].Percentage != 75 {
		t.Fatalf("expected 15 points at 75%%, got %+v", lb[0])
	}
}

func TestLeaderboardOrdering(t *testing.T) {
	ctx := context.Background()
	store := NewAttemptStore(testResolver(t))

	submit := func(userID string, answers map[string][]string) {
		t.Helper()
		id, err := store.StartAttempt(ctx, "quiz-1", userID)
		if err != nil {
			t.Fatalf("start %s: %v", userID, err)
		}
		if err := store.SubmitAttempt(ctx, id, answers); err != nil {
			t.Fatalf("submit %s: %v", userID, err)
		}
	}

	submit("low", map[string][]string{"q1": {"A"}})
	submit("high", map[string][]string{"q1": {"B"}, "q2": {"A", "C"}})
	submit("mid", map[string][]string{"q1": {"B"}})

	// An unsubmitted attempt must not appear.
	if _, err := store.StartAttempt(ctx, "quiz-1", "ghost"); err != nil {
		t.Fatalf("start ghost: %v", err)
	}

	lb, err := store.LoadLeaderboard(ctx, "quiz-1")
	if err != nil {
		t.Fatalf("leaderboard: %v", err)
	}
	if len(lb) != 3 {
		t.Fatalf("expected 3 entries, got %d", len(lb))
	}
	for i, want := range []string{"high", "mid", "low"} {
		if lb[i].UserID != want {
			t.Fatalf("position %d: expected %s, got %s", i, want, lb[i].UserID)
		}
	}
}
