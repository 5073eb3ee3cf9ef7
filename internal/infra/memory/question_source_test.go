package memory

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"quiz-session-service/internal/domain"
)

type countingSource struct {
	mu    sync.Mutex
	calls int
	err   error
}

func (c *countingSource) LoadQuestionSet(_ context.Context, subjectCode, examCode string) (domain.QuestionSet, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls++
	if c.err != nil {
		return domain.QuestionSet{}, c.err
	}
	return domain.QuestionSet{
		Quiz: domain.QuizInfo{ID: "quiz-1", SubjectCode: subjectCode, ExamCode: examCode},
		Questions: []domain.Question{
			{ID: "q1", Text: "?", Answers: []string{"A", "B"}, Correct: domain.SingleAnswer("A"), Points: 10},
		},
	}, nil
}

func (c *countingSource) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.calls
}

func TestStaticQuestionSource(t *testing.T) {
	ctx := context.Background()
	src := NewStaticQuestionSource(map[string]domain.QuestionSet{
		"math:101": {Quiz: domain.QuizInfo{ID: "quiz-1"}},
	})

	set, err := src.LoadQuestionSet(ctx, "math", "101")
	if err != nil || set.Quiz.ID != "quiz-1" {
		t.Fatalf("expected quiz-1, got %+v err=%v", set.Quiz, err)
	}
	if _, err := src.LoadQuestionSet(ctx, "math", "999"); !errors.Is(err, domain.ErrQuizNotFound) {
		t.Fatalf("expected ErrQuizNotFound, got %v", err)
	}
}

func TestFallbackQuestionSourceIsScorable(t *testing.T) {
	set, err := NewFallbackQuestionSource().LoadQuestionSet(context.Background(), "math", "101")
	if err != nil {
		t.Fatalf("fallback: %v", err)
	}
	if set.Source != domain.SourceFallback {
		t.Fatalf("expected fallback source tag, got %s", set.Source)
	}
	if set.Quiz.SubjectCode != "math" || set.Quiz.ExamCode != "101" {
		t.Fatalf("expected requested codes echoed, got %+v", set.Quiz)
	}
	if len(set.Questions) == 0 {
		t.Fatalf("fallback set is empty")
	}
	for _, q := range set.Questions {
		if !q.Answerable() || !q.Scorable() {
			t.Fatalf("fallback question %s not usable: %+v", q.ID, q)
		}
	}
}

func TestCachingQuestionSourceHitsBackendOnce(t *testing.T) {
	ctx := context.Background()
	backend := &countingSource{}
	cached := NewCachingQuestionSource(backend, time.Hour)

	for i := 0; i < 5; i++ {
		if _, err := cached.LoadQuestionSet(ctx, "math", "101"); err != nil {
			t.Fatalf("load %d: %v", i, err)
		}
	}
	if backend.count() != 1 {
		t.Fatalf("expected 1 backend call, got %d", backend.count())
	}

	// A different exam is a different cache entry.
	if _, err := cached.LoadQuestionSet(ctx, "math", "102"); err != nil {
		t.Fatalf("load other exam: %v", err)
	}
	if backend.count() != 2 {
		t.Fatalf("expected 2 backend calls, got %d", backend.count())
	}
}

func TestCachingQuestionSourceExpires(t *testing.T) {
	ctx := context.Background()
	backend := &countingSource{}
	cached := NewCachingQuestionSource(backend, time.Minute)

	now := time.Now()
	cached.clock = func() time.Time { return now }

	if _, err := cached.LoadQuestionSet(ctx, "math", "101"); err != nil {
		t.Fatalf("load: %v", err)
	}
	now = now.Add(2 * time.Minute)
	if _, err := cached.LoadQuestionSet(ctx, "math", "101"); err != nil {
		t.Fatalf("load after expiry: %v", err)
	}
	if backend.count() != 2 {
		t.Fatalf("expected reload after ttl, got %d backend calls", backend.count())
	}
}

func TestCachingQuestionSourceDoesNotCacheErrors(t *testing.T) {
	ctx := context.Background()
	backend := &countingSource{err: errors.New("down")}
	cached := NewCachingQuestionSource(backend, time.Hour)

	if _, err := cached.LoadQuestionSet(ctx, "math", "101"); err == nil {
		t.Fatalf("expected error")
	}
	backend.mu.Lock()
	backend.err = nil
	backend.mu.Unlock()
	if _, err := cached.LoadQuestionSet(ctx, "math", "101"); err != nil {
		t.Fatalf("expected recovery after backend came back, got %v", err)
	}
	if backend.count() != 2 {
		t.Fatalf("expected 2 backend calls, got %d", backend.count())
	}
}
