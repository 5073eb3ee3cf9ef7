package app

import (
	"context"
	"sync"
	"testing"

	"quiz-session-service/internal/domain"
)

type recordingStore struct {
	mu     sync.Mutex
	saves  int
	clears int
}

func (r *recordingStore) Load(context.Context, domain.SessionKey) (domain.SessionState, bool, error) {
	return domain.SessionState{}, false, nil
}

func (r *recordingStore) Save(context.Context, domain.SessionKey, domain.SessionState) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.saves++
	return nil
}

func (r *recordingStore) Clear(context.Context, domain.SessionKey) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.clears++
	return nil
}

func (r *recordingStore) saveCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.saves
}

type singleQuizSource struct{}

func (singleQuizSource) LoadQuestionSet(context.Context, string, string) (domain.QuestionSet, error) {
	return domain.QuestionSet{
		Quiz: domain.QuizInfo{ID: "quiz-1", SubjectCode: "math", ExamCode: "101"},
		Questions: []domain.Question{
			{ID: "q1", Text: "?", Answers: []string{"A", "B"}, Correct: domain.SingleAnswer("A"), Points: 10},
		},
	}, nil
}

func TestPersistSkippedOnceSubmissionStarts(t *testing.T) {
	ctx := context.Background()
	store := &recordingStore{}
	e := NewEngine(store, singleQuizSource{}, nil, nil)
	key := domain.SessionKey{UserID: "u1", SubjectCode: "math", ExamCode: "101"}

	if _, err := e.Open(ctx, key, OpenOptions{}); err != nil {
		t.Fatalf("open: %v", err)
	}
	s, ok := e.session(key)
	if !ok {
		t.Fatalf("session missing after open")
	}

	for _, state := range []SubmitState{SubmitSubmitting, SubmitSubmitted} {
		s.mu.Lock()
		s.submit = state
		s.mu.Unlock()

		before := store.saveCount()
		e.persist(ctx, s)
		if store.saveCount() != before {
			t.Fatalf("persist wrote during %s", state)
		}
	}

	s.mu.Lock()
	s.submit = SubmitNotStarted
	s.mu.Unlock()
	before := store.saveCount()
	e.persist(ctx, s)
	if store.saveCount() != before+1 {
		t.Fatalf("persist skipped for an active session")
	}
}
