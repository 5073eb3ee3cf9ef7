package redis

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"

	"quiz-session-service/internal/domain"
)

func testClient(t *testing.T) *goredis.Client {
	t.Helper()
	mr := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return client
}

func TestSessionStoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	store := NewSessionStore(testClient(t), time.Hour)
	key := domain.SessionKey{UserID: "u1", SubjectCode: "math", ExamCode: "101"}

	if _, ok, err := store.Load(ctx, key); err != nil || ok {
		t.Fatalf("expected miss on empty store, ok=%v err=%v", ok, err)
	}

	state := domain.NewSessionState(true, 120)
	state.CurrentIndex = 2
	state.SelectedAnswers["q1"] = []string{"A", "C"}
	state.CompletedQuestions["q1"] = true
	if err := store.Save(ctx, key, state); err != nil {
		t.Fatalf("save: %v", err)
	}

	loaded, ok, err := store.Load(ctx, key)
	if err != nil || !ok {
		t.Fatalf("load: ok=%v err=%v", ok, err)
	}
	if loaded.CurrentIndex != 2 || loaded.TimeRemaining != 120 || !loaded.Timed {
		t.Fatalf("state mismatch: %+v", loaded)
	}
	if got := loaded.SelectedAnswers["q1"]; len(got) != 2 || got[0] != "A" || got[1] != "C" {
		t.Fatalf("answers mismatch: %v", got)
	}
	if !loaded.CompletedQuestions["q1"] {
		t.Fatalf("completed flag lost")
	}

	if err := store.Clear(ctx, key); err != nil {
		t.Fatalf("clear: %v", err)
	}
	if _, ok, _ := store.Load(ctx, key); ok {
		t.Fatalf("expected state gone after clear")
	}
}

func TestSessionStoreKeysAreIsolated(t *testing.T) {
	ctx := context.Background()
	store := NewSessionStore(testClient(t), time.Hour)

	a := domain.SessionKey{UserID: "u1", SubjectCode: "math", ExamCode: "101"}
	b := domain.SessionKey{UserID: "u1", SubjectCode: "math", ExamCode: "102"}

	stateA := domain.NewSessionState(false, 0)
	stateA.CurrentIndex = 5
	if err := store.Save(ctx, a, stateA); err != nil {
		t.Fatalf("save: %v", err)
	}
	if _, ok, _ := store.Load(ctx, b); ok {
		t.Fatalf("state leaked across exams")
	}
}

func TestAttemptCacheRoundTrip(t *testing.T) {
	ctx := context.Background()
	cache := NewAttemptCache(testClient(t), time.Hour)

	if _, ok, err := cache.AttemptID(ctx, "u1", "quiz-1"); err != nil || ok {
		t.Fatalf("expected miss, ok=%v err=%v", ok, err)
	}
	if err := cache.SaveAttemptID(ctx, "u1", "quiz-1", "attempt-7"); err != nil {
		t.Fatalf("save: %v", err)
	}
	id, ok, err := cache.AttemptID(ctx, "u1", "quiz-1")
	if err != nil || !ok || id != "attempt-7" {
		t.Fatalf("expected attempt-7, got %q ok=%v err=%v", id, ok, err)
	}
	if err := cache.ClearAttemptID(ctx, "u1", "quiz-1"); err != nil {
		t.Fatalf("clear: %v", err)
	}
	if _, ok, _ := cache.AttemptID(ctx, "u1", "quiz-1"); ok {
		t.Fatalf("expected attempt cleared")
	}
}
