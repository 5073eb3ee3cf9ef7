package memory

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"quiz-session-service/internal/app"
	"quiz-session-service/internal/domain"
)

// StaticQuestionSource serves question sets from an in-memory map keyed by
// "subjectCode:examCode" (useful for tests and demos).
type StaticQuestionSource struct {
	sets map[string]domain.QuestionSet
}

func NewStaticQuestionSource(sets map[string]domain.QuestionSet) *StaticQuestionSource {
	return &StaticQuestionSource{sets: sets}
}

func (s *StaticQuestionSource) LoadQuestionSet(_ context.Context, subjectCode, examCode string) (domain.QuestionSet, error) {
	if set, ok := s.sets[subjectCode+":"+examCode]; ok {
		return set, nil
	}
	return domain.QuestionSet{}, domain.ErrQuizNotFound
}

// FallbackQuestionSource serves the documented placeholder set used when
// the real source is down. Content is unmistakably labelled so it is never
// confused with live exam data, and the Source tag rides every view.
type FallbackQuestionSource struct{}

func NewFallbackQuestionSource() *FallbackQuestionSource {
	return &FallbackQuestionSource{}
}

func (f *FallbackQuestionSource) LoadQuestionSet(_ context.Context, subjectCode, examCode string) (domain.QuestionSet, error) {
	return domain.QuestionSet{
		Quiz: domain.QuizInfo{
			ID:          "",
			SubjectCode: subjectCode,
			ExamCode:    examCode,
			Title:       "[DEMO] Placeholder quiz - live questions unavailable",
			Author:      "system",
		},
		Source: domain.SourceFallback,
		Questions: []domain.Question{
			{
				ID:      "demo-1",
				Text:    "[DEMO] Which planet is known as the Red Planet?",
				Answers: []string{"Venus", "Mars", "Jupiter", "Saturn"},
				Correct: domain.SingleAnswer("Mars"),
				Points:  domain.DefaultQuestionPoints,
			},
			{
				ID:      "demo-2",
				Text:    "[DEMO] Which of these are prime numbers?",
				Answers: []string{"2", "4", "7", "9"},
				Correct: domain.MultipleAnswer("2", "7"),
				Points:  domain.DefaultQuestionPoints,
			},
			{
				ID:      "demo-3",
				Text:    "[DEMO] What does HTTP stand for?",
				Answers: []string{"HyperText Transfer Protocol", "High Throughput Transport Plan", "Hyperlink Text Processor"},
				Correct: domain.SingleAnswer("HyperText Transfer Protocol"),
				Points:  domain.DefaultQuestionPoints,
			},
		},
	}, nil
}

// CachingQuestionSource caches question sets with TTL so concurrent session
// opens for the same exam hit the backing source once.
type CachingQuestionSource struct {
	source app.QuestionSource
	ttl    time.Duration
	clock  func() time.Time
	sf     singleflight.Group
	rnd    *rand.Rand

	mu    sync.RWMutex
	cache map[string]cachedSet
}

type cachedSet struct {
	set       domain.QuestionSet
	expiresAt time.Time
}

func NewCachingQuestionSource(source app.QuestionSource, ttl time.Duration) *CachingQuestionSource {
	return &CachingQuestionSource{
		source: source,
		ttl:    ttl,
		clock:  time.Now,
		rnd:    rand.New(rand.NewSource(time.Now().UnixNano())),
		cache:  make(map[string]cachedSet),
	}
}

func (c *CachingQuestionSource) LoadQuestionSet(ctx context.Context, subjectCode, examCode string) (domain.QuestionSet, error) {
	key := subjectCode + ":" + examCode
	now := c.clock()

	c.mu.RLock()
	if entry, ok := c.cache[key]; ok && entry.expiresAt.After(now) {
		c.mu.RUnlock()
		return entry.set, nil
	}
	c.mu.RUnlock()

	result, err, _ := c.sf.Do(key, func() (interface{}, error) {
		now := c.clock()
		c.mu.RLock()
		if entry, ok := c.cache[key]; ok && entry.expiresAt.After(now) {
			c.mu.RUnlock()
			return entry.set, nil
		}
		c.mu.RUnlock()

		set, err := c.source.LoadQuestionSet(ctx, subjectCode, examCode)
		if err != nil {
			return domain.QuestionSet{}, err
		}

		c.mu.Lock()
		c.cache[key] = cachedSet{set: set, expiresAt: now.Add(c.ttlWithJitter())}
		c.mu.Unlock()
		return set, nil
	})
	if err != nil {
		return domain.QuestionSet{}, err
	}
	return result.(domain.QuestionSet), nil
}

func (c *CachingQuestionSource) ttlWithJitter() time.Duration {
	if c.ttl <= 0 {
		return 0
	}
	// up to 10% jitter to spread expirations
	jitterMax := int64(c.ttl) / 10
	return c.ttl + time.Duration(c.rnd.Int63n(jitterMax+1))
}
