package app

import (
	"context"
	"log"
	"math/rand"
	"sync"
	"time"

	"quiz-session-service/internal/domain"
)

// EventType enumerates the push events a session emits to subscribers.
type EventType string

const (
	// EventTick carries the remaining seconds of a timed session.
	EventTick EventType = "tick"
	// EventConfirmRequired asks the client to confirm submitting while
	// unchecked questions remain (manual submit and timer expiry both
	// funnel through this).
	EventConfirmRequired EventType = "confirmRequired"
	// EventResults carries the final local score and submission outcome.
	EventResults EventType = "results"
	// EventWarning carries a non-fatal, user-visible warning.
	EventWarning EventType = "warning"
)

// Event is one push notification from a session.
type Event struct {
	Type      EventType   `json:"type"`
	Remaining int         `json:"remaining,omitempty"`
	Message   string      `json:"message,omitempty"`
	Results   *QuizResult `json:"results,omitempty"`
}

// QuizResult pairs the locally computed score with the server outcome.
type QuizResult struct {
	Score      domain.ScoreResult `json:"score"`
	Submission SubmitOutcome      `json:"submission"`
}

// SessionView is the client-facing snapshot of an open session.
type SessionView struct {
	Quiz               domain.QuizInfo     `json:"quiz"`
	Source             domain.Source       `json:"source"`
	QuestionCount      int                 `json:"questionCount"`
	CurrentIndex       int                 `json:"currentIndex"`
	SelectedAnswers    map[string][]string `json:"selectedAnswers"`
	CompletedQuestions []string            `json:"completedQuestions"`
	TimeRemaining      int                 `json:"timeRemaining"`
	Timed              bool                `json:"timed"`
	Resumed            bool                `json:"resumed"`
}

// QuestionView is one question as shown to the client. The answer key is
// withheld; only the multi-choice flag leaks, since the client needs to
// know whether selecting toggles or replaces.
type QuestionView struct {
	ID       string   `json:"id"`
	Index    int      `json:"index"`
	Text     string   `json:"text"`
	Answers  []string `json:"answers"`
	Points   int      `json:"points"`
	Image    string   `json:"image,omitempty"`
	Multiple bool     `json:"multiple"`
	Selected []string `json:"selected"`
	Checked  bool     `json:"checked"`
}

// OpenOptions controls how a session is opened.
type OpenOptions struct {
	Randomize bool
}

// Engine owns the active quiz sessions and orchestrates loading, state
// persistence, timing, evaluation and submission.
type Engine struct {
	store    SessionStateStore
	source   QuestionSource
	fallback QuestionSource
	pipeline *submitPipeline

	mu       sync.RWMutex
	sessions map[string]*Session

	now func() time.Time
}

// Option configures the engine.
type Option func(*Engine)

// WithFallbackSource enables the documented fallback question set: when
// the primary source fails, content is substituted and flagged as such.
func WithFallbackSource(src QuestionSource) Option {
	return func(e *Engine) { e.fallback = src }
}

// WithClock is a test hook for deterministic timestamps.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// NewEngine wires the engine from its injected collaborators.
func NewEngine(store SessionStateStore, source QuestionSource, attempts AttemptService, cache AttemptCache, opts ...Option) *Engine {
	e := &Engine{
		store:    store,
		source:   source,
		pipeline: &submitPipeline{attempts: attempts, cache: cache},
		sessions: make(map[string]*Session),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Session is one user's in-flight run through one exam.
type Session struct {
	key domain.SessionKey
	set domain.QuestionSet

	mu          sync.Mutex
	state       domain.SessionState
	submit      SubmitState
	countdown   *Countdown
	proctorLog  []domain.ProctorEvent
	subscribers map[chan Event]struct{}
	lastTouched time.Time
	closed      bool
}

// maxProctorEvents bounds the per-session proctor log.
const maxProctorEvents = 256

// Open loads (or resumes) a session for the key. A persisted state record
// is restored verbatim; remaining time is only restored for timed quizzes.
func (e *Engine) Open(ctx context.Context, key domain.SessionKey, opts OpenOptions) (SessionView, error) {
	e.mu.Lock()
	if s, ok := e.sessions[key.String()]; ok {
		e.mu.Unlock()
		return e.viewOf(s, true), nil
	}
	e.mu.Unlock()

	set, err := e.loadSet(ctx, key.SubjectCode, key.ExamCode)
	if err != nil {
		return SessionView{}, err
	}
	if opts.Randomize {
		set.Questions = shuffledQuestions(set.Questions)
	}

	timed := set.Quiz.TimeLimitMinutes > 0
	resumed := false
	state := domain.NewSessionState(timed, set.Quiz.TimeLimitMinutes*60)
	if persisted, ok, err := e.store.Load(ctx, key); err != nil {
		log.Printf("session restore failed for %s: %v", key, err)
	} else if ok {
		resumed = true
		remaining := state.TimeRemaining
		state = persisted.Clone()
		if state.SelectedAnswers == nil {
			state.SelectedAnswers = make(map[string][]string)
		}
		if state.CompletedQuestions == nil {
			state.CompletedQuestions = make(map[string]bool)
		}
		state.Timed = timed
		if !timed {
			state.TimeRemaining = 0
		} else if state.TimeRemaining <= 0 || state.TimeRemaining > remaining {
			state.TimeRemaining = remaining
		}
		if state.CurrentIndex < 0 || state.CurrentIndex >= len(set.Questions) {
			state.CurrentIndex = 0
		}
	}

	s := &Session{
		key:         key,
		set:         set,
		state:       state,
		subscribers: make(map[chan Event]struct{}),
		lastTouched: e.now(),
	}

	e.mu.Lock()
	if existing, ok := e.sessions[key.String()]; ok {
		// Lost the race with a concurrent Open for the same key.
		e.mu.Unlock()
		return e.viewOf(existing, true), nil
	}
	e.sessions[key.String()] = s
	e.mu.Unlock()

	e.persist(ctx, s)
	if timed {
		s.mu.Lock()
		s.countdown = StartCountdown(s.state.TimeRemaining,
			func(remaining int) { e.setRemaining(key, remaining) },
			func() { e.setRemaining(key, 0) },
		)
		s.mu.Unlock()
	}
	return e.viewOf(s, resumed), nil
}

func (e *Engine) loadSet(ctx context.Context, subjectCode, examCode string) (domain.QuestionSet, error) {
	set, err := e.source.LoadQuestionSet(ctx, subjectCode, examCode)
	if err == nil {
		set.Source = domain.SourceLive
		return set, nil
	}
	if e.fallback == nil {
		return domain.QuestionSet{}, err
	}
	log.Printf("question load failed for %s/%s, substituting fallback set: %v", subjectCode, examCode, err)
	set, ferr := e.fallback.LoadQuestionSet(ctx, subjectCode, examCode)
	if ferr != nil {
		return domain.QuestionSet{}, err
	}
	set.Source = domain.SourceFallback
	return set, nil
}

// shuffledQuestions reorders a copy. Sources hand out slices whose backing
// array is shared with cache entries and other live sessions, so the
// original order must stay untouched.
func shuffledQuestions(questions []domain.Question) []domain.Question {
	out := append([]domain.Question(nil), questions...)
	rand.Shuffle(len(out), func(i, j int) {
		out[i], out[j] = out[j], out[i]
	})
	return out
}

func (e *Engine) session(key domain.SessionKey) (*Session, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	s, ok := e.sessions[key.String()]
	return s, ok
}

// CurrentQuestion returns the question at the session's current index.
func (e *Engine) CurrentQuestion(key domain.SessionKey) (QuestionView, error) {
	s, ok := e.session(key)
	if !ok {
		return QuestionView{}, domain.ErrSessionNotFound
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.questionViewLocked(s.state.CurrentIndex), nil
}

// SelectAnswer records a label for a question: replace for single-choice,
// toggle for multi-choice. State is persisted before returning.
func (e *Engine) SelectAnswer(ctx context.Context, key domain.SessionKey, questionID, label string) (QuestionView, error) {
	s, ok := e.session(key)
	if !ok {
		return QuestionView{}, domain.ErrSessionNotFound
	}
	s.mu.Lock()
	idx, q, err := s.findQuestionLocked(questionID)
	if err != nil {
		s.mu.Unlock()
		return QuestionView{}, err
	}
	offered := false
	for _, a := range q.Answers {
		if a == label {
			offered = true
			break
		}
	}
	if !offered {
		s.mu.Unlock()
		return QuestionView{}, domain.ErrAnswerNotOffered
	}

	if q.Correct.Multiple() {
		current := s.state.SelectedAnswers[questionID]
		toggled := make([]string, 0, len(current)+1)
		removed := false
		for _, l := range current {
			if l == label {
				removed = true
				continue
			}
			toggled = append(toggled, l)
		}
		if !removed {
			toggled = append(toggled, label)
		}
		s.state.SelectedAnswers[questionID] = toggled
	} else {
		s.state.SelectedAnswers[questionID] = []string{label}
	}
	s.touch(e.now())
	view := s.questionViewLocked(idx)
	s.mu.Unlock()

	e.persist(ctx, s)
	return view, nil
}

// Advance moves to the next question. At the last index it does not move;
// it reports atEnd so the caller can start the finalize flow instead.
func (e *Engine) Advance(ctx context.Context, key domain.SessionKey) (QuestionView, bool, error) {
	s, ok := e.session(key)
	if !ok {
		return QuestionView{}, false, domain.ErrSessionNotFound
	}
	s.mu.Lock()
	if s.state.CurrentIndex >= len(s.set.Questions)-1 {
		view := s.questionViewLocked(s.state.CurrentIndex)
		s.mu.Unlock()
		return view, true, nil
	}
	s.state.CurrentIndex++
	s.touch(e.now())
	view := s.questionViewLocked(s.state.CurrentIndex)
	s.mu.Unlock()

	e.persist(ctx, s)
	return view, false, nil
}

// Retreat moves to the previous question, clamped at the first.
func (e *Engine) Retreat(ctx context.Context, key domain.SessionKey) (QuestionView, error) {
	s, ok := e.session(key)
	if !ok {
		return QuestionView{}, domain.ErrSessionNotFound
	}
	s.mu.Lock()
	if s.state.CurrentIndex > 0 {
		s.state.CurrentIndex--
		s.touch(e.now())
	}
	view := s.questionViewLocked(s.state.CurrentIndex)
	s.mu.Unlock()

	e.persist(ctx, s)
	return view, nil
}

// CheckAnswer marks the question as checked and returns its evaluation.
func (e *Engine) CheckAnswer(ctx context.Context, key domain.SessionKey, questionID string) (domain.Evaluation, error) {
	s, ok := e.session(key)
	if !ok {
		return domain.Evaluation{}, domain.ErrSessionNotFound
	}
	s.mu.Lock()
	_, q, err := s.findQuestionLocked(questionID)
	if err != nil {
		s.mu.Unlock()
		return domain.Evaluation{}, err
	}
	s.state.CompletedQuestions[questionID] = true
	s.touch(e.now())
	eval := Evaluate(q, s.state.SelectedAnswers[questionID])
	s.mu.Unlock()

	e.persist(ctx, s)
	return eval, nil
}

// Tick decrements the remaining time by one second. It is a no-op for
// untimed or already submitted sessions. Reaching zero starts the forced
// submission flow: immediate submit when every question is checked,
// otherwise the incomplete-submission confirmation.
func (e *Engine) Tick(ctx context.Context, key domain.SessionKey) (int, bool, error) {
	s, ok := e.session(key)
	if !ok {
		return 0, false, domain.ErrSessionNotFound
	}
	s.mu.Lock()
	if !s.state.Timed || s.submit == SubmitSubmitted || s.state.TimeRemaining <= 0 {
		remaining := s.state.TimeRemaining
		s.mu.Unlock()
		return remaining, false, nil
	}
	remaining := s.state.TimeRemaining - 1
	s.mu.Unlock()

	e.setRemaining(key, remaining)
	return remaining, remaining <= 0, nil
}

// setRemaining is the single sink for countdown progress; zero triggers
// the expiry flow.
func (e *Engine) setRemaining(key domain.SessionKey, remaining int) {
	s, ok := e.session(key)
	if !ok {
		return
	}
	s.mu.Lock()
	if s.submit == SubmitSubmitted || s.closed {
		s.mu.Unlock()
		return
	}
	if remaining < 0 {
		remaining = 0
	}
	s.state.TimeRemaining = remaining
	s.touch(e.now())
	complete := s.state.CompletedCount() >= len(s.set.Questions)
	s.mu.Unlock()

	e.persist(context.Background(), s)

	if remaining > 0 {
		s.broadcast(Event{Type: EventTick, Remaining: remaining})
		return
	}
	s.stopCountdown()
	if complete {
		if _, err := e.Finalize(context.Background(), key, true); err != nil {
			log.Printf("forced submit failed for %s: %v", key, err)
		}
		return
	}
	s.broadcast(Event{
		Type:    EventConfirmRequired,
		Message: "time is up with unchecked questions; confirm to submit anyway",
	})
}

// RecordProctorEvent appends an observation to the session's proctor log.
// Events are purely observational and never affect scoring. The count of
// recorded events is returned so clients can show a running warning.
func (e *Engine) RecordProctorEvent(key domain.SessionKey, kind domain.ProctorKind, detail string) (int, error) {
	s, ok := e.session(key)
	if !ok {
		return 0, domain.ErrSessionNotFound
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.proctorLog) < maxProctorEvents {
		s.proctorLog = append(s.proctorLog, domain.ProctorEvent{
			Kind:   kind,
			Detail: detail,
			At:     e.now(),
		})
	}
	return len(s.proctorLog), nil
}

// ProctorLog returns a copy of the recorded proctor events.
func (e *Engine) ProctorLog(key domain.SessionKey) ([]domain.ProctorEvent, error) {
	s, ok := e.session(key)
	if !ok {
		return nil, domain.ErrSessionNotFound
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]domain.ProctorEvent, len(s.proctorLog))
	copy(out, s.proctorLog)
	return out, nil
}

// Finalize scores the session locally and runs the submission pipeline.
// Without force it refuses while unchecked questions remain, so both the
// expired timer and a manual submit pass the same confirmation gate.
// Persisted state is cleared whether or not the server-side save worked.
func (e *Engine) Finalize(ctx context.Context, key domain.SessionKey, force bool) (QuizResult, error) {
	s, ok := e.session(key)
	if !ok {
		return QuizResult{}, domain.ErrSessionNotFound
	}

	s.mu.Lock()
	switch s.submit {
	case SubmitSubmitting:
		s.mu.Unlock()
		return QuizResult{}, domain.ErrSubmitInFlight
	case SubmitSubmitted:
		s.mu.Unlock()
		return QuizResult{}, domain.ErrAlreadySubmitted
	}
	if !force && s.state.CompletedCount() < len(s.set.Questions) {
		s.mu.Unlock()
		return QuizResult{}, domain.ErrIncompleteAnswers
	}
	s.submit = SubmitSubmitting
	questions := s.set.Questions
	quiz := s.set.Quiz
	answers := make(map[string][]string, len(s.state.SelectedAnswers))
	for id, labels := range s.state.SelectedAnswers {
		answers[id] = append([]string(nil), labels...)
	}
	s.mu.Unlock()

	s.stopCountdown()

	result := QuizResult{Score: Score(questions, answers)}
	result.Submission = e.pipeline.run(ctx, key.UserID, quiz, answers)

	// Teardown happens regardless of how the server call went: a later
	// visit starts clean and already-shown results are never resurrected.
	if err := e.store.Clear(ctx, key); err != nil {
		log.Printf("session clear failed for %s: %v", key, err)
	}

	// A failed pipeline still ends the session; a later visit starts fresh.
	s.mu.Lock()
	s.submit = SubmitSubmitted
	s.mu.Unlock()

	if result.Submission.SaveError != "" {
		s.broadcast(Event{Type: EventWarning, Message: result.Submission.SaveError})
	}
	s.broadcast(Event{Type: EventResults, Results: &result})
	return result, nil
}

// Subscribe returns a channel of session events. The cancel function must
// be called to release the subscription.
func (e *Engine) Subscribe(key domain.SessionKey) (<-chan Event, func(), error) {
	s, ok := e.session(key)
	if !ok {
		return nil, nil, domain.ErrSessionNotFound
	}
	ch := make(chan Event, 16)
	s.mu.Lock()
	s.subscribers[ch] = struct{}{}
	s.mu.Unlock()

	cancel := func() {
		s.mu.Lock()
		if _, ok := s.subscribers[ch]; ok {
			delete(s.subscribers, ch)
			close(ch)
		}
		s.mu.Unlock()
	}
	return ch, cancel, nil
}

// Close drops the in-memory session and stops its timers. Persisted state
// survives (unless the session was finalized), so the user can resume.
func (e *Engine) Close(key domain.SessionKey) {
	e.mu.Lock()
	s, ok := e.sessions[key.String()]
	if ok {
		delete(e.sessions, key.String())
	}
	e.mu.Unlock()
	if !ok {
		return
	}
	s.stopCountdown()
	s.mu.Lock()
	s.closed = true
	for ch := range s.subscribers {
		delete(s.subscribers, ch)
		close(ch)
	}
	s.mu.Unlock()
}

// SweepIdle closes sessions untouched for longer than maxIdle and returns
// how many were dropped. Their persisted state stays restorable.
func (e *Engine) SweepIdle(maxIdle time.Duration) int {
	cutoff := e.now().Add(-maxIdle)

	e.mu.RLock()
	stale := make([]domain.SessionKey, 0)
	for _, s := range e.sessions {
		s.mu.Lock()
		if s.lastTouched.Before(cutoff) {
			stale = append(stale, s.key)
		}
		s.mu.Unlock()
	}
	e.mu.RUnlock()

	for _, key := range stale {
		e.Close(key)
	}
	if len(stale) > 0 {
		log.Printf("swept %d idle quiz sessions", len(stale))
	}
	return len(stale)
}

// View returns the current session snapshot.
func (e *Engine) View(key domain.SessionKey) (SessionView, error) {
	s, ok := e.session(key)
	if !ok {
		return SessionView{}, domain.ErrSessionNotFound
	}
	return e.viewOf(s, true), nil
}

func (e *Engine) viewOf(s *Session, resumed bool) SessionView {
	s.mu.Lock()
	defer s.mu.Unlock()
	completed := make([]string, 0, len(s.state.CompletedQuestions))
	for id, done := range s.state.CompletedQuestions {
		if done {
			completed = append(completed, id)
		}
	}
	selected := make(map[string][]string, len(s.state.SelectedAnswers))
	for id, labels := range s.state.SelectedAnswers {
		selected[id] = append([]string(nil), labels...)
	}
	return SessionView{
		Quiz:               s.set.Quiz,
		Source:             s.set.Source,
		QuestionCount:      len(s.set.Questions),
		CurrentIndex:       s.state.CurrentIndex,
		SelectedAnswers:    selected,
		CompletedQuestions: completed,
		TimeRemaining:      s.state.TimeRemaining,
		Timed:              s.state.Timed,
		Resumed:            resumed,
	}
}

// persist saves a snapshot of the session state. Storage errors must not
// crash the active session; they are logged and surfaced as a warning.
func (e *Engine) persist(ctx context.Context, s *Session) {
	s.mu.Lock()
	// Once submission starts, the stored record is on its way out; a save
	// racing the clear would resurrect a finished quiz on the next visit.
	if s.submit == SubmitSubmitting || s.submit == SubmitSubmitted {
		s.mu.Unlock()
		return
	}
	snapshot := s.state.Clone()
	key := s.key
	s.mu.Unlock()

	if err := e.store.Save(ctx, key, snapshot); err != nil {
		log.Printf("session save failed for %s: %v", key, err)
		s.broadcast(Event{Type: EventWarning, Message: "progress could not be saved"})
	}
}

func (s *Session) touch(now time.Time) {
	s.lastTouched = now
	s.state.UpdatedAt = now
}

func (s *Session) findQuestionLocked(questionID string) (int, domain.Question, error) {
	for i, q := range s.set.Questions {
		if q.ID == questionID {
			return i, q, nil
		}
	}
	return 0, domain.Question{}, domain.ErrQuestionNotFound
}

func (s *Session) questionViewLocked(idx int) QuestionView {
	if idx < 0 || idx >= len(s.set.Questions) {
		return QuestionView{Index: idx}
	}
	q := s.set.Questions[idx]
	return QuestionView{
		ID:       q.ID,
		Index:    idx,
		Text:     q.Text,
		Answers:  append([]string(nil), q.Answers...),
		Points:   q.Points,
		Image:    q.Image,
		Multiple: q.Correct.Multiple(),
		Selected: append([]string(nil), s.state.SelectedAnswers[q.ID]...),
		Checked:  s.state.CompletedQuestions[q.ID],
	}
}

func (s *Session) stopCountdown() bool {
	s.mu.Lock()
	c := s.countdown
	s.countdown = nil
	s.mu.Unlock()
	if c == nil {
		return false
	}
	c.Stop()
	return true
}

func (s *Session) broadcast(ev Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for ch := range s.subscribers {
		select {
		case ch <- ev:
		default:
			// Drop the oldest pending event rather than block the session
			// on a slow client.
			select {
			case <-ch:
			default:
			}
			ch <- ev
		}
	}
}
