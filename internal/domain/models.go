package domain

import "time"

// Source tells callers whether question content is real or substituted.
type Source string

const (
	SourceLive     Source = "live"
	SourceFallback Source = "fallback"
)

// CorrectAnswer is the answer key of a question, resolved once at
// normalization time. It is either undefined (unscorable question),
// a single label, or a set of labels (multi-answer question).
type CorrectAnswer struct {
	labels []string
}

// SingleAnswer builds a single-choice answer key.
func SingleAnswer(label string) CorrectAnswer {
	if label == "" {
		return CorrectAnswer{}
	}
	return CorrectAnswer{labels: []string{label}}
}

// MultipleAnswer builds an answer key from a set of labels, dropping
// empties and duplicates while preserving order.
func MultipleAnswer(labels ...string) CorrectAnswer {
	seen := make(map[string]struct{}, len(labels))
	out := make([]string, 0, len(labels))
	for _, label := range labels {
		if label == "" {
			continue
		}
		if _, ok := seen[label]; ok {
			continue
		}
		seen[label] = struct{}{}
		out = append(out, label)
	}
	return CorrectAnswer{labels: out}
}

// Defined reports whether the question has an answer key at all.
func (c CorrectAnswer) Defined() bool { return len(c.labels) > 0 }

// Multiple reports whether more than one label must be selected.
func (c CorrectAnswer) Multiple() bool { return len(c.labels) > 1 }

// Count returns the number of correct labels.
func (c CorrectAnswer) Count() int { return len(c.labels) }

// Labels returns a copy of the correct labels.
func (c CorrectAnswer) Labels() []string {
	out := make([]string, len(c.labels))
	copy(out, c.labels)
	return out
}

// Contains reports whether label is part of the answer key.
func (c CorrectAnswer) Contains(label string) bool {
	for _, l := range c.labels {
		if l == label {
			return true
		}
	}
	return false
}

// Question is the normalized form every source produces.
type Question struct {
	ID      string
	Text    string
	Answers []string
	Correct CorrectAnswer
	Points  int
	Image   string
}

// Answerable reports whether the question offers any options to pick.
func (q Question) Answerable() bool { return len(q.Answers) > 0 }

// Scorable reports whether the question counts toward the total score.
func (q Question) Scorable() bool { return q.Correct.Defined() }

// QuizInfo is the metadata of one exam within a subject.
type QuizInfo struct {
	ID               string `json:"id"`
	SubjectCode      string `json:"subjectCode"`
	ExamCode         string `json:"examCode"`
	Title            string `json:"title"`
	TimeLimitMinutes int    `json:"timeLimitMinutes"`
	Author           string `json:"author"`
	AIGenerated      bool   `json:"aiGenerated"`
}

// QuestionSet bundles quiz metadata with its normalized questions.
// Source marks fallback content so it is never mistaken for live data.
type QuestionSet struct {
	Quiz      QuizInfo
	Questions []Question
	Source    Source
}

// SessionKey identifies one user's run through one exam.
type SessionKey struct {
	UserID      string
	SubjectCode string
	ExamCode    string
}

func (k SessionKey) String() string {
	return k.UserID + ":" + k.SubjectCode + ":" + k.ExamCode
}

// SessionState is the durable per-session record. It is persisted after
// every mutation and restored verbatim on resume.
type SessionState struct {
	CurrentIndex       int                 `json:"currentIndex"`
	SelectedAnswers    map[string][]string `json:"selectedAnswers"`
	CompletedQuestions map[string]bool     `json:"completedQuestions"`
	TimeRemaining      int                 `json:"timeRemaining"`
	Timed              bool                `json:"timed"`
	UpdatedAt          time.Time           `json:"updatedAt"`
}

// NewSessionState returns a fresh state for a quiz with the given timing.
func NewSessionState(timed bool, timeRemaining int) SessionState {
	return SessionState{
		SelectedAnswers:    make(map[string][]string),
		CompletedQuestions: make(map[string]bool),
		Timed:              timed,
		TimeRemaining:      timeRemaining,
	}
}

// Clone deep-copies the state so stores can hand out snapshots safely.
func (s SessionState) Clone() SessionState {
	out := s
	out.SelectedAnswers = make(map[string][]string, len(s.SelectedAnswers))
	for id, labels := range s.SelectedAnswers {
		cp := make([]string, len(labels))
		copy(cp, labels)
		out.SelectedAnswers[id] = cp
	}
	out.CompletedQuestions = make(map[string]bool, len(s.CompletedQuestions))
	for id, v := range s.CompletedQuestions {
		out.CompletedQuestions[id] = v
	}
	return out
}

// CompletedCount returns how many questions the user explicitly checked.
func (s SessionState) CompletedCount() int {
	n := 0
	for _, done := range s.CompletedQuestions {
		if done {
			n++
		}
	}
	return n
}

// Evaluation is the outcome of scoring one question.
type Evaluation struct {
	IsCorrect        bool    `json:"isCorrect"`
	CorrectCount     int     `json:"correctCount"`
	IncorrectCount   int     `json:"incorrectCount"`
	TotalCorrect     int     `json:"totalCorrect"`
	PartialScore     float64 `json:"partialScore"`
	IsMultipleChoice bool    `json:"isMultipleChoice"`
}

// QuestionScore is the per-question line of the final breakdown.
type QuestionScore struct {
	QuestionID   string   `json:"questionId"`
	Selected     []string `json:"selected"`
	Correct      []string `json:"correct"`
	EarnedPoints float64  `json:"earnedPoints"`
	FullScore    int      `json:"fullScore"`
	IsCorrect    bool     `json:"isCorrect"`
}

// ScoreResult aggregates earned points over the scorable questions.
type ScoreResult struct {
	Score      float64         `json:"score"`
	Total      int             `json:"total"`
	Percentage int             `json:"percentage"`
	Breakdown  []QuestionScore `json:"breakdown"`
}

// LeaderboardEntry is one row of a quiz leaderboard.
type LeaderboardEntry struct {
	UserID      string    `json:"userId"`
	DisplayName string    `json:"displayName"`
	Score       float64   `json:"score"`
	Percentage  int       `json:"percentage"`
	FinishedAt  time.Time `json:"finishedAt"`
}

// ProctorKind classifies proctoring observations. They are recorded for
// review only and never influence scoring.
type ProctorKind string

const (
	ProctorMouseLeft   ProctorKind = "mouse_left"
	ProctorCopyAttempt ProctorKind = "copy_attempt"
	ProctorCameraError ProctorKind = "camera_error"
	ProctorCameraReady ProctorKind = "camera_ready"
	ProctorTabSwitched ProctorKind = "tab_switched"
)

// ProctorEvent is one observation from the client-side proctoring layer.
type ProctorEvent struct {
	Kind   ProctorKind `json:"kind"`
	Detail string      `json:"detail,omitempty"`
	At     time.Time   `json:"at"`
}
