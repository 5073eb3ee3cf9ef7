package app

import (
	"context"
	"errors"
	"fmt"
	"log"

	"quiz-session-service/internal/domain"
)

// SubmitState tracks where a session is in the submission pipeline.
type SubmitState int

const (
	SubmitNotStarted SubmitState = iota
	SubmitAttemptOpen
	SubmitSubmitting
	SubmitSubmitted
	SubmitFailed
)

func (s SubmitState) String() string {
	switch s {
	case SubmitNotStarted:
		return "not_started"
	case SubmitAttemptOpen:
		return "attempt_open"
	case SubmitSubmitting:
		return "submitting"
	case SubmitSubmitted:
		return "submitted"
	case SubmitFailed:
		return "submit_failed"
	default:
		return "unknown"
	}
}

// SubmitOutcome reports how the server-side save went. Local results are
// always available regardless of it; SaveError carries the user-facing
// warning when the server-side record may be missing.
type SubmitOutcome struct {
	State       SubmitState               `json:"state"`
	AttemptID   string                    `json:"attemptId,omitempty"`
	Leaderboard []domain.LeaderboardEntry `json:"leaderboard"`
	SaveError   string                    `json:"saveError,omitempty"`
}

// submitPipeline drives NotStarted -> AttemptOpen -> Submitting ->
// Submitted | SubmitFailed for one finalize call. The attempt ID is cached
// per user and quiz, so a retry reuses the open attempt instead of creating
// a duplicate.
type submitPipeline struct {
	attempts AttemptService
	cache    AttemptCache
}

func (p *submitPipeline) run(ctx context.Context, userID string, quiz domain.QuizInfo, answers map[string][]string) SubmitOutcome {
	outcome := SubmitOutcome{State: SubmitNotStarted, Leaderboard: []domain.LeaderboardEntry{}}
	if p.attempts == nil {
		outcome.State = SubmitFailed
		outcome.SaveError = "no attempt backend configured; result kept locally only"
		return outcome
	}

	attemptID, ok, err := p.cache.AttemptID(ctx, userID, quiz.ID)
	if err != nil {
		log.Printf("attempt cache read failed for quiz %s: %v", quiz.ID, err)
		ok = false
	}
	if !ok {
		if quiz.ID == "" {
			// Without a quiz identifier no attempt can ever be opened;
			// reloading metadata is the only way out.
			outcome.State = SubmitFailed
			outcome.SaveError = "quiz identifier unknown; result cannot be saved"
			return outcome
		}
		attemptID, err = p.attempts.StartAttempt(ctx, quiz.ID, userID)
		if err != nil {
			outcome.State = SubmitFailed
			if errors.Is(err, domain.ErrQuizNotFound) {
				outcome.SaveError = "quiz unknown to the server; result cannot be saved"
			} else {
				outcome.SaveError = fmt.Sprintf("could not open attempt: %v", err)
			}
			return outcome
		}
		if err := p.cache.SaveAttemptID(ctx, userID, quiz.ID, attemptID); err != nil {
			log.Printf("attempt cache write failed for quiz %s: %v", quiz.ID, err)
		}
	}
	outcome.State = SubmitAttemptOpen
	outcome.AttemptID = attemptID

	outcome.State = SubmitSubmitting
	if err := p.attempts.SubmitAttempt(ctx, attemptID, answers); err != nil {
		// Non-fatal for the user: local results still render, but the
		// server-side record is considered lost. No automatic retry.
		outcome.State = SubmitFailed
		outcome.SaveError = fmt.Sprintf("answers not saved on server: %v", err)
		return outcome
	}
	outcome.State = SubmitSubmitted

	// Leaderboard is best effort; failure degrades to an empty board.
	if lb, err := p.attempts.LoadLeaderboard(ctx, quiz.ID); err != nil {
		log.Printf("leaderboard fetch failed for quiz %s: %v", quiz.ID, err)
	} else if lb != nil {
		outcome.Leaderboard = lb
	}

	if err := p.cache.ClearAttemptID(ctx, userID, quiz.ID); err != nil {
		log.Printf("attempt cache clear failed for quiz %s: %v", quiz.ID, err)
	}
	return outcome
}
