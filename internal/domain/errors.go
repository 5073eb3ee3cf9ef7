package domain

import "errors"

var (
	// ErrQuizNotFound indicates the quiz content could not be loaded.
	ErrQuizNotFound = errors.New("quiz not found")
	// ErrSessionNotFound is returned when no session is open for the key.
	ErrSessionNotFound = errors.New("quiz session not found")
	// ErrQuestionNotFound indicates a question ID is not part of the set.
	ErrQuestionNotFound = errors.New("question not found")
	// ErrAnswerNotOffered indicates a label outside the question's options.
	ErrAnswerNotOffered = errors.New("answer label not offered by question")
	// ErrIncompleteAnswers gates submission while unchecked questions remain;
	// callers must confirm before retrying with force.
	ErrIncompleteAnswers = errors.New("not all questions checked")
	// ErrSubmitInFlight rejects a re-entrant submit while one is running.
	ErrSubmitInFlight = errors.New("submission already in flight")
	// ErrAlreadySubmitted is returned once a session has been finalized.
	ErrAlreadySubmitted = errors.New("session already submitted")
)
