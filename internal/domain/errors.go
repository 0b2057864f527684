package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrSessionNotFound is returned when a session id is unknown or expired.
	ErrSessionNotFound = errors.New("game session not found")
	// ErrSessionFinalized is returned on answer or finalize attempts against
	// a session already in its terminal state.
	ErrSessionFinalized = errors.New("game session already finalized")
	// ErrQuestionNotFound indicates a question id is unknown or not part of the session.
	ErrQuestionNotFound = errors.New("question not found")
	// ErrNoQuestions indicates the question bank has nothing published for the day.
	ErrNoQuestions = errors.New("no questions available for date")
	// ErrVersionConflict signals a lost optimistic-concurrency race on the
	// user aggregate row; callers should re-read and retry.
	ErrVersionConflict = errors.New("user aggregate version conflict")
)

// ValidationError reports malformed input. No side effects have happened
// when one is returned.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// ConsistencyError means finalize found a question without an answer or an
// answer without a question. The whole finalize call fails; nothing is
// persisted for the session.
type ConsistencyError struct {
	SessionID  string
	QuestionID string
	Missing    string
}

func (e *ConsistencyError) Error() string {
	return fmt.Sprintf("session %s: question %s has no %s", e.SessionID, e.QuestionID, e.Missing)
}
