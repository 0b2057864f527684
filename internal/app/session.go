package app

import (
	"math"
	"sync"
	"time"

	"rangeday-service/internal/domain"
)

// Session is the short-lived in-memory record of one game in progress.
// The owner is captured once at creation and never re-resolved, so a
// mid-session login cannot reattribute answers already submitted.
type Session struct {
	id          string
	ownerID     string // empty for anonymous play
	displayName string
	day         time.Time
	questionIDs []string
	createdAt   time.Time
	now         func() time.Time

	mu      sync.Mutex
	state   domain.SessionState
	answers map[string]domain.Answer
}

func newSession(id, ownerID, displayName string, day time.Time, questionIDs []string, now func() time.Time) *Session {
	return &Session{
		id:          id,
		ownerID:     ownerID,
		displayName: displayName,
		day:         day,
		questionIDs: questionIDs,
		createdAt:   now(),
		now:         now,
		state:       domain.SessionCreated,
		answers:     make(map[string]domain.Answer),
	}
}

// NewSession is exported for infrastructure layers that need to seed
// sessions outside the service (stores, tests).
func NewSession(id, ownerID, displayName string, day time.Time, questionIDs []string) *Session {
	return newSession(id, ownerID, displayName, day, questionIDs, time.Now)
}

// ID returns the session's opaque identifier.
func (s *Session) ID() string { return s.id }

// submit validates and records one answer, replacing any earlier answer for
// the same question. Submissions are serialized per session by the lock.
func (s *Session) submit(questionID string, lower, upper float64) error {
	if math.IsNaN(lower) || math.IsInf(lower, 0) {
		return &domain.ValidationError{Field: "lower", Reason: "must be a finite number"}
	}
	if math.IsNaN(upper) || math.IsInf(upper, 0) {
		return &domain.ValidationError{Field: "upper", Reason: "must be a finite number"}
	}
	if lower > upper {
		return &domain.ValidationError{Field: "bounds", Reason: "lower exceeds upper"}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state == domain.SessionFinalized {
		return domain.ErrSessionFinalized
	}
	if !s.hasQuestion(questionID) {
		return domain.ErrQuestionNotFound
	}
	s.answers[questionID] = domain.Answer{
		QuestionID:  questionID,
		Lower:       lower,
		Upper:       upper,
		SubmittedAt: s.now(),
	}
	s.state = domain.SessionAnswering
	return nil
}

func (s *Session) hasQuestion(questionID string) bool {
	for _, id := range s.questionIDs {
		if id == questionID {
			return true
		}
	}
	return false
}

// snapshot copies the answer set for grading without holding the lock
// during I/O.
func (s *Session) snapshot() (map[string]domain.Answer, domain.SessionState) {
	s.mu.Lock()
	defer s.mu.Unlock()
	answers := make(map[string]domain.Answer, len(s.answers))
	for id, a := range s.answers {
		answers[id] = a
	}
	return answers, s.state
}

// finalizeOnce transitions to the terminal state. Exactly one caller wins;
// the rest get ErrSessionFinalized, which is what keeps finalize side
// effects from double-counting.
func (s *Session) finalizeOnce() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == domain.SessionFinalized {
		return domain.ErrSessionFinalized
	}
	s.state = domain.SessionFinalized
	return nil
}
