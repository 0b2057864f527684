package app

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"rangeday-service/internal/domain"
	"rangeday-service/internal/scoring"
	"rangeday-service/internal/streak"
)

// historyLength is how many play dates the finalize payload looks back over.
const historyLength = 10

// aggregateRetries bounds optimistic-concurrency retries on the user row.
const aggregateRetries = 3

// SessionStore abstracts where live sessions are kept (in-memory, Redis-backed).
// Implementations evict sessions after a TTL; sessions are short-lived by design.
type SessionStore interface {
	Put(session *Session)
	Get(id string) (*Session, bool)
	Delete(id string)
}

// QuestionRepository serves the deterministic per-date question set.
type QuestionRepository interface {
	DailyQuestions(ctx context.Context, date time.Time) ([]domain.Question, error)
	QuestionByID(ctx context.Context, id string) (domain.Question, bool, error)
}

// ResponseAppender is the write side of the response log. The slice is one
// logical batch: a session's responses land together or not at all.
type ResponseAppender interface {
	Append(ctx context.Context, responses []domain.UserResponse) error
}

// AggregateStore reads and rewrites the per-user running totals. Update must
// fail with domain.ErrVersionConflict when the row changed underneath.
type AggregateStore interface {
	Get(ctx context.Context, userID string) (domain.UserAggregate, bool, error)
	Update(ctx context.Context, aggregate domain.UserAggregate) error
}

// StatsProvider is the read-side enrichment consulted after finalize.
type StatsProvider interface {
	DailyStats(ctx context.Context, userID string) (domain.DailyStats, error)
	PerformanceHistory(ctx context.Context, userID string, n int) ([]domain.PerformanceDay, error)
	CalibrationMilestones(ctx context.Context, userID string) ([]domain.Milestone, error)
	OverallLeaderboard(ctx context.Context, currentUserID string) ([]domain.OverallRow, error)
	OverallStanding(ctx context.Context, userID string) (*domain.Standing, error)
	QuestionTopScorers(ctx context.Context, questionIDs []string) (map[string]domain.TopScorer, error)
}

// GameService owns the session lifecycle: start, answer, finalize.
type GameService struct {
	sessions   SessionStore
	questions  QuestionRepository
	responses  ResponseAppender
	aggregates AggregateStore
	stats      StatsProvider
	feed       *Feed
	logger     *zap.Logger
	now        func() time.Time
}

func NewGameService(sessions SessionStore, questions QuestionRepository, responses ResponseAppender,
	aggregates AggregateStore, stats StatsProvider, feed *Feed, logger *zap.Logger) *GameService {
	return &GameService{
		sessions:   sessions,
		questions:  questions,
		responses:  responses,
		aggregates: aggregates,
		stats:      stats,
		feed:       feed,
		logger:     logger,
		now:        time.Now,
	}
}

// WithClock is test-only for deterministic timestamps.
func (s *GameService) WithClock(now func() time.Time) *GameService {
	s.now = now
	return s
}

// Start creates a session for today's question set. The owner id may be
// empty for anonymous play; it is captured here and never re-resolved.
// Returned stubs carry no true values.
func (s *GameService) Start(ctx context.Context, ownerID, displayName string) (domain.StartResult, error) {
	day := domain.StartOfDay(s.now())
	questions, err := s.questions.DailyQuestions(ctx, day)
	if err != nil {
		return domain.StartResult{}, fmt.Errorf("load daily questions: %w", err)
	}
	if len(questions) == 0 {
		return domain.StartResult{}, domain.ErrNoQuestions
	}

	ids := make([]string, 0, len(questions))
	stubs := make([]domain.QuestionStub, 0, len(questions))
	for _, q := range questions {
		ids = append(ids, q.ID)
		stubs = append(stubs, q.Stub())
	}

	session := newSession(uuid.NewString(), ownerID, displayName, day, ids, s.now)
	s.sessions.Put(session)

	return domain.StartResult{SessionID: session.ID(), Questions: stubs}, nil
}

// SubmitAnswer validates and buffers one answer. Resubmitting a question
// replaces the earlier answer.
func (s *GameService) SubmitAnswer(ctx context.Context, sessionID, questionID string, lower, upper float64) error {
	session, ok := s.sessions.Get(sessionID)
	if !ok {
		return domain.ErrSessionNotFound
	}
	return session.submit(questionID, lower, upper)
}

// Finalize grades the session, persists responses for owned sessions,
// updates the user aggregate, and enriches the result with statistics.
// It is guarded against double invocation: the terminal state transition
// happens exactly once, before any side effect.
func (s *GameService) Finalize(ctx context.Context, sessionID string) (domain.FinalizeResult, error) {
	session, ok := s.sessions.Get(sessionID)
	if !ok {
		return domain.FinalizeResult{}, domain.ErrSessionNotFound
	}

	answers, _ := session.snapshot()

	// Build every judgement before touching any store: a missing question or
	// answer fails the whole call with nothing persisted.
	judgements := make([]domain.Judgement, 0, len(session.questionIDs))
	scores := make([]float64, 0, len(session.questionIDs))
	hits := 0
	for _, id := range session.questionIDs {
		question, found, err := s.questions.QuestionByID(ctx, id)
		if err != nil {
			return domain.FinalizeResult{}, fmt.Errorf("load question %s: %w", id, err)
		}
		if !found {
			return domain.FinalizeResult{}, &domain.ConsistencyError{SessionID: sessionID, QuestionID: id, Missing: "question"}
		}
		answer, answered := answers[id]
		if !answered {
			return domain.FinalizeResult{}, &domain.ConsistencyError{SessionID: sessionID, QuestionID: id, Missing: "answer"}
		}

		hit := scoring.InBounds(answer.Lower, answer.Upper, question.Answer)
		score := scoring.Score(answer.Lower, answer.Upper, question.Answer)
		if hit {
			hits++
		}
		scores = append(scores, score)
		judgements = append(judgements, domain.Judgement{
			QuestionID: question.ID,
			Prompt:     question.Prompt,
			Unit:       question.Unit,
			Source:     question.Source,
			Lower:      answer.Lower,
			Upper:      answer.Upper,
			TrueValue:  question.Answer,
			Hit:        hit,
			Score:      score,
		})
	}
	total := scoring.TotalScore(scores)

	if err := session.finalizeOnce(); err != nil {
		return domain.FinalizeResult{}, err
	}

	result := domain.FinalizeResult{
		Judgements:     judgements,
		Score:          total,
		TotalQuestions: len(judgements),
	}

	// Anonymous sessions see their outcome but leave no trace.
	if session.ownerID == "" {
		return result, nil
	}

	answeredAt := s.now()
	responses := make([]domain.UserResponse, 0, len(judgements))
	for _, j := range judgements {
		responses = append(responses, domain.UserResponse{
			UserID:     session.ownerID,
			QuestionID: j.QuestionID,
			Lower:      j.Lower,
			Upper:      j.Upper,
			Score:      j.Score,
			Captured:   j.Hit,
			TrueValue:  j.TrueValue,
			AnsweredAt: answeredAt,
		})
	}
	if err := s.responses.Append(ctx, responses); err != nil {
		return domain.FinalizeResult{}, fmt.Errorf("append responses: %w", err)
	}

	// Best-effort from here on: the player already has judgements and the
	// total, which is everything they need to see their outcome.
	if err := s.updateAggregate(ctx, session, total, hits, len(judgements), answeredAt); err != nil {
		s.logger.Warn("aggregate update failed",
			zap.String("userId", session.ownerID),
			zap.Error(err))
	}

	s.enrich(ctx, session, &result)
	return result, nil
}

// updateAggregate applies the session to the user's running totals with an
// optimistic-concurrency retry loop.
func (s *GameService) updateAggregate(ctx context.Context, session *Session, total float64, hits, answered int, playedAt time.Time) error {
	var lastErr error
	for attempt := 0; attempt < aggregateRetries; attempt++ {
		agg, found, err := s.aggregates.Get(ctx, session.ownerID)
		if err != nil {
			return err
		}
		if !found {
			agg = domain.UserAggregate{UserID: session.ownerID}
		}
		if session.displayName != "" {
			agg.DisplayName = session.displayName
		}

		next := streak.Next(agg.LastPlayedAt, playedAt, agg.CurrentStreak, agg.BestStreak)
		agg.CurrentStreak = next.Current
		agg.BestStreak = next.Best

		agg.TotalScore += total
		agg.GamesPlayed++
		agg.QuestionsAnswered += answered
		agg.QuestionsCaptured += hits
		if agg.QuestionsAnswered > 0 {
			agg.CalibrationRate = float64(agg.QuestionsCaptured) / float64(agg.QuestionsAnswered)
		}
		if total > agg.BestSingleScore {
			agg.BestSingleScore = total
		}
		playedCopy := playedAt
		agg.LastPlayedAt = &playedCopy

		lastErr = s.aggregates.Update(ctx, agg)
		if lastErr == nil {
			return nil
		}
		if !errors.Is(lastErr, domain.ErrVersionConflict) {
			return lastErr
		}
	}
	return lastErr
}

// enrich runs the statistics reads concurrently. Each is independently
// best-effort: a failed read logs and leaves its field empty.
func (s *GameService) enrich(ctx context.Context, session *Session, result *domain.FinalizeResult) {
	userID := session.ownerID
	var wg sync.WaitGroup

	run := func(name string, fn func() error) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := fn(); err != nil {
				s.logger.Warn("stats enrichment failed",
					zap.String("query", name),
					zap.String("userId", userID),
					zap.Error(err))
			}
		}()
	}

	var topScorers map[string]domain.TopScorer
	run("dailyStats", func() error {
		stats, err := s.stats.DailyStats(ctx, userID)
		if err != nil {
			return err
		}
		result.DailyStats = &stats
		return nil
	})
	run("performanceHistory", func() error {
		history, err := s.stats.PerformanceHistory(ctx, userID, historyLength)
		if err != nil {
			return err
		}
		result.PerformanceHistory = history
		return nil
	})
	run("calibrationMilestones", func() error {
		milestones, err := s.stats.CalibrationMilestones(ctx, userID)
		if err != nil {
			return err
		}
		result.CalibrationMilestones = milestones
		return nil
	})
	run("overallLeaderboard", func() error {
		rows, err := s.stats.OverallLeaderboard(ctx, userID)
		if err != nil {
			return err
		}
		result.OverallLeaderboard = rows
		return nil
	})
	run("overallStanding", func() error {
		standing, err := s.stats.OverallStanding(ctx, userID)
		if err != nil {
			return err
		}
		result.OverallStanding = standing
		return nil
	})
	run("questionTopScorers", func() error {
		top, err := s.stats.QuestionTopScorers(ctx, session.questionIDs)
		if err != nil {
			return err
		}
		topScorers = top
		return nil
	})
	wg.Wait()

	for i := range result.Judgements {
		if top, ok := topScorers[result.Judgements[i].QuestionID]; ok {
			scorer := top
			result.Judgements[i].TopScorer = &scorer
		}
	}

	if result.DailyStats != nil && s.feed != nil {
		s.feed.Publish(domain.DailyLeaderboard{
			Date:      domain.DayKey(s.now()),
			Rows:      result.DailyStats.Leaderboard,
			UpdatedAt: s.now(),
		})
	}
}

// OverallLeaderboard serves the session-independent leaderboard read path.
func (s *GameService) OverallLeaderboard(ctx context.Context, currentUserID string) ([]domain.OverallRow, error) {
	return s.stats.OverallLeaderboard(ctx, currentUserID)
}

// BestGuesses returns today's top answer per daily question, in the day's
// question order. Unanswered questions are omitted.
func (s *GameService) BestGuesses(ctx context.Context) ([]domain.TopScorer, error) {
	day := domain.StartOfDay(s.now())
	questions, err := s.questions.DailyQuestions(ctx, day)
	if err != nil {
		return nil, fmt.Errorf("load daily questions: %w", err)
	}
	ids := make([]string, 0, len(questions))
	for _, q := range questions {
		ids = append(ids, q.ID)
	}
	top, err := s.stats.QuestionTopScorers(ctx, ids)
	if err != nil {
		return nil, err
	}
	best := make([]domain.TopScorer, 0, len(top))
	for _, id := range ids {
		if scorer, ok := top[id]; ok {
			best = append(best, scorer)
		}
	}
	return best, nil
}

// Feed exposes the live leaderboard hub for the websocket transport.
func (s *GameService) Feed() *Feed {
	return s.feed
}
