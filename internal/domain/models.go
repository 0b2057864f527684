package domain

import (
	"hash/fnv"
	"math/rand"
	"sort"
	"time"
)

// DayFormat is the canonical key for grouping anything by UTC calendar date.
const DayFormat = "2006-01-02"

// DayKey returns the UTC calendar-date key for a timestamp.
func DayKey(t time.Time) string {
	return t.UTC().Format(DayFormat)
}

// StartOfDay truncates a timestamp to midnight UTC.
func StartOfDay(t time.Time) time.Time {
	u := t.UTC()
	return time.Date(u.Year(), u.Month(), u.Day(), 0, 0, 0, 0, time.UTC)
}

// Question is one estimation prompt with its true numeric value.
// Immutable once published; supplied by the question store, never edited here.
type Question struct {
	ID     string  `json:"id"`
	Prompt string  `json:"prompt"`
	Unit   string  `json:"unit"`
	Answer float64 `json:"answer"`
	Source string  `json:"source"`
}

// QuestionStub is the client-safe view of a question: no true value.
type QuestionStub struct {
	ID     string `json:"id"`
	Prompt string `json:"prompt"`
	Unit   string `json:"unit"`
}

// Stub strips the answer for pre-finalize exposure.
func (q Question) Stub() QuestionStub {
	return QuestionStub{ID: q.ID, Prompt: q.Prompt, Unit: q.Unit}
}

// DailyPick deterministically selects n questions for a UTC date from a
// published bank. The same bank and date always yield the same ordered set.
func DailyPick(bank []Question, date time.Time, n int) []Question {
	if len(bank) == 0 || n <= 0 {
		return nil
	}
	sorted := make([]Question, len(bank))
	copy(sorted, bank)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].ID < sorted[j].ID })

	h := fnv.New64a()
	h.Write([]byte(DayKey(date)))
	rnd := rand.New(rand.NewSource(int64(h.Sum64())))
	rnd.Shuffle(len(sorted), func(i, j int) {
		sorted[i], sorted[j] = sorted[j], sorted[i]
	})

	if n > len(sorted) {
		n = len(sorted)
	}
	return sorted[:n]
}

// Answer is one submitted interval for a question. Lower <= Upper is
// enforced at submission time.
type Answer struct {
	QuestionID  string    `json:"questionId"`
	Lower       float64   `json:"lower"`
	Upper       float64   `json:"upper"`
	SubmittedAt time.Time `json:"submittedAt"`
}

// SessionState is the tagged lifecycle state of a game session.
type SessionState int

const (
	SessionCreated SessionState = iota
	SessionAnswering
	SessionFinalized
)

func (s SessionState) String() string {
	switch s {
	case SessionCreated:
		return "created"
	case SessionAnswering:
		return "answering"
	case SessionFinalized:
		return "finalized"
	}
	return "unknown"
}

// Judgement is the graded outcome of one answered question, produced only
// at finalize. Prompt, unit, and source are copied in for display.
type Judgement struct {
	QuestionID string     `json:"questionId"`
	Prompt     string     `json:"prompt"`
	Unit       string     `json:"unit"`
	Source     string     `json:"source"`
	Lower      float64    `json:"lower"`
	Upper      float64    `json:"upper"`
	TrueValue  float64    `json:"trueValue"`
	Hit        bool       `json:"hit"`
	Score      float64    `json:"score"`
	TopScorer  *TopScorer `json:"topScorer,omitempty"`
}

// UserResponse is the append-only persisted record of one graded answer.
// TrueValue is denormalized so later question edits cannot rewrite history.
type UserResponse struct {
	UserID     string    `json:"userId"`
	QuestionID string    `json:"questionId"`
	Lower      float64   `json:"lowerBound"`
	Upper      float64   `json:"upperBound"`
	Score      float64   `json:"score"`
	Captured   bool      `json:"captured"`
	TrueValue  float64   `json:"trueValue"`
	AnsweredAt time.Time `json:"answeredAt"`
}

// UserAggregate is the one-row-per-user running total, rewritten once per
// finalized session through an optimistic-concurrency update.
type UserAggregate struct {
	UserID            string     `json:"userId"`
	DisplayName       string     `json:"displayName"`
	TotalScore        float64    `json:"totalScore"`
	GamesPlayed       int        `json:"gamesPlayed"`
	QuestionsAnswered int        `json:"questionsAnswered"`
	QuestionsCaptured int        `json:"questionsCaptured"`
	CalibrationRate   float64    `json:"calibrationRate"`
	CurrentStreak     int        `json:"currentStreak"`
	BestStreak        int        `json:"bestStreak"`
	BestSingleScore   float64    `json:"bestSingleScore"`
	LastPlayedAt      *time.Time `json:"lastPlayedAt,omitempty"`
	Version           int64      `json:"-"`
}

// DailyLeaderboardRow is one entry in today's score table.
type DailyLeaderboardRow struct {
	UserID      string  `json:"userId"`
	DisplayName string  `json:"displayName"`
	Score       float64 `json:"score"`
}

// DailyStats is the "today" block returned with a finalized session.
/// CalibrationToday is deliberately the lifetime ratio: a per-day ratio over
// three questions is too noisy to mean anything.
type DailyStats struct {
	DailyRank              *int                  `json:"dailyRank"`
	TotalParticipantsToday int                   `json:"totalParticipantsToday"`
	TopScoreToday          float64               `json:"topScoreToday"`
	AverageScoreToday      float64               `json:"averageScoreToday"`
	YourScoreToday         float64               `json:"yourScoreToday"`
	CalibrationToday       float64               `json:"calibrationToday"`
	Leaderboard            []DailyLeaderboardRow `json:"leaderboard"`
}

// PerformanceDay is one entry of a user's play-date history.
type PerformanceDay struct {
	Date         string  `json:"date"`
	Weekday      string  `json:"weekday"`
	Score        float64 `json:"score"`
	AverageScore float64 `json:"averageScore"`
	Calibration  float64 `json:"calibration"`
}

// Milestone is one sampled point of the cumulative-calibration trend.
type Milestone struct {
	Date        string  `json:"date"`
	Calibration float64 `json:"calibration"`
}

// OverallRow ranks a player by their best single-day total score.
type OverallRow struct {
	Rank         int     `json:"rank"`
	UserID       string  `json:"userId"`
	DisplayName  string  `json:"displayName"`
	BestDayScore float64 `json:"bestDayScore"`
	GamesPlayed  int     `json:"gamesPlayed"`
	IsYou        bool    `json:"isYou,omitempty"`
}

// Standing is a user's percentile position on the overall leaderboard.
type Standing struct {
	Percentile   int `json:"percentile"`
	TotalPlayers int `json:"totalPlayers"`
}

// TopScorer is today's best answer for one question.
type TopScorer struct {
	QuestionID  string  `json:"questionId"`
	DisplayName string  `json:"displayName"`
	Score       float64 `json:"score"`
	Lower       float64 `json:"lower"`
	Upper       float64 `json:"upper"`
}

// DailyLeaderboard is the feed payload pushed to live subscribers.
type DailyLeaderboard struct {
	Date      string                `json:"date"`
	Rows      []DailyLeaderboardRow `json:"rows"`
	UpdatedAt time.Time             `json:"updatedAt"`
}

// StartResult is the response to starting a session.
type StartResult struct {
	SessionID string         `json:"sessionId"`
	Questions []QuestionStub `json:"questions"`
}

// FinalizeResult carries the judgements plus whatever stats enrichment
// succeeded. Enrichment fields are nil when their read failed.
type FinalizeResult struct {
	Judgements            []Judgement      `json:"judgements"`
	Score                 float64          `json:"score"`
	TotalQuestions        int              `json:"totalQuestions"`
	DailyStats            *DailyStats      `json:"dailyStats,omitempty"`
	PerformanceHistory    []PerformanceDay `json:"performanceHistory,omitempty"`
	CalibrationMilestones []Milestone      `json:"calibrationMilestones,omitempty"`
	OverallLeaderboard    []OverallRow     `json:"overallLeaderboard,omitempty"`
	OverallStanding       *Standing        `json:"overallStanding,omitempty"`
}
