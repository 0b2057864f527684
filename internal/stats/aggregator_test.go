package stats_test

import (
	"context"
	"fmt"
	"math"
	"testing"
	"time"

	"rangeday-service/internal/domain"
	"rangeday-service/internal/infra/memory"
	"rangeday-service/internal/stats"
)

var testNow = time.Date(2025, time.June, 10, 15, 0, 0, 0, time.UTC)

func newTestAggregator(t *testing.T) (*stats.Aggregator, *memory.ResponseLog, *memory.AggregateStore) {
	t.Helper()
	log := memory.NewResponseLog()
	aggs := memory.NewAggregateStore()
	return stats.NewAggregatorWithClock(log, aggs, func() time.Time { return testNow }), log, aggs
}

func seedResponse(t *testing.T, log *memory.ResponseLog, userID, questionID string, score float64, captured bool, at time.Time) {
	t.Helper()
	err := log.Append(context.Background(), []domain.UserResponse{{
		UserID:     userID,
		QuestionID: questionID,
		Lower:      1,
		Upper:      10,
		Score:      score,
		Captured:   captured,
		TrueValue:  5,
		AnsweredAt: at,
	}})
	if err != nil {
		t.Fatalf("seed response: %v", err)
	}
}

func seedName(t *testing.T, aggs *memory.AggregateStore, userID, name string) {
	t.Helper()
	err := aggs.Update(context.Background(), domain.UserAggregate{UserID: userID, DisplayName: name, GamesPlayed: 1})
	if err != nil {
		t.Fatalf("seed aggregate: %v", err)
	}
}

func TestDailyStatsRanksToday(t *testing.T) {
	ctx := context.Background()
	agg, log, aggs := newTestAggregator(t)
	seedName(t, aggs, "u1", "Alice")
	seedName(t, aggs, "u2", "Bob")

	seedResponse(t, log, "u1", "q1", 100, true, testNow.Add(-2*time.Hour))
	seedResponse(t, log, "u1", "q2", 50, false, testNow.Add(-2*time.Hour))
	seedResponse(t, log, "u2", "q1", 200, true, testNow.Add(-1*time.Hour))
	// Earlier days must not count toward today's rank.
	seedResponse(t, log, "u1", "q3", 900, true, testNow.AddDate(0, 0, -1))
	seedResponse(t, log, "u1", "q4", 10, true, testNow.AddDate(0, 0, -2))

	ds, err := agg.DailyStats(ctx, "u1")
	if err != nil {
		t.Fatalf("daily stats: %v", err)
	}
	if ds.DailyRank == nil || *ds.DailyRank != 2 {
		t.Fatalf("expected rank 2, got %v", ds.DailyRank)
	}
	if ds.TotalParticipantsToday != 2 {
		t.Fatalf("expected 2 participants, got %d", ds.TotalParticipantsToday)
	}
	if ds.TopScoreToday != 200 {
		t.Fatalf("expected top score 200, got %v", ds.TopScoreToday)
	}
	if ds.AverageScoreToday != 175 {
		t.Fatalf("expected mean 175, got %v", ds.AverageScoreToday)
	}
	if ds.YourScoreToday != 150 {
		t.Fatalf("expected own score 150, got %v", ds.YourScoreToday)
	}
	if len(ds.Leaderboard) != 2 || ds.Leaderboard[0].DisplayName != "Bob" {
		t.Fatalf("expected Bob leading, got %+v", ds.Leaderboard)
	}
	// Lifetime ratio, not today's: 3 of u1's 4 responses captured.
	if !closeTo(ds.CalibrationToday, 75) {
		t.Fatalf("expected lifetime calibration 75, got %v", ds.CalibrationToday)
	}
}

func TestDailyStatsEmptyDay(t *testing.T) {
	ctx := context.Background()
	agg, _, _ := newTestAggregator(t)

	ds, err := agg.DailyStats(ctx, "ghost")
	if err != nil {
		t.Fatalf("daily stats: %v", err)
	}
	if ds.DailyRank != nil {
		t.Fatalf("expected nil rank, got %v", *ds.DailyRank)
	}
	if ds.TotalParticipantsToday != 0 {
		t.Fatalf("expected 0 participants, got %d", ds.TotalParticipantsToday)
	}
}

func TestPerformanceHistorySkipsIdleDates(t *testing.T) {
	ctx := context.Background()
	agg, log, _ := newTestAggregator(t)

	// Three play dates with a 4-day hole between the second and third.
	d1 := testNow.AddDate(0, 0, -7)
	d2 := testNow.AddDate(0, 0, -6)
	d3 := testNow.AddDate(0, 0, -2)
	seedResponse(t, log, "u1", "q1", 100, true, d1)
	seedResponse(t, log, "u1", "q2", 0, false, d1)
	seedResponse(t, log, "u1", "q1", 300, true, d2)
	seedResponse(t, log, "u1", "q2", 200, true, d2)
	seedResponse(t, log, "u1", "q1", 50, false, d3)
	seedResponse(t, log, "u1", "q2", 60, true, d3)
	// Another user's play on d2 shifts the mean.
	seedResponse(t, log, "u2", "q1", 100, true, d2)

	history, err := agg.PerformanceHistory(ctx, "u1", 10)
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	if len(history) != 3 {
		t.Fatalf("expected 3 entries, got %d", len(history))
	}
	for i := 1; i < len(history); i++ {
		if history[i].Date <= history[i-1].Date {
			t.Fatalf("history not chronological: %+v", history)
		}
	}
	if history[1].Score != 500 {
		t.Fatalf("expected d2 score 500, got %v", history[1].Score)
	}
	// Mean over u1 (500) and u2 (100) on d2.
	if history[1].AverageScore != 300 {
		t.Fatalf("expected d2 mean 300, got %v", history[1].AverageScore)
	}
	// Cumulative calibration: d1 1/2, d2 3/4, d3 4/6.
	if !closeTo(history[0].Calibration, 50) || !closeTo(history[1].Calibration, 75) || !closeTo(history[2].Calibration, 100.0*4/6) {
		t.Fatalf("cumulative calibration wrong: %+v", history)
	}

	trimmed, err := agg.PerformanceHistory(ctx, "u1", 2)
	if err != nil {
		t.Fatalf("history n=2: %v", err)
	}
	if len(trimmed) != 2 || trimmed[0].Date != history[1].Date {
		t.Fatalf("expected last 2 dates, got %+v", trimmed)
	}
}

func TestCalibrationMilestonesTooFewDates(t *testing.T) {
	ctx := context.Background()
	agg, log, _ := newTestAggregator(t)

	if ms, err := agg.CalibrationMilestones(ctx, "u1"); err != nil || len(ms) != 0 {
		t.Fatalf("no play dates: got %v, %v", ms, err)
	}

	seedResponse(t, log, "u1", "q1", 100, true, testNow.AddDate(0, 0, -1))
	if ms, err := agg.CalibrationMilestones(ctx, "u1"); err != nil || len(ms) != 0 {
		t.Fatalf("single play date: got %v, %v", ms, err)
	}
}

func TestCalibrationMilestonesFewDatesReturnsAll(t *testing.T) {
	ctx := context.Background()
	agg, log, _ := newTestAggregator(t)

	for i := 0; i < 4; i++ {
		seedResponse(t, log, "u1", "q1", 100, i%2 == 0, testNow.AddDate(0, 0, -10+i))
	}
	ms, err := agg.CalibrationMilestones(ctx, "u1")
	if err != nil {
		t.Fatalf("milestones: %v", err)
	}
	if len(ms) != 4 {
		t.Fatalf("expected all 4 dates, got %d", len(ms))
	}
}

func TestCalibrationMilestonesDownsamples(t *testing.T) {
	ctx := context.Background()
	agg, log, _ := newTestAggregator(t)

	var first, last string
	for i := 0; i < 12; i++ {
		at := testNow.AddDate(0, 0, -20+i)
		if i == 0 {
			first = domain.DayKey(at)
		}
		last = domain.DayKey(at)
		seedResponse(t, log, "u1", fmt.Sprintf("q%d", i), 100, true, at)
	}

	ms, err := agg.CalibrationMilestones(ctx, "u1")
	if err != nil {
		t.Fatalf("milestones: %v", err)
	}
	if len(ms) > 6 {
		t.Fatalf("expected at most 6 milestones, got %d", len(ms))
	}
	if ms[0].Date != first || ms[len(ms)-1].Date != last {
		t.Fatalf("first/last play dates must be included: %+v", ms)
	}
	seen := make(map[string]struct{})
	for i, m := range ms {
		if _, dup := seen[m.Date]; dup {
			t.Fatalf("duplicate milestone date %s", m.Date)
		}
		seen[m.Date] = struct{}{}
		if i > 0 && ms[i].Date <= ms[i-1].Date {
			t.Fatalf("milestones not chronological: %+v", ms)
		}
	}
}

func TestOverallLeaderboardUsesBestDay(t *testing.T) {
	ctx := context.Background()
	agg, log, aggs := newTestAggregator(t)
	seedName(t, aggs, "u1", "Alice")
	seedName(t, aggs, "u2", "Bob")

	// u1: two modest days summing higher than the best one. u2: one huge day.
	seedResponse(t, log, "u1", "q1", 400, true, testNow.AddDate(0, 0, -3))
	seedResponse(t, log, "u1", "q1", 450, true, testNow.AddDate(0, 0, -2))
	seedResponse(t, log, "u2", "q1", 500, true, testNow.AddDate(0, 0, -5))
	seedResponse(t, log, "u2", "q2", 100, true, testNow.AddDate(0, 0, -5))

	rows, err := agg.OverallLeaderboard(ctx, "u1")
	if err != nil {
		t.Fatalf("leaderboard: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("expected 2 rows, got %d", len(rows))
	}
	if rows[0].UserID != "u2" || rows[0].BestDayScore != 600 {
		t.Fatalf("expected Bob leading with best day 600, got %+v", rows[0])
	}
	if rows[1].UserID != "u1" || rows[1].BestDayScore != 450 {
		t.Fatalf("expected Alice's best day 450, not her lifetime 850: %+v", rows[1])
	}
	if !rows[1].IsYou || rows[0].IsYou {
		t.Fatalf("caller flag wrong: %+v", rows)
	}
}

func TestOverallStandingPercentiles(t *testing.T) {
	ctx := context.Background()
	agg, log, _ := newTestAggregator(t)

	for i := 1; i <= 10; i++ {
		seedResponse(t, log, fmt.Sprintf("u%d", i), "q1", float64(i*100), true, testNow.AddDate(0, 0, -1))
	}

	top, err := agg.OverallStanding(ctx, "u10")
	if err != nil {
		t.Fatalf("standing: %v", err)
	}
	if top == nil || top.Percentile != 90 || top.TotalPlayers != 10 {
		t.Fatalf("expected 90th percentile of 10, got %+v", top)
	}

	bottom, err := agg.OverallStanding(ctx, "u1")
	if err != nil {
		t.Fatalf("standing: %v", err)
	}
	if bottom == nil || bottom.Percentile != 0 {
		t.Fatalf("expected 0th percentile, got %+v", bottom)
	}

	none, err := agg.OverallStanding(ctx, "never-played")
	if err != nil {
		t.Fatalf("standing: %v", err)
	}
	if none != nil {
		t.Fatalf("expected no standing for a non-player, got %+v", none)
	}
}

func TestQuestionTopScorersTodayOnly(t *testing.T) {
	ctx := context.Background()
	agg, log, aggs := newTestAggregator(t)
	seedName(t, aggs, "u2", "Bob")

	seedResponse(t, log, "u1", "q1", 100, true, testNow.Add(-time.Hour))
	seedResponse(t, log, "u2", "q1", 300, true, testNow.Add(-time.Hour))
	// Yesterday's monster score must not appear.
	seedResponse(t, log, "u3", "q1", 9999, true, testNow.AddDate(0, 0, -1))

	top, err := agg.QuestionTopScorers(ctx, []string{"q1", "q2"})
	if err != nil {
		t.Fatalf("top scorers: %v", err)
	}
	if len(top) != 1 {
		t.Fatalf("unanswered q2 should be omitted, got %+v", top)
	}
	if top["q1"].DisplayName != "Bob" || top["q1"].Score != 300 {
		t.Fatalf("expected Bob's 300 to win, got %+v", top["q1"])
	}
}

func closeTo(got, want float64) bool {
	return math.Abs(got-want) < 1e-9
}
