// Package stats derives ranks, trends, and leaderboards from the append-only
// response log. All grouping is by UTC calendar date; a local-time boundary
// here would silently shift "today" near midnight.
package stats

import (
	"context"
	"math"
	"sort"
	"time"

	"rangeday-service/internal/domain"
)

// ResponseLog is the read side of the persisted response history.
type ResponseLog interface {
	ByUser(ctx context.Context, userID string) ([]domain.UserResponse, error)
	ByDateRange(ctx context.Context, start, end time.Time) ([]domain.UserResponse, error)
	ByQuestionIDs(ctx context.Context, ids []string, start, end time.Time) ([]domain.UserResponse, error)
}

// AggregateReader resolves display names and games-played counts.
type AggregateReader interface {
	Get(ctx context.Context, userID string) (domain.UserAggregate, bool, error)
}

// Aggregator computes all read-side statistics. It holds no state of its
// own; every call re-derives from the log.
type Aggregator struct {
	log        ResponseLog
	aggregates AggregateReader
	now        func() time.Time
}

func NewAggregator(log ResponseLog, aggregates AggregateReader) *Aggregator {
	return &Aggregator{log: log, aggregates: aggregates, now: time.Now}
}

// NewAggregatorWithClock is test-only for deterministic "today".
func NewAggregatorWithClock(log ResponseLog, aggregates AggregateReader, now func() time.Time) *Aggregator {
	return &Aggregator{log: log, aggregates: aggregates, now: now}
}

// DailyStats ranks today's participants and reports the caller's position.
// CalibrationToday is the lifetime hit ratio, not today's: a single day is
// too small a sample to be meaningful.
func (a *Aggregator) DailyStats(ctx context.Context, userID string) (domain.DailyStats, error) {
	today := domain.StartOfDay(a.now())
	rows, err := a.log.ByDateRange(ctx, today, today.AddDate(0, 0, 1))
	if err != nil {
		return domain.DailyStats{}, err
	}

	totals := sumByUser(rows)
	ranking := rankUsers(totals)

	stats := domain.DailyStats{
		TotalParticipantsToday: len(ranking),
	}
	var sum float64
	for i, r := range ranking {
		sum += r.score
		if r.userID == userID {
			rank := i + 1
			stats.DailyRank = &rank
			stats.YourScoreToday = r.score
		}
	}
	if len(ranking) > 0 {
		stats.TopScoreToday = ranking[0].score
		stats.AverageScoreToday = sum / float64(len(ranking))
	}

	top := ranking
	if len(top) > 5 {
		top = top[:5]
	}
	stats.Leaderboard = make([]domain.DailyLeaderboardRow, 0, len(top))
	for _, r := range top {
		stats.Leaderboard = append(stats.Leaderboard, domain.DailyLeaderboardRow{
			UserID:      r.userID,
			DisplayName: a.displayName(ctx, r.userID),
			Score:       r.score,
		})
	}

	mine, err := a.log.ByUser(ctx, userID)
	if err != nil {
		return domain.DailyStats{}, err
	}
	stats.CalibrationToday = hitRatio(mine)
	return stats, nil
}

// PerformanceHistory returns the user's last n distinct play dates, oldest
// first. Calendar days without play are skipped, not zero-filled. The
// calibration column is the cumulative ratio over everything answered up to
// and including each date.
func (a *Aggregator) PerformanceHistory(ctx context.Context, userID string, n int) ([]domain.PerformanceDay, error) {
	series, err := a.calibrationSeries(ctx, userID)
	if err != nil {
		return nil, err
	}
	if len(series) == 0 || n <= 0 {
		return []domain.PerformanceDay{}, nil
	}
	if len(series) > n {
		series = series[len(series)-n:]
	}

	// One range query covers every date we will report on.
	start := series[0].day
	end := series[len(series)-1].day.AddDate(0, 0, 1)
	everyone, err := a.log.ByDateRange(ctx, start, end)
	if err != nil {
		return nil, err
	}
	meansByDate := dailyMeans(everyone)

	history := make([]domain.PerformanceDay, 0, len(series))
	for _, p := range series {
		history = append(history, domain.PerformanceDay{
			Date:         p.key,
			Weekday:      p.day.Weekday().String()[:3],
			Score:        p.score,
			AverageScore: meansByDate[p.key],
			Calibration:  p.cumulative,
		})
	}
	return history, nil
}

// CalibrationMilestones down-samples the cumulative-calibration trend to at
// most 6 points: always the first and last play date, plus the play dates
// nearest to the four interior fifths of the elapsed span. Fewer than 2
// play dates yields an empty series since no trend is meaningful.
func (a *Aggregator) CalibrationMilestones(ctx context.Context, userID string) ([]domain.Milestone, error) {
	series, err := a.calibrationSeries(ctx, userID)
	if err != nil {
		return nil, err
	}
	if len(series) < 2 {
		return []domain.Milestone{}, nil
	}

	picked := make(map[int]struct{})
	if len(series) <= 5 {
		for i := range series {
			picked[i] = struct{}{}
		}
	} else {
		last := len(series) - 1
		picked[0] = struct{}{}
		picked[last] = struct{}{}
		span := series[last].day.Sub(series[0].day)
		for k := 1; k <= 4; k++ {
			target := series[0].day.Add(span * time.Duration(k) / 5)
			picked[nearestIndex(series, target)] = struct{}{}
		}
	}

	indexes := make([]int, 0, len(picked))
	for i := range picked {
		indexes = append(indexes, i)
	}
	sort.Ints(indexes)

	milestones := make([]domain.Milestone, 0, len(indexes))
	for _, i := range indexes {
		milestones = append(milestones, domain.Milestone{
			Date:        series[i].key,
			Calibration: series[i].cumulative,
		})
	}
	return milestones, nil
}

// OverallLeaderboard ranks every player by their best single-day total and
// returns the top 5, flagging the caller's row if present.
func (a *Aggregator) OverallLeaderboard(ctx context.Context, currentUserID string) ([]domain.OverallRow, error) {
	ranking, err := a.bestDayRanking(ctx)
	if err != nil {
		return nil, err
	}
	if len(ranking) > 5 {
		ranking = ranking[:5]
	}
	rows := make([]domain.OverallRow, 0, len(ranking))
	for i, r := range ranking {
		row := domain.OverallRow{
			Rank:         i + 1,
			UserID:       r.userID,
			DisplayName:  a.displayName(ctx, r.userID),
			BestDayScore: r.score,
			IsYou:        r.userID == currentUserID,
		}
		if agg, ok, err := a.aggregates.Get(ctx, r.userID); err == nil && ok {
			row.GamesPlayed = agg.GamesPlayed
		}
		rows = append(rows, row)
	}
	return rows, nil
}

// OverallStanding reports where a user sits on the best-day ranking as a
// percentile: rank 1 of 100 is 99, last of 100 is 0. A user who has never
// played has no standing.
func (a *Aggregator) OverallStanding(ctx context.Context, userID string) (*domain.Standing, error) {
	ranking, err := a.bestDayRanking(ctx)
	if err != nil {
		return nil, err
	}
	for i, r := range ranking {
		if r.userID == userID {
			total := len(ranking)
			pct := int(math.Round(float64(total-i-1) / float64(total) * 100))
			return &domain.Standing{Percentile: pct, TotalPlayers: total}, nil
		}
	}
	return nil, nil
}

// QuestionTopScorers returns today's single best answer per question, keyed
// by question id. Questions nobody answered today are omitted.
func (a *Aggregator) QuestionTopScorers(ctx context.Context, questionIDs []string) (map[string]domain.TopScorer, error) {
	today := domain.StartOfDay(a.now())
	rows, err := a.log.ByQuestionIDs(ctx, questionIDs, today, today.AddDate(0, 0, 1))
	if err != nil {
		return nil, err
	}

	best := make(map[string]domain.UserResponse)
	for _, r := range rows {
		current, ok := best[r.QuestionID]
		if !ok || r.Score > current.Score ||
			(r.Score == current.Score && r.AnsweredAt.Before(current.AnsweredAt)) {
			best[r.QuestionID] = r
		}
	}

	top := make(map[string]domain.TopScorer, len(best))
	for id, r := range best {
		top[id] = domain.TopScorer{
			QuestionID:  id,
			DisplayName: a.displayName(ctx, r.UserID),
			Score:       r.Score,
			Lower:       r.Lower,
			Upper:       r.Upper,
		}
	}
	return top, nil
}

// calibrationPoint is one distinct play date with the user's per-date score
// and the running hit ratio over everything up to that date.
type calibrationPoint struct {
	key        string
	day        time.Time
	score      float64
	cumulative float64
}

func (a *Aggregator) calibrationSeries(ctx context.Context, userID string) ([]calibrationPoint, error) {
	mine, err := a.log.ByUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	if len(mine) == 0 {
		return nil, nil
	}

	type dayTotals struct {
		score    float64
		answered int
		captured int
	}
	perDay := make(map[string]*dayTotals)
	for _, r := range mine {
		key := domain.DayKey(r.AnsweredAt)
		d, ok := perDay[key]
		if !ok {
			d = &dayTotals{}
			perDay[key] = d
		}
		d.score += r.Score
		d.answered++
		if r.Captured {
			d.captured++
		}
	}

	keys := make([]string, 0, len(perDay))
	for key := range perDay {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	series := make([]calibrationPoint, 0, len(keys))
	answered, captured := 0, 0
	for _, key := range keys {
		d := perDay[key]
		answered += d.answered
		captured += d.captured
		day, err := time.ParseInLocation(domain.DayFormat, key, time.UTC)
		if err != nil {
			return nil, err
		}
		series = append(series, calibrationPoint{
			key:        key,
			day:        day,
			score:      d.score,
			cumulative: float64(captured) / float64(answered) * 100,
		})
	}
	return series, nil
}

type rankedUser struct {
	userID string
	score  float64
}

// bestDayRanking computes every user's personal-best single-day total and
// sorts descending. Not lifetime total: one great day is what counts here.
func (a *Aggregator) bestDayRanking(ctx context.Context) ([]rankedUser, error) {
	all, err := a.log.ByDateRange(ctx, time.Time{}, domain.StartOfDay(a.now()).AddDate(0, 0, 1))
	if err != nil {
		return nil, err
	}

	perUserDay := make(map[string]map[string]float64)
	for _, r := range all {
		days, ok := perUserDay[r.UserID]
		if !ok {
			days = make(map[string]float64)
			perUserDay[r.UserID] = days
		}
		days[domain.DayKey(r.AnsweredAt)] += r.Score
	}

	ranking := make([]rankedUser, 0, len(perUserDay))
	for userID, days := range perUserDay {
		best := 0.0
		for _, total := range days {
			if total > best {
				best = total
			}
		}
		ranking = append(ranking, rankedUser{userID: userID, score: best})
	}
	sortRanking(ranking)
	return ranking, nil
}

func (a *Aggregator) displayName(ctx context.Context, userID string) string {
	if agg, ok, err := a.aggregates.Get(ctx, userID); err == nil && ok && agg.DisplayName != "" {
		return agg.DisplayName
	}
	return userID
}

func sumByUser(rows []domain.UserResponse) map[string]float64 {
	totals := make(map[string]float64)
	for _, r := range rows {
		totals[r.UserID] += r.Score
	}
	return totals
}

func rankUsers(totals map[string]float64) []rankedUser {
	ranking := make([]rankedUser, 0, len(totals))
	for userID, score := range totals {
		ranking = append(ranking, rankedUser{userID: userID, score: score})
	}
	sortRanking(ranking)
	return ranking
}

func sortRanking(ranking []rankedUser) {
	sort.Slice(ranking, func(i, j int) bool {
		if ranking[i].score != ranking[j].score {
			return ranking[i].score > ranking[j].score
		}
		return ranking[i].userID < ranking[j].userID
	})
}

// dailyMeans averages per-user day totals into one mean per date key.
func dailyMeans(rows []domain.UserResponse) map[string]float64 {
	perDayUser := make(map[string]map[string]float64)
	for _, r := range rows {
		key := domain.DayKey(r.AnsweredAt)
		users, ok := perDayUser[key]
		if !ok {
			users = make(map[string]float64)
			perDayUser[key] = users
		}
		users[r.UserID] += r.Score
	}
	means := make(map[string]float64, len(perDayUser))
	for key, users := range perDayUser {
		var sum float64
		for _, total := range users {
			sum += total
		}
		means[key] = sum / float64(len(users))
	}
	return means
}

func nearestIndex(series []calibrationPoint, target time.Time) int {
	bestIdx := 0
	bestDiff := time.Duration(math.MaxInt64)
	for i, p := range series {
		diff := p.day.Sub(target)
		if diff < 0 {
			diff = -diff
		}
		if diff < bestDiff {
			bestDiff = diff
			bestIdx = i
		}
	}
	return bestIdx
}

func hitRatio(rows []domain.UserResponse) float64 {
	if len(rows) == 0 {
		return 0
	}
	captured := 0
	for _, r := range rows {
		if r.Captured {
			captured++
		}
	}
	return float64(captured) / float64(len(rows)) * 100
}
