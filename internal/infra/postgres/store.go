package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/uptrace/bun"

	"rangeday-service/internal/domain"
)

type userResponseRow struct {
	bun.BaseModel `bun:"table:user_responses"`

	ID         int64     `bun:"id,pk,autoincrement"`
	UserID     string    `bun:"user_id,notnull"`
	QuestionID string    `bun:"question_id,notnull"`
	LowerBound float64   `bun:"lower_bound,notnull"`
	UpperBound float64   `bun:"upper_bound,notnull"`
	Score      float64   `bun:"score,notnull"`
	Captured   bool      `bun:"captured,notnull"`
	TrueValue  float64   `bun:"true_value,notnull"`
	AnsweredAt time.Time `bun:"answered_at,notnull"`
}

type userAggregateRow struct {
	bun.BaseModel `bun:"table:user_aggregates"`

	UserID            string     `bun:"user_id,pk"`
	DisplayName       string     `bun:"display_name"`
	TotalScore        float64    `bun:"total_score,notnull"`
	GamesPlayed       int        `bun:"games_played,notnull"`
	QuestionsAnswered int        `bun:"questions_answered,notnull"`
	QuestionsCaptured int        `bun:"questions_captured,notnull"`
	CalibrationRate   float64    `bun:"calibration_rate,notnull"`
	CurrentStreak     int        `bun:"current_streak,notnull"`
	BestStreak        int        `bun:"best_streak,notnull"`
	BestSingleScore   float64    `bun:"best_single_score,notnull"`
	LastPlayedAt      *time.Time `bun:"last_played_at"`
	Version           int64      `bun:"version,notnull"`
}

// ResponseLog persists graded answers to Postgres. Append-only: this store
// exposes no update or delete path.
type ResponseLog struct {
	db *bun.DB
}

func NewResponseLog(db *bun.DB) *ResponseLog {
	return &ResponseLog{db: db}
}

// Append writes a session's responses in one transaction so a failed
// finalize never leaves a partial batch behind.
func (l *ResponseLog) Append(ctx context.Context, responses []domain.UserResponse) error {
	if len(responses) == 0 {
		return nil
	}
	rows := make([]userResponseRow, 0, len(responses))
	for _, r := range responses {
		rows = append(rows, userResponseRow{
			UserID:     r.UserID,
			QuestionID: r.QuestionID,
			LowerBound: r.Lower,
			UpperBound: r.Upper,
			Score:      r.Score,
			Captured:   r.Captured,
			TrueValue:  r.TrueValue,
			AnsweredAt: r.AnsweredAt,
		})
	}
	return l.db.RunInTx(ctx, &sql.TxOptions{}, func(ctx context.Context, tx bun.Tx) error {
		_, err := tx.NewInsert().Model(&rows).Exec(ctx)
		if err != nil {
			return fmt.Errorf("insert responses: %w", err)
		}
		return nil
	})
}

func (l *ResponseLog) ByUser(ctx context.Context, userID string) ([]domain.UserResponse, error) {
	var rows []userResponseRow
	err := l.db.NewSelect().Model(&rows).
		Where("user_id = ?", userID).
		Order("answered_at ASC").
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("query responses by user: %w", err)
	}
	return toResponses(rows), nil
}

func (l *ResponseLog) ByDateRange(ctx context.Context, start, end time.Time) ([]domain.UserResponse, error) {
	var rows []userResponseRow
	err := l.db.NewSelect().Model(&rows).
		Where("answered_at >= ?", start).
		Where("answered_at < ?", end).
		Order("answered_at ASC").
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("query responses by range: %w", err)
	}
	return toResponses(rows), nil
}

func (l *ResponseLog) ByQuestionIDs(ctx context.Context, ids []string, start, end time.Time) ([]domain.UserResponse, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	var rows []userResponseRow
	err := l.db.NewSelect().Model(&rows).
		Where("question_id IN (?)", bun.In(ids)).
		Where("answered_at >= ?", start).
		Where("answered_at < ?", end).
		Order("answered_at ASC").
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("query responses by question: %w", err)
	}
	return toResponses(rows), nil
}

func toResponses(rows []userResponseRow) []domain.UserResponse {
	out := make([]domain.UserResponse, 0, len(rows))
	for _, r := range rows {
		out = append(out, domain.UserResponse{
			UserID:     r.UserID,
			QuestionID: r.QuestionID,
			Lower:      r.LowerBound,
			Upper:      r.UpperBound,
			Score:      r.Score,
			Captured:   r.Captured,
			TrueValue:  r.TrueValue,
			AnsweredAt: r.AnsweredAt,
		})
	}
	return out
}

// AggregateStore keeps the one-row-per-user totals with an optimistic
// version column instead of a blind read-modify-write.
type AggregateStore struct {
	db *bun.DB
}

func NewAggregateStore(db *bun.DB) *AggregateStore {
	return &AggregateStore{db: db}
}

func (s *AggregateStore) Get(ctx context.Context, userID string) (domain.UserAggregate, bool, error) {
	var row userAggregateRow
	err := s.db.NewSelect().Model(&row).Where("user_id = ?", userID).Scan(ctx)
	if err == sql.ErrNoRows {
		return domain.UserAggregate{}, false, nil
	}
	if err != nil {
		return domain.UserAggregate{}, false, fmt.Errorf("query aggregate: %w", err)
	}
	return toAggregate(row), true, nil
}

// Update writes the row only when the caller's version still matches,
// bumping it on success. A vanished row or stale version both surface as
// domain.ErrVersionConflict so the caller can re-read and retry.
func (s *AggregateStore) Update(ctx context.Context, aggregate domain.UserAggregate) error {
	row := fromAggregate(aggregate)
	if aggregate.Version == 0 {
		row.Version = 1
		res, err := s.db.NewInsert().Model(&row).
			On("CONFLICT (user_id) DO NOTHING").
			Exec(ctx)
		if err != nil {
			return fmt.Errorf("insert aggregate: %w", err)
		}
		if affected, _ := res.RowsAffected(); affected == 0 {
			return domain.ErrVersionConflict
		}
		return nil
	}

	row.Version = aggregate.Version + 1
	res, err := s.db.NewUpdate().Model(&row).
		WherePK().
		Where("version = ?", aggregate.Version).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("update aggregate: %w", err)
	}
	if affected, _ := res.RowsAffected(); affected == 0 {
		return domain.ErrVersionConflict
	}
	return nil
}

func toAggregate(row userAggregateRow) domain.UserAggregate {
	return domain.UserAggregate{
		UserID:            row.UserID,
		DisplayName:       row.DisplayName,
		TotalScore:        row.TotalScore,
		GamesPlayed:       row.GamesPlayed,
		QuestionsAnswered: row.QuestionsAnswered,
		QuestionsCaptured: row.QuestionsCaptured,
		CalibrationRate:   row.CalibrationRate,
		CurrentStreak:     row.CurrentStreak,
		BestStreak:        row.BestStreak,
		BestSingleScore:   row.BestSingleScore,
		LastPlayedAt:      row.LastPlayedAt,
		Version:           row.Version,
	}
}

func fromAggregate(a domain.UserAggregate) userAggregateRow {
	return userAggregateRow{
		UserID:            a.UserID,
		DisplayName:       a.DisplayName,
		TotalScore:        a.TotalScore,
		GamesPlayed:       a.GamesPlayed,
		QuestionsAnswered: a.QuestionsAnswered,
		QuestionsCaptured: a.QuestionsCaptured,
		CalibrationRate:   a.CalibrationRate,
		CurrentStreak:     a.CurrentStreak,
		BestStreak:        a.BestStreak,
		BestSingleScore:   a.BestSingleScore,
		LastPlayedAt:      a.LastPlayedAt,
		Version:           a.Version,
	}
}
