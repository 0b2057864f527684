package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"rangeday-service/internal/domain"
)

// QuestionLoader reads the published question bank from Postgres and
// applies the deterministic daily pick.
type QuestionLoader struct {
	pool   *pgxpool.Pool
	perDay int
}

func NewQuestionLoader(pool *pgxpool.Pool, perDay int) *QuestionLoader {
	return &QuestionLoader{pool: pool, perDay: perDay}
}

func (l *QuestionLoader) LoadDailyQuestions(ctx context.Context, date time.Time) ([]domain.Question, error) {
	rows, err := l.pool.Query(ctx, `SELECT id, prompt, unit, answer, source FROM questions ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("load question bank: %w", err)
	}
	defer rows.Close()

	var bank []domain.Question
	for rows.Next() {
		var q domain.Question
		if err := rows.Scan(&q.ID, &q.Prompt, &q.Unit, &q.Answer, &q.Source); err != nil {
			return nil, fmt.Errorf("scan question: %w", err)
		}
		bank = append(bank, q)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("read question bank: %w", err)
	}

	picked := domain.DailyPick(bank, date, l.perDay)
	if len(picked) == 0 {
		return nil, domain.ErrNoQuestions
	}
	return picked, nil
}

func (l *QuestionLoader) LoadQuestion(ctx context.Context, id string) (domain.Question, bool, error) {
	var q domain.Question
	err := l.pool.QueryRow(ctx,
		`SELECT id, prompt, unit, answer, source FROM questions WHERE id=$1`, id).
		Scan(&q.ID, &q.Prompt, &q.Unit, &q.Answer, &q.Source)
	if err == pgx.ErrNoRows {
		return domain.Question{}, false, nil
	}
	if err != nil {
		return domain.Question{}, false, fmt.Errorf("load question: %w", err)
	}
	return q, true, nil
}
