package redis

import (
	"context"
	"encoding/json"
	"math/rand"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"

	"rangeday-service/internal/domain"
	"rangeday-service/internal/infra/memory"
)

// QuestionRepository caches each day's question set in Redis and falls back
// to a loader on miss. The set is stored as one JSON blob per date key:
// SET game:questions:{yyyy-mm-dd} [...]. True values live in the cache, so
// it is trusted server-side storage, never exposed to clients directly.
type QuestionRepository struct {
	client *redis.Client
	loader memory.QuestionLoader
	ttl    time.Duration
	sf     singleflight.Group
	rnd    *rand.Rand
}

func NewQuestionRepository(client *redis.Client, loader memory.QuestionLoader, ttl time.Duration) *QuestionRepository {
	return &QuestionRepository{
		client: client,
		loader: loader,
		ttl:    ttl,
		rnd:    rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

func (r *QuestionRepository) DailyQuestions(ctx context.Context, date time.Time) ([]domain.Question, error) {
	key := r.dayKey(date)

	if cached, err := r.client.Get(ctx, key).Bytes(); err == nil {
		var questions []domain.Question
		if err := json.Unmarshal(cached, &questions); err == nil && len(questions) > 0 {
			return questions, nil
		}
	}

	result, err, _ := r.sf.Do(key, func() (interface{}, error) {
		// Re-check in case another goroutine filled the cache.
		if cached, err := r.client.Get(ctx, key).Bytes(); err == nil {
			var questions []domain.Question
			if err := json.Unmarshal(cached, &questions); err == nil && len(questions) > 0 {
				return questions, nil
			}
		}

		questions, err := r.loader.LoadDailyQuestions(ctx, date)
		if err != nil {
			return nil, err
		}

		if data, err := json.Marshal(questions); err == nil {
			_ = r.client.Set(ctx, key, data, r.ttlWithJitter()).Err()
		}
		return questions, nil
	})
	if err != nil {
		return nil, err
	}
	return result.([]domain.Question), nil
}

// QuestionByID checks today's cached set before hitting the loader; finalize
// resolves the same ids the session started with.
func (r *QuestionRepository) QuestionByID(ctx context.Context, id string) (domain.Question, bool, error) {
	key := r.dayKey(time.Now())
	if cached, err := r.client.Get(ctx, key).Bytes(); err == nil {
		var questions []domain.Question
		if err := json.Unmarshal(cached, &questions); err == nil {
			for _, q := range questions {
				if q.ID == id {
					return q, true, nil
				}
			}
		}
	}
	return r.loader.LoadQuestion(ctx, id)
}

func (r *QuestionRepository) dayKey(date time.Time) string {
	return "game:questions:" + domain.DayKey(date)
}

func (r *QuestionRepository) ttlWithJitter() time.Duration {
	if r.ttl <= 0 {
		return 0
	}
	jitterMax := int64(r.ttl) / 10
	return r.ttl + time.Duration(r.rnd.Int63n(jitterMax+1))
}
