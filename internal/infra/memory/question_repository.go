package memory

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"rangeday-service/internal/domain"
)

// QuestionLoader fetches the day's question set from a backing store.
type QuestionLoader interface {
	LoadDailyQuestions(ctx context.Context, date time.Time) ([]domain.Question, error)
	LoadQuestion(ctx context.Context, id string) (domain.Question, bool, error)
}

// QuestionRepository caches daily question sets with TTL to avoid repeated
// store hits; the daily set is immutable for the whole day anyway.
type QuestionRepository struct {
	loader QuestionLoader
	ttl    time.Duration
	clock  func() time.Time
	sf     singleflight.Group
	rnd    *rand.Rand

	mu    sync.RWMutex
	cache map[string]cachedDay
}

type cachedDay struct {
	questions []domain.Question
	expiresAt time.Time
}

func NewQuestionRepository(loader QuestionLoader, ttl time.Duration) *QuestionRepository {
	return &QuestionRepository{
		loader: loader,
		ttl:    ttl,
		clock:  time.Now,
		rnd:    rand.New(rand.NewSource(time.Now().UnixNano())),
		cache:  make(map[string]cachedDay),
	}
}

func (r *QuestionRepository) DailyQuestions(ctx context.Context, date time.Time) ([]domain.Question, error) {
	key := domain.DayKey(date)
	now := r.clock()

	r.mu.RLock()
	if entry, ok := r.cache[key]; ok && entry.expiresAt.After(now) {
		r.mu.RUnlock()
		return entry.questions, nil
	}
	r.mu.RUnlock()

	result, err, _ := r.sf.Do(key, func() (interface{}, error) {
		now := r.clock()
		r.mu.RLock()
		if entry, ok := r.cache[key]; ok && entry.expiresAt.After(now) {
			r.mu.RUnlock()
			return entry.questions, nil
		}
		r.mu.RUnlock()

		questions, err := r.loader.LoadDailyQuestions(ctx, date)
		if err != nil {
			return nil, err
		}

		r.mu.Lock()
		r.cache[key] = cachedDay{
			questions: questions,
			expiresAt: now.Add(r.ttlWithJitter()),
		}
		r.mu.Unlock()
		return questions, nil
	})
	if err != nil {
		return nil, err
	}
	return result.([]domain.Question), nil
}

// QuestionByID prefers today's cached set before falling through to the loader.
func (r *QuestionRepository) QuestionByID(ctx context.Context, id string) (domain.Question, bool, error) {
	now := r.clock()
	r.mu.RLock()
	for _, entry := range r.cache {
		if !entry.expiresAt.After(now) {
			continue
		}
		for _, q := range entry.questions {
			if q.ID == id {
				r.mu.RUnlock()
				return q, true, nil
			}
		}
	}
	r.mu.RUnlock()
	return r.loader.LoadQuestion(ctx, id)
}

func (r *QuestionRepository) ttlWithJitter() time.Duration {
	if r.ttl <= 0 {
		return 0
	}
	// up to 10% jitter to spread expirations
	jitterMax := int64(r.ttl) / 10
	return r.ttl + time.Duration(r.rnd.Int63n(jitterMax+1))
}

// StaticQuestionLoader serves a fixed bank with the deterministic daily
// pick (useful for tests/demos and the no-database start mode).
type StaticQuestionLoader struct {
	bank   []domain.Question
	perDay int
	byID   map[string]domain.Question
}

func NewStaticQuestionLoader(bank []domain.Question, perDay int) *StaticQuestionLoader {
	byID := make(map[string]domain.Question, len(bank))
	for _, q := range bank {
		byID[q.ID] = q
	}
	return &StaticQuestionLoader{bank: bank, perDay: perDay, byID: byID}
}

func (l *StaticQuestionLoader) LoadDailyQuestions(_ context.Context, date time.Time) ([]domain.Question, error) {
	picked := domain.DailyPick(l.bank, date, l.perDay)
	if len(picked) == 0 {
		return nil, domain.ErrNoQuestions
	}
	return picked, nil
}

func (l *StaticQuestionLoader) LoadQuestion(_ context.Context, id string) (domain.Question, bool, error) {
	q, ok := l.byID[id]
	return q, ok, nil
}
