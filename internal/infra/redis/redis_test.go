package redis

import (
	"context"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"rangeday-service/internal/app"
	"rangeday-service/internal/domain"
	"rangeday-service/internal/infra/memory"
)

func newClient(t *testing.T) (*redis.Client, *miniredis.Miniredis) {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("run miniredis: %v", err)
	}
	t.Cleanup(mr.Close)
	return redis.NewClient(&redis.Options{Addr: mr.Addr()}), mr
}

func TestSessionStoreSetsAndClearsKeys(t *testing.T) {
	client, mr := newClient(t)
	store := NewSessionStore(client, time.Minute)

	day := time.Date(2025, time.June, 10, 0, 0, 0, 0, time.UTC)
	store.Put(app.NewSession("s1", "u1", "Alice", day, []string{"q1"}))
	if !mr.Exists("game:session:s1") {
		t.Fatalf("expected liveness key to be set")
	}

	if _, ok := store.Get("s1"); !ok {
		t.Fatalf("expected session present")
	}

	store.Delete("s1")
	if mr.Exists("game:session:s1") {
		t.Fatalf("expected liveness key removed")
	}
	if _, ok := store.Get("s1"); ok {
		t.Fatalf("expected session removed")
	}
}

func TestSessionStoreHonorsRedisExpiry(t *testing.T) {
	client, mr := newClient(t)
	store := NewSessionStore(client, time.Minute)

	day := time.Date(2025, time.June, 10, 0, 0, 0, 0, time.UTC)
	store.Put(app.NewSession("s1", "u1", "Alice", day, []string{"q1"}))

	mr.FastForward(2 * time.Minute)
	if _, ok := store.Get("s1"); ok {
		t.Fatalf("expected session evicted after TTL")
	}
}

func TestQuestionRepositoryCachesInRedis(t *testing.T) {
	client, _ := newClient(t)

	bank := []domain.Question{
		{ID: "q1", Prompt: "Height of Everest?", Unit: "meters", Answer: 8849},
		{ID: "q2", Prompt: "Distance to the Moon?", Unit: "kilometers", Answer: 384400},
		{ID: "q3", Prompt: "Length of the Amazon?", Unit: "kilometers", Answer: 6400},
	}
	loader := &countingLoader{QuestionLoader: memory.NewStaticQuestionLoader(bank, 3)}
	repo := NewQuestionRepository(client, loader, time.Minute)
	day := time.Date(2025, time.June, 10, 0, 0, 0, 0, time.UTC)

	first, err := repo.DailyQuestions(context.Background(), day)
	if err != nil {
		t.Fatalf("daily questions: %v", err)
	}
	if len(first) != 3 {
		t.Fatalf("expected 3 questions, got %d", len(first))
	}
	if loader.calls != 1 {
		t.Fatalf("expected loader called once, got %d", loader.calls)
	}

	second, err := repo.DailyQuestions(context.Background(), day)
	if err != nil {
		t.Fatalf("daily questions 2: %v", err)
	}
	if loader.calls != 1 {
		t.Fatalf("expected redis cache hit, loader calls=%d", loader.calls)
	}
	for i := range first {
		if first[i].ID != second[i].ID || first[i].Answer != second[i].Answer {
			t.Fatalf("cached set differs: %+v vs %+v", first, second)
		}
	}
}

type countingLoader struct {
	memory.QuestionLoader
	calls int
}

func (l *countingLoader) LoadDailyQuestions(ctx context.Context, date time.Time) ([]domain.Question, error) {
	l.calls++
	return l.QuestionLoader.LoadDailyQuestions(ctx, date)
}
