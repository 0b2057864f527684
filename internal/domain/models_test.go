package domain

import (
	"testing"
	"time"
)

func testBank() []Question {
	return []Question{
		{ID: "q-e", Answer: 5},
		{ID: "q-a", Answer: 1},
		{ID: "q-d", Answer: 4},
		{ID: "q-b", Answer: 2},
		{ID: "q-c", Answer: 3},
	}
}

func TestDailyPickDeterministic(t *testing.T) {
	date := time.Date(2025, 6, 10, 0, 0, 0, 0, time.UTC)
	first := DailyPick(testBank(), date, 3)
	second := DailyPick(testBank(), date, 3)
	if len(first) != 3 {
		t.Fatalf("expected 3 questions, got %d", len(first))
	}
	for i := range first {
		if first[i].ID != second[i].ID {
			t.Fatalf("pick not stable at %d: %s vs %s", i, first[i].ID, second[i].ID)
		}
	}
}

func TestDailyPickIgnoresBankOrder(t *testing.T) {
	date := time.Date(2025, 6, 10, 0, 0, 0, 0, time.UTC)
	shuffled := []Question{
		{ID: "q-c", Answer: 3},
		{ID: "q-b", Answer: 2},
		{ID: "q-e", Answer: 5},
		{ID: "q-a", Answer: 1},
		{ID: "q-d", Answer: 4},
	}
	a := DailyPick(testBank(), date, 3)
	b := DailyPick(shuffled, date, 3)
	for i := range a {
		if a[i].ID != b[i].ID {
			t.Fatalf("pick depends on bank order at %d: %s vs %s", i, a[i].ID, b[i].ID)
		}
	}
}

func TestDailyPickSameUTCDayDifferentClocks(t *testing.T) {
	morning := time.Date(2025, 6, 10, 0, 30, 0, 0, time.UTC)
	evening := time.Date(2025, 6, 10, 23, 30, 0, 0, time.UTC)
	a := DailyPick(testBank(), morning, 3)
	b := DailyPick(testBank(), evening, 3)
	for i := range a {
		if a[i].ID != b[i].ID {
			t.Fatalf("pick varies within one UTC day at %d", i)
		}
	}
}

func TestDailyPickVariesAcrossDates(t *testing.T) {
	bank := testBank()
	base := DailyPick(bank, time.Date(2025, 6, 10, 0, 0, 0, 0, time.UTC), 5)
	varied := false
	for day := 11; day <= 20; day++ {
		other := DailyPick(bank, time.Date(2025, 6, day, 0, 0, 0, 0, time.UTC), 5)
		for i := range base {
			if base[i].ID != other[i].ID {
				varied = true
			}
		}
	}
	if !varied {
		t.Fatal("expected the daily set to change over ten days")
	}
}

func TestDailyPickEdges(t *testing.T) {
	date := time.Date(2025, 6, 10, 0, 0, 0, 0, time.UTC)
	if got := DailyPick(nil, date, 3); got != nil {
		t.Fatalf("empty bank should yield nil, got %v", got)
	}
	if got := DailyPick(testBank(), date, 0); got != nil {
		t.Fatalf("n=0 should yield nil, got %v", got)
	}
	if got := DailyPick(testBank(), date, 10); len(got) != 5 {
		t.Fatalf("n beyond bank should clamp, got %d", len(got))
	}
}

func TestDayKeyAndStartOfDay(t *testing.T) {
	loc := time.FixedZone("UTC+9", 9*3600)
	late := time.Date(2025, 6, 11, 3, 0, 0, 0, loc) // 2025-06-10 18:00 UTC
	if got := DayKey(late); got != "2025-06-10" {
		t.Fatalf("DayKey ignored the zone offset: %s", got)
	}
	start := StartOfDay(late)
	if !start.Equal(time.Date(2025, 6, 10, 0, 0, 0, 0, time.UTC)) {
		t.Fatalf("unexpected start of day: %v", start)
	}
}
