package schedule

import (
	"errors"
	"testing"
	"time"

	"github.com/derekprior/standings/internal/config"
)

func date(y, m, d int) config.Date {
	return config.Date{Time: time.Date(y, time.Month(m), d, 0, 0, 0, 0, time.UTC)}
}

func testSeason() config.Season {
	return config.Season{
		StartDate: date(2026, 4, 6), // Monday
		MatchDay:  "wednesday",
		MatchTime: "19:30",
		BlackoutDates: []config.BlackoutDate{
			{Date: date(2026, 4, 22), Reason: "Gym closed"},
			{Date: date(2026, 4, 23), Reason: "Not a match day"},
		},
	}
}

func TestGenerateSlots(t *testing.T) {
	slots, err := GenerateSlots(testSeason(), 4)
	if err != nil {
		t.Fatalf("GenerateSlots() error: %v", err)
	}

	t.Run("one slot per week", func(t *testing.T) {
		if len(slots) != 4 {
			t.Fatalf("got %d slots, want 4", len(slots))
		}
		for i, s := range slots {
			if s.Week != i+1 {
				t.Errorf("slot %d has week %d", i, s.Week)
			}
		}
	})

	t.Run("all on the match day and time", func(t *testing.T) {
		for _, s := range slots {
			if s.At.Weekday() != time.Wednesday {
				t.Errorf("week %d on %s, want Wednesday", s.Week, s.At.Weekday())
			}
			if s.At.Hour() != 19 || s.At.Minute() != 30 {
				t.Errorf("week %d at %s, want 19:30", s.Week, s.At.Format("15:04"))
			}
		}
	})

	t.Run("blackout pushes later weeks back", func(t *testing.T) {
		want := []string{"2026-04-08", "2026-04-15", "2026-04-29", "2026-05-06"}
		for i, s := range slots {
			if got := s.At.Format("2006-01-02"); got != want[i] {
				t.Errorf("week %d = %s, want %s", s.Week, got, want[i])
			}
		}
	})
}

func TestGenerateBlackoutSlots(t *testing.T) {
	skipped, err := GenerateBlackoutSlots(testSeason(), 4)
	if err != nil {
		t.Fatalf("GenerateBlackoutSlots() error: %v", err)
	}
	if len(skipped) != 1 {
		t.Fatalf("got %d skipped days, want 1 (non match days are ignored)", len(skipped))
	}
	if skipped[0].Reason != "Gym closed" || skipped[0].Date.Format("2006-01-02") != "2026-04-22" {
		t.Errorf("skipped = %+v", skipped[0])
	}
}

func TestSlotForWeek(t *testing.T) {
	at, err := SlotForWeek(testSeason(), 3)
	if err != nil {
		t.Fatalf("SlotForWeek() error: %v", err)
	}
	if at.Format("2006-01-02 15:04") != "2026-04-29 19:30" {
		t.Errorf("week 3 = %s, want 2026-04-29 19:30", at.Format("2006-01-02 15:04"))
	}

	if _, err := SlotForWeek(testSeason(), 0); err == nil {
		t.Error("expected error for week 0")
	}
}

func TestGenerateSlotsWithoutSeason(t *testing.T) {
	season := testSeason()
	season.StartDate = config.Date{}
	if _, err := GenerateSlots(season, 2); !errors.Is(err, ErrNoSeason) {
		t.Errorf("error = %v, want ErrNoSeason", err)
	}

	season = testSeason()
	season.MatchDay = "someday"
	if _, err := GenerateSlots(season, 2); err == nil {
		t.Error("expected error for an invalid match day")
	}
}

func TestGenerateSlotsStartOnMatchDay(t *testing.T) {
	season := testSeason()
	season.StartDate = date(2026, 4, 8)
	slots, err := GenerateSlots(season, 1)
	if err != nil {
		t.Fatalf("GenerateSlots() error: %v", err)
	}
	if got := slots[0].At.Format("2006-01-02"); got != "2026-04-08" {
		t.Errorf("week 1 = %s, want 2026-04-08", got)
	}
}
