package schedule

import (
	"errors"
	"fmt"
	"time"

	"github.com/derekprior/standings/internal/config"
)

// ErrNoSeason is returned when the season has no start date configured.
var ErrNoSeason = errors.New("season start_date is not configured")

// Slot is the match night assigned to a league week.
type Slot struct {
	Week int
	At   time.Time
}

// BlackoutSlot is a match night that was skipped, with the reason.
type BlackoutSlot struct {
	Date   time.Time
	Reason string
}

// GenerateSlots places weeks 1 through weeks on the calendar. Week 1 is the
// first match day on or after the season start; blacked-out match days push
// later weeks back by one match day.
func GenerateSlots(season config.Season, weeks int) ([]Slot, error) {
	slots, _, err := walkSeason(season, weeks)
	return slots, err
}

// GenerateBlackoutSlots returns the match days skipped while placing weeks
// 1 through weeks.
func GenerateBlackoutSlots(season config.Season, weeks int) ([]BlackoutSlot, error) {
	_, skipped, err := walkSeason(season, weeks)
	return skipped, err
}

// SlotForWeek returns the match night of a single week.
func SlotForWeek(season config.Season, week int) (time.Time, error) {
	if week < 1 {
		return time.Time{}, fmt.Errorf("week must be at least 1, got %d", week)
	}
	slots, err := GenerateSlots(season, week)
	if err != nil {
		return time.Time{}, err
	}
	return slots[week-1].At, nil
}

func walkSeason(season config.Season, weeks int) ([]Slot, []BlackoutSlot, error) {
	if season.StartDate.IsZero() {
		return nil, nil, ErrNoSeason
	}
	day, err := season.Weekday()
	if err != nil {
		return nil, nil, err
	}
	hour, minute, err := season.Clock()
	if err != nil {
		return nil, nil, err
	}

	blackouts := make(map[time.Time]string)
	for _, b := range season.BlackoutDates {
		blackouts[dateOnly(b.Date.Time)] = b.Reason
	}

	d := dateOnly(season.StartDate.Time)
	for d.Weekday() != day {
		d = d.AddDate(0, 0, 1)
	}

	var slots []Slot
	var skipped []BlackoutSlot
	for len(slots) < weeks {
		if reason, ok := blackouts[d]; ok {
			skipped = append(skipped, BlackoutSlot{Date: d, Reason: reason})
			d = d.AddDate(0, 0, 7)
			continue
		}
		at := time.Date(d.Year(), d.Month(), d.Day(), hour, minute, 0, 0, time.Local)
		slots = append(slots, Slot{Week: len(slots) + 1, At: at})
		d = d.AddDate(0, 0, 7)
	}
	return slots, skipped, nil
}

func dateOnly(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
