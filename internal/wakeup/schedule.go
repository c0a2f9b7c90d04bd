package wakeup

import (
	"fmt"
	"strings"
	"time"

	"wakeupmusic/internal/config"
)

// DaySchedule holds today's resolved schedule anchored to concrete timestamps
type DaySchedule struct {
	Start   time.Time
	Turnoff *time.Time
}

// parseClockTime parses an "HH:MM" string and anchors it to now's date at
// zero seconds.
func parseClockTime(value string, now time.Time) (time.Time, error) {
	t, err := time.Parse("15:04", value)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid time %q: %w", value, err)
	}
	year, month, day := now.Date()
	return time.Date(year, month, day, t.Hour(), t.Minute(), 0, 0, now.Location()), nil
}

// resolveToday looks up today's schedule entry by weekday name and returns
// the anchored start and optional turnoff time. It returns nil when the day
// is inactive or has no entry, and an error for malformed time strings;
// malformed times are a configuration error and are not retried.
func resolveToday(days map[string]config.DayConfig, now time.Time) (*DaySchedule, error) {
	dayName := strings.ToLower(now.Weekday().String())
	dayConfig, ok := days[dayName]
	if !ok || !dayConfig.Active {
		return nil, nil
	}

	startStr := dayConfig.Start
	if startStr == "" {
		startStr = "06:20"
	}
	start, err := parseClockTime(startStr, now)
	if err != nil {
		return nil, fmt.Errorf("parsing start for %s: %w", dayName, err)
	}

	schedule := &DaySchedule{Start: start}
	if dayConfig.Turnoff != "" {
		turnoff, err := parseClockTime(dayConfig.Turnoff, now)
		if err != nil {
			return nil, fmt.Errorf("parsing turnoff for %s: %w", dayName, err)
		}
		schedule.Turnoff = &turnoff
	}

	return schedule, nil
}
