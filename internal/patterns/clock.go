package patterns

import (
	"time"

	"github.com/jonboulle/clockwork"
)

// clock resolves day-of-month report times against the current month.
var clock = clockwork.NewRealClock()

// SetClock swaps the time source used to resolve report times. Pass nil to
// reset to real time.
func SetClock(c clockwork.Clock) {
	if c == nil {
		clock = clockwork.NewRealClock()
		return
	}
	clock = c
}

// futureSlack is how far ahead of now a resolved time may fall before it
// is assumed to belong to the previous month.
const futureSlack = 24 * time.Hour

// ResolveDayTime turns a report's day-of-month and time into a UTC time in
// the current month, or the previous month when the current one would put
// it in the future. An hour of 24 rolls into the next day. Returns nil when
// the fields are out of range.
func ResolveDayTime(day, hour, minute int) *time.Time {
	if day < 1 || day > 31 || hour < 0 || hour > 24 || minute < 0 || minute > 59 {
		return nil
	}
	now := clock.Now().UTC()

	for _, month := range []time.Month{now.Month(), now.Month() - 1} {
		first := time.Date(now.Year(), month, 1, 0, 0, 0, 0, time.UTC)
		if time.Date(first.Year(), first.Month(), day, 0, 0, 0, 0, time.UTC).Month() != first.Month() {
			continue
		}
		t := time.Date(first.Year(), first.Month(), day, hour, minute, 0, 0, time.UTC)
		if t.After(now.Add(futureSlack)) {
			continue
		}
		return &t
	}
	return nil
}

// anchorSlack is how far before its anchor a later group may fall. An
// amended TAF's validity can start before its issue time.
const anchorSlack = 24 * time.Hour

// ResolveDayTimeAfter resolves a day-of-month and time to the earliest
// matching UTC time no more than anchorSlack before ref. Later groups of
// a report are resolved this way from an earlier one so that a forecast
// never runs backwards across a month boundary.
func ResolveDayTimeAfter(ref time.Time, day, hour, minute int) *time.Time {
	if day < 1 || day > 31 || hour < 0 || hour > 24 || minute < 0 || minute > 59 {
		return nil
	}
	ref = ref.UTC()
	earliest := ref.Add(-anchorSlack)

	for offset := -1; offset <= 1; offset++ {
		first := time.Date(ref.Year(), ref.Month()+time.Month(offset), 1, 0, 0, 0, 0, time.UTC)
		if time.Date(first.Year(), first.Month(), day, 0, 0, 0, 0, time.UTC).Month() != first.Month() {
			continue
		}
		t := time.Date(first.Year(), first.Month(), day, hour, minute, 0, 0, time.UTC)
		if t.Before(earliest) {
			continue
		}
		return &t
	}
	return nil
}
