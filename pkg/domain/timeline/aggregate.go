package timeline

import (
	"sort"
	"time"
)

// Day is one calendar day of events, newest first.
type Day struct {
	Date   time.Time
	Events []Event
}

// GroupByDay projects events into calendar days in loc, most recent day
// first and most recent event first within a day. Events with the same
// instant keep reverse append order. A nil loc means UTC.
func GroupByDay(events []Event, loc *time.Location) []Day {
	if loc == nil {
		loc = time.UTC
	}
	ordered := make([]Event, len(events))
	copy(ordered, events)
	// Reverse first so the stable sort keeps later-appended events ahead.
	for i, k := 0, len(ordered)-1; i < k; i, k = i+1, k-1 {
		ordered[i], ordered[k] = ordered[k], ordered[i]
	}
	sort.SliceStable(ordered, func(i, k int) bool {
		return ordered[i].OccurredAt.After(ordered[k].OccurredAt)
	})

	var days []Day
	for _, e := range ordered {
		local := e.OccurredAt.In(loc)
		date := time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, loc)
		if n := len(days); n > 0 && days[n-1].Date.Equal(date) {
			days[n-1].Events = append(days[n-1].Events, e)
			continue
		}
		days = append(days, Day{Date: date, Events: []Event{e}})
	}
	return days
}

// CheckMonotonic reports the index of the first event whose occurredAt is
// earlier than its predecessor's, or -1. The first event must be Started.
func CheckMonotonic(events []Event) int {
	for i, e := range events {
		if i == 0 {
			if e.Type != Started {
				return 0
			}
			continue
		}
		if e.OccurredAt.Before(events[i-1].OccurredAt) {
			return i
		}
	}
	return -1
}
