// Package schedule turns a calibration choice into dated activities.
package schedule

import (
	"context"
	"errors"
	"time"

	"github.com/felixgeelhaar/pillars/pkg/domain/pillar"
)

// Category classifies an activity.
type Category string

const (
	Reflection Category = "reflection"
	Action     Category = "action"
	Habit      Category = "habit"
	Experiment Category = "experiment"
)

// Categories returns all categories in partition order.
func Categories() []Category {
	return []Category{Reflection, Action, Habit, Experiment}
}

// IsValid reports whether c is a known category.
func (c Category) IsValid() bool {
	switch c {
	case Reflection, Action, Habit, Experiment:
		return true
	}
	return false
}

// Activity is one scheduled unit of work. Only completion is mutable after
// the batch is persisted.
type Activity struct {
	ID               string     `json:"id" yaml:"id"`
	UserID           string     `json:"user_id" yaml:"user_id"`
	JourneyID        string     `json:"journey_id" yaml:"journey_id"`
	PillarKey        pillar.Key `json:"pillar_key" yaml:"pillar_key"`
	Title            string     `json:"title" yaml:"title"`
	Description      string     `json:"description" yaml:"description"`
	Category         Category   `json:"category" yaml:"category"`
	EstimatedMinutes int        `json:"estimated_minutes" yaml:"estimated_minutes"`
	ScheduledDate    time.Time  `json:"scheduled_date" yaml:"scheduled_date"`
	Week             int        `json:"week" yaml:"week"`
	IsCompleted      bool       `json:"is_completed" yaml:"is_completed"`
	CompletedAt      *time.Time `json:"completed_at,omitempty" yaml:"completed_at,omitempty"`
}

// Draft is a generated activity text before scheduling.
type Draft struct {
	Category    Category `json:"category"`
	Title       string   `json:"title"`
	Description string   `json:"description"`
}

// CalendarEntry is the calendar half of a persisted activity.
type CalendarEntry struct {
	ActivityID string    `json:"activity_id" yaml:"activity_id"`
	UserID     string    `json:"user_id" yaml:"user_id"`
	JourneyID  string    `json:"journey_id" yaml:"journey_id"`
	Title      string    `json:"title" yaml:"title"`
	StartsAt   time.Time `json:"starts_at" yaml:"starts_at"`
	EndsAt     time.Time `json:"ends_at" yaml:"ends_at"`
}

// CalendarEntryFor derives the calendar entry of a.
func CalendarEntryFor(a Activity) CalendarEntry {
	return CalendarEntry{
		ActivityID: a.ID,
		UserID:     a.UserID,
		JourneyID:  a.JourneyID,
		Title:      a.Title,
		StartsAt:   a.ScheduledDate,
		EndsAt:     a.ScheduledDate.Add(time.Duration(a.EstimatedMinutes) * time.Minute),
	}
}

// CalendarStore persists calendar entries. Upserts by ActivityID.
type CalendarStore interface {
	UpsertCalendarEntries(ctx context.Context, entries []CalendarEntry) error
}

// TaskStore persists activities as trackable tasks. Upserts by ID.
type TaskStore interface {
	UpsertTasks(ctx context.Context, activities []Activity) error
	ListTasks(ctx context.Context, journeyID string) ([]Activity, error)
	SetTaskCompleted(ctx context.Context, activityID string, at time.Time) (Activity, error)
}

// ErrActivityNotFound is returned when a task id is unknown.
var ErrActivityNotFound = errors.New("activity not found")
