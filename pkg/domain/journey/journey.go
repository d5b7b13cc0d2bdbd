// Package journey models a user's pursuit of one pillar over time.
package journey

import (
	"context"
	"time"

	"github.com/felixgeelhaar/pillars/pkg/domain/pillar"
)

// Journey is the mutable snapshot of one pillar pursuit. Transitions are
// recorded separately as timeline events.
type Journey struct {
	ID          string     `json:"id" yaml:"id"`
	UserID      string     `json:"user_id" yaml:"user_id"`
	PillarKey   pillar.Key `json:"pillar_key" yaml:"pillar_key"`
	Mode        Mode       `json:"mode" yaml:"mode"`
	Status      Status     `json:"status" yaml:"status"`
	Progress    int        `json:"progress" yaml:"progress"`
	StartedAt   time.Time  `json:"started_at" yaml:"started_at"`
	PausedAt    *time.Time `json:"paused_at,omitempty" yaml:"paused_at,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty" yaml:"completed_at,omitempty"`
	AbandonedAt *time.Time `json:"abandoned_at,omitempty" yaml:"abandoned_at,omitempty"`
	// AttemptKey identifies the plan generation attempt that created it.
	AttemptKey string    `json:"attempt_key,omitempty" yaml:"attempt_key,omitempty"`
	UpdatedAt  time.Time `json:"updated_at" yaml:"updated_at"`
}

// Clone returns a deep copy.
func (j Journey) Clone() Journey {
	out := j
	out.PausedAt = cloneTime(j.PausedAt)
	out.CompletedAt = cloneTime(j.CompletedAt)
	out.AbandonedAt = cloneTime(j.AbandonedAt)
	return out
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}

// SetProgress clamps p to [0, 100].
func (j *Journey) SetProgress(p int) {
	j.Progress = max(0, min(100, p))
}

// Filter narrows a journey listing. Zero fields match everything.
type Filter struct {
	PillarKey pillar.Key
	Statuses  []Status
}

// Matches reports whether j satisfies the filter.
func (f Filter) Matches(j Journey) bool {
	if f.PillarKey != "" && j.PillarKey != f.PillarKey {
		return false
	}
	if len(f.Statuses) == 0 {
		return true
	}
	for _, s := range f.Statuses {
		if j.Status == s {
			return true
		}
	}
	return false
}

// Repository persists journey snapshots and user settings.
type Repository interface {
	SaveJourney(ctx context.Context, j *Journey) error
	GetJourney(ctx context.Context, id string) (*Journey, error)
	ListJourneys(ctx context.Context, userID string, f Filter) ([]Journey, error)
	SaveSettings(ctx context.Context, s *Settings) error
	// LoadSettings returns nil, nil when the user has no stored settings.
	LoadSettings(ctx context.Context, userID string) (*Settings, error)
}

// Settings holds per-user preferences.
type Settings struct {
	UserID    string    `json:"user_id" yaml:"user_id"`
	Mode      Mode      `json:"mode" yaml:"mode"`
	UpdatedAt time.Time `json:"updated_at" yaml:"updated_at"`
}

// CompletedPillars returns the pillars with at least one completed journey.
func CompletedPillars(journeys []Journey) pillar.Set {
	s := pillar.NewSet()
	for _, j := range journeys {
		if j.Status == StatusCompleted {
			s.Add(j.PillarKey)
		}
	}
	return s
}

// CountActive returns how many journeys are active.
func CountActive(journeys []Journey) int {
	n := 0
	for _, j := range journeys {
		if j.Status == StatusActive {
			n++
		}
	}
	return n
}
