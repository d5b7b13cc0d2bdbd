package journey

import (
	"time"

	"github.com/google/uuid"

	"github.com/felixgeelhaar/pillars/pkg/domain/pillar"
)

var journeyNamespace = uuid.MustParse("6f1c2b7e-3a55-4d0e-9a43-2f7c1d9e8b10")

// IDForAttempt derives the journey id from a plan generation attempt key so
// a retried attempt recreates the same journey rather than a second one.
func IDForAttempt(attemptKey string) string {
	if attemptKey == "" {
		return uuid.NewString()
	}
	return uuid.NewSHA1(journeyNamespace, []byte(attemptKey)).String()
}

// New returns an active journey started at now.
func New(userID string, key pillar.Key, mode Mode, attemptKey string, now time.Time) Journey {
	return Journey{
		ID:         IDForAttempt(attemptKey),
		UserID:     userID,
		PillarKey:  key,
		Mode:       mode,
		Status:     StatusActive,
		StartedAt:  now,
		AttemptKey: attemptKey,
		UpdatedAt:  now,
	}
}

// Apply runs event through the lifecycle machine and returns the resulting
// snapshot. j itself is not modified. The guard is consulted on resume.
func (j Journey) Apply(event string, at time.Time, guard func(journeyID, event string) bool) (Journey, error) {
	m, err := NewLifecycleMachine(j.Status, j.ID, guard)
	if err != nil {
		return j, err
	}
	if err := m.Transition(event); err != nil {
		return j, err
	}

	next := j.Clone()
	next.Status = m.Current()
	next.UpdatedAt = at
	switch event {
	case EventPause:
		next.PausedAt = &at
	case EventResume:
		next.PausedAt = nil
	case EventComplete:
		next.CompletedAt = &at
		next.Progress = 100
	case EventAbandon:
		next.AbandonedAt = &at
	}
	return next, nil
}
