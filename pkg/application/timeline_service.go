package application

import (
	"context"
	"fmt"
	"time"

	"github.com/felixgeelhaar/pillars/pkg/domain/timeline"
)

// IntegrityVerifier is implemented by stores that can check their own
// event log.
type IntegrityVerifier interface {
	VerifyIntegrity(ctx context.Context) ([]string, error)
}

// TimelineService serves the read side of journey history.
type TimelineService struct {
	events timeline.Repository
	loc    *time.Location
}

func NewTimelineService(events timeline.Repository, loc *time.Location) *TimelineService {
	if loc == nil {
		loc = time.Local
	}
	return &TimelineService{events: events, loc: loc}
}

// ForJourney groups one journey's events by day.
func (s *TimelineService) ForJourney(ctx context.Context, journeyID string) ([]timeline.Day, error) {
	evs, err := s.events.ListByJourney(ctx, journeyID)
	if err != nil {
		return nil, fmt.Errorf("list timeline: %w", err)
	}
	return timeline.GroupByDay(evs, s.loc), nil
}

// ForUser groups the events of all the user's journeys by day.
func (s *TimelineService) ForUser(ctx context.Context, userID string) ([]timeline.Day, error) {
	evs, err := s.events.ListByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list timeline: %w", err)
	}
	return timeline.GroupByDay(evs, s.loc), nil
}

// Verify checks the event log when the store supports it. A nil slice means
// no problems were found.
func (s *TimelineService) Verify(ctx context.Context) ([]string, error) {
	v, ok := s.events.(IntegrityVerifier)
	if !ok {
		return nil, nil
	}
	return v.VerifyIntegrity(ctx)
}
