package application_test

import (
	"context"
	"testing"
	"time"

	"github.com/felixgeelhaar/pillars/pkg/application"
	"github.com/felixgeelhaar/pillars/pkg/domain/pillar"
	"github.com/felixgeelhaar/pillars/pkg/domain/timeline"
)

type verifyingEvents struct {
	*MockEvents
	violations []string
}

func (v verifyingEvents) VerifyIntegrity(context.Context) ([]string, error) {
	return v.violations, nil
}

func TestTimelineService_GroupsByDay(t *testing.T) {
	day1 := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	day2 := day1.AddDate(0, 0, 1)
	events := &MockEvents{}
	for _, e := range []timeline.Event{
		timeline.NewEvent("j1", "u1", timeline.Started, day1, "started", nil),
		timeline.NewEvent("j1", "u1", timeline.Paused, day2, "paused", nil),
		timeline.NewEvent("j1", "u1", timeline.Resumed, day2.Add(time.Hour), "resumed", nil),
		timeline.NewEvent("j2", "u2", timeline.Started, day1, "other user", nil),
	} {
		_ = events.AppendEvent(context.Background(), &e)
	}
	svc := application.NewTimelineService(events, time.UTC)

	days, err := svc.ForJourney(context.Background(), "j1")
	if err != nil {
		t.Fatal(err)
	}
	if len(days) != 2 || !days[0].Date.Equal(time.Date(2026, 3, 3, 0, 0, 0, 0, time.UTC)) || len(days[0].Events) != 2 {
		t.Fatalf("days = %+v", days)
	}

	days, _ = svc.ForUser(context.Background(), "u2")
	if len(days) != 1 || days[0].Events[0].JourneyID != "j2" {
		t.Errorf("user days = %+v", days)
	}
}

func TestTimelineService_Verify(t *testing.T) {
	plain := application.NewTimelineService(&MockEvents{}, nil)
	if v, err := plain.Verify(context.Background()); v != nil || err != nil {
		t.Errorf("store without verification: %v %v", v, err)
	}

	checked := application.NewTimelineService(verifyingEvents{MockEvents: &MockEvents{}, violations: []string{"bad"}}, nil)
	v, err := checked.Verify(context.Background())
	if err != nil || len(v) != 1 {
		t.Errorf("violations = %v, err %v", v, err)
	}
}

func TestTimelineService_ForJourneyAfterPause(t *testing.T) {
	f := newJourneyFixture(t, "")
	ctx := context.Background()
	j := f.start(t, pillar.SelfCare)
	f.clock.Set(time.Date(2026, 3, 4, 10, 0, 0, 0, time.UTC))
	if _, err := f.svc.Pause(ctx, j.ID); err != nil {
		t.Fatal(err)
	}

	svc := application.NewTimelineService(f.events, time.UTC)
	days, err := svc.ForJourney(ctx, j.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(days) != 2 {
		t.Fatalf("expected 2 days, got %d", len(days))
	}
	if days[0].Events[0].Type != timeline.Paused || days[1].Events[0].Type != timeline.Started {
		t.Errorf("days not newest first: %+v", days)
	}

	byUser, err := svc.ForUser(ctx, "u1")
	if err != nil || len(byUser) != 2 {
		t.Errorf("user timeline %v, err %v", byUser, err)
	}
	if problems, err := svc.Verify(ctx); err != nil || problems != nil {
		t.Errorf("verify on a plain store: %v %v", problems, err)
	}
}
