package schedule_test

import (
	"errors"
	"math"
	"testing"
	"time"

	"github.com/felixgeelhaar/pillars/pkg/domain/calibration"
	"github.com/felixgeelhaar/pillars/pkg/domain/pillar"
	"github.com/felixgeelhaar/pillars/pkg/domain/schedule"
)

var start = time.Date(2026, time.March, 2, 14, 30, 0, 0, time.UTC)

func choice(apw, mpd, weeks int) calibration.Choice {
	return calibration.Choice{
		Intensity: calibration.Intensity{Key: "custom", MinutesPerDay: mpd, ActivitiesPerWeek: apw},
		Duration:  calibration.Duration{Key: "custom", Weeks: weeks},
	}
}

func request(c calibration.Choice) schedule.Request {
	return schedule.Request{
		UserID:     "u1",
		JourneyID:  "j1",
		AttemptKey: "attempt-1",
		PillarKey:  pillar.Skills,
		Context:    schedule.AssessmentContext{Scores: map[string]float64{"learning": 3, "practice": 1, "feedback": 5}},
		Choice:     c,
		Start:      start,
	}
}

func TestGenerate_ModerateJourney(t *testing.T) {
	moderate, _ := calibration.LookupIntensity("moderate")
	journey, _ := calibration.LookupDuration("journey")

	acts, err := schedule.Generate(request(calibration.Choice{Intensity: moderate, Duration: journey}))
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if len(acts) != 20 {
		t.Fatalf("expected 20 activities, got %d", len(acts))
	}
	weeks := map[int]int{}
	for _, a := range acts {
		weeks[a.Week]++
	}
	for w := 0; w < 4; w++ {
		if weeks[w] != 5 {
			t.Errorf("week %d has %d activities, want 5", w, weeks[w])
		}
	}
	if len(weeks) != 4 {
		t.Errorf("expected weeks 0-3, got %v", weeks)
	}
}

func TestGenerate_TotalAndRatios(t *testing.T) {
	for apw := 1; apw <= 10; apw++ {
		for weeks := 1; weeks <= 12; weeks++ {
			acts, err := schedule.Generate(request(choice(apw, 30, weeks)))
			if err != nil {
				t.Fatalf("apw=%d weeks=%d: %v", apw, weeks, err)
			}
			total := apw * weeks
			if len(acts) != total {
				t.Fatalf("apw=%d weeks=%d: got %d activities, want %d", apw, weeks, len(acts), total)
			}
			counts := map[schedule.Category]int{}
			for _, a := range acts {
				counts[a.Category]++
			}
			ratios := map[schedule.Category]float64{
				schedule.Reflection: 0.20, schedule.Action: 0.40, schedule.Habit: 0.25, schedule.Experiment: 0.15,
			}
			for cat, r := range ratios {
				if diff := math.Abs(float64(counts[cat]) - r*float64(total)); diff > 1 {
					t.Fatalf("apw=%d weeks=%d: %s count %d off by %.2f", apw, weeks, cat, counts[cat], diff)
				}
			}
		}
	}
}

func TestGenerate_SortedAndSpaced(t *testing.T) {
	acts, err := schedule.Generate(request(choice(3, 30, 2)))
	if err != nil {
		t.Fatal(err)
	}
	for i := 1; i < len(acts); i++ {
		if acts[i].ScheduledDate.Before(acts[i-1].ScheduledDate) {
			t.Fatalf("activities not sorted at %d", i)
		}
	}
	// 7/3 = 2 day spacing: offsets 0,2,4,7,9,11.
	wantDays := []int{0, 2, 4, 7, 9, 11}
	base := time.Date(2026, time.March, 2, 9, 0, 0, 0, time.UTC)
	for i, a := range acts {
		if want := base.AddDate(0, 0, wantDays[i]); !a.ScheduledDate.Equal(want) {
			t.Errorf("activity %d at %v, want %v", i, a.ScheduledDate, want)
		}
	}
}

func TestGenerate_DenseWeekUsesMinuteOffsets(t *testing.T) {
	acts, err := schedule.Generate(request(choice(14, 20, 1)))
	if err != nil {
		t.Fatal(err)
	}
	seen := map[time.Time]bool{}
	for _, a := range acts {
		if seen[a.ScheduledDate] {
			t.Fatalf("two activities share the instant %v", a.ScheduledDate)
		}
		seen[a.ScheduledDate] = true
		if a.ScheduledDate.Sub(start) > 8*24*time.Hour {
			t.Fatalf("activity scheduled outside the first week: %v", a.ScheduledDate)
		}
	}
}

func TestGenerate_EstimatedMinutesCaps(t *testing.T) {
	acts, _ := schedule.Generate(request(choice(5, 60, 4)))
	for _, a := range acts {
		var want int
		switch a.Category {
		case schedule.Reflection:
			want = 15
		case schedule.Habit:
			want = 10
		default:
			want = 60
		}
		if a.EstimatedMinutes != want {
			t.Fatalf("%s estimated %d, want %d", a.Category, a.EstimatedMinutes, want)
		}
	}

	small, _ := schedule.Generate(request(choice(5, 8, 1)))
	for _, a := range small {
		if a.Category == schedule.Habit && a.EstimatedMinutes != 4 {
			t.Fatalf("habit with 8 min/day estimated %d, want 4", a.EstimatedMinutes)
		}
		if a.Category == schedule.Reflection && a.EstimatedMinutes != 8 {
			t.Fatalf("reflection with 8 min/day estimated %d, want 8", a.EstimatedMinutes)
		}
	}
}

func TestGenerate_DeterministicIDs(t *testing.T) {
	req := request(choice(5, 30, 2))
	a, _ := schedule.Generate(req)
	b, _ := schedule.Generate(req)
	for i := range a {
		if a[i].ID != b[i].ID {
			t.Fatalf("ids differ at %d: %s vs %s", i, a[i].ID, b[i].ID)
		}
	}
	req.AttemptKey = "attempt-2"
	c, _ := schedule.Generate(req)
	if c[0].ID == a[0].ID {
		t.Fatal("different attempts must not share ids")
	}
}

func TestGenerateFromDrafts_UsesDraftText(t *testing.T) {
	drafts := []schedule.Draft{
		{Category: schedule.Action, Title: "Ship a {pillar} side project", Description: "d"},
		{Category: "bogus", Title: "ignored"},
	}
	acts, err := schedule.GenerateFromDrafts(request(choice(5, 30, 1)), drafts)
	if err != nil {
		t.Fatal(err)
	}
	for _, a := range acts {
		if a.Category == schedule.Action && a.Title != "Ship a Skills side project" {
			t.Fatalf("action title = %q", a.Title)
		}
		if a.Category == schedule.Reflection && a.Title == "" {
			t.Fatal("reflection should fall back to built-in templates")
		}
	}
}

func TestGenerate_InvalidRequest(t *testing.T) {
	req := request(choice(0, 30, 2))
	if _, err := schedule.Generate(req); !errors.Is(err, schedule.ErrInvalidRequest) {
		t.Fatalf("expected ErrInvalidRequest, got %v", err)
	}
	req = request(choice(3, 30, 2))
	req.PillarKey = "nope"
	if _, err := schedule.Generate(req); !errors.Is(err, schedule.ErrInvalidRequest) {
		t.Fatalf("expected ErrInvalidRequest for pillar, got %v", err)
	}
}

func TestPartition_SumsExactly(t *testing.T) {
	for total := 0; total <= 200; total++ {
		sum := 0
		for _, n := range schedule.Partition(total) {
			sum += n
		}
		if sum != total {
			t.Fatalf("Partition(%d) sums to %d", total, sum)
		}
	}
}

func TestAssessmentContext_FocusDimension(t *testing.T) {
	ctx := schedule.AssessmentContext{Scores: map[string]float64{"b": 2, "a": 2, "c": 5}}
	if got := ctx.FocusDimension(); got != "a" {
		t.Fatalf("FocusDimension = %q, want a", got)
	}
}
