package onboarding_test

import (
	"errors"
	"testing"
	"time"

	"github.com/felixgeelhaar/pillars/pkg/domain/assessment"
	"github.com/felixgeelhaar/pillars/pkg/domain/calibration"
	"github.com/felixgeelhaar/pillars/pkg/domain/journey"
	"github.com/felixgeelhaar/pillars/pkg/domain/onboarding"
	"github.com/felixgeelhaar/pillars/pkg/domain/pillar"
	"github.com/felixgeelhaar/pillars/pkg/domain/schedule"
)

func selfCareResult() assessment.Result {
	return assessment.Result{
		ID:        "a1",
		UserID:    "u1",
		PillarKey: pillar.SelfCare,
		Scores:    map[string]float64{"sleep": 4, "stress": 3, "movement": 6, "recovery": 5},
	}
}

func calibrate(t *testing.T, f *onboarding.Flow, intensity, duration string) calibration.Choice {
	t.Helper()
	w, err := f.Wizard()
	if err != nil {
		t.Fatal(err)
	}
	i, _ := calibration.LookupIntensity(intensity)
	d, _ := calibration.LookupDuration(duration)
	if err := w.ChooseIntensity(i); err != nil {
		t.Fatal(err)
	}
	if err := w.ChooseDuration(d); err != nil {
		t.Fatal(err)
	}
	c, err := f.ConfirmCalibration()
	if err != nil {
		t.Fatal(err)
	}
	return c
}

// Fresh user in guided mode picks the recommended pillar and ends up with a
// 20 activity plan across four weeks.
func TestFlow_FirstPillarEndToEnd(t *testing.T) {
	f, err := onboarding.NewFlow("u1", pillar.NewSet(), pillar.SelfCare)
	if err != nil {
		t.Fatal(err)
	}
	gw, ok := f.State().(onboarding.Gateway)
	if !ok {
		t.Fatalf("expected gateway, got %T", f.State())
	}
	if gw.Statuses[pillar.SelfCare] != pillar.StatusRequired {
		t.Fatalf("self care should be required, got %s", gw.Statuses[pillar.SelfCare])
	}

	out, err := f.Select(pillar.SelfCare, onboarding.EntryIntro)
	if err != nil || !out.OK() {
		t.Fatalf("select: %v %+v", err, out)
	}
	if err := f.Begin(); err != nil {
		t.Fatal(err)
	}
	if err := f.Assessed(selfCareResult()); err != nil {
		t.Fatal(err)
	}
	choice := calibrate(t, f, "moderate", "journey")

	start := time.Date(2026, time.June, 1, 0, 0, 0, 0, time.UTC)
	key := onboarding.AttemptKey("u1", pillar.SelfCare, "a1", choice, start)
	out, err = f.StartGeneration(key, start, func() error { return journey.ModeGuided.CheckStart("u1", 0) })
	if err != nil || !out.OK() {
		t.Fatalf("start generation: %v %+v", err, out)
	}
	pg := f.State().(onboarding.PlanGeneration)
	if pg.AttemptKey != key || pg.Choice.TotalActivities() != 20 {
		t.Fatalf("plan generation state = %+v", pg)
	}

	acts, err := schedule.Generate(schedule.Request{
		UserID: "u1", JourneyID: "j1", AttemptKey: key, PillarKey: pg.Pillar,
		Context: pg.Context, Choice: pg.Choice, Start: start,
	})
	if err != nil {
		t.Fatal(err)
	}
	if len(acts) != 20 || acts[len(acts)-1].Week != 3 {
		t.Fatalf("expected 20 activities over weeks 0-3, got %d", len(acts))
	}
	if err := f.PlanPersisted("j1", len(acts)); err != nil {
		t.Fatal(err)
	}
	if f.Stage() != onboarding.StagePlanComplete {
		t.Fatalf("stage = %s", f.Stage())
	}
	if err := f.Next(pillar.NewSet(), pillar.SelfCare); err != nil {
		t.Fatal(err)
	}
	if f.Stage() != onboarding.StageGateway {
		t.Fatalf("expected gateway after next, got %s", f.Stage())
	}
}

func TestFlow_LockedPillarIsRejected(t *testing.T) {
	f, _ := onboarding.NewFlow("u1", pillar.NewSet(), pillar.SelfCare)
	out, err := f.Select(pillar.Brand, onboarding.EntryAssessment)
	if err != nil {
		t.Fatal(err)
	}
	if out.Kind != onboarding.Rejected || !errors.Is(out.Err, pillar.ErrPillarLocked) {
		t.Fatalf("expected locked rejection, got %+v", out)
	}
	if f.Stage() != onboarding.StageGateway {
		t.Fatalf("locked selection must not transition, stage = %s", f.Stage())
	}

	out, _ = f.Select("astrology", onboarding.EntryIntro)
	if out.Kind != onboarding.Rejected {
		t.Fatalf("unknown pillar should be rejected, got %+v", out)
	}
}

// At the concurrency limit the flow stays at calibration with a notice.
func TestFlow_ConcurrencyLimitHoldsAtCalibration(t *testing.T) {
	f, _ := onboarding.NewFlow("u1", pillar.NewSet(pillar.SelfCare), pillar.SelfCare)
	if out, _ := f.Select(pillar.Skills, onboarding.EntryAssessment); !out.OK() {
		t.Fatalf("skills should be available: %+v", out)
	}
	res := assessment.Result{ID: "a2", PillarKey: pillar.Skills, Scores: map[string]float64{"learning": 2, "practice": 3, "feedback": 4}}
	if err := f.Assessed(res); err != nil {
		t.Fatal(err)
	}
	calibrate(t, f, "light", "sprint")

	out, err := f.StartGeneration("k", time.Time{}, func() error { return journey.ModeGuided.CheckStart("u1", 1) })
	if err != nil {
		t.Fatal(err)
	}
	if out.Kind != onboarding.Rejected || !errors.Is(out.Err, journey.ErrConcurrencyLimit) {
		t.Fatalf("expected concurrency rejection, got %+v", out)
	}
	cal, ok := f.State().(onboarding.Calibration)
	if !ok {
		t.Fatalf("expected to stay at calibration, got %T", f.State())
	}
	if cal.Notice == "" {
		t.Error("calibration should carry an explanatory notice")
	}

	// Once a slot frees up the same confirmed choice can proceed.
	out, _ = f.StartGeneration("k", time.Time{}, func() error { return nil })
	if !out.OK() || f.Stage() != onboarding.StagePlanGeneration {
		t.Fatalf("retry after slot freed: %+v stage=%s", out, f.Stage())
	}
}

func TestFlow_GenerationFailureStaysAndCachesDrafts(t *testing.T) {
	f, _ := onboarding.NewFlow("u1", pillar.NewSet(), pillar.SelfCare)
	f.Select(pillar.SelfCare, onboarding.EntryAssessment)
	f.Assessed(selfCareResult())
	calibrate(t, f, "light", "sprint")
	f.StartGeneration("k", time.Time{}, nil)

	drafts := []schedule.Draft{{Category: schedule.Action, Title: "Walk"}}
	if err := f.CacheDrafts(drafts); err != nil {
		t.Fatal(err)
	}
	out, err := f.GenerationFailed("calendar store unavailable", true, errors.New("boom"))
	if err != nil {
		t.Fatal(err)
	}
	if out.Kind != onboarding.Failed || !out.Retryable {
		t.Fatalf("expected retryable failure, got %+v", out)
	}
	pg, ok := f.State().(onboarding.PlanGeneration)
	if !ok {
		t.Fatalf("failure must keep plan generation, got %T", f.State())
	}
	if pg.Attempts != 1 || len(pg.Drafts) != 1 || pg.LastError == "" {
		t.Fatalf("plan generation state = %+v", pg)
	}
}

func TestFlow_AllPillarsComplete(t *testing.T) {
	all := pillar.NewSet(pillar.Order()...)
	f, err := onboarding.NewFlow("u1", all, pillar.SelfCare)
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := f.State().(onboarding.AllComplete); !ok {
		t.Fatalf("expected AllComplete, got %T", f.State())
	}
	if _, err := f.Select(pillar.SelfCare, onboarding.EntryIntro); !errors.Is(err, onboarding.ErrWrongStage) {
		t.Fatalf("selection after completion should be a wrong-stage error, got %v", err)
	}
}

func TestFlow_LastPlanCompleteFinishes(t *testing.T) {
	five := pillar.NewSet(pillar.SelfCare, pillar.Skills, pillar.Talent, pillar.Brand, pillar.Economy)
	f, _ := onboarding.NewFlow("u1", five, pillar.SelfCare)
	if out, _ := f.Select(pillar.OpenTrack, onboarding.EntryAssessment); !out.OK() {
		t.Fatalf("open track should be available: %+v", out)
	}
	f.Assessed(assessment.Result{ID: "a", PillarKey: pillar.OpenTrack, Scores: map[string]float64{"clarity": 1, "commitment": 2, "momentum": 3}})
	calibrate(t, f, "light", "sprint")
	f.StartGeneration("k", time.Time{}, nil)
	f.PlanPersisted("j", 6)

	if err := f.Next(pillar.NewSet(pillar.Order()...), pillar.SelfCare); err != nil {
		t.Fatal(err)
	}
	if f.Stage() != onboarding.StageAllComplete {
		t.Fatalf("expected all complete, got %s", f.Stage())
	}
}

func TestFlow_CancelReturnsToGateway(t *testing.T) {
	f, _ := onboarding.NewFlow("u1", pillar.NewSet(), pillar.SelfCare)
	f.Select(pillar.SelfCare, onboarding.EntryIntro)
	prev, err := f.Cancel()
	if err != nil {
		t.Fatal(err)
	}
	if k, _ := onboarding.PillarOf(prev); k != pillar.SelfCare {
		t.Fatalf("cancel should report the abandoned pillar, got %v", prev)
	}
	if f.Stage() != onboarding.StageGateway {
		t.Fatalf("stage = %s", f.Stage())
	}
	if _, err := f.Cancel(); !errors.Is(err, onboarding.ErrWrongStage) {
		t.Fatalf("cancel at gateway should fail, got %v", err)
	}
}

func TestFlow_AssessedRejectsOtherPillar(t *testing.T) {
	f, _ := onboarding.NewFlow("u1", pillar.NewSet(), pillar.SelfCare)
	f.Select(pillar.SelfCare, onboarding.EntryAssessment)
	err := f.Assessed(assessment.Result{PillarKey: pillar.Skills, Scores: map[string]float64{"learning": 1, "practice": 1, "feedback": 1}})
	if !errors.Is(err, onboarding.ErrWrongStage) {
		t.Fatalf("expected wrong stage, got %v", err)
	}
	if err := f.Assessed(assessment.Result{PillarKey: pillar.SelfCare, Scores: map[string]float64{"sleep": 1}}); !errors.Is(err, assessment.ErrIncomplete) {
		t.Fatalf("expected incomplete, got %v", err)
	}
	if f.Stage() != onboarding.StageAssessment {
		t.Fatalf("partial assessment must not advance, stage = %s", f.Stage())
	}
}

func TestFlow_StartGenerationRequiresConfirmation(t *testing.T) {
	f, _ := onboarding.NewFlow("u1", pillar.NewSet(), pillar.SelfCare)
	f.Select(pillar.SelfCare, onboarding.EntryAssessment)
	f.Assessed(selfCareResult())
	if _, err := f.StartGeneration("k", time.Time{}, nil); !errors.Is(err, onboarding.ErrWrongStage) {
		t.Fatalf("expected wrong stage before confirmation, got %v", err)
	}
}
