package application_test

import (
	"context"
	"errors"
	"testing"

	"github.com/felixgeelhaar/pillars/pkg/application"
	"github.com/felixgeelhaar/pillars/pkg/domain/assessment"
	"github.com/felixgeelhaar/pillars/pkg/domain/journey"
	"github.com/felixgeelhaar/pillars/pkg/domain/onboarding"
	"github.com/felixgeelhaar/pillars/pkg/domain/pillar"
)

type onboardingFixture struct {
	*journeyFixture
	assessments *MockAssessments
	generator   *MockGenerator
	svc         *application.OnboardingService
	assess      *application.AssessmentService
}

func newOnboardingFixture(t *testing.T, mode journey.Mode) *onboardingFixture {
	t.Helper()
	jf := newJourneyFixture(t, mode)
	f := &onboardingFixture{
		journeyFixture: jf,
		assessments:    &MockAssessments{},
		generator:      &MockGenerator{},
	}
	f.assess = application.NewAssessmentService(f.assessments, nil, nil).WithClock(jf.clock.Now)
	plans := application.NewPlanService(f.generator, jf.tasks, jf.tasks, nil).WithMetrics(jf.metrics)
	f.svc = application.NewOnboardingService(f.assess, jf.svc, plans, nil).WithClock(jf.clock.Now)
	return f
}

var selfCareAnswers = assessment.Answers{"sleep": 4, "stress": 3, "movement": 6, "recovery": 5}

func expect(t *testing.T, out onboarding.Outcome, err error, want onboarding.Kind) {
	t.Helper()
	if err != nil {
		t.Fatal(err)
	}
	if out.Kind != want {
		t.Fatalf("outcome = %s (%s), want %s", out.Kind, out.Reason, want)
	}
}

func stage(t *testing.T, f *onboardingFixture) onboarding.Stage {
	t.Helper()
	st, err := f.svc.State(context.Background(), "u1")
	if err != nil {
		t.Fatal(err)
	}
	return st.Stage()
}

// calibrateLightSprint runs the wizard for a 6-activity plan.
func calibrateLightSprint(t *testing.T, f *onboardingFixture) {
	t.Helper()
	ctx := context.Background()
	out, err := f.svc.ChooseIntensity(ctx, "u1", "light")
	expect(t, out, err, onboarding.Accepted)
	out, err = f.svc.ChooseDuration(ctx, "u1", "sprint")
	expect(t, out, err, onboarding.Accepted)
}

func completePillar(t *testing.T, f *onboardingFixture, key pillar.Key) {
	t.Helper()
	j, err := f.journeyFixture.svc.Start(context.Background(), "u1", key, "done-"+string(key))
	if err != nil {
		t.Fatal(err)
	}
	if _, err := f.journeyFixture.svc.Complete(context.Background(), j.ID); err != nil {
		t.Fatal(err)
	}
}

func TestOnboardingService_FirstPillar(t *testing.T) {
	f := newOnboardingFixture(t, journey.ModeGuided)
	ctx := context.Background()

	st, err := f.svc.State(ctx, "u1")
	if err != nil {
		t.Fatal(err)
	}
	gw, ok := st.(onboarding.Gateway)
	if !ok || gw.Recommended != pillar.SelfCare {
		t.Fatalf("expected gateway recommending self care, got %#v", st)
	}

	out, err := f.svc.Select(ctx, "u1", pillar.Skills, onboarding.EntryIntro)
	expect(t, out, err, onboarding.Rejected)

	out, err = f.svc.Select(ctx, "u1", pillar.SelfCare, onboarding.EntryIntro)
	expect(t, out, err, onboarding.Accepted)
	if err := f.svc.Begin(ctx, "u1"); err != nil {
		t.Fatal(err)
	}

	out, err = f.svc.SubmitAssessment(ctx, "u1", assessment.Answers{"sleep": 4})
	expect(t, out, err, onboarding.Rejected)
	if !errors.Is(out.Err, assessment.ErrIncomplete) || len(f.assessments.Results) != 0 {
		t.Fatalf("incomplete answers must not be stored: %v", out.Err)
	}

	out, err = f.svc.SubmitAssessment(ctx, "u1", selfCareAnswers)
	expect(t, out, err, onboarding.Accepted)
	if got := stage(t, f); got != onboarding.StageCalibration {
		t.Fatalf("stage = %s", got)
	}

	calibrateLightSprint(t, f)
	out, err = f.svc.ConfirmCalibration(ctx, "u1")
	expect(t, out, err, onboarding.Accepted)
	out, err = f.svc.Generate(ctx, "u1")
	expect(t, out, err, onboarding.Accepted)

	st, _ = f.svc.State(ctx, "u1")
	done, ok := st.(onboarding.PlanComplete)
	if !ok || done.Activities != 6 {
		t.Fatalf("expected plan complete with 6 activities, got %#v", st)
	}
	if len(f.tasks.Tasks) != 6 || len(f.tasks.Calendar) != 6 {
		t.Errorf("persisted %d tasks and %d calendar entries", len(f.tasks.Tasks), len(f.tasks.Calendar))
	}
	j, err := f.journeyFixture.svc.Get(ctx, done.JourneyID)
	if err != nil || j.Status != journey.StatusActive {
		t.Fatalf("journey %+v, err %v", j, err)
	}
	for _, a := range f.tasks.Tasks {
		if a.JourneyID != j.ID {
			t.Fatalf("activity %s belongs to %s", a.ID, a.JourneyID)
		}
	}

	if err := f.svc.Next(ctx, "u1"); err != nil {
		t.Fatal(err)
	}
	if got := stage(t, f); got != onboarding.StageGateway {
		t.Errorf("stage after next = %s", got)
	}
}

func TestOnboardingService_ConcurrencyHoldsAtCalibration(t *testing.T) {
	f := newOnboardingFixture(t, journey.ModeGuided)
	ctx := context.Background()
	completePillar(t, f, pillar.SelfCare)
	busy, err := f.journeyFixture.svc.Start(ctx, "u1", pillar.Brand, "brand")
	if err != nil {
		t.Fatal(err)
	}

	out, err := f.svc.Select(ctx, "u1", pillar.Skills, onboarding.EntryAssessment)
	expect(t, out, err, onboarding.Accepted)
	out, err = f.svc.SubmitAssessment(ctx, "u1", assessment.Answers{"learning": 5, "practice": 4, "feedback": 6})
	expect(t, out, err, onboarding.Accepted)
	calibrateLightSprint(t, f)

	out, err = f.svc.ConfirmCalibration(ctx, "u1")
	expect(t, out, err, onboarding.Rejected)
	if !errors.Is(out.Err, journey.ErrConcurrencyLimit) {
		t.Fatalf("expected concurrency limit, got %v", out.Err)
	}
	st, _ := f.svc.State(ctx, "u1")
	cal, ok := st.(onboarding.Calibration)
	if !ok || cal.Notice == "" {
		t.Fatalf("expected calibration with a notice, got %#v", st)
	}

	if _, err := f.journeyFixture.svc.Pause(ctx, busy.ID); err != nil {
		t.Fatal(err)
	}
	out, err = f.svc.ConfirmCalibration(ctx, "u1")
	expect(t, out, err, onboarding.Accepted)
	if got := stage(t, f); got != onboarding.StagePlanGeneration {
		t.Errorf("stage = %s", got)
	}
}

func TestOnboardingService_RetriesDoNotDuplicate(t *testing.T) {
	f := newOnboardingFixture(t, journey.ModeGuided)
	ctx := context.Background()
	f.generator.FailTimes = 1
	f.tasks.FailTaskUpserts = 1

	out, err := f.svc.Select(ctx, "u1", pillar.SelfCare, onboarding.EntryAssessment)
	expect(t, out, err, onboarding.Accepted)
	out, err = f.svc.SubmitAssessment(ctx, "u1", selfCareAnswers)
	expect(t, out, err, onboarding.Accepted)
	calibrateLightSprint(t, f)
	out, err = f.svc.ConfirmCalibration(ctx, "u1")
	expect(t, out, err, onboarding.Accepted)

	out, err = f.svc.Generate(ctx, "u1")
	expect(t, out, err, onboarding.Failed)
	if !out.Retryable {
		t.Fatal("generator failure should be retryable")
	}

	out, err = f.svc.Generate(ctx, "u1")
	expect(t, out, err, onboarding.Failed)
	st, _ := f.svc.State(ctx, "u1")
	pg, ok := st.(onboarding.PlanGeneration)
	if !ok || pg.Drafts == nil || pg.LastError == "" {
		t.Fatalf("expected plan generation with cached drafts, got %#v", st)
	}

	out, err = f.svc.Generate(ctx, "u1")
	expect(t, out, err, onboarding.Accepted)

	if f.generator.Calls != 2 {
		t.Errorf("generator called %d times, want 2", f.generator.Calls)
	}
	if len(f.tasks.Tasks) != 6 {
		t.Errorf("expected 6 tasks, got %d", len(f.tasks.Tasks))
	}
	js, _ := f.journeys.ListJourneys(ctx, "u1", journey.Filter{})
	if len(js) != 1 {
		t.Errorf("expected one journey, got %d", len(js))
	}
}

func TestOnboardingService_CancelReleasesReservation(t *testing.T) {
	f := newOnboardingFixture(t, journey.ModeGuided)
	ctx := context.Background()

	out, err := f.svc.Select(ctx, "u1", pillar.SelfCare, onboarding.EntryAssessment)
	expect(t, out, err, onboarding.Accepted)
	out, err = f.svc.SubmitAssessment(ctx, "u1", selfCareAnswers)
	expect(t, out, err, onboarding.Accepted)
	calibrateLightSprint(t, f)
	out, err = f.svc.ConfirmCalibration(ctx, "u1")
	expect(t, out, err, onboarding.Accepted)

	if err := f.journeyFixture.svc.Reserve(ctx, "u1", pillar.Skills, "x"); !errors.Is(err, journey.ErrConcurrencyLimit) {
		t.Fatalf("reservation should count as active, got %v", err)
	}
	if err := f.svc.Cancel(ctx, "u1"); err != nil {
		t.Fatal(err)
	}
	if got := stage(t, f); got != onboarding.StageGateway {
		t.Errorf("stage = %s", got)
	}
	if err := f.journeyFixture.svc.Reserve(ctx, "u1", pillar.Skills, "x"); err != nil {
		t.Errorf("reservation not released: %v", err)
	}
}

func TestOnboardingService_Run(t *testing.T) {
	f := newOnboardingFixture(t, journey.ModeGuided)
	ctx := context.Background()
	req := application.RunRequest{UserID: "u1", Pillar: pillar.SelfCare, Intensity: "light", Duration: "sprint"}

	out, done, err := f.svc.Run(ctx, req)
	expect(t, out, err, onboarding.Rejected)
	if done != nil || !errors.Is(out.Err, application.ErrNoAssessment) {
		t.Fatalf("expected missing assessment, got %v", out.Err)
	}
	if got := stage(t, f); got != onboarding.StageGateway {
		t.Fatalf("stage after rejected run = %s", got)
	}

	if _, err := f.assess.Submit(ctx, "u1", pillar.SelfCare, selfCareAnswers); err != nil {
		t.Fatal(err)
	}
	bad := req
	bad.Intensity = "extreme"
	out, _, err = f.svc.Run(ctx, bad)
	expect(t, out, err, onboarding.Rejected)

	out, done, err = f.svc.Run(ctx, req)
	expect(t, out, err, onboarding.Accepted)
	if done == nil || done.Activities != 6 || done.Pillar != pillar.SelfCare {
		t.Fatalf("unexpected result %#v", done)
	}
	if got := stage(t, f); got != onboarding.StageGateway {
		t.Errorf("stage after run = %s", got)
	}
}

func TestOnboardingService_AllComplete(t *testing.T) {
	f := newOnboardingFixture(t, journey.ModeGuided)
	for _, k := range pillar.Order() {
		completePillar(t, f, k)
	}
	if got := stage(t, f); got != onboarding.StageAllComplete {
		t.Errorf("stage = %s", got)
	}
}

func TestOnboardingService_WrongStage(t *testing.T) {
	f := newOnboardingFixture(t, "")
	ctx := context.Background()

	if _, err := f.svc.SubmitAssessment(ctx, "u1", selfCareAnswers); !errors.Is(err, onboarding.ErrWrongStage) {
		t.Errorf("submit at gateway: %v", err)
	}
	if _, err := f.svc.Generate(ctx, "u1"); !errors.Is(err, onboarding.ErrWrongStage) {
		t.Errorf("generate at gateway: %v", err)
	}
	if _, err := f.svc.ChooseIntensity(ctx, "u1", "light"); !errors.Is(err, onboarding.ErrWrongStage) {
		t.Errorf("intensity at gateway: %v", err)
	}
}

func TestOnboardingService_PreviewStoresNothing(t *testing.T) {
	f := newOnboardingFixture(t, journey.ModeGuided)
	ctx := context.Background()
	req := application.RunRequest{UserID: "u1", Pillar: pillar.SelfCare, Intensity: "light", Duration: "sprint"}

	if _, err := f.svc.Preview(ctx, req); !errors.Is(err, application.ErrNoAssessment) {
		t.Fatalf("expected ErrNoAssessment, got %v", err)
	}
	if _, err := f.assess.Submit(ctx, "u1", pillar.SelfCare, selfCareAnswers); err != nil {
		t.Fatal(err)
	}

	acts, err := f.svc.Preview(ctx, req)
	if err != nil {
		t.Fatal(err)
	}
	if len(acts) != 6 {
		t.Errorf("expected 6 previewed activities, got %d", len(acts))
	}
	js, _ := f.journeys.ListJourneys(ctx, "u1", journey.Filter{})
	if len(js) != 0 || len(f.tasks.Tasks) != 0 || len(f.tasks.Calendar) != 0 {
		t.Errorf("preview persisted state: journeys=%d tasks=%d", len(js), len(f.tasks.Tasks))
	}

	req.Intensity = "extreme"
	if _, err := f.svc.Preview(ctx, req); err == nil {
		t.Error("expected unknown intensity to fail")
	}
}

func TestOnboardingService_SpentAttempt(t *testing.T) {
	f := newOnboardingFixture(t, journey.ModeGuided)
	ctx := context.Background()
	req := application.RunRequest{UserID: "u1", Pillar: pillar.SelfCare, Intensity: "light", Duration: "sprint"}

	if _, err := f.assess.Submit(ctx, "u1", pillar.SelfCare, selfCareAnswers); err != nil {
		t.Fatal(err)
	}
	out, done, err := f.svc.Run(ctx, req)
	expect(t, out, err, onboarding.Accepted)
	if _, err := f.journeyFixture.svc.Complete(ctx, done.JourneyID); err != nil {
		t.Fatal(err)
	}

	out, _, err = f.svc.Run(ctx, req)
	expect(t, out, err, onboarding.Rejected)
	if !errors.Is(out.Err, application.ErrAttemptSpent) {
		t.Fatalf("expected ErrAttemptSpent, got %v", out.Err)
	}

	if _, err := f.assess.Submit(ctx, "u1", pillar.SelfCare, selfCareAnswers); err != nil {
		t.Fatal(err)
	}
	out, done, err = f.svc.Run(ctx, req)
	expect(t, out, err, onboarding.Accepted)
	if done == nil || done.Activities != 6 {
		t.Errorf("retry after reassessment = %#v", done)
	}
}

func TestOnboardingService_NextPillarUnlocksAfterCompletion(t *testing.T) {
	f := newOnboardingFixture(t, journey.ModeGuided)
	ctx := context.Background()

	if _, err := f.assess.Submit(ctx, "u1", pillar.SelfCare, selfCareAnswers); err != nil {
		t.Fatal(err)
	}
	out, done, err := f.svc.Run(ctx, application.RunRequest{UserID: "u1", Pillar: pillar.SelfCare, Intensity: "light", Duration: "sprint"})
	expect(t, out, err, onboarding.Accepted)
	if _, err := f.journeyFixture.svc.Complete(ctx, done.JourneyID); err != nil {
		t.Fatal(err)
	}

	if _, err := f.assess.Submit(ctx, "u1", pillar.Skills, assessment.Answers{"learning": 5, "practice": 4, "feedback": 6}); err != nil {
		t.Fatal(err)
	}
	out, done, err = f.svc.Run(ctx, application.RunRequest{UserID: "u1", Pillar: pillar.Skills, Intensity: "light", Duration: "sprint"})
	expect(t, out, err, onboarding.Accepted)
	if done == nil || done.Pillar != pillar.Skills {
		t.Errorf("result = %#v", done)
	}
}

func TestOnboardingService_RecalibrateAfterRejection(t *testing.T) {
	f := newOnboardingFixture(t, journey.ModeGuided)
	ctx := context.Background()
	completePillar(t, f, pillar.SelfCare)
	busy, err := f.journeyFixture.svc.Start(ctx, "u1", pillar.Brand, "brand")
	if err != nil {
		t.Fatal(err)
	}

	out, err := f.svc.Select(ctx, "u1", pillar.Skills, onboarding.EntryAssessment)
	expect(t, out, err, onboarding.Accepted)
	out, err = f.svc.SubmitAssessment(ctx, "u1", assessment.Answers{"learning": 5, "practice": 4, "feedback": 6})
	expect(t, out, err, onboarding.Accepted)
	calibrateLightSprint(t, f)
	out, err = f.svc.ConfirmCalibration(ctx, "u1")
	expect(t, out, err, onboarding.Rejected)

	for i := 0; i < 2; i++ {
		if err := f.svc.Back(ctx, "u1"); err != nil {
			t.Fatalf("back %d: %v", i, err)
		}
	}
	out, err = f.svc.ChooseDuration(ctx, "u1", "journey")
	expect(t, out, err, onboarding.Accepted)

	if _, err := f.journeyFixture.svc.Pause(ctx, busy.ID); err != nil {
		t.Fatal(err)
	}
	out, err = f.svc.ConfirmCalibration(ctx, "u1")
	expect(t, out, err, onboarding.Accepted)
	out, err = f.svc.Generate(ctx, "u1")
	expect(t, out, err, onboarding.Accepted)

	st, _ := f.svc.State(ctx, "u1")
	done, ok := st.(onboarding.PlanComplete)
	if !ok || done.Activities != 12 {
		t.Fatalf("expected a 12-activity plan, got %#v", st)
	}
}

func TestOnboardingService_RunResumesFailedGeneration(t *testing.T) {
	f := newOnboardingFixture(t, journey.ModeGuided)
	ctx := context.Background()
	req := application.RunRequest{UserID: "u1", Pillar: pillar.SelfCare, Intensity: "light", Duration: "sprint"}
	if _, err := f.assess.Submit(ctx, "u1", pillar.SelfCare, selfCareAnswers); err != nil {
		t.Fatal(err)
	}
	f.tasks.FailTaskUpserts = 1

	out, done, err := f.svc.Run(ctx, req)
	expect(t, out, err, onboarding.Failed)
	if done != nil || !out.Retryable {
		t.Fatalf("expected a retryable failure, got %#v", out)
	}
	st, _ := f.svc.State(ctx, "u1")
	if pg, ok := st.(onboarding.PlanGeneration); !ok || pg.Drafts == nil {
		t.Fatalf("expected plan generation with cached drafts, got %#v", st)
	}

	out, done, err = f.svc.Run(ctx, req)
	expect(t, out, err, onboarding.Accepted)
	if done == nil || done.Activities != 6 {
		t.Fatalf("result = %#v", done)
	}
	if f.generator.Calls != 1 {
		t.Errorf("generator called %d times, want 1", f.generator.Calls)
	}
	if len(f.tasks.Tasks) != 6 {
		t.Errorf("expected 6 tasks, got %d", len(f.tasks.Tasks))
	}
}

func TestOnboardingService_RunWithOtherChoicesDropsHeldGeneration(t *testing.T) {
	f := newOnboardingFixture(t, journey.ModeGuided)
	ctx := context.Background()
	if _, err := f.assess.Submit(ctx, "u1", pillar.SelfCare, selfCareAnswers); err != nil {
		t.Fatal(err)
	}
	f.tasks.FailTaskUpserts = 1

	out, _, err := f.svc.Run(ctx, application.RunRequest{UserID: "u1", Pillar: pillar.SelfCare, Intensity: "light", Duration: "sprint"})
	expect(t, out, err, onboarding.Failed)

	out, done, err := f.svc.Run(ctx, application.RunRequest{UserID: "u1", Pillar: pillar.SelfCare, Intensity: "light", Duration: "journey"})
	expect(t, out, err, onboarding.Accepted)
	if done == nil || done.Activities != 12 {
		t.Fatalf("result = %#v", done)
	}
	if f.generator.Calls != 2 {
		t.Errorf("generator called %d times, want 2", f.generator.Calls)
	}
}
