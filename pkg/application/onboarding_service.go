package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/felixgeelhaar/pillars/pkg/domain/ai"
	"github.com/felixgeelhaar/pillars/pkg/domain/assessment"
	"github.com/felixgeelhaar/pillars/pkg/domain/calibration"
	"github.com/felixgeelhaar/pillars/pkg/domain/journey"
	"github.com/felixgeelhaar/pillars/pkg/domain/onboarding"
	"github.com/felixgeelhaar/pillars/pkg/domain/pillar"
	"github.com/felixgeelhaar/pillars/pkg/domain/schedule"
)

// ErrNoAssessment indicates that no stored assessment exists for the pillar.
var ErrNoAssessment = errors.New("no assessment for pillar")

// ErrAttemptSpent is returned when the same assessment and calibration
// already produced a journey that has ended.
var ErrAttemptSpent = errors.New("this plan was already used")

// OnboardingService keeps one onboarding flow per user and performs the
// store and generator calls each step needs.
type OnboardingService struct {
	assessments *AssessmentService
	journeys    *JourneyService
	plans       *PlanService
	logger      *slog.Logger
	now         func() time.Time
	startOffset int

	locks *keyedLocks
	mu    sync.Mutex
	flows map[string]*onboarding.Flow
}

func NewOnboardingService(assessments *AssessmentService, journeys *JourneyService, plans *PlanService, logger *slog.Logger) *OnboardingService {
	if logger == nil {
		logger = slog.Default()
	}
	return &OnboardingService{
		assessments: assessments,
		journeys:    journeys,
		plans:       plans,
		logger:      logger,
		now:         time.Now,
		startOffset: 1,
		locks:       newKeyedLocks(),
		flows:       make(map[string]*onboarding.Flow),
	}
}

// WithClock replaces time.Now.
func (s *OnboardingService) WithClock(now func() time.Time) *OnboardingService {
	s.now = now
	return s
}

// WithStartOffset sets how many days after generation a plan starts.
func (s *OnboardingService) WithStartOffset(days int) *OnboardingService {
	if days >= 0 {
		s.startOffset = days
	}
	return s
}

func (s *OnboardingService) planStart() time.Time {
	now := s.now()
	day := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	return day.AddDate(0, 0, s.startOffset)
}

// history returns the completed pillars and the recommended entry pillar.
func (s *OnboardingService) history(ctx context.Context, userID string) (pillar.Set, pillar.Key, error) {
	js, err := s.journeys.List(ctx, userID, journey.Filter{})
	if err != nil {
		return nil, "", err
	}
	rec, err := s.assessments.Recommend(ctx, userID)
	if err != nil {
		return nil, "", err
	}
	recommended := rec.PrimaryKey()
	if recommended == "" {
		recommended = pillar.DefaultEntry
	}
	return journey.CompletedPillars(js), recommended, nil
}

// flow returns the user's flow, creating it on first use. Callers hold the
// user's lock.
func (s *OnboardingService) flow(ctx context.Context, userID string) (*onboarding.Flow, error) {
	s.mu.Lock()
	f, ok := s.flows[userID]
	s.mu.Unlock()
	if ok {
		return f, nil
	}
	completed, recommended, err := s.history(ctx, userID)
	if err != nil {
		return nil, err
	}
	f, err = onboarding.NewFlow(userID, completed, recommended)
	if err != nil {
		return nil, err
	}
	s.mu.Lock()
	s.flows[userID] = f
	s.mu.Unlock()
	return f, nil
}

// State returns the user's current onboarding state. At the gateway the
// completion history is reloaded first.
func (s *OnboardingService) State(ctx context.Context, userID string) (onboarding.State, error) {
	unlock := s.locks.lock(userID)
	defer unlock()

	f, err := s.flow(ctx, userID)
	if err != nil {
		return nil, err
	}
	if err := s.refresh(ctx, userID, f); err != nil {
		return nil, err
	}
	return f.State(), nil
}

// refresh reloads the completion history of a flow waiting at the gateway.
func (s *OnboardingService) refresh(ctx context.Context, userID string, f *onboarding.Flow) error {
	if f.Stage() != onboarding.StageGateway {
		return nil
	}
	completed, recommended, err := s.history(ctx, userID)
	if err != nil {
		return err
	}
	return f.Refresh(completed, recommended)
}

// Select picks the next pillar against the current completion history.
func (s *OnboardingService) Select(ctx context.Context, userID string, key pillar.Key, entry onboarding.Entry) (onboarding.Outcome, error) {
	unlock := s.locks.lock(userID)
	defer unlock()

	f, err := s.flow(ctx, userID)
	if err != nil {
		return onboarding.Outcome{}, err
	}
	if err := s.refresh(ctx, userID, f); err != nil {
		return onboarding.Outcome{}, err
	}
	out, err := f.Select(key, entry)
	if err == nil && !out.OK() {
		s.logger.Debug("pillar selection rejected", "user_id", userID, "pillar", key, "reason", out.Reason)
	}
	return out, err
}

// Begin leaves the intro for the assessment.
func (s *OnboardingService) Begin(ctx context.Context, userID string) error {
	unlock := s.locks.lock(userID)
	defer unlock()

	f, err := s.flow(ctx, userID)
	if err != nil {
		return err
	}
	return f.Begin()
}

// SubmitAssessment stores the answers and advances to calibration. Invalid
// answers are rejected without advancing.
func (s *OnboardingService) SubmitAssessment(ctx context.Context, userID string, answers assessment.Answers) (onboarding.Outcome, error) {
	unlock := s.locks.lock(userID)
	defer unlock()

	f, err := s.flow(ctx, userID)
	if err != nil {
		return onboarding.Outcome{}, err
	}
	st, ok := f.State().(onboarding.Assessment)
	if !ok {
		return onboarding.Outcome{}, fmt.Errorf("%w: submit assessment at %s", onboarding.ErrWrongStage, f.Stage())
	}

	r, err := s.assessments.Submit(ctx, userID, st.Pillar, answers)
	switch {
	case errors.Is(err, assessment.ErrIncomplete), errors.Is(err, assessment.ErrScoreOutOfRange):
		return onboarding.Reject(err.Error(), err), nil
	case err != nil:
		return onboarding.Fail("could not save the assessment", true, err), nil
	}
	if err := f.Assessed(r); err != nil {
		return onboarding.Outcome{}, err
	}
	return onboarding.Accept(), nil
}

// UseLatestAssessment advances with the newest stored assessment of the
// selected pillar.
func (s *OnboardingService) UseLatestAssessment(ctx context.Context, userID string) (onboarding.Outcome, error) {
	unlock := s.locks.lock(userID)
	defer unlock()

	f, err := s.flow(ctx, userID)
	if err != nil {
		return onboarding.Outcome{}, err
	}
	st, ok := f.State().(onboarding.Assessment)
	if !ok {
		return onboarding.Outcome{}, fmt.Errorf("%w: use assessment at %s", onboarding.ErrWrongStage, f.Stage())
	}
	r, err := s.assessments.Latest(ctx, userID, st.Pillar)
	if err != nil {
		return onboarding.Fail("could not load assessments", true, err), nil
	}
	if r == nil {
		return onboarding.Reject("assess "+st.Pillar.DisplayName()+" first", ErrNoAssessment), nil
	}
	if err := f.Assessed(*r); err != nil {
		return onboarding.Outcome{}, err
	}
	return onboarding.Accept(), nil
}

// ChooseIntensity records the intensity preset named key.
func (s *OnboardingService) ChooseIntensity(ctx context.Context, userID, key string) (onboarding.Outcome, error) {
	return s.withWizard(ctx, userID, func(w *calibration.Wizard) (onboarding.Outcome, error) {
		i, err := calibration.LookupIntensity(key)
		if err != nil {
			return onboarding.Reject(err.Error(), err), nil
		}
		return onboarding.Accept(), w.ChooseIntensity(i)
	})
}

// ChooseDuration records the duration preset named key.
func (s *OnboardingService) ChooseDuration(ctx context.Context, userID, key string) (onboarding.Outcome, error) {
	return s.withWizard(ctx, userID, func(w *calibration.Wizard) (onboarding.Outcome, error) {
		d, err := calibration.LookupDuration(key)
		if err != nil {
			return onboarding.Reject(err.Error(), err), nil
		}
		return onboarding.Accept(), w.ChooseDuration(d)
	})
}

// Back steps the calibration wizard back.
func (s *OnboardingService) Back(ctx context.Context, userID string) error {
	_, err := s.withWizard(ctx, userID, func(w *calibration.Wizard) (onboarding.Outcome, error) {
		return onboarding.Accept(), w.Back()
	})
	return err
}

func (s *OnboardingService) withWizard(ctx context.Context, userID string, fn func(*calibration.Wizard) (onboarding.Outcome, error)) (onboarding.Outcome, error) {
	unlock := s.locks.lock(userID)
	defer unlock()

	f, err := s.flow(ctx, userID)
	if err != nil {
		return onboarding.Outcome{}, err
	}
	w, err := f.Wizard()
	if err != nil {
		return onboarding.Outcome{}, err
	}
	return fn(w)
}

// ConfirmCalibration confirms the wizard and enters plan generation,
// reserving a concurrency slot. Without a free slot the flow stays at
// calibration and the outcome explains why.
func (s *OnboardingService) ConfirmCalibration(ctx context.Context, userID string) (onboarding.Outcome, error) {
	unlock := s.locks.lock(userID)
	defer unlock()

	f, err := s.flow(ctx, userID)
	if err != nil {
		return onboarding.Outcome{}, err
	}
	cal, ok := f.State().(onboarding.Calibration)
	if !ok {
		return onboarding.Outcome{}, fmt.Errorf("%w: confirm at %s", onboarding.ErrWrongStage, f.Stage())
	}
	choice, err := f.ConfirmCalibration()
	if err != nil {
		return onboarding.Outcome{}, err
	}

	start := s.planStart()
	attempt := onboarding.AttemptKey(userID, cal.Pillar, cal.AssessmentID, choice, start)
	out, err := f.StartGeneration(attempt, start, func() error {
		if err := s.checkAttempt(ctx, attempt); err != nil {
			return err
		}
		return s.journeys.Reserve(ctx, userID, cal.Pillar, attempt)
	})
	if err != nil {
		return onboarding.Outcome{}, err
	}
	if !out.OK() {
		s.logger.Debug("plan generation refused", "user_id", userID, "pillar", cal.Pillar, "reason", out.Reason)
	}
	return out, nil
}

// checkAttempt refuses an attempt whose journey has already finished.
func (s *OnboardingService) checkAttempt(ctx context.Context, attempt string) error {
	j, err := s.journeys.Get(ctx, journey.IDForAttempt(attempt))
	switch {
	case errors.Is(err, journey.ErrJourneyNotFound):
		return nil
	case err != nil:
		return err
	case j.Status.IsTerminal():
		return ErrAttemptSpent
	}
	return nil
}

// Generate produces and persists the plan, then creates the journey. On
// failure the flow stays in plan generation and the outcome is retryable.
// Drafts from a successful generator call are reused on retry.
func (s *OnboardingService) Generate(ctx context.Context, userID string) (onboarding.Outcome, error) {
	unlock := s.locks.lock(userID)
	defer unlock()

	f, err := s.flow(ctx, userID)
	if err != nil {
		return onboarding.Outcome{}, err
	}
	pg, ok := f.State().(onboarding.PlanGeneration)
	if !ok {
		return onboarding.Outcome{}, fmt.Errorf("%w: generate at %s", onboarding.ErrWrongStage, f.Stage())
	}

	drafts := pg.Drafts
	if drafts == nil {
		drafts, err = s.plans.Draft(ctx, ai.PlanRequest{PillarKey: pg.Pillar, Context: pg.Context, Choice: pg.Choice})
		if err != nil {
			return f.GenerationFailed("the plan could not be generated", retryable(err), err)
		}
		if err := f.CacheDrafts(drafts); err != nil {
			return onboarding.Outcome{}, err
		}
	}

	acts, err := s.plans.Persist(ctx, schedule.Request{
		UserID:     userID,
		JourneyID:  journey.IDForAttempt(pg.AttemptKey),
		AttemptKey: pg.AttemptKey,
		PillarKey:  pg.Pillar,
		Context:    pg.Context,
		Choice:     pg.Choice,
		Start:      pg.Start,
	}, drafts)
	if err != nil {
		return f.GenerationFailed("the plan could not be saved", retryable(err), err)
	}

	j, err := s.journeys.Start(ctx, userID, pg.Pillar, pg.AttemptKey)
	if err != nil {
		return f.GenerationFailed("the journey could not be created", true, err)
	}
	if err := f.PlanPersisted(j.ID, len(acts)); err != nil {
		return onboarding.Outcome{}, err
	}
	s.logger.Info("plan complete", "user_id", userID, "pillar", pg.Pillar, "journey_id", j.ID, "activities", len(acts))
	return onboarding.Accept(), nil
}

func retryable(err error) bool {
	var pe *PlanError
	if errors.As(err, &pe) {
		return pe.Retryable()
	}
	return true
}

// Next returns to the gateway after a completed plan, or to the terminal
// state when every pillar is complete.
func (s *OnboardingService) Next(ctx context.Context, userID string) error {
	unlock := s.locks.lock(userID)
	defer unlock()

	f, err := s.flow(ctx, userID)
	if err != nil {
		return err
	}
	completed, recommended, err := s.history(ctx, userID)
	if err != nil {
		return err
	}
	return f.Next(completed, recommended)
}

// Cancel abandons the pillar being onboarded and frees its reservation.
func (s *OnboardingService) Cancel(ctx context.Context, userID string) error {
	unlock := s.locks.lock(userID)
	defer unlock()

	f, err := s.flow(ctx, userID)
	if err != nil {
		return err
	}
	return s.cancelLocked(userID, f)
}

func (s *OnboardingService) cancelLocked(userID string, f *onboarding.Flow) error {
	prev, err := f.Cancel()
	if err != nil {
		return err
	}
	if pg, ok := prev.(onboarding.PlanGeneration); ok {
		s.journeys.Release(userID, pg.Pillar)
	}
	return nil
}

// RunRequest drives a whole onboarding in one call.
type RunRequest struct {
	UserID    string
	Pillar    pillar.Key
	Intensity string
	Duration  string
}

// Run selects the pillar, uses its latest assessment, calibrates and
// generates the plan. A rejected step cancels the flow, so the user is back
// at the gateway. A retryable generation failure keeps the flow in plan
// generation with its cached drafts; running the same request again resumes
// there.
func (s *OnboardingService) Run(ctx context.Context, req RunRequest) (onboarding.Outcome, *onboarding.PlanComplete, error) {
	resume, err := s.prepareRun(ctx, req)
	if err != nil {
		return onboarding.Outcome{}, nil, err
	}

	generate := func() (onboarding.Outcome, error) { return s.Generate(ctx, req.UserID) }
	steps := []func() (onboarding.Outcome, error){generate}
	if !resume {
		steps = []func() (onboarding.Outcome, error){
			func() (onboarding.Outcome, error) {
				return s.Select(ctx, req.UserID, req.Pillar, onboarding.EntryAssessment)
			},
			func() (onboarding.Outcome, error) { return s.UseLatestAssessment(ctx, req.UserID) },
			func() (onboarding.Outcome, error) { return s.ChooseIntensity(ctx, req.UserID, req.Intensity) },
			func() (onboarding.Outcome, error) { return s.ChooseDuration(ctx, req.UserID, req.Duration) },
			func() (onboarding.Outcome, error) { return s.ConfirmCalibration(ctx, req.UserID) },
			generate,
		}
	}
	for i, step := range steps {
		out, err := step()
		if err == nil && out.OK() {
			continue
		}
		if err == nil && i == len(steps)-1 && out.Kind == onboarding.Failed && out.Retryable {
			return out, nil, nil
		}
		if i > 0 || resume {
			if cerr := s.Cancel(ctx, req.UserID); cerr != nil {
				s.logger.Warn("cancel after failed step", "user_id", req.UserID, "error", cerr)
			}
		}
		return out, nil, err
	}

	st, err := s.State(ctx, req.UserID)
	if err != nil {
		return onboarding.Outcome{}, nil, err
	}
	done, ok := st.(onboarding.PlanComplete)
	if !ok {
		return onboarding.Outcome{}, nil, fmt.Errorf("%w: expected plan complete, at %s", onboarding.ErrWrongStage, st.Stage())
	}
	if err := s.Next(ctx, req.UserID); err != nil {
		return onboarding.Outcome{}, nil, err
	}
	return onboarding.Accept(), &done, nil
}

// prepareRun reports whether req can resume a plan generation left by an
// earlier failed run. A flow held at any other stage is cancelled first.
func (s *OnboardingService) prepareRun(ctx context.Context, req RunRequest) (bool, error) {
	unlock := s.locks.lock(req.UserID)
	defer unlock()

	f, err := s.flow(ctx, req.UserID)
	if err != nil {
		return false, err
	}
	switch st := f.State().(type) {
	case onboarding.Gateway, onboarding.AllComplete:
		return false, nil
	case onboarding.PlanGeneration:
		i, ierr := calibration.LookupIntensity(req.Intensity)
		d, derr := calibration.LookupDuration(req.Duration)
		if ierr == nil && derr == nil && st.Pillar == req.Pillar &&
			st.Choice.Intensity.Key == i.Key && st.Choice.Duration.Key == d.Key {
			return true, nil
		}
	case onboarding.PlanComplete:
		completed, recommended, err := s.history(ctx, req.UserID)
		if err != nil {
			return false, err
		}
		return false, f.Next(completed, recommended)
	}
	return false, s.cancelLocked(req.UserID, f)
}

// Preview drafts and schedules the plan Run would create, using the latest
// assessment of the pillar. Nothing is stored and no slot is reserved.
func (s *OnboardingService) Preview(ctx context.Context, req RunRequest) ([]schedule.Activity, error) {
	intensity, err := calibration.LookupIntensity(req.Intensity)
	if err != nil {
		return nil, err
	}
	duration, err := calibration.LookupDuration(req.Duration)
	if err != nil {
		return nil, err
	}
	r, err := s.assessments.Latest(ctx, req.UserID, req.Pillar)
	if err != nil {
		return nil, err
	}
	if r == nil {
		return nil, ErrNoAssessment
	}

	choice := calibration.Choice{Intensity: intensity, Duration: duration}
	actx := schedule.AssessmentContext{PillarScore: r.PillarScore(), Scores: r.Scores}
	drafts, err := s.plans.Draft(ctx, ai.PlanRequest{PillarKey: req.Pillar, Context: actx, Choice: choice})
	if err != nil {
		return nil, err
	}
	start := s.planStart()
	attempt := onboarding.AttemptKey(req.UserID, req.Pillar, r.ID, choice, start)
	return schedule.GenerateFromDrafts(schedule.Request{
		UserID:     req.UserID,
		JourneyID:  journey.IDForAttempt(attempt),
		AttemptKey: attempt,
		PillarKey:  req.Pillar,
		Context:    actx,
		Choice:     choice,
		Start:      start,
	}, drafts)
}
