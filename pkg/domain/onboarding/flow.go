package onboarding

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/felixgeelhaar/statekit"

	"github.com/felixgeelhaar/pillars/pkg/domain/assessment"
	"github.com/felixgeelhaar/pillars/pkg/domain/calibration"
	"github.com/felixgeelhaar/pillars/pkg/domain/pillar"
	"github.com/felixgeelhaar/pillars/pkg/domain/schedule"
)

// ErrWrongStage is returned when a step is invoked at a stage that does not
// accept it. It indicates a caller bug, not a user mistake.
var ErrWrongStage = errors.New("operation not valid at this onboarding stage")

// Entry selects where a chosen pillar lands: the intro preview or straight
// into the assessment (resume).
type Entry string

const (
	EntryIntro      Entry = "intro"
	EntryAssessment Entry = "assessment"
)

const (
	eventSelectIntro      = "select_intro"
	eventSelectAssessment = "select_assessment"
	eventBegin            = "begin"
	eventAssessed         = "assessed"
	eventGenerate         = "generate"
	eventPersisted        = "persisted"
	eventNext             = "next"
	eventFinish           = "finish"
	eventCancel           = "cancel"
)

type flowContext struct {
	Allowed func(event string) bool
}

// Flow is one user's onboarding state machine. It is not safe for
// concurrent use; callers serialize access per user.
type Flow struct {
	UserID string

	interpreter *statekit.Interpreter[flowContext]
	state       State
	gate        pillar.Gatekeeper

	completed   pillar.Set
	recommended pillar.Key

	// verdicts holds guard results computed before an event is sent.
	verdicts map[string]bool
}

// NewFlow starts a flow at the gateway, or at AllComplete when every pillar
// is already completed.
func NewFlow(userID string, completed pillar.Set, recommended pillar.Key) (*Flow, error) {
	f := &Flow{
		UserID:      userID,
		completed:   completed,
		recommended: recommended,
		verdicts:    map[string]bool{},
	}

	initial := StageGateway
	if completed.IsComplete() {
		initial = StageAllComplete
	}

	builder := statekit.NewMachine[flowContext]("onboarding").
		WithInitial(statekit.StateID(initial)).
		WithContext(flowContext{
			Allowed: func(event string) bool { return f.verdicts[event] },
		}).
		WithGuard("selectable", func(ctx flowContext, e statekit.Event) bool {
			return ctx.Allowed(string(e.Type))
		}).
		WithGuard("admitted", func(ctx flowContext, e statekit.Event) bool {
			return ctx.Allowed(string(e.Type))
		})

	builder.State(statekit.StateID(StageGateway)).
		On(eventSelectIntro).Target(statekit.StateID(StageIntro)).Guard("selectable").
		On(eventSelectAssessment).Target(statekit.StateID(StageAssessment)).Guard("selectable").
		On(eventFinish).Target(statekit.StateID(StageAllComplete)).
		Done()

	builder.State(statekit.StateID(StageIntro)).
		On(eventBegin).Target(statekit.StateID(StageAssessment)).
		On(eventCancel).Target(statekit.StateID(StageGateway)).
		Done()

	builder.State(statekit.StateID(StageAssessment)).
		On(eventAssessed).Target(statekit.StateID(StageCalibration)).
		On(eventCancel).Target(statekit.StateID(StageGateway)).
		Done()

	builder.State(statekit.StateID(StageCalibration)).
		On(eventGenerate).Target(statekit.StateID(StagePlanGeneration)).Guard("admitted").
		On(eventCancel).Target(statekit.StateID(StageGateway)).
		Done()

	builder.State(statekit.StateID(StagePlanGeneration)).
		On(eventPersisted).Target(statekit.StateID(StagePlanComplete)).
		On(eventCancel).Target(statekit.StateID(StageGateway)).
		Done()

	builder.State(statekit.StateID(StagePlanComplete)).
		On(eventNext).Target(statekit.StateID(StageGateway)).
		On(eventFinish).Target(statekit.StateID(StageAllComplete)).
		Done()

	builder.State(statekit.StateID(StageAllComplete)).Done()

	machine, err := builder.Build()
	if err != nil {
		return nil, fmt.Errorf("failed to build onboarding flow: %w", err)
	}
	f.interpreter = statekit.NewInterpreter(machine)
	f.interpreter.Start()

	if initial == StageAllComplete {
		f.state = AllComplete{}
	} else {
		f.state = f.gateway()
	}
	return f, nil
}

// State returns the current stage variant.
func (f *Flow) State() State { return f.state }

// Stage returns the current stage name.
func (f *Flow) Stage() Stage { return Stage(f.interpreter.State().Value) }

func (f *Flow) gateway() Gateway {
	return Gateway{
		Completed:   f.completed,
		Recommended: f.recommended,
		Statuses:    f.gate.Statuses(f.completed, f.recommended),
	}
}

// Refresh updates the completion history seen by the gateway. When every
// pillar is complete the flow moves to AllComplete.
func (f *Flow) Refresh(completed pillar.Set, recommended pillar.Key) error {
	if f.Stage() != StageGateway {
		return fmt.Errorf("%w: refresh at %s", ErrWrongStage, f.Stage())
	}
	f.completed, f.recommended = completed, recommended
	if completed.IsComplete() {
		return f.send(eventFinish, AllComplete{})
	}
	f.state = f.gateway()
	return nil
}

// Select picks a pillar at the gateway. A locked pillar is rejected and the
// flow stays put.
func (f *Flow) Select(key pillar.Key, entry Entry) (Outcome, error) {
	if f.Stage() != StageGateway {
		return Outcome{}, fmt.Errorf("%w: select at %s", ErrWrongStage, f.Stage())
	}
	event, next := eventSelectIntro, State(Intro{Pillar: key})
	if entry == EntryAssessment {
		event, next = eventSelectAssessment, State(Assessment{Pillar: key})
	}

	err := f.gate.CheckSelectable(key, f.completed, f.recommended)
	f.verdicts[event] = err == nil
	defer delete(f.verdicts, event)
	if err != nil {
		return Reject(lockedReason(key, err), err), nil
	}
	if err := f.send(event, next); err != nil {
		return Outcome{}, err
	}
	return Accept(), nil
}

func lockedReason(key pillar.Key, err error) string {
	var le *pillar.LockedError
	if errors.As(err, &le) && le.Predecessor != "" {
		return fmt.Sprintf("%s unlocks after you complete %s", key.DisplayName(), le.Predecessor.DisplayName())
	}
	if !key.IsValid() {
		return fmt.Sprintf("%q is not a pillar", string(key))
	}
	return fmt.Sprintf("%s is not available yet", key.DisplayName())
}

// Begin moves from the intro to the assessment.
func (f *Flow) Begin() error {
	st, ok := f.state.(Intro)
	if !ok {
		return fmt.Errorf("%w: begin at %s", ErrWrongStage, f.Stage())
	}
	return f.send(eventBegin, Assessment{Pillar: st.Pillar})
}

// Assessed advances to calibration once a complete result for the current
// pillar has been stored.
func (f *Flow) Assessed(r assessment.Result) error {
	st, ok := f.state.(Assessment)
	if !ok {
		return fmt.Errorf("%w: assessed at %s", ErrWrongStage, f.Stage())
	}
	if r.PillarKey != st.Pillar {
		return fmt.Errorf("%w: result for %s while assessing %s", ErrWrongStage, r.PillarKey, st.Pillar)
	}
	if err := assessment.Validate(r.PillarKey, r.Scores); err != nil {
		return err
	}
	w, err := calibration.NewWizard()
	if err != nil {
		return err
	}
	return f.send(eventAssessed, Calibration{
		Pillar:       st.Pillar,
		AssessmentID: r.ID,
		Context:      schedule.AssessmentContext{PillarScore: r.PillarScore(), Scores: r.Scores},
		Wizard:       w,
	})
}

// Wizard returns the calibration wizard of the current flow.
func (f *Flow) Wizard() (*calibration.Wizard, error) {
	st, ok := f.state.(Calibration)
	if !ok {
		return nil, fmt.Errorf("%w: wizard at %s", ErrWrongStage, f.Stage())
	}
	return st.Wizard, nil
}

// ConfirmCalibration finalises the wizard and returns the choice. Calling it
// again after a rejected generation start returns the same choice.
func (f *Flow) ConfirmCalibration() (calibration.Choice, error) {
	st, ok := f.state.(Calibration)
	if !ok {
		return calibration.Choice{}, fmt.Errorf("%w: confirm at %s", ErrWrongStage, f.Stage())
	}
	if st.Wizard.Step() == calibration.StepConfirmed {
		i, d := st.Wizard.Selected()
		return calibration.Choice{Intensity: *i, Duration: *d}, nil
	}
	return st.Wizard.Confirm()
}

// StartGeneration enters plan generation with the confirmed choice, to be
// scheduled from start. admit
// runs the concurrency check; when it fails the flow stays at calibration
// and the returned outcome carries the explanation.
func (f *Flow) StartGeneration(attemptKey string, start time.Time, admit func() error) (Outcome, error) {
	st, ok := f.state.(Calibration)
	if !ok {
		return Outcome{}, fmt.Errorf("%w: generate at %s", ErrWrongStage, f.Stage())
	}
	if st.Wizard.Step() != calibration.StepConfirmed {
		return Outcome{}, fmt.Errorf("%w: calibration not confirmed", ErrWrongStage)
	}
	choice, err := f.ConfirmCalibration()
	if err != nil {
		return Outcome{}, err
	}

	var admitErr error
	if admit != nil {
		admitErr = admit()
	}
	f.verdicts[eventGenerate] = admitErr == nil
	defer delete(f.verdicts, eventGenerate)
	if admitErr != nil {
		st.Notice = admitErr.Error()
		f.state = st
		return Reject(admitErr.Error(), admitErr), nil
	}

	err = f.send(eventGenerate, PlanGeneration{
		Pillar:       st.Pillar,
		AssessmentID: st.AssessmentID,
		Context:      st.Context,
		Choice:       choice,
		AttemptKey:   attemptKey,
		Start:        start,
	})
	if err != nil {
		return Outcome{}, err
	}
	return Accept(), nil
}

// CacheDrafts keeps generated drafts for reuse on retry.
func (f *Flow) CacheDrafts(drafts []schedule.Draft) error {
	st, ok := f.state.(PlanGeneration)
	if !ok {
		return fmt.Errorf("%w: cache drafts at %s", ErrWrongStage, f.Stage())
	}
	st.Drafts = drafts
	f.state = st
	return nil
}

// GenerationFailed records a failed attempt. The flow stays in plan
// generation.
func (f *Flow) GenerationFailed(reason string, retryable bool, cause error) (Outcome, error) {
	st, ok := f.state.(PlanGeneration)
	if !ok {
		return Outcome{}, fmt.Errorf("%w: generation failure at %s", ErrWrongStage, f.Stage())
	}
	st.Attempts++
	st.LastError = reason
	f.state = st
	return Fail(reason, retryable, cause), nil
}

// PlanPersisted completes the pillar's flow.
func (f *Flow) PlanPersisted(journeyID string, activities int) error {
	st, ok := f.state.(PlanGeneration)
	if !ok {
		return fmt.Errorf("%w: persisted at %s", ErrWrongStage, f.Stage())
	}
	return f.send(eventPersisted, PlanComplete{Pillar: st.Pillar, JourneyID: journeyID, Activities: activities})
}

// Next returns to the gateway for another pillar, or finishes when every
// pillar is complete.
func (f *Flow) Next(completed pillar.Set, recommended pillar.Key) error {
	if f.Stage() != StagePlanComplete {
		return fmt.Errorf("%w: next at %s", ErrWrongStage, f.Stage())
	}
	f.completed, f.recommended = completed, recommended
	if completed.IsComplete() {
		return f.send(eventFinish, AllComplete{})
	}
	return f.send(eventNext, f.gateway())
}

// Cancel abandons the pillar in progress and returns to the gateway. The
// abandoned state is returned so the caller can release what it held.
func (f *Flow) Cancel() (State, error) {
	prev := f.state
	if err := f.send(eventCancel, f.gateway()); err != nil {
		return nil, err
	}
	return prev, nil
}

func (f *Flow) send(event string, next State) error {
	before := f.Stage()
	f.interpreter.Send(statekit.Event{Type: statekit.EventType(event)})
	if f.Stage() == before {
		return fmt.Errorf("%w: '%s' at '%s'", ErrWrongStage, event, before)
	}
	f.state = next
	return nil
}

// AttemptKey identifies one plan generation attempt. Retrying the same
// attempt reproduces the same key, and with it the same journey and
// activity ids.
func AttemptKey(userID string, key pillar.Key, assessmentID string, choice calibration.Choice, start time.Time) string {
	return strings.Join([]string{
		userID,
		string(key),
		assessmentID,
		string(choice.Intensity.Key),
		string(choice.Duration.Key),
		start.UTC().Format("2006-01-02"),
	}, "|")
}
