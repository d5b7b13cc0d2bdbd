package calibration

import (
	"errors"
	"fmt"

	"github.com/felixgeelhaar/statekit"
)

// Wizard steps.
const (
	StepIntensity = "intensity"
	StepDuration  = "duration"
	StepConfirm   = "confirm"
	StepConfirmed = "confirmed"
)

const (
	eventChooseIntensity = "choose_intensity"
	eventChooseDuration  = "choose_duration"
	eventBack            = "back"
	eventConfirm         = "confirm"
)

// ErrWizardStep is returned when an action does not fit the current step.
var ErrWizardStep = errors.New("action not allowed at this calibration step")

type wizardContext struct {
	Ready func() bool
}

// Wizard walks intensity → duration → confirm. Only the Choice returned by
// Confirm leaves the wizard.
type Wizard struct {
	interpreter *statekit.Interpreter[wizardContext]
	intensity   *Intensity
	duration    *Duration
}

// NewWizard starts a wizard at the intensity step.
func NewWizard() (*Wizard, error) {
	w := &Wizard{}

	builder := statekit.NewMachine[wizardContext]("calibration-wizard").
		WithInitial(statekit.StateID(StepIntensity)).
		WithContext(wizardContext{
			Ready: func() bool { return w.intensity != nil && w.duration != nil },
		}).
		WithGuard("ready", func(ctx wizardContext, e statekit.Event) bool {
			return ctx.Ready()
		})

	builder.State(StepIntensity).
		On(eventChooseIntensity).Target(StepDuration).
		Done()

	builder.State(StepDuration).
		On(eventChooseDuration).Target(StepConfirm).
		On(eventBack).Target(StepIntensity).
		Done()

	builder.State(StepConfirm).
		On(eventConfirm).Target(StepConfirmed).Guard("ready").
		On(eventBack).Target(StepDuration).
		Done()

	builder.State(StepConfirmed).
		On(eventBack).Target(StepConfirm).
		Done()

	machine, err := builder.Build()
	if err != nil {
		return nil, fmt.Errorf("failed to build calibration wizard: %w", err)
	}

	w.interpreter = statekit.NewInterpreter(machine)
	w.interpreter.Start()
	return w, nil
}

// Step returns the current wizard step.
func (w *Wizard) Step() string {
	return string(w.interpreter.State().Value)
}

// ChooseIntensity records the intensity and advances to the duration step.
func (w *Wizard) ChooseIntensity(i Intensity) error {
	if w.Step() != StepIntensity {
		return fmt.Errorf("%w: choose intensity at %s", ErrWizardStep, w.Step())
	}
	prev := w.intensity
	w.intensity = &i
	if err := w.send(eventChooseIntensity); err != nil {
		w.intensity = prev
		return err
	}
	return nil
}

// ChooseDuration records the duration and advances to the confirm step.
func (w *Wizard) ChooseDuration(d Duration) error {
	if w.Step() != StepDuration {
		return fmt.Errorf("%w: choose duration at %s", ErrWizardStep, w.Step())
	}
	prev := w.duration
	w.duration = &d
	if err := w.send(eventChooseDuration); err != nil {
		w.duration = prev
		return err
	}
	return nil
}

// Back returns to the previous step, keeping earlier selections. From
// confirmed it reopens the confirm step.
func (w *Wizard) Back() error {
	return w.send(eventBack)
}

// Confirm finalises the choice.
func (w *Wizard) Confirm() (Choice, error) {
	if err := w.send(eventConfirm); err != nil {
		return Choice{}, err
	}
	c := Choice{Intensity: *w.intensity, Duration: *w.duration}
	if err := c.Validate(); err != nil {
		return Choice{}, err
	}
	return c, nil
}

// Selected returns the selections made so far.
func (w *Wizard) Selected() (*Intensity, *Duration) {
	return w.intensity, w.duration
}

func (w *Wizard) send(event string) error {
	before := w.Step()
	w.interpreter.Send(statekit.Event{Type: statekit.EventType(event)})
	if w.Step() != before {
		return nil
	}
	return fmt.Errorf("%w: '%s' at step '%s'", ErrWizardStep, event, before)
}
