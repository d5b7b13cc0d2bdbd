package journey

import (
	"fmt"

	"github.com/felixgeelhaar/statekit"
)

// State constants for statekit. Values must match the Status constants.
const (
	StateActive    = "active"
	StatePaused    = "paused"
	StateCompleted = "completed"
	StateAbandoned = "abandoned"
)

func init() {
	stateMap := map[string]Status{
		StateActive:    StatusActive,
		StatePaused:    StatusPaused,
		StateCompleted: StatusCompleted,
		StateAbandoned: StatusAbandoned,
	}
	for fsmState, status := range stateMap {
		if fsmState != string(status) {
			panic(fmt.Sprintf("FSM state %q does not match Status %q - constants are out of sync", fsmState, status))
		}
	}
}

// LifecycleContext carries the guard consulted on resume.
type LifecycleContext struct {
	JourneyID string
	Guard     func(journeyID string, event string) bool
}

// LifecycleMachine drives one journey's status.
type LifecycleMachine struct {
	interpreter *statekit.Interpreter[LifecycleContext]
}

// NewLifecycleMachine builds a machine at initial. The guard gates resume,
// which is where the concurrency policy is re-checked; nil allows everything.
func NewLifecycleMachine(initial Status, journeyID string, guard func(string, string) bool) (*LifecycleMachine, error) {
	if !initial.IsValid() {
		return nil, fmt.Errorf("invalid initial status: %q", initial)
	}
	if guard == nil {
		guard = func(string, string) bool { return true }
	}

	builder := statekit.NewMachine[LifecycleContext]("journey-lifecycle").
		WithInitial(statekit.StateID(initial)).
		WithContext(LifecycleContext{
			JourneyID: journeyID,
			Guard:     guard,
		}).
		WithGuard("concurrencyGuard", func(ctx LifecycleContext, e statekit.Event) bool {
			return ctx.Guard(ctx.JourneyID, string(e.Type))
		})

	builder.State(StateActive).
		On(EventPause).Target(StatePaused).
		On(EventComplete).Target(StateCompleted).
		On(EventAbandon).Target(StateAbandoned).
		Done()

	builder.State(StatePaused).
		On(EventResume).Target(StateActive).Guard("concurrencyGuard").
		On(EventComplete).Target(StateCompleted).
		On(EventAbandon).Target(StateAbandoned).
		Done()

	builder.State(StateCompleted).Done()
	builder.State(StateAbandoned).Done()

	machine, err := builder.Build()
	if err != nil {
		return nil, fmt.Errorf("failed to build journey lifecycle: %w", err)
	}

	interpreter := statekit.NewInterpreter(machine)
	interpreter.Start()
	return &LifecycleMachine{interpreter: interpreter}, nil
}

// Transition applies event. A rejected event leaves the state untouched and
// returns a *TransitionError.
func (m *LifecycleMachine) Transition(event string) error {
	before := m.Current()
	m.interpreter.Send(statekit.Event{Type: statekit.EventType(event)})
	if m.Current() != before {
		return nil
	}
	return &TransitionError{
		JourneyID:  m.interpreter.State().Context.JourneyID,
		FromStatus: before,
		Event:      event,
		Guarded:    before.CanTransitionWith(event),
	}
}

// Current returns the current status.
func (m *LifecycleMachine) Current() Status {
	return Status(m.interpreter.State().Value)
}
