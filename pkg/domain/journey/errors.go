package journey

import (
	"errors"
	"fmt"

	"github.com/felixgeelhaar/pillars/pkg/domain/pillar"
)

// Domain errors for journey lifecycle management.
var (
	// ErrJourneyNotFound indicates the journey does not exist.
	ErrJourneyNotFound = errors.New("journey not found")

	// ErrInvalidTransition indicates the requested lifecycle transition is not allowed.
	ErrInvalidTransition = errors.New("invalid journey transition")

	// ErrConcurrencyLimit indicates the user's mode does not allow another active journey.
	ErrConcurrencyLimit = errors.New("concurrency limit reached")

	// ErrJourneyExists indicates an open journey already exists for the pillar.
	ErrJourneyExists = errors.New("journey already open for pillar")

	// ErrUnknownMode indicates an unrecognised mode name.
	ErrUnknownMode = errors.New("unknown mode")
)

// TransitionError provides details about a rejected lifecycle event.
type TransitionError struct {
	JourneyID  string
	FromStatus Status
	Event      string
	// Guarded is set when the event is structurally valid but a guard
	// (the concurrency policy) refused it.
	Guarded bool
}

func (e *TransitionError) Error() string {
	if e.Guarded {
		return "journey " + e.JourneyID + " cannot " + e.Event + " from " + string(e.FromStatus) + ": blocked by concurrency policy"
	}
	return "journey " + e.JourneyID + " cannot " + e.Event + " from " + string(e.FromStatus)
}

// Is allows errors.Is to work with TransitionError. A guarded rejection also
// matches ErrConcurrencyLimit.
func (e *TransitionError) Is(target error) bool {
	if target == ErrInvalidTransition {
		return true
	}
	return e.Guarded && target == ErrConcurrencyLimit
}

// ConcurrencyError provides details about a blocked start or resume.
type ConcurrencyError struct {
	UserID string
	Mode   Mode
	Active int
}

func (e *ConcurrencyError) Error() string {
	return fmt.Sprintf("%s mode allows %d active journey(s); user %s already has %d",
		e.Mode, e.Mode.MaxConcurrent(), e.UserID, e.Active)
}

// Is allows errors.Is to work with ConcurrencyError.
func (e *ConcurrencyError) Is(target error) bool {
	return target == ErrConcurrencyLimit
}

// ExistsError names the open journey occupying a pillar.
type ExistsError struct {
	PillarKey pillar.Key
	JourneyID string
}

func (e *ExistsError) Error() string {
	if e.JourneyID == "" {
		return "a journey for " + e.PillarKey.DisplayName() + " is already being set up"
	}
	return "journey " + e.JourneyID + " for " + e.PillarKey.DisplayName() + " is still open"
}

// Is allows errors.Is to work with ExistsError.
func (e *ExistsError) Is(target error) bool {
	return target == ErrJourneyExists
}
