package cli

import (
	"errors"
	"fmt"
	"strings"

	"github.com/felixgeelhaar/pillars/pkg/application"
	"github.com/felixgeelhaar/pillars/pkg/domain/assessment"
	"github.com/felixgeelhaar/pillars/pkg/domain/calibration"
	"github.com/felixgeelhaar/pillars/pkg/domain/journey"
	"github.com/felixgeelhaar/pillars/pkg/domain/pillar"
	"github.com/felixgeelhaar/pillars/pkg/domain/schedule"
)

// CLIError wraps domain errors with user-facing messages and actionable hints.
type CLIError struct {
	Message  string
	Hint     string
	Err      error
	ExitCode int
}

func (e *CLIError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *CLIError) Unwrap() error {
	return e.Err
}

// NewCLIError creates a CLIError with a default exit code of 1.
func NewCLIError(msg, hint string, err error) *CLIError {
	return &CLIError{
		Message:  msg,
		Hint:     hint,
		Err:      err,
		ExitCode: 1,
	}
}

// MapError converts known domain errors into CLIErrors with actionable hints.
// Unmapped errors are returned as-is.
func MapError(err error) error {
	if err == nil {
		return nil
	}
	var cliErr *CLIError
	if errors.As(err, &cliErr) {
		return err
	}

	var locked *pillar.LockedError
	if errors.As(err, &locked) {
		hint := "Run 'pillars status' to see which pillars are open"
		if locked.Predecessor != "" {
			hint = fmt.Sprintf("Complete %s first", locked.Predecessor.DisplayName())
		}
		return NewCLIError(locked.Key.DisplayName()+" is "+string(locked.Status), hint, err)
	}

	var conc *journey.ConcurrencyError
	if errors.As(err, &conc) {
		return NewCLIError(
			"concurrency limit reached",
			fmt.Sprintf("%s mode allows %d active journey(s); pause one with 'pillars journey pause' or switch with 'pillars mode'", conc.Mode, conc.Mode.MaxConcurrent()),
			err,
		)
	}

	var trans *journey.TransitionError
	if errors.As(err, &trans) {
		if trans.Guarded {
			return NewCLIError("concurrency limit reached", "Pause another journey or switch with 'pillars mode'", err)
		}
		return NewCLIError(
			fmt.Sprintf("cannot %s a %s journey", trans.Event, trans.FromStatus),
			"Run 'pillars journey list' to check journey statuses",
			err,
		)
	}

	var exists *journey.ExistsError
	if errors.As(err, &exists) {
		return NewCLIError(
			exists.PillarKey.DisplayName()+" already has an open journey",
			"Resume it with 'pillars journey resume "+string(exists.PillarKey)+"' or abandon it first",
			err,
		)
	}

	switch {
	case errors.Is(err, journey.ErrJourneyNotFound):
		return NewCLIError("journey not found", "Run 'pillars journey list' to list your journeys", err)
	case errors.Is(err, journey.ErrUnknownMode):
		return NewCLIError("unknown mode", "Use one of: "+joinModes(), err)
	case errors.Is(err, pillar.ErrUnknownPillar):
		return NewCLIError("unknown pillar", "Use one of: "+joinPillars(), err)
	case errors.Is(err, application.ErrNoAssessment):
		return NewCLIError("no assessment for this pillar", "Run 'pillars assess <pillar> --score <dimension>=<0-10> ...' first", err)
	case errors.Is(err, application.ErrAttemptSpent):
		return NewCLIError("this plan was already finished", "Submit a new assessment with 'pillars assess' to start the pillar again", err)
	case errors.Is(err, assessment.ErrIncomplete), errors.Is(err, assessment.ErrScoreOutOfRange):
		return NewCLIError("assessment rejected", "Score every dimension of the pillar between 0 and 10", err)
	case errors.Is(err, calibration.ErrUnknownIntensity):
		return NewCLIError("unknown intensity", "Use one of: light, moderate, intensive", err)
	case errors.Is(err, calibration.ErrUnknownDuration):
		return NewCLIError("unknown duration", "Use one of: sprint, journey, marathon", err)
	case errors.Is(err, schedule.ErrActivityNotFound):
		return NewCLIError("activity not found", "Run 'pillars activity list <journey>' to list activities", err)
	}

	return err
}

func joinModes() string {
	names := make([]string, 0, len(journey.Modes()))
	for _, m := range journey.Modes() {
		names = append(names, string(m))
	}
	return strings.Join(names, ", ")
}

func joinPillars() string {
	names := make([]string, 0, pillar.Count())
	for _, k := range pillar.Order() {
		names = append(names, string(k))
	}
	return strings.Join(names, ", ")
}
