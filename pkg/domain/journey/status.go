package journey

import (
	"encoding/json"
	"fmt"
)

type Status string

const (
	StatusActive    Status = "active"
	StatusPaused    Status = "paused"
	StatusCompleted Status = "completed"
	StatusAbandoned Status = "abandoned"
)

// Lifecycle events.
const (
	EventPause    = "pause"
	EventResume   = "resume"
	EventComplete = "complete"
	EventAbandon  = "abandon"
)

// validTransitions maps currentStatus -> event -> targetStatus.
var validTransitions = map[Status]map[string]Status{
	StatusActive: {
		EventPause:    StatusPaused,
		EventComplete: StatusCompleted,
		EventAbandon:  StatusAbandoned,
	},
	StatusPaused: {
		EventResume:   StatusActive,
		EventComplete: StatusCompleted,
		EventAbandon:  StatusAbandoned,
	},
	StatusCompleted: {},
	StatusAbandoned: {},
}

// AllStatuses returns every journey status.
func AllStatuses() []Status {
	return []Status{StatusActive, StatusPaused, StatusCompleted, StatusAbandoned}
}

// IsValid reports whether s is a known status.
func (s Status) IsValid() bool {
	_, ok := validTransitions[s]
	return ok
}

func (s Status) String() string { return string(s) }

// IsTerminal reports whether no further transitions are possible.
func (s Status) IsTerminal() bool {
	return s == StatusCompleted || s == StatusAbandoned
}

// IsOpen reports whether the journey still occupies its pillar.
func (s Status) IsOpen() bool {
	return s == StatusActive || s == StatusPaused
}

// CanTransitionWith reports whether event is allowed from s.
func (s Status) CanTransitionWith(event string) bool {
	_, ok := validTransitions[s][event]
	return ok
}

// TransitionWith returns the target status for event.
func (s Status) TransitionWith(event string) (Status, error) {
	target, ok := validTransitions[s][event]
	if !ok {
		return s, fmt.Errorf("event '%s' not allowed from status '%s'", event, s)
	}
	return target, nil
}

// ParseStatus parses a status string.
func ParseStatus(s string) (Status, error) {
	st := Status(s)
	if !st.IsValid() {
		return "", fmt.Errorf("invalid journey status: %s", s)
	}
	return st, nil
}

// UnmarshalJSON rejects unknown statuses.
func (s *Status) UnmarshalJSON(data []byte) error {
	var str string
	if err := json.Unmarshal(data, &str); err != nil {
		return err
	}
	st, err := ParseStatus(str)
	if err != nil {
		return err
	}
	*s = st
	return nil
}
