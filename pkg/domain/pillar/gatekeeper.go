package pillar

import "errors"

// ErrPillarLocked indicates a selection of a pillar that is not yet unlocked.
var ErrPillarLocked = errors.New("pillar is locked")

// Status is the selectability of a pillar for a given completion history.
type Status string

const (
	StatusCompleted Status = "completed"
	StatusAvailable Status = "available"
	StatusRequired  Status = "required"
	StatusLocked    Status = "locked"
)

// IsSelectable reports whether a pillar in this status may be started.
// Completed pillars may be retried with a new journey.
func (s Status) IsSelectable() bool {
	return s == StatusAvailable || s == StatusRequired || s == StatusCompleted
}

// LockedError carries the pillar that blocks a selection, if any.
type LockedError struct {
	Key         Key
	Status      Status
	Predecessor Key
}

func (e *LockedError) Error() string {
	if e.Predecessor != "" {
		return "pillar " + string(e.Key) + " is " + string(e.Status) + ": complete " + string(e.Predecessor) + " first"
	}
	return "pillar " + string(e.Key) + " is " + string(e.Status)
}

// Is allows errors.Is to match ErrPillarLocked.
func (e *LockedError) Is(target error) bool {
	return target == ErrPillarLocked
}

// Gatekeeper decides pillar selectability. It is stateless.
type Gatekeeper struct{}

// StatusOf returns the status for key. Unknown keys are always locked.
func (Gatekeeper) StatusOf(key Key, completed Set, recommended Key) Status {
	pos := Position(key)
	if pos < 0 {
		return StatusLocked
	}
	if completed.Has(key) {
		return StatusCompleted
	}
	if completedCount(completed) == 0 {
		if !recommended.IsValid() {
			recommended = DefaultEntry
		}
		if key == recommended {
			return StatusRequired
		}
		return StatusLocked
	}
	if pos == 0 || completed.Has(canonicalOrder[pos-1]) {
		return StatusAvailable
	}
	return StatusLocked
}

// Statuses returns the status of every pillar in canonical order.
func (g Gatekeeper) Statuses(completed Set, recommended Key) map[Key]Status {
	out := make(map[Key]Status, len(canonicalOrder))
	for _, k := range canonicalOrder {
		out[k] = g.StatusOf(k, completed, recommended)
	}
	return out
}

// CheckSelectable returns nil if key may be started, otherwise a *LockedError.
func (g Gatekeeper) CheckSelectable(key Key, completed Set, recommended Key) error {
	st := g.StatusOf(key, completed, recommended)
	if st.IsSelectable() {
		return nil
	}
	lerr := &LockedError{Key: key, Status: st}
	if pos := Position(key); pos > 0 && st == StatusLocked && completedCount(completed) > 0 {
		lerr.Predecessor = canonicalOrder[pos-1]
	}
	return lerr
}

// completedCount ignores keys that are not in the catalog.
func completedCount(s Set) int {
	n := 0
	for _, k := range canonicalOrder {
		if s.Has(k) {
			n++
		}
	}
	return n
}
