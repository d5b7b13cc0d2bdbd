package journey

import (
	"fmt"
	"strings"
)

// Mode bounds how many journeys a user may pursue at once.
type Mode string

const (
	ModeGuided    Mode = "guided"
	ModeFlexible  Mode = "flexible"
	ModeIntensive Mode = "intensive"
)

// DefaultMode applies to users without stored settings.
const DefaultMode = ModeGuided

var maxConcurrent = map[Mode]int{
	ModeGuided:    1,
	ModeFlexible:  2,
	ModeIntensive: 3,
}

// Modes returns all modes from most to least restrictive.
func Modes() []Mode {
	return []Mode{ModeGuided, ModeFlexible, ModeIntensive}
}

// MaxConcurrent returns the active-journey limit for m. Unknown modes get
// the guided limit.
func (m Mode) MaxConcurrent() int {
	if n, ok := maxConcurrent[m]; ok {
		return n
	}
	return maxConcurrent[ModeGuided]
}

func (m Mode) IsValid() bool {
	_, ok := maxConcurrent[m]
	return ok
}

func (m Mode) String() string { return string(m) }

// CanStartNew reports whether a user in mode m with active journeys may
// start or resume one more.
func (m Mode) CanStartNew(active int) bool {
	return active < m.MaxConcurrent()
}

// CheckStart returns a *ConcurrencyError when another active journey would
// exceed the limit.
func (m Mode) CheckStart(userID string, active int) error {
	if m.CanStartNew(active) {
		return nil
	}
	return &ConcurrencyError{UserID: userID, Mode: m, Active: active}
}

// Overcommitted reports whether the user already exceeds the limit, which
// happens after switching to a stricter mode. Nothing is terminated; new
// starts stay blocked until the count drops.
func (m Mode) Overcommitted(active int) bool {
	return active > m.MaxConcurrent()
}

// ParseMode parses a mode name, case-insensitively.
func ParseMode(s string) (Mode, error) {
	m := Mode(strings.ToLower(strings.TrimSpace(s)))
	if !m.IsValid() {
		return "", fmt.Errorf("%w: %q", ErrUnknownMode, s)
	}
	return m, nil
}
