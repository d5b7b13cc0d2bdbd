// Package calibration defines effort presets (intensity × duration) and the
// three-step wizard that produces a confirmed Choice.
package calibration

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrUnknownIntensity is returned for an intensity key outside the presets.
	ErrUnknownIntensity = errors.New("unknown intensity")

	// ErrUnknownDuration is returned for a duration key outside the presets.
	ErrUnknownDuration = errors.New("unknown duration")
)

type IntensityKey string

const (
	Light     IntensityKey = "light"
	Moderate  IntensityKey = "moderate"
	Intensive IntensityKey = "intensive"
)

type DurationKey string

const (
	Sprint   DurationKey = "sprint"
	Journey  DurationKey = "journey"
	Marathon DurationKey = "marathon"
)

// Intensity is the daily effort of a plan.
type Intensity struct {
	Key               IntensityKey `json:"key" yaml:"key"`
	MinutesPerDay     int          `json:"minutes_per_day" yaml:"minutes_per_day"`
	ActivitiesPerWeek int          `json:"activities_per_week" yaml:"activities_per_week"`
}

// Duration is the length of a plan in weeks.
type Duration struct {
	Key   DurationKey `json:"key" yaml:"key"`
	Weeks int         `json:"weeks" yaml:"weeks"`
}

var intensities = map[IntensityKey]Intensity{
	Light:     {Key: Light, MinutesPerDay: 15, ActivitiesPerWeek: 3},
	Moderate:  {Key: Moderate, MinutesPerDay: 30, ActivitiesPerWeek: 5},
	Intensive: {Key: Intensive, MinutesPerDay: 60, ActivitiesPerWeek: 7},
}

var durations = map[DurationKey]Duration{
	Sprint:   {Key: Sprint, Weeks: 2},
	Journey:  {Key: Journey, Weeks: 4},
	Marathon: {Key: Marathon, Weeks: 8},
}

// Intensities returns the presets from lightest to heaviest.
func Intensities() []Intensity {
	return []Intensity{intensities[Light], intensities[Moderate], intensities[Intensive]}
}

// Durations returns the presets from shortest to longest.
func Durations() []Duration {
	return []Duration{durations[Sprint], durations[Journey], durations[Marathon]}
}

// LookupIntensity resolves an intensity preset by key.
func LookupIntensity(key string) (Intensity, error) {
	i, ok := intensities[IntensityKey(strings.ToLower(strings.TrimSpace(key)))]
	if !ok {
		return Intensity{}, fmt.Errorf("%w: %q", ErrUnknownIntensity, key)
	}
	return i, nil
}

// LookupDuration resolves a duration preset by key.
func LookupDuration(key string) (Duration, error) {
	d, ok := durations[DurationKey(strings.ToLower(strings.TrimSpace(key)))]
	if !ok {
		return Duration{}, fmt.Errorf("%w: %q", ErrUnknownDuration, key)
	}
	return d, nil
}

// Choice is a confirmed calibration. It is immutable after confirmation.
type Choice struct {
	Intensity Intensity `json:"intensity" yaml:"intensity"`
	Duration  Duration  `json:"duration" yaml:"duration"`
}

// TotalActivities is activitiesPerWeek × weeks.
func (c Choice) TotalActivities() int {
	return c.Intensity.ActivitiesPerWeek * c.Duration.Weeks
}

// Validate rejects non-positive parameters, which custom (non-preset) choices
// could carry.
func (c Choice) Validate() error {
	if c.Intensity.ActivitiesPerWeek <= 0 || c.Intensity.MinutesPerDay <= 0 {
		return fmt.Errorf("%w: %+v", ErrUnknownIntensity, c.Intensity)
	}
	if c.Duration.Weeks <= 0 {
		return fmt.Errorf("%w: %+v", ErrUnknownDuration, c.Duration)
	}
	return nil
}

func (c Choice) String() string {
	return fmt.Sprintf("%s × %s (%d activities)", c.Intensity.Key, c.Duration.Key, c.TotalActivities())
}
