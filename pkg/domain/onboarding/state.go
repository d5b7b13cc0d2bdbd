// Package onboarding drives one user from pillar selection to a generated
// plan. Each stage is its own type carrying only the data valid at that stage.
package onboarding

import (
	"time"

	"github.com/felixgeelhaar/pillars/pkg/domain/calibration"
	"github.com/felixgeelhaar/pillars/pkg/domain/pillar"
	"github.com/felixgeelhaar/pillars/pkg/domain/schedule"
)

// Stage names the position of a flow.
type Stage string

const (
	StageGateway        Stage = "gateway"
	StageIntro          Stage = "intro"
	StageAssessment     Stage = "assessment"
	StageCalibration    Stage = "calibration"
	StagePlanGeneration Stage = "plan_generation"
	StagePlanComplete   Stage = "plan_complete"
	StageAllComplete    Stage = "all_complete"
)

// State is implemented by every stage variant.
type State interface {
	Stage() Stage
	isState()
}

// Gateway is where the user picks the next pillar.
type Gateway struct {
	Completed   pillar.Set
	Recommended pillar.Key
	Statuses    map[pillar.Key]pillar.Status
}

// Intro previews the selected pillar.
type Intro struct {
	Pillar pillar.Key
}

// Assessment waits for a complete assessment of Pillar.
type Assessment struct {
	Pillar pillar.Key
}

// Calibration hosts the intensity/duration wizard.
type Calibration struct {
	Pillar       pillar.Key
	AssessmentID string
	Context      schedule.AssessmentContext
	Wizard       *calibration.Wizard
	// Notice explains the last rejected attempt to move on, if any.
	Notice string
}

// PlanGeneration waits for the plan to be generated and persisted.
type PlanGeneration struct {
	Pillar       pillar.Key
	AssessmentID string
	Context      schedule.AssessmentContext
	Choice       calibration.Choice
	AttemptKey   string
	Start        time.Time
	// Drafts caches a successful generation so a retry after a storage
	// failure does not call the generator again.
	Drafts    []schedule.Draft
	Attempts  int
	LastError string
}

// PlanComplete reports the created journey.
type PlanComplete struct {
	Pillar     pillar.Key
	JourneyID  string
	Activities int
}

// AllComplete is terminal: every pillar has been completed.
type AllComplete struct{}

func (Gateway) Stage() Stage        { return StageGateway }
func (Intro) Stage() Stage          { return StageIntro }
func (Assessment) Stage() Stage     { return StageAssessment }
func (Calibration) Stage() Stage    { return StageCalibration }
func (PlanGeneration) Stage() Stage { return StagePlanGeneration }
func (PlanComplete) Stage() Stage   { return StagePlanComplete }
func (AllComplete) Stage() Stage    { return StageAllComplete }

func (Gateway) isState()        {}
func (Intro) isState()          {}
func (Assessment) isState()     {}
func (Calibration) isState()    {}
func (PlanGeneration) isState() {}
func (PlanComplete) isState()   {}
func (AllComplete) isState()    {}

// PillarOf returns the pillar a state is working on, if any.
func PillarOf(s State) (pillar.Key, bool) {
	switch st := s.(type) {
	case Intro:
		return st.Pillar, true
	case Assessment:
		return st.Pillar, true
	case Calibration:
		return st.Pillar, true
	case PlanGeneration:
		return st.Pillar, true
	case PlanComplete:
		return st.Pillar, true
	}
	return "", false
}
