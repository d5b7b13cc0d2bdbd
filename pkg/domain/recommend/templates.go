package recommend

import (
	"fmt"

	"github.com/felixgeelhaar/pillars/pkg/domain/pillar"
)

type band int

const (
	bandLow band = iota
	bandMid
	bandHigh
)

func bandOf(score float64) band {
	switch {
	case score < 4:
		return bandLow
	case score < 7:
		return bandMid
	default:
		return bandHigh
	}
}

var focus = map[pillar.Key]string{
	pillar.SelfCare:  "your energy and recovery",
	pillar.Skills:    "the skills your work depends on",
	pillar.Talent:    "your natural strengths",
	pillar.Brand:     "how others experience you",
	pillar.Economy:   "your financial footing",
	pillar.OpenTrack: "the area you chose for yourself",
}

func motivation(key pillar.Key, b band) string {
	f := focus[key]
	switch b {
	case bandLow:
		return fmt.Sprintf("Your assessment shows the most room to grow in %s. Small, steady steps here will be felt everywhere else.", f)
	case bandMid:
		return fmt.Sprintf("You have a foundation in %s. A focused plan turns it into something reliable.", f)
	default:
		return fmt.Sprintf("You are already strong in %s. Deliberate refinement keeps the momentum.", f)
	}
}

func outcome(key pillar.Key, b band) string {
	name := key.DisplayName()
	switch b {
	case bandLow:
		return fmt.Sprintf("A stable baseline routine for %s within the plan period.", name)
	case bandMid:
		return fmt.Sprintf("Consistent habits in %s and a clear next step.", name)
	default:
		return fmt.Sprintf("Refined practices in %s you can teach or share.", name)
	}
}

var successIndicators = map[pillar.Key][]string{
	pillar.SelfCare:  {"Sleep rhythm is regular", "Stress is noticed and handled early", "Movement is part of most days"},
	pillar.Skills:    {"A practice session happens every week", "Feedback is requested and applied", "One new skill is demonstrably better"},
	pillar.Talent:    {"Top strengths are named", "Flow moments are recognised", "Strengths are used on purpose"},
	pillar.Brand:     {"A short personal story is written", "Visibility actions are scheduled", "Network contacts are renewed"},
	pillar.Economy:   {"A monthly budget exists", "Savings are automatic", "A one-year financial goal is set"},
	pillar.OpenTrack: {"The goal is written down", "Progress is reviewed weekly", "A first milestone is reached"},
}

func indicators(key pillar.Key) []string {
	return append([]string(nil), successIndicators[key]...)
}
