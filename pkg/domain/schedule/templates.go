package schedule

import "strings"

// Placeholders: {pillar} is the pillar display name, {focus} the weakest
// assessed dimension.
var builtinTemplates = map[Category][]Draft{
	Reflection: {
		{Title: "Reflect on {pillar}", Description: "Write down where you stand in {pillar} today and what a good week would look like."},
		{Title: "Weekly {pillar} review", Description: "Look back at the week: what moved, what stalled, and why."},
		{Title: "Notice your {focus}", Description: "Spend a few quiet minutes observing how {focus} shows up in your days."},
	},
	Action: {
		{Title: "Take one concrete step in {pillar}", Description: "Pick the smallest meaningful action for {pillar} and complete it today."},
		{Title: "Work on {focus}", Description: "Block focused time for {focus} and finish one piece of it."},
		{Title: "Remove an obstacle", Description: "Identify one thing holding back your {pillar} progress and deal with it."},
		{Title: "Ask for input", Description: "Ask someone you trust for one observation about your {pillar}."},
	},
	Habit: {
		{Title: "Daily {pillar} check-in", Description: "A short, repeatable check-in to keep {pillar} on your radar."},
		{Title: "Tiny {focus} habit", Description: "Repeat a two-minute {focus} routine at the same time of day."},
	},
	Experiment: {
		{Title: "Try something new in {pillar}", Description: "Run a small experiment in {pillar} and note what happened."},
		{Title: "Change one variable", Description: "Alter one condition around {focus} for a day and compare the result."},
	},
}

func poolsFor(drafts []Draft) map[Category][]Draft {
	pools := make(map[Category][]Draft, len(builtinTemplates))
	for _, d := range drafts {
		if !d.Category.IsValid() || strings.TrimSpace(d.Title) == "" {
			continue
		}
		pools[d.Category] = append(pools[d.Category], d)
	}
	for cat, builtin := range builtinTemplates {
		if len(pools[cat]) == 0 {
			pools[cat] = builtin
		}
	}
	return pools
}

// BuiltinDrafts returns a copy of the built-in templates in category order.
func BuiltinDrafts() []Draft {
	var out []Draft
	for _, cat := range Categories() {
		for _, d := range builtinTemplates[cat] {
			d.Category = cat
			out = append(out, d)
		}
	}
	return out
}
