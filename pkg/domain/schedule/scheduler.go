package schedule

import (
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/felixgeelhaar/pillars/pkg/domain/calibration"
	"github.com/felixgeelhaar/pillars/pkg/domain/pillar"
)

// ErrInvalidRequest indicates a request the scheduler cannot plan.
var ErrInvalidRequest = errors.New("invalid schedule request")

// activityNamespace seeds name-based activity IDs.
var activityNamespace = uuid.MustParse("6f1c3c8e-2b0d-4f5e-9a41-3d8f0c7b2e19")

// dayStartHour is the local hour the first activity of a day starts at.
const dayStartHour = 9

// share is a category's percentage of the plan.
var share = map[Category]int{
	Reflection: 20,
	Action:     40,
	Habit:      25,
	Experiment: 15,
}

// AssessmentContext is the part of an assessment the scheduler uses for text.
type AssessmentContext struct {
	PillarScore float64            `json:"pillar_score"`
	Scores      map[string]float64 `json:"scores,omitempty"`
}

// FocusDimension is the lowest scored dimension, or "" when unscored.
func (c AssessmentContext) FocusDimension() string {
	focus := ""
	low := 0.0
	keys := make([]string, 0, len(c.Scores))
	for k := range c.Scores {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		if v := c.Scores[k]; focus == "" || v < low {
			focus, low = k, v
		}
	}
	return focus
}

// Request describes one plan to schedule.
type Request struct {
	UserID    string
	JourneyID string
	// AttemptKey makes IDs deterministic; equal keys yield equal IDs.
	AttemptKey string
	PillarKey  pillar.Key
	Context    AssessmentContext
	Choice     calibration.Choice
	Start      time.Time
}

// Partition splits total across categories. Each count is within one of its
// exact share and the counts sum to total.
func Partition(total int) map[Category]int {
	out := make(map[Category]int, len(share))
	if total <= 0 {
		for _, c := range Categories() {
			out[c] = 0
		}
		return out
	}
	type excess struct {
		cat Category
		num int
		idx int
	}
	var ex []excess
	sum := 0
	for i, c := range Categories() {
		exact := total * share[c]
		ceil := (exact + 99) / 100
		out[c] = ceil
		sum += ceil
		ex = append(ex, excess{cat: c, num: ceil*100 - exact, idx: i})
	}
	// Trim the overshoot from the categories rounded up the most; on ties the
	// later category gives way first.
	sort.SliceStable(ex, func(i, j int) bool {
		if ex[i].num != ex[j].num {
			return ex[i].num > ex[j].num
		}
		return ex[i].idx > ex[j].idx
	})
	for i := 0; sum > total && i < len(ex); i++ {
		if out[ex[i].cat] > 0 && ex[i].num > 0 {
			out[ex[i].cat]--
			sum--
		}
	}
	return out
}

// Generate schedules activities from the built-in templates.
func Generate(req Request) ([]Activity, error) {
	return GenerateFromDrafts(req, nil)
}

// GenerateFromDrafts schedules activities using drafts as the text pool of
// their category. Categories without drafts fall back to built-in templates.
func GenerateFromDrafts(req Request, drafts []Draft) ([]Activity, error) {
	if !req.PillarKey.IsValid() {
		return nil, fmt.Errorf("%w: %v", ErrInvalidRequest, pillar.ErrUnknownPillar)
	}
	if err := req.Choice.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidRequest, err)
	}
	if req.Start.IsZero() {
		return nil, fmt.Errorf("%w: missing start date", ErrInvalidRequest)
	}

	total := req.Choice.TotalActivities()
	counts := Partition(total)
	order := interleave(counts, total)
	pools := poolsFor(drafts)
	text := strings.NewReplacer(
		"{pillar}", req.PillarKey.DisplayName(),
		"{focus}", focusOrDefault(req.Context.FocusDimension()),
	)

	perWeek := req.Choice.Intensity.ActivitiesPerWeek
	mpd := req.Choice.Intensity.MinutesPerDay
	base := time.Date(req.Start.Year(), req.Start.Month(), req.Start.Day(), dayStartHour, 0, 0, 0, req.Start.Location())

	used := make(map[Category]int, len(pools))
	dayMinutes := make(map[int]int)
	activities := make([]Activity, 0, total)

	for i, cat := range order {
		pool := pools[cat]
		tmpl := pool[used[cat]%len(pool)]
		used[cat]++

		week := i / perWeek
		day := dayOffset(i, perWeek)
		minutes := estimatedMinutes(cat, mpd)
		at := base.AddDate(0, 0, day).Add(time.Duration(dayMinutes[day]) * time.Minute)
		dayMinutes[day] += minutes

		activities = append(activities, Activity{
			ID:               activityID(req.AttemptKey, i),
			UserID:           req.UserID,
			JourneyID:        req.JourneyID,
			PillarKey:        req.PillarKey,
			Title:            text.Replace(tmpl.Title),
			Description:      text.Replace(tmpl.Description),
			Category:         cat,
			EstimatedMinutes: minutes,
			ScheduledDate:    at,
			Week:             week,
		})
	}

	sort.SliceStable(activities, func(i, j int) bool {
		return activities[i].ScheduledDate.Before(activities[j].ScheduledDate)
	})
	return activities, nil
}

// dayOffset places activity i within its week. With more than seven
// activities per week the integer spacing is zero, so activities are spread
// proportionally and share days; callers offset shared days by minutes.
func dayOffset(i, perWeek int) int {
	week := i / perWeek
	slot := i % perWeek
	spacing := 7 / perWeek
	if spacing > 0 {
		return week*7 + slot*spacing
	}
	return week*7 + slot*7/perWeek
}

func estimatedMinutes(cat Category, minutesPerDay int) int {
	switch cat {
	case Reflection:
		return min(15, minutesPerDay)
	case Habit:
		return max(1, min(minutesPerDay/2, 10))
	default:
		return minutesPerDay
	}
}

// interleave orders categories by smooth weighted round-robin so every stretch
// of the plan carries a proportional mix.
func interleave(counts map[Category]int, total int) []Category {
	cats := Categories()
	current := make(map[Category]int, len(cats))
	out := make([]Category, 0, total)
	for len(out) < total {
		var best Category
		for _, c := range cats {
			if counts[c] == 0 {
				continue
			}
			current[c] += counts[c]
			if best == "" || current[c] > current[best] {
				best = c
			}
		}
		current[best] -= total
		out = append(out, best)
	}
	return out
}

func activityID(attemptKey string, index int) string {
	if attemptKey == "" {
		return uuid.NewString()
	}
	return uuid.NewSHA1(activityNamespace, []byte(attemptKey+"/"+strconv.Itoa(index))).String()
}

func focusOrDefault(f string) string {
	if f == "" {
		return "your focus area"
	}
	return f
}
