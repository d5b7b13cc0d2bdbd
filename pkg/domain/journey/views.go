package journey

import "sort"

// SortForDisplay orders journeys by descending progress, then by ascending
// start time. The slice is sorted in place.
func SortForDisplay(journeys []Journey) {
	sort.SliceStable(journeys, func(i, k int) bool {
		a, b := journeys[i], journeys[k]
		if a.Progress != b.Progress {
			return a.Progress > b.Progress
		}
		return a.StartedAt.Before(b.StartedAt)
	})
}

func byStatus(journeys []Journey, status Status) []Journey {
	out := make([]Journey, 0, len(journeys))
	for _, j := range journeys {
		if j.Status == status {
			out = append(out, j)
		}
	}
	SortForDisplay(out)
	return out
}

// Active returns the active journeys in display order.
func Active(journeys []Journey) []Journey { return byStatus(journeys, StatusActive) }

// Paused returns the paused journeys in display order.
func Paused(journeys []Journey) []Journey { return byStatus(journeys, StatusPaused) }

// Completed returns the completed journeys in display order.
func Completed(journeys []Journey) []Journey { return byStatus(journeys, StatusCompleted) }
