package cli

import (
	"context"
	"io"
	"os/signal"
	"syscall"

	"github.com/felixgeelhaar/pillars/internal/infrastructure/watch"
	"github.com/felixgeelhaar/pillars/pkg/domain/timeline"
)

// followTimeline prints events that appear after seen until interrupted.
func followTimeline(ctx context.Context, w io.Writer, path string, load dayLoader, seen []timeline.Day) error {
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	known := make(map[string]struct{})
	for _, d := range seen {
		for _, e := range d.Events {
			known[e.ID] = struct{}{}
		}
	}
	printf(w, "%s\n", mutedStyle.Render("Following the timeline, Ctrl+C to stop"))

	follower := watch.NewFollower(path, 0, func(watch.Change) {
		days, err := load(ctx)
		if err != nil {
			printf(w, "%s %v\n", errorStyle.Render("reload failed:"), err)
			return
		}
		for _, e := range newEvents(days, known) {
			writeEvent(w, e)
		}
	})
	return follower.Run(ctx)
}

// newEvents returns the unseen events oldest first and marks them seen.
func newEvents(days []timeline.Day, known map[string]struct{}) []timeline.Event {
	var out []timeline.Event
	for _, d := range days {
		for _, e := range d.Events {
			if _, ok := known[e.ID]; ok {
				continue
			}
			known[e.ID] = struct{}{}
			out = append(out, e)
		}
	}
	timeline.SortChronological(out)
	return out
}
