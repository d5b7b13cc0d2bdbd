package cli

import (
	"context"
	"io"

	"github.com/spf13/cobra"

	"github.com/felixgeelhaar/pillars/internal/infrastructure/wiring"
	"github.com/felixgeelhaar/pillars/pkg/domain/timeline"
)

var (
	timelineJourney string
	timelineFollow  bool
)

var timelineCmd = &cobra.Command{
	Use:   "timeline",
	Short: "Show journey history grouped by day, newest first",
	Long: `Show the history of all your journeys, or of one with --journey.

With --follow, keep running and print new events as they are recorded.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		services, err := loadServicesForCurrentDir()
		if err != nil {
			return err
		}
		defer services.Close()

		ctx := cmd.Context()
		load, err := timelineLoader(ctx, services, currentUser(), timelineJourney)
		if err != nil {
			return MapError(err)
		}
		days, err := load(ctx)
		if err != nil {
			return MapError(err)
		}
		w := cmd.OutOrStdout()
		if len(days) == 0 && !timelineFollow {
			printf(w, "No events yet.\n")
			return nil
		}
		writeDays(w, days)

		if !timelineFollow {
			return nil
		}
		stop, err := services.ServeMetrics()
		if err != nil {
			return err
		}
		defer stop()
		return followTimeline(ctx, w, services.Workspace.TimelinePath, load, days)
	},
}

type dayLoader func(ctx context.Context) ([]timeline.Day, error)

func timelineLoader(ctx context.Context, services *wiring.AppServices, user, journeyArg string) (dayLoader, error) {
	if journeyArg == "" {
		return func(ctx context.Context) ([]timeline.Day, error) {
			return services.Timeline.ForUser(ctx, user)
		}, nil
	}
	j, err := resolveJourney(ctx, services, user, journeyArg)
	if err != nil {
		return nil, err
	}
	return func(ctx context.Context) ([]timeline.Day, error) {
		return services.Timeline.ForJourney(ctx, j.ID)
	}, nil
}

func writeDays(w io.Writer, days []timeline.Day) {
	for i, d := range days {
		if i > 0 {
			printf(w, "\n")
		}
		printf(w, "%s\n", titleStyle.Render(d.Date.Format("Monday, January 2 2006")))
		for _, e := range d.Events {
			writeEvent(w, e)
		}
	}
}

func writeEvent(w io.Writer, e timeline.Event) {
	printf(w, "  %s  %-14s %s\n", mutedStyle.Render(e.OccurredAt.Local().Format("15:04")), e.Type, e.Title)
}

var verifyCmd = &cobra.Command{
	Use:   "verify",
	Short: "Check the timeline's hash chain and event order",
	RunE: func(cmd *cobra.Command, args []string) error {
		services, err := loadServicesForCurrentDir()
		if err != nil {
			return err
		}
		defer services.Close()

		violations, err := services.Timeline.Verify(cmd.Context())
		if err != nil {
			return err
		}
		w := cmd.OutOrStdout()
		if len(violations) == 0 {
			printf(w, "%s\n", okStyle.Render("Timeline verified: no problems found"))
			return nil
		}
		for _, v := range violations {
			printf(w, "  - %s\n", v)
		}
		return NewCLIError("timeline integrity check failed", "The timeline file was modified outside pillars", nil)
	},
}

func init() {
	timelineCmd.Flags().StringVar(&timelineJourney, "journey", "", "journey id or pillar")
	timelineCmd.Flags().BoolVarP(&timelineFollow, "follow", "f", false, "print new events as they happen")
	RootCmd.AddCommand(timelineCmd)
	RootCmd.AddCommand(verifyCmd)
}
