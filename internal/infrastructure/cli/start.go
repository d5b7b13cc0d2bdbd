package cli

import (
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/felixgeelhaar/pillars/pkg/application"
	"github.com/felixgeelhaar/pillars/pkg/domain/onboarding"
	"github.com/felixgeelhaar/pillars/pkg/domain/pillar"
	"github.com/felixgeelhaar/pillars/pkg/domain/schedule"
)

var (
	startIntensity string
	startDuration  string
	startPreview   bool
)

var startCmd = &cobra.Command{
	Use:   "start <pillar>",
	Short: "Calibrate and generate a plan, then start the journey",
	Long: `Start a journey for a pillar using its latest assessment.

Intensity sets activities per week (light 3, moderate 5, intensive 7).
Duration sets the length (sprint 2 weeks, journey 4, marathon 8).

If generation fails, run the same command again: the retry reuses the
same plan ids, so nothing is duplicated.

Examples:
  pillars start self_care --intensity light --duration sprint
  pillars start skills --intensity moderate --duration journey --preview`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		key, err := pillar.ParseKey(args[0])
		if err != nil {
			return MapError(err)
		}
		services, err := loadServicesForCurrentDir()
		if err != nil {
			return err
		}
		defer services.Close()

		ctx := cmd.Context()
		w := cmd.OutOrStdout()
		req := application.RunRequest{
			UserID:    currentUser(),
			Pillar:    key,
			Intensity: startIntensity,
			Duration:  startDuration,
		}

		if startPreview {
			acts, err := services.Onboarding.Preview(ctx, req)
			if err != nil {
				return MapError(err)
			}
			printf(w, "%s %s: %d activities (nothing saved)\n\n", titleStyle.Render("Preview"), key.DisplayName(), len(acts))
			return writeActivities(w, acts)
		}

		out, done, err := services.Onboarding.Run(ctx, req)
		if err != nil {
			return MapError(err)
		}
		if !out.OK() {
			return outcomeError(out)
		}

		printf(w, "%s %s journey %s with %d activities\n", okStyle.Render("Started"), key.DisplayName(), done.JourneyID, done.Activities)
		acts, err := services.Journeys.Activities(ctx, done.JourneyID)
		if err != nil {
			return MapError(err)
		}
		if len(acts) > 5 {
			acts = acts[:5]
		}
		printf(w, "\nFirst up:\n")
		return writeActivities(w, acts)
	},
}

// outcomeError turns a refused onboarding step into a CLI error.
func outcomeError(out onboarding.Outcome) error {
	var cliErr *CLIError
	if out.Err != nil && errors.As(MapError(out.Err), &cliErr) {
		return cliErr
	}
	hint := ""
	if out.Kind == onboarding.Failed && out.Retryable {
		hint = "Run the same command again to retry"
	}
	return NewCLIError(out.Reason, hint, out.Err)
}

func writeActivities(w io.Writer, acts []schedule.Activity) error {
	rows := make([][]string, 0, len(acts))
	for _, a := range acts {
		done := ""
		if a.IsCompleted {
			done = okStyle.Render("✓")
		}
		rows = append(rows, []string{
			shortID(a.ID),
			a.ScheduledDate.Format("Mon Jan 2 15:04"),
			fmt.Sprintf("%d", a.Week+1),
			string(a.Category),
			a.Title,
			fmt.Sprintf("%dm", a.EstimatedMinutes),
			done,
		})
	}
	return writeTable(w, []string{"ID", "When", "Week", "Category", "Activity", "Time", "Done"}, rows)
}

func init() {
	startCmd.Flags().StringVar(&startIntensity, "intensity", "moderate", "light, moderate or intensive")
	startCmd.Flags().StringVar(&startDuration, "duration", "journey", "sprint, journey or marathon")
	startCmd.Flags().BoolVar(&startPreview, "preview", false, "show the plan without saving anything")
	RootCmd.AddCommand(startCmd)
}
