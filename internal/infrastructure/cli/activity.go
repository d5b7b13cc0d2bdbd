package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/felixgeelhaar/pillars/pkg/domain/schedule"
)

var activityPending bool

var activityCmd = &cobra.Command{
	Use:   "activity",
	Short: "List and complete a journey's activities",
}

var activityListCmd = &cobra.Command{
	Use:   "list <journey-id|pillar>",
	Short: "List a journey's activities by date",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		services, err := loadServicesForCurrentDir()
		if err != nil {
			return err
		}
		defer services.Close()

		ctx := cmd.Context()
		j, err := resolveJourney(ctx, services, currentUser(), args[0])
		if err != nil {
			return MapError(err)
		}
		acts, err := services.Journeys.Activities(ctx, j.ID)
		if err != nil {
			return MapError(err)
		}
		if activityPending {
			open := acts[:0]
			for _, a := range acts {
				if !a.IsCompleted {
					open = append(open, a)
				}
			}
			acts = open
		}
		w := cmd.OutOrStdout()
		printf(w, "%s %s  %s\n\n", titleStyle.Render(j.PillarKey.DisplayName()), shortID(j.ID), progressBar(j.Progress, 20))
		return writeActivities(w, acts)
	},
}

var activityDoneCmd = &cobra.Command{
	Use:   "done <journey-id|pillar> <activity-id>",
	Short: "Mark an activity complete",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		services, err := loadServicesForCurrentDir()
		if err != nil {
			return err
		}
		defer services.Close()

		ctx := cmd.Context()
		j, err := resolveJourney(ctx, services, currentUser(), args[0])
		if err != nil {
			return MapError(err)
		}
		acts, err := services.Journeys.Activities(ctx, j.ID)
		if err != nil {
			return MapError(err)
		}
		activityID, err := resolveActivity(acts, args[1])
		if err != nil {
			return MapError(err)
		}

		res, err := services.Journeys.CompleteActivity(ctx, j.ID, activityID)
		if err != nil {
			return MapError(err)
		}
		w := cmd.OutOrStdout()
		if res.AlreadyDone {
			printf(w, "%q was already done\n", res.Activity.Title)
			return nil
		}
		printf(w, "%s %s\n", okStyle.Render("Done:"), res.Activity.Title)
		printf(w, "%s  %s\n", res.Journey.PillarKey.DisplayName(), progressBar(res.Journey.Progress, 20))
		for _, m := range res.Milestones {
			printf(w, "%s\n", titleStyle.Render(fmt.Sprintf("Milestone reached: %d%%", m)))
		}
		return nil
	},
}

func resolveActivity(acts []schedule.Activity, arg string) (string, error) {
	var matches []string
	for _, a := range acts {
		if a.ID == arg {
			return a.ID, nil
		}
		if strings.HasPrefix(a.ID, arg) {
			matches = append(matches, a.ID)
		}
	}
	switch len(matches) {
	case 1:
		return matches[0], nil
	case 0:
		return "", fmt.Errorf("%w: %s", schedule.ErrActivityNotFound, arg)
	default:
		return "", NewCLIError(fmt.Sprintf("%q matches %d activities", arg, len(matches)), "Use a longer id", nil)
	}
}

func init() {
	activityListCmd.Flags().BoolVar(&activityPending, "pending", false, "only activities not yet done")
	activityCmd.AddCommand(activityListCmd)
	activityCmd.AddCommand(activityDoneCmd)
	RootCmd.AddCommand(activityCmd)
}
