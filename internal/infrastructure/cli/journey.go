package cli

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/felixgeelhaar/pillars/internal/infrastructure/wiring"
	"github.com/felixgeelhaar/pillars/pkg/domain/journey"
	"github.com/felixgeelhaar/pillars/pkg/domain/pillar"
)

var journeyListAll bool

var journeyCmd = &cobra.Command{
	Use:   "journey",
	Short: "List and manage your journeys",
}

var journeyListCmd = &cobra.Command{
	Use:   "list",
	Short: "List journeys, active first",
	RunE: func(cmd *cobra.Command, args []string) error {
		services, err := loadServicesForCurrentDir()
		if err != nil {
			return err
		}
		defer services.Close()

		f := journey.Filter{}
		if !journeyListAll {
			f.Statuses = []journey.Status{journey.StatusActive, journey.StatusPaused, journey.StatusCompleted}
		}
		js, err := services.Journeys.List(cmd.Context(), currentUser(), f)
		if err != nil {
			return MapError(err)
		}
		w := cmd.OutOrStdout()
		if len(js) == 0 {
			printf(w, "No journeys yet. Run 'pillars start <pillar>' to begin.\n")
			return nil
		}
		rows := make([][]string, 0, len(js))
		for _, j := range js {
			rows = append(rows, []string{
				shortID(j.ID),
				j.PillarKey.DisplayName(),
				journeyStatusStyle(j.Status).Render(string(j.Status)),
				string(j.Mode),
				progressBar(j.Progress, 10),
				j.StartedAt.Local().Format("2006-01-02"),
			})
		}
		return writeTable(w, []string{"ID", "Pillar", "Status", "Mode", "Progress", "Started"}, rows)
	},
}

// lifecycleCmd builds pause, resume, complete and abandon.
func lifecycleCmd(use, short, verb string, apply func(*wiring.AppServices) func(context.Context, string) (journey.Journey, error)) *cobra.Command {
	return &cobra.Command{
		Use:   use + " <journey-id|pillar>",
		Short: short,
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
			updated, err := apply(services)(ctx, j.ID)
			if err != nil {
				return MapError(err)
			}
			printf(cmd.OutOrStdout(), "%s %s journey %s (%s)\n", verb, updated.PillarKey.DisplayName(), shortID(updated.ID),
				journeyStatusStyle(updated.Status).Render(string(updated.Status)))
			return nil
		},
	}
}

// resolveJourney accepts a pillar key, a full id or an unambiguous id
// prefix. A pillar key picks its open journey, or the latest one.
func resolveJourney(ctx context.Context, services *wiring.AppServices, user, arg string) (journey.Journey, error) {
	js, err := services.Journeys.List(ctx, user, journey.Filter{})
	if err != nil {
		return journey.Journey{}, err
	}
	if key, err := pillar.ParseKey(arg); err == nil {
		if j, ok := latestByPillar(js)[key]; ok {
			return j, nil
		}
		return journey.Journey{}, fmt.Errorf("%w: no journey for %s", journey.ErrJourneyNotFound, key)
	}

	var matches []journey.Journey
	for _, j := range js {
		if j.ID == arg {
			return j, nil
		}
		if strings.HasPrefix(j.ID, arg) {
			matches = append(matches, j)
		}
	}
	switch len(matches) {
	case 1:
		return matches[0], nil
	case 0:
		return journey.Journey{}, fmt.Errorf("%w: %s", journey.ErrJourneyNotFound, arg)
	default:
		return journey.Journey{}, NewCLIError(fmt.Sprintf("%q matches %d journeys", arg, len(matches)), "Use a longer id", nil)
	}
}

func init() {
	journeyListCmd.Flags().BoolVar(&journeyListAll, "all", false, "include abandoned journeys")
	journeyCmd.AddCommand(journeyListCmd)
	journeyCmd.AddCommand(lifecycleCmd("pause", "Pause an active journey", "Paused",
		func(s *wiring.AppServices) func(context.Context, string) (journey.Journey, error) { return s.Journeys.Pause }))
	journeyCmd.AddCommand(lifecycleCmd("resume", "Resume a paused journey", "Resumed",
		func(s *wiring.AppServices) func(context.Context, string) (journey.Journey, error) { return s.Journeys.Resume }))
	journeyCmd.AddCommand(lifecycleCmd("complete", "Mark a journey complete", "Completed",
		func(s *wiring.AppServices) func(context.Context, string) (journey.Journey, error) { return s.Journeys.Complete }))
	journeyCmd.AddCommand(lifecycleCmd("abandon", "Abandon a journey", "Abandoned",
		func(s *wiring.AppServices) func(context.Context, string) (journey.Journey, error) { return s.Journeys.Abandon }))
	RootCmd.AddCommand(journeyCmd)
}
