package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/felixgeelhaar/pillars/pkg/domain/journey"
)

var modeCmd = &cobra.Command{
	Use:   "mode [guided|flexible|intensive]",
	Short: "Show or change how many journeys may be active at once",
	Long: `Show or change your journey mode.

  guided     one active journey
  flexible   up to two active journeys
  intensive  up to three active journeys

Lowering the mode never pauses journeys. New starts and resumes stay
blocked until you are back under the limit.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		services, err := loadServicesForCurrentDir()
		if err != nil {
			return err
		}
		defer services.Close()

		ctx := cmd.Context()
		user := currentUser()
		w := cmd.OutOrStdout()

		if len(args) == 0 {
			mode, err := services.Journeys.Mode(ctx, user)
			if err != nil {
				return MapError(err)
			}
			printf(w, "%s mode: up to %d active journey(s)\n", mode, mode.MaxConcurrent())
			return nil
		}

		mode, err := journey.ParseMode(args[0])
		if err != nil {
			return MapError(err)
		}
		change, err := services.Journeys.SetMode(ctx, user, mode)
		if err != nil {
			return MapError(err)
		}
		printf(w, "Mode set to %s (up to %d active journey(s))\n", change.Mode, change.Mode.MaxConcurrent())
		if change.Overcommitted {
			printf(w, "%s\n", warnStyle.Render(fmt.Sprintf(
				"You have %d active journeys. Nothing was paused, but new starts are blocked until you pause some.", change.Active)))
		}
		return nil
	},
}

func init() {
	RootCmd.AddCommand(modeCmd)
}
