package cli

import (
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"
)

var (
	Version = "dev"
	Commit  = "none"
	Date    = "unknown"
)

// Global flags.
var (
	projectPath string
	configPath  string
	userFlag    string
)

// RootCmd represents the base command when called without any subcommands
var RootCmd = &cobra.Command{
	Use:     "pillars",
	Version: Version,
	Short:   "Guided development journeys across six life pillars",
	Long: `Pillars guides you through six development pillars in order:
self care, skills, talent, brand, economy and an open track.

Assess a pillar, calibrate how much effort to put in, and follow the
generated plan as a journey you can pause, resume, complete or abandon.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the root command and prints a mapped error with its hint.
func Execute() error {
	err := RootCmd.Execute()
	if err != nil {
		printError(RootCmd.ErrOrStderr(), err)
	}
	return err
}

func printError(w io.Writer, err error) {
	_, _ = fmt.Fprintln(w, errorStyle.Render("Error: ")+err.Error())
	var cliErr *CLIError
	if errors.As(err, &cliErr) && cliErr.Hint != "" {
		_, _ = fmt.Fprintln(w, hintStyle.Render("Hint: "+cliErr.Hint))
	}
}

func init() {
	RootCmd.PersistentFlags().StringVar(&projectPath, "project", "", "project directory (default: current directory)")
	RootCmd.PersistentFlags().StringVar(&configPath, "config", "", "config file (default: <project>/.pillars/config.yaml)")
	RootCmd.PersistentFlags().StringVarP(&userFlag, "user", "u", "", "user id (default: $USER)")
}
