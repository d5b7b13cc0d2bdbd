package cli

import (
	"bytes"
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/cobra"

	"github.com/felixgeelhaar/pillars/internal/infrastructure/wiring"
	"github.com/felixgeelhaar/pillars/pkg/domain/journey"
)

// resetFlags restores every package-level flag between runs.
func resetFlags() {
	projectPath, configPath, userFlag = "", "", ""
	statusJSON = false
	assessScores = nil
	startIntensity, startDuration, startPreview = "moderate", "journey", false
	journeyListAll = false
	activityPending = false
	timelineJourney, timelineFollow = "", false
}

// runCLI executes the root command against project dir as user u1.
func runCLI(t *testing.T, dir string, args ...string) (string, error) {
	t.Helper()
	return runCLIContext(t, context.Background(), dir, args...)
}

func runCLIContext(t *testing.T, ctx context.Context, dir string, args ...string) (string, error) {
	t.Helper()
	resetFlags()
	serviceOptions = wiring.Options{LogOutput: io.Discard}

	setContext(RootCmd, ctx)

	var out bytes.Buffer
	RootCmd.SetOut(&out)
	RootCmd.SetErr(&out)
	RootCmd.SetArgs(append([]string{"--project", dir, "--user", "u1"}, args...))
	err := RootCmd.ExecuteContext(ctx)
	return out.String(), err
}

// setContext replaces the context cobra kept on cmd and its subcommands
// from an earlier run.
func setContext(cmd *cobra.Command, ctx context.Context) {
	cmd.SetContext(ctx)
	for _, c := range cmd.Commands() {
		setContext(c, ctx)
	}
}

func newProject(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	if err := os.MkdirAll(filepath.Join(dir, ".pillars"), 0700); err != nil {
		t.Fatal(err)
	}
	return dir
}

func mustRun(t *testing.T, dir string, args ...string) string {
	t.Helper()
	out, err := runCLI(t, dir, args...)
	if err != nil {
		t.Fatalf("pillars %s: %v\n%s", strings.Join(args, " "), err, out)
	}
	return out
}

var selfCareScores = []string{"--score", "sleep=4", "--score", "stress=3", "--score", "movement=6", "--score", "recovery=5"}

func journeyFilterAll() journey.Filter { return journey.Filter{} }
