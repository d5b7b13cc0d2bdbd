package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/felixgeelhaar/pillars/internal/infrastructure/wiring"
	"github.com/felixgeelhaar/pillars/pkg/domain/journey"
	"github.com/felixgeelhaar/pillars/pkg/domain/pillar"
)

var statusJSON bool

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show pillar availability and overall progress",
	Long: `Show the mode, each pillar's status and your overall progress.

Pillars are completed in order. The recommended pillar is marked
"required" until your first pillar is complete.`,
	RunE: runStatusCmd,
}

type pillarStatusJSON struct {
	Key      string `json:"key"`
	Name     string `json:"name"`
	Status   string `json:"status"`
	Journey  string `json:"journey_id,omitempty"`
	Progress int    `json:"progress"`
}

type statusJSONOutput struct {
	User                  string             `json:"user"`
	Mode                  string             `json:"mode"`
	CompletionPercent     int                `json:"completion_percent"`
	AverageActiveProgress float64            `json:"average_active_progress"`
	AllComplete           bool               `json:"all_complete"`
	Pillars               []pillarStatusJSON `json:"pillars"`
}

func runStatusCmd(cmd *cobra.Command, args []string) error {
	services, err := loadServicesForCurrentDir()
	if err != nil {
		return err
	}
	defer services.Close()

	out, err := collectStatus(cmd, services, currentUser())
	if err != nil {
		return MapError(err)
	}

	w := cmd.OutOrStdout()
	if statusJSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(out)
	}

	printf(w, "%s  %s\n", titleStyle.Render("Pillars"), mutedStyle.Render("user "+out.User+", "+out.Mode+" mode"))
	printf(w, "Overall  %s\n", progressBar(out.CompletionPercent, 20))
	if out.AverageActiveProgress > 0 {
		printf(w, "Active journeys average %.0f%% progress\n", out.AverageActiveProgress)
	}
	printf(w, "\n")

	rows := make([][]string, 0, len(out.Pillars))
	for _, p := range out.Pillars {
		id, progress := "-", "-"
		if p.Journey != "" {
			id = shortID(p.Journey)
			progress = fmt.Sprintf("%d%%", p.Progress)
		}
		rows = append(rows, []string{p.Name, pillarStatusStyle(pillar.Status(p.Status)).Render(p.Status), id, progress})
	}
	if err := writeTable(w, []string{"Pillar", "Status", "Journey", "Progress"}, rows); err != nil {
		return err
	}
	if out.AllComplete {
		printf(w, "\n%s\n", okStyle.Render("Every pillar is complete."))
	}
	return nil
}

func collectStatus(cmd *cobra.Command, services *wiring.AppServices, user string) (statusJSONOutput, error) {
	ctx := cmd.Context()
	mode, err := services.Journeys.Mode(ctx, user)
	if err != nil {
		return statusJSONOutput{}, err
	}
	overview, err := services.Progress.Overview(ctx, user)
	if err != nil {
		return statusJSONOutput{}, err
	}
	recs, err := services.Assessment.Recommend(ctx, user)
	if err != nil {
		return statusJSONOutput{}, err
	}
	recommended := recs.PrimaryKey()
	if recommended == "" {
		recommended = pillar.DefaultEntry
	}
	journeys, err := services.Journeys.List(ctx, user, journey.Filter{})
	if err != nil {
		return statusJSONOutput{}, err
	}

	completed := pillar.NewSet(overview.CompletedPillars...)
	statuses := pillar.Gatekeeper{}.Statuses(completed, recommended)
	latest := latestByPillar(journeys)

	out := statusJSONOutput{
		User:                  user,
		Mode:                  string(mode),
		CompletionPercent:     overview.CompletionPercent,
		AverageActiveProgress: overview.AverageActiveProgress,
		AllComplete:           overview.AllComplete,
	}
	for _, key := range pillar.Order() {
		p := pillarStatusJSON{Key: string(key), Name: key.DisplayName(), Status: string(statuses[key])}
		if j, ok := latest[key]; ok {
			p.Journey = j.ID
			p.Progress = j.Progress
		}
		out.Pillars = append(out.Pillars, p)
	}
	return out, nil
}

// latestByPillar prefers open journeys, then the most recently started.
func latestByPillar(journeys []journey.Journey) map[pillar.Key]journey.Journey {
	out := make(map[pillar.Key]journey.Journey, len(journeys))
	for _, j := range journeys {
		cur, ok := out[j.PillarKey]
		switch {
		case !ok:
			out[j.PillarKey] = j
		case j.Status.IsOpen() && !cur.Status.IsOpen():
			out[j.PillarKey] = j
		case j.Status.IsOpen() == cur.Status.IsOpen() && j.StartedAt.After(cur.StartedAt):
			out[j.PillarKey] = j
		}
	}
	return out
}

func init() {
	statusCmd.Flags().BoolVar(&statusJSON, "json", false, "Output in JSON format")
	RootCmd.AddCommand(statusCmd)
}
