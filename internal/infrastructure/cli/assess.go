package cli

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/felixgeelhaar/pillars/pkg/domain/assessment"
	"github.com/felixgeelhaar/pillars/pkg/domain/pillar"
)

var assessScores []string

var assessCmd = &cobra.Command{
	Use:   "assess <pillar>",
	Short: "Record an assessment of a pillar",
	Long: `Record an assessment of a pillar. Every dimension must be scored
from 0 to 10; partial assessments are not stored.

Examples:
  pillars assess self_care --score sleep=4 --score stress=3 --score movement=6 --score recovery=5
  pillars assess skills`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		key, err := pillar.ParseKey(args[0])
		if err != nil {
			return MapError(err)
		}
		p, _ := pillar.Lookup(key)
		w := cmd.OutOrStdout()

		if len(assessScores) == 0 {
			printf(w, "%s is scored on: %s\n", p.Name, strings.Join(p.Dimensions, ", "))
			return NewCLIError("no scores given", "Pass --score <dimension>=<0-10> once per dimension", nil)
		}
		answers, err := parseScores(assessScores)
		if err != nil {
			return err
		}

		services, err := loadServicesForCurrentDir()
		if err != nil {
			return err
		}
		defer services.Close()

		r, err := services.Assessment.Submit(cmd.Context(), currentUser(), key, answers)
		if err != nil {
			return MapError(err)
		}
		printf(w, "%s assessed: %.1f / %.0f\n", p.Name, r.PillarScore(), assessment.MaxScore)
		return nil
	},
}

// parseScores reads dimension=value pairs.
func parseScores(pairs []string) (assessment.Answers, error) {
	answers := assessment.Answers{}
	for _, pair := range pairs {
		dim, raw, ok := strings.Cut(pair, "=")
		dim = strings.TrimSpace(dim)
		if !ok || dim == "" {
			return nil, NewCLIError(fmt.Sprintf("invalid score %q", pair), "Use --score <dimension>=<0-10>", nil)
		}
		v, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
		if err != nil {
			return nil, NewCLIError(fmt.Sprintf("invalid score %q", pair), "Scores are numbers from 0 to 10", err)
		}
		answers[dim] = v
	}
	return answers, nil
}

var recommendCmd = &cobra.Command{
	Use:   "recommend",
	Short: "Rank assessed pillars by improvement potential",
	RunE: func(cmd *cobra.Command, args []string) error {
		services, err := loadServicesForCurrentDir()
		if err != nil {
			return err
		}
		defer services.Close()

		set, err := services.Assessment.Recommend(cmd.Context(), currentUser())
		if err != nil {
			return MapError(err)
		}
		w := cmd.OutOrStdout()
		if set.Primary == nil {
			printf(w, "No assessments yet. Start with %s: pillars assess %s\n", pillar.DefaultEntry.DisplayName(), pillar.DefaultEntry)
			return nil
		}

		printf(w, "%s %s (score %.1f, relevance %.1f)\n", titleStyle.Render("Focus on"), set.Primary.PillarKey.DisplayName(), set.Primary.Score, set.Primary.RelevanceScore)
		printf(w, "  %s\n  %s\n", set.Primary.Motivation, mutedStyle.Render(set.Primary.ExpectedOutcome))
		if set.Secondary != nil {
			printf(w, "%s %s (score %.1f)\n", titleStyle.Render("Then"), set.Secondary.PillarKey.DisplayName(), set.Secondary.Score)
		}
		printf(w, "Readiness %.1f\n", set.ReadinessScore)
		if len(set.SuccessIndicators) > 0 {
			printf(w, "Success looks like:\n")
			for _, s := range set.SuccessIndicators {
				printf(w, "  - %s\n", s)
			}
		}
		return nil
	},
}

func init() {
	assessCmd.Flags().StringArrayVar(&assessScores, "score", nil, "dimension score as <dimension>=<0-10> (repeatable)")
	RootCmd.AddCommand(assessCmd)
	RootCmd.AddCommand(recommendCmd)
}
