// Package assessment defines immutable assessment results and the contract of
// the store that persists them.
package assessment

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/felixgeelhaar/pillars/pkg/domain/pillar"
)

// MaxScore is the upper bound of every dimension score.
const MaxScore = 10.0

var (
	// ErrIncomplete indicates a submission that does not score every dimension.
	ErrIncomplete = errors.New("assessment is incomplete")

	// ErrScoreOutOfRange indicates a dimension score outside [0, MaxScore].
	ErrScoreOutOfRange = errors.New("assessment score out of range")
)

// Answers maps a dimension name to its numeric score.
type Answers map[string]float64

// Result is one completed assessment. It is never mutated once created;
// a new submission for the same pillar creates a new Result.
type Result struct {
	ID          string             `json:"id" yaml:"id"`
	UserID      string             `json:"user_id" yaml:"user_id"`
	PillarKey   pillar.Key         `json:"pillar_key" yaml:"pillar_key"`
	Scores      map[string]float64 `json:"scores" yaml:"scores"`
	CompletedAt time.Time          `json:"completed_at" yaml:"completed_at"`
}

// PillarScore is the mean of the dimension scores, rounded to one decimal.
func (r Result) PillarScore() float64 {
	if len(r.Scores) == 0 {
		return 0
	}
	sum := 0.0
	for _, v := range r.Scores {
		sum += v
	}
	return math.Round(sum/float64(len(r.Scores))*10) / 10
}

// Validate checks that answers cover every dimension of the pillar with an
// in-range score. Extra dimensions are rejected as well.
func Validate(key pillar.Key, answers Answers) error {
	p, ok := pillar.Lookup(key)
	if !ok {
		return fmt.Errorf("%w: %q", pillar.ErrUnknownPillar, key)
	}
	var missing []string
	for _, dim := range p.Dimensions {
		v, ok := answers[dim]
		if !ok {
			missing = append(missing, dim)
			continue
		}
		if v < 0 || v > MaxScore || math.IsNaN(v) {
			return fmt.Errorf("%w: %s=%v", ErrScoreOutOfRange, dim, v)
		}
	}
	if len(missing) > 0 {
		sort.Strings(missing)
		return fmt.Errorf("%w: missing %v", ErrIncomplete, missing)
	}
	if len(answers) != len(p.Dimensions) {
		return fmt.Errorf("%w: unexpected dimensions for %s", ErrIncomplete, key)
	}
	return nil
}

// ScoresByPillar returns the pillar score of the newest result per pillar.
func ScoresByPillar(results []Result) map[pillar.Key]float64 {
	latest := Latest(results)
	out := make(map[pillar.Key]float64, len(latest))
	for k, r := range latest {
		out[k] = r.PillarScore()
	}
	return out
}

// Latest picks the newest result per pillar by CompletedAt.
func Latest(results []Result) map[pillar.Key]Result {
	out := make(map[pillar.Key]Result)
	for _, r := range results {
		cur, ok := out[r.PillarKey]
		if !ok || r.CompletedAt.After(cur.CompletedAt) {
			out[r.PillarKey] = r
		}
	}
	return out
}

// Repository persists assessment results.
type Repository interface {
	SaveAssessment(ctx context.Context, r *Result) error
	// ListAssessments returns every result for the user, oldest first.
	ListAssessments(ctx context.Context, userID string) ([]Result, error)
}
