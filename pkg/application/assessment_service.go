package application

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/felixgeelhaar/pillars/pkg/domain/assessment"
	"github.com/felixgeelhaar/pillars/pkg/domain/pillar"
	"github.com/felixgeelhaar/pillars/pkg/domain/recommend"
)

// AssessmentService stores assessments and derives recommendations.
type AssessmentService struct {
	repo   assessment.Repository
	engine *recommend.Engine
	logger *slog.Logger
	now    func() time.Time
}

func NewAssessmentService(repo assessment.Repository, engine *recommend.Engine, logger *slog.Logger) *AssessmentService {
	if logger == nil {
		logger = slog.Default()
	}
	if engine == nil {
		engine = recommend.NewEngine(64)
	}
	return &AssessmentService{repo: repo, engine: engine, logger: logger, now: time.Now}
}

// WithClock replaces time.Now.
func (s *AssessmentService) WithClock(now func() time.Time) *AssessmentService {
	s.now = now
	return s
}

// Submit validates and stores a new result. Incomplete answers are rejected
// with assessment.ErrIncomplete and nothing is stored.
func (s *AssessmentService) Submit(ctx context.Context, userID string, key pillar.Key, answers assessment.Answers) (assessment.Result, error) {
	if err := assessment.Validate(key, answers); err != nil {
		s.logger.Debug("assessment rejected", "user_id", userID, "pillar", key, "reason", err)
		return assessment.Result{}, err
	}
	scores := make(map[string]float64, len(answers))
	for k, v := range answers {
		scores[k] = v
	}
	r := assessment.Result{
		ID:          uuid.NewString(),
		UserID:      userID,
		PillarKey:   key,
		Scores:      scores,
		CompletedAt: s.now(),
	}
	if err := s.repo.SaveAssessment(ctx, &r); err != nil {
		s.logger.Warn("assessment save failed", "user_id", userID, "pillar", key, "error", err)
		return assessment.Result{}, fmt.Errorf("save assessment: %w", err)
	}
	s.logger.Info("assessment stored", "user_id", userID, "pillar", key, "score", r.PillarScore())
	return r, nil
}

// Latest returns the newest result for key, or nil.
func (s *AssessmentService) Latest(ctx context.Context, userID string, key pillar.Key) (*assessment.Result, error) {
	results, err := s.repo.ListAssessments(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list assessments: %w", err)
	}
	if r, ok := assessment.Latest(results)[key]; ok {
		return &r, nil
	}
	return nil, nil
}

// LatestScores returns the newest pillar score per assessed pillar.
func (s *AssessmentService) LatestScores(ctx context.Context, userID string) (map[pillar.Key]float64, error) {
	results, err := s.repo.ListAssessments(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list assessments: %w", err)
	}
	return assessment.ScoresByPillar(results), nil
}

// Recommend ranks the user's assessed pillars.
func (s *AssessmentService) Recommend(ctx context.Context, userID string) (recommend.Set, error) {
	scores, err := s.LatestScores(ctx, userID)
	if err != nil {
		return recommend.Set{}, err
	}
	return s.engine.Recommend(scores), nil
}
