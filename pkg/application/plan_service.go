package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/felixgeelhaar/pillars/pkg/domain/ai"
	"github.com/felixgeelhaar/pillars/pkg/domain/schedule"
)

// PlanStage names the step of plan generation that failed.
type PlanStage string

const (
	StageGenerate PlanStage = "generate"
	StagePersist  PlanStage = "persist"
)

// PlanError reports a failed plan generation step. Both steps are safe to
// retry: drafts can be reused and stores upsert by activity id.
type PlanError struct {
	Stage PlanStage
	Err   error
}

func (e *PlanError) Error() string {
	return fmt.Sprintf("plan %s failed: %v", e.Stage, e.Err)
}

func (e *PlanError) Unwrap() error { return e.Err }

// Retryable reports whether the user may retry. Malformed output is
// retryable too since generators are not deterministic.
func (e *PlanError) Retryable() bool {
	return !errors.Is(e.Err, schedule.ErrInvalidRequest)
}

// PlanService turns a calibrated request into persisted activities.
type PlanService struct {
	generator ai.PlanGenerator
	calendar  schedule.CalendarStore
	tasks     schedule.TaskStore
	logger    *slog.Logger
	metrics   Metrics
}

func NewPlanService(generator ai.PlanGenerator, calendar schedule.CalendarStore, tasks schedule.TaskStore, logger *slog.Logger) *PlanService {
	if logger == nil {
		logger = slog.Default()
	}
	return &PlanService{
		generator: generator,
		calendar:  calendar,
		tasks:     tasks,
		logger:    logger,
		metrics:   nopMetrics{},
	}
}

// WithMetrics sets the metrics sink.
func (s *PlanService) WithMetrics(m Metrics) *PlanService {
	s.metrics = metricsOrNop(m)
	return s
}

// Draft asks the generator for activity drafts. It blocks for as long as the
// generator takes; the generator's own timeout applies.
func (s *PlanService) Draft(ctx context.Context, req ai.PlanRequest) ([]schedule.Draft, error) {
	started := time.Now()
	drafts, err := s.generator.GeneratePlan(ctx, req)
	elapsed := time.Since(started)
	if err != nil {
		s.metrics.ObservePlanGeneration(s.generator.ID(), outcomeFailed, elapsed)
		s.logger.Warn("plan generation failed",
			"generator", s.generator.ID(), "pillar", req.PillarKey, "elapsed", elapsed, "error", err)
		return nil, &PlanError{Stage: StageGenerate, Err: err}
	}
	s.metrics.ObservePlanGeneration(s.generator.ID(), outcomeOK, elapsed)
	s.logger.Debug("plan drafted", "generator", s.generator.ID(), "pillar", req.PillarKey, "drafts", len(drafts), "elapsed", elapsed)
	return drafts, nil
}

// Persist schedules the drafts and writes the calendar and task entries in
// parallel. Both writes must succeed. Activity ids derive from the attempt
// key, so repeating a failed Persist overwrites instead of duplicating.
func (s *PlanService) Persist(ctx context.Context, req schedule.Request, drafts []schedule.Draft) ([]schedule.Activity, error) {
	acts, err := schedule.GenerateFromDrafts(req, drafts)
	if err != nil {
		return nil, &PlanError{Stage: StagePersist, Err: err}
	}

	entries := make([]schedule.CalendarEntry, len(acts))
	for i, a := range acts {
		entries[i] = schedule.CalendarEntryFor(a)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := s.calendar.UpsertCalendarEntries(gctx, entries); err != nil {
			return fmt.Errorf("calendar entries: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		if err := s.tasks.UpsertTasks(gctx, acts); err != nil {
			return fmt.Errorf("task entries: %w", err)
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		s.logger.Warn("plan persistence failed", "journey_id", req.JourneyID, "activities", len(acts), "error", err)
		return nil, &PlanError{Stage: StagePersist, Err: err}
	}
	return acts, nil
}
