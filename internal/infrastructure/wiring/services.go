package wiring

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/felixgeelhaar/pillars/internal/infrastructure/config"
	"github.com/felixgeelhaar/pillars/internal/infrastructure/metrics"
	"github.com/felixgeelhaar/pillars/pkg/application"
	domainai "github.com/felixgeelhaar/pillars/pkg/domain/ai"
	"github.com/felixgeelhaar/pillars/pkg/domain/recommend"
)

// AppServices exposes the application services wired to one workspace.
type AppServices struct {
	Config     *config.Config
	Logger     *slog.Logger
	Workspace  *Workspace
	Generator  domainai.PlanGenerator
	Journeys   *application.JourneyService
	Plans      *application.PlanService
	Assessment *application.AssessmentService
	Progress   *application.ProgressService
	Timeline   *application.TimelineService
	Onboarding *application.OnboardingService

	// Registry is set when metrics.enabled is true.
	Registry *prometheus.Registry
}

// Options tweak service construction, mostly for tests.
type Options struct {
	LogOutput io.Writer
	Generator domainai.PlanGenerator
	Clock     func() time.Time
}

// BuildAppServices loads the configuration for root and wires every service.
func BuildAppServices(root, configPath string, opts Options) (*AppServices, error) {
	cfg, err := config.Load(root, configPath)
	if err != nil {
		return nil, err
	}
	return BuildFromConfig(cfg, opts)
}

// BuildFromConfig wires services for an already loaded configuration.
func BuildFromConfig(cfg *config.Config, opts Options) (*AppServices, error) {
	out := opts.LogOutput
	if out == nil {
		out = os.Stderr
	}
	logger := config.SetupLogger(cfg.Log.Level, out)

	generator := opts.Generator
	if generator == nil {
		g, err := LoadPlanGenerator(cfg.AI, logger)
		if err != nil {
			return nil, fmt.Errorf("plan generator: %w", err)
		}
		generator = g
	}

	ws, err := OpenWorkspace(cfg)
	if err != nil {
		return nil, err
	}

	var (
		registry *prometheus.Registry
		m        application.Metrics
	)
	if cfg.Metrics.Enabled {
		registry = prometheus.NewRegistry()
		m = metrics.MustNewMetrics(registry)
	}

	journeys := application.NewJourneyService(ws.Store, ws.Events, ws.Store, logger).
		WithDefaultMode(cfg.DefaultMode())
	plans := application.NewPlanService(generator, ws.Store, ws.Store, logger)
	assessments := application.NewAssessmentService(ws.Store, recommend.NewEngine(64), logger)
	if m != nil {
		journeys.WithMetrics(m)
		plans.WithMetrics(m)
	}
	onboarding := application.NewOnboardingService(assessments, journeys, plans, logger).
		WithStartOffset(cfg.Plan.StartOffsetDays)
	if opts.Clock != nil {
		journeys.WithClock(opts.Clock)
		assessments.WithClock(opts.Clock)
		onboarding.WithClock(opts.Clock)
	}

	logger.Debug("services ready", "backend", cfg.Store.Backend, "path", cfg.Store.Path, "generator", generator.ID())
	return &AppServices{
		Config:     cfg,
		Logger:     logger,
		Workspace:  ws,
		Generator:  generator,
		Journeys:   journeys,
		Plans:      plans,
		Assessment: assessments,
		Progress:   application.NewProgressService(ws.Store, 0),
		Timeline:   application.NewTimelineService(ws.Events, time.Local),
		Onboarding: onboarding,
		Registry:   registry,
	}, nil
}

// ServeMetrics starts the metrics endpoint when metrics are enabled. The
// returned stop function is never nil.
func (s *AppServices) ServeMetrics() (stop func(), err error) {
	if s.Registry == nil {
		return func() {}, nil
	}
	srv, err := metrics.StartServer(s.Config.Metrics.Listen, s.Registry, s.Logger)
	if err != nil {
		return func() {}, fmt.Errorf("metrics server: %w", err)
	}
	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctx)
	}, nil
}

// Close releases the workspace.
func (s *AppServices) Close() error {
	return s.Workspace.Close()
}
