package wiring

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/felixgeelhaar/pillars/internal/infrastructure/config"
	infraai "github.com/felixgeelhaar/pillars/pkg/ai"
	"github.com/felixgeelhaar/pillars/pkg/application"
	"github.com/felixgeelhaar/pillars/pkg/domain/assessment"
	"github.com/felixgeelhaar/pillars/pkg/domain/onboarding"
	"github.com/felixgeelhaar/pillars/pkg/domain/pillar"
)

func loadConfig(t *testing.T, env map[string]string) *config.Config {
	t.Helper()
	for k, v := range env {
		t.Setenv(k, v)
	}
	cfg, err := config.Load(t.TempDir(), "")
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	return cfg
}

func build(t *testing.T, cfg *config.Config) *AppServices {
	t.Helper()
	clock := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	svc, err := BuildFromConfig(cfg, Options{
		LogOutput: io.Discard,
		Clock:     func() time.Time { clock = clock.Add(time.Second); return clock },
	})
	if err != nil {
		t.Fatalf("build services: %v", err)
	}
	t.Cleanup(func() { _ = svc.Close() })
	return svc
}

func runFirstPillar(t *testing.T, svc *AppServices) {
	t.Helper()
	ctx := context.Background()
	answers := assessment.Answers{}
	p, _ := pillar.Lookup(pillar.SelfCare)
	for _, d := range p.Dimensions {
		answers[d] = 6
	}
	if _, err := svc.Assessment.Submit(ctx, "u1", pillar.SelfCare, answers); err != nil {
		t.Fatal(err)
	}
	out, done, err := svc.Onboarding.Run(ctx, application.RunRequest{
		UserID: "u1", Pillar: pillar.SelfCare, Intensity: "light", Duration: "sprint",
	})
	if err != nil {
		t.Fatal(err)
	}
	if out.Kind != onboarding.Accepted || done == nil {
		t.Fatalf("outcome %+v, done %+v", out, done)
	}
}

func TestBuildFromConfig_Filesystem(t *testing.T) {
	cfg := loadConfig(t, nil)
	svc := build(t, cfg)

	if svc.Generator.ID() != "template" {
		t.Errorf("generator = %s", svc.Generator.ID())
	}
	if svc.Registry != nil {
		t.Error("metrics should be disabled by default")
	}
	runFirstPillar(t, svc)

	if _, err := os.Stat(filepath.Join(cfg.Store.Path, "journeys.yaml")); err != nil {
		t.Errorf("journeys file missing: %v", err)
	}
	if filepath.Base(svc.Workspace.TimelinePath) != "timeline.jsonl" {
		t.Errorf("timeline path = %s", svc.Workspace.TimelinePath)
	}
	violations, err := svc.Timeline.Verify(context.Background())
	if err != nil || len(violations) != 0 {
		t.Errorf("verify: %v %v", violations, err)
	}
}

func TestBuildFromConfig_SQLiteWithMetrics(t *testing.T) {
	cfg := loadConfig(t, map[string]string{
		"PILLARS_STORE_BACKEND":   "sqlite",
		"PILLARS_METRICS_ENABLED": "true",
		"PILLARS_METRICS_LISTEN":  "127.0.0.1:0",
	})
	svc := build(t, cfg)
	if svc.Registry == nil {
		t.Fatal("expected a metrics registry")
	}
	runFirstPillar(t, svc)

	if filepath.Base(svc.Workspace.TimelinePath) != DatabaseFile {
		t.Errorf("timeline path = %s", svc.Workspace.TimelinePath)
	}
	families, err := svc.Registry.Gather()
	if err != nil || len(families) == 0 {
		t.Errorf("expected gathered metrics, got %d (%v)", len(families), err)
	}

	stop, err := svc.ServeMetrics()
	if err != nil {
		t.Fatal(err)
	}
	stop()
}

func TestLoadPlanGenerator(t *testing.T) {
	tests := []struct {
		name     string
		cfg      config.AIConfig
		wantID   string
		wantsErr bool
	}{
		{"template", config.AIConfig{Provider: config.ProviderTemplate}, "template", false},
		{"mock", config.AIConfig{Provider: config.ProviderMock, Model: "m"}, "mock:m", false},
		{"ollama", config.AIConfig{Provider: config.ProviderOllama, Model: "llama3"}, "ollama:llama3", false},
		{"unknown", config.AIConfig{Provider: "skynet"}, "", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g, err := LoadPlanGenerator(tt.cfg, nil)
			if (err != nil) != tt.wantsErr {
				t.Fatalf("err = %v", err)
			}
			if err == nil && g.ID() != tt.wantID {
				t.Errorf("ID() = %s, want %s", g.ID(), tt.wantID)
			}
		})
	}
}

func TestBuildFromConfig_InjectedGenerator(t *testing.T) {
	cfg := loadConfig(t, nil)
	svc, err := BuildFromConfig(cfg, Options{LogOutput: io.Discard, Generator: infraai.TemplateGenerator{}})
	if err != nil {
		t.Fatal(err)
	}
	defer svc.Close()
	if svc.Generator.ID() != "template" {
		t.Errorf("generator = %s", svc.Generator.ID())
	}
}
