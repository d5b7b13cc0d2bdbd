package ai

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/xeipuuv/gojsonschema"

	"github.com/felixgeelhaar/pillars/pkg/domain/ai"
	"github.com/felixgeelhaar/pillars/pkg/domain/pillar"
	"github.com/felixgeelhaar/pillars/pkg/domain/schedule"
)

const draftSchemaJSON = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "type": "array",
  "minItems": 1,
  "items": {
    "type": "object",
    "required": ["category", "title"],
    "properties": {
      "category": { "type": "string", "enum": ["reflection", "action", "habit", "experiment"] },
      "title": { "type": "string", "minLength": 1 },
      "description": { "type": "string" }
    }
  }
}`

var draftSchemaLoader = gojsonschema.NewStringLoader(draftSchemaJSON)

const planSystemPrompt = "You are a personal development coach. You return only a JSON array of activity ideas, each with category, title and description."

// ProviderPlanGenerator asks a completion backend for activity drafts and
// validates the answer against a JSON schema.
type ProviderPlanGenerator struct {
	provider ai.Provider
	logger   *slog.Logger
}

func NewProviderPlanGenerator(provider ai.Provider, logger *slog.Logger) *ProviderPlanGenerator {
	if logger == nil {
		logger = slog.Default()
	}
	return &ProviderPlanGenerator{provider: provider, logger: logger}
}

func (g *ProviderPlanGenerator) ID() string { return g.provider.ID() }

func (g *ProviderPlanGenerator) GeneratePlan(ctx context.Context, req ai.PlanRequest) ([]schedule.Draft, error) {
	resp, err := g.provider.Complete(ctx, ai.CompletionRequest{
		Prompt:      buildPlanPrompt(req),
		System:      planSystemPrompt,
		Temperature: 0.4,
		MaxTokens:   2000,
		JSON:        true,
	})
	if err != nil {
		return nil, fmt.Errorf("plan generation: %w", err)
	}
	g.logger.Debug("plan generated",
		"provider", g.provider.ID(),
		"model", resp.Model,
		"input_tokens", resp.Usage.InputTokens,
		"output_tokens", resp.Usage.OutputTokens)

	drafts, err := ParseDrafts(resp.Text)
	if err != nil {
		g.logger.Warn("plan response rejected", "provider", g.provider.ID(), "error", err)
		return nil, err
	}
	return drafts, nil
}

func buildPlanPrompt(req ai.PlanRequest) string {
	var b strings.Builder
	name := req.PillarKey.DisplayName()
	if p, ok := pillar.Lookup(req.PillarKey); ok {
		fmt.Fprintf(&b, "Pillar: %s. %s\n", p.Name, p.Description)
	} else {
		fmt.Fprintf(&b, "Pillar: %s\n", name)
	}
	fmt.Fprintf(&b, "Assessment score: %.1f out of 10.\n", req.Context.PillarScore)
	if focus := req.Context.FocusDimension(); focus != "" {
		fmt.Fprintf(&b, "Weakest area: %s.\n", focus)
	}
	fmt.Fprintf(&b, "Plan: %s, %d minutes per day, %d activities per week for %d weeks.\n",
		req.Choice, req.Choice.Intensity.MinutesPerDay, req.Choice.Intensity.ActivitiesPerWeek, req.Choice.Duration.Weeks)
	b.WriteString("Suggest varied activities in four categories: reflection, action, habit and experiment. ")
	b.WriteString("Return JSON only: [{\"category\": \"...\", \"title\": \"...\", \"description\": \"...\"}].")
	return b.String()
}

// ParseDrafts extracts and validates a JSON array of drafts from text.
func ParseDrafts(text string) ([]schedule.Draft, error) {
	clean := extractJSONPayload(text)
	if clean == "" {
		return nil, fmt.Errorf("%w: empty response", ai.ErrMalformedPlan)
	}

	result, err := gojsonschema.Validate(draftSchemaLoader, gojsonschema.NewStringLoader(clean))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ai.ErrMalformedPlan, err)
	}
	if !result.Valid() {
		issues := make([]string, 0, len(result.Errors()))
		for _, desc := range result.Errors() {
			issues = append(issues, desc.String())
		}
		return nil, fmt.Errorf("%w: %s", ai.ErrMalformedPlan, strings.Join(issues, "; "))
	}

	var drafts []schedule.Draft
	if err := json.Unmarshal([]byte(clean), &drafts); err != nil {
		return nil, fmt.Errorf("%w: %v", ai.ErrMalformedPlan, err)
	}
	return drafts, nil
}

func extractJSONPayload(text string) string {
	clean := strings.TrimSpace(text)
	clean = strings.TrimPrefix(clean, "```json")
	clean = strings.TrimPrefix(clean, "```")
	clean = strings.TrimSuffix(clean, "```")
	clean = strings.TrimSpace(clean)

	start := strings.Index(clean, "[")
	end := strings.LastIndex(clean, "]")
	if start == -1 || end <= start {
		return clean
	}
	return strings.TrimSpace(clean[start : end+1])
}

// TemplateGenerator serves the built-in templates without calling a backend.
type TemplateGenerator struct{}

func (TemplateGenerator) ID() string { return "template" }

func (TemplateGenerator) GeneratePlan(ctx context.Context, req ai.PlanRequest) ([]schedule.Draft, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return schedule.BuiltinDrafts(), nil
}
