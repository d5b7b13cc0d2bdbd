// Package ai defines the boundaries to text-generation backends and to the
// plan generation service built on them.
package ai

import (
	"context"
	"errors"

	"github.com/felixgeelhaar/pillars/pkg/domain/calibration"
	"github.com/felixgeelhaar/pillars/pkg/domain/pillar"
	"github.com/felixgeelhaar/pillars/pkg/domain/schedule"
)

// ErrMalformedPlan indicates a generator answer that could not be turned
// into activity drafts.
var ErrMalformedPlan = errors.New("malformed plan response")

// CompletionRequest represents a prompt to the AI.
type CompletionRequest struct {
	Prompt      string
	System      string
	Temperature float32
	MaxTokens   int
	// JSON asks the backend for a JSON-only answer when it supports it.
	JSON bool
}

// CompletionResponse represents the AI's answer.
type CompletionResponse struct {
	Text  string
	Usage TokenUsage
	Model string
}

// TokenUsage tracks costs.
type TokenUsage struct {
	InputTokens  int
	OutputTokens int
}

// Provider is the interface for all AI backends.
type Provider interface {
	ID() string
	Complete(ctx context.Context, req CompletionRequest) (*CompletionResponse, error)
}

// PlanRequest is the input of plan generation.
type PlanRequest struct {
	PillarKey pillar.Key
	Context   schedule.AssessmentContext
	Choice    calibration.Choice
}

// PlanGenerator produces activity drafts for a plan. It may be slow and it
// may fail; callers decide whether to retry.
type PlanGenerator interface {
	ID() string
	GeneratePlan(ctx context.Context, req PlanRequest) ([]schedule.Draft, error)
}
