package ai

import (
	"context"
	"sync/atomic"

	"github.com/felixgeelhaar/pillars/pkg/domain/ai"
)

// MockProvider returns a fixed answer. It is used for offline runs and tests.
type MockProvider struct {
	Model string
	Text  string
	// FailTimes makes the first n calls fail with Err.
	FailTimes int32
	Err       error

	calls atomic.Int32
}

func (m *MockProvider) ID() string { return "mock:" + m.Model }

// Calls returns how many times Complete ran.
func (m *MockProvider) Calls() int { return int(m.calls.Load()) }

func (m *MockProvider) Complete(ctx context.Context, req ai.CompletionRequest) (*ai.CompletionResponse, error) {
	n := m.calls.Add(1)
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if m.Err != nil && (m.FailTimes <= 0 || n <= m.FailTimes) {
		return nil, m.Err
	}
	text := m.Text
	if text == "" {
		text = `[{"category":"action","title":"Take one step in {pillar}","description":"Mock activity."}]`
	}
	return &ai.CompletionResponse{
		Text:  text,
		Model: m.Model,
		Usage: ai.TokenUsage{InputTokens: len(req.Prompt) / 4, OutputTokens: len(text) / 4},
	}, nil
}
