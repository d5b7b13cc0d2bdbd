package ai

import (
	"fmt"

	"github.com/felixgeelhaar/pillars/pkg/domain/ai"
)

// NewProvider builds a completion backend by name.
func NewProvider(providerName string, modelName string) (ai.Provider, error) {
	switch providerName {
	case "ollama", "":
		return NewOllamaProvider(modelName), nil
	case "mock":
		return &MockProvider{Model: modelName}, nil
	default:
		return nil, fmt.Errorf("unsupported AI provider: %s", providerName)
	}
}
