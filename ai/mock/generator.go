package mock

import (
	"context"
	"fmt"
	"sync/atomic"

	"github.com/poiesic/counsel/ai"
)

// MockGenerator is a test double for ai.Generator.
type MockGenerator struct {
	// GenerateFunc is called by Generate if set.
	GenerateFunc func(ctx context.Context, system, prompt string) (*ai.Generation, error)

	callCount atomic.Int64
}

// NewMockGenerator creates a mock generator with default behavior.
func NewMockGenerator() *MockGenerator {
	return &MockGenerator{}
}

// Generate returns a fixed answer unless GenerateFunc is set.
func (m *MockGenerator) Generate(ctx context.Context, system, prompt string) (*ai.Generation, error) {
	m.callCount.Add(1)

	if m.GenerateFunc != nil {
		return m.GenerateFunc(ctx, system, prompt)
	}

	return &ai.Generation{
		Text:       fmt.Sprintf("mock answer for a %d character prompt", len(prompt)),
		Model:      "mock-model",
		TokensUsed: len(prompt) / 4,
	}, nil
}

// CallCount returns the number of times Generate was called.
func (m *MockGenerator) CallCount() int {
	return int(m.callCount.Load())
}

// Reset clears the call count and custom function.
func (m *MockGenerator) Reset() {
	m.callCount.Store(0)
	m.GenerateFunc = nil
}
