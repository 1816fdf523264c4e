package ai

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"fmt"
	"sync"
)

// Completer is the call shape the enricher and critic depend on. The
// production implementation is FallbackChain.
type Completer interface {
	Complete(ctx context.Context, req CompletionRequest, tracker *CostTracker, budgetUSD float64) (CompletionResult, error)
}

var _ Completer = (*FallbackChain)(nil)

// MockCompleter returns scripted responses in order. Used by tests.
type MockCompleter struct {
	mu        sync.Mutex
	Responses []string
	Errs      []error
	Requests  []CompletionRequest
}

func (m *MockCompleter) Complete(ctx context.Context, req CompletionRequest, tracker *CostTracker, budgetUSD float64) (CompletionResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.Requests = append(m.Requests, req)
	idx := len(m.Requests) - 1

	if idx < len(m.Errs) && m.Errs[idx] != nil {
		return CompletionResult{}, m.Errs[idx]
	}
	if idx >= len(m.Responses) {
		return CompletionResult{}, fmt.Errorf("mock completer: no scripted response for call %d", idx)
	}

	result := CompletionResult{
		Text:     m.Responses[idx],
		Provider: "mock",
		Model:    req.Model,
		Usage:    Usage{TokensIn: 100, TokensOut: 50, USD: 0.0001},
	}
	if tracker != nil {
		tracker.Record(CallCost{Provider: "mock", Model: req.Model, TokensIn: 100, TokensOut: 50, USD: 0.0001})
	}
	return result, nil
}

// MockEmbedder produces deterministic unit-length vectors derived from
// the input hash, so identical texts embed identically across runs.
type MockEmbedder struct {
	Dim int
}

func (m *MockEmbedder) dim() int {
	if m.Dim <= 0 {
		return 8
	}
	return m.Dim
}

func (m *MockEmbedder) Embedding(ctx context.Context, input string, model string) ([]float64, error) {
	sum := sha256.Sum256([]byte(input))
	vec := make([]float64, m.dim())
	for i := range vec {
		bits := binary.BigEndian.Uint32(sum[(i*4)%28:])
		vec[i] = float64(bits%2000)/1000.0 - 1.0
	}
	return vec, nil
}

func (m *MockEmbedder) Embeddings(ctx context.Context, inputs []string, model string) ([][]float64, error) {
	out := make([][]float64, len(inputs))
	for i, input := range inputs {
		vec, err := m.Embedding(ctx, input, model)
		if err != nil {
			return nil, err
		}
		out[i] = vec
	}
	return out, nil
}

// MockVision returns a fixed transcription for any image.
type MockVision struct {
	Text  string
	Calls int
	Err   error
	mu    sync.Mutex
}

func (m *MockVision) VisionComplete(ctx context.Context, req VisionRequest) (CompletionResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Calls++
	if m.Err != nil {
		return CompletionResult{}, m.Err
	}
	return CompletionResult{
		Text:     m.Text,
		Provider: "mock-vision",
		Model:    req.Model,
		Usage:    Usage{TokensIn: 500, TokensOut: 200, USD: 0.001},
	}, nil
}
