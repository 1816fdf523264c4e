package ai

import (
	"context"

	"github.com/openai/openai-go"
)

// Message aliases the openai-go union type; every provider in the chain
// speaks an OpenAI-compatible dialect.
type Message = openai.ChatCompletionMessageParamUnion

// CompletionRequest is a single chat completion call.
type CompletionRequest struct {
	Model       string
	Messages    []Message
	Temperature float64
	MaxTokens   int
	JSONMode    bool
}

// VisionRequest is a completion call that carries page or photo images
// alongside the prompt. Images are raw bytes; the service encodes them
// as data URLs.
type VisionRequest struct {
	Model     string
	Prompt    string
	Images    [][]byte
	MaxTokens int
}

// Usage is the token and dollar cost of one call.
type Usage struct {
	TokensIn  int
	TokensOut int
	USD       float64
}

// CompletionResult is the text plus accounting for one call.
type CompletionResult struct {
	Text     string
	Usage    Usage
	Provider string
	Model    string
}

type Completion interface {
	Complete(ctx context.Context, req CompletionRequest) (CompletionResult, error)
}

type Vision interface {
	VisionComplete(ctx context.Context, req VisionRequest) (CompletionResult, error)
}

type Embedding interface {
	Embedding(ctx context.Context, input string, model string) ([]float64, error)
	Embeddings(ctx context.Context, inputs []string, model string) ([][]float64, error)
}
