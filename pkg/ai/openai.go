package ai

import (
	"context"
	"encoding/base64"
	"fmt"
	"net/http"

	"github.com/charmbracelet/log"
	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/packages/param"
	"github.com/openai/openai-go/shared"
)

var (
	_ Completion = (*Service)(nil)
	_ Vision     = (*Service)(nil)
	_ Embedding  = (*Service)(nil)
)

// Service is an OpenAI-compatible client for a single provider endpoint.
// Groq, Gemini and local gateways all expose this dialect, so the
// fallback chain is a list of Services with different base URLs.
type Service struct {
	name         string
	client       *openai.Client
	logger       *log.Logger
	defaultModel string
}

func NewOpenAIService(logger *log.Logger, name, apiKey, baseURL, defaultModel string) *Service {
	client := openai.NewClient(
		option.WithAPIKey(apiKey),
		option.WithBaseURL(baseURL),
	)
	return &Service{
		name:         name,
		client:       &client,
		logger:       logger,
		defaultModel: defaultModel,
	}
}

func (s *Service) Name() string { return s.name }

func (s *Service) Complete(ctx context.Context, req CompletionRequest) (CompletionResult, error) {
	model := req.Model
	if model == "" {
		model = s.defaultModel
	}

	params := openai.ChatCompletionNewParams{
		Messages:    req.Messages,
		Model:       model,
		Temperature: param.Opt[float64]{Value: req.Temperature},
	}
	if req.MaxTokens > 0 {
		params.MaxTokens = param.Opt[int64]{Value: int64(req.MaxTokens)}
	}
	if req.JSONMode {
		params.ResponseFormat = openai.ChatCompletionNewParamsResponseFormatUnion{
			OfJSONObject: &shared.ResponseFormatJSONObjectParam{},
		}
	}

	completion, err := s.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return CompletionResult{}, classify(s.name, err)
	}
	if len(completion.Choices) == 0 {
		return CompletionResult{}, &Error{
			Kind:     ErrInvalidResponse,
			Provider: s.name,
			Err:      fmt.Errorf("provider returned no completion choices"),
		}
	}

	tokensIn := int(completion.Usage.PromptTokens)
	tokensOut := int(completion.Usage.CompletionTokens)
	return CompletionResult{
		Text:     completion.Choices[0].Message.Content,
		Provider: s.name,
		Model:    model,
		Usage: Usage{
			TokensIn:  tokensIn,
			TokensOut: tokensOut,
			USD:       EstimateUSD(model, tokensIn, tokensOut),
		},
	}, nil
}

func (s *Service) VisionComplete(ctx context.Context, req VisionRequest) (CompletionResult, error) {
	model := req.Model
	if model == "" {
		model = s.defaultModel
	}

	parts := []openai.ChatCompletionContentPartUnionParam{
		{OfText: &openai.ChatCompletionContentPartTextParam{Text: req.Prompt}},
	}
	for _, img := range req.Images {
		dataURL := "data:" + sniffImageMIME(img) + ";base64," + base64.StdEncoding.EncodeToString(img)
		parts = append(parts, openai.ChatCompletionContentPartUnionParam{
			OfImageURL: &openai.ChatCompletionContentPartImageParam{
				ImageURL: openai.ChatCompletionContentPartImageImageURLParam{URL: dataURL},
			},
		})
	}

	params := openai.ChatCompletionNewParams{
		Model: model,
		Messages: []openai.ChatCompletionMessageParamUnion{
			{
				OfUser: &openai.ChatCompletionUserMessageParam{
					Content: openai.ChatCompletionUserMessageParamContentUnion{
						OfArrayOfContentParts: parts,
					},
				},
			},
		},
	}
	if req.MaxTokens > 0 {
		params.MaxTokens = param.Opt[int64]{Value: int64(req.MaxTokens)}
	}

	completion, err := s.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return CompletionResult{}, classify(s.name, err)
	}
	if len(completion.Choices) == 0 {
		return CompletionResult{}, &Error{
			Kind:     ErrInvalidResponse,
			Provider: s.name,
			Err:      fmt.Errorf("provider returned no completion choices"),
		}
	}

	tokensIn := int(completion.Usage.PromptTokens)
	tokensOut := int(completion.Usage.CompletionTokens)
	return CompletionResult{
		Text:     completion.Choices[0].Message.Content,
		Provider: s.name,
		Model:    model,
		Usage: Usage{
			TokensIn:  tokensIn,
			TokensOut: tokensOut,
			USD:       EstimateUSD(model, tokensIn, tokensOut),
		},
	}, nil
}

func (s *Service) Embeddings(ctx context.Context, inputs []string, model string) ([][]float64, error) {
	embedding, err := s.client.Embeddings.New(ctx, openai.EmbeddingNewParams{
		Model: model,
		Input: openai.EmbeddingNewParamsInputUnion{
			OfArrayOfStrings: inputs,
		},
	})
	if err != nil {
		return nil, classify(s.name, err)
	}
	var embeddings [][]float64
	for _, e := range embedding.Data {
		embeddings = append(embeddings, e.Embedding)
	}
	return embeddings, nil
}

func (s *Service) Embedding(ctx context.Context, input string, model string) ([]float64, error) {
	embedding, err := s.client.Embeddings.New(ctx, openai.EmbeddingNewParams{
		Model: model,
		Input: openai.EmbeddingNewParamsInputUnion{
			OfString: param.Opt[string]{Value: input},
		},
	})
	if err != nil {
		return nil, classify(s.name, err)
	}
	if len(embedding.Data) == 0 {
		return nil, fmt.Errorf("provider returned no embedding data")
	}
	return embedding.Data[0].Embedding, nil
}

func sniffImageMIME(data []byte) string {
	mime := http.DetectContentType(data)
	if mime == "application/octet-stream" {
		return "image/png"
	}
	return mime
}

// SystemMessage builds a system message union param.
func SystemMessage(text string) openai.ChatCompletionMessageParamUnion {
	return openai.ChatCompletionMessageParamUnion{
		OfSystem: &openai.ChatCompletionSystemMessageParam{
			Content: openai.ChatCompletionSystemMessageParamContentUnion{
				OfString: openai.String(text),
			},
		},
	}
}

// UserMessage builds a user message union param.
func UserMessage(text string) openai.ChatCompletionMessageParamUnion {
	return openai.ChatCompletionMessageParamUnion{
		OfUser: &openai.ChatCompletionUserMessageParam{
			Content: openai.ChatCompletionUserMessageParamContentUnion{
				OfString: openai.String(text),
			},
		},
	}
}
