package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
)

type openaiGenerator struct {
	client openai.Client
	model  string
}

// NewOpenAIGenerator builds a backend for OpenAI chat completions or any
// API-compatible server reachable through baseURL.
func NewOpenAIGenerator(apiKey, baseURL, model string) Generator {
	var opts []option.RequestOption
	if apiKey != "" {
		opts = append(opts, option.WithAPIKey(apiKey))
	}
	if baseURL != "" {
		opts = append(opts, option.WithBaseURL(baseURL))
	}
	if model == "" {
		model = "gpt-4o-mini"
	}
	return &openaiGenerator{client: openai.NewClient(opts...), model: model}
}

func (g *openaiGenerator) Generate(ctx context.Context, req Request, consumer func(Chunk) error) error {
	params := openai.ChatCompletionNewParams{
		Model: openai.ChatModel(g.model),
	}
	if req.System != "" {
		params.Messages = append(params.Messages, openai.SystemMessage(req.System))
	}
	params.Messages = append(params.Messages, openai.UserMessage(req.Prompt))
	if req.MaxTokens > 0 {
		params.MaxCompletionTokens = openai.Int(int64(req.MaxTokens))
	}
	if req.Temperature > 0 {
		params.Temperature = openai.Float(req.Temperature)
	}

	start := time.Now()
	stream := g.client.Chat.Completions.NewStreaming(ctx, params)
	defer stream.Close()
	for stream.Next() {
		chunk := stream.Current()
		if len(chunk.Choices) == 0 {
			continue
		}
		delta := chunk.Choices[0].Delta.Content
		if delta == "" {
			continue
		}
		if err := consumer(Chunk{
			SessionID: req.SessionID,
			Content:   delta,
			Partial:   true,
			Latency:   time.Since(start),
		}); err != nil {
			return err
		}
	}
	if err := stream.Err(); err != nil {
		var apiErr *openai.Error
		if errors.As(err, &apiErr) {
			return fmt.Errorf("openai completion failed (status %d): %s", apiErr.StatusCode, strings.TrimSpace(apiErr.Message))
		}
		return fmt.Errorf("openai completion failed: %w", err)
	}
	return nil
}
