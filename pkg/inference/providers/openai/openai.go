// Package openai streams legacy text completions from any OpenAI compatible
// endpoint, which is how most self-hosted Llama servers are exposed.
package openai

import (
	"context"
	"io"

	"github.com/go-go-golems/xllama/pkg/inference"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	go_openai "github.com/sashabaranov/go-openai"
)

type Provider struct {
	client *go_openai.Client
}

var _ inference.Provider = (*Provider)(nil)

// NewProvider creates a client for apiKey. An empty baseURL keeps the
// library's default endpoint.
func NewProvider(apiKey string, baseURL string) *Provider {
	config := go_openai.DefaultConfig(apiKey)
	if baseURL != "" {
		config.BaseURL = baseURL
	}
	return &Provider{client: go_openai.NewClientWithConfig(config)}
}

func (p *Provider) Name() string {
	return "openai"
}

func (p *Provider) Run(ctx context.Context, modelID string, input inference.Input) (*inference.FragmentStream, error) {
	req := go_openai.CompletionRequest{
		Model:       modelID,
		Prompt:      input.Prompt,
		MaxTokens:   input.MaxLength,
		Temperature: float32(input.Temperature),
		TopP:        float32(input.TopP),
		Stream:      true,
	}

	log.Debug().Str("model", modelID).Msg("opening completion stream")
	stream, err := p.client.CreateCompletionStream(ctx, req)
	if err != nil {
		return nil, errors.Wrap(err, "could not open completion stream")
	}

	return inference.NewFragmentStream(ctx, func(ctx context.Context, emit inference.Emit) error {
		defer func() {
			if err := stream.Close(); err != nil {
				log.Warn().Err(err).Msg("failed to close completion stream")
			}
		}()

		chunkCount := 0
		for {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			response, err := stream.Recv()
			if errors.Is(err, io.EOF) {
				log.Debug().Int("chunks_received", chunkCount).Msg("completion stream finished")
				return nil
			}
			if err != nil {
				if ctx.Err() != nil {
					return ctx.Err()
				}
				return errors.Wrap(err, "completion stream failed")
			}
			chunkCount++

			if len(response.Choices) == 0 || response.Choices[0].Text == "" {
				continue
			}
			if err := emit(response.Choices[0].Text); err != nil {
				return err
			}
		}
	}, inference.WithSource(p.Name(), modelID)), nil
}
