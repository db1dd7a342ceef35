// Package inference is the boundary to the hosted model. A Provider turns a
// compiled prompt into a FragmentStream, Generate wraps that call, and
// Accumulate reduces the stream to the assistant's reply.
package inference

import (
	"context"

	"github.com/go-go-golems/xllama/pkg/settings"
	"github.com/rs/zerolog"
)

// Input is what a provider receives for one request.
type Input struct {
	Prompt            string  `json:"prompt"`
	Temperature       float64 `json:"temperature"`
	TopP              float64 `json:"top_p"`
	MaxLength         int     `json:"max_length"`
	RepetitionPenalty float64 `json:"repetition_penalty"`
}

func NewInput(prompt string, params *settings.GenerationParameters) Input {
	return Input{
		Prompt:            prompt,
		Temperature:       params.Temperature,
		TopP:              params.TopP,
		MaxLength:         params.MaxLength,
		RepetitionPenalty: params.RepetitionPenalty,
	}
}

// ToMap returns the input keyed the way Replicate's Llama 2 chat models expect.
func (i Input) ToMap() map[string]interface{} {
	return map[string]interface{}{
		"prompt":             i.Prompt,
		"temperature":        i.Temperature,
		"top_p":              i.TopP,
		"max_length":         i.MaxLength,
		"repetition_penalty": i.RepetitionPenalty,
	}
}

func (i Input) MarshalZerologObject(e *zerolog.Event) {
	e.Int("prompt_length", len(i.Prompt)).
		Float64("temperature", i.Temperature).
		Float64("top_p", i.TopP).
		Int("max_length", i.MaxLength)
}

// Provider runs a model and streams back its output.
//
// Run returns as soon as the request has been accepted. Failures that happen
// while streaming are delivered through the stream.
type Provider interface {
	Name() string
	Run(ctx context.Context, modelID string, input Input) (*FragmentStream, error)
}
