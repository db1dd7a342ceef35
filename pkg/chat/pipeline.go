// Package chat ties the conversation store, the prompt compiler and an
// inference provider together.
//
// Pipeline is the stateless compile, generate and accumulate cycle. Session
// owns one conversation and runs at most one Pipeline cycle at a time.
package chat

import (
	"context"

	"github.com/go-go-golems/xllama/pkg/conversation"
	"github.com/go-go-golems/xllama/pkg/inference"
	"github.com/go-go-golems/xllama/pkg/prompt"
	"github.com/go-go-golems/xllama/pkg/settings"
)

type Pipeline struct {
	compiler *prompt.Compiler
	provider inference.Provider
}

type PipelineOption func(*Pipeline)

func WithCompiler(c *prompt.Compiler) PipelineOption {
	return func(p *Pipeline) {
		p.compiler = c
	}
}

func NewPipeline(provider inference.Provider, options ...PipelineOption) (*Pipeline, error) {
	ret := &Pipeline{
		provider: provider,
	}
	for _, o := range options {
		o(ret)
	}
	if ret.compiler == nil {
		c, err := prompt.NewCompiler()
		if err != nil {
			return nil, err
		}
		ret.compiler = c
	}
	return ret, nil
}

func (p *Pipeline) Provider() inference.Provider {
	return p.provider
}

func (p *Pipeline) Compile(history []conversation.Turn, newUserMessage string) string {
	return p.compiler.Compile(history, newUserMessage)
}

func (p *Pipeline) Generate(
	ctx context.Context,
	compiled string,
	params *settings.GenerationParameters,
	modelID string,
) (*inference.FragmentStream, error) {
	return inference.Generate(ctx, compiled, params, modelID, p.provider)
}

// Respond runs one full cycle for newUserMessage given the turns that
// preceded it and returns the assistant's reply. It does not touch any store.
func (p *Pipeline) Respond(
	ctx context.Context,
	history []conversation.Turn,
	newUserMessage string,
	params *settings.GenerationParameters,
	modelID string,
	onProgress inference.ProgressFunc,
) (string, error) {
	compiled := p.Compile(history, newUserMessage)
	stream, err := p.Generate(ctx, compiled, params, modelID)
	if err != nil {
		return "", err
	}
	return inference.Accumulate(ctx, stream, onProgress)
}
