// Package echo is an offline provider that answers with the user's last
// message, one word at a time.
package echo

import (
	"context"
	"strings"
	"time"

	"github.com/go-go-golems/xllama/pkg/inference"
)

type Provider struct {
	TimePerWord time.Duration
}

var _ inference.Provider = (*Provider)(nil)

type Option func(*Provider)

func WithTimePerWord(d time.Duration) Option {
	return func(p *Provider) {
		p.TimePerWord = d
	}
}

func NewProvider(options ...Option) *Provider {
	ret := &Provider{
		TimePerWord: 50 * time.Millisecond,
	}
	for _, o := range options {
		o(ret)
	}
	return ret
}

func (p *Provider) Name() string {
	return "echo"
}

func (p *Provider) Run(ctx context.Context, modelID string, input inference.Input) (*inference.FragmentStream, error) {
	words := strings.SplitAfter(LastUserMessage(input.Prompt), " ")

	return inference.NewFragmentStream(ctx, func(ctx context.Context, emit inference.Emit) error {
		for _, w := range words {
			if w == "" {
				continue
			}
			if p.TimePerWord > 0 {
				select {
				case <-ctx.Done():
					return ctx.Err()
				case <-time.After(p.TimePerWord):
				}
			}
			if err := emit(w); err != nil {
				return err
			}
		}
		return nil
	}, inference.WithSource(p.Name(), modelID)), nil
}

// LastUserMessage extracts the message of the final "User:" line of a
// compiled prompt.
func LastUserMessage(prompt string) string {
	idx := strings.LastIndex(prompt, "User: ")
	if idx < 0 {
		return ""
	}
	msg := prompt[idx+len("User: "):]
	msg = strings.TrimSuffix(msg, "Assistant:")
	return strings.TrimSpace(msg)
}
