// Package fixtures provides deterministic providers for tests and demos.
package fixtures

import (
	"context"
	"sync"
	"time"

	"github.com/go-go-golems/xllama/pkg/inference"
)

// Call records one Run invocation.
type Call struct {
	ModelID string
	Input   inference.Input
}

// ScriptedProvider streams a fixed list of fragments. With FailAfter >= 0 it
// fails with Err after that many fragments. StartErr makes Run itself fail.
type ScriptedProvider struct {
	Fragments []string
	FailAfter int
	Err       error
	StartErr  error
	// Delay is waited before each fragment.
	Delay time.Duration
	// Gate, when set, must receive a value before each fragment is sent.
	Gate chan struct{}

	mu    sync.Mutex
	calls []Call
}

var _ inference.Provider = (*ScriptedProvider)(nil)

func NewScriptedProvider(fragments ...string) *ScriptedProvider {
	return &ScriptedProvider{
		Fragments: fragments,
		FailAfter: -1,
	}
}

// FailingAfter makes the provider fail with err once n fragments were sent.
func (p *ScriptedProvider) FailingAfter(n int, err error) *ScriptedProvider {
	p.FailAfter = n
	p.Err = err
	return p
}

func (p *ScriptedProvider) Name() string {
	return "scripted"
}

func (p *ScriptedProvider) Calls() []Call {
	p.mu.Lock()
	defer p.mu.Unlock()
	ret := make([]Call, len(p.calls))
	copy(ret, p.calls)
	return ret
}

func (p *ScriptedProvider) Run(ctx context.Context, modelID string, input inference.Input) (*inference.FragmentStream, error) {
	p.mu.Lock()
	p.calls = append(p.calls, Call{ModelID: modelID, Input: input})
	p.mu.Unlock()

	if p.StartErr != nil {
		return nil, p.StartErr
	}

	fragments := append([]string{}, p.Fragments...)
	failAfter, failErr := p.FailAfter, p.Err

	return inference.NewFragmentStream(ctx, func(ctx context.Context, emit inference.Emit) error {
		for i, f := range fragments {
			if failAfter >= 0 && i == failAfter {
				return failErr
			}
			if err := p.wait(ctx); err != nil {
				return err
			}
			if err := emit(f); err != nil {
				return err
			}
		}
		if failAfter >= 0 && failAfter >= len(fragments) {
			return failErr
		}
		return nil
	}, inference.WithSource(p.Name(), modelID)), nil
}

func (p *ScriptedProvider) wait(ctx context.Context) error {
	if p.Gate != nil {
		select {
		case <-p.Gate:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	if p.Delay > 0 {
		select {
		case <-time.After(p.Delay):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}
