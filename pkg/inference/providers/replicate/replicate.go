// Package replicate streams Llama 2 chat completions from Replicate.
package replicate

import (
	"context"
	"encoding/json"

	"github.com/go-go-golems/xllama/pkg/inference"
	"github.com/pkg/errors"
	"github.com/replicate/replicate-go"
	"github.com/rs/zerolog/log"
)

// SSE event types sent by Replicate's prediction stream.
const (
	eventOutput = "output"
	eventLogs   = "logs"
	eventError  = "error"
	eventDone   = "done"
)

// Streamer is the part of the replicate client the provider uses.
type Streamer interface {
	Stream(ctx context.Context, identifier string, input replicate.PredictionInput, webhook *replicate.Webhook) (<-chan replicate.SSEEvent, <-chan error)
}

type Provider struct {
	client Streamer
}

var _ inference.Provider = (*Provider)(nil)

type Option func(*options)

type options struct {
	baseURL string
}

func WithBaseURL(url string) Option {
	return func(o *options) {
		o.baseURL = url
	}
}

// NewProvider builds a client authenticated with token.
func NewProvider(token string, opts ...Option) (*Provider, error) {
	if token == "" {
		return nil, errors.New("replicate API token is empty")
	}
	o := &options{}
	for _, opt := range opts {
		opt(o)
	}

	clientOptions := []replicate.ClientOption{replicate.WithToken(token)}
	if o.baseURL != "" {
		clientOptions = append(clientOptions, replicate.WithBaseURL(o.baseURL))
	}
	client, err := replicate.NewClient(clientOptions...)
	if err != nil {
		return nil, errors.Wrap(err, "could not create replicate client")
	}
	return &Provider{client: client}, nil
}

// NewProviderWithStreamer wraps an existing client.
func NewProviderWithStreamer(client Streamer) *Provider {
	return &Provider{client: client}
}

func (p *Provider) Name() string {
	return "replicate"
}

func (p *Provider) Run(ctx context.Context, modelID string, input inference.Input) (*inference.FragmentStream, error) {
	if modelID == "" {
		return nil, errors.New("no model identifier")
	}

	return inference.NewFragmentStream(ctx, func(ctx context.Context, emit inference.Emit) error {
		events, errs := p.client.Stream(ctx, modelID, replicate.PredictionInput(input.ToMap()), nil)
		return pump(ctx, events, errs, emit)
	}, inference.WithSource(p.Name(), modelID)), nil
}

// pump forwards output events until done. The channels are not guaranteed
// to be closed by the client, so the loop also ends on ctx.
func pump(ctx context.Context, events <-chan replicate.SSEEvent, errs <-chan error, emit inference.Emit) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case err, ok := <-errs:
			if !ok {
				errs = nil
				continue
			}
			if err != nil {
				return errors.Wrap(err, "replicate stream failed")
			}

		case event, ok := <-events:
			if !ok {
				return nil
			}
			switch event.Type {
			case eventOutput:
				if err := emit(event.Data); err != nil {
					return err
				}
			case eventLogs:
				log.Trace().Str("data", event.Data).Msg("replicate log")
			case eventError:
				return errors.Errorf("prediction failed: %s", errorDetail(event.Data))
			case eventDone:
				if reason := doneReason(event.Data); reason == "canceled" {
					return errors.New("prediction was canceled upstream")
				}
				return nil
			default:
				log.Debug().Str("type", event.Type).Msg("ignoring replicate event")
			}
		}
	}
}

func errorDetail(data string) string {
	var d struct {
		Detail string `json:"detail"`
	}
	if err := json.Unmarshal([]byte(data), &d); err == nil && d.Detail != "" {
		return d.Detail
	}
	return data
}

func doneReason(data string) string {
	var d struct {
		Reason string `json:"reason"`
	}
	if err := json.Unmarshal([]byte(data), &d); err != nil {
		return ""
	}
	return d.Reason
}
