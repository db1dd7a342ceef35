package inference

import (
	"context"
	"io"
	"strings"
	"time"

	"github.com/go-go-golems/xllama/pkg/settings"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

// ProgressFunc is called after every fragment with the fragment itself and
// everything accumulated so far.
type ProgressFunc func(delta string, completion string)

// Generate submits prompt to provider and returns the resulting stream.
// Nothing is retried.
func Generate(
	ctx context.Context,
	prompt string,
	params *settings.GenerationParameters,
	modelID string,
	provider Provider,
) (*FragmentStream, error) {
	if params == nil {
		params = settings.NewGenerationParameters()
	}
	input := NewInput(prompt, params)

	log.Debug().
		Str("provider", provider.Name()).
		Str("model_id", modelID).
		Object("input", input).
		Msg("submitting prompt")

	stream, err := provider.Run(ctx, modelID, input)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return nil, ErrCancelled
		}
		return nil, newProviderError(provider.Name(), modelID, err)
	}
	if stream.provider == "" {
		stream.provider = provider.Name()
	}
	if stream.model == "" {
		stream.model = modelID
	}

	return stream, nil
}

// Accumulate consumes stream to the end and returns the concatenated
// fragments. A failure mid-stream discards the partial text.
func Accumulate(ctx context.Context, stream *FragmentStream, onProgress ProgressFunc) (string, error) {
	start := time.Now()
	var sb strings.Builder
	fragments := 0

	for {
		fragment, err := stream.Next(ctx)
		if err == io.EOF {
			log.Debug().
				Str("provider", stream.provider).
				Int("fragments", fragments).
				Int("length", sb.Len()).
				Dur("duration", time.Since(start)).
				Msg("stream complete")
			return sb.String(), nil
		}
		if err != nil {
			stream.Cancel()
			if errors.Is(err, context.Canceled) {
				log.Debug().Int("fragments", fragments).Msg("stream cancelled")
				return "", ErrCancelled
			}
			if errors.Is(err, ErrStreamConsumed) {
				return "", err
			}
			log.Warn().Err(err).Int("fragments", fragments).Msg("stream failed")
			return "", newProviderError(stream.provider, stream.model, err)
		}

		fragments++
		sb.WriteString(fragment)
		if onProgress != nil {
			onProgress(fragment, sb.String())
		}
	}
}
