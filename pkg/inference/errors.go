package inference

import (
	"context"
	"fmt"

	"github.com/pkg/errors"
)

// ErrCancelled is returned when a request is abandoned before the stream ended.
var ErrCancelled = errors.Wrap(context.Canceled, "inference cancelled")

// ErrStreamConsumed is returned by FragmentStream.Next once the stream has
// already reported its end.
var ErrStreamConsumed = errors.New("fragment stream already consumed")

// ProviderError is any failure reported by the inference provider, either
// when starting the request or while streaming.
type ProviderError struct {
	Provider string
	Model    string
	Err      error
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("%s provider failed for model %s: %v", e.Provider, e.Model, e.Err)
}

func (e *ProviderError) Unwrap() error {
	return e.Err
}

func newProviderError(provider string, model string, err error) error {
	var pe *ProviderError
	if errors.As(err, &pe) {
		return err
	}
	return &ProviderError{Provider: provider, Model: model, Err: err}
}
