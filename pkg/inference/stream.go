package inference

import (
	"context"
	"io"
	"sync"

	"github.com/go-go-golems/xllama/pkg/helpers"
	"github.com/rs/zerolog/log"
)

// DefaultFragmentBuffer bounds how far a provider may run ahead of its consumer.
const DefaultFragmentBuffer = 32

// Emit hands one fragment to the consumer. It blocks while the buffer is
// full and fails once the stream has been cancelled.
type Emit func(fragment string) error

// Producer pushes fragments until the model is done. Returning an error ends
// the stream with that error.
type Producer func(ctx context.Context, emit Emit) error

// FragmentStream is a finite, forward-only sequence of text fragments. It
// has a single consumer and cannot be replayed.
type FragmentStream struct {
	c      chan helpers.Result[string]
	cancel context.CancelFunc

	mu        sync.Mutex
	exhausted bool
	// err is written by the producer goroutine before c is closed
	err error

	provider string
	model    string
}

type FragmentStreamOption func(*FragmentStream)

// WithBufferSize overrides DefaultFragmentBuffer.
func WithBufferSize(n int) FragmentStreamOption {
	return func(s *FragmentStream) {
		if n >= 0 {
			s.c = make(chan helpers.Result[string], n)
		}
	}
}

// WithSource labels the stream for error reporting.
func WithSource(provider string, model string) FragmentStreamOption {
	return func(s *FragmentStream) {
		s.provider = provider
		s.model = model
	}
}

// NewFragmentStream starts producer on its own goroutine. The producer's
// context is cancelled when ctx is cancelled or when Cancel is called.
func NewFragmentStream(ctx context.Context, producer Producer, options ...FragmentStreamOption) *FragmentStream {
	ctx, cancel := context.WithCancel(ctx)
	s := &FragmentStream{
		c:      make(chan helpers.Result[string], DefaultFragmentBuffer),
		cancel: cancel,
	}
	for _, o := range options {
		o(s)
	}

	go func() {
		defer close(s.c)
		defer cancel()

		emit := func(fragment string) error {
			select {
			case s.c <- helpers.NewValueResult(fragment):
				return nil
			case <-ctx.Done():
				return ctx.Err()
			}
		}

		err := producer(ctx, emit)
		if err == nil {
			return
		}
		log.Debug().Err(err).Msg("fragment producer stopped")
		s.err = err
		select {
		case s.c <- helpers.NewErrorResult[string](err):
		case <-ctx.Done():
		}
	}()

	return s
}

// Next returns the next fragment, io.EOF at the end of the stream, and
// ErrStreamConsumed on every call after that.
func (s *FragmentStream) Next(ctx context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.exhausted {
		return "", ErrStreamConsumed
	}

	select {
	case r, ok := <-s.c:
		if !ok {
			s.exhausted = true
			if s.err != nil {
				return "", s.err
			}
			return "", io.EOF
		}
		v, err := r.Value()
		if err != nil {
			s.exhausted = true
			s.cancel()
			return "", err
		}
		return v, nil
	case <-ctx.Done():
		s.exhausted = true
		s.cancel()
		return "", ctx.Err()
	}
}

// Channel exposes the underlying results for use in a select or range.
// Ranging over it a second time yields nothing.
func (s *FragmentStream) Channel() <-chan helpers.Result[string] {
	return s.c
}

// Cancel stops the producer. Fragments already buffered stay readable.
func (s *FragmentStream) Cancel() {
	s.cancel()
}

func (s *FragmentStream) Provider() string {
	return s.provider
}

func (s *FragmentStream) Model() string {
	return s.model
}

// FromFragments returns a stream that yields fragments and then ends.
func FromFragments(ctx context.Context, fragments []string, options ...FragmentStreamOption) *FragmentStream {
	return NewFragmentStream(ctx, func(ctx context.Context, emit Emit) error {
		for _, f := range fragments {
			if err := emit(f); err != nil {
				return err
			}
		}
		return nil
	}, options...)
}
