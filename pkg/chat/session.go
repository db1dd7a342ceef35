package chat

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/go-go-golems/xllama/pkg/conversation"
	"github.com/go-go-golems/xllama/pkg/events"
	"github.com/go-go-golems/xllama/pkg/helpers"
	"github.com/go-go-golems/xllama/pkg/inference"
	"github.com/go-go-golems/xllama/pkg/prompt"
	"github.com/go-go-golems/xllama/pkg/settings"
	"github.com/google/uuid"
	"github.com/lithammer/shortuuid/v3"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

var (
	ErrRequestInFlight = errors.New("a request is already in flight")
	ErrNoActiveRequest = errors.New("no request in flight")
	ErrNothingToRetry  = errors.New("the last turn is not an unanswered user message")
	ErrEmptyMessage    = errors.New("message is empty")
)

// Session is one chat: a conversation store, the selected model and
// parameters, and at most one outstanding request.
type Session struct {
	ID string

	store    *conversation.Store
	pipeline *Pipeline
	sinks    []events.EventSink

	mu       sync.Mutex
	state    State
	params   *settings.GenerationParameters
	model    settings.Model
	inFlight bool
	cancel   context.CancelFunc
	lastErr  error
}

type SessionOption func(*Session)

func WithStore(store *conversation.Store) SessionOption {
	return func(s *Session) {
		s.store = store
	}
}

func WithEventSinks(sinks ...events.EventSink) SessionOption {
	return func(s *Session) {
		s.sinks = append(s.sinks, sinks...)
	}
}

func WithParams(params *settings.GenerationParameters) SessionOption {
	return func(s *Session) {
		s.params = params.Clone()
	}
}

func WithModel(model settings.Model) SessionOption {
	return func(s *Session) {
		s.model = model
	}
}

func WithSessionID(id string) SessionOption {
	return func(s *Session) {
		s.ID = id
	}
}

func NewSession(pipeline *Pipeline, options ...SessionOption) *Session {
	ret := &Session{
		ID:       shortuuid.New(),
		pipeline: pipeline,
		state:    StateIdle,
		params:   settings.NewGenerationParameters(),
		model:    settings.NewDefaultModelSelector().Default(),
	}
	for _, o := range options {
		o(ret)
	}
	if ret.store == nil {
		ret.store = conversation.NewStore()
	}
	return ret
}

// NewSessionFromSettings builds the store and compiler described by s.
func NewSessionFromSettings(s *settings.Settings, provider inference.Provider, options ...SessionOption) (*Session, error) {
	compilerOptions := []prompt.CompilerOption{}
	if s.Preamble != "" {
		compilerOptions = append(compilerOptions, prompt.WithPreambleTemplate(s.Preamble, prompt.PreambleData{
			Model:   s.Model.Name,
			ModelID: s.Model.ID,
		}))
	}
	compiler, err := prompt.NewCompiler(compilerOptions...)
	if err != nil {
		return nil, &settings.ConfigurationError{Setting: "preamble", Reason: "could not render preamble", Err: err}
	}
	pipeline, err := NewPipeline(provider, WithCompiler(compiler))
	if err != nil {
		return nil, err
	}

	policy := conversation.AlternationFree
	if s.StrictAlternation {
		policy = conversation.AlternationStrict
	}
	store := conversation.NewStore(
		conversation.WithGreeting(s.Greeting),
		conversation.WithAlternationPolicy(policy),
	)

	options = append([]SessionOption{
		WithStore(store),
		WithParams(s.Generation),
		WithModel(s.Model),
	}, options...)
	return NewSession(pipeline, options...), nil
}

func (s *Session) Store() *conversation.Store {
	return s.store
}

func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// LastError is the error of the most recent failed or cancelled request.
func (s *Session) LastError() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastErr
}

func (s *Session) Params() *settings.GenerationParameters {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.params.Clone()
}

func (s *Session) Model() settings.Model {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.model
}

// SetParams validates params and uses them from the next request on.
func (s *Session) SetParams(params *settings.GenerationParameters) error {
	if err := params.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.params = params.Clone()
	return nil
}

func (s *Session) SetModel(model settings.Model) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.model = model
}

// Submit appends message as a user turn and runs one request for it. The
// assistant turn is only appended if the request completes.
func (s *Session) Submit(ctx context.Context, message string, onProgress inference.ProgressFunc) (string, error) {
	if strings.TrimSpace(message) == "" {
		return "", ErrEmptyMessage
	}

	ctx, err := s.begin(ctx)
	if err != nil {
		return "", err
	}
	defer s.end()

	history := s.store.All()
	if err := s.store.Append(conversation.NewUserTurn(message)); err != nil {
		return "", err
	}

	return s.run(ctx, history, message, onProgress)
}

// Retry runs a new request for a trailing user turn left behind by a failed
// or cancelled request.
func (s *Session) Retry(ctx context.Context, onProgress inference.ProgressFunc) (string, error) {
	ctx, err := s.begin(ctx)
	if err != nil {
		return "", err
	}
	defer s.end()

	all := s.store.All()
	if len(all) == 0 || all[len(all)-1].Role != conversation.RoleUser {
		return "", ErrNothingToRetry
	}
	last := all[len(all)-1]

	log.Debug().Str("session_id", s.ID).Str("turn_id", last.ID.String()).Msg("retrying request")
	return s.run(ctx, all[:len(all)-1], last.Content, onProgress)
}

// Cancel aborts the request in flight.
func (s *Session) Cancel() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.inFlight || s.cancel == nil {
		return ErrNoActiveRequest
	}
	log.Debug().Str("session_id", s.ID).Msg("cancelling request")
	s.cancel()
	return nil
}

// Reset clears the history back to the greeting.
func (s *Session) Reset(ctx context.Context) error {
	s.mu.Lock()
	if s.inFlight {
		s.mu.Unlock()
		return ErrRequestInFlight
	}
	prev := s.state
	s.state = StateIdle
	s.lastErr = nil
	s.mu.Unlock()

	s.store.Reset()

	meta := s.metadata("", uuid.Nil)
	if prev != StateIdle {
		s.publish(ctx, events.NewStateChangeEvent(meta, prev.String(), StateIdle.String()))
	}
	s.publish(ctx, events.NewInfoEvent(meta, events.InfoHistoryCleared, map[string]interface{}{
		"turns": s.store.Len(),
	}))
	log.Info().Str("session_id", s.ID).Msg("history cleared")
	return nil
}

func (s *Session) begin(ctx context.Context) (context.Context, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.inFlight {
		return nil, ErrRequestInFlight
	}
	s.inFlight = true
	s.lastErr = nil
	ctx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	return ctx, nil
}

func (s *Session) end() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
	s.inFlight = false
}

func (s *Session) run(
	ctx context.Context,
	history []conversation.Turn,
	message string,
	onProgress inference.ProgressFunc,
) (string, error) {
	s.mu.Lock()
	params := s.params.Clone()
	model := s.model
	s.mu.Unlock()

	start := time.Now()
	turnID := uuid.New()
	meta := s.metadata(uuid.NewString(), turnID)
	meta.Model = model.Name
	meta.ModelID = model.ID
	meta.Temperature = helpers.Float64Pointer(params.Temperature)
	meta.TopP = helpers.Float64Pointer(params.TopP)
	meta.MaxLength = helpers.IntPointer(params.MaxLength)

	s.transition(ctx, meta, StateCompiling)
	compiled := s.pipeline.Compile(history, message)
	s.publish(ctx, events.NewStartEvent(meta, compiled))

	s.transition(ctx, meta, StateAwaitingFirstFragment)
	stream, err := s.pipeline.Generate(ctx, compiled, params, model.ID)
	if err != nil {
		return "", s.fail(ctx, meta, err, "")
	}

	partial := ""
	first := true
	completion, err := inference.Accumulate(ctx, stream, func(delta string, completion string) {
		if first {
			first = false
			s.transition(ctx, meta, StateStreaming)
		}
		partial = completion
		s.publish(ctx, events.NewPartialCompletionEvent(meta, delta, completion))
		if onProgress != nil {
			onProgress(delta, completion)
		}
	})
	if err != nil {
		return "", s.fail(ctx, meta, err, partial)
	}

	if err := s.store.Append(conversation.NewAssistantTurn(completion, conversation.WithID(turnID))); err != nil {
		return "", s.fail(ctx, meta, err, completion)
	}

	meta.DurationMs = helpers.Int64Pointer(time.Since(start).Milliseconds())
	s.publish(ctx, events.NewFinalEvent(meta, completion))
	s.transition(ctx, meta, StateCompleted)

	log.Info().
		Str("session_id", s.ID).
		Str("model", model.Name).
		Int("length", len(completion)).
		Dur("duration", time.Since(start)).
		Msg("assistant turn committed")

	return completion, nil
}

func (s *Session) fail(ctx context.Context, meta events.EventMetadata, err error, partial string) error {
	s.mu.Lock()
	s.lastErr = err
	s.mu.Unlock()

	if errors.Is(err, inference.ErrCancelled) {
		s.publish(ctx, events.NewInterruptEvent(meta, partial))
		s.transition(ctx, meta, StateCancelled)
		return err
	}

	log.Warn().Err(err).Str("session_id", s.ID).Msg("request failed")
	s.publish(ctx, events.NewErrorEvent(meta, err))
	s.transition(ctx, meta, StateFailed)
	return err
}

func (s *Session) transition(ctx context.Context, meta events.EventMetadata, next State) {
	s.mu.Lock()
	prev := s.state
	if !prev.canTransitionTo(next) {
		s.mu.Unlock()
		log.Error().Str("from", prev.String()).Str("to", next.String()).Msg("invalid state transition")
		return
	}
	s.state = next
	s.mu.Unlock()

	log.Debug().
		Str("session_id", s.ID).
		Str("from", prev.String()).
		Str("to", next.String()).
		Msg("state transition")
	s.publish(ctx, events.NewStateChangeEvent(meta, prev.String(), next.String()))
}

// publish never blocks on a cancelled ctx, so interrupt events still go out.
func (s *Session) publish(ctx context.Context, e events.Event) {
	for _, sink := range s.sinks {
		if err := sink.PublishEvent(e); err != nil {
			log.Warn().Err(err).Str("event_type", string(e.Type())).Msg("failed to publish event")
		}
	}
	events.PublishEventToContext(ctx, e)
}

func (s *Session) metadata(inferenceID string, turnID uuid.UUID) events.EventMetadata {
	ret := events.EventMetadata{
		ID:          uuid.New(),
		SessionID:   s.ID,
		InferenceID: inferenceID,
	}
	if turnID != uuid.Nil {
		ret.TurnID = turnID.String()
		ret.ID = turnID
	}
	return ret
}
