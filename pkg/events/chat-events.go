package events

import (
	"encoding/json"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
)

type EventType string

const (
	// EventTypeStart to EventTypeFinal follow one request from submission to
	// the committed assistant turn.
	EventTypeStart             EventType = "start"
	EventTypePartialCompletion EventType = "partial"
	EventTypeFinal             EventType = "final"
	EventTypeError             EventType = "error"
	EventTypeInterrupt         EventType = "interrupt"

	// EventTypeStateChange reports every transition of the request state machine.
	EventTypeStateChange EventType = "state"

	// EventTypeInfo carries informational events, for example a history reset.
	EventTypeInfo EventType = "info"
)

// InfoHistoryCleared is the EventInfo message published after a reset.
const InfoHistoryCleared = "history cleared"

type Event interface {
	Type() EventType
	Metadata() EventMetadata
	Payload() []byte
}

type EventImpl struct {
	Type_     EventType     `json:"type"`
	Metadata_ EventMetadata `json:"meta,omitempty"`

	// payload is only set on events decoded with NewEventFromJson
	payload []byte
}

func (e *EventImpl) MarshalZerologObject(ev *zerolog.Event) {
	ev.Str("type", string(e.Type_))
	ev.Object("meta", e.Metadata_)
}

func (e *EventImpl) Type() EventType {
	return e.Type_
}

func (e *EventImpl) Metadata() EventMetadata {
	return e.Metadata_
}

func (e *EventImpl) Payload() []byte {
	return e.payload
}

func (e *EventImpl) SetPayload(b []byte) {
	e.payload = b
}

var _ Event = &EventImpl{}

type EventPartialCompletionStart struct {
	EventImpl
	// Prompt is the compiled prompt sent to the provider.
	Prompt string `json:"prompt,omitempty"`
}

func NewStartEvent(metadata EventMetadata, prompt string) *EventPartialCompletionStart {
	return &EventPartialCompletionStart{
		EventImpl: EventImpl{
			Type_:     EventTypeStart,
			Metadata_: metadata,
		},
		Prompt: prompt,
	}
}

var _ Event = &EventPartialCompletionStart{}

// EventPartialCompletion is published after every fragment.
type EventPartialCompletion struct {
	EventImpl
	Delta string `json:"delta"`
	// Completion is everything accumulated so far, Delta included.
	Completion string `json:"completion"`
}

func NewPartialCompletionEvent(metadata EventMetadata, delta string, completion string) *EventPartialCompletion {
	return &EventPartialCompletion{
		EventImpl: EventImpl{
			Type_:     EventTypePartialCompletion,
			Metadata_: metadata,
		},
		Delta:      delta,
		Completion: completion,
	}
}

var _ Event = &EventPartialCompletion{}

type EventFinal struct {
	EventImpl
	Text string `json:"text"`
}

func NewFinalEvent(metadata EventMetadata, text string) *EventFinal {
	return &EventFinal{
		EventImpl: EventImpl{
			Type_:     EventTypeFinal,
			Metadata_: metadata,
		},
		Text: text,
	}
}

var _ Event = &EventFinal{}

type EventError struct {
	EventImpl
	ErrorString string `json:"error_string"`
}

func NewErrorEvent(metadata EventMetadata, err error) *EventError {
	return &EventError{
		EventImpl: EventImpl{
			Type_:     EventTypeError,
			Metadata_: metadata,
		},
		ErrorString: err.Error(),
	}
}

var _ Event = &EventError{}

// EventInterrupt is published when a request is cancelled. Text holds the
// partial completion that was discarded.
type EventInterrupt struct {
	EventImpl
	Text string `json:"text"`
}

func NewInterruptEvent(metadata EventMetadata, text string) *EventInterrupt {
	return &EventInterrupt{
		EventImpl: EventImpl{
			Type_:     EventTypeInterrupt,
			Metadata_: metadata,
		},
		Text: text,
	}
}

var _ Event = &EventInterrupt{}

type EventStateChange struct {
	EventImpl
	From string `json:"from"`
	To   string `json:"to"`
}

func NewStateChangeEvent(metadata EventMetadata, from string, to string) *EventStateChange {
	return &EventStateChange{
		EventImpl: EventImpl{
			Type_:     EventTypeStateChange,
			Metadata_: metadata,
		},
		From: from,
		To:   to,
	}
}

var _ Event = &EventStateChange{}

type EventInfo struct {
	EventImpl
	Message string                 `json:"message"`
	Data    map[string]interface{} `json:"data,omitempty"`
}

func NewInfoEvent(metadata EventMetadata, message string, data map[string]interface{}) *EventInfo {
	return &EventInfo{
		EventImpl: EventImpl{
			Type_:     EventTypeInfo,
			Metadata_: metadata,
		},
		Message: message,
		Data:    data,
	}
}

var _ Event = &EventInfo{}

// EventMetadata is passed along with every watermill message.
type EventMetadata struct {
	LLMInferenceData
	ID uuid.UUID `json:"message_id" yaml:"message_id" mapstructure:"message_id"`
	// SessionID identifies the chat session, InferenceID one request within it.
	SessionID   string `json:"session_id,omitempty" yaml:"session_id,omitempty" mapstructure:"session_id"`
	InferenceID string `json:"inference_id,omitempty" yaml:"inference_id,omitempty" mapstructure:"inference_id"`
	TurnID      string `json:"turn_id,omitempty" yaml:"turn_id,omitempty" mapstructure:"turn_id"`
}

func (em EventMetadata) MarshalZerologObject(e *zerolog.Event) {
	e.Str("message_id", em.ID.String())
	if em.SessionID != "" {
		e.Str("session_id", em.SessionID)
	}
	if em.InferenceID != "" {
		e.Str("inference_id", em.InferenceID)
	}
	if em.TurnID != "" {
		e.Str("turn_id", em.TurnID)
	}
	if em.Model != "" {
		e.Str("model", em.Model)
	}
	if em.Temperature != nil {
		e.Float64("temperature", *em.Temperature)
	}
	if em.TopP != nil {
		e.Float64("top_p", *em.TopP)
	}
	if em.MaxLength != nil {
		e.Int("max_length", *em.MaxLength)
	}
	if em.DurationMs != nil {
		e.Int64("duration_ms", *em.DurationMs)
	}
}

// NewEventFromJson decodes a published event back into its typed struct.
func NewEventFromJson(b []byte) (Event, error) {
	var e *EventImpl
	err := json.Unmarshal(b, &e)
	if err != nil {
		return nil, errors.Wrap(err, "could not decode event")
	}
	if e == nil {
		return nil, errors.New("empty event payload")
	}

	e.payload = b

	var ret Event
	var ok bool
	switch e.Type_ {
	case EventTypeStart:
		ret, ok = typed[EventPartialCompletionStart](e)
	case EventTypePartialCompletion:
		ret, ok = typed[EventPartialCompletion](e)
	case EventTypeFinal:
		ret, ok = typed[EventFinal](e)
	case EventTypeError:
		ret, ok = typed[EventError](e)
	case EventTypeInterrupt:
		ret, ok = typed[EventInterrupt](e)
	case EventTypeStateChange:
		ret, ok = typed[EventStateChange](e)
	case EventTypeInfo:
		ret, ok = typed[EventInfo](e)
	default:
		return nil, errors.Errorf("unknown event type: %s", e.Type_)
	}
	if !ok {
		return nil, errors.Errorf("could not cast event to %s", e.Type_)
	}

	return ret, nil
}

// typed decodes the payload of e into T and returns it as an Event.
func typed[T any, PT interface {
	*T
	Event
	SetPayload([]byte)
}](e *EventImpl) (Event, bool) {
	ret, ok := ToTypedEvent[T](e)
	if !ok || ret == nil {
		return nil, false
	}
	PT(ret).SetPayload(e.payload)
	return PT(ret), true
}

func ToTypedEvent[T any](e Event) (*T, bool) {
	var ret *T
	err := json.Unmarshal(e.Payload(), &ret)
	if err != nil {
		return nil, false
	}

	return ret, true
}
