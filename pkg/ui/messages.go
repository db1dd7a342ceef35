package ui

import (
	tea "github.com/charmbracelet/bubbletea"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/go-go-golems/xllama/pkg/events"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

// StreamStartMsg is sent once the user turn has been appended and the
// prompt compiled.
type StreamStartMsg struct {
	InferenceID string
}

type StreamCompletionMsg struct {
	InferenceID string
	Delta       string
	Completion  string
}

type StreamDoneMsg struct {
	InferenceID string
	Completion  string
}

type StreamCompletionError struct {
	InferenceID string
	Err         error
}

type StreamInterruptMsg struct {
	InferenceID string
	Partial     string
}

type SessionStateMsg struct {
	From string
	To   string
}

type HistoryClearedMsg struct{}

// requestDoneMsg carries the return value of Session.Submit or Session.Retry.
type requestDoneMsg struct {
	Completion string
	Err        error
}

type refreshMessageMsg struct {
	GoToBottom bool
}

// Sender is satisfied by *tea.Program.
type Sender interface {
	Send(msg tea.Msg)
}

// EventForwardFunc turns chat events published on the router into bubbletea
// messages. The message is acked only once the program has received it, so
// fragments reach the model in publication order.
func EventForwardFunc(p Sender) func(msg *message.Message) error {
	return func(msg *message.Message) error {
		defer msg.Ack()

		e, err := events.NewEventFromJson(msg.Payload)
		if err != nil {
			log.Warn().Err(err).Str("message_id", msg.UUID).Msg("dropping undecodable event")
			return nil
		}

		inferenceID := e.Metadata().InferenceID
		switch e_ := e.(type) {
		case *events.EventPartialCompletionStart:
			p.Send(StreamStartMsg{InferenceID: inferenceID})
		case *events.EventPartialCompletion:
			p.Send(StreamCompletionMsg{
				InferenceID: inferenceID,
				Delta:       e_.Delta,
				Completion:  e_.Completion,
			})
		case *events.EventFinal:
			p.Send(StreamDoneMsg{InferenceID: inferenceID, Completion: e_.Text})
		case *events.EventError:
			p.Send(StreamCompletionError{InferenceID: inferenceID, Err: errors.New(e_.ErrorString)})
		case *events.EventInterrupt:
			p.Send(StreamInterruptMsg{InferenceID: inferenceID, Partial: e_.Text})
		case *events.EventStateChange:
			p.Send(SessionStateMsg{From: e_.From, To: e_.To})
		case *events.EventInfo:
			if e_.Message == events.InfoHistoryCleared {
				p.Send(HistoryClearedMsg{})
			}
		}

		return nil
	}
}
