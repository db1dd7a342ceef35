package events

import (
	"fmt"
	"io"
	"strings"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/rs/zerolog/log"
	"gopkg.in/yaml.v3"
)

// StepPrinterFunc returns a handler that writes streamed fragments to w as
// they arrive, prefixed once with name.
func StepPrinterFunc(name string, w io.Writer) func(msg *message.Message) error {
	isFirst := true

	return func(msg *message.Message) error {
		defer msg.Ack()

		e, err := NewEventFromJson(msg.Payload)
		if err != nil {
			log.Warn().Err(err).Str("message_id", msg.UUID).Msg("could not decode event")
			return nil
		}

		switch p_ := e.(type) {
		case *EventPartialCompletion:
			if isFirst && name != "" {
				isFirst = false
				_, err = fmt.Fprintf(w, "%s: ", name)
				if err != nil {
					return err
				}
			}
			_, err = fmt.Fprintf(w, "%s", p_.Delta)
			if err != nil {
				return err
			}

		case *EventFinal:
			if !strings.HasSuffix(p_.Text, "\n") {
				_, err = fmt.Fprintf(w, "\n")
				if err != nil {
					return err
				}
			}
			isFirst = true

		case *EventError:
			_, err = fmt.Fprintf(w, "\nError: %s\n", p_.ErrorString)
			if err != nil {
				return err
			}
			isFirst = true

		case *EventInterrupt:
			_, err = fmt.Fprintf(w, "\n[interrupted]\n")
			if err != nil {
				return err
			}
			isFirst = true

		case *EventInfo:
			if _, err := fmt.Fprintf(w, "[i] %s\n", p_.Message); err != nil {
				return err
			}
			if len(p_.Data) > 0 {
				v_, err := yaml.Marshal(p_.Data)
				if err != nil {
					return err
				}
				if _, err := fmt.Fprintf(w, "%s", v_); err != nil {
					return err
				}
			}

		case *EventPartialCompletionStart,
			*EventStateChange:

		}

		return nil
	}
}
