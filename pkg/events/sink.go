package events

import (
	"encoding/json"
	"sync"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

// EventSink is a destination for chat events.
type EventSink interface {
	PublishEvent(event Event) error
}

// WatermillSink serializes events to JSON and publishes them on a topic.
type WatermillSink struct {
	publisher message.Publisher
	topic     string
}

func NewWatermillSink(publisher message.Publisher, topic string) *WatermillSink {
	return &WatermillSink{
		publisher: publisher,
		topic:     topic,
	}
}

func (w *WatermillSink) PublishEvent(event Event) error {
	payload, err := json.Marshal(event)
	if err != nil {
		log.Error().Err(err).Msg("Failed to marshal event to JSON")
		return errors.Wrap(err, "could not marshal event")
	}

	msg := message.NewMessage(watermill.NewUUID(), payload)

	err = w.publisher.Publish(w.topic, msg)
	if err != nil {
		log.Error().Err(err).Str("topic", w.topic).Msg("Failed to publish event to watermill")
		return errors.Wrapf(err, "could not publish to %s", w.topic)
	}

	log.Trace().Str("topic", w.topic).Str("event_type", string(event.Type())).Msg("Published event to watermill")
	return nil
}

var _ EventSink = (*WatermillSink)(nil)

// NullSink drops every event.
type NullSink struct{}

func (n *NullSink) PublishEvent(Event) error {
	return nil
}

var _ EventSink = (*NullSink)(nil)

// CollectingSink keeps every published event in memory.
type CollectingSink struct {
	mu     sync.Mutex
	events []Event
}

func NewCollectingSink() *CollectingSink {
	return &CollectingSink{}
}

func (c *CollectingSink) PublishEvent(event Event) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = append(c.events, event)
	return nil
}

func (c *CollectingSink) Events() []Event {
	c.mu.Lock()
	defer c.mu.Unlock()
	ret := make([]Event, len(c.events))
	copy(ret, c.events)
	return ret
}

// Types returns the types of the collected events in publication order.
func (c *CollectingSink) Types() []EventType {
	c.mu.Lock()
	defer c.mu.Unlock()
	ret := make([]EventType, 0, len(c.events))
	for _, e := range c.events {
		ret = append(ret, e.Type())
	}
	return ret
}

var _ EventSink = (*CollectingSink)(nil)
