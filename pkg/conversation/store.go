package conversation

import (
	"sync"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

// DefaultGreeting is the assistant turn every store starts with.
const DefaultGreeting = "How may I assist you today?"

var ErrConsecutiveRole = errors.New("consecutive turns with the same role")

type AlternationPolicy int

const (
	// AlternationFree accepts any sequence of roles.
	AlternationFree AlternationPolicy = iota
	// AlternationStrict rejects a turn whose role matches the previous turn.
	AlternationStrict
)

func (p AlternationPolicy) String() string {
	switch p {
	case AlternationFree:
		return "free"
	case AlternationStrict:
		return "strict"
	default:
		return "unknown"
	}
}

// Store holds the ordered turns of a single chat session.
// It is never empty: construction and Reset both leave exactly one
// assistant greeting turn in place.
type Store struct {
	mu       sync.RWMutex
	turns    []Turn
	greeting string
	policy   AlternationPolicy
}

type StoreOption func(*Store)

func WithGreeting(greeting string) StoreOption {
	return func(s *Store) {
		if greeting != "" {
			s.greeting = greeting
		}
	}
}

func WithAlternationPolicy(policy AlternationPolicy) StoreOption {
	return func(s *Store) {
		s.policy = policy
	}
}

func NewStore(options ...StoreOption) *Store {
	ret := &Store{
		greeting: DefaultGreeting,
		policy:   AlternationFree,
	}
	for _, o := range options {
		o(ret)
	}
	ret.turns = []Turn{ret.seed()}
	return ret
}

func (s *Store) seed() Turn {
	return NewAssistantTurn(s.greeting)
}

// Append adds turns at the end of the conversation. With the default
// AlternationFree policy it never fails. Under AlternationStrict the
// whole batch is rejected if any turn repeats the role before it.
func (s *Store) Append(turns ...Turn) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.policy == AlternationStrict {
		prev := s.turns[len(s.turns)-1].Role
		for _, t := range turns {
			if t.Role == prev {
				return errors.Wrapf(ErrConsecutiveRole, "cannot append %s turn after %s turn", t.Role, prev)
			}
			prev = t.Role
		}
	}

	s.turns = append(s.turns, turns...)
	log.Trace().Int("appended", len(turns)).Int("length", len(s.turns)).Msg("appended turns")
	return nil
}

// Reset drops the history and re-seeds the greeting.
func (s *Store) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.turns = []Turn{s.seed()}
	log.Debug().Msg("conversation reset")
}

// All returns a copy of the turns in chronological order.
func (s *Store) All() []Turn {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ret := make([]Turn, len(s.turns))
	copy(ret, s.turns)
	return ret
}

func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.turns)
}

func (s *Store) Last() (Turn, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if len(s.turns) == 0 {
		return Turn{}, false
	}
	return s.turns[len(s.turns)-1], true
}

func (s *Store) Policy() AlternationPolicy {
	return s.policy
}
