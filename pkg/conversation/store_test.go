package conversation

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewStoreIsSeeded(t *testing.T) {
	s := NewStore()
	turns := s.All()
	require.Len(t, turns, 1)
	assert.Equal(t, RoleAssistant, turns[0].Role)
	assert.Equal(t, "How may I assist you today?", turns[0].Content)
}

func TestResetYieldsSingleGreeting(t *testing.T) {
	s := NewStore()
	require.NoError(t, s.Append(NewUserTurn("Hi"), NewAssistantTurn("Hello")))
	require.Equal(t, 3, s.Len())

	s.Reset()

	turns := s.All()
	require.Len(t, turns, 1)
	assert.Equal(t, RoleAssistant, turns[0].Role)
	assert.Equal(t, DefaultGreeting, turns[0].Content)

	// resetting twice is the same as resetting once
	s.Reset()
	assert.Equal(t, 1, s.Len())
}

func TestCustomGreeting(t *testing.T) {
	s := NewStore(WithGreeting("Ahoy"))
	last, ok := s.Last()
	require.True(t, ok)
	assert.Equal(t, "Ahoy", last.Content)

	// an empty greeting keeps the default
	s = NewStore(WithGreeting(""))
	last, _ = s.Last()
	assert.Equal(t, DefaultGreeting, last.Content)
}

func TestAppendUserThenAssistantGrowsByTwo(t *testing.T) {
	s := NewStore()
	require.NoError(t, s.Append(NewUserTurn("first question")))
	require.NoError(t, s.Append(NewAssistantTurn("first answer")))
	before := s.All()

	require.NoError(t, s.Append(NewUserTurn("second question")))
	require.NoError(t, s.Append(NewAssistantTurn("second answer")))
	after := s.All()

	require.Len(t, after, len(before)+2)
	assert.Equal(t, before, after[:len(before)])
	assert.Equal(t, "second question", after[len(before)].Content)
	assert.Equal(t, RoleUser, after[len(before)].Role)
	assert.Equal(t, "second answer", after[len(before)+1].Content)
	assert.Equal(t, RoleAssistant, after[len(before)+1].Role)
}

func TestAllReturnsCopy(t *testing.T) {
	s := NewStore()
	turns := s.All()
	turns[0].Content = "mutated"

	last, _ := s.Last()
	assert.Equal(t, DefaultGreeting, last.Content)
}

func TestFreePolicyAcceptsConsecutiveRoles(t *testing.T) {
	s := NewStore()
	require.NoError(t, s.Append(NewAssistantTurn("again")))
	require.NoError(t, s.Append(NewUserTurn("a"), NewUserTurn("b")))
	assert.Equal(t, 4, s.Len())
}

func TestStrictPolicyRejectsConsecutiveRoles(t *testing.T) {
	s := NewStore(WithAlternationPolicy(AlternationStrict))
	assert.Equal(t, AlternationStrict, s.Policy())

	err := s.Append(NewAssistantTurn("again"))
	require.ErrorIs(t, err, ErrConsecutiveRole)
	assert.Equal(t, 1, s.Len())

	require.NoError(t, s.Append(NewUserTurn("Hi"), NewAssistantTurn("Hello")))
	assert.Equal(t, 3, s.Len())

	// a batch with an inner repeat is rejected as a whole
	err = s.Append(NewUserTurn("a"), NewUserTurn("b"))
	require.ErrorIs(t, err, ErrConsecutiveRole)
	assert.Equal(t, 3, s.Len())
}

func TestConcurrentReadsDuringAppend(t *testing.T) {
	s := NewStore()
	wg := sync.WaitGroup{}
	for i := 0; i < 10; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			_ = s.Append(NewUserTurn("q"))
		}()
		go func() {
			defer wg.Done()
			_ = s.All()
		}()
	}
	wg.Wait()
	assert.Equal(t, 11, s.Len())
}

func TestRoleLabel(t *testing.T) {
	assert.Equal(t, "User", RoleUser.Label())
	assert.Equal(t, "Assistant", RoleAssistant.Label())
	assert.Equal(t, "system", Role("system").Label())
}
