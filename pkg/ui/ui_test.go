package ui

import (
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/ThreeDotsLabs/watermill/message"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/go-go-golems/xllama/pkg/chat"
	"github.com/go-go-golems/xllama/pkg/events"
	"github.com/go-go-golems/xllama/pkg/inference"
	"github.com/go-go-golems/xllama/pkg/inference/fixtures"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestModel(t *testing.T, provider *fixtures.ScriptedProvider) model {
	pipeline, err := chat.NewPipeline(provider)
	require.NoError(t, err)
	session := chat.NewSession(pipeline)
	m := InitialModel(session, WithGlamourStyle("notty"))
	return update(t, m, tea.WindowSizeMsg{Width: 80, Height: 30})
}

func update(t *testing.T, m model, msg tea.Msg) model {
	ret, _ := m.Update(msg)
	updated, ok := ret.(model)
	require.True(t, ok)
	return updated
}

// runCmd executes cmd and the commands of a batch, returning the messages
// that are not spinner ticks.
func runCmd(cmd tea.Cmd) []tea.Msg {
	if cmd == nil {
		return nil
	}
	msg := cmd()
	if batch, ok := msg.(tea.BatchMsg); ok {
		var ret []tea.Msg
		for _, c := range batch {
			ret = append(ret, runCmd(c)...)
		}
		return ret
	}
	if msg == nil {
		return nil
	}
	return []tea.Msg{msg}
}

func findRequestDone(t *testing.T, msgs []tea.Msg) requestDoneMsg {
	for _, msg := range msgs {
		if done, ok := msg.(requestDoneMsg); ok {
			return done
		}
	}
	t.Fatal("no requestDoneMsg")
	return requestDoneMsg{}
}

func submit(t *testing.T, m model, text string) (model, tea.Cmd) {
	m.textArea.SetValue(text)
	ret, cmd := m.Update(tea.KeyMsg{Type: tea.KeyTab})
	return ret.(model), cmd
}

func TestSubmitStreamsAndCommits(t *testing.T) {
	m := newTestModel(t, fixtures.NewScriptedProvider("The", " sky", " is", " blue."))

	m, cmd := submit(t, m, "What color is the sky?")
	assert.Equal(t, StateStreamCompletion, m.state)
	assert.True(t, m.awaitingFirstFragment)
	assert.Contains(t, m.View(), "Thinking...")
	assert.Equal(t, "", m.textArea.Value())

	m = update(t, m, StreamCompletionMsg{Delta: "The", Completion: "The"})
	assert.False(t, m.awaitingFirstFragment)
	assert.Contains(t, m.View(), "The")

	done := findRequestDone(t, runCmd(cmd))
	require.NoError(t, done.Err)
	assert.Equal(t, "The sky is blue.", done.Completion)

	m = update(t, m, done)
	assert.Equal(t, StateUserInput, m.state)
	m = update(t, m, refreshMessageMsg{GoToBottom: true})

	assert.Equal(t, 3, m.session.Store().Len())
	view := m.View()
	assert.Contains(t, view, "What color is the sky?")
	assert.Contains(t, view, "blue.")
}

func TestEmptySubmitIsIgnored(t *testing.T) {
	m := newTestModel(t, fixtures.NewScriptedProvider("x"))
	m, cmd := submit(t, m, "   ")
	assert.Nil(t, cmd)
	assert.Equal(t, StateUserInput, m.state)
	assert.Equal(t, 1, m.session.Store().Len())
}

func TestErrorThenDismiss(t *testing.T) {
	provider := fixtures.NewScriptedProvider("The", " sky").FailingAfter(1, errors.New("503 unavailable"))
	m := newTestModel(t, provider)

	m, cmd := submit(t, m, "Hi")
	done := findRequestDone(t, runCmd(cmd))
	require.Error(t, done.Err)

	m = update(t, m, done)
	assert.Equal(t, StateError, m.state)
	assert.Contains(t, m.View(), "unavailable")
	assert.True(t, m.keyMap.Retry.Enabled())
	assert.Equal(t, 2, m.session.Store().Len())

	m = update(t, m, tea.KeyMsg{Type: tea.KeyEnter})
	assert.Equal(t, StateUserInput, m.state)
	assert.Nil(t, m.err)
}

func TestRetryAfterError(t *testing.T) {
	provider := fixtures.NewScriptedProvider("The", " sky").FailingAfter(1, errors.New("boom"))
	m := newTestModel(t, provider)

	m, cmd := submit(t, m, "Hi")
	m = update(t, m, findRequestDone(t, runCmd(cmd)))
	require.Equal(t, StateError, m.state)

	provider.FailAfter = -1
	ret, cmd := m.Update(tea.KeyMsg{Type: tea.KeyCtrlR})
	m = ret.(model)
	assert.Equal(t, StateStreamCompletion, m.state)

	done := findRequestDone(t, runCmd(cmd))
	require.NoError(t, done.Err)
	assert.Equal(t, "The sky", done.Completion)
	m = update(t, m, done)
	assert.Equal(t, StateUserInput, m.state)
	assert.Equal(t, 3, m.session.Store().Len())
}

func TestClearHistory(t *testing.T) {
	m := newTestModel(t, fixtures.NewScriptedProvider("ok"))
	m, cmd := submit(t, m, "Hi")
	m = update(t, m, findRequestDone(t, runCmd(cmd)))
	require.Equal(t, 3, m.session.Store().Len())

	m = update(t, m, tea.KeyMsg{Type: tea.KeyCtrlL})
	assert.Equal(t, 1, m.session.Store().Len())
	assert.Equal(t, StateUserInput, m.state)
}

func TestEscCancelsCompletion(t *testing.T) {
	provider := fixtures.NewScriptedProvider("The sky is blue.")
	provider.Gate = make(chan struct{})
	m := newTestModel(t, provider)

	m, cmd := submit(t, m, "Hi")

	var wg sync.WaitGroup
	var msgs []tea.Msg
	wg.Add(1)
	go func() {
		defer wg.Done()
		msgs = runCmd(cmd)
	}()
	require.Eventually(t, func() bool {
		return m.session.State() == chat.StateAwaitingFirstFragment
	}, 5*time.Second, 5*time.Millisecond)

	m = update(t, m, tea.KeyMsg{Type: tea.KeyEsc})
	wg.Wait()

	m = update(t, m, findRequestDone(t, msgs))
	assert.Equal(t, StateUserInput, m.state)
	assert.Contains(t, m.status, "cancelled")
	assert.True(t, m.keyMap.Retry.Enabled())
	assert.Equal(t, chat.StateCancelled, m.session.State())
}

type recordingSender struct {
	msgs []tea.Msg
}

func (r *recordingSender) Send(msg tea.Msg) {
	r.msgs = append(r.msgs, msg)
}

func TestEventForwardFunc(t *testing.T) {
	sender := &recordingSender{}
	forward := EventForwardFunc(sender)
	meta := events.EventMetadata{ID: uuid.New(), InferenceID: "inf-1"}

	for _, e := range []events.Event{
		events.NewStartEvent(meta, "prompt"),
		events.NewPartialCompletionEvent(meta, "The", "The"),
		events.NewFinalEvent(meta, "The"),
		events.NewErrorEvent(meta, errors.New("boom")),
		events.NewStateChangeEvent(meta, "streaming", "completed"),
		events.NewInfoEvent(meta, events.InfoHistoryCleared, nil),
	} {
		b, err := json.Marshal(e)
		require.NoError(t, err)
		require.NoError(t, forward(message.NewMessage(uuid.NewString(), b)))
	}

	require.Len(t, sender.msgs, 6)
	assert.Equal(t, StreamStartMsg{InferenceID: "inf-1"}, sender.msgs[0])
	assert.Equal(t, StreamCompletionMsg{InferenceID: "inf-1", Delta: "The", Completion: "The"}, sender.msgs[1])
	assert.Equal(t, StreamDoneMsg{InferenceID: "inf-1", Completion: "The"}, sender.msgs[2])
	errMsg, ok := sender.msgs[3].(StreamCompletionError)
	require.True(t, ok)
	assert.EqualError(t, errMsg.Err, "boom")
	assert.Equal(t, SessionStateMsg{From: "streaming", To: "completed"}, sender.msgs[4])
	assert.Equal(t, HistoryClearedMsg{}, sender.msgs[5])
}

func TestQuitCancelsRunningRequest(t *testing.T) {
	provider := fixtures.NewScriptedProvider("x")
	provider.Gate = make(chan struct{})
	m := newTestModel(t, provider)

	m, cmd := submit(t, m, "Hi")
	done := make(chan []tea.Msg, 1)
	go func() { done <- runCmd(cmd) }()
	require.Eventually(t, func() bool {
		return m.session.State() == chat.StateAwaitingFirstFragment
	}, 5*time.Second, 5*time.Millisecond)

	_, quit := m.Update(tea.KeyMsg{Type: tea.KeyCtrlC})
	require.NotNil(t, quit)
	assert.Equal(t, tea.QuitMsg{}, quit())

	d := findRequestDone(t, <-done)
	assert.ErrorIs(t, d.Err, inference.ErrCancelled)
}
