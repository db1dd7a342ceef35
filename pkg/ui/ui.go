package ui

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textarea"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"
	"github.com/go-go-golems/xllama/pkg/chat"
	"github.com/go-go-golems/xllama/pkg/conversation"
	"github.com/go-go-golems/xllama/pkg/inference"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

// states:
// - user input
// - stream completion
// - showing error

type State string

const (
	StateUserInput        State = "user_input"
	StateStreamCompletion State = "stream_completion"
	StateError            State = "error"
)

type model struct {
	ctx     context.Context
	session *chat.Session

	viewport viewport.Model
	textArea textarea.Model
	help     help.Model
	spinner  spinner.Model

	renderer      *glamour.TermRenderer
	glamourStyle  string
	rendererWidth int

	err    error
	status string
	keyMap KeyMap

	style  *Style
	width  int
	height int

	currentResponse        string
	awaitingFirstFragment  bool
	previousResponseHeight int
	sessionState           string

	state        State
	quitReceived bool
}

type ModelOption func(*model)

func WithContext(ctx context.Context) ModelOption {
	return func(m *model) {
		m.ctx = ctx
	}
}

// WithGlamourStyle selects the markdown style for assistant turns, "auto"
// picks dark or light from the terminal.
func WithGlamourStyle(style string) ModelOption {
	return func(m *model) {
		m.glamourStyle = style
	}
}

func InitialModel(session *chat.Session, options ...ModelOption) model {
	ret := model{
		ctx:          context.Background(),
		session:      session,
		style:        DefaultStyles(),
		keyMap:       DefaultKeyMap,
		viewport:     viewport.New(0, 0),
		help:         help.New(),
		glamourStyle: "auto",
		sessionState: session.State().String(),
	}
	for _, o := range options {
		o(&ret)
	}

	ret.spinner = spinner.New(
		spinner.WithSpinner(spinner.Dot),
		spinner.WithStyle(lipgloss.NewStyle().Foreground(lipgloss.Color("212"))),
	)

	ret.textArea = textarea.New()
	ret.textArea.Placeholder = "Type a message..."
	ret.textArea.ShowLineNumbers = false
	ret.textArea.SetHeight(3)
	ret.textArea.Focus()
	ret.state = StateUserInput

	ret.viewport.SetContent(ret.messageView())
	ret.viewport.YPosition = 0
	ret.viewport.GotoBottom()

	ret.updateKeyBindings()

	return ret
}

func (m model) Init() tea.Cmd {
	return textarea.Blink
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd
	var cmd tea.Cmd

	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch {
		case key.Matches(msg, m.keyMap.Quit):
			if m.state == StateStreamCompletion && !m.quitReceived {
				m.quitReceived = true
				_ = m.session.Cancel()
			}
			return m, tea.Quit

		case key.Matches(msg, m.keyMap.SubmitMessage):
			if m.state == StateUserInput {
				cmds = append(cmds, m.submit())
			}

		case key.Matches(msg, m.keyMap.CancelCompletion):
			if m.state == StateStreamCompletion {
				if err := m.session.Cancel(); err != nil {
					log.Debug().Err(err).Msg("nothing to cancel")
				}
			}

		case key.Matches(msg, m.keyMap.Retry):
			if m.canRetry() {
				cmds = append(cmds, m.retry())
			}

		case key.Matches(msg, m.keyMap.DismissError):
			if m.state == StateError {
				m.err = nil
				m.state = StateUserInput
				m.textArea.Focus()
				m.updateKeyBindings()
				m.recomputeSize()
			}

		case key.Matches(msg, m.keyMap.ClearHistory):
			if m.state != StateStreamCompletion {
				if err := m.session.Reset(m.ctx); err != nil {
					return m, m.setError(err)
				}
				m.err = nil
				m.status = ""
				m.state = StateUserInput
				m.textArea.Focus()
				m.updateKeyBindings()
				m.recomputeSize()
			}

		case key.Matches(msg, m.keyMap.ScrollUp):
			m.viewport.HalfViewUp()

		case key.Matches(msg, m.keyMap.ScrollDown):
			m.viewport.HalfViewDown()

		case key.Matches(msg, m.keyMap.Help):
			m.help.ShowAll = !m.help.ShowAll
			m.recomputeSize()

		default:
			if m.state == StateUserInput {
				m.textArea, cmd = m.textArea.Update(msg)
				cmds = append(cmds, cmd)
			}
		}
		return m, tea.Batch(cmds...)

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.recomputeSize()

	case spinner.TickMsg:
		if !m.awaitingFirstFragment {
			return m, nil
		}
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case StreamStartMsg:
		cmds = append(cmds, refresh(true))

	case StreamCompletionMsg:
		if m.state != StateStreamCompletion {
			return m, nil
		}
		m.awaitingFirstFragment = false
		m.currentResponse = msg.Completion
		newHeight := lipgloss.Height(m.textAreaView())
		if newHeight != m.previousResponseHeight {
			m.recomputeSize()
			m.previousResponseHeight = newHeight
		}

	case StreamDoneMsg, HistoryClearedMsg:
		cmds = append(cmds, refresh(true))

	case StreamCompletionError:
		log.Debug().Err(msg.Err).Str("inference_id", msg.InferenceID).Msg("completion failed")

	case StreamInterruptMsg:
		log.Debug().Str("inference_id", msg.InferenceID).Int("partial_length", len(msg.Partial)).Msg("completion interrupted")

	case SessionStateMsg:
		m.sessionState = msg.To

	case requestDoneMsg:
		cmds = append(cmds, m.finishCompletion(msg))

	case refreshMessageMsg:
		m.viewport.SetContent(m.messageView())
		if msg.GoToBottom {
			m.viewport.GotoBottom()
		}

	default:
	}

	m.viewport, cmd = m.viewport.Update(msg)
	cmds = append(cmds, cmd)

	return m, tea.Batch(cmds...)
}

func refresh(goToBottom bool) tea.Cmd {
	return func() tea.Msg {
		return refreshMessageMsg{GoToBottom: goToBottom}
	}
}

func (m *model) updateKeyBindings() {
	m.keyMap.SubmitMessage.SetEnabled(m.state == StateUserInput)
	m.keyMap.CancelCompletion.SetEnabled(m.state == StateStreamCompletion)
	m.keyMap.Retry.SetEnabled(m.canRetry())
	m.keyMap.DismissError.SetEnabled(m.state == StateError)
	m.keyMap.ClearHistory.SetEnabled(m.state != StateStreamCompletion)
}

// canRetry is true when the conversation ends with an unanswered user turn.
func (m model) canRetry() bool {
	if m.state == StateStreamCompletion {
		return false
	}
	last, ok := m.session.Store().Last()
	return ok && last.Role == conversation.RoleUser
}

func (m *model) recomputeSize() {
	headerHeight := lipgloss.Height(m.headerView())
	textAreaHeight := lipgloss.Height(m.textAreaView())
	statusHeight := lipgloss.Height(m.statusView())
	helpViewHeight := lipgloss.Height(m.help.View(m.keyMap))

	m.previousResponseHeight = textAreaHeight
	newHeight := m.height - textAreaHeight - headerHeight - statusHeight - helpViewHeight
	if newHeight < 0 {
		newHeight = 0
	}
	m.viewport.Width = m.width
	m.viewport.Height = newHeight
	m.viewport.YPosition = headerHeight + 1

	h, _ := m.style.FocusedMessage.GetFrameSize()
	m.textArea.SetWidth(m.width - h)
	m.help.Width = m.width

	m.updateRenderer()

	m.viewport.SetContent(m.messageView())
	m.viewport.GotoBottom()
}

func (m *model) updateRenderer() {
	width := m.width - m.style.AssistantMessage.GetHorizontalFrameSize()
	if width <= 0 || width == m.rendererWidth {
		return
	}

	styleOption := glamour.WithAutoStyle()
	if m.glamourStyle != "" && m.glamourStyle != "auto" {
		styleOption = glamour.WithStandardStyle(m.glamourStyle)
	}
	r, err := glamour.NewTermRenderer(styleOption, glamour.WithWordWrap(width))
	if err != nil {
		log.Warn().Err(err).Msg("could not create markdown renderer")
		m.renderer = nil
		return
	}
	m.renderer = r
	m.rendererWidth = width
}

func (m model) renderMarkdown(s string) string {
	if m.renderer == nil {
		return wrapWords(s, m.width-m.style.AssistantMessage.GetHorizontalFrameSize())
	}
	out, err := m.renderer.Render(s)
	if err != nil {
		log.Warn().Err(err).Msg("could not render markdown")
		return wrapWords(s, m.width-m.style.AssistantMessage.GetHorizontalFrameSize())
	}
	return strings.Trim(out, "\n")
}

func (m model) headerView() string {
	selected := m.session.Model()
	params := m.session.Params()
	return m.style.Header.Render(fmt.Sprintf("xllama | %s | temperature %.2f | top_p %.2f | max_length %d",
		selected.Name, params.Temperature, params.TopP, params.MaxLength))
}

func (m model) messageView() string {
	ret := ""

	for _, t := range m.session.Store().All() {
		var v string
		switch t.Role {
		case conversation.RoleUser:
			w := m.style.UserMessage.GetHorizontalFrameSize()
			v = m.style.UserMessage.Render(wrapWords(t.Role.Label()+": "+t.Content, m.width-w))
		default:
			v = m.style.AssistantMessage.Render(t.Role.Label() + ":\n" + m.renderMarkdown(t.Content))
		}
		ret += v
		ret += "\n\n"
	}

	return ret
}

func (m model) textAreaView() string {
	if m.err != nil {
		w := m.style.Error.GetHorizontalFrameSize()
		v := wrapWords("Error: "+m.err.Error(), m.width-w)
		return m.style.Error.Render(v)
	}

	if m.state == StateStreamCompletion {
		if m.awaitingFirstFragment {
			return m.style.StreamingMessage.Render(m.spinner.View() + " Thinking...")
		}
		w := m.style.StreamingMessage.GetHorizontalFrameSize()
		return m.style.StreamingMessage.Render(wrapWords(m.currentResponse, m.width-w))
	}

	return m.style.FocusedMessage.Render(m.textArea.View())
}

func (m model) statusView() string {
	s := m.sessionState
	if m.status != "" {
		s += " | " + m.status
	}
	return m.style.Status.Render(s)
}

func (m model) View() string {
	return m.headerView() + "\n" +
		m.viewport.View() + "\n" +
		m.textAreaView() + "\n" +
		m.statusView() + "\n" +
		m.help.View(m.keyMap)
}

func (m *model) startRequest() {
	m.state = StateStreamCompletion
	m.err = nil
	m.status = ""
	m.currentResponse = ""
	m.awaitingFirstFragment = true
	m.previousResponseHeight = 0
	m.textArea.Blur()
	m.updateKeyBindings()
	m.recomputeSize()
}

func (m *model) submit() tea.Cmd {
	text := strings.TrimSpace(m.textArea.Value())
	if text == "" {
		return nil
	}
	m.textArea.Reset()
	m.startRequest()

	session, ctx := m.session, m.ctx
	return tea.Batch(
		m.spinner.Tick,
		func() tea.Msg {
			completion, err := session.Submit(ctx, text, nil)
			return requestDoneMsg{Completion: completion, Err: err}
		},
	)
}

func (m *model) retry() tea.Cmd {
	m.startRequest()

	session, ctx := m.session, m.ctx
	return tea.Batch(
		m.spinner.Tick,
		func() tea.Msg {
			completion, err := session.Retry(ctx, nil)
			return requestDoneMsg{Completion: completion, Err: err}
		},
	)
}

func (m *model) finishCompletion(msg requestDoneMsg) tea.Cmd {
	m.currentResponse = ""
	m.awaitingFirstFragment = false
	m.previousResponseHeight = 0

	switch {
	case msg.Err == nil:
		m.state = StateUserInput
	case errors.Is(msg.Err, inference.ErrCancelled):
		m.state = StateUserInput
		m.status = "cancelled, ctrl+r to retry"
	default:
		m.err = msg.Err
		m.state = StateError
	}

	if m.state == StateUserInput {
		m.textArea.Focus()
	}
	m.updateKeyBindings()
	m.recomputeSize()

	if m.quitReceived {
		return tea.Quit
	}

	return refresh(true)
}

func (m *model) setError(err error) tea.Cmd {
	m.err = err
	m.state = StateError
	m.updateKeyBindings()
	m.recomputeSize()
	return nil
}
