// Package tui is a terminal chat client for a tenant's knowledge base.
package tui

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"kbgate/internal/engine"
)

// Answerer is the TUI-facing subset of the answer engine.
type Answerer interface {
	Answer(ctx context.Context, tenantID int64, userID, message string) (engine.Answer, error)
}

type chatLine struct {
	speaker string
	text    string
	sources []string
}

// answerMsg carries a completed generation back into the update loop.
type answerMsg struct {
	answer engine.Answer
	err    error
}

// Model is the Bubble Tea model for the chat client.
type Model struct {
	engine   Answerer
	tenantID int64
	userID   string

	input    textinput.Model
	viewport viewport.Model
	lines    []chatLine
	status   string
	waiting  bool
	ready    bool
}

// New creates a chat model bound to one tenant.
func New(answerer Answerer, tenantID int64, userID string) Model {
	ti := textinput.New()
	ti.Prompt = "> "
	ti.Placeholder = "Ask a question and press Enter"
	ti.Focus()
	ti.CharLimit = 0
	vp := viewport.New(0, 0)
	return Model{
		engine:   answerer,
		tenantID: tenantID,
		userID:   userID,
		input:    ti,
		viewport: vp,
		status:   "Connected. Type to ask.",
	}
}

// Init initializes the model (text input cursor blink).
func (m Model) Init() tea.Cmd { return textinput.Blink }

// Update handles key, window, and answer events.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.ready = true
		_, ch := chatBoxStyle.GetFrameSize()
		_, ih := inputBoxStyle.GetFrameSize()
		reserved := 2 + ih + 1 // header, input frame, status
		vh := msg.Height - reserved - ch
		if vh < 3 {
			vh = 3
		}
		m.viewport.Width = maxInt(20, msg.Width)
		m.viewport.Height = vh
		m.viewport.SetContent(m.renderChat())
		return m, nil

	case answerMsg:
		m.waiting = false
		if msg.err != nil {
			m.status = "Error: " + msg.err.Error()
		} else {
			m.lines = append(m.lines, chatLine{
				speaker: "assistant",
				text:    msg.answer.Text,
				sources: msg.answer.Sources,
			})
			m.status = "Ready."
		}
		m.viewport.SetContent(m.renderChat())
		m.viewport.GotoBottom()
		return m, nil

	case tea.KeyMsg:
		if msg.Type == tea.KeyCtrlC || msg.Type == tea.KeyCtrlD {
			return m, tea.Quit
		}
		if msg.String() == "enter" && !m.waiting {
			question := strings.TrimSpace(m.input.Value())
			if question != "" {
				m.lines = append(m.lines, chatLine{speaker: "you", text: question})
				m.input.SetValue("")
				m.waiting = true
				m.status = "Thinking..."
				m.viewport.SetContent(m.renderChat())
				m.viewport.GotoBottom()
				return m, m.ask(question)
			}
		}
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

// ask runs the engine off the update loop.
func (m Model) ask(question string) tea.Cmd {
	return func() tea.Msg {
		answer, err := m.engine.Answer(context.Background(), m.tenantID, m.userID, question)
		return answerMsg{answer: answer, err: err}
	}
}

// View renders the chat layout.
func (m Model) View() string {
	if !m.ready {
		return "Loading..."
	}
	header := headerStyle.Render(fmt.Sprintf("Knowledge Base Chat  (tenant %d)", m.tenantID))
	chat := chatBoxStyle.Render(m.viewport.View())
	input := inputBoxStyle.Render(m.input.View())
	status := statusStyle.Render(m.status)
	return header + "\n" + chat + "\n" + input + "\n" + status
}

func (m Model) renderChat() string {
	if len(m.lines) == 0 {
		return "No messages yet."
	}

	var b strings.Builder
	for i, line := range m.lines {
		if i > 0 {
			b.WriteString("\n\n")
		}
		label := youStyle.Render("you")
		if line.speaker == "assistant" {
			label = assistantStyle.Render("assistant")
		}
		b.WriteString(label + ": " + line.text)
		if len(line.sources) > 0 {
			b.WriteString("\n" + sourceStyle.Render("sources: "+strings.Join(line.sources, ", ")))
		}
	}
	return b.String()
}

var (
	headerStyle    = lipgloss.NewStyle().Bold(true)
	chatBoxStyle   = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
	inputBoxStyle  = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
	statusStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	youStyle       = lipgloss.NewStyle().Foreground(lipgloss.Color("12")).Bold(true)
	assistantStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("11")).Bold(true)
	sourceStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
)

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
