package tui

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"finrag/internal/answer"
	"finrag/internal/domain"
)

// QAPort is the TUI-facing subset of the answering engine.
type QAPort interface {
	Ask(ctx context.Context, key domain.EntityKey, question string) (*answer.Answer, error)
}

// Model is the Bubble Tea model for the interactive Q&A session over a
// single entity's filing.
type Model struct {
	engine   QAPort
	key      domain.EntityKey
	input    textinput.Model
	viewport viewport.Model
	status   string
	ready    bool
}

// New creates a new TUI model bound to one entity key.
func New(engine QAPort, key domain.EntityKey) Model {
	ti := textinput.New()
	ti.Prompt = "> "
	ti.Placeholder = "Ask a question about " + key.String() + " and press Enter"
	ti.Focus()
	ti.CharLimit = 0
	vp := viewport.New(0, 0)
	return Model{engine: engine, key: key, input: ti, viewport: vp, status: "Index loaded. Ask away."}
}

// Init initializes the model (text input cursor blink).
func (m Model) Init() tea.Cmd { return textinput.Blink }

// Update handles key and window events and updates the view state.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.ready = true
		_, rh := answerBoxStyle.GetFrameSize()
		_, qh := queryBoxStyle.GetFrameSize()
		reserved := 2 + 1 + qh + 1 // header, status, query frame, spacer
		vh := msg.Height - reserved
		if vh < 3 {
			vh = 3
		}
		m.viewport.Width = max(20, msg.Width)
		m.viewport.Height = max(3, vh-rh)
		return m, nil
	case tea.KeyMsg:
		if msg.Type == tea.KeyCtrlC || msg.Type == tea.KeyCtrlD {
			return m, tea.Quit
		}
		switch msg.String() {
		case "enter":
			q := strings.TrimSpace(m.input.Value())
			if q != "" {
				ans, err := m.engine.Ask(context.Background(), m.key, q)
				if err != nil {
					m.status = "Error: " + err.Error()
					m.viewport.SetContent("")
				} else {
					m.status = fmt.Sprintf("Answered from %d source chunk(s)", len(ans.Sources))
					m.viewport.SetContent(renderAnswer(ans))
				}
				m.input.SetValue("")
				return m, nil
			}
		case "down":
			m.viewport.LineDown(1)
			return m, nil
		case "up":
			m.viewport.LineUp(1)
			return m, nil
		}
	}
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

// View renders the TUI layout.
func (m Model) View() string {
	if !m.ready {
		return "Loading..."
	}
	header := lipgloss.NewStyle().Bold(true).Render("finrag — " + m.key.String())
	body := answerBoxStyle.Render(m.viewport.View())
	input := queryBoxStyle.Render(m.input.View())
	status := lipgloss.NewStyle().Foreground(lipgloss.Color("10")).Render(m.status)
	return header + "\n" + body + "\n" + input + "\n" + status
}

func renderAnswer(ans *answer.Answer) string {
	var b strings.Builder
	b.WriteString(ans.Text)
	if len(ans.Sources) > 0 {
		b.WriteString("\n\n")
		b.WriteString(sourceStyle.Render("Sources:"))
		for _, ref := range ans.Sources {
			b.WriteString("\n")
			b.WriteString(sourceStyle.Render("  • " + ref.String()))
		}
	}
	return b.String()
}

var (
	answerBoxStyle = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
	queryBoxStyle  = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
	sourceStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
)

func max(a, b int) int {
	if a > b {
		return a
	}
	return b
}
