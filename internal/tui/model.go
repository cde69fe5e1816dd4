package tui

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/ryan258/insight-capsule/internal/domain"
	"github.com/ryan258/insight-capsule/internal/search"
)

// SearchPort is the TUI-facing subset of the search synthesizer.
type SearchPort interface {
	Answer(ctx context.Context, query string) (*search.Answer, error)
}

// Library lists stored insights for browsing.
type Library interface {
	ListRecent(n int) ([]domain.Insight, error)
}

// Model is the Bubble Tea model for the insight search TUI.
type Model struct {
	searcher SearchPort
	library  Library
	input    textinput.Model
	viewport viewport.Model
	answer   *search.Answer
	recent   []domain.Insight
	status   string
	ready    bool
}

// New creates a new TUI model instance.
func New(searcher SearchPort, library Library) Model {
	ti := textinput.New()
	ti.Prompt = "> "
	ti.Placeholder = "Ask your insight library and press Enter"
	ti.Focus()
	ti.CharLimit = 0
	vp := viewport.New(0, 0)
	m := Model{searcher: searcher, library: library, input: ti, viewport: vp, status: "Ready."}
	if recent, err := library.ListRecent(5); err == nil {
		m.recent = recent
	}
	return m
}

// Init initializes the model (text input cursor blink).
func (m Model) Init() tea.Cmd { return textinput.Blink }

// Update handles key and window events and updates the view state.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.ready = true
		// account for frames around the answer and query boxes
		_, rh := answerBoxStyle.GetFrameSize()
		_, qh := queryBoxStyle.GetFrameSize()
		totalHeaderLines := 2 // header + recent line
		totalFooterLines := 1 // status
		reserved := totalHeaderLines + totalFooterLines + qh + 1 // 1 spacer
		vh := msg.Height - reserved
		if vh < 3 {
			vh = 3
		}
		m.viewport.Width = max(20, msg.Width)
		m.viewport.Height = max(3, vh-rh)
		m.viewport.SetContent(m.renderAnswer())
		return m, nil
	case tea.KeyMsg:
		// Global quits
		if msg.Type == tea.KeyCtrlC || msg.Type == tea.KeyCtrlD {
			return m, tea.Quit
		}
		switch msg.String() {
		case "enter":
			q := strings.TrimSpace(m.input.Value())
			if q != "" {
				ans, err := m.searcher.Answer(context.Background(), q)
				if err != nil {
					m.status = "Error: " + err.Error()
					m.answer = nil
				} else {
					m.status = fmt.Sprintf("Answer for %q", q)
					m.answer = ans
				}
				m.viewport.SetContent(m.renderAnswer())
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

// View renders the TUI layout and current answer.
func (m Model) View() string {
	if !m.ready {
		return "Loading..."
	}
	header := lipgloss.NewStyle().Bold(true).Render("Insight Capsule")
	recent := lipgloss.NewStyle().Foreground(lipgloss.Color("8")).Render(m.renderRecent())
	input := queryBoxStyle.Render(m.input.View())
	status := lipgloss.NewStyle().Foreground(lipgloss.Color("10")).Render(m.status)
	answer := answerBoxStyle.Render(m.viewport.View())
	return header + "\n" + recent + "\n" + answer + "\n" + input + "\n" + status
}

func (m Model) renderRecent() string {
	if len(m.recent) == 0 {
		return "No insights captured yet."
	}
	titles := make([]string, 0, len(m.recent))
	for _, ins := range m.recent {
		titles = append(titles, ins.Title)
	}
	return "Recent: " + strings.Join(titles, " · ")
}

func (m Model) renderAnswer() string {
	if m.answer == nil {
		return "Ask a question about your captured insights."
	}
	body := m.answer.Text
	if len(m.answer.CitedInsightIDs) > 0 {
		cites := make([]string, 0, len(m.answer.CitedInsightIDs))
		for _, id := range m.answer.CitedInsightIDs {
			cites = append(cites, citeStyle.Render(id))
		}
		body += "\n\nSources: " + strings.Join(cites, ", ")
	}
	return body
}

var (
	answerBoxStyle = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
	queryBoxStyle  = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
	citeStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("11")).Bold(true)
)

func max(a, b int) int {
	if a > b {
		return a
	}
	return b
}
