// Package prompt asks the maintainer questions during a release: yes/no
// confirmations and free-text answers with a default.
package prompt

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// ErrCancelled is returned when the maintainer cancels a question.
var ErrCancelled = errors.New("prompt cancelled")

var (
	questionStyle = lipgloss.NewStyle().Bold(true)
	hintStyle     = lipgloss.NewStyle().Faint(true)
	warnStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("214")).Bold(true)
	errorStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("196")).Bold(true)
	okStyle       = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
)

// Terminal asks questions interactively.
type Terminal struct {
	in  io.Reader
	out io.Writer
}

// NewTerminal creates a Terminal on stdin and stderr.
func NewTerminal() *Terminal {
	return &Terminal{in: os.Stdin, out: os.Stderr}
}

func (t *Terminal) run(m tea.Model) (tea.Model, error) {
	p := tea.NewProgram(m, tea.WithInput(t.in), tea.WithOutput(t.out))
	return p.Run()
}

// Confirm asks a yes/no question. Anything but an explicit yes is no.
func (t *Terminal) Confirm(message string) (bool, error) {
	final, err := t.run(confirmModel{question: message})
	if err != nil {
		return false, fmt.Errorf("prompt: %w", err)
	}
	return final.(confirmModel).yes, nil
}

// Ask asks for free text. An empty answer selects def.
func (t *Terminal) Ask(message, def string) (string, error) {
	final, err := t.run(newAskModel(message, def))
	if err != nil {
		return "", fmt.Errorf("prompt: %w", err)
	}
	m := final.(askModel)
	if m.cancelled {
		return "", ErrCancelled
	}
	return m.answer(), nil
}

type confirmModel struct {
	question string
	yes      bool
	done     bool
}

func (m confirmModel) Init() tea.Cmd { return nil }

func (m confirmModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	key, ok := msg.(tea.KeyMsg)
	if !ok {
		return m, nil
	}
	switch key.String() {
	case "y", "Y":
		m.yes, m.done = true, true
	case "n", "N", "enter", "esc", "ctrl+c":
		m.yes, m.done = false, true
	default:
		return m, nil
	}
	return m, tea.Quit
}

func (m confirmModel) View() string {
	if m.done {
		answer := "no"
		if m.yes {
			answer = "yes"
		}
		return questionStyle.Render(m.question) + answer + "\n"
	}
	return questionStyle.Render(m.question) + hintStyle.Render("[y/N] ")
}

type askModel struct {
	question  string
	def       string
	input     textinput.Model
	done      bool
	cancelled bool
}

func newAskModel(question, def string) askModel {
	ti := textinput.New()
	ti.Placeholder = def
	ti.Prompt = ""
	ti.Focus()
	return askModel{question: question, def: def, input: ti}
}

func (m askModel) answer() string {
	if v := m.input.Value(); v != "" {
		return v
	}
	return m.def
}

func (m askModel) Init() tea.Cmd { return textinput.Blink }

func (m askModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	if key, ok := msg.(tea.KeyMsg); ok {
		switch key.Type {
		case tea.KeyEnter:
			m.done = true
			return m, tea.Quit
		case tea.KeyEsc, tea.KeyCtrlC:
			m.done, m.cancelled = true, true
			return m, tea.Quit
		}
	}
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m askModel) View() string {
	if m.done {
		if m.cancelled {
			return questionStyle.Render(m.question) + hintStyle.Render("cancelled") + "\n"
		}
		return questionStyle.Render(m.question) + m.answer() + "\n"
	}
	return questionStyle.Render(m.question) + m.input.View()
}

// Static answers without asking: every confirmation with Yes and every
// free-text question with its default.
type Static struct {
	Yes bool
}

// Confirm returns s.Yes.
func (s Static) Confirm(string) (bool, error) { return s.Yes, nil }

// Ask returns def.
func (s Static) Ask(_, def string) (string, error) { return def, nil }

// Warn prints a highlighted warning line.
func Warn(w io.Writer, msg string) {
	fmt.Fprintln(w, warnStyle.Render("warning:")+" "+msg)
}

// Fail prints a highlighted error line.
func Fail(w io.Writer, msg string) {
	fmt.Fprintln(w, errorStyle.Render("error:")+" "+msg)
}

// Done prints a success line.
func Done(w io.Writer, msg string) {
	fmt.Fprintln(w, okStyle.Render("✓")+" "+msg)
}
