package tui

import (
	"fmt"
	"io"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/rs/zerolog/log"
)

// Spinner shows progress on an interactive terminal while a provider call
// runs. Pressing ctrl+c or esc calls the cancel function given to NewSpinner.
type Spinner struct {
	program *tea.Program
	out     io.Writer
	cancel  func()
	done    chan struct{}
	start   time.Time
}

type spinnerModel struct {
	spinner  spinner.Model
	text     string
	cancel   func()
	quitting bool
	finished bool
}

type stopMsg struct{}

type textMsg string

// NewSpinner returns a spinner that draws on out.
func NewSpinner(out io.Writer, cancel func()) *Spinner {
	return &Spinner{out: out, cancel: cancel, done: make(chan struct{})}
}

func newSpinnerModel(text string, cancel func()) spinnerModel {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("205"))
	return spinnerModel{spinner: s, text: text, cancel: cancel}
}

// Start begins drawing with text.
func (s *Spinner) Start(text string) {
	s.start = time.Now()
	s.program = tea.NewProgram(newSpinnerModel(text, s.cancel), tea.WithOutput(s.out))
	go func() {
		defer close(s.done)
		if _, err := s.program.Run(); err != nil {
			log.Debug().Err(err).Msg("spinner stopped")
		}
	}()
}

// SetText replaces the status text.
func (s *Spinner) SetText(text string) {
	if s.program != nil {
		s.program.Send(textMsg(text))
	}
}

// Stop clears the spinner and returns how long it ran.
func (s *Spinner) Stop() time.Duration {
	if s.program == nil {
		return 0
	}
	s.program.Send(stopMsg{})
	<-s.done
	return time.Since(s.start)
}

func (m spinnerModel) Init() tea.Cmd {
	return m.spinner.Tick
}

func (m spinnerModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "esc", "ctrl+c":
			m.quitting = true
			if m.cancel != nil {
				m.cancel()
			}
			return m, tea.Quit
		}
		return m, nil
	case stopMsg:
		m.finished = true
		return m, tea.Quit
	case textMsg:
		m.text = string(msg)
		return m, nil
	default:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}
}

func (m spinnerModel) View() string {
	if m.quitting || m.finished {
		return ""
	}
	return fmt.Sprintf("%s %s\n", m.spinner.View(), m.text)
}
