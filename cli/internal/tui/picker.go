// Package tui holds the interactive pieces of the CLI: the option picker and
// the progress spinner. Both are Bubble Tea programs and are only started
// when IsTTY reports an interactive terminal.
package tui

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/bubbles/list"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"cm/cli/internal/llm"
	"cm/cli/internal/render"
)

// ErrCanceled is returned by Pick when the user quits without choosing.
var ErrCanceled = errors.New("selection canceled")

const listHeight = 14

var (
	titleStyle        = lipgloss.NewStyle().MarginLeft(2).Bold(true)
	itemStyle         = lipgloss.NewStyle().PaddingLeft(4)
	selectedItemStyle = lipgloss.NewStyle().PaddingLeft(2).Foreground(lipgloss.Color("170"))
	paginationStyle   = list.DefaultStyles().PaginationStyle.PaddingLeft(4)
	helpStyle         = list.DefaultStyles().HelpStyle.PaddingLeft(4).PaddingBottom(1)
)

type item struct {
	index int
	title string
}

func (i item) FilterValue() string { return i.title }

type itemDelegate struct{}

func (d itemDelegate) Height() int                             { return 1 }
func (d itemDelegate) Spacing() int                            { return 0 }
func (d itemDelegate) Update(_ tea.Msg, _ *list.Model) tea.Cmd { return nil }
func (d itemDelegate) Render(w io.Writer, m list.Model, index int, listItem list.Item) {
	i, ok := listItem.(item)
	if !ok {
		return
	}
	str := fmt.Sprintf("%d. %s", i.index+1, i.title)

	fn := itemStyle.Render
	if index == m.Index() {
		fn = func(s ...string) string {
			return selectedItemStyle.Render("> " + strings.Join(s, " "))
		}
	}
	fmt.Fprint(w, fn(str))
}

type model struct {
	list     list.Model
	results  []llm.Result
	width    int
	choice   int
	quitting bool
}

func newModel(results []llm.Result, width int) model {
	items := make([]list.Item, len(results))
	for i, r := range results {
		items[i] = item{index: i, title: r.Message.Subject}
	}
	if width <= 0 {
		width = render.DefaultWidth
	}
	l := list.New(items, itemDelegate{}, width, listHeight)
	l.Title = "Pick a commit message (enter copies, q cancels)"
	l.SetShowStatusBar(false)
	l.SetFilteringEnabled(false)
	l.Styles.Title = titleStyle
	l.Styles.PaginationStyle = paginationStyle
	l.Styles.HelpStyle = helpStyle
	return model{list: l, results: results, width: width, choice: -1}
}

func (m model) Init() tea.Cmd {
	return nil
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.list.SetWidth(msg.Width)
		return m, nil

	case tea.KeyMsg:
		switch keypress := msg.String(); keypress {
		case "q", "esc", "ctrl+c":
			m.quitting = true
			return m, tea.Quit

		case "enter":
			if i, ok := m.list.SelectedItem().(item); ok {
				m.choice = i.index
			}
			return m, tea.Quit

		case "1", "2", "3", "4":
			n := int(keypress[0] - '1')
			if n < len(m.results) {
				m.choice = n
				return m, tea.Quit
			}
			return m, nil
		}
	}

	var cmd tea.Cmd
	m.list, cmd = m.list.Update(msg)
	return m, cmd
}

func (m model) View() string {
	if m.quitting || m.choice >= 0 {
		return ""
	}
	preview := ""
	if i, ok := m.list.SelectedItem().(item); ok {
		preview = render.Box(m.results[i.index].Message, m.width)
	}
	return fmt.Sprintf("%s\n\n%s", preview, m.list.View())
}

// Pick shows results in an interactive list and returns the index the user
// chose. Quitting returns ErrCanceled.
func Pick(results []llm.Result, width int) (int, error) {
	if len(results) == 0 {
		return -1, errors.New("tui: nothing to pick")
	}
	p := tea.NewProgram(newModel(results, width), tea.WithAltScreen())
	final, err := p.Run()
	if err != nil {
		return -1, fmt.Errorf("run picker: %w", err)
	}
	m, ok := final.(model)
	if !ok || m.choice < 0 {
		return -1, ErrCanceled
	}
	return m.choice, nil
}
