package cmd

import (
	"errors"
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
)

var errCancelled = errors.New("selection cancelled")

// picker is a bubbletea model listing items under a cursor. In multi mode
// space toggles items and enter accepts the toggled set; otherwise enter
// accepts the item under the cursor. detail, when set, renders a preview
// of the item under the cursor.
type picker struct {
	title  string
	items  []string
	detail func(i int) string
	multi  bool

	cursor    int
	chosen    map[int]bool
	done      bool
	cancelled bool
}

func newPicker(title string, items []string, multi bool) picker {
	return picker{title: title, items: items, multi: multi, chosen: map[int]bool{}}
}

func (m picker) Init() tea.Cmd { return nil }

func (m picker) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	key, ok := msg.(tea.KeyMsg)
	if !ok {
		return m, nil
	}
	switch key.String() {
	case "ctrl+c", "esc", "q":
		m.cancelled = true
		return m, tea.Quit
	case "up", "k":
		if m.cursor > 0 {
			m.cursor--
		}
	case "down", "j":
		if m.cursor < len(m.items)-1 {
			m.cursor++
		}
	case " ", "space", "x":
		if m.multi {
			m.chosen[m.cursor] = !m.chosen[m.cursor]
		}
	case "a":
		if m.multi {
			all := len(m.selection()) < len(m.items)
			for i := range m.items {
				m.chosen[i] = all
			}
		}
	case "enter":
		if !m.multi {
			m.chosen = map[int]bool{m.cursor: true}
		}
		m.done = true
		return m, tea.Quit
	}
	return m, nil
}

// selection returns the accepted indexes in ascending order.
func (m picker) selection() []int {
	var out []int
	for i := range m.items {
		if m.chosen[i] {
			out = append(out, i)
		}
	}
	return out
}

func (m picker) View() string {
	if m.done || m.cancelled {
		return ""
	}
	var b strings.Builder
	b.WriteString(m.title + "\n\n")
	for i, item := range m.items {
		cursor := " "
		if i == m.cursor {
			cursor = ">"
		}
		if m.multi {
			box := "[ ]"
			if m.chosen[i] {
				box = "[x]"
			}
			fmt.Fprintf(&b, "%s %s %s\n", cursor, box, item)
		} else {
			fmt.Fprintf(&b, "%s %s\n", cursor, item)
		}
	}
	if m.detail != nil && len(m.items) > 0 {
		b.WriteString("\n" + m.detail(m.cursor))
	}
	if m.multi {
		b.WriteString("\nspace: toggle  a: all  enter: accept  q: quit\n")
	} else {
		b.WriteString("\nenter: accept  q: quit\n")
	}
	return b.String()
}

// pick runs m on the terminal and returns the accepted indexes.
func pick(m picker) ([]int, error) {
	result, err := tea.NewProgram(m).Run()
	if err != nil {
		return nil, fmt.Errorf("run picker: %w", err)
	}
	final, ok := result.(picker)
	if !ok || !final.done {
		return nil, errCancelled
	}
	return final.selection(), nil
}
