package main

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/daimatz/jclass/pkg/inspect"
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FAFAFA")).
			Background(lipgloss.Color("#7D56F4")).
			Padding(0, 1)

	selectedStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FAFAFA")).
			Background(lipgloss.Color("#7D56F4"))

	detailStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#90EE90"))

	helpStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#666666"))
)

type memberEntry struct {
	field   bool
	summary inspect.MemberSummary
}

func (e memberEntry) line(st inspect.Styles) string {
	if e.field {
		return fmt.Sprintf("%s %s", st.Type.Render(e.summary.Type), st.Name.Render(e.summary.Name))
	}
	return inspect.MethodLine(e.summary, st)
}

type modelState int

const (
	stateBrowse modelState = iota
	stateDetail
)

type interactiveModel struct {
	class    *inspect.Summary
	members  []memberEntry
	visible  []int
	filter   textinput.Model
	selected int
	state    modelState
	styles   inspect.Styles
}

func newInteractiveModel(s *inspect.Summary) *interactiveModel {
	m := &interactiveModel{class: s, styles: inspect.ColorStyles(), state: stateBrowse}
	for _, f := range s.Fields {
		m.members = append(m.members, memberEntry{field: true, summary: f})
	}
	for _, mt := range s.Methods {
		m.members = append(m.members, memberEntry{summary: mt})
	}

	ti := textinput.New()
	ti.Placeholder = "filter by name or descriptor"
	ti.Prompt = "/ "
	ti.Width = 40
	ti.Focus()
	m.filter = ti
	m.applyFilter()
	return m
}

func (m *interactiveModel) applyFilter() {
	q := strings.ToLower(m.filter.Value())
	m.visible = m.visible[:0]
	for i, e := range m.members {
		if q == "" || strings.Contains(strings.ToLower(e.summary.Name+e.summary.Descriptor), q) {
			m.visible = append(m.visible, i)
		}
	}
	if m.selected >= len(m.visible) {
		m.selected = max(len(m.visible)-1, 0)
	}
}

func (m *interactiveModel) Init() tea.Cmd {
	return textinput.Blink
}

func (m *interactiveModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	if msg, ok := msg.(tea.KeyMsg); ok {
		switch msg.String() {
		case "ctrl+c":
			return m, tea.Quit

		case "up":
			if m.state == stateBrowse && m.selected > 0 {
				m.selected--
			}
			return m, nil

		case "down":
			if m.state == stateBrowse && m.selected < len(m.visible)-1 {
				m.selected++
			}
			return m, nil

		case "enter":
			switch m.state {
			case stateBrowse:
				if len(m.visible) > 0 {
					m.state = stateDetail
				}
			case stateDetail:
				m.state = stateBrowse
			}
			return m, nil

		case "esc":
			if m.state == stateDetail {
				m.state = stateBrowse
				return m, nil
			}
			return m, tea.Quit
		}
	}

	if m.state != stateBrowse {
		return m, nil
	}
	var cmd tea.Cmd
	m.filter, cmd = m.filter.Update(msg)
	m.applyFilter()
	return m, cmd
}

func (m *interactiveModel) View() string {
	var b strings.Builder
	b.WriteString(titleStyle.Render(fmt.Sprintf("%s  %s", m.class.Name, m.class.Version)))
	b.WriteString("\n\n")

	switch m.state {
	case stateBrowse:
		b.WriteString(m.filter.View())
		b.WriteString("\n\n")
		if len(m.visible) == 0 {
			b.WriteString(helpStyle.Render("no matching members"))
			b.WriteString("\n")
		}
		for i, idx := range m.visible {
			line := m.members[idx].line(m.styles)
			if i == m.selected {
				b.WriteString(selectedStyle.Render("> " + line))
			} else {
				b.WriteString("  " + line)
			}
			b.WriteString("\n")
		}
		b.WriteString("\n")
		b.WriteString(helpStyle.Render("type to filter • ↑/↓ select • enter details • esc quit"))

	case stateDetail:
		e := m.members[m.visible[m.selected]]
		b.WriteString(e.line(m.styles))
		b.WriteString("\n\n")
		for _, d := range memberDetails(e.summary) {
			b.WriteString(detailStyle.Render(d))
			b.WriteString("\n")
		}
		b.WriteString("\n")
		b.WriteString(helpStyle.Render("enter/esc back • ctrl+c quit"))
	}
	return b.String()
}

func memberDetails(s inspect.MemberSummary) []string {
	d := []string{
		"access:     " + s.Access,
		"descriptor: " + s.Descriptor,
	}
	if s.Signature != "" {
		d = append(d, "signature:  "+s.Signature)
	}
	if len(s.Parameters) > 0 {
		d = append(d, "parameters: "+strings.Join(s.Parameters, ", "))
	}
	if len(s.Slots) > 0 {
		d = append(d, fmt.Sprintf("slots:      %v", s.Slots))
	}
	if len(s.Exceptions) > 0 {
		d = append(d, "throws:     "+strings.Join(s.Exceptions, ", "))
	}
	if c := s.Code; c != nil {
		d = append(d, fmt.Sprintf("code:       %d bytes, max_stack=%d, max_locals=%d, %d handlers, %d line entries, %d frames",
			c.Length, c.MaxStack, c.MaxLocals, c.Handlers, c.Lines, c.StackFrames))
	}
	if len(s.Attributes) > 0 {
		d = append(d, "attributes: "+strings.Join(s.Attributes, ", "))
	}
	return d
}

func runInteractive(s *inspect.Summary) error {
	p := tea.NewProgram(newInteractiveModel(s), tea.WithAltScreen())
	_, err := p.Run()
	return err
}
