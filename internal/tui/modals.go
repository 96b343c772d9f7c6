package tui

import (
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

type modalKind int

const (
	modalConfirm modalKind = iota
	modalInput
)

// modal is a blocking prompt layered over the active view. Confirm modals
// answer y/N; input modals carry a textinput. onAccept produces the command
// to run when the user accepts.
type modal struct {
	kind     modalKind
	prompt   string
	input    textinput.Model
	onAccept func(value string) tea.Cmd
}

func newConfirmModal(prompt string, onAccept func() tea.Cmd) *modal {
	return &modal{
		kind:     modalConfirm,
		prompt:   prompt,
		onAccept: func(string) tea.Cmd { return onAccept() },
	}
}

func newInputModal(prompt, initial string, onAccept func(value string) tea.Cmd) *modal {
	in := textinput.New()
	in.SetValue(initial)
	in.CharLimit = 120
	in.Focus()
	return &modal{kind: modalInput, prompt: prompt, input: in, onAccept: onAccept}
}

func (m *Model) updateModal(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	md := m.modal
	switch md.kind {
	case modalConfirm:
		switch msg.String() {
		case "y", "Y":
			m.modal = nil
			return m, md.onAccept("")
		case "n", "N", "esc", "enter":
			m.modal = nil
			return m, nil
		}
		return m, nil
	case modalInput:
		switch msg.String() {
		case "enter":
			value := md.input.Value()
			m.modal = nil
			if value == "" {
				return m, nil
			}
			return m, md.onAccept(value)
		case "esc":
			m.modal = nil
			return m, nil
		}
		var cmd tea.Cmd
		md.input, cmd = md.input.Update(msg)
		return m, cmd
	}
	return m, nil
}

func (m *Model) renderModal() string {
	md := m.modal
	var body string
	switch md.kind {
	case modalConfirm:
		body = md.prompt + "\n\n" + m.th.label.Render("y confirm • n cancel")
	case modalInput:
		body = md.prompt + "\n\n" + md.input.View() + "\n" + m.th.label.Render("enter accept • esc cancel")
	}
	box := m.th.border.Render(body)
	return lipgloss.Place(m.w, m.h, lipgloss.Center, lipgloss.Center, box)
}
