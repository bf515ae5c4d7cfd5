package main

// prompt.go — bubbletea prompt for the init command.

import (
	"fmt"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"

	"ck3weight/internal/config"
	"ck3weight/internal/setup"
)

// setupModel walks the setup questions one at a time. Each answer is
// applied to cfg when Enter is pressed; an answer setup.Apply rejects keeps
// the question open with the error shown below it.
type setupModel struct {
	cfg       config.Config
	questions []setup.Question
	idx       int
	input     textinput.Model
	err       error
	done      bool
}

func newSetupModel(cfg config.Config) setupModel {
	m := setupModel{cfg: cfg, questions: setup.Questions(cfg)}
	m.input = textinput.New()
	m.input.CharLimit = 512
	m.reset()
	return m
}

// reset prepares the input for the current question.
func (m *setupModel) reset() {
	m.input.Reset()
	if m.idx < len(m.questions) {
		m.input.Placeholder = m.questions[m.idx].Default
	}
	m.input.Focus()
}

func (m setupModel) Init() tea.Cmd {
	return textinput.Blink
}

func (m setupModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	if msg, ok := msg.(tea.KeyMsg); ok {
		switch msg.Type {
		case tea.KeyCtrlC, tea.KeyEsc:
			return m, tea.Quit
		case tea.KeyEnter:
			return m.submit()
		}
	}
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

// submit applies the current answer and moves to the next question.
func (m setupModel) submit() (tea.Model, tea.Cmd) {
	if len(m.questions) == 0 {
		m.done = true
		return m, tea.Quit
	}
	q := m.questions[m.idx]
	cfg, err := setup.Apply(m.cfg, map[string]string{q.Key: m.input.Value()})
	if err != nil {
		m.err = err
		return m, nil
	}
	m.cfg, m.err = cfg, nil
	m.idx++
	if m.idx == len(m.questions) {
		m.done = true
		return m, tea.Quit
	}
	m.reset()
	return m, textinput.Blink
}

func (m setupModel) View() string {
	if m.done || len(m.questions) == 0 {
		return ""
	}
	q := m.questions[m.idx]
	progress := mutedStyle.Render(fmt.Sprintf("[%d/%d]", m.idx+1, len(m.questions)))
	view := fmt.Sprintf("%s %s: %s\n", progress, headerStyle.Render(q.Prompt), m.input.View())
	if m.err != nil {
		view += errStyle.Render(m.err.Error()) + "\n"
	}
	return view
}

// promptConfig runs the setup TUI over cfg and returns the edited config.
func promptConfig(cfg config.Config) (config.Config, error) {
	result, err := tea.NewProgram(newSetupModel(cfg)).Run()
	if err != nil {
		return cfg, err
	}
	final, ok := result.(setupModel)
	if !ok || !final.done {
		return cfg, fmt.Errorf("prompt cancelled")
	}
	return final.cfg, nil
}
