package main

import (
	"os"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/huh"
	"github.com/pkg/errors"
	"golang.org/x/term"
)

var errAborted = errors.New("aborted by operator")

// Prompter asks the operator questions on the terminal.
type Prompter interface {
	Confirm(title, description string) (bool, error)
	Select(title string, options []string) (string, error)
}

var runFormFunc = func(form *huh.Form) error { return form.Run() } // mockable

// isInteractive reports whether stdin and stdout are both interactive terminals.
func isInteractive() bool {
	return term.IsTerminal(int(os.Stdin.Fd())) && term.IsTerminal(int(os.Stdout.Fd()))
}

type huhPrompter struct{}

func newHuhPrompter() *huhPrompter {
	return &huhPrompter{}
}

// interruptFilter turns Ctrl+C into a graceful quit so the form output is cleared.
func interruptFilter(_ tea.Model, msg tea.Msg) tea.Msg {
	if _, ok := msg.(tea.InterruptMsg); ok {
		return tea.QuitMsg{}
	}
	return msg
}

func (p *huhPrompter) run(form *huh.Form) error {
	form.WithProgramOptions(
		tea.WithOutput(os.Stderr),
		tea.WithFilter(interruptFilter),
	)
	err := runFormFunc(form)
	if errors.Is(err, huh.ErrUserAborted) {
		return errAborted
	}
	return err
}

func (p *huhPrompter) Confirm(title, description string) (bool, error) {
	var ok bool
	err := p.run(huh.NewForm(
		huh.NewGroup(
			huh.NewConfirm().
				Title(title).
				Description(description).
				Affirmative("Yes").
				Negative("No").
				Value(&ok),
		),
	))
	return ok, err
}

func (p *huhPrompter) Select(title string, options []string) (string, error) {
	var choice string
	err := p.run(huh.NewForm(
		huh.NewGroup(
			huh.NewSelect[string]().
				Title(title).
				Options(huh.NewOptions(options...)...).
				Value(&choice),
		),
	))
	return choice, err
}
