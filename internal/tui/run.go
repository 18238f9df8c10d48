package tui

import (
	"context"
	"os"

	tea "github.com/charmbracelet/bubbletea"
	"golang.org/x/term"

	"tasksync/internal/config"
	"tasksync/internal/controller"
	"tasksync/internal/errors"
	"tasksync/internal/service"
)

// ErrNotTerminal is returned by Run when stdout is not a terminal.
var ErrNotTerminal = errors.New("the interactive UI needs a terminal")

// IsTerminal reports whether stdout is attached to a terminal.
func IsTerminal() bool {
	return term.IsTerminal(int(os.Stdout.Fd()))
}

// Run starts the interactive UI and blocks until the user quits.
func Run(ctx context.Context, cfg *config.Config, svc service.Service) error {
	if !IsTerminal() {
		return ErrNotTerminal
	}

	log := cfg.Log().WithComponent("tui")
	coll := controller.NewCollection(svc, controller.WithCollectionLogger(log))
	form := controller.NewCreation(svc, coll,
		controller.WithSuccessLinger(cfg.Form.SuccessLinger),
		controller.WithCreationLogger(log),
	)
	defer form.Close()
	diag := controller.NewDiagnostics(svc,
		controller.WithProbeTimeout(cfg.Diagnostics.ProbeTimeout),
		controller.WithEndpointTimeout(cfg.Diagnostics.EndpointTimeout),
		controller.WithDiagnosticsLogger(log),
	)

	m := New(ctx, coll, form, diag).WithBaseURL(cfg.API.BaseURL)
	p := tea.NewProgram(m, tea.WithAltScreen(), tea.WithContext(ctx))

	// Publishes can happen inside Update, so Send must not block the event loop.
	notify := func() { go p.Send(stateChangedMsg{}) }
	defer coll.Subscribe(func(controller.CollectionState) { notify() })()
	defer form.Subscribe(func(controller.CreationState) { notify() })()
	defer diag.Subscribe(func(controller.DiagnosticsState) { notify() })()

	log.Info("starting interactive UI")
	_, err := p.Run()
	if errors.Is(err, tea.ErrProgramKilled) && ctx.Err() != nil {
		return nil
	}
	return err
}
