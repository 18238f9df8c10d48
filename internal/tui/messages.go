package tui

import (
	"context"

	tea "github.com/charmbracelet/bubbletea"

	"tasksync/internal/controller"
	"tasksync/internal/service"
)

// stateChangedMsg signals that a controller published a new snapshot. The
// model re-reads State() so late deliveries never roll the view back.
type stateChangedMsg struct{}

// opDoneMsg reports that an async controller call returned.
type opDoneMsg struct {
	op  string
	err error
}

// Operation names carried by opDoneMsg.
const (
	opRefresh = "refresh"
	opRetry   = "retry"
	opStatus  = "status"
	opDelete  = "delete"
	opSubmit  = "submit"
	opDiag    = "diag"
)

func refreshCmd(ctx context.Context, c *controller.Collection) tea.Cmd {
	return func() tea.Msg {
		return opDoneMsg{op: opRefresh, err: c.Refresh(ctx)}
	}
}

func retryCmd(ctx context.Context, c *controller.Collection) tea.Cmd {
	return func() tea.Msg {
		return opDoneMsg{op: opRetry, err: c.Retry(ctx)}
	}
}

func setStatusCmd(ctx context.Context, c *controller.Collection, id int64, status service.Status) tea.Cmd {
	return func() tea.Msg {
		return opDoneMsg{op: opStatus, err: c.SetStatus(ctx, id, status)}
	}
}

func deleteSelectedCmd(ctx context.Context, c *controller.Collection) tea.Cmd {
	return func() tea.Msg {
		return opDoneMsg{op: opDelete, err: c.DeleteSelected(ctx)}
	}
}

func submitCmd(ctx context.Context, f *controller.Creation) tea.Cmd {
	return func() tea.Msg {
		_, err := f.Submit(ctx)
		return opDoneMsg{op: opSubmit, err: err}
	}
}

func runProbeCmd(ctx context.Context, d *controller.Diagnostics, kind controller.ProbeKind) tea.Cmd {
	return func() tea.Msg {
		_, err := d.Run(ctx, kind)
		return opDoneMsg{op: opDiag, err: err}
	}
}

func runAllProbesCmd(ctx context.Context, d *controller.Diagnostics) tea.Cmd {
	return func() tea.Msg {
		_, err := d.RunAll(ctx)
		return opDoneMsg{op: opDiag, err: err}
	}
}
