// Package commands provides the command interface and implementations.
package commands

import (
	"context"
	"flag"
	"fmt"
	"io"
	"time"

	"tasksync/internal/config"
	"tasksync/internal/controller"
	"tasksync/internal/errors"
	"tasksync/internal/exitcode"
	"tasksync/internal/output"
	"tasksync/internal/service"
)

// Command defines the interface for CLI commands.
type Command interface {
	// Name returns the primary command name.
	Name() string

	// Aliases returns alternative names for the command.
	Aliases() []string

	// Synopsis returns a short description for help output.
	Synopsis() string

	// Usage returns the usage string for help output.
	Usage() string

	// NeedsService returns true if the command talks to the task store.
	// Commands like help, version, login, logout return false.
	NeedsService() bool

	// RegisterFlags registers command-specific flags.
	RegisterFlags(fs *flag.FlagSet)

	// Run executes the command.
	// cfg is always provided (config dir, settings, logger).
	// svc is nil if NeedsService() returns false.
	// args contains positional arguments after flag parsing.
	// Returns exit code.
	Run(ctx context.Context, cfg *config.Config, svc service.Service, args []string, out, errOut io.Writer) int
}

// exitCodeFor maps a classified error to an exit code.
func exitCodeFor(err error) int {
	var remote *errors.RemoteError
	if errors.As(err, &remote) {
		switch remote.StatusCode {
		case 401, 403:
			return exitcode.AuthError
		case 404:
			return exitcode.UserError
		}
	}
	switch {
	case errors.Is(err, errors.ErrValidation),
		errors.Is(err, errors.ErrOperationInProgress),
		errors.Is(err, errors.ErrProbeInProgress):
		return exitcode.UserError
	}
	return exitcode.BackendError
}

// reportError prints err and returns its exit code.
func reportError(cfg *config.Config, errOut io.Writer, err error) int {
	cfg.Log().Debug("command failed", "error", err.Error(), "kind", errors.KindOf(err).String())
	fmt.Fprintf(errOut, "error: %s\n", errors.UserMessage(err))
	return exitCodeFor(err)
}

// reportTaskError is reportError for a failure on one task.
func reportTaskError(cfg *config.Config, errOut io.Writer, id int64, err error) int {
	cfg.Log().Debug("task operation failed", "id", id, "error", err.Error())
	fmt.Fprintf(errOut, "error: task %d: %s\n", id, errors.UserMessage(err))
	return exitCodeFor(err)
}

// resolveFormat returns the --output value, or the configured default.
func resolveFormat(cfg *config.Config, flagValue string) (string, error) {
	format := flagValue
	if format == "" {
		format = cfg.Output.Format
	}
	switch format {
	case "", config.FormatText:
		return config.FormatText, nil
	case config.FormatJSON, config.FormatYAML:
		return format, nil
	}
	return "", fmt.Errorf("invalid output format: %s (want text, json or yaml)", format)
}

// registerOutputFlag binds --output and -o.
func registerOutputFlag(fs *flag.FlagSet, p *string) {
	fs.StringVar(p, "output", "", "")
	fs.StringVar(p, "o", "", "")
}

// parseDue parses a YYYY-MM-DD due date. Empty means no date.
func parseDue(s string) (*time.Time, error) {
	if s == "" {
		return nil, nil
	}
	t, err := time.ParseInLocation(output.DateLayout, s, time.UTC)
	if err != nil {
		return nil, errors.NewValidationError("parse due date", "due", fmt.Errorf("invalid due date: %s (want YYYY-MM-DD)", s))
	}
	return &t, nil
}

// optionalString is a string flag that records whether it was given.
type optionalString struct {
	value string
	set   bool
}

func (o *optionalString) String() string { return o.value }

func (o *optionalString) Set(s string) error {
	o.value = s
	o.set = true
	return nil
}

func newCollection(cfg *config.Config, svc service.Service) *controller.Collection {
	return controller.NewCollection(svc, controller.WithCollectionLogger(cfg.Log()))
}

func newDiagnostics(cfg *config.Config, svc service.Service) *controller.Diagnostics {
	return controller.NewDiagnostics(svc,
		controller.WithProbeTimeout(cfg.Diagnostics.ProbeTimeout),
		controller.WithEndpointTimeout(cfg.Diagnostics.EndpointTimeout),
		controller.WithDiagnosticsLogger(cfg.Log()),
	)
}
