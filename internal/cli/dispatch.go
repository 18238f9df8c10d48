// Package cli parses the command line and dispatches to registered commands.
package cli

import (
	"context"
	"flag"
	"fmt"
	"io"
	"strings"

	"tasksync/internal/commands"
	"tasksync/internal/config"
	"tasksync/internal/exitcode"
	"tasksync/internal/service"
)

// defaultCommand runs when tasksync is invoked without arguments.
const defaultCommand = "list"

// ServiceFactory builds the task store client for commands that need one.
type ServiceFactory func(ctx context.Context, cfg *config.Config) (service.Service, error)

// Dispatcher resolves a command, parses its flags, prepares the config and
// client, and runs it.
type Dispatcher struct {
	registry *commands.Registry
	factory  ServiceFactory
}

// NewDispatcher creates a new dispatcher with the given registry and service factory.
func NewDispatcher(registry *commands.Registry, factory ServiceFactory) *Dispatcher {
	return &Dispatcher{
		registry: registry,
		factory:  factory,
	}
}

// globalFlags are accepted by every command.
type globalFlags struct {
	configDir string
	apiURL    string
	quiet     bool
	debug     bool
}

func (g *globalFlags) register(fs *flag.FlagSet) {
	fs.StringVar(&g.configDir, "config", "", "")
	fs.StringVar(&g.apiURL, "api-url", "", "")
	fs.BoolVar(&g.quiet, "quiet", false, "")
	fs.BoolVar(&g.debug, "debug", false, "")
}

// Run dispatches args and returns the process exit code.
func (d *Dispatcher) Run(ctx context.Context, args []string, out, errOut io.Writer) int {
	name, rest := defaultCommand, []string(nil)
	if len(args) > 0 {
		name, rest = args[0], args[1:]
	}

	// Flags only follow a command name.
	cmd, ok := d.registry.Find(name)
	if strings.HasPrefix(name, "-") || !ok {
		fmt.Fprintf(errOut, "error: unknown command: %s\n", name)
		return exitcode.UserError
	}
	return d.runCommand(ctx, cmd, rest, out, errOut)
}

func (d *Dispatcher) runCommand(ctx context.Context, cmd commands.Command, args []string, out, errOut io.Writer) int {
	var global globalFlags
	fs := flag.NewFlagSet(cmd.Name(), flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	global.register(fs)
	cmd.RegisterFlags(fs)

	if err := fs.Parse(args); err != nil {
		fmt.Fprintf(errOut, "error: %s\n", describeFlagError(err))
		return exitcode.UserError
	}
	positional := fs.Args()
	if len(positional) > 0 && strings.HasPrefix(positional[0], "-") {
		fmt.Fprintf(errOut, "error: unknown flag: %s\n", positional[0])
		return exitcode.UserError
	}

	cfg, code := loadConfig(global, errOut)
	if code != exitcode.Success {
		return code
	}

	logger, err := cfg.NewLogger()
	if err != nil {
		fmt.Fprintf(errOut, "error: failed to open log: %s\n", err)
		return exitcode.UserError
	}
	defer logger.Close()
	cfg.Logger = logger.With("command", cmd.Name())
	cfg.Logger.Debug("dispatching", "args", positional, "base_url", cfg.API.BaseURL)

	var svc service.Service
	if cmd.NeedsService() {
		if svc, code = d.newService(ctx, cfg, errOut); code != exitcode.Success {
			return code
		}
	}

	code = cmd.Run(ctx, cfg, svc, positional, out, errOut)
	cfg.Logger.Debug("command finished", "exit_code", code)
	return code
}

// describeFlagError rewrites flag package errors into tasksync's wording.
func describeFlagError(err error) string {
	msg := err.Error()
	switch {
	case strings.Contains(msg, "flag needs an argument"):
		// "flag needs an argument: -status"
		if i := strings.LastIndex(msg, ": "); i >= 0 {
			return "flag needs an argument: " + msg[i+2:]
		}
		return msg
	case strings.HasPrefix(msg, "flag provided but not defined: "):
		return "unknown flag: " + strings.TrimPrefix(msg, "flag provided but not defined: ")
	default:
		return msg
	}
}

// loadConfig reads the config directory and applies the global flags on top.
func loadConfig(global globalFlags, errOut io.Writer) (*config.Config, int) {
	cfg, err := config.New(global.configDir)
	if err != nil {
		fmt.Fprintf(errOut, "error: %s\n", err)
		return nil, exitcode.UserError
	}
	cfg.Quiet = global.quiet
	cfg.Debug = global.debug
	if global.apiURL != "" {
		cfg.API.BaseURL = global.apiURL
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(errOut, "error: invalid configuration: %s\n", strings.ReplaceAll(err.Error(), "\n", "; "))
		return nil, exitcode.UserError
	}
	return cfg, exitcode.Success
}

func (d *Dispatcher) newService(ctx context.Context, cfg *config.Config, errOut io.Writer) (service.Service, int) {
	if d.factory == nil {
		fmt.Fprintln(errOut, "error: backend error: no task store configured")
		return nil, exitcode.BackendError
	}
	svc, err := d.factory(ctx, cfg)
	if err == nil {
		return svc, exitcode.Success
	}

	cfg.Logger.Error("creating task store client failed", "error", err.Error())
	// A broken token file is an auth problem.
	if msg := err.Error(); strings.Contains(msg, "token") || strings.Contains(msg, "auth") {
		fmt.Fprintf(errOut, "error: auth error: %s\n", err)
		return nil, exitcode.AuthError
	}
	fmt.Fprintf(errOut, "error: backend error: %s\n", err)
	return nil, exitcode.BackendError
}
