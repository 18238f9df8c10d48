package commands

import (
	"context"
	"flag"
	"fmt"
	"io"

	"tasksync/internal/config"
	"tasksync/internal/exitcode"
	"tasksync/internal/service"
)

func init() {
	Register(&DoneCmd{})
	Register(&ReopenCmd{})
	Register(&StatusCmd{})
}

// DoneCmd implements the done command.
type DoneCmd struct{}

func (c *DoneCmd) Name() string       { return "done" }
func (c *DoneCmd) Aliases() []string  { return []string{"complete"} }
func (c *DoneCmd) Synopsis() string   { return "Mark tasks completed" }
func (c *DoneCmd) Usage() string      { return "tasksync done <ids...>" }
func (c *DoneCmd) NeedsService() bool { return true }

func (c *DoneCmd) RegisterFlags(fs *flag.FlagSet) {}

func (c *DoneCmd) Run(ctx context.Context, cfg *config.Config, svc service.Service, args []string, out, errOut io.Writer) int {
	return runSetStatus(ctx, cfg, svc, service.StatusCompleted, args, out, errOut)
}

// ReopenCmd implements the reopen command.
type ReopenCmd struct{}

func (c *ReopenCmd) Name() string       { return "reopen" }
func (c *ReopenCmd) Aliases() []string  { return nil }
func (c *ReopenCmd) Synopsis() string   { return "Mark tasks pending again" }
func (c *ReopenCmd) Usage() string      { return "tasksync reopen <ids...>" }
func (c *ReopenCmd) NeedsService() bool { return true }

func (c *ReopenCmd) RegisterFlags(fs *flag.FlagSet) {}

func (c *ReopenCmd) Run(ctx context.Context, cfg *config.Config, svc service.Service, args []string, out, errOut io.Writer) int {
	return runSetStatus(ctx, cfg, svc, service.StatusPending, args, out, errOut)
}

// StatusCmd implements the status command.
type StatusCmd struct{}

func (c *StatusCmd) Name() string       { return "status" }
func (c *StatusCmd) Aliases() []string  { return nil }
func (c *StatusCmd) Synopsis() string   { return "Set the status of tasks" }
func (c *StatusCmd) Usage() string      { return "tasksync status <pending|in_progress|completed> <ids...>" }
func (c *StatusCmd) NeedsService() bool { return true }

func (c *StatusCmd) RegisterFlags(fs *flag.FlagSet) {}

func (c *StatusCmd) Run(ctx context.Context, cfg *config.Config, svc service.Service, args []string, out, errOut io.Writer) int {
	if len(args) == 0 {
		fmt.Fprintln(errOut, "error: status required")
		return exitcode.UserError
	}
	status, err := service.ParseStatus(args[0])
	if err != nil {
		fmt.Fprintf(errOut, "error: invalid status: %s\n", args[0])
		return exitcode.UserError
	}
	return runSetStatus(ctx, cfg, svc, status, args[1:], out, errOut)
}

// runSetStatus is the shared implementation for done, reopen and status.
// It stops at the first failure.
func runSetStatus(ctx context.Context, cfg *config.Config, svc service.Service, status service.Status, args []string, out, errOut io.Writer) int {
	ids, err := ParseTaskIDs(args)
	if err != nil {
		fmt.Fprintf(errOut, "error: %v\n", err)
		return exitcode.UserError
	}

	coll := newCollection(cfg, svc)
	for _, id := range ids {
		if err := coll.SetStatus(ctx, id, status); err != nil {
			return reportTaskError(cfg, errOut, id, err)
		}
	}

	if !cfg.Quiet {
		fmt.Fprintln(out, "ok")
	}
	return exitcode.Success
}
