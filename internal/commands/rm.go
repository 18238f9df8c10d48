package commands

import (
	"context"
	"flag"
	"fmt"
	"io"

	"tasksync/internal/config"
	"tasksync/internal/errors"
	"tasksync/internal/exitcode"
	"tasksync/internal/service"
)

func init() {
	Register(&RmCmd{})
}

// RmCmd implements the rm command. Deletes run concurrently.
type RmCmd struct {
	all bool
}

func (c *RmCmd) Name() string       { return "rm" }
func (c *RmCmd) Aliases() []string  { return []string{"delete"} }
func (c *RmCmd) Synopsis() string   { return "Delete tasks" }
func (c *RmCmd) Usage() string      { return "tasksync rm [--all] <ids...>" }
func (c *RmCmd) NeedsService() bool { return true }

func (c *RmCmd) RegisterFlags(fs *flag.FlagSet) {
	fs.BoolVar(&c.all, "all", false, "")
}

func (c *RmCmd) Run(ctx context.Context, cfg *config.Config, svc service.Service, args []string, out, errOut io.Writer) int {
	coll := newCollection(cfg, svc)

	var err error
	switch {
	case c.all && len(args) > 0:
		fmt.Fprintln(errOut, "error: cannot use both --all and task ids")
		return exitcode.UserError
	case c.all:
		if err := coll.Refresh(ctx); err != nil {
			return reportError(cfg, errOut, err)
		}
		if len(coll.State().Tasks) == 0 {
			if !cfg.Quiet {
				fmt.Fprintln(out, "no tasks found")
			}
			return exitcode.Success
		}
		coll.ToggleAll()
		err = coll.DeleteSelected(ctx)
	default:
		ids, perr := ParseTaskIDs(args)
		if perr != nil {
			fmt.Fprintf(errOut, "error: %v\n", perr)
			return exitcode.UserError
		}
		err = coll.DeleteIDs(ctx, ids)
	}

	var partial *errors.PartialFailureError
	if errors.As(err, &partial) {
		for _, f := range partial.Failed {
			fmt.Fprintf(errOut, "error: task %d: %s\n", f.ID, errors.UserMessage(f.Err))
		}
		fmt.Fprintf(errOut, "error: %s\n", errors.UserMessage(partial))
		// Some deletes may have gone through, whatever the individual causes.
		return exitcode.BackendError
	}
	if err != nil {
		return reportError(cfg, errOut, err)
	}

	if !cfg.Quiet {
		fmt.Fprintln(out, "ok")
	}
	return exitcode.Success
}
