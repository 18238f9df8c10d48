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
	"tasksync/internal/tui"
)

func init() {
	Register(&TuiCmd{})
}

// TuiCmd implements the tui command.
type TuiCmd struct{}

func (c *TuiCmd) Name() string       { return "tui" }
func (c *TuiCmd) Aliases() []string  { return []string{"ui"} }
func (c *TuiCmd) Synopsis() string   { return "Open the interactive task manager" }
func (c *TuiCmd) Usage() string      { return "tasksync tui [common flags]" }
func (c *TuiCmd) NeedsService() bool { return true }

func (c *TuiCmd) RegisterFlags(fs *flag.FlagSet) {}

func (c *TuiCmd) Run(ctx context.Context, cfg *config.Config, svc service.Service, args []string, out, errOut io.Writer) int {
	if len(args) > 0 {
		fmt.Fprintf(errOut, "error: unexpected argument: %s\n", args[0])
		return exitcode.UserError
	}
	if err := tui.Run(ctx, cfg, svc); err != nil {
		if errors.Is(err, tui.ErrNotTerminal) {
			fmt.Fprintf(errOut, "error: %v\n", err)
			return exitcode.UserError
		}
		cfg.Log().Error("interactive UI failed", "error", err.Error())
		fmt.Fprintf(errOut, "error: %v\n", err)
		return exitcode.BackendError
	}
	return exitcode.Success
}
