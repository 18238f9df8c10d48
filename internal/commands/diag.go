package commands

import (
	"context"
	"flag"
	"fmt"
	"io"

	"tasksync/internal/config"
	"tasksync/internal/controller"
	"tasksync/internal/exitcode"
	"tasksync/internal/output"
	"tasksync/internal/service"
)

func init() {
	Register(&DiagCmd{})
}

// DiagCmd implements the diag command.
type DiagCmd struct {
	probe  string
	format string
}

func (c *DiagCmd) Name() string      { return "diag" }
func (c *DiagCmd) Aliases() []string { return []string{"doctor"} }
func (c *DiagCmd) Synopsis() string  { return "Check the connection to the task store" }
func (c *DiagCmd) Usage() string {
	return "tasksync diag [--probe service|data|endpoints] [--output text|json|yaml]"
}
func (c *DiagCmd) NeedsService() bool { return true }

func (c *DiagCmd) RegisterFlags(fs *flag.FlagSet) {
	fs.StringVar(&c.probe, "probe", "", "")
	fs.StringVar(&c.probe, "p", "", "")
	registerOutputFlag(fs, &c.format)
}

func (c *DiagCmd) Run(ctx context.Context, cfg *config.Config, svc service.Service, args []string, out, errOut io.Writer) int {
	if len(args) > 0 {
		fmt.Fprintf(errOut, "error: unexpected argument: %s\n", args[0])
		return exitcode.UserError
	}
	format, err := resolveFormat(cfg, c.format)
	if err != nil {
		fmt.Fprintf(errOut, "error: %v\n", err)
		return exitcode.UserError
	}

	dg := newDiagnostics(cfg, svc)

	var results []controller.ProbeResult
	if c.probe != "" {
		kind, err := controller.ParseProbeKind(c.probe)
		if err != nil {
			return reportError(cfg, errOut, err)
		}
		res, _ := dg.Run(ctx, kind)
		results = append(results, res)
	} else {
		if results, err = dg.RunAll(ctx); err != nil {
			return reportError(cfg, errOut, err)
		}
	}

	if format != config.FormatText {
		if err := output.Encode(out, format, results); err != nil {
			fmt.Fprintf(errOut, "error: %v\n", err)
			return exitcode.BackendError
		}
	} else {
		if !cfg.Quiet {
			fmt.Fprintf(out, "store: %s\n", cfg.API.BaseURL)
		}
		for _, res := range results {
			output.FormatProbe(out, res)
		}
	}

	for _, res := range results {
		if res.Status == controller.StatusError {
			return exitcode.BackendError
		}
	}
	return exitcode.Success
}
