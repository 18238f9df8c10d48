package commands

import (
	"context"
	"flag"
	"fmt"
	"io"
	"strings"

	"tasksync/internal/config"
	"tasksync/internal/exitcode"
	"tasksync/internal/service"
)

func init() {
	Register(&HelpCmd{})
}

// HelpCmd implements the help command.
type HelpCmd struct{}

func (c *HelpCmd) Name() string       { return "help" }
func (c *HelpCmd) Aliases() []string  { return nil }
func (c *HelpCmd) Synopsis() string   { return "Print usage" }
func (c *HelpCmd) Usage() string      { return "tasksync help" }
func (c *HelpCmd) NeedsService() bool { return false }

func (c *HelpCmd) RegisterFlags(fs *flag.FlagSet) {}

func (c *HelpCmd) Run(ctx context.Context, cfg *config.Config, svc service.Service, args []string, out, errOut io.Writer) int {
	fmt.Fprint(out, helpText)
	fmt.Fprintln(out, "\nCommands:")
	for _, cmd := range DefaultRegistry.All() {
		line := fmt.Sprintf("  %-8s %s", cmd.Name(), cmd.Synopsis())
		if aliases := cmd.Aliases(); len(aliases) > 0 {
			line += " (alias: " + strings.Join(aliases, ", ") + ")"
		}
		fmt.Fprintln(out, line)
	}
	return exitcode.Success
}

const helpText = `Usage:
  tasksync                                        List all tasks
  tasksync list [common flags] [--status <s>] [--output <fmt>]
  tasksync show [common flags] [--output <fmt>] <id>
  tasksync add [common flags] [--description <d>] [--status <s>] [--due YYYY-MM-DD] <title...>
  tasksync create ...                             Alias for add
  tasksync edit [common flags] [--title <t>] [--description <d>] [--due YYYY-MM-DD] <id>
  tasksync done [common flags] <ids...>
  tasksync reopen [common flags] <ids...>
  tasksync status [common flags] <pending|in_progress|completed> <ids...>
  tasksync rm [common flags] [--all] <ids...>
  tasksync stats [common flags] [--output <fmt>]
  tasksync diag [common flags] [--probe service|data|endpoints] [--output <fmt>]
  tasksync tui [common flags]
  tasksync login [common flags] <token|->
  tasksync logout [common flags]
  tasksync help
  tasksync version

Task ids:
  7  1,2,5  3-6  (may be combined)

Common flags:
  --config <dir>   Override config directory
  --api-url <url>  Override the task store base URL
  --quiet          Suppress informational output
  --debug          Print debug logs to stderr

Environment:
  TASKSYNC_API_URL   Task store base URL (default http://localhost:8000)
`
