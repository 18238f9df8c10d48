package commands

import (
	"context"
	"flag"
	"fmt"
	"io"
	"strings"

	"tasksync/internal/config"
	"tasksync/internal/controller"
	"tasksync/internal/exitcode"
	"tasksync/internal/service"
)

func init() {
	Register(&AddCmd{})
	Register(&EditCmd{})
}

// AddCmd implements the add command.
type AddCmd struct {
	description string
	status      string
	due         string
}

func (c *AddCmd) Name() string      { return "add" }
func (c *AddCmd) Aliases() []string { return []string{"create"} }
func (c *AddCmd) Synopsis() string  { return "Create a task" }
func (c *AddCmd) Usage() string {
	return "tasksync add [--description <text>] [--status <status>] [--due YYYY-MM-DD] <title...>"
}
func (c *AddCmd) NeedsService() bool { return true }

func (c *AddCmd) RegisterFlags(fs *flag.FlagSet) {
	fs.StringVar(&c.description, "description", "", "")
	fs.StringVar(&c.description, "d", "", "")
	fs.StringVar(&c.status, "status", "", "")
	fs.StringVar(&c.status, "s", "", "")
	fs.StringVar(&c.due, "due", "", "")
}

func (c *AddCmd) Run(ctx context.Context, cfg *config.Config, svc service.Service, args []string, out, errOut io.Writer) int {
	form := controller.NewCreation(svc, nil,
		controller.WithSuccessLinger(0),
		controller.WithCreationLogger(cfg.Log()),
	)
	defer form.Close()

	form.SetTitle(strings.Join(args, " "))
	form.SetDescription(c.description)
	if c.status != "" {
		status, err := service.ParseStatus(c.status)
		if err != nil {
			fmt.Fprintf(errOut, "error: invalid status: %s\n", c.status)
			return exitcode.UserError
		}
		if err := form.SetStatus(status); err != nil {
			return reportError(cfg, errOut, err)
		}
	}
	due, err := parseDue(c.due)
	if err != nil {
		return reportError(cfg, errOut, err)
	}
	form.SetDueDate(due)

	task, err := form.Submit(ctx)
	if err != nil {
		return reportError(cfg, errOut, err)
	}

	if !cfg.Quiet {
		fmt.Fprintf(out, "created %d\n", task.ID)
	}
	return exitcode.Success
}

// EditCmd implements the edit command.
type EditCmd struct {
	title       optionalString
	description optionalString
	due         optionalString
}

func (c *EditCmd) Name() string      { return "edit" }
func (c *EditCmd) Aliases() []string { return nil }
func (c *EditCmd) Synopsis() string  { return "Change a task's title, description or due date" }
func (c *EditCmd) Usage() string {
	return "tasksync edit [--title <text>] [--description <text>] [--due YYYY-MM-DD] <id>"
}
func (c *EditCmd) NeedsService() bool { return true }

func (c *EditCmd) RegisterFlags(fs *flag.FlagSet) {
	c.title, c.description, c.due = optionalString{}, optionalString{}, optionalString{}
	fs.Var(&c.title, "title", "")
	fs.Var(&c.title, "t", "")
	fs.Var(&c.description, "description", "")
	fs.Var(&c.description, "d", "")
	fs.Var(&c.due, "due", "")
}

func (c *EditCmd) Run(ctx context.Context, cfg *config.Config, svc service.Service, args []string, out, errOut io.Writer) int {
	id, err := ParseTaskID(args)
	if err != nil {
		fmt.Fprintf(errOut, "error: %v\n", err)
		return exitcode.UserError
	}

	var patch service.TaskPatch
	if c.title.set {
		patch.Title = &c.title.value
	}
	if c.description.set {
		patch.Description = &c.description.value
	}
	if c.due.set {
		due, err := parseDue(c.due.value)
		if err != nil {
			return reportError(cfg, errOut, err)
		}
		if due == nil {
			fmt.Fprintln(errOut, "error: --due needs a date")
			return exitcode.UserError
		}
		patch.DueDate = due
	}
	if patch.IsEmpty() {
		fmt.Fprintln(errOut, "error: nothing to change (use --title, --description or --due)")
		return exitcode.UserError
	}

	if err := newCollection(cfg, svc).Update(ctx, id, patch); err != nil {
		return reportError(cfg, errOut, err)
	}

	if !cfg.Quiet {
		fmt.Fprintln(out, "ok")
	}
	return exitcode.Success
}
