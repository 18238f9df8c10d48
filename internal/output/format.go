// Package output provides formatters for CLI output.
package output

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"tasksync/internal/config"
	"tasksync/internal/controller"
	"tasksync/internal/service"
)

// DateLayout is the display and input layout for due dates.
const DateLayout = "2006-01-02"

// Encode writes v as JSON or YAML. Text output is handled by the callers.
func Encode(w io.Writer, format string, v any) error {
	switch format {
	case config.FormatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	case config.FormatYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(v); err != nil {
			return err
		}
		return enc.Close()
	}
	return fmt.Errorf("unsupported output format: %s", format)
}

// StatusMark returns the checkbox shown for a status.
func StatusMark(s service.Status) string {
	switch s {
	case service.StatusCompleted:
		return "[x]"
	case service.StatusInProgress:
		return "[~]"
	}
	return "[ ]"
}

// FormatTask formats a task line.
// Format: "{ID:>4}  [m] {TITLE}" with an optional "  (due YYYY-MM-DD)" suffix.
func FormatTask(w io.Writer, task service.Task) {
	fmt.Fprintf(w, "%4d  %s %s", task.ID, StatusMark(task.Status), normalizeTitle(task.Title))
	if task.DueDate != nil {
		fmt.Fprintf(w, "  (due %s)", task.DueDate.Format(DateLayout))
	}
	fmt.Fprintln(w)
}

// FormatTaskDetail formats every field of a task, one per line.
func FormatTaskDetail(w io.Writer, task service.Task) {
	fmt.Fprintf(w, "id:          %d\n", task.ID)
	fmt.Fprintf(w, "title:       %s\n", normalizeTitle(task.Title))
	fmt.Fprintf(w, "status:      %s\n", task.Status)
	if task.Description != "" {
		fmt.Fprintf(w, "description: %s\n", task.Description)
	}
	if task.DueDate != nil {
		fmt.Fprintf(w, "due:         %s\n", task.DueDate.Format(DateLayout))
	}
	fmt.Fprintf(w, "created:     %s\n", formatTime(task.CreatedAt))
	fmt.Fprintf(w, "updated:     %s\n", formatTime(task.UpdatedAt))
}

// FormatCounts formats the per-status totals.
func FormatCounts(w io.Writer, c controller.Counts) {
	fmt.Fprintf(w, "total:       %d\n", c.Total)
	fmt.Fprintf(w, "pending:     %d\n", c.Pending)
	fmt.Fprintf(w, "in progress: %d\n", c.InProgress)
	fmt.Fprintf(w, "completed:   %d\n", c.Completed)
}

// FormatSummary formats the one-line footer of the task list.
func FormatSummary(w io.Writer, c controller.Counts) {
	fmt.Fprintf(w, "%d tasks: %d pending, %d in progress, %d completed\n", c.Total, c.Pending, c.InProgress, c.Completed)
}

// FormatProbe formats a probe result line.
// Format: "{TITLE:<16} {STATUS:<8} {MESSAGE}" with " ({LATENCY})" once checked.
func FormatProbe(w io.Writer, res controller.ProbeResult) {
	fmt.Fprintf(w, "%-16s %-8s %s", res.Kind.Title(), res.Status, res.Message)
	if !res.CheckedAt.IsZero() {
		fmt.Fprintf(w, " (%s)", res.Latency.Round(time.Millisecond))
	}
	fmt.Fprintln(w)
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.Local().Format("2006-01-02 15:04")
}

// normalizeTitle normalizes a task title for display.
// - Empty or whitespace-only titles become "(untitled)"
// - Newlines are replaced with spaces
func normalizeTitle(title string) string {
	title = strings.ReplaceAll(title, "\r", " ")
	title = strings.ReplaceAll(title, "\n", " ")

	if strings.TrimSpace(title) == "" {
		return "(untitled)"
	}
	return title
}
