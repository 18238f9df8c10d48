// Package exitcode defines exit codes for the CLI.
package exitcode

const (
	// Success indicates successful completion.
	Success = 0

	// UserError covers bad arguments, local validation failures, unknown
	// tasks and operations refused because another one is running.
	UserError = 1

	// AuthError indicates a missing or rejected token (remote 401/403) or an
	// unreadable token file.
	AuthError = 2

	// BackendError covers an unreachable store, timeouts, remote failures
	// and bulk operations where some items failed.
	BackendError = 3
)
