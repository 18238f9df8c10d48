// Package errors defines the error kinds surfaced by the task store client and
// the controllers built on top of it.
//
// # Error Kinds
//
//   - ValidationError: input rejected before any network call
//   - UnreachableError: no response reached the remote store
//   - TimeoutError: no response within the configured deadline
//   - RemoteError: the remote store answered with a failure status
//   - PartialFailureError: some items of a bulk operation failed
//
// Every kind matches its sentinel through errors.Is:
//
//	if errors.Is(err, errors.ErrTimeout) { ... }
//
//	var remote *errors.RemoteError
//	if errors.As(err, &remote) && remote.StatusCode == 404 { ... }
package errors

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
)

// Re-export standard library functions so callers can import only this package.
var (
	Is     = errors.Is
	As     = errors.As
	Unwrap = errors.Unwrap
	New    = errors.New
	Join   = errors.Join
)

// Kind classifies an error for presentation and exit codes.
type Kind int

const (
	// KindUnknown is any error not produced by this package.
	KindUnknown Kind = iota
	// KindValidation is a client-side rejection.
	KindValidation
	// KindUnreachable means no response arrived.
	KindUnreachable
	// KindTimeout means the deadline passed before a response arrived.
	KindTimeout
	// KindRemote means the store responded with a failure.
	KindRemote
)

// String returns the kind name.
func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindUnreachable:
		return "unreachable"
	case KindTimeout:
		return "timeout"
	case KindRemote:
		return "remote"
	default:
		return "unknown"
	}
}

// -----------------------------------------------------------------------------
// Sentinel Errors
// -----------------------------------------------------------------------------

var (
	// ErrValidation matches every ValidationError and remote payload rejections.
	ErrValidation = New("validation failed")
	// ErrUnreachable matches every UnreachableError.
	ErrUnreachable = New("remote store unreachable")
	// ErrTimeout matches every TimeoutError.
	ErrTimeout = New("operation timed out")
	// ErrRemote matches every RemoteError.
	ErrRemote = New("remote store error")
)

var (
	// ErrTitleRequired is the cause of a blank-title ValidationError.
	ErrTitleRequired = New("title is required")
	// ErrEmptyPatch is the cause of an update with no fields set.
	ErrEmptyPatch = New("update has no fields")
	// ErrInvalidStatus is the cause of an unknown task status.
	ErrInvalidStatus = New("invalid status")
	// ErrNothingSelected is returned by bulk actions on an empty selection.
	ErrNothingSelected = New("no tasks selected")
	// ErrProbeInProgress is returned when a probe is started while it is testing.
	ErrProbeInProgress = New("probe already running")
	// ErrOperationInProgress is returned when a same-kind operation is in flight.
	ErrOperationInProgress = New("operation already in progress")
)

// -----------------------------------------------------------------------------
// Base Error Implementation
// -----------------------------------------------------------------------------

// baseError carries the operation name and the underlying cause.
type baseError struct {
	op    string
	cause error
}

// Op returns the operation that failed (e.g. "list tasks").
func (e *baseError) Op() string { return e.op }

// Unwrap returns the underlying error.
func (e *baseError) Unwrap() error { return e.cause }

func (e *baseError) format(kind string) string {
	prefix := kind
	if e.op != "" {
		prefix = fmt.Sprintf("%s: %s", e.op, kind)
	}
	if e.cause != nil {
		return fmt.Sprintf("%s: %v", prefix, e.cause)
	}
	return prefix
}

// -----------------------------------------------------------------------------
// Kinds
// -----------------------------------------------------------------------------

// ValidationError is raised before any network call when input is invalid.
type ValidationError struct {
	baseError
	Field string
}

// NewValidationError creates a ValidationError for the given field.
func NewValidationError(op, field string, cause error) *ValidationError {
	return &ValidationError{baseError: baseError{op: op, cause: cause}, Field: field}
}

// Error returns the formatted error message.
func (e *ValidationError) Error() string {
	if e.Field != "" {
		return e.format(fmt.Sprintf("invalid %s", e.Field))
	}
	return e.format("validation error")
}

// Is reports whether target is ErrValidation.
func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}

// UnreachableError means the request never got a response.
type UnreachableError struct {
	baseError
	URL string
}

// NewUnreachableError creates an UnreachableError.
func NewUnreachableError(op, url string, cause error) *UnreachableError {
	return &UnreachableError{baseError: baseError{op: op, cause: cause}, URL: url}
}

// Error returns the formatted error message.
func (e *UnreachableError) Error() string {
	return e.format("remote store unreachable")
}

// Is reports whether target is ErrUnreachable.
func (e *UnreachableError) Is(target error) bool {
	return target == ErrUnreachable
}

// TimeoutError means no response arrived before the deadline.
type TimeoutError struct {
	baseError
	Timeout time.Duration
}

// NewTimeoutError creates a TimeoutError.
func NewTimeoutError(op string, timeout time.Duration, cause error) *TimeoutError {
	return &TimeoutError{baseError: baseError{op: op, cause: cause}, Timeout: timeout}
}

// Error returns the formatted error message.
func (e *TimeoutError) Error() string {
	if e.Timeout > 0 {
		return e.format(fmt.Sprintf("timed out after %s", e.Timeout))
	}
	return e.format("timed out")
}

// Is reports whether target is ErrTimeout.
func (e *TimeoutError) Is(target error) bool {
	return target == ErrTimeout
}

// RemoteError is a failure response from the remote store.
type RemoteError struct {
	baseError
	StatusCode int
	Body       string
}

// NewRemoteError creates a RemoteError.
func NewRemoteError(op string, statusCode int, body string, cause error) *RemoteError {
	return &RemoteError{baseError: baseError{op: op, cause: cause}, StatusCode: statusCode, Body: body}
}

// Error returns the formatted error message.
func (e *RemoteError) Error() string {
	msg := fmt.Sprintf("remote store returned %d", e.StatusCode)
	if d := e.Detail(); d != "" {
		msg = fmt.Sprintf("%s: %s", msg, d)
	}
	if e.op != "" {
		return fmt.Sprintf("%s: %s", e.op, msg)
	}
	return msg
}

// Is reports whether target is ErrRemote, or ErrValidation when the store
// rejected the payload.
func (e *RemoteError) Is(target error) bool {
	switch target {
	case ErrRemote:
		return true
	case ErrValidation:
		return e.IsPayloadRejected()
	}
	return false
}

// IsPayloadRejected reports a 400 or 422 response.
func (e *RemoteError) IsPayloadRejected() bool {
	return e.StatusCode == 400 || e.StatusCode == 422
}

// Detail extracts the store's human-readable message from the body.
// Understands {"detail": "..."}, {"detail": [{"msg": "..."}]} and
// {"message": "..."}; returns "" otherwise.
func (e *RemoteError) Detail() string {
	body := strings.TrimSpace(e.Body)
	if body == "" || body[0] != '{' {
		return ""
	}
	var payload struct {
		Detail  json.RawMessage `json:"detail"`
		Message string          `json:"message"`
	}
	if err := json.Unmarshal([]byte(body), &payload); err != nil {
		return ""
	}
	if len(payload.Detail) > 0 {
		var s string
		if err := json.Unmarshal(payload.Detail, &s); err == nil {
			return s
		}
		var items []struct {
			Msg string `json:"msg"`
		}
		if err := json.Unmarshal(payload.Detail, &items); err == nil {
			msgs := make([]string, 0, len(items))
			for _, it := range items {
				if it.Msg != "" {
					msgs = append(msgs, it.Msg)
				}
			}
			return strings.Join(msgs, "; ")
		}
	}
	return payload.Message
}

// ItemError is one failed item of a bulk operation.
type ItemError struct {
	ID  int64
	Err error
}

// PartialFailureError aggregates the failed items of a bulk operation.
// It unwraps to every item error, so errors.Is sees each cause.
type PartialFailureError struct {
	Op     string
	Total  int
	Failed []ItemError
}

// Error returns the formatted error message.
func (e *PartialFailureError) Error() string {
	ids := make([]string, len(e.Failed))
	for i, f := range e.Failed {
		ids[i] = fmt.Sprintf("%d", f.ID)
	}
	return fmt.Sprintf("%s: %d of %d failed (ids %s)", e.Op, len(e.Failed), e.Total, strings.Join(ids, ", "))
}

// Unwrap returns every item error.
func (e *PartialFailureError) Unwrap() []error {
	errs := make([]error, len(e.Failed))
	for i, f := range e.Failed {
		errs[i] = f.Err
	}
	return errs
}

// -----------------------------------------------------------------------------
// Classification
// -----------------------------------------------------------------------------

// KindOf returns the kind of the first classified error in err's chain.
// A PartialFailureError reports the kind of its first failure.
func KindOf(err error) Kind {
	if err == nil {
		return KindUnknown
	}
	var (
		v *ValidationError
		u *UnreachableError
		t *TimeoutError
		r *RemoteError
		p *PartialFailureError
	)
	switch {
	case As(err, &p) && len(p.Failed) > 0:
		return KindOf(p.Failed[0].Err)
	case As(err, &v):
		return KindValidation
	case As(err, &t):
		return KindTimeout
	case As(err, &u):
		return KindUnreachable
	case As(err, &r):
		return KindRemote
	case Is(err, ErrValidation):
		return KindValidation
	}
	return KindUnknown
}

// IsRetryable reports whether repeating the same call may succeed.
// Validation failures, payload rejections and missing tasks are not
// retryable. A partial failure is retryable if any of its items is.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	var partial *PartialFailureError
	if As(err, &partial) {
		for _, item := range partial.Failed {
			if IsRetryable(item.Err) {
				return true
			}
		}
		return false
	}
	if Is(err, ErrValidation) {
		return false
	}
	var r *RemoteError
	if As(err, &r) {
		return r.StatusCode >= 500 || r.StatusCode == 408 || r.StatusCode == 429
	}
	return true
}

// UserMessage renders err as a short message suitable for display.
func UserMessage(err error) string {
	if err == nil {
		return ""
	}
	var (
		v *ValidationError
		u *UnreachableError
		t *TimeoutError
		r *RemoteError
		p *PartialFailureError
	)
	switch {
	case As(err, &p):
		return fmt.Sprintf("failed to %s %d of %d tasks", p.Op, len(p.Failed), p.Total)
	case As(err, &v):
		if v.cause != nil {
			return v.cause.Error()
		}
		return "invalid input"
	case As(err, &t):
		return "request timed out; the backend is not responding"
	case As(err, &u):
		return "connection failed; the backend is not reachable"
	case As(err, &r):
		if d := r.Detail(); d != "" {
			return d
		}
		switch {
		case r.StatusCode == 404:
			return "not found"
		case r.StatusCode == 401 || r.StatusCode == 403:
			return "not authorized (run: tasksync login)"
		case r.StatusCode >= 500:
			return "backend server error"
		}
		return fmt.Sprintf("backend returned status %d", r.StatusCode)
	}
	return err.Error()
}
