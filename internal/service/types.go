package service

import (
	"encoding/json"
	"strings"
	"time"

	"tasksync/internal/errors"
)

// Status is the lifecycle state of a task.
type Status string

// Task statuses accepted by the store.
const (
	StatusPending    Status = "pending"
	StatusInProgress Status = "in_progress"
	StatusCompleted  Status = "completed"
)

// Statuses lists every valid status in display order.
var Statuses = []Status{StatusPending, StatusInProgress, StatusCompleted}

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusInProgress, StatusCompleted:
		return true
	}
	return false
}

// ParseStatus parses a status name. Accepts "in-progress" and any case.
func ParseStatus(s string) (Status, error) {
	st := Status(strings.ReplaceAll(strings.ToLower(strings.TrimSpace(s)), "-", "_"))
	if !st.Valid() {
		return "", errors.NewValidationError("parse status", "status", errors.ErrInvalidStatus)
	}
	return st, nil
}

// Task is the client's read copy of a remote task. Every field is assigned by
// the store and trusted verbatim.
type Task struct {
	ID          int64      `json:"id" yaml:"id"`
	Title       string     `json:"title" yaml:"title"`
	Description string     `json:"description" yaml:"description"`
	Status      Status     `json:"status" yaml:"status"`
	DueDate     *time.Time `json:"due_date,omitempty" yaml:"due_date,omitempty"`
	OwnerID     int64      `json:"owner_id,omitempty" yaml:"owner_id,omitempty"`
	CreatedAt   time.Time  `json:"created_at" yaml:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at" yaml:"updated_at"`
}

// TaskInput is the payload of a create call.
type TaskInput struct {
	Title       string     `json:"title"`
	Description string     `json:"description"`
	Status      Status     `json:"status,omitempty"`
	DueDate     *time.Time `json:"due_date,omitempty"`
}

// Normalize trims text fields and fills the default status.
func (in TaskInput) Normalize() TaskInput {
	in.Title = strings.TrimSpace(in.Title)
	in.Description = strings.TrimSpace(in.Description)
	if in.Status == "" {
		in.Status = StatusPending
	}
	return in
}

// Validate rejects a blank title or an unknown status.
func (in TaskInput) Validate() error {
	if strings.TrimSpace(in.Title) == "" {
		return errors.NewValidationError("create task", "title", errors.ErrTitleRequired)
	}
	if in.Status != "" && !in.Status.Valid() {
		return errors.NewValidationError("create task", "status", errors.ErrInvalidStatus)
	}
	return nil
}

// TaskPatch is the payload of an update call. Nil fields are left untouched.
type TaskPatch struct {
	Title       *string    `json:"title,omitempty"`
	Description *string    `json:"description,omitempty"`
	Status      *Status    `json:"status,omitempty"`
	DueDate     *time.Time `json:"due_date,omitempty"`
}

// StatusPatch returns a patch that only sets the status.
func StatusPatch(s Status) TaskPatch {
	return TaskPatch{Status: &s}
}

// IsEmpty reports whether no field is set.
func (p TaskPatch) IsEmpty() bool {
	return p.Title == nil && p.Description == nil && p.Status == nil && p.DueDate == nil
}

// Validate rejects an empty patch, a blank title or an unknown status.
func (p TaskPatch) Validate() error {
	if p.IsEmpty() {
		return errors.NewValidationError("update task", "", errors.ErrEmptyPatch)
	}
	if p.Title != nil && strings.TrimSpace(*p.Title) == "" {
		return errors.NewValidationError("update task", "title", errors.ErrTitleRequired)
	}
	if p.Status != nil && !p.Status.Valid() {
		return errors.NewValidationError("update task", "status", errors.ErrInvalidStatus)
	}
	return nil
}

// Apply returns t with the patch fields copied over. Used by in-memory stores.
func (p TaskPatch) Apply(t Task) Task {
	if p.Title != nil {
		t.Title = strings.TrimSpace(*p.Title)
	}
	if p.Description != nil {
		t.Description = strings.TrimSpace(*p.Description)
	}
	if p.Status != nil {
		t.Status = *p.Status
	}
	if p.DueDate != nil {
		d := *p.DueDate
		t.DueDate = &d
	}
	return t
}

// Health is the body of the store's health endpoint.
type Health struct {
	Status   string         `json:"status"`
	Service  string         `json:"service,omitempty"`
	Database string         `json:"database,omitempty"`
	Version  string         `json:"version,omitempty"`
	Error    string         `json:"error,omitempty"`
	Raw      map[string]any `json:"-"`
}

// Healthy reports whether the store declared itself healthy.
func (h Health) Healthy() bool {
	return strings.EqualFold(h.Status, "healthy") || strings.EqualFold(h.Status, "ok")
}

// UnmarshalJSON decodes the known fields and keeps the whole object in Raw.
func (h *Health) UnmarshalJSON(data []byte) error {
	type plain Health
	var p plain
	if err := json.Unmarshal(data, &p); err != nil {
		return err
	}
	if err := json.Unmarshal(data, &p.Raw); err != nil {
		return err
	}
	*h = Health(p)
	return nil
}

// Ping is the body of the store's liveness endpoint.
type Ping struct {
	Message string         `json:"message"`
	Service string         `json:"service,omitempty"`
	Raw     map[string]any `json:"-"`
}

// UnmarshalJSON decodes the known fields and keeps the whole object in Raw.
func (p *Ping) UnmarshalJSON(data []byte) error {
	type plain Ping
	var v plain
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	if err := json.Unmarshal(data, &v.Raw); err != nil {
		return err
	}
	*p = Ping(v)
	return nil
}
