package service_test

import (
	"testing"

	"tasksync/internal/errors"
	"tasksync/internal/service"
)

func TestParseStatus(t *testing.T) {
	tests := []struct {
		in      string
		want    service.Status
		wantErr bool
	}{
		{"pending", service.StatusPending, false},
		{" Completed ", service.StatusCompleted, false},
		{"in-progress", service.StatusInProgress, false},
		{"IN_PROGRESS", service.StatusInProgress, false},
		{"done", "", true},
		{"", "", true},
	}

	for _, tt := range tests {
		got, err := service.ParseStatus(tt.in)
		if tt.wantErr {
			if !errors.Is(err, errors.ErrValidation) {
				t.Errorf("ParseStatus(%q): expected validation error, got %v", tt.in, err)
			}
			continue
		}
		if err != nil {
			t.Errorf("ParseStatus(%q): unexpected error %v", tt.in, err)
		}
		if got != tt.want {
			t.Errorf("ParseStatus(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestTaskInput_ValidateAndNormalize(t *testing.T) {
	blank := service.TaskInput{Title: "   "}
	if err := blank.Validate(); !errors.Is(err, errors.ErrTitleRequired) {
		t.Errorf("expected title required, got %v", err)
	}

	bad := service.TaskInput{Title: "x", Status: "later"}
	if err := bad.Validate(); !errors.Is(err, errors.ErrInvalidStatus) {
		t.Errorf("expected invalid status, got %v", err)
	}

	in := service.TaskInput{Title: "  Write notes ", Description: " draft "}.Normalize()
	if in.Title != "Write notes" || in.Description != "draft" {
		t.Errorf("expected trimmed fields, got %+v", in)
	}
	if in.Status != service.StatusPending {
		t.Errorf("expected default status pending, got %q", in.Status)
	}
	if err := in.Validate(); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestTaskPatch_Validate(t *testing.T) {
	if err := (service.TaskPatch{}).Validate(); !errors.Is(err, errors.ErrEmptyPatch) {
		t.Errorf("expected empty patch error, got %v", err)
	}

	blank := ""
	if err := (service.TaskPatch{Title: &blank}).Validate(); !errors.Is(err, errors.ErrTitleRequired) {
		t.Errorf("expected title required, got %v", err)
	}

	if err := service.StatusPatch("archived").Validate(); !errors.Is(err, errors.ErrInvalidStatus) {
		t.Errorf("expected invalid status, got %v", err)
	}

	if err := service.StatusPatch(service.StatusCompleted).Validate(); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestTaskPatch_Apply(t *testing.T) {
	task := service.Task{ID: 1, Title: "Old", Description: "keep", Status: service.StatusPending}
	title := " New "
	got := service.TaskPatch{Title: &title}.Apply(task)

	if got.Title != "New" {
		t.Errorf("Title = %q", got.Title)
	}
	if got.Description != "keep" || got.Status != service.StatusPending || got.ID != 1 {
		t.Errorf("untouched fields changed: %+v", got)
	}
}

func TestHealth_Healthy(t *testing.T) {
	if !(service.Health{Status: "healthy"}).Healthy() {
		t.Error("healthy should be healthy")
	}
	if (service.Health{Status: "unhealthy"}).Healthy() {
		t.Error("unhealthy should not be healthy")
	}
}
