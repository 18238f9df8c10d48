// Package service defines the backend-agnostic interface for task operations.
package service

import "context"

// Service defines the typed operations of the remote task store.
// All remote calls go through this interface; controllers and commands never
// talk HTTP directly.
//
// Implementations attempt each call exactly once and classify failures with
// the kinds in tasksync/internal/errors. They never recover errors themselves.
type Service interface {
	// ListTasks returns every task in store order.
	ListTasks(ctx context.Context) ([]Task, error)

	// GetTask returns a single task by ID.
	GetTask(ctx context.Context, id int64) (Task, error)

	// CreateTask validates and creates a task, returning the stored copy.
	// Status defaults to pending when omitted.
	CreateTask(ctx context.Context, in TaskInput) (Task, error)

	// UpdateTask applies a non-empty partial update and returns the stored copy.
	UpdateTask(ctx context.Context, id int64, patch TaskPatch) (Task, error)

	// DeleteTask deletes a task by ID.
	DeleteTask(ctx context.Context, id int64) error

	// CheckHealth calls the store's health endpoint.
	CheckHealth(ctx context.Context) (Health, error)

	// Ping calls the store's generic liveness endpoint.
	Ping(ctx context.Context) (Ping, error)
}
