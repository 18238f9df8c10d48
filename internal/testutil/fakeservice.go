// Package testutil provides testing utilities.
package testutil

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"tasksync/internal/errors"
	"tasksync/internal/service"
)

// FakeService is an in-memory implementation of service.Service for testing.
type FakeService struct {
	mu     sync.RWMutex
	tasks  map[int64]service.Task
	nextID int64
	now    func() time.Time
	calls  map[string]int

	// Error injection for testing
	ListErr   error
	GetErr    error
	CreateErr error
	UpdateErr error
	DeleteErr map[int64]error // taskID -> error
	HealthErr error
	PingErr   error

	// Health is returned by CheckHealth when HealthErr is nil.
	Health service.Health

	// Delay is applied before every call and respects ctx cancellation.
	Delay time.Duration

	// OnList, when set, runs inside ListTasks after the result was taken and
	// before it is returned. call counts from 1.
	OnList func(call int)
}

// NewFakeService creates an empty FakeService reporting a healthy store.
func NewFakeService() *FakeService {
	return &FakeService{
		tasks:     make(map[int64]service.Task),
		nextID:    1,
		now:       time.Now,
		calls:     make(map[string]int),
		DeleteErr: make(map[int64]error),
		Health:    service.Health{Status: "healthy", Database: "connected"},
	}
}

// AddTask seeds a task and returns it.
func (f *FakeService) AddTask(title string, status service.Status) service.Task {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.insert(service.TaskInput{Title: title, Status: status}.Normalize())
}

// Tasks returns the stored tasks ordered by ID.
func (f *FakeService) Tasks() []service.Task {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.sorted()
}

// Calls returns how often the named method was invoked.
func (f *FakeService) Calls(method string) int {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.calls[method]
}

func (f *FakeService) insert(in service.TaskInput) service.Task {
	ts := f.now().UTC()
	t := service.Task{
		ID:          f.nextID,
		Title:       in.Title,
		Description: in.Description,
		Status:      in.Status,
		DueDate:     in.DueDate,
		CreatedAt:   ts,
		UpdatedAt:   ts,
	}
	f.tasks[t.ID] = t
	f.nextID++
	return t
}

func (f *FakeService) sorted() []service.Task {
	result := make([]service.Task, 0, len(f.tasks))
	for _, t := range f.tasks {
		result = append(result, t)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	return result
}

// enter records the call and waits out Delay.
func (f *FakeService) enter(ctx context.Context, method string) (int, error) {
	f.mu.Lock()
	f.calls[method]++
	n := f.calls[method]
	delay := f.Delay
	f.mu.Unlock()

	if delay > 0 {
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return n, errors.NewTimeoutError(method, delay, ctx.Err())
		}
	}
	return n, nil
}

func notFound(op string) error {
	return errors.NewRemoteError(op, 404, `{"detail":"Task not found"}`, fmt.Errorf("not found"))
}

// ListTasks implements service.Service.
func (f *FakeService) ListTasks(ctx context.Context) ([]service.Task, error) {
	n, err := f.enter(ctx, "ListTasks")
	if err != nil {
		return nil, err
	}
	if f.ListErr != nil {
		return nil, f.ListErr
	}
	f.mu.RLock()
	tasks := f.sorted()
	f.mu.RUnlock()
	if f.OnList != nil {
		f.OnList(n)
	}
	return tasks, nil
}

// GetTask implements service.Service.
func (f *FakeService) GetTask(ctx context.Context, id int64) (service.Task, error) {
	if _, err := f.enter(ctx, "GetTask"); err != nil {
		return service.Task{}, err
	}
	if f.GetErr != nil {
		return service.Task{}, f.GetErr
	}
	f.mu.RLock()
	defer f.mu.RUnlock()
	t, ok := f.tasks[id]
	if !ok {
		return service.Task{}, notFound("get task")
	}
	return t, nil
}

// CreateTask implements service.Service.
func (f *FakeService) CreateTask(ctx context.Context, in service.TaskInput) (service.Task, error) {
	if _, err := f.enter(ctx, "CreateTask"); err != nil {
		return service.Task{}, err
	}
	if err := in.Validate(); err != nil {
		return service.Task{}, err
	}
	if f.CreateErr != nil {
		return service.Task{}, f.CreateErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.insert(in.Normalize()), nil
}

// UpdateTask implements service.Service.
func (f *FakeService) UpdateTask(ctx context.Context, id int64, patch service.TaskPatch) (service.Task, error) {
	if _, err := f.enter(ctx, "UpdateTask"); err != nil {
		return service.Task{}, err
	}
	if err := patch.Validate(); err != nil {
		return service.Task{}, err
	}
	if f.UpdateErr != nil {
		return service.Task{}, f.UpdateErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	t, ok := f.tasks[id]
	if !ok {
		return service.Task{}, notFound("update task")
	}
	t = patch.Apply(t)
	t.UpdatedAt = f.now().UTC()
	f.tasks[id] = t
	return t, nil
}

// DeleteTask implements service.Service.
func (f *FakeService) DeleteTask(ctx context.Context, id int64) error {
	if _, err := f.enter(ctx, "DeleteTask"); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if err, ok := f.DeleteErr[id]; ok && err != nil {
		return err
	}
	if _, ok := f.tasks[id]; !ok {
		return notFound("delete task")
	}
	delete(f.tasks, id)
	return nil
}

// CheckHealth implements service.Service.
func (f *FakeService) CheckHealth(ctx context.Context) (service.Health, error) {
	if _, err := f.enter(ctx, "CheckHealth"); err != nil {
		return service.Health{}, err
	}
	if f.HealthErr != nil {
		return service.Health{}, f.HealthErr
	}
	return f.Health, nil
}

// Ping implements service.Service.
func (f *FakeService) Ping(ctx context.Context) (service.Ping, error) {
	if _, err := f.enter(ctx, "Ping"); err != nil {
		return service.Ping{}, err
	}
	if f.PingErr != nil {
		return service.Ping{}, f.PingErr
	}
	return service.Ping{Message: "API is working"}, nil
}
