package controller_test

import (
	"context"
	"fmt"
	"reflect"
	"sync"
	"testing"
	"time"

	"tasksync/internal/controller"
	"tasksync/internal/errors"
	"tasksync/internal/service"
	"tasksync/internal/testutil"
)

func seeded(t *testing.T, titles ...string) (*testutil.FakeService, *controller.Collection) {
	t.Helper()
	fake := testutil.NewFakeService()
	for _, title := range titles {
		fake.AddTask(title, service.StatusPending)
	}
	c := controller.NewCollection(fake)
	if err := c.Refresh(context.Background()); err != nil {
		t.Fatalf("initial refresh: %v", err)
	}
	return fake, c
}

func ids(tasks []service.Task) []int64 {
	out := make([]int64, len(tasks))
	for i, t := range tasks {
		out[i] = t.ID
	}
	return out
}

func TestCollection_RefreshIsIdempotent(t *testing.T) {
	_, c := seeded(t, "a", "b", "c")
	first := c.State().Tasks

	if err := c.Refresh(context.Background()); err != nil {
		t.Fatalf("Refresh: %v", err)
	}
	second := c.State().Tasks

	if !reflect.DeepEqual(first, second) {
		t.Errorf("refresh not idempotent:\nfirst:  %+v\nsecond: %+v", first, second)
	}
	if len(second) != 3 {
		t.Errorf("expected 3 tasks, got %d", len(second))
	}
}

func TestCollection_RefreshClearsSelection(t *testing.T) {
	_, c := seeded(t, "a", "b")
	st := c.State()
	c.ToggleSelect(st.Tasks[0].ID)
	c.ToggleSelect(999)
	if len(c.State().Selection) != 2 {
		t.Fatalf("expected 2 selected, got %v", c.State().Selection)
	}

	if err := c.Refresh(context.Background()); err != nil {
		t.Fatalf("Refresh: %v", err)
	}
	if sel := c.State().Selection; len(sel) != 0 {
		t.Errorf("selection should be empty after refresh, got %v", sel)
	}
}

func TestCollection_RefreshFailureKeepsTasks(t *testing.T) {
	fake, c := seeded(t, "a", "b")
	before := c.State().Tasks

	fake.ListErr = errors.NewUnreachableError("list tasks", "http://x", fmt.Errorf("connection refused"))
	err := c.Refresh(context.Background())
	if !errors.Is(err, errors.ErrUnreachable) {
		t.Fatalf("expected unreachable, got %v", err)
	}

	st := c.State()
	if !reflect.DeepEqual(st.Tasks, before) {
		t.Error("failed refresh must keep previous tasks")
	}
	if st.Loading {
		t.Error("loading should be false after failure")
	}
	if st.Err == nil || !st.CanRetry {
		t.Errorf("expected retryable error state, got %+v", st)
	}
	if st.Message != "connection failed; the backend is not reachable" {
		t.Errorf("Message = %q", st.Message)
	}

	fake.ListErr = nil
	if err := c.Retry(context.Background()); err != nil {
		t.Fatalf("Retry: %v", err)
	}
	if st := c.State(); st.Err != nil || st.CanRetry {
		t.Errorf("error should be cleared after successful retry: %+v", st)
	}
}

func TestCollection_SetStatusRoundTrip(t *testing.T) {
	fake, c := seeded(t, "a", "b")
	id := c.State().Tasks[1].ID
	lists := fake.Calls("ListTasks")

	if err := c.SetStatus(context.Background(), id, service.StatusCompleted); err != nil {
		t.Fatalf("SetStatus: %v", err)
	}
	if fake.Calls("ListTasks") != lists+1 {
		t.Error("SetStatus should trigger exactly one refresh")
	}
	for _, task := range c.State().Tasks {
		if task.ID == id && task.Status != service.StatusCompleted {
			t.Errorf("status = %q, want completed", task.Status)
		}
	}
}

func TestCollection_SetStatusFailureLeavesTasks(t *testing.T) {
	fake, c := seeded(t, "a")
	before := c.State().Tasks
	fake.UpdateErr = errors.NewRemoteError("update task", 500, `{"detail":"boom"}`, fmt.Errorf("500"))
	lists := fake.Calls("ListTasks")

	err := c.SetStatus(context.Background(), before[0].ID, service.StatusInProgress)
	if !errors.Is(err, errors.ErrRemote) {
		t.Fatalf("expected remote error, got %v", err)
	}
	st := c.State()
	if !reflect.DeepEqual(st.Tasks, before) {
		t.Error("tasks changed after failed update")
	}
	if fake.Calls("ListTasks") != lists {
		t.Error("failed update must not refresh")
	}
	if st.Message != "boom" {
		t.Errorf("Message = %q", st.Message)
	}

	fake.UpdateErr = nil
	if err := c.Retry(context.Background()); err != nil {
		t.Fatalf("Retry: %v", err)
	}
	if got := c.State().Tasks[0].Status; got != service.StatusInProgress {
		t.Errorf("status after retry = %q", got)
	}
}

func TestCollection_SetStatusInvalid(t *testing.T) {
	fake, c := seeded(t, "a")
	err := c.SetStatus(context.Background(), 1, "archived")
	if errors.KindOf(err) != errors.KindValidation {
		t.Fatalf("expected validation error, got %v", err)
	}
	if fake.Calls("UpdateTask") != 0 {
		t.Error("invalid status must not reach the store")
	}
}

func TestCollection_DeleteSelectedPartialFailure(t *testing.T) {
	fake, c := seeded(t, "a", "b", "c")
	all := ids(c.State().Tasks)
	for _, id := range all {
		c.ToggleSelect(id)
	}
	fake.DeleteErr[all[1]] = errors.NewRemoteError("delete task", 404, `{"detail":"Task not found"}`, fmt.Errorf("404"))
	lists := fake.Calls("ListTasks")

	err := c.DeleteSelected(context.Background())

	var partial *errors.PartialFailureError
	if !errors.As(err, &partial) {
		t.Fatalf("expected PartialFailureError, got %T %v", err, err)
	}
	if partial.Total != 3 || len(partial.Failed) != 1 || partial.Failed[0].ID != all[1] {
		t.Errorf("unexpected partial failure: %+v", partial)
	}
	if fake.Calls("DeleteTask") != 3 {
		t.Errorf("expected 3 delete calls, got %d", fake.Calls("DeleteTask"))
	}
	if fake.Calls("ListTasks") != lists+1 {
		t.Errorf("expected exactly one refresh, got %d", fake.Calls("ListTasks")-lists)
	}

	st := c.State()
	if got := ids(st.Tasks); !reflect.DeepEqual(got, []int64{all[1]}) {
		t.Errorf("remaining tasks = %v, want [%d]", got, all[1])
	}
	if st.Err == nil || st.Message != "failed to delete 1 of 3 tasks" {
		t.Errorf("unexpected error state: %q %v", st.Message, st.Err)
	}
	if st.Busy {
		t.Error("Busy should be false after delete")
	}
	if len(st.Selection) != 0 {
		t.Error("selection should be cleared by the refresh")
	}
}

type concurrentDeletes struct {
	*testutil.FakeService
	want int

	mu      sync.Mutex
	arrived int
	all     chan struct{}
}

func (s *concurrentDeletes) DeleteTask(ctx context.Context, id int64) error {
	s.mu.Lock()
	s.arrived++
	if s.arrived == s.want {
		close(s.all)
	}
	s.mu.Unlock()

	select {
	case <-s.all:
	case <-time.After(2 * time.Second):
		return fmt.Errorf("delete %d was not issued concurrently", id)
	}
	return s.FakeService.DeleteTask(ctx, id)
}

func TestCollection_DeleteSelectedIsConcurrent(t *testing.T) {
	fake := testutil.NewFakeService()
	for _, title := range []string{"a", "b", "c"} {
		fake.AddTask(title, service.StatusPending)
	}
	svc := &concurrentDeletes{FakeService: fake, want: 3, all: make(chan struct{})}
	c := controller.NewCollection(svc)
	ctx := context.Background()
	if err := c.Refresh(ctx); err != nil {
		t.Fatal(err)
	}
	c.ToggleAll()

	if err := c.DeleteSelected(ctx); err != nil {
		t.Fatalf("DeleteSelected: %v", err)
	}
	if n := len(c.State().Tasks); n != 0 {
		t.Errorf("expected empty collection, got %d", n)
	}
}

func TestCollection_DeleteSelectedEmpty(t *testing.T) {
	fake, c := seeded(t, "a")
	err := c.DeleteSelected(context.Background())
	if !errors.Is(err, errors.ErrNothingSelected) || errors.KindOf(err) != errors.KindValidation {
		t.Fatalf("expected nothing-selected validation error, got %v", err)
	}
	if fake.Calls("DeleteTask") != 0 {
		t.Error("no delete should be issued")
	}
}

func TestCollection_DeleteRetryTargetsFailedIDs(t *testing.T) {
	fake, c := seeded(t, "a", "b")
	all := ids(c.State().Tasks)
	c.ToggleAll()
	fake.DeleteErr[all[0]] = errors.NewTimeoutError("delete task", time.Second, context.DeadlineExceeded)

	if err := c.DeleteSelected(context.Background()); err == nil {
		t.Fatal("expected partial failure")
	}
	delete(fake.DeleteErr, all[0])

	if err := c.Retry(context.Background()); err != nil {
		t.Fatalf("Retry: %v", err)
	}
	if n := len(c.State().Tasks); n != 0 {
		t.Errorf("expected empty collection after retry, got %d", n)
	}
	if fake.Calls("DeleteTask") != 3 {
		t.Errorf("retry should only re-delete the failed id, got %d calls", fake.Calls("DeleteTask"))
	}
}

func TestCollection_ToggleAllSymmetry(t *testing.T) {
	_, c := seeded(t, "a", "b", "c")
	first := c.State().Tasks[0].ID

	c.ToggleSelect(first)
	c.ToggleAll()
	if st := c.State(); len(st.Selection) != len(st.Tasks) || !st.AllSelected() {
		t.Fatalf("expected all selected, got %v", st.Selection)
	}

	c.ToggleAll()
	if sel := c.State().Selection; len(sel) != 0 {
		t.Fatalf("expected none selected, got %v", sel)
	}

	c.ToggleSelect(first)
	c.DeselectAll()
	if sel := c.State().Selection; len(sel) != 0 {
		t.Errorf("DeselectAll left %v", sel)
	}
}

func TestCollection_ToggleAllUsesCurrentTasks(t *testing.T) {
	fake, c := seeded(t, "a")
	fake.AddTask("b", service.StatusPending)
	if err := c.Refresh(context.Background()); err != nil {
		t.Fatal(err)
	}
	c.ToggleAll()
	if got := len(c.State().Selection); got != 2 {
		t.Errorf("expected 2 selected after refresh, got %d", got)
	}
}

func TestCollection_NewestRefreshWins(t *testing.T) {
	fake, c := seeded(t, "a")
	ctx := context.Background()

	started := make(chan struct{})
	release := make(chan struct{})
	base := fake.Calls("ListTasks")
	fake.OnList = func(call int) {
		if call == base+1 {
			close(started)
			<-release
		}
	}

	done := make(chan error, 1)
	go func() { done <- c.Refresh(ctx) }()
	<-started

	fake.AddTask("b", service.StatusPending)
	if err := c.Refresh(ctx); err != nil {
		t.Fatalf("second refresh: %v", err)
	}
	close(release)
	if err := <-done; err != nil {
		t.Fatalf("first refresh: %v", err)
	}

	if n := len(c.State().Tasks); n != 2 {
		t.Errorf("stale refresh overwrote newer result: %d tasks", n)
	}
}

func TestCollection_Subscribe(t *testing.T) {
	fake := testutil.NewFakeService()
	fake.AddTask("a", service.StatusPending)
	c := controller.NewCollection(fake)

	var mu sync.Mutex
	var states []controller.CollectionState
	unsubscribe := c.Subscribe(func(s controller.CollectionState) {
		mu.Lock()
		states = append(states, s)
		mu.Unlock()
	})

	if err := c.Refresh(context.Background()); err != nil {
		t.Fatal(err)
	}
	unsubscribe()
	c.ToggleAll()

	mu.Lock()
	defer mu.Unlock()
	if len(states) != 2 {
		t.Fatalf("expected 2 notifications, got %d", len(states))
	}
	if !states[0].Loading || states[1].Loading {
		t.Errorf("expected loading then loaded, got %v then %v", states[0].Loading, states[1].Loading)
	}
	if len(states[1].Tasks) != 1 {
		t.Errorf("expected 1 task in final snapshot")
	}
}

// TestCollection_SubscribeOrdered verifies concurrent mutations reach a
// subscriber in snapshot order, ending with the current state.
func TestCollection_SubscribeOrdered(t *testing.T) {
	titles := make([]string, 20)
	for i := range titles {
		titles[i] = fmt.Sprintf("task %d", i)
	}
	_, c := seeded(t, titles...)

	var mu sync.Mutex
	var sizes []int
	var last controller.CollectionState
	c.Subscribe(func(s controller.CollectionState) {
		mu.Lock()
		sizes = append(sizes, len(s.Selection))
		last = s
		mu.Unlock()
	})

	var wg sync.WaitGroup
	for _, id := range ids(c.State().Tasks) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			c.ToggleSelect(id)
		}()
	}
	wg.Wait()

	mu.Lock()
	defer mu.Unlock()
	for i := 1; i < len(sizes); i++ {
		if sizes[i] <= sizes[i-1] {
			t.Fatalf("snapshots delivered out of order: %v", sizes)
		}
	}
	if !reflect.DeepEqual(last.Selection, c.State().Selection) {
		t.Errorf("last delivered selection %v, current %v", last.Selection, c.State().Selection)
	}
}

// TestCollection_SubscriberMayMutate verifies a callback can call back into
// the controller without blocking.
func TestCollection_SubscriberMayMutate(t *testing.T) {
	_, c := seeded(t, "a", "b")

	var last controller.CollectionState
	c.Subscribe(func(s controller.CollectionState) {
		last = s
		if len(s.Selection) > 0 {
			c.DeselectAll()
		}
	})

	done := make(chan struct{})
	go func() {
		c.ToggleAll()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("ToggleAll blocked on a re-entrant subscriber")
	}

	if len(last.Selection) != 0 || len(c.State().Selection) != 0 {
		t.Errorf("expected an empty selection, last delivered %v", last.Selection)
	}
}

// TestCollection_NotFoundIsNotRetryable verifies a 404 is reported without
// offering a retry.
func TestCollection_NotFoundIsNotRetryable(t *testing.T) {
	fake, c := seeded(t, "a")
	fake.UpdateErr = errors.NewRemoteError("update task", 404, `{"detail":"Task not found"}`, nil)

	if err := c.SetStatus(context.Background(), 99, service.StatusCompleted); err == nil {
		t.Fatal("expected an error")
	}
	st := c.State()
	if st.Err == nil || st.CanRetry {
		t.Errorf("404 should not be retryable: %+v", st)
	}

	fake.UpdateErr = errors.NewTimeoutError("update task", time.Second, nil)
	_ = c.SetStatus(context.Background(), c.State().Tasks[0].ID, service.StatusCompleted)
	if !c.State().CanRetry {
		t.Error("timeout should be retryable")
	}
}

func TestCountTasks(t *testing.T) {
	got := controller.CountTasks([]service.Task{
		{Status: service.StatusPending},
		{Status: service.StatusCompleted},
		{Status: service.StatusCompleted},
		{Status: service.StatusInProgress},
	})
	want := controller.Counts{Total: 4, Pending: 1, InProgress: 1, Completed: 2}
	if got != want {
		t.Errorf("CountTasks = %+v, want %+v", got, want)
	}
}
