package controller

import (
	"context"
	"slices"
	"sort"
	"sync"
	"time"

	"github.com/sourcegraph/conc/pool"

	"tasksync/internal/errors"
	"tasksync/internal/logging"
	"tasksync/internal/service"
)

// Counts holds per-status task totals.
type Counts struct {
	Total      int `json:"total" yaml:"total"`
	Pending    int `json:"pending" yaml:"pending"`
	InProgress int `json:"in_progress" yaml:"in_progress"`
	Completed  int `json:"completed" yaml:"completed"`
}

// CountTasks tallies tasks by status.
func CountTasks(tasks []service.Task) Counts {
	c := Counts{Total: len(tasks)}
	for _, t := range tasks {
		switch t.Status {
		case service.StatusPending:
			c.Pending++
		case service.StatusInProgress:
			c.InProgress++
		case service.StatusCompleted:
			c.Completed++
		}
	}
	return c
}

// CollectionState is an immutable snapshot of a Collection.
type CollectionState struct {
	// Tasks in the order the store returned them.
	Tasks []service.Task
	// Selection holds the selected task IDs in ascending order.
	Selection []int64
	Loading   bool
	// Busy is set while a bulk delete is running.
	Busy bool
	// Err is the last classified failure; Message is its display form.
	Err     error
	Message string
	// CanRetry is set when Retry may succeed: the failure has a retry
	// target and is not a validation error, payload rejection or 404.
	CanRetry bool
	// LastRefreshed is the completion time of the last successful refresh.
	LastRefreshed time.Time
}

// IsSelected reports whether id is in the selection.
func (s CollectionState) IsSelected(id int64) bool {
	_, found := slices.BinarySearch(s.Selection, id)
	return found
}

// Counts returns per-status totals of the snapshot's tasks.
func (s CollectionState) Counts() Counts {
	return CountTasks(s.Tasks)
}

// AllSelected reports whether every task is selected.
func (s CollectionState) AllSelected() bool {
	return len(s.Tasks) > 0 && len(s.Selection) == len(s.Tasks)
}

// Collection owns the client's view of the remote task list and the
// selection set used for bulk actions. Every mutation is followed by a full
// refresh so the view always reflects the store.
type Collection struct {
	svc service.Service
	log *logging.Logger

	mu            sync.Mutex
	tasks         []service.Task
	selection     map[int64]struct{}
	refreshSeq    uint64
	loading       bool
	deleting      bool
	err           error
	retry         func(context.Context) error
	lastRefreshed time.Time

	subs notifier[CollectionState]
}

// CollectionOption configures a Collection.
type CollectionOption func(*Collection)

// WithCollectionLogger sets the logger.
func WithCollectionLogger(l *logging.Logger) CollectionOption {
	return func(c *Collection) {
		if l != nil {
			c.log = l.WithComponent("collection")
		}
	}
}

// NewCollection creates an empty collection backed by svc.
func NewCollection(svc service.Service, opts ...CollectionOption) *Collection {
	c := &Collection{
		svc:       svc,
		log:       logging.NopLogger(),
		selection: make(map[int64]struct{}),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Subscribe registers fn to receive a snapshot after every state change.
func (c *Collection) Subscribe(fn func(CollectionState)) (unsubscribe func()) {
	return c.subs.subscribe(fn)
}

// State returns the current snapshot.
func (c *Collection) State() CollectionState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapshotLocked()
}

func (c *Collection) snapshotLocked() CollectionState {
	s := CollectionState{
		Tasks:         slices.Clone(c.tasks),
		Selection:     make([]int64, 0, len(c.selection)),
		Loading:       c.loading,
		Busy:          c.deleting,
		Err:           c.err,
		CanRetry:      c.retry != nil && errors.IsRetryable(c.err),
		LastRefreshed: c.lastRefreshed,
	}
	for id := range c.selection {
		s.Selection = append(s.Selection, id)
	}
	slices.Sort(s.Selection)
	if c.err != nil {
		s.Message = errors.UserMessage(c.err)
	}
	return s
}

// unlockAndPublish releases the lock and notifies subscribers.
func (c *Collection) unlockAndPublish() {
	s, seq := c.snapshotLocked(), c.subs.stamp()
	c.mu.Unlock()
	c.subs.publish(seq, s)
}

func (c *Collection) failLocked(err error, retry func(context.Context) error) {
	c.err = err
	c.retry = retry
}

// Refresh re-fetches the whole collection. On success the task list is
// replaced and the selection cleared; on failure the previous list is kept
// and the error recorded. When refreshes overlap, only the most recently
// started one updates the state.
func (c *Collection) Refresh(ctx context.Context) error {
	c.mu.Lock()
	c.refreshSeq++
	seq := c.refreshSeq
	c.loading = true
	c.unlockAndPublish()

	start := time.Now()
	tasks, err := c.svc.ListTasks(ctx)

	c.mu.Lock()
	if seq != c.refreshSeq {
		c.mu.Unlock()
		c.log.Debug("discarding stale refresh", "seq", seq)
		return err
	}
	c.loading = false
	if err != nil {
		c.failLocked(err, c.Refresh)
		c.unlockAndPublish()
		c.log.Warn("refresh failed", "error", err.Error(), "kind", errors.KindOf(err).String())
		return err
	}
	c.tasks = tasks
	clear(c.selection)
	c.err = nil
	c.retry = nil
	c.lastRefreshed = time.Now()
	c.unlockAndPublish()
	c.log.Debug("refreshed", "count", len(tasks), "duration_ms", time.Since(start).Milliseconds())
	return nil
}

// ToggleSelect flips id in the selection.
func (c *Collection) ToggleSelect(id int64) {
	c.mu.Lock()
	if _, ok := c.selection[id]; ok {
		delete(c.selection, id)
	} else {
		c.selection[id] = struct{}{}
	}
	c.unlockAndPublish()
}

// ToggleAll clears the selection when every task is selected, otherwise
// selects every task currently in the collection.
func (c *Collection) ToggleAll() {
	c.mu.Lock()
	if len(c.selection) == len(c.tasks) {
		clear(c.selection)
	} else {
		clear(c.selection)
		for _, t := range c.tasks {
			c.selection[t.ID] = struct{}{}
		}
	}
	c.unlockAndPublish()
}

// DeselectAll clears the selection.
func (c *Collection) DeselectAll() {
	c.mu.Lock()
	clear(c.selection)
	c.unlockAndPublish()
}

// ClearError drops the recorded error and its retry action.
func (c *Collection) ClearError() {
	c.mu.Lock()
	c.err = nil
	c.retry = nil
	c.unlockAndPublish()
}

// Retry re-runs the operation that recorded the current error.
// It is a no-op when nothing failed.
func (c *Collection) Retry(ctx context.Context) error {
	c.mu.Lock()
	retry := c.retry
	c.mu.Unlock()
	if retry == nil {
		return nil
	}
	return retry(ctx)
}

// SetStatus changes one task's status, then refreshes.
func (c *Collection) SetStatus(ctx context.Context, id int64, status service.Status) error {
	if !status.Valid() {
		err := errors.NewValidationError("set status", "status", errors.ErrInvalidStatus)
		c.mu.Lock()
		c.failLocked(err, nil)
		c.unlockAndPublish()
		return err
	}
	return c.Update(ctx, id, service.StatusPatch(status))
}

// Update applies patch to one task, then refreshes. On failure the task list
// is left unchanged.
func (c *Collection) Update(ctx context.Context, id int64, patch service.TaskPatch) error {
	if _, err := c.svc.UpdateTask(ctx, id, patch); err != nil {
		c.mu.Lock()
		c.failLocked(err, func(ctx context.Context) error {
			return c.Update(ctx, id, patch)
		})
		c.unlockAndPublish()
		c.log.Warn("update failed", "id", id, "error", err.Error())
		return err
	}
	c.log.Info("task updated", "id", id)
	return c.Refresh(ctx)
}

// DeleteSelected deletes every selected task concurrently, waits for all of
// them to settle and refreshes exactly once. Individual failures do not stop
// the others; they are reported as one PartialFailureError.
func (c *Collection) DeleteSelected(ctx context.Context) error {
	c.mu.Lock()
	if c.deleting {
		c.mu.Unlock()
		return errors.ErrOperationInProgress
	}
	if len(c.selection) == 0 {
		err := errors.NewValidationError("delete", "selection", errors.ErrNothingSelected)
		c.failLocked(err, nil)
		c.unlockAndPublish()
		return err
	}
	ids := make([]int64, 0, len(c.selection))
	for id := range c.selection {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	c.deleting = true
	c.unlockAndPublish()

	failed := c.deleteAll(ctx, ids)

	refreshErr := c.Refresh(ctx)

	c.mu.Lock()
	c.deleting = false
	var err error
	if len(failed) > 0 {
		err = &errors.PartialFailureError{Op: "delete", Total: len(ids), Failed: failed}
		retryIDs := make([]int64, len(failed))
		for i, f := range failed {
			retryIDs[i] = f.ID
		}
		c.failLocked(err, func(ctx context.Context) error {
			return c.DeleteIDs(ctx, retryIDs)
		})
	}
	c.unlockAndPublish()

	c.log.Info("bulk delete finished", "total", len(ids), "failed", len(failed))
	if err != nil {
		return err
	}
	return refreshErr
}

// DeleteIDs selects exactly ids and deletes them.
func (c *Collection) DeleteIDs(ctx context.Context, ids []int64) error {
	c.mu.Lock()
	if !c.deleting {
		clear(c.selection)
		for _, id := range ids {
			c.selection[id] = struct{}{}
		}
	}
	c.mu.Unlock()
	return c.DeleteSelected(ctx)
}

// deleteAll issues one delete per id in parallel and returns the failures
// ordered by id.
func (c *Collection) deleteAll(ctx context.Context, ids []int64) []errors.ItemError {
	p := pool.NewWithResults[errors.ItemError]()
	for _, id := range ids {
		p.Go(func() errors.ItemError {
			return errors.ItemError{ID: id, Err: c.svc.DeleteTask(ctx, id)}
		})
	}

	var failed []errors.ItemError
	for _, r := range p.Wait() {
		if r.Err != nil {
			c.log.Warn("delete failed", "id", r.ID, "error", r.Err.Error())
			failed = append(failed, r)
		}
	}
	sort.Slice(failed, func(i, j int) bool { return failed[i].ID < failed[j].ID })
	return failed
}
