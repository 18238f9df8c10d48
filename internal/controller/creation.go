package controller

import (
	"context"
	"sync"
	"time"

	"tasksync/internal/errors"
	"tasksync/internal/logging"
	"tasksync/internal/service"
)

// DefaultSuccessLinger is how long JustSucceeded stays set after a create.
const DefaultSuccessLinger = 3 * time.Second

// Refresher is notified after a task was created.
type Refresher interface {
	Refresh(ctx context.Context) error
}

// CreationState is an immutable snapshot of a Creation form.
type CreationState struct {
	Title       string
	Description string
	Status      service.Status
	DueDate     *time.Time

	Submitting    bool
	Err           error
	Message       string
	JustSucceeded bool
	// LastCreated is the task returned by the last successful submit.
	LastCreated *service.Task
}

// Creation owns the draft of a new task and submits it.
type Creation struct {
	svc       service.Service
	refresher Refresher
	linger    time.Duration
	log       *logging.Logger

	mu          sync.Mutex
	draft       service.TaskInput
	submitting  bool
	err         error
	succeeded   bool
	successGen  uint64
	timer       *time.Timer
	lastCreated *service.Task

	subs notifier[CreationState]
}

// CreationOption configures a Creation.
type CreationOption func(*Creation)

// WithSuccessLinger sets how long JustSucceeded stays set. Zero keeps it set
// until the next Reset or Submit.
func WithSuccessLinger(d time.Duration) CreationOption {
	return func(c *Creation) {
		c.linger = d
	}
}

// WithCreationLogger sets the logger.
func WithCreationLogger(l *logging.Logger) CreationOption {
	return func(c *Creation) {
		if l != nil {
			c.log = l.WithComponent("creation")
		}
	}
}

// NewCreation creates an empty form. refresher may be nil.
func NewCreation(svc service.Service, refresher Refresher, opts ...CreationOption) *Creation {
	c := &Creation{
		svc:       svc,
		refresher: refresher,
		linger:    DefaultSuccessLinger,
		log:       logging.NopLogger(),
		draft:     emptyDraft(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func emptyDraft() service.TaskInput {
	return service.TaskInput{Status: service.StatusPending}
}

// Subscribe registers fn to receive a snapshot after every state change.
func (c *Creation) Subscribe(fn func(CreationState)) (unsubscribe func()) {
	return c.subs.subscribe(fn)
}

// State returns the current snapshot.
func (c *Creation) State() CreationState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapshotLocked()
}

func (c *Creation) snapshotLocked() CreationState {
	s := CreationState{
		Title:         c.draft.Title,
		Description:   c.draft.Description,
		Status:        c.draft.Status,
		DueDate:       c.draft.DueDate,
		Submitting:    c.submitting,
		Err:           c.err,
		JustSucceeded: c.succeeded,
	}
	if c.lastCreated != nil {
		t := *c.lastCreated
		s.LastCreated = &t
	}
	if c.err != nil {
		s.Message = errors.UserMessage(c.err)
	}
	return s
}

func (c *Creation) unlockAndPublish() {
	s, seq := c.snapshotLocked(), c.subs.stamp()
	c.mu.Unlock()
	c.subs.publish(seq, s)
}

// SetTitle sets the draft title. It is trimmed on submit.
func (c *Creation) SetTitle(title string) {
	c.mu.Lock()
	c.draft.Title = title
	c.unlockAndPublish()
}

// SetDescription sets the draft description.
func (c *Creation) SetDescription(description string) {
	c.mu.Lock()
	c.draft.Description = description
	c.unlockAndPublish()
}

// SetStatus sets the draft status.
func (c *Creation) SetStatus(status service.Status) error {
	if !status.Valid() {
		return errors.NewValidationError("create task", "status", errors.ErrInvalidStatus)
	}
	c.mu.Lock()
	c.draft.Status = status
	c.unlockAndPublish()
	return nil
}

// SetDueDate sets or clears the draft due date.
func (c *Creation) SetDueDate(due *time.Time) {
	c.mu.Lock()
	if due != nil {
		d := *due
		due = &d
	}
	c.draft.DueDate = due
	c.unlockAndPublish()
}

// Submit validates the draft and creates the task. A blank title fails
// locally without a network call. On success the draft is reset, the
// success flag raised and the refresher asked to reload. On failure the
// draft is kept so the user can retry.
func (c *Creation) Submit(ctx context.Context) (service.Task, error) {
	c.mu.Lock()
	if c.submitting {
		c.mu.Unlock()
		return service.Task{}, errors.ErrOperationInProgress
	}
	in := c.draft
	if err := in.Validate(); err != nil {
		c.err = err
		c.unlockAndPublish()
		return service.Task{}, err
	}
	c.submitting = true
	c.err = nil
	c.clearSuccessLocked()
	c.unlockAndPublish()

	task, err := c.svc.CreateTask(ctx, in.Normalize())

	c.mu.Lock()
	c.submitting = false
	if err != nil {
		c.err = err
		c.unlockAndPublish()
		c.log.Warn("create failed", "error", err.Error(), "kind", errors.KindOf(err).String())
		return service.Task{}, err
	}
	c.draft = emptyDraft()
	c.lastCreated = &task
	c.succeeded = true
	c.successGen++
	if c.linger > 0 {
		gen := c.successGen
		c.timer = time.AfterFunc(c.linger, func() { c.expireSuccess(gen) })
	}
	c.unlockAndPublish()
	c.log.Info("task created", "id", task.ID)

	if c.refresher != nil {
		if err := c.refresher.Refresh(ctx); err != nil {
			c.log.Warn("refresh after create failed", "error", err.Error())
		}
	}
	return task, nil
}

// Retry submits the preserved draft again.
func (c *Creation) Retry(ctx context.Context) (service.Task, error) {
	return c.Submit(ctx)
}

// Reset clears the draft, the error and the success flag.
func (c *Creation) Reset() {
	c.mu.Lock()
	c.draft = emptyDraft()
	c.err = nil
	c.clearSuccessLocked()
	c.unlockAndPublish()
}

// Close stops the pending success timer.
func (c *Creation) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}
}

func (c *Creation) clearSuccessLocked() {
	c.succeeded = false
	c.successGen++
	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}
}

func (c *Creation) expireSuccess(gen uint64) {
	c.mu.Lock()
	if gen != c.successGen || !c.succeeded {
		c.mu.Unlock()
		return
	}
	c.succeeded = false
	c.timer = nil
	c.unlockAndPublish()
}
