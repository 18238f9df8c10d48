package controller

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/sourcegraph/conc/pool"

	"tasksync/internal/errors"
	"tasksync/internal/logging"
	"tasksync/internal/service"
)

// Probe timeouts.
const (
	DefaultProbeTimeout    = 10 * time.Second
	DefaultEndpointTimeout = 5 * time.Second
)

// ProbeKind identifies one diagnostic check.
type ProbeKind string

// Probes, in the order RunAll executes them.
const (
	ProbeService   ProbeKind = "service"
	ProbeDataLayer ProbeKind = "data"
	ProbeEndpoints ProbeKind = "endpoints"
)

// ProbeKinds lists every probe in run order.
var ProbeKinds = []ProbeKind{ProbeService, ProbeDataLayer, ProbeEndpoints}

// ParseProbeKind parses a probe name.
func ParseProbeKind(s string) (ProbeKind, error) {
	k := ProbeKind(strings.ToLower(strings.TrimSpace(s)))
	switch k {
	case ProbeService, ProbeDataLayer, ProbeEndpoints:
		return k, nil
	case "database", "db":
		return ProbeDataLayer, nil
	}
	return "", errors.NewValidationError("diagnostics", "probe", fmt.Errorf("unknown probe %q (want service, data or endpoints)", s))
}

// Title returns the display name of the probe.
func (k ProbeKind) Title() string {
	switch k {
	case ProbeService:
		return "Backend service"
	case ProbeDataLayer:
		return "Data layer"
	case ProbeEndpoints:
		return "API endpoints"
	}
	return string(k)
}

// ProbeStatus is the lifecycle state of a probe.
type ProbeStatus string

// Probe states. A probe moves idle -> testing -> success|error and may be run
// again once it left testing.
const (
	StatusIdle    ProbeStatus = "idle"
	StatusTesting ProbeStatus = "testing"
	StatusSuccess ProbeStatus = "success"
	StatusError   ProbeStatus = "error"
)

// ProbeResult is the last outcome of a probe.
type ProbeResult struct {
	Kind      ProbeKind      `json:"kind" yaml:"kind"`
	Status    ProbeStatus    `json:"status" yaml:"status"`
	Message   string         `json:"message" yaml:"message"`
	Latency   time.Duration  `json:"latency" yaml:"latency"`
	Detail    map[string]any `json:"detail,omitempty" yaml:"detail,omitempty"`
	Err       error          `json:"-" yaml:"-"`
	CheckedAt time.Time      `json:"checked_at,omitempty" yaml:"checked_at,omitempty"`
}

// DiagnosticsState is an immutable snapshot of every probe.
type DiagnosticsState struct {
	Probes []ProbeResult
}

// Probe returns the result for kind.
func (s DiagnosticsState) Probe(kind ProbeKind) ProbeResult {
	for _, p := range s.Probes {
		if p.Kind == kind {
			return p
		}
	}
	return ProbeResult{Kind: kind, Status: StatusIdle}
}

// Testing reports whether any probe is running.
func (s DiagnosticsState) Testing() bool {
	for _, p := range s.Probes {
		if p.Status == StatusTesting {
			return true
		}
	}
	return false
}

// Diagnostics runs connection probes against the store.
type Diagnostics struct {
	svc             service.Service
	probeTimeout    time.Duration
	endpointTimeout time.Duration
	log             *logging.Logger

	mu      sync.Mutex
	results map[ProbeKind]ProbeResult

	subs notifier[DiagnosticsState]
}

// DiagnosticsOption configures a Diagnostics.
type DiagnosticsOption func(*Diagnostics)

// WithProbeTimeout bounds each probe as a whole.
func WithProbeTimeout(d time.Duration) DiagnosticsOption {
	return func(dg *Diagnostics) {
		dg.probeTimeout = d
	}
}

// WithEndpointTimeout bounds each sub-call of the endpoint-set probe.
func WithEndpointTimeout(d time.Duration) DiagnosticsOption {
	return func(dg *Diagnostics) {
		dg.endpointTimeout = d
	}
}

// WithDiagnosticsLogger sets the logger.
func WithDiagnosticsLogger(l *logging.Logger) DiagnosticsOption {
	return func(dg *Diagnostics) {
		if l != nil {
			dg.log = l.WithComponent("diagnostics")
		}
	}
}

// NewDiagnostics creates a controller with every probe idle.
func NewDiagnostics(svc service.Service, opts ...DiagnosticsOption) *Diagnostics {
	dg := &Diagnostics{
		svc:             svc,
		probeTimeout:    DefaultProbeTimeout,
		endpointTimeout: DefaultEndpointTimeout,
		log:             logging.NopLogger(),
		results:         make(map[ProbeKind]ProbeResult),
	}
	for _, opt := range opts {
		opt(dg)
	}
	for _, k := range ProbeKinds {
		dg.results[k] = ProbeResult{Kind: k, Status: StatusIdle, Message: "Not tested"}
	}
	return dg
}

// Subscribe registers fn to receive a snapshot after every state change.
func (dg *Diagnostics) Subscribe(fn func(DiagnosticsState)) (unsubscribe func()) {
	return dg.subs.subscribe(fn)
}

// State returns the current snapshot.
func (dg *Diagnostics) State() DiagnosticsState {
	dg.mu.Lock()
	defer dg.mu.Unlock()
	return dg.snapshotLocked()
}

func (dg *Diagnostics) snapshotLocked() DiagnosticsState {
	s := DiagnosticsState{Probes: make([]ProbeResult, 0, len(ProbeKinds))}
	for _, k := range ProbeKinds {
		s.Probes = append(s.Probes, dg.results[k])
	}
	return s
}

func (dg *Diagnostics) unlockAndPublish() {
	s, seq := dg.snapshotLocked(), dg.subs.stamp()
	dg.mu.Unlock()
	dg.subs.publish(seq, s)
}

// Run executes one probe. It fails with ErrProbeInProgress if the probe is
// already testing. A failed probe is reported through the result and its Err.
func (dg *Diagnostics) Run(ctx context.Context, kind ProbeKind) (ProbeResult, error) {
	dg.mu.Lock()
	prev, ok := dg.results[kind]
	if !ok {
		dg.mu.Unlock()
		return ProbeResult{}, errors.NewValidationError("diagnostics", "probe", fmt.Errorf("unknown probe %q", kind))
	}
	if prev.Status == StatusTesting {
		dg.mu.Unlock()
		return ProbeResult{}, errors.ErrProbeInProgress
	}
	dg.results[kind] = ProbeResult{Kind: kind, Status: StatusTesting, Message: "Testing...", CheckedAt: prev.CheckedAt}
	dg.unlockAndPublish()

	ctx, cancel := context.WithTimeout(ctx, dg.probeTimeout)
	defer cancel()

	var res ProbeResult
	switch kind {
	case ProbeService:
		res = dg.probeService(ctx)
	case ProbeDataLayer:
		res = dg.probeDataLayer(ctx)
	case ProbeEndpoints:
		res = dg.probeEndpoints(ctx)
	}
	res.Kind = kind
	res.CheckedAt = time.Now()

	dg.mu.Lock()
	dg.results[kind] = res
	dg.unlockAndPublish()

	dg.log.Info("probe finished", "probe", string(kind), "status", string(res.Status), "latency_ms", res.Latency.Milliseconds())
	return res, res.Err
}

// RunAll runs the service, data-layer and endpoint-set probes one after the
// other. It is refused while any probe is testing. Probe failures are
// reported in the results, not as the returned error.
func (dg *Diagnostics) RunAll(ctx context.Context) ([]ProbeResult, error) {
	if dg.State().Testing() {
		return nil, errors.ErrProbeInProgress
	}
	results := make([]ProbeResult, 0, len(ProbeKinds))
	for _, k := range ProbeKinds {
		res, err := dg.Run(ctx, k)
		if errors.Is(err, errors.ErrProbeInProgress) {
			return results, err
		}
		results = append(results, res)
	}
	return results, nil
}

func (dg *Diagnostics) probeService(ctx context.Context) ProbeResult {
	start := time.Now()
	h, err := dg.svc.CheckHealth(ctx)
	latency := time.Since(start)
	if err != nil {
		return failedProbe(err, latency)
	}

	detail := h.Raw
	if detail == nil {
		detail = map[string]any{"status": h.Status}
		if h.Database != "" {
			detail["database"] = h.Database
		}
	}
	msg := fmt.Sprintf("Backend responded: %s", h.Status)
	if h.Status == "" {
		msg = "Backend responded"
	}
	if !h.Healthy() && h.Error != "" {
		msg = fmt.Sprintf("%s (%s)", msg, h.Error)
	}
	return ProbeResult{Status: StatusSuccess, Message: msg, Latency: latency, Detail: detail}
}

func (dg *Diagnostics) probeDataLayer(ctx context.Context) ProbeResult {
	start := time.Now()
	tasks, err := dg.svc.ListTasks(ctx)
	latency := time.Since(start)
	if err != nil {
		return failedProbe(err, latency)
	}

	sample := tasks
	if len(sample) > 2 {
		sample = sample[:2]
	}
	return ProbeResult{
		Status:  StatusSuccess,
		Message: fmt.Sprintf("Data layer reachable, %d tasks", len(tasks)),
		Latency: latency,
		Detail:  map[string]any{"task_count": len(tasks), "sample": sample},
	}
}

type endpointCheck struct {
	name string
	call func(context.Context) error
}

type endpointResult struct {
	name string
	err  error
}

func (dg *Diagnostics) probeEndpoints(ctx context.Context) ProbeResult {
	checks := []endpointCheck{
		{"health", func(ctx context.Context) error { _, err := dg.svc.CheckHealth(ctx); return err }},
		{"test", func(ctx context.Context) error { _, err := dg.svc.Ping(ctx); return err }},
		{"tasks", func(ctx context.Context) error { _, err := dg.svc.ListTasks(ctx); return err }},
	}

	start := time.Now()
	p := pool.NewWithResults[endpointResult]()
	for _, c := range checks {
		p.Go(func() endpointResult {
			ctx, cancel := context.WithTimeout(ctx, dg.endpointTimeout)
			defer cancel()
			return endpointResult{name: c.name, err: c.call(ctx)}
		})
	}
	results := p.Wait()
	latency := time.Since(start)

	byName := make(map[string]error, len(results))
	for _, r := range results {
		byName[r.name] = r.err
	}

	detail := make(map[string]any, len(checks))
	var failures []error
	working := 0
	for _, c := range checks {
		if err := byName[c.name]; err != nil {
			detail[c.name] = errors.UserMessage(err)
			failures = append(failures, fmt.Errorf("%s: %w", c.name, err))
			continue
		}
		detail[c.name] = "ok"
		working++
	}

	res := ProbeResult{
		Status:  StatusSuccess,
		Message: fmt.Sprintf("%d/%d endpoints working", working, len(checks)),
		Latency: latency,
		Detail:  detail,
	}
	if len(failures) > 0 {
		res.Status = StatusError
		res.Err = errors.Join(failures...)
	}
	return res
}

func failedProbe(err error, latency time.Duration) ProbeResult {
	return ProbeResult{
		Status:  StatusError,
		Message: errors.UserMessage(err),
		Latency: latency,
		Err:     err,
	}
}
