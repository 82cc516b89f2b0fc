package anticaptcha

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

type State int

const (
	StateCreated State = iota
	StateSubmitted
	StatePolling
	StateSolved
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateCreated:
		return "created"
	case StateSubmitted:
		return "submitted"
	case StatePolling:
		return "polling"
	case StateSolved:
		return "solved"
	case StateFailed:
		return "failed"
	}
	return fmt.Sprintf("state(%d)", int(s))
}

func (s State) Terminal() bool {
	return s == StateSolved || s == StateFailed
}

type EventKind int

const (
	EventSubmitted EventKind = iota
	EventChecking
	EventSolved
	EventFailed
	EventInvalidated
)

func (k EventKind) String() string {
	switch k {
	case EventSubmitted:
		return "submitted"
	case EventChecking:
		return "checking"
	case EventSolved:
		return "solved"
	case EventFailed:
		return "failed"
	case EventInvalidated:
		return "invalidated"
	}
	return fmt.Sprintf("event(%d)", int(k))
}

// Event is a lifecycle notification of a Task. Only the fields relevant to Kind are set.
type Event struct {
	Kind   EventKind
	TaskId int64
	// Attempt is the number of automatic checks performed before this one (EventChecking).
	Attempt  int
	Solution string
	Metrics  Metrics
	Err      error
}

// Metrics is the accounting the service reports alongside a solution.
type Metrics struct {
	Cost       float64
	CreateTime time.Time
	EndTime    time.Time
	TookTime   time.Duration
	Workers    int
}

func metricsFromResult(res taskResultResponse) Metrics {
	created := time.Unix(res.CreateTime, 0)
	ended := time.Unix(res.EndTime, 0)
	return Metrics{
		Cost:       float64(res.Cost),
		CreateTime: created,
		EndTime:    ended,
		TookTime:   ended.Sub(created),
		Workers:    res.SolveCount,
	}
}

// Task is one image submitted for recognition. It moves through
// created -> submitted -> polling -> (solved | failed) on its own goroutine, started by Client.Solve.
//
// Exactly one terminal event is ever published. Subscribers receive every event published so far
// followed by live events, in order.
type Task struct {
	client *Client
	image  string
	done   chan struct{}

	// deliverMu serializes publication so every subscriber sees the same order.
	deliverMu sync.Mutex

	mu          sync.Mutex
	state       State
	id          int64
	checks      int
	solution    string
	metrics     Metrics
	cause       error
	invalidated bool
	history     []Event
	subscribers []func(Event)
}

func newTask(client *Client, image string) *Task {
	return &Task{
		client: client,
		image:  image,
		done:   make(chan struct{}),
		state:  StateCreated,
	}
}

// Image returns the base64 payload that was submitted.
func (t *Task) Image() string {
	return t.image
}

// ID returns the service's task id, 0 until the task has been submitted.
func (t *Task) ID() int64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.id
}

func (t *Task) State() State {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state
}

// Checks returns the number of automatic checks performed so far.
func (t *Task) Checks() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.checks
}

// Result returns the solution and metrics of a solved task, or the failure cause of a failed one. ok
// is false while the task is still in flight.
func (t *Task) Result() (solution string, metrics Metrics, ok bool, err error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.state.Terminal() {
		return "", Metrics{}, false, nil
	}
	return t.solution, t.metrics, true, t.cause
}

// Done is closed once the task reaches a terminal state.
func (t *Task) Done() <-chan struct{} {
	return t.done
}

// Wait blocks until the task is terminal or ctx is done.
func (t *Task) Wait(ctx context.Context) (string, Metrics, error) {
	select {
	case <-t.done:
	case <-ctx.Done():
		return "", Metrics{}, ctx.Err()
	}
	solution, metrics, _, err := t.Result()
	return solution, metrics, err
}

// Subscribe registers fn for every event of the task. Events already published are replayed to fn
// before Subscribe returns. fn runs on the publishing goroutine and must not call Subscribe, Check or
// Invalidate on the same task.
func (t *Task) Subscribe(fn func(Event)) {
	t.deliverMu.Lock()
	defer t.deliverMu.Unlock()

	t.mu.Lock()
	history := slices.Clone(t.history)
	t.subscribers = append(t.subscribers, fn)
	t.mu.Unlock()

	for _, ev := range history {
		fn(ev)
	}
}

// publish applies mutate under the state lock and, if it reports a change, records ev and delivers it
// to every subscriber.
func (t *Task) publish(ev Event, mutate func() bool) bool {
	t.deliverMu.Lock()
	defer t.deliverMu.Unlock()

	t.mu.Lock()
	if !mutate() {
		t.mu.Unlock()
		return false
	}
	t.history = append(t.history, ev)
	subscribers := slices.Clone(t.subscribers)
	t.mu.Unlock()

	for _, fn := range subscribers {
		fn(ev)
	}
	return true
}

func (t *Task) submitted(id int64) bool {
	return t.publish(Event{Kind: EventSubmitted, TaskId: id}, func() bool {
		if t.state != StateCreated {
			return false
		}
		t.state = StateSubmitted
		t.id = id
		return true
	})
}

func (t *Task) startPolling() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.state != StateSubmitted {
		return false
	}
	t.state = StatePolling
	return true
}

func (t *Task) solve(ctx context.Context, solution string, metrics Metrics) bool {
	id := t.ID()
	ok := t.publish(Event{Kind: EventSolved, TaskId: id, Solution: solution, Metrics: metrics}, func() bool {
		if t.state.Terminal() {
			return false
		}
		t.state = StateSolved
		t.solution = solution
		t.metrics = metrics
		close(t.done)
		return true
	})
	if ok {
		tasksCounter.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", "solved")))
		costHistogram.Record(ctx, metrics.Cost)
		t.client.tel.ReportDebug("task solved", id, solution, metrics.Cost)
	}
	return ok
}

func (t *Task) fail(ctx context.Context, cause error) bool {
	id := t.ID()
	ok := t.publish(Event{Kind: EventFailed, TaskId: id, Err: cause}, func() bool {
		if t.state.Terminal() {
			return false
		}
		t.state = StateFailed
		t.cause = cause
		close(t.done)
		return true
	})
	if ok {
		tasksCounter.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", "failed")))
		t.client.tel.ReportWarning(report_task_run, id, cause)
	}
	return ok
}

func (t *Task) run(ctx context.Context) {
	ctx, span := tracer.Start(ctx, "task:run")
	defer span.End()

	id, err := t.client.api.createTask(ctx, t.image)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "create task")
		t.fail(ctx, err)
		return
	}
	span.SetAttributes(attribute.Int64("task_id", id))
	if !t.submitted(id) {
		return
	}

	if !t.sleep(ctx, t.client.timing.InitialDelay) {
		return
	}
	if !t.startPolling() {
		return
	}

	for {
		if t.check(ctx, false) {
			break
		}
		if !t.sleep(ctx, t.client.timing.PollInterval) {
			return
		}
	}

	if _, _, _, cause := t.Result(); cause != nil {
		span.RecordError(cause)
		span.SetStatus(codes.Error, "task failed")
	}
}

// sleep waits d on the client's clock. A cancelled ctx fails the task.
func (t *Task) sleep(ctx context.Context, d time.Duration) bool {
	select {
	case <-ctx.Done():
		t.fail(ctx, ctx.Err())
		return false
	case <-t.client.clock.After(d):
		return true
	}
}

// Check asks the service for the task's result immediately. It only has an effect while the task is
// polling: on a terminal task it is a no-op. A manual check that finds the task still processing
// leaves the automatic schedule and the check counter untouched. If ctx ends before the service
// answers, the check is abandoned and the task keeps polling.
func (t *Task) Check(ctx context.Context) {
	ctx, span := tracer.Start(ctx, "task:check", trace.WithAttributes(attribute.Int64("task_id", t.ID())))
	defer span.End()
	t.check(ctx, true)
}

// check performs one getTaskResult round and reports whether the task is terminal afterwards.
func (t *Task) check(ctx context.Context, manual bool) bool {
	t.mu.Lock()
	if t.state != StatePolling {
		terminal := t.state.Terminal()
		t.mu.Unlock()
		return terminal
	}
	id := t.id
	attempt := t.checks
	t.mu.Unlock()

	t.publish(Event{Kind: EventChecking, TaskId: id, Attempt: attempt}, func() bool {
		return t.state == StatePolling
	})

	res, err := t.client.api.getTaskResult(ctx, id)
	if err != nil && manual && ctx.Err() != nil {
		t.client.tel.ReportWarning(report_task_check, id, fmt.Sprintf("manual check abandoned: %v", ctx.Err()))
		return t.State().Terminal()
	}

	checks := attempt
	if !manual {
		t.mu.Lock()
		t.checks++
		checks = t.checks
		t.mu.Unlock()
	}
	if err != nil {
		t.fail(ctx, err)
		return true
	}

	if res.Status == status_ready {
		t.solve(ctx, res.Solution.Text, metricsFromResult(res))
		return true
	}
	if res.Status != status_processing {
		t.client.tel.ReportWarning(report_task_check, id, fmt.Sprintf("unexpected status %q", res.Status))
	}
	if manual {
		return t.State().Terminal()
	}
	if checks >= t.client.timing.MaxChecks {
		t.fail(ctx, fmt.Errorf("%w after %d checks", ErrTimeout, checks))
		return true
	}
	return false
}

// Invalidate reports the task's answer as wrong to the service. The invalidated event is published and
// the report sent at most once per task. A task that never received an id returns ErrNotSubmitted.
func (t *Task) Invalidate(ctx context.Context) error {
	ctx, span := tracer.Start(ctx, "task:invalidate")
	defer span.End()

	t.mu.Lock()
	id := t.id
	if id == 0 {
		t.mu.Unlock()
		return ErrNotSubmitted
	}
	if t.invalidated {
		t.mu.Unlock()
		return nil
	}
	t.invalidated = true
	t.mu.Unlock()

	span.SetAttributes(attribute.Int64("task_id", id))
	t.publish(Event{Kind: EventInvalidated, TaskId: id}, func() bool { return true })
	invalidationsCounter.Add(ctx, 1)

	err := t.client.api.reportIncorrect(ctx, id)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		t.client.tel.ReportWarning(report_task_invalidate, id, err)
		return err
	}
	return nil
}

// Invalidated reports whether Invalidate has been called on a submitted task.
func (t *Task) Invalidated() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.invalidated
}
