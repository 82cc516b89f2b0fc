package anticaptcha

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"catalogscraper/internal/anticaptcha/anticaptchatest"
	"catalogscraper/internal/components/chrono"
	"catalogscraper/internal/components/telemetry"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"
)

type eventRecorder struct {
	mu     sync.Mutex
	events []Event
}

func (r *eventRecorder) record(ev Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
}

func (r *eventRecorder) kinds() []EventKind {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]EventKind, len(r.events))
	for i, ev := range r.events {
		out[i] = ev.Kind
	}
	return out
}

func terminalCount(kinds []EventKind) int {
	n := 0
	for _, k := range kinds {
		if k == EventSolved || k == EventFailed {
			n++
		}
	}
	return n
}

// gateClock blocks every timer until the test releases it.
type gateClock struct {
	waits chan time.Duration
	fire  chan time.Time
}

func newGateClock() *gateClock {
	return &gateClock{
		waits: make(chan time.Duration),
		fire:  make(chan time.Time),
	}
}

func (g *gateClock) Now() time.Time {
	return time.Unix(0, 0)
}

func (g *gateClock) After(d time.Duration) <-chan time.Time {
	g.waits <- d
	return g.fire
}

func newTestClient(t *testing.T, server *anticaptchatest.Server, clock chrono.API) *Client {
	t.Helper()
	return NewClient(telemetry.SlogAPI{}, Options{
		ApiKey:  "test-key",
		BaseUrl: server.URL,
		Clock:   clock,
	})
}

func TestTaskSolves(t *testing.T) {
	server := anticaptchatest.NewServer(anticaptchatest.Behavior{
		Solutions:  []string{"48213"},
		Processing: 2,
	})
	defer server.Close()

	clock := chrono.NewFakeImpl(time.Unix(0, 0))
	client := newTestClient(t, server, clock)

	task, err := client.Solve(context.Background(), anticaptchatest.SamplePNG)
	require.NoError(t, err)

	solution, metrics, err := task.Wait(context.Background())
	require.NoError(t, err)
	require.Equal(t, "48213", solution)
	require.Equal(t, StateSolved, task.State())
	require.Equal(t, 3, task.Checks())

	require.InDelta(t, 0.0007, metrics.Cost, 1e-9)
	require.Equal(t, 7*time.Second, metrics.TookTime)
	require.Equal(t, 1, metrics.Workers)

	require.Equal(t, []time.Duration{
		10 * time.Second,
		5 * time.Second,
		5 * time.Second,
	}, clock.Waits())

	recorder := &eventRecorder{}
	task.Subscribe(recorder.record)
	require.Equal(t, []EventKind{
		EventSubmitted,
		EventChecking,
		EventChecking,
		EventChecking,
		EventSolved,
	}, recorder.kinds())

	attempts := []int{}
	for _, ev := range recorder.events {
		require.Equal(t, task.ID(), ev.TaskId)
		if ev.Kind == EventChecking {
			attempts = append(attempts, ev.Attempt)
		}
	}
	require.Equal(t, []int{0, 1, 2}, attempts)
}

func TestCreateTaskPayload(t *testing.T) {
	server := anticaptchatest.NewServer(anticaptchatest.Behavior{Solutions: []string{"11111"}})
	defer server.Close()

	client := newTestClient(t, server, chrono.NewFakeImpl(time.Unix(0, 0)))
	_, _, err := client.SolveWait(context.Background(), anticaptchatest.SamplePNG)
	require.NoError(t, err)

	created := server.Created()
	require.Len(t, created, 1)

	expected := anticaptchatest.CreateRequest{ClientKey: "test-key"}
	expected.Task.Type = "ImageToTextTask"
	expected.Task.Body = "iVBORw0KGgoAAAANSUhEUgAAAAEAAAAB"
	expected.Task.Numeric = 2
	expected.Task.MinLength = 5
	expected.Task.MaxLength = 5

	diff := cmp.Diff(expected, created[0])
	if diff != "" {
		t.Fatal("unexpected createTask payload", diff)
	}
}

func TestTaskTimesOutAfterMaxChecks(t *testing.T) {
	server := anticaptchatest.NewServer(anticaptchatest.Behavior{NeverReady: true})
	defer server.Close()

	clock := chrono.NewFakeImpl(time.Unix(0, 0))
	client := newTestClient(t, server, clock)

	task, err := client.Solve(context.Background(), anticaptchatest.SamplePNG)
	require.NoError(t, err)

	_, _, err = task.Wait(context.Background())
	require.ErrorIs(t, err, ErrTimeout)
	require.True(t, Retryable(err))
	require.Equal(t, StateFailed, task.State())
	require.Equal(t, 5, task.Checks())
	require.Equal(t, 5, server.Checks(task.ID()))
	require.Len(t, clock.Waits(), 5)

	recorder := &eventRecorder{}
	task.Subscribe(recorder.record)
	kinds := recorder.kinds()
	require.Equal(t, 1, terminalCount(kinds))
	require.Equal(t, EventFailed, kinds[len(kinds)-1])
}

func TestTaskServiceErrorOnCreate(t *testing.T) {
	server := anticaptchatest.NewServer(anticaptchatest.Behavior{
		CreateErr: &anticaptchatest.ServiceErr{
			Id:          2,
			Code:        "ERROR_NO_SLOT_AVAILABLE",
			Description: "No idle workers are available at the moment.",
		},
	})
	defer server.Close()

	client := newTestClient(t, server, chrono.NewFakeImpl(time.Unix(0, 0)))
	task, err := client.Solve(context.Background(), anticaptchatest.SamplePNG)
	require.NoError(t, err)

	_, _, err = task.Wait(context.Background())
	var serviceErr *ServiceError
	require.ErrorAs(t, err, &serviceErr)
	require.Equal(t, "ERROR_NO_SLOT_AVAILABLE", serviceErr.ErrorCode)
	require.True(t, Retryable(err))

	require.Equal(t, int64(0), task.ID())
	require.ErrorIs(t, task.Invalidate(context.Background()), ErrNotSubmitted)
	require.False(t, task.Invalidated())
	require.Empty(t, server.Reported())
}

func TestTaskTransportErrorIsFatal(t *testing.T) {
	server := anticaptchatest.NewServer(anticaptchatest.Behavior{})
	url := server.URL
	server.Close()

	client := NewClient(telemetry.SlogAPI{}, Options{
		ApiKey:  "test-key",
		BaseUrl: url,
		Clock:   chrono.NewFakeImpl(time.Unix(0, 0)),
	})
	task, err := client.Solve(context.Background(), anticaptchatest.SamplePNG)
	require.NoError(t, err)

	_, _, err = task.Wait(context.Background())
	var transportErr *TransportError
	require.ErrorAs(t, err, &transportErr)
	require.False(t, Retryable(err))
}

func TestManualCheckOnTerminalTaskIsNoop(t *testing.T) {
	server := anticaptchatest.NewServer(anticaptchatest.Behavior{Solutions: []string{"22222"}})
	defer server.Close()

	client := newTestClient(t, server, chrono.NewFakeImpl(time.Unix(0, 0)))
	task, err := client.Solve(context.Background(), anticaptchatest.SamplePNG)
	require.NoError(t, err)
	_, _, err = task.Wait(context.Background())
	require.NoError(t, err)

	before := server.Checks(task.ID())
	task.Check(context.Background())
	task.Check(context.Background())
	require.Equal(t, before, server.Checks(task.ID()))

	recorder := &eventRecorder{}
	task.Subscribe(recorder.record)
	require.Equal(t, 1, terminalCount(recorder.kinds()))
	require.Equal(t, StateSolved, task.State())
}

func TestManualCheckWhileProcessing(t *testing.T) {
	server := anticaptchatest.NewServer(anticaptchatest.Behavior{Processing: 100})
	defer server.Close()

	clock := newGateClock()
	client := newTestClient(t, server, clock)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	task, err := client.Solve(ctx, anticaptchatest.SamplePNG)
	require.NoError(t, err)

	require.Equal(t, 10*time.Second, <-clock.waits)
	clock.fire <- time.Unix(10, 0)
	// the first automatic check has completed once the poll interval is requested
	require.Equal(t, 5*time.Second, <-clock.waits)
	require.Equal(t, StatePolling, task.State())
	require.Equal(t, 1, task.Checks())

	task.Check(context.Background())
	require.Equal(t, StatePolling, task.State())
	require.Equal(t, 1, task.Checks())
	require.Equal(t, 2, server.Checks(task.ID()))

	cancel()
	_, _, err = task.Wait(context.Background())
	require.ErrorIs(t, err, context.Canceled)
	require.Equal(t, StateFailed, task.State())
}

func TestLateSubscriberReceivesHistory(t *testing.T) {
	server := anticaptchatest.NewServer(anticaptchatest.Behavior{Processing: 100})
	defer server.Close()

	clock := newGateClock()
	client := newTestClient(t, server, clock)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	task, err := client.Solve(ctx, anticaptchatest.SamplePNG)
	require.NoError(t, err)
	<-clock.waits

	early := &eventRecorder{}
	task.Subscribe(early.record)
	require.Equal(t, []EventKind{EventSubmitted}, early.kinds())

	clock.fire <- time.Unix(10, 0)
	<-clock.waits
	cancel()
	_, _, err = task.Wait(context.Background())
	require.Error(t, err)

	late := &eventRecorder{}
	task.Subscribe(late.record)
	require.Equal(t, early.kinds(), late.kinds())
	require.Equal(t, []EventKind{EventSubmitted, EventChecking, EventFailed}, late.kinds())
}

func TestInvalidateOnce(t *testing.T) {
	server := anticaptchatest.NewServer(anticaptchatest.Behavior{Solutions: []string{"33333"}})
	defer server.Close()

	client := newTestClient(t, server, chrono.NewFakeImpl(time.Unix(0, 0)))
	task, err := client.Solve(context.Background(), anticaptchatest.SamplePNG)
	require.NoError(t, err)
	_, _, err = task.Wait(context.Background())
	require.NoError(t, err)

	require.NoError(t, task.Invalidate(context.Background()))
	require.NoError(t, task.Invalidate(context.Background()))
	require.True(t, task.Invalidated())
	require.Equal(t, []int64{task.ID()}, server.Reported())

	recorder := &eventRecorder{}
	task.Subscribe(recorder.record)
	invalidations := 0
	for _, k := range recorder.kinds() {
		if k == EventInvalidated {
			invalidations++
		}
	}
	require.Equal(t, 1, invalidations)
	require.Equal(t, StateSolved, task.State())
}

func TestWaitRespectsContext(t *testing.T) {
	server := anticaptchatest.NewServer(anticaptchatest.Behavior{})
	defer server.Close()

	clock := newGateClock()
	client := newTestClient(t, server, clock)

	runCtx, stop := context.WithCancel(context.Background())
	defer stop()

	task, err := client.Solve(runCtx, anticaptchatest.SamplePNG)
	require.NoError(t, err)
	<-clock.waits

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, _, err = task.Wait(ctx)
	require.True(t, errors.Is(err, context.Canceled))
	require.False(t, task.State().Terminal())
}

func TestTaskServiceErrorWhilePolling(t *testing.T) {
	server := anticaptchatest.NewServer(anticaptchatest.Behavior{
		ResultErr: &anticaptchatest.ServiceErr{
			Id:          12,
			Code:        "ERROR_CAPTCHA_UNSOLVABLE",
			Description: "Captcha could not be solved by 5 different workers",
		},
	})
	defer server.Close()

	client := newTestClient(t, server, chrono.NewFakeImpl(time.Unix(0, 0)))
	task, err := client.Solve(context.Background(), anticaptchatest.SamplePNG)
	require.NoError(t, err)

	_, _, err = task.Wait(context.Background())
	var serviceErr *ServiceError
	require.ErrorAs(t, err, &serviceErr)
	require.Equal(t, 12, serviceErr.ErrorId)
	require.Equal(t, "ERROR_CAPTCHA_UNSOLVABLE", serviceErr.ErrorCode)
	require.True(t, Retryable(err))

	require.Equal(t, StateFailed, task.State())
	require.Equal(t, 1, task.Checks())
	require.Equal(t, 1, server.Requests("getTaskResult"))
	require.NotZero(t, task.ID())

	recorder := &eventRecorder{}
	task.Subscribe(recorder.record)
	kinds := recorder.kinds()
	require.Equal(t, []EventKind{EventSubmitted, EventChecking, EventFailed}, kinds)
	require.Equal(t, 1, terminalCount(kinds))
}

func TestManualCheckWithEndedContextKeepsPolling(t *testing.T) {
	server := anticaptchatest.NewServer(anticaptchatest.Behavior{Processing: 100})
	defer server.Close()

	clock := newGateClock()
	client := newTestClient(t, server, clock)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	task, err := client.Solve(ctx, anticaptchatest.SamplePNG)
	require.NoError(t, err)

	<-clock.waits
	clock.fire <- time.Unix(10, 0)
	<-clock.waits
	require.Equal(t, StatePolling, task.State())

	ended, end := context.WithCancel(context.Background())
	end()
	task.Check(ended)
	require.Equal(t, StatePolling, task.State())
	require.Equal(t, 1, task.Checks())
	_, _, ok, _ := task.Result()
	require.False(t, ok)

	clock.fire <- time.Unix(15, 0)
	<-clock.waits
	require.Equal(t, 2, task.Checks())

	cancel()
	_, _, err = task.Wait(context.Background())
	require.ErrorIs(t, err, context.Canceled)
}
