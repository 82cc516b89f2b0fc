// Package anticaptcha drives image recognition tasks on an anti-captcha compatible solving service.
package anticaptcha

import (
	"context"
	"encoding/base64"
	"net/http"
	"strings"
	"time"

	"catalogscraper/internal/components/chrono"
	"catalogscraper/internal/components/telemetry"

	"github.com/go-resty/resty/v2"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
)

const (
	report_task_run        = "task.run"
	report_task_check      = "task.check"
	report_task_invalidate = "task.invalidate"
	report_client_solve    = "client.solve"
	report_client_balance  = "client.balance"
)

const DefaultBaseUrl = "https://api.anti-captcha.com/"

var tracer = otel.Tracer("catalogscraper/anticaptcha")
var meter = otel.Meter("catalogscraper/anticaptcha")
var tasksCounter, _ = meter.Int64Counter("captcha_tasks")
var invalidationsCounter, _ = meter.Int64Counter("captcha_invalidations")
var costHistogram, _ = meter.Float64Histogram("captcha_cost")

// Timing controls the automatic polling of a task.
type Timing struct {
	// InitialDelay is waited after submission before the first check.
	InitialDelay time.Duration
	// PollInterval is waited between automatic checks.
	PollInterval time.Duration
	// MaxChecks is the number of automatic checks after which a still processing task fails with
	// ErrTimeout.
	MaxChecks int
}

func DefaultTiming() Timing {
	return Timing{
		InitialDelay: 10 * time.Second,
		PollInterval: 5 * time.Second,
		MaxChecks:    5,
	}
}

type Options struct {
	ApiKey  string
	BaseUrl string
	Timing  Timing
	// Timeout bounds every request to the service, 30 seconds when zero.
	Timeout time.Duration
	Clock   chrono.API
}

// Client submits images to the solving service. A Client may be shared by any number of tasks.
type Client struct {
	api    api
	tel    telemetry.API
	clock  chrono.API
	timing Timing
}

func NewClient(tel telemetry.API, opts Options) *Client {
	if opts.BaseUrl == "" {
		opts.BaseUrl = DefaultBaseUrl
	}
	if opts.Timeout == 0 {
		opts.Timeout = 30 * time.Second
	}
	if opts.Clock == nil {
		opts.Clock = chrono.NewStandardImpl()
	}
	defaults := DefaultTiming()
	if opts.Timing.InitialDelay <= 0 {
		opts.Timing.InitialDelay = defaults.InitialDelay
	}
	if opts.Timing.PollInterval <= 0 {
		opts.Timing.PollInterval = defaults.PollInterval
	}
	if opts.Timing.MaxChecks <= 0 {
		opts.Timing.MaxChecks = defaults.MaxChecks
	}

	tel = telemetry.NewScopedAPI("anticaptcha", tel)

	client := resty.New()
	client.SetBaseURL(opts.BaseUrl)
	client.SetTimeout(opts.Timeout)
	telemetry.InstrumentResty(client, tel)

	return &Client{
		api: api{
			http: client,
			key:  opts.ApiKey,
			tel:  tel,
		},
		tel:    tel,
		clock:  opts.Clock,
		timing: opts.Timing,
	}
}

// Solve validates image and starts a task for it. The task runs until it is terminal or ctx is done,
// cancelling ctx fails the task with ctx's error.
func (c *Client) Solve(ctx context.Context, image []byte) (*Task, error) {
	if len(image) == 0 || !strings.HasPrefix(http.DetectContentType(image), "image/") {
		c.tel.ReportWarning(report_client_solve, ErrInvalidImage)
		return nil, ErrInvalidImage
	}
	task := newTask(c, base64.StdEncoding.EncodeToString(image))
	go task.run(ctx)
	return task, nil
}

// SolveWait starts a task for image and blocks until it is terminal.
func (c *Client) SolveWait(ctx context.Context, image []byte) (string, Metrics, error) {
	task, err := c.Solve(ctx, image)
	if err != nil {
		return "", Metrics{}, err
	}
	return task.Wait(ctx)
}

// Balance returns the account balance of the configured key.
func (c *Client) Balance(ctx context.Context) (float64, error) {
	ctx, span := tracer.Start(ctx, "client:balance")
	defer span.End()

	balance, err := c.api.getBalance(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		c.tel.ReportBroken(report_client_balance, err)
		return 0, err
	}
	return balance, nil
}
