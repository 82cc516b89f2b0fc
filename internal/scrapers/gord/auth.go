package gord

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/url"
	"time"

	"catalogscraper/internal/anticaptcha"
	"catalogscraper/internal/components/assert"
	"catalogscraper/internal/components/telemetry"
	"catalogscraper/internal/session"

	"github.com/PuerkitoBio/goquery"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

const (
	report_authenticator_authenticate = "authenticator.authenticate"
	report_authenticator_attempt      = "authenticator.attempt"
)

var tracer = otel.Tracer("catalogscraper/scrapers/gord")
var meter = otel.Meter("catalogscraper/scrapers/gord")
var authAttemptsCounter, _ = meter.Int64Counter("auth_attempts")

// CaptchaSolver starts a recognition task for a captcha image.
type CaptchaSolver interface {
	Solve(ctx context.Context, image []byte) (*anticaptcha.Task, error)
}

type AuthOptions struct {
	// MaxAttempts is the number of login handshakes tried before giving up, 3 when zero.
	MaxAttempts int
	// Timeout bounds the whole of Authenticate, 5 minutes when zero.
	Timeout  time.Duration
	Detector Detector
}

// Authenticator logs a Client in. On success the client's jar holds the authenticated user cookie.
type Authenticator struct {
	client      *Client
	solver      CaptchaSolver
	detector    Detector
	maxAttempts int
	timeout     time.Duration
	tel         telemetry.API
}

func NewAuthenticator(client *Client, solver CaptchaSolver, tel telemetry.API, opts AuthOptions) *Authenticator {
	assert.NotNil(client)
	assert.NotNil(solver)
	assert.NotNil(tel)

	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = 3
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 5 * time.Minute
	}
	if opts.Detector == nil {
		opts.Detector = DefaultDetector()
	}

	return &Authenticator{
		client:      client,
		solver:      solver,
		detector:    opts.Detector,
		maxAttempts: opts.MaxAttempts,
		timeout:     opts.Timeout,
		tel:         telemetry.NewScopedAPI("gord_scraper", tel),
	}
}

// retryable reports whether a failed attempt may succeed with a fresh captcha.
func retryable(err error) bool {
	return errors.Is(err, ErrCaptchaRejected) || anticaptcha.Retryable(err)
}

// Authenticate runs login handshakes until one yields the user cookie. Invalid credentials, transport
// failures and an expired timeout end it immediately, rejected or unsolved captchas start another
// attempt. The task of each attempt is handed to the next one so a rejected solution gets reported.
func (a *Authenticator) Authenticate(ctx context.Context, username, password string) error {
	ctx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	ctx, span := tracer.Start(ctx, "Authenticate")
	defer span.End()

	var prev *anticaptcha.Task
	var last error
	for attempt := 1; attempt <= a.maxAttempts; attempt++ {
		task, err := a.attempt(ctx, attempt, username, password, prev)
		if err == nil {
			authAttemptsCounter.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", "success")))
			span.SetAttributes(attribute.Int("attempts", attempt))
			return nil
		}
		if !retryable(err) {
			authAttemptsCounter.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", "fatal")))
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			a.tel.ReportBroken(report_authenticator_authenticate, err, attempt)
			return err
		}

		authAttemptsCounter.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", "retry")))
		a.tel.ReportWarning(report_authenticator_authenticate, err, attempt)
		last = err
		prev = task
	}

	err := &ExhaustedError{Attempts: a.maxAttempts, Last: last}
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	a.tel.ReportBroken(report_authenticator_authenticate, err)
	return err
}

// attempt performs one handshake. The returned task is the captcha task created by this attempt, if
// it got that far.
func (a *Authenticator) attempt(
	ctx context.Context,
	n int,
	username,
	password string,
	prev *anticaptcha.Task,
) (*anticaptcha.Task, error) {
	ctx, span := tracer.Start(ctx, "attempt", trace.WithAttributes(attribute.Int("attempt", n)))
	defer span.End()

	fail := func(err error) error {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}

	res, err := a.client.Get(ctx, path_login)
	if err != nil {
		return nil, fail(err)
	}
	page := res.Body()

	if a.detector.InvalidCredentials(page) {
		return nil, fail(ErrInvalidCredentials)
	}
	if prev != nil && a.detector.CaptchaMismatch(page) {
		err := prev.Invalidate(ctx)
		if err != nil {
			a.tel.ReportWarning(report_authenticator_attempt, fmt.Errorf("invalidate previous task: %w", err))
		}
	}

	cookies := session.ParseSetCookie(res.Header().Values("Set-Cookie"))
	if !a.client.Jar.Merge(cookies, cookie_session) {
		a.tel.ReportWarning(report_authenticator_attempt, "login page did not set a session cookie")
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewBuffer(page))
	if err != nil {
		a.tel.ReportBroken(report_authenticator_attempt, fmt.Errorf("parse login page: %w", err))
		return nil, fail(err)
	}
	token := authenticityToken(doc)
	if token == "" {
		a.tel.ReportBroken(report_authenticator_attempt, ErrMissingToken)
		return nil, fail(ErrMissingToken)
	}

	res, err = a.client.Get(ctx, path_captcha)
	if err != nil {
		return nil, fail(err)
	}

	task, err := a.solver.Solve(ctx, res.Body())
	if err != nil {
		return nil, fail(err)
	}
	task.Subscribe(func(ev anticaptcha.Event) {
		a.tel.ReportDebug("captcha task event", n, ev.Kind.String(), ev.TaskId)
	})

	solution, metrics, err := task.Wait(ctx)
	if err != nil {
		return task, fail(err)
	}
	a.tel.ReportDebug("captcha solved", n, solution, metrics.Cost, metrics.TookTime.String())

	res, err = a.client.PostForm(ctx, path_authenticate, loginForm(token, username, password, solution))
	if err != nil {
		return task, fail(err)
	}

	cookies = session.ParseSetCookie(res.Header().Values("Set-Cookie"))
	if !a.client.Jar.Merge(cookies, cookie_user_token) {
		return task, fail(ErrCaptchaRejected)
	}
	return task, nil
}

func authenticityToken(doc *goquery.Document) string {
	return doc.Find("meta[name=csrf-token]").AttrOr("content", "")
}

func loginForm(token, username, password, solution string) string {
	form := url.Values{}
	form.Set("authenticity_token", token)
	form.Set("login", username)
	form.Set("password", password)
	form.Set("captcha", solution)
	return "utf8=%E2%9C%93&commit=Login&" + form.Encode()
}

// Authenticated reports whether the jar carries the user cookie.
func (c *Client) Authenticated() bool {
	_, ok := c.Jar.Get(cookie_user_token)
	return ok
}
