// Package gord scrapes the catalog of houseofgord.com: it logs in through the captcha gated login
// form and then crawls the listing pages with the session's cookies.
package gord

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"catalogscraper/internal/components/assert"
	"catalogscraper/internal/components/telemetry"
	"catalogscraper/internal/session"

	cloudflarebp "github.com/DaRealFreak/cloudflare-bp-go"
	"github.com/PuerkitoBio/goquery"
	"github.com/go-resty/resty/v2"
	"golang.org/x/time/rate"
)

const DefaultBaseUrl = "https://www.houseofgord.com/"

const (
	path_login        = "sessions/login"
	path_captcha      = "sessions/display_captcha"
	path_authenticate = "sessions/authenticate"

	cookie_legal_accepted = "legal_accepted2"
	cookie_session        = "_hofg_session_v2"
	cookie_user_token     = "user_token2"
)

const (
	report_client_get  = "client.get"
	report_client_post = "client.post-form"
)

type Options struct {
	BaseUrl string
	// Timeout bounds every request, 30 seconds when zero.
	Timeout time.Duration
	// RequestsPerSecond limits the request rate across the client, 2 when zero.
	RequestsPerSecond float64
	CloudflareBypass  bool
	UserAgent         string
}

// Client talks to the site. Every request carries the rendered jar as its cookie header, the jar is the
// only cookie store.
type Client struct {
	BaseUrl *url.URL
	Http    *resty.Client
	Jar     *session.Jar

	tel telemetry.API
}

func NewClient(jar *session.Jar, tel telemetry.API, opts Options) (*Client, error) {
	assert.NotNil(tel)

	tel = telemetry.NewScopedAPI("gord_scraper", tel)

	if opts.BaseUrl == "" {
		opts.BaseUrl = DefaultBaseUrl
	}
	if opts.Timeout == 0 {
		opts.Timeout = 30 * time.Second
	}
	if opts.RequestsPerSecond == 0 {
		opts.RequestsPerSecond = 2
	}
	if opts.UserAgent == "" {
		opts.UserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/123.0.0.0 Safari/537.36"
	}
	if jar == nil {
		jar = session.NewJar()
	}
	if _, ok := jar.Get(cookie_legal_accepted); !ok {
		jar.Set(cookie_legal_accepted, "yes")
	}

	parsedBaseUrl, err := url.Parse(opts.BaseUrl)
	if err != nil {
		return nil, err
	}

	httpClient := resty.New()
	httpClient.SetBaseURL(opts.BaseUrl)
	httpClient.SetCookieJar(nil)
	if opts.CloudflareBypass {
		httpClient.GetClient().Transport = cloudflarebp.AddCloudFlareByPass(httpClient.GetClient().Transport)
	}
	httpClient.SetHeader("user-agent", opts.UserAgent)
	// set-cookie headers of redirects must be seen by the caller
	httpClient.SetRedirectPolicy(resty.RedirectPolicyFunc(func(*http.Request, []*http.Request) error {
		return http.ErrUseLastResponse
	}))
	httpClient.SetTimeout(opts.Timeout)

	burst := max(int(opts.RequestsPerSecond), 1)
	rateLimiter := rate.NewLimiter(rate.Limit(opts.RequestsPerSecond), burst)
	httpClient.OnBeforeRequest(func(_ *resty.Client, req *resty.Request) error {
		return rateLimiter.Wait(req.Context())
	})

	telemetry.InstrumentResty(httpClient, tel)

	return &Client{
		BaseUrl: parsedBaseUrl,
		Http:    httpClient,
		Jar:     jar,
		tel:     tel,
	}, nil
}

// Get fetches endpoint (relative to the base url or absolute) and fails with a TransportError unless the
// site answers 200.
func (c *Client) Get(ctx context.Context, endpoint string) (*resty.Response, error) {
	res, err := c.Http.R().
		SetContext(ctx).
		SetHeader("cookie", c.Jar.Render()).
		Get(endpoint)
	if err != nil {
		c.tel.ReportBroken(report_client_get, fmt.Errorf("fetch: %w", err), endpoint)
		return nil, &TransportError{Endpoint: endpoint, Err: err}
	}
	if res.StatusCode() != http.StatusOK {
		c.tel.ReportWarning(report_client_get, endpoint, res.Status())
		return nil, &TransportError{Endpoint: endpoint, StatusCode: res.StatusCode()}
	}
	return res, nil
}

// GetDocument fetches endpoint and parses it as html.
func (c *Client) GetDocument(ctx context.Context, endpoint string) (*goquery.Document, *resty.Response, error) {
	res, err := c.Get(ctx, endpoint)
	if err != nil {
		return nil, nil, err
	}
	doc, err := goquery.NewDocumentFromReader(bytes.NewBuffer(res.Body()))
	if err != nil {
		c.tel.ReportBroken(report_client_get, fmt.Errorf("parse: %w", err), endpoint)
		return nil, nil, err
	}
	return doc, res, nil
}

// PostForm posts an already url-encoded body. The response status is not checked: the site answers
// a login post with a redirect whichever way it went.
func (c *Client) PostForm(ctx context.Context, endpoint, body string) (*resty.Response, error) {
	res, err := c.Http.R().
		SetContext(ctx).
		SetHeader("cookie", c.Jar.Render()).
		SetHeader("content-type", "application/x-www-form-urlencoded").
		SetBody(body).
		Post(endpoint)
	if err != nil {
		c.tel.ReportBroken(report_client_post, fmt.Errorf("fetch: %w", err), endpoint)
		return nil, &TransportError{Endpoint: endpoint, Err: err}
	}
	return res, nil
}

// Resolve makes ref absolute against the base url.
func (c *Client) Resolve(ref string) (string, error) {
	parsed, err := url.Parse(ref)
	if err != nil {
		return "", err
	}
	return c.BaseUrl.ResolveReference(parsed).String(), nil
}
