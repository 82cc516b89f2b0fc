package gord

import (
	"context"
	"fmt"
	"math/rand/v2"
	"slices"
	"sync"
	"time"

	"catalogscraper/internal/components/assert"
	"catalogscraper/internal/components/chrono"
	"catalogscraper/internal/components/telemetry"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"
)

const (
	report_crawler_query_meta = "crawler.query-meta"
	report_crawler_query_page = "crawler.query-page"
	report_crawler_videos     = "crawler.videos"
)

type CrawlOptions struct {
	// DelayWindow is the upper bound of the random delay before each page fetch, 2 minutes when zero.
	// A negative window disables the delay.
	DelayWindow time.Duration
	// Concurrency is the number of pages fetched at once, 4 when zero.
	Concurrency int
	Clock       chrono.API
}

// Crawler reads the catalog with an authenticated client. Pages already fetched are kept and not
// fetched again by later queries.
type Crawler struct {
	client      *Client
	clock       chrono.API
	delayWindow time.Duration
	concurrency int
	tel         telemetry.API

	mu    sync.Mutex
	meta  *Meta
	pages map[int][]Shoot
}

func NewCrawler(client *Client, tel telemetry.API, opts CrawlOptions) *Crawler {
	assert.NotNil(client)
	assert.NotNil(tel)

	if opts.DelayWindow == 0 {
		opts.DelayWindow = 2 * time.Minute
	}
	if opts.Concurrency <= 0 {
		opts.Concurrency = 4
	}
	if opts.Clock == nil {
		opts.Clock = chrono.NewStandardImpl()
	}

	return &Crawler{
		client:      client,
		clock:       opts.Clock,
		delayWindow: opts.DelayWindow,
		concurrency: opts.Concurrency,
		tel:         telemetry.NewScopedAPI("gord_scraper", tel),
		pages:       map[int][]Shoot{},
	}
}

// QueryMeta reads the categories and page count from the catalog root, its listings are kept as page 0.
func (c *Crawler) QueryMeta(ctx context.Context) (Meta, error) {
	ctx, span := tracer.Start(ctx, "QueryMeta")
	defer span.End()

	doc, _, err := c.client.GetDocument(ctx, "/")
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return Meta{}, err
	}

	pages, err := parsePageCount(doc)
	if err != nil {
		c.tel.ReportWarning(report_crawler_query_meta, fmt.Errorf("parse page count: %w", err))
	}
	if pages < 1 {
		pages = 1
	}
	meta := Meta{
		Categories: parseCategories(doc),
		Pages:      pages,
	}
	shoots := parseShoots(doc, 0)

	c.mu.Lock()
	c.meta = &meta
	c.pages[0] = shoots
	c.mu.Unlock()

	c.tel.ReportDebug("catalog meta", meta.Pages, len(meta.Categories))
	return meta, nil
}

// Query fetches every page not fetched yet and returns all shoots in page and item order. Each page
// waits a random delay within the delay window first.
func (c *Crawler) Query(ctx context.Context) ([]Shoot, error) {
	c.mu.Lock()
	meta := c.meta
	c.mu.Unlock()
	if meta == nil {
		m, err := c.QueryMeta(ctx)
		if err != nil {
			return nil, err
		}
		meta = &m
	}

	ctx, span := tracer.Start(ctx, "Query", trace.WithAttributes(attribute.Int("pages", meta.Pages)))
	defer span.End()

	pending := []int{}
	c.mu.Lock()
	for i := 0; i < meta.Pages; i++ {
		if _, ok := c.pages[i]; !ok {
			pending = append(pending, i)
		}
	}
	c.mu.Unlock()

	sem := semaphore.NewWeighted(int64(c.concurrency))
	group, groupCtx := errgroup.WithContext(ctx)
	for _, page := range pending {
		group.Go(func() error {
			return c.queryPage(groupCtx, sem, page)
		})
	}
	err := group.Wait()
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	return c.Shoots(), nil
}

func (c *Crawler) queryPage(ctx context.Context, sem *semaphore.Weighted, page int) error {
	if c.delayWindow > 0 {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-c.clock.After(rand.N(c.delayWindow)):
		}
	}

	err := sem.Acquire(ctx, 1)
	if err != nil {
		return err
	}
	defer sem.Release(1)

	ctx, span := tracer.Start(ctx, "queryPage", trace.WithAttributes(attribute.Int("page", page)))
	defer span.End()

	doc, _, err := c.client.GetDocument(ctx, fmt.Sprintf("/?page=%d", page+1))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		c.tel.ReportBroken(report_crawler_query_page, err, page)
		return err
	}
	shoots := parseShoots(doc, page)

	c.mu.Lock()
	c.pages[page] = shoots
	c.mu.Unlock()

	c.tel.ReportDebug("crawled page", page, len(shoots))
	return nil
}

// Shoots returns every shoot fetched so far in page and item order.
func (c *Crawler) Shoots() []Shoot {
	c.mu.Lock()
	defer c.mu.Unlock()

	pages := make([]int, 0, len(c.pages))
	for page := range c.pages {
		pages = append(pages, page)
	}
	slices.Sort(pages)

	shoots := []Shoot{}
	for _, page := range pages {
		shoots = append(shoots, c.pages[page]...)
	}
	return shoots
}

// Videos reads the video files of the shoot page at ref.
func (c *Crawler) Videos(ctx context.Context, ref string) ([]Video, error) {
	ctx, span := tracer.Start(ctx, "Videos", trace.WithAttributes(attribute.String("ref", ref)))
	defer span.End()

	endpoint, err := c.client.Resolve(ref)
	if err != nil {
		c.tel.ReportBroken(report_crawler_videos, fmt.Errorf("resolve ref: %w", err), ref)
		return nil, err
	}
	doc, _, err := c.client.GetDocument(ctx, endpoint)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	return parseVideos(doc), nil
}
