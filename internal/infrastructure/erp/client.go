package erp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/prostor/erpsync/internal/domain/catalogsync"
	"github.com/prostor/erpsync/internal/infrastructure/telemetry"
)

const maxFeedSize = 64 << 20

// Errors returned while reading feeds
var (
	ErrFeedRequestFailed = errors.New("erp: feed request failed")
	ErrInvalidFeed       = errors.New("erp: invalid feed payload")
)

// FeedObserver records the outcome of every feed request
type FeedObserver interface {
	RecordFeedFetch(ctx context.Context, feed string, d time.Duration, err error)
}

// Client reads barcode-keyed feeds from the 1C HTTP services
type Client struct {
	config     *Config
	httpClient *http.Client
	observer   FeedObserver
	logger     *zap.Logger
}

var _ catalogsync.SourceReader = (*Client)(nil)

// Option configures a Client
type Option func(*Client)

// WithHTTPClient replaces the HTTP client
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// WithObserver reports feed latencies to o
func WithObserver(o FeedObserver) Option {
	return func(c *Client) {
		c.observer = o
	}
}

// WithLogger sets the logger
func WithLogger(logger *zap.Logger) Option {
	return func(c *Client) {
		c.logger = logger
	}
}

// NewClient creates a Client. cfg is validated and defaulted in place.
func NewClient(cfg *Config, opts ...Option) (*Client, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	c := &Client{
		config:     cfg,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		logger:     zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

type feedResponse struct {
	Items map[string]decimal.NullDecimal `json:"Items"`
}

// FetchFeed reads one feed. A payload without Items is an empty feed;
// null values are dropped.
func (c *Client) FetchFeed(ctx context.Context, kind catalogsync.FeedKind, url string) (catalogsync.Feed, error) {
	ctx, span := telemetry.StartSpan(ctx, "erp.fetch_feed",
		telemetry.WithSpanKind(trace.SpanKindClient),
		telemetry.WithAttribute(telemetry.SpanAttrFeedKind, kind.String()),
		telemetry.WithAttribute(telemetry.SpanAttrFeedURL, url),
	)
	defer span.End()

	start := time.Now()
	feed, err := c.fetch(ctx, kind, url)
	if c.observer != nil {
		c.observer.RecordFeedFetch(ctx, kind.String(), time.Since(start), err)
	}
	if err != nil {
		telemetry.RecordError(span, err)
		return catalogsync.Feed{}, err
	}

	telemetry.SetAttributes(span, "items", len(feed.Values))
	c.logger.Info("Fetched ERP feed",
		zap.String("feed", kind.String()),
		zap.String("url", url),
		zap.Int("items", len(feed.Values)),
		zap.Duration("duration", time.Since(start)),
	)
	return feed, nil
}

func (c *Client) fetch(ctx context.Context, kind catalogsync.FeedKind, url string) (catalogsync.Feed, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return catalogsync.Feed{}, fmt.Errorf("%w: %s: %v", ErrFeedRequestFailed, url, err)
	}
	req.Header.Set("Accept", "application/json")
	if c.config.HasCredentials() {
		req.SetBasicAuth(c.config.Username, c.config.Password)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return catalogsync.Feed{}, ctxErr
		}
		return catalogsync.Feed{}, fmt.Errorf("%w: %s: %v", ErrFeedRequestFailed, url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 1<<20))
		return catalogsync.Feed{}, fmt.Errorf("%w: %s: %s", ErrFeedRequestFailed, url, resp.Status)
	}

	var payload feedResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxFeedSize)).Decode(&payload); err != nil {
		return catalogsync.Feed{}, fmt.Errorf("%w: %s: %v", ErrInvalidFeed, url, err)
	}

	values := make(map[catalogsync.Barcode]decimal.Decimal, len(payload.Items))
	for barcode, value := range payload.Items {
		if !value.Valid {
			continue
		}
		values[catalogsync.Barcode(barcode)] = value.Decimal
	}
	return catalogsync.Feed{Kind: kind, Source: url, Values: values}, nil
}

// FetchProductData reads the price, discount and stock feeds concurrently
// and merges them per barcode. Any failing feed fails the whole read.
func (c *Client) FetchProductData(ctx context.Context) (catalogsync.SourceRecords, error) {
	ctx, span := telemetry.StartSpan(ctx, "erp.fetch_product_data")
	defer span.End()

	sources := []struct {
		kind catalogsync.FeedKind
		url  string
	}{
		{catalogsync.FeedKindPrice, c.config.PricesURL},
		{catalogsync.FeedKindDiscount, c.config.DiscountsURL},
		{catalogsync.FeedKindStock, c.config.StockURL},
	}
	feeds := make([]catalogsync.Feed, len(sources))

	g, gctx := errgroup.WithContext(ctx)
	for i, src := range sources {
		g.Go(func() error {
			feed, err := c.FetchFeed(gctx, src.kind, src.url)
			if err != nil {
				return err
			}
			feeds[i] = feed
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}

	records := catalogsync.MergeFeeds(feeds...)
	telemetry.SetAttributes(span, "barcodes", len(records))
	c.logger.Info("Merged ERP product data", zap.Int("barcodes", len(records)))
	return records, nil
}

// FetchCosts reads the cost feeds in priority order and merges them
func (c *Client) FetchCosts(ctx context.Context) (map[catalogsync.Barcode]decimal.Decimal, error) {
	ctx, span := telemetry.StartSpan(ctx, "erp.fetch_costs")
	defer span.End()

	feeds := make([]catalogsync.Feed, 0, len(c.config.CostURLs))
	for _, url := range c.config.CostURLs {
		feed, err := c.FetchFeed(ctx, catalogsync.FeedKindCost, url)
		if err != nil {
			telemetry.RecordError(span, err)
			return nil, err
		}
		feeds = append(feeds, feed)
	}

	costs := catalogsync.MergeFeeds(feeds...).Costs()
	telemetry.SetAttributes(span, "barcodes", len(costs))
	c.logger.Info("Merged ERP costs", zap.Int("feeds", len(feeds)), zap.Int("barcodes", len(costs)))
	return costs, nil
}
