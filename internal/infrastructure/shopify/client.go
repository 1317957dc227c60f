package shopify

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/prostor/erpsync/internal/infrastructure/telemetry"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

const (
	maxResponseSize = 32 << 20
	maxErrorBody    = 1024
	throttledCode   = "THROTTLED"
)

// Executor runs one GraphQL document and decodes its data into out
type Executor interface {
	Execute(ctx context.Context, query string, variables map[string]any, out any) error
}

// ThrottleObserver is notified whenever the client waits on the rate limiter
type ThrottleObserver interface {
	ObserveThrottle(ctx context.Context, wait time.Duration)
	ObserveRateLimited(ctx context.Context)
}

// Client is a rate-aware Admin GraphQL client
type Client struct {
	config     *Config
	httpClient *http.Client
	policy     RetryPolicy
	sleep      Sleeper
	now        func() time.Time
	observer   ThrottleObserver
	logger     *zap.Logger
}

var _ Executor = (*Client)(nil)

// ClientOption configures a Client
type ClientOption func(*Client)

// WithHTTPClient replaces the HTTP client
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// WithSleeper replaces the wait function, mainly for tests
func WithSleeper(s Sleeper) ClientOption {
	return func(c *Client) {
		c.sleep = s
	}
}

// WithClock replaces the time source used for MaxElapsed accounting
func WithClock(now func() time.Time) ClientOption {
	return func(c *Client) {
		c.now = now
	}
}

// WithThrottleObserver reports waits to o
func WithThrottleObserver(o ThrottleObserver) ClientOption {
	return func(c *Client) {
		c.observer = o
	}
}

// WithLogger sets the logger
func WithLogger(logger *zap.Logger) ClientOption {
	return func(c *Client) {
		c.logger = logger
	}
}

// NewClient creates a Client. cfg is validated and defaulted in place.
func NewClient(cfg *Config, opts ...ClientOption) (*Client, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	c := &Client{
		config:     cfg,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		policy:     cfg.Retry,
		sleep:      sleepContext,
		now:        time.Now,
		logger:     zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Policy returns the effective retry policy
func (c *Client) Policy() RetryPolicy {
	return c.policy
}

// Execute posts query with variables and decodes the data field into out.
//
// When the cost extension shows the request exceeded the available budget
// the client waits until enough points are restored and sends it again.
// HTTP 429 and THROTTLED errors wait ErrorDelay before the next attempt.
// Both kinds of retry count against the RetryPolicy. Any other failure,
// including a response without data, waits ErrorDelay once and is returned.
func (c *Client) Execute(ctx context.Context, query string, variables map[string]any, out any) error {
	ctx, span := telemetry.StartSpan(ctx, "shopify.execute",
		telemetry.WithSpanKind(trace.SpanKindClient),
		telemetry.WithAttribute("graphql.operation", operationName(query)),
	)
	defer span.End()

	body, err := json.Marshal(graphQLRequest{Query: query, Variables: variables})
	if err != nil {
		return fmt.Errorf("failed to encode graphql request: %w", err)
	}

	start := c.now()
	for attempt := 1; ; attempt++ {
		resp, err := c.post(ctx, body)
		if err == nil {
			if wait := resp.throttleWait(c.policy.margin()); wait > 0 {
				c.logger.Info("Query cost exceeds available budget, waiting",
					zap.Float64("requested_cost", resp.Extensions.Cost.RequestedQueryCost),
					zap.Float64("currently_available", resp.Extensions.Cost.ThrottleStatus.CurrentlyAvailable),
					zap.Duration("wait", wait),
					zap.Int("attempt", attempt),
				)
				telemetry.AddEvent(span, "throttle_wait", "wait_ms", wait.Milliseconds(), telemetry.SpanAttrAttempt, attempt)
				if c.observer != nil {
					c.observer.ObserveThrottle(ctx, wait)
				}
				if err := c.retryAfter(ctx, attempt, start, wait, ErrThrottled); err != nil {
					telemetry.RecordError(span, err)
					return err
				}
				continue
			}
			if err := decodeData(resp.Data, out); err != nil {
				return c.fail(ctx, span, attempt, err)
			}
			return nil
		}

		if errors.Is(err, ErrRateLimited) {
			c.logger.Warn("Rate limited, retrying",
				zap.Duration("delay", c.policy.ErrorDelay),
				zap.Int("attempt", attempt),
			)
			telemetry.AddEvent(span, "rate_limited", telemetry.SpanAttrAttempt, attempt)
			if c.observer != nil {
				c.observer.ObserveRateLimited(ctx)
			}
			if err := c.retryAfter(ctx, attempt, start, c.policy.ErrorDelay, err); err != nil {
				telemetry.RecordError(span, err)
				return err
			}
			continue
		}

		return c.fail(ctx, span, attempt, err)
	}
}

// fail waits ErrorDelay and returns err
func (c *Client) fail(ctx context.Context, span trace.Span, attempt int, err error) error {
	c.logger.Error("GraphQL request failed", zap.Error(err), zap.Int("attempt", attempt))
	telemetry.RecordError(span, err)
	if sleepErr := c.sleep(ctx, c.policy.ErrorDelay); sleepErr != nil {
		return errors.Join(err, sleepErr)
	}
	return err
}

func (c *Client) retryAfter(ctx context.Context, attempt int, start time.Time, wait time.Duration, cause error) error {
	elapsed := c.now().Sub(start) + wait
	if !c.policy.Allows(attempt+1, elapsed) {
		return fmt.Errorf("%w after %d attempts: %w", ErrRetriesExhausted, attempt, cause)
	}
	return c.sleep(ctx, wait)
}

func (c *Client) post(ctx context.Context, body []byte) (*graphQLResponse, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.config.GraphQLURL(), bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRequestFailed, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Shopify-Access-Token", c.config.AdminToken)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, fmt.Errorf("%w: %v", ErrRequestFailed, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return nil, fmt.Errorf("%w: read body: %v", ErrRequestFailed, err)
	}

	if resp.StatusCode == http.StatusTooManyRequests {
		return nil, fmt.Errorf("%w: http 429", ErrRateLimited)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("%w: http %d: %s", ErrRequestFailed, resp.StatusCode, truncate(raw, maxErrorBody))
	}

	var out graphQLResponse
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidResponse, err)
	}
	if len(out.Errors) > 0 {
		return nil, errorsFrom(out.Errors)
	}
	return &out, nil
}

func (r *graphQLResponse) throttleWait(margin time.Duration) time.Duration {
	if r.Extensions == nil || r.Extensions.Cost == nil {
		return 0
	}
	return r.Extensions.Cost.ThrottleWait(margin)
}

func errorsFrom(gqlErrors []GraphQLError) error {
	messages := make([]string, 0, len(gqlErrors))
	for _, e := range gqlErrors {
		if e.Code() == throttledCode {
			return fmt.Errorf("%w: %s", ErrRateLimited, e.Message)
		}
		messages = append(messages, e.Message)
	}
	return fmt.Errorf("%w: %s", ErrGraphQL, strings.Join(messages, "; "))
}

func decodeData(data json.RawMessage, out any) error {
	if out == nil {
		return nil
	}
	if len(data) == 0 || string(data) == "null" {
		return fmt.Errorf("%w: empty data", ErrInvalidResponse)
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidResponse, err)
	}
	return nil
}

// operationName extracts the name after the leading query/mutation keyword
func operationName(document string) string {
	fields := strings.FieldsFunc(document, func(r rune) bool {
		return r == ' ' || r == '\n' || r == '\t' || r == '(' || r == '{'
	})
	if len(fields) >= 2 && (fields[0] == "query" || fields[0] == "mutation") {
		return fields[1]
	}
	return "anonymous"
}

func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n]) + "..."
}
