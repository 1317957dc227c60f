package telemetry

import (
	"context"
	"errors"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Metric attribute keys
var (
	AttrRunKind    = attribute.Key("run_kind")
	AttrRunStatus  = attribute.Key("run_status")
	AttrChangeKind = attribute.Key("change_kind")
	AttrFeedKind   = attribute.Key("feed_kind")
	AttrOutcome    = attribute.Key("outcome")
)

// SyncMetrics holds the instruments recorded by sync runs and their adapters.
type SyncMetrics struct {
	runs          *Counter
	runDuration   *Histogram
	changes       *Counter
	unmatched     *Counter
	discounts     *Counter
	throttleWaits *Histogram
	rateLimited   *Counter
	feedFetches   *Counter
	feedDuration  *Histogram
}

// NewSyncMetrics registers the sync instruments on meter.
func NewSyncMetrics(meter metric.Meter) (*SyncMetrics, error) {
	m := &SyncMetrics{}
	var err error

	if m.runs, err = NewCounter(meter, "sync_runs_total", "Completed sync runs", "{run}"); err != nil {
		return nil, err
	}
	if m.runDuration, err = NewHistogram(meter, HistogramOpts{
		Name:        "sync_run_duration_seconds",
		Description: "Wall time of a sync run",
		Unit:        "s",
		Boundaries:  RunDurationBuckets,
	}); err != nil {
		return nil, err
	}
	if m.changes, err = NewCounter(meter, "sync_changes_total", "Changes submitted to the storefront", "{change}"); err != nil {
		return nil, err
	}
	if m.unmatched, err = NewCounter(meter, "sync_unmatched_barcodes_total", "Cost barcodes with no storefront variant", "{barcode}"); err != nil {
		return nil, err
	}
	if m.discounts, err = NewCounter(meter, "sync_discounts_above_base_total", "ERP discount prices above the base price", "{barcode}"); err != nil {
		return nil, err
	}
	if m.throttleWaits, err = NewHistogram(meter, HistogramOpts{
		Name:        "shopify_throttle_wait_seconds",
		Description: "Waits imposed by the query cost budget",
		Unit:        "s",
		Boundaries:  WaitDurationBuckets,
	}); err != nil {
		return nil, err
	}
	if m.rateLimited, err = NewCounter(meter, "shopify_rate_limited_total", "Requests rejected as rate limited", "{request}"); err != nil {
		return nil, err
	}
	if m.feedFetches, err = NewCounter(meter, "erp_feed_fetches_total", "ERP feed requests", "{request}"); err != nil {
		return nil, err
	}
	if m.feedDuration, err = NewHistogram(meter, HistogramOpts{
		Name:        "erp_feed_fetch_duration_seconds",
		Description: "Latency of ERP feed requests",
		Unit:        "s",
		Boundaries:  HTTPDurationBuckets,
	}); err != nil {
		return nil, err
	}
	return m, nil
}

// RecordRun counts a finished run and its duration.
func (m *SyncMetrics) RecordRun(ctx context.Context, kind, status string, d time.Duration) {
	if m == nil {
		return
	}
	m.runs.Inc(ctx, AttrRunKind.String(kind), AttrRunStatus.String(status))
	m.runDuration.RecordDuration(ctx, d, AttrRunKind.String(kind))
}

// RecordChanges counts n submitted changes of kind.
func (m *SyncMetrics) RecordChanges(ctx context.Context, kind string, n int) {
	if m == nil || n <= 0 {
		return
	}
	m.changes.Add(ctx, int64(n), AttrChangeKind.String(kind))
}

// RecordUnmatched counts cost barcodes that matched no variant.
func (m *SyncMetrics) RecordUnmatched(ctx context.Context, n int) {
	if m == nil || n <= 0 {
		return
	}
	m.unmatched.Add(ctx, int64(n))
}

// RecordDiscountsAboveBase counts barcodes whose discount exceeds the base price.
func (m *SyncMetrics) RecordDiscountsAboveBase(ctx context.Context, n int) {
	if m == nil || n <= 0 {
		return
	}
	m.discounts.Add(ctx, int64(n))
}

// ObserveThrottle records a cost-budget wait.
func (m *SyncMetrics) ObserveThrottle(ctx context.Context, wait time.Duration) {
	if m == nil {
		return
	}
	m.throttleWaits.RecordDuration(ctx, wait)
}

// ObserveRateLimited counts an HTTP 429 or THROTTLED response.
func (m *SyncMetrics) ObserveRateLimited(ctx context.Context) {
	if m == nil {
		return
	}
	m.rateLimited.Inc(ctx)
}

// RecordFeedFetch counts one ERP feed request and its latency.
func (m *SyncMetrics) RecordFeedFetch(ctx context.Context, feed string, d time.Duration, err error) {
	if m == nil {
		return
	}
	outcome := "ok"
	switch {
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		outcome = "cancelled"
	case err != nil:
		outcome = "error"
	}
	m.feedFetches.Inc(ctx, AttrFeedKind.String(feed), AttrOutcome.String(outcome))
	m.feedDuration.RecordDuration(ctx, d, AttrFeedKind.String(feed))
}
