package shopify

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"
)

// fakeClock advances virtual time on every sleep
type fakeClock struct {
	mu     sync.Mutex
	now    time.Time
	sleeps []time.Duration
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2024, 7, 1, 9, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Sleep(ctx context.Context, d time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sleeps = append(c.sleeps, d)
	c.now = c.now.Add(d)
	return nil
}

func (c *fakeClock) Sleeps() []time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]time.Duration(nil), c.sleeps...)
}

// scriptedExecutor answers Execute calls with canned data payloads in order
type scriptedExecutor struct {
	mu        sync.Mutex
	responses []string
	errs      map[int]error
	calls     []map[string]any
	queries   []string
}

func (e *scriptedExecutor) Execute(_ context.Context, query string, variables map[string]any, out any) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	n := len(e.calls)
	e.calls = append(e.calls, variables)
	e.queries = append(e.queries, query)
	if err, ok := e.errs[n]; ok {
		return err
	}
	if n >= len(e.responses) {
		return fmt.Errorf("unexpected call %d", n+1)
	}
	return json.Unmarshal([]byte(e.responses[n]), out)
}

func (e *scriptedExecutor) cursors() []any {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]any, 0, len(e.calls))
	for _, vars := range e.calls {
		cursor := vars["cursor"].(*string)
		if cursor == nil {
			out = append(out, nil)
			continue
		}
		out = append(out, *cursor)
	}
	return out
}
