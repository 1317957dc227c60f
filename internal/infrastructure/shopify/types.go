package shopify

import (
	"encoding/json"
	"time"
)

// ---------------------------------------------------------------------------
// GraphQL envelope
// ---------------------------------------------------------------------------

type graphQLRequest struct {
	Query     string         `json:"query"`
	Variables map[string]any `json:"variables,omitempty"`
}

type graphQLResponse struct {
	Data       json.RawMessage `json:"data"`
	Errors     []GraphQLError  `json:"errors"`
	Extensions *Extensions     `json:"extensions"`
}

// GraphQLError is one entry of the top-level errors array
type GraphQLError struct {
	Message    string         `json:"message"`
	Path       []any          `json:"path,omitempty"`
	Extensions map[string]any `json:"extensions,omitempty"`
}

// Code returns extensions.code, e.g. "THROTTLED"
func (e GraphQLError) Code() string {
	if e.Extensions == nil {
		return ""
	}
	code, _ := e.Extensions["code"].(string)
	return code
}

// Extensions is the response extension block
type Extensions struct {
	Cost *QueryCost `json:"cost"`
}

// QueryCost is the cost-accounting extension attached to metered responses
type QueryCost struct {
	RequestedQueryCost float64        `json:"requestedQueryCost"`
	ActualQueryCost    *float64       `json:"actualQueryCost"`
	ThrottleStatus     ThrottleStatus `json:"throttleStatus"`
}

// ThrottleStatus is the state of the leaky bucket after the request
type ThrottleStatus struct {
	MaximumAvailable   float64 `json:"maximumAvailable"`
	CurrentlyAvailable float64 `json:"currentlyAvailable"`
	RestoreRate        float64 `json:"restoreRate"`
}

// Shortfall is how many cost points the request lacks
func (c QueryCost) Shortfall() float64 {
	return c.RequestedQueryCost - c.ThrottleStatus.CurrentlyAvailable
}

// ThrottleWait returns how long to wait for the bucket to refill enough for
// the request, plus margin. Zero means the request fits the budget.
// A missing restore rate is treated as one point per second.
func (c QueryCost) ThrottleWait(margin time.Duration) time.Duration {
	shortfall := c.Shortfall()
	if shortfall <= 0 {
		return 0
	}
	rate := c.ThrottleStatus.RestoreRate
	if rate <= 0 {
		rate = 1
	}
	ms := shortfall / rate * 1000
	return time.Duration(ms*float64(time.Millisecond)) + margin
}

// ---------------------------------------------------------------------------
// Pagination
// ---------------------------------------------------------------------------

// PageInfo is the cursor metadata of a connection
type PageInfo struct {
	HasNextPage bool    `json:"hasNextPage"`
	EndCursor   *string `json:"endCursor"`
}

// Page is one page of nodes extracted from a typed response
type Page[N any] struct {
	Nodes    []N
	PageInfo PageInfo
}

// Connection is the relay connection shape used by the Admin API
type Connection[N any] struct {
	PageInfo PageInfo  `json:"pageInfo"`
	Edges    []Edge[N] `json:"edges"`
}

// Edge wraps one node of a connection
type Edge[N any] struct {
	Node N `json:"node"`
}

// Page flattens the connection into a Page
func (c Connection[N]) Page() Page[N] {
	nodes := make([]N, 0, len(c.Edges))
	for _, edge := range c.Edges {
		nodes = append(nodes, edge.Node)
	}
	return Page[N]{Nodes: nodes, PageInfo: c.PageInfo}
}
