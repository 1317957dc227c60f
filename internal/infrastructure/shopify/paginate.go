package shopify

import (
	"context"
	"fmt"
)

// CollectAll follows a cursor-paginated connection to the end and returns
// every node in page order. query must declare a `$cursor: String`
// variable; the first request sends it as null. pageOf extracts the
// connection page from a decoded response of type R.
func CollectAll[R, N any](ctx context.Context, exec Executor, query string, pageOf func(*R) Page[N]) ([]N, error) {
	var (
		nodes   []N
		cursor  *string
		hasNext = true
	)
	for page := 1; hasNext; page++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		var resp R
		if err := exec.Execute(ctx, query, map[string]any{"cursor": cursor}, &resp); err != nil {
			return nil, fmt.Errorf("page %d: %w", page, err)
		}

		p := pageOf(&resp)
		nodes = append(nodes, p.Nodes...)
		hasNext = p.PageInfo.HasNextPage
		if hasNext && (p.PageInfo.EndCursor == nil || *p.PageInfo.EndCursor == "") {
			return nil, fmt.Errorf("%w (page %d)", ErrBrokenPagination, page)
		}
		cursor = p.PageInfo.EndCursor
	}
	return nodes, nil
}
