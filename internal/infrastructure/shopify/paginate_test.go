package shopify

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type itemsResponse struct {
	Items Connection[struct {
		ID string `json:"id"`
	}] `json:"items"`
}

func itemIDs(nodes []struct {
	ID string `json:"id"`
}) []string {
	ids := make([]string, 0, len(nodes))
	for _, n := range nodes {
		ids = append(ids, n.ID)
	}
	return ids
}

func collectItems(ctx context.Context, exec Executor) ([]string, error) {
	nodes, err := CollectAll(ctx, exec, "query items($cursor: String) { items }", func(r *itemsResponse) Page[struct {
		ID string `json:"id"`
	}] {
		return r.Items.Page()
	})
	if err != nil {
		return nil, err
	}
	return itemIDs(nodes), nil
}

func TestCollectAll(t *testing.T) {
	exec := &scriptedExecutor{responses: []string{
		`{"items":{"pageInfo":{"hasNextPage":true,"endCursor":"c1"},"edges":[{"node":{"id":"1"}},{"node":{"id":"2"}}]}}`,
		`{"items":{"pageInfo":{"hasNextPage":true,"endCursor":"c2"},"edges":[{"node":{"id":"3"}}]}}`,
		`{"items":{"pageInfo":{"hasNextPage":false,"endCursor":"c3"},"edges":[{"node":{"id":"4"}}]}}`,
	}}

	ids, err := collectItems(context.Background(), exec)
	require.NoError(t, err)
	assert.Equal(t, []string{"1", "2", "3", "4"}, ids)
	assert.Equal(t, []any{nil, "c1", "c2"}, exec.cursors())
}

func TestCollectAll_SinglePage(t *testing.T) {
	exec := &scriptedExecutor{responses: []string{
		`{"items":{"pageInfo":{"hasNextPage":false,"endCursor":null},"edges":[]}}`,
	}}

	ids, err := collectItems(context.Background(), exec)
	require.NoError(t, err)
	assert.Empty(t, ids)
	assert.Len(t, exec.calls, 1)
}

func TestCollectAll_MissingCursor(t *testing.T) {
	exec := &scriptedExecutor{responses: []string{
		`{"items":{"pageInfo":{"hasNextPage":true,"endCursor":null},"edges":[{"node":{"id":"1"}}]}}`,
	}}

	_, err := collectItems(context.Background(), exec)
	assert.ErrorIs(t, err, ErrBrokenPagination)
	assert.Len(t, exec.calls, 1)
}

func TestCollectAll_PageError(t *testing.T) {
	boom := errors.New("boom")
	exec := &scriptedExecutor{
		responses: []string{
			`{"items":{"pageInfo":{"hasNextPage":true,"endCursor":"c1"},"edges":[{"node":{"id":"1"}}]}}`,
		},
		errs: map[int]error{1: boom},
	}

	_, err := collectItems(context.Background(), exec)
	assert.ErrorIs(t, err, boom)
	assert.Contains(t, err.Error(), "page 2")
}

func TestCollectAll_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	exec := &scriptedExecutor{}
	_, err := collectItems(ctx, exec)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, exec.calls)
}
