package storage

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/prostor/erpsync/internal/domain/catalogsync"
	"github.com/prostor/erpsync/internal/infrastructure/config"
)

var fixedNow = time.Date(2026, 3, 14, 2, 5, 9, 0, time.UTC)

func fixedClock() time.Time { return fixedNow }

// fakeS3 records path-style PutObject requests
type fakeS3 struct {
	mu       sync.Mutex
	path     string
	method   string
	ctype    string
	body     string
	failWith int
}

func (f *fakeS3) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	body, _ := io.ReadAll(r.Body)
	f.mu.Lock()
	f.path = r.URL.Path
	f.method = r.Method
	f.ctype = r.Header.Get("Content-Type")
	f.body = string(body)
	fail := f.failWith
	f.mu.Unlock()

	if fail != 0 {
		w.Header().Set("Content-Type", "application/xml")
		w.WriteHeader(fail)
		_, _ = io.WriteString(w, `<?xml version="1.0" encoding="UTF-8"?><Error><Code>AccessDenied</Code><Message>denied</Message></Error>`)
		return
	}
	w.Header().Set("ETag", `"d41d8cd98f00b204e9800998ecf8427e"`)
	w.WriteHeader(http.StatusOK)
}

func newTestArchive(t *testing.T, endpoint string) *S3PayloadArchive {
	t.Helper()
	archive, err := NewS3PayloadArchive(context.Background(), &config.StorageConfig{
		Endpoint:     endpoint,
		Bucket:       "sync-payloads",
		AccessKey:    "test-key",
		SecretKey:    "test-secret",
		UsePathStyle: true,
		Prefix:       "/bulk-payloads/",
	}, WithClock(fixedClock))
	require.NoError(t, err)
	return archive
}

func TestNewS3PayloadArchive_Validation(t *testing.T) {
	t.Run("nil config returns error", func(t *testing.T) {
		_, err := NewS3PayloadArchive(context.Background(), nil)
		assert.ErrorIs(t, err, ErrConfigRequired)
	})

	t.Run("missing bucket returns error", func(t *testing.T) {
		_, err := NewS3PayloadArchive(context.Background(), &config.StorageConfig{})
		assert.ErrorIs(t, err, ErrBucketRequired)
	})
}

func TestNormalizeEndpoint(t *testing.T) {
	assert.Equal(t, "", normalizeEndpoint("", false))
	assert.Equal(t, "http://minio:9000", normalizeEndpoint("minio:9000", false))
	assert.Equal(t, "https://minio:9000", normalizeEndpoint("minio:9000", true))
	assert.Equal(t, "http://minio:9000", normalizeEndpoint("http://minio:9000", true))
}

func TestS3PayloadArchive_ObjectKey(t *testing.T) {
	archive := newTestArchive(t, "http://localhost:9000")

	assert.Equal(t,
		"bulk-payloads/price/2026/03/14/20260314T020509Z-price_updates.jsonl",
		archive.ObjectKey(catalogsync.ChangeKindPrice, "price_updates.jsonl"))
	assert.Equal(t,
		"bulk-payloads/cost/2026/03/14/20260314T020509Z-cost.jsonl",
		archive.ObjectKey(catalogsync.ChangeKindCost, "../cost.jsonl"))
}

func TestS3PayloadArchive_Archive(t *testing.T) {
	t.Run("puts payload under dated key", func(t *testing.T) {
		fake := &fakeS3{}
		server := httptest.NewServer(fake)
		defer server.Close()

		archive := newTestArchive(t, server.URL)
		payload := []byte(`{"input":{"id":"gid://shopify/Product/1","status":"ACTIVE"}}` + "\n")

		err := archive.Archive(context.Background(), catalogsync.ChangeKindStatus, "status_updates.jsonl", payload)
		require.NoError(t, err)

		fake.mu.Lock()
		defer fake.mu.Unlock()
		assert.Equal(t, http.MethodPut, fake.method)
		assert.Equal(t, "/sync-payloads/bulk-payloads/status/2026/03/14/20260314T020509Z-status_updates.jsonl", fake.path)
		assert.Equal(t, "application/jsonl", fake.ctype)
		assert.Contains(t, fake.body, `"status":"ACTIVE"`)
	})

	t.Run("server error is returned", func(t *testing.T) {
		fake := &fakeS3{failWith: http.StatusForbidden}
		server := httptest.NewServer(fake)
		defer server.Close()

		archive := newTestArchive(t, server.URL)
		err := archive.Archive(context.Background(), catalogsync.ChangeKindPrice, "price_updates.jsonl", []byte("{}\n"))
		require.Error(t, err)
		assert.Contains(t, err.Error(), "s3://sync-payloads/")
	})
}
