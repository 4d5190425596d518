package syncclient

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func noSleep() func(ctx context.Context, d time.Duration) error {
	return func(ctx context.Context, d time.Duration) error { return ctx.Err() }
}

func TestFetchPageRetriesServerErrors(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if hits.Add(1) < 3 {
			http.Error(w, "busy", http.StatusServiceUnavailable)
			return
		}
		w.Write([]byte(`{"items":[],"last_sync":1}`))
	}))
	defer srv.Close()

	c := &Client{BaseURL: srv.URL, SiteID: "a", APIKey: "k", sleep: noSleep()}
	res, err := c.FetchPage(context.Background(), PageQuery{})
	require.NoError(t, err)
	assert.Equal(t, int32(3), hits.Load())
	assert.Equal(t, int64(1), res.Page.LastSync)
}

func TestFetchPageClientErrorFailsFast(t *testing.T) {
	// WHAT: a 403 fails on the first attempt with no retries.
	// WHY: a bad API key will not fix itself; retrying only burns quota.
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		http.Error(w, "forbidden", http.StatusForbidden)
	}))
	defer srv.Close()

	c := &Client{BaseURL: srv.URL, SiteID: "a", APIKey: "bad", sleep: noSleep()}
	_, err := c.FetchPage(context.Background(), PageQuery{})
	require.Error(t, err)
	assert.Equal(t, int32(1), hits.Load())
	assert.Contains(t, err.Error(), "403")
}

func TestFetchPageHonorsRetryAfter(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if hits.Add(1) == 1 {
			w.Header().Set("Retry-After", "7")
			http.Error(w, "slow down", http.StatusTooManyRequests)
			return
		}
		w.Write([]byte(`{"items":[],"last_sync":1}`))
	}))
	defer srv.Close()

	var slept []time.Duration
	c := &Client{
		BaseURL: srv.URL, SiteID: "a", APIKey: "k",
		sleep: func(ctx context.Context, d time.Duration) error {
			slept = append(slept, d)
			return nil
		},
	}
	_, err := c.FetchPage(context.Background(), PageQuery{})
	require.NoError(t, err)
	require.Len(t, slept, 1)
	assert.Equal(t, 7*time.Second, slept[0])
}

func TestFetchPageExhaustsRetries(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		http.Error(w, "down", http.StatusInternalServerError)
	}))
	defer srv.Close()

	c := &Client{BaseURL: srv.URL, SiteID: "a", APIKey: "k", MaxRetries: 2, sleep: noSleep()}
	_, err := c.FetchPage(context.Background(), PageQuery{})
	require.Error(t, err)
	assert.Equal(t, int32(3), hits.Load(), "initial attempt plus two retries")
}

func TestFetchPageConditional(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("If-None-Match") == `"v1"` {
			w.WriteHeader(http.StatusNotModified)
			return
		}
		w.Header().Set("ETag", `"v1"`)
		w.Write([]byte(`{"items":[],"last_sync":1}`))
	}))
	defer srv.Close()

	c := &Client{BaseURL: srv.URL, SiteID: "a", APIKey: "k", sleep: noSleep()}

	res, err := c.FetchPage(context.Background(), PageQuery{})
	require.NoError(t, err)
	assert.Equal(t, `"v1"`, res.ETag)
	assert.False(t, res.NotModified)

	res, err = c.FetchPage(context.Background(), PageQuery{ETag: `"v1"`})
	require.NoError(t, err)
	assert.True(t, res.NotModified)
	assert.Nil(t, res.Page)
}

func TestFetchPageSendsAuthAndParams(t *testing.T) {
	var gotAuth, gotQuery string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		gotQuery = r.URL.RawQuery
		w.Write([]byte(`{"items":[],"last_sync":1}`))
	}))
	defer srv.Close()

	c := &Client{BaseURL: srv.URL, SiteID: "a", APIKey: "ik_abc", sleep: noSleep()}
	_, err := c.FetchPage(context.Background(), PageQuery{Cursor: "cur", UpdatedSince: 42, Limit: 5})
	require.NoError(t, err)
	assert.Equal(t, "Bearer ik_abc", gotAuth)
	assert.Contains(t, gotQuery, "cursor=cur")
	assert.Contains(t, gotQuery, "updated_since=42")
	assert.Contains(t, gotQuery, "limit=5")
}
