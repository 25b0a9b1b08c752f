package ingest

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const feedXML = `<?xml version="1.0" encoding="UTF-8"?>
<rss version="2.0">
  <channel>
    <title>Test Wire</title>
    <link>https://wire.test</link>
    <item>
      <title>Gaza ceasefire begins as aid trucks roll in</title>
      <link>https://wire.test/gaza-ceasefire</link>
    </item>
    <item>
      <title>Reserve Bank holds rates steady again</title>
      <link>https://wire.test/rates-hold</link>
    </item>
  </channel>
</rss>`

func TestFetchSendsConditionalHeaders(t *testing.T) {
	var gotETag, gotModified, gotUA string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotETag = r.Header.Get("If-None-Match")
		gotModified = r.Header.Get("If-Modified-Since")
		gotUA = r.Header.Get("User-Agent")
		w.Header().Set("ETag", `"v2"`)
		w.Header().Set("Last-Modified", "Tue, 03 Jan 2006 15:04:05 GMT")
		w.Write([]byte(feedXML))
	}))
	defer srv.Close()

	f := NewFetcher(5 * time.Second)
	res, err := f.Fetch(context.Background(), srv.URL, `"v1"`, "Mon, 02 Jan 2006 15:04:05 GMT")
	require.NoError(t, err)

	assert.Equal(t, `"v1"`, gotETag)
	assert.Equal(t, "Mon, 02 Jan 2006 15:04:05 GMT", gotModified)
	assert.Equal(t, userAgent, gotUA)

	assert.False(t, res.NotModified)
	assert.Equal(t, `"v2"`, res.ETag)
	assert.Equal(t, "Tue, 03 Jan 2006 15:04:05 GMT", res.LastModified)
	require.Len(t, res.Items, 2)
	assert.Equal(t, "Gaza ceasefire begins as aid trucks roll in", res.Items[0].Title)
}

func TestFetchNotModified(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("If-None-Match") == `"v1"` {
			w.WriteHeader(http.StatusNotModified)
			return
		}
		w.Write([]byte(feedXML))
	}))
	defer srv.Close()

	f := NewFetcher(5 * time.Second)
	res, err := f.Fetch(context.Background(), srv.URL, `"v1"`, "Mon, 02 Jan 2006 15:04:05 GMT")
	require.NoError(t, err)

	assert.True(t, res.NotModified)
	assert.Empty(t, res.Items)
	// Validators survive a 304 untouched.
	assert.Equal(t, `"v1"`, res.ETag)
	assert.Equal(t, "Mon, 02 Jan 2006 15:04:05 GMT", res.LastModified)
}

func TestFetchKeepsValidatorsWhenResponseOmitsThem(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(feedXML))
	}))
	defer srv.Close()

	f := NewFetcher(5 * time.Second)
	res, err := f.Fetch(context.Background(), srv.URL, `"v1"`, "Mon, 02 Jan 2006 15:04:05 GMT")
	require.NoError(t, err)

	assert.Equal(t, `"v1"`, res.ETag)
	assert.Equal(t, "Mon, 02 Jan 2006 15:04:05 GMT", res.LastModified)
}

func TestFetchPublisherErrors(t *testing.T) {
	tests := map[string]http.HandlerFunc{
		"not found": func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusNotFound)
		},
		"gone": func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusGone)
		},
		"unparseable body": func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte("this is not a feed"))
		},
	}

	for name, handler := range tests {
		t.Run(name, func(t *testing.T) {
			srv := httptest.NewServer(handler)
			defer srv.Close()

			f := NewFetcher(5 * time.Second)
			_, err := f.Fetch(context.Background(), srv.URL, "", "")
			assert.ErrorIs(t, err, ErrPublisher)
		})
	}
}

func TestFetchServerErrorIsTransient(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	f := NewFetcher(5 * time.Second)
	_, err := f.Fetch(context.Background(), srv.URL, "", "")
	require.Error(t, err)
	// A 5xx counts against the failure streak, not the publisher hold.
	assert.NotErrorIs(t, err, ErrPublisher)
}
