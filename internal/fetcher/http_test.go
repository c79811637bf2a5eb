package fetcher

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Amsmoox/tradebot/internal/model"
)

func newTestFetcher() *HTTPFetcher {
	return NewHTTPFetcher(HTTPOptions{
		Timeout:    5 * time.Second,
		RatePerSec: 1000,
		RateBurst:  1000,
	})
}

func TestHTTPFetcherChanged(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("ETag", `"abc123"`)
		w.Header().Set("Last-Modified", "Mon, 02 Jan 2006 15:04:05 GMT")
		_, _ = w.Write([]byte("<html>signals</html>"))
	}))
	defer srv.Close()

	out, err := newTestFetcher().Fetch(context.Background(), srv.URL, model.Validators{})
	require.NoError(t, err)
	assert.Equal(t, StatusChanged, out.Status)
	assert.Equal(t, []byte("<html>signals</html>"), out.Body)
	assert.Equal(t, `"abc123"`, out.Validators.ETag)
	assert.Equal(t, "Mon, 02 Jan 2006 15:04:05 GMT", out.Validators.LastModified)
}

func TestHTTPFetcherSendsConditionalHeaders(t *testing.T) {
	var gotETag, gotModified string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotETag = r.Header.Get("If-None-Match")
		gotModified = r.Header.Get("If-Modified-Since")
		w.WriteHeader(http.StatusNotModified)
	}))
	defer srv.Close()

	v := model.Validators{ETag: `"abc123"`, LastModified: "Mon, 02 Jan 2006 15:04:05 GMT"}
	out, err := newTestFetcher().Fetch(context.Background(), srv.URL, v)
	require.NoError(t, err)
	assert.Equal(t, StatusUnchanged, out.Status)
	assert.Nil(t, out.Body)
	assert.Equal(t, `"abc123"`, gotETag)
	assert.Equal(t, "Mon, 02 Jan 2006 15:04:05 GMT", gotModified)
}

func TestHTTPFetcherNoConditionalHeadersWhenEmpty(t *testing.T) {
	var hadETag, hadModified bool
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, hadETag = r.Header["If-None-Match"]
		_, hadModified = r.Header["If-Modified-Since"]
		_, _ = w.Write([]byte("ok"))
	}))
	defer srv.Close()

	_, err := newTestFetcher().Fetch(context.Background(), srv.URL, model.Validators{})
	require.NoError(t, err)
	assert.False(t, hadETag)
	assert.False(t, hadModified)
}

func TestHTTPFetcherServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	out, err := newTestFetcher().Fetch(context.Background(), srv.URL, model.Validators{})
	require.Error(t, err)
	assert.Nil(t, out)

	var fe *FetchError
	require.True(t, errors.As(err, &fe))
	assert.Equal(t, http.StatusServiceUnavailable, fe.StatusCode)
	assert.Equal(t, srv.URL, fe.URL)
}

func TestHTTPFetcherConnectionRefused(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close()

	_, err := newTestFetcher().Fetch(context.Background(), srv.URL, model.Validators{})
	require.Error(t, err)

	var fe *FetchError
	require.True(t, errors.As(err, &fe))
	assert.Zero(t, fe.StatusCode)
}

func TestHTTPFetcherCharsetDecode(t *testing.T) {
	// "señal" in ISO-8859-1: 0xF1 for ñ.
	latin1 := []byte{'s', 'e', 0xF1, 'a', 'l'}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=iso-8859-1")
		_, _ = w.Write(latin1)
	}))
	defer srv.Close()

	out, err := newTestFetcher().Fetch(context.Background(), srv.URL, model.Validators{})
	require.NoError(t, err)
	assert.Equal(t, "señal", string(out.Body))
}

func TestHTTPFetcherContextCancelled(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(2 * time.Second)
	}))
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := newTestFetcher().Fetch(ctx, srv.URL, model.Validators{})
	require.Error(t, err)
}
