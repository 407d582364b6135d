package fetch

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestCollyFetcherOK(t *testing.T) {
	t.Parallel()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = w.Write([]byte("<html><body>offres</body></html>"))
	}))
	t.Cleanup(srv.Close)

	f := NewCollyFetcher(CollyConfig{UserAgent: "jobradar-test"})
	resp, err := f.Fetch(context.Background(), srv.URL)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Contains(t, string(resp.Body), "offres")
	require.Contains(t, resp.ContentType, "text/html")
}

func TestCollyFetcherHTTPError(t *testing.T) {
	t.Parallel()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "gone", http.StatusNotFound)
	}))
	t.Cleanup(srv.Close)

	f := NewCollyFetcher(CollyConfig{})
	_, err := f.Fetch(context.Background(), srv.URL)
	var fe *Error
	require.ErrorAs(t, err, &fe)
	require.Equal(t, KindHTTP, fe.Kind)
	require.Equal(t, http.StatusNotFound, fe.StatusCode)
}

func TestCollyFetcherRateLimited(t *testing.T) {
	t.Parallel()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Retry-After", "12")
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	t.Cleanup(srv.Close)

	f := NewCollyFetcher(CollyConfig{})
	_, err := f.Fetch(context.Background(), srv.URL)
	var fe *Error
	require.ErrorAs(t, err, &fe)
	require.Equal(t, KindRateLimited, fe.Kind)
	require.Equal(t, 12*time.Second, fe.RetryAfter)
}

func TestCollyFetcherNetworkError(t *testing.T) {
	t.Parallel()
	f := NewCollyFetcher(CollyConfig{})
	_, err := f.Fetch(context.Background(), "http://127.0.0.1:1/nope")
	var fe *Error
	require.ErrorAs(t, err, &fe)
	require.NotEqual(t, KindHTTP, fe.Kind)
}
