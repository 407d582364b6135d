package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestObserveCounters(t *testing.T) {
	Init()

	before := testutil.ToFloat64(postingsTotal.WithLabelValues("emploi.ma", "accepted"))
	ObservePosting("emploi.ma", "accepted")
	after := testutil.ToFloat64(postingsTotal.WithLabelValues("emploi.ma", "accepted"))
	if after != before+1 {
		t.Fatalf("expected counter to increment, before=%v after=%v", before, after)
	}

	ObservePage("emploi.ma", "fetched")
	ObserveSourceStop("emploi.ma", "stale_threshold")
	ObserveRun("success")
	IncActiveSources()
	DecActiveSources()
	if got := testutil.ToFloat64(activeSources); got != 0 {
		t.Fatalf("expected active sources gauge back at 0, got %v", got)
	}
}

func TestMiddlewareRecordsRequests(t *testing.T) {
	Init()

	r := chi.NewRouter()
	r.Use(Middleware)
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	ts := httptest.NewServer(r)
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/healthz")
	if err != nil {
		t.Fatal(err)
	}
	if err := resp.Body.Close(); err != nil {
		t.Log(err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("unexpected status %d", resp.StatusCode)
	}
}
