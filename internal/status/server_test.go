package status

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/user/pulsebot/internal/eventlog"
	"github.com/user/pulsebot/internal/metrics"
	"github.com/user/pulsebot/internal/types"
)

func testServer(t *testing.T) (*Server, *metrics.Collector, *eventlog.Log) {
	t.Helper()
	collector := metrics.NewCollector()
	events := eventlog.New(t.TempDir())
	return NewServer(collector, events), collector, events
}

func get(t *testing.T, srv *Server, path string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	return rec
}

func TestHealth(t *testing.T) {
	srv, _, _ := testServer(t)
	rec := get(t, srv, "/health")
	if rec.Code != http.StatusOK {
		t.Fatalf("GET /health = %d, want 200", rec.Code)
	}
	var body map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if body["status"] != "ok" {
		t.Errorf("status = %q, want ok", body["status"])
	}
}

func TestStats(t *testing.T) {
	srv, collector, _ := testServer(t)
	if err := collector.OnInteraction(types.NewInteraction(types.NewCorrelationID(), &types.Interaction{
		UserID:      "1",
		Username:    "sam",
		CommandName: "ping",
	})); err != nil {
		t.Fatal(err)
	}

	rec := get(t, srv, "/stats")
	if rec.Code != http.StatusOK {
		t.Fatalf("GET /stats = %d, want 200", rec.Code)
	}
	var snap metrics.Snapshot
	if err := json.Unmarshal(rec.Body.Bytes(), &snap); err != nil {
		t.Fatalf("decode snapshot: %v", err)
	}
	if snap.TotalInteractions != 1 || snap.CommandInvocations["ping"] != 1 {
		t.Errorf("snapshot = %+v, want one ping interaction", snap)
	}
}

func TestEventsLimit(t *testing.T) {
	srv, _, events := testServer(t)
	for i := 0; i < 4; i++ {
		if err := events.OnCompletion(types.NewCompletion(types.NewCorrelationID(), &types.Completion{
			CommandName: "ping",
			Status:      types.StatusSuccess,
			DurationMS:  1,
		})); err != nil {
			t.Fatal(err)
		}
	}

	rec := get(t, srv, "/events?limit=2")
	if rec.Code != http.StatusOK {
		t.Fatalf("GET /events = %d, want 200", rec.Code)
	}
	var got []*types.Event
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatalf("decode events: %v", err)
	}
	if len(got) != 2 {
		t.Errorf("events = %d, want 2", len(got))
	}
}

func TestEventsEmptyLogReturnsArray(t *testing.T) {
	srv, _, _ := testServer(t)
	rec := get(t, srv, "/events")
	if rec.Code != http.StatusOK {
		t.Fatalf("GET /events = %d, want 200", rec.Code)
	}
	if body := rec.Body.String(); body != "[]\n" {
		t.Errorf("body = %q, want empty JSON array", body)
	}
}

func TestMethodNotAllowed(t *testing.T) {
	srv, _, _ := testServer(t)
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/stats", nil))
	if rec.Code != http.StatusMethodNotAllowed {
		t.Errorf("POST /stats = %d, want 405", rec.Code)
	}
}
