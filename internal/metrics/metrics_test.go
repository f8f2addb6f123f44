package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestRecordRequest(t *testing.T) {
	m := New()

	m.RecordRequest(http.MethodGet, "/api/v1/videos", http.StatusOK, 10*time.Millisecond)
	m.RecordRequest(http.MethodGet, "/api/v1/videos", http.StatusOK, 20*time.Millisecond)
	m.RecordRequest(http.MethodPost, "/api/v1/videos", http.StatusBadRequest, 5*time.Millisecond)

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	w := httptest.NewRecorder()
	m.Handler()(w, req)

	body := w.Body.String()
	if !strings.Contains(body, `fr_http_requests_total{endpoint="/api/v1/videos",method="GET"} 2`) {
		t.Errorf("missing GET counter in:\n%s", body)
	}
	if !strings.Contains(body, `fr_http_errors_total{endpoint="/api/v1/videos",method="POST",status_class="4xx"} 1`) {
		t.Errorf("missing error counter in:\n%s", body)
	}
}

func TestNormalizeEndpoint(t *testing.T) {
	tests := []struct {
		path string
		want string
	}{
		{"/api/v1/videos/42", "/api/v1/videos/{id}"},
		{"/api/v1/videos/42/sentences", "/api/v1/videos/{id}/sentences"},
		{"/api/v1/downloads/0b36cbb2-9e1a-4c77-8c3e-1f2a3b4c5d6e", "/api/v1/downloads/{id}"},
		{"/api/v1/news", "/api/v1/news"},
	}

	for _, tt := range tests {
		if got := normalizeEndpoint(tt.path); got != tt.want {
			t.Errorf("normalizeEndpoint(%q) = %q, want %q", tt.path, got, tt.want)
		}
	}
}

func TestGaugesAndCounters(t *testing.T) {
	m := New()

	m.IncWSSubscribers()
	m.IncWSSubscribers()
	m.DecWSSubscribers()
	m.SetPermitsInUse(2)
	m.SetQueuedDownloads(5)
	m.IncCounter("download_success")
	m.IncCounter("download_success")
	m.IncCounter("parse_failed")

	if got := m.CounterValue("download_success"); got != 2 {
		t.Errorf("download_success = %d, want 2", got)
	}

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	w := httptest.NewRecorder()
	m.Handler()(w, req)

	body := w.Body.String()
	for _, want := range []string{
		"fr_progress_subscribers 1",
		"fr_download_permits_in_use 2",
		"fr_downloads_queued 5",
		`fr_events_total{event="download_success"} 2`,
		`fr_events_total{event="parse_failed"} 1`,
	} {
		if !strings.Contains(body, want) {
			t.Errorf("missing %q in:\n%s", want, body)
		}
	}
}

func TestHistogramObserve(t *testing.T) {
	h := NewHistogram()
	h.Observe(0.003)
	h.Observe(0.3)
	h.Observe(20)

	if h.count != 3 {
		t.Errorf("count = %d, want 3", h.count)
	}
	// 0.003 lands in every bucket, 0.3 from 0.5 up, 20 in none
	if h.bucketVals[0] != 1 {
		t.Errorf("5ms bucket = %d, want 1", h.bucketVals[0])
	}
	if h.bucketVals[len(h.bucketVals)-1] != 2 {
		t.Errorf("10s bucket = %d, want 2", h.bucketVals[len(h.bucketVals)-1])
	}
}

func TestMiddlewareRecords(t *testing.T) {
	m := New()
	handler := Middleware(m)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusCreated)
	}))

	req := httptest.NewRequest(http.MethodPost, "/api/v1/downloads", nil)
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	if w.Code != http.StatusCreated {
		t.Fatalf("status = %d", w.Code)
	}

	rec := httptest.NewRecorder()
	m.Handler()(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if !strings.Contains(rec.Body.String(), `fr_http_requests_total{endpoint="/api/v1/downloads",method="POST"} 1`) {
		t.Error("middleware did not record the request")
	}
}
