package metrics

import (
	"fmt"
	"net/http"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

// Metrics holds all application metrics
type Metrics struct {
	mu sync.RWMutex

	requestCount    map[string]*uint64
	requestDuration map[string]*Histogram
	requestErrors   map[string]*uint64

	// Application gauges
	wsSubscribers   int64
	permitsInUse    int64
	queuedDownloads int64

	// Outcome counters
	counters map[string]*uint64

	startTime time.Time
}

// Histogram tracks value distributions
type Histogram struct {
	mu    sync.Mutex
	count uint64
	sum   float64
	// Buckets: 5ms to 10s
	buckets    []float64
	bucketVals []uint64
}

// NewHistogram creates a new histogram with default buckets
func NewHistogram() *Histogram {
	return &Histogram{
		buckets:    []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		bucketVals: make([]uint64, 11),
	}
}

// Observe records a value
func (h *Histogram) Observe(v float64) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.count++
	h.sum += v
	for i, b := range h.buckets {
		if v <= b {
			h.bucketVals[i]++
		}
	}
}

// New creates a new Metrics instance
func New() *Metrics {
	return &Metrics{
		requestCount:    make(map[string]*uint64),
		requestDuration: make(map[string]*Histogram),
		requestErrors:   make(map[string]*uint64),
		counters:        make(map[string]*uint64),
		startTime:       time.Now(),
	}
}

var defaultMetrics = New()

// Default returns the default metrics instance
func Default() *Metrics {
	return defaultMetrics
}

// RecordRequest records a request
func (m *Metrics) RecordRequest(method, path string, statusCode int, duration time.Duration) {
	key := fmt.Sprintf("%s:%s", normalizeEndpoint(path), method)

	m.mu.Lock()
	if m.requestCount[key] == nil {
		var zero uint64
		m.requestCount[key] = &zero
	}
	if m.requestDuration[key] == nil {
		m.requestDuration[key] = NewHistogram()
	}
	m.mu.Unlock()

	atomic.AddUint64(m.requestCount[key], 1)

	m.mu.RLock()
	m.requestDuration[key].Observe(duration.Seconds())
	m.mu.RUnlock()

	if statusCode >= 400 {
		errorKey := fmt.Sprintf("%s:%d", key, statusCode/100*100)
		m.mu.Lock()
		if m.requestErrors[errorKey] == nil {
			var zero uint64
			m.requestErrors[errorKey] = &zero
		}
		m.mu.Unlock()
		atomic.AddUint64(m.requestErrors[errorKey], 1)
	}
}

// normalizeEndpoint replaces UUIDs and numeric IDs with placeholders so
// each route yields one series.
func normalizeEndpoint(path string) string {
	parts := strings.Split(path, "/")
	for i, part := range parts {
		if len(part) == 36 && strings.Count(part, "-") == 4 {
			parts[i] = "{id}"
		} else if len(part) > 0 && isNumeric(part) {
			parts[i] = "{id}"
		}
	}
	return strings.Join(parts, "/")
}

func isNumeric(s string) bool {
	for _, c := range s {
		if c < '0' || c > '9' {
			return false
		}
	}
	return true
}

// IncWSSubscribers increments the progress subscriber gauge
func (m *Metrics) IncWSSubscribers() {
	atomic.AddInt64(&m.wsSubscribers, 1)
}

// DecWSSubscribers decrements the progress subscriber gauge
func (m *Metrics) DecWSSubscribers() {
	atomic.AddInt64(&m.wsSubscribers, -1)
}

// SetWSSubscribers sets the progress subscriber gauge
func (m *Metrics) SetWSSubscribers(n int64) {
	atomic.StoreInt64(&m.wsSubscribers, n)
}

// SetPermitsInUse records download permit occupancy
func (m *Metrics) SetPermitsInUse(n int64) {
	atomic.StoreInt64(&m.permitsInUse, n)
}

// SetQueuedDownloads records the number of tasks waiting for a permit
func (m *Metrics) SetQueuedDownloads(n int64) {
	atomic.StoreInt64(&m.queuedDownloads, n)
}

// IncCounter increments a named counter. Used for parse and download
// outcomes (parse_completed, parse_failed, download_success,
// download_failed).
func (m *Metrics) IncCounter(name string) {
	m.mu.Lock()
	if m.counters[name] == nil {
		var zero uint64
		m.counters[name] = &zero
	}
	m.mu.Unlock()
	atomic.AddUint64(m.counters[name], 1)
}

// CounterValue reads a named counter
func (m *Metrics) CounterValue(name string) uint64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.counters[name] == nil {
		return 0
	}
	return atomic.LoadUint64(m.counters[name])
}

// Handler returns an HTTP handler exposing metrics in text format
func (m *Metrics) Handler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain; version=0.0.4; charset=utf-8")

		var sb strings.Builder

		uptime := time.Since(m.startTime).Seconds()
		sb.WriteString("# HELP fr_uptime_seconds Time since the server started\n")
		sb.WriteString("# TYPE fr_uptime_seconds gauge\n")
		sb.WriteString(fmt.Sprintf("fr_uptime_seconds %f\n\n", uptime))

		sb.WriteString("# HELP fr_progress_subscribers Active progress websocket subscribers\n")
		sb.WriteString("# TYPE fr_progress_subscribers gauge\n")
		sb.WriteString(fmt.Sprintf("fr_progress_subscribers %d\n\n", atomic.LoadInt64(&m.wsSubscribers)))

		sb.WriteString("# HELP fr_download_permits_in_use Download permits currently held\n")
		sb.WriteString("# TYPE fr_download_permits_in_use gauge\n")
		sb.WriteString(fmt.Sprintf("fr_download_permits_in_use %d\n\n", atomic.LoadInt64(&m.permitsInUse)))

		sb.WriteString("# HELP fr_downloads_queued Tasks waiting for a download permit\n")
		sb.WriteString("# TYPE fr_downloads_queued gauge\n")
		sb.WriteString(fmt.Sprintf("fr_downloads_queued %d\n\n", atomic.LoadInt64(&m.queuedDownloads)))

		m.mu.RLock()
		if len(m.requestCount) > 0 {
			sb.WriteString("# HELP fr_http_requests_total Total HTTP requests\n")
			sb.WriteString("# TYPE fr_http_requests_total counter\n")
			keys := make([]string, 0, len(m.requestCount))
			for k := range m.requestCount {
				keys = append(keys, k)
			}
			sort.Strings(keys)
			for _, key := range keys {
				parts := strings.SplitN(key, ":", 2)
				if len(parts) == 2 {
					count := atomic.LoadUint64(m.requestCount[key])
					sb.WriteString(fmt.Sprintf("fr_http_requests_total{endpoint=%q,method=%q} %d\n", parts[0], parts[1], count))
				}
			}
			sb.WriteString("\n")
		}

		if len(m.requestDuration) > 0 {
			sb.WriteString("# HELP fr_http_request_duration_seconds HTTP request latency\n")
			sb.WriteString("# TYPE fr_http_request_duration_seconds histogram\n")
			keys := make([]string, 0, len(m.requestDuration))
			for k := range m.requestDuration {
				keys = append(keys, k)
			}
			sort.Strings(keys)
			for _, key := range keys {
				parts := strings.SplitN(key, ":", 2)
				if len(parts) == 2 {
					h := m.requestDuration[key]
					h.mu.Lock()
					for i, bucket := range h.buckets {
						sb.WriteString(fmt.Sprintf("fr_http_request_duration_seconds_bucket{endpoint=%q,method=%q,le=\"%g\"} %d\n", parts[0], parts[1], bucket, h.bucketVals[i]))
					}
					sb.WriteString(fmt.Sprintf("fr_http_request_duration_seconds_bucket{endpoint=%q,method=%q,le=\"+Inf\"} %d\n", parts[0], parts[1], h.count))
					sb.WriteString(fmt.Sprintf("fr_http_request_duration_seconds_sum{endpoint=%q,method=%q} %f\n", parts[0], parts[1], h.sum))
					sb.WriteString(fmt.Sprintf("fr_http_request_duration_seconds_count{endpoint=%q,method=%q} %d\n", parts[0], parts[1], h.count))
					h.mu.Unlock()
				}
			}
			sb.WriteString("\n")
		}

		if len(m.requestErrors) > 0 {
			sb.WriteString("# HELP fr_http_errors_total Total HTTP errors by status class\n")
			sb.WriteString("# TYPE fr_http_errors_total counter\n")
			keys := make([]string, 0, len(m.requestErrors))
			for k := range m.requestErrors {
				keys = append(keys, k)
			}
			sort.Strings(keys)
			for _, key := range keys {
				parts := strings.Split(key, ":")
				if len(parts) >= 3 {
					count := atomic.LoadUint64(m.requestErrors[key])
					sb.WriteString(fmt.Sprintf("fr_http_errors_total{endpoint=%q,method=%q,status_class=\"%sxx\"} %d\n", parts[0], parts[1], parts[2][:1], count))
				}
			}
			sb.WriteString("\n")
		}

		if len(m.counters) > 0 {
			sb.WriteString("# HELP fr_events_total Task and parse outcome counters\n")
			sb.WriteString("# TYPE fr_events_total counter\n")
			keys := make([]string, 0, len(m.counters))
			for k := range m.counters {
				keys = append(keys, k)
			}
			sort.Strings(keys)
			for _, name := range keys {
				count := atomic.LoadUint64(m.counters[name])
				sb.WriteString(fmt.Sprintf("fr_events_total{event=%q} %d\n", name, count))
			}
		}
		m.mu.RUnlock()

		w.Write([]byte(sb.String()))
	}
}

// Middleware creates middleware that records request metrics
func Middleware(m *Metrics) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			wrapped := &statusResponseWriter{
				ResponseWriter: w,
				statusCode:     http.StatusOK,
			}

			next.ServeHTTP(wrapped, r)

			duration := time.Since(start)
			m.RecordRequest(r.Method, r.URL.Path, wrapped.statusCode, duration)
		})
	}
}

type statusResponseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (w *statusResponseWriter) WriteHeader(code int) {
	w.statusCode = code
	w.ResponseWriter.WriteHeader(code)
}
