package health

import (
	"context"
	"database/sql"
	"encoding/json"
	"net/http"
	"os/exec"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

type Status string

const (
	StatusHealthy   Status = "healthy"
	StatusUnhealthy Status = "unhealthy"
	StatusDegraded  Status = "degraded"
)

type ComponentHealth struct {
	Status   Status `json:"status"`
	Message  string `json:"message,omitempty"`
	Duration string `json:"duration,omitempty"`
}

type HealthResponse struct {
	Status     Status                     `json:"status"`
	Timestamp  string                     `json:"timestamp"`
	Version    string                     `json:"version,omitempty"`
	Components map[string]ComponentHealth `json:"components,omitempty"`
}

// Checker probes the dependencies a ready server needs: Postgres, the
// yt-dlp binary, and optionally Redis.
type Checker struct {
	db           *sql.DB
	redis        *redis.Client
	ytdlpPath    string
	version      string
	checkTimeout time.Duration
}

type CheckerConfig struct {
	DB        *sql.DB
	Redis     *redis.Client
	YtdlpPath string
	Version   string
	Timeout   time.Duration
}

func NewChecker(cfg *CheckerConfig) *Checker {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 5 * time.Second
	}
	return &Checker{
		db:           cfg.DB,
		redis:        cfg.Redis,
		ytdlpPath:    cfg.YtdlpPath,
		version:      cfg.Version,
		checkTimeout: timeout,
	}
}

func unhealthy(msg string, since time.Time) ComponentHealth {
	return ComponentHealth{Status: StatusUnhealthy, Message: msg, Duration: time.Since(since).String()}
}

func degraded(msg string, since time.Time) ComponentHealth {
	return ComponentHealth{Status: StatusDegraded, Message: msg, Duration: time.Since(since).String()}
}

// CheckDB pings Postgres and runs a probe query. A reachable server
// that cannot answer queries counts as degraded, not down.
func (c *Checker) CheckDB(ctx context.Context) ComponentHealth {
	start := time.Now()
	if c.db == nil {
		return ComponentHealth{Status: StatusUnhealthy, Message: "database not configured"}
	}

	ctx, cancel := context.WithTimeout(ctx, c.checkTimeout)
	defer cancel()

	if err := c.db.PingContext(ctx); err != nil {
		return unhealthy("database ping failed", start)
	}
	var one int
	if err := c.db.QueryRowContext(ctx, "SELECT 1").Scan(&one); err != nil {
		return degraded("database query failed", start)
	}
	return ComponentHealth{Status: StatusHealthy, Duration: time.Since(start).String()}
}

// CheckRedis never reports unhealthy. Redis backs only the news cache,
// so losing it degrades the service without taking it out of rotation.
func (c *Checker) CheckRedis(ctx context.Context) ComponentHealth {
	start := time.Now()
	if c.redis == nil {
		return ComponentHealth{Status: StatusDegraded, Message: "redis not configured"}
	}

	ctx, cancel := context.WithTimeout(ctx, c.checkTimeout)
	defer cancel()

	if err := c.redis.Ping(ctx).Err(); err != nil {
		return degraded("redis ping failed", start)
	}
	return ComponentHealth{Status: StatusHealthy, Duration: time.Since(start).String()}
}

// CheckYtdlp verifies the extraction tool resolves on PATH and answers
// a version probe. Without it no parse or download can run.
func (c *Checker) CheckYtdlp(ctx context.Context) ComponentHealth {
	start := time.Now()
	if c.ytdlpPath == "" {
		return ComponentHealth{Status: StatusUnhealthy, Message: "yt-dlp not configured"}
	}
	if _, err := exec.LookPath(c.ytdlpPath); err != nil {
		return unhealthy("yt-dlp binary not found", start)
	}

	ctx, cancel := context.WithTimeout(ctx, c.checkTimeout)
	defer cancel()

	if err := exec.CommandContext(ctx, c.ytdlpPath, "--version").Run(); err != nil {
		return unhealthy("yt-dlp version check failed", start)
	}
	return ComponentHealth{Status: StatusHealthy, Duration: time.Since(start).String()}
}

// Check answers liveness: the process is up
func (c *Checker) Check(ctx context.Context) *HealthResponse {
	return &HealthResponse{
		Status:    StatusHealthy,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Version:   c.version,
	}
}

// DeepCheck probes all components in parallel and rolls the worst
// result up: any unhealthy component makes the whole response
// unhealthy, otherwise any degraded one makes it degraded.
func (c *Checker) DeepCheck(ctx context.Context) *HealthResponse {
	response := &HealthResponse{
		Status:     StatusHealthy,
		Timestamp:  time.Now().UTC().Format(time.RFC3339),
		Version:    c.version,
		Components: make(map[string]ComponentHealth),
	}

	checks := map[string]func(context.Context) ComponentHealth{
		"database": c.CheckDB,
		"redis":    c.CheckRedis,
		"ytdlp":    c.CheckYtdlp,
	}

	var wg sync.WaitGroup
	var mu sync.Mutex
	for name, check := range checks {
		wg.Add(1)
		go func(name string, check func(context.Context) ComponentHealth) {
			defer wg.Done()
			result := check(ctx)
			mu.Lock()
			response.Components[name] = result
			mu.Unlock()
		}(name, check)
	}
	wg.Wait()

	for _, comp := range response.Components {
		switch comp.Status {
		case StatusUnhealthy:
			response.Status = StatusUnhealthy
		case StatusDegraded:
			if response.Status == StatusHealthy {
				response.Status = StatusDegraded
			}
		}
	}
	return response
}

type Handler struct {
	checker *Checker
}

func NewHandler(checker *Checker) *Handler {
	return &Handler{checker: checker}
}

func (h *Handler) writeResponse(w http.ResponseWriter, response *HealthResponse, failStatus Status) {
	w.Header().Set("Content-Type", "application/json")
	if response.Status == failStatus {
		w.WriteHeader(http.StatusServiceUnavailable)
	} else {
		w.WriteHeader(http.StatusOK)
	}
	json.NewEncoder(w).Encode(response)
}

// LivenessHandler answers GET /health/live
func (h *Handler) LivenessHandler(w http.ResponseWriter, r *http.Request) {
	h.writeResponse(w, h.checker.Check(r.Context()), StatusUnhealthy)
}

// ReadinessHandler answers GET /health/ready. Degraded still returns
// 200; only unhealthy pulls the instance from rotation.
func (h *Handler) ReadinessHandler(w http.ResponseWriter, r *http.Request) {
	h.writeResponse(w, h.checker.DeepCheck(r.Context()), StatusUnhealthy)
}

// HealthHandler answers GET /health, deep-probing when ?deep=true
func (h *Handler) HealthHandler(w http.ResponseWriter, r *http.Request) {
	if r.URL.Query().Get("deep") == "true" {
		h.ReadinessHandler(w, r)
		return
	}
	h.LivenessHandler(w, r)
}
