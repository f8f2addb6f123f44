package health

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestChecker_BasicHealth(t *testing.T) {
	checker := NewChecker(&CheckerConfig{
		Version: "1.0.0",
		Timeout: 5 * time.Second,
	})

	response := checker.Check(context.Background())

	if response.Status != StatusHealthy {
		t.Errorf("expected status healthy, got %s", response.Status)
	}
	if response.Version != "1.0.0" {
		t.Errorf("expected version 1.0.0, got %s", response.Version)
	}
}

func TestChecker_DeepCheck_NothingConfigured(t *testing.T) {
	checker := NewChecker(&CheckerConfig{
		Version: "1.0.0",
		Timeout: 5 * time.Second,
	})

	response := checker.DeepCheck(context.Background())

	if len(response.Components) == 0 {
		t.Fatal("expected components to be populated")
	}
	// missing database and ytdlp are fatal, missing redis only degrades
	if response.Status != StatusUnhealthy {
		t.Errorf("expected overall unhealthy, got %s", response.Status)
	}
	if response.Components["database"].Status != StatusUnhealthy {
		t.Errorf("expected database unhealthy, got %s", response.Components["database"].Status)
	}
	if response.Components["redis"].Status != StatusDegraded {
		t.Errorf("expected redis degraded, got %s", response.Components["redis"].Status)
	}
	if response.Components["ytdlp"].Status != StatusUnhealthy {
		t.Errorf("expected ytdlp unhealthy, got %s", response.Components["ytdlp"].Status)
	}
}

func TestChecker_CheckYtdlp_MissingBinary(t *testing.T) {
	checker := NewChecker(&CheckerConfig{
		YtdlpPath: "definitely-not-a-real-binary-name",
		Timeout:   time.Second,
	})

	result := checker.CheckYtdlp(context.Background())
	if result.Status != StatusUnhealthy {
		t.Errorf("expected unhealthy for missing binary, got %s", result.Status)
	}
}

func TestHandler_LivenessHandler(t *testing.T) {
	checker := NewChecker(&CheckerConfig{
		Version: "1.0.0",
	})
	handler := NewHandler(checker)

	req := httptest.NewRequest(http.MethodGet, "/health/live", nil)
	w := httptest.NewRecorder()

	handler.LivenessHandler(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("expected status 200, got %d", w.Code)
	}

	var response HealthResponse
	if err := json.NewDecoder(w.Body).Decode(&response); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}

	if response.Status != StatusHealthy {
		t.Errorf("expected status healthy, got %s", response.Status)
	}
}

func TestHandler_ReadinessHandler_Unhealthy(t *testing.T) {
	checker := NewChecker(&CheckerConfig{
		Version: "1.0.0",
	})
	handler := NewHandler(checker)

	req := httptest.NewRequest(http.MethodGet, "/health/ready", nil)
	w := httptest.NewRecorder()

	handler.ReadinessHandler(w, req)

	if w.Code != http.StatusServiceUnavailable {
		t.Errorf("expected status 503, got %d", w.Code)
	}

	var response HealthResponse
	if err := json.NewDecoder(w.Body).Decode(&response); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}

	if response.Status != StatusUnhealthy {
		t.Errorf("expected status unhealthy, got %s", response.Status)
	}
}

func TestHandler_HealthHandler_DeepQuery(t *testing.T) {
	checker := NewChecker(&CheckerConfig{
		Version: "1.0.0",
	})
	handler := NewHandler(checker)

	req := httptest.NewRequest(http.MethodGet, "/health?deep=true", nil)
	w := httptest.NewRecorder()

	handler.HealthHandler(w, req)

	var response HealthResponse
	if err := json.NewDecoder(w.Body).Decode(&response); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}

	if len(response.Components) == 0 {
		t.Error("deep check should include components")
	}
}
