package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"

	"github.com/thedomainai/agentic-stack/internal/audit"
	"github.com/thedomainai/agentic-stack/internal/broker"
	"github.com/thedomainai/agentic-stack/internal/config"
	"github.com/thedomainai/agentic-stack/internal/models"
	"github.com/thedomainai/agentic-stack/internal/orchestrator"
	"github.com/thedomainai/agentic-stack/internal/secrets"
	"github.com/thedomainai/agentic-stack/internal/statestore"
	"github.com/thedomainai/agentic-stack/pkg/logger"
	"github.com/thedomainai/agentic-stack/pkg/ratelimiter"
)

func newTestRouter(t *testing.T) (*gin.Engine, *secrets.MemoryStore) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	store := statestore.NewMemoryStore()
	b := broker.NewChannelBroker(16)
	t.Cleanup(func() { b.Close() })
	secretStore := secrets.NewMemoryStore()

	base := t.TempDir()
	auditLog, err := audit.NewLog(&config.AuditConfig{
		MemoryDir:  filepath.Join(base, "memory"),
		MetricsDir: filepath.Join(base, "metrics"),
	})
	if err != nil {
		t.Fatalf("NewLog error = %v", err)
	}

	cfg := &config.AppConfig{
		Orchestrator: config.OrchestratorConfig{DefaultAgentType: "coder"},
		Agent:        config.AgentConfig{HeartbeatIntervalSeconds: 1, ContextTTLSeconds: 60, DedupTTLSeconds: 60},
		Databases:    config.DatabaseConfigs{Kafka: config.KafkaConfig{GroupID: "test"}},
	}

	orc := orchestrator.New(store, b, secretStore, auditLog, cfg)
	handler := NewAPI(orc, logger.New("api_test", "", ""))

	router := gin.New()
	handler.RegisterRoutes(router)
	return router, secretStore
}

func TestSubmitTaskHandler(t *testing.T) {
	router, _ := newTestRouter(t)

	body := `{"title":"Implement login button","description":"Add it","priority":"normal"}`
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/tasks", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusAccepted {
		t.Fatalf("expected 202, got %d: %s", rec.Code, rec.Body.String())
	}

	var resp map[string]interface{}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("invalid response body: %v", err)
	}
	if resp["task_id"] == "" || resp["task_id"] == nil {
		t.Error("expected a task_id in the response")
	}
	if resp["status"] != string(models.TaskStatusQueued) {
		t.Errorf("expected queued, got %v", resp["status"])
	}
	if resp["assigned_agent"] != "coder" {
		t.Errorf("expected coder, got %v", resp["assigned_agent"])
	}
}

func TestSubmitTaskHandlerRejectsMissingTitle(t *testing.T) {
	router, _ := newTestRouter(t)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/tasks", strings.NewReader(`{"description":"no title"}`))
	req.Header.Set("Content-Type", "application/json")
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", rec.Code)
	}
}

func TestGetTaskHandler(t *testing.T) {
	router, _ := newTestRouter(t)

	// Create through the API, then read it back.
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/tasks", strings.NewReader(`{"title":"Implement login button"}`))
	req.Header.Set("Content-Type", "application/json")
	router.ServeHTTP(rec, req)

	var created map[string]interface{}
	if err := json.Unmarshal(rec.Body.Bytes(), &created); err != nil {
		t.Fatalf("invalid response body: %v", err)
	}
	taskID, _ := created["task_id"].(string)

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/tasks/"+taskID, nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	var task models.Task
	if err := json.Unmarshal(rec.Body.Bytes(), &task); err != nil {
		t.Fatalf("invalid task body: %v", err)
	}
	if task.TaskID != taskID || task.Title != "Implement login button" {
		t.Error("returned task does not match the created one")
	}
}

func TestGetTaskHandlerNotFound(t *testing.T) {
	router, _ := newTestRouter(t)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/tasks/no-such-task", nil))
	if rec.Code != http.StatusNotFound {
		t.Errorf("expected 404, got %d", rec.Code)
	}
}

func TestHealthHandlerDegradedStillAnswers200(t *testing.T) {
	router, secretStore := newTestRouter(t)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	var health map[string]interface{}
	if err := json.Unmarshal(rec.Body.Bytes(), &health); err != nil {
		t.Fatalf("invalid health body: %v", err)
	}
	if health["status"] != "healthy" {
		t.Errorf("expected healthy, got %v", health["status"])
	}

	secretStore.Unreachable = true
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	if rec.Code != http.StatusOK {
		t.Errorf("degraded must still answer 200, got %d", rec.Code)
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &health); err != nil {
		t.Fatalf("invalid health body: %v", err)
	}
	if health["status"] != "degraded" {
		t.Errorf("expected degraded, got %v", health["status"])
	}
}

func TestRateLimitMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(RateLimit(ratelimiter.NewTokenBucket(1, 2)))
	router.GET("/ping", func(c *gin.Context) { c.Status(http.StatusOK) })

	codes := make([]int, 0, 4)
	for i := 0; i < 4; i++ {
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/ping", nil))
		codes = append(codes, rec.Code)
	}

	if codes[0] != http.StatusOK || codes[1] != http.StatusOK {
		t.Errorf("the burst capacity must be served, got %v", codes)
	}
	limited := false
	for _, code := range codes {
		if code == http.StatusTooManyRequests {
			limited = true
		}
	}
	if !limited {
		t.Errorf("expected at least one 429 beyond the burst, got %v", codes)
	}
}

func TestNewLimiterAlgorithms(t *testing.T) {
	for _, algorithm := range []string{"tokenBucket", "leakyBucket", "fixedWindowCounter", "slidingWindowLog", "slidingWindowCounter", "anythingElse"} {
		limiter := NewLimiter(config.RateLimiterConfig{Algorithm: algorithm, Rate: 10, Capacity: 5})
		if limiter == nil {
			t.Errorf("NewLimiter(%s) returned nil", algorithm)
		}
	}
}
