package main

import (
	"context"
	"net"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"task-tracker/internal/config"
	"task-tracker/internal/flash"
	"task-tracker/internal/monitoring"
	"task-tracker/internal/security"

	"github.com/alicebob/miniredis/v2"
)

func setTestEnv(t *testing.T) {
	t.Helper()
	t.Setenv("ENVIRONMENT", "development")
	t.Setenv("DB_DRIVER", "sqlite")
	t.Setenv("DB_PATH", filepath.Join(t.TempDir(), "tasks.db"))
	t.Setenv("DB_LOG_LEVEL", "silent")
	t.Setenv("PORT", "0")
}

func TestApplicationStartup(t *testing.T) {
	setTestEnv(t)

	cfg, err := config.LoadConfig()
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}

	a, err := newApp(cfg)
	if err != nil {
		t.Fatalf("Failed to build app: %v", err)
	}
	t.Cleanup(func() {
		monitoring.UnregisterHealthCheck("database")
		monitoring.UnregisterStatsSource("database")
	})

	w := httptest.NewRecorder()
	a.server.Handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
	if w.Code != http.StatusOK {
		t.Errorf("Expected status %d, got %d", http.StatusOK, w.Code)
	}

	w = httptest.NewRecorder()
	a.server.Handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/ready", nil))
	if w.Code != http.StatusOK {
		t.Errorf("Expected ready status %d, got %d", http.StatusOK, w.Code)
	}

	if a.limiter == nil {
		t.Error("Expected rate limiter to be enabled by default")
	}
	if a.notices != nil {
		t.Error("Expected no Redis notice store by default")
	}

	if _, ok := monitoring.ComponentStats()["database"]["open_connections"]; !ok {
		t.Errorf("Expected database pool stats on /metrics, got %v", monitoring.ComponentStats())
	}

	if err := a.shutdown(context.Background()); err != nil {
		t.Errorf("Shutdown returned error: %v", err)
	}
}

func TestApplicationStartup_RedisNotices(t *testing.T) {
	setTestEnv(t)
	mr := miniredis.RunT(t)
	host, port, err := net.SplitHostPort(mr.Addr())
	if err != nil {
		t.Fatalf("Bad miniredis addr: %v", err)
	}
	t.Setenv("NOTICE_STORE", "redis")
	t.Setenv("REDIS_HOST", host)
	t.Setenv("REDIS_PORT", port)
	t.Setenv("RATE_LIMIT_ENABLED", "false")

	cfg, err := config.LoadConfig()
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}

	a, err := newApp(cfg)
	if err != nil {
		t.Fatalf("Failed to build app: %v", err)
	}
	t.Cleanup(func() {
		monitoring.UnregisterHealthCheck("database")
		monitoring.UnregisterHealthCheck("redis")
		monitoring.UnregisterStatsSource("database")
		monitoring.UnregisterStatsSource("redis")
	})

	if a.notices == nil {
		t.Fatal("Expected Redis notice store")
	}
	if a.limiter != nil {
		t.Error("Expected rate limiter to be disabled")
	}

	checks := monitoring.RunHealthChecks(context.Background())
	if checks["redis"].Status != "healthy" {
		t.Errorf("Expected healthy redis check, got %+v", checks["redis"])
	}
	if _, ok := monitoring.ComponentStats()["redis"]["breaker"]; !ok {
		t.Errorf("Expected redis store stats on /metrics, got %v", monitoring.ComponentStats())
	}

	mr.Close()
	w := httptest.NewRecorder()
	a.server.Handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
	if w.Code != http.StatusServiceUnavailable {
		t.Errorf("Expected %d once Redis is gone, got %d", http.StatusServiceUnavailable, w.Code)
	}

	if err := a.shutdown(context.Background()); err != nil {
		t.Errorf("Shutdown returned error: %v", err)
	}
}

func TestApplicationStartup_InvalidConfig(t *testing.T) {
	setTestEnv(t)
	t.Setenv("NOTICE_STORE", "memcached")

	if _, err := config.LoadConfig(); err == nil {
		t.Error("Expected error for unsupported notice store")
	}
}

func TestNoticeStoreSelection(t *testing.T) {
	setTestEnv(t)

	cfg, err := config.LoadConfig()
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}

	a := &app{}
	keys, err := security.DeriveKeys(cfg.Security.SecretKey)
	if err != nil {
		t.Fatalf("DeriveKeys returned error: %v", err)
	}
	store, err := a.noticeStore(cfg, keys)
	if err != nil {
		t.Fatalf("noticeStore returned error: %v", err)
	}
	if _, ok := store.(*flash.CookieStore); !ok {
		t.Errorf("Expected cookie store by default, got %T", store)
	}
}
