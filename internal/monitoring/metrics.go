package monitoring

import (
	"context"
	"net/http"
	"runtime"
	"sort"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
)

const checkTimeout = 5 * time.Second

type Metrics struct {
	mu              sync.RWMutex
	RequestCount    int64            `json:"request_count"`
	RequestDuration time.Duration    `json:"avg_request_duration_ms"`
	ActiveRequests  int64            `json:"active_requests"`
	ErrorCount      int64            `json:"error_count"`
	StatusCodes     map[string]int64 `json:"status_codes"`
	Endpoints       map[string]int64 `json:"endpoint_calls"`
	TaskEvents      map[string]int64 `json:"task_events"`
	StartTime       time.Time        `json:"start_time"`
	LastRequest     time.Time        `json:"last_request"`
	totalDuration   time.Duration
}

// Task events counted by RecordTaskEvent.
const (
	EventTaskAdded     = "added"
	EventTaskCompleted = "completed"
	EventTaskReopened  = "reopened"
	EventTaskEdited    = "edited"
	EventTaskDeleted   = "deleted"
	EventTaskRejected  = "rejected"
)

type HealthChecker struct {
	funcs   map[string]HealthCheckFunc
	results map[string]HealthCheck
	mu      sync.Mutex
}

type HealthCheck struct {
	Name     string    `json:"name"`
	Status   string    `json:"status"`
	Message  string    `json:"message,omitempty"`
	Duration string    `json:"duration"`
	LastRun  time.Time `json:"last_run"`
}

type HealthCheckFunc func(ctx context.Context) error

// StatsFunc reports a component's internal counters for /metrics.
type StatsFunc func() map[string]interface{}

var globalMetrics = newMetrics()

var globalHealthChecker = &HealthChecker{
	funcs:   make(map[string]HealthCheckFunc),
	results: make(map[string]HealthCheck),
}

var (
	statsMu      sync.RWMutex
	statsSources = make(map[string]StatsFunc)
)

func newMetrics() *Metrics {
	return &Metrics{
		StatusCodes: make(map[string]int64),
		Endpoints:   make(map[string]int64),
		TaskEvents:  make(map[string]int64),
		StartTime:   time.Now(),
	}
}

func MetricsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		globalMetrics.mu.Lock()
		globalMetrics.ActiveRequests++
		globalMetrics.mu.Unlock()

		c.Next()

		duration := time.Since(start)
		statusCode := c.Writer.Status()
		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		endpoint := c.Request.Method + " " + route

		globalMetrics.mu.Lock()
		globalMetrics.RequestCount++
		globalMetrics.ActiveRequests--
		globalMetrics.totalDuration += duration
		globalMetrics.RequestDuration = globalMetrics.totalDuration / time.Duration(globalMetrics.RequestCount)
		globalMetrics.LastRequest = time.Now()

		if statusCode >= 400 {
			globalMetrics.ErrorCount++
		}
		globalMetrics.StatusCodes[http.StatusText(statusCode)]++
		globalMetrics.Endpoints[endpoint]++
		globalMetrics.mu.Unlock()
	}
}

// RecordTaskEvent counts a completed task operation.
func RecordTaskEvent(event string) {
	globalMetrics.mu.Lock()
	globalMetrics.TaskEvents[event]++
	globalMetrics.mu.Unlock()
}

func GetMetrics() *Metrics {
	globalMetrics.mu.RLock()
	defer globalMetrics.mu.RUnlock()

	metrics := &Metrics{
		RequestCount:    globalMetrics.RequestCount,
		RequestDuration: globalMetrics.RequestDuration,
		ActiveRequests:  globalMetrics.ActiveRequests,
		ErrorCount:      globalMetrics.ErrorCount,
		StatusCodes:     make(map[string]int64, len(globalMetrics.StatusCodes)),
		Endpoints:       make(map[string]int64, len(globalMetrics.Endpoints)),
		TaskEvents:      make(map[string]int64, len(globalMetrics.TaskEvents)),
		StartTime:       globalMetrics.StartTime,
		LastRequest:     globalMetrics.LastRequest,
	}

	for k, v := range globalMetrics.StatusCodes {
		metrics.StatusCodes[k] = v
	}
	for k, v := range globalMetrics.Endpoints {
		metrics.Endpoints[k] = v
	}
	for k, v := range globalMetrics.TaskEvents {
		metrics.TaskEvents[k] = v
	}

	return metrics
}

// ResetMetrics clears all counters and restarts the uptime clock.
func ResetMetrics() {
	fresh := newMetrics()

	globalMetrics.mu.Lock()
	defer globalMetrics.mu.Unlock()

	globalMetrics.RequestCount = 0
	globalMetrics.RequestDuration = 0
	globalMetrics.ActiveRequests = 0
	globalMetrics.ErrorCount = 0
	globalMetrics.StatusCodes = fresh.StatusCodes
	globalMetrics.Endpoints = fresh.Endpoints
	globalMetrics.TaskEvents = fresh.TaskEvents
	globalMetrics.StartTime = fresh.StartTime
	globalMetrics.LastRequest = time.Time{}
	globalMetrics.totalDuration = 0
}

type SystemMetrics struct {
	Uptime         time.Duration `json:"uptime"`
	MemoryUsage    MemoryStats   `json:"memory"`
	GoroutineCount int           `json:"goroutine_count"`
	CPUCount       int           `json:"cpu_count"`
	GoVersion      string        `json:"go_version"`
}

type MemoryStats struct {
	Alloc        uint64 `json:"alloc_mb"`
	TotalAlloc   uint64 `json:"total_alloc_mb"`
	Sys          uint64 `json:"sys_mb"`
	NumGC        uint32 `json:"num_gc"`
	NextGC       uint64 `json:"next_gc_mb"`
	LastGC       string `json:"last_gc"`
	GCPauseTotal string `json:"gc_pause_total"`
}

func GetSystemMetrics() SystemMetrics {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)

	globalMetrics.mu.RLock()
	start := globalMetrics.StartTime
	globalMetrics.mu.RUnlock()

	return SystemMetrics{
		Uptime: time.Since(start),
		MemoryUsage: MemoryStats{
			Alloc:        bToMb(m.Alloc),
			TotalAlloc:   bToMb(m.TotalAlloc),
			Sys:          bToMb(m.Sys),
			NumGC:        m.NumGC,
			NextGC:       bToMb(m.NextGC),
			LastGC:       time.Unix(0, int64(m.LastGC)).Format(time.RFC3339),
			GCPauseTotal: time.Duration(m.PauseTotalNs).String(),
		},
		GoroutineCount: runtime.NumGoroutine(),
		CPUCount:       runtime.NumCPU(),
		GoVersion:      runtime.Version(),
	}
}

func bToMb(b uint64) uint64 {
	return b / 1024 / 1024
}

// RegisterHealthCheck adds or replaces a named check. Checks run on every
// health and readiness request.
func RegisterHealthCheck(name string, checkFunc HealthCheckFunc) {
	globalHealthChecker.mu.Lock()
	defer globalHealthChecker.mu.Unlock()

	globalHealthChecker.funcs[name] = checkFunc
	delete(globalHealthChecker.results, name)
}

func UnregisterHealthCheck(name string) {
	globalHealthChecker.mu.Lock()
	defer globalHealthChecker.mu.Unlock()

	delete(globalHealthChecker.funcs, name)
	delete(globalHealthChecker.results, name)
}

func RunHealthChecks(ctx context.Context) map[string]HealthCheck {
	globalHealthChecker.mu.Lock()
	names := make([]string, 0, len(globalHealthChecker.funcs))
	funcs := make(map[string]HealthCheckFunc, len(globalHealthChecker.funcs))
	for name, fn := range globalHealthChecker.funcs {
		names = append(names, name)
		funcs[name] = fn
	}
	globalHealthChecker.mu.Unlock()
	sort.Strings(names)

	results := make(map[string]HealthCheck, len(names))
	for _, name := range names {
		results[name] = runCheck(ctx, name, funcs[name])
	}

	globalHealthChecker.mu.Lock()
	for name, check := range results {
		if _, ok := globalHealthChecker.funcs[name]; ok {
			globalHealthChecker.results[name] = check
		}
	}
	globalHealthChecker.mu.Unlock()

	return results
}

// LastHealthChecks returns the outcome of the most recent run without re-running the checks.
func LastHealthChecks() map[string]HealthCheck {
	globalHealthChecker.mu.Lock()
	defer globalHealthChecker.mu.Unlock()

	results := make(map[string]HealthCheck, len(globalHealthChecker.results))
	for name, check := range globalHealthChecker.results {
		results[name] = check
	}
	return results
}

// RegisterStatsSource adds or replaces a named component whose stats are
// reported under "components" on /metrics.
func RegisterStatsSource(name string, fn StatsFunc) {
	statsMu.Lock()
	defer statsMu.Unlock()
	statsSources[name] = fn
}

func UnregisterStatsSource(name string) {
	statsMu.Lock()
	defer statsMu.Unlock()
	delete(statsSources, name)
}

func ComponentStats() map[string]map[string]interface{} {
	statsMu.RLock()
	defer statsMu.RUnlock()

	stats := make(map[string]map[string]interface{}, len(statsSources))
	for name, fn := range statsSources {
		stats[name] = fn()
	}
	return stats
}

func runCheck(ctx context.Context, name string, fn HealthCheckFunc) HealthCheck {
	ctx, cancel := context.WithTimeout(ctx, checkTimeout)
	defer cancel()

	start := time.Now()
	check := HealthCheck{Name: name, Status: "healthy", LastRun: start}
	if err := fn(ctx); err != nil {
		check.Status = "unhealthy"
		check.Message = err.Error()
	}
	check.Duration = time.Since(start).String()
	return check
}

func allHealthy(checks map[string]HealthCheck) bool {
	for _, check := range checks {
		if check.Status != "healthy" {
			return false
		}
	}
	return true
}

func MetricsHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"application": GetMetrics(),
			"system":      GetSystemMetrics(),
			"components":  ComponentStats(),
			"health":      LastHealthChecks(),
			"timestamp":   time.Now(),
		})
	}
}

func HealthHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		checks := RunHealthChecks(c.Request.Context())

		overallStatus := "healthy"
		status := http.StatusOK
		if !allHealthy(checks) {
			overallStatus = "unhealthy"
			status = http.StatusServiceUnavailable
		}

		c.JSON(status, gin.H{
			"status":    overallStatus,
			"timestamp": time.Now(),
			"checks":    checks,
			"uptime":    GetSystemMetrics().Uptime.String(),
		})
	}
}

func ReadinessHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		if allHealthy(RunHealthChecks(c.Request.Context())) {
			c.JSON(http.StatusOK, gin.H{
				"status":    "ready",
				"timestamp": time.Now(),
			})
			return
		}

		c.JSON(http.StatusServiceUnavailable, gin.H{
			"status":    "not ready",
			"timestamp": time.Now(),
		})
	}
}

func LivenessHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":    "alive",
			"timestamp": time.Now(),
			"uptime":    GetSystemMetrics().Uptime.String(),
		})
	}
}
