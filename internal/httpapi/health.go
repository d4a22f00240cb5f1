package httpapi

import (
	"net/http"
	"runtime"
	"time"
)

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":    "ok",
		"service":   "ttsgateway",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
		"uptime":    time.Since(s.Started).String(),
		"metrics":   s.Pipe.Usage.Stats(time.Time{}),
	})
}

// handleReady reports 200 once at least one provider adapter has been
// constructed and is healthy, and 503 otherwise (including at startup,
// before any adapter has been lazily constructed).
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	health := s.Registry.ListHealth(r.Context())
	anyOK := false
	for _, h := range health {
		if h.OK {
			anyOK = true
			break
		}
	}
	status := http.StatusOK
	if !anyOK {
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, map[string]any{
		"ready":     anyOK,
		"providers": health,
	})
}

// handleMetrics reports the gateway's usage counters as JSON alongside
// runtime memory statistics, per spec.md §6. Traces are exported
// separately via the otelhttp instrumentation wrapping the router.
func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	stats := s.Pipe.Usage.Stats(time.Time{})

	var mem runtime.MemStats
	runtime.ReadMemStats(&mem)

	writeJSON(w, http.StatusOK, map[string]any{
		"counters": map[string]any{
			"requests_total":  stats.Total,
			"requests_failed": stats.Errors,
			"by_provider":     stats.ByProvider,
			"by_status":       stats.ByStatus,
			"cost_usd_total":  stats.TotalCostUSD,
		},
		"memory": map[string]any{
			"alloc_bytes":       mem.Alloc,
			"total_alloc_bytes": mem.TotalAlloc,
			"sys_bytes":         mem.Sys,
			"heap_alloc_bytes":  mem.HeapAlloc,
			"num_gc":            mem.NumGC,
			"goroutines":        runtime.NumGoroutine(),
		},
	})
}
