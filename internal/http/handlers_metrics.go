package http

import (
	"fmt"
	"net/http"
	"sync/atomic"
	"time"
)

type appMetrics struct {
	started     time.Time
	mutations   atomic.Int64
	cacheHits   atomic.Int64
	cacheMisses atomic.Int64
}

// handleMetrics writes counters in the Prometheus text format.
func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	traceMetrics := s.tracer.GetMetrics()
	rateLimitMetrics := s.limiter.GetMetrics()
	securityMetrics := s.detector.GetMetrics()

	w.Header().Set("Content-Type", "text/plain; version=0.0.4; charset=utf-8")
	w.WriteHeader(http.StatusOK)

	metric := func(name, kind, help string, value any) {
		fmt.Fprintf(w, "# HELP %s %s\n# TYPE %s %s\n%s %v\n\n", name, help, name, kind, name, value)
	}
	metric("http_requests_total", "counter", "Total number of HTTP requests", traceMetrics.TotalRequests)
	metric("http_server_errors_total", "counter", "Responses with a 5xx status", traceMetrics.ServerErrors)
	metric("http_last_response_microseconds", "gauge", "Duration of the most recent request", traceMetrics.LastResponseTime)
	metric("mutations_total", "counter", "Successful mutating API calls", s.metrics.mutations.Load())
	metric("dashboard_cache_hits_total", "counter", "Dashboard requests served from cache", s.metrics.cacheHits.Load())
	metric("dashboard_cache_misses_total", "counter", "Dashboard requests computed from the backend", s.metrics.cacheMisses.Load())
	metric("dashboard_cache_entries", "gauge", "Cached dashboard periods", s.dashboardCache.Size())
	metric("rate_limit_hits_total", "counter", "Requests rejected by the rate limiter", rateLimitMetrics.TotalHits)
	metric("rate_limit_clients", "gauge", "Clients tracked by the rate limiter", rateLimitMetrics.ClientCount)
	metric("security_suspicious_requests_total", "counter", "Requests blocked as probes", securityMetrics.SuspiciousRequests)
	metric("uptime_seconds", "gauge", "Seconds since the server started", int64(time.Since(s.metrics.started).Seconds()))
}
