package http

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"
)

const readyTimeout = 2 * time.Second

func handleHealth(w http.ResponseWriter, r *http.Request) {
	NewResponse().JSON(map[string]string{"status": "ok"}).Write(w)
}

type readiness struct {
	Status  string `json:"status"`
	Records int    `json:"records"`
	Error   string `json:"error,omitempty"`
}

// handleReady checks the store. An empty store is ready; it only means
// initialize has not run yet.
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), readyTimeout)
	defer cancel()

	n, err := s.products.Ready(ctx)
	if err != nil {
		NewResponse().
			Status(http.StatusServiceUnavailable).
			JSON(readiness{Status: "unavailable", Error: err.Error()}).
			Write(w)
		return
	}

	NewResponse().JSON(readiness{Status: "ready", Records: n}).Write(w)
}

// handleMetrics renders counters in the Prometheus text format.
func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	var b strings.Builder
	counter := func(name, help string, v int64) {
		fmt.Fprintf(&b, "# HELP %s %s\n# TYPE %s counter\n%s %d\n", name, help, name, name, v)
	}
	gauge := func(name, help string, v int64) {
		fmt.Fprintf(&b, "# HELP %s %s\n# TYPE %s gauge\n%s %d\n", name, help, name, name, v)
	}

	if s.tracer != nil {
		m := s.tracer.GetMetrics()
		counter("salestats_http_requests_total", "HTTP requests served.", m.TotalRequests)
		counter("salestats_http_client_errors_total", "HTTP responses with a 4xx status.", m.ClientErrors)
		counter("salestats_http_server_errors_total", "HTTP responses with a 5xx status.", m.ServerErrors)
		gauge("salestats_http_response_time_avg_microseconds", "Average response time.", m.AverageResponseTime)
	}

	stats := s.products.Stats()
	counter("salestats_seeds_total", "Completed reseeds.", stats.Seeds)
	counter("salestats_seed_failures_total", "Failed reseeds.", stats.SeedFailures)
	counter("salestats_snapshot_cache_hits_total", "Collection cache hits.", stats.SnapshotCache.Hits)
	counter("salestats_snapshot_cache_misses_total", "Collection cache misses.", stats.SnapshotCache.Misses)
	counter("salestats_combined_cache_hits_total", "Combined view cache hits.", stats.CombinedCache.Hits)
	counter("salestats_combined_cache_misses_total", "Combined view cache misses.", stats.CombinedCache.Misses)
	gauge("salestats_combined_cache_entries", "Cached combined views.", int64(stats.CombinedCache.Size))

	if s.limiter != nil {
		m := s.limiter.GetMetrics()
		counter("salestats_rate_limited_total", "Requests rejected by the rate limiter.", m.TotalHits)
		gauge("salestats_rate_limit_clients", "Clients tracked by the rate limiter.", m.ClientCount)
	}

	if s.detector != nil {
		m := s.detector.GetMetrics()
		counter("salestats_suspicious_requests_total", "Requests flagged as suspicious.", m.SuspiciousRequests)
		counter("salestats_invalid_forwarded_ip_total", "Invalid forwarded client addresses.", m.InvalidIPAttempts)
	}

	NewResponse().
		Text(b.String()).
		Header("Content-Type", "text/plain; version=0.0.4; charset=utf-8").
		Header("Cache-Control", "no-store").
		Write(w)
}
