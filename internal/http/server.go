package http

import (
	"context"
	"net/http"
	"strings"
	"sync"
	"time"

	"salestats/internal/log"
	"salestats/internal/middleware/ratelimit"
	"salestats/internal/middleware/security"
	"salestats/internal/middleware/trace"
)

const (
	productPrefix       = "/product/"
	minWriteTimeout     = 60 * time.Second
	responseWriteMargin = 15 * time.Second
)

// Options configures NewServer. Zero values pick the defaults.
type Options struct {
	Logger             *log.Logger
	RateLimitPerMinute int
	TrustedProxies     []string

	// SeedTimeout bounds /product/initialize; the write timeout outlasts it.
	SeedTimeout time.Duration
}

// Server is the product API server.
type Server struct {
	http.Server

	products ProductService
	logger   *log.Logger
	tracer   *trace.Middleware
	limiter  *ratelimit.Limiter
	detector *security.Detector

	shutdownOnce sync.Once
}

// NewServer wires routes and middleware, returning a ready-to-run server.
// Requests pass through trace, logger context, security headers, suspicious
// request detection, rate limiting and CORS before reaching the routes.
func NewServer(addr string, products ProductService, opts Options) *Server {
	if opts.Logger == nil {
		opts.Logger = log.New(log.DefaultConfig())
	}

	s := &Server{
		products: products,
		logger:   opts.Logger.WithComponent(log.ComponentHTTP),
		detector: security.NewDetector(opts.Logger),
	}

	for _, cidr := range opts.TrustedProxies {
		if err := s.detector.AddTrustedProxy(cidr); err != nil {
			s.logger.Warn("Ignoring trusted proxy", log.FieldError, err)
		}
	}

	s.tracer = trace.NewMiddleware(s.detector.ExtractClientIP, opts.Logger)
	s.limiter = ratelimit.NewLimiter(ratelimit.Config{
		RequestsPerMinute: opts.RateLimitPerMinute,
		Logger:            opts.Logger,
	})

	mux := http.NewServeMux()
	mux.HandleFunc("GET /product/initialize", s.handleInitialize)
	mux.HandleFunc("GET /product/transactions", s.handleTransactions)
	mux.HandleFunc("GET /product/statistics", s.handleStatistics)
	mux.HandleFunc("GET /product/barchart", s.handleBarChart)
	mux.HandleFunc("GET /product/piechart", s.handlePieChart)
	mux.HandleFunc("GET /product/combined", s.handleCombined)
	mux.HandleFunc("GET /healthz", handleHealth)
	mux.HandleFunc("GET /readyz", s.handleReady)
	mux.HandleFunc("GET /metrics", s.handleMetrics)

	var handler http.Handler = mux
	handler = security.CORSMiddleware(productPrefix)(handler)
	handler = onlyUnder(productPrefix, s.limiter.Middleware(s.detector.ExtractClientIP, nil))(handler)
	handler = s.detector.Middleware(handler)
	handler = security.NewHeadersMiddleware(security.DefaultHeadersConfig()).Middleware(handler)
	handler = log.RequestIDMiddleware(trace.RequestIDFromRequest)(handler)
	handler = log.Middleware(opts.Logger.WithComponent(log.ComponentHTTP))(handler)
	handler = s.tracer.Middleware(handler)

	s.Server = http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      writeTimeout(opts.SeedTimeout),
		IdleTimeout:       120 * time.Second,
	}

	return s
}

// writeTimeout leaves initialize room to answer after a seed download that
// used its whole budget.
func writeTimeout(seedTimeout time.Duration) time.Duration {
	if d := seedTimeout + responseWriteMargin; d > minWriteTimeout {
		return d
	}
	return minWriteTimeout
}

// onlyUnder applies mw to requests whose path starts with prefix.
func onlyUnder(prefix string, mw func(http.Handler) http.Handler) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		wrapped := mw(next)
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if strings.HasPrefix(r.URL.Path, prefix) {
				wrapped.ServeHTTP(w, r)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// Shutdown stops the rate limiter and drains the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	var err error
	s.shutdownOnce.Do(func() {
		s.limiter.Stop()
		err = s.Server.Shutdown(ctx)
	})
	return err
}
