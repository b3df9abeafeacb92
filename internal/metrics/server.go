package metrics

import (
	"context"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"
)

// healthLimiterRate and healthLimiterBurst bound /healthz the same way the
// pack's matter-data-logger health endpoints are bounded: modest, to absorb
// a monitoring probe storm without becoming a vector itself.
const (
	healthLimiterRate  = 10
	healthLimiterBurst = 20
)

// Server exposes /metrics and /healthz on a localhost-only listener. It is
// never meant to be reachable off-box: per spec.md's non-goals this is
// self-observability for the forwarder process, not a dashboard surface.
type Server struct {
	httpServer *http.Server
	log        zerolog.Logger
}

// NewServer builds a Server bound to addr (expected to be a loopback
// address, e.g. "127.0.0.1:9090").
func NewServer(addr string, reg *prometheus.Registry, log zerolog.Logger) *Server {
	limiter := rate.NewLimiter(rate.Limit(healthLimiterRate), healthLimiterBurst)

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	mux.HandleFunc("/healthz", rateLimited(limiter, log, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	}))

	return &Server{
		httpServer: &http.Server{Addr: addr, Handler: mux},
		log:        log,
	}
}

func rateLimited(limiter *rate.Limiter, log zerolog.Logger, next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !limiter.Allow() {
			log.Warn().Str("path", r.URL.Path).Str("remote_addr", r.RemoteAddr).
				Msg("rate limit exceeded for health endpoint")
			http.Error(w, "rate limit exceeded", http.StatusTooManyRequests)
			return
		}
		next(w, r)
	}
}

// Run starts serving and blocks until the listener fails for a reason other
// than a clean Shutdown.
func (s *Server) Run() error {
	s.log.Info().Str("addr", s.httpServer.Addr).Msg("metrics server listening")
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Shutdown gracefully stops the server, bounded by ctx.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// shutdownTimeout is the default bound used by main when it doesn't already
// have a more specific deadline from the supervisor's own grace period.
const shutdownTimeout = 5 * time.Second

// DefaultShutdownTimeout exposes shutdownTimeout for callers that need a
// reasonable default without duplicating the constant.
func DefaultShutdownTimeout() time.Duration { return shutdownTimeout }
