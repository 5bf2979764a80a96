// Package metrics exports the interception counters in the Prometheus format.
package metrics

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/AdguardTeam/golibs/errors"
	"github.com/AdguardTeam/golibs/logutil/slogutil"
	"github.com/netinterceptor/blockfilter"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// namespace is the namespace of all metrics.
const namespace = "blockfilter"

// StatsSource provides the counters.  [*blockfilter.Engine] implements it.
type StatsSource interface {
	// Stats returns the current values of the counters.
	Stats() (s blockfilter.StatsSnapshot)
}

// type check
var _ StatsSource = (*blockfilter.Engine)(nil)

// NewRegistry returns a new registry with the counters of src registered.
func NewRegistry(src StatsSource) (reg *prometheus.Registry, err error) {
	reg = prometheus.NewRegistry()

	blocked := prometheus.NewCounterFunc(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "requests_blocked_total",
		Help:      "The number of requests answered with a synthetic response.",
	}, func() (v float64) {
		return float64(src.Stats().Blocked)
	})

	allowed := prometheus.NewCounterFunc(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "requests_allowed_total",
		Help:      "The number of requests forwarded upstream.",
	}, func() (v float64) {
		return float64(src.Stats().Allowed)
	})

	for _, c := range []prometheus.Collector{blocked, allowed} {
		err = reg.Register(c)
		if err != nil {
			return nil, fmt.Errorf("registering collector: %w", err)
		}
	}

	return reg, nil
}

// readHeaderTimeout is the timeout for reading the request headers.
const readHeaderTimeout = 10 * time.Second

// Server serves the metrics over HTTP.
type Server struct {
	logger *slog.Logger
	srv    *http.Server
	addr   string
}

// NewServer returns a new *Server serving the counters of src at /metrics on
// addr.
func NewServer(l *slog.Logger, addr string, src StatsSource) (s *Server, err error) {
	reg, err := NewRegistry(src)
	if err != nil {
		return nil, err
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{
		ErrorLog: slog.NewLogLogger(l.Handler(), slog.LevelError),
	}))

	return &Server{
		logger: l,
		srv: &http.Server{
			Handler:           mux,
			ReadHeaderTimeout: readHeaderTimeout,
		},
		addr: addr,
	}, nil
}

// Start starts listening and serving in a separate goroutine.
func (s *Server) Start(ctx context.Context) (err error) {
	l, err := net.Listen("tcp", s.addr)
	if err != nil {
		return fmt.Errorf("listening: %w", err)
	}

	s.logger.InfoContext(ctx, "serving metrics", "addr", l.Addr())

	go func() {
		defer slogutil.RecoverAndLog(ctx, s.logger)

		serveErr := s.srv.Serve(l)
		if !errors.Is(serveErr, http.ErrServerClosed) {
			s.logger.ErrorContext(ctx, "serving metrics", slogutil.KeyError, serveErr)
		}
	}()

	return nil
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) (err error) {
	err = s.srv.Shutdown(ctx)
	if err != nil {
		return fmt.Errorf("shutting down metrics server: %w", err)
	}

	return nil
}
