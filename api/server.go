package api

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/queuectl/queuectl"
	"github.com/queuectl/queuectl/job"
)

// Server is queuectl's control-plane HTTP surface: one chi route per
// control operation, all delegating to a *queuectl.Core with no
// business logic of their own.
type Server struct {
	core *queuectl.Core
	log  *slog.Logger

	httpServer *http.Server
	collector  *collector

	shutdownOnce sync.Once
	shutdownCh   chan struct{}
}

// NewServer wires core's exported methods onto a chi router listening
// on addr, and registers a Prometheus collector (driven by core via the
// queuectl.Metrics hook plus periodic Status scrapes) at /metrics.
func NewServer(core *queuectl.Core, addr string, log *slog.Logger) *Server {
	if log == nil {
		log = slog.Default()
	}

	s := &Server{
		core:       core,
		log:        log,
		shutdownCh: make(chan struct{}),
	}

	s.collector = newCollector(func(ctx context.Context) (map[job.State]int, workerCounts, error) {
		report, err := core.Status(ctx)
		if err != nil {
			return nil, workerCounts{}, err
		}
		return report.Jobs, workerCounts{
			Processing: report.Workers.Processing,
			Idle:       report.Workers.Idle,
			Live:       report.Workers.Live,
		}, nil
	})
	core.SetMetrics(s.collector)
	registry := prometheus.NewRegistry()
	s.collector.register(registry)

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)

	r.Get("/jobs", s.handleList)
	r.Post("/jobs", s.handleEnqueue)
	r.Get("/status", s.handleStatus)
	r.Get("/dlq", s.handleDLQList)
	r.Post("/dlq/{id}/retry", s.handleDLQRetryOne)
	r.Post("/dlq/retry", s.handleDLQRetryAll)
	r.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))

	r.Group(func(admin chi.Router) {
		admin.Use(requireLoopback)
		admin.Get("/config", s.handleConfigList)
		admin.Get("/config/{key}", s.handleConfigGet)
		admin.Post("/config", s.handleConfigSet)
		admin.Post("/shutdown", s.handleShutdown)
	})

	s.httpServer = &http.Server{
		Addr:              addr,
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
	}
	return s
}

// Handler returns the underlying http.Handler, for tests that want to
// drive routes directly via httptest without binding a real listener.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// ListenAndServe blocks serving HTTP until the listener is closed by
// Shutdown. It returns nil on a clean shutdown, matching
// http.Server.ListenAndServe's http.ErrServerClosed convention.
func (s *Server) ListenAndServe() error {
	err := s.httpServer.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// Shutdown closes the listener so no new connections are accepted,
// letting in-flight requests complete. It does not touch the core;
// callers are responsible for calling queuectl.Core.Shutdown
// separately.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// ShutdownRequested returns a channel that is closed the first time an
// operator calls the Shutdown control operation over HTTP. main wires
// this alongside OS signals so either trigger runs the same shutdown
// sequence.
func (s *Server) ShutdownRequested() <-chan struct{} {
	return s.shutdownCh
}

func (s *Server) requestShutdown() {
	s.shutdownOnce.Do(func() { close(s.shutdownCh) })
}
