package server

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/HaPhanBaoMinh/podcleaner/internal/domain"
)

// Status keeps the most recent cycle report. It is a notification sink.
type Status struct {
	mu        sync.RWMutex
	last      *domain.CycleReport
	startTime time.Time
}

func NewStatus() *Status { return &Status{startTime: time.Now()} }

func (s *Status) Notify(_ context.Context, r domain.CycleReport) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.last = &r
	return nil
}

// Last returns the latest report and whether one exists.
func (s *Status) Last() (domain.CycleReport, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.last == nil {
		return domain.CycleReport{}, false
	}
	return *s.last, true
}

// Server exposes probes, metrics and the last report over HTTP.
type Server struct {
	status   *Status
	registry prometheus.Gatherer
	engine   *gin.Engine
	srv      *http.Server
	log      *zap.Logger
}

func New(addr string, status *Status, registry prometheus.Gatherer, log *zap.Logger) *Server {
	if log == nil {
		log = zap.NewNop()
	}
	if registry == nil {
		registry = prometheus.NewRegistry()
	}
	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()
	engine.Use(gin.Recovery(), accessLog(log))

	s := &Server{
		status:   status,
		registry: registry,
		engine:   engine,
		srv:      &http.Server{Addr: addr, Handler: engine, ReadHeaderTimeout: 5 * time.Second},
		log:      log,
	}
	s.SetupRoutes(engine)
	return s
}

func (s *Server) SetupRoutes(r *gin.Engine) {
	r.GET("/healthz", s.healthz)
	r.GET("/readyz", s.readyz)
	r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{})))

	api := r.Group("/api/v1")
	{
		api.GET("/last-report", s.lastReport)
	}
}

func (s *Server) Handler() http.Handler { return s.engine }

// Run serves until ctx is done, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		s.log.Info("status server listening", zap.String("addr", s.srv.Addr))
		if err := s.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	return s.srv.Shutdown(shutdownCtx)
}

func (s *Server) healthz(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "ok",
		"uptime": time.Since(s.status.startTime).Round(time.Second).String(),
	})
}

// readyz reports ready once a first cycle has completed.
func (s *Server) readyz(c *gin.Context) {
	r, ok := s.status.Last()
	if !ok {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "waiting for first cycle"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ready", "lastCycle": r.EndedAt})
}

func (s *Server) lastReport(c *gin.Context) {
	r, ok := s.status.Last()
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "no cycle has completed yet"})
		return
	}
	c.JSON(http.StatusOK, r)
}

func accessLog(log *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		log.Debug("http request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)))
	}
}
