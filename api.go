package main

import (
	"context"
	"log/slog"
	"net/http"
	"runtime"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/mem"

	"parley/server/internal/session"
	"parley/server/internal/store"
)

// APIServer provides HTTP endpoints for health checking, operational
// stats, and Prometheus metrics. It runs on a separate TCP port from
// the chat listener and is disabled unless an address is configured.
type APIServer struct {
	st       *store.Store
	sessions *session.Registry
	echo     *echo.Echo
}

// NewAPIServer constructs an APIServer and registers all routes.
func NewAPIServer(st *store.Store, sessions *session.Registry, reg *prometheus.Registry) *APIServer {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogMethod: true,
		LogURI:    true,
		LogStatus: true,
		LogValuesFunc: func(_ echo.Context, v middleware.RequestLoggerValues) error {
			slog.Debug("api request", "method", v.Method, "uri", v.URI, "status", v.Status)
			return nil
		},
	}))
	e.Use(middleware.Recover())

	s := &APIServer{st: st, sessions: sessions, echo: e}
	e.GET("/health", s.handleHealth)
	e.GET("/api/stats", s.handleStats)
	e.GET("/metrics", echo.WrapHandler(promhttp.HandlerFor(reg, promhttp.HandlerOpts{})))
	return s
}

// Run starts the HTTP server on addr and blocks until ctx is cancelled.
func (s *APIServer) Run(ctx context.Context, addr string) {
	go func() {
		if err := s.echo.Start(addr); err != nil && err != http.ErrServerClosed {
			slog.Error("api server", "err", err)
		}
	}()
	<-ctx.Done()
	shutCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.echo.Shutdown(shutCtx); err != nil {
		slog.Error("api shutdown", "err", err)
	}
}

// HealthResponse is the payload for GET /health.
type HealthResponse struct {
	Status   string `json:"status"`
	Sessions int    `json:"sessions"`
}

func (s *APIServer) handleHealth(c echo.Context) error {
	return c.JSON(http.StatusOK, HealthResponse{
		Status:   "ok",
		Sessions: s.sessions.Count(),
	})
}

// StatsResponse is the payload for GET /api/stats.
type StatsResponse struct {
	Users      int64   `json:"users"`
	Groups     int64   `json:"groups"`
	Messages   int64   `json:"messages"`
	Sessions   int     `json:"sessions"`
	Goroutines int     `json:"goroutines"`
	MemUsedPct float64 `json:"mem_used_pct"`
	CPUPct     float64 `json:"cpu_pct"`
}

func (s *APIServer) handleStats(c echo.Context) error {
	users, err := s.st.UserCount()
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	groups, err := s.st.GroupCount()
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	messages, err := s.st.MessageCount()
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	resp := StatsResponse{
		Users:      users,
		Groups:     groups,
		Messages:   messages,
		Sessions:   s.sessions.Count(),
		Goroutines: runtime.NumGoroutine(),
	}
	// Host-level figures are best-effort.
	if vm, err := mem.VirtualMemory(); err == nil {
		resp.MemUsedPct = vm.UsedPercent
	}
	if pct, err := cpu.Percent(0, false); err == nil && len(pct) > 0 {
		resp.CPUPct = pct[0]
	}
	return c.JSON(http.StatusOK, resp)
}
