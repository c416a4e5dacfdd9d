// Package server is the chart HTTP server: chart JSON, the page hosting the
// chart element and the live websocket sessions behind it.
package server

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"html/template"
	"io/fs"
	"net/http"
	"time"

	"marketchart/config"
	"marketchart/internal/cache"
	"marketchart/internal/live"
	"marketchart/internal/market"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

//go:embed web
var webFS embed.FS

var pageTemplate = template.Must(template.ParseFS(webFS, "web/chart.html"))

type pinger interface {
	Ping(ctx context.Context) error
}

type Server struct {
	cfg     config.ServerConfig
	storage market.Storage
	charts  *Charts
	live    *live.Handler
	users   Verifier
	router  *gin.Engine
	logger  *zap.Logger
}

type Option func(*Server)

// WithUsers requires HTTP basic authentication against users on every route
// but /health.
func WithUsers(users Verifier) Option {
	return func(s *Server) { s.users = users }
}

func New(cfg config.ServerConfig, storage market.Storage, payloads cache.Payloads, logger *zap.Logger, opts ...Option) *Server {
	if cfg.Mode != "" {
		gin.SetMode(cfg.Mode)
	}

	charts := NewCharts(storage, payloads, logger)
	s := &Server{
		cfg:     cfg,
		storage: storage,
		charts:  charts,
		live:    live.NewHandler(charts, logger),
		router:  gin.New(),
		logger:  logger,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.routes()
	return s
}

func (s *Server) routes() {
	r := s.router
	r.Use(gin.Recovery(), RequestLogging(s.logger), ErrorHandler(s.logger))
	r.GET("/health", s.health)

	g := r.Group("/")
	if s.users != nil {
		g.Use(BasicAuth(s.users, s.logger))
	}

	static, _ := fs.Sub(webFS, "web/static")
	g.StaticFS("/static", http.FS(static))

	g.GET("/tickers", s.tickers)
	g.GET("/json/:symbol", s.chartJSON)
	g.GET("/values/:ticker", s.values)
	g.GET("/company_infos", s.companyInfos)
	g.GET("/company_infos/:ticker", s.companyInfo)
	g.GET("/", s.page)
	g.GET("/chart/:ticker", s.page)
	g.GET("/ws", gin.WrapH(s.live))
}

// Handler returns the router, for tests and embedding.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Run serves until ctx is done, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:         s.cfg.Addr,
		Handler:      s.router,
		ReadTimeout:  s.cfg.ReadTimeout,
		WriteTimeout: s.cfg.WriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("chart server listening", zap.String("addr", s.cfg.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("listen: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	timeout := s.cfg.ShutdownTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	s.logger.Info("chart server shutting down", zap.Int64("live_sessions", s.live.Active()))
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}
