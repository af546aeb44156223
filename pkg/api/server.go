// Package api exposes the monitor over the local network with the routes
// the bundled web dashboard uses.
package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/itohio/envmon/pkg/alarm"
	"github.com/itohio/envmon/pkg/config"
	"github.com/itohio/envmon/pkg/logging"
	"github.com/itohio/envmon/pkg/monitor"
)

const shutdownTimeout = 5 * time.Second

// Engine is the part of the monitor the API drives.
type Engine interface {
	Data() monitor.Data
	Peek() monitor.Data
	SetThreshold(field alarm.Field, value float64) error
	SetArmed(armed bool) bool
}

var _ Engine = (*monitor.Monitor)(nil)

// assets served verbatim from the assets directory.
var assets = map[string]string{
	"/index.html":    "index.html",
	"/settings.html": "settings.html",
	"/chart.js":      "chart.js",
	"/leaflet.js":    "leaflet.js",
	"/leaflet.css":   "leaflet.css",
}

// Server serves the dashboard and its API.
type Server struct {
	engine    Engine
	cfg       config.HTTPConfig
	logger    *zap.Logger
	startTime time.Time
}

// NewServer creates a server.
func NewServer(engine Engine, cfg *config.HTTPConfig, logger *zap.Logger) *Server {
	return &Server{
		engine:    engine,
		cfg:       *cfg,
		logger:    logging.OrNop(logger).Named("api"),
		startTime: time.Now(),
	}
}

// Router builds the gin engine with middleware and routes.
func (s *Server) Router() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), s.requestLogger())

	origins := s.cfg.CORSOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	corsCfg := cors.Config{
		AllowMethods:  []string{"GET", "OPTIONS"},
		AllowHeaders:  []string{"Origin", "Content-Length", "Content-Type"},
		ExposeHeaders: []string{"Content-Length"},
		MaxAge:        12 * time.Hour,
	}
	if len(origins) == 1 && origins[0] == "*" {
		corsCfg.AllowAllOrigins = true
	} else {
		corsCfg.AllowOrigins = origins
	}
	r.Use(cors.New(corsCfg))

	s.SetupRoutes(r)
	return r
}

// SetupRoutes registers every route on r.
func (s *Server) SetupRoutes(r *gin.Engine) {
	r.GET("/", func(c *gin.Context) {
		c.Redirect(http.StatusFound, "/login")
	})
	r.GET("/login", s.handleLogin)

	for route, file := range assets {
		r.GET(route, s.serveAsset(file))
	}

	r.GET("/settings", s.handleSettings)
	r.GET("/alarm", s.handleAlarm)
	r.GET("/data", s.handleData)
	r.GET("/display", s.handleDisplay)
	r.GET("/health", s.handleHealth)
}

// Run serves on cfg.Addr until ctx is done, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.cfg.Addr,
		Handler:           s.Router(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("http server listening", zap.String("addr", s.cfg.Addr))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("http server: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("http shutdown: %w", err)
	}
	s.logger.Info("http server stopped")
	return nil
}

// serveAsset serves name from the assets directory. http.ServeFile is
// avoided because it redirects any path ending in /index.html.
func (s *Server) serveAsset(name string) gin.HandlerFunc {
	path := filepath.Join(s.cfg.AssetsDir, name)
	return func(c *gin.Context) {
		f, err := os.Open(path)
		if err != nil {
			s.logger.Warn("asset unavailable", zap.String("file", name), zap.Error(err))
			c.String(http.StatusNotFound, "not found")
			return
		}
		defer f.Close()

		info, err := f.Stat()
		if err != nil || info.IsDir() {
			c.String(http.StatusNotFound, "not found")
			return
		}
		http.ServeContent(c.Writer, c.Request, name, info.ModTime(), f)
	}
}

func (s *Server) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		s.logger.Debug("request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)),
		)
	}
}
