// Package datasetserver serves a precomputed heliosphere dataset over HTTP
// so the loader's HTTP transport can read it, plus a small JSON API.
package datasetserver

import (
	"context"
	"encoding/json"
	"errors"
	"io/fs"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/signalsfoundry/heliosphere-sim/dataset"
	"github.com/signalsfoundry/heliosphere-sim/internal/logging"
	"github.com/signalsfoundry/heliosphere-sim/registry"
)

// DataPrefix is where dataset resources are mounted.
const DataPrefix = "/data"

// Option configures a Server.
type Option func(*Server)

// WithLogger sets the request logger.
func WithLogger(l logging.Logger) Option {
	return func(s *Server) { s.log = logging.OrNoop(l) }
}

// WithAllowedOrigins sets the CORS origins. The default allows any origin.
func WithAllowedOrigins(origins ...string) Option {
	return func(s *Server) { s.origins = origins }
}

// WithMetricsHandler mounts h at /metrics.
func WithMetricsHandler(h http.Handler) Option {
	return func(s *Server) { s.metrics = h }
}

// Server serves one dataset.
type Server struct {
	fsys    fs.FS
	log     logging.Logger
	origins []string
	metrics http.Handler
	engine  *gin.Engine
}

// New builds the router for fsys.
func New(fsys fs.FS, opts ...Option) *Server {
	s := &Server{fsys: fsys, log: logging.Noop()}
	for _, opt := range opts {
		opt(s)
	}

	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery(), s.requestLogger())

	corsCfg := cors.Config{
		AllowMethods:     []string{"GET", "HEAD", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type"},
		AllowCredentials: false,
		MaxAge:           12 * time.Hour,
	}
	if len(s.origins) == 0 {
		corsCfg.AllowAllOrigins = true
	} else {
		corsCfg.AllowOrigins = s.origins
	}
	r.Use(cors.New(corsCfg))

	r.StaticFS(DataPrefix, http.FS(fsys))

	api := r.Group("/api")
	{
		api.GET("/health", s.health)
		api.GET("/meta", s.meta)
		api.GET("/missions", missions)
	}
	if s.metrics != nil {
		r.GET("/metrics", gin.WrapH(s.metrics))
	}
	s.engine = r
	return s
}

// Handler returns the HTTP handler.
func (s *Server) Handler() http.Handler { return s.engine }

// ListenAndServe serves on addr until ctx is done, then shuts down
// gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{Addr: addr, Handler: s.engine, ReadHeaderTimeout: 10 * time.Second}
	errCh := make(chan error, 1)
	go func() {
		s.log.Info(ctx, "dataset server listening", logging.String("addr", addr))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return err
		}
		if err := <-errCh; !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	}
}

func (s *Server) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		s.log.Debug(c.Request.Context(), "http request",
			logging.String("method", c.Request.Method),
			logging.String("path", c.Request.URL.Path),
			logging.Int("status", c.Writer.Status()),
			logging.Any("duration", time.Since(start)),
		)
	}
}

// readMeta decodes meta.json through the same path the loader uses.
func (s *Server) readMeta(ctx context.Context) (dataset.Meta, []byte, error) {
	b, err := dataset.NewFSSource(s.fsys).Fetch(ctx, dataset.MetaPath)
	if err != nil {
		return dataset.Meta{}, nil, err
	}
	var m dataset.Meta
	if err := json.Unmarshal(b, &m); err != nil {
		return dataset.Meta{}, nil, err
	}
	return m, b, nil
}

func (s *Server) health(c *gin.Context) {
	m, _, err := s.readMeta(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable", "error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"status":  "ok",
		"version": m.Version,
		"epochs":  m.TimeAxis.Count,
	})
}

func (s *Server) meta(c *gin.Context) {
	_, raw, err := s.readMeta(c.Request.Context())
	switch {
	case errors.Is(err, dataset.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "dataset metadata not found"})
	case err != nil:
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
	default:
		c.Data(http.StatusOK, "application/json", raw)
	}
}

type waypointJSON struct {
	JD float64    `json:"jd"`
	AU [3]float64 `json:"au"`
}

type missionJSON struct {
	ID        string         `json:"id"`
	Name      string         `json:"name"`
	Color     string         `json:"color"`
	Waypoints []waypointJSON `json:"waypoints"`
}

func missions(c *gin.Context) {
	trajs := registry.DefaultMissions()
	out := make([]missionJSON, 0, len(trajs))
	for _, t := range trajs {
		m := missionJSON{ID: t.ID, Name: t.Name, Color: t.Color}
		for _, s := range t.Samples {
			m.Waypoints = append(m.Waypoints, waypointJSON{
				JD: float64(s.Time),
				AU: [3]float64{float64(s.Position.X), float64(s.Position.Y), float64(s.Position.Z)},
			})
		}
		out = append(out, m)
	}
	c.JSON(http.StatusOK, gin.H{"data": out, "count": len(out)})
}
