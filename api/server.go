// Package api serves a simulator session over HTTP as JSON.
package api

import (
	"context"
	"log"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/rustyeddy/optsim/sim"
)

// Defaults fill in the parts of a start request the client leaves out.
type Defaults struct {
	Symbol      string
	Date        time.Time
	InitialCash float64
	FillModel   string
}

type Options struct {
	Addr     string
	Defaults Defaults
	// Persist, when set, is called with the session after every
	// successful mutating request.
	Persist func(sim.SessionState) error
	Logger  *log.Logger
}

// Server HTTP host for one simulator engine
type Server struct {
	engine *gin.Engine
	server *http.Server
	opts   Options
}

func NewServer(e *sim.Engine, opts Options) *Server {
	if opts.Logger == nil {
		opts.Logger = log.Default()
	}
	engine := gin.New()
	engine.Use(gin.Recovery())
	engine.Use(loggerMiddleware(opts.Logger))

	s := &Server{
		engine: engine,
		opts:   opts,
		server: &http.Server{
			Addr:    opts.Addr,
			Handler: engine,
		},
	}
	s.setupRoutes(NewHandler(e, opts))
	return s
}

func (s *Server) setupRoutes(h *Handler) {
	api := s.engine.Group("/api")
	{
		// session lifecycle
		api.POST("/start", h.Start)
		api.POST("/step", h.Step)
		api.POST("/reset", h.Reset)

		// trading
		api.POST("/orders", h.SubmitOrder)

		// read-only views
		api.GET("/status", h.Status)
		api.GET("/chain", h.Chain)
		api.GET("/positions", h.Positions)
		api.GET("/account", h.Account)
		api.GET("/history", h.History)
		api.GET("/scan/:kind", h.Scan)
	}

	s.engine.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
}

// Handler exposes the routes for tests and embedding.
func (s *Server) Handler() http.Handler { return s.engine }

func (s *Server) Start() error {
	s.opts.Logger.Printf("[API] listening on %s", s.server.Addr)
	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Shutdown stops the server, waiting up to five seconds for requests in
// flight.
func (s *Server) Shutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.server.Shutdown(ctx)
}

func loggerMiddleware(l *log.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path

		c.Next()

		l.Printf("[API] %s %s %d %v", c.Request.Method, path, c.Writer.Status(), time.Since(start))
	}
}
