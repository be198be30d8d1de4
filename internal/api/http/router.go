// Package http implements the HTTP API (§4.4) on top of gin, the way the
// orchestrator service wires its own routes.
package http

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/localtrace/studio/internal/bus"
	"github.com/localtrace/studio/internal/ingest"
	"github.com/localtrace/studio/internal/store"
)

// Server wires the Store, Bus, and Ingestor into a gin.Engine.
type Server struct {
	store    store.Store
	bus      *bus.Bus
	ingestor *ingest.Ingestor
	logger   *slog.Logger
}

func NewServer(s store.Store, b *bus.Bus, in *ingest.Ingestor, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{store: s, bus: b, ingestor: in, logger: logger}
}

// Handler builds the gin.Engine exposing every route in §4.4, including the
// WebSocket upgrade endpoint.
func (s *Server) Handler() http.Handler {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(s.requestLogger())

	router.GET("/health", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"status": "ok"}) })

	router.POST("/v1/traces", s.handleExportTraces)

	traces := router.Group("/traces")
	{
		traces.GET("", s.handleListTraces)
		traces.GET("/:trace_id", s.handleGetTrace)
		traces.DELETE("/:trace_id", s.handleDeleteTrace)
		traces.GET("/:trace_id/spans", s.handleListSpans)
		traces.GET("/:trace_id/spans/:span_id", s.handleGetSpan)
		traces.DELETE("/:trace_id/spans/:span_id", s.handleDeleteSpan)
	}

	router.GET("/insights/overview", s.handleInsightsOverview)
	router.GET("/ws", s.handleWebSocket)

	return router
}

func (s *Server) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()
		s.logger.Debug("handled request",
			"method", c.Request.Method, "path", c.Request.URL.Path, "status", c.Writer.Status())
	}
}
