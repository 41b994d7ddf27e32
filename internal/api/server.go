// Package api is the viewer's HTTP surface: record queries, a live record
// stream, proxy control and health.
package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/user/proxy-relay-go/internal/api/handler"
	"github.com/user/proxy-relay-go/internal/api/middleware"
	"github.com/user/proxy-relay-go/internal/sink"
	"go.uber.org/zap"
)

// Server wraps the HTTP router and dependencies.
type Server struct {
	router *gin.Engine
	logger *zap.Logger
}

// ServerDeps holds all dependencies for the API server.
type ServerDeps struct {
	Buffer *sink.Buffer
	Relay  handler.RelayStatusProvider
	// Proxy may be nil, which leaves the /api/proxy routes out.
	Proxy            handler.ProxyController
	DefaultProxyHost string
	// LogFile is the zap JSON log served under /api/system-logs. Empty
	// disables those routes.
	LogFile string
	Logger  *zap.Logger
}

// NewServer creates a new API server with all routes configured.
func NewServer(deps ServerDeps) *Server {
	logger := deps.Logger.Named("api")

	gin.SetMode(gin.ReleaseMode)
	r := gin.New()

	// Global middleware.
	r.Use(gin.Recovery())
	r.Use(middleware.Logger(logger))
	r.Use(middleware.SecurityHeaders())

	healthHandler := handler.NewHealthHandler(deps.Relay, deps.Proxy)
	r.GET("/api/health", healthHandler.Health)

	recordsHandler := handler.NewRecordsHandler(deps.Buffer)
	records := r.Group("/api/records")
	{
		records.GET("", recordsHandler.List)
		records.GET("/text", recordsHandler.Text)
		records.GET("/stream", recordsHandler.Stream)
	}

	if deps.Proxy != nil {
		proxyHandler := handler.NewProxyHandler(deps.Proxy, deps.DefaultProxyHost, logger)
		proxy := r.Group("/api/proxy")
		{
			proxy.GET("", proxyHandler.Status)
			proxy.POST("/start", proxyHandler.Start)
			proxy.POST("/stop", proxyHandler.Stop)
		}
	}

	if deps.LogFile != "" {
		systemLogsHandler := handler.NewSystemLogsHandler(deps.LogFile)
		r.GET("/api/system-logs", systemLogsHandler.List)
		r.GET("/api/system-logs/stream", systemLogsHandler.Stream)
	}

	r.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, gin.H{"detail": "Not Found"})
	})

	return &Server{
		router: r,
		logger: logger,
	}
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}
