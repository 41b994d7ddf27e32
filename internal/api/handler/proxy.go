package handler

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/user/proxy-relay-go/internal/config"
	"github.com/user/proxy-relay-go/internal/models"
	"github.com/user/proxy-relay-go/internal/service"
	"go.uber.org/zap"
)

// ProxyController starts and stops the intercepting proxy.
// *service.ProxyService implements it.
type ProxyController interface {
	Start(ctx context.Context, host string, port int) error
	Stop(ctx context.Context) error
	Status() models.ProxyStatus
}

// ProxyHandler exposes proxy start/stop.
type ProxyHandler struct {
	proxy       ProxyController
	defaultHost string
	logger      *zap.Logger
}

// NewProxyHandler creates a new ProxyHandler. defaultHost is used when a
// start request leaves the host empty.
func NewProxyHandler(proxy ProxyController, defaultHost string, logger *zap.Logger) *ProxyHandler {
	return &ProxyHandler{proxy: proxy, defaultHost: defaultHost, logger: logger}
}

type startProxyRequest struct {
	Host string `json:"host"`
	Port *int   `json:"port" binding:"required"`
}

// Status returns the proxy status.
// GET /api/proxy
func (h *ProxyHandler) Status(c *gin.Context) {
	h.respond(c, http.StatusOK)
}

// Start starts the proxy on the requested address.
// POST /api/proxy/start
func (h *ProxyHandler) Start(c *gin.Context) {
	var req startProxyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		errorResponse(c, http.StatusBadRequest, "host and port are required")
		return
	}
	if req.Host == "" {
		req.Host = h.defaultHost
	}

	err := h.proxy.Start(c.Request.Context(), req.Host, *req.Port)
	var cfgErr *config.ConfigError
	switch {
	case err == nil:
	case errors.Is(err, service.ErrProxyRunning):
		errorResponse(c, http.StatusConflict, err.Error())
		return
	case errors.As(err, &cfgErr):
		errorResponse(c, http.StatusBadRequest, cfgErr.Message)
		return
	default:
		h.logger.Warn("failed to start proxy", zap.Error(err))
		errorResponse(c, http.StatusInternalServerError, "Failed to start proxy: "+err.Error())
		return
	}

	h.respond(c, http.StatusOK)
}

// Stop stops the proxy.
// POST /api/proxy/stop
func (h *ProxyHandler) Stop(c *gin.Context) {
	err := h.proxy.Stop(c.Request.Context())
	switch {
	case err == nil:
	case errors.Is(err, service.ErrProxyNotRunning):
		errorResponse(c, http.StatusConflict, err.Error())
		return
	default:
		h.logger.Warn("proxy stop did not complete cleanly", zap.Error(err))
	}

	h.respond(c, http.StatusOK)
}

func (h *ProxyHandler) respond(c *gin.Context, status int) {
	st := h.proxy.Status()
	c.JSON(status, gin.H{
		"status": st,
		"text":   st.Text(),
	})
}
