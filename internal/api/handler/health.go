package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/user/proxy-relay-go/internal/models"
	"github.com/user/proxy-relay-go/internal/version"
)

// RelayStatusProvider reports relay listener state. *relay.Relay implements it.
type RelayStatusProvider interface {
	Status() models.RelayStatus
}

// HealthHandler handles health check requests.
type HealthHandler struct {
	relay RelayStatusProvider
	proxy ProxyController
}

// NewHealthHandler creates a new HealthHandler. proxy may be nil.
func NewHealthHandler(relay RelayStatusProvider, proxy ProxyController) *HealthHandler {
	return &HealthHandler{relay: relay, proxy: proxy}
}

// Health returns the viewer status. The relay being unavailable does not
// stop the viewer, so it is reported as degraded rather than failing.
func (h *HealthHandler) Health(c *gin.Context) {
	relay := h.relay.Status()

	status := "healthy"
	if !relay.Available {
		status = "degraded"
	}

	resp := gin.H{
		"status":  status,
		"version": version.Short(),
		"relay":   relay,
	}
	if h.proxy != nil {
		resp["proxy"] = h.proxy.Status()
	}
	c.JSON(http.StatusOK, resp)
}
