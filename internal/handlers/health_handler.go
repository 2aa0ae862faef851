package handlers

import (
	"context"
	"net/http"
	"time"

	"poolmate/internal/utils"

	"github.com/gin-gonic/gin"
)

// Pinger is anything whose liveness can be probed, such as the Mongo client
// or the Redis cache.
type Pinger interface {
	Ping(ctx context.Context) error
}

type HealthHandler struct {
	version string
	checks  map[string]Pinger
}

func NewHealthHandler(version string, checks map[string]Pinger) *HealthHandler {
	return &HealthHandler{version: version, checks: checks}
}

func (h *HealthHandler) Health(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	status := "healthy"
	components := make(map[string]string, len(h.checks))
	for name, p := range h.checks {
		if err := p.Ping(ctx); err != nil {
			components[name] = "down"
			status = "degraded"
			continue
		}
		components[name] = "up"
	}

	code := http.StatusOK
	if status != "healthy" {
		code = http.StatusServiceUnavailable
	}

	c.JSON(code, gin.H{
		"status":     status,
		"version":    h.version,
		"components": components,
		"timestamp":  time.Now().UTC(),
		"app":        utils.AppName,
	})
}
