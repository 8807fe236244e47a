package handler

import (
	"context"
	"net/http"
	"runtime"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/kwanza/fiscal/internal/infrastructure/logger"
	"github.com/kwanza/fiscal/internal/infrastructure/persistence"
	"github.com/kwanza/fiscal/internal/interfaces/http/dto"
	"go.uber.org/zap"
)

// healthCheckTimeout bounds each dependency probe
const healthCheckTimeout = 2 * time.Second

// DatabaseProbe reports database liveness. Implemented by persistence.Database.
type DatabaseProbe interface {
	Ping(ctx context.Context) error
	Stats() (persistence.ConnectionStats, error)
}

// Pinger is any other dependency worth reporting, such as Redis
type Pinger func(ctx context.Context) error

// SystemHandler handles health and system information endpoints
type SystemHandler struct {
	BaseHandler
	name      string
	version   string
	db        DatabaseProbe
	checks    map[string]Pinger
	startTime time.Time
}

// NewSystemHandler creates a new SystemHandler. db may be nil in tests.
func NewSystemHandler(name, version string, db DatabaseProbe) *SystemHandler {
	return &SystemHandler{
		name:      name,
		version:   version,
		db:        db,
		checks:    map[string]Pinger{},
		startTime: time.Now(),
	}
}

// AddCheck registers an extra dependency probe reported by Health
func (h *SystemHandler) AddCheck(name string, ping Pinger) {
	h.checks[name] = ping
}

// SystemInfoResponse represents the system information response
type SystemInfoResponse struct {
	Name      string `json:"name" example:"Kwanza Fiscal API"`
	Version   string `json:"version" example:"1.0.0"`
	GoVersion string `json:"go_version" example:"go1.25.5"`
	Uptime    string `json:"uptime" example:"1h30m45s"`
}

// HealthResponse is the body of GET /health
type HealthResponse struct {
	Status    string                       `json:"status"`
	Checks    map[string]string            `json:"checks"`
	Database  *persistence.ConnectionStats `json:"database,omitempty"`
	Timestamp string                       `json:"timestamp"`
}

// GetSystemInfo returns version and uptime
func (h *SystemHandler) GetSystemInfo(c *gin.Context) {
	h.Success(c, SystemInfoResponse{
		Name:      h.name,
		Version:   h.version,
		GoVersion: runtime.Version(),
		Uptime:    time.Since(h.startTime).Round(time.Second).String(),
	})
}

// Health godoc
// @ID           health
// @Summary      Report service and dependency health
// @Tags         system
// @Produce      json
// @Success      200 {object} APIResponse[HealthResponse]
// @Failure      503 {object} APIResponse[HealthResponse]
// @Router       /health [get]
func (h *SystemHandler) Health(c *gin.Context) {
	resp := HealthResponse{
		Status:    "ok",
		Checks:    map[string]string{},
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	}

	probe := func(name string, ping Pinger) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), healthCheckTimeout)
		defer cancel()
		if err := ping(ctx); err != nil {
			logger.Ctx(c.Request.Context()).Warn("Health check failed", zap.String("dependency", name), zap.Error(err))
			resp.Checks[name] = "down"
			resp.Status = "degraded"
			return
		}
		resp.Checks[name] = "up"
	}

	if h.db != nil {
		probe("database", h.db.Ping)
		if stats, err := h.db.Stats(); err == nil {
			resp.Database = &stats
		}
	}
	for name, ping := range h.checks {
		probe(name, ping)
	}

	status := http.StatusOK
	if resp.Status != "ok" {
		status = http.StatusServiceUnavailable
	}
	c.JSON(status, dto.Response{Success: status == http.StatusOK, Data: resp})
}
