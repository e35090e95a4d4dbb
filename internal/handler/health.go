package handler

import (
	"context"
	"log"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/makeasinger/midiconv/internal/model"
	"github.com/makeasinger/midiconv/internal/service"
	"github.com/makeasinger/midiconv/internal/storage"
)

const healthTimeout = 3 * time.Second

// Check probes one dependency
type Check func(ctx context.Context) error

// HealthHandler reports storage directories and dependency checks. Any
// failure makes the service degraded.
type HealthHandler struct {
	manager *service.StemJobManager
	checks  map[string]Check
}

func NewHealthHandler(manager *service.StemJobManager, checks map[string]Check) *HealthHandler {
	return &HealthHandler{manager: manager, checks: checks}
}

// Health handles GET /health
// @Summary      Health check
// @Description  Report storage directory and dependency health
// @Tags         Health
// @Produce      json
// @Success      200 {object} model.HealthResponse
// @Failure      503 {object} model.HealthResponse
// @Router       /health [get]
func (h *HealthHandler) Health(c *fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(c.Context(), healthTimeout)
	defer cancel()

	resp := model.HealthResponse{
		Status:   "healthy",
		Storage:  h.manager.StorageHealth(),
		Services: make(map[string]bool, len(h.checks)),
	}
	healthy := storage.Healthy(resp.Storage)
	for name, check := range h.checks {
		err := check(ctx)
		resp.Services[name] = err == nil
		if err != nil {
			log.Printf("Health check %s failed: %v", name, err)
			healthy = false
		}
	}

	if !healthy {
		resp.Status = "degraded"
		return c.Status(fiber.StatusServiceUnavailable).JSON(resp)
	}
	return c.JSON(resp)
}
