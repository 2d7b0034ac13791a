package handlers

import (
	"database/sql"
	"time"

	"github.com/fenilmodi00/ipo-lifecycle/services"
	"github.com/gofiber/fiber/v2"
)

type SystemHandler struct {
	DB          *sql.DB
	Tracker     *services.PriceLimitTracker
	Coordinator *services.NotificationCoordinator
	Machine     *services.LifecycleMachine
	Offerings   *services.OfferingService
}

func NewSystemHandler(db *sql.DB, tracker *services.PriceLimitTracker, coordinator *services.NotificationCoordinator, machine *services.LifecycleMachine, offerings *services.OfferingService) *SystemHandler {
	return &SystemHandler{
		DB:          db,
		Tracker:     tracker,
		Coordinator: coordinator,
		Machine:     machine,
		Offerings:   offerings,
	}
}

func (h *SystemHandler) Health(c *fiber.Ctx) error {
	if err := h.DB.PingContext(c.Context()); err != nil {
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
			"status":    "degraded",
			"error":     err.Error(),
			"timestamp": time.Now().Unix(),
		})
	}
	return c.JSON(fiber.Map{
		"status":    "ok",
		"timestamp": time.Now().Unix(),
	})
}

// GetMetrics returns per-service counters and database pool statistics.
func (h *SystemHandler) GetMetrics(c *fiber.Ctx) error {
	metrics := map[string]interface{}{
		"tracker":     h.Tracker.Metrics().GetSnapshot(),
		"coordinator": h.Coordinator.Metrics().GetSnapshot(),
		"lifecycle":   h.Machine.Metrics().GetSnapshot(),
		"offerings":   h.Offerings.Metrics().GetSnapshot(),
	}

	dbStats := h.DB.Stats()
	metrics["database_stats"] = map[string]interface{}{
		"open_connections":    dbStats.OpenConnections,
		"in_use":              dbStats.InUse,
		"idle":                dbStats.Idle,
		"wait_count":          dbStats.WaitCount,
		"wait_duration_ms":    dbStats.WaitDuration.Milliseconds(),
		"max_idle_closed":     dbStats.MaxIdleClosed,
		"max_lifetime_closed": dbStats.MaxLifetimeClosed,
	}

	return c.JSON(fiber.Map{
		"success": true,
		"data":    metrics,
	})
}
