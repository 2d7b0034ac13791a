package handlers

import (
	"time"

	"github.com/fenilmodi00/ipo-lifecycle/jobs"
	"github.com/gofiber/fiber/v2"
	"github.com/sirupsen/logrus"
)

type AdminHandler struct {
	ReconcileJob *jobs.LifecycleReconcileJob
	TrackingJob  *jobs.DailyTrackingJob
	ArchiverJob  *jobs.ArchiverJob
	AdminToken   string
}

func NewAdminHandler(reconcileJob *jobs.LifecycleReconcileJob, trackingJob *jobs.DailyTrackingJob, archiverJob *jobs.ArchiverJob, adminToken string) *AdminHandler {
	return &AdminHandler{
		ReconcileJob: reconcileJob,
		TrackingJob:  trackingJob,
		ArchiverJob:  archiverJob,
		AdminToken:   adminToken,
	}
}

// RequireToken guards the admin routes. With no token configured the
// routes stay open, which is the local development setup.
func (h *AdminHandler) RequireToken(c *fiber.Ctx) error {
	if h.AdminToken != "" && c.Get("X-Admin-Token") != h.AdminToken {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"success": false,
			"error":   "Invalid admin token",
		})
	}
	return c.Next()
}

// TriggerReconcile manually runs the lifecycle reconcile job.
func (h *AdminHandler) TriggerReconcile(c *fiber.Ctx) error {
	logrus.Info("Manual lifecycle reconcile triggered via admin endpoint")

	startTime := time.Now()
	h.ReconcileJob.Run()
	duration := time.Since(startTime)

	return c.JSON(fiber.Map{
		"success":   true,
		"message":   "Lifecycle reconcile job completed",
		"duration":  duration.String(),
		"timestamp": time.Now(),
	})
}

// TriggerTrackingSweep manually runs the daily tracking sweep.
func (h *AdminHandler) TriggerTrackingSweep(c *fiber.Ctx) error {
	logrus.Info("Manual tracking sweep triggered via admin endpoint")

	startTime := time.Now()
	h.TrackingJob.Run()
	duration := time.Since(startTime)

	return c.JSON(fiber.Map{
		"success":   true,
		"message":   "Daily tracking job completed",
		"duration":  duration.String(),
		"timestamp": time.Now(),
	})
}

// TriggerArchive manually runs the retirement archiver.
func (h *AdminHandler) TriggerArchive(c *fiber.Ctx) error {
	logrus.Info("Manual archive run triggered via admin endpoint")

	startTime := time.Now()
	h.ArchiverJob.Run()
	duration := time.Since(startTime)

	return c.JSON(fiber.Map{
		"success":   true,
		"message":   "Archiver job completed",
		"duration":  duration.String(),
		"timestamp": time.Now(),
	})
}
