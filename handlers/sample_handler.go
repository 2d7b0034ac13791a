package handlers

import (
	"time"

	"github.com/fenilmodi00/ipo-lifecycle/services"
	"github.com/fenilmodi00/ipo-lifecycle/shared"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

type SampleHandler struct {
	Tracker     *services.PriceLimitTracker
	Coordinator *services.NotificationCoordinator
}

func NewSampleHandler(tracker *services.PriceLimitTracker, coordinator *services.NotificationCoordinator) *SampleHandler {
	return &SampleHandler{
		Tracker:     tracker,
		Coordinator: coordinator,
	}
}

type sampleRequest struct {
	DayIndex   int       `json:"day_index"`
	TradeDate  time.Time `json:"trade_date"`
	OpenPrice  *float64  `json:"open_price"`
	HighPrice  *float64  `json:"high_price"`
	LowPrice   *float64  `json:"low_price"`
	ClosePrice float64   `json:"close_price"`
}

// IngestSample records one trading day for an offering and runs the
// notification round for whatever events the day produced. A failed
// emission round does not fail the request; the daily sweep retries it.
func (h *SampleHandler) IngestSample(c *fiber.Ctx) error {
	offeringID, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"success": false,
			"error":   "Invalid offering id",
		})
	}

	var req sampleRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"success": false,
			"error":   "Invalid request body",
		})
	}

	sample := services.DailySample{
		OfferingID: offeringID,
		DayIndex:   req.DayIndex,
		TradeDate:  req.TradeDate,
		OpenPrice:  req.OpenPrice,
		HighPrice:  req.HighPrice,
		LowPrice:   req.LowPrice,
		ClosePrice: req.ClosePrice,
	}

	record, offering, err := h.Tracker.UpsertDay(c.Context(), sample)
	if err != nil {
		if shared.IsValidationError(err) {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"success": false,
				"error":   err.Error(),
			})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"success": false,
			"error":   err.Error(),
		})
	}

	if offering.TradingStart != nil {
		expected := services.ExpectedDayIndex(*offering.TradingStart, sample.TradeDate)
		if expected != sample.DayIndex {
			logrus.WithFields(logrus.Fields{
				"offering":       offering.CompanyName,
				"day_index":      sample.DayIndex,
				"expected_index": expected,
			}).Warn("Sample day index disagrees with business-day count from trading start")
		}
	}

	notified := true
	if err := h.Coordinator.ProcessDayEvents(c.Context(), offering, record); err != nil {
		notified = false
		logrus.Errorf("Notification round failed for offering %s day %d: %v",
			offering.CompanyName, record.DayIndex, err)
	}

	return c.JSON(fiber.Map{
		"success": true,
		"data": fiber.Map{
			"record":   record,
			"notified": notified,
		},
	})
}
