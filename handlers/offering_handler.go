package handlers

import (
	"github.com/fenilmodi00/ipo-lifecycle/services"
	"github.com/fenilmodi00/ipo-lifecycle/shared"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

type OfferingHandler struct {
	Service   *services.OfferingService
	Offerings services.OfferingStore
	Days      services.PriceDayStore
}

func NewOfferingHandler(service *services.OfferingService, offerings services.OfferingStore, days services.PriceDayStore) *OfferingHandler {
	return &OfferingHandler{
		Service:   service,
		Offerings: offerings,
		Days:      days,
	}
}

// IngestFacts accepts one ingestion payload about an offering. Only
// sources marking themselves authoritative via the X-Source-Authoritative
// header may create offerings that are not matched to a stored one.
func (h *OfferingHandler) IngestFacts(c *fiber.Ctx) error {
	var facts services.OfferingFacts
	if err := c.BodyParser(&facts); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"success": false,
			"error":   "Invalid request body",
		})
	}

	allowCreate := c.Get("X-Source-Authoritative") == "true"

	offering, err := h.Service.UpsertOfferingFacts(c.Context(), facts, allowCreate)
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
	if offering == nil {
		// Unknown offering from a non-authoritative source. Accepted and
		// dropped rather than rejected so feeds do not have to care about
		// ordering.
		return c.Status(fiber.StatusAccepted).JSON(fiber.Map{
			"success": true,
			"data":    nil,
		})
	}

	return c.JSON(fiber.Map{
		"success": true,
		"data":    offering,
	})
}

func (h *OfferingHandler) GetOfferings(c *fiber.Ctx) error {
	offerings, err := h.Offerings.ListActiveOfferings(c.Context())
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"success": false,
			"error":   err.Error(),
		})
	}

	if status := c.Query("status"); status != "" {
		filtered := offerings[:0]
		for _, offering := range offerings {
			if string(offering.Status) == status {
				filtered = append(filtered, offering)
			}
		}
		offerings = filtered
	}

	return c.JSON(fiber.Map{
		"success": true,
		"data":    offerings,
		"count":   len(offerings),
	})
}

func (h *OfferingHandler) GetOfferingByID(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"success": false,
			"error":   "Invalid offering id",
		})
	}

	offering, err := h.Offerings.GetOffering(c.Context(), id)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"success": false,
			"error":   err.Error(),
		})
	}
	if offering == nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"success": false,
			"error":   "Offering not found",
		})
	}

	return c.JSON(fiber.Map{
		"success": true,
		"data":    offering,
	})
}

// GetOfferingDays returns the full per-day tracking history of an
// offering in day index order.
func (h *OfferingHandler) GetOfferingDays(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"success": false,
			"error":   "Invalid offering id",
		})
	}

	offering, err := h.Offerings.GetOffering(c.Context(), id)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"success": false,
			"error":   err.Error(),
		})
	}
	if offering == nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"success": false,
			"error":   "Offering not found",
		})
	}

	days, err := h.Days.ListPriceDays(c.Context(), id)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"success": false,
			"error":   err.Error(),
		})
	}

	return c.JSON(fiber.Map{
		"success": true,
		"data": fiber.Map{
			"offering": offering,
			"days":     days,
		},
	})
}
