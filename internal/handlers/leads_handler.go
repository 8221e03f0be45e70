package handlers

import (
	"context"
	"errors"
	"log"

	"github.com/gofiber/fiber/v3"

	"face-shape-api/internal/models"
	"face-shape-api/internal/services"
)

// LeadsHandler exposes the lead capture endpoint.
type LeadsHandler struct {
	leads *services.LeadsService
}

// NewLeadsHandler constructs a leads handler.
func NewLeadsHandler(leads *services.LeadsService) *LeadsHandler {
	return &LeadsHandler{leads: leads}
}

// SaveLead godoc
// @Summary Capture a lead email
// @Description Normalizes and stores the email, one row per (email, site). Repeat submissions succeed without creating duplicates.
// @Tags Leads
// @Accept json
// @Produce json
// @Param request body models.LeadRequest true "Lead"
// @Success 200 {object} map[string]bool
// @Failure 400 {object} models.ErrorResponse
// @Failure 500 {object} models.ErrorResponse
// @Router /api/leads [post]
func (h *LeadsHandler) SaveLead(c fiber.Ctx) error {
	var req models.LeadRequest
	_ = c.Bind().Body(&req)

	if err := h.leads.Save(context.TODO(), req.Email, req.Site); err != nil {
		if errors.Is(err, services.ErrInvalidEmail) {
			return c.Status(fiber.StatusBadRequest).JSON(models.ErrorResponse{
				Error: "Invalid email",
			})
		}
		log.Printf("Lead insert error: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(models.ErrorResponse{
			Error: "Failed to save lead",
		})
	}

	return c.JSON(fiber.Map{"ok": true})
}
