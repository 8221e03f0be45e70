package handlers

import (
	"context"
	"errors"

	"github.com/gofiber/fiber/v3"

	"face-shape-api/internal/models"
	"face-shape-api/internal/pool"
	"face-shape-api/internal/services"
)

// AnalysisHandler exposes the face analysis endpoint.
type AnalysisHandler struct {
	analysis *services.AnalysisService
}

// NewAnalysisHandler constructs an analysis handler.
func NewAnalysisHandler(analysis *services.AnalysisService) *AnalysisHandler {
	return &AnalysisHandler{analysis: analysis}
}

// Analyze godoc
// @Summary Analyze facial features
// @Description Uploads the image when sent as a data URI, forwards it to the vision model and returns the report with extracted structured JSON.
// @Tags Analysis
// @Accept json
// @Produce json
// @Param request body models.AnalysisRequest true "Image as data URI or public URL"
// @Success 200 {object} models.AnalysisResponse
// @Failure 400 {object} models.ErrorResponse
// @Failure 500 {object} models.ErrorResponse
// @Failure 503 {object} models.ErrorResponse
// @Router /api/face-analysis [post]
func (h *AnalysisHandler) Analyze(c fiber.Ctx) error {
	var req models.AnalysisRequest
	_ = c.Bind().Body(&req)

	resp, err := h.analysis.Analyze(context.TODO(), req.Image)
	if err != nil {
		return h.mapError(c, err)
	}

	return c.JSON(resp)
}

func (h *AnalysisHandler) mapError(c fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, services.ErrMissingImage):
		return c.Status(fiber.StatusBadRequest).JSON(models.ErrorResponse{
			Error: "Missing image data",
		})

	case errors.Is(err, pool.ErrBusy):
		return c.Status(fiber.StatusServiceUnavailable).JSON(models.ErrorResponse{
			Error: "Analysis service is busy. Please retry shortly.",
		})

	case errors.Is(err, services.ErrImageUpload):
		return c.Status(fiber.StatusInternalServerError).JSON(models.ErrorResponse{
			Error: "Image upload failed",
		})

	case errors.Is(err, services.ErrVisionNotConfig):
		return c.Status(fiber.StatusInternalServerError).JSON(models.ErrorResponse{
			Error: "Server missing VISION_API_KEY",
		})
	}

	var remote *services.RemoteError
	if errors.As(err, &remote) {
		return c.Status(remote.Status).JSON(models.ErrorResponse{
			Error:   "Remote API error",
			Details: remote.Details,
		})
	}

	return c.Status(fiber.StatusInternalServerError).JSON(models.ErrorResponse{
		Error: "Analysis failed",
	})
}
