package handlers

import (
	"context"
	"errors"
	"regexp"
	"strconv"
	"strings"

	"github.com/gofiber/fiber/v3"

	"face-shape-api/internal/models"
	"face-shape-api/internal/services"
)

var forwardedForPattern = regexp.MustCompile(`(?i)for=([^;,]+)`)

// UploadHandler exposes the upload admission endpoint.
type UploadHandler struct {
	admission *services.AdmissionService
}

// NewUploadHandler constructs an upload handler.
func NewUploadHandler(admission *services.AdmissionService) *UploadHandler {
	return &UploadHandler{admission: admission}
}

// InitUpload godoc
// @Summary Request an upload grant
// @Description Validates the declared upload, applies rate limits, captcha verification and duplicate detection, then issues a short-lived signed PUT URL.
// @Tags Upload
// @Accept json
// @Produce json
// @Param request body models.UploadInitRequest true "Upload intent"
// @Success 200 {object} models.UploadInitResponse
// @Failure 400 {object} models.ErrorResponse
// @Failure 403 {object} models.ErrorResponse
// @Failure 409 {object} models.ErrorResponse
// @Failure 429 {object} models.ErrorResponse
// @Failure 500 {object} models.ErrorResponse
// @Router /api/upload/init [post]
func (h *UploadHandler) InitUpload(c fiber.Ctx) error {
	var req models.UploadInitRequest
	// A malformed body is treated as an empty request; the missing captcha
	// token rejects it before any state is touched.
	_ = c.Bind().Body(&req)

	resp, err := h.admission.Admit(context.TODO(), &req, ClientIP(c))
	if err != nil {
		var rej *services.Rejection
		if errors.As(err, &rej) {
			if rej.RetryAfterSeconds > 0 {
				c.Set("Retry-After", strconv.Itoa(rej.RetryAfterSeconds))
			}
			return c.Status(rej.Status).JSON(models.ErrorResponse{
				Error: rej.Message,
				Hash:  rej.Hash,
			})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(models.ErrorResponse{
			Error: "Internal server error",
		})
	}

	return c.JSON(resp)
}

// ClientIP resolves the originating client address from proxy headers.
// Returns "" when no header carries one; such requests share a single
// rate-limit bucket.
func ClientIP(c fiber.Ctx) string {
	if xff := c.Get("X-Forwarded-For"); xff != "" {
		if ip, _, ok := strings.Cut(xff, ","); ok {
			if trimmed := strings.TrimSpace(ip); trimmed != "" {
				return trimmed
			}
		} else if trimmed := strings.TrimSpace(xff); trimmed != "" {
			return trimmed
		}
	}

	if realIP := c.Get("X-Real-Ip"); realIP != "" {
		return realIP
	}

	if forwarded := c.Get("Forwarded"); forwarded != "" {
		if match := forwardedForPattern.FindStringSubmatch(forwarded); len(match) == 2 {
			ip := strings.Trim(strings.TrimSpace(match[1]), "[]\"")
			if ip != "" {
				return ip
			}
		}
	}

	return ""
}
