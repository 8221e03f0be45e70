package handlers

import (
	"context"
	"runtime"
	"time"

	"github.com/gofiber/fiber/v3"

	"face-shape-api/internal/models"
	"face-shape-api/internal/services"
)

// MetaHandler exposes informational endpoints about the API surface.
type MetaHandler struct {
	version  string
	started  time.Time
	storage  *services.StorageService
	leads    *services.LeadsService
	analysis *services.AnalysisService
}

// NewMetaHandler constructs a metadata handler. Nil services are reported
// as disabled rather than unhealthy.
func NewMetaHandler(version string, storage *services.StorageService, leads *services.LeadsService, analysis *services.AnalysisService) *MetaHandler {
	if version == "" {
		version = "1.0.0"
	}

	return &MetaHandler{
		version:  version,
		started:  time.Now(),
		storage:  storage,
		leads:    leads,
		analysis: analysis,
	}
}

// APIInfo godoc
// @Summary API metadata
// @Description Provides API version and available endpoint catalogue.
// @Tags General
// @Produce json
// @Success 200 {object} map[string]any
// @Router /api [get]
func (h *MetaHandler) APIInfo(c fiber.Ctx) error {
	endpoints := map[string]string{
		"upload_init": "/api/upload/init",
		"leads":       "/api/leads",
		"health":      "/health",
		"stats":       "/stats",
	}

	if h.analysis != nil {
		endpoints["face_analysis"] = "/api/face-analysis"
	}

	return c.JSON(fiber.Map{
		"name":      "Face Shape API",
		"version":   h.version,
		"endpoints": endpoints,
	})
}

// Health godoc
// @Summary Health check
// @Description Reports process status and the state of each backing service.
// @Tags General
// @Produce json
// @Success 200 {object} models.HealthResponse
// @Failure 503 {object} models.HealthResponse
// @Router /health [get]
func (h *MetaHandler) Health(c fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(context.TODO(), 5*time.Second)
	defer cancel()

	status := "healthy"
	servicesStatus := map[string]string{}

	if h.storage != nil {
		if err := h.storage.HealthCheck(ctx); err != nil {
			servicesStatus["storage"] = "unhealthy"
			status = "degraded"
		} else {
			servicesStatus["storage"] = "healthy"
		}
	} else {
		servicesStatus["storage"] = "disabled"
	}

	if h.leads != nil {
		if err := h.leads.HealthCheck(ctx); err != nil {
			servicesStatus["leads"] = "unhealthy"
			status = "degraded"
		} else {
			servicesStatus["leads"] = "healthy"
		}
	} else {
		servicesStatus["leads"] = "disabled"
	}

	code := fiber.StatusOK
	if status != "healthy" {
		code = fiber.StatusServiceUnavailable
	}

	return c.Status(code).JSON(models.HealthResponse{
		Status:   status,
		Version:  h.version,
		Uptime:   time.Since(h.started).Round(time.Second).String(),
		Services: servicesStatus,
	})
}

// Stats godoc
// @Summary Runtime statistics
// @Description Reports analysis limiter counters and process memory usage.
// @Tags General
// @Produce json
// @Success 200 {object} map[string]any
// @Router /stats [get]
func (h *MetaHandler) Stats(c fiber.Ctx) error {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)

	stats := fiber.Map{
		"uptime": time.Since(h.started).Round(time.Second).String(),
		"memory": fiber.Map{
			"alloc_mb":       m.Alloc / 1024 / 1024,
			"total_alloc_mb": m.TotalAlloc / 1024 / 1024,
			"sys_mb":         m.Sys / 1024 / 1024,
			"num_gc":         m.NumGC,
		},
		"goroutines": runtime.NumGoroutine(),
	}

	if h.analysis != nil {
		stats["analysis"] = h.analysis.Stats()
	}

	return c.JSON(stats)
}
