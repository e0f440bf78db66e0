package handlers

import (
	"context"
	"runtime"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/neogan74/droppy-api/internal/logger"
	"github.com/neogan74/droppy-api/internal/middleware"
	"github.com/neogan74/droppy-api/internal/persistence"
)

// readinessProbeKey is looked up to prove the store answers. It is never
// written, so a not-found answer is the healthy outcome.
const readinessProbeKey = "__droppy_readiness_probe__"

const readinessTimeout = 2 * time.Second

// HealthStatus represents the health status of the service
type HealthStatus struct {
	Status    string       `json:"status"`
	Version   string       `json:"version"`
	Uptime    string       `json:"uptime"`
	Timestamp time.Time    `json:"timestamp"`
	Store     StoreHealth  `json:"store"`
	System    SystemHealth `json:"system"`
}

type StoreHealth struct {
	Type      string `json:"type"`
	RecordTTL string `json:"record_ttl"`
}

type SystemHealth struct {
	Goroutines  int    `json:"goroutines"`
	MemoryAlloc uint64 `json:"memory_alloc_bytes"`
	MemorySys   uint64 `json:"memory_sys_bytes"`
	NumGC       uint32 `json:"num_gc"`
}

// HealthHandler handles health check operations
type HealthHandler struct {
	engine    persistence.Engine
	storeType string
	recordTTL time.Duration
	startTime time.Time
	version   string
}

// NewHealthHandler creates a new health handler
func NewHealthHandler(engine persistence.Engine, storeType string, recordTTL time.Duration, version string) *HealthHandler {
	return &HealthHandler{
		engine:    engine,
		storeType: storeType,
		recordTTL: recordTTL,
		startTime: time.Now(),
		version:   version,
	}
}

// Check returns the health status of the service
func (h *HealthHandler) Check(c *fiber.Ctx) error {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)

	status := HealthStatus{
		Status:    "healthy",
		Version:   h.version,
		Uptime:    time.Since(h.startTime).String(),
		Timestamp: time.Now(),
		Store: StoreHealth{
			Type:      h.storeType,
			RecordTTL: h.recordTTL.String(),
		},
		System: SystemHealth{
			Goroutines:  runtime.NumGoroutine(),
			MemoryAlloc: m.Alloc,
			MemorySys:   m.Sys,
			NumGC:       m.NumGC,
		},
	}

	return c.JSON(status)
}

// Liveness is a simple liveness probe
func (h *HealthHandler) Liveness(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"status":    "alive",
		"timestamp": time.Now(),
	})
}

// Readiness checks that the store answers reads
func (h *HealthHandler) Readiness(c *fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(c.UserContext(), readinessTimeout)
	defer cancel()

	if _, err := h.engine.Get(ctx, readinessProbeKey); err != nil && !persistence.IsNotFound(err) {
		middleware.GetLogger(c).Warn("Readiness probe failed",
			logger.String("store", h.storeType),
			logger.Error(err))
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
			"status":    "not ready",
			"error":     err.Error(),
			"timestamp": time.Now(),
		})
	}

	return c.JSON(fiber.Map{
		"status":    "ready",
		"timestamp": time.Now(),
	})
}
