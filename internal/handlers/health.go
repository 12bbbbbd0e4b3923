package handlers

import "github.com/gofiber/fiber/v2"

// HealthHandler handles health check requests
type HealthHandler struct {
	Version  string
	Provider string
	Storage  string
	Ping     func() error
}

// NewHealthHandler creates a new health handler. Ping checks the storage
// backend and may be nil when there is nothing to probe (memory store).
func NewHealthHandler(version, provider, storage string, ping func() error) *HealthHandler {
	return &HealthHandler{
		Version:  version,
		Provider: provider,
		Storage:  storage,
		Ping:     ping,
	}
}

// Check returns the health status of the service
func (h *HealthHandler) Check(c *fiber.Ctx) error {
	status := "healthy"
	code := fiber.StatusOK
	storageUp := true

	if h.Ping != nil {
		if err := h.Ping(); err != nil {
			status = "unhealthy"
			code = fiber.StatusServiceUnavailable
			storageUp = false
		}
	}

	return c.Status(code).JSON(fiber.Map{
		"status":  status,
		"version": h.Version,
		"services": fiber.Map{
			"database": storageUp,
			"provider": h.Provider,
			"storage":  h.Storage,
		},
	})
}
