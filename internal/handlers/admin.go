package handlers

import (
	"errors"

	"github.com/gofiber/fiber/v2"

	"github.com/aqe-platform/aqe-gateway/internal/models"
	"github.com/aqe-platform/aqe-gateway/internal/services"
	"github.com/aqe-platform/aqe-gateway/internal/storage"
)

// AdminHandler serves the administrative API: routing rules, content
// targets, consent lookups, audit-log queries, and session monitoring.
type AdminHandler struct {
	store    storage.Store
	sessions *services.SessionManager
}

// NewAdminHandler creates a new admin handler
func NewAdminHandler(store storage.Store, sessions *services.SessionManager) *AdminHandler {
	return &AdminHandler{store: store, sessions: sessions}
}

// CreateRule adds a routing rule
func (h *AdminHandler) CreateRule(c *fiber.Ctx) error {
	var rule models.RoutingRule
	if err := c.BodyParser(&rule); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid rule payload"})
	}

	if rule.Channel != models.ChannelSMS && rule.Channel != models.ChannelUSSD {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Channel must be sms or ussd"})
	}
	switch rule.MatchType {
	case models.MatchKeyword, models.MatchStartsWith, models.MatchRegex:
	default:
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Unknown match type"})
	}

	created, err := h.store.CreateRoutingRule(&rule)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
	}
	return c.Status(fiber.StatusCreated).JSON(created)
}

// ListRules returns all routing rules
func (h *AdminHandler) ListRules(c *fiber.Ctx) error {
	rules, err := h.store.GetAllRules()
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
	}
	return c.JSON(fiber.Map{"rules": rules, "count": len(rules)})
}

// CreateContent adds a content target
func (h *AdminHandler) CreateContent(c *fiber.Ctx) error {
	var target models.ContentTarget
	if err := c.BodyParser(&target); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid content payload"})
	}
	if target.Subject == "" || target.Grade == "" || target.ContentRef == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Subject, grade and content_ref are required"})
	}

	created, err := h.store.CreateContentTarget(&target)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
	}
	return c.Status(fiber.StatusCreated).JSON(created)
}

// GetConsent returns the consent records for a phone number
func (h *AdminHandler) GetConsent(c *fiber.Ctx) error {
	phone := c.Params("phone")

	records := []*models.ConsentRecord{}
	for _, channel := range []string{models.ChannelSMS, models.ChannelUSSD} {
		rec, err := h.store.GetConsent(phone, channel)
		if err != nil {
			if errors.Is(err, storage.ErrNotFound) {
				continue
			}
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
		}
		records = append(records, rec)
	}

	if len(records) == 0 {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "No consent records for phone"})
	}
	return c.JSON(fiber.Map{"phone": phone, "records": records})
}

// ListMessages returns audit-log rows, optionally filtered by status or
// phone. Failed rows are what an external retry sweeper consumes.
func (h *AdminHandler) ListMessages(c *fiber.Ctx) error {
	if phone := c.Query("phone"); phone != "" {
		msgs, err := h.store.GetMessagesByPhone(phone)
		if err != nil {
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
		}
		return c.JSON(fiber.Map{"messages": msgs, "count": len(msgs)})
	}

	status := models.MessageStatus(c.Query("status", models.StatusFailed.String()))
	if !status.Valid() {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Unknown message status"})
	}

	msgs, err := h.store.GetMessagesByStatus(status)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
	}
	return c.JSON(fiber.Map{"messages": msgs, "count": len(msgs)})
}

// ListSessions returns all live sessions (for monitoring)
func (h *AdminHandler) ListSessions(c *fiber.Ctx) error {
	sessions, err := h.sessions.ActiveSessions()
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
	}
	return c.JSON(fiber.Map{"sessions": sessions, "count": len(sessions)})
}
