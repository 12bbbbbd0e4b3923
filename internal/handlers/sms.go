package handlers

import (
	"log"

	"github.com/gofiber/fiber/v2"

	"github.com/aqe-platform/aqe-gateway/internal/services"
)

// SMSHandler handles the inbound SMS webhook
type SMSHandler struct {
	gateway *services.GatewayService
}

// NewSMSHandler creates a new SMS webhook handler
func NewSMSHandler(gateway *services.GatewayService) *SMSHandler {
	return &SMSHandler{gateway: gateway}
}

// InboundSMSPayload is the inbound SMS webhook body
type InboundSMSPayload struct {
	From         string            `json:"from" form:"From"`
	To           string            `json:"to" form:"To"`
	Text         string            `json:"text" form:"Body"`
	ProviderMeta map[string]string `json:"providerMeta,omitempty"`
}

// HandleWebhook processes an inbound SMS and acknowledges it. A delivery
// failure on the outbound leg still acknowledges success: the inbound
// message was processed.
func (h *SMSHandler) HandleWebhook(c *fiber.Ctx) error {
	var payload InboundSMSPayload
	if err := c.BodyParser(&payload); err != nil {
		log.Printf("Error parsing SMS webhook: %v", err)
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid webhook payload",
		})
	}

	if payload.From == "" || payload.Text == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Missing from or text",
		})
	}

	log.Printf("📱 Inbound SMS from %s: %s", payload.From, payload.Text)

	result, err := h.gateway.HandleInboundSMS(payload.From, payload.To, payload.Text)
	if err != nil {
		log.Printf("❌ Error processing inbound SMS: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to process message",
		})
	}

	return c.JSON(result)
}
