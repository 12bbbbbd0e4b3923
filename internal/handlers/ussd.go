package handlers

import (
	"log"

	"github.com/gofiber/fiber/v2"

	"github.com/aqe-platform/aqe-gateway/internal/services"
)

// USSDHandler handles the inbound USSD webhook
type USSDHandler struct {
	gateway *services.GatewayService
}

// NewUSSDHandler creates a new USSD webhook handler
func NewUSSDHandler(gateway *services.GatewayService) *USSDHandler {
	return &USSDHandler{gateway: gateway}
}

// InboundUSSDPayload is the inbound USSD webhook body
type InboundUSSDPayload struct {
	From      string `json:"from" form:"phoneNumber"`
	SessionID string `json:"sessionId" form:"sessionId"`
	USSDCode  string `json:"ussdCode" form:"serviceCode"`
	Input     string `json:"input" form:"text"`
}

// HandleWebhook processes a USSD request and returns the CON/END-prefixed
// response on the same round trip. The carrier always gets a valid USSD
// body, even on malformed payloads.
func (h *USSDHandler) HandleWebhook(c *fiber.Ctx) error {
	var payload InboundUSSDPayload
	if err := c.BodyParser(&payload); err != nil {
		log.Printf("Error parsing USSD webhook: %v", err)
		return c.JSON(services.USSDResponse{
			Response:   "END Error processing request",
			SessionEnd: true,
		})
	}
	if payload.From == "" {
		log.Printf("USSD webhook missing phone number (session %s)", payload.SessionID)
		return c.JSON(services.USSDResponse{
			Response:   "END Error processing request",
			SessionEnd: true,
		})
	}

	log.Printf("📟 Inbound USSD from %s (session %s): %q", payload.From, payload.SessionID, payload.Input)

	resp := h.gateway.HandleInboundUSSD(payload.From, payload.SessionID, payload.USSDCode, payload.Input)
	return c.JSON(resp)
}
