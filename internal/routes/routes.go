package routes

import (
	"log"
	"os"

	"github.com/gofiber/fiber/v2"

	"github.com/aqe-platform/aqe-gateway/internal/handlers"
	"github.com/aqe-platform/aqe-gateway/internal/middleware"
	"github.com/aqe-platform/aqe-gateway/internal/services"
	"github.com/aqe-platform/aqe-gateway/internal/storage"
)

// SetupRoutes configures all API routes
func SetupRoutes(app *fiber.App, store storage.Store, gateway *services.GatewayService) {
	smsHandler := handlers.NewSMSHandler(gateway)
	ussdHandler := handlers.NewUSSDHandler(gateway)
	adminHandler := handlers.NewAdminHandler(store, gateway.Sessions())

	// ========== WEBHOOK ROUTES ==========
	webhooks := app.Group("/webhook")

	// SMS webhook - signature validation is environment-aware so local
	// testing with curl/ngrok works without carrier headers
	if os.Getenv("ENVIRONMENT") == "development" || os.Getenv("DISABLE_WEBHOOK_VALIDATION") == "true" {
		webhooks.Post("/sms", smsHandler.HandleWebhook)
		log.Println("⚠️  SMS webhook validation DISABLED for development")
	} else {
		webhooks.Post("/sms", middleware.ValidateTwilioSignature(), smsHandler.HandleWebhook)
	}

	// USSD webhook - replies ride the same request, nothing to validate
	// beyond the carrier's source IP allowlist at the edge
	webhooks.Post("/ussd", ussdHandler.HandleWebhook)

	// ========== ADMIN ROUTES ==========
	admin := app.Group("/admin", middleware.RequireAdminKey())
	admin.Post("/rules", adminHandler.CreateRule)
	admin.Get("/rules", adminHandler.ListRules)
	admin.Post("/content", adminHandler.CreateContent)
	admin.Get("/consent/:phone", adminHandler.GetConsent)
	admin.Get("/messages", adminHandler.ListMessages)
	admin.Get("/sessions", adminHandler.ListSessions)
}
