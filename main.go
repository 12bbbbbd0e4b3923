package main

import (
	"log"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/joho/godotenv"

	"github.com/aqe-platform/aqe-gateway/database"
	"github.com/aqe-platform/aqe-gateway/internal/handlers"
	"github.com/aqe-platform/aqe-gateway/internal/models"
	"github.com/aqe-platform/aqe-gateway/internal/routes"
	"github.com/aqe-platform/aqe-gateway/internal/services"
	"github.com/aqe-platform/aqe-gateway/internal/storage"
)

const version = "1.0.0"

func main() {
	// Load .env file for local development
	if os.Getenv("INSTANCE_CONNECTION_NAME") == "" {
		if err := godotenv.Load(".env"); err != nil {
			log.Println("⚠️  No .env file found - using environment variables")
		}
	}

	// Initialize storage
	var store storage.Store

	if os.Getenv("USE_MEMORY_STORE") == "true" {
		log.Println("⚠️  Using in-memory storage (not for production!)")
		store = storage.NewMemoryStore()
	} else {
		log.Println("📦 Connecting to PostgreSQL database...")
		if err := database.Connect(); err != nil {
			log.Fatal(err)
		}

		log.Println("🔄 Running database migrations...")
		err := database.DB.AutoMigrate(
			&models.ConsentRecord{},
			&models.RoutingRule{},
			&models.FlowDefinition{},
			&models.Session{},
			&models.Message{},
			&models.ContentTarget{},
		)
		if err != nil {
			log.Fatal("Failed to migrate database:", err)
		}
		log.Println("✅ Database migrations completed!")

		store = storage.NewDatabaseStore(database.DB)
		log.Println("✅ Using PostgreSQL database storage")
	}

	// Choose the delivery provider once per process - no runtime switching
	provider, err := buildProvider()
	if err != nil {
		log.Fatal("Failed to initialize delivery provider:", err)
	}
	log.Printf("✅ Delivery provider initialized: %s", provider.Name())

	// Seed default rules, flows and content on a fresh deployment
	if err := seedDefaults(store); err != nil {
		log.Fatal("Failed to seed defaults:", err)
	}

	// Wire the gateway
	gateway := services.NewGatewayService(store, provider)
	gateway.SetSessionTTLs(sessionTTLsFromEnv())

	// Start the session reaper - lazy expiry is the correctness mechanism,
	// the reaper just reclaims dead rows
	gateway.Sessions().StartReaper(5 * time.Minute)

	// Create fiber app
	app := fiber.New(fiber.Config{
		AppName: "AQE Messaging Gateway v" + version,
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			code := fiber.StatusInternalServerError
			if e, ok := err.(*fiber.Error); ok {
				code = e.Code
			}
			return c.Status(code).JSON(fiber.Map{
				"error": err.Error(),
			})
		},
	})

	// Middleware
	app.Use(logger.New(logger.Config{
		Format: "[${time}] ${status} - ${latency} ${method} ${path}\n",
	}))
	app.Use(recover.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowHeaders: "Origin, Content-Type, Accept, Authorization, X-Admin-Key",
		AllowMethods: "GET, POST, PUT, DELETE, OPTIONS",
	}))

	// Service descriptor with storage and gateway status
	app.Get("/", func(c *fiber.Ctx) error {
		response := fiber.Map{
			"service":  "AQE Messaging Gateway",
			"version":  version,
			"status":   "healthy",
			"storage":  storageType(),
			"provider": provider.Name(),
		}

		if os.Getenv("USE_MEMORY_STORE") != "true" && database.DB != nil {
			var ruleCount, messageCount, consentCount int64
			database.DB.Model(&models.RoutingRule{}).Count(&ruleCount)
			database.DB.Model(&models.Message{}).Count(&messageCount)
			database.DB.Model(&models.ConsentRecord{}).Count(&consentCount)

			response["database"] = fiber.Map{
				"routing_rules": ruleCount,
				"messages":      messageCount,
				"consents":      consentCount,
			}
		}

		if sessions, err := gateway.Sessions().ActiveSessions(); err == nil {
			response["active_sessions"] = len(sessions)
		}

		return c.JSON(response)
	})

	// Health check endpoint for monitoring
	var ping func() error
	if os.Getenv("USE_MEMORY_STORE") != "true" && database.DB != nil {
		ping = func() error {
			sqlDB, err := database.DB.DB()
			if err != nil {
				return err
			}
			return sqlDB.Ping()
		}
	}
	health := handlers.NewHealthHandler(version, provider.Name(), storageType(), ping)
	app.Get("/health", health.Check)

	routes.SetupRoutes(app, store, gateway)

	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}

	// Handle graceful shutdown
	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt, syscall.SIGTERM)

	go func() {
		<-c
		log.Println("\n🛑 Gracefully shutting down...")
		gateway.Sessions().StopReaper()
		_ = app.Shutdown()
	}()

	log.Println("========================================")
	log.Printf("🚀 AQE Messaging Gateway starting on port %s", port)
	log.Printf("📊 Storage: %s", storageType())
	log.Printf("📱 Provider: %s", provider.Name())
	log.Println("========================================")

	log.Fatal(app.Listen(":" + port))
}

// buildProvider picks the carrier backend from SMS_PROVIDER. The mock is
// the default so a fresh checkout runs without credentials.
func buildProvider() (services.Provider, error) {
	switch os.Getenv("SMS_PROVIDER") {
	case "twilio":
		return services.NewTwilioProvider()
	case "africastalking":
		return services.NewAfricasTalkingProvider()
	case "", "mock":
		return services.NewMockProvider(), nil
	default:
		log.Printf("⚠️  Unknown SMS_PROVIDER %q - falling back to mock", os.Getenv("SMS_PROVIDER"))
		return services.NewMockProvider(), nil
	}
}

func sessionTTLsFromEnv() (time.Duration, time.Duration) {
	smsTTL := services.DefaultSMSSessionTTL
	if hours, err := strconv.Atoi(os.Getenv("SMS_SESSION_TTL_HOURS")); err == nil && hours > 0 {
		smsTTL = time.Duration(hours) * time.Hour
	}
	ussdTTL := services.DefaultUSSDSessionTTL
	if minutes, err := strconv.Atoi(os.Getenv("USSD_SESSION_TTL_MINUTES")); err == nil && minutes > 0 {
		ussdTTL = time.Duration(minutes) * time.Minute
	}
	return smsTTL, ussdTTL
}

func storageType() string {
	if os.Getenv("USE_MEMORY_STORE") == "true" {
		return "In-Memory (Testing)"
	}
	return "PostgreSQL Database"
}

// seedDefaults populates routing rules, flows and the content table on an
// empty deployment so the gateway answers something useful on day one.
func seedDefaults(store storage.Store) error {
	ruleCount, err := store.CountRoutingRules()
	if err != nil {
		return err
	}
	if ruleCount == 0 {
		rules := []*models.RoutingRule{
			{Channel: models.ChannelSMS, MatchType: models.MatchKeyword, MatchValue: "LEARN", TargetFlow: models.FlowSMSLearning, Priority: 10, Active: true},
			{Channel: models.ChannelSMS, MatchType: models.MatchStartsWith, MatchValue: "LESSON", TargetFlow: models.FlowSMSLearning, Priority: 20, Active: true},
			{Channel: models.ChannelUSSD, MatchType: models.MatchKeyword, MatchValue: "MENU", TargetFlow: models.FlowUSSDMenu, Priority: 10, Active: true},
		}
		for _, rule := range rules {
			if _, err := store.CreateRoutingRule(rule); err != nil {
				return err
			}
		}
		log.Printf("🌱 Seeded %d routing rules", len(rules))
	}

	contentCount, err := store.CountContentTargets()
	if err != nil {
		return err
	}
	if contentCount == 0 {
		subjects := []string{"MATH", "READING", "SCIENCE"}
		grades := []string{"K-2", "3-4", "5-6", "7-8"}
		seeded := 0
		for _, subject := range subjects {
			for _, grade := range grades {
				target := &models.ContentTarget{
					Subject:    subject,
					Grade:      grade,
					Language:   "en",
					Difficulty: "standard",
					ContentRef: "lessons/" + subject + "/" + grade,
					Priority:   100,
					Active:     true,
				}
				if _, err := store.CreateContentTarget(target); err != nil {
					return err
				}
				seeded++
			}
		}
		log.Printf("🌱 Seeded %d content targets", seeded)
	}

	return nil
}
