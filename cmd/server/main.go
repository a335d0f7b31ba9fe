package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ansrivas/fiberprometheus/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/joho/godotenv"

	"echoreach/internal/agent"
	"echoreach/internal/cache"
	"echoreach/internal/config"
	"echoreach/internal/database"
	"echoreach/internal/gateway"
	"echoreach/internal/handlers"
	"echoreach/internal/jobs"
	"echoreach/internal/logging"
	"echoreach/internal/middleware"
	"echoreach/internal/ratelimit"
	"echoreach/internal/services"
	"echoreach/pkg/auth"
)

func main() {
	log.SetFlags(log.LstdFlags | log.Lshortfile)

	// Initialize structured logging (JSON in production, text in dev)
	logging.Init()

	log.Println("🚀 Starting EchoReach Server...")

	// Load .env file (ignore error if file doesn't exist)
	if err := godotenv.Load(); err != nil {
		log.Printf("⚠️  No .env file found or error loading it: %v", err)
	} else {
		log.Println("✅ .env file loaded successfully")
	}

	cfg := config.Load()
	log.Printf("📋 Configuration loaded (Port: %s, DB: %s)", cfg.Port, cfg.DatabasePath)

	// SQLite event store (required)
	store, err := database.NewSQLiteStore(cfg.DatabasePath)
	if err != nil {
		log.Fatalf("❌ Failed to open events database: %v", err)
	}
	defer store.Close()

	// MongoDB archive (optional)
	var mongoStore *database.MongoStore
	if cfg.MongoURI != "" {
		log.Println("🔗 Connecting to MongoDB...")
		mongoStore, err = database.NewMongoStore(cfg.MongoURI)
		if err != nil {
			log.Printf("⚠️ Failed to connect to MongoDB: %v (event archiving disabled)", err)
			mongoStore = nil
		} else {
			defer mongoStore.Close(context.Background())
		}
	} else {
		log.Println("⚠️ MONGODB_URI not set - long-term event archiving disabled")
	}

	// Redis (optional - distributed lock + event pub/sub)
	var redisService *services.RedisService
	if cfg.RedisURL != "" {
		redisService, err = services.NewRedisService(cfg.RedisURL)
		if err != nil {
			log.Printf("⚠️ Failed to connect to Redis: %v (running single-instance)", err)
			redisService = nil
		} else {
			defer redisService.Close()
		}
	} else {
		log.Println("⚠️ REDIS_URL not set - running single-instance")
	}

	// Prometheus metrics
	metrics := services.InitMetrics()

	// Decision policy (YAML, hot-reloaded)
	policyStore, err := config.LoadPolicy(cfg.PolicyPath)
	if err != nil {
		log.Fatalf("❌ Failed to load policy: %v", err)
	}
	defer policyStore.Close()

	// Event fan-out: SQLite always, plus dashboards, Mongo and Redis when available
	connManager := services.NewConnectionManager()
	eventStores := []services.EventStore{store, connManager}
	if mongoStore != nil {
		eventStores = append(eventStores, mongoStore)
	}
	if redisService != nil {
		eventStores = append(eventStores, redisService)
	}
	eventLog := services.NewEventLog(256, eventStores...)
	defer eventLog.Close()

	// Outbound API gateway
	creds := gateway.Credentials{
		BearerToken:       cfg.XBearerToken,
		APIKey:            cfg.XAPIKey,
		APISecret:         cfg.XAPISecret,
		AccessToken:       cfg.XAccessToken,
		AccessTokenSecret: cfg.XAccessTokenSecret,
		AccountID:         cfg.XAccountID,
	}
	if creds.BearerToken == "" {
		log.Println("⚠️ X_BEARER_TOKEN not set - outbound reads will fail until configured")
	}
	if !creds.CanWrite() {
		log.Println("⚠️ OAuth write credentials incomplete - agent actions will fail until configured")
	}
	client := gateway.NewClient(creds, cfg.APITimeout)
	gw := gateway.New(client, ratelimit.NewTracker(), cache.New(), cfg.OutboundRate, metrics)

	// Decision engine
	classifier := services.NewLLMClassifier(cfg.ProviderBaseURL, cfg.ProviderAPIKey, cfg.ClassifierModel, cfg.APITimeout)
	responder := services.NewLLMResponder(cfg.ProviderBaseURL, cfg.ProviderAPIKey, cfg.ResponderModel, cfg.APITimeout)

	state := agent.NewRuntimeState()
	// Rebuild today's quota usage from the event store so a restart cannot
	// double the daily budget.
	now := time.Now()
	midnight := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	if count, err := store.ActionsSince(context.Background(), midnight); err != nil {
		log.Printf("⚠️ Failed to rebuild daily quota: %v", err)
	} else if count > 0 {
		state.Restore(count)
		log.Printf("🔄 Restored daily quota usage: %d actions already taken today", count)
	}

	engine := agent.New(classifier, responder, gw, policyStore, state, eventLog, metrics)

	// JWT auth (dev bypass handled by the middleware, fatal in production)
	var jwtAuth *auth.LocalJWTAuth
	if cfg.JWTSecret != "" {
		jwtAuth, err = auth.NewLocalJWTAuth(cfg.JWTSecret, 0)
		if err != nil {
			log.Fatalf("❌ Failed to initialize JWT auth: %v", err)
		}
		log.Println("✅ JWT auth initialized")
	}

	// Background jobs
	scheduler := jobs.NewJobScheduler()
	dailyReset, err := jobs.NewDailyResetJob(state, policyStore, redisService, cfg.DailyResetSchedule)
	if err != nil {
		log.Fatalf("❌ %v", err)
	}
	scheduler.Register("daily_reset", dailyReset)
	scheduler.Register("inbox_poller", jobs.NewInboxPollerJob(gw, engine, policyStore, cfg.PollInterval, 4))
	if err := scheduler.Start(); err != nil {
		log.Fatalf("❌ Failed to start scheduler: %v", err)
	}

	// Initialize Fiber app
	app := fiber.New(fiber.Config{
		AppName:      "EchoReach v1.0",
		ReadTimeout:  120 * time.Second,
		WriteTimeout: 120 * time.Second, // batches wait on classification and generation
		IdleTimeout:  120 * time.Second,
		BodyLimit:    5 * 1024 * 1024,
	})

	// Middleware
	app.Use(recover.New())
	app.Use(logger.New())

	// Prometheus metrics middleware
	prometheus := fiberprometheus.New("echoreach")
	prometheus.RegisterAt(app, "/metrics")
	app.Use(prometheus.Middleware)
	log.Println("📊 Prometheus metrics endpoint enabled at /metrics")

	rateLimitConfig := middleware.LoadRateLimitConfig()
	log.Printf("🛡️  [RATE-LIMIT] Loaded config: Global=%d/min, Process=%d/min, WS=%d/min",
		rateLimitConfig.GlobalAPIMax,
		rateLimitConfig.ProcessMax,
		rateLimitConfig.WebSocketMax,
	)

	// CORS configuration with environment-based origins
	allowedOrigins := os.Getenv("ALLOWED_ORIGINS")
	if allowedOrigins == "" {
		allowedOrigins = "http://localhost:5173,http://localhost:3000"
		log.Println("⚠️  ALLOWED_ORIGINS not set, using development defaults")
	}
	app.Use(cors.New(cors.Config{
		AllowOrigins:     allowedOrigins,
		AllowMethods:     "GET,POST,PUT,DELETE,OPTIONS",
		AllowHeaders:     "Origin,Content-Type,Accept,Authorization",
		AllowCredentials: allowedOrigins != "*",
	}))

	app.Use("/api", middleware.GlobalAPIRateLimiter(rateLimitConfig))

	// Initialize handlers
	healthHandler := handlers.NewHealthHandler(connManager)
	inboxHandler := handlers.NewInboxHandler(engine, 4)
	adminHandler := handlers.NewAdminHandler(gw, engine, policyStore, store, eventLog)
	policyHandler := handlers.NewPolicyHandler(policyStore)
	wsHandler := handlers.NewWebSocketHandler(connManager)

	// Routes
	app.Get("/health", healthHandler.Handle)

	api := app.Group("/api", middleware.LocalAuthMiddleware(jwtAuth))
	api.Post("/inbox/process", middleware.ProcessRateLimiter(rateLimitConfig), inboxHandler.Process)
	api.Get("/ratelimits", adminHandler.RateLimits)
	api.Get("/agent/status", adminHandler.AgentStatus)
	api.Get("/policy", policyHandler.Get)
	api.Put("/policy", middleware.RequireAdmin(), policyHandler.Update)

	admin := api.Group("/admin", middleware.RequireAdmin())
	admin.Post("/reset/ratelimits", adminHandler.ResetRateLimits)
	admin.Post("/reset/cache", adminHandler.ResetCache)
	admin.Post("/reset/daily", adminHandler.ResetDaily)

	app.Use("/ws/events",
		middleware.WebSocketRateLimiter(rateLimitConfig),
		middleware.LocalAuthMiddleware(jwtAuth),
		wsHandler.Upgrade)
	app.Get("/ws/events", wsHandler.Events())

	// Handle graceful shutdown
	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		<-sigChan

		log.Println("\n🛑 Shutting down server...")

		scheduler.Stop()

		// Drain pending audit events before closing stores
		eventLog.Close()

		if err := app.Shutdown(); err != nil {
			log.Printf("⚠️ Error shutting down server: %v", err)
		}
	}()

	if err := app.Listen(":" + cfg.Port); err != nil {
		log.Fatalf("❌ Failed to start server: %v", err)
	}
}
