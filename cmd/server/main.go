package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	fiberSwagger "github.com/gofiber/swagger"
	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"

	"github.com/makeasinger/midiconv/docs"
	"github.com/makeasinger/midiconv/internal/accel"
	"github.com/makeasinger/midiconv/internal/audio"
	"github.com/makeasinger/midiconv/internal/auth"
	"github.com/makeasinger/midiconv/internal/client"
	"github.com/makeasinger/midiconv/internal/config"
	"github.com/makeasinger/midiconv/internal/dsp"
	"github.com/makeasinger/midiconv/internal/handler"
	"github.com/makeasinger/midiconv/internal/middleware"
	"github.com/makeasinger/midiconv/internal/pipeline"
	"github.com/makeasinger/midiconv/internal/repository"
	"github.com/makeasinger/midiconv/internal/separate"
	"github.com/makeasinger/midiconv/internal/service"
	"github.com/makeasinger/midiconv/internal/storage"
	"github.com/makeasinger/midiconv/internal/transcribe"
	ws "github.com/makeasinger/midiconv/internal/websocket"
	"github.com/makeasinger/midiconv/internal/worker"
	"github.com/makeasinger/midiconv/pkg/response"
)

// @title          MIDI Conversion API
// @version        1.0
// @description    Stem separation and audio to MIDI conversion service.
// @host           localhost:8000
// @BasePath       /
// @schemes        http https
// @securityDefinitions.apikey BearerAuth
// @in             header
// @name           Authorization
// @description    Enter your bearer token in the format **Bearer &lt;token&gt;**
func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// Configure Swagger host/scheme based on environment
	if cfg.Server.ApiDomain != "" {
		docs.SwaggerInfo.Host = cfg.Server.ApiDomain
		docs.SwaggerInfo.Schemes = []string{"https"}
	} else {
		docs.SwaggerInfo.Host = "localhost:" + cfg.Server.Port
		docs.SwaggerInfo.Schemes = []string{"http"}
	}

	ctx := context.Background()

	// Initialize Redis client
	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	if err := redisClient.Ping(ctx).Err(); err != nil {
		log.Printf("Warning: Redis not available: %v", err)
	}

	// Artifact storage
	store, err := storage.NewStore(cfg.Storage.Root)
	if err != nil {
		log.Fatalf("Failed to initialize storage: %v", err)
	}

	// Job records and locks
	jobs, locker, closeJobs := openJobStore(ctx, cfg, redisClient)
	defer closeJobs()

	// Initialize validator
	validate := validator.New()

	// Initialize WebSocket hub
	hub := ws.NewHub()
	go hub.Run()

	// Model service (optional - built-in DSP and pass-through separation otherwise)
	inferenceClient := client.NewInferenceClient(&cfg.Inference)
	var separator separate.Separator = separate.Passthrough{}
	var events transcribe.EventSource
	if inferenceClient.IsConfigured() {
		events = inferenceClient
		if cfg.Inference.Separator != "none" {
			separator = inferenceClient
		}
	} else {
		log.Println("Info: inference service not configured, using built-in transcription and single-stem separation")
	}

	// Initialize R2 client (optional - artifacts stay local if not configured)
	var mirror client.ObjectStore
	if cfg.R2.AccessKeyID != "" && cfg.R2.SecretAccessKey != "" {
		r2Client, err := client.NewR2Client(&cfg.R2)
		if err != nil {
			log.Printf("Warning: R2 client not initialized: %v", err)
		} else {
			mirror = r2Client
		}
	} else {
		log.Println("Info: R2 storage not configured, MIDI artifacts are served locally only")
	}

	converter := pipeline.New(audio.WAVLoader{}, dsp.NewPitchTracker(), events, dsp.NewTempoTracker())
	manager := service.NewStemJobManager(service.Deps{
		Store:          store,
		Jobs:           jobs,
		Locker:         locker,
		Separator:      separator,
		Converter:      converter,
		Guard:          accel.New(cfg.Inference.Device),
		Mirror:         mirror,
		Notifier:       hub,
		Validate:       validate,
		Defaults:       cfg.Conversion.Defaults(),
		RetainUploads:  cfg.Storage.RetainUploads,
		RetainStems:    cfg.Storage.RetainStems,
		MaxUploadBytes: int64(cfg.Storage.MaxUploadMB) * 1024 * 1024,
	})

	// Stages run on the asynq workers unless job records live in memory,
	// which only this process can see
	var dispatcher service.Dispatcher
	if cfg.Storage.JobStore == "memory" {
		log.Println("Info: in-memory job store, running stages in-process")
		dispatcher = service.NewInlineDispatcher(manager, true)
	} else {
		asynqClient := asynq.NewClient(asynq.RedisClientOpt{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		defer asynqClient.Close()
		dispatcher = service.NewAsynqDispatcher(asynqClient)
		go startWorkerServer(cfg, manager)
	}

	// Initialize Zitadel JWKS verifier (optional - falls back to legacy JWT)
	var tokenVerifier auth.TokenVerifier
	if cfg.Zitadel.Issuer != "" {
		jwksVerifier, err := auth.NewJWKSVerifier(&cfg.Zitadel)
		if err != nil {
			log.Printf("Warning: JWKS verifier not initialized: %v", err)
		} else {
			defer jwksVerifier.Close()
			tokenVerifier = jwksVerifier
		}
	}
	authenticator := auth.NewAuthenticator(tokenVerifier, cfg.JWT.Secret)

	// Initialize handlers
	jobHandler := handler.NewJobHandler(manager, dispatcher, validate)
	downloadHandler := handler.NewDownloadHandler(manager)
	authHandler := handler.NewAuthHandler(authenticator)

	checks := map[string]handler.Check{"jobStore": jobs.Ping}
	if inferenceClient.IsConfigured() {
		checks["inference"] = inferenceClient.HealthCheck
	}
	healthHandler := handler.NewHealthHandler(manager, checks)

	// Initialize middleware
	var apiAuthMiddleware fiber.Handler
	if cfg.Gateway.Enabled {
		// Behind Traefik: auth is handled by ForwardAuth, read X-User-* headers
		log.Println("Info: Gateway mode enabled, using header-based auth")
		apiAuthMiddleware = middleware.GatewayAuthMiddleware()
	} else {
		apiAuthMiddleware = middleware.NewAuthMiddleware(authenticator).Authenticate()
	}
	rateLimiter := middleware.NewRateLimiter(redisClient)

	// Initialize Fiber app
	app := fiber.New(fiber.Config{
		ErrorHandler: customErrorHandler,
		BodyLimit:    (cfg.Storage.MaxUploadMB + 1) * 1024 * 1024,
	})

	// Global middleware
	app.Use(recover.New())
	isDebug := strings.EqualFold(cfg.Server.LogLevel, "debug")
	logFormat := "[${time}] ${status} - ${latency} ${method} ${path}\n"
	if isDebug {
		logFormat = "[${time}] ${status} - ${latency} ${method} ${path} ${queryParams} ${reqHeaders}\n"
		log.Println("Debug logging enabled")
	}
	app.Use(logger.New(logger.Config{
		Format: logFormat,
	}))
	app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowMethods: "GET,POST,DELETE,OPTIONS",
		AllowHeaders: "Origin,Content-Type,Accept,Authorization,Range",
	}))

	// Base URL - timestamp
	app.Get("/", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"timestamp": time.Now().Unix(),
		})
	})

	app.Get("/health", healthHandler.Health)

	// Swagger UI
	app.Get("/swagger/*", fiberSwagger.HandlerDefault)

	// ForwardAuth verification endpoint (internal, called by Traefik)
	app.Get("/auth/verify", authHandler.Verify)

	// API routes
	api := app.Group("/api", apiAuthMiddleware)

	api.Post("/separate", rateLimiter.SeparateLimit(cfg.RateLimit.SeparatePerHour), jobHandler.Separate)
	api.Post("/convert-to-midi", rateLimiter.ConvertLimit(cfg.RateLimit.ConvertPerHour), jobHandler.Convert)

	jobRoutes := api.Group("/jobs")
	jobRoutes.Get("/:jobId", jobHandler.Status)
	jobRoutes.Post("/:jobId/reset", jobHandler.Reset)
	jobRoutes.Delete("/:jobId", jobHandler.Delete)

	api.Get("/download/:token", downloadHandler.Download)
	api.Get("/stream/:token", downloadHandler.Stream)

	// WebSocket routes
	app.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})

	app.Get("/ws/jobs/:jobId", websocket.New(func(c *websocket.Conn) {
		jobID := c.Params("jobId")
		hub.HandleConnection(c, jobID)
	}))

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-quit
		log.Println("Shutting down server...")
		if err := app.ShutdownWithTimeout(10 * time.Second); err != nil {
			log.Printf("Server shutdown error: %v", err)
		}
	}()

	// Start server
	addr := ":" + cfg.Server.Port
	log.Printf("Server starting on %s", addr)
	if err := app.Listen(addr); err != nil {
		log.Fatalf("Server error: %v", err)
	}
}

// openJobStore selects where job records live. Locks are in Redis except
// for the in-memory store.
func openJobStore(ctx context.Context, cfg *config.Config, redisClient *redis.Client) (repository.JobStore, repository.JobLocker, func()) {
	ttl := time.Duration(cfg.Storage.JobTTLHours) * time.Hour

	switch cfg.Storage.JobStore {
	case "memory":
		return repository.NewMemoryJobStore(), repository.NewMemoryLocker(), func() {}
	case "postgres":
		pg, err := repository.NewPostgresJobStore(ctx, cfg.Storage.PostgresDSN)
		if err != nil {
			log.Fatalf("Failed to open job database: %v", err)
		}
		return pg, repository.NewRedisLocker(redisClient, 0), func() {
			if err := pg.Close(); err != nil {
				log.Printf("Failed to close job database: %v", err)
			}
		}
	default:
		if ttl > 0 {
			log.Printf("Warning: job records expire after %s and their files are not removed", ttl)
		}
		return repository.NewRedisJobStore(redisClient, ttl), repository.NewRedisLocker(redisClient, 0), func() {}
	}
}

func startWorkerServer(cfg *config.Config, manager *service.StemJobManager) {
	asynqLogLevel := asynq.InfoLevel
	if strings.EqualFold(cfg.Server.LogLevel, "debug") {
		asynqLogLevel = asynq.DebugLevel
	} else if strings.EqualFold(cfg.Server.LogLevel, "warn") {
		asynqLogLevel = asynq.WarnLevel
	} else if strings.EqualFold(cfg.Server.LogLevel, "error") {
		asynqLogLevel = asynq.ErrorLevel
	}

	srv := asynq.NewServer(
		asynq.RedisClientOpt{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		},
		asynq.Config{
			Concurrency: cfg.Worker.Concurrency,
			Queues: map[string]int{
				service.QueueSeparate: cfg.Worker.SeparateWeight,
				service.QueueConvert:  cfg.Worker.ConvertWeight,
			},
			LogLevel: asynqLogLevel,
		},
	)

	mux := asynq.NewServeMux()
	worker.NewStemWorker(manager).Register(mux)

	if err := srv.Run(mux); err != nil {
		log.Printf("Asynq worker error: %v", err)
	}
}

func customErrorHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	message := "Internal Server Error"

	if e, ok := err.(*fiber.Error); ok {
		code = e.Code
		message = e.Message
	}

	return response.Error(c, code, response.CodeServiceError, message, nil)
}
