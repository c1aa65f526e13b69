package main

import (
	"log"
	"os"
	"os/exec"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/voxscribe/api/internal/client"
	"github.com/voxscribe/api/internal/config"
	"github.com/voxscribe/api/internal/handler"
	"github.com/voxscribe/api/internal/media"
	"github.com/voxscribe/api/internal/metrics"
	"github.com/voxscribe/api/internal/registry"
	"github.com/voxscribe/api/internal/service"
	"github.com/voxscribe/api/internal/worker"
	"github.com/voxscribe/api/internal/ws"
	"github.com/voxscribe/api/pkg/response"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	zapLogger, err := newLogger(cfg.Server.LogLevel, cfg.Server.Env)
	if err != nil {
		log.Fatalf("Failed to build logger: %v", err)
	}
	defer zapLogger.Sync()
	appLog := zapLogger.Sugar()

	// Working directory for uploaded and derived media files
	if err := os.MkdirAll(cfg.Upload.Dir, 0o755); err != nil {
		appLog.Fatalw("failed to create upload directory", "dir", cfg.Upload.Dir, "error", err)
	}

	// Core state: the registry owns all job records for the process
	// lifetime; everything else reads and writes through it.
	jobRegistry := registry.New()
	hub := ws.NewHub(appLog)
	jobMetrics := metrics.New(prometheus.DefaultRegisterer)

	// External integrations
	assemblyClient := client.NewAssemblyAIClient(&cfg.AssemblyAI)
	if !assemblyClient.IsConfigured() {
		appLog.Warn("AssemblyAI not configured, transcription runs in mock mode")
	}
	normalizer := media.NewNormalizer(cfg.FFmpeg.Bin)

	// Services and pipeline
	jobService := service.NewJobService(jobRegistry, hub, jobMetrics, appLog)
	pipeline := worker.NewPipelineWorker(jobService, normalizer, assemblyClient, cfg.Cleanup, appLog)

	// Handlers
	validate := validator.New()
	transcriptionHandler := handler.NewTranscriptionHandler(jobService, pipeline, validate, cfg.Upload.Dir, cfg.Upload.MaxSizeMB)

	// Initialize Fiber app. BodyLimit carries a little slack on top of
	// the file limit for multipart framing.
	app := fiber.New(fiber.Config{
		ErrorHandler: customErrorHandler,
		BodyLimit:    (cfg.Upload.MaxSizeMB + 10) * 1024 * 1024,
	})

	// Global middleware
	app.Use(recover.New())
	app.Use(logger.New(logger.Config{
		Format: "[${time}] ${status} - ${latency} ${method} ${path}\n",
	}))
	app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowMethods: "GET,POST,DELETE,OPTIONS",
		AllowHeaders: "Origin,Content-Type,Accept",
	}))

	// Health check
	app.Get("/health", func(c *fiber.Ctx) error {
		_, ffmpegErr := exec.LookPath(cfg.FFmpeg.Bin)
		return c.JSON(fiber.Map{
			"status": "ok",
			"services": fiber.Map{
				"assemblyai": assemblyClient.IsConfigured(),
				"ffmpeg":     ffmpegErr == nil,
			},
		})
	})

	// Prometheus metrics
	app.Get("/metrics", adaptor.HTTPHandler(promhttp.Handler()))

	// API routes
	api := app.Group("/api")
	api.Post("/transcribe", transcriptionHandler.Transcribe)
	api.Get("/jobs", transcriptionHandler.ListJobs)
	api.Get("/jobs/:jobId", transcriptionHandler.GetJob)
	api.Get("/status/:jobId", transcriptionHandler.GetJob)
	api.Delete("/jobs/:jobId", transcriptionHandler.DeleteJob)

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

	// Browser UI
	app.Static("/", cfg.Server.StaticDir)

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-quit
		appLog.Info("shutting down server")
		if err := app.ShutdownWithTimeout(10 * time.Second); err != nil {
			appLog.Errorw("server shutdown error", "error", err)
		}
	}()

	// Start server
	addr := ":" + cfg.Server.Port
	appLog.Infow("server starting", "addr", addr)
	if err := app.Listen(addr); err != nil {
		appLog.Fatalw("server error", "error", err)
	}
}

func newLogger(level, env string) (*zap.Logger, error) {
	zapCfg := zap.NewProductionConfig()
	if env == "development" {
		zapCfg = zap.NewDevelopmentConfig()
	}

	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		lvl = zapcore.InfoLevel
	}
	zapCfg.Level = zap.NewAtomicLevelAt(lvl)

	return zapCfg.Build()
}

func customErrorHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	message := "Internal Server Error"

	if e, ok := err.(*fiber.Error); ok {
		code = e.Code
		message = e.Message
	}

	errorCode := response.CodeServiceError
	if code == fiber.StatusRequestEntityTooLarge {
		errorCode = response.CodeFileTooLarge
	}

	return c.Status(code).JSON(response.ErrorResponse{
		Error: response.ErrorDetail{
			Code:    errorCode,
			Message: message,
		},
	})
}
