package server

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"runtime"
	"strings"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/adaptor"
	"github.com/gofiber/fiber/v3/middleware/cors"
	"github.com/gofiber/fiber/v3/middleware/logger"
	"github.com/gofiber/fiber/v3/middleware/recover"
	"github.com/gofiber/fiber/v3/middleware/requestid"
	swaggerFiles "github.com/swaggo/files"
	httpSwagger "github.com/swaggo/http-swagger"

	"face-shape-api/internal/config"
	"face-shape-api/internal/handlers"
	"face-shape-api/internal/pool"
	"face-shape-api/internal/providers"
	"face-shape-api/internal/services"
	"face-shape-api/internal/verify"
)

// Server represents the HTTP server
type Server struct {
	app             *fiber.App
	config          *config.Config
	storageService  *services.StorageService
	admission       *services.AdmissionService
	analysisLimiter *pool.Limiter
	analysisService *services.AnalysisService
	leadsService    *services.LeadsService
	uploadHandler   *handlers.UploadHandler
	analysisHandler *handlers.AnalysisHandler
	leadsHandler    *handlers.LeadsHandler
	metaHandler     *handlers.MetaHandler
}

// New creates a new server instance
func New(cfg *config.Config) *Server {
	if cfg == nil {
		cfg = config.Load()
	}

	return &Server{
		config: cfg,
	}
}

// Initialize sets up all server components
func (s *Server) Initialize() error {
	if err := s.config.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	// Initialize storage if enabled
	if s.config.Storage.Enabled {
		log.Println("Initializing storage provider...")

		if err := s.config.Storage.Validate(); err != nil {
			return fmt.Errorf("invalid storage configuration: %w", err)
		}

		provider, err := providers.NewProviderFactory().CreateProvider(s.config.Storage.ToProviderConfig())
		if err != nil {
			return fmt.Errorf("failed to initialize storage provider: %w", err)
		}
		s.storageService = services.NewStorageService(provider, s.config.Storage)
	}

	// Initialize Turnstile verifier
	verifier, err := verify.FromConfig(s.config.TurnstileSecretKey, s.config.TurnstileBypassToken, s.config.TurnstileVerifyURL)
	if err != nil {
		return fmt.Errorf("failed to initialize captcha verifier: %w", err)
	}
	if s.config.TurnstileBypassToken != "" {
		if s.config.IsProduction() {
			log.Println("Warning: Turnstile bypass token is set in production; matching requests skip verification")
		} else {
			log.Println("Warning: Turnstile bypass token is set; disable it in production")
		}
	}

	// Initialize admission pipeline
	s.admission = services.NewAdmissionService(s.config, verifier, s.storageService)
	s.uploadHandler = handlers.NewUploadHandler(s.admission)

	// Initialize analysis pass-through if configured
	if s.config.VisionEnabled() && s.storageService != nil {
		log.Println("Initializing analysis service...")
		s.analysisLimiter = pool.NewLimiter(s.config.MaxConcurrentAnalyses, s.config.AnalysisMaxWait)
		s.analysisService = services.NewAnalysisService(s.config, s.storageService, s.analysisLimiter)
		s.analysisHandler = handlers.NewAnalysisHandler(s.analysisService)
	}

	// Initialize leads store
	log.Printf("Opening leads database at %s", s.config.LeadsDBPath)
	leadsService, err := services.NewLeadsService(s.config.LeadsDBPath)
	if err != nil {
		return fmt.Errorf("failed to initialize leads database: %w", err)
	}
	s.leadsService = leadsService
	s.leadsHandler = handlers.NewLeadsHandler(s.leadsService)

	// Initialize metadata handler with API version
	s.metaHandler = handlers.NewMetaHandler(readAPIVersion(), s.storageService, s.leadsService, s.analysisService)

	// Initialize Fiber app with v3 config
	s.app = fiber.New(fiber.Config{
		ServerHeader:  "FaceShapeAPI",
		StrictRouting: true,
		CaseSensitive: true,
		AppName:       "Face Shape API",
		BodyLimit:     s.config.BodyLimit,
		ReadTimeout:   s.config.ReadTimeout,
		WriteTimeout:  s.config.WriteTimeout,
		IdleTimeout:   s.config.IdleTimeout,
		ErrorHandler: func(c fiber.Ctx, err error) error {
			code := fiber.StatusInternalServerError
			message := "Internal Server Error"

			if e, ok := err.(*fiber.Error); ok {
				code = e.Code
				message = e.Message
			}

			return c.Status(code).JSON(fiber.Map{
				"error":     message,
				"timestamp": time.Now().Unix(),
			})
		},
	})

	// Setup middleware
	s.setupMiddleware()

	// Setup routes
	s.setupRoutes()

	return nil
}

// setupMiddleware configures all middleware
func (s *Server) setupMiddleware() {
	if s.config.EnableRequestID {
		s.app.Use(requestid.New(requestid.Config{
			Header: "X-Request-ID",
		}))
	}

	// Logger middleware (minimal for performance, latency only in development)
	format := "${time} | ${status} | ${method} ${path}\n"
	if s.config.IsDevelopment() {
		format = "${time} | ${status} | ${latency} | ${method} ${path}\n"
	}
	s.app.Use(logger.New(logger.Config{
		Format:     format,
		TimeFormat: "15:04:05",
	}))

	if s.config.EnableCORS {
		s.app.Use(cors.New(cors.Config{
			AllowOrigins: []string{"*"},
			AllowMethods: []string{"GET", "POST", "OPTIONS"},
			AllowHeaders: []string{"Origin", "Content-Type", "Accept", "X-Request-ID"},
			MaxAge:       86400,
		}))
	}

	// Recover middleware
	s.app.Use(recover.New())
}

// setupRoutes configures all API routes
func (s *Server) setupRoutes() {
	s.app.Get("/api", s.metaHandler.APIInfo)

	if s.config.EnableHealthCheck {
		s.app.Get("/health", s.metaHandler.Health)
	}
	if s.config.EnableStatsEndpoint {
		s.app.Get("/stats", s.metaHandler.Stats)
	}

	s.app.Post("/api/upload/init", s.uploadHandler.InitUpload)
	s.app.Post("/api/leads", s.leadsHandler.SaveLead)

	if s.analysisHandler != nil {
		s.app.Post("/api/face-analysis", s.analysisHandler.Analyze)
	}

	if s.swaggerEnabled() {
		s.registerSwaggerRoutes()
	}

	// 404 handler
	s.app.Use(func(c fiber.Ctx) error {
		return c.Status(404).JSON(fiber.Map{
			"error": "Endpoint not found",
			"path":  c.Path(),
		})
	})
}

// swaggerEnabled reports whether the swagger UI should be served. Always on
// in development, opt-in elsewhere.
func (s *Server) swaggerEnabled() bool {
	return s.config.EnableSwagger || s.config.IsDevelopment()
}

func (s *Server) registerSwaggerRoutes() {
	swaggerFiles.Handler.Prefix = "/swagger"
	s.app.Get("/swagger", func(c fiber.Ctx) error {
		return c.Redirect().Status(fiber.StatusTemporaryRedirect).To("/swagger/index.html")
	})
	s.app.Get("/swagger/*", adaptor.HTTPHandler(httpSwagger.Handler(
		httpSwagger.InstanceName("swagger"),
		httpSwagger.DeepLinking(true),
	)))
}

// Start starts the server
func (s *Server) Start() error {
	// Print startup information
	s.printStartupInfo()

	// Create shutdown channel
	shutdownCh := make(chan os.Signal, 1)
	signal.Notify(shutdownCh, syscall.SIGINT, syscall.SIGTERM)

	// Start server in goroutine
	go func() {
		addr := fmt.Sprintf(":%s", s.config.Port)
		if err := s.app.Listen(addr); err != nil {
			log.Printf("Server error: %v", err)
		}
	}()

	// Wait for shutdown signal
	<-shutdownCh

	log.Println("Shutting down server...")
	return s.Shutdown()
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := s.app.ShutdownWithContext(ctx); err != nil {
		log.Printf("Error shutting down server: %v", err)
	}

	log.Println("Server shutdown complete")
	return nil
}

// printStartupInfo prints server configuration
func (s *Server) printStartupInfo() {
	log.Println("========================================")
	log.Println("Face Shape API")
	log.Println("========================================")
	log.Printf("Port:           %s", s.config.Port)
	log.Printf("Environment:    %s", s.config.AppEnv)
	log.Printf("Body Limit:     %dMB", s.config.BodyLimit/1024/1024)
	log.Printf("CPU Cores:      %d", runtime.NumCPU())
	log.Printf("Go Version:     %s", runtime.Version())
	log.Printf("Swagger:        %t", s.swaggerEnabled())
	log.Println("========================================")
	s.config.PrintConfig()
}

func readAPIVersion() string {
	const fallbackVersion = "1.0.0"
	data, err := os.ReadFile("VERSION")
	if err != nil {
		return fallbackVersion
	}

	version := strings.TrimSpace(string(data))
	if version == "" {
		return fallbackVersion
	}

	return version
}
