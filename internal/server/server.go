// Package server contains HTTP and WebSocket handlers for the application's API endpoints.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	_ "project0/docs" // swagger docs
	"project0/internal/cache"
	"project0/internal/config"
	"project0/internal/database"
	"project0/internal/featureflags"
	"project0/internal/llm"
	"project0/internal/middleware"
	"project0/internal/models"
	"project0/internal/notifications"
	"project0/internal/prompts"
	"project0/internal/repository"
	"project0/internal/service"

	"github.com/ansrivas/fiberprometheus/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/helmet"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"github.com/gofiber/fiber/v2/middleware/monitor"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/gofiber/swagger"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

const (
	sessionCookie   = "session_token"
	defaultOrigins  = "http://localhost:5173,http://localhost:3000,http://127.0.0.1:5173,http://localhost:8000"
	defaultOllamaTO = 300 * time.Second

	// Multipart bodies carry a resume plus the job description.
	bodyLimitSlack = 1 << 20
)

// Server holds all dependencies and provides handlers
type Server struct {
	config            *config.Config
	db                *gorm.DB
	redis             *redis.Client
	app               *fiber.App
	promMiddleware    *fiberprometheus.FiberPrometheus
	shutdownCtx       context.Context
	shutdownFn        context.CancelFunc
	llm               *llm.Client
	notifier          *notifications.Notifier
	hub               *notifications.Hub
	publisher         notifications.Publisher
	featureFlags      *featureflags.Manager
	authService       *service.AuthService
	userService       *service.UserService
	avatarService     *service.AvatarService
	resumeService     *service.ResumeService
	generationService *service.GenerationService
	analysisService   *service.AnalysisService
	creditService     *service.CreditService
}

// NewServer creates a new server instance with all dependencies
func NewServer(cfg *config.Config) (*Server, error) {
	db, err := database.Connect(cfg)
	if err != nil {
		return nil, fmt.Errorf("database connection failed: %w", err)
	}

	// Redis is optional; the client is nil when it cannot be reached.
	cache.InitRedis(cfg.RedisURL)

	return NewServerWithDeps(cfg, db, cache.GetClient())
}

// NewServerWithDeps creates a Server using already-initialized dependencies.
// Use this in tests or when a bootstrap layer establishes DB/Redis and optionally
// performs explicit seeding.
func NewServerWithDeps(cfg *config.Config, db *gorm.DB, redisClient *redis.Client) (*Server, error) {
	catalogue, err := prompts.Default()
	if err != nil {
		return nil, fmt.Errorf("load prompt catalogue: %w", err)
	}

	userRepo := repository.NewUserRepository(db)
	sessionRepo := repository.NewSessionRepository(db)
	mvpRepo := repository.NewMVPRepository(db)
	analysisRepo := repository.NewAnalysisRepository(db)
	analyticsRepo := repository.NewAnalyticsRepository(db)
	creditRepo := repository.NewCreditRepository(db)

	timeout := time.Duration(cfg.OllamaTimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = defaultOllamaTO
	}

	s := &Server{
		config:         cfg,
		db:             db,
		redis:          redisClient,
		promMiddleware: middleware.InitMetrics("project0-api"),
		llm:            llm.NewClient(cfg.OllamaURL, cfg.OllamaAPIKey, timeout),
		hub:            notifications.NewHub(redisClient),
		featureFlags:   featureflags.NewManager(cfg.FeatureFlags),
	}
	if redisClient != nil {
		s.notifier = notifications.NewNotifier(redisClient)
	}
	s.publisher = &realtimePublisher{hub: s.hub, notifier: s.notifier}

	s.authService = service.NewAuthService(userRepo, sessionRepo, redisClient, cfg)
	s.userService = service.NewUserService(userRepo)
	s.avatarService = service.NewAvatarService(s.userService, cfg)
	s.resumeService = service.NewResumeService(s.userService, cfg)
	s.generationService = service.NewGenerationService(service.GenerationConfig{
		Users:     userRepo,
		MVPs:      mvpRepo,
		Analytics: analyticsRepo,
		LLM:       s.llm,
		Prompts:   catalogue,
		Flags:     s.featureFlags,
		Notifier:  s.publisher,
		Model:     cfg.OllamaChatModel,
	})
	s.analysisService = service.NewAnalysisService(service.AnalysisConfig{
		Users:          userRepo,
		Analyses:       analysisRepo,
		Analytics:      analyticsRepo,
		LLM:            s.llm,
		Prompts:        catalogue,
		Flags:          s.featureFlags,
		Notifier:       s.publisher,
		Model:          cfg.OllamaAnalysisModel,
		OllamaURL:      cfg.OllamaURL,
		MaxUploadBytes: s.maxUploadBytes(),
		Resumes:        s.resumeService,
	})
	s.creditService = service.NewCreditService(service.CreditConfig{
		Users:     userRepo,
		Credits:   creditRepo,
		Analytics: analyticsRepo,
		MVPs:      mvpRepo,
		Analyses:  analysisRepo,
		Flags:     s.featureFlags,
		Notifier:  s.publisher,
		Online:    s.hub,
		Amount:    cfg.CreditRequestAmount,
	})

	return s, nil
}

func (s *Server) maxUploadBytes() int64 {
	mb := s.config.MaxUploadSizeMB
	if mb <= 0 {
		mb = 10
	}
	return int64(mb) << 20
}

// NewApp builds the Fiber application with middleware and routes.
func (s *Server) NewApp() *fiber.App {
	app := fiber.New(fiber.Config{
		AppName:      "Project-0 API",
		BodyLimit:    int(s.maxUploadBytes()) + bodyLimitSlack,
		ErrorHandler: errorHandler,
	})
	s.SetupMiddleware(app)
	s.SetupRoutes(app)
	return app
}

// errorHandler converts unhandled errors into an AppError response.
func errorHandler(c *fiber.Ctx, err error) error {
	var fiberErr *fiber.Error
	if errors.As(err, &fiberErr) {
		return c.Status(fiberErr.Code).JSON(models.ErrorResponse{Error: fiberErr.Message})
	}
	middleware.Logger.ErrorContext(c.UserContext(), "unhandled error",
		slog.String("path", c.Path()), slog.String("error", err.Error()))
	return models.RespondWithError(c, fiber.StatusInternalServerError, models.NewInternalError(err))
}

// SetupMiddleware configures middleware for the Fiber app
func (s *Server) SetupMiddleware(app *fiber.App) {
	// Panic recovery
	app.Use(recover.New())

	// Request ID for tracing
	app.Use(requestid.New())

	// Context Middleware to propagate Request ID and User ID
	app.Use(middleware.ContextMiddleware())

	app.Use(middleware.TracingMiddleware())

	// Prometheus Metrics
	if s.promMiddleware != nil {
		app.Use(middleware.MetricsMiddleware(s.promMiddleware))
	}

	// Security headers. Previews are framed by the frontend.
	app.Use(helmet.New(helmet.Config{
		XFrameOptions:             "SAMEORIGIN",
		CrossOriginEmbedderPolicy: "unsafe-none",
	}))

	// Structured Logging middleware (after requestid and context middleware)
	app.Use(middleware.StructuredLogger())

	// CORS middleware should run before middlewares that can short-circuit (e.g. limiter)
	// so browser clients still receive CORS headers on error responses.
	origins := s.config.AllowedOrigins
	if origins == "" {
		origins = defaultOrigins
	}

	app.Use(cors.New(cors.Config{
		AllowOrigins:     origins,
		AllowHeaders:     "Origin, Content-Type, Accept, Authorization, Upgrade, Connection, Sec-WebSocket-Key, Sec-WebSocket-Version",
		AllowCredentials: true,
		MaxAge:           86400, // 24 hours
	}))

	// Global rate limiting (100 requests per minute per IP)
	app.Use(limiter.New(limiter.Config{
		Max:        100,
		Expiration: 1 * time.Minute,
		// Never rate-limit preflight requests; they should be handled by CORS.
		Next: func(c *fiber.Ctx) bool {
			return c.Method() == fiber.MethodOptions
		},
		KeyGenerator: func(c *fiber.Ctx) string {
			return c.IP()
		},
		LimitReached: func(c *fiber.Ctx) error {
			return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{
				"error": "Too many requests, please try again later.",
			})
		},
	}))
}

// SetupRoutes configures all routes for the application
func (s *Server) SetupRoutes(app *fiber.App) {
	api := app.Group("/api")

	// Health checks
	app.Get("/health/live", s.LivenessCheck)
	app.Get("/health/ready", s.ReadinessCheck)
	api.Get("/health", s.HealthCheck)

	// Metrics endpoint for Prometheus
	if s.promMiddleware != nil {
		s.promMiddleware.RegisterAt(app, "/metrics")
	}
	api.Get("/metrics/dashboard", monitor.New(monitor.Config{
		Title: "Project-0 Metrics Dashboard",
	}))

	// Swagger documentation
	api.Get("/swagger/*", swagger.HandlerDefault)

	// Generated artefacts
	app.Get("/preview/:id", s.AuthRequired(), s.PreviewMVP)
	app.Get("/uploads/avatars/:name", s.ServeAvatar)

	// Auth routes
	auth := api.Group("/auth")
	auth.Post("/register", middleware.RateLimit(
		s.redis, 3, 10*time.Minute, "register"), s.Register)
	auth.Post("/login", middleware.RateLimit(
		s.redis, 10, 5*time.Minute, "login"), s.Login)
	auth.Post("/logout", s.Logout)
	auth.Get("/me", s.AuthRequired(), s.Me)

	// WebSocket ticket issuance
	api.Post("/ws/ticket", s.AuthRequired(), s.IssueWSTicket)
	// Websocket endpoint: upgrade check first so plain GETs never burn a ticket
	api.Get("/ws", requireUpgrade, s.AuthRequired(), s.WebsocketHandler())

	// Protected routes
	protected := api.Group("", s.AuthRequired())

	protected.Post("/upload", s.Upload)

	// Streaming endpoints
	protected.Post("/generate", middleware.RateLimit(
		s.redis, 10, time.Minute, "generate"), s.Generate)
	protected.Post("/chat", middleware.RateLimit(
		s.redis, 30, time.Minute, "chat"), s.Chat)
	protected.Post("/analyze", middleware.RateLimit(
		s.redis, 10, time.Minute, "analyze"), s.Analyze)

	// Records
	protected.Get("/mvps", s.ListMVPs)
	protected.Get("/mvp/:id", s.GetMVP)
	protected.Get("/download/:id", s.DownloadMVP)
	protected.Get("/analyses", s.ListAnalyses)
	// Define specific /:id/:resource routes BEFORE generic /:id route
	protected.Get("/analysis/:id/download", s.DownloadAnalysis)
	protected.Get("/analysis/:id", s.GetAnalysis)

	// User routes
	users := protected.Group("/users")
	users.Get("/me", s.GetMyProfile)
	users.Put("/me", s.UpdateMyProfile)
	users.Post("/me/avatar", middleware.RateLimit(
		s.redis, 10, 10*time.Minute, "avatar"), s.UploadAvatar)
	users.Post("/me/resume", middleware.RateLimit(
		s.redis, 10, 10*time.Minute, "resume"), s.UploadResume)
	users.Get("/me/resume", s.DownloadResume)
	users.Delete("/me/resume", s.DeleteResume)

	// Credits
	protected.Post("/credits/request", middleware.RateLimit(
		s.redis, 5, time.Hour, "credit_request"), s.RequestCredits)

	// Admin routes
	admin := protected.Group("/admin", s.AdminRequired())
	admin.Get("/analytics", s.GetAdminAnalytics)
	admin.Get("/feature-flags", s.GetFeatureFlags)
	admin.Get("/users", s.GetAllUsers)
	admin.Post("/users/:id/promote-admin", s.PromoteToAdmin)
	admin.Post("/users/:id/demote-admin", s.DemoteFromAdmin)
	creditRequests := admin.Group("/credit-requests")
	creditRequests.Get("/", s.GetCreditRequests)
	creditRequests.Post("/:id/approve", s.ApproveCreditRequest)
	creditRequests.Post("/:id/reject", s.RejectCreditRequest)
}

// HealthCheck handles GET /api/health
// @Summary Service health
// @Description Reports the configured model and record totals
// @Tags health
// @Produce json
// @Success 200 {object} object{status=string,timestamp=string,model=string,total_mvps=int,total_analyses=int}
// @Failure 500 {object} models.ErrorResponse
// @Router /health [get]
func (s *Server) HealthCheck(c *fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(c.UserContext(), 5*time.Second)
	defer cancel()

	var totals service.Totals
	err := cache.Aside(ctx, cache.StatsKey, &totals, cache.StatsTTL, func() error {
		t, err := s.creditService.Totals(ctx)
		if err != nil {
			return err
		}
		totals = *t
		return nil
	})
	if err != nil {
		return models.RespondWithError(c, mapServiceError(err), err)
	}

	return c.JSON(fiber.Map{
		"status":         "healthy",
		"timestamp":      time.Now().UTC(),
		"model":          s.config.OllamaChatModel,
		"analysis_model": s.config.OllamaAnalysisModel,
		"total_mvps":     totals.MVPs,
		"total_analyses": totals.Analyses,
	})
}

// LivenessCheck handles liveness probe requests
func (s *Server) LivenessCheck(c *fiber.Ctx) error {
	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"status": "up",
		"time":   time.Now(),
	})
}

// ReadinessCheck handles readiness probe requests
func (s *Server) ReadinessCheck(c *fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(c.UserContext(), 5*time.Second)
	defer cancel()

	dbStatus := "healthy"
	sqlDB, err := s.db.DB()
	if err != nil {
		dbStatus = "unhealthy"
	} else if err := sqlDB.PingContext(ctx); err != nil {
		dbStatus = "unhealthy"
	}

	// Redis is optional: without it the service runs without realtime features.
	redisStatus := "unavailable"
	if s.redis != nil {
		redisStatus = "healthy"
		if err := s.redis.Ping(ctx).Err(); err != nil {
			redisStatus = "unhealthy"
		}
	}

	status := fiber.StatusOK
	overallStatus := "healthy"
	if dbStatus == "unhealthy" || redisStatus == "unhealthy" {
		status = fiber.StatusServiceUnavailable
		overallStatus = "unhealthy"
	}

	return c.Status(status).JSON(fiber.Map{
		"status": overallStatus,
		"checks": fiber.Map{
			"database": dbStatus,
			"redis":    redisStatus,
		},
		"time": time.Now(),
	})
}

// AdminRequired returns middleware that rejects non-admin users with 403.
// Must be placed after AuthRequired so that userID is available in locals.
func (s *Server) AdminRequired() fiber.Handler {
	return func(c *fiber.Ctx) error {
		userID := c.Locals("userID").(uint)

		admin, err := s.userService.IsAdmin(c.UserContext(), userID)
		if err != nil {
			return models.RespondWithError(c, mapServiceError(err), err)
		}
		if !admin {
			return models.RespondWithError(c, fiber.StatusForbidden,
				models.NewForbiddenError("Admin access required"))
		}

		return c.Next()
	}
}

// AuthRequired returns the authentication middleware. It accepts, in order, a
// single-use WebSocket ticket, a bearer JWT and the session cookie.
func (s *Server) AuthRequired() fiber.Handler {
	return func(c *fiber.Ctx) error {
		ctx := c.UserContext()
		isWSPath := strings.HasPrefix(c.Path(), "/api/ws")

		// 1. WebSocket ticket (short-lived, single-use)
		if ticket := c.Query("ticket"); ticket != "" {
			userID, err := s.authService.RedeemWSTicket(ctx, ticket)
			if err == nil {
				return authenticated(c, userID)
			}
			if isWSPath {
				return models.RespondWithError(c, fiber.StatusUnauthorized, err)
			}
		}

		// 2. Bearer token
		if token := middleware.BearerToken(c); token != "" {
			claims, err := s.authService.ValidateAccessToken(ctx, token)
			if err != nil {
				return models.RespondWithError(c, fiber.StatusUnauthorized, err)
			}
			return authenticated(c, claims.UserID)
		}

		// 3. Session cookie. Not accepted for socket upgrades, which must use a ticket.
		if raw := c.Cookies(sessionCookie); raw != "" && !isWSPath {
			user, err := s.authService.SessionUser(ctx, raw)
			if err != nil {
				return models.RespondWithError(c, mapServiceError(err), err)
			}
			return authenticated(c, user.ID)
		}

		return models.RespondWithError(c, fiber.StatusUnauthorized,
			models.NewUnauthorizedError("Authorization required"))
	}
}

func authenticated(c *fiber.Ctx, userID uint) error {
	c.Locals("userID", userID)
	// Sync to UserContext for logging and downstream services
	c.SetUserContext(context.WithValue(c.UserContext(), middleware.UserIDKey, userID))
	return c.Next()
}

// Start starts the server
func (s *Server) Start() error {
	ctx, cancel := context.WithCancel(context.Background())
	s.shutdownCtx = ctx
	s.shutdownFn = cancel

	s.app = s.NewApp()
	s.startRealtime(ctx)
	go s.purgeSessions(ctx)

	middleware.Logger.Info("server starting", slog.String("port", s.config.Port))
	return s.app.Listen(":" + s.config.Port)
}

// startRealtime wires the hub to the Redis subscriber if available.
func (s *Server) startRealtime(ctx context.Context) {
	if s.notifier == nil {
		return
	}
	go func() {
		if err := s.hub.StartWiring(ctx, s.notifier); err != nil {
			middleware.Logger.Error("failed to start hub wiring",
				slog.String("hub", s.hub.Name()), slog.String("error", err.Error()))
		}
	}()
}

// purgeSessions removes expired sessions once an hour.
func (s *Server) purgeSessions(ctx context.Context) {
	ticker := time.NewTicker(time.Hour)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := s.authService.PurgeExpiredSessions(ctx)
			if err != nil {
				middleware.Logger.Warn("session purge failed", slog.String("error", err.Error()))
				continue
			}
			if n > 0 {
				middleware.Logger.Info("expired sessions purged", slog.Int64("count", n))
			}
		}
	}
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	// Cancel the server-scoped context to stop all wiring goroutines
	if s.shutdownFn != nil {
		s.shutdownFn()
	}

	// Shutdown the HTTP/WS server
	if s.app != nil {
		if err := s.app.ShutdownWithContext(ctx); err != nil {
			middleware.Logger.Error("error shutting down HTTP server", slog.String("error", err.Error()))
		}
	}

	// Close WebSocket connections gracefully
	if err := s.hub.Shutdown(ctx); err != nil {
		middleware.Logger.Error("error shutting down hub", slog.String("error", err.Error()))
	}

	// Close database connection
	if sqlDB, err := s.db.DB(); err == nil {
		if cerr := sqlDB.Close(); cerr != nil {
			middleware.Logger.Error("error closing sql DB", slog.String("error", cerr.Error()))
		}
	}

	// Close Redis connection
	if s.redis != nil {
		if rerr := s.redis.Close(); rerr != nil {
			middleware.Logger.Error("error closing redis", slog.String("error", rerr.Error()))
		}
	}

	middleware.Logger.Info("server shutdown complete")
	return nil
}
