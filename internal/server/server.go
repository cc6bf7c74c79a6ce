// Package server contains HTTP and WebSocket handlers for the application's API endpoints.
package server

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	_ "dreambook/docs" // swagger docs
	"dreambook/internal/botcache"
	"dreambook/internal/config"
	"dreambook/internal/featureflags"
	"dreambook/internal/mail"
	"dreambook/internal/middleware"
	"dreambook/internal/models"
	"dreambook/internal/notifications"
	"dreambook/internal/observability"
	"dreambook/internal/ratelimit"
	"dreambook/internal/repository"
	"dreambook/internal/service"

	"github.com/ansrivas/fiberprometheus/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/helmet"
	"github.com/gofiber/fiber/v2/middleware/monitor"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/gofiber/swagger"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

// Deps are the already-initialized collaborators a Server runs on.
// DB may be nil for route inspection; Redis, Limiter and Mailer may be nil.
type Deps struct {
	DB      *gorm.DB
	Redis   *redis.Client
	Limiter ratelimit.Limiter
	Mailer  mail.Mailer
}

// Server holds all dependencies and provides handlers
type Server struct {
	config         *config.Config
	db             *gorm.DB
	redis          *redis.Client
	app            *fiber.App
	promMiddleware *fiberprometheus.FiberPrometheus
	shutdownCtx    context.Context
	shutdownFn     context.CancelFunc

	limiter      ratelimit.Limiter
	ownsLimiter  bool
	botCache     *botcache.Cache
	notifier     *notifications.Notifier
	hub          *notifications.FeedHub
	featureFlags *featureflags.Manager

	botService        *service.BotService
	dreamService      *service.DreamService
	voteService       *service.VoteService
	commentService    *service.CommentService
	requestService    *service.RequestService
	feedbackService   *service.FeedbackService
	moderationService *service.ModerationService
	statsService      *service.StatsService
	authService       *service.AuthService
	profileService    *service.ProfileService
}

// newDefaultLimiter builds the limiter used when Deps.Limiter is nil.
var newDefaultLimiter = func() ratelimit.Limiter { return ratelimit.NewMemoryLimiter() }

// NewServer creates a server instance from initialized dependencies.
func NewServer(cfg *config.Config, deps Deps) (*Server, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is required")
	}
	limiter := deps.Limiter
	ownsLimiter := limiter == nil
	if ownsLimiter {
		limiter = newDefaultLimiter()
	}

	botRepo := repository.NewBotRepository(deps.DB)
	dreamRepo := repository.NewDreamRepository(deps.DB)
	commentRepo := repository.NewCommentRepository(deps.DB)
	requestRepo := repository.NewRequestRepository(deps.DB)
	feedbackRepo := repository.NewFeedbackRepository(deps.DB)
	userRepo := repository.NewUserRepository(deps.DB)
	activityRepo := repository.NewActivityRepository(deps.DB)
	moderationRepo := repository.NewModerationRepository(deps.DB)
	tagRepo := repository.NewTagRepository(deps.DB)
	statsRepo := repository.NewStatsRepository(deps.DB)

	s := &Server{
		config:         cfg,
		db:             deps.DB,
		redis:          deps.Redis,
		promMiddleware: middleware.InitMetrics("dreambook-api"),
		limiter:        limiter,
		ownsLimiter:    ownsLimiter,
		notifier:       notifications.NewNotifier(deps.Redis),
		hub:            notifications.NewFeedHub(0),
		featureFlags:   featureflags.NewManager(cfg.FeatureFlags),
	}
	s.botCache = botcache.New(botRepo, botcache.WithObserver(func(result string) {
		observability.BotCacheLookups.WithLabelValues(result).Inc()
	}))

	s.botService = service.NewBotService(botRepo, dreamRepo, deps.Mailer, s.botCache.Invalidate, service.BotServiceOptions{
		SiteURL:               cfg.BaseURL,
		EmailFrom:             cfg.EmailFrom,
		OwnerEmail:            cfg.OwnerEmail,
		ExposeVerificationURL: !cfg.IsProduction(),
	})
	s.dreamService = service.NewDreamService(dreamRepo, s.notifier, deps.Redis)
	s.voteService = service.NewVoteService(deps.DB, s.notifier)
	s.commentService = service.NewCommentService(commentRepo, dreamRepo)
	s.requestService = service.NewRequestService(requestRepo)
	s.feedbackService = service.NewFeedbackService(feedbackRepo, cfg.LightningLNURL)
	s.moderationService = service.NewModerationService(moderationRepo, tagRepo, deps.Redis)
	s.statsService = service.NewStatsService(statsRepo, deps.Redis, cfg.StatsTTL())
	s.authService = service.NewAuthService(userRepo, cfg.JWTSecret, deps.Redis)
	s.profileService = service.NewProfileService(userRepo, activityRepo)

	return s, nil
}

// App builds the Fiber application with middleware and routes.
func (s *Server) App() *fiber.App {
	if s.app != nil {
		return s.app
	}
	app := fiber.New(middleware.TrustProxies(fiber.Config{
		AppName:      "Dreambook API",
		BodyLimit:    1 * 1024 * 1024,
		ErrorHandler: s.errorHandler,
	}, s.config.ProxyHeader, s.config.TrustedProxyList()))
	s.SetupMiddleware(app)
	s.SetupRoutes(app)
	s.app = app
	return app
}

// errorHandler renders errors that escape handlers, including fiber's own 404/405.
func (s *Server) errorHandler(c *fiber.Ctx, err error) error {
	if fe, ok := err.(*fiber.Error); ok {
		return models.RespondWithError(c, fe.Code, &models.AppError{Code: codeForStatus(fe.Code), Message: fe.Message})
	}
	return s.respondError(c, err)
}

// SetupMiddleware configures middleware for the Fiber app
func (s *Server) SetupMiddleware(app *fiber.App) {
	// Panic recovery
	app.Use(recover.New())

	// Request ID for tracing
	app.Use(requestid.New())

	app.Use(middleware.TracingMiddleware())

	// Context Middleware to propagate Request ID and trace ID
	app.Use(middleware.ContextMiddleware())

	if s.promMiddleware != nil {
		app.Use(middleware.MetricsMiddleware(s.promMiddleware))
	}

	// Security headers
	app.Use(helmet.New())

	app.Use(middleware.StructuredLogger())

	// CORS runs before anything that can short-circuit so error responses carry the headers.
	origins := s.config.AllowedOrigins
	if origins == "" {
		origins = "http://localhost:3000,http://127.0.0.1:3000"
	}
	app.Use(cors.New(cors.Config{
		AllowOrigins:     origins,
		AllowHeaders:     "Origin, Content-Type, Accept, Authorization, X-Admin-Secret, Upgrade, Connection, Sec-WebSocket-Key, Sec-WebSocket-Version",
		AllowMethods:     "GET,POST,PATCH,OPTIONS",
		AllowCredentials: origins != "*",
		ExposeHeaders:    "Retry-After, X-Trace-ID",
		MaxAge:           86400,
	}))
}

// SetupRoutes configures all routes for the application
func (s *Server) SetupRoutes(app *fiber.App) {
	app.Get("/health/live", s.LivenessCheck)
	app.Get("/health/ready", s.ReadinessCheck)
	app.Get("/health", s.ReadinessCheck)

	if s.promMiddleware != nil {
		s.promMiddleware.RegisterAt(app, "/metrics")
	}

	api := app.Group("/api", s.Identify())
	api.Get("/metrics/dashboard", monitor.New(monitor.Config{Title: "Dreambook Metrics Dashboard"}))
	api.Get("/swagger/*", swagger.HandlerDefault)

	byActor := func(p ratelimit.Policy) fiber.Handler {
		return middleware.RateLimit(s.limiter, p, middleware.ByActor)
	}
	byIP := func(p ratelimit.Policy) fiber.Handler {
		return middleware.RateLimit(s.limiter, p, middleware.ByIP)
	}
	claimedBot := s.ClaimedBotRequired()

	bots := api.Group("/bots")
	bots.Post("/register", byIP(ratelimit.Register), s.RegisterBot)
	bots.Post("/claim", byIP(ratelimit.Claim), s.ClaimBot)
	bots.Post("/claim/verify", byIP(ratelimit.Verify), s.VerifyClaim)
	bots.Get("/claim/verify", byIP(ratelimit.Verify), s.VerifyClaim)
	bots.Get("/me", s.BotRequired(), s.GetMyBot)
	bots.Get("/:id", s.GetBotProfile)

	dreams := api.Group("/dreams")
	dreams.Get("/", s.GetDreams)
	dreams.Post("/", claimedBot, s.CreateDream)
	// Specific /:id/:action routes before the generic /:id route
	dreams.Post("/:id/vote", s.ActorRequired("Authentication required to vote"), byActor(ratelimit.Vote), s.VoteDream)
	dreams.Post("/:id/share", claimedBot, byActor(ratelimit.DreamShared), s.ShareDream)
	dreams.Get("/:id", s.GetDream)

	comments := api.Group("/comments")
	comments.Get("/", s.GetComments)
	comments.Post("/", s.ActorRequired("Authentication required to comment"), byActor(ratelimit.Comment), s.CreateComment)

	requests := api.Group("/requests")
	requests.Get("/", s.GetRequests)
	requests.Post("/", claimedBot, byActor(ratelimit.Request), s.CreateRequest)
	requests.Post("/:id/respond", s.ActorRequired("Authentication required to respond"), byActor(ratelimit.Respond), s.RespondToRequest)
	requests.Patch("/:id", claimedBot, s.UpdateRequestStatus)
	requests.Get("/:id", s.GetRequest)

	api.Post("/feedback", claimedBot, byActor(ratelimit.Feedback), s.SubmitFeedback)

	donate := api.Group("/donate", s.FlagRequired(featureflags.Donations))
	donate.Get("/", s.GetDonationInfo)
	donate.Post("/", claimedBot, byActor(ratelimit.Donate), s.Donate)

	api.Get("/stats", s.GetStats)
	api.Get("/patterns", s.GetPatterns)

	auth := api.Group("/auth")
	auth.Post("/signup", byIP(ratelimit.Signup), s.Signup)
	auth.Post("/login", byIP(ratelimit.Login), s.Login)
	auth.Post("/logout", s.Logout)
	auth.Get("/session", s.GetSession)

	profile := api.Group("/profile", s.HumanRequired())
	profile.Get("/", s.GetProfile)
	profile.Patch("/", s.UpdateProfile)
	profile.Get("/activity", s.GetProfileActivity)

	api.Get("/ws/feed", s.FlagRequired(featureflags.LiveFeed), s.FeedUpgrade, s.FeedWebsocketHandler())

	admin := api.Group("/admin", s.AdminRequired())
	admin.Post("/moderate", s.Moderate)
	admin.Get("/flagged", s.GetFlagged)
	admin.Get("/feedback", s.GetAdminFeedback)
	admin.Get("/donations", s.GetAdminDonations)
	admin.Get("/bots", s.GetAdminBots)
	admin.Post("/bots", s.AdminCreateBot)
	admin.Post("/tags/prune", s.PruneTags)
	admin.Post("/tags/recount", s.RecountTags)
	admin.Get("/feature-flags", s.GetFeatureFlags)
}

// LivenessCheck handles liveness probe requests
func (s *Server) LivenessCheck(c *fiber.Ctx) error {
	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"status": "up",
		"time":   time.Now(),
	})
}

// ReadinessCheck reports the store and Redis. Redis is optional, so only the
// store decides readiness.
func (s *Server) ReadinessCheck(c *fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(c.UserContext(), 5*time.Second)
	defer cancel()

	dbStatus := "healthy"
	if s.db == nil {
		dbStatus = "unavailable"
	} else if sqlDB, err := s.db.DB(); err != nil {
		dbStatus = "unhealthy"
	} else if err := sqlDB.PingContext(ctx); err != nil {
		dbStatus = "unhealthy"
	}

	redisStatus := "disabled"
	if s.redis != nil {
		redisStatus = "healthy"
		if err := s.redis.Ping(ctx).Err(); err != nil {
			redisStatus = "unhealthy"
		}
	}

	status := fiber.StatusOK
	overall := "healthy"
	if dbStatus != "healthy" {
		status = fiber.StatusServiceUnavailable
		overall = "unhealthy"
	}

	return c.Status(status).JSON(fiber.Map{
		"status": overall,
		"checks": fiber.Map{
			"database": dbStatus,
			"redis":    redisStatus,
		},
		"time": time.Now(),
	})
}

// Start wires the live feed and listens until the app is shut down.
func (s *Server) Start() error {
	ctx, cancel := context.WithCancel(context.Background())
	s.shutdownCtx = ctx
	s.shutdownFn = cancel

	app := s.App()
	if err := s.hub.StartWiring(s.shutdownCtx, s.notifier); err != nil {
		middleware.Logger.Warn("failed to start feed wiring", slog.String("hub", s.hub.Name()), slog.String("error", err.Error()))
	}

	middleware.Logger.Info("server starting", slog.String("port", s.config.Port))
	return app.Listen(":" + s.config.Port)
}

// Shutdown gracefully shuts down the server. The store, Redis and a
// caller-supplied limiter are left open; a limiter NewServer created is closed.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.shutdownFn != nil {
		s.shutdownFn()
	}

	if s.app != nil {
		if err := s.app.ShutdownWithContext(ctx); err != nil {
			middleware.Logger.Warn("error shutting down HTTP server", slog.String("error", err.Error()))
		}
	}

	if err := s.hub.Shutdown(ctx); err != nil {
		middleware.Logger.Warn("error shutting down hub", slog.String("hub", s.hub.Name()), slog.String("error", err.Error()))
	}

	if err := s.botCache.Close(); err != nil {
		middleware.Logger.Warn("error closing bot cache", slog.String("error", err.Error()))
	}

	if s.ownsLimiter {
		if err := s.limiter.Close(); err != nil {
			middleware.Logger.Warn("error closing rate limiter", slog.String("error", err.Error()))
		}
	}

	middleware.Logger.Info("server shutdown complete")
	return nil
}
