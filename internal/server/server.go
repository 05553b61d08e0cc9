// Package server contains HTTP and WebSocket handlers for the application's API endpoints.
package server

import (
	"context"
	"fmt"
	"strings"
	"time"

	_ "eventsocial/docs" // swagger docs
	"eventsocial/internal/bootstrap"
	"eventsocial/internal/config"
	"eventsocial/internal/mailer"
	"eventsocial/internal/middleware"
	"eventsocial/internal/models"
	"eventsocial/internal/notifications"
	"eventsocial/internal/repository"
	"eventsocial/internal/service"
	"eventsocial/internal/storage"

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

const legacyTokenHeader = "x-auth-token"

var _ service.Realtime = (*notifications.Hub)(nil)

// Server holds all dependencies and provides handlers
type Server struct {
	config      *config.Config
	db          *gorm.DB
	redis       *redis.Client
	app         *fiber.App
	shutdownCtx context.Context
	shutdownFn  context.CancelFunc

	hub     *notifications.Hub
	sweeper *service.OTPSweeper

	authService         *service.AuthService
	userService         *service.UserService
	postService         *service.PostService
	commentService      *service.CommentService
	notificationService *service.NotificationService
	chatService         *service.ChatService
}

// NewServer connects to the database, Redis and object storage and builds a
// server on top of them.
func NewServer(cfg *config.Config) (*Server, error) {
	db, rdb, err := bootstrap.InitRuntime(cfg)
	if err != nil {
		return nil, err
	}

	store, err := storage.New(context.Background(), cfg)
	if err != nil {
		return nil, fmt.Errorf("storage init failed: %w", err)
	}

	return NewServerWithDeps(cfg, db, rdb, store, mailer.New(cfg))
}

// NewServerWithDeps creates a Server using already-initialized dependencies.
// Tests use it with sqlite, miniredis (or a nil client) and a local store.
func NewServerWithDeps(
	cfg *config.Config,
	db *gorm.DB,
	redisClient *redis.Client,
	store storage.Store,
	m mailer.Mailer,
) (*Server, error) {
	userRepo := repository.NewUserRepository(db)
	postRepo := repository.NewPostRepository(db)
	commentRepo := repository.NewCommentRepository(db)
	notificationRepo := repository.NewNotificationRepository(db)
	chatRepo := repository.NewChatRepository(db)

	hub := notifications.NewHub(notifications.NewNotifier(redisClient))
	media := service.NewMediaService(store, cfg)
	notificationService := service.NewNotificationService(notificationRepo, hub)

	s := &Server{
		config:              cfg,
		db:                  db,
		redis:               redisClient,
		hub:                 hub,
		sweeper:             service.NewOTPSweeper(userRepo, cfg.OTPSweepCron),
		authService:         service.NewAuthService(userRepo, m, cfg),
		userService:         service.NewUserService(userRepo, media, notificationService),
		postService:         service.NewPostService(postRepo, userRepo, media),
		commentService:      service.NewCommentService(commentRepo, postRepo, notificationService),
		notificationService: notificationService,
		chatService:         service.NewChatService(chatRepo, postRepo, media, hub),
	}
	return s, nil
}

// NewApp builds a fiber app with middleware and routes installed.
func (s *Server) NewApp() *fiber.App {
	app := fiber.New(fiber.Config{
		AppName:   "eventsocial API",
		BodyLimit: s.bodyLimit(),
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			if fe, ok := err.(*fiber.Error); ok {
				return c.Status(fe.Code).JSON(models.ErrorResponse{Error: fe.Message})
			}
			middleware.Ctx(c.UserContext()).Error().Err(err).Msg("unhandled error")
			return models.RespondWithError(c, fiber.StatusInternalServerError,
				models.NewInternalError(err))
		},
	})

	s.SetupMiddleware(app)
	s.SetupRoutes(app)
	return app
}

// bodyLimit fits a full multipart post: MaxPostMedia files of the largest allowed size.
func (s *Server) bodyLimit() int {
	largest := s.config.MaxVideoMB
	if s.config.MaxImageMB > largest {
		largest = s.config.MaxImageMB
	}
	if largest <= 0 {
		largest = service.DefaultMaxVideoMB
	}
	return (largest*service.MaxPostMedia + 1) * 1024 * 1024
}

// SetupMiddleware configures middleware for the Fiber app
func (s *Server) SetupMiddleware(app *fiber.App) {
	app.Use(recover.New(recover.Config{EnableStackTrace: !s.config.IsProduction()}))
	app.Use(requestid.New())

	// Tracing runs before ContextMiddleware so the trace id reaches the logger.
	app.Use(middleware.TracingMiddleware())
	app.Use(middleware.ContextMiddleware())
	app.Use(middleware.MetricsMiddleware())

	app.Use(helmet.New(helmet.Config{
		// Uploaded media is embedded by other origins.
		CrossOriginResourcePolicy: "cross-origin",
	}))

	app.Use(middleware.StructuredLogger())

	// CORS runs before middlewares that can short-circuit (e.g. limiter) so
	// browser clients still receive CORS headers on error responses.
	origins := s.config.AllowedOrigins
	if origins == "" {
		origins = "http://localhost:5173,http://localhost:3000,http://127.0.0.1:5173"
	}
	app.Use(cors.New(cors.Config{
		AllowOrigins:     origins,
		AllowHeaders:     "Origin, Content-Type, Accept, Authorization, X-Auth-Token, Upgrade, Connection, Sec-WebSocket-Key, Sec-WebSocket-Version",
		AllowCredentials: origins != "*",
		MaxAge:           86400,
	}))

	// Global rate limiting (100 requests per minute per IP)
	app.Use(limiter.New(limiter.Config{
		Max:        100,
		Expiration: 1 * time.Minute,
		Next: func(c *fiber.Ctx) bool {
			if c.Method() == fiber.MethodOptions {
				return true
			}
			return s.config.Env == "test"
		},
		KeyGenerator: func(c *fiber.Ctx) string {
			return c.IP()
		},
		LimitReached: func(c *fiber.Ctx) error {
			return c.Status(fiber.StatusTooManyRequests).JSON(models.ErrorResponse{
				Error: "Too many requests, please try again later.",
			})
		},
	}))
}

// SetupRoutes configures all routes for the application
func (s *Server) SetupRoutes(app *fiber.App) {
	app.Get("/health/live", s.LivenessCheck)
	app.Get("/health/ready", s.ReadinessCheck)
	app.Get("/health", s.ReadinessCheck)

	middleware.InitMetrics(app, "eventsocial-api", "/metrics")

	if s.config.StorageDriver == "" || s.config.StorageDriver == "local" {
		app.Static("/media", s.config.MediaDir, fiber.Static{MaxAge: 86400})
	}

	api := app.Group("/api")
	api.Get("/metrics/dashboard", monitor.New(monitor.Config{
		Title: "eventsocial Metrics Dashboard",
	}))
	api.Get("/swagger/*", swagger.HandlerDefault)

	// Websocket endpoint authenticates inside the handshake.
	api.Get("/ws", s.WebsocketUpgrade(), s.WebsocketHandler())

	// Auth routes
	auth := api.Group("/auth")
	auth.Post("/register", middleware.RateLimit(
		s.redis, 5, 10*time.Minute, "register"), s.RequestRegistration)
	auth.Post("/verify", middleware.RateLimit(
		s.redis, 10, 10*time.Minute, "verify"), s.ConfirmRegistration)
	auth.Post("/login", middleware.RateLimit(
		s.redis, 10, 5*time.Minute, "login"), s.Login)
	auth.Get("/", s.AuthRequired(), s.GetMe)

	protected := api.Group("", s.AuthRequired())

	// User routes; specific /:userId/:resource routes before generic /:userId
	users := protected.Group("/users")
	users.Get("/:userId/posts", s.GetUserPosts)
	users.Get("/:userId/followers", s.GetFollowers)
	users.Get("/:userId/following", s.GetFollowing)
	users.Post("/:userId/follow", s.FollowUser)
	users.Post("/:userId/unfollow", s.UnfollowUser)
	users.Get("/:userId", s.GetUserProfile)
	users.Put("/:userId", s.UpdateUserProfile)

	// Post routes; static paths before /:postId
	posts := protected.Group("/posts")
	posts.Post("/", middleware.RateLimit(
		s.redis, 10, 5*time.Minute, "create_post"), s.CreatePost)
	posts.Get("/", s.GetPosts)
	posts.Get("/feed", s.GetFeed)
	posts.Get("/my/interested", s.GetInterestedPosts)
	posts.Get("/my/attended", s.GetAttendedPosts)
	posts.Put("/:postId/interest", s.ToggleInterest)
	posts.Post("/:postId/attend", s.MarkAttendance)
	posts.Put("/:postId/attendance", s.ToggleAttendance)
	posts.Post("/:postId/join-interest-group", s.JoinChat)
	posts.Post("/:postId/comments", middleware.RateLimit(
		s.redis, 20, time.Minute, "create_comment"), s.CreateComment)
	posts.Get("/:postId/comments", s.GetComments)
	posts.Get("/:postId", s.GetPost)
	posts.Put("/:postId", s.UpdatePost)
	posts.Delete("/:postId", s.DeletePost)

	// Chat routes
	chat := protected.Group("/chat")
	chat.Get("/", s.GetChats)
	chat.Get("/post/:postId", s.GetChatByPost)
	chat.Post("/join/:postId", s.JoinChat)
	chat.Get("/:chatId/messages", s.GetMessages)
	chat.Post("/:chatId/read", s.MarkChatRead)
	chat.Post("/:chatId/media", middleware.RateLimit(
		s.redis, 30, time.Minute, "chat_media"), s.UploadChatMedia)

	// Notification routes
	notes := protected.Group("/notifications")
	notes.Get("/", s.GetNotifications)
	notes.Get("/unread-count", s.GetUnreadCount)
	notes.Put("/read-all", s.MarkAllNotificationsRead)
	notes.Put("/:notificationId/read", s.MarkNotificationRead)
	notes.Delete("/:notificationId", s.DeleteNotification)
}

// LivenessCheck handles liveness probe requests
func (s *Server) LivenessCheck(c *fiber.Ctx) error {
	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"status": "up",
		"time":   time.Now().UTC(),
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

	// Without redis the app still serves, with local-only realtime delivery.
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
		"connections": s.hub.ConnectionCount(),
		"time":        time.Now().UTC(),
	})
}

// AuthRequired accepts a session token from the Authorization bearer header
// or the legacy x-auth-token header.
func (s *Server) AuthRequired() fiber.Handler {
	return func(c *fiber.Ctx) error {
		tokenString := bearerToken(c.Get(fiber.HeaderAuthorization))
		if tokenString == "" {
			tokenString = strings.TrimSpace(c.Get(legacyTokenHeader))
		}

		userID, err := s.authService.ParseToken(tokenString)
		if err != nil {
			return respondError(c, err)
		}

		c.Locals("userID", userID)
		ctx := context.WithValue(c.UserContext(), middleware.UserIDKey, userID)
		c.SetUserContext(ctx)

		return c.Next()
	}
}

func bearerToken(header string) string {
	parts := strings.SplitN(strings.TrimSpace(header), " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}

// Start starts the server
func (s *Server) Start() error {
	ctx, cancel := context.WithCancel(context.Background())
	s.shutdownCtx = ctx
	s.shutdownFn = cancel

	s.app = s.NewApp()

	if err := s.hub.StartWiring(s.shutdownCtx); err != nil {
		middleware.Logger.Warn().Err(err).Msg("gateway redis wiring failed, delivering locally")
	}
	if err := s.sweeper.Start(); err != nil {
		return fmt.Errorf("start otp sweeper: %w", err)
	}

	middleware.Logger.Info().Str("port", s.config.Port).Msg("Server starting")
	return s.app.Listen(":" + s.config.Port)
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	if s.shutdownFn != nil {
		s.shutdownFn()
	}
	s.sweeper.Stop()

	if s.app != nil {
		if err := s.app.ShutdownWithContext(ctx); err != nil {
			middleware.Logger.Error().Err(err).Msg("error shutting down HTTP server")
		}
	}

	if err := s.hub.Shutdown(ctx); err != nil {
		middleware.Logger.Error().Err(err).Msg("error shutting down gateway")
	}

	if sqlDB, err := s.db.DB(); err == nil {
		if cerr := sqlDB.Close(); cerr != nil {
			middleware.Logger.Error().Err(cerr).Msg("error closing sql DB")
		}
	}

	if s.redis != nil {
		if rerr := s.redis.Close(); rerr != nil {
			middleware.Logger.Error().Err(rerr).Msg("error closing redis")
		}
	}

	middleware.Logger.Info().Msg("Server shutdown complete")
	return nil
}
