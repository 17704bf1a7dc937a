package api

import (
	"log/slog"
	"strings"

	"github.com/IBM/sarama"
	"github.com/gofiber/adaptor/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cache"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"github.com/gofiber/fiber/v2/middleware/logger"
	jwtware "github.com/gofiber/jwt/v3"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/renderri/server/internal/config"
	"github.com/renderri/server/internal/generation"
	"github.com/renderri/server/internal/store"
	"github.com/renderri/server/pkg/database"
)

type Server struct {
	app         *fiber.App
	cfg         *config.Config
	db          *database.Clients
	svc         *generation.Service
	profiles    *store.ProfileStore
	generations *store.GenerationStore
	logger      *slog.Logger
}

func NewServer(cfg *config.Config, db *database.Clients, producer sarama.SyncProducer, generator generation.ImageGenerator) *Server {
	app := fiber.New()

	// Middleware
	app.Use(logger.New(logger.Config{
		Format: "[${time}] ${ip} ${method} ${path} ${status}\n",
	}))
	app.Use(limiter.New(limiter.Config{
		Max:        cfg.Server.MaxRequests,
		Expiration: cfg.Server.RequestTimeout,
	}))
	app.Use(cache.New(cache.Config{
		Expiration:   cfg.Server.CacheExpiration,
		CacheControl: true,
		Next: func(c *fiber.Ctx) bool {
			// History responses are per-user; keep the cache off the API
			// surface entirely.
			return c.Method() != fiber.MethodGet || strings.HasPrefix(c.Path(), "/api")
		},
	}))

	profiles := store.NewProfileStore(db.DB)
	generations := store.NewGenerationStore(db.DB)
	audit := store.NewRefundAudit(db.Redis)

	server := &Server{
		app:         app,
		cfg:         cfg,
		db:          db,
		svc:         generation.NewService(cfg, profiles, generations, generator, audit, producer),
		profiles:    profiles,
		generations: generations,
		logger:      slog.Default(),
	}

	server.setupRoutes()

	return server
}

func (s *Server) setupRoutes() {
	s.app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	})
	s.app.Get("/metrics", adaptor.HTTPHandler(promhttp.Handler()))

	api := s.app.Group("/api")

	// Public routes
	api.Post("/auth/signup", s.handleSignup)
	api.Post("/auth/login", s.handleLogin)

	// Enhancement is deliberately decoupled from the quota path: no session
	// requirement, no profile access.
	api.Post("/enhance", s.handleEnhance)

	// Privileged route, guarded by the admin service key rather than a
	// user session.
	api.Post("/admin/reset-quotas", s.requireServiceKey, s.handleResetQuotas)

	// Protected routes
	protected := api.Use(jwtware.New(jwtware.Config{
		SigningKey: []byte(s.cfg.JWT.Secret),
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": generation.ErrUnauthenticated.Error(),
			})
		},
	}))
	protected.Post("/generate", s.handleGenerate)
	protected.Get("/history", s.handleListHistory)
	protected.Get("/history/:id", s.handleGetHistory)
}

func (s *Server) Start() error {
	return s.app.Listen(s.cfg.Server.Port)
}

func (s *Server) Shutdown() error {
	return s.app.Shutdown()
}
