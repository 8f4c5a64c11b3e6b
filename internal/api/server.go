package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"flowtechs/internal/api/handlers"
	"flowtechs/internal/api/middleware"
	"flowtechs/internal/auth"
	"flowtechs/internal/config"
	"flowtechs/internal/database"
	"flowtechs/internal/logger"
	"flowtechs/internal/metrics"
	"flowtechs/internal/realtime"
	"flowtechs/internal/repository"
	"flowtechs/internal/services/shopify"
	"flowtechs/internal/services/sources"

	"github.com/gin-gonic/gin"
)

// Dependencies are built once in main and handed to the server.
type Dependencies struct {
	DB              *database.Database
	Sources         *sources.Service
	OAuth           *shopify.OAuthService
	Destinations    *repository.DestinationRepository
	Transformations *repository.TransformationRepository
	Auth            *auth.Authenticator
	Feed            realtime.Feed
	Metrics         *metrics.Metrics
}

type Server struct {
	config *config.Config
	logger *logger.Logger
	db     *database.Database
	router *gin.Engine
	server *http.Server
}

func New(cfg *config.Config, logger *logger.Logger, deps Dependencies) *Server {
	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()

	router.Use(middleware.Logger(logger))
	router.Use(middleware.Recovery(logger))
	router.Use(middleware.CORS(cfg.CORSAllowedOrigins))

	backoff := realtime.Backoff{
		Initial:     cfg.RealtimeInitialBackoff,
		Max:         cfg.RealtimeMaxBackoff,
		Factor:      2,
		Jitter:      0.2,
		MaxAttempts: cfg.RealtimeMaxAttempts,
	}

	shopifyHandler := handlers.NewShopifyHandler(deps.Sources, deps.OAuth, cfg, logger, deps.Metrics)
	sourceHandler := handlers.NewSourceHandler(deps.Sources, deps.Feed, backoff, logger, deps.Metrics)
	destinationHandler := handlers.NewDestinationHandler(deps.Destinations, logger)
	transformationHandler := handlers.NewTransformationHandler(deps.Transformations, deps.Sources, deps.Destinations, logger)
	devHandler := handlers.NewDevHandler(cfg)
	authHandler := handlers.NewAuthHandler(deps.Auth, cfg, logger)

	s := &Server{
		config: cfg,
		logger: logger,
		db:     deps.DB,
		router: router,
	}

	router.GET("/health", s.health)
	router.GET("/metrics", gin.WrapH(deps.Metrics.Handler()))

	apiGroup := router.Group("/api")
	{
		// Shopify OAuth. The callback resolves the session itself so that a
		// missing one becomes a redirect, not a 401.
		shopifyGroup := apiGroup.Group("/shopify")
		{
			shopifyGroup.GET("/auth", shopifyHandler.Auth)
			shopifyGroup.GET("/callback", deps.Auth.OptionalAuth(), shopifyHandler.Callback)
		}

		apiGroup.GET("/auth/logout", authHandler.Logout)
		apiGroup.POST("/auth/logout", authHandler.Logout)
		apiGroup.GET("/dev/bypass-auth", devHandler.BypassAuth)

		protected := apiGroup.Group("", deps.Auth.RequireAuth())

		// Sources
		sourcesGroup := protected.Group("/sources")
		{
			sourcesGroup.GET("", sourceHandler.List)
			sourcesGroup.POST("", sourceHandler.Create)
			sourcesGroup.GET("/stream", sourceHandler.Stream)
			sourcesGroup.POST("/shopify/connect", shopifyHandler.Connect)
			sourcesGroup.POST("/shopify/update", shopifyHandler.UpdateCredentials)
			sourcesGroup.GET("/:id", sourceHandler.Get)
			sourcesGroup.PATCH("/:id", sourceHandler.Rename)
			sourcesGroup.DELETE("/:id", sourceHandler.Delete)
		}

		// Destinations
		destinations := protected.Group("/destinations")
		{
			destinations.GET("", destinationHandler.List)
			destinations.POST("", destinationHandler.Create)
			destinations.GET("/available", destinationHandler.Available)
			destinations.GET("/:id", destinationHandler.Get)
			destinations.PUT("/:id", destinationHandler.Update)
			destinations.DELETE("/:id", destinationHandler.Delete)
		}

		// Transformations
		transformations := protected.Group("/transformations")
		{
			transformations.GET("", transformationHandler.List)
			transformations.POST("", transformationHandler.Create)
			transformations.GET("/functions", transformationHandler.Functions)
			transformations.POST("/validate", transformationHandler.Validate)
			transformations.GET("/:id", transformationHandler.Get)
			transformations.PUT("/:id", transformationHandler.Update)
			transformations.DELETE("/:id", transformationHandler.Delete)
		}
	}

	return s
}

func (s *Server) health(c *gin.Context) {
	sqlDB, err := s.db.DB.DB()
	if err == nil {
		err = sqlDB.PingContext(c.Request.Context())
	}
	if err != nil {
		s.logger.Error("Health check failed: %v", err)
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unhealthy", "database": "unreachable"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "healthy", "time": time.Now().UTC().Format(time.RFC3339)})
}

func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%s", s.config.APIHost, s.config.APIPort)

	// No WriteTimeout: /api/sources/stream holds the response open.
	s.server = &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	s.logger.Info("Starting server on " + addr)
	return s.server.ListenAndServe()
}

func (s *Server) Stop(ctx context.Context) error {
	s.logger.Info("Shutting down server...")
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

// Handler exposes the router for tests and embedding.
func (s *Server) Handler() http.Handler {
	return s.router
}
