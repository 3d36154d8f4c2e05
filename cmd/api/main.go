package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "nfaportal/api/swagger" // swagger docs
	"nfaportal/internal/catalog"
	"nfaportal/internal/client"
	"nfaportal/internal/config"
	"nfaportal/internal/database"
	"nfaportal/internal/handler"
	"nfaportal/internal/logger"
	"nfaportal/internal/middleware"
	"nfaportal/internal/repository"
	"nfaportal/internal/service"
	"nfaportal/internal/session"
	"nfaportal/internal/store"
	"nfaportal/internal/websocket"
	"nfaportal/internal/workflow"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
)

const version = "1.0.0"

// @title           NFA Portal API
// @version         1.0
// @description     Portal for raising and reviewing NFA approval requests in front of the NFA backend.
// @host            localhost:8080
// @BasePath        /
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
func main() {
	cfg, envLoaded, err := config.Load("configs/.env")

	log := logger.New(logger.Config{
		Level:       cfg.LogLevel,
		Environment: cfg.Environment,
		ServiceName: "nfa-portal",
		Version:     version,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}
	if !envLoaded {
		log.Debug().Msg("No configs/.env file found, using process environment")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	db, err := database.NewConnection(cfg.Database.DSN())
	if err != nil {
		log.Fatal().Err(err).Msg("Database connection failed")
	}
	log.Info().Str("host", cfg.Database.Host).Str("database", cfg.Database.Name).Msg("Connected to PostgreSQL")

	cat, err := catalog.Load(cfg.CatalogFile)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load catalog")
	}

	upstream, err := client.New(client.Config{
		BaseURL: cfg.UpstreamBaseURL,
		Timeout: cfg.UpstreamTimeout,
	}, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create upstream client")
	}

	sealer, err := session.NewSealer(cfg.SessionSecret)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create session sealer")
	}

	// Set up WebSocket Hub
	wsHub := websocket.NewHub(cfg.CORSOrigins, log)
	go wsHub.Run(ctx)

	// Set up dependencies (Repository -> Service -> Handler)
	sessionRepo := repository.NewSessionRepository(db)
	auditRepo := repository.NewAuditRepository(db)
	txManager := repository.NewTransactionManager(db)

	sessions := session.NewManager(upstream, sessionRepo, sealer, session.Config{
		Interval:     cfg.RevalidateInterval,
		InitialDelay: cfg.RevalidateDelay,
	}, log)
	registry := store.NewRegistry(upstream, log)
	engine := workflow.NewEngine(upstream, log)

	auditService := service.NewAuditService(auditRepo, log)
	requestService := service.NewRequestService(upstream, engine, registry, cat, auditService, wsHub, log)
	approvalService := service.NewApprovalService(registry, upstream)
	statisticsService := service.NewStatisticsService(registry, upstream)
	userService := service.NewUserService(sessions, upstream, registry, txManager, auditService, wsHub, log)

	sessions.OnExpire(userService.HandleExpired)
	go sessions.Run(ctx)

	cookies := middleware.CookieOptions{Secure: cfg.SecureCookies}
	requireSession := middleware.RequireSession(sessions, cookies)

	// Initialize Handlers
	userHandler := handler.NewUserHandler(userService, requireSession, cookies, log)
	requestHandler := handler.NewRequestHandler(requestService, requireSession, log)
	approvalHandler := handler.NewApprovalHandler(approvalService, requireSession, log)
	catalogHandler := handler.NewCatalogHandler(cat, requireSession)
	auditHandler := handler.NewAuditHandler(auditService, requireSession, log)
	statisticsHandler := handler.NewStatisticsHandler(statisticsService, requireSession, log)

	// Set up Gin Router
	gin.SetMode(cfg.GinMode)
	router := gin.New()
	router.Use(middleware.RequestID(), logger.GinLogger(log), logger.GinRecovery(log))

	// CORS configuration
	corsConfig := cors.DefaultConfig()
	corsConfig.AllowOrigins = cfg.CORSOrigins
	corsConfig.AllowCredentials = true
	corsConfig.AllowHeaders = []string{"Origin", "Content-Length", "Content-Type", "Authorization", "Accept", "X-Request-ID"}
	corsConfig.AllowMethods = []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"}
	corsConfig.ExposeHeaders = []string{"Content-Disposition", "X-Request-ID"}
	router.Use(cors.New(corsConfig))

	// Swagger route
	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	// Health check
	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":     "OK",
			"sessions":   len(sessions.Active()),
			"websockets": wsHub.Connected(),
		})
	})

	// WebSocket endpoint
	router.GET("/ws", func(c *gin.Context) {
		websocket.ServeWs(wsHub, sessions, c)
	})

	// API Routing
	userHandler.RegisterRoutes(router.Group(""))
	requestHandler.RegisterRoutes(router.Group(""))
	approvalHandler.RegisterRoutes(router.Group(""))
	catalogHandler.RegisterRoutes(router.Group(""))
	auditHandler.RegisterRoutes(router.Group(""))
	statisticsHandler.RegisterRoutes(router.Group(""))

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Info().Str("port", cfg.Port).Str("upstream", upstream.BaseURL()).Msg("Server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("Server failed")
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down server...")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server shutdown failed")
	}
	log.Info().Msg("Server stopped")
}
