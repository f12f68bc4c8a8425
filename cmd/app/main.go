package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	_ "flashsquad-backend/docs"
	"flashsquad-backend/internal/common/cache"
	"flashsquad-backend/internal/common/config"
	"flashsquad-backend/internal/common/logger"
	"flashsquad-backend/internal/common/middleware"
	authhttp "flashsquad-backend/internal/features/auth/delivery/http"
	"flashsquad-backend/internal/features/auth/nonce"
	authService "flashsquad-backend/internal/features/auth/service"
	"flashsquad-backend/internal/features/auth/token"
	"flashsquad-backend/internal/features/holdings"
	mediahttp "flashsquad-backend/internal/features/media/delivery/http"
	mediaRepo "flashsquad-backend/internal/features/media/repository/postgres"
	mediaService "flashsquad-backend/internal/features/media/service"
	posthttp "flashsquad-backend/internal/features/post/delivery/http"
	postRepo "flashsquad-backend/internal/features/post/repository/postgres"
	postService "flashsquad-backend/internal/features/post/service"
	squadhttp "flashsquad-backend/internal/features/squad/delivery/http"
	squadRepo "flashsquad-backend/internal/features/squad/repository/postgres"
	squadService "flashsquad-backend/internal/features/squad/service"
	userhttp "flashsquad-backend/internal/features/user/delivery/http"
	userRepo "flashsquad-backend/internal/features/user/repository/postgres"
	userService "flashsquad-backend/internal/features/user/service"
	"flashsquad-backend/internal/platform/indexer"
	"flashsquad-backend/internal/platform/postgres"
	"flashsquad-backend/internal/platform/redis"
	"flashsquad-backend/internal/platform/storage"
	"flashsquad-backend/internal/workers"
)

const serviceName = "flashsquad-backend"

// @title           FlashSquad API
// @version         1.0
// @description     Backend for FlashSquad: sign in with Ethereum, join squads for the NFTs you hold, post as your persona.

// @host      localhost:8080
// @BasePath  /api/v1

// @securityDefinitions.apikey SessionToken
// @in header
// @name Authorization
// @description "Bearer <token>" issued by /auth/signin. The session cookie is accepted as well.

// @tag.name auth
// @tag.description Sign-In with Ethereum and session management

// @tag.name users
// @tag.description User profiles

// @tag.name squads
// @tag.description Squads derived from wallet holdings

// @tag.name personas
// @tag.description Per-NFT identities inside a squad

// @tag.name posts
// @tag.description Squad feed

// @tag.name media
// @tag.description Uploads, images and transcoding callbacks

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger.Init(serviceName, cfg.Debug)
	logger.Info().Str("version", "1.0.0").Bool("debug", cfg.Debug).Msg("Starting FlashSquad backend")

	domain, err := cfg.Domain()
	if err != nil {
		logger.Fatal().Err(err).Msg("Invalid auth configuration")
	}

	ctx, stop := context.WithCancel(context.Background())
	defer stop()

	// Postgres
	postgresClient, err := postgres.NewClient(cfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to connect to database")
	}
	defer postgresClient.Close()

	if cfg.Postgres.AutoMigrate {
		if err := postgresClient.Migrate(ctx); err != nil {
			logger.Fatal().Err(err).Msg("Failed to migrate database")
		}
	}

	// Redis
	redisClient, err := redis.OpenFromConfig(ctx, cfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to connect to Redis")
	}
	defer redisClient.Close()

	cacheService := cache.NewCacheService(redisClient)

	// Upstreams
	indexerClient := indexer.NewClient(indexer.Options{
		URL:              cfg.Indexer.URL,
		APIKey:           cfg.Indexer.APIKey,
		Timeout:          cfg.Indexer.Timeout,
		MaxRetries:       cfg.Indexer.MaxRetries,
		BaseDelay:        cfg.Indexer.BaseDelay,
		MaxResponseBytes: cfg.Indexer.MaxBytes,
	})
	scanner := holdings.NewScanner(indexerClient, holdings.Options{
		Chains:      cfg.Indexer.Chains,
		PerChain:    cfg.Indexer.PerChain,
		IPFSGateway: cfg.IPFSGateway,
	})

	presigner, err := storage.NewPresigner(ctx, storage.Options{
		Endpoint:      cfg.S3.Endpoint,
		Region:        cfg.S3.Region,
		Bucket:        cfg.S3.Bucket,
		AccessKey:     cfg.S3.AccessKey,
		SecretKey:     cfg.S3.SecretKey,
		PublicBaseURL: cfg.S3.PublicBaseURL,
		PresignTTL:    cfg.S3.PresignTTL,
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to initialize object storage")
	}

	// Repositories
	db := postgresClient.GetDB()
	userRepository := userRepo.NewPostgresRepository(db)
	squadRepository := squadRepo.NewPostgresRepository(db)
	postRepository := postRepo.NewPostgresRepository(db)
	imageRepository := mediaRepo.NewPostgresRepository(db)

	// Services
	ens := userService.NewCachedENSResolver(indexerClient, cacheService, cfg.ENS.CacheTTL)
	userSvc := userService.NewUserService(userRepository, ens, cfg.ENS.AvatarBaseURL)
	squadSvc := squadService.NewSquadService(squadRepository, userRepository, scanner, squadService.Options{
		Networks: cfg.Indexer.Chains,
		PerChain: cfg.Indexer.PerChain,
	})
	postSvc := postService.NewPostService(postRepository, squadRepository, cacheService, cfg.Feed.CacheTTL)
	mediaSvc := mediaService.NewMediaService(imageRepository, presigner, cacheService, mediaService.Options{
		TranscoderSecret: cfg.Transcoder.AuthSecret,
		AssemblyTTL:      cfg.Transcoder.AssemblyTTL,
	})
	if cfg.Transcoder.AuthSecret == "" {
		logger.Warn().Msg("TRANSCODER_AUTH_SECRET is empty, transcoding callbacks will be rejected")
	}

	issuer := token.NewIssuer(cfg.Auth.JWTSecret, cfg.Auth.SessionTTL, cfg.Auth.DefaultRole)
	nonces := nonce.NewStore(redisClient, cfg.Auth.NonceTTL)
	authSvc := authService.NewAuthService(nonces, userSvc, scanner, squadSvc, issuer, authService.Options{
		Domain:      domain,
		FlowTimeout: cfg.Auth.FlowTimeout,
	})

	// Background refresh worker
	refreshQueue := workers.NewRefreshQueue(redisClient)
	if cfg.Worker.Enabled {
		worker := workers.NewRedisStreamWorker(redisClient, squadSvc, workers.WorkerOptions{
			Consumer: cfg.Worker.Consumer,
			Block:    cfg.Worker.Block,
			Timeout:  cfg.Worker.Timeout,
		})
		go worker.Start(ctx)
	}

	// Gin
	if !cfg.Debug {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(middleware.RequestID())
	router.Use(middleware.Logger())
	router.Use(middleware.ErrorHandler())
	router.Use(middleware.HandleErrors())

	corsConfig := cors.DefaultConfig()
	corsConfig.AllowOrigins = []string{cfg.Server.Origin}
	corsConfig.AllowMethods = []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Content-Type", "Authorization", "Accept", "X-Request-ID"}
	corsConfig.AllowCredentials = true
	router.Use(cors.New(corsConfig))

	v1 := router.Group("/api/v1")
	authhttp.NewAuthHandler(authSvc, authhttp.CookieOptions{
		SessionName: cfg.Auth.SessionCookie,
		NonceName:   cfg.Auth.NonceCookie,
		Secure:      cfg.Auth.SecureCookies,
		SessionTTL:  cfg.Auth.SessionTTL,
		NonceTTL:    cfg.Auth.NonceTTL,
	}).RegisterRoutes(v1)

	mediaHandler := mediahttp.NewMediaHandler(mediaSvc)
	mediaHandler.RegisterWebhooks(v1)

	protected := v1.Group("", middleware.RequireSession(issuer, cfg.Auth.SessionCookie))
	userhttp.NewUserHandler(userSvc).RegisterRoutes(protected)
	squadhttp.NewSquadHandler(squadSvc, refreshQueue).RegisterRoutes(protected)
	posthttp.NewPostHandler(postSvc).RegisterRoutes(protected)
	mediaHandler.RegisterRoutes(protected)

	setupProbes(router, postgresClient, redisClient)
	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: cfg.Auth.FlowTimeout + 10*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info().Int("port", cfg.Server.Port).Msg("Starting HTTP server")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("Failed to start server")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info().Msg("Shutting down server...")
	stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("Server forced to shutdown")
	}

	logger.Info().Msg("Server exited")
}

func setupProbes(router *gin.Engine, postgresClient *postgres.Client, redisClient *redis.Client) {
	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":    "ok",
			"timestamp": time.Now().UTC(),
			"service":   serviceName,
		})
	})

	router.GET("/live", func(c *gin.Context) {
		c.Status(http.StatusOK)
	})

	router.GET("/ready", func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()

		if err := postgresClient.HealthCheck(ctx); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"status":  "unready",
				"error":   "postgres unavailable",
				"details": err.Error(),
			})
			return
		}

		if err := redisClient.HealthCheck(ctx); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"status":  "unready",
				"error":   "redis unavailable",
				"details": err.Error(),
			})
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"status":    "ready",
			"timestamp": time.Now().UTC(),
			"service":   serviceName,
		})
	})
}
