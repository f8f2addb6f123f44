package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/followread/backend/internal/api"
	"github.com/followread/backend/internal/auth"
	"github.com/followread/backend/internal/cache"
	"github.com/followread/backend/internal/config"
	"github.com/followread/backend/internal/db"
	"github.com/followread/backend/internal/download"
	"github.com/followread/backend/internal/health"
	"github.com/followread/backend/internal/logger"
	"github.com/followread/backend/internal/metrics"
	"github.com/followread/backend/internal/middleware"
	"github.com/followread/backend/internal/news"
	"github.com/followread/backend/internal/storage"
	"github.com/followread/backend/internal/validators"
	"github.com/followread/backend/internal/video"
	"github.com/followread/backend/internal/websocket"
	"github.com/followread/backend/internal/ytdlp"
)

func main() {
	cfg := config.Load()

	log := logger.New(os.Stdout, logger.ParseLevel(cfg.LogLevel), "server")
	logger.SetDefault(log)
	ctx := context.Background()

	database, err := db.New(cfg.DBHost, cfg.DBPort, cfg.DBUser, cfg.DBPassword, cfg.DBName)
	if err != nil {
		log.Error(ctx, "failed to connect to database", err)
		os.Exit(1)
	}
	defer database.Close()

	if err := database.Migrate(); err != nil {
		log.Error(ctx, "failed to run migrations", err)
		os.Exit(1)
	}

	// redis backs only the news cache, so the server runs without it
	redisCache, err := cache.New(cfg.RedisAddr)
	if err != nil {
		log.Warn(ctx, "redis unavailable, news cache disabled", map[string]interface{}{
			"addr":  cfg.RedisAddr,
			"error": err.Error(),
		})
		redisCache = nil
	} else {
		defer redisCache.Close()
	}

	invoker, err := ytdlp.New(&ytdlp.Config{
		BinPath:     cfg.YtdlpPath,
		SubtitleDir: cfg.SubtitleDir,
		DownloadDir: cfg.DownloadDir,
		CookieDir:   cfg.CookieDir,
	})
	if err != nil {
		log.Error(ctx, "extraction tool unavailable", err)
		os.Exit(1)
	}

	userRepo := db.NewUserRepository(database)
	tokenRepo := db.NewTokenRepository(database)
	videoRepo := db.NewVideoRepository(database)
	segmentRepo := db.NewSegmentRepository(database)
	sentenceRepo := db.NewSentenceRepository(database)
	taskRepo := db.NewTaskRepository(database)
	noteRepo := db.NewNoteRepository(database)
	assetRepo := db.NewAssetRepository(database)

	authService := auth.NewService(userRepo, tokenRepo, cfg.JWTSecret)

	// prune spent refresh tokens so the table stays bounded
	go func() {
		ticker := time.NewTicker(12 * time.Hour)
		defer ticker.Stop()
		for range ticker.C {
			if n, err := tokenRepo.DeleteExpired(ctx); err != nil {
				log.Warn(ctx, "refresh token cleanup failed", map[string]interface{}{
					"error": err.Error(),
				})
			} else if n > 0 {
				log.Info(ctx, "pruned refresh tokens", map[string]interface{}{
					"deleted": n,
				})
			}
		}
	}()
	videoService := video.NewService(videoRepo, segmentRepo, sentenceRepo, invoker, cfg.SubtitleDir)

	hub := websocket.NewHub()
	go hub.Run()

	permits := download.NewPermitPool(cfg.DownloadPermits)
	downloadService := download.NewService(taskRepo, videoRepo, invoker, hub, permits)

	if cfg.ArchiveEnabled {
		archiver, err := storage.New(&storage.Config{
			Endpoint:  cfg.MinioEndpoint,
			AccessKey: cfg.MinioAccessKey,
			SecretKey: cfg.MinioSecretKey,
			Bucket:    cfg.MinioBucket,
			Region:    cfg.MinioRegion,
			UseSSL:    cfg.MinioUseSSL,
		})
		if err != nil {
			log.Error(ctx, "archive storage unavailable", err)
			os.Exit(1)
		}
		if err := archiver.EnsureBucket(ctx); err != nil {
			log.Error(ctx, "failed to prepare archive bucket", err)
			os.Exit(1)
		}
		downloadService.SetArchiver(archiver)
	}

	var newsCache news.Cacher
	if redisCache != nil {
		newsCache = redisCache
	}
	newsService := news.NewService(cfg.NewsAPIKey, cfg.NewsAPIURL, newsCache)

	healthCfg := &health.CheckerConfig{
		DB:        database.DB,
		YtdlpPath: cfg.YtdlpPath,
		Version:   "1.0.0",
	}
	if redisCache != nil {
		healthCfg.Redis = redisCache.Client()
	}
	healthHandler := health.NewHandler(health.NewChecker(healthCfg))

	appMetrics := metrics.Default()

	registry := validators.DefaultRegistry()

	router := api.NewRouter(api.RouterConfig{
		AuthService:      authService,
		AuthHandlers:     api.NewAuthHandlers(authService),
		VideoHandlers:    api.NewVideoHandlers(videoService, registry),
		DownloadHandlers: api.NewDownloadHandlers(downloadService, videoService, invoker, registry),
		NoteHandlers:     api.NewNoteHandlers(noteRepo),
		AssetHandlers:    api.NewAssetHandlers(assetRepo, cfg.USDToCNYRate),
		NewsHandlers:     api.NewNewsHandlers(newsService),
		WSHandler:        websocket.NewHandler(hub, authService),
		HealthHandler:    healthHandler,
		Metrics:          appMetrics,
	})

	handler := middleware.Chain(router,
		middleware.RequestID,
		logger.LoggingMiddleware,
		logger.RecoveryMiddleware,
		metrics.Middleware(appMetrics),
		middleware.CORS([]string{"*"}),
	)

	server := &http.Server{
		Addr:    cfg.ServerAddr,
		Handler: handler,
	}

	go func() {
		log.Info(ctx, "server listening", map[string]interface{}{
			"addr":    cfg.ServerAddr,
			"permits": cfg.DownloadPermits,
		})
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error(ctx, "server failed", err)
			os.Exit(1)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop

	log.Info(ctx, "shutting down")
	shutdownCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error(ctx, "shutdown failed", err)
	}
}
