package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"polyhedge/internal/capability/llm"
	"polyhedge/internal/client/embedding"
	polymarketgamma "polyhedge/internal/client/polymarket/gamma"
	"polyhedge/internal/config"
	cronrunner "polyhedge/internal/cron"
	"polyhedge/internal/db"
	"polyhedge/internal/filter"
	"polyhedge/internal/handler"
	"polyhedge/internal/index"
	"polyhedge/internal/logger"
	"polyhedge/internal/portfolio"
	gormrepository "polyhedge/internal/repository/gorm"
	"polyhedge/internal/risk"
	"polyhedge/internal/service"
)

func main() {
	cfgPath := os.Getenv("PH_CONFIG")
	if cfgPath == "" {
		cfgPath = "config/config.yaml"
	}

	envOnly := false
	if envOnlyRaw := os.Getenv("PH_ENV_ONLY"); envOnlyRaw != "" {
		envOnly = strings.EqualFold(envOnlyRaw, "true") || envOnlyRaw == "1"
	}

	cfg, err := config.Load(cfgPath, envOnly)
	if err != nil {
		panic(err)
	}

	logger, err := logger.New(cfg.Log)
	if err != nil {
		panic(err)
	}
	defer logger.Sync()

	dbConn, err := db.Open(cfg.DB)
	if err != nil {
		logger.Fatal("db open failed", zap.Error(err))
	}
	defer db.Close(dbConn)

	if err := db.AutoMigrate(dbConn); err != nil {
		logger.Fatal("auto-migrate failed", zap.Error(err))
	}

	gammaHTTP := &http.Client{Timeout: cfg.Gamma.Timeout}
	gammaClient := polymarketgamma.NewClient(gammaHTTP, cfg.Gamma.BaseURL, cfg.Gamma.RequestsPerSec, cfg.Gamma.MaxRetryWait)
	embeddingHTTP := &http.Client{Timeout: cfg.Embedding.Timeout}
	embedder := embedding.NewClient(embeddingHTTP, cfg.Embedding.BaseURL, cfg.Embedding.APIKey, cfg.Embedding.Model)
	llmHTTP := &http.Client{Timeout: cfg.LLM.Timeout}
	llmClient := llm.NewClient(llmHTTP, cfg.LLM.BaseURL, cfg.LLM.APIKey, cfg.LLM.Model, cfg.LLM.MaxTokens, logger)

	store := gormrepository.New(dbConn.Gorm)
	similarityIndex := index.New(store, embedder, logger, cfg.Index.BatchSize)

	syncService := service.NewMarketSyncService(gammaClient, store, similarityIndex, logger, cfg.Sync)
	retrievalService := service.NewRetrievalService(similarityIndex, store, logger, cfg.Retrieval)
	batchFilter := filter.New(llmClient, logger)
	builder := portfolio.NewBuilder(llmClient, logger, cfg.Hedge.MaxMarketsInBundle)
	metricsEngine := risk.NewEngine(cfg.Metrics, logger)
	hedgeService := service.NewHedgeService(retrievalService, batchFilter, builder, metricsEngine, logger, cfg.Filter, cfg.Hedge)

	if strings.EqualFold(cfg.App.Env, "dev") {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}
	engine := gin.New()
	engine.Use(gin.Recovery())
	engine.Use(corsMiddleware())

	healthHandler := &handler.HealthHandler{DB: dbConn}
	healthHandler.Register(engine)
	hedgeHandler := &handler.HedgeHandler{Hedge: hedgeService, Logger: logger}
	hedgeHandler.Register(engine)
	marketsHandler := &handler.MarketsHandler{Retrieval: retrievalService, Logger: logger}
	marketsHandler.Register(engine)
	adminHandler := &handler.AdminHandler{
		Sync:   syncService,
		Repo:   store,
		Index:  similarityIndex,
		Logger: logger,
	}
	adminHandler.Register(engine)

	srv := &http.Server{
		Addr:    cfg.Server.HTTPAddr,
		Handler: engine,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cronRunner := cronrunner.New(logger, ctx)
	if cfg.Cron.Enabled {
		_, err := cronRunner.Add(cfg.Cron.MarketSync, func(ctx context.Context) {
			result, err := syncService.Sync(ctx, nil)
			if err != nil {
				logger.Warn("cron market sync failed", zap.Error(err))
				return
			}
			logger.Info("cron market sync ok",
				zap.Int("markets", result.MarketsFetched),
				zap.Int("events", result.EventsFetched),
				zap.Int("cached", result.Cached),
				zap.Int("indexed", result.Indexed),
			)
		})
		if err != nil {
			logger.Warn("cron register market sync failed", zap.Error(err))
		}
	}
	cronRunner.Start()
	defer cronRunner.Stop()

	errCh := make(chan error, 1)
	go func() {
		logger.Info("http server starting", zap.String("addr", cfg.Server.HTTPAddr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		logger.Info("shutdown requested")
	case err := <-errCh:
		logger.Error("server error", zap.Error(err))
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = srv.Shutdown(shutdownCtx)
}

func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "GET,POST,PUT,DELETE,OPTIONS")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type,Authorization")
		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(204)
			return
		}
		c.Next()
	}
}
