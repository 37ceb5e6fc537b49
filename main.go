package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	gmw "github.com/Laisky/gin-middlewares/v6"
	glog "github.com/Laisky/go-utils/v5/log"
	"github.com/Laisky/zap"
	"github.com/gin-gonic/gin"
	_ "github.com/joho/godotenv/autoload"

	"github.com/makehub/llm-gateway/common"
	"github.com/makehub/llm-gateway/common/config"
	"github.com/makehub/llm-gateway/common/graceful"
	"github.com/makehub/llm-gateway/common/logger"
	"github.com/makehub/llm-gateway/controller"
	"github.com/makehub/llm-gateway/family"
	"github.com/makehub/llm-gateway/model"
	"github.com/makehub/llm-gateway/registry"
	rcontroller "github.com/makehub/llm-gateway/relay/controller"
	"github.com/makehub/llm-gateway/router"
)

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	common.Init()
	hostname, _ := os.Hostname()
	logger.SetupLogger(hostname)
	logger.Logger.Info("llm-gateway starting", zap.String("version", common.Version))
	logger.StartLogRetentionCleaner(ctx, config.LogRetentionDays, config.LogDir)

	if config.GinMode != "" {
		gin.SetMode(config.GinMode)
	} else if !config.DebugEnabled {
		gin.SetMode(gin.ReleaseMode)
	}

	model.InitDB()
	defer func() {
		if err := model.CloseDB(); err != nil {
			logger.Logger.Error("failed to close database", zap.Error(err))
		}
	}()

	if err := common.InitRedisClient(); err != nil {
		logger.Logger.Fatal("failed to initialize Redis", zap.Error(err))
	}

	if err := registry.Default.Refresh(); err != nil {
		// An empty registry still serves /health; routing will 400 until the
		// refresher succeeds.
		logger.Logger.Error("initial model registry load failed", zap.Error(err))
	}
	registry.Default.StartRefresher(ctx)

	if config.FamilyConfigPath != "" {
		cfg, err := family.LoadConfig(config.FamilyConfigPath)
		if err != nil {
			logger.Logger.Fatal("failed to load family config",
				zap.String("path", config.FamilyConfigPath), zap.Error(err))
		}
		controller.FamilyRouter = family.NewRouter(cfg, rcontroller.Evaluator{})
		logger.Logger.Info("family routing enabled", zap.Int("families", len(cfg.Families)))
	}

	logLevel := glog.LevelInfo
	if config.DebugEnabled {
		logLevel = glog.LevelDebug
	}
	server := gin.New()
	server.RedirectTrailingSlash = false
	server.Use(
		gin.Recovery(),
		gmw.NewLoggerMiddleware(
			gmw.WithLoggerMwColored(),
			gmw.WithLevel(logLevel.String()),
			gmw.WithLogger(logger.Logger.Named("gin")),
		),
	)
	router.SetRouter(server)

	addr := config.Host + ":" + config.Port
	httpServer := &http.Server{
		Addr:    addr,
		Handler: server,
	}

	go func() {
		logger.Logger.Info("server started", zap.String("address", addr))
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Logger.Fatal("failed to start HTTP server", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Logger.Info("shutdown signal received, draining")
	graceful.SetDraining()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(),
		time.Duration(config.ShutdownTimeout)*time.Second)
	defer shutdownCancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Logger.Error("http server shutdown failed", zap.Error(err))
	}
	// Billing and metrics writes queued by in-flight requests must land before
	// the process exits.
	if err := graceful.Drain(shutdownCtx); err != nil {
		logger.Logger.Error("drain incomplete", zap.Error(err))
	}
	cancel()
	logger.Logger.Info("shutdown complete")
}
