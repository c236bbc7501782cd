package main

import (
	"context"
	"net/http"
	"os/signal"
	"syscall"

	"github.com/Laisky/zap"
	"github.com/gin-gonic/gin"
	_ "github.com/joho/godotenv/autoload"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/often-ai/gateway/common"
	"github.com/often-ai/gateway/common/config"
	"github.com/often-ai/gateway/common/graceful"
	"github.com/often-ai/gateway/common/logger"
	"github.com/often-ai/gateway/middleware"
	"github.com/often-ai/gateway/model"
	"github.com/often-ai/gateway/router"
)

func main() {
	logger.Logger.Info("often gateway started", zap.String("version", common.Version))

	if config.GinMode != gin.DebugMode {
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
	defer common.CloseRedisClient()

	server := gin.New()
	server.RedirectTrailingSlash = false
	server.Use(
		middleware.PanicRecover(),
		middleware.RequestId(),
		graceful.GinRequestTracker(),
	)

	if config.EnablePrometheusMetrics {
		server.GET("/metrics", middleware.AdminAuth(), gin.WrapH(promhttp.Handler()))
		logger.Logger.Info("Prometheus metrics endpoint available at /metrics")
	}

	router.SetRouter(server)

	port := config.ServerPort
	if port == "" {
		port = "8080"
	}

	httpServer := &http.Server{
		Addr:    ":" + port,
		Handler: server,
	}

	go func() {
		logger.Logger.Info("server listening", zap.String("address", "http://localhost:"+port))
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Logger.Fatal("failed to start HTTP server", zap.Error(err))
		}
	}()

	signalCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	<-signalCtx.Done()
	stop()

	// Stop accepting work, then wait out in-flight completions. A relay call
	// can legitimately run for the full upstream timeout.
	graceful.SetDraining()
	logger.Logger.Info("shutdown signal received, draining")

	drainCtx, cancel := context.WithTimeout(context.Background(), config.ShutdownTimeout)
	defer cancel()
	if err := httpServer.Shutdown(drainCtx); err != nil {
		logger.Logger.Error("http server shutdown", zap.Error(err))
	}
	if err := graceful.Drain(drainCtx); err != nil {
		logger.Logger.Error("drain incomplete", zap.Error(err))
	}
	logger.Logger.Info("often gateway stopped")
}
