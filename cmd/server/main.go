package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/feichai0017/pdf-toolkit/api/handlers"
	"github.com/feichai0017/pdf-toolkit/api/routes"
	"github.com/feichai0017/pdf-toolkit/config"
	"github.com/feichai0017/pdf-toolkit/internal/service/document"
	"github.com/feichai0017/pdf-toolkit/pkg/logger"
)

func main() {
	cfg, err := config.GetServerConfig()
	if err != nil {
		panic(err)
	}

	// init logger
	log, err := logger.NewLogger(
		logger.WithLevel(cfg.LogLevel),
		logger.WithEncoding(cfg.LogEncoding),
		logger.WithOutputPaths(outputPaths(cfg.LogFile)),
		logger.WithInitialFields(map[string]interface{}{"service": "pdf-toolkit"}),
	)
	if err != nil {
		panic(err)
	}
	defer log.Sync()

	// init document service
	docService, err := document.GetService(log, cfg)
	if err != nil {
		log.Fatal("Failed to get document service", logger.Error(err))
	}
	defer docService.Close()

	// init handlers
	h, err := handlers.NewHandlers(docService, cfg.BaseURL, log)
	if err != nil {
		log.Fatal("Failed to create handlers", logger.Error(err))
	}

	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery())
	r.MaxMultipartMemory = 8 << 20
	routes.SetupRoutes(r, h, log, routes.Options{MaxUploadBytes: cfg.MaxUploadBytes()})

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	// start server
	go func() {
		log.Info("Server starting",
			logger.String("addr", cfg.Addr),
			logger.String("storage", cfg.Storage),
			logger.Bool("async", cfg.Async),
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("Server error", logger.Error(err))
		}
	}()

	// wait for interrupt signal to gracefully shut down the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("Shutting down server...")

	// graceful shutdown
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("Server forced to shutdown", logger.Error(err))
	}
}

func outputPaths(logFile string) []string {
	if logFile == "" {
		return []string{"stdout"}
	}
	return []string{"stdout", logFile}
}
