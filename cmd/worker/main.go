package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/feichai0017/pdf-toolkit/config"
	"github.com/feichai0017/pdf-toolkit/internal/service/document"
	"github.com/feichai0017/pdf-toolkit/pkg/logger"
	"github.com/feichai0017/pdf-toolkit/pkg/worker"
)

func main() {
	cfg, err := config.GetServerConfig()
	if err != nil {
		panic(err)
	}
	// worker 总是需要队列
	cfg.Async = true

	// 初始化日志
	log, err := logger.NewLogger(
		logger.WithLevel(cfg.LogLevel),
		logger.WithEncoding(cfg.LogEncoding),
		logger.WithOutputPaths([]string{"stdout", "logs/worker.log"}),
		logger.WithInitialFields(map[string]interface{}{"service": "pdf-toolkit-worker"}),
	)
	if err != nil {
		panic(err)
	}
	defer log.Sync()

	// 创建文档服务
	docService, err := document.GetService(log, cfg)
	if err != nil {
		log.Error("Failed to create document service", logger.Error(err))
		os.Exit(1)
	}
	defer docService.Close()

	// 创建 worker
	conversionWorker, err := worker.NewConversionWorker(
		worker.NewConfig(config.GetRedisConfig(), cfg.Retention),
		docService,
		log.Named("worker"),
	)
	if err != nil {
		log.Error("Failed to create conversion worker", logger.Error(err))
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// 启动 worker
	if err := conversionWorker.Start(ctx); err != nil {
		log.Error("Failed to start worker", logger.Error(err))
		os.Exit(1)
	}
	log.Info("Worker started",
		logger.String("storage", cfg.Storage),
		logger.Duration("retention", cfg.Retention),
	)

	// 等待中断信号
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	// 优雅关闭
	log.Info("Shutting down worker...")
	conversionWorker.Stop()
}
