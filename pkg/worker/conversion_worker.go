package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/hibiken/asynq"

	"github.com/feichai0017/pdf-toolkit/internal/models"
	"github.com/feichai0017/pdf-toolkit/pkg/logger"
	"github.com/feichai0017/pdf-toolkit/pkg/queue"
)

// JobHandler runs conversion tasks and expires old artifacts.
type JobHandler interface {
	HandleJob(ctx context.Context, task *queue.Task) error
	CleanupArtifacts(ctx context.Context, threshold time.Time) error
}

type ConversionWorker struct {
	BaseWorker
	jobs      JobHandler
	retention time.Duration
}

func NewConversionWorker(cfg *Config, jobs JobHandler, log logger.Logger) (*ConversionWorker, error) {
	server := asynq.NewServer(
		cfg.RedisOpt,
		asynq.Config{
			Concurrency: cfg.Concurrency,
			Queues:      cfg.Queues,
			Logger:      asynqLogger{logger: log.Named("asynq")},
			RetryDelayFunc: func(n int, err error, task *asynq.Task) time.Duration {
				return time.Duration(n) * time.Minute
			},
		},
	)

	w := &ConversionWorker{
		BaseWorker: BaseWorker{
			server: server,
			mux:    asynq.NewServeMux(),
			logger: log,
		},
		jobs:      jobs,
		retention: cfg.Retention,
	}

	if cfg.Retention > 0 {
		w.scheduler = asynq.NewScheduler(cfg.RedisOpt, &asynq.SchedulerOpts{
			Logger: asynqLogger{logger: log.Named("scheduler")},
		})
		spec := fmt.Sprintf("@every %s", cleanupInterval(cfg.Retention))
		if _, err := w.scheduler.Register(spec, asynq.NewTask(queue.TaskTypeCleanup, nil),
			asynq.Queue(queue.QueueLow),
			asynq.MaxRetry(0),
		); err != nil {
			return nil, fmt.Errorf("failed to register cleanup: %w", err)
		}
	}

	// 注册任务处理器
	w.registerHandlers()
	return w, nil
}

func (w *ConversionWorker) registerHandlers() {
	w.mux.HandleFunc(queue.TaskTypeConversion, w.handleConversion)
	w.mux.HandleFunc(queue.TaskTypeCleanup, w.handleCleanup)
}

func (w *ConversionWorker) handleConversion(ctx context.Context, t *asynq.Task) error {
	var task queue.Task
	if err := json.Unmarshal(t.Payload(), &task); err != nil {
		w.logger.Error("Failed to unmarshal task",
			logger.Error(err),
			logger.String("payload", string(t.Payload())),
		)
		return fmt.Errorf("failed to unmarshal task: %v: %w", err, asynq.SkipRetry)
	}

	w.logger.Info("Processing conversion task",
		logger.String("taskId", task.ID),
		logger.String("operation", string(task.Job.Operation)),
		logger.Int("inputs", len(task.InputKeys)),
	)

	if err := w.jobs.HandleJob(ctx, &task); err != nil {
		if permanent(err) {
			return fmt.Errorf("%w: %w", err, asynq.SkipRetry)
		}
		return err
	}

	if rw := t.ResultWriter(); rw != nil {
		if _, err := rw.Write([]byte(`{"status":"completed","progress":1}`)); err != nil {
			w.logger.Warn("Failed to write task result", logger.Error(err))
		}
	}
	return nil
}

func (w *ConversionWorker) handleCleanup(ctx context.Context, t *asynq.Task) error {
	if w.retention <= 0 {
		return nil
	}
	threshold := time.Now().Add(-w.retention)
	if err := w.jobs.CleanupArtifacts(ctx, threshold); err != nil {
		w.logger.Error("Cleanup failed", logger.Error(err))
		return err
	}
	return nil
}

// permanent errors come from the request itself; retrying cannot fix them.
func permanent(err error) bool {
	return errors.Is(err, models.ErrInvalidPageRange) ||
		errors.Is(err, models.ErrUnsupportedFile) ||
		errors.Is(err, models.ErrNoInput) ||
		errors.Is(err, models.ErrUnknownOperation)
}

// cleanupInterval runs cleanup four times per retention period, between
// once a minute and once an hour.
func cleanupInterval(retention time.Duration) time.Duration {
	interval := retention / 4
	if interval < time.Minute {
		return time.Minute
	}
	if interval > time.Hour {
		return time.Hour
	}
	return interval
}

func (w *ConversionWorker) Start(ctx context.Context) error {
	if err := w.server.Start(w.mux); err != nil {
		return fmt.Errorf("failed to start worker server: %w", err)
	}
	if w.scheduler != nil {
		if err := w.scheduler.Start(); err != nil {
			w.server.Shutdown()
			return fmt.Errorf("failed to start cleanup scheduler: %w", err)
		}
		w.logger.Info("Cleanup scheduled",
			logger.Duration("retention", w.retention),
			logger.Duration("interval", cleanupInterval(w.retention)),
		)
	}

	go func() {
		<-ctx.Done()
		w.Stop()
	}()

	return nil
}
