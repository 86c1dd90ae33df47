package document

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"mime/multipart"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/feichai0017/pdf-toolkit/config"
	"github.com/feichai0017/pdf-toolkit/internal/agent"
	"github.com/feichai0017/pdf-toolkit/internal/models"
	"github.com/feichai0017/pdf-toolkit/internal/utils/validator"
	"github.com/feichai0017/pdf-toolkit/pkg/logger"
	"github.com/feichai0017/pdf-toolkit/pkg/queue"
	"github.com/feichai0017/pdf-toolkit/pkg/storage"
	"github.com/feichai0017/pdf-toolkit/pkg/storage/local"
)

var (
	// ErrAsyncDisabled is returned by job operations when no queue is configured.
	ErrAsyncDisabled = errors.New("async jobs are disabled")
	// ErrJobFinished is returned when cancelling a job that already ended.
	ErrJobFinished = errors.New("job already finished")
)

type DocumentService struct {
	toolkit   *agent.Toolkit
	validator *validator.DocumentValidator
	queue     queue.Queue
	storage   storage.Storage
	outputs   *local.LocalStorage
	logger    logger.Logger
	config    *ServiceConfig
}

type ServiceConfig struct {
	UploadDir     string
	OutputDir     string
	MaxConcurrent int
	QueuePriority int
	// Archive copies synchronous outputs into storage as well
	Archive bool
}

// NewService wires a service; q may be nil when async jobs are disabled and
// store may be outputs itself for the local backend.
func NewService(
	toolkit *agent.Toolkit,
	validator *validator.DocumentValidator,
	q queue.Queue,
	store storage.Storage,
	outputs *local.LocalStorage,
	log logger.Logger,
	cfg *ServiceConfig,
) *DocumentService {
	if cfg.MaxConcurrent <= 0 {
		cfg.MaxConcurrent = 4
	}
	if store == nil {
		store = outputs
	}

	return &DocumentService{
		toolkit:   toolkit,
		validator: validator,
		queue:     q,
		storage:   store,
		outputs:   outputs,
		logger:    log,
		config:    cfg,
	}
}

// GetService builds the service from the server configuration.
func GetService(log logger.Logger, cfg *config.ServerConfig) (*DocumentService, error) {
	if err := os.MkdirAll(cfg.UploadDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create upload directory: %w", err)
	}

	outputs, err := local.NewLocalStorage(cfg.OutputDir, log.Named("outputs"))
	if err != nil {
		return nil, fmt.Errorf("failed to initialize output directory: %w", err)
	}

	var store storage.Storage = outputs
	if cfg.Storage != config.StorageLocal {
		store, err = storage.NewStorage(storage.StorageType(cfg.Storage), log.Named("storage"), cfg.OutputDir)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize storage: %w", err)
		}
	}

	toolkit, err := agent.NewToolkit(log.Named("toolkit"), &agent.Options{
		RenderDPI:         cfg.RenderDPI,
		MaxImageDimension: cfg.MaxImageDimension,
		MaxWorkers:        cfg.Workers,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize toolkit: %w", err)
	}

	vcfg := validator.DefaultConfig()
	vcfg.MaxFileSize = cfg.MaxUploadBytes()

	var q queue.Queue
	if cfg.Async {
		aq, err := queue.GetQueue()
		if err != nil {
			return nil, fmt.Errorf("failed to initialize queue: %w", err)
		}
		q = aq
	}

	return NewService(toolkit, validator.NewDocumentValidator(log.Named("validator"), toolkit, vcfg), q, store, outputs, log, &ServiceConfig{
		UploadDir:     cfg.UploadDir,
		OutputDir:     cfg.OutputDir,
		MaxConcurrent: cfg.Workers,
		QueuePriority: 2,
		Archive:       cfg.Storage != config.StorageLocal,
	}), nil
}

// AsyncEnabled reports whether job endpoints are backed by a queue.
func (s *DocumentService) AsyncEnabled() bool {
	return s.queue != nil
}

// Convert 同步执行一次操作
func (s *DocumentService) Convert(ctx context.Context, req *ConvertRequest) (*models.Artifact, error) {
	job, err := s.prepare(req)
	if err != nil {
		return nil, err
	}

	log := s.logger.With(
		logger.String("requestId", job.ID),
		logger.String("operation", string(job.Operation)),
	)
	log.Info("Starting conversion", logger.Int("files", len(req.Files)))
	started := time.Now()

	workDir := filepath.Join(s.config.UploadDir, job.ID)
	defer s.removeWorkDir(workDir)

	if job.Inputs, err = s.saveUploads(ctx, job.ID, req.Files, filepath.Join(workDir, "inputs")); err != nil {
		return nil, err
	}

	tmp, err := s.partialPath(job)
	if err != nil {
		return nil, err
	}
	defer os.Remove(tmp)

	pages, err := s.toolkit.Run(ctx, job, workDir, tmp)
	if err != nil {
		log.Warn("Conversion failed", logger.Error(err))
		return nil, err
	}

	out, err := s.publishOutput(job, tmp, time.Now())
	if err != nil {
		return nil, err
	}

	artifact, err := newArtifact(job.Operation, out, pages)
	if err != nil {
		return nil, err
	}
	if s.config.Archive {
		s.archive(ctx, artifact)
	}

	log.Info("Conversion completed",
		logger.String("output", artifact.Name),
		logger.Int("pages", artifact.Pages),
		logger.Int64("size", artifact.Size),
		logger.Duration("elapsed", time.Since(started)),
	)
	return artifact, nil
}

// Inspect 读取上传 PDF 的元数据
func (s *DocumentService) Inspect(ctx context.Context, header *multipart.FileHeader) (*models.DocumentMetadata, error) {
	var files []*multipart.FileHeader
	if header != nil {
		files = append(files, header)
	}
	if err := s.validator.ValidateFiles(files, models.OpPDFInfo); err != nil {
		return nil, err
	}

	id := uuid.NewString()
	workDir := filepath.Join(s.config.UploadDir, id)
	defer s.removeWorkDir(workDir)

	inputs, err := s.saveUploads(ctx, id, files, workDir)
	if err != nil {
		return nil, err
	}

	metadata, err := s.toolkit.Metadata(ctx, inputs[0].Path)
	if err != nil {
		return nil, err
	}
	return &metadata, nil
}

// prepare validates uploads and form values before anything touches disk.
func (s *DocumentService) prepare(req *ConvertRequest) (*models.ConversionJob, error) {
	if _, err := models.ParseOperation(string(req.Operation)); err != nil {
		return nil, err
	}
	if !req.Operation.MultiUpload() && len(req.Files) > 1 {
		req.Files = req.Files[:1]
	}
	if err := s.validator.ValidateFiles(req.Files, req.Operation); err != nil {
		return nil, err
	}

	job := &models.ConversionJob{
		ID:        req.RequestID,
		Operation: req.Operation,
		CreatedAt: time.Now(),
	}
	if job.ID == "" {
		job.ID = uuid.NewString()
	}

	if req.Operation.NeedsRange() {
		rng, err := models.ParsePageRange(req.StartPage, req.EndPage)
		if err != nil {
			return nil, err
		}
		job.Range = &rng
	}
	if req.Operation == models.OpCompressPDF {
		job.Level = models.ParseCompressionLevel(req.Level)
	}
	return job, nil
}

// saveUploads 并发保存上传文件, 保持输入顺序
func (s *DocumentService) saveUploads(ctx context.Context, id string, files []*multipart.FileHeader, dir string) ([]models.UploadedFile, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create upload directory: %w", err)
	}

	uploaded := make([]models.UploadedFile, len(files))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(s.config.MaxConcurrent)

	for i, header := range files {
		i, header := i, header
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			dst := filepath.Join(dir, uploadName(i, header.Filename))
			size, err := saveMultipart(header, dst)
			if err != nil {
				s.logger.Error("Failed to save upload",
					logger.String("requestId", id),
					logger.String("filename", header.Filename),
					logger.Error(err),
				)
				return fmt.Errorf("failed to save %s: %w", header.Filename, err)
			}
			uploaded[i] = models.UploadedFile{Filename: header.Filename, Path: dst, Size: size}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return uploaded, nil
}

func saveMultipart(header *multipart.FileHeader, dst string) (int64, error) {
	src, err := header.Open()
	if err != nil {
		return 0, err
	}
	defer src.Close()

	f, err := os.Create(dst)
	if err != nil {
		return 0, err
	}
	n, err := io.Copy(f, src)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	return n, err
}

// uploadName keeps the client's base name behind an index so that two
// uploads called the same never collide.
func uploadName(i int, filename string) string {
	base := filepath.Base(strings.ReplaceAll(filename, "\\", "/"))
	if base == "." || base == "/" || base == "" {
		base = "upload"
	}
	return fmt.Sprintf("%02d_%s", i, base)
}

// partialPath is where the toolkit writes before the artifact gets its
// public name. It lives in OutputDir so publishOutput can hard-link it.
func (s *DocumentService) partialPath(job *models.ConversionJob) (string, error) {
	if err := os.MkdirAll(s.config.OutputDir, 0755); err != nil {
		return "", fmt.Errorf("failed to create output directory: %w", err)
	}
	return filepath.Join(s.config.OutputDir, "."+job.ID+".partial"+job.Operation.OutputExt()), nil
}

// publishOutput links tmp to <prefix>_<unix><ext>. os.Link fails when the
// name exists, so two requests in the same second cannot claim one name; the
// loser gets the request id suffix.
func (s *DocumentService) publishOutput(job *models.ConversionJob, tmp string, now time.Time) (string, error) {
	name := outputName(job.Operation, now)
	out := filepath.Join(s.config.OutputDir, name)

	err := os.Link(tmp, out)
	if errors.Is(err, fs.ErrExist) {
		ext := job.Operation.OutputExt()
		out = filepath.Join(s.config.OutputDir, strings.TrimSuffix(name, ext)+"_"+shortID(job.ID)+ext)
		err = os.Link(tmp, out)
	}
	if err != nil {
		return "", fmt.Errorf("failed to publish output: %w", err)
	}
	return out, nil
}

func outputName(op models.Operation, now time.Time) string {
	return fmt.Sprintf("%s_%d%s", op.OutputPrefix(), now.Unix(), op.OutputExt())
}

func shortID(id string) string {
	id = strings.ReplaceAll(id, "-", "")
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func newArtifact(op models.Operation, out string, pages int) (*models.Artifact, error) {
	info, err := os.Stat(out)
	if err != nil {
		return nil, fmt.Errorf("failed to stat output: %w", err)
	}
	return &models.Artifact{
		Name:        filepath.Base(out),
		Path:        out,
		ContentType: op.ContentType(),
		Size:        info.Size(),
		Pages:       pages,
	}, nil
}

// archive copies a synchronous artifact to remote storage; failures are only logged.
func (s *DocumentService) archive(ctx context.Context, artifact *models.Artifact) {
	f, err := os.Open(artifact.Path)
	if err != nil {
		s.logger.Warn("Failed to open artifact for archiving", logger.Error(err))
		return
	}
	defer f.Close()

	key, err := s.storage.Store(ctx, f, path.Join("artifacts", artifact.Name))
	if err != nil {
		s.logger.Warn("Failed to archive artifact",
			logger.String("name", artifact.Name),
			logger.Error(err),
		)
		return
	}
	artifact.StorageKey = key
}

func (s *DocumentService) removeWorkDir(dir string) {
	if err := os.RemoveAll(dir); err != nil {
		s.logger.Warn("Failed to remove scratch directory",
			logger.String("dir", dir),
			logger.Error(err),
		)
	}
}

// SubmitJob 上传输入并加入异步队列
func (s *DocumentService) SubmitJob(ctx context.Context, req *ConvertRequest) (*models.ProcessingTask, error) {
	if s.queue == nil {
		return nil, ErrAsyncDisabled
	}

	job, err := s.prepare(req)
	if err != nil {
		return nil, err
	}
	if req.RequestID == "" || s.jobExists(ctx, job.ID) {
		job.ID = uuid.NewString()
	}

	keys, err := s.storeInputs(ctx, job, req.Files)
	if err != nil {
		return nil, err
	}

	task := &queue.Task{
		ID:        job.ID,
		Type:      queue.TaskTypeConversion,
		Priority:  s.config.QueuePriority,
		Job:       *job,
		InputKeys: keys,
		CreatedAt: job.CreatedAt,
	}

	// 先写状态, worker 可能在 Enqueue 返回前就开始执行
	s.saveStatus(ctx, &queue.TaskStatus{
		TaskID:    job.ID,
		Status:    models.StatusPending,
		Operation: job.Operation,
		StartedAt: job.CreatedAt,
	})

	if err := s.queue.Enqueue(ctx, task); err != nil {
		s.logger.Error("Failed to enqueue task",
			logger.String("jobId", job.ID),
			logger.Error(err),
		)
		s.saveStatus(ctx, &queue.TaskStatus{
			TaskID:     job.ID,
			Status:     models.StatusFailed,
			Operation:  job.Operation,
			Error:      err.Error(),
			StartedAt:  job.CreatedAt,
			FinishedAt: time.Now(),
		})
		return nil, fmt.Errorf("failed to enqueue task: %w", err)
	}

	s.logger.Info("Conversion job created",
		logger.String("jobId", job.ID),
		logger.String("operation", string(job.Operation)),
		logger.Int("files", len(keys)),
	)

	return &models.ProcessingTask{
		ID:        job.ID,
		Status:    models.StatusPending,
		Operation: job.Operation,
		CreatedAt: job.CreatedAt,
		UpdatedAt: job.CreatedAt,
	}, nil
}

func (s *DocumentService) jobExists(ctx context.Context, id string) bool {
	_, err := s.queue.GetTaskStatus(ctx, id)
	return err == nil
}

// storeInputs 将上传文件写入存储, 返回存储 key
func (s *DocumentService) storeInputs(ctx context.Context, job *models.ConversionJob, files []*multipart.FileHeader) ([]string, error) {
	keys := make([]string, len(files))
	job.Inputs = make([]models.UploadedFile, len(files))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(s.config.MaxConcurrent)

	for i, header := range files {
		i, header := i, header
		g.Go(func() error {
			src, err := header.Open()
			if err != nil {
				return fmt.Errorf("failed to open %s: %w", header.Filename, err)
			}
			defer src.Close()

			key, err := s.storage.Store(ctx, src, path.Join("jobs", job.ID, "inputs", uploadName(i, header.Filename)))
			if err != nil {
				return fmt.Errorf("failed to store %s: %w", header.Filename, err)
			}
			keys[i] = key
			job.Inputs[i] = models.UploadedFile{Filename: header.Filename, Size: header.Size}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return keys, nil
}

// HandleJob 执行队列中的转换任务
func (s *DocumentService) HandleJob(ctx context.Context, task *queue.Task) error {
	if s.queue == nil {
		return ErrAsyncDisabled
	}
	if task == nil || task.ID == "" || len(task.InputKeys) == 0 {
		return fmt.Errorf("%w: task carries no inputs", models.ErrNoInput)
	}

	log := s.logger.With(
		logger.String("jobId", task.ID),
		logger.String("operation", string(task.Job.Operation)),
	)

	if s.cancelled(ctx, task.ID) {
		log.Info("Skipping cancelled job")
		return nil
	}

	started := time.Now()
	s.saveStatus(ctx, &queue.TaskStatus{
		TaskID:    task.ID,
		Status:    models.StatusRunning,
		Operation: task.Job.Operation,
		Progress:  0.1,
		StartedAt: task.CreatedAt,
	})

	artifact, err := s.runJob(ctx, task)
	if err != nil {
		log.Error("Job failed", logger.Error(err))
		if !s.cancelled(context.WithoutCancel(ctx), task.ID) {
			s.saveStatus(context.WithoutCancel(ctx), &queue.TaskStatus{
				TaskID:     task.ID,
				Status:     models.StatusFailed,
				Operation:  task.Job.Operation,
				Error:      err.Error(),
				StartedAt:  task.CreatedAt,
				FinishedAt: time.Now(),
			})
		}
		return err
	}

	s.saveStatus(ctx, &queue.TaskStatus{
		TaskID:     task.ID,
		Status:     models.StatusCompleted,
		Operation:  task.Job.Operation,
		Progress:   1.0,
		Artifact:   artifact,
		StartedAt:  task.CreatedAt,
		FinishedAt: time.Now(),
	})

	log.Info("Job completed",
		logger.String("artifact", artifact.StorageKey),
		logger.Int("pages", artifact.Pages),
		logger.Duration("elapsed", time.Since(started)),
	)
	return nil
}

func (s *DocumentService) runJob(ctx context.Context, task *queue.Task) (*models.Artifact, error) {
	workDir := filepath.Join(s.config.UploadDir, task.ID)
	defer s.removeWorkDir(workDir)

	job := task.Job
	inputs, err := s.fetchInputs(ctx, task.InputKeys, filepath.Join(workDir, "inputs"))
	if err != nil {
		return nil, err
	}
	for i := range inputs {
		if i < len(job.Inputs) {
			inputs[i].Filename = job.Inputs[i].Filename
		}
	}
	job.Inputs = inputs

	out := filepath.Join(workDir, outputName(job.Operation, time.Now()))
	pages, err := s.toolkit.Run(ctx, &job, workDir, out)
	if err != nil {
		return nil, err
	}

	artifact, err := newArtifact(job.Operation, out, pages)
	if err != nil {
		return nil, err
	}

	f, err := os.Open(out)
	if err != nil {
		return nil, fmt.Errorf("failed to open artifact: %w", err)
	}
	defer f.Close()

	key, err := s.storage.Store(ctx, f, path.Join("jobs", task.ID, artifact.Name))
	if err != nil {
		return nil, fmt.Errorf("failed to store artifact: %w", err)
	}
	artifact.StorageKey = key
	artifact.Path = ""
	return artifact, nil
}

// fetchInputs 从存储下载输入文件到本地
func (s *DocumentService) fetchInputs(ctx context.Context, keys []string, dir string) ([]models.UploadedFile, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create input directory: %w", err)
	}

	inputs := make([]models.UploadedFile, len(keys))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(s.config.MaxConcurrent)

	for i, key := range keys {
		i, key := i, key
		g.Go(func() error {
			rc, err := s.storage.Get(ctx, key)
			if err != nil {
				return err
			}
			defer rc.Close()

			dst := filepath.Join(dir, path.Base(key))
			f, err := os.Create(dst)
			if err != nil {
				return err
			}
			n, err := io.Copy(f, rc)
			if cerr := f.Close(); err == nil {
				err = cerr
			}
			if err != nil {
				return fmt.Errorf("failed to fetch %s: %w", key, err)
			}
			inputs[i] = models.UploadedFile{Filename: path.Base(key), Path: dst, Size: n}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return inputs, nil
}

func (s *DocumentService) cancelled(ctx context.Context, id string) bool {
	status, err := s.queue.GetTaskStatus(ctx, id)
	return err == nil && status.Status == models.StatusCancelled
}

func (s *DocumentService) saveStatus(ctx context.Context, status *queue.TaskStatus) {
	if err := s.queue.SaveStatus(ctx, status); err != nil {
		s.logger.Error("Failed to save task status",
			logger.String("taskId", status.TaskID),
			logger.String("status", string(status.Status)),
			logger.Error(err),
		)
	}
}

// GetJobStatus 获取任务状态
func (s *DocumentService) GetJobStatus(ctx context.Context, jobID string) (*models.ProcessingTask, error) {
	if s.queue == nil {
		return nil, ErrAsyncDisabled
	}

	status, err := s.queue.GetTaskStatus(ctx, jobID)
	if err != nil {
		if errors.Is(err, queue.ErrTaskNotFound) {
			return nil, fmt.Errorf("%w: %s", models.ErrJobNotFound, jobID)
		}
		return nil, fmt.Errorf("failed to get task status: %w", err)
	}

	updated := status.FinishedAt
	if updated.IsZero() {
		updated = status.StartedAt
	}
	return &models.ProcessingTask{
		ID:        status.TaskID,
		Status:    status.Status,
		Operation: status.Operation,
		Progress:  status.Progress,
		Error:     status.Error,
		Artifact:  status.Artifact,
		CreatedAt: status.StartedAt,
		UpdatedAt: updated,
	}, nil
}

// OpenJobArtifact 打开已完成任务的输出
func (s *DocumentService) OpenJobArtifact(ctx context.Context, jobID string) (*models.Artifact, io.ReadCloser, error) {
	task, err := s.GetJobStatus(ctx, jobID)
	if err != nil {
		return nil, nil, err
	}
	if task.Status != models.StatusCompleted || task.Artifact == nil {
		return nil, nil, fmt.Errorf("%w: %s", models.ErrJobNotCompleted, task.Status)
	}

	rc, err := s.storage.Get(ctx, task.Artifact.StorageKey)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to get artifact: %w", err)
	}
	return task.Artifact, rc, nil
}

// CancelJob 取消任务
func (s *DocumentService) CancelJob(ctx context.Context, jobID string) error {
	task, err := s.GetJobStatus(ctx, jobID)
	if err != nil {
		return err
	}
	if task.Status.Terminal() {
		return fmt.Errorf("%w: %s", ErrJobFinished, task.Status)
	}

	if err := s.queue.CancelTask(ctx, jobID); err != nil && !errors.Is(err, queue.ErrTaskNotFound) {
		return fmt.Errorf("failed to cancel task: %w", err)
	}

	s.saveStatus(ctx, &queue.TaskStatus{
		TaskID:     jobID,
		Status:     models.StatusCancelled,
		Operation:  task.Operation,
		StartedAt:  task.CreatedAt,
		FinishedAt: time.Now(),
	})

	s.logger.Info("Task cancelled",
		logger.String("taskId", jobID),
	)
	return nil
}

// CleanupArtifacts 清理过期输出
func (s *DocumentService) CleanupArtifacts(ctx context.Context, threshold time.Time) error {
	var errs []error
	if err := s.outputs.CleanupBefore(ctx, threshold); err != nil {
		errs = append(errs, fmt.Errorf("failed to cleanup outputs: %w", err))
	}
	if s.storage != storage.Storage(s.outputs) {
		if err := s.storage.CleanupBefore(ctx, threshold); err != nil {
			errs = append(errs, fmt.Errorf("failed to cleanup storage: %w", err))
		}
	}

	s.logger.Info("Completed artifacts cleanup",
		logger.Time("threshold", threshold),
	)
	return errors.Join(errs...)
}

// Close 释放处理器和队列连接
func (s *DocumentService) Close() error {
	var errs []error
	if err := s.toolkit.Close(); err != nil {
		errs = append(errs, err)
	}
	if c, ok := s.queue.(io.Closer); ok {
		if err := c.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
