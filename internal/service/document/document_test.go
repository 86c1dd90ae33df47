package document

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"

	"github.com/feichai0017/pdf-toolkit/internal/agent"
	"github.com/feichai0017/pdf-toolkit/internal/models"
	"github.com/feichai0017/pdf-toolkit/internal/testutil"
	"github.com/feichai0017/pdf-toolkit/internal/utils/validator"
	"github.com/feichai0017/pdf-toolkit/pkg/logger"
	"github.com/feichai0017/pdf-toolkit/pkg/queue"
	"github.com/feichai0017/pdf-toolkit/pkg/storage/local"
)

// memQueue keeps tasks and statuses in memory; tests drive HandleJob directly.
type memQueue struct {
	mu       sync.Mutex
	tasks    map[string]*queue.Task
	statuses map[string]queue.TaskStatus
}

func newMemQueue() *memQueue {
	return &memQueue{
		tasks:    make(map[string]*queue.Task),
		statuses: make(map[string]queue.TaskStatus),
	}
}

func (q *memQueue) Enqueue(ctx context.Context, task *queue.Task) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	copied := *task
	q.tasks[task.ID] = &copied
	return nil
}

func (q *memQueue) GetTaskStatus(ctx context.Context, taskID string) (*queue.TaskStatus, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	status, ok := q.statuses[taskID]
	if !ok {
		return nil, queue.ErrTaskNotFound
	}
	return &status, nil
}

func (q *memQueue) CancelTask(ctx context.Context, taskID string) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if _, ok := q.tasks[taskID]; !ok {
		return queue.ErrTaskNotFound
	}
	delete(q.tasks, taskID)
	return nil
}

func (q *memQueue) SaveStatus(ctx context.Context, status *queue.TaskStatus) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.statuses[status.TaskID] = *status
	return nil
}

func (q *memQueue) task(id string) *queue.Task {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.tasks[id]
}

type testEnv struct {
	svc       *DocumentService
	uploadDir string
	outputDir string
	log       *logger.TestLogger
}

func newTestEnv(t *testing.T, q queue.Queue) *testEnv {
	t.Helper()

	root := t.TempDir()
	env := &testEnv{
		uploadDir: filepath.Join(root, "uploads"),
		outputDir: filepath.Join(root, "outputs"),
		log:       logger.NewTestLogger(),
	}

	toolkit, err := agent.NewToolkit(env.log, &agent.Options{RenderDPI: 72, MaxWorkers: 2})
	require.NoError(t, err)

	outputs, err := local.NewLocalStorage(env.outputDir, env.log)
	require.NoError(t, err)

	env.svc = NewService(toolkit, validator.NewDocumentValidator(env.log, toolkit, nil), q, nil, outputs, env.log, &ServiceConfig{
		UploadDir:     env.uploadDir,
		OutputDir:     env.outputDir,
		MaxConcurrent: 2,
	})
	t.Cleanup(func() { env.svc.Close() })
	return env
}

func pdfUpload(t *testing.T, field, name string, widths ...int) testutil.Upload {
	return testutil.Upload{Field: field, Name: name, Data: testutil.PDFBytes(t, widths...)}
}

func TestConvertMerge(t *testing.T) {
	env := newTestEnv(t, nil)
	files := testutil.FileHeaders(t,
		pdfUpload(t, "pdfs", "a.pdf", 100, 150),
		pdfUpload(t, "pdfs", "a.pdf", 200, 250, 300),
	)["pdfs"]

	artifact, err := env.svc.Convert(context.Background(), &ConvertRequest{
		RequestID: "req-merge",
		Operation: models.OpMergePDF,
		Files:     files,
	})
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(artifact.Name, "merged_"), artifact.Name)
	assert.Equal(t, ".pdf", filepath.Ext(artifact.Name))
	assert.Equal(t, "application/pdf", artifact.ContentType)
	assert.Equal(t, 5, artifact.Pages)
	assert.Equal(t, env.outputDir, filepath.Dir(artifact.Path))
	assert.Equal(t, []int{100, 150, 200, 250, 300}, testutil.PageWidths(t, artifact.Path))

	// per-request scratch directory is gone
	_, err = os.Stat(filepath.Join(env.uploadDir, "req-merge"))
	assert.True(t, os.IsNotExist(err))
}

func TestConvertImagesToPDF(t *testing.T) {
	env := newTestEnv(t, nil)
	files := testutil.FileHeaders(t,
		testutil.Upload{Field: "images", Name: "one.png", Data: testutil.PNGBytes(t, 120, 80, false)},
		testutil.Upload{Field: "images", Name: "two.png", Data: testutil.PNGBytes(t, 240, 80, true)},
	)["images"]

	artifact, err := env.svc.Convert(context.Background(), &ConvertRequest{
		Operation: models.OpImagesToPDF,
		Files:     files,
	})
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(artifact.Name, "images_to_pdf_"), artifact.Name)
	assert.Equal(t, 2, testutil.PageCount(t, artifact.Path))
}

func TestConvertSplit(t *testing.T) {
	env := newTestEnv(t, nil)
	files := testutil.FileHeaders(t, pdfUpload(t, "pdf", "src.pdf", 100, 150, 200, 250))["pdf"]

	artifact, err := env.svc.Convert(context.Background(), &ConvertRequest{
		Operation: models.OpSplitPDF,
		Files:     files,
		StartPage: "2",
		EndPage:   "3",
	})
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(artifact.Name, "split_"), artifact.Name)
	assert.Equal(t, 2, artifact.Pages)
	assert.Equal(t, []int{150, 200}, testutil.PageWidths(t, artifact.Path))
}

func TestConvertInvalidRange(t *testing.T) {
	env := newTestEnv(t, nil)

	tests := []struct {
		name       string
		op         models.Operation
		start, end string
	}{
		{"split past end", models.OpSplitPDF, "3", "9"},
		{"split start zero", models.OpSplitPDF, "0", "2"},
		{"split reversed", models.OpSplitPDF, "3", "2"},
		{"split not a number", models.OpSplitPDF, "one", "2"},
		{"split missing", models.OpSplitPDF, "", ""},
		{"pdf_to_img past end", models.OpPDFToImages, "1", "5"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			files := testutil.FileHeaders(t, pdfUpload(t, "pdf", "src.pdf", 100, 150, 200, 250))["pdf"]
			_, err := env.svc.Convert(context.Background(), &ConvertRequest{
				Operation: tt.op,
				Files:     files,
				StartPage: tt.start,
				EndPage:   tt.end,
			})
			assert.ErrorIs(t, err, models.ErrInvalidPageRange)
		})
	}

	entries, err := os.ReadDir(env.outputDir)
	require.NoError(t, err)
	assert.Empty(t, entries, "no artifact is left behind")
}

func TestConvertRejectsUploads(t *testing.T) {
	env := newTestEnv(t, nil)

	_, err := env.svc.Convert(context.Background(), &ConvertRequest{Operation: models.OpCompressPDF})
	assert.ErrorIs(t, err, models.ErrNoInput)

	images := testutil.FileHeaders(t,
		testutil.Upload{Field: "pdfs", Name: "a.png", Data: testutil.PNGBytes(t, 10, 10, false)},
	)["pdfs"]
	_, err = env.svc.Convert(context.Background(), &ConvertRequest{Operation: models.OpMergePDF, Files: images})
	assert.ErrorIs(t, err, models.ErrUnsupportedFile)

	_, err = env.svc.Convert(context.Background(), &ConvertRequest{Operation: "rotate_pdf", Files: images})
	assert.ErrorIs(t, err, models.ErrUnknownOperation)
}

func TestConvertCompressEveryLevel(t *testing.T) {
	env := newTestEnv(t, nil)

	for _, level := range []string{"low", "medium", "high", "extreme"} {
		files := testutil.FileHeaders(t, pdfUpload(t, "pdf", "src.pdf", 100, 200))["pdf"]
		artifact, err := env.svc.Convert(context.Background(), &ConvertRequest{
			RequestID: "req-" + level,
			Operation: models.OpCompressPDF,
			Files:     files,
			Level:     level,
		})
		require.NoError(t, err, level)
		assert.Equal(t, 2, testutil.PageCount(t, artifact.Path), level)
	}
}

func TestPublishOutputAvoidsCollisions(t *testing.T) {
	env := newTestEnv(t, nil)
	now := time.Unix(1700000000, 0)

	ids := []string{
		"0f8fad5b-d9cb-469f-a165-70867728950e",
		"7c9e6679-7425-40de-944b-e07fc1f90ae7",
	}

	var (
		g    errgroup.Group
		outs = make([]string, len(ids))
	)
	for i, id := range ids {
		job := &models.ConversionJob{ID: id, Operation: models.OpMergePDF}
		tmp, err := env.svc.partialPath(job)
		require.NoError(t, err)
		require.NoError(t, os.WriteFile(tmp, []byte(id), 0o644))

		g.Go(func() error {
			out, err := env.svc.publishOutput(job, tmp, now)
			outs[i] = out
			return err
		})
	}
	require.NoError(t, g.Wait())

	names := []string{filepath.Base(outs[0]), filepath.Base(outs[1])}
	assert.NotEqual(t, names[0], names[1])
	assert.Contains(t, names, "merged_1700000000.pdf")
	for i, out := range outs {
		data, err := os.ReadFile(out)
		require.NoError(t, err)
		assert.Equal(t, ids[i], string(data), "each request keeps its own output")
		assert.True(t, strings.HasPrefix(names[i], "merged_1700000000"), names[i])
	}
}

func TestConvertLeavesNoPartialFiles(t *testing.T) {
	env := newTestEnv(t, nil)

	_, err := env.svc.Convert(context.Background(), &ConvertRequest{
		Operation: models.OpMergePDF,
		Files:     testutil.FileHeaders(t, testutil.Upload{Field: "pdfs", Name: "a.pdf", Data: testutil.PDFBytes(t, 100)})["pdfs"],
	})
	require.NoError(t, err)

	_, err = env.svc.Convert(context.Background(), &ConvertRequest{
		Operation: models.OpSplitPDF,
		Files:     testutil.FileHeaders(t, testutil.Upload{Field: "pdf", Name: "a.pdf", Data: testutil.PDFBytes(t, 100)})["pdf"],
		StartPage: "3",
		EndPage:   "4",
	})
	require.ErrorIs(t, err, models.ErrInvalidPageRange)

	partials, err := filepath.Glob(filepath.Join(env.outputDir, ".*.partial*"))
	require.NoError(t, err)
	assert.Empty(t, partials)
}

func TestUploadName(t *testing.T) {
	assert.Equal(t, "00_scan.png", uploadName(0, "scan.png"))
	assert.Equal(t, "03_evil.pdf", uploadName(3, "../../evil.pdf"))
	assert.Equal(t, "01_doc.pdf", uploadName(1, `C:\Users\me\doc.pdf`))
	assert.Equal(t, "02_upload", uploadName(2, ""))
}

func TestInspect(t *testing.T) {
	env := newTestEnv(t, nil)
	files := testutil.FileHeaders(t, pdfUpload(t, "pdf", "src.pdf", 100, 150, 200))["pdf"]

	meta, err := env.svc.Inspect(context.Background(), files[0])
	require.NoError(t, err)
	assert.Equal(t, 3, meta.Pages)
	assert.Equal(t, "application/pdf", meta.MimeType)
	assert.Len(t, meta.Hash, 64)

	_, err = env.svc.Inspect(context.Background(), nil)
	assert.ErrorIs(t, err, models.ErrNoInput)
}

func TestJobsDisabledWithoutQueue(t *testing.T) {
	env := newTestEnv(t, nil)
	assert.False(t, env.svc.AsyncEnabled())

	_, err := env.svc.SubmitJob(context.Background(), &ConvertRequest{Operation: models.OpMergePDF})
	assert.ErrorIs(t, err, ErrAsyncDisabled)
	_, err = env.svc.GetJobStatus(context.Background(), "anything")
	assert.ErrorIs(t, err, ErrAsyncDisabled)
}

func TestAsyncJobLifecycle(t *testing.T) {
	q := newMemQueue()
	env := newTestEnv(t, q)
	ctx := context.Background()

	files := testutil.FileHeaders(t, pdfUpload(t, "pdf", "src.pdf", 100, 150, 200))["pdf"]
	task, err := env.svc.SubmitJob(ctx, &ConvertRequest{
		Operation: models.OpSplitPDF,
		Files:     files,
		StartPage: "1",
		EndPage:   "2",
	})
	require.NoError(t, err)
	assert.Equal(t, models.StatusPending, task.Status)

	status, err := env.svc.GetJobStatus(ctx, task.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusPending, status.Status)

	_, _, err = env.svc.OpenJobArtifact(ctx, task.ID)
	assert.ErrorIs(t, err, models.ErrJobNotCompleted)

	queued := q.task(task.ID)
	require.NotNil(t, queued)
	assert.Equal(t, queue.TaskTypeConversion, queued.Type)
	require.Len(t, queued.InputKeys, 1)

	require.NoError(t, env.svc.HandleJob(ctx, queued))

	status, err = env.svc.GetJobStatus(ctx, task.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusCompleted, status.Status)
	require.NotNil(t, status.Artifact)
	assert.Equal(t, 2, status.Artifact.Pages)

	artifact, rc, err := env.svc.OpenJobArtifact(ctx, task.ID)
	require.NoError(t, err)
	defer rc.Close()
	assert.True(t, strings.HasPrefix(artifact.Name, "split_"))

	out := filepath.Join(t.TempDir(), artifact.Name)
	f, err := os.Create(out)
	require.NoError(t, err)
	_, err = io.Copy(f, rc)
	require.NoError(t, err)
	require.NoError(t, f.Close())
	assert.Equal(t, []int{100, 150}, testutil.PageWidths(t, out))

	assert.ErrorIs(t, env.svc.CancelJob(ctx, task.ID), ErrJobFinished)
}

func TestAsyncJobInvalidRangeFails(t *testing.T) {
	q := newMemQueue()
	env := newTestEnv(t, q)
	ctx := context.Background()

	files := testutil.FileHeaders(t, pdfUpload(t, "pdf", "src.pdf", 100, 150))["pdf"]
	task, err := env.svc.SubmitJob(ctx, &ConvertRequest{
		Operation: models.OpPDFToImages,
		Files:     files,
		StartPage: "2",
		EndPage:   "7",
	})
	require.NoError(t, err)

	err = env.svc.HandleJob(ctx, q.task(task.ID))
	assert.ErrorIs(t, err, models.ErrInvalidPageRange)

	status, err := env.svc.GetJobStatus(ctx, task.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusFailed, status.Status)
	assert.Contains(t, status.Error, "invalid page range")
}

func TestCancelJob(t *testing.T) {
	q := newMemQueue()
	env := newTestEnv(t, q)
	ctx := context.Background()

	files := testutil.FileHeaders(t, pdfUpload(t, "pdfs", "a.pdf", 100))["pdfs"]
	task, err := env.svc.SubmitJob(ctx, &ConvertRequest{Operation: models.OpMergePDF, Files: files})
	require.NoError(t, err)
	queued := q.task(task.ID)

	require.NoError(t, env.svc.CancelJob(ctx, task.ID))
	assert.Nil(t, q.task(task.ID))

	status, err := env.svc.GetJobStatus(ctx, task.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusCancelled, status.Status)

	// a worker that already dequeued the task skips it
	require.NoError(t, env.svc.HandleJob(ctx, queued))
	status, err = env.svc.GetJobStatus(ctx, task.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusCancelled, status.Status)

	assert.ErrorIs(t, env.svc.CancelJob(ctx, task.ID), ErrJobFinished)
	assert.ErrorIs(t, env.svc.CancelJob(ctx, "missing"), models.ErrJobNotFound)
}

func TestCleanupArtifacts(t *testing.T) {
	env := newTestEnv(t, nil)

	oldFile := filepath.Join(env.outputDir, "merged_1.pdf")
	newFile := filepath.Join(env.outputDir, "merged_2.pdf")
	require.NoError(t, os.WriteFile(oldFile, []byte("old"), 0o644))
	require.NoError(t, os.WriteFile(newFile, []byte("new"), 0o644))
	past := time.Now().Add(-2 * time.Hour)
	require.NoError(t, os.Chtimes(oldFile, past, past))

	require.NoError(t, env.svc.CleanupArtifacts(context.Background(), time.Now().Add(-time.Hour)))

	_, err := os.Stat(oldFile)
	assert.True(t, os.IsNotExist(err))
	_, err = os.Stat(newFile)
	assert.NoError(t, err)
}
