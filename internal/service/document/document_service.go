package document

import (
	"context"
	"io"
	"mime/multipart"
	"time"

	"github.com/feichai0017/pdf-toolkit/internal/models"
	"github.com/feichai0017/pdf-toolkit/pkg/queue"
)

// ConvertRequest carries the raw multipart inputs of one operation.
type ConvertRequest struct {
	RequestID string
	Operation models.Operation
	Files     []*multipart.FileHeader
	StartPage string
	EndPage   string
	Level     string
}

type DocumentProcessor interface {
	// Convert 同步执行一次操作, 返回输出文件
	Convert(ctx context.Context, req *ConvertRequest) (*models.Artifact, error)
	// Inspect 读取 PDF 元数据
	Inspect(ctx context.Context, header *multipart.FileHeader) (*models.DocumentMetadata, error)

	SubmitJob(ctx context.Context, req *ConvertRequest) (*models.ProcessingTask, error)
	HandleJob(ctx context.Context, task *queue.Task) error
	GetJobStatus(ctx context.Context, jobID string) (*models.ProcessingTask, error)
	OpenJobArtifact(ctx context.Context, jobID string) (*models.Artifact, io.ReadCloser, error)
	CancelJob(ctx context.Context, jobID string) error

	// CleanupArtifacts 删除 threshold 之前产生的输出
	CleanupArtifacts(ctx context.Context, threshold time.Time) error
	AsyncEnabled() bool
}
