package agent

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/feichai0017/pdf-toolkit/internal/agent/document"
	"github.com/feichai0017/pdf-toolkit/internal/agent/document/image"
	"github.com/feichai0017/pdf-toolkit/internal/agent/document/pdf"
	"github.com/feichai0017/pdf-toolkit/internal/models"
	"github.com/feichai0017/pdf-toolkit/pkg/archive"
	"github.com/feichai0017/pdf-toolkit/pkg/logger"
)

// Options 工具集配置
type Options struct {
	RenderDPI         float64
	MaxImageDimension int
	MaxWorkers        int
}

// Toolkit runs each operation as a single library call over files on disk.
type Toolkit struct {
	pdf        *pdf.Processor
	images     *image.Processor
	renderer   *image.Renderer
	processors []document.Processor
	logger     logger.Logger
}

func NewToolkit(log logger.Logger, opts *Options) (*Toolkit, error) {
	if opts == nil {
		opts = &Options{RenderDPI: image.DefaultDPI, MaxWorkers: 4}
	}

	pdfProcessor := pdf.NewProcessor(log.Named("pdf"))

	imageProcessor, err := image.NewProcessor(log.Named("image"), &image.ProcessOptions{
		MaxDimension: opts.MaxImageDimension,
		MaxWorkers:   opts.MaxWorkers,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create image processor: %w", err)
	}

	return &Toolkit{
		pdf:        pdfProcessor,
		images:     imageProcessor,
		renderer:   image.NewRenderer(log.Named("render"), opts.RenderDPI),
		processors: []document.Processor{pdfProcessor, imageProcessor},
		logger:     log,
	}, nil
}

// Run dispatches job to its operation, writing the artifact to out. workDir
// holds intermediate files. It returns the number of pages (or images) produced.
func (t *Toolkit) Run(ctx context.Context, job *models.ConversionJob, workDir, out string) (int, error) {
	inputs := job.InputPaths()
	if len(inputs) == 0 {
		return 0, models.ErrNoInput
	}

	switch job.Operation {
	case models.OpImagesToPDF:
		return t.ImagesToPDF(ctx, inputs, workDir, out)
	case models.OpMergePDF:
		return t.Merge(ctx, inputs, out)
	case models.OpPDFToImages:
		if job.Range == nil {
			return 0, models.ErrInvalidPageRange
		}
		return t.PDFToImages(ctx, inputs[0], *job.Range, workDir, out)
	case models.OpSplitPDF:
		if job.Range == nil {
			return 0, models.ErrInvalidPageRange
		}
		return t.Split(ctx, inputs[0], *job.Range, out)
	case models.OpCompressPDF:
		return t.Compress(ctx, inputs[0], job.Level, out)
	}
	return 0, fmt.Errorf("%w: %s", models.ErrUnknownOperation, job.Operation)
}

// ImagesToPDF 图片转 PDF，每张图片一页
func (t *Toolkit) ImagesToPDF(ctx context.Context, inputs []string, workDir, out string) (int, error) {
	normalized, err := t.images.Normalize(ctx, inputs, filepath.Join(workDir, "normalized"))
	if err != nil {
		return 0, err
	}
	if err := t.pdf.ImportImages(ctx, normalized, out); err != nil {
		return 0, err
	}
	return len(normalized), nil
}

// PDFToImages 渲染页码范围并打包为 zip
func (t *Toolkit) PDFToImages(ctx context.Context, input string, rng models.PageRange, workDir, out string) (int, error) {
	pages, err := t.renderer.RenderRange(ctx, input, rng, filepath.Join(workDir, "pages"))
	if err != nil {
		return 0, err
	}
	if err := archive.ZipFiles(out, pages); err != nil {
		return 0, fmt.Errorf("failed to package pages: %w", err)
	}
	return len(pages), nil
}

// Merge 合并 PDF
func (t *Toolkit) Merge(ctx context.Context, inputs []string, out string) (int, error) {
	if err := t.pdf.Merge(ctx, inputs, out); err != nil {
		return 0, err
	}
	return t.pdf.PageCount(out)
}

// Split 提取页码范围为单个 PDF
func (t *Toolkit) Split(ctx context.Context, input string, rng models.PageRange, out string) (int, error) {
	if err := t.pdf.ExtractRange(ctx, input, rng, out); err != nil {
		return 0, err
	}
	return rng.Len(), nil
}

// Compress 压缩 PDF
func (t *Toolkit) Compress(ctx context.Context, input string, level models.CompressionLevel, out string) (int, error) {
	if err := t.pdf.Compress(ctx, input, level, out); err != nil {
		return 0, err
	}
	return t.pdf.PageCount(out)
}

// Metadata 读取 PDF 元数据
func (t *Toolkit) Metadata(ctx context.Context, path string) (models.DocumentMetadata, error) {
	f, err := os.Open(path)
	if err != nil {
		return models.DocumentMetadata{}, err
	}
	defer f.Close()
	return t.pdf.ExtractMetadata(ctx, f)
}

// Accepts reports whether some processor handles mimeType for op.
func (t *Toolkit) Accepts(op models.Operation, mimeType string) bool {
	if op == models.OpImagesToPDF {
		return t.images.CanProcess(mimeType)
	}
	return t.pdf.CanProcess(mimeType)
}

// Close 释放所有处理器
func (t *Toolkit) Close() error {
	for _, p := range t.processors {
		if err := p.Close(); err != nil {
			return err
		}
	}
	return nil
}
