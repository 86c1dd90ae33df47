package image

import (
	"context"
	"fmt"
	"image"
	"os"
	"path/filepath"

	"github.com/disintegration/imaging"
	_ "golang.org/x/image/webp"
	"golang.org/x/sync/errgroup"

	"github.com/feichai0017/pdf-toolkit/internal/models"
	"github.com/feichai0017/pdf-toolkit/pkg/logger"
)

// Processor decodes uploaded images and rewrites them as flat JPEGs that the
// PDF importer embeds without re-compression.
type Processor struct {
	logger        logger.Logger
	preprocessors []ImagePreprocessor
	config        *ProcessOptions
}

// 图像预处理接口
type ImagePreprocessor interface {
	Process(img image.Image) (image.Image, error)
}

// 处理选项
type ProcessOptions struct {
	// MaxDimension caps the longer side in pixels; 0 keeps the original size.
	MaxDimension int
	// MaxWorkers bounds concurrent decodes.
	MaxWorkers int
	// JPEGQuality of the normalized pages; 0 means DefaultJPEGQuality.
	JPEGQuality int
}

// DefaultJPEGQuality 页面图像的默认 JPEG 质量
const DefaultJPEGQuality = 90

// 创建新的处理器
func NewProcessor(logger logger.Logger, opts *ProcessOptions) (*Processor, error) {
	if logger == nil {
		return nil, fmt.Errorf("logger is required")
	}
	if opts == nil {
		opts = &ProcessOptions{MaxWorkers: 4}
	}
	if opts.MaxWorkers <= 0 {
		opts.MaxWorkers = 1
	}
	if opts.JPEGQuality <= 0 || opts.JPEGQuality > 100 {
		opts.JPEGQuality = DefaultJPEGQuality
	}

	p := &Processor{
		logger: logger,
		config: opts,
	}

	// 与 RGB 转换等价：去掉透明通道
	p.preprocessors = append(p.preprocessors, NewFlattenProcessor(nil))
	if opts.MaxDimension > 0 {
		p.preprocessors = append(p.preprocessors, NewFitProcessor(opts.MaxDimension))
	}

	return p, nil
}

func (p *Processor) CanProcess(mimeType string) bool {
	switch mimeType {
	case "image/jpeg", "image/jpg", "image/png", "image/tiff", "image/gif", "image/bmp", "image/webp":
		return true
	default:
		return false
	}
}

// Normalize decodes every input, applies the preprocessing pipeline and writes
// image_<n>.jpg files into dir. The returned paths follow input order.
func (p *Processor) Normalize(ctx context.Context, inputs []string, dir string) ([]string, error) {
	if len(inputs) == 0 {
		return nil, models.ErrNoInput
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create image dir: %w", err)
	}

	outputs := make([]string, len(inputs))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(p.config.MaxWorkers)

	for i, in := range inputs {
		i, in := i, in
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}

			out := filepath.Join(dir, fmt.Sprintf("image_%03d.jpg", i+1))
			if err := p.normalizeOne(in, out); err != nil {
				return fmt.Errorf("%s: %w", filepath.Base(in), err)
			}
			outputs[i] = out
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	return outputs, nil
}

func (p *Processor) normalizeOne(in, out string) error {
	img, err := imaging.Open(in, imaging.AutoOrientation(true))
	if err != nil {
		p.logger.Warn("Failed to decode image",
			logger.String("path", in),
			logger.Error(err),
		)
		return fmt.Errorf("%w: %v", models.ErrUnsupportedFile, err)
	}

	processed, err := p.applyPreprocessing(img)
	if err != nil {
		return err
	}

	// 已去除透明通道，JPEG 即可，pdfcpu 以 DCT 原样嵌入
	if err := imaging.Save(processed, out, imaging.JPEGQuality(p.config.JPEGQuality)); err != nil {
		return fmt.Errorf("failed to write normalized image: %w", err)
	}
	return nil
}

// 图像预处理
func (p *Processor) applyPreprocessing(img image.Image) (image.Image, error) {
	if img == nil {
		return nil, fmt.Errorf("input image is nil")
	}

	var err error
	result := img

	for _, processor := range p.preprocessors {
		result, err = processor.Process(result)
		if err != nil {
			p.logger.Error("Preprocessing failed", logger.Error(err))
			return nil, fmt.Errorf("preprocessing failed: %w", err)
		}
		if result == nil {
			return nil, fmt.Errorf("preprocessor returned nil image")
		}
	}

	return result, nil
}

// Close 清理资源
func (p *Processor) Close() error {
	return nil
}
