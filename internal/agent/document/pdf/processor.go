package pdf

import (
	"context"
	"fmt"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/types"

	"github.com/feichai0017/pdf-toolkit/internal/models"
	"github.com/feichai0017/pdf-toolkit/pkg/logger"
)

func init() {
	// pdfcpu would otherwise create a config dir under $HOME on first use
	api.DisableConfigDir()
}

// Processor wraps the pdfcpu page-tree operations.
type Processor struct {
	logger logger.Logger
}

func NewProcessor(logger logger.Logger) *Processor {
	return &Processor{
		logger: logger,
	}
}

// CanProcess 检查是否可以处理指定MIME类型的文件
func (p *Processor) CanProcess(mimeType string) bool {
	return mimeType == "application/pdf"
}

// configuration returns a fresh pdfcpu configuration; pdfcpu mutates it per command.
func (p *Processor) configuration() *model.Configuration {
	conf := model.NewDefaultConfiguration()
	conf.ValidationMode = model.ValidationRelaxed
	return conf
}

// PageCount 读取页数
func (p *Processor) PageCount(path string) (int, error) {
	n, err := api.PageCountFile(path)
	if err != nil {
		return 0, fmt.Errorf("failed to read page count: %w", err)
	}
	return n, nil
}

// Merge concatenates inputs into out, keeping input and page order.
func (p *Processor) Merge(ctx context.Context, inputs []string, out string) error {
	if len(inputs) == 0 {
		return models.ErrNoInput
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	if err := api.MergeCreateFile(inputs, out, false, p.configuration()); err != nil {
		p.logger.Error("Failed to merge pdfs",
			logger.Int("inputs", len(inputs)),
			logger.Error(err),
		)
		return fmt.Errorf("failed to merge pdfs: %w", err)
	}
	return nil
}

// ExtractRange writes pages r.Start..r.End of input into a new document.
func (p *Processor) ExtractRange(ctx context.Context, input string, r models.PageRange, out string) error {
	pages, err := p.PageCount(input)
	if err != nil {
		return err
	}
	if err := r.Validate(pages); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	if err := api.TrimFile(input, out, []string{r.Selection()}, p.configuration()); err != nil {
		p.logger.Error("Failed to extract page range",
			logger.String("range", r.String()),
			logger.Error(err),
		)
		return fmt.Errorf("failed to extract pages %s: %w", r, err)
	}
	return nil
}

// Compress rewrites input with unused objects dropped and streams deflated.
//
// The level is only logged: pdfcpu's optimiser takes no quality setting, so
// low, medium and high all produce the same document.
func (p *Processor) Compress(ctx context.Context, input string, level models.CompressionLevel, out string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	p.logger.Debug("Optimizing pdf",
		logger.String("level", string(level)),
		logger.Int("quality", level.Quality()),
	)

	if err := api.OptimizeFile(input, out, p.configuration()); err != nil {
		p.logger.Error("Failed to optimize pdf",
			logger.String("level", string(level)),
			logger.Error(err),
		)
		return fmt.Errorf("failed to optimize pdf: %w", err)
	}
	return nil
}

// ImportImages creates one page per image, each page sized to its image.
func (p *Processor) ImportImages(ctx context.Context, images []string, out string) error {
	if len(images) == 0 {
		return models.ErrNoInput
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	imp, err := pdfcpu.ParseImportDetails("pos:full", types.POINTS)
	if err != nil {
		return fmt.Errorf("failed to build import config: %w", err)
	}

	if err := api.ImportImagesFile(images, out, imp, p.configuration()); err != nil {
		p.logger.Error("Failed to import images",
			logger.Int("images", len(images)),
			logger.Error(err),
		)
		return fmt.Errorf("failed to import images: %w", err)
	}
	return nil
}

// Close 实现处理器接口
func (p *Processor) Close() error {
	return nil
}
