package image

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/disintegration/imaging"
	"github.com/gen2brain/go-fitz"

	"github.com/feichai0017/pdf-toolkit/internal/models"
	"github.com/feichai0017/pdf-toolkit/pkg/logger"
)

// DefaultDPI matches MuPDF's unscaled pixmap resolution.
const DefaultDPI = 72

// Renderer rasterizes PDF pages with MuPDF.
type Renderer struct {
	logger logger.Logger
	dpi    float64
}

func NewRenderer(logger logger.Logger, dpi float64) *Renderer {
	if dpi <= 0 {
		dpi = DefaultDPI
	}
	return &Renderer{
		logger: logger,
		dpi:    dpi,
	}
}

// RenderRange writes page_<n>.png into outDir for every page of rng, where n
// is the 1-based page number. Paths are returned in page order.
func (r *Renderer) RenderRange(ctx context.Context, pdfPath string, rng models.PageRange, outDir string) ([]string, error) {
	doc, err := fitz.New(pdfPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open pdf: %w", err)
	}
	defer doc.Close()

	if err := rng.Validate(doc.NumPage()); err != nil {
		return nil, err
	}
	if err := os.MkdirAll(outDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create render dir: %w", err)
	}

	paths := make([]string, 0, rng.Len())
	for page := rng.Start; page <= rng.End; page++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		img, err := doc.ImageDPI(page-1, r.dpi)
		if err != nil {
			r.logger.Error("Failed to render page",
				logger.Int("page", page),
				logger.Error(err),
			)
			return nil, fmt.Errorf("failed to render page %d: %w", page, err)
		}

		path := filepath.Join(outDir, fmt.Sprintf("page_%d.png", page))
		if err := imaging.Save(img, path); err != nil {
			return nil, fmt.Errorf("failed to save page %d: %w", page, err)
		}
		paths = append(paths, path)
	}

	r.logger.Debug("Rendered pages",
		logger.String("range", rng.String()),
		logger.Float64("dpi", r.dpi),
	)

	return paths, nil
}
