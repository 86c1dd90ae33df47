package image

import (
	"image"
	"image/color"

	"github.com/disintegration/imaging"
)

// 透明背景填充处理器
type FlattenProcessor struct {
	background color.Color
}

// NewFlattenProcessor composites images onto background (white when nil).
func NewFlattenProcessor(background color.Color) *FlattenProcessor {
	if background == nil {
		background = color.White
	}
	return &FlattenProcessor{background: background}
}

func (p *FlattenProcessor) Process(img image.Image) (image.Image, error) {
	b := img.Bounds()
	canvas := imaging.New(b.Dx(), b.Dy(), p.background)
	return imaging.Overlay(canvas, img, image.Pt(0, 0), 1.0), nil
}

// 尺寸限制处理器
type FitProcessor struct {
	maxDimension int
}

func NewFitProcessor(maxDimension int) *FitProcessor {
	return &FitProcessor{maxDimension: maxDimension}
}

func (p *FitProcessor) Process(img image.Image) (image.Image, error) {
	b := img.Bounds()
	if b.Dx() <= p.maxDimension && b.Dy() <= p.maxDimension {
		return img, nil
	}
	return imaging.Fit(img, p.maxDimension, p.maxDimension, imaging.Lanczos), nil
}
