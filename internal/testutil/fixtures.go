// Package testutil builds PNG, JPEG and PDF fixtures for tests.
package testutil

import (
	"bytes"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"math/rand"
	"os"
	"path/filepath"
	"testing"

	"github.com/gen2brain/go-fitz"
	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/types"
	"github.com/stretchr/testify/require"
)

// PNGBytes encodes a w×h image; alpha images get a transparent left half.
func PNGBytes(t testing.TB, w, h int, alpha bool) []byte {
	t.Helper()

	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			c := color.NRGBA{R: uint8(x % 256), G: uint8(y % 256), B: 128, A: 255}
			if alpha && x < w/2 {
				c.A = 0
			}
			img.Set(x, y, c)
		}
	}

	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

// WritePNG writes PNGBytes to dir/name and returns the path.
func WritePNG(t testing.TB, dir, name string, w, h int, alpha bool) string {
	t.Helper()

	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, PNGBytes(t, w, h, alpha), 0o644))
	return path
}

// WriteJPEG writes a w×h photo-like JPEG (gradient plus seeded noise) at the
// given quality and returns the path.
func WriteJPEG(t testing.TB, dir, name string, w, h, quality int) string {
	t.Helper()

	rng := rand.New(rand.NewSource(int64(w*h + quality)))
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			n := rng.Intn(48)
			img.Set(x, y, color.RGBA{
				R: uint8((x*255/w + n) % 256),
				G: uint8((y*255/h + n) % 256),
				B: uint8(((x+y)*255/(w+h) + n) % 256),
				A: 255,
			})
		}
	}

	var buf bytes.Buffer
	require.NoError(t, jpeg.Encode(&buf, img, &jpeg.Options{Quality: quality}))

	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, buf.Bytes(), 0o644))
	return path
}

// WritePDF builds a PDF with one page per width, in order.
func WritePDF(t testing.TB, dir, name string, widths ...int) string {
	t.Helper()

	imgDir := filepath.Join(dir, name+"-src")
	require.NoError(t, os.MkdirAll(imgDir, 0o755))

	var images []string
	for i, w := range widths {
		images = append(images, WritePNG(t, imgDir, filepath.Base(name)+string(rune('a'+i))+".png", w, 100, false))
	}

	imp, err := pdfcpu.ParseImportDetails("pos:full", types.POINTS)
	require.NoError(t, err)

	path := filepath.Join(dir, name)
	require.NoError(t, api.ImportImagesFile(images, path, imp, nil))
	return path
}

// PDFBytes returns the content of a freshly built PDF.
func PDFBytes(t testing.TB, widths ...int) []byte {
	t.Helper()

	data, err := os.ReadFile(WritePDF(t, t.TempDir(), "fixture.pdf", widths...))
	require.NoError(t, err)
	return data
}

// PageWidths returns the width of every page, in page order.
func PageWidths(t testing.TB, path string) []int {
	t.Helper()

	doc, err := fitz.New(path)
	require.NoError(t, err)
	defer doc.Close()

	widths := make([]int, doc.NumPage())
	for i := range widths {
		b, err := doc.Bound(i)
		require.NoError(t, err)
		widths[i] = b.Dx()
	}
	return widths
}

// PageCount reads the page count with pdfcpu.
func PageCount(t testing.TB, path string) int {
	t.Helper()

	n, err := api.PageCountFile(path)
	require.NoError(t, err)
	return n
}
