// Package raster turns a PDF file into page images. A Rasterizer
// interface keeps the orchestrator from depending on pdfcpu directly,
// so the extraction pipeline works against "given a PDF path and DPI,
// yield page images" and nothing more.
package raster

import (
	"context"
	"fmt"
	"image"
	_ "image/jpeg" // decode formats pdfcpu may extract
	_ "image/png"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/types"
)

// referenceDPI is the PDF's native unit: 72 points per inch.
const referenceDPI = 72

// Page is one rasterized page: its image and its 0-indexed page number.
type Page struct {
	Index int
	Image image.Image
}

// Rasterizer yields page images for a PDF at the given DPI.
type Rasterizer interface {
	Rasterize(ctx context.Context, pdfPath string, dpi int) ([]Page, error)
}

// PDFCPURasterizer implements Rasterizer on top of pdfcpu. pdfcpu
// extracts a PDF's embedded raster images rather than rendering
// vector/text content; pages whose content is not itself an embedded
// image yield a blank canvas sized from the page's declared media box
// at the requested DPI, so every page still produces an image for the
// layout analyzer to operate on.
type PDFCPURasterizer struct{}

// NewPDFCPURasterizer constructs the default pdfcpu-backed rasterizer.
func NewPDFCPURasterizer() *PDFCPURasterizer { return &PDFCPURasterizer{} }

// Rasterize implements Rasterizer.
func (r *PDFCPURasterizer) Rasterize(ctx context.Context, pdfPath string, dpi int) ([]Page, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("raster: %w", err)
	}
	if dpi <= 0 {
		return nil, fmt.Errorf("raster: invalid dpi %d", dpi)
	}

	count, err := api.PageCountFile(pdfPath)
	if err != nil {
		return nil, fmt.Errorf("raster: reading page count: %w", err)
	}
	if count <= 0 {
		return nil, fmt.Errorf("raster: %s has no pages", pdfPath)
	}

	dims, err := api.PageDimsFile(pdfPath)
	if err != nil {
		return nil, fmt.Errorf("raster: reading page dimensions: %w", err)
	}

	tempDir, err := os.MkdirTemp("", "examcrop-raster-*")
	if err != nil {
		return nil, fmt.Errorf("raster: creating temp directory: %w", err)
	}
	defer func() { _ = os.RemoveAll(tempDir) }()

	if err := api.ExtractImagesFile(pdfPath, tempDir, nil, nil); err != nil {
		return nil, fmt.Errorf("raster: extracting page images: %w", err)
	}

	extracted, err := collectByPage(tempDir)
	if err != nil {
		return nil, fmt.Errorf("raster: collecting extracted images: %w", err)
	}

	pages := make([]Page, count)
	for i := 0; i < count; i++ {
		pageNum := i + 1
		if imgs := extracted[pageNum]; len(imgs) > 0 {
			pages[i] = Page{Index: i, Image: imgs[0]}
			continue
		}
		w, h := blankCanvasSize(dims, i, dpi)
		canvas := image.NewGray(image.Rect(0, 0, w, h))
		for j := range canvas.Pix {
			canvas.Pix[j] = 0xff
		}
		pages[i] = Page{Index: i, Image: canvas}
	}
	return pages, nil
}

// blankCanvasSize converts a page's point-space media box into a pixel
// canvas at dpi, falling back to a US-letter-at-dpi default when pdfcpu
// reports no dimension for the page.
func blankCanvasSize(dims []types.Dim, pageIndex, dpi int) (int, int) {
	const (
		fallbackWidthPts  = 612.0 // US letter, points
		fallbackHeightPts = 792.0
	)
	wPts, hPts := fallbackWidthPts, fallbackHeightPts
	if pageIndex < len(dims) {
		wPts, hPts = dims[pageIndex].Width, dims[pageIndex].Height
	}
	w := int(wPts / referenceDPI * float64(dpi))
	h := int(hPts / referenceDPI * float64(dpi))
	if w <= 0 {
		w = 1
	}
	if h <= 0 {
		h = 1
	}
	return w, h
}

// collectByPage groups pdfcpu-extracted images ("page_<n>_image_<i>.ext")
// by page number; downstream only the first image per page is used.
func collectByPage(dir string) (map[int][]image.Image, error) {
	result := make(map[int][]image.Image)
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if !e.IsDir() {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)

	for _, name := range names {
		pageNum, ok := parsePageNumber(name)
		if !ok {
			continue
		}
		f, err := os.Open(filepath.Join(dir, name)) //nolint:gosec // controlled temp dir
		if err != nil {
			continue
		}
		img, _, decErr := image.Decode(f)
		_ = f.Close()
		if decErr != nil {
			continue
		}
		result[pageNum] = append(result[pageNum], img)
	}
	return result, nil
}

func parsePageNumber(filename string) (int, bool) {
	if !strings.HasPrefix(filename, "page_") {
		return 0, false
	}
	parts := strings.Split(filename, "_")
	if len(parts) < 2 {
		return 0, false
	}
	n, err := strconv.Atoi(parts[1])
	if err != nil {
		return 0, false
	}
	return n, true
}
