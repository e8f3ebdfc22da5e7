package services

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"

	"github.com/ledongthuc/pdf"
	"github.com/pdfcpu/pdfcpu/pkg/api"

	"dococr/internal/models"
)

var (
	// ErrSourceNotFound is returned when the document path does not exist.
	ErrSourceNotFound = errors.New("source document not found")
	// ErrRasterize is returned when the document yields no page images.
	ErrRasterize = errors.New("rasterization failed")
)

// Rasterizer renders a document into ordered page images.
type Rasterizer interface {
	Rasterize(ctx context.Context, path string, dpi int) ([]models.PageImage, error)
}

type PDFService struct {
	ghostscript string
}

func NewPDFService(ghostscriptPath string) *PDFService {
	if ghostscriptPath == "" {
		ghostscriptPath = "gs"
	}
	return &PDFService{ghostscript: ghostscriptPath}
}

// PageCount reads the page count with ledongthuc/pdf and falls back to
// pdfcpu for files the first reader cannot parse.
func (s *PDFService) PageCount(path string) (int, error) {
	n, err := ledongthucPageCount(path)
	if err == nil && n > 0 {
		return n, nil
	}

	ctx, cpuErr := api.ReadContextFile(path)
	if cpuErr != nil {
		if err == nil {
			err = cpuErr
		}
		return 0, fmt.Errorf("open pdf for page count: %w", err)
	}
	return ctx.PageCount, nil
}

func ledongthucPageCount(path string) (n int, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("parse pdf: %v", r)
		}
	}()

	f, r, err := pdf.Open(path)
	if f != nil {
		defer f.Close()
	}
	if err != nil {
		return 0, err
	}
	return r.NumPage(), nil
}

// Rasterize implements Rasterizer using Ghostscript. Pages are returned as
// PNG bytes in ascending page order.
func (s *PDFService) Rasterize(ctx context.Context, path string, dpi int) ([]models.PageImage, error) {
	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrSourceNotFound, path)
		}
		return nil, fmt.Errorf("stat source: %w", err)
	}

	numPages, err := s.PageCount(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRasterize, err)
	}
	if numPages == 0 {
		return nil, fmt.Errorf("%w: pdf has no pages", ErrRasterize)
	}

	tempDir, err := os.MkdirTemp("", "pdf-render-*")
	if err != nil {
		return nil, fmt.Errorf("create temp dir: %w", err)
	}
	defer os.RemoveAll(tempDir)

	// -sDEVICE=png16m: 24-bit color PNG, one file per page
	outputPattern := filepath.Join(tempDir, "page-%03d.png")
	cmd := exec.CommandContext(ctx, s.ghostscript,
		"-dQUIET",
		"-dSAFER",
		"-dNOPAUSE",
		"-dBATCH",
		"-sDEVICE=png16m",
		fmt.Sprintf("-r%d", dpi),
		fmt.Sprintf("-sOutputFile=%s", outputPattern),
		path,
	)

	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("%w: ghostscript: %v, stderr: %s", ErrRasterize, err, stderr.String())
	}

	pages := make([]models.PageImage, 0, numPages)
	for pageNum := 1; pageNum <= numPages; pageNum++ {
		pagePath := filepath.Join(tempDir, fmt.Sprintf("page-%03d.png", pageNum))
		data, err := os.ReadFile(pagePath)
		if err != nil {
			return nil, fmt.Errorf("%w: read rendered page %d: %v", ErrRasterize, pageNum, err)
		}
		pages = append(pages, models.PageImage{
			Index:  pageNum,
			Data:   data,
			Format: "image/png",
		})
	}

	return pages, nil
}
