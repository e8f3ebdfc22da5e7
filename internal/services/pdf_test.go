package services

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func TestRasterizeMissingSource(t *testing.T) {
	svc := NewPDFService("")
	_, err := svc.Rasterize(context.Background(), filepath.Join(t.TempDir(), "missing.pdf"), 300)
	if !errors.Is(err, ErrSourceNotFound) {
		t.Fatalf("Expected ErrSourceNotFound, got %v", err)
	}
}

func TestRasterizeUnreadableSource(t *testing.T) {
	path := filepath.Join(t.TempDir(), "broken.pdf")
	if err := os.WriteFile(path, []byte("this is not a pdf"), 0o644); err != nil {
		t.Fatal(err)
	}

	svc := NewPDFService("gs")
	_, err := svc.Rasterize(context.Background(), path, 300)
	if !errors.Is(err, ErrRasterize) {
		t.Fatalf("Expected ErrRasterize, got %v", err)
	}
}
