package services

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/yuin/goldmark"

	"dococr/internal/models"
)

// ErrPageAlreadySaved is returned when a page's output is written twice.
var ErrPageAlreadySaved = errors.New("page output already saved")

// OutputStore persists recognized page text.
type OutputStore interface {
	Save(ctx context.Context, rec models.PageRecord) error
	Close() error
}

type pageSection struct {
	page int
	text string
}

// FileStore writes one file per page, or a single combined file on Close.
type FileStore struct {
	dir      string
	format   string
	combined bool
	md       goldmark.Markdown

	mu       sync.Mutex
	saved    map[int]bool
	sections []pageSection
	written  []string
}

// NewFileStore creates dir if needed. format is "md", "txt" or "html".
func NewFileStore(dir, format string, combined bool) (*FileStore, error) {
	switch format {
	case "":
		format = "md"
	case "md", "txt", "html":
	default:
		return nil, fmt.Errorf("unsupported output format %q", format)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("ensure output dir %s: %w", dir, err)
	}
	return &FileStore{
		dir:      dir,
		format:   format,
		combined: combined,
		md:       goldmark.New(),
		saved:    make(map[int]bool),
	}, nil
}

// PagePath is the deterministic artifact path for a page.
func (s *FileStore) PagePath(page int) string {
	return filepath.Join(s.dir, fmt.Sprintf("page_%d.%s", page, s.format))
}

// CombinedPath is the artifact written by Close in combined mode.
func (s *FileStore) CombinedPath() string {
	return filepath.Join(s.dir, "output."+s.format)
}

// Written lists the files produced so far.
func (s *FileStore) Written() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.written...)
}

func (s *FileStore) Save(ctx context.Context, rec models.PageRecord) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if strings.TrimSpace(rec.Text) == "" {
		return fmt.Errorf("page %d: refusing to save empty text", rec.Page)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.saved[rec.Page] {
		return fmt.Errorf("page %d: %w", rec.Page, ErrPageAlreadySaved)
	}

	if s.combined {
		s.sections = append(s.sections, pageSection{page: rec.Page, text: rec.Text})
		s.saved[rec.Page] = true
		return nil
	}

	path := s.PagePath(rec.Page)
	if err := s.writeFile(path, rec.Text); err != nil {
		return err
	}
	s.saved[rec.Page] = true
	s.written = append(s.written, path)
	return nil
}

// Close flushes the combined artifact. Nothing is written when no page
// produced text.
func (s *FileStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.combined || len(s.sections) == 0 {
		return nil
	}

	sort.Slice(s.sections, func(i, j int) bool { return s.sections[i].page < s.sections[j].page })
	parts := make([]string, 0, len(s.sections))
	for _, sec := range s.sections {
		parts = append(parts, fmt.Sprintf("--- Page %d ---\n%s", sec.page, sec.text))
	}

	path := s.CombinedPath()
	if err := s.writeFile(path, strings.Join(parts, "\n\n")); err != nil {
		return err
	}
	s.written = append(s.written, path)
	s.sections = nil
	return nil
}

func (s *FileStore) writeFile(path, text string) error {
	data := []byte(text)
	if s.format == "html" {
		var buf bytes.Buffer
		if err := s.md.Convert(data, &buf); err != nil {
			return fmt.Errorf("render html for %s: %w", path, err)
		}
		data = buf.Bytes()
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}
