package models

import "time"

// PageImage is one rendered page of the source document.
type PageImage struct {
	Index  int // 1-based
	Data   []byte
	Format string
}

type PageStatus string

const (
	PageSucceeded PageStatus = "succeeded"
	PageFailed    PageStatus = "failed"
)

// PageRecord is the persisted outcome for one page. Text is empty for failed
// pages, which never produce a text artifact.
type PageRecord struct {
	RunID      string
	Page       int
	Text       string
	Status     PageStatus
	Attempts   int
	Error      string
	RecordedAt time.Time
}

type Run struct {
	ID         string
	Source     string
	Engine     string
	Pages      int
	Succeeded  int
	Failed     int
	StartedAt  time.Time
	FinishedAt time.Time
}

// RunSummary is reported once every page has been attempted.
type RunSummary struct {
	RunID       string
	Source      string
	Pages       int
	Succeeded   int
	FailedPages []int
	Elapsed     time.Duration
}

func (s *RunSummary) Failed() int {
	return len(s.FailedPages)
}
