package services

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"dococr/internal/db"
	"dococr/internal/models"
)

func openTestLedger(t *testing.T) *Ledger {
	t.Helper()
	conn, err := db.Open(filepath.Join(t.TempDir(), "data", "runs.db"))
	if err != nil {
		t.Fatalf("open database: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return NewLedger(conn)
}

func TestLedgerRecordsPagesOnce(t *testing.T) {
	ledger := openTestLedger(t)
	ctx := context.Background()

	run, err := ledger.StartRun(ctx, "documento.pdf", "ollama", 2)
	if err != nil {
		t.Fatalf("StartRun: %v", err)
	}
	if run.ID == "" {
		t.Fatal("Expected run id")
	}

	first := models.PageRecord{RunID: run.ID, Page: 1, Text: "hola", Status: models.PageSucceeded, Attempts: 2}
	if err := ledger.RecordPage(ctx, first); err != nil {
		t.Fatalf("RecordPage: %v", err)
	}
	dup := models.PageRecord{RunID: run.ID, Page: 1, Text: "otra", Status: models.PageSucceeded, Attempts: 1}
	if err := ledger.RecordPage(ctx, dup); !errors.Is(err, ErrPageAlreadySaved) {
		t.Fatalf("Expected ErrPageAlreadySaved, got %v", err)
	}
	failed := models.PageRecord{RunID: run.ID, Page: 2, Status: models.PageFailed, Attempts: 3, Error: "exhausted"}
	if err := ledger.RecordPage(ctx, failed); err != nil {
		t.Fatalf("RecordPage: %v", err)
	}

	pages, err := ledger.PagesForRun(ctx, run.ID)
	if err != nil {
		t.Fatalf("PagesForRun: %v", err)
	}
	if len(pages) != 2 {
		t.Fatalf("Expected 2 page records, got %d", len(pages))
	}
	if pages[0].Text != "hola" || pages[0].Attempts != 2 {
		t.Errorf("First record was overwritten: %+v", pages[0])
	}
	if pages[1].Status != models.PageFailed || pages[1].Error != "exhausted" {
		t.Errorf("Unexpected failed record: %+v", pages[1])
	}

	summary := &models.RunSummary{RunID: run.ID, Pages: 2, Succeeded: 1, FailedPages: []int{2}, Elapsed: time.Second}
	if err := ledger.FinishRun(ctx, summary); err != nil {
		t.Fatalf("FinishRun: %v", err)
	}
	stored, err := ledger.GetRun(ctx, run.ID)
	if err != nil {
		t.Fatalf("GetRun: %v", err)
	}
	if stored.Succeeded != 1 || stored.Failed != 1 || stored.FinishedAt.IsZero() {
		t.Errorf("Unexpected run row: %+v", stored)
	}
}

func TestLedgerRunsAreIndependent(t *testing.T) {
	ledger := openTestLedger(t)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		run, err := ledger.StartRun(ctx, "doc.pdf", "tesseract", 1)
		if err != nil {
			t.Fatalf("StartRun: %v", err)
		}
		if err := ledger.RecordPage(ctx, models.PageRecord{RunID: run.ID, Page: 1, Text: "x", Status: models.PageSucceeded}); err != nil {
			t.Errorf("Run %d: page 1 should be recordable, got %v", i, err)
		}
	}
}

func TestLedgerGetRunMissing(t *testing.T) {
	ledger := openTestLedger(t)
	if _, err := ledger.GetRun(context.Background(), "nope"); err == nil {
		t.Error("Expected error for missing run")
	}
}
