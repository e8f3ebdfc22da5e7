package services

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"dococr/internal/models"
)

// Ledger records runs and per-page outcomes in SQLite. A page is recorded at
// most once per run.
type Ledger struct {
	db *sql.DB
}

func NewLedger(db *sql.DB) *Ledger {
	return &Ledger{db: db}
}

func (l *Ledger) StartRun(ctx context.Context, source, engine string, pages int) (*models.Run, error) {
	run := &models.Run{
		ID:        uuid.NewString(),
		Source:    source,
		Engine:    engine,
		Pages:     pages,
		StartedAt: time.Now().UTC(),
	}
	if _, err := l.db.ExecContext(ctx, `
		INSERT INTO runs (id, source_path, engine, page_count, started_at)
		VALUES (?, ?, ?, ?, ?);
	`, run.ID, run.Source, run.Engine, run.Pages, run.StartedAt); err != nil {
		return nil, fmt.Errorf("insert run: %w", err)
	}
	return run, nil
}

// RecordPage stores a page outcome. A second record for the same page
// returns ErrPageAlreadySaved and leaves the first untouched.
func (l *Ledger) RecordPage(ctx context.Context, rec models.PageRecord) error {
	if rec.RecordedAt.IsZero() {
		rec.RecordedAt = time.Now().UTC()
	}
	res, err := l.db.ExecContext(ctx, `
		INSERT INTO pages (run_id, page_index, status, attempts, char_count, content, error, recorded_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(run_id, page_index) DO NOTHING;
	`, rec.RunID, rec.Page, string(rec.Status), rec.Attempts, len([]rune(rec.Text)), rec.Text, rec.Error, rec.RecordedAt)
	if err != nil {
		return fmt.Errorf("insert page %d: %w", rec.Page, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("insert page %d: %w", rec.Page, err)
	}
	if n == 0 {
		return fmt.Errorf("page %d: %w", rec.Page, ErrPageAlreadySaved)
	}
	return nil
}

func (l *Ledger) FinishRun(ctx context.Context, summary *models.RunSummary) error {
	if _, err := l.db.ExecContext(ctx, `
		UPDATE runs SET succeeded = ?, failed = ?, finished_at = ? WHERE id = ?;
	`, summary.Succeeded, summary.Failed(), time.Now().UTC(), summary.RunID); err != nil {
		return fmt.Errorf("finish run: %w", err)
	}
	return nil
}

func (l *Ledger) GetRun(ctx context.Context, id string) (*models.Run, error) {
	row := l.db.QueryRowContext(ctx, `
		SELECT id, source_path, engine, page_count, succeeded, failed, started_at, finished_at
		FROM runs WHERE id = ?;
	`, id)
	var run models.Run
	var finished sql.NullTime
	if err := row.Scan(
		&run.ID,
		&run.Source,
		&run.Engine,
		&run.Pages,
		&run.Succeeded,
		&run.Failed,
		&run.StartedAt,
		&finished,
	); err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("run %s not found", id)
		}
		return nil, fmt.Errorf("scan run: %w", err)
	}
	if finished.Valid {
		run.FinishedAt = finished.Time
	}
	return &run, nil
}

// PagesForRun returns the recorded pages in page order.
func (l *Ledger) PagesForRun(ctx context.Context, runID string) ([]models.PageRecord, error) {
	rows, err := l.db.QueryContext(ctx, `
		SELECT page_index, status, attempts, content, error, recorded_at
		FROM pages WHERE run_id = ? ORDER BY page_index;
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("query pages: %w", err)
	}
	defer rows.Close()

	var records []models.PageRecord
	for rows.Next() {
		rec := models.PageRecord{RunID: runID}
		var status string
		if err := rows.Scan(&rec.Page, &status, &rec.Attempts, &rec.Text, &rec.Error, &rec.RecordedAt); err != nil {
			return nil, fmt.Errorf("scan page: %w", err)
		}
		rec.Status = models.PageStatus(status)
		records = append(records, rec)
	}
	return records, rows.Err()
}
